package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/boddenberg/coop-transporte-bfa/internal/domain"
	"github.com/boddenberg/coop-transporte-bfa/internal/service"
)

// ============================================================
// Incidents
// ============================================================

func reportIncidentHandler(svc *service.IncidentService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "POST /v1/incidents")
		defer span.End()

		actor, ok := actorFrom(w, r)
		if !ok {
			return
		}
		var in domain.Incident
		if !decode(w, r, &in) {
			return
		}
		created, err := svc.Report(ctx, actor, &in)
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		writeJSON(w, http.StatusCreated, created)
	}
}

func listIncidentsHandler(svc *service.IncidentService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "GET /v1/incidents")
		defer span.End()

		actor, ok := actorFrom(w, r)
		if !ok {
			return
		}
		list, err := svc.List(ctx, actor, domain.IncidentStatus(r.URL.Query().Get("status")))
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		writeJSON(w, http.StatusOK, list)
	}
}

func moderateIncidentHandler(svc *service.IncidentService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "POST /v1/incidents/{incidentId}/moderate")
		defer span.End()

		actor, ok := actorFrom(w, r)
		if !ok {
			return
		}
		var req domain.ModerateIncidentRequest
		if !decode(w, r, &req) {
			return
		}
		updated, err := svc.Moderate(ctx, actor, chi.URLParam(r, "incidentId"), &req)
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		writeJSON(w, http.StatusOK, updated)
	}
}
