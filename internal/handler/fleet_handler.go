package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/boddenberg/coop-transporte-bfa/internal/domain"
	"github.com/boddenberg/coop-transporte-bfa/internal/service"
)

// ============================================================
// Fleet: buses, routes, frequencies, terminals, operations
// ============================================================

func listBusesHandler(svc *service.FleetService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "GET /v1/buses")
		defer span.End()

		buses, err := svc.ListBuses(ctx)
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		writeJSON(w, http.StatusOK, buses)
	}
}

func createBusHandler(svc *service.FleetService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "POST /v1/buses")
		defer span.End()

		actor, ok := actorFrom(w, r)
		if !ok {
			return
		}
		var b domain.Bus
		if !decode(w, r, &b) {
			return
		}
		created, err := svc.CreateBus(ctx, actor, &b)
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		writeJSON(w, http.StatusCreated, created)
	}
}

func updateBusHandler(svc *service.FleetService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "PUT /v1/buses/{busId}")
		defer span.End()

		actor, ok := actorFrom(w, r)
		if !ok {
			return
		}
		var b domain.Bus
		if !decode(w, r, &b) {
			return
		}
		updated, err := svc.UpdateBus(ctx, actor, chi.URLParam(r, "busId"), &b)
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		writeJSON(w, http.StatusOK, updated)
	}
}

func deleteBusHandler(svc *service.FleetService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "DELETE /v1/buses/{busId}")
		defer span.End()

		actor, ok := actorFrom(w, r)
		if !ok {
			return
		}
		if err := svc.DeleteBus(ctx, actor, chi.URLParam(r, "busId")); err != nil {
			handleServiceError(w, err, logger)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

func listRoutesHandler(svc *service.FleetService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "GET /v1/routes")
		defer span.End()

		routes, err := svc.ListRoutes(ctx)
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		writeJSON(w, http.StatusOK, routes)
	}
}

func createRouteHandler(svc *service.FleetService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "POST /v1/routes")
		defer span.End()

		actor, ok := actorFrom(w, r)
		if !ok {
			return
		}
		var route domain.Route
		if !decode(w, r, &route) {
			return
		}
		created, err := svc.CreateRoute(ctx, actor, &route)
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		writeJSON(w, http.StatusCreated, created)
	}
}

func deleteRouteHandler(svc *service.FleetService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "DELETE /v1/routes/{routeId}")
		defer span.End()

		actor, ok := actorFrom(w, r)
		if !ok {
			return
		}
		if err := svc.DeleteRoute(ctx, actor, chi.URLParam(r, "routeId")); err != nil {
			handleServiceError(w, err, logger)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

func listFrequenciesHandler(svc *service.FleetService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "GET /v1/routes/{routeId}/frequencies")
		defer span.End()

		freqs, err := svc.ListFrequencies(ctx, chi.URLParam(r, "routeId"))
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		writeJSON(w, http.StatusOK, freqs)
	}
}

func createFrequencyHandler(svc *service.FleetService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "POST /v1/routes/{routeId}/frequencies")
		defer span.End()

		actor, ok := actorFrom(w, r)
		if !ok {
			return
		}
		var f domain.Frequency
		if !decode(w, r, &f) {
			return
		}
		f.RouteID = chi.URLParam(r, "routeId")
		created, err := svc.CreateFrequency(ctx, actor, &f)
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		writeJSON(w, http.StatusCreated, created)
	}
}

func deleteFrequencyHandler(svc *service.FleetService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "DELETE /v1/frequencies/{frequencyId}")
		defer span.End()

		actor, ok := actorFrom(w, r)
		if !ok {
			return
		}
		if err := svc.DeleteFrequency(ctx, actor, chi.URLParam(r, "frequencyId")); err != nil {
			handleServiceError(w, err, logger)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

func listTerminalsHandler(svc *service.FleetService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "GET /v1/terminals")
		defer span.End()

		terminals, err := svc.ListTerminals(ctx)
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		writeJSON(w, http.StatusOK, terminals)
	}
}

func createTerminalHandler(svc *service.FleetService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "POST /v1/terminals")
		defer span.End()

		actor, ok := actorFrom(w, r)
		if !ok {
			return
		}
		var t domain.Terminal
		if !decode(w, r, &t) {
			return
		}
		created, err := svc.CreateTerminal(ctx, actor, &t)
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		writeJSON(w, http.StatusCreated, created)
	}
}

func listOperationsHandler(svc *service.FleetService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "GET /v1/terminals/{terminalId}/operations")
		defer span.End()

		ops, err := svc.ListOperations(ctx, chi.URLParam(r, "terminalId"))
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		writeJSON(w, http.StatusOK, ops)
	}
}

func logOperationHandler(svc *service.FleetService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "POST /v1/terminals/{terminalId}/operations")
		defer span.End()

		actor, ok := actorFrom(w, r)
		if !ok {
			return
		}
		var op domain.TerminalOperation
		if !decode(w, r, &op) {
			return
		}
		op.TerminalID = chi.URLParam(r, "terminalId")
		created, err := svc.LogOperation(ctx, actor, &op)
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		writeJSON(w, http.StatusCreated, created)
	}
}
