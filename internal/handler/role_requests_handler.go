package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/boddenberg/coop-transporte-bfa/internal/domain"
	"github.com/boddenberg/coop-transporte-bfa/internal/service"
)

// ============================================================
// Role requests: /v1/role-requests (session-authenticated)
// ============================================================

func submitRoleRequestHandler(svc *service.RoleRequestService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "POST /v1/role-requests")
		defer span.End()

		actor, ok := actorFrom(w, r)
		if !ok {
			return
		}
		var body domain.CreateRoleRequestBody
		if !decode(w, r, &body) {
			return
		}

		req, err := svc.Submit(ctx, actor.UserID, &body)
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		writeJSON(w, http.StatusCreated, req)
	}
}

func myRoleRequestsHandler(svc *service.RoleRequestService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "GET /v1/role-requests/mine")
		defer span.End()

		actor, ok := actorFrom(w, r)
		if !ok {
			return
		}
		reqs, err := svc.ListMine(ctx, actor.UserID)
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		writeJSON(w, http.StatusOK, reqs)
	}
}

func pendingRoleRequestsHandler(svc *service.RoleRequestService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "GET /v1/role-requests")
		defer span.End()

		actor, ok := actorFrom(w, r)
		if !ok {
			return
		}
		reqs, err := svc.ListPending(ctx, actor.UserID)
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		writeJSON(w, http.StatusOK, reqs)
	}
}

// resolveRoleRequestHandler handles POST /v1/role-requests/{requestId}/resolve.
func resolveRoleRequestHandler(svc *service.RoleRequestService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "POST /v1/role-requests/{requestId}/resolve")
		defer span.End()

		actor, ok := actorFrom(w, r)
		if !ok {
			return
		}
		var body domain.ApproveRoleRequestBody
		if !decode(w, r, &body) {
			return
		}
		body.RequestID = chi.URLParam(r, "requestId")

		req, err := svc.Resolve(ctx, actor.UserID, &body)
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		writeJSON(w, http.StatusOK, req)
	}
}
