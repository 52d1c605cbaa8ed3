package handler

import (
	"net/http"

	"go.uber.org/zap"

	"github.com/boddenberg/coop-transporte-bfa/internal/domain"
	"github.com/boddenberg/coop-transporte-bfa/internal/service"
)

// ============================================================
// Hosted functions: /functions/v1
// ============================================================

// signupFunctionHandler handles POST /functions/v1/signup.
func signupFunctionHandler(svc *service.SignUpService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "POST /functions/v1/signup")
		defer span.End()

		var req domain.SignUpRequest
		if !decode(w, r, &req) {
			return
		}

		resp, err := svc.SignUp(ctx, &req)
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		writeJSON(w, http.StatusCreated, resp)
	}
}

// createRoleRequestFunctionHandler handles POST
// /functions/v1/create-role-request. The requester is the token's subject;
// a user_id in the body must match it.
func createRoleRequestFunctionHandler(svc *service.RoleRequestService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "POST /functions/v1/create-role-request")
		defer span.End()

		caller := callerFromContext(ctx)
		var body domain.CreateRoleRequestBody
		if !decode(w, r, &body) {
			return
		}
		if body.UserID != "" && body.UserID != caller {
			handleServiceError(w, &domain.ErrForbidden{Action: "solicitar roles para otro usuario"}, logger)
			return
		}

		req, err := svc.Submit(ctx, caller, &body)
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		writeJSON(w, http.StatusCreated, req)
	}
}

// approveRoleRequestFunctionHandler handles POST
// /functions/v1/approve-role-request. Only administrators may resolve.
func approveRoleRequestFunctionHandler(svc *service.RoleRequestService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "POST /functions/v1/approve-role-request")
		defer span.End()

		var body domain.ApproveRoleRequestBody
		if !decode(w, r, &body) {
			return
		}

		req, err := svc.Resolve(ctx, callerFromContext(ctx), &body)
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		writeJSON(w, http.StatusOK, req)
	}
}
