package handler

import (
	"net/http"

	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"

	"github.com/boddenberg/coop-transporte-bfa/internal/domain"
	"github.com/boddenberg/coop-transporte-bfa/internal/service"
)

// ============================================================
// Session establishment: /v1/auth
// ============================================================

// authLoginHandler handles POST /v1/auth/login. The answer is either a
// RoleActive session with its access token or a pending choice with a
// selection token.
func authLoginHandler(sessions *service.SessionService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "POST /v1/auth/login")
		defer span.End()

		var req domain.LoginRequest
		if !decode(w, r, &req) {
			return
		}

		resp, err := sessions.Login(ctx, &req)
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		span.SetAttributes(attribute.String("session.state", string(resp.State)))
		writeJSON(w, http.StatusOK, resp)
	}
}

// authSelectRoleHandler handles POST /v1/auth/select-role (selection token).
func authSelectRoleHandler(sessions *service.SessionService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "POST /v1/auth/select-role")
		defer span.End()

		var req domain.SelectRoleRequest
		if !decode(w, r, &req) {
			return
		}

		resp, err := sessions.SelectRole(ctx, SessionIDFromContext(ctx), &req)
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		writeJSON(w, http.StatusOK, resp)
	}
}

// authCancelHandler handles POST /v1/auth/cancel (selection token).
func authCancelHandler(sessions *service.SessionService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "POST /v1/auth/cancel")
		defer span.End()

		resp, err := sessions.Cancel(ctx, SessionIDFromContext(ctx))
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		writeJSON(w, http.StatusOK, resp)
	}
}

// authLogoutHandler handles POST /v1/auth/logout.
func authLogoutHandler(sessions *service.SessionService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "POST /v1/auth/logout")
		defer span.End()

		if err := sessions.SignOut(ctx, SessionIDFromContext(ctx)); err != nil {
			handleServiceError(w, err, logger)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

// authRestoreHandler handles POST /v1/auth/restore: a page reload presents
// the provider token and gets back the role chosen earlier.
func authRestoreHandler(sessions *service.SessionService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "POST /v1/auth/restore")
		defer span.End()

		var req domain.RestoreRequest
		if !decode(w, r, &req) {
			return
		}

		resp, err := sessions.Restore(ctx, &req)
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		writeJSON(w, http.StatusOK, resp)
	}
}

// authMeHandler handles GET /v1/auth/me.
func authMeHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		actor, ok := actorFrom(w, r)
		if !ok {
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{
			"user_id":     actor.UserID,
			"active_role": actor.Role,
			"label":       actor.Role.Label(),
			"session_id":  SessionIDFromContext(r.Context()),
		})
	}
}
