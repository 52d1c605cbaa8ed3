package handler

import (
	"context"
	"net/http"

	"go.uber.org/zap"

	"github.com/boddenberg/coop-transporte-bfa/internal/domain"
	"github.com/boddenberg/coop-transporte-bfa/internal/infra/observability"
	"github.com/boddenberg/coop-transporte-bfa/internal/service"
)

type contextKey string

const sessionIDKey contextKey = "sessionID"

// SessionAuthMiddleware admits requests carrying the access token of a
// RoleActive session and puts the actor (user + active role) in the context.
func SessionAuthMiddleware(sessions *service.SessionService, logger *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token, ok := bearerToken(r)
			if !ok {
				logger.Warn("auth: missing token",
					zap.String("path", r.URL.Path),
					zap.String("remote_addr", r.RemoteAddr),
				)
				writeError(w, http.StatusUnauthorized, "Token de sesión no proporcionado")
				return
			}

			sess, err := sessions.ActiveSession(token)
			if err != nil {
				logger.Warn("auth: invalid session",
					zap.String("path", r.URL.Path),
					zap.String("remote_addr", r.RemoteAddr),
					zap.Error(err),
				)
				writeError(w, http.StatusUnauthorized, err.Error())
				return
			}

			ctx := domain.ContextWithActor(r.Context(), domain.Actor{UserID: sess.Identity.ID, Role: sess.ActiveRole})
			ctx = context.WithValue(ctx, sessionIDKey, sess.ID)
			observability.TagRequest(ctx, sess.Identity.ID, string(sess.ActiveRole))
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// SelectionAuthMiddleware admits requests carrying a selection token, the
// credential of a session waiting for its role choice.
func SelectionAuthMiddleware(sessions *service.SessionService, logger *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token, ok := bearerToken(r)
			if !ok {
				writeError(w, http.StatusUnauthorized, "Token de selección no proporcionado")
				return
			}
			sid, err := sessions.PendingSession(token)
			if err != nil {
				logger.Warn("auth: invalid selection token", zap.String("path", r.URL.Path), zap.Error(err))
				writeError(w, http.StatusUnauthorized, err.Error())
				return
			}
			next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), sessionIDKey, sid)))
		})
	}
}

// RequireRoles rejects actors whose active role is not listed.
func RequireRoles(roles ...domain.Role) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			actor, ok := domain.ActorFromContext(r.Context())
			if !ok {
				writeError(w, http.StatusUnauthorized, "sesión requerida")
				return
			}
			if !domain.HasRole(roles, actor.Role) {
				writeJSON(w, http.StatusForbidden, errorResponse{
					Error: "el rol " + actor.Role.Label() + " no tiene acceso a este recurso",
					Code:  "forbidden",
				})
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// SessionIDFromContext returns the session id set by either auth middleware.
func SessionIDFromContext(ctx context.Context) string {
	v, _ := ctx.Value(sessionIDKey).(string)
	return v
}

// actorFrom returns the actor or answers 401.
func actorFrom(w http.ResponseWriter, r *http.Request) (domain.Actor, bool) {
	actor, ok := domain.ActorFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "sesión requerida")
	}
	return actor, ok
}
