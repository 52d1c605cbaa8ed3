package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/boddenberg/coop-transporte-bfa/internal/domain"
	"github.com/boddenberg/coop-transporte-bfa/internal/service"
)

// ============================================================
// Users
// ============================================================

type setRolesBody struct {
	Roles []string `json:"roles"`
}

func listUsersHandler(svc *service.UserService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "GET /v1/users")
		defer span.End()

		actor, ok := actorFrom(w, r)
		if !ok {
			return
		}
		users, err := svc.ListUsers(ctx, actor)
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		writeJSON(w, http.StatusOK, users)
	}
}

func setUserRolesHandler(svc *service.UserService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "PUT /v1/users/{userId}/roles")
		defer span.End()

		actor, ok := actorFrom(w, r)
		if !ok {
			return
		}
		var body setRolesBody
		if !decode(w, r, &body) {
			return
		}
		roles, err := svc.SetRoles(ctx, actor, chi.URLParam(r, "userId"), body.Roles)
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"user_id": chi.URLParam(r, "userId"), "roles": roles})
	}
}

// ============================================================
// Schedule windows
// ============================================================

func listSchedulesHandler(svc *service.ScheduleService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "GET /v1/schedules")
		defer span.End()

		actor, ok := actorFrom(w, r)
		if !ok {
			return
		}
		employeeID := r.URL.Query().Get("employee_id")
		if employeeID == "" {
			employeeID = actor.UserID
		}
		windows, err := svc.List(ctx, actor, employeeID)
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		writeJSON(w, http.StatusOK, windows)
	}
}

func createScheduleHandler(svc *service.ScheduleService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "POST /v1/schedules")
		defer span.End()

		actor, ok := actorFrom(w, r)
		if !ok {
			return
		}
		var win domain.ScheduleWindow
		if !decode(w, r, &win) {
			return
		}
		created, err := svc.Create(ctx, actor, &win)
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		writeJSON(w, http.StatusCreated, created)
	}
}

func deactivateScheduleHandler(svc *service.ScheduleService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "POST /v1/schedules/{windowId}/deactivate")
		defer span.End()

		actor, ok := actorFrom(w, r)
		if !ok {
			return
		}
		if err := svc.Deactivate(ctx, actor, chi.URLParam(r, "windowId")); err != nil {
			handleServiceError(w, err, logger)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

func deleteScheduleHandler(svc *service.ScheduleService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "DELETE /v1/schedules/{windowId}")
		defer span.End()

		actor, ok := actorFrom(w, r)
		if !ok {
			return
		}
		if err := svc.Delete(ctx, actor, chi.URLParam(r, "windowId")); err != nil {
			handleServiceError(w, err, logger)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

// ============================================================
// Notifications
// ============================================================

func listNotificationsHandler(svc *service.NotificationService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "GET /v1/notifications")
		defer span.End()

		actor, ok := actorFrom(w, r)
		if !ok {
			return
		}
		list, err := svc.List(ctx, actor.UserID)
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		writeJSON(w, http.StatusOK, list)
	}
}

func markNotificationReadHandler(svc *service.NotificationService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "POST /v1/notifications/{notificationId}/read")
		defer span.End()

		actor, ok := actorFrom(w, r)
		if !ok {
			return
		}
		if err := svc.MarkRead(ctx, actor.UserID, chi.URLParam(r, "notificationId")); err != nil {
			handleServiceError(w, err, logger)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

// ============================================================
// Cooperative settings
// ============================================================

func getSettingsHandler(svc *service.SettingsService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "GET /v1/settings")
		defer span.End()

		settings, err := svc.Get(ctx)
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		writeJSON(w, http.StatusOK, settings)
	}
}

func updateSettingsHandler(svc *service.SettingsService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "PUT /v1/settings")
		defer span.End()

		actor, ok := actorFrom(w, r)
		if !ok {
			return
		}
		var in domain.CooperativeSettings
		if !decode(w, r, &in) {
			return
		}
		out, err := svc.Update(ctx, actor, &in)
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		writeJSON(w, http.StatusOK, out)
	}
}
