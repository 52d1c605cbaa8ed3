package handler

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"go.uber.org/zap"

	"github.com/boddenberg/coop-transporte-bfa/internal/domain"
)

// ============================================================
// Shared helper functions
// ============================================================

type errorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code,omitempty"`
	Field string `json:"field,omitempty"`
}

// scheduleDeniedResponse tells the client when the role can be used.
type scheduleDeniedResponse struct {
	Error         string                 `json:"error"`
	Code          string                 `json:"code"`
	Role          domain.Role            `json:"role"`
	NextAvailable *domain.ScheduleWindow `json:"next_available,omitempty"`
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, errorResponse{Error: msg})
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

// decode reads a JSON body, answering 400 itself on failure.
func decode(w http.ResponseWriter, r *http.Request, dst any) bool {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		writeError(w, http.StatusBadRequest, "cuerpo de la solicitud inválido")
		return false
	}
	return true
}

// bearerToken extracts the token of an "Authorization: Bearer" header.
func bearerToken(r *http.Request) (string, bool) {
	parts := strings.SplitN(r.Header.Get("Authorization"), " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") || parts[1] == "" {
		return "", false
	}
	return parts[1], true
}

// handleServiceError maps domain errors to HTTP responses.
func handleServiceError(w http.ResponseWriter, err error, logger *zap.Logger) {
	var (
		notFound     *domain.ErrNotFound
		circuitOpen  *domain.ErrCircuitOpen
		timeout      *domain.ErrTimeout
		external     *domain.ErrExternalService
		validation   *domain.ErrValidation
		denied       *domain.ErrScheduleDenied
		noRoles      *domain.ErrNoRoles
		forbidden    *domain.ErrForbidden
		unauthorized *domain.ErrUnauthorized
		conflict     *domain.ErrConflict
		transition   *domain.ErrInvalidTransition
		points       *domain.ErrInsufficientPoints
	)

	switch {
	case errors.As(err, &denied):
		logger.Info("schedule denied", zap.String("role", string(denied.Role)))
		writeJSON(w, http.StatusForbidden, scheduleDeniedResponse{
			Error:         denied.Error(),
			Code:          "schedule_denied",
			Role:          denied.Role,
			NextAvailable: denied.NextAvailable,
		})
	case errors.As(err, &noRoles):
		logger.Warn("identity without roles", zap.String("user_id", noRoles.UserID))
		writeJSON(w, http.StatusForbidden, errorResponse{Error: noRoles.Error(), Code: "no_roles"})
	case errors.As(err, &notFound):
		logger.Debug("not found", zap.String("error", err.Error()))
		writeJSON(w, http.StatusNotFound, errorResponse{Error: err.Error(), Code: "not_found"})
	case errors.As(err, &circuitOpen):
		logger.Error("circuit breaker open", zap.Error(err))
		writeError(w, http.StatusServiceUnavailable, err.Error())
	case errors.As(err, &timeout):
		logger.Error("request timeout", zap.Error(err))
		writeError(w, http.StatusGatewayTimeout, err.Error())
	case errors.As(err, &validation):
		logger.Debug("validation error", zap.String("error", err.Error()))
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: validation.Message, Code: "validation", Field: validation.Field})
	case errors.As(err, &points):
		logger.Info("insufficient points", zap.Int("available", points.Available), zap.Int("required", points.Required))
		writeJSON(w, http.StatusUnprocessableEntity, errorResponse{Error: err.Error(), Code: "insufficient_points"})
	case errors.As(err, &transition):
		logger.Debug("invalid transition", zap.String("error", err.Error()))
		writeJSON(w, http.StatusConflict, errorResponse{Error: err.Error(), Code: "invalid_transition"})
	case errors.As(err, &conflict):
		logger.Debug("conflict", zap.String("error", err.Error()))
		writeJSON(w, http.StatusConflict, errorResponse{Error: err.Error(), Code: "conflict"})
	case errors.As(err, &forbidden):
		logger.Warn("forbidden access", zap.String("error", err.Error()))
		writeJSON(w, http.StatusForbidden, errorResponse{Error: err.Error(), Code: "forbidden"})
	case errors.As(err, &unauthorized):
		logger.Warn("unauthorized", zap.String("error", err.Error()))
		writeJSON(w, http.StatusUnauthorized, errorResponse{Error: err.Error(), Code: "unauthorized"})
	case errors.As(err, &external):
		logger.Error("external service error", zap.String("service", external.Service), zap.Error(external.Err))
		writeError(w, http.StatusBadGateway, "servicio externo no disponible: "+external.Service)
	default:
		logger.Error("unhandled error", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "error interno del servidor")
	}
}
