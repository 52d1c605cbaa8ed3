// Package handler exposes the support bot and owner/driver messaging over
// HTTP. Every route expects the session middleware to have put the actor in
// the request context.
package handler

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"

	"github.com/boddenberg/coop-transporte-bfa/internal/chat/domain"
	"github.com/boddenberg/coop-transporte-bfa/internal/chat/infra"
	"github.com/boddenberg/coop-transporte-bfa/internal/chat/service"
	maindomain "github.com/boddenberg/coop-transporte-bfa/internal/domain"
)

var tracer = otel.Tracer("chat/handler")

// ============================================================
// Support bot: /v1/support/messages
// ============================================================

// SupportMessageHandler handles POST /v1/support/messages.
//
//	{"message": "¿A qué hora sale el bus a Ambato?"}
func SupportMessageHandler(svc *service.ChatService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "POST /v1/support/messages")
		defer span.End()

		actor, ok := clientActor(w, r)
		if !ok {
			return
		}
		span.SetAttributes(attribute.String("user.id", actor.UserID))

		var req domain.ChatRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, `cuerpo inválido: se espera {"message": "..."}`)
			return
		}

		resp, err := svc.ProcessMessage(ctx, actor.UserID, &req)
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		writeJSON(w, http.StatusOK, resp)
	}
}

// SupportTranscriptHandler handles GET /v1/support/messages?limit=N.
func SupportTranscriptHandler(svc *service.ChatService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "GET /v1/support/messages")
		defer span.End()

		actor, ok := clientActor(w, r)
		if !ok {
			return
		}

		msgs, err := svc.Transcript(ctx, actor.UserID, queryInt(r, "limit"))
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		writeJSON(w, http.StatusOK, msgs)
	}
}

func clientActor(w http.ResponseWriter, r *http.Request) (maindomain.Actor, bool) {
	actor, ok := maindomain.ActorFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "sesión requerida")
		return actor, false
	}
	if actor.Role != maindomain.RoleClient {
		writeError(w, http.StatusForbidden, "el chat de soporte es exclusivo para clientes")
		return actor, false
	}
	return actor, true
}

// ============================================================
// Owner <-> driver messaging: /v1/messages
// ============================================================

// SendMessageHandler handles POST /v1/messages.
func SendMessageHandler(svc *service.MessagingService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "POST /v1/messages")
		defer span.End()

		actor, ok := maindomain.ActorFromContext(ctx)
		if !ok {
			writeError(w, http.StatusUnauthorized, "sesión requerida")
			return
		}

		var req domain.SendMessageRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "cuerpo inválido")
			return
		}

		msg, err := svc.Send(ctx, actor, &req)
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		writeJSON(w, http.StatusCreated, msg)
	}
}

// ConversationHandler handles GET /v1/messages/{userId}.
func ConversationHandler(svc *service.MessagingService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "GET /v1/messages/{userId}")
		defer span.End()

		actor, ok := maindomain.ActorFromContext(ctx)
		if !ok {
			writeError(w, http.StatusUnauthorized, "sesión requerida")
			return
		}

		msgs, err := svc.Conversation(ctx, actor, chi.URLParam(r, "userId"), queryInt(r, "limit"))
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		writeJSON(w, http.StatusOK, msgs)
	}
}

// StreamHandler handles GET /v1/messages/stream as Server-Sent Events. Each
// message the member sends or receives is written as a "message" event; a
// comment line is sent every heartbeat to keep proxies from closing the
// connection.
func StreamHandler(hub *infra.Hub, heartbeat time.Duration, logger *zap.Logger) http.HandlerFunc {
	if heartbeat <= 0 {
		heartbeat = 25 * time.Second
	}
	return func(w http.ResponseWriter, r *http.Request) {
		actor, ok := maindomain.ActorFromContext(r.Context())
		if !ok {
			writeError(w, http.StatusUnauthorized, "sesión requerida")
			return
		}
		if _, ok := domain.Counterpart(actor.Role); !ok {
			writeError(w, http.StatusForbidden, "la mensajería es exclusiva para socios y conductores")
			return
		}
		flusher, ok := w.(http.Flusher)
		if !ok {
			writeError(w, http.StatusInternalServerError, "streaming no soportado")
			return
		}

		sub := hub.Subscribe(actor.UserID)
		defer sub.Close()

		w.Header().Set("Content-Type", "text/event-stream")
		w.Header().Set("Cache-Control", "no-cache")
		w.Header().Set("Connection", "keep-alive")
		w.Header().Set("X-Accel-Buffering", "no")
		w.WriteHeader(http.StatusOK)
		fmt.Fprint(w, ": conectado\n\n")
		flusher.Flush()

		logger.Debug("message stream opened", zap.String("user_id", actor.UserID))
		ticker := time.NewTicker(heartbeat)
		defer ticker.Stop()

		for {
			select {
			case <-r.Context().Done():
				return
			case <-ticker.C:
				fmt.Fprint(w, ": ping\n\n")
				flusher.Flush()
			case m, open := <-sub.C:
				if !open {
					return
				}
				data, err := json.Marshal(m)
				if err != nil {
					logger.Error("encode stream message", zap.Error(err))
					continue
				}
				fmt.Fprintf(w, "id: %s\nevent: message\ndata: %s\n\n", m.ID, data)
				flusher.Flush()
			}
		}
	}
}

// ============================================================
// Helpers
// ============================================================

func queryInt(r *http.Request, key string) int {
	n, _ := strconv.Atoi(r.URL.Query().Get(key))
	return n
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

// handleServiceError maps domain errors to HTTP status codes.
func handleServiceError(w http.ResponseWriter, err error, logger *zap.Logger) {
	var (
		validation *maindomain.ErrValidation
		forbidden  *maindomain.ErrForbidden
		notFound   *maindomain.ErrNotFound
		timeout    *maindomain.ErrTimeout
		open       *maindomain.ErrCircuitOpen
		external   *maindomain.ErrExternalService
	)
	switch {
	case errors.As(err, &validation):
		writeError(w, http.StatusBadRequest, validation.Message)
	case errors.As(err, &forbidden):
		writeError(w, http.StatusForbidden, forbidden.Error())
	case errors.As(err, &notFound):
		writeError(w, http.StatusNotFound, notFound.Error())
	case errors.As(err, &timeout):
		writeError(w, http.StatusGatewayTimeout, timeout.Error())
	case errors.As(err, &open):
		writeError(w, http.StatusServiceUnavailable, open.Error())
	case errors.As(err, &external):
		logger.Error("external service error", zap.String("service", external.Service), zap.Error(external.Err))
		writeError(w, http.StatusBadGateway, "servicio externo no disponible")
	default:
		logger.Error("unexpected error in chat handler", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "error interno")
	}
}
