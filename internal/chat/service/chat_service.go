// Package service implements the support bot and owner/driver messaging.
//
// The support bot routes each message to a strategy by detected intent.
// Strategies answer from live cooperative data where they can and fall back
// to canned Spanish text.
package service

import (
	"context"
	"strings"
	"unicode"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"

	"github.com/boddenberg/coop-transporte-bfa/internal/chat/domain"
	"github.com/boddenberg/coop-transporte-bfa/internal/chat/port"
	maindomain "github.com/boddenberg/coop-transporte-bfa/internal/domain"
)

var chatTracer = otel.Tracer("chat/service")

const (
	maxMessageLen     = 1000
	defaultTranscript = 100
)

// ChatStrategy answers the messages of one intent.
type ChatStrategy interface {
	CanHandle(intent domain.Intent) bool
	Handle(ctx context.Context, chatCtx *domain.ChatContext) (string, error)
}

// ChatService is the support bot.
type ChatService struct {
	store      port.SupportMessageStore
	strategies []ChatStrategy
	logger     *zap.Logger
}

// NewChatService wires the bot. The first strategy accepting an intent wins.
func NewChatService(store port.SupportMessageStore, strategies []ChatStrategy, logger *zap.Logger) *ChatService {
	return &ChatService{store: store, strategies: strategies, logger: logger}
}

// ProcessMessage answers one client message and stores both turns.
func (s *ChatService) ProcessMessage(ctx context.Context, clientID string, req *domain.ChatRequest) (*domain.ChatResponse, error) {
	ctx, span := chatTracer.Start(ctx, "ChatService.ProcessMessage")
	defer span.End()

	query := strings.TrimSpace(req.Message)
	if query == "" {
		return nil, &maindomain.ErrValidation{Field: "message", Message: "el mensaje no puede estar vacío"}
	}
	if len([]rune(query)) > maxMessageLen {
		return nil, &maindomain.ErrValidation{Field: "message", Message: "el mensaje es demasiado largo"}
	}

	intent := DetectIntent(query)
	span.SetAttributes(attribute.String("chat.intent", string(intent)))
	s.logger.Info("support message received",
		zap.String("user_id", clientID),
		zap.String("intent", string(intent)),
		zap.Int("query_length", len(query)),
	)

	chatCtx := &domain.ChatContext{ClientID: clientID, Query: query, DetectedIntent: intent}
	answer := s.answer(ctx, chatCtx)

	turns, err := s.store.AppendSupportMessages(ctx, []domain.SupportMessage{
		{ClientID: clientID, Sender: domain.SenderClient, Body: query, Intent: intent},
		{ClientID: clientID, Sender: domain.SenderBot, Body: answer, Intent: intent},
	})
	if err != nil {
		return nil, err
	}
	return &domain.ChatResponse{Answer: answer, Intent: intent, Turns: turns}, nil
}

func (s *ChatService) answer(ctx context.Context, chatCtx *domain.ChatContext) string {
	for _, strategy := range s.strategies {
		if !strategy.CanHandle(chatCtx.DetectedIntent) {
			continue
		}
		answer, err := strategy.Handle(ctx, chatCtx)
		if err != nil {
			s.logger.Warn("strategy failed, using fallback",
				zap.String("intent", string(chatCtx.DetectedIntent)),
				zap.Error(err),
			)
			return unavailableAnswer
		}
		return answer
	}
	return generalAnswer
}

// Transcript returns the client's support history oldest first.
func (s *ChatService) Transcript(ctx context.Context, clientID string, limit int) ([]domain.SupportMessage, error) {
	if limit <= 0 || limit > defaultTranscript {
		limit = defaultTranscript
	}
	msgs, err := s.store.ListSupportMessages(ctx, clientID, limit)
	if err != nil {
		return nil, err
	}
	if msgs == nil {
		msgs = []domain.SupportMessage{}
	}
	return msgs, nil
}

// ============================================================
// DetectIntent: keyword routing
// ============================================================

// Keywords are matched as word prefixes after accents are folded, so "hora"
// matches "horas" but not "ahora". Order matters: the first topic wins.
var intentKeywords = []struct {
	intent   domain.Intent
	keywords []string
}{
	{domain.IntentIncident, []string{"incidente", "accidente", "reclamo", "queja", "problema", "denuncia", "reportar"}},
	{domain.IntentPoints, []string{"boleto", "punto", "premio", "canje", "recompensa", "pasaje"}},
	{domain.IntentSchedule, []string{"horario", "hora", "salida", "sale", "frecuencia"}},
	{domain.IntentRoute, []string{"ruta", "destino", "origen", "viaj", "parada"}},
	{domain.IntentGreeting, []string{"hola", "buenas", "buenos", "saludo"}},
}

var accentFolder = strings.NewReplacer("á", "a", "é", "e", "í", "i", "ó", "o", "ú", "u", "ü", "u", "ñ", "n")

// DetectIntent classifies a support message.
func DetectIntent(query string) domain.Intent {
	words := strings.FieldsFunc(accentFolder.Replace(strings.ToLower(query)), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
	for _, topic := range intentKeywords {
		for _, w := range words {
			for _, kw := range topic.keywords {
				if strings.HasPrefix(w, kw) {
					return topic.intent
				}
			}
		}
	}
	return domain.IntentGeneral
}
