package service

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"go.uber.org/zap"

	"github.com/boddenberg/coop-transporte-bfa/internal/chat/domain"
	"github.com/boddenberg/coop-transporte-bfa/internal/chat/port"
	maindomain "github.com/boddenberg/coop-transporte-bfa/internal/domain"
)

const maxDirectMessageLen = 2000

// MessagingService carries direct messages between partners (bus owners) and
// drivers.
type MessagingService struct {
	store     port.DriverMessageStore
	roles     port.RoleLookup
	publisher port.Publisher
	logger    *zap.Logger

	// store then publish under one lock so subscribers see insertion order
	mu sync.Mutex
}

func NewMessagingService(store port.DriverMessageStore, roles port.RoleLookup, publisher port.Publisher, logger *zap.Logger) *MessagingService {
	return &MessagingService{store: store, roles: roles, publisher: publisher, logger: logger}
}

// Send stores a message from actor and pushes it to live subscribers.
func (s *MessagingService) Send(ctx context.Context, actor maindomain.Actor, req *domain.SendMessageRequest) (*domain.DriverMessage, error) {
	ctx, span := chatTracer.Start(ctx, "MessagingService.Send")
	defer span.End()

	body := strings.TrimSpace(req.Body)
	switch {
	case body == "":
		return nil, &maindomain.ErrValidation{Field: "body", Message: "el mensaje no puede estar vacío"}
	case len([]rune(body)) > maxDirectMessageLen:
		return nil, &maindomain.ErrValidation{Field: "body", Message: "el mensaje es demasiado largo"}
	case req.RecipientID == "":
		return nil, &maindomain.ErrValidation{Field: "recipient_id", Message: "destinatario requerido"}
	case req.RecipientID == actor.UserID:
		return nil, &maindomain.ErrValidation{Field: "recipient_id", Message: "no puede enviarse mensajes a sí mismo"}
	}

	if err := s.checkPair(ctx, actor, req.RecipientID); err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	stored, err := s.store.CreateDriverMessage(ctx, &domain.DriverMessage{
		SenderID:    actor.UserID,
		RecipientID: req.RecipientID,
		Body:        body,
	})
	if err != nil {
		return nil, err
	}
	s.publisher.Publish(*stored)

	s.logger.Debug("direct message sent",
		zap.String("user_id", actor.UserID),
		zap.String("recipient_id", req.RecipientID),
	)
	return stored, nil
}

// Conversation returns the messages between actor and other, oldest first.
func (s *MessagingService) Conversation(ctx context.Context, actor maindomain.Actor, otherID string, limit int) ([]domain.DriverMessage, error) {
	if _, ok := domain.Counterpart(actor.Role); !ok {
		return nil, &maindomain.ErrForbidden{Action: "usar la mensajería de conductores"}
	}
	if limit <= 0 || limit > 200 {
		limit = 200
	}
	msgs, err := s.store.ListConversation(ctx, actor.UserID, otherID, limit)
	if err != nil {
		return nil, err
	}
	if msgs == nil {
		msgs = []domain.DriverMessage{}
	}
	return msgs, nil
}

// checkPair allows only partner <-> driver conversations.
func (s *MessagingService) checkPair(ctx context.Context, actor maindomain.Actor, recipientID string) error {
	want, ok := domain.Counterpart(actor.Role)
	if !ok {
		return &maindomain.ErrForbidden{Action: "usar la mensajería de conductores"}
	}
	grants, err := s.roles.ListRoleGrants(ctx, recipientID)
	if err != nil {
		return fmt.Errorf("list recipient grants: %w", err)
	}
	if !maindomain.HasRole(maindomain.GrantedRoles(grants), want) {
		return &maindomain.ErrForbidden{Action: fmt.Sprintf("enviar mensajes a quien no es %s", strings.ToLower(want.Label()))}
	}
	return nil
}
