// Package domain holds the types of the two chat surfaces: the client
// support bot and owner/driver messaging.
package domain

import (
	"time"

	maindomain "github.com/boddenberg/coop-transporte-bfa/internal/domain"
)

// Intent is the topic detected in a support message.
type Intent string

const (
	IntentSchedule Intent = "horario"
	IntentRoute    Intent = "ruta"
	IntentPoints   Intent = "boleto"
	IntentIncident Intent = "incidente"
	IntentGreeting Intent = "saludo"
	IntentGeneral  Intent = "general"
)

// Sender of a support message.
const (
	SenderClient = "client"
	SenderBot    = "bot"
)

// ============================================================
// Support chat
// ============================================================

// SupportMessage is one turn of the support transcript (row of
// support_messages).
type SupportMessage struct {
	ID        string    `json:"id,omitempty"`
	ClientID  string    `json:"client_id"`
	Sender    string    `json:"sender"`
	Body      string    `json:"body"`
	Intent    Intent    `json:"intent,omitempty"`
	CreatedAt time.Time `json:"created_at,omitempty"`
}

// ChatRequest is the body of POST /v1/support/messages.
type ChatRequest struct {
	Message string `json:"message"`
}

// ChatResponse carries the bot's answer and the two stored turns.
type ChatResponse struct {
	Answer string           `json:"answer"`
	Intent Intent           `json:"intent"`
	Turns  []SupportMessage `json:"turns,omitempty"`
}

// ChatContext is everything a strategy needs to answer one message.
type ChatContext struct {
	ClientID       string
	Query          string
	DetectedIntent Intent
}

// ============================================================
// Owner <-> driver messaging
// ============================================================

// DriverMessage is a direct message between a partner and a driver (row of
// driver_messages).
type DriverMessage struct {
	ID          string    `json:"id,omitempty"`
	SenderID    string    `json:"sender_id"`
	RecipientID string    `json:"recipient_id"`
	Body        string    `json:"body"`
	CreatedAt   time.Time `json:"created_at,omitempty"`
}

// SendMessageRequest is the body of POST /v1/messages.
type SendMessageRequest struct {
	RecipientID string `json:"recipient_id"`
	Body        string `json:"body"`
}

// Counterpart returns the role a member acting as r may message, if any.
func Counterpart(r maindomain.Role) (maindomain.Role, bool) {
	switch r {
	case maindomain.RolePartner:
		return maindomain.RoleDriver, true
	case maindomain.RoleDriver:
		return maindomain.RolePartner, true
	case maindomain.RoleAdministrator, maindomain.RolePresident, maindomain.RoleManager,
		maindomain.RoleEmployee, maindomain.RoleOfficial, maindomain.RoleClient:
		return "", false
	}
	return "", false
}
