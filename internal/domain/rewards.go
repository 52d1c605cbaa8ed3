package domain

import (
	"strings"
	"time"
)

// ============================================================
// Loyalty: tickets, points ledger and rewards
// ============================================================

// Ticket is a trip purchased by a client; it earns points.
type Ticket struct {
	ID           string    `json:"id,omitempty"`
	TicketNumber string    `json:"ticket_number"`
	ClientID     string    `json:"client_id"`
	RouteID      string    `json:"route_id"`
	Amount       float64   `json:"amount"`
	PointsEarned int       `json:"points_earned"`
	IssuedBy     string    `json:"issued_by"`
	CreatedAt    time.Time `json:"created_at,omitempty"`
}

func (t *Ticket) Validate() error {
	t.TicketNumber = strings.TrimSpace(t.TicketNumber)
	switch {
	case t.TicketNumber == "":
		return &ErrValidation{Field: "ticket_number", Message: "el número de boleto es obligatorio"}
	case t.ClientID == "":
		return &ErrValidation{Field: "client_id", Message: "el cliente es obligatorio"}
	case t.RouteID == "":
		return &ErrValidation{Field: "route_id", Message: "la ruta es obligatoria"}
	case t.Amount <= 0:
		return &ErrValidation{Field: "amount", Message: "el valor debe ser mayor a cero"}
	}
	return nil
}

// PointsEntry is one movement of the points ledger; redemptions are negative.
type PointsEntry struct {
	ID        string    `json:"id,omitempty"`
	ClientID  string    `json:"client_id"`
	Points    int       `json:"points"`
	Reason    string    `json:"reason"`
	Reference string    `json:"reference,omitempty"`
	CreatedAt time.Time `json:"created_at,omitempty"`
}

// Reward is an item of the catalog that clients can redeem.
type Reward struct {
	ID          string `json:"id,omitempty"`
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
	CostPoints  int    `json:"cost_points"`
	Active      bool   `json:"active"`
}

func (r *Reward) Validate() error {
	if strings.TrimSpace(r.Name) == "" {
		return &ErrValidation{Field: "name", Message: "el nombre del premio es obligatorio"}
	}
	if r.CostPoints <= 0 {
		return &ErrValidation{Field: "cost_points", Message: "el costo en puntos debe ser mayor a cero"}
	}
	return nil
}

// Redemption records a reward exchanged by a client.
type Redemption struct {
	ID         string    `json:"id,omitempty"`
	ClientID   string    `json:"client_id"`
	RewardID   string    `json:"reward_id"`
	CostPoints int       `json:"cost_points"`
	CreatedAt  time.Time `json:"created_at,omitempty"`
}

// PointsBalance summarizes a client's ledger.
type PointsBalance struct {
	ClientID string        `json:"client_id"`
	Balance  int           `json:"balance"`
	Entries  []PointsEntry `json:"entries"`
}

// SumPoints adds up ledger entries.
func SumPoints(entries []PointsEntry) int {
	total := 0
	for _, e := range entries {
		total += e.Points
	}
	return total
}
