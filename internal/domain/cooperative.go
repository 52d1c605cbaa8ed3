package domain

import (
	"strings"
	"time"
)

// CooperativeSettings is the single-row configuration of the cooperative.
type CooperativeSettings struct {
	ID        string     `json:"id,omitempty"`
	Name      string     `json:"name"`
	RUC       string     `json:"ruc"`
	Address   string     `json:"address,omitempty"`
	Phone     string     `json:"phone,omitempty"`
	Email     string     `json:"email,omitempty"`
	UpdatedAt *time.Time `json:"updated_at,omitempty"`
}

func (c *CooperativeSettings) Validate() error {
	if strings.TrimSpace(c.Name) == "" {
		return &ErrValidation{Field: "name", Message: "el nombre de la cooperativa es obligatorio"}
	}
	ruc := strings.TrimSpace(c.RUC)
	if len(ruc) != 13 || strings.Trim(ruc, "0123456789") != "" {
		return &ErrValidation{Field: "ruc", Message: "el RUC debe tener 13 dígitos"}
	}
	return nil
}

// AuditEntry is one row of audit_logs.
type AuditEntry struct {
	ID        string         `json:"id,omitempty"`
	ActorID   string         `json:"actor_id"`
	ActorRole Role           `json:"actor_role"`
	Action    string         `json:"action"`
	Entity    string         `json:"entity"`
	EntityID  string         `json:"entity_id,omitempty"`
	Details   map[string]any `json:"details,omitempty"`
	CreatedAt time.Time      `json:"created_at,omitempty"`
}

// Actor identifies who performs a mutation and under which role.
type Actor struct {
	UserID string
	Role   Role
}
