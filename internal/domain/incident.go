package domain

import (
	"strings"
	"time"
)

// IncidentStatus is the moderation state of an incident report.
type IncidentStatus string

const (
	IncidentOpen        IncidentStatus = "open"
	IncidentUnderReview IncidentStatus = "under_review"
	IncidentResolved    IncidentStatus = "resolved"
	IncidentDismissed   IncidentStatus = "dismissed"
)

var incidentTransitions = map[IncidentStatus][]IncidentStatus{
	IncidentOpen:        {IncidentUnderReview, IncidentDismissed},
	IncidentUnderReview: {IncidentResolved, IncidentDismissed},
}

// CanMoveTo reports whether the moderation state machine allows s -> next.
func (s IncidentStatus) CanMoveTo(next IncidentStatus) bool {
	for _, allowed := range incidentTransitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

// Incident is a report filed by a member about something on the road.
type Incident struct {
	ID             string         `json:"id,omitempty"`
	Title          string         `json:"title"`
	Description    string         `json:"description"`
	BusID          *string        `json:"bus_id,omitempty"`
	RouteID        *string        `json:"route_id,omitempty"`
	ReportedBy     string         `json:"reported_by"`
	ReporterRole   Role           `json:"reporter_role"`
	Status         IncidentStatus `json:"status"`
	ModeratedBy    *string        `json:"moderated_by,omitempty"`
	ModerationNote *string        `json:"moderation_note,omitempty"`
	CreatedAt      time.Time      `json:"created_at,omitempty"`
	UpdatedAt      *time.Time     `json:"updated_at,omitempty"`
}

func (i *Incident) Validate() error {
	if strings.TrimSpace(i.Title) == "" {
		return &ErrValidation{Field: "title", Message: "el título es obligatorio"}
	}
	if strings.TrimSpace(i.Description) == "" {
		return &ErrValidation{Field: "description", Message: "la descripción es obligatoria"}
	}
	return nil
}

// ModerateIncidentRequest is the body of POST /v1/incidents/{id}/moderate.
type ModerateIncidentRequest struct {
	Status IncidentStatus `json:"status"`
	Note   string         `json:"note,omitempty"`
}
