package domain

import (
	"strings"
	"time"
)

// ============================================================
// Fleet: buses, routes, frequencies, terminals
// ============================================================

// BusStatus is the operational state of a bus.
type BusStatus string

const (
	BusActive      BusStatus = "active"
	BusMaintenance BusStatus = "maintenance"
	BusRetired     BusStatus = "retired"
)

func (s BusStatus) Valid() bool {
	switch s {
	case BusActive, BusMaintenance, BusRetired:
		return true
	}
	return false
}

// Bus is a vehicle of the cooperative.
type Bus struct {
	ID       string    `json:"id,omitempty"`
	Plate    string    `json:"plate"`
	Number   int       `json:"number,omitempty"`
	Capacity int       `json:"capacity"`
	Status   BusStatus `json:"status"`
	OwnerID  *string   `json:"owner_id,omitempty"`
	DriverID *string   `json:"driver_id,omitempty"`
}

// Normalize upper-cases the plate and defaults the status.
func (b *Bus) Normalize() {
	b.Plate = strings.ToUpper(strings.ReplaceAll(strings.TrimSpace(b.Plate), " ", ""))
	if b.Status == "" {
		b.Status = BusActive
	}
}

func (b *Bus) Validate() error {
	if b.Plate == "" {
		return &ErrValidation{Field: "plate", Message: "la placa es obligatoria"}
	}
	if b.Capacity <= 0 {
		return &ErrValidation{Field: "capacity", Message: "la capacidad debe ser mayor a cero"}
	}
	if !b.Status.Valid() {
		return &ErrValidation{Field: "status", Message: "estado de bus inválido"}
	}
	return nil
}

// Route connects two places.
type Route struct {
	ID          string  `json:"id,omitempty"`
	Code        string  `json:"code"`
	Origin      string  `json:"origin"`
	Destination string  `json:"destination"`
	DistanceKm  float64 `json:"distance_km,omitempty"`
}

func (r *Route) Validate() error {
	r.Code = strings.ToUpper(strings.TrimSpace(r.Code))
	switch {
	case r.Code == "":
		return &ErrValidation{Field: "code", Message: "el código de ruta es obligatorio"}
	case strings.TrimSpace(r.Origin) == "":
		return &ErrValidation{Field: "origin", Message: "el origen es obligatorio"}
	case strings.TrimSpace(r.Destination) == "":
		return &ErrValidation{Field: "destination", Message: "el destino es obligatorio"}
	case strings.EqualFold(strings.TrimSpace(r.Origin), strings.TrimSpace(r.Destination)):
		return &ErrValidation{Field: "destination", Message: "origen y destino deben ser distintos"}
	}
	return nil
}

// Frequency is a weekly departure of a bus on a route.
type Frequency struct {
	ID        string    `json:"id,omitempty"`
	RouteID   string    `json:"route_id"`
	BusID     string    `json:"bus_id"`
	DayOfWeek Weekday   `json:"day_of_week"`
	Departure TimeOfDay `json:"departure_time"`
}

func (f *Frequency) Validate() error {
	switch {
	case f.RouteID == "":
		return &ErrValidation{Field: "route_id", Message: "la ruta es obligatoria"}
	case f.BusID == "":
		return &ErrValidation{Field: "bus_id", Message: "el bus es obligatorio"}
	case !f.DayOfWeek.Valid():
		return &ErrValidation{Field: "day_of_week", Message: "día de la semana debe estar entre 0 y 6"}
	}
	return nil
}

// Terminal is a bus station where operations are logged.
type Terminal struct {
	ID   string `json:"id,omitempty"`
	Name string `json:"name"`
	City string `json:"city"`
}

func (t *Terminal) Validate() error {
	if strings.TrimSpace(t.Name) == "" {
		return &ErrValidation{Field: "name", Message: "el nombre del terminal es obligatorio"}
	}
	if strings.TrimSpace(t.City) == "" {
		return &ErrValidation{Field: "city", Message: "la ciudad es obligatoria"}
	}
	return nil
}

// OperationKind is an arrival or a departure.
type OperationKind string

const (
	OperationArrival   OperationKind = "arrival"
	OperationDeparture OperationKind = "departure"
)

// TerminalOperation logs a bus arriving at or leaving a terminal.
type TerminalOperation struct {
	ID         string        `json:"id,omitempty"`
	TerminalID string        `json:"terminal_id"`
	BusID      string        `json:"bus_id"`
	Kind       OperationKind `json:"kind"`
	Passengers int           `json:"passengers"`
	RecordedBy string        `json:"recorded_by"`
	RecordedAt time.Time     `json:"recorded_at"`
	Notes      string        `json:"notes,omitempty"`
}

func (o *TerminalOperation) Validate() error {
	switch {
	case o.TerminalID == "":
		return &ErrValidation{Field: "terminal_id", Message: "el terminal es obligatorio"}
	case o.BusID == "":
		return &ErrValidation{Field: "bus_id", Message: "el bus es obligatorio"}
	case o.Kind != OperationArrival && o.Kind != OperationDeparture:
		return &ErrValidation{Field: "kind", Message: "tipo de operación inválido"}
	case o.Passengers < 0:
		return &ErrValidation{Field: "passengers", Message: "los pasajeros no pueden ser negativos"}
	}
	return nil
}
