package domain

import "fmt"

// Error types for consistent error handling across the BFA.

// ErrNotFound indicates a resource was not found.
type ErrNotFound struct {
	Resource string
	ID       string
}

func (e *ErrNotFound) Error() string {
	return fmt.Sprintf("%s not found: %s", e.Resource, e.ID)
}

// ErrExternalService indicates a failure reported by the managed backend.
type ErrExternalService struct {
	Service string
	Err     error
}

func (e *ErrExternalService) Error() string {
	return fmt.Sprintf("external service error [%s]: %v", e.Service, e.Err)
}

func (e *ErrExternalService) Unwrap() error {
	return e.Err
}

// ErrTimeout indicates an external call exceeded its deadline. It is kept
// apart from ErrExternalService so callers can tell a slow backend from a
// failing one.
type ErrTimeout struct {
	Operation string
}

func (e *ErrTimeout) Error() string {
	return fmt.Sprintf("operation timed out: %s", e.Operation)
}

// ErrCircuitOpen indicates the circuit breaker is open.
type ErrCircuitOpen struct {
	Service string
}

func (e *ErrCircuitOpen) Error() string {
	return fmt.Sprintf("circuit breaker open for service: %s", e.Service)
}

// ErrValidation indicates a validation error (bad input).
type ErrValidation struct {
	Field   string
	Message string
}

func (e *ErrValidation) Error() string {
	return fmt.Sprintf("validation error on '%s': %s", e.Field, e.Message)
}

// ErrForbidden indicates the caller lacks permission for the operation.
type ErrForbidden struct {
	Action string
}

func (e *ErrForbidden) Error() string {
	return fmt.Sprintf("forbidden: %s", e.Action)
}

// ErrUnauthorized indicates invalid credentials or token.
type ErrUnauthorized struct {
	Message string
}

func (e *ErrUnauthorized) Error() string {
	if e.Message != "" {
		return e.Message
	}
	return "unauthorized"
}

// ErrConflict indicates a unique value is already taken (national id, plate,
// ticket number...).
type ErrConflict struct {
	Message string
}

func (e *ErrConflict) Error() string {
	return e.Message
}

// ErrNoRoles indicates an identity holds no role grant at all.
type ErrNoRoles struct {
	UserID string
}

func (e *ErrNoRoles) Error() string {
	return "No se encontraron roles para este usuario"
}

// ErrScheduleDenied indicates a schedule-gated role was requested outside of
// every active window for it.
type ErrScheduleDenied struct {
	Role          Role
	NextAvailable *ScheduleWindow
}

func (e *ErrScheduleDenied) Error() string {
	next := "no definido"
	if e.NextAvailable != nil {
		next = e.NextAvailable.Describe()
	}
	return fmt.Sprintf("Acceso denegado para el rol %s fuera de su horario. Próximo horario disponible: %s", e.Role.Label(), next)
}

// ErrInvalidTransition indicates a state machine move that is not allowed.
type ErrInvalidTransition struct {
	Entity string
	From   string
	To     string
}

func (e *ErrInvalidTransition) Error() string {
	return fmt.Sprintf("invalid %s transition: %s -> %s", e.Entity, e.From, e.To)
}

// ErrInsufficientPoints indicates the loyalty balance can't cover a redemption.
type ErrInsufficientPoints struct {
	Available int
	Required  int
}

func (e *ErrInsufficientPoints) Error() string {
	return fmt.Sprintf("puntos insuficientes: disponibles=%d requeridos=%d", e.Available, e.Required)
}
