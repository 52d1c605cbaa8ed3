package service

import (
	"context"
	"fmt"
	"net/mail"
	"strings"

	"go.opentelemetry.io/otel"
	"go.uber.org/zap"

	"github.com/boddenberg/coop-transporte-bfa/internal/domain"
	"github.com/boddenberg/coop-transporte-bfa/internal/port"
)

var signupTracer = otel.Tracer("service/signup")

const minPasswordLen = 6

// SignUpService creates an identity, its profile and the initial client
// grant. It runs with elevated credentials.
type SignUpService struct {
	admin     port.UserAdmin
	directory port.DirectoryStore
	logger    *zap.Logger
}

func NewSignUpService(admin port.UserAdmin, directory port.DirectoryStore, logger *zap.Logger) *SignUpService {
	return &SignUpService{admin: admin, directory: directory, logger: logger}
}

// ============================================================
// SignUp: POST /functions/v1/signup
// ============================================================

func (s *SignUpService) SignUp(ctx context.Context, req *domain.SignUpRequest) (*domain.SignUpResponse, error) {
	ctx, span := signupTracer.Start(ctx, "SignUpService.SignUp")
	defer span.End()

	if err := validateSignUp(req); err != nil {
		return nil, err
	}

	_, err := s.directory.FindProfileByNationalID(ctx, req.NationalID)
	switch {
	case err == nil:
		return nil, &domain.ErrConflict{Message: "la cédula ya está registrada"}
	case !isNotFound(err):
		return nil, fmt.Errorf("check national id: %w", err)
	}

	identity, err := s.admin.CreateUser(ctx, req.Email, req.Password, map[string]any{
		"first_name": req.FirstName,
		"last_name":  req.LastName,
	})
	if err != nil {
		return nil, err
	}

	profile := &domain.Profile{
		ID:         identity.ID,
		Email:      identity.Email,
		FirstName:  strings.TrimSpace(req.FirstName),
		LastName:   strings.TrimSpace(req.LastName),
		NationalID: req.NationalID,
		Phone:      strings.TrimSpace(req.Phone),
		Address:    strings.TrimSpace(req.Address),
	}
	if err := s.directory.CreateProfile(ctx, profile); err != nil {
		s.rollback(ctx, identity.ID, err)
		return nil, err
	}
	grant := domain.RoleGrant{UserID: identity.ID, Role: domain.RoleClient}
	if err := s.directory.InsertRoleGrants(ctx, []domain.RoleGrant{grant}); err != nil {
		s.rollback(ctx, identity.ID, err)
		return nil, fmt.Errorf("insert initial role: %w", err)
	}

	s.logger.Info("member signed up", zap.String("user_id", identity.ID))
	return &domain.SignUpResponse{
		UserID:  identity.ID,
		Email:   identity.Email,
		Role:    domain.RoleClient,
		Message: "Registro exitoso",
	}, nil
}

// rollback removes the auth identity when the rest of the sign-up failed.
func (s *SignUpService) rollback(ctx context.Context, userID string, cause error) {
	if err := s.admin.DeleteUser(context.WithoutCancel(ctx), userID); err != nil {
		s.logger.Error("sign-up rollback failed",
			zap.String("user_id", userID),
			zap.NamedError("cause", cause),
			zap.Error(err),
		)
	}
}

func validateSignUp(req *domain.SignUpRequest) error {
	req.Email = strings.TrimSpace(req.Email)
	req.NationalID = strings.TrimSpace(req.NationalID)
	if _, err := mail.ParseAddress(req.Email); err != nil || req.Email == "" {
		return &domain.ErrValidation{Field: "email", Message: "correo electrónico inválido"}
	}
	if len(req.Password) < minPasswordLen {
		return &domain.ErrValidation{Field: "password", Message: fmt.Sprintf("la contraseña debe tener al menos %d caracteres", minPasswordLen)}
	}
	if strings.TrimSpace(req.FirstName) == "" || strings.TrimSpace(req.LastName) == "" {
		return &domain.ErrValidation{Field: "first_name", Message: "nombres y apellidos son obligatorios"}
	}
	if len(req.NationalID) != 10 || strings.Trim(req.NationalID, "0123456789") != "" {
		return &domain.ErrValidation{Field: "national_id", Message: "la cédula debe tener 10 dígitos"}
	}
	return nil
}
