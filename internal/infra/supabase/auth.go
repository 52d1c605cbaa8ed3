package supabase

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"go.opentelemetry.io/otel/attribute"

	"github.com/boddenberg/coop-transporte-bfa/internal/domain"
)

// ============================================================
// GoTrue (auth): implements port.IdentityProvider and port.UserAdmin
// ============================================================

const authService = "supabase/auth"

type gotrueUser struct {
	ID    string `json:"id"`
	Email string `json:"email"`
}

type gotrueSession struct {
	AccessToken  string     `json:"access_token"`
	RefreshToken string     `json:"refresh_token"`
	ExpiresIn    int        `json:"expires_in"`
	User         gotrueUser `json:"user"`
}

func (c *Client) authURL(path string) string {
	return fmt.Sprintf("%s/auth/v1/%s", c.baseURL, path)
}

// SignInWithPassword exchanges email and password for a provider session.
func (c *Client) SignInWithPassword(ctx context.Context, email, password string) (*domain.ProviderSession, error) {
	ctx, span := tracer.Start(ctx, "Supabase.SignInWithPassword")
	defer span.End()

	var sess gotrueSession
	err := c.exec(ctx, authService, false, func(ctx context.Context) error {
		_, body, err := c.send(ctx, request{
			method: http.MethodPost,
			url:    c.authURL("token?grant_type=password"),
			body:   map[string]string{"email": email, "password": password},
			bearer: c.apiKey,
		})
		if err != nil {
			return asUnauthorized(err, "Credenciales inválidas")
		}
		return json.Unmarshal(body, &sess)
	})
	if err != nil {
		return nil, err
	}

	span.SetAttributes(attribute.String("user.id", sess.User.ID))
	return &domain.ProviderSession{
		Identity:     domain.Identity{ID: sess.User.ID, Email: sess.User.Email},
		AccessToken:  sess.AccessToken,
		RefreshToken: sess.RefreshToken,
		ExpiresIn:    sess.ExpiresIn,
	}, nil
}

// GetUser resolves a provider access token to its identity.
func (c *Client) GetUser(ctx context.Context, accessToken string) (*domain.Identity, error) {
	ctx, span := tracer.Start(ctx, "Supabase.GetUser")
	defer span.End()

	var u gotrueUser
	err := c.exec(ctx, authService, true, func(ctx context.Context) error {
		_, body, err := c.send(ctx, request{method: http.MethodGet, url: c.authURL("user"), bearer: accessToken})
		if err != nil {
			return asUnauthorized(err, "sesión del proveedor inválida o expirada")
		}
		return json.Unmarshal(body, &u)
	})
	if err != nil {
		return nil, err
	}
	return &domain.Identity{ID: u.ID, Email: u.Email}, nil
}

// SignOut revokes the provider session. A token the provider no longer
// recognizes counts as signed out.
func (c *Client) SignOut(ctx context.Context, accessToken string) error {
	ctx, span := tracer.Start(ctx, "Supabase.SignOut")
	defer span.End()

	if accessToken == "" {
		return nil
	}
	return c.exec(ctx, authService, false, func(ctx context.Context) error {
		_, _, err := c.send(ctx, request{method: http.MethodPost, url: c.authURL("logout"), bearer: accessToken})
		var apiErr *APIError
		if errors.As(err, &apiErr) && (apiErr.Status == http.StatusUnauthorized || apiErr.Status == http.StatusForbidden || apiErr.Status == http.StatusNotFound) {
			return nil
		}
		return err
	})
}

// CreateUser creates a confirmed identity through the admin API.
func (c *Client) CreateUser(ctx context.Context, email, password string, metadata map[string]any) (*domain.Identity, error) {
	ctx, span := tracer.Start(ctx, "Supabase.CreateUser")
	defer span.End()

	var u gotrueUser
	err := c.exec(ctx, authService, false, func(ctx context.Context) error {
		_, body, err := c.send(ctx, request{
			method: http.MethodPost,
			url:    c.authURL("admin/users"),
			body: map[string]any{
				"email":         email,
				"password":      password,
				"email_confirm": true,
				"user_metadata": metadata,
			},
		})
		if err != nil {
			var apiErr *APIError
			if errors.As(err, &apiErr) && apiErr.Status == http.StatusUnprocessableEntity {
				if strings.Contains(strings.ToLower(apiErr.Message), "already") || apiErr.Code == "email_exists" {
					return &domain.ErrConflict{Message: "el correo ya está registrado"}
				}
				return &domain.ErrValidation{Field: "password", Message: apiErr.Message}
			}
			return err
		}
		return json.Unmarshal(body, &u)
	})
	if err != nil {
		return nil, err
	}
	return &domain.Identity{ID: u.ID, Email: u.Email}, nil
}

// DeleteUser removes an identity through the admin API.
func (c *Client) DeleteUser(ctx context.Context, userID string) error {
	ctx, span := tracer.Start(ctx, "Supabase.DeleteUser")
	defer span.End()

	return c.exec(ctx, authService, true, func(ctx context.Context) error {
		_, _, err := c.send(ctx, request{method: http.MethodDelete, url: c.authURL("admin/users/" + userID)})
		var apiErr *APIError
		if errors.As(err, &apiErr) && apiErr.Status == http.StatusNotFound {
			return nil
		}
		return err
	})
}

// asUnauthorized turns GoTrue 400/401/403 answers into *domain.ErrUnauthorized.
func asUnauthorized(err error, msg string) error {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		switch apiErr.Status {
		case http.StatusBadRequest, http.StatusUnauthorized, http.StatusForbidden:
			return &domain.ErrUnauthorized{Message: msg}
		}
	}
	return err
}
