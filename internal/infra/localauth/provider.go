// Package localauth is a development identity provider backed by bcrypt
// hashes in the local_credentials table. It mirrors the GoTrue operations the
// BFA consumes so the whole login flow runs without a Supabase project.
package localauth

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"go.opentelemetry.io/otel"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/boddenberg/coop-transporte-bfa/internal/domain"
	"github.com/boddenberg/coop-transporte-bfa/internal/infra/cache"
	"github.com/boddenberg/coop-transporte-bfa/internal/infra/postgres"
)

var tracer = otel.Tracer("localauth")

const (
	issuer     = "coop-local-auth"
	bcryptCost = 12
	minPassLen = 8
)

type claims struct {
	Email string `json:"email"`
	jwt.RegisteredClaims
}

// Provider implements port.IdentityProvider and port.UserAdmin.
type Provider struct {
	db      postgres.DBTX
	secret  []byte
	ttl     time.Duration
	revoked *cache.LRU[struct{}]
	cost    int
	logger  *zap.Logger
}

func New(db postgres.DBTX, secret string, ttl time.Duration, logger *zap.Logger) *Provider {
	return &Provider{
		db:      db,
		secret:  []byte(secret),
		ttl:     ttl,
		revoked: cache.New[struct{}]("revoked_tokens", 100_000, ttl, nil),
		cost:    bcryptCost,
		logger:  logger,
	}
}

func (p *Provider) SignInWithPassword(ctx context.Context, email, password string) (*domain.ProviderSession, error) {
	ctx, span := tracer.Start(ctx, "LocalAuth.SignInWithPassword")
	defer span.End()

	var id, stored, hash string
	err := p.db.QueryRow(ctx,
		`SELECT user_id::text, email, password_hash FROM local_credentials WHERE lower(email) = lower($1)`,
		strings.TrimSpace(email)).Scan(&id, &stored, &hash)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, &domain.ErrUnauthorized{Message: "Credenciales inválidas"}
	}
	if err != nil {
		return nil, &domain.ErrExternalService{Service: "localauth", Err: err}
	}

	if err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)); err != nil {
		p.logger.Warn("local sign-in rejected", zap.String("user_id", id))
		return nil, &domain.ErrUnauthorized{Message: "Credenciales inválidas"}
	}

	token, err := p.issue(id, stored)
	if err != nil {
		return nil, fmt.Errorf("sign local token: %w", err)
	}
	return &domain.ProviderSession{
		Identity:    domain.Identity{ID: id, Email: stored},
		AccessToken: token,
		ExpiresIn:   int(p.ttl.Seconds()),
	}, nil
}

func (p *Provider) GetUser(ctx context.Context, accessToken string) (*domain.Identity, error) {
	c, err := p.parse(accessToken)
	if err != nil {
		return nil, err
	}
	if _, gone := p.revoked.Get(c.ID); gone {
		return nil, &domain.ErrUnauthorized{Message: "sesión del proveedor inválida o expirada"}
	}
	return &domain.Identity{ID: c.Subject, Email: c.Email}, nil
}

// SignOut revokes the token until it would have expired anyway.
func (p *Provider) SignOut(ctx context.Context, accessToken string) error {
	c, err := p.parse(accessToken)
	if err != nil {
		return nil
	}
	p.revoked.Set(c.ID, struct{}{})
	return nil
}

func (p *Provider) CreateUser(ctx context.Context, email, password string, metadata map[string]any) (*domain.Identity, error) {
	ctx, span := tracer.Start(ctx, "LocalAuth.CreateUser")
	defer span.End()

	if len(password) < minPassLen {
		return nil, &domain.ErrValidation{Field: "password", Message: fmt.Sprintf("la contraseña debe tener al menos %d caracteres", minPassLen)}
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), p.cost)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}
	if metadata == nil {
		metadata = map[string]any{}
	}

	var id string
	err = p.db.QueryRow(ctx,
		`INSERT INTO local_credentials (email, password_hash, metadata) VALUES ($1, $2, $3) RETURNING user_id::text`,
		strings.TrimSpace(email), string(hash), metadata).Scan(&id)
	if err != nil {
		var conflict *domain.ErrConflict
		if mapped := mapError(err); errors.As(mapped, &conflict) {
			return nil, &domain.ErrConflict{Message: "el correo ya está registrado"}
		}
		return nil, mapError(err)
	}
	return &domain.Identity{ID: id, Email: strings.TrimSpace(email)}, nil
}

func (p *Provider) DeleteUser(ctx context.Context, userID string) error {
	_, err := p.db.Exec(ctx, `DELETE FROM local_credentials WHERE user_id::text = $1`, userID)
	if err != nil {
		return mapError(err)
	}
	return nil
}

func (p *Provider) issue(userID, email string) (string, error) {
	now := time.Now()
	c := claims{
		Email: email,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			Subject:   userID,
			Issuer:    issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(p.ttl)),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, c).SignedString(p.secret)
}

func (p *Provider) parse(token string) (*claims, error) {
	parsed, err := jwt.ParseWithClaims(token, &claims{}, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return p.secret, nil
	}, jwt.WithIssuer(issuer))
	if err != nil {
		return nil, &domain.ErrUnauthorized{Message: "sesión del proveedor inválida o expirada"}
	}
	c, ok := parsed.Claims.(*claims)
	if !ok || !parsed.Valid {
		return nil, &domain.ErrUnauthorized{Message: "sesión del proveedor inválida"}
	}
	return c, nil
}

func mapError(err error) error {
	if postgres.IsUniqueViolation(err) {
		return &domain.ErrConflict{Message: "ya existe un registro con esos datos"}
	}
	return &domain.ErrExternalService{Service: "localauth", Err: err}
}
