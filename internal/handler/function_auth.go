package handler

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/MicahParks/jwkset"
	"github.com/MicahParks/keyfunc/v3"
	"github.com/golang-jwt/jwt/v5"
	"go.uber.org/zap"
)

// supabaseClaims are the parts of a Supabase access token the functions use.
type supabaseClaims struct {
	Email string `json:"email"`
	Role  string `json:"role"`
	jwt.RegisteredClaims
}

type callerKey struct{}

// FunctionAuth verifies Supabase access tokens against the project's JWKS,
// the way the hosted functions authenticate their callers.
type FunctionAuth struct {
	jwks   keyfunc.Keyfunc
	leeway time.Duration
	logger *zap.Logger
}

// NewFunctionAuth loads the key set from jwksURL and keeps it refreshed in
// the background. Startup does not fail when the endpoint is unreachable.
func NewFunctionAuth(jwksURL string, refresh time.Duration, logger *zap.Logger) (*FunctionAuth, error) {
	storage, err := jwkset.NewStorageFromHTTP(jwksURL, jwkset.HTTPClientStorageOptions{
		NoErrorReturnFirstHTTPReq: true,
		RefreshInterval:           refresh,
		RefreshErrorHandler: func(_ context.Context, err error) {
			logger.Error("jwks refresh failed", zap.String("url", jwksURL), zap.Error(err))
		},
	})
	if err != nil {
		return nil, fmt.Errorf("create jwks storage: %w", err)
	}
	k, err := keyfunc.New(keyfunc.Options{Storage: storage})
	if err != nil {
		return nil, fmt.Errorf("create keyfunc: %w", err)
	}
	return NewFunctionAuthWithKeyfunc(k, logger), nil
}

// NewFunctionAuthWithKeyfunc builds the middleware from a ready key function.
func NewFunctionAuthWithKeyfunc(kf keyfunc.Keyfunc, logger *zap.Logger) *FunctionAuth {
	return &FunctionAuth{jwks: kf, leeway: 30 * time.Second, logger: logger}
}

// Middleware puts the verified caller id in the request context.
func (a *FunctionAuth) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token, ok := bearerToken(r)
		if !ok {
			writeError(w, http.StatusUnauthorized, "Falta el encabezado Authorization")
			return
		}

		claims := &supabaseClaims{}
		parsed, err := jwt.ParseWithClaims(token, claims, a.jwks.KeyfuncCtx(r.Context()),
			jwt.WithValidMethods([]string{"RS256", "ES256"}),
			jwt.WithExpirationRequired(),
			jwt.WithLeeway(a.leeway),
		)
		if err != nil || !parsed.Valid {
			a.logger.Debug("function token rejected", zap.String("remote_addr", r.RemoteAddr), zap.Error(err))
			writeError(w, http.StatusUnauthorized, "Token inválido o expirado")
			return
		}
		if claims.Subject == "" {
			writeError(w, http.StatusUnauthorized, "El token no identifica al usuario")
			return
		}
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), callerKey{}, claims.Subject)))
	})
}

// callerFromContext returns the user id verified by FunctionAuth.
func callerFromContext(ctx context.Context) string {
	v, _ := ctx.Value(callerKey{}).(string)
	return v
}
