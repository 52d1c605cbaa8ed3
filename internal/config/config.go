package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
)

// Config holds all application configuration.
// Values are loaded from environment variables with sensible defaults.
type Config struct {
	// Server
	Port     int    `envconfig:"PORT" default:"8080"`
	LogLevel string `envconfig:"LOG_LEVEL" default:"info"`

	// HTTP client and per-call bound for backend requests
	HTTPTimeout        time.Duration `envconfig:"HTTP_TIMEOUT" default:"10s"`
	BackendCallTimeout time.Duration `envconfig:"BACKEND_CALL_TIMEOUT" default:"5s"`

	// Resilience
	MaxRetries     int           `envconfig:"MAX_RETRIES" default:"3"`
	InitialBackoff time.Duration `envconfig:"INITIAL_BACKOFF" default:"100ms"`
	MaxConcurrency int           `envconfig:"MAX_CONCURRENCY" default:"50"`

	// Observability
	OTLPEndpoint string `envconfig:"OTEL_EXPORTER_OTLP_ENDPOINT" default:""`

	// Supabase
	SupabaseURL        string `envconfig:"SUPABASE_URL" default:""`
	SupabaseAnonKey    string `envconfig:"SUPABASE_ANON_KEY" default:""`
	SupabaseServiceKey string `envconfig:"SUPABASE_SERVICE_ROLE_KEY" default:""`
	// SupabaseJWKSURL defaults to <SUPABASE_URL>/auth/v1/.well-known/jwks.json.
	SupabaseJWKSURL string `envconfig:"SUPABASE_JWKS_URL" default:""`

	// Postgres, used when ACCESS_STORE=postgres and by cmd/migrate
	DatabaseURL string `envconfig:"DATABASE_URL" default:""`

	// ACCESS_STORE selects the backend for roles, schedules and profiles:
	// "supabase" (PostgREST) or "postgres" (direct pgx pool).
	AccessStore string `envconfig:"ACCESS_STORE" default:"supabase"`
	// AUTH_PROVIDER selects the identity provider: "supabase" (GoTrue) or
	// "local" (bcrypt hashes in Postgres, for development).
	AuthProvider string `envconfig:"AUTH_PROVIDER" default:"supabase"`

	// Session tokens
	JWTSecret    string        `envconfig:"JWT_SECRET" default:"coop-default-dev-secret-change-me"`
	SessionTTL   time.Duration `envconfig:"SESSION_TTL" default:"8h"`
	SelectionTTL time.Duration `envconfig:"SELECTION_TTL" default:"720h"`

	// Access rules
	ScheduleTimezone    string `envconfig:"SCHEDULE_TIMEZONE" default:"America/Guayaquil"`
	ScheduleGatedRoles  string `envconfig:"SCHEDULE_GATED_ROLES" default:"employee"`
	RevalidateOnRestore bool   `envconfig:"REVALIDATE_ON_RESTORE" default:"false"`

	// Rewards
	PointsPerDollar float64 `envconfig:"POINTS_PER_DOLLAR" default:"1"`

	// HTTP surface
	RequestTimeout  time.Duration `envconfig:"REQUEST_TIMEOUT" default:"30s"`
	StreamHeartbeat time.Duration `envconfig:"STREAM_HEARTBEAT" default:"25s"`
	StreamBuffer    int           `envconfig:"STREAM_BUFFER" default:"16"`
	JWKSRefresh     time.Duration `envconfig:"JWKS_REFRESH" default:"1h"`

	location *time.Location
}

// Load reads configuration from environment variables into a Config struct.
func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, err
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) validate() error {
	loc, err := time.LoadLocation(c.ScheduleTimezone)
	if err != nil {
		return fmt.Errorf("invalid SCHEDULE_TIMEZONE %q: %w", c.ScheduleTimezone, err)
	}
	c.location = loc

	// domain tables always live behind PostgREST
	if c.SupabaseURL == "" || c.SupabaseServiceKey == "" {
		return fmt.Errorf("SUPABASE_URL and SUPABASE_SERVICE_ROLE_KEY are required")
	}

	c.AccessStore = strings.ToLower(c.AccessStore)
	switch c.AccessStore {
	case "supabase":
	case "postgres":
		if c.DatabaseURL == "" {
			return fmt.Errorf("ACCESS_STORE=postgres requires DATABASE_URL")
		}
	default:
		return fmt.Errorf("unknown ACCESS_STORE %q", c.AccessStore)
	}

	c.AuthProvider = strings.ToLower(c.AuthProvider)
	switch c.AuthProvider {
	case "supabase":
		if c.SupabaseURL == "" || c.SupabaseAnonKey == "" {
			return fmt.Errorf("AUTH_PROVIDER=supabase requires SUPABASE_URL and SUPABASE_ANON_KEY")
		}
	case "local":
		if c.DatabaseURL == "" {
			return fmt.Errorf("AUTH_PROVIDER=local requires DATABASE_URL")
		}
	default:
		return fmt.Errorf("unknown AUTH_PROVIDER %q", c.AuthProvider)
	}

	if c.SessionTTL <= 0 || c.SelectionTTL <= 0 {
		return fmt.Errorf("SESSION_TTL and SELECTION_TTL must be positive")
	}
	if c.PointsPerDollar < 0 {
		return fmt.Errorf("POINTS_PER_DOLLAR must not be negative")
	}
	return nil
}

// Location is the time zone schedule windows are expressed in.
func (c *Config) Location() *time.Location {
	if c.location == nil {
		return time.UTC
	}
	return c.location
}

// JWKSURL returns the key set endpoint used to verify Supabase access tokens.
func (c *Config) JWKSURL() string {
	if c.SupabaseJWKSURL != "" {
		return c.SupabaseJWKSURL
	}
	if c.SupabaseURL == "" {
		return ""
	}
	return strings.TrimRight(c.SupabaseURL, "/") + "/auth/v1/.well-known/jwks.json"
}
