// Package supabase provides a client for Supabase (PostgREST + GoTrue + RPC).
// It is the data backend for every table the BFA reads or writes.
package supabase

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/sony/gobreaker"
	"go.opentelemetry.io/otel"
	"go.uber.org/zap"

	"github.com/boddenberg/coop-transporte-bfa/internal/domain"
	"github.com/boddenberg/coop-transporte-bfa/internal/infra/resilience"
)

var tracer = otel.Tracer("supabase")

// ErrorRecorder counts failed backend calls. *observability.Metrics satisfies it.
type ErrorRecorder interface {
	IncrExternalError(service string)
}

// Client wraps HTTP calls to the Supabase APIs.
type Client struct {
	httpClient     *http.Client
	baseURL        string
	apiKey         string
	serviceRoleKey string
	cb             *gobreaker.CircuitBreaker
	cfg            resilience.Config
	bulkhead       *resilience.Bulkhead
	metrics        ErrorRecorder
	logger         *zap.Logger
}

// NewClient creates a Supabase client. apiKey is the project's anon key;
// serviceRoleKey authorizes PostgREST and admin calls.
func NewClient(httpClient *http.Client, baseURL, apiKey, serviceRoleKey string, cb *gobreaker.CircuitBreaker, cfg resilience.Config, logger *zap.Logger) *Client {
	return &Client{
		httpClient:     httpClient,
		baseURL:        strings.TrimRight(baseURL, "/"),
		apiKey:         apiKey,
		serviceRoleKey: serviceRoleKey,
		cb:             cb,
		cfg:            cfg,
		bulkhead:       resilience.NewBulkhead(cfg.MaxConcurrency),
		logger:         logger,
	}
}

// WithMetrics attaches an error recorder.
func (c *Client) WithMetrics(m ErrorRecorder) *Client {
	c.metrics = m
	return c
}

// APIError is a non-2xx answer from PostgREST or GoTrue.
type APIError struct {
	Status  int
	Code    string
	Message string
}

func (e *APIError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("supabase returned status %d (%s): %s", e.Status, e.Code, e.Message)
	}
	return fmt.Sprintf("supabase returned status %d: %s", e.Status, e.Message)
}

// Transient reports whether the request may succeed if repeated.
func (e *APIError) Transient() bool {
	return e.Status >= 500 || e.Status == http.StatusTooManyRequests
}

// request describes one HTTP call. Empty bearer means the service role key.
type request struct {
	method string
	url    string
	body   any
	bearer string
	prefer string
}

// send performs the call and returns the body of a 2xx answer. Anything else
// comes back as *APIError, or as a domain error for well-known constraint
// violations.
func (c *Client) send(ctx context.Context, r request) (int, []byte, error) {
	var reader io.Reader
	if r.body != nil {
		raw, err := json.Marshal(r.body)
		if err != nil {
			return 0, nil, err
		}
		reader = bytes.NewReader(raw)
	}

	req, err := http.NewRequestWithContext(ctx, r.method, r.url, reader)
	if err != nil {
		c.logger.Error("supabase: failed to create request",
			zap.String("method", r.method),
			zap.String("url", r.url),
			zap.Error(err),
		)
		return 0, nil, err
	}

	bearer := r.bearer
	if bearer == "" {
		bearer = c.serviceRoleKey
	}
	req.Header.Set("apikey", c.apiKey)
	req.Header.Set("Authorization", "Bearer "+bearer)
	req.Header.Set("Content-Type", "application/json")
	if r.prefer != "" {
		req.Header.Set("Prefer", r.prefer)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.logger.Error("supabase: request failed",
			zap.String("method", r.method),
			zap.String("url", r.url),
			zap.Error(err),
		)
		return 0, nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return resp.StatusCode, nil, err
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		c.logger.Warn("supabase: non-2xx response",
			zap.String("method", r.method),
			zap.String("url", r.url),
			zap.Int("status", resp.StatusCode),
			zap.String("body", string(body)),
		)
		return resp.StatusCode, body, translate(parseAPIError(resp.StatusCode, body))
	}

	c.logger.Debug("supabase: request OK",
		zap.String("method", r.method),
		zap.String("url", r.url),
		zap.Int("status", resp.StatusCode),
	)
	return resp.StatusCode, body, nil
}

// parseAPIError understands both the PostgREST ({code, message}) and the
// GoTrue ({error, error_description} / {error_code, msg}) error shapes.
func parseAPIError(status int, body []byte) *APIError {
	var payload struct {
		Code             any    `json:"code"`
		ErrorCode        string `json:"error_code"`
		Message          string `json:"message"`
		Msg              string `json:"msg"`
		Error            string `json:"error"`
		ErrorDescription string `json:"error_description"`
	}
	e := &APIError{Status: status, Message: strings.TrimSpace(string(body))}
	if err := json.Unmarshal(body, &payload); err != nil {
		return e
	}
	switch v := payload.Code.(type) {
	case string:
		e.Code = v
	}
	if e.Code == "" {
		e.Code = payload.ErrorCode
	}
	if e.Code == "" {
		e.Code = payload.Error
	}
	for _, m := range []string{payload.Message, payload.Msg, payload.ErrorDescription} {
		if m != "" {
			e.Message = m
			break
		}
	}
	return e
}

// translate maps Postgres constraint codes to domain errors.
func translate(e *APIError) error {
	switch {
	case e.Code == "23505" || e.Status == http.StatusConflict:
		return &domain.ErrConflict{Message: "ya existe un registro con esos datos"}
	case e.Code == "23503":
		return &domain.ErrValidation{Field: "reference", Message: "el registro referenciado no existe"}
	case e.Code == "22P02" || e.Code == "23514":
		return &domain.ErrValidation{Field: "value", Message: e.Message}
	}
	return e
}

// exec runs fn through the bulkhead and the circuit breaker. Reads
// (idempotent) are retried with backoff; writes get exactly one attempt. Every
// attempt is bounded by the configured call timeout.
func (c *Client) exec(ctx context.Context, service string, idempotent bool, fn func(ctx context.Context) error) error {
	if err := c.bulkhead.Acquire(ctx); err != nil {
		return c.classify(service, err)
	}
	defer c.bulkhead.Release()

	cfg := c.cfg
	if !idempotent {
		cfg = cfg.NoRetry()
	}
	_, err := c.cb.Execute(func() (any, error) {
		return nil, resilience.RetryWithBackoff(ctx, cfg, func() error {
			return resilience.WithTimeout(ctx, cfg.CallTimeout, service, fn)
		})
	})
	if err == nil {
		return nil
	}
	return c.classify(service, err)
}

// classify leaves domain outcomes untouched and wraps backend failures.
func (c *Client) classify(service string, err error) error {
	err = resilience.BreakerError(service, err)

	var (
		open    *domain.ErrCircuitOpen
		timeout *domain.ErrTimeout
	)
	switch {
	case errors.As(err, &open), errors.As(err, &timeout):
		c.recordError(service)
		return err
	case errors.Is(err, context.DeadlineExceeded):
		c.recordError(service)
		return &domain.ErrTimeout{Operation: service}
	case errors.Is(err, context.Canceled):
		return err
	}

	var apiErr *APIError
	if !errors.As(err, &apiErr) && !resilience.Retryable(err) {
		return err
	}
	c.recordError(service)
	return &domain.ErrExternalService{Service: service, Err: err}
}

func (c *Client) recordError(service string) {
	if c.metrics != nil {
		c.metrics.IncrExternalError(service)
	}
}

// Ping checks that PostgREST answers. Used by /healthz.
func (c *Client) Ping(ctx context.Context) error {
	_, _, err := c.send(ctx, request{method: http.MethodGet, url: c.baseURL + "/rest/v1/"})
	return err
}
