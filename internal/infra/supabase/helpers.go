package supabase

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"go.opentelemetry.io/otel/attribute"

	"github.com/boddenberg/coop-transporte-bfa/internal/domain"
)

// ============================================================
// PostgREST helpers
// ============================================================

func (c *Client) restURL(path string) string {
	return fmt.Sprintf("%s/rest/v1/%s", c.baseURL, path)
}

// eq builds a PostgREST equality filter value.
func eq(v string) string {
	return "eq." + url.QueryEscape(v)
}

// in builds a PostgREST list filter value: in.(a,b,c).
func in(values []string) string {
	quoted := make([]string, len(values))
	for i, v := range values {
		quoted[i] = `"` + url.QueryEscape(v) + `"`
	}
	return "in.(" + strings.Join(quoted, ",") + ")"
}

// doRequest executes a GET against PostgREST. 404 and 204 yield a nil body.
func (c *Client) doRequest(ctx context.Context, method, path string) ([]byte, error) {
	status, body, err := c.send(ctx, request{method: method, url: c.restURL(path)})
	if status == http.StatusNotFound || status == http.StatusNoContent {
		return nil, nil
	}
	return body, err
}

func (c *Client) doPost(ctx context.Context, table string, data any, prefer string) ([]byte, error) {
	_, body, err := c.send(ctx, request{method: http.MethodPost, url: c.restURL(table), body: data, prefer: prefer})
	return body, err
}

func (c *Client) doPatch(ctx context.Context, path string, data any) ([]byte, error) {
	_, body, err := c.send(ctx, request{method: http.MethodPatch, url: c.restURL(path), body: data, prefer: "return=representation"})
	return body, err
}

func (c *Client) doDelete(ctx context.Context, path string) error {
	_, _, err := c.send(ctx, request{method: http.MethodDelete, url: c.restURL(path)})
	return err
}

// selectRows runs a filtered GET and decodes every row.
func selectRows[T any](ctx context.Context, c *Client, service, path string) ([]T, error) {
	ctx, span := tracer.Start(ctx, "Supabase.Select")
	defer span.End()
	span.SetAttributes(attribute.String("supabase.service", service))

	var rows []T
	err := c.exec(ctx, service, true, func(ctx context.Context) error {
		body, err := c.doRequest(ctx, http.MethodGet, path)
		if err != nil {
			return err
		}
		rows = []T{}
		if len(body) == 0 {
			return nil
		}
		if err := json.Unmarshal(body, &rows); err != nil {
			return fmt.Errorf("decode %s: %w", service, err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return rows, nil
}

// selectOne returns the first matching row or *domain.ErrNotFound.
func selectOne[T any](ctx context.Context, c *Client, service, path, resource, id string) (*T, error) {
	rows, err := selectRows[T](ctx, c, service, path)
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, &domain.ErrNotFound{Resource: resource, ID: id}
	}
	return &rows[0], nil
}

// insertRow inserts one row and returns the stored representation.
func insertRow[T any](ctx context.Context, c *Client, service, table string, row any) (*T, error) {
	ctx, span := tracer.Start(ctx, "Supabase.Insert")
	defer span.End()
	span.SetAttributes(attribute.String("supabase.table", table))

	var out []T
	err := c.exec(ctx, service, false, func(ctx context.Context) error {
		body, err := c.doPost(ctx, table, row, "return=representation")
		if err != nil {
			return err
		}
		if err := json.Unmarshal(body, &out); err != nil {
			return fmt.Errorf("decode %s: %w", table, err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	if len(out) == 0 {
		return nil, &domain.ErrExternalService{Service: service, Err: fmt.Errorf("insert into %s returned no rows", table)}
	}
	return &out[0], nil
}

// insertRows inserts many rows. With ignoreDuplicates, rows hitting a unique
// constraint are skipped instead of failing the batch.
func insertRows(ctx context.Context, c *Client, service, table string, rows any, ignoreDuplicates bool) error {
	ctx, span := tracer.Start(ctx, "Supabase.InsertMany")
	defer span.End()
	span.SetAttributes(attribute.String("supabase.table", table))

	prefer := "return=minimal"
	if ignoreDuplicates {
		prefer = "resolution=ignore-duplicates,return=minimal"
	}
	return c.exec(ctx, service, false, func(ctx context.Context) error {
		_, err := c.doPost(ctx, table, rows, prefer)
		return err
	})
}

// updateRows patches the rows matched by path. With a resource name, an
// update that matched nothing is reported as *domain.ErrNotFound.
func updateRows(ctx context.Context, c *Client, service, path string, data any, resource, id string) error {
	ctx, span := tracer.Start(ctx, "Supabase.Update")
	defer span.End()
	span.SetAttributes(attribute.String("supabase.service", service))

	return c.exec(ctx, service, false, func(ctx context.Context) error {
		body, err := c.doPatch(ctx, path, data)
		if err != nil {
			return err
		}
		if resource != "" && (len(body) == 0 || string(body) == "[]") {
			return &domain.ErrNotFound{Resource: resource, ID: id}
		}
		return nil
	})
}

// deleteRows deletes the rows matched by path. Deletes are idempotent.
func deleteRows(ctx context.Context, c *Client, service, path string) error {
	ctx, span := tracer.Start(ctx, "Supabase.Delete")
	defer span.End()
	span.SetAttributes(attribute.String("supabase.service", service))

	return c.exec(ctx, service, true, func(ctx context.Context) error {
		return c.doDelete(ctx, path)
	})
}

// callRPC invokes a Postgres function through /rest/v1/rpc/<fn>.
func callRPC[T any](ctx context.Context, c *Client, fn string, args any) (T, error) {
	ctx, span := tracer.Start(ctx, "Supabase.RPC")
	defer span.End()
	span.SetAttributes(attribute.String("supabase.rpc", fn))

	var out T
	service := "supabase/rpc/" + fn
	err := c.exec(ctx, service, true, func(ctx context.Context) error {
		_, body, err := c.send(ctx, request{method: http.MethodPost, url: c.restURL("rpc/" + fn), body: args})
		if err != nil {
			return err
		}
		if err := json.Unmarshal(body, &out); err != nil {
			return fmt.Errorf("decode rpc %s: %w", fn, err)
		}
		return nil
	})
	return out, err
}
