package supabase

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"slices"

	"go.opentelemetry.io/otel/attribute"

	chatdomain "github.com/boddenberg/coop-transporte-bfa/internal/chat/domain"
	"github.com/boddenberg/coop-transporte-bfa/internal/domain"
)

// ============================================================
// Chat: support_messages, driver_messages
// Implements chat/port.SupportMessageStore and DriverMessageStore.
// ============================================================

// AppendSupportMessages stores msgs in one request so both turns of an
// exchange land together. PostgREST returns bulk inserts in input order.
func (c *Client) AppendSupportMessages(ctx context.Context, msgs []chatdomain.SupportMessage) ([]chatdomain.SupportMessage, error) {
	ctx, span := tracer.Start(ctx, "Supabase.AppendSupportMessages")
	defer span.End()
	span.SetAttributes(attribute.Int("supabase.rows", len(msgs)))

	const service = "supabase/support_messages"
	var out []chatdomain.SupportMessage
	err := c.exec(ctx, service, false, func(ctx context.Context) error {
		body, err := c.doPost(ctx, "support_messages", msgs, "return=representation")
		if err != nil {
			return err
		}
		if err := json.Unmarshal(body, &out); err != nil {
			return fmt.Errorf("decode support_messages: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	if len(out) != len(msgs) {
		return nil, &domain.ErrExternalService{Service: service, Err: fmt.Errorf("stored %d of %d messages", len(out), len(msgs))}
	}
	return out, nil
}

// ListSupportMessages returns the latest limit turns, oldest first.
func (c *Client) ListSupportMessages(ctx context.Context, clientID string, limit int) ([]chatdomain.SupportMessage, error) {
	rows, err := selectRows[chatdomain.SupportMessage](ctx, c, "supabase/support_messages",
		fmt.Sprintf("support_messages?client_id=%s&order=created_at.desc,id.desc&limit=%d", eq(clientID), limit))
	if err != nil {
		return nil, err
	}
	slices.Reverse(rows)
	return rows, nil
}

func (c *Client) CreateDriverMessage(ctx context.Context, m *chatdomain.DriverMessage) (*chatdomain.DriverMessage, error) {
	return insertRow[chatdomain.DriverMessage](ctx, c, "supabase/driver_messages", "driver_messages", m)
}

// ListConversation returns the latest limit messages between a and b in
// either direction, oldest first.
func (c *Client) ListConversation(ctx context.Context, a, b string, limit int) ([]chatdomain.DriverMessage, error) {
	qa, qb := url.QueryEscape(a), url.QueryEscape(b)
	filter := fmt.Sprintf("(and(sender_id.eq.%s,recipient_id.eq.%s),and(sender_id.eq.%s,recipient_id.eq.%s))", qa, qb, qb, qa)
	rows, err := selectRows[chatdomain.DriverMessage](ctx, c, "supabase/driver_messages",
		fmt.Sprintf("driver_messages?or=%s&order=created_at.desc,id.desc&limit=%d", filter, limit))
	if err != nil {
		return nil, err
	}
	slices.Reverse(rows)
	return rows, nil
}
