package supabase_test

import (
	"context"
	"encoding/json"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	chatdomain "github.com/boddenberg/coop-transporte-bfa/internal/chat/domain"
)

func TestAppendSupportMessages_OneBulkInsert(t *testing.T) {
	calls := 0
	c, _ := newClient(t, func(w http.ResponseWriter, r *http.Request) {
		calls++
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/rest/v1/support_messages", r.URL.Path)
		assert.Equal(t, "return=representation", r.Header.Get("Prefer"))

		var in []map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&in))
		require.Len(t, in, 2)
		assert.Equal(t, "client", in[0]["sender"])
		assert.Equal(t, "bot", in[1]["sender"])

		_, _ = w.Write([]byte(`[{"id":"m1","client_id":"c-1","sender":"client","body":"hola"},` +
			`{"id":"m2","client_id":"c-1","sender":"bot","body":"¡Hola!"}]`))
	})

	out, err := c.AppendSupportMessages(context.Background(), []chatdomain.SupportMessage{
		{ClientID: "c-1", Sender: chatdomain.SenderClient, Body: "hola"},
		{ClientID: "c-1", Sender: chatdomain.SenderBot, Body: "¡Hola!"},
	})
	require.NoError(t, err)
	assert.Equal(t, 1, calls)
	assert.Equal(t, "m1", out[0].ID)
	assert.Equal(t, "m2", out[1].ID)
}

func TestListSupportMessages_OldestFirst(t *testing.T) {
	c, _ := newClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "created_at.desc,id.desc", r.URL.Query().Get("order"))
		assert.Equal(t, "20", r.URL.Query().Get("limit"))
		_, _ = w.Write([]byte(`[{"id":"m2","sender":"bot"},{"id":"m1","sender":"client"}]`))
	})

	out, err := c.ListSupportMessages(context.Background(), "c-1", 20)
	require.NoError(t, err)
	require.Len(t, out, 2)
	assert.Equal(t, "m1", out[0].ID)
}

func TestListConversation_BothDirections(t *testing.T) {
	c, _ := newClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/rest/v1/driver_messages", r.URL.Path)
		assert.Equal(t,
			"(and(sender_id.eq.p-1,recipient_id.eq.d-1),and(sender_id.eq.d-1,recipient_id.eq.p-1))",
			r.URL.Query().Get("or"))
		_, _ = w.Write([]byte(`[{"id":"b","sender_id":"d-1"},{"id":"a","sender_id":"p-1"}]`))
	})

	out, err := c.ListConversation(context.Background(), "p-1", "d-1", 50)
	require.NoError(t, err)
	require.Len(t, out, 2)
	assert.Equal(t, "a", out[0].ID)
	assert.Equal(t, "b", out[1].ID)
}
