package service_test

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/boddenberg/coop-transporte-bfa/internal/chat/domain"
	"github.com/boddenberg/coop-transporte-bfa/internal/chat/service"
	maindomain "github.com/boddenberg/coop-transporte-bfa/internal/domain"
)

// ============================================================
// Mocks
// ============================================================

type mockSupportStore struct {
	mu   sync.Mutex
	rows []domain.SupportMessage
	err  error
}

func (m *mockSupportStore) AppendSupportMessages(_ context.Context, msgs []domain.SupportMessage) ([]domain.SupportMessage, error) {
	if m.err != nil {
		return nil, m.err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]domain.SupportMessage, len(msgs))
	for i, msg := range msgs {
		msg.ID = fmt.Sprintf("m-%d", len(m.rows)+1)
		m.rows = append(m.rows, msg)
		out[i] = msg
	}
	return out, nil
}

func (m *mockSupportStore) ListSupportMessages(_ context.Context, clientID string, limit int) ([]domain.SupportMessage, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []domain.SupportMessage
	for _, r := range m.rows {
		if r.ClientID == clientID {
			out = append(out, r)
		}
	}
	if len(out) > limit {
		out = out[len(out)-limit:]
	}
	return out, nil
}

type mockDirectory struct {
	routes []maindomain.Route
	freqs  map[string][]maindomain.Frequency
	err    error
}

func (m *mockDirectory) ListRoutes(context.Context) ([]maindomain.Route, error) {
	return m.routes, m.err
}

func (m *mockDirectory) ListFrequencies(_ context.Context, routeID string) ([]maindomain.Frequency, error) {
	return m.freqs[routeID], m.err
}

type mockLedger struct {
	entries map[string][]maindomain.PointsEntry
}

func (m *mockLedger) ListPointsEntries(_ context.Context, clientID string) ([]maindomain.PointsEntry, error) {
	return m.entries[clientID], nil
}

func newBot(store *mockSupportStore, dir *mockDirectory, ledger *mockLedger) *service.ChatService {
	return service.NewChatService(store, []service.ChatStrategy{
		service.NewGreetingStrategy(),
		service.NewIncidentStrategy(),
		service.NewRouteStrategy(dir),
		service.NewScheduleStrategy(dir),
		service.NewPointsStrategy(ledger),
	}, zap.NewNop())
}

func sampleDirectory() *mockDirectory {
	return &mockDirectory{
		routes: []maindomain.Route{
			{ID: "r1", Code: "R-01", Origin: "Quito", Destination: "Ambato"},
			{ID: "r2", Code: "R-02", Origin: "Quito", Destination: "Latacunga"},
		},
		freqs: map[string][]maindomain.Frequency{
			"r1": {
				{RouteID: "r1", DayOfWeek: 1, Departure: maindomain.MustTimeOfDay("06:30")},
				{RouteID: "r1", DayOfWeek: 1, Departure: maindomain.MustTimeOfDay("14:00")},
			},
		},
	}
}

// ============================================================
// DetectIntent
// ============================================================

func TestDetectIntent(t *testing.T) {
	cases := []struct {
		msg  string
		want domain.Intent
	}{
		{"Hola, buenas tardes", domain.IntentGreeting},
		{"¿A qué hora sale el bus a Ambato?", domain.IntentSchedule},
		{"Horarios de salida", domain.IntentSchedule},
		{"¿Qué rutas tienen?", domain.IntentRoute},
		{"Quiero viajar a Latacunga", domain.IntentRoute},
		{"¿Cuántos puntos tengo?", domain.IntentPoints},
		{"Quiero canjear un premio", domain.IntentPoints},
		{"Tuve un problema con el conductor", domain.IntentIncident},
		{"Hola, quiero poner una queja", domain.IntentIncident},
		{"ahora mismo", domain.IntentGeneral},
		{"gracias", domain.IntentGeneral},
		{"ACCIDENTE en la vía", domain.IntentIncident},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, service.DetectIntent(tc.msg), tc.msg)
	}
}

// ============================================================
// ProcessMessage
// ============================================================

func TestProcessMessage_StoresBothTurns(t *testing.T) {
	store := &mockSupportStore{}
	bot := newBot(store, sampleDirectory(), &mockLedger{})

	resp, err := bot.ProcessMessage(context.Background(), "c-1", &domain.ChatRequest{Message: "  hola  "})
	require.NoError(t, err)

	assert.Equal(t, domain.IntentGreeting, resp.Intent)
	assert.Contains(t, resp.Answer, "asistente virtual")
	require.Len(t, resp.Turns, 2)
	assert.Equal(t, domain.SenderClient, resp.Turns[0].Sender)
	assert.Equal(t, "hola", resp.Turns[0].Body)
	assert.Equal(t, domain.SenderBot, resp.Turns[1].Sender)
	assert.Equal(t, resp.Answer, resp.Turns[1].Body)
}

func TestProcessMessage_EmptyIsValidationError(t *testing.T) {
	store := &mockSupportStore{}
	bot := newBot(store, sampleDirectory(), &mockLedger{})

	_, err := bot.ProcessMessage(context.Background(), "c-1", &domain.ChatRequest{Message: "   "})
	var ve *maindomain.ErrValidation
	require.ErrorAs(t, err, &ve)
	assert.Empty(t, store.rows)
}

func TestProcessMessage_ScheduleForNamedDestination(t *testing.T) {
	bot := newBot(&mockSupportStore{}, sampleDirectory(), &mockLedger{})

	resp, err := bot.ProcessMessage(context.Background(), "c-1", &domain.ChatRequest{Message: "¿A qué hora sale a Ambato?"})
	require.NoError(t, err)
	assert.Contains(t, resp.Answer, "Quito → Ambato")
	assert.Contains(t, resp.Answer, "06:30")
	assert.Contains(t, resp.Answer, "14:00")
	assert.NotContains(t, resp.Answer, "Latacunga")
}

func TestProcessMessage_ScheduleWithoutDestinationAsks(t *testing.T) {
	bot := newBot(&mockSupportStore{}, sampleDirectory(), &mockLedger{})

	resp, err := bot.ProcessMessage(context.Background(), "c-1", &domain.ChatRequest{Message: "horarios"})
	require.NoError(t, err)
	assert.Contains(t, resp.Answer, "¿De qué ruta")
}

func TestProcessMessage_Routes(t *testing.T) {
	bot := newBot(&mockSupportStore{}, sampleDirectory(), &mockLedger{})

	resp, err := bot.ProcessMessage(context.Background(), "c-1", &domain.ChatRequest{Message: "¿qué rutas hay?"})
	require.NoError(t, err)
	assert.Contains(t, resp.Answer, "R-01")
	assert.Contains(t, resp.Answer, "R-02")
}

func TestProcessMessage_PointsBalance(t *testing.T) {
	ledger := &mockLedger{entries: map[string][]maindomain.PointsEntry{
		"c-1": {{Points: 30}, {Points: 15}, {Points: -20}},
	}}
	bot := newBot(&mockSupportStore{}, sampleDirectory(), ledger)

	resp, err := bot.ProcessMessage(context.Background(), "c-1", &domain.ChatRequest{Message: "mis puntos"})
	require.NoError(t, err)
	assert.Contains(t, resp.Answer, "25 puntos")

	resp, err = bot.ProcessMessage(context.Background(), "c-2", &domain.ChatRequest{Message: "mis puntos"})
	require.NoError(t, err)
	assert.Contains(t, resp.Answer, "Aún no tienes puntos")
}

func TestProcessMessage_BackendFailureFallsBack(t *testing.T) {
	dir := &mockDirectory{err: errors.New("boom")}
	bot := newBot(&mockSupportStore{}, dir, &mockLedger{})

	resp, err := bot.ProcessMessage(context.Background(), "c-1", &domain.ChatRequest{Message: "rutas"})
	require.NoError(t, err)
	assert.Contains(t, resp.Answer, "no puedo consultar")
}

func TestProcessMessage_UnknownIntentGetsGeneralAnswer(t *testing.T) {
	bot := newBot(&mockSupportStore{}, sampleDirectory(), &mockLedger{})

	resp, err := bot.ProcessMessage(context.Background(), "c-1", &domain.ChatRequest{Message: "gracias"})
	require.NoError(t, err)
	assert.Equal(t, domain.IntentGeneral, resp.Intent)
	assert.Contains(t, resp.Answer, "No estoy seguro")
}

func TestProcessMessage_StoreFailureIsReturned(t *testing.T) {
	store := &mockSupportStore{err: &maindomain.ErrExternalService{Service: "supabase", Err: errors.New("down")}}
	bot := newBot(store, sampleDirectory(), &mockLedger{})

	_, err := bot.ProcessMessage(context.Background(), "c-1", &domain.ChatRequest{Message: "hola"})
	var ext *maindomain.ErrExternalService
	assert.ErrorAs(t, err, &ext)
}

func TestTranscript_OnlyOwnMessages(t *testing.T) {
	store := &mockSupportStore{}
	bot := newBot(store, sampleDirectory(), &mockLedger{})
	ctx := context.Background()

	_, _ = bot.ProcessMessage(ctx, "c-1", &domain.ChatRequest{Message: "hola"})
	_, _ = bot.ProcessMessage(ctx, "c-2", &domain.ChatRequest{Message: "hola"})

	msgs, err := bot.Transcript(ctx, "c-1", 0)
	require.NoError(t, err)
	assert.Len(t, msgs, 2)

	empty, err := bot.Transcript(ctx, "c-3", 10)
	require.NoError(t, err)
	assert.NotNil(t, empty)
	assert.Empty(t, empty)
}
