package infra

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/boddenberg/coop-transporte-bfa/internal/chat/domain"
)

func TestHub_DeliversToBothParties(t *testing.T) {
	h := NewHub(4, zap.NewNop())
	partner := h.Subscribe("p-1")
	driver := h.Subscribe("d-1")
	other := h.Subscribe("x-1")
	defer partner.Close()
	defer driver.Close()
	defer other.Close()

	h.Publish(domain.DriverMessage{ID: "m1", SenderID: "p-1", RecipientID: "d-1", Body: "hola"})

	assert.Equal(t, "m1", (<-driver.C).ID)
	assert.Equal(t, "m1", (<-partner.C).ID)
	assert.Empty(t, other.C)
}

func TestHub_PreservesPublishOrder(t *testing.T) {
	h := NewHub(8, zap.NewNop())
	sub := h.Subscribe("d-1")
	defer sub.Close()

	for _, id := range []string{"a", "b", "c"} {
		h.Publish(domain.DriverMessage{ID: id, SenderID: "p-1", RecipientID: "d-1"})
	}
	assert.Equal(t, "a", (<-sub.C).ID)
	assert.Equal(t, "b", (<-sub.C).ID)
	assert.Equal(t, "c", (<-sub.C).ID)
}

func TestHub_DropsSlowSubscriber(t *testing.T) {
	h := NewHub(1, zap.NewNop())
	sub := h.Subscribe("d-1")

	h.Publish(domain.DriverMessage{ID: "a", SenderID: "p-1", RecipientID: "d-1"})
	h.Publish(domain.DriverMessage{ID: "b", SenderID: "p-1", RecipientID: "d-1"})

	assert.Equal(t, 0, h.Subscribers("d-1"))
	first, ok := <-sub.C
	require.True(t, ok)
	assert.Equal(t, "a", first.ID)
	_, ok = <-sub.C
	assert.False(t, ok, "channel closed after drop")

	sub.Close()
}

func TestHub_CloseIsIdempotent(t *testing.T) {
	h := NewHub(1, zap.NewNop())
	sub := h.Subscribe("d-1")
	sub.Close()
	sub.Close()
	assert.Equal(t, 0, h.Subscribers("d-1"))
}
