package events

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pagesmith/internal/domain/entity"
)

func TestHubPublishSubscribe(t *testing.T) {
	h := NewHub()

	ch, cancel := h.Subscribe("b1")
	defer cancel()

	h.Publish(BuildEvent{BuildID: "b1", Status: entity.BuildStatusRunning, At: time.Now()})

	select {
	case ev := <-ch:
		assert.Equal(t, "b1", ev.BuildID)
		assert.Equal(t, entity.BuildStatusRunning, ev.Status)
	case <-time.After(time.Second):
		t.Fatal("no event received")
	}
}

func TestHubOtherBuildNotDelivered(t *testing.T) {
	h := NewHub()

	ch, cancel := h.Subscribe("b1")
	defer cancel()

	h.Publish(BuildEvent{BuildID: "b2", Status: entity.BuildStatusRunning})

	select {
	case ev := <-ch:
		t.Fatalf("unexpected event: %+v", ev)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestHubCancelStopsDelivery(t *testing.T) {
	h := NewHub()

	ch, cancel := h.Subscribe("b1")
	cancel()

	// Publishing after cancel must neither panic nor deliver.
	h.Publish(BuildEvent{BuildID: "b1", Status: entity.BuildStatusCompleted})

	_, ok := <-ch
	assert.False(t, ok, "channel should be closed")
}

func TestHubSlowSubscriberDropsEvents(t *testing.T) {
	h := NewHub()

	ch, cancel := h.Subscribe("b1")
	defer cancel()

	// Fill the buffer and then some; Publish must never block.
	done := make(chan struct{})
	go func() {
		for i := 0; i < 100; i++ {
			h.Publish(BuildEvent{BuildID: "b1", Status: entity.BuildStatusRunning})
		}
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Publish blocked on a slow subscriber")
	}

	require.Equal(t, 16, len(ch))
}

func TestHubMultipleSubscribers(t *testing.T) {
	h := NewHub()

	ch1, cancel1 := h.Subscribe("b1")
	defer cancel1()
	ch2, cancel2 := h.Subscribe("b1")
	defer cancel2()

	h.Publish(BuildEvent{BuildID: "b1", Status: entity.BuildStatusCompleted})

	assert.Equal(t, 1, len(ch1))
	assert.Equal(t, 1, len(ch2))
}
