package events

import (
	"testing"

	"github.com/dom/blueming-client/internal/logger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBus_TopicFiltering(t *testing.T) {
	bus := NewBus(logger.Discard())

	profiles, cancelProfiles := bus.Subscribe(4, TopicProfileUpdated)
	defer cancelProfiles()
	all, cancelAll := bus.Subscribe(4)
	defer cancelAll()

	bus.Notice("Login to continue")
	bus.Publish(TopicProfileUpdated, "profile")

	require.Len(t, all, 2)
	assert.Equal(t, TopicNotice, (<-all).Topic)
	assert.Equal(t, TopicProfileUpdated, (<-all).Topic)

	require.Len(t, profiles, 1)
	evt := <-profiles
	assert.Equal(t, "profile", evt.Payload)
}

func TestBus_FullBufferDrops(t *testing.T) {
	bus := NewBus(logger.Discard())

	ch, cancel := bus.Subscribe(1)
	defer cancel()

	bus.Notice("first")
	bus.Notice("second")

	require.Len(t, ch, 1)
	assert.Equal(t, Notice{Message: "first"}, (<-ch).Payload)
}

func TestBus_CancelClosesChannel(t *testing.T) {
	bus := NewBus(logger.Discard())

	ch, cancel := bus.Subscribe(1)
	cancel()
	cancel()

	_, ok := <-ch
	assert.False(t, ok)

	// Publishing after cancel must not panic.
	bus.Redirect("login", "")
}

func TestBus_Close(t *testing.T) {
	bus := NewBus(logger.Discard())
	ch, cancel := bus.Subscribe(1)
	defer cancel()

	bus.Close()
	_, ok := <-ch
	assert.False(t, ok)

	late, _ := bus.Subscribe(1)
	_, ok = <-late
	assert.False(t, ok)
}
