package service

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pydea-rs/omen-creator-panel/internal/domain"
)

func TestLocalBus_DeliversAndClosesOnCancel(t *testing.T) {
	bus := NewLocalBus(nil)
	ctx, cancel := context.WithCancel(context.Background())

	ch, err := bus.Subscribe(ctx, domain.SubmissionChannel)
	require.NoError(t, err)
	require.NoError(t, bus.Publish(context.Background(), "other", []byte("x")))
	require.NoError(t, bus.Publish(context.Background(), domain.SubmissionChannel, []byte("hello")))

	select {
	case msg := <-ch:
		assert.Equal(t, "hello", string(msg))
	case <-time.After(time.Second):
		t.Fatal("no message")
	}

	cancel()
	require.Eventually(t, func() bool {
		select {
		case _, ok := <-ch:
			return !ok
		default:
			return false
		}
	}, time.Second, time.Millisecond)
}

func TestStatePublisher_PublishesSignal(t *testing.T) {
	bus := NewLocalBus(nil)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	ch, err := bus.Subscribe(ctx, domain.SubmissionChannel)
	require.NoError(t, err)

	p := NewStatePublisher(bus, func() string { return "https://staging.omenium.app/api" }, nil)
	p.Publish(domain.SubmissionState{Phase: domain.PhaseCreating, Message: "Creating the market...", Cycle: 4})

	var sig domain.StateSignal
	select {
	case msg := <-ch:
		require.NoError(t, json.Unmarshal(msg, &sig))
	case <-time.After(time.Second):
		t.Fatal("no signal")
	}
	assert.Equal(t, "creating", sig.Phase)
	assert.Equal(t, uint64(4), sig.Cycle)
	assert.Equal(t, "https://staging.omenium.app/api", sig.Endpoint)
}
