package bus

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"jigctl/internal/app/unit"
	"jigctl/internal/config"
	"jigctl/internal/config/logger"
)

func newTestBus(t *testing.T, buffer int) EventBus {
	t.Helper()

	cfg := config.DefaultConfig()
	cfg.Bus.SubscriberBuffer = buffer

	return New(cfg, logger.NoOp())
}

func Test_Publish_DeliversToAllSubscribers(t *testing.T) {
	b := newTestBus(t, 4)
	defer b.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	chA := b.Subscribe(ctx)
	chB := b.Subscribe(ctx)

	name := unit.Name{ID: "linux", Kind: unit.KindJig}
	b.Publish(StatusEvent(name, Selected()))

	select {
	case ev := <-chA:
		assert.Equal(t, StatusSelected, ev.Status.Kind)
	case <-time.After(time.Second):
		t.Fatal("subscriber A never received event")
	}

	select {
	case ev := <-chB:
		assert.Equal(t, StatusSelected, ev.Status.Kind)
	case <-time.After(time.Second):
		t.Fatal("subscriber B never received event")
	}
}

func Test_Subscribe_TornDownOnContextCancel(t *testing.T) {
	b := newTestBus(t, 1)
	defer b.Close()

	ctx, cancel := context.WithCancel(context.Background())
	ch := b.Subscribe(ctx)

	cancel()

	select {
	case _, ok := <-ch:
		assert.False(t, ok)
	case <-time.After(time.Second):
		t.Fatal("subscriber channel was not closed after cancel")
	}
}

func Test_Publish_EvictsFullSubscriberBeforeNextBroadcast(t *testing.T) {
	impl := newTestBus(t, 1).(*eventBus)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	full := impl.Subscribe(ctx)
	healthy := impl.Subscribe(ctx)

	// Fill both subscribers' buffers, then drain only the healthy one.
	impl.Publish(RescanStartEvent())

	require.Len(t, impl.subscribers, 2)

	<-healthy

	// This publish finds `full` still blocked; it must be evicted so the
	// subscriber count drops by exactly one.
	impl.Publish(RescanFinishEvent())

	assert.Len(t, impl.subscribers, 1)

	<-full // drain the one event it did receive

	_, ok := <-healthy
	assert.True(t, ok)
}

func Test_Close_ClosesAllSubscribers(t *testing.T) {
	b := newTestBus(t, 1)

	ctx := context.Background()
	ch := b.Subscribe(ctx)

	b.Close()

	_, ok := <-ch
	assert.False(t, ok)

	// Publish after Close is a no-op, not a panic.
	assert.NotPanics(t, func() {
		b.Publish(ShutdownEvent())
	})
}

func Test_NoOp_DropsEverything(t *testing.T) {
	b := NoOp()

	ctx, cancel := context.WithCancel(context.Background())
	ch := b.Subscribe(ctx)

	b.Publish(ShutdownEvent())

	select {
	case <-ch:
		t.Fatal("no-op bus should never deliver")
	case <-time.After(50 * time.Millisecond):
	}

	cancel()

	select {
	case _, ok := <-ch:
		assert.False(t, ok)
	case <-time.After(time.Second):
		t.Fatal("no-op subscriber was not closed")
	}
}
