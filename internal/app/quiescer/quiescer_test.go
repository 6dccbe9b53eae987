package quiescer

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"jigctl/internal/app/bus"
	"jigctl/internal/app/unit"
	"jigctl/internal/config"
	"jigctl/internal/config/logger"
)

func newTestBus(t *testing.T) bus.EventBus {
	t.Helper()

	cfg := config.DefaultConfig()
	cfg.Bus.SubscriberBuffer = 32

	return bus.New(cfg, logger.NoOp())
}

func Test_Quiescer_FiresOnceAfterBurst(t *testing.T) {
	b := newTestBus(t)
	defer b.Close()

	cfg := config.DefaultConfig()
	cfg.Timeouts.Quiesce = 30 * time.Millisecond

	q := New(cfg, b, logger.NoOp())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go q.Run(ctx)

	sub := b.Subscribe(ctx)

	name := unit.Name{ID: "a", Kind: unit.KindJig}
	for i := 0; i < 5; i++ {
		b.Publish(bus.StatusEvent(name, bus.Added("a.jig")))
		time.Sleep(5 * time.Millisecond)
	}

	var rescans int32

	done := make(chan struct{})

	go func() {
		deadline := time.After(500 * time.Millisecond)

		for {
			select {
			case ev, ok := <-sub:
				if !ok {
					close(done)
					return
				}

				if ev.Kind == bus.EventRescanRequest {
					atomic.AddInt32(&rescans, 1)
				}
			case <-deadline:
				close(done)
				return
			}
		}
	}()

	<-done

	assert.Equal(t, int32(1), atomic.LoadInt32(&rescans))
}

func Test_Quiescer_NoPendingEvents_NoBroadcast(t *testing.T) {
	b := newTestBus(t)
	defer b.Close()

	cfg := config.DefaultConfig()
	cfg.Timeouts.Quiesce = 10 * time.Millisecond

	q := New(cfg, b, logger.NoOp())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go q.Run(ctx)

	sub := b.Subscribe(ctx)

	select {
	case ev := <-sub:
		t.Fatalf("unexpected event with no input: %+v", ev)
	case <-time.After(100 * time.Millisecond):
	}
}

func Test_Quiescer_IgnoresRescanEvents(t *testing.T) {
	b := newTestBus(t)
	defer b.Close()

	cfg := config.DefaultConfig()
	cfg.Timeouts.Quiesce = 20 * time.Millisecond

	q := New(cfg, b, logger.NoOp())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go q.Run(ctx)

	sub := b.Subscribe(ctx)

	// RescanStart/RescanFinish must not themselves reschedule the timer.
	b.Publish(bus.RescanStartEvent())
	b.Publish(bus.RescanFinishEvent())

	select {
	case ev := <-sub:
		require.Equal(t, bus.EventRescanStart, ev.Kind)
	case <-time.After(time.Second):
		t.Fatal("expected to observe the published RescanStart echo")
	}

	select {
	case ev := <-sub:
		require.Equal(t, bus.EventRescanFinish, ev.Kind)
	case <-time.After(time.Second):
		t.Fatal("expected to observe the published RescanFinish echo")
	}

	select {
	case ev := <-sub:
		t.Fatalf("unexpected extra event: %+v", ev)
	case <-time.After(100 * time.Millisecond):
	}
}
