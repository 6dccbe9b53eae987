// Package bus implements the single in-process EventBus every other
// component subscribes to or publishes on (§4.1).
package bus

import (
	"context"
	"sync"

	"jigctl/internal/config"
	"jigctl/internal/config/logger"
)

// EventBus is the publish/subscribe hub every unit-lifecycle component
// talks through.
type EventBus interface {
	// Subscribe returns a fresh receive-only endpoint. The endpoint is
	// torn down automatically when ctx is done.
	Subscribe(ctx context.Context) <-chan Event
	// Publish delivers ev to every live endpoint. An endpoint whose
	// buffer is full is dropped before the next broadcast (§4.1: "If
	// delivery to an endpoint fails... that endpoint is removed
	// atomically before the next broadcast completes").
	Publish(ev Event)
	Close()
}

type eventBus struct {
	bufferSize  int
	subscribers []chan Event
	mu          sync.RWMutex
	closed      bool
	log         logger.Logger
}

// New creates an EventBus sized by cfg's subscriber buffer depth.
func New(cfg *config.Config, log logger.Logger) EventBus {
	size := cfg.Bus.SubscriberBuffer
	if size <= 0 {
		size = 64
	}

	return &eventBus{
		bufferSize: size,
		log:        log,
	}
}

func (b *eventBus) Subscribe(ctx context.Context) <-chan Event {
	b.mu.Lock()
	defer b.mu.Unlock()

	ch := make(chan Event, b.bufferSize)

	if b.closed {
		close(ch)
		return ch
	}

	b.subscribers = append(b.subscribers, ch)

	go func() {
		<-ctx.Done()
		b.unsubscribe(ch)
	}()

	return ch
}

func (b *eventBus) Publish(ev Event) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return
	}

	if b.log != nil {
		b.log.Debug().Msg(describe(ev))
	}

	live := b.subscribers[:0]

	for _, ch := range b.subscribers {
		select {
		case ch <- ev:
			live = append(live, ch)
		default:
			close(ch)
		}
	}

	b.subscribers = live
}

func (b *eventBus) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return
	}

	b.closed = true

	for _, ch := range b.subscribers {
		close(ch)
	}

	b.subscribers = nil
}

func (b *eventBus) unsubscribe(ch chan Event) {
	b.mu.Lock()
	defer b.mu.Unlock()

	for i, sub := range b.subscribers {
		if sub == ch {
			b.subscribers = append(b.subscribers[:i], b.subscribers[i+1:]...)
			close(ch)

			break
		}
	}
}

func describe(ev Event) string {
	switch ev.Kind {
	case EventStatus:
		return "status " + ev.Name.String() + " -> " + ev.Status.Kind.String()
	case EventCategory:
		return "category " + ev.Category.String()
	case EventRescanRequest:
		return "rescan requested"
	case EventRescanStart:
		return "rescan started"
	case EventRescanFinish:
		return "rescan finished"
	case EventLog:
		return "log " + ev.Log.Kind
	case EventManagerRequest:
		return "manager request"
	case EventShutdown:
		return "shutdown"
	default:
		return "event"
	}
}

// NoOp returns a bus that drops everything published to it.
func NoOp() EventBus {
	return &noOpBus{}
}

type noOpBus struct{}

func (n *noOpBus) Subscribe(ctx context.Context) <-chan Event {
	ch := make(chan Event)

	go func() {
		<-ctx.Done()
		close(ch)
	}()

	return ch
}

func (n *noOpBus) Publish(ev Event) {}
func (n *noOpBus) Close()           {}
