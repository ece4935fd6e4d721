// Package eventbus fans engine lifecycle events out to any number of
// subscribers without blocking the emitter.
//
// Grounded on original_source/exchange/libs/event_emitter.py (a
// fork-per-subscriber async stream) and on the teacher's worker-pool use of
// gopkg.in/tomb.v2 to supervise long-lived goroutines
// (internal/worker.go, internal/net/server.go). Each subscription gets its
// own bounded channel and a dedicated dispatch goroutine; a full channel
// drops the oldest pending event before enqueueing the new one.
package eventbus

import (
	"sync"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	tomb "gopkg.in/tomb.v2"

	"github.com/tradecore/exchange/internal/common"
)

// Kind identifies the shape of an event's payload.
type Kind int

const (
	OrderCreated Kind = iota
	OrderCancelled
	OrderClosed
	OrderBookUpdated
)

func (k Kind) String() string {
	switch k {
	case OrderCreated:
		return "order_created"
	case OrderCancelled:
		return "order_cancelled"
	case OrderClosed:
		return "order_closed"
	case OrderBookUpdated:
		return "order_book_updated"
	default:
		return "unknown"
	}
}

// Event is the payload delivered to subscribers. Only the fields relevant
// to Kind are populated.
type Event struct {
	Kind       Kind
	OrderID    uint64
	Instrument common.Instrument
	Side       common.Side
	Price      float64
}

// defaultQueueSize bounds each subscriber's pending-event channel.
const defaultQueueSize = 256

// Subscription is a live registration returned by Subscribe. Stop ends
// delivery and releases the subscription's goroutine.
type Subscription struct {
	ID   uuid.UUID
	kind Kind

	mu     sync.Mutex
	queue  chan Event
	stopCh chan struct{}
	once   sync.Once
}

// Stop ends delivery to this subscription. Pending queued events may be
// dropped.
func (s *Subscription) Stop() {
	s.once.Do(func() {
		close(s.stopCh)
	})
}

// enqueue delivers ev to the subscription's queue without blocking the
// emitter: if the queue is full, the oldest pending event is dropped to
// make room.
func (s *Subscription) enqueue(ev Event) {
	s.mu.Lock()
	defer s.mu.Unlock()

	select {
	case s.queue <- ev:
		return
	default:
	}

	select {
	case <-s.queue:
	default:
	}

	select {
	case s.queue <- ev:
	default:
	}
}

// Bus is the fan-out event bus. The zero value is not usable; construct
// with New.
type Bus struct {
	t *tomb.Tomb

	mu   sync.RWMutex
	subs map[uuid.UUID]*Subscription
}

// New constructs a ready-to-use Bus supervised by its own tomb.
func New() *Bus {
	return &Bus{
		t:    new(tomb.Tomb),
		subs: make(map[uuid.UUID]*Subscription),
	}
}

// Subscribe registers handler to be invoked, in emission order, for every
// Emit call with a matching kind. The handler runs on a dedicated
// goroutine per subscription, so a slow handler never blocks Emit or other
// subscribers.
func (b *Bus) Subscribe(kind Kind, handler func(Event)) *Subscription {
	sub := &Subscription{
		ID:     uuid.New(),
		kind:   kind,
		queue:  make(chan Event, defaultQueueSize),
		stopCh: make(chan struct{}),
	}

	b.mu.Lock()
	b.subs[sub.ID] = sub
	b.mu.Unlock()

	b.t.Go(func() error {
		for {
			select {
			case <-b.t.Dying():
				return nil
			case <-sub.stopCh:
				return nil
			case ev := <-sub.queue:
				handler(ev)
			}
		}
	})

	return sub
}

// Emit delivers ev to every live subscription whose kind matches. Emit
// never blocks beyond enqueueing onto each subscriber's bounded channel.
func (b *Bus) Emit(ev Event) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	for _, sub := range b.subs {
		if sub.kind != ev.Kind {
			continue
		}
		select {
		case <-sub.stopCh:
			continue
		default:
		}
		sub.enqueue(ev)
	}
}

// Close stops every subscription and waits for dispatch goroutines to
// exit.
func (b *Bus) Close() error {
	b.mu.Lock()
	for _, sub := range b.subs {
		sub.Stop()
	}
	started := len(b.subs) > 0
	b.mu.Unlock()

	b.t.Kill(nil)
	if !started {
		// No dispatch goroutine was ever started, so there is nothing to
		// wait for (and the tomb would never report itself dead).
		return nil
	}
	if err := b.t.Wait(); err != nil {
		log.Error().Err(err).Msg("eventbus: dispatch goroutine exited with error")
		return err
	}
	return nil
}
