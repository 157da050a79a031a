// Package event carries the data layer's change notifications. There are two
// signals: DataChanged after every mutating operation, and DatabaseReady once
// initialization, migration, and seeding complete. Both are at-least-once and
// carry no payload; a consumer reacts by re-reading, so dropped duplicates
// are harmless.
package event

import (
	"sync"
	"time"

	"github.com/google/uuid"
)

// Type identifies a notification kind.
type Type string

const (
	// DataChanged fires after create/update/delete/reorder/restore/import.
	DataChanged Type = "data_changed"
	// DatabaseReady fires once, after startup finishes.
	DatabaseReady Type = "database_ready"
)

// Event is one notification instance.
type Event struct {
	Type Type
	At   time.Time
}

// Subscription is one consumer's registration. Receive on C; call Cancel
// when done.
type Subscription struct {
	C   <-chan Event
	id  string
	ch  chan Event
	bus *Bus
}

// Cancel removes the subscription from the bus and closes its channel.
func (s *Subscription) Cancel() {
	s.bus.remove(s.id)
}

// Bus is an in-process publish/subscribe channel for data layer events.
type Bus struct {
	mu   sync.Mutex
	subs map[string]chan Event
}

// NewBus creates an empty Bus.
func NewBus() *Bus {
	return &Bus{subs: make(map[string]chan Event)}
}

// Subscribe registers a consumer with the given channel buffer. A buffer of
// zero gets a small default so publishers never block.
func (b *Bus) Subscribe(buffer int) *Subscription {
	if buffer <= 0 {
		buffer = 4
	}
	ch := make(chan Event, buffer)
	id := uuid.New().String()

	b.mu.Lock()
	b.subs[id] = ch
	b.mu.Unlock()

	return &Subscription{C: ch, id: id, ch: ch, bus: b}
}

// Publish broadcasts an event to all subscribers without blocking. A
// subscriber whose buffer is full misses this instance; since events carry
// no delta, the one already queued tells it everything.
func (b *Bus) Publish(t Type) {
	ev := Event{Type: t, At: time.Now()}

	b.mu.Lock()
	defer b.mu.Unlock()
	for _, ch := range b.subs {
		select {
		case ch <- ev:
		default:
		}
	}
}

func (b *Bus) remove(id string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if ch, ok := b.subs[id]; ok {
		delete(b.subs, id)
		close(ch)
	}
}
