// Package runtime owns live session state: which users are connected and
// how events reach their open sessions. Nothing here touches storage or
// business rules.
package runtime

import (
	"log/slog"
	"sync"

	"github.com/google/uuid"

	"libroreads/contract"
	"libroreads/domain"
	"libroreads/domain/event"
)

// Subscription is one live session's view of a user's event stream.
type Subscription struct {
	id     uuid.UUID
	userID domain.UserID
	events chan event.DomainEvent
}

func (s *Subscription) Events() <-chan event.DomainEvent {
	return s.events
}

func (s *Subscription) User() domain.UserID {
	return s.userID
}

// DeliveryBus fans events out to every open session of the addressed
// user.
//
// It provides best-effort delivery with no buffering beyond each
// subscriber's channel: a user with no session simply misses the event,
// and a session that cannot keep up has events dropped. Durability lives
// in the message store, never here.
//
// DeliveryBus is safe for concurrent use by multiple goroutines.
type DeliveryBus struct {
	mu       sync.RWMutex
	log      *slog.Logger
	capacity int
	sessions map[domain.UserID]map[uuid.UUID]*Subscription
}

func NewDeliveryBus(log *slog.Logger, capacity int) *DeliveryBus {
	return &DeliveryBus{
		log:      log,
		capacity: capacity,
		sessions: make(map[domain.UserID]map[uuid.UUID]*Subscription),
	}
}

// Subscribe attaches a new session to userID's stream. Several sessions
// per user can be live at once and each receives every event.
func (b *DeliveryBus) Subscribe(userID domain.UserID) contract.Subscription {
	sub := &Subscription{
		id:     uuid.New(),
		userID: userID,
		events: make(chan event.DomainEvent, b.capacity),
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	if _, ok := b.sessions[userID]; !ok {
		b.sessions[userID] = make(map[uuid.UUID]*Subscription)
	}
	b.sessions[userID][sub.id] = sub
	return sub
}

// Publish delivers e to every live session of the addressed user. It
// never blocks: absent subscribers are skipped entirely and a full
// session channel loses the event.
func (b *DeliveryBus) Publish(e event.DomainEvent) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	for _, sub := range b.sessions[e.AddressedTo()] {
		select {
		case sub.events <- e:
		default:
			b.log.Debug("Live event dropped for slow session",
				"user", e.AddressedTo(), "session", sub.id)
		}
	}
}

// Unsubscribe detaches a session and closes its channel. Empty per-user
// maps are removed so the registry does not grow with churn.
func (b *DeliveryBus) Unsubscribe(handle contract.Subscription) {
	sub, ok := handle.(*Subscription)
	if !ok {
		return
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	subs, ok := b.sessions[sub.userID]
	if !ok {
		return
	}
	if _, ok := subs[sub.id]; !ok {
		return
	}
	delete(subs, sub.id)
	if len(subs) == 0 {
		delete(b.sessions, sub.userID)
	}
	close(sub.events)
}

// Sessions reports how many sessions are live for a user. Used by the
// health endpoint.
func (b *DeliveryBus) Sessions(userID domain.UserID) int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.sessions[userID])
}
