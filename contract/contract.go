//go:generate go run go.uber.org/mock/mockgen -source=contract.go -destination=../mocks/mock_contract.go -package=mocks
package contract

import (
	"libroreads/domain"
	"libroreads/domain/event"
)

// Subscription is a live handle onto one user's event channel.
// A user may hold several at once, one per open session.
type Subscription interface {
	// Events yields every event published to the user while the
	// subscription is attached. The channel closes on Unsubscribe.
	Events() <-chan event.DomainEvent
	User() domain.UserID
}

// IDeliveryBus is the per-user publish/subscribe channel used for live
// delivery. Publish is best-effort: no subscriber, no delivery, no error.
type IDeliveryBus interface {
	Subscribe(userID domain.UserID) Subscription
	Publish(e event.DomainEvent)
	Unsubscribe(sub Subscription)
}

// IUserDirectory is the narrow view of the user collaborator the
// messaging core needs before persisting anything.
type IUserDirectory interface {
	Exists(userID domain.UserID) (bool, error)
	GetByID(userID domain.UserID) (domain.User, error)
}
