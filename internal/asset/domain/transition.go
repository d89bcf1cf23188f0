package domain

import (
	"strings"
	"time"
)

type Event string

const (
	EventBuy               Event = "buy"
	EventSell              Event = "sell"
	EventTransfer          Event = "transfer"
	EventRequestRetirement Event = "request_retirement"
	EventConfirmRetirement Event = "confirm_retirement"
	EventRejectRetirement  Event = "reject_retirement"
)

func (e Event) Valid() bool {
	switch e {
	case EventBuy, EventSell, EventTransfer, EventRequestRetirement, EventConfirmRetirement, EventRejectRetirement:
		return true
	}
	return false
}

// Command is a lifecycle event applied on behalf of Actor. Recipient is the
// new owner for transfers.
type Command struct {
	Event     Event
	Actor     string
	Recipient string
}

// Apply validates cmd against the current asset and returns the next state.
// Status is checked before ownership, so a retired asset reports
// ErrInvalidTransition even to a stranger.
func Apply(current Asset, cmd Command, now time.Time) (Asset, error) {
	actor := strings.TrimSpace(cmd.Actor)
	next := current
	next.Version = current.Version + 1
	next.UpdatedAt = now

	switch cmd.Event {
	case EventBuy:
		if current.Status != StatusAvailable {
			return current, ErrNotAvailable
		}
		next.Status = StatusOwned
		next.OwnerID = &actor

	case EventSell:
		if err := requireOwned(current, actor); err != nil {
			return current, err
		}
		next.Status = StatusAvailable
		next.OwnerID = nil

	case EventTransfer:
		if err := requireOwned(current, actor); err != nil {
			return current, err
		}
		recipient := strings.TrimSpace(cmd.Recipient)
		if recipient == "" {
			return current, ErrInvalidRecipient
		}
		if recipient == current.Owner() {
			return current, ErrInvalidTransition
		}
		next.OwnerID = &recipient

	case EventRequestRetirement:
		if err := requireOwned(current, actor); err != nil {
			return current, err
		}
		next.Status = StatusPendingRetirement

	case EventConfirmRetirement:
		if current.Status != StatusPendingRetirement {
			return current, ErrInvalidTransition
		}
		retiredAt := now
		next.Status = StatusRetired
		next.RetiredAt = &retiredAt

	case EventRejectRetirement:
		if current.Status != StatusPendingRetirement {
			return current, ErrInvalidTransition
		}
		next.Status = StatusOwned

	default:
		return current, ErrInvalidEvent
	}
	return next, nil
}

func requireOwned(current Asset, actor string) error {
	if current.Status != StatusOwned {
		return ErrInvalidTransition
	}
	if current.Owner() != actor {
		return ErrNotOwner
	}
	return nil
}
