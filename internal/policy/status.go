// Package policy holds the pure rules of the marketplace: the order status
// graph, field validation and caller capability checks. Nothing here touches
// storage.
package policy

import (
	"fmt"

	"github.com/minelance/minelance-backend/pkg/enums"
	pkgerrors "github.com/minelance/minelance-backend/pkg/errors"
)

var transitions = map[enums.OrderStatus][]enums.OrderStatus{
	enums.OrderStatusOpen:       {enums.OrderStatusInProgress, enums.OrderStatusDispute},
	enums.OrderStatusInProgress: {enums.OrderStatusCompleted, enums.OrderStatusDispute},
	enums.OrderStatusCompleted:  {enums.OrderStatusDispute},
	enums.OrderStatusDispute:    {enums.OrderStatusCompleted, enums.OrderStatusInProgress},
}

// IsValidStatus reports whether v names a known order status.
func IsValidStatus(v string) bool {
	return enums.OrderStatus(v).IsValid()
}

// CanTransition reports whether an order may move from current to next.
// Unknown statuses and self-transitions are never allowed.
func CanTransition(current, next enums.OrderStatus) bool {
	for _, allowed := range transitions[current] {
		if allowed == next {
			return true
		}
	}
	return false
}

// AllowedTransitions lists the statuses reachable from current.
func AllowedTransitions(current enums.OrderStatus) []enums.OrderStatus {
	out := make([]enums.OrderStatus, len(transitions[current]))
	copy(out, transitions[current])
	return out
}

// CheckTransition returns a STATE_CONFLICT error when current -> next is not
// in the graph.
func CheckTransition(current, next enums.OrderStatus) error {
	if CanTransition(current, next) {
		return nil
	}
	return InvalidTransition(fmt.Sprintf("order cannot move from %s to %s", current, next), current)
}

// InvalidTransition builds the error returned when a status precondition fails.
func InvalidTransition(msg string, current any) error {
	return pkgerrors.New(pkgerrors.CodeStateConflict, msg).
		WithDetails(map[string]any{"current_status": fmt.Sprint(current)})
}
