// Package lifecycle moves orders through fulfillment and triggers the side
// effects of each transition.
package lifecycle

import "github.com/chrisdamba/menuflow/internal/models"

// NextStatus returns the single forward status after s for an order of type
// t. It returns false for terminal statuses.
func NextStatus(s models.OrderStatus, t models.OrderType) (models.OrderStatus, bool) {
	switch s {
	case models.OrderStatusPending:
		return models.OrderStatusPreparing, true
	case models.OrderStatusPreparing:
		return models.OrderStatusReady, true
	case models.OrderStatusReady:
		if t == models.OrderTypeDelivery {
			return models.OrderStatusDelivering, true
		}
		return models.OrderStatusCompleted, true
	case models.OrderStatusDelivering:
		return models.OrderStatusCompleted, true
	}
	return "", false
}

// CanTransition reports whether from -> to is allowed for type t.
func CanTransition(from, to models.OrderStatus, t models.OrderType) bool {
	if from.IsTerminal() {
		return false
	}
	if to == models.OrderStatusCancelled {
		return true
	}
	next, ok := NextStatus(from, t)
	return ok && next == to
}
