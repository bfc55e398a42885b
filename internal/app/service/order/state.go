package order

import (
	"time"

	"github.com/samber/lo"

	"github.com/fatflowers/marketplace/internal/models"
	"github.com/fatflowers/marketplace/pkg/apperr"
	"github.com/fatflowers/marketplace/pkg/types"
)

var transitions = map[types.OrderStatus][]types.OrderStatus{
	types.OrderStatusPending:    {types.OrderStatusConfirmed, types.OrderStatusCancelled},
	types.OrderStatusConfirmed:  {types.OrderStatusInProgress, types.OrderStatusCancelled},
	types.OrderStatusInProgress: {types.OrderStatusCompleted, types.OrderStatusCancelled},
}

var knownStatuses = []types.OrderStatus{
	types.OrderStatusPending,
	types.OrderStatusConfirmed,
	types.OrderStatusInProgress,
	types.OrderStatusCompleted,
	types.OrderStatusCancelled,
	types.OrderStatusFailed,
}

// CanTransition reports whether an order may move from one status to another.
// Re-entering the current status is not a transition.
func CanTransition(from, to types.OrderStatus) bool {
	return lo.Contains(transitions[from], to)
}

func checkTransition(from, to types.OrderStatus) error {
	if !lo.Contains(knownStatuses, to) {
		return apperr.Validation("unknown order status %q", to)
	}
	if !CanTransition(from, to) {
		return &apperr.InvalidTransitionError{Entity: "order", From: string(from), To: string(to)}
	}
	return nil
}

// applyTransition moves o to status `to` in memory and returns the columns to persist.
// confirmed_at and completed_at are stamped on first entry only.
func applyTransition(o *models.Order, to types.OrderStatus, now time.Time) (map[string]any, error) {
	if err := checkTransition(o.Status, to); err != nil {
		return nil, err
	}
	o.Status = to
	updates := map[string]any{"status": to, "updated_at": now}
	switch to {
	case types.OrderStatusConfirmed:
		if o.ConfirmedAt == nil {
			o.ConfirmedAt = lo.ToPtr(now)
			updates["confirmed_at"] = now
		}
	case types.OrderStatusCompleted:
		if o.CompletedAt == nil {
			o.CompletedAt = lo.ToPtr(now)
			updates["completed_at"] = now
		}
	case types.OrderStatusCancelled:
		if o.CancelledAt == nil {
			o.CancelledAt = lo.ToPtr(now)
			updates["cancelled_at"] = now
		}
	}
	o.UpdatedAt = now
	return updates, nil
}
