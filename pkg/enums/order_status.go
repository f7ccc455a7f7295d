package enums

import "fmt"

// OrderStatus maps to the order_status enum in Postgres.
type OrderStatus string

const (
	OrderStatusPending   OrderStatus = "pending"
	OrderStatusConfirmed OrderStatus = "confirmed"
	OrderStatusRejected  OrderStatus = "rejected"
)

var validOrderStatuses = []OrderStatus{
	OrderStatusPending,
	OrderStatusConfirmed,
	OrderStatusRejected,
}

// orderTransitions is the closed transition table. Confirmed and rejected are
// terminal; adding a state means extending this table.
var orderTransitions = map[OrderStatus][]OrderStatus{
	OrderStatusPending:   {OrderStatusConfirmed, OrderStatusRejected},
	OrderStatusConfirmed: {},
	OrderStatusRejected:  {},
}

// IsValid reports whether the value matches the canonical order_status enum.
func (s OrderStatus) IsValid() bool {
	for _, candidate := range validOrderStatuses {
		if candidate == s {
			return true
		}
	}
	return false
}

// IsTerminal reports whether no further transition is permitted.
func (s OrderStatus) IsTerminal() bool {
	targets, ok := orderTransitions[s]
	return ok && len(targets) == 0
}

// CanTransitionTo consults the transition table.
func (s OrderStatus) CanTransitionTo(target OrderStatus) bool {
	for _, candidate := range orderTransitions[s] {
		if candidate == target {
			return true
		}
	}
	return false
}

// ParseOrderStatus converts raw input into OrderStatus.
func ParseOrderStatus(value string) (OrderStatus, error) {
	for _, candidate := range validOrderStatuses {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid order status %q", value)
}
