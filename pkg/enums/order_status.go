package enums

import "fmt"

// OrderStatus maps to the order_status column.
type OrderStatus string

const (
	OrderStatusOpen       OrderStatus = "open"
	OrderStatusInProgress OrderStatus = "in_progress"
	OrderStatusCompleted  OrderStatus = "completed"
	OrderStatusDispute    OrderStatus = "dispute"
)

var validOrderStatuses = []OrderStatus{
	OrderStatusOpen,
	OrderStatusInProgress,
	OrderStatusCompleted,
	OrderStatusDispute,
}

// OrderStatuses returns every known status in lifecycle order.
func OrderStatuses() []OrderStatus {
	out := make([]OrderStatus, len(validOrderStatuses))
	copy(out, validOrderStatuses)
	return out
}

func (s OrderStatus) String() string {
	return string(s)
}

func (s OrderStatus) IsValid() bool {
	for _, candidate := range validOrderStatuses {
		if candidate == s {
			return true
		}
	}
	return false
}

func ParseOrderStatus(value string) (OrderStatus, error) {
	for _, candidate := range validOrderStatuses {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid order status %q", value)
}
