package enums

import "fmt"

// NotificationType maps to the notifications.type column.
type NotificationType string

const (
	NotificationTypeNewOffer        NotificationType = "new_offer"
	NotificationTypeOfferAccepted   NotificationType = "offer_accepted"
	NotificationTypeOfferRejected   NotificationType = "offer_rejected"
	NotificationTypePaymentReceived NotificationType = "payment_received"
	NotificationTypeOrderCompleted  NotificationType = "order_completed"
	NotificationTypeOrderDispute    NotificationType = "order_dispute"
	NotificationTypeReportResolved  NotificationType = "report_resolved"
	NotificationTypeAccountBanned   NotificationType = "account_banned"
)

var validNotificationTypes = []NotificationType{
	NotificationTypeNewOffer,
	NotificationTypeOfferAccepted,
	NotificationTypeOfferRejected,
	NotificationTypePaymentReceived,
	NotificationTypeOrderCompleted,
	NotificationTypeOrderDispute,
	NotificationTypeReportResolved,
	NotificationTypeAccountBanned,
}

// IsValid checks whether the given type matches the canonical enum.
func (n NotificationType) IsValid() bool {
	for _, candidate := range validNotificationTypes {
		if candidate == n {
			return true
		}
	}
	return false
}

// ParseNotificationType converts raw strings into NotificationType.
func ParseNotificationType(value string) (NotificationType, error) {
	for _, candidate := range validNotificationTypes {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid notification type %q", value)
}
