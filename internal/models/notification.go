// internal/models/notification.go
package models

const (
	ChannelEmail = "email"
	ChannelChat  = "chat"
	ChannelSMS   = "sms"

	DeliverySent     = "sent"
	DeliveryFailed   = "failed"
	DeliveryDisabled = "disabled"
	DeliverySkipped  = "skipped"
)

// ChannelDelivery is the outcome of one notification channel.
type ChannelDelivery struct {
	Channel   string `json:"channel"`
	Status    string `json:"status"`
	MessageID string `json:"messageId,omitempty"`
	Error     string `json:"error,omitempty"`
}

type ValuationNotification struct {
	ID         string            `json:"id"`
	ListingID  string            `json:"listingId"`
	Deliveries []ChannelDelivery `json:"deliveries"`
	SentAt     string            `json:"sentAt"`
}

// Delivered reports whether at least one channel succeeded.
func (n *ValuationNotification) Delivered() bool {
	for _, d := range n.Deliveries {
		if d.Status == DeliverySent {
			return true
		}
	}
	return false
}
