// internal/workers/notifications/send-valuation-notification/models.go
package sendvaluationnotification

import (
	"dealflow-workers/internal/common/narrative"
	"dealflow-workers/internal/models"
	"dealflow-workers/internal/valuation"
)

type Input struct {
	ListingID string                       `json:"listingId"`
	Title     string                       `json:"title,omitempty"`
	Valuation *valuation.ValuationResult   `json:"valuation"`
	Financing *valuation.FinancingScenario `json:"financing,omitempty"`
	Narrative *narrative.Narrative         `json:"narrative,omitempty"`
}

type Output struct {
	NotificationID string                   `json:"notificationId"`
	ListingID      string                   `json:"listingId"`
	Status         string                   `json:"status"` // "sent" or "disabled"
	HotDeal        bool                     `json:"hotDeal"`
	Deliveries     []models.ChannelDelivery `json:"deliveries"`
	SentAt         string                   `json:"sentAt"` // ISO 8601
}

// Message template keys
const (
	templateEmail = "email"
	templateChat  = "chat"
	templateSMS   = "sms"
)

// chatMessage is the Slack-compatible incoming webhook body.
type chatMessage struct {
	Text string `json:"text"`
}
