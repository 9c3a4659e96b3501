// internal/workers/notifications/send-valuation-notification/config.go
package sendvaluationnotification

import (
	"time"

	"dealflow-workers/internal/common/config"
)

type Config struct {
	Timeout          time.Duration
	EmailEnabled     bool
	BrokerEmails     []string
	ChatEnabled      bool
	ChatWebhookURL   string
	SMSEnabled       bool
	HotDealThreshold float64
	SiteURL          string
}

func LoadConfig(appCfg *config.Config) *Config {
	n := appCfg.Notifications
	return &Config{
		Timeout:          config.GetDuration(config.GetWorkerConfig(appCfg, TaskType).Timeout),
		EmailEnabled:     n.Email.Enabled,
		BrokerEmails:     n.Email.BrokerEmail,
		ChatEnabled:      n.Chat.Enabled && appCfg.APIs.ChatWebhook.URL != "",
		ChatWebhookURL:   appCfg.APIs.ChatWebhook.URL,
		SMSEnabled:       n.SMS.Enabled,
		HotDealThreshold: n.SMS.HotDealThreshold,
		SiteURL:          n.SiteURL,
	}
}
