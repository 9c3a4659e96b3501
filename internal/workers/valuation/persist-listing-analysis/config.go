// internal/workers/valuation/persist-listing-analysis/config.go
package persistlistinganalysis

import (
	"time"

	"dealflow-workers/internal/common/config"
)

type Config struct {
	Timeout time.Duration
	// AuditLog enables the non-critical audit_log insert.
	AuditLog bool
}

func LoadConfig(appCfg *config.Config) *Config {
	return &Config{
		Timeout:  config.GetDuration(config.GetWorkerConfig(appCfg, TaskType).Timeout),
		AuditLog: true,
	}
}
