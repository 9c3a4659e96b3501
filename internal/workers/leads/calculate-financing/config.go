// internal/workers/leads/calculate-financing/config.go
package calculatefinancing

import (
	"dealflow-workers/internal/common/config"
	"dealflow-workers/internal/valuation"
)

// Config holds the default loan terms applied when the form leaves them out.
type Config struct {
	Financing valuation.FinancingConfig
}

func LoadConfig(appCfg *config.Config) *Config {
	return &Config{Financing: appCfg.Valuation.Financing}
}
