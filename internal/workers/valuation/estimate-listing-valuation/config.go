// internal/workers/valuation/estimate-listing-valuation/config.go
package estimatelistingvaluation

import (
	"time"

	"dealflow-workers/internal/common/config"
	"dealflow-workers/internal/valuation"
)

type Config struct {
	Timeout   time.Duration
	Tables    map[valuation.Vertical]*valuation.MultipleTable
	Financing valuation.FinancingConfig
	Options   []valuation.Option
}

// LoadConfig resolves the vertical tables and estimator defaults once at start-up.
func LoadConfig(appCfg *config.Config) (*Config, error) {
	tables, err := appCfg.Valuation.Tables()
	if err != nil {
		return nil, err
	}
	return &Config{
		Timeout:   config.GetDuration(config.GetWorkerConfig(appCfg, TaskType).Timeout),
		Tables:    tables,
		Financing: appCfg.Valuation.Financing,
		Options:   appCfg.Valuation.Options(),
	}, nil
}
