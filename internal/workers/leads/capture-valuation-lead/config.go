// internal/workers/leads/capture-valuation-lead/config.go
package capturevaluationlead

import (
	"time"

	"dealflow-workers/internal/common/config"
	"dealflow-workers/internal/valuation"
)

type Config struct {
	Timeout time.Duration
	// DuplicateWindow is how far back an identical email and listing pair
	// counts as the same lead.
	DuplicateWindow time.Duration
	Tables          map[valuation.Vertical]*valuation.MultipleTable
	Financing       valuation.FinancingConfig
	Options         []valuation.Option
	SyncCRM         bool
}

func LoadConfig(appCfg *config.Config) (*Config, error) {
	tables, err := appCfg.Valuation.Tables()
	if err != nil {
		return nil, err
	}
	return &Config{
		Timeout:         config.GetDuration(config.GetWorkerConfig(appCfg, TaskType).Timeout),
		DuplicateWindow: 24 * time.Hour,
		Tables:          tables,
		Financing:       appCfg.Valuation.Financing,
		Options:         appCfg.Valuation.Options(),
		SyncCRM:         appCfg.Integrations.Zoho.Enabled,
	}, nil
}
