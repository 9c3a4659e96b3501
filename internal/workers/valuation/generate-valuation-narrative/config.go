// internal/workers/valuation/generate-valuation-narrative/config.go
package generatevaluationnarrative

import (
	"time"

	"dealflow-workers/internal/common/config"
)

type Config struct {
	Timeout time.Duration
	// NarrativeTimeout bounds the model call alone.
	NarrativeTimeout time.Duration
}

func LoadConfig(appCfg *config.Config) *Config {
	return &Config{
		Timeout:          config.GetDuration(config.GetWorkerConfig(appCfg, TaskType).Timeout),
		NarrativeTimeout: config.GetDuration(appCfg.APIs.GenAI.Timeout),
	}
}
