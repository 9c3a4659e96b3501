// internal/workers/search/index-listing-valuation/config.go
package indexlistingvaluation

import (
	"time"

	"dealflow-workers/internal/common/config"
)

const defaultListingIndex = "listings"

type Config struct {
	Timeout         time.Duration
	Index           string
	RetryOnConflict int
	// Refresh is passed through as the update refresh parameter ("", "true", "wait_for").
	Refresh string
}

func LoadConfig(appCfg *config.Config) *Config {
	index := appCfg.Database.Elasticsearch.ListingIndex
	if index == "" {
		index = defaultListingIndex
	}
	return &Config{
		Timeout:         config.GetDuration(config.GetWorkerConfig(appCfg, TaskType).Timeout),
		Index:           index,
		RetryOnConflict: 3,
	}
}
