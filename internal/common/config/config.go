package config

import (
	"fmt"
	"time"

	"dealflow-workers/internal/valuation"
)

type Config struct {
	App           AppConfig               `mapstructure:"app"`
	Camunda       CamundaConfig           `mapstructure:"camunda"`
	Database      DatabaseConfig          `mapstructure:"database"`
	Workers       map[string]WorkerConfig `mapstructure:"workers"`
	Integrations  IntegrationConfig       `mapstructure:"integrations"`
	APIs          APIsConfig              `mapstructure:"apis"`
	Logging       LoggingConfig           `mapstructure:"logging"`
	Notifications NotificationConfig      `mapstructure:"notifications"`
	Observability ObservabilityConfig     `mapstructure:"observability"`
	Valuation     ValuationConfig         `mapstructure:"valuation"`
}

type AppConfig struct {
	Name        string `mapstructure:"name"`
	Version     string `mapstructure:"version"`
	Environment string `mapstructure:"environment"`
}

type CamundaConfig struct {
	BrokerAddress  string `mapstructure:"broker_address"`
	MaxJobsActive  int    `mapstructure:"max_jobs_active"`
	Timeout        int    `mapstructure:"timeout"`         // milliseconds
	RequestTimeout int    `mapstructure:"request_timeout"` // milliseconds
}

type DatabaseConfig struct {
	Postgres      PostgresConfig      `mapstructure:"postgres"`
	Elasticsearch ElasticsearchConfig `mapstructure:"elasticsearch"`
	Redis         RedisConfig         `mapstructure:"redis"`
}

type PostgresConfig struct {
	Host           string `mapstructure:"host"`
	Port           int    `mapstructure:"port"`
	Database       string `mapstructure:"database"`
	User           string `mapstructure:"user"`
	Password       string `mapstructure:"password"`
	MaxConnections int    `mapstructure:"max_connections"`
	MaxIdle        int    `mapstructure:"max_idle"`
	SSLMode        string `mapstructure:"sslmode"`
}

func (p PostgresConfig) GetDSN() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		p.Host, p.Port, p.User, p.Password, p.Database, p.SSLMode,
	)
}

type ElasticsearchConfig struct {
	Addresses    []string `mapstructure:"addresses"`
	Username     string   `mapstructure:"username"`
	Password     string   `mapstructure:"password"`
	URL          string   `mapstructure:"url"`
	ListingIndex string   `mapstructure:"listing_index"`
}

func (e ElasticsearchConfig) GetURL() string {
	if e.URL != "" {
		return e.URL
	}
	if len(e.Addresses) > 0 {
		return e.Addresses[0]
	}
	return ""
}

// Enabled reports whether any Elasticsearch endpoint is configured.
func (e ElasticsearchConfig) Enabled() bool {
	return e.GetURL() != ""
}

type RedisConfig struct {
	Address    string `mapstructure:"address"`
	Password   string `mapstructure:"password"`
	DB         int    `mapstructure:"db"`
	ListingTTL int    `mapstructure:"listing_ttl"` // seconds
}

type WorkerConfig struct {
	Enabled       bool `mapstructure:"enabled"`
	MaxJobsActive int  `mapstructure:"max_jobs_active"`
	Timeout       int  `mapstructure:"timeout"` // milliseconds
	MaxRetries    int  `mapstructure:"max_retries"`
}

type ZohoConfig struct {
	Enabled   bool   `mapstructure:"enabled"`
	BaseURL   string `mapstructure:"base_url"`
	APIKey    string `mapstructure:"api_key"`
	AuthToken string `mapstructure:"oauth_token"`
}

type IntegrationConfig struct {
	Zoho ZohoConfig `mapstructure:"zoho"`

	AWS struct {
		Region string `mapstructure:"region"`
		SES    struct {
			Enabled   bool   `mapstructure:"enabled"`
			FromEmail string `mapstructure:"from_email"`
		} `mapstructure:"ses"`
		SNS struct {
			Enabled  bool   `mapstructure:"enabled"`
			TopicARN string `mapstructure:"topic_arn"`
		} `mapstructure:"sns"`
	} `mapstructure:"aws"`
}

type APIsConfig struct {
	GenAI struct {
		APIKey      string  `mapstructure:"api_key"`
		Model       string  `mapstructure:"model"`
		Temperature float64 `mapstructure:"temperature"`
		Timeout     int     `mapstructure:"timeout"` // milliseconds
	} `mapstructure:"genai"`

	ChatWebhook struct {
		URL     string `mapstructure:"url"`
		Timeout int    `mapstructure:"timeout"` // milliseconds
	} `mapstructure:"chat_webhook"`
}

type NotificationConfig struct {
	Email struct {
		Enabled     bool     `mapstructure:"enabled"`
		FromEmail   string   `mapstructure:"from_email"`
		BrokerEmail []string `mapstructure:"broker_emails"`
	} `mapstructure:"email"`
	Chat struct {
		Enabled bool `mapstructure:"enabled"`
	} `mapstructure:"chat"`
	SMS struct {
		Enabled          bool    `mapstructure:"enabled"`
		HotDealThreshold float64 `mapstructure:"hot_deal_threshold"`
	} `mapstructure:"sms"`
	SiteURL string `mapstructure:"site_url"`
}

type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
	Output string `mapstructure:"output"`
}

type ObservabilityConfig struct {
	ServiceName  string  `mapstructure:"service_name"`
	TraceSampler float64 `mapstructure:"trace_sample_ratio"`
	MetricsPort  int     `mapstructure:"metrics_port"`
}

// ValuationConfig carries estimator defaults and per-vertical multiple tables.
type ValuationConfig struct {
	Spread            float64                             `mapstructure:"spread"`
	ConfidenceCeiling float64                             `mapstructure:"confidence_ceiling"`
	ConfidenceFloor   float64                             `mapstructure:"confidence_floor"`
	Financing         valuation.FinancingConfig           `mapstructure:"financing"`
	Verticals         map[string]*valuation.MultipleTable `mapstructure:"verticals"`
}

// Options converts the configured spread and confidence bounds to estimator options.
func (v ValuationConfig) Options() []valuation.Option {
	return []valuation.Option{
		valuation.WithSpread(v.Spread),
		valuation.WithConfidenceBounds(v.ConfidenceFloor, v.ConfidenceCeiling),
	}
}

// Tables returns the validated multiple table for every configured vertical.
func (v ValuationConfig) Tables() (map[valuation.Vertical]*valuation.MultipleTable, error) {
	out := make(map[valuation.Vertical]*valuation.MultipleTable, len(v.Verticals))
	for slug, table := range v.Verticals {
		vertical, ok := valuation.ParseVertical(slug)
		if !ok {
			return nil, fmt.Errorf("%w: unknown vertical %q", valuation.ErrInvalidConfiguration, slug)
		}
		if table == nil {
			return nil, fmt.Errorf("%w: vertical %q has no table", valuation.ErrInvalidConfiguration, slug)
		}
		if table.Vertical == "" {
			table.Vertical = vertical
		}
		if err := table.Validate(); err != nil {
			return nil, err
		}
		out[vertical] = table
	}
	return out, nil
}

func GetDuration(milliseconds int) time.Duration {
	return time.Duration(milliseconds) * time.Millisecond
}
