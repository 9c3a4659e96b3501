package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"dealflow-workers/internal/valuation"
)

// Load reads configs/config.yaml, merges config.<APP_ENVIRONMENT>.yaml on top
// and lets environment variables override any key (dots become underscores).
func Load() (*Config, error) {
	loadEnvFile()

	v := newViper()
	v.SetConfigName("config")
	v.AddConfigPath("./configs")
	v.AddConfigPath("../../configs")
	v.AddConfigPath(".")

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("error reading base config: %w", err)
		}
	}

	env := os.Getenv("APP_ENVIRONMENT")
	if env == "" {
		env = "development"
	}
	v.SetConfigName(fmt.Sprintf("config.%s", env))
	_ = v.MergeInConfig()

	return finish(v)
}

// LoadFromFile reads a single YAML file with the same env handling as Load.
func LoadFromFile(path string) (*Config, error) {
	loadEnvFile()

	v := newViper()
	v.SetConfigFile(path)
	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
	}
	return finish(v)
}

// LoadValuation reads only the valuation section of a YAML file. An empty
// path yields the built-in defaults.
func LoadValuation(path string) (ValuationConfig, error) {
	vp := newViper()
	if path != "" {
		vp.SetConfigFile(path)
		if err := vp.ReadInConfig(); err != nil {
			return ValuationConfig{}, fmt.Errorf("failed to read config file %s: %w", path, err)
		}
	}

	// UnmarshalKey on a subtree skips registered defaults, so decode the
	// whole tree and keep the valuation section.
	var out struct {
		Valuation ValuationConfig `mapstructure:"valuation"`
	}
	if err := vp.Unmarshal(&out); err != nil {
		return ValuationConfig{}, fmt.Errorf("failed to unmarshal valuation config: %w", err)
	}

	v := out.Valuation
	applyValuationDefaults(&v)
	if err := ValidateValuation(v); err != nil {
		return v, err
	}
	return v, nil
}

func newViper() *viper.Viper {
	v := viper.New()
	v.SetConfigType("yaml")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()
	setValuationDefaults(v)
	return v
}

// setValuationDefaults registers estimator defaults with viper so that an
// explicit zero in the file (no spread, no down payment, zero interest) is kept.
func setValuationDefaults(v *viper.Viper) {
	def := valuation.DefaultFinancingConfig()
	v.SetDefault("valuation.spread", valuation.DefaultSpread)
	v.SetDefault("valuation.confidence_ceiling", valuation.DefaultConfidenceCeiling)
	v.SetDefault("valuation.confidence_floor", valuation.DefaultConfidenceFloor)
	v.SetDefault("valuation.financing.down_payment_fraction", def.DownPaymentFraction)
	v.SetDefault("valuation.financing.annual_interest_rate", def.AnnualInterestRate)
	v.SetDefault("valuation.financing.term_months", def.TermMonths)
}

func finish(v *viper.Viper) (*Config, error) {
	expandEnvVars(v)

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	applyDefaults(&cfg)
	overrideEmptyConfig(&cfg)

	if err := validateConfig(&cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return &cfg, nil
}

func loadEnvFile() {
	possiblePaths := []string{".env", "../.env", "../../.env"}
	if rootDir := findProjectRoot(); rootDir != "" {
		possiblePaths = append(possiblePaths, filepath.Join(rootDir, ".env"))
	}

	for _, path := range possiblePaths {
		if _, err := os.Stat(path); err == nil {
			if err := godotenv.Load(path); err == nil {
				return
			}
		}
	}
}

func findProjectRoot() string {
	dir, err := os.Getwd()
	if err != nil {
		return ""
	}
	for {
		if _, err := os.Stat(filepath.Join(dir, "go.mod")); err == nil {
			return dir
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return ""
		}
		dir = parent
	}
}

// expandEnvVars resolves ${VAR} placeholders left in string values. An unset
// variable expands to the empty string so optional integrations stay off.
func expandEnvVars(v *viper.Viper) {
	for _, key := range v.AllKeys() {
		strVal, ok := v.Get(key).(string)
		if !ok || !strings.Contains(strVal, "$") {
			continue
		}
		if expanded := os.ExpandEnv(strVal); expanded != strVal {
			v.Set(key, expanded)
		}
	}
}

func overrideEmptyConfig(cfg *Config) {
	overrides := []struct {
		target *string
		env    string
	}{
		{&cfg.Integrations.Zoho.APIKey, "ZOHO_CRM_API_KEY"},
		{&cfg.Integrations.Zoho.AuthToken, "ZOHO_CRM_OAUTH_TOKEN"},
		{&cfg.APIs.GenAI.APIKey, "GEMINI_API_KEY"},
		{&cfg.APIs.ChatWebhook.URL, "CHAT_WEBHOOK_URL"},
		{&cfg.Database.Postgres.User, "DB_USER"},
		{&cfg.Database.Postgres.Password, "DB_PASSWORD"},
	}
	for _, o := range overrides {
		if *o.target != "" {
			continue
		}
		if val := os.Getenv(o.env); val != "" {
			*o.target = val
		}
	}
}

func applyDefaults(cfg *Config) {
	if cfg.App.Name == "" {
		cfg.App.Name = "dealflow-workers"
	}

	if cfg.Camunda.MaxJobsActive == 0 {
		cfg.Camunda.MaxJobsActive = 10
	}
	if cfg.Camunda.Timeout == 0 {
		cfg.Camunda.Timeout = 30000
	}
	if cfg.Camunda.RequestTimeout == 0 {
		cfg.Camunda.RequestTimeout = 30000
	}

	if cfg.Database.Postgres.Port == 0 {
		cfg.Database.Postgres.Port = 5432
	}
	if cfg.Database.Postgres.MaxConnections == 0 {
		cfg.Database.Postgres.MaxConnections = 25
	}
	if cfg.Database.Postgres.MaxIdle == 0 {
		cfg.Database.Postgres.MaxIdle = 5
	}
	if cfg.Database.Postgres.SSLMode == "" {
		cfg.Database.Postgres.SSLMode = "disable"
	}
	if cfg.Database.Redis.ListingTTL == 0 {
		cfg.Database.Redis.ListingTTL = 300
	}
	if cfg.Database.Elasticsearch.URL == "" && len(cfg.Database.Elasticsearch.Addresses) > 0 {
		cfg.Database.Elasticsearch.URL = cfg.Database.Elasticsearch.Addresses[0]
	}
	if cfg.Database.Elasticsearch.ListingIndex == "" {
		cfg.Database.Elasticsearch.ListingIndex = "listings"
	}

	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "info"
	}
	if cfg.Logging.Format == "" {
		cfg.Logging.Format = "json"
	}
	if cfg.Logging.Output == "" {
		cfg.Logging.Output = "stdout"
	}

	for key, worker := range cfg.Workers {
		if worker.MaxJobsActive == 0 {
			worker.MaxJobsActive = 5
		}
		if worker.Timeout == 0 {
			worker.Timeout = 30000
		}
		if worker.MaxRetries == 0 {
			worker.MaxRetries = 3
		}
		cfg.Workers[key] = worker
	}

	if cfg.APIs.GenAI.Model == "" {
		cfg.APIs.GenAI.Model = "gemini-2.5-flash"
	}
	if cfg.APIs.GenAI.Temperature == 0 {
		cfg.APIs.GenAI.Temperature = 0.2
	}
	if cfg.APIs.GenAI.Timeout == 0 {
		cfg.APIs.GenAI.Timeout = 20000
	}
	if cfg.APIs.ChatWebhook.Timeout == 0 {
		cfg.APIs.ChatWebhook.Timeout = 5000
	}

	if cfg.Integrations.AWS.Region == "" {
		cfg.Integrations.AWS.Region = "us-east-1"
	}
	if cfg.Integrations.Zoho.BaseURL == "" {
		cfg.Integrations.Zoho.BaseURL = "https://www.zohoapis.com/crm/v2"
	}
	if cfg.Notifications.SMS.HotDealThreshold == 0 {
		cfg.Notifications.SMS.HotDealThreshold = 1_000_000
	}

	if cfg.Observability.ServiceName == "" {
		cfg.Observability.ServiceName = cfg.App.Name
	}
	if cfg.Observability.TraceSampler == 0 {
		cfg.Observability.TraceSampler = 1
	}
	if cfg.Observability.MetricsPort == 0 {
		cfg.Observability.MetricsPort = 8080
	}

	applyValuationDefaults(&cfg.Valuation)
}

// applyValuationDefaults fills in built-in tables for verticals the file does
// not configure. Scalar defaults are registered in setValuationDefaults.
func applyValuationDefaults(v *ValuationConfig) {
	if v.Verticals == nil {
		v.Verticals = make(map[string]*valuation.MultipleTable)
	}
	for vertical, table := range valuation.DefaultTables() {
		if _, ok := v.Verticals[string(vertical)]; !ok {
			v.Verticals[string(vertical)] = table
		}
	}
}

func validateConfig(cfg *Config) error {
	if cfg.Camunda.BrokerAddress == "" {
		return fmt.Errorf("camunda.broker_address is required")
	}
	if cfg.Database.Postgres.Host == "" {
		return fmt.Errorf("database.postgres.host is required")
	}
	if cfg.Database.Postgres.Database == "" {
		return fmt.Errorf("database.postgres.database is required")
	}
	if cfg.Database.Postgres.User == "" {
		return fmt.Errorf("database.postgres.user is required")
	}
	if cfg.Database.Redis.Address == "" {
		return fmt.Errorf("database.redis.address is required")
	}
	return ValidateValuation(cfg.Valuation)
}

// ValidateValuation checks estimator defaults and every multiple table.
// Errors wrap valuation.ErrInvalidConfiguration.
func ValidateValuation(v ValuationConfig) error {
	if err := valuation.ValidateOptions(v.Options()...); err != nil {
		return fmt.Errorf("%w: valuation options: %v", valuation.ErrInvalidConfiguration, err)
	}
	if err := v.Financing.Validate(); err != nil {
		return fmt.Errorf("%w: valuation.financing: %v", valuation.ErrInvalidConfiguration, err)
	}
	if _, err := v.Tables(); err != nil {
		return err
	}
	return nil
}

func GetWorkerConfig(cfg *Config, workerName string) WorkerConfig {
	if worker, exists := cfg.Workers[workerName]; exists {
		return worker
	}
	return WorkerConfig{
		Enabled:       true,
		MaxJobsActive: 5,
		Timeout:       30000,
		MaxRetries:    3,
	}
}

func IsWorkerEnabled(cfg *Config, workerName string) bool {
	if worker, exists := cfg.Workers[workerName]; exists {
		return worker.Enabled
	}
	return true
}
