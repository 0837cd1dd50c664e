// internal/common/config/loader.go
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Load reads configs/config.yaml, merges config.<APP_ENVIRONMENT>.yaml and applies env overrides.
func Load() (*Config, error) {
	loadEnvFile()

	v := newViper()
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath("./configs")
	v.AddConfigPath("../../configs")
	v.AddConfigPath(".")

	env := os.Getenv("APP_ENVIRONMENT")
	if env == "" {
		env = "development"
	}

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("error reading base config: %w", err)
		}
	}

	v.SetConfigName(fmt.Sprintf("config.%s", env))
	_ = v.MergeInConfig()

	return finish(v)
}

// LoadFromFile loads configuration from a specific file path
func LoadFromFile(path string) (*Config, error) {
	loadEnvFile()

	v := newViper()
	v.SetConfigFile(path)
	v.SetConfigType("yaml")

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
	}

	return finish(v)
}

func newViper() *viper.Viper {
	v := viper.New()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()
	return v
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
	possiblePaths := []string{".env", "../.env", "../../.env", "../../../.env"}
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

// findProjectRoot walks up from the working directory to the nearest go.mod.
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

// expandEnvVars resolves ${VAR} placeholders inside string values.
func expandEnvVars(v *viper.Viper) {
	for _, key := range v.AllKeys() {
		strVal, ok := v.Get(key).(string)
		if !ok {
			continue
		}
		if strings.Contains(strVal, "${") || (strings.HasPrefix(strVal, "$") && len(strVal) > 1) {
			// Unset variables expand to "", leaving the field unconfigured.
			if expanded := os.ExpandEnv(strVal); expanded != strVal {
				v.Set(key, expanded)
			}
		}
	}
}

func overrideEmptyConfig(cfg *Config) {
	overrides := []struct {
		target *string
		env    string
	}{
		{&cfg.APIs.NLP.APIKey, "NLP_API_KEY"},
		{&cfg.APIs.Embedding.APIKey, "EMBEDDING_API_KEY"},
		{&cfg.Database.Postgres.User, "DB_USER"},
		{&cfg.Database.Postgres.Password, "DB_PASSWORD"},
		{&cfg.Database.Redis.Password, "REDIS_PASSWORD"},
		{&cfg.Escalation.TopicARN, "ESCALATION_TOPIC_ARN"},
	}
	for _, o := range overrides {
		if *o.target == "" {
			if val := os.Getenv(o.env); val != "" {
				*o.target = val
			}
		}
	}
}

// applyDefaults sets default values for optional configuration fields
func applyDefaults(cfg *Config) {
	if cfg.App.Name == "" {
		cfg.App.Name = "service-discovery"
	}

	if cfg.Server.Port == 0 {
		cfg.Server.Port = 8080
	}
	if cfg.Server.ReadTimeout == 0 {
		cfg.Server.ReadTimeout = 10000
	}
	if cfg.Server.WriteTimeout == 0 {
		cfg.Server.WriteTimeout = 15000
	}
	if cfg.Server.ShutdownTimeout == 0 {
		cfg.Server.ShutdownTimeout = 30000
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
	if cfg.Database.Elasticsearch.URL == "" && len(cfg.Database.Elasticsearch.Addresses) > 0 {
		cfg.Database.Elasticsearch.URL = cfg.Database.Elasticsearch.Addresses[0]
	}
	if cfg.Database.Elasticsearch.Index == "" {
		cfg.Database.Elasticsearch.Index = "government_services"
	}

	ApplyDiscoveryDefaults(&cfg.Discovery)

	if cfg.Sessions.Store == "" {
		cfg.Sessions.Store = "memory"
	}
	if cfg.Sessions.TTL == 0 {
		cfg.Sessions.TTL = 1800000
	}
	if cfg.Sessions.LockTTL == 0 {
		cfg.Sessions.LockTTL = 30000
	}
	if cfg.Sessions.MaxTurns == 0 {
		cfg.Sessions.MaxTurns = 50
	}
	if cfg.Sessions.KeyPrefix == "" {
		cfg.Sessions.KeyPrefix = "discovery:"
	}

	if len(cfg.Catalog.Sources) == 0 {
		cfg.Catalog.Sources = []string{"file"}
	}
	if cfg.Catalog.SnapshotTTL == 0 {
		cfg.Catalog.SnapshotTTL = 86400000
	}
	if cfg.Catalog.Timeout == 0 {
		cfg.Catalog.Timeout = 2000
	}

	if cfg.APIs.NLP.Timeout == 0 {
		cfg.APIs.NLP.Timeout = 3000
	}
	if cfg.APIs.NLP.MaxRetries == 0 {
		cfg.APIs.NLP.MaxRetries = 2
	}
	if cfg.APIs.Embedding.Timeout == 0 {
		cfg.APIs.Embedding.Timeout = 2000
	}
	if cfg.APIs.Embedding.CacheSize == 0 {
		cfg.APIs.Embedding.CacheSize = 1024
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
}

// ApplyDiscoveryDefaults fills zero tunables with the documented defaults.
func ApplyDiscoveryDefaults(d *DiscoveryConfig) {
	if d.ClarificationThreshold == 0 {
		d.ClarificationThreshold = 0.6
	}
	if d.RelevanceFloor == 0 {
		d.RelevanceFloor = 0.1
	}
	if d.PrioritizationEpsilon == 0 {
		d.PrioritizationEpsilon = 0.05
	}
	if d.Weights == (WeightsConfig{}) {
		d.Weights = WeightsConfig{Category: 0.4, EntityOverlap: 0.4, Semantic: 0.2}
	}
	if d.MaxResults == 0 {
		d.MaxResults = 10
	}
	if d.AlternativesLimit == 0 {
		d.AlternativesLimit = 3
	}
	if d.FollowUpDecay == 0 {
		d.FollowUpDecay = 0.9
	}
	if d.DegradationPenalty == 0 {
		d.DegradationPenalty = 0.15
	}
	if d.ScoringConcurrency == 0 {
		d.ScoringConcurrency = 8
	}
	if d.HelplineName == "" {
		d.HelplineName = "Citizen Services Helpline"
	}
	if d.HelplinePhone == "" {
		d.HelplinePhone = "1800-11-0031"
	}
}

// DefaultDiscovery returns the discovery tunables with every default applied.
func DefaultDiscovery() DiscoveryConfig {
	var d DiscoveryConfig
	ApplyDiscoveryDefaults(&d)
	return d
}

func validateConfig(cfg *Config) error {
	if err := validateDiscovery(cfg.Discovery); err != nil {
		return err
	}

	if cfg.Server.EnableWorkers && cfg.Camunda.BrokerAddress == "" {
		return fmt.Errorf("camunda.broker_address is required when server.enable_workers is set")
	}

	for _, source := range cfg.Catalog.Sources {
		switch source {
		case "postgres":
			if !cfg.Database.Postgres.Enabled() || cfg.Database.Postgres.User == "" {
				return fmt.Errorf("database.postgres.host, database and user are required for the postgres catalog")
			}
		case "elasticsearch":
			if cfg.Database.Elasticsearch.GetURL() == "" {
				return fmt.Errorf("database.elasticsearch.addresses or url is required for the elasticsearch catalog")
			}
		case "file":
			if cfg.Catalog.File == "" {
				return fmt.Errorf("catalog.file is required for the file catalog")
			}
		default:
			return fmt.Errorf("unknown catalog source %q", source)
		}
	}

	switch cfg.Sessions.Store {
	case "memory":
	case "redis":
		if cfg.Database.Redis.Address == "" {
			return fmt.Errorf("database.redis.address is required for the redis session store")
		}
	default:
		return fmt.Errorf("unknown session store %q", cfg.Sessions.Store)
	}

	if cfg.Escalation.Enabled && cfg.Escalation.TopicARN == "" {
		return fmt.Errorf("escalation.topic_arn is required when escalation is enabled")
	}
	return nil
}

func validateDiscovery(d DiscoveryConfig) error {
	for name, v := range map[string]float64{
		"clarification_threshold": d.ClarificationThreshold,
		"relevance_floor":         d.RelevanceFloor,
		"prioritization_epsilon":  d.PrioritizationEpsilon,
		"follow_up_decay":         d.FollowUpDecay,
		"degradation_penalty":     d.DegradationPenalty,
	} {
		if v < 0 || v > 1 {
			return fmt.Errorf("discovery.%s must be within [0,1], got %v", name, v)
		}
	}
	w := d.Weights
	if w.Category < 0 || w.EntityOverlap < 0 || w.Semantic < 0 {
		return fmt.Errorf("discovery.weights must be non-negative")
	}
	if w.Category+w.EntityOverlap+w.Semantic == 0 {
		return fmt.Errorf("discovery.weights must not all be zero")
	}
	if d.MaxResults < 1 {
		return fmt.Errorf("discovery.max_results must be positive")
	}
	return nil
}

// GetDuration converts milliseconds from config to time.Duration
func GetDuration(milliseconds int) time.Duration {
	return time.Duration(milliseconds) * time.Millisecond
}

// GetWorkerConfig retrieves worker-specific configuration with fallback to defaults
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

// IsWorkerEnabled checks if a specific worker is enabled
func IsWorkerEnabled(cfg *Config, workerName string) bool {
	if worker, exists := cfg.Workers[workerName]; exists {
		return worker.Enabled
	}
	return true
}
