// internal/common/config/config.go
package config

import "fmt"

// Config is the main application configuration struct.
type Config struct {
	App        AppConfig               `mapstructure:"app"`
	Server     ServerConfig            `mapstructure:"server"`
	Camunda    CamundaConfig           `mapstructure:"camunda"`
	Database   DatabaseConfig          `mapstructure:"database"`
	Discovery  DiscoveryConfig         `mapstructure:"discovery"`
	Sessions   SessionConfig           `mapstructure:"sessions"`
	Catalog    CatalogConfig           `mapstructure:"catalog"`
	Workers    map[string]WorkerConfig `mapstructure:"workers"`
	APIs       APIsConfig              `mapstructure:"apis"`
	Escalation EscalationConfig        `mapstructure:"escalation"`
	Logging    LoggingConfig           `mapstructure:"logging"`
}

type AppConfig struct {
	Name        string `mapstructure:"name"`
	Version     string `mapstructure:"version"`
	Environment string `mapstructure:"environment"`
}

// ServerConfig drives the HTTP API in cmd/discovery-server.
type ServerConfig struct {
	Port            int `mapstructure:"port"`
	ReadTimeout     int `mapstructure:"read_timeout"`     // milliseconds
	WriteTimeout    int `mapstructure:"write_timeout"`    // milliseconds
	ShutdownTimeout int `mapstructure:"shutdown_timeout"` // milliseconds
	// EnableWorkers registers the Zeebe job workers next to the HTTP API.
	EnableWorkers bool `mapstructure:"enable_workers"`
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

// GetDSN returns the PostgreSQL connection string
func (p PostgresConfig) GetDSN() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		p.Host, p.Port, p.User, p.Password, p.Database, p.SSLMode,
	)
}

// Enabled reports whether a Postgres host was configured.
func (p PostgresConfig) Enabled() bool {
	return p.Host != "" && p.Database != ""
}

type ElasticsearchConfig struct {
	Addresses []string `mapstructure:"addresses"`
	Username  string   `mapstructure:"username"`
	Password  string   `mapstructure:"password"`
	URL       string   `mapstructure:"url"`
	Index     string   `mapstructure:"index"`
}

// GetURL returns the first address or the URL field
func (e ElasticsearchConfig) GetURL() string {
	if e.URL != "" {
		return e.URL
	}
	if len(e.Addresses) > 0 {
		return e.Addresses[0]
	}
	return ""
}

type RedisConfig struct {
	Address  string `mapstructure:"address"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

// DiscoveryConfig holds the tunables of eligibility, ranking, matching and orchestration.
type DiscoveryConfig struct {
	ClarificationThreshold float64       `mapstructure:"clarification_threshold"`
	RelevanceFloor         float64       `mapstructure:"relevance_floor"`
	PrioritizationEpsilon  float64       `mapstructure:"prioritization_epsilon"`
	Weights                WeightsConfig `mapstructure:"weights"`
	MaxResults             int           `mapstructure:"max_results"`
	AlternativesLimit      int           `mapstructure:"alternatives_limit"`
	FollowUpDecay          float64       `mapstructure:"follow_up_decay"`
	DegradationPenalty     float64       `mapstructure:"degradation_penalty"`
	ScoringConcurrency     int           `mapstructure:"scoring_concurrency"`
	HelplineName           string        `mapstructure:"helpline_name"`
	HelplinePhone          string        `mapstructure:"helpline_phone"`
	HelplineURL            string        `mapstructure:"helpline_url"`
}

type WeightsConfig struct {
	Category      float64 `mapstructure:"category"`
	EntityOverlap float64 `mapstructure:"entity_overlap"`
	Semantic      float64 `mapstructure:"semantic"`
}

// SessionConfig controls conversation persistence.
type SessionConfig struct {
	Store     string `mapstructure:"store"`    // "redis" or "memory"
	TTL       int    `mapstructure:"ttl"`      // milliseconds
	LockTTL   int    `mapstructure:"lock_ttl"` // milliseconds
	MaxTurns  int    `mapstructure:"max_turns"`
	KeyPrefix string `mapstructure:"key_prefix"`
}

// CatalogConfig picks the catalog backends, tried in order.
type CatalogConfig struct {
	Sources     []string `mapstructure:"sources"` // elasticsearch, postgres, file
	File        string   `mapstructure:"file"`
	SnapshotTTL int      `mapstructure:"snapshot_ttl"` // milliseconds
	Timeout     int      `mapstructure:"timeout"`      // milliseconds
}

// WorkerConfig holds the core settings applicable to every worker.
type WorkerConfig struct {
	Enabled       bool `mapstructure:"enabled"`
	MaxJobsActive int  `mapstructure:"max_jobs_active"`
	Timeout       int  `mapstructure:"timeout"`     // milliseconds
	MaxRetries    int  `mapstructure:"max_retries"` // For error handling
}

// APIsConfig holds settings for the NLP and embedding collaborators.
type APIsConfig struct {
	NLP struct {
		BaseURL    string `mapstructure:"base_url"`
		APIKey     string `mapstructure:"api_key"`
		Timeout    int    `mapstructure:"timeout"` // milliseconds
		MaxRetries int    `mapstructure:"max_retries"`
	} `mapstructure:"nlp"`

	Embedding struct {
		BaseURL   string `mapstructure:"base_url"`
		APIKey    string `mapstructure:"api_key"`
		Model     string `mapstructure:"model"`
		Timeout   int    `mapstructure:"timeout"` // milliseconds
		CacheSize int    `mapstructure:"cache_size"`
	} `mapstructure:"embedding"`
}

// EscalationConfig routes no-match outcomes to the human helpline.
type EscalationConfig struct {
	Enabled  bool   `mapstructure:"enabled"`
	Region   string `mapstructure:"region"`
	TopicARN string `mapstructure:"topic_arn"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
	Output string `mapstructure:"output"`
}
