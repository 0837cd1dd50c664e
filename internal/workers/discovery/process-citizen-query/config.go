// internal/workers/discovery/process-citizen-query/config.go
package processcitizenquery

import "time"

type Config struct {
	Timeout time.Duration
}

func LoadConfig() *Config {
	return &Config{
		Timeout: 10 * time.Second,
	}
}
