package domain

import "time"

// Config represents the main application configuration.
type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	Database DatabaseConfig `mapstructure:"database"`
	Search   SearchConfig   `mapstructure:"search"`
	Cache    CacheConfig    `mapstructure:"cache"`
	Review   ReviewConfig   `mapstructure:"review"`
	Logging  LoggingConfig  `mapstructure:"logging"`
}

// ServerConfig represents HTTP server configuration.
type ServerConfig struct {
	Host         string        `mapstructure:"host"`
	Port         int           `mapstructure:"port"`
	ReadTimeout  time.Duration `mapstructure:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
	IdleTimeout  time.Duration `mapstructure:"idle_timeout"`
}

// DatabaseConfig represents database connection configuration.
type DatabaseConfig struct {
	Host            string        `mapstructure:"host"`
	Port            int           `mapstructure:"port"`
	Database        string        `mapstructure:"database"`
	Username        string        `mapstructure:"username"`
	Password        string        `mapstructure:"password"`
	SSLMode         string        `mapstructure:"ssl_mode"`
	MaxOpenConns    int           `mapstructure:"max_open_conns"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
	MigrationsPath  string        `mapstructure:"migrations_path"`
}

// SearchConfig groups the literature search backends.
type SearchConfig struct {
	PubMed         PubMedConfig         `mapstructure:"pubmed"`
	ClinicalTrials ClinicalTrialsConfig `mapstructure:"clinicaltrials"`
	MaxResults     int                  `mapstructure:"max_results"`
	Timeout        time.Duration        `mapstructure:"timeout"`
}

// PubMedConfig represents NCBI E-utilities configuration.
type PubMedConfig struct {
	BaseURL   string        `mapstructure:"base_url"`
	APIKey    string        `mapstructure:"api_key"`
	Email     string        `mapstructure:"email"` // required by NCBI
	Timeout   time.Duration `mapstructure:"timeout"`
	RateLimit int           `mapstructure:"rate_limit"`
}

// ClinicalTrialsConfig represents ClinicalTrials.gov API configuration.
type ClinicalTrialsConfig struct {
	BaseURL   string        `mapstructure:"base_url"`
	Timeout   time.Duration `mapstructure:"timeout"`
	RateLimit int           `mapstructure:"rate_limit"`
}

// CacheConfig represents the search-result cache configuration.
type CacheConfig struct {
	Enabled     bool          `mapstructure:"enabled"`
	RedisURL    string        `mapstructure:"redis_url"`
	DefaultTTL  time.Duration `mapstructure:"default_ttl"`
	MaxRetries  int           `mapstructure:"max_retries"`
	PoolSize    int           `mapstructure:"pool_size"`
	PoolTimeout time.Duration `mapstructure:"pool_timeout"`
	LocalSize   int           `mapstructure:"local_size"`
	LocalTTL    time.Duration `mapstructure:"local_ttl"`
}

// ReviewConfig represents the clinician review store configuration.
type ReviewConfig struct {
	Backend    string `mapstructure:"backend"` // sqlite, postgres
	SQLitePath string `mapstructure:"sqlite_path"`
}

// LoggingConfig represents logging configuration.
type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
	Output string `mapstructure:"output"`
}
