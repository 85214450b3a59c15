package config

import (
	"encoding/json"
	"fmt"
	"os"
	"time"
)

// Config represents the entire application configuration
type Config struct {
	Env      string         `json:"env"`
	Port     int            `json:"port"`
	AppName  string         `json:"app_name"`
	MongoDB  MongoDBConfig  `json:"mongodb"`
	RabbitMQ RabbitMQConfig `json:"rabbitmq"`
	Redis    RedisConfig    `json:"redis"`
	S3       S3Config       `json:"s3"`
	Scoring  ScoringConfig  `json:"scoring"`
	Source   SourceConfig   `json:"source"`
	Pipeline PipelineConfig `json:"pipeline"`
	Logging  LoggingConfig  `json:"logging"`
	CORS     CORSConfig     `json:"cors"`
}

// MongoDBConfig contains MongoDB connection details
type MongoDBConfig struct {
	URI      string `json:"uri"`
	Username string `json:"username"`
	Password string `json:"password"`
	DB       string `json:"db"`
}

// RabbitMQConfig contains queue broker connection details
type RabbitMQConfig struct {
	Host          string `json:"host"`
	Port          int    `json:"port"`
	Username      string `json:"username"`
	Password      string `json:"password"`
	VHost         string `json:"vhost"`
	ExchangeName  string `json:"exchange_name"`
	PrefetchCount int    `json:"prefetch_count"`
}

type RedisConfig struct {
	Address  string `json:"address"`
	Password string `json:"password"`
	DB       int    `json:"db"`
	Prefix   string `json:"prefix"`
}

// S3Config locates the bucket holding owner profile documents
type S3Config struct {
	AccessKey string `json:"access_key"`
	SecretKey string `json:"secret_key"`
	Bucket    string `json:"bucket"`
	Region    string `json:"region"`
}

// ScoringConfig configures the external scoring gateway client
type ScoringConfig struct {
	BaseURL           string `json:"base_url"`
	APIKey            string `json:"api_key"`
	RequestsPerMinute int    `json:"requests_per_minute"`
	MaxRetries        int    `json:"max_retries"`
}

// SourceConfig configures the scrape-source collaborator client
type SourceConfig struct {
	BaseURL string `json:"base_url"`
	APIKey  string `json:"api_key"`
}

// PipelineConfig holds the batch pipeline tuning knobs
type PipelineConfig struct {
	BasicsThreshold     int `json:"basics_threshold"`
	PreferenceThreshold int `json:"preference_threshold"`
	ReaperIntervalSec   int `json:"reaper_interval_sec"`
	StaleAfterSec       int `json:"stale_after_sec"`
	DispatchMaxRetries  int `json:"dispatch_max_retries"`
	DispatchDelayMs     int `json:"dispatch_delay_ms"`
}

// ReaperInterval returns the sweep period, defaulting to five minutes
func (p PipelineConfig) ReaperInterval() time.Duration {
	if p.ReaperIntervalSec <= 0 {
		return 5 * time.Minute
	}
	return time.Duration(p.ReaperIntervalSec) * time.Second
}

// StaleAfter returns the cutoff age for abandoned batches, defaulting to ten minutes
func (p PipelineConfig) StaleAfter() time.Duration {
	if p.StaleAfterSec <= 0 {
		return 10 * time.Minute
	}
	return time.Duration(p.StaleAfterSec) * time.Second
}

// LoggingConfig contains logging-related configurations
type LoggingConfig struct {
	Level  string `json:"level"`
	Format string `json:"format"`
}

// CORSConfig contains Cross-Origin Resource Sharing settings
type CORSConfig struct {
	AllowedOrigins   []string `json:"allowed_origins"`
	AllowedMethods   []string `json:"allowed_methods"`
	AllowedHeaders   []string `json:"allowed_headers"`
	AllowCredentials bool     `json:"allow_credentials"`
	MaxAge           int      `json:"max_age,omitempty"`
}

// LoadConfig reads configuration from the specified file path
func LoadConfig(filePath string) (*Config, error) {
	configData, err := os.ReadFile(filePath)
	if err != nil {
		return nil, fmt.Errorf("error reading config file: %w", err)
	}

	var config Config
	if err := json.Unmarshal(configData, &config); err != nil {
		return nil, fmt.Errorf("error parsing config file: %w", err)
	}

	return &config, nil
}
