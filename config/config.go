package config

import (
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the root configuration.
type Config struct {
	SessionWatch SessionWatchConfig `yaml:"sessionwatch"`
}

// SessionWatchConfig is the project configuration.
type SessionWatchConfig struct {
	Server   ServerConfig   `yaml:"server"`
	Input    InputConfig    `yaml:"input"`
	Analyzer AnalyzerConfig `yaml:"analyzer"`
	Rules    RulesConfig    `yaml:"rules"`
	Scorer   ScorerConfig   `yaml:"scorer"`
	Storage  StorageConfig  `yaml:"storage"`
	Publish  PublishConfig  `yaml:"publish"`
	Pipeline PipelineConfig `yaml:"pipeline"`
	Reaper   ReaperConfig   `yaml:"reaper"`
	Logging  LoggingConfig  `yaml:"logging"`
}

// ServerConfig controls the HTTP/WebSocket listener.
type ServerConfig struct {
	Addr string `yaml:"addr"`
}

// InputConfig controls the optional queue ingest. Mode is one of
// none, redis, kafka.
type InputConfig struct {
	Mode  string           `yaml:"mode"`
	Redis RedisQueueConfig `yaml:"redis"`
	Kafka KafkaInputConfig `yaml:"kafka"`
}

// RedisQueueConfig controls Redis list ingest.
type RedisQueueConfig struct {
	Addr         string        `yaml:"addr"`
	Password     string        `yaml:"password"`
	DB           int           `yaml:"db"`
	Key          string        `yaml:"key"`
	BlockTimeout time.Duration `yaml:"block_timeout"`
}

// KafkaInputConfig controls Kafka ingest.
type KafkaInputConfig struct {
	Brokers []string `yaml:"brokers"`
	Topic   string   `yaml:"topic"`
	GroupID string   `yaml:"group_id"`
}

// AnalyzerConfig controls the rule thresholds.
type AnalyzerConfig struct {
	TabSwitchThreshold  int           `yaml:"tab_switch_threshold"`
	TabSwitchWindow     time.Duration `yaml:"tab_switch_window"`
	InactivityThreshold time.Duration `yaml:"inactivity_threshold"`
	HeartbeatTimeout    time.Duration `yaml:"heartbeat_timeout"`
	ScoreThreshold      float64       `yaml:"score_threshold"`
}

// RulesConfig controls supplementary detection rules.
type RulesConfig struct {
	Enabled bool   `yaml:"enabled"`
	Path    string `yaml:"path"`
}

// ScorerConfig controls the remote anomaly scorer.
type ScorerConfig struct {
	Enabled bool              `yaml:"enabled"`
	URL     string            `yaml:"url"`
	Timeout time.Duration     `yaml:"timeout"`
	Headers map[string]string `yaml:"headers"`
}

// StorageConfig controls event/alert persistence.
type StorageConfig struct {
	Mode       string            `yaml:"mode"` // file|clickhouse
	File       FileStorageConfig `yaml:"file"`
	ClickHouse ClickHouseConfig  `yaml:"clickhouse"`
}

// FileStorageConfig config for local JSONL output.
type FileStorageConfig struct {
	EventsPath string `yaml:"events_path"`
	AlertsPath string `yaml:"alerts_path"`
}

// ClickHouseConfig config for ClickHouse persistence.
type ClickHouseConfig struct {
	Addr        string        `yaml:"addr"`
	Database    string        `yaml:"database"`
	Username    string        `yaml:"username"`
	Password    string        `yaml:"password"`
	DialTimeout time.Duration `yaml:"dial_timeout"`
}

// PublishConfig controls the Redis pub/sub fan-out.
type PublishConfig struct {
	Enabled  bool   `yaml:"enabled"`
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
	Channel  string `yaml:"channel"`
}

// PipelineConfig controls pipeline behavior.
type PipelineConfig struct {
	QueueSize     int           `yaml:"queue_size"`
	SinkWorkers   int           `yaml:"sink_workers"`
	RetryAttempts int           `yaml:"retry_attempts"`
	RetryBackoff  time.Duration `yaml:"retry_backoff"`
}

// ReaperConfig controls the session reaper.
type ReaperConfig struct {
	Interval time.Duration `yaml:"interval"`
	Expiry   time.Duration `yaml:"expiry"`
}

// LoggingConfig controls logging output.
type LoggingConfig struct {
	Enabled bool   `yaml:"enabled"`
	Level   string `yaml:"level"`
	Format  string `yaml:"format"`
}

// LoadConfig reads and parses a YAML config file.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}

	return &cfg, nil
}
