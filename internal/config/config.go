package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// CaptureConfig holds the configuration for the packet capture collector.
type CaptureConfig struct {
	Interface          string `yaml:"interface"`
	BPFFilter          string `yaml:"bpf_filter"`
	SnapshotLen        int32  `yaml:"snapshot_len"`
	Promiscuous        bool   `yaml:"promiscuous"`
	SizeOfEventChannel int    `yaml:"size_of_event_channel"`
}

// JournalConfig controls the collector's local event journal.
type JournalConfig struct {
	Enabled           bool   `yaml:"enabled"`
	Path              string `yaml:"path"`
	Encoding          string `yaml:"encoding"`
	NumWorkers        int    `yaml:"num_workers"`
	ChannelBufferSize int    `yaml:"channel_buffer_size"`
}

// ProbeConfig holds the NATS transport settings shared by the collector
// (publisher) and the server (subscriber).
type ProbeConfig struct {
	Enabled bool   `yaml:"enabled"`
	NATSURL string `yaml:"nats_url"`
	Subject string `yaml:"subject"`
}

// ServerConfig holds the API server settings.
type ServerConfig struct {
	ListenAddr string `yaml:"listen_addr"`
}

// StoreConfig holds the profile store settings.
type StoreConfig struct {
	NumShards uint32 `yaml:"num_shards"`
}

// HubConfig holds the live channel settings.
type HubConfig struct {
	ClientQueueSize int    `yaml:"client_queue_size"`
	PingInterval    string `yaml:"ping_interval"`
	PongTimeout     string `yaml:"pong_timeout"`
}

// ClickHouseConfig holds connection settings for the history writer.
type ClickHouseConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	Database string `yaml:"database"`
	Username string `yaml:"username"`
	Password string `yaml:"password"`
}

// GobConfig holds settings for the file-based history writer.
type GobConfig struct {
	RootPath string `yaml:"root_path"`
}

// HistoryWriterDef defines a single profile snapshot writer.
type HistoryWriterDef struct {
	Type             string           `yaml:"type"`
	Enabled          bool             `yaml:"enabled"`
	SnapshotInterval string           `yaml:"snapshot_interval"`
	ClickHouse       ClickHouseConfig `yaml:"clickhouse"`
	Gob              GobConfig        `yaml:"gob"`
}

// Config is the top-level configuration struct for the entire application.
type Config struct {
	Capture CaptureConfig      `yaml:"capture"`
	Journal JournalConfig      `yaml:"journal"`
	Probe   ProbeConfig        `yaml:"probe"`
	Server  ServerConfig       `yaml:"server"`
	Store   StoreConfig        `yaml:"store"`
	Hub     HubConfig          `yaml:"hub"`
	History []HistoryWriterDef `yaml:"history"`
}

// LoadConfig reads the configuration from a YAML file and returns a Config struct.
func LoadConfig(filePath string) (*Config, error) {
	data, err := os.ReadFile(filePath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var cfg Config
	err = yaml.Unmarshal(data, &cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to unmarshal config YAML: %w", err)
	}

	return &cfg, nil
}
