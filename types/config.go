package types

import (
	"time"
)

type ConfigManager interface {
	Load() error
	GetConfig() *ServiceConfig
	GetValue(path string, defaultValue interface{}) interface{}
	GetAs(path string, target interface{}) error
}

type ServiceConfig struct {
	Name    string          `yaml:"name" json:"name" validate:"required"`
	Version string          `yaml:"version" json:"version" validate:"required"`
	Server  *ServerConfig   `yaml:"server" json:"server"`
	Logger  *LoggerConfig   `yaml:"logger" json:"logger"`
	KV      *KVConfig       `yaml:"kv" json:"kv"`
	Store   *StoreConfig    `yaml:"store" json:"store"`
	Catalog *CatalogConfig  `yaml:"catalog" json:"catalog"`
	Recency *RecencyConfig  `yaml:"recency" json:"recency"`
	Session *SessionConfig  `yaml:"session" json:"session"`
	Events  *EventsConfig   `yaml:"events" json:"events"`
	Notify  *NotifyConfig   `yaml:"notify" json:"notify"`
	Metrics *MetricsConfig  `yaml:"metrics" json:"metrics"`
	Health  *HealthConfig   `yaml:"health" json:"health"`
	Cron    *CronConfig     `yaml:"cron" json:"cron"`
}

type ServerConfig struct {
	Host            string `yaml:"host" json:"host"`
	Port            int    `yaml:"port" json:"port" validate:"min=1,max=65535"`
	ReadTimeout     int    `yaml:"read_timeout" json:"read_timeout"`
	WriteTimeout    int    `yaml:"write_timeout" json:"write_timeout"`
	IdleTimeout     int    `yaml:"idle_timeout" json:"idle_timeout"`
	ShutdownTimeout int    `yaml:"shutdown_timeout" json:"shutdown_timeout"`
}

type LoggerConfig struct {
	Type   string      `yaml:"type" json:"type"`
	Level  string      `yaml:"level" json:"level"`
	Config interface{} `yaml:"config" json:"config"`
}

type KVConfig struct {
	Type   string      `yaml:"type" json:"type" validate:"required"`
	Config interface{} `yaml:"config" json:"config"`
}

type StoreConfig struct {
	Type   string      `yaml:"type" json:"type" validate:"required"`
	Path   string      `yaml:"path" json:"path"`
	Config interface{} `yaml:"config" json:"config"`
}

type CatalogConfig struct {
	Collection   string        `yaml:"collection" json:"collection"`
	KeyPrefix    string        `yaml:"key_prefix" json:"key_prefix"`
	TTL          time.Duration `yaml:"ttl" json:"ttl" validate:"min=0"`
	FetchTimeout time.Duration `yaml:"fetch_timeout" json:"fetch_timeout" validate:"min=0"`
}

type RecencyConfig struct {
	KeyPrefix string        `yaml:"key_prefix" json:"key_prefix"`
	Limit     int64         `yaml:"limit" json:"limit" validate:"min=0"`
	TTL       time.Duration `yaml:"ttl" json:"ttl" validate:"min=0"`
}

type SessionConfig struct {
	PruneEnabled  bool          `yaml:"prune_enabled" json:"prune_enabled"`
	PruneSchedule string        `yaml:"prune_schedule" json:"prune_schedule"`
	MaxIdle       time.Duration `yaml:"max_idle" json:"max_idle" validate:"min=0"`
}

type EventsConfig struct {
	Enabled bool        `yaml:"enabled" json:"enabled"`
	Type    string      `yaml:"type" json:"type"`
	Source  string      `yaml:"source" json:"source"`
	Config  interface{} `yaml:"config" json:"config"`
}

type NotifyConfig struct {
	Enabled      bool          `yaml:"enabled" json:"enabled"`
	Host         string        `yaml:"host" json:"host"`
	Port         int           `yaml:"port" json:"port"`
	Path         string        `yaml:"path" json:"path"`
	SendBuffer   int           `yaml:"send_buffer" json:"send_buffer"`
	WriteWait    time.Duration `yaml:"write_wait" json:"write_wait"`
	PongWait     time.Duration `yaml:"pong_wait" json:"pong_wait"`
	PingInterval time.Duration `yaml:"ping_interval" json:"ping_interval"`
}

type MetricsConfig struct {
	Enabled bool        `yaml:"enabled" json:"enabled"`
	Type    string      `yaml:"type" json:"type"`
	Path    string      `yaml:"path" json:"path"`
	Config  interface{} `yaml:"config" json:"config"`
}

type HealthConfig struct {
	Enabled bool   `yaml:"enabled" json:"enabled"`
	Path    string `yaml:"path" json:"path"`
}

type CronConfig struct {
	Enabled  bool   `yaml:"enabled" json:"enabled"`
	Timezone string `yaml:"timezone" json:"timezone"`
}
