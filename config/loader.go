package config

import (
	"os"
	"time"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	"github.com/saiset-co/sai-interaction/types"
)

type Loader struct {
	validator *validator.Validate
}

func NewLoader() *Loader {
	return &Loader{
		validator: validator.New(validator.WithRequiredStructEnabled()),
	}
}

func (l *Loader) LoadFromFile(configPath string) (*types.ServiceConfig, error) {
	if configPath == "" {
		return nil, types.ErrConfigNotFound
	}

	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, types.WrapError(err, "failed to read config file")
	}

	config := l.Defaults()

	if err := yaml.Unmarshal(data, config); err != nil {
		return nil, types.WrapError(err, "failed to parse YAML config")
	}

	if err := l.validator.Struct(config); err != nil {
		return nil, types.WrapError(err, "config validation failed")
	}

	return config, nil
}

func (l *Loader) Defaults() *types.ServiceConfig {
	return &types.ServiceConfig{
		Server: &types.ServerConfig{
			Host:            "localhost",
			Port:            8080,
			ReadTimeout:     30,
			WriteTimeout:    30,
			IdleTimeout:     120,
			ShutdownTimeout: 10,
		},
		Logger: &types.LoggerConfig{
			Level: "debug",
		},
		KV: &types.KVConfig{
			Type: "memory",
		},
		Store: &types.StoreConfig{
			Type: "memory",
		},
		Catalog: &types.CatalogConfig{
			Collection:   "products",
			KeyPrefix:    "product:",
			TTL:          24 * time.Hour,
			FetchTimeout: 5 * time.Second,
		},
		Recency: &types.RecencyConfig{
			KeyPrefix: "recent:",
			Limit:     10,
			TTL:       24 * time.Hour,
		},
		Session: &types.SessionConfig{
			PruneEnabled:  false,
			PruneSchedule: "0 */10 * * * *",
			MaxIdle:       time.Hour,
		},
		Events: &types.EventsConfig{
			Enabled: true,
			Type:    "channel",
			Source:  "api",
		},
		Notify: &types.NotifyConfig{
			Enabled:      false,
			Host:         "localhost",
			Port:         8081,
			Path:         "/ws",
			SendBuffer:   64,
			WriteWait:    10 * time.Second,
			PongWait:     60 * time.Second,
			PingInterval: 54 * time.Second,
		},
		Metrics: &types.MetricsConfig{
			Enabled: false,
			Type:    "prometheus",
			Path:    "/metrics",
		},
		Health: &types.HealthConfig{
			Enabled: true,
			Path:    "/health",
		},
		Cron: &types.CronConfig{
			Enabled:  false,
			Timezone: "UTC",
		},
	}
}
