package config

import (
	"strings"
	"sync/atomic"

	"gopkg.in/yaml.v3"

	"github.com/saiset-co/sai-interaction/types"
)

// ConfigurationManager serves the typed config and ad-hoc dot-path lookups
// from atomically swapped snapshots, so Load can run concurrently with
// readers.
type ConfigurationManager struct {
	configPath string
	loader     *Loader
	config     atomic.Pointer[types.ServiceConfig]
	tree       atomic.Pointer[map[string]interface{}]
}

func NewConfigurationManager(configPath string) (*ConfigurationManager, error) {
	cm := &ConfigurationManager{
		configPath: configPath,
		loader:     NewLoader(),
	}

	if err := cm.Load(); err != nil {
		return nil, types.WrapError(err, "failed to load initial configuration")
	}

	return cm, nil
}

func (cm *ConfigurationManager) Load() error {
	config, err := cm.loader.LoadFromFile(cm.configPath)
	if err != nil {
		return err
	}

	tree, err := configTree(config)
	if err != nil {
		return types.WrapError(err, "failed to index configuration")
	}

	cm.config.Store(config)
	cm.tree.Store(&tree)

	return nil
}

func (cm *ConfigurationManager) GetConfig() *types.ServiceConfig {
	return cm.config.Load()
}

func (cm *ConfigurationManager) GetValue(path string, defaultValue interface{}) interface{} {
	value := cm.lookup(path)
	if value == nil {
		return defaultValue
	}
	return value
}

// GetAs decodes the subtree at path into target via a yaml round trip, so
// target can be any yaml-taggable struct.
func (cm *ConfigurationManager) GetAs(path string, target interface{}) error {
	value := cm.lookup(path)
	if value == nil {
		return types.Errorf(types.ErrConfigNotFound, "path: %s", path)
	}

	valueBytes, err := yaml.Marshal(value)
	if err != nil {
		return types.WrapError(err, "failed to marshal config value")
	}

	if err := yaml.Unmarshal(valueBytes, target); err != nil {
		return types.WrapError(err, "failed to unmarshal config value")
	}

	return nil
}

func (cm *ConfigurationManager) lookup(path string) interface{} {
	tree := cm.tree.Load()
	if tree == nil {
		return nil
	}

	var current interface{} = *tree
	if path == "" {
		return current
	}

	for _, segment := range strings.Split(path, ".") {
		node, ok := current.(map[string]interface{})
		if !ok {
			return nil
		}
		current, ok = node[segment]
		if !ok {
			return nil
		}
	}

	return current
}

// configTree renders the typed config back into a generic map keyed the same
// way as the source yaml.
func configTree(config *types.ServiceConfig) (map[string]interface{}, error) {
	configBytes, err := yaml.Marshal(config)
	if err != nil {
		return nil, err
	}

	tree := make(map[string]interface{})
	if err := yaml.Unmarshal(configBytes, &tree); err != nil {
		return nil, err
	}

	return tree, nil
}
