package infra

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// SecretConfig matches the structure of secrets/live.yaml: credentials
// kept out of the main config file.
type SecretConfig struct {
	API struct {
		Aster struct {
			APIKey    string `yaml:"api_key"`
			APISecret string `yaml:"api_secret"`
		} `yaml:"aster"`
	} `yaml:"api"`
}

// LoadSecretConfig loads API keys from a separate yaml file. A missing
// file is an error; callers that allow keyless runs skip the call.
func LoadSecretConfig(path string) (*SecretConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read secret config: %w", err)
	}

	var cfg SecretConfig
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse secret config: %w", err)
	}

	return &cfg, nil
}

// ApplyTo copies the credentials into the main config, without
// overriding values the environment already provided.
func (s *SecretConfig) ApplyTo(cfg *Config) {
	if cfg.API.Aster.APIKey == "" {
		cfg.API.Aster.APIKey = s.API.Aster.APIKey
	}
	if cfg.API.Aster.APISecret == "" {
		cfg.API.Aster.APISecret = s.API.Aster.APISecret
	}
}
