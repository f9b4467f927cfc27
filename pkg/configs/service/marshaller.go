package service

import (
	"fmt"
	"os"

	xe "github.com/opst/pht-central/pkg/errors"
	"gopkg.in/yaml.v3"
)

// load service config from a file.
//
// args:
//   - filepath: filepath refers a config file.
//
// returns *Config, error:
//
//	When loading success, returns `(*Config, nil)`.
//	Otherwise, returns `(nil, error)`.
func LoadConfig(filepath string) (*Config, error) {
	content, err := os.ReadFile(filepath)
	if err != nil {
		return nil, err
	}
	return Unmarshal(content)
}

// Unmarshal and verify config.
//
// Misconfiguration is reported as xe.Validation error.
func Unmarshal(conf []byte) (out *Config, err error) {
	var _out *ConfigMarshall
	if err := yaml.Unmarshal(conf, &_out); err != nil {
		return nil, xe.Classify(xe.Validation, "config is not yaml", err)
	}
	if _out == nil {
		return nil, xe.New(xe.Validation, "config is empty")
	}

	defer func() {
		if r := recover(); r != nil {
			out = nil
			err = xe.Errorf(xe.Validation, "config: %v", r)
		}
	}()
	return TrySeal(_out), nil
}

// Need returns the section, or an error naming it when it is missing.
func Need[T any](section *T, name string) (*T, error) {
	if section == nil {
		return nil, xe.New(xe.Validation, fmt.Sprintf("config: %s is required", name))
	}
	return section, nil
}
