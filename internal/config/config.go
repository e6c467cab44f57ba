// Package config loads the optional zmssl defaults file.
//
// The file lives at <platform home>/conf/zmssl.yaml and supplies defaults
// for values that would otherwise be passed as flags on every invocation,
// which matters mostly for cron runs:
//
//	name: mail.example.com
//	email: admin@example.com
//	days: 14
//	norestart: false
//
// Flags always override file values. A missing file is not an error.
package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// DefaultsFile is the file name under the platform's conf directory.
const DefaultsFile = "zmssl.yaml"

// DefaultThresholdDays is the renewal window used when neither the flag
// nor the defaults file sets one.
const DefaultThresholdDays = 14

// Defaults holds values read from the defaults file.
type Defaults struct {
	Name      string `yaml:"name"`
	Email     string `yaml:"email"`
	Days      int    `yaml:"days"`
	NoRestart bool   `yaml:"norestart"`
}

// Load reads the defaults file at path. A missing file yields zero
// Defaults and no error; a malformed file is an error.
func Load(path string) (*Defaults, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return &Defaults{}, nil
		}
		return nil, fmt.Errorf("failed to read defaults file: %w", err)
	}

	d := &Defaults{}
	if err := yaml.Unmarshal(data, d); err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", path, err)
	}
	return d, nil
}

// Save writes the defaults to path. Used by tests and by operators who
// prefer generating the file over editing it.
func (d *Defaults) Save(path string) error {
	data, err := yaml.Marshal(d)
	if err != nil {
		return fmt.Errorf("failed to marshal defaults: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write defaults file: %w", err)
	}
	return nil
}
