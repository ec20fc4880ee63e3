// SPDX-License-Identifier: GPL-3.0-or-later
package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/BurntSushi/toml"
)

type Config struct {
	Database string

	// IntervalMinutes between full sync passes; 0 runs a single pass and
	// exits.
	IntervalMinutes int

	// ThrottleSeconds is the pause between two mailbox configurations
	// within one pass, protecting remote mail servers from bursts.
	ThrottleSeconds int

	// AttemptTimeoutSeconds bounds connect+fetch for one configuration.
	AttemptTimeoutSeconds int

	Loglevel *string
}

func ReadConfig(filename string) (*Config, error) {
	config := &Config{
		Database:              "ingestion.db",
		ThrottleSeconds:       1,
		AttemptTimeoutSeconds: 120,
	}

	_, err := toml.DecodeFile(filename, config)
	if err != nil {
		return nil, fmt.Errorf("could not read config file: %w", err)
	}

	err = config.validate()
	if err != nil {
		return nil, err
	}

	return config, nil
}

func (c *Config) validate() error {
	if err := validateNonEmptyStringField(c.Database, "Database name must not be empty, set to a filename for the sqlite database"); err != nil {
		return err
	}

	if c.IntervalMinutes < 0 {
		return fmt.Errorf("IntervalMinutes must not be negative, set to 0 to sync once and exit")
	}

	if c.ThrottleSeconds < 0 {
		return fmt.Errorf("ThrottleSeconds must not be negative")
	}

	if c.AttemptTimeoutSeconds <= 0 {
		return fmt.Errorf("AttemptTimeoutSeconds must be positive, a sync attempt without a timeout can stall the whole batch")
	}

	return nil
}

func validateNonEmptyStringField(field string, err string) error {
	if len(strings.TrimSpace(field)) == 0 {
		return errors.New(err)
	}

	return nil
}
