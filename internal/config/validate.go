package config

import (
	"fmt"
	"slices"
)

var (
	variableScopes    = []string{"master", "all"}
	duplicatePolicies = []string{"first", "last"}
	logLevels         = []string{"debug", "info", "warn", "error"}
	logFormats        = []string{"text", "json"}
	outputFormats     = []string{OutputAuto, OutputTable, OutputJSON, OutputYAML}
)

// Validate checks if the configuration is valid.
func (c *Config) Validate() error {
	if err := oneOf("variable_scope", c.VariableScope, variableScopes); err != nil {
		return err
	}
	if err := oneOf("duplicate_masters", c.DuplicateMasters, duplicatePolicies); err != nil {
		return err
	}
	if err := oneOf("log_level", c.LogLevel, logLevels); err != nil {
		return err
	}
	if err := oneOf("log_format", c.LogFormat, logFormats); err != nil {
		return err
	}
	if err := oneOf("output", c.Output, outputFormats); err != nil {
		return err
	}
	if c.MaxDepth < 0 {
		return fmt.Errorf("max_depth must not be negative, got %d", c.MaxDepth)
	}
	if c.Jobs < 1 {
		return fmt.Errorf("jobs must be at least 1, got %d\nHint: use --jobs 1 for sequential runs", c.Jobs)
	}
	return nil
}

func oneOf(key, v string, allowed []string) error {
	if slices.Contains(allowed, v) {
		return nil
	}
	return fmt.Errorf("invalid %s %q (want one of %v)", key, v, allowed)
}
