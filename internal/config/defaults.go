package config

import "runtime"

// Default configuration values.
const (
	DefaultVariableScope    = "master"
	DefaultMaxDepth         = 64
	DefaultDuplicateMasters = "first"
	DefaultLogLevel         = "warn"
	DefaultLogFormat        = "text"
	DefaultOutput           = OutputAuto
)

// DefaultJobs is the default batch concurrency.
func DefaultJobs() int {
	return runtime.GOMAXPROCS(0)
}

func defaults() map[string]any {
	return map[string]any{
		"variable_scope":    DefaultVariableScope,
		"max_depth":         DefaultMaxDepth,
		"duplicate_masters": DefaultDuplicateMasters,
		"log_level":         DefaultLogLevel,
		"log_format":        DefaultLogFormat,
		"jobs":              DefaultJobs(),
		"output":            DefaultOutput,
		"out_dir":           "",
	}
}

// Default returns the configuration used when nothing else is set.
func Default() *Config {
	return &Config{
		VariableScope:    DefaultVariableScope,
		MaxDepth:         DefaultMaxDepth,
		DuplicateMasters: DefaultDuplicateMasters,
		LogLevel:         DefaultLogLevel,
		LogFormat:        DefaultLogFormat,
		Jobs:             DefaultJobs(),
		Output:           DefaultOutput,
	}
}
