// Package config loads the settings of the vggexpand CLI.
//
// Values are layered with koanf. Precedence, highest first: command-line
// flags, VGGEXPAND_* environment variables, the vggexpand.yaml file, then the
// built-in defaults.
package config

// Config holds every CLI setting.
type Config struct {
	// VariableScope is "master" or "all".
	VariableScope string `koanf:"variable_scope"`
	// MaxDepth bounds instance nesting; 0 uses the engine default.
	MaxDepth int `koanf:"max_depth"`
	// DuplicateMasters is "first" or "last".
	DuplicateMasters string `koanf:"duplicate_masters"`

	LogLevel  string `koanf:"log_level"`
	LogFormat string `koanf:"log_format"`

	// Jobs is how many documents are expanded concurrently.
	Jobs int `koanf:"jobs"`
	// Output is the report format: auto, table, json or yaml.
	Output string `koanf:"output"`
	// OutDir is where expanded documents are written. Empty writes next to
	// the input.
	OutDir string `koanf:"out_dir"`

	// File is the config file that was loaded, if any.
	File string `koanf:"-"`
}

// Output formats.
const (
	OutputAuto  = "auto"
	OutputTable = "table"
	OutputJSON  = "json"
	OutputYAML  = "yaml"
)
