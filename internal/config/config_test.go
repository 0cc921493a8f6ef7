package config

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newFlags(t *testing.T, args ...string) *pflag.FlagSet {
	t.Helper()
	fs := pflag.NewFlagSet("test", pflag.ContinueOnError)
	fs.Int("max-depth", 0, "")
	fs.Int("jobs", 0, "")
	fs.String("scope", "", "")
	fs.String("duplicates", "", "")
	fs.String("log-level", "", "")
	fs.String("output", "", "")
	fs.String("out-dir", "", "")
	require.NoError(t, fs.Parse(args))
	return fs
}

func writeConfig(t *testing.T, dir, content string) string {
	t.Helper()
	path := filepath.Join(dir, ConfigFileName)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestLoad_Defaults(t *testing.T) {
	t.Chdir(t.TempDir())

	cfg, err := Load("", nil)
	require.NoError(t, err)

	want := Default()
	assert.Equal(t, want, cfg)
	assert.Empty(t, cfg.File)
}

func TestLoad_Precedence(t *testing.T) {
	dir := t.TempDir()
	path := writeConfig(t, dir, `
max_depth: 10
jobs: 3
log_level: info
output: table
duplicate_masters: last
`)
	t.Setenv("VGGEXPAND_MAX_DEPTH", "20")
	t.Setenv("VGGEXPAND_OUTPUT", "json")

	cfg, err := Load(path, newFlags(t, "--max-depth=30", "--scope=all"))
	require.NoError(t, err)

	assert.Equal(t, 30, cfg.MaxDepth, "flag beats env and file")
	assert.Equal(t, "json", cfg.Output, "env beats file")
	assert.Equal(t, 3, cfg.Jobs, "file beats defaults")
	assert.Equal(t, "info", cfg.LogLevel)
	assert.Equal(t, "last", cfg.DuplicateMasters)
	assert.Equal(t, "all", cfg.VariableScope, "renamed flag maps to its key")
	assert.Equal(t, DefaultLogFormat, cfg.LogFormat)
	assert.Equal(t, path, cfg.File)
}

func TestLoad_UnsetFlagsDoNotOverride(t *testing.T) {
	path := writeConfig(t, t.TempDir(), "jobs: 2\n")

	cfg, err := Load(path, newFlags(t))
	require.NoError(t, err)
	assert.Equal(t, 2, cfg.Jobs)
}

func TestLoad_FindsFileUpward(t *testing.T) {
	root := t.TempDir()
	writeConfig(t, root, "variable_scope: ALL\n")
	nested := filepath.Join(root, "a", "b")
	require.NoError(t, os.MkdirAll(nested, 0o750))
	t.Chdir(nested)

	cfg, err := Load("", nil)
	require.NoError(t, err)
	assert.Equal(t, "all", cfg.VariableScope)
	assert.Equal(t, filepath.Join(root, ConfigFileName), cfg.File)
}

func TestLoad_Errors(t *testing.T) {
	tests := []struct {
		name      string
		file      string
		errSubstr string
	}{
		{name: "bad yaml", file: "jobs: [", errSubstr: "error reading config file"},
		{name: "bad scope", file: "variable_scope: global\n", errSubstr: "invalid variable_scope"},
		{name: "bad output", file: "output: xml\n", errSubstr: "invalid output"},
		{name: "zero jobs", file: "jobs: 0\n", errSubstr: "jobs must be at least 1"},
		{name: "negative depth", file: "max_depth: -1\n", errSubstr: "max_depth must not be negative"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := writeConfig(t, t.TempDir(), tt.file)
			_, err := Load(path, nil)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.errSubstr)
		})
	}
}

func TestLoad_MissingExplicitFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"), nil)
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
	}{
		{name: "defaults", mutate: func(*Config) {}},
		{name: "json logs", mutate: func(c *Config) { c.LogFormat = "json" }},
		{name: "unknown log level", mutate: func(c *Config) { c.LogLevel = "trace" }, wantErr: true},
		{name: "unknown log format", mutate: func(c *Config) { c.LogFormat = "xml" }, wantErr: true},
		{name: "unknown policy", mutate: func(c *Config) { c.DuplicateMasters = "middle" }, wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestNewLogger(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLogger("warn", "json", &buf)
	logger.Info("hidden")
	logger.Warn("shown", "master", "m1")

	out := buf.String()
	assert.NotContains(t, out, "hidden")
	assert.Contains(t, out, `"msg":"shown"`)
	assert.Contains(t, out, `"master":"m1"`)

	buf.Reset()
	NewLogger("bogus", "text", &buf).Info("fallback")
	assert.Contains(t, buf.String(), "msg=fallback")
}

func TestLoggerContext(t *testing.T) {
	assert.NotNil(t, GetLogger(context.Background()))

	var buf bytes.Buffer
	l := NewLogger("debug", "text", &buf)
	ctx := WithLogger(context.Background(), l)
	assert.Same(t, l, GetLogger(ctx))
}

func TestConfigContext(t *testing.T) {
	assert.Equal(t, Default(), GetConfig(context.Background()))

	cfg := Default()
	cfg.MaxDepth = 3
	ctx := WithConfig(context.Background(), cfg)
	assert.Same(t, cfg, GetConfig(ctx))
}
