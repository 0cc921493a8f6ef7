// Package main provides tests for the vggexpand CLI.
package main

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/verygoodgraphics/vgg-runtime-sub005/internal/cli"
	"github.com/verygoodgraphics/vgg-runtime-sub005/internal/cli/testutil"
)

func TestVersionCommand(t *testing.T) {
	cmd := cli.NewRootCmd()
	buf := new(bytes.Buffer)
	cmd.SetOut(buf)
	cmd.SetErr(buf)
	cmd.SetArgs([]string{"version"})

	if err := cmd.Execute(); err != nil {
		t.Errorf("version command error = %v", err)
	}
	if !strings.Contains(buf.String(), "vggexpand") {
		t.Errorf("version output should contain 'vggexpand', got: %s", buf.String())
	}
}

func TestHelpCommand(t *testing.T) {
	cmd := cli.NewRootCmd()
	buf := new(bytes.Buffer)
	cmd.SetOut(buf)
	cmd.SetErr(buf)
	cmd.SetArgs([]string{"--help"})

	if err := cmd.Execute(); err != nil {
		t.Errorf("help command error = %v", err)
	}
	for _, expected := range []string{"expand", "masters", "version", "completion"} {
		if !strings.Contains(buf.String(), expected) {
			t.Errorf("help output should contain '%s', got: %s", expected, buf.String())
		}
	}
}

func TestExpandCommand(t *testing.T) {
	dir := testutil.SetupTestDocuments(t)
	t.Chdir(t.TempDir())

	cmd := cli.NewRootCmd()
	buf := new(bytes.Buffer)
	cmd.SetOut(buf)
	cmd.SetErr(new(bytes.Buffer))
	cmd.SetArgs([]string{"expand", filepath.Join(dir, "card.json"), "--output", "json"})

	if err := cmd.Execute(); err != nil {
		t.Fatalf("expand command error = %v", err)
	}

	var reports []map[string]any
	if err := json.Unmarshal(buf.Bytes(), &reports); err != nil {
		t.Fatalf("expand output should be JSON: %v\n%s", err, buf.String())
	}
	if len(reports) != 1 {
		t.Errorf("expected 1 report, got %d", len(reports))
	}
	if _, err := os.Stat(filepath.Join(dir, "card.expanded.json")); err != nil {
		t.Errorf("expanded design should exist: %v", err)
	}
}

func TestMastersCommand(t *testing.T) {
	dir := testutil.SetupTestDocuments(t)
	t.Chdir(t.TempDir())

	cmd := cli.NewRootCmd()
	buf := new(bytes.Buffer)
	cmd.SetOut(buf)
	cmd.SetErr(new(bytes.Buffer))
	cmd.SetArgs([]string{"masters", filepath.Join(dir, "card.json"), "-o", "table"})

	if err := cmd.Execute(); err != nil {
		t.Fatalf("masters command error = %v", err)
	}
	if !strings.Contains(buf.String(), "card") {
		t.Errorf("masters output should list 'card', got: %s", buf.String())
	}
}

func TestInvalidConfigFlag(t *testing.T) {
	t.Chdir(t.TempDir())

	cmd := cli.NewRootCmd()
	cmd.SetOut(new(bytes.Buffer))
	cmd.SetErr(new(bytes.Buffer))
	cmd.SetArgs([]string{"masters", "card.json", "--scope", "everywhere"})

	if err := cmd.Execute(); err == nil {
		t.Error("expected an error for an unknown variable scope")
	}
}
