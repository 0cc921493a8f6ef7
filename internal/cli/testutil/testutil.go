// Package testutil provides test utilities for CLI testing.
package testutil

import (
	"bytes"
	"os"
	"path/filepath"
	"regexp"
	"testing"

	"github.com/verygoodgraphics/vgg-runtime-sub005/internal/cli/output"
)

// CardDesign is a small design with one master and two instances, one of
// them resized.
const CardDesign = `{
	"version": "1.0",
	"frames": [{"id": "page", "class": "frame", "frame": {"width": 400, "height": 300}, "childObjects": [
		{"id": "c1", "class": "symbolInstance", "masterId": "card", "frame": {"width": 100, "height": 50}},
		{"id": "c2", "class": "symbolInstance", "masterId": "card", "frame": {"y": 60, "width": 200, "height": 50},
		 "overrideValues": [{"objectId": ["title"], "overrideName": "content", "overrideValue": "Second"}]}
	]}],
	"references": [{"id": "card", "class": "symbolMaster", "frame": {"width": 100, "height": 50}, "childObjects": [
		{"id": "title", "class": "text", "content": "First", "frame": {"x": 10, "y": 10, "width": 80, "height": 20}}
	]}]
}`

// CardLayout stretches the card title with its container.
const CardLayout = `{
	"title": {"resizing": {"horizontal": "fixStartEnd"}, "width": {"value": 80}}
}`

// BrokenDesign references a master that does not exist.
const BrokenDesign = `{
	"frames": [{"id": "page", "class": "frame", "childObjects": [
		{"id": "lost", "class": "symbolInstance", "masterId": "nowhere"}
	]}]
}`

// LoopDesign has a master that contains an instance of itself.
const LoopDesign = `{
	"frames": [{"id": "page", "class": "frame", "childObjects": [
		{"id": "i", "class": "symbolInstance", "masterId": "loop"}
	]}],
	"references": [{"id": "loop", "class": "symbolMaster", "childObjects": [
		{"id": "inner", "class": "symbolInstance", "masterId": "loop"}
	]}]
}`

// SetupTestDocuments writes a directory with a card design, its layout and a
// design with a missing master. It returns the directory.
func SetupTestDocuments(t *testing.T) string {
	t.Helper()

	dir := t.TempDir()
	files := map[string]string{
		"card.json":        CardDesign,
		"card.layout.json": CardLayout,
		"broken.json":      BrokenDesign,
	}
	for name, content := range files {
		if err := os.WriteFile(filepath.Join(dir, name), []byte(content), 0o600); err != nil {
			t.Fatalf("failed to create %s: %v", name, err)
		}
	}
	return dir
}

// TestRenderer wraps a Renderer for testing with captured output buffers.
type TestRenderer struct {
	*output.Renderer
	Out    *bytes.Buffer
	ErrOut *bytes.Buffer
}

// NewTestRenderer creates a new test renderer with the specified mode and TTY state.
// Output is captured in buffers for inspection.
func NewTestRenderer(mode output.Mode, isTTY bool) *TestRenderer {
	out := &bytes.Buffer{}
	errOut := &bytes.Buffer{}
	return &TestRenderer{
		Renderer: output.NewRendererWithTTY(out, errOut, isTTY, mode),
		Out:      out,
		ErrOut:   errOut,
	}
}

// Output returns the combined stdout output as a string.
func (tr *TestRenderer) Output() string {
	return tr.Out.String()
}

// ErrorOutput returns the stderr output as a string.
func (tr *TestRenderer) ErrorOutput() string {
	return tr.ErrOut.String()
}

// ansiPattern matches ANSI escape codes.
var ansiPattern = regexp.MustCompile(`\x1b\[[0-9;]*[a-zA-Z]`)

// AssertNoANSI checks that a string contains no ANSI escape codes.
func AssertNoANSI(t *testing.T, s string) {
	t.Helper()
	if ansiPattern.MatchString(s) {
		t.Errorf("string contains ANSI escape codes: %q", s)
	}
}
