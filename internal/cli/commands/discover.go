package commands

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// File name suffixes of the documents the CLI reads and writes.
const (
	designExt      = ".json"
	layoutSuffix   = ".layout.json"
	expandedSuffix = ".expanded.json"
	expandedLayout = ".expanded.layout.json"
)

// Document is one design file and its optional layout file.
type Document struct {
	Design string
	Layout string
}

// Base returns the design path without its extension.
func (d Document) Base() string {
	return strings.TrimSuffix(d.Design, designExt)
}

// OutputPaths returns where the expanded design and layout are written.
// An empty outDir writes next to the input.
func (d Document) OutputPaths(outDir string) (design, layout string) {
	base := d.Base()
	if outDir != "" {
		base = filepath.Join(outDir, filepath.Base(base))
	}
	return base + expandedSuffix, base + expandedLayout
}

// isDesignFile reports whether path names a design input, as opposed to a
// layout document or an output of a previous run.
func isDesignFile(path string) bool {
	name := filepath.Base(path)
	if !strings.HasSuffix(name, designExt) {
		return false
	}
	for _, suffix := range []string{layoutSuffix, expandedSuffix, expandedLayout} {
		if strings.HasSuffix(name, suffix) {
			return false
		}
	}
	return true
}

// isInputFile reports whether a change to path can affect a run.
func isInputFile(path string) bool {
	name := filepath.Base(path)
	if strings.HasSuffix(name, expandedSuffix) || strings.HasSuffix(name, expandedLayout) {
		return false
	}
	return strings.HasSuffix(name, designExt)
}

// discoverDocuments expands the command arguments into documents. A
// directory contributes every design file directly inside it. The layout of
// a design x.json is x.layout.json when it exists; layout overrides that for
// a single design argument.
func discoverDocuments(args []string, layout string) ([]Document, error) {
	var docs []Document
	seen := make(map[string]bool)
	add := func(path string) {
		if seen[path] {
			return
		}
		seen[path] = true
		docs = append(docs, Document{Design: path, Layout: siblingLayout(path)})
	}

	for _, arg := range args {
		info, err := os.Stat(arg)
		if err != nil {
			return nil, fmt.Errorf("cannot read %s: %w", arg, err)
		}
		if !info.IsDir() {
			add(filepath.Clean(arg))
			continue
		}
		entries, err := os.ReadDir(arg)
		if err != nil {
			return nil, fmt.Errorf("cannot list %s: %w", arg, err)
		}
		var names []string
		for _, e := range entries {
			if !e.IsDir() && isDesignFile(e.Name()) {
				names = append(names, e.Name())
			}
		}
		sort.Strings(names)
		for _, name := range names {
			add(filepath.Join(arg, name))
		}
	}

	if layout != "" {
		if len(docs) != 1 {
			return nil, fmt.Errorf("--layout needs exactly one design file, got %d\nHint: name layouts <design>.layout.json to pair them automatically", len(docs))
		}
		docs[0].Layout = layout
	}
	if len(docs) == 0 {
		return nil, fmt.Errorf("no design documents found in %v", args)
	}
	return docs, nil
}

func siblingLayout(design string) string {
	candidate := strings.TrimSuffix(design, designExt) + layoutSuffix
	if _, err := os.Stat(candidate); err == nil {
		return candidate
	}
	return ""
}

// affectedDocuments returns the documents whose design or layout is among
// the changed paths.
func affectedDocuments(docs []Document, changed []string) []Document {
	set := make(map[string]bool, len(changed))
	for _, c := range changed {
		set[filepath.Clean(c)] = true
	}
	var out []Document
	for _, d := range docs {
		if set[filepath.Clean(d.Design)] || (d.Layout != "" && set[filepath.Clean(d.Layout)]) {
			out = append(out, d)
		}
	}
	return out
}
