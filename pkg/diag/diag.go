// Package diag collects the non-fatal problems found while expanding a
// design document. Expansion never aborts on a bad node; it records a
// Diagnostic and carries on, so callers always get a best-effort tree plus
// a Report describing what was skipped.
package diag

import (
	"fmt"
	"sort"
	"strings"

	"github.com/google/uuid"
)

// =============================================================================
// Severity
// =============================================================================

// Severity indicates the importance of a diagnostic.
type Severity int

// Severity levels for diagnostics.
const (
	// SeverityError marks a branch that could not be expanded at all.
	SeverityError Severity = iota
	// SeverityWarning marks input that was ignored.
	SeverityWarning
	// SeverityInfo marks expected, harmless skips.
	SeverityInfo
)

// String returns the string representation of the severity.
func (s Severity) String() string {
	switch s {
	case SeverityError:
		return "error"
	case SeverityWarning:
		return "warning"
	case SeverityInfo:
		return "info"
	default:
		return "unknown"
	}
}

// ParseSeverity converts a string to a Severity value.
// Returns the severity and true if valid, or SeverityWarning and false if invalid.
func ParseSeverity(s string) (Severity, bool) {
	switch strings.ToLower(s) {
	case "error":
		return SeverityError, true
	case "warning":
		return SeverityWarning, true
	case "info":
		return SeverityInfo, true
	default:
		return SeverityWarning, false
	}
}

// MarshalText implements encoding.TextMarshaler so reports encode severities by name.
func (s Severity) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (s *Severity) UnmarshalText(text []byte) error {
	sev, ok := ParseSeverity(string(text))
	if !ok {
		return fmt.Errorf("unknown severity %q", string(text))
	}
	*s = sev
	return nil
}

// =============================================================================
// Diagnostic
// =============================================================================

// Code classifies a diagnostic.
type Code string

// Diagnostic codes.
const (
	CodeMissingMaster     Code = "missing-master"
	CodeDuplicateMaster   Code = "duplicate-master"
	CodeMalformedOverride Code = "malformed-override"
	CodeOverrideTarget    Code = "override-target-missing"
	CodeMalformedVariable Code = "malformed-variable"
	CodeMalformedRule     Code = "malformed-rule"
	CodeCycle             Code = "cycle"
	CodeDuplicateID       Code = "duplicate-id"
)

// Diagnostic is a single recovered problem.
type Diagnostic struct {
	Severity Severity `json:"severity" yaml:"severity"`
	Code     Code     `json:"code" yaml:"code"`
	NodeID   string   `json:"node_id,omitempty" yaml:"node_id,omitempty"`
	MasterID string   `json:"master_id,omitempty" yaml:"master_id,omitempty"`
	Message  string   `json:"message" yaml:"message"`
}

func (d Diagnostic) String() string {
	var b strings.Builder
	b.WriteString(d.Severity.String())
	b.WriteString(" [")
	b.WriteString(string(d.Code))
	b.WriteString("]")
	if d.NodeID != "" {
		b.WriteString(" ")
		b.WriteString(d.NodeID)
	}
	b.WriteString(": ")
	b.WriteString(d.Message)
	return b.String()
}

// =============================================================================
// Report
// =============================================================================

// Report is the structured result returned next to an expanded tree.
type Report struct {
	RunID       string       `json:"run_id" yaml:"run_id"`
	Diagnostics []Diagnostic `json:"diagnostics" yaml:"diagnostics"`
}

// NewReport creates an empty report with a fresh run id.
func NewReport() *Report {
	return &Report{
		RunID:       uuid.New().String(),
		Diagnostics: []Diagnostic{},
	}
}

// Add appends a diagnostic.
func (r *Report) Add(d Diagnostic) {
	r.Diagnostics = append(r.Diagnostics, d)
}

// Addf appends a diagnostic with a formatted message.
func (r *Report) Addf(sev Severity, code Code, nodeID, masterID, format string, args ...any) {
	r.Add(Diagnostic{
		Severity: sev,
		Code:     code,
		NodeID:   nodeID,
		MasterID: masterID,
		Message:  fmt.Sprintf(format, args...),
	})
}

// Count returns the number of diagnostics with the given severity.
func (r *Report) Count(sev Severity) int {
	n := 0
	for _, d := range r.Diagnostics {
		if d.Severity == sev {
			n++
		}
	}
	return n
}

// HasErrors reports whether any branch failed to expand.
func (r *Report) HasErrors() bool {
	return r.Count(SeverityError) > 0
}

// ByCode returns the diagnostics carrying the given code, in insertion order.
func (r *Report) ByCode(code Code) []Diagnostic {
	var out []Diagnostic
	for _, d := range r.Diagnostics {
		if d.Code == code {
			out = append(out, d)
		}
	}
	return out
}

// Sorted returns a copy ordered by severity, then node id. Insertion order
// breaks ties so equal keys stay deterministic.
func (r *Report) Sorted() []Diagnostic {
	out := make([]Diagnostic, len(r.Diagnostics))
	copy(out, r.Diagnostics)
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Severity != out[j].Severity {
			return out[i].Severity < out[j].Severity
		}
		return out[i].NodeID < out[j].NodeID
	})
	return out
}
