package commands

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/jedib0t/go-pretty/v6/table"

	"github.com/verygoodgraphics/vgg-runtime-sub005/internal/cli/output"
	"github.com/verygoodgraphics/vgg-runtime-sub005/pkg/diag"
)

// docReport is the machine-readable form of one document's result.
type docReport struct {
	Design      string            `json:"design" yaml:"design"`
	Layout      string            `json:"layout,omitempty" yaml:"layout,omitempty"`
	RunID       string            `json:"run_id,omitempty" yaml:"run_id,omitempty"`
	Error       string            `json:"error,omitempty" yaml:"error,omitempty"`
	Diagnostics []diag.Diagnostic `json:"diagnostics" yaml:"diagnostics"`
}

func toDocReports(results []docResult) []docReport {
	out := make([]docReport, 0, len(results))
	for _, res := range results {
		dr := docReport{Design: res.Doc.Design, Layout: res.Doc.Layout, Diagnostics: []diag.Diagnostic{}}
		if res.Err != nil {
			dr.Error = res.Err.Error()
		}
		if res.Report != nil {
			dr.RunID = res.Report.RunID
			dr.Diagnostics = res.Report.Sorted()
		}
		out = append(out, dr)
	}
	return out
}

// renderResults prints the results in the renderer's mode.
func renderResults(r *output.Renderer, results []docResult) error {
	switch r.Mode() {
	case output.ModeJSON:
		return r.JSON(toDocReports(results))
	case output.ModeYAML:
		return r.YAML(toDocReports(results))
	default:
		renderResultsTable(r, results)
		return nil
	}
}

func renderResultsTable(r *output.Renderer, results []docResult) {
	styles := r.Styles()
	var rows []table.Row
	var errCount, warnCount, infoCount int

	for _, res := range results {
		file := filepath.Base(res.Doc.Design)
		if res.Err != nil {
			rows = append(rows, table.Row{file, styles.Error.Render("failed"), "", "", "", truncateOneLine(res.Err.Error(), 80)})
			continue
		}
		for _, d := range res.Report.Sorted() {
			style := getSeverityStyle(styles, d.Severity)
			rows = append(rows, table.Row{file, style.Render(d.Severity.String()), string(d.Code), d.NodeID, d.MasterID, truncateOneLine(d.Message, 80)})
		}
		errCount += res.Report.Count(diag.SeverityError)
		warnCount += res.Report.Count(diag.SeverityWarning)
		infoCount += res.Report.Count(diag.SeverityInfo)
	}

	if len(rows) > 0 {
		r.Table(table.Row{"File", "Severity", "Code", "Node", "Master", "Message"}, rows)
	}

	failed := 0
	for _, res := range results {
		if res.Err != nil {
			failed++
		}
	}
	summary := fmt.Sprintf("Expanded %d of %d documents: %d errors, %d warnings, %d info",
		len(results)-failed, len(results), errCount, warnCount, infoCount)
	switch {
	case failed > 0 || errCount > 0:
		r.Println(styles.Error.Render(summary))
	case warnCount > 0:
		r.Println(styles.Warning.Render(summary))
	default:
		r.Println(styles.Success.Render(summary))
	}
}

func getSeverityStyle(styles *output.Styles, sev diag.Severity) lipgloss.Style {
	switch sev {
	case diag.SeverityError:
		return styles.Error
	case diag.SeverityWarning:
		return styles.Warning
	case diag.SeverityInfo:
		return styles.Info
	default:
		return styles.Muted
	}
}

func truncateOneLine(s string, maxLen int) string {
	s = strings.ReplaceAll(s, "\n", " ")
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen-3] + "..."
}
