package commands

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/verygoodgraphics/vgg-runtime-sub005/internal/cli/output"
	"github.com/verygoodgraphics/vgg-runtime-sub005/internal/config"
	"github.com/verygoodgraphics/vgg-runtime-sub005/pkg/diag"
	"github.com/verygoodgraphics/vgg-runtime-sub005/pkg/symbol"
)

// ExpandOptions holds options for the expand command.
type ExpandOptions struct {
	Layout string // Layout document for a single design
	OutDir string // Output directory, empty writes next to the input
	Jobs   int    // Concurrent documents, 0 uses the configured value
	Watch  bool   // Re-run when inputs change
	Strict bool   // Fail when any report has errors
}

// docResult is the outcome of expanding one document.
type docResult struct {
	Doc    Document
	Report *diag.Report
	Err    error
}

// NewExpandCommand creates the expand command.
func NewExpandCommand() *cobra.Command {
	opts := &ExpandOptions{}

	cmd := &cobra.Command{
		Use:   "expand <dir|design.json>...",
		Short: "Expand symbol instances in design documents",
		Long: `Expand every symbol instance of the given design documents into a
customized copy of its master and re-key the layout rules to match.

Each design x.json is paired with x.layout.json when that file exists.
Results are written to x.expanded.json and x.expanded.layout.json, either
next to the input or in --out-dir. Diagnostics for every document are
printed as a table, JSON or YAML depending on --output.`,
		Example: `  # Expand a single design
  vggexpand expand card.json

  # Expand every design in a directory with four workers
  vggexpand expand designs/ -j 4 --out-dir build/

  # Re-run whenever a design or layout changes
  vggexpand expand designs/ --watch`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runExpand(cmd, args, opts)
		},
	}

	cmd.Flags().StringVar(&opts.Layout, "layout", "", "Layout document (single design only)")
	cmd.Flags().StringVar(&opts.OutDir, "out-dir", "", "Directory for expanded documents")
	cmd.Flags().IntVarP(&opts.Jobs, "jobs", "j", 0, "Documents expanded concurrently")
	cmd.Flags().BoolVar(&opts.Watch, "watch", false, "Re-run when inputs change")
	cmd.Flags().BoolVar(&opts.Strict, "strict", false, "Exit non-zero when any document has error diagnostics")

	return cmd
}

func runExpand(cmd *cobra.Command, args []string, opts *ExpandOptions) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	cfg := config.GetConfig(ctx)
	logger := config.GetLogger(ctx)
	r := output.FromContext(ctx)

	if opts.OutDir == "" {
		opts.OutDir = cfg.OutDir
	}
	if opts.Jobs <= 0 {
		opts.Jobs = cfg.Jobs
	}

	docs, err := discoverDocuments(args, opts.Layout)
	if err != nil {
		return err
	}
	symOpts, err := symbolOptions(cfg, logger)
	if err != nil {
		return err
	}
	if opts.OutDir != "" {
		if err := os.MkdirAll(opts.OutDir, 0o755); err != nil {
			return fmt.Errorf("failed to create output directory: %w", err)
		}
	}

	results := expandAll(ctx, docs, opts, symOpts, logger)
	if err := renderResults(r, results); err != nil {
		return err
	}

	if opts.Watch {
		rediscover := func() ([]Document, error) { return discoverDocuments(args, opts.Layout) }
		return watchDocuments(ctx, args, rediscover, func(changed []Document) {
			if err := renderResults(r, expandAll(ctx, changed, opts, symOpts, logger)); err != nil {
				logger.Error("failed to render results", "error", err)
			}
		}, logger)
	}
	return resultsError(results, opts.Strict)
}

// symbolOptions maps the configuration onto expansion options.
func symbolOptions(cfg *config.Config, logger *slog.Logger) ([]symbol.Option, error) {
	scope, err := symbol.ParseVariableScope(cfg.VariableScope)
	if err != nil {
		return nil, err
	}
	policy, err := symbol.ParseDuplicatePolicy(cfg.DuplicateMasters)
	if err != nil {
		return nil, err
	}
	return []symbol.Option{
		symbol.WithLogger(logger),
		symbol.WithVariableScope(scope),
		symbol.WithMaxDepth(cfg.MaxDepth),
		symbol.WithDuplicatePolicy(policy),
	}, nil
}

// expandAll expands docs with at most opts.Jobs running at once. One failing
// document does not cancel the others.
func expandAll(ctx context.Context, docs []Document, opts *ExpandOptions, symOpts []symbol.Option, logger *slog.Logger) []docResult {
	results := make([]docResult, len(docs))
	var mu sync.Mutex

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(max(opts.Jobs, 1))
	for i, doc := range docs {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			report, err := expandDocument(doc, opts.OutDir, symOpts)
			if err != nil {
				logger.Warn("expansion failed", "design", doc.Design, "error", err)
			} else {
				logger.Info("expanded", "design", doc.Design, "diagnostics", len(report.Diagnostics))
			}
			mu.Lock()
			results[i] = docResult{Doc: doc, Report: report, Err: err}
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		for i := range results {
			if results[i].Report == nil && results[i].Err == nil {
				results[i] = docResult{Doc: docs[i], Err: err}
			}
		}
	}
	return results
}

// expandDocument reads one document, expands it and writes both outputs.
func expandDocument(doc Document, outDir string, symOpts []symbol.Option) (*diag.Report, error) {
	design, err := os.ReadFile(doc.Design)
	if err != nil {
		return nil, fmt.Errorf("failed to read design: %w", err)
	}
	var layoutDoc []byte
	if doc.Layout != "" {
		layoutDoc, err = os.ReadFile(doc.Layout)
		if err != nil {
			return nil, fmt.Errorf("failed to read layout: %w", err)
		}
	}

	res, err := symbol.Expand(design, layoutDoc, symOpts...)
	if err != nil {
		return nil, err
	}

	designOut, layoutOut := doc.OutputPaths(outDir)
	if err := writeFile(designOut, res.Design); err != nil {
		return nil, err
	}
	if err := writeFile(layoutOut, res.Layout); err != nil {
		return nil, err
	}
	return &res.Report, nil
}

func writeFile(path string, data []byte) error {
	if err := os.WriteFile(path, append(data, '\n'), 0o600); err != nil {
		return fmt.Errorf("failed to write %s: %w", filepath.Base(path), err)
	}
	return nil
}

// resultsError summarizes failed documents as a single error.
func resultsError(results []docResult, strict bool) error {
	var failed, withErrors int
	var errs []error
	for _, res := range results {
		if res.Err != nil {
			failed++
			errs = append(errs, fmt.Errorf("%s: %w", res.Doc.Design, res.Err))
			continue
		}
		if res.Report != nil && res.Report.HasErrors() {
			withErrors++
		}
	}
	if failed > 0 {
		return fmt.Errorf("%d of %d documents failed: %w", failed, len(results), errors.Join(errs...))
	}
	if strict && withErrors > 0 {
		return fmt.Errorf("%d of %d documents have error diagnostics", withErrors, len(results))
	}
	return nil
}
