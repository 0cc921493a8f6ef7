package commands

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"

	"github.com/verygoodgraphics/vgg-runtime-sub005/internal/cli/output"
	"github.com/verygoodgraphics/vgg-runtime-sub005/internal/config"
	"github.com/verygoodgraphics/vgg-runtime-sub005/pkg/symbol"
)

// masterOutput is the machine-readable form of a master.
type masterOutput struct {
	ID          string  `json:"id" yaml:"id"`
	Width       float64 `json:"width" yaml:"width"`
	Height      float64 `json:"height" yaml:"height"`
	ComponentID string  `json:"component_id,omitempty" yaml:"component_id,omitempty"`
	Group       int     `json:"group,omitempty" yaml:"group,omitempty"`
	// Level is -1 for masters on or reaching a reference cycle.
	Level      int      `json:"level" yaml:"level"`
	Uses       []string `json:"uses,omitempty" yaml:"uses,omitempty"`
	UsedBy     []string `json:"used_by,omitempty" yaml:"used_by,omitempty"`
	Dependents []string `json:"dependents,omitempty" yaml:"dependents,omitempty"`
}

type mastersOutput struct {
	Masters       []masterOutput `json:"masters" yaml:"masters"`
	VariantGroups [][]string     `json:"variant_groups" yaml:"variant_groups"`
}

// NewMastersCommand creates the masters command.
func NewMastersCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "masters <design.json>",
		Short: "List the symbol masters of a design",
		Long: `List every symbol master collected from a design document with its
size, the component frame that encloses it, its variant group, its nesting
level and the masters that instantiate it.

Masters inside the same component frame are variants of one another and
share a group number. Level 0 masters instantiate no other master; masters
caught in a reference cycle show "cycle" instead of a level.`,
		Example: `  # Show masters as a table
  vggexpand masters card.json

  # Machine-readable output
  vggexpand masters card.json -o json`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runMasters(cmd, args[0])
		},
	}
}

func runMasters(cmd *cobra.Command, path string) error {
	ctx := cmd.Context()
	cfg := config.GetConfig(ctx)
	logger := config.GetLogger(ctx)
	r := output.FromContext(ctx)

	design, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read design: %w", err)
	}
	symOpts, err := symbolOptions(cfg, logger)
	if err != nil {
		return err
	}
	s, err := symbol.NewSession(design, nil, symOpts...)
	if err != nil {
		return err
	}
	if err := s.Run(); err != nil {
		return err
	}

	out := buildMastersOutput(s.Masters(), s.VariantGroups())
	switch r.Mode() {
	case output.ModeJSON:
		return r.JSON(out)
	case output.ModeYAML:
		return r.YAML(out)
	}

	if len(out.Masters) == 0 {
		r.Println(r.Styles().Muted.Render("No masters found"))
		return nil
	}
	rows := make([]table.Row, 0, len(out.Masters))
	refs := 0
	for _, m := range out.Masters {
		group := ""
		if m.Group > 0 {
			group = strconv.Itoa(m.Group)
		}
		level := "cycle"
		if m.Level >= 0 {
			level = strconv.Itoa(m.Level)
		}
		refs += len(m.Uses)
		rows = append(rows, table.Row{
			m.ID,
			fmt.Sprintf("%gx%g", m.Width, m.Height),
			m.ComponentID,
			group,
			level,
			strings.Join(m.UsedBy, ", "),
		})
	}
	r.Table(table.Row{"ID", "Size", "Component", "Group", "Level", "Used by"}, rows)
	r.Printf("%d masters, %d references, %d variant groups\n", len(out.Masters), refs, len(out.VariantGroups))
	return nil
}

// buildMastersOutput numbers variant groups from 1 in the order given.
func buildMastersOutput(masters []symbol.MasterInfo, groups [][]string) mastersOutput {
	groupOf := make(map[string]int)
	for i, g := range groups {
		for _, id := range g {
			groupOf[id] = i + 1
		}
	}
	out := mastersOutput{Masters: make([]masterOutput, 0, len(masters)), VariantGroups: groups}
	if out.VariantGroups == nil {
		out.VariantGroups = [][]string{}
	}
	for _, m := range masters {
		out.Masters = append(out.Masters, masterOutput{
			ID:          m.ID,
			Width:       m.Width,
			Height:      m.Height,
			ComponentID: m.ComponentID,
			Group:       groupOf[m.ID],
			Level:       m.Level,
			Uses:        m.Uses,
			UsedBy:      m.UsedBy,
			Dependents:  m.Dependents,
		})
	}
	return out
}
