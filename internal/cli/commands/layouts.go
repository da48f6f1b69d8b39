package commands

import (
	"fmt"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/parcelstack-labs/parcelboard/internal/layout"
)

// NewLayoutsCommand creates the layouts command group.
func NewLayoutsCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "layouts",
		Short: "Inspect persisted layout configurations",
	}
	cmd.AddCommand(newLayoutsListCommand())
	cmd.AddCommand(newLayoutsExportCommand())
	return cmd
}

func newLayoutsListCommand() *cobra.Command {
	var (
		owner  string
		format string
	)

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List layouts visible to an owner",
		Example: `  # List public and system layouts
  parcelboard layouts list

  # List a specific owner's layouts plus public ones
  parcelboard layouts list --owner 7b0d7a62-...

  # Machine-readable output
  parcelboard layouts list --format csv`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cmdCtx, cleanup, err := NewCommandContext(cmd)
			if err != nil {
				return err
			}
			defer cleanup()

			layouts, err := cmdCtx.Store.ListLayouts(owner)
			if err != nil {
				return err
			}

			t := table.NewWriter()
			t.SetOutputMirror(cmd.OutOrStdout())
			t.AppendHeader(table.Row{"ID", "NAME", "TYPE", "PANELS", "OWNER", "DEFAULT", "PUBLIC", "UPDATED"})
			for _, l := range layouts {
				t.AppendRow(table.Row{
					l.ID, l.Name, l.Type, len(l.Panels), l.OwnerID,
					l.IsDefault, l.IsPublic, l.UpdatedAt.Format("2006-01-02 15:04"),
				})
			}

			switch format {
			case "csv":
				t.RenderCSV()
			case "table":
				t.Render()
				fmt.Fprintf(cmd.OutOrStdout(), "\n%d layouts\n", len(layouts))
			default:
				return fmt.Errorf("unknown format %q (want table or csv)", format)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&owner, "owner", "system", "Owner whose layouts to list (public layouts always included)")
	cmd.Flags().StringVar(&format, "format", "table", "Output format: table or csv")
	return cmd
}

// exportedLayout is the YAML shape written by export. It matches the
// template file format so an exported layout can be dropped into the
// templates directory unchanged.
type exportedLayout struct {
	Name        string                    `yaml:"name"`
	Description string                    `yaml:"description,omitempty"`
	LayoutType  string                    `yaml:"layoutType"`
	Panels      []exportedPanel           `yaml:"panels"`
	Filters     map[string]map[string]any `yaml:"filters,omitempty"`
}

type exportedPanel struct {
	ID          string         `yaml:"id"`
	ContentType string         `yaml:"contentType"`
	Title       string         `yaml:"title,omitempty"`
	Geometry    map[string]any `yaml:"geometry"`
	State       map[string]any `yaml:"state,omitempty"`
	Visible     bool           `yaml:"visible"`
}

func newLayoutsExportCommand() *cobra.Command {
	var owner string

	cmd := &cobra.Command{
		Use:   "export <layout-id>",
		Short: "Export a layout as a YAML template",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cmdCtx, cleanup, err := NewCommandContext(cmd)
			if err != nil {
				return err
			}
			defer cleanup()

			l, err := cmdCtx.Store.GetLayout(args[0], owner)
			if err != nil {
				return err
			}

			data, err := yaml.Marshal(toExported(l))
			if err != nil {
				return fmt.Errorf("failed to encode layout: %w", err)
			}
			_, err = cmd.OutOrStdout().Write(data)
			return err
		},
	}

	cmd.Flags().StringVar(&owner, "owner", "system", "Owner reading the layout")
	return cmd
}

func toExported(l *layout.Layout) exportedLayout {
	out := exportedLayout{
		Name:        l.Name,
		Description: l.Description,
		LayoutType:  string(l.Type),
	}
	if l.Filters != nil {
		out.Filters = make(map[string]map[string]any, len(l.Filters))
		for category, crit := range l.Filters {
			out.Filters[category] = crit
		}
	}
	for _, d := range l.Panels {
		out.Panels = append(out.Panels, exportedPanel{
			ID:          d.ID,
			ContentType: string(d.ContentType),
			Title:       d.Title,
			Geometry: map[string]any{
				"row":           d.Geometry.Row,
				"col":           d.Geometry.Col,
				"widthPercent":  d.Geometry.WidthPct,
				"heightPercent": d.Geometry.HeightPct,
			},
			State:   d.State,
			Visible: d.Visible,
		})
	}
	return out
}
