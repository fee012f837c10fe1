package app

import (
	"os"

	"github.com/olekukonko/tablewriter"
	"github.com/olekukonko/tablewriter/tw"
	"github.com/spf13/cobra"

	"github.com/zohobridge/mcp-gateway/pkg/tools"
)

var toolsCmd = &cobra.Command{
	Use:   "tools",
	Short: "Inspect the bridge's tool registry",
}

var toolsListCmd = &cobra.Command{
	Use:   "list",
	Short: "Print the manifest the /tools endpoint serves, as a table",
	RunE:  runToolsList,
}

func init() {
	toolsCmd.AddCommand(toolsListCmd)
}

func runToolsList(_ *cobra.Command, _ []string) error {
	handlers := tools.NewHandlers(tools.Deps{})
	registry, err := tools.NewRegistry(handlers.Descriptors()...)
	if err != nil {
		return err
	}

	table := tablewriter.NewWriter(os.Stdout)
	table.Options(
		tablewriter.WithHeader([]string{"Name", "Description", "Cacheable"}),
		tablewriter.WithAlignment(tw.MakeAlign(3, tw.AlignLeft)),
	)

	for _, descriptor := range manifestWithCacheability(registry) {
		if err := table.Append(descriptor); err != nil {
			return err
		}
	}
	return table.Render()
}

// manifestWithCacheability pairs each manifest tool with whether it
// carries a non-zero CacheTTL; Manifest alone drops that detail since
// it's not part of the client-facing tool shape.
func manifestWithCacheability(registry *tools.Registry) [][]string {
	rows := make([][]string, 0)
	for _, t := range registry.Manifest() {
		descriptor, err := registry.Lookup(t.Name)
		if err != nil {
			continue
		}
		cacheable := "no"
		if descriptor.CacheTTL > 0 {
			cacheable = "yes"
		}
		rows = append(rows, []string{t.Name, t.Description, cacheable})
	}
	return rows
}
