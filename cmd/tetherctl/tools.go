package main

import (
	"fmt"

	"github.com/danmuck/tetherctl/internal/catalog"
	"github.com/spf13/cobra"
)

func newToolsCmd() *cobra.Command {
	var outputJSON bool
	cmd := &cobra.Command{
		Use:   "tools",
		Short: "List the tool catalog",
		RunE: func(cmd *cobra.Command, args []string) error {
			table := catalog.Table()
			if outputJSON {
				return writeJSON(cmd.OutOrStdout(), table)
			}
			out := cmd.OutOrStdout()
			for _, spec := range table {
				_, _ = fmt.Fprintf(out, "%-20s %s\n", spec.Name, spec.Description)
				for _, p := range spec.Params {
					required := ""
					if p.Required {
						required = " (required)"
					}
					_, _ = fmt.Fprintf(out, "    %-12s %-8s %s%s\n", p.Name, p.Type, p.Description, required)
				}
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&outputJSON, "json", false, "Print as JSON")
	return cmd
}
