package main

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"
)

func newModelsCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "models",
		Short: "List configured and registered models",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "CONFIGURED\tPROVIDER\tMODEL\t")
			for _, m := range a.cfg.Models {
				name := m.Name
				if name == a.cfg.DefaultModel {
					name += " (default)"
				}
				fmt.Fprintf(w, "%s\t%s\t%s\t\n", name, m.Provider, m.ModelName)
			}
			fmt.Fprintln(w, "\t\t\t")
			fmt.Fprintln(w, "REGISTERED\tPROVIDER\tMODEL\t")
			for _, id := range a.registry.Models() {
				fmt.Fprintf(w, "\t%s\t%s\t\n", id.Provider, id.Model)
			}
			return w.Flush()
		},
	}
}
