package main

import (
	"fmt"

	"github.com/Sternrassler/search-client/pkg/registry"
	"github.com/spf13/cobra"
)

func newEnginesCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "engines",
		Short: "List the registered engines",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			for _, name := range registry.Builtin().Names() {
				ec := opts.cfg.Engines[name]
				scope := ec.Cache
				if scope == "" {
					scope = opts.cfg.Defaults.Cache
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%-12s cache=%s\n", name, scope)
			}
			return nil
		},
	}
}
