package main

import (
	"fmt"
	"sort"

	"github.com/spf13/cobra"
)

func newHealthCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "health",
		Short: "Check that metadata storage and the detector are usable",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			r := a.client.Health(cmd.Context())

			names := make([]string, 0, len(r.Checks))
			for name := range r.Checks {
				names = append(names, name)
			}
			sort.Strings(names)

			w := cmd.OutOrStdout()
			_, _ = fmt.Fprintf(w, "status: %s\n", r.Status)
			for _, name := range names {
				if msg, ok := r.Errors[name]; ok {
					_, _ = fmt.Fprintf(w, "  %s: %s (%s)\n", name, r.Checks[name], msg)
					continue
				}
				_, _ = fmt.Fprintf(w, "  %s: %s\n", name, r.Checks[name])
			}

			if r.Status != "ok" {
				return fmt.Errorf("health check %s", r.Status)
			}
			return nil
		},
	}
}
