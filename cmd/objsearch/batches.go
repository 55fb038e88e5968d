package main

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"
)

func newBatchesCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "batches",
		Short: "List processed batches, newest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			list, err := a.client.Batches(cmd.Context())
			if err != nil {
				return err
			}
			w := cmd.OutOrStdout()
			if len(list) == 0 {
				_, _ = fmt.Fprintln(w, "No batches found.")
				return nil
			}
			for _, s := range list {
				_, _ = fmt.Fprintf(w, "%s\t%s\t%d images\t%s\n",
					s.ID, s.ModifiedAt.Format(time.RFC3339), s.ImageCount, s.MetadataPath)
			}
			return nil
		},
	}
}

func newClassesCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "classes <metadata>",
		Short: "Show the classes and per-image counts found in a batch",
		Long: `Classes prints every object class present in a metadata document together with
the distinct per-image counts observed for it. The counts are the useful values
for --threshold in the search command.`,
		Example: `  objsearch classes data/processed/<batch-id>/metadata.json`,
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			u, err := a.client.Classes(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			w := cmd.OutOrStdout()
			for _, c := range u.Classes {
				counts := make([]string, len(u.Counts[c]))
				for i, n := range u.Counts[c] {
					counts[i] = strconv.Itoa(n)
				}
				_, _ = fmt.Fprintf(w, "%s\t%s\n", c, strings.Join(counts, " "))
			}
			return nil
		},
	}
}
