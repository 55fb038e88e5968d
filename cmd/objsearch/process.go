package main

import (
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/spf13/cobra"

	"github.com/kailas-cloud/objsearch"
)

func newProcessCmd(a *app) *cobra.Command {
	var (
		dir      string
		maxItems int
		weights  string
	)

	cmd := &cobra.Command{
		Use:   "process [image...]",
		Short: "Run the detector over images and store a new batch",
		Long: `Process runs the configured detector over the given image files, or over the
images directly inside --dir, and writes the detections of every image to a new
batch metadata document under the processed directory.`,
		Example: `  objsearch process photos/a.jpg photos/b.png
  objsearch process --dir photos --max 50 --weights yolo11n.pt`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if dir == "" && len(args) == 0 {
				return fmt.Errorf("either image arguments or --dir is required")
			}
			if dir != "" && len(args) > 0 {
				return fmt.Errorf("image arguments and --dir are mutually exclusive")
			}

			var (
				b   *objsearch.Batch
				err error
			)
			if dir != "" {
				b, err = a.client.ProcessDir(cmd.Context(), dir, maxItems, weights)
			} else {
				b, err = a.client.Process(cmd.Context(), args, weights)
			}
			if err != nil {
				return err
			}
			printBatch(cmd.OutOrStdout(), b)
			return nil
		},
	}

	cmd.Flags().StringVarP(&dir, "dir", "d", "", "process the images inside this directory")
	cmd.Flags().IntVarP(&maxItems, "max", "n", 0, "maximum number of images taken from --dir (0 = all)")
	cmd.Flags().StringVarP(&weights, "weights", "w", "", "detector weights reference (default from config)")

	return cmd
}

func printBatch(w io.Writer, b *objsearch.Batch) {
	_, _ = fmt.Fprintf(w, "Batch:    %s\n", b.ID)
	_, _ = fmt.Fprintf(w, "Metadata: %s\n", b.MetadataPath)
	_, _ = fmt.Fprintf(w, "Images:   %d\n\n", len(b.Entries))
	for _, e := range b.Entries {
		_, _ = fmt.Fprintf(w, "%s\t%d objects\t%s\n", e.ImagePath, len(e.Detections), formatCounts(e.ClassCounts))
	}
}

func formatCounts(counts map[string]int) string {
	if len(counts) == 0 {
		return "-"
	}
	classes := make([]string, 0, len(counts))
	for c := range counts {
		classes = append(classes, c)
	}
	sort.Strings(classes)

	parts := make([]string, len(classes))
	for i, c := range classes {
		parts[i] = fmt.Sprintf("%s=%d", c, counts[c])
	}
	return strings.Join(parts, ", ")
}
