package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/kailas-cloud/objsearch"
	"github.com/kailas-cloud/objsearch/internal/logger"
)

func newRenderCmd(a *app) *cobra.Command {
	var (
		out        string
		highlight  []string
		hideOthers bool
	)

	cmd := &cobra.Command{
		Use:   "render <metadata> <image>",
		Short: "Draw the detections of one image as a PNG overlay",
		Long: `Render draws the bounding boxes and class labels stored for an image of a
batch. The image is looked up in the metadata document by its recorded path or,
failing that, by file name.`,
		Example: `  objsearch render data/processed/<batch-id> photos/a.jpg -o a-boxes.png
  objsearch render data/processed/<batch-id> a.jpg --highlight dog --hide-others`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			entries, err := a.client.Load(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			e, err := findEntry(entries, args[1])
			if err != nil {
				return err
			}

			if out == "" {
				base := filepath.Base(e.ImagePath)
				out = base[:len(base)-len(filepath.Ext(base))] + "_detections.png"
			}
			f, err := os.Create(filepath.Clean(out))
			if err != nil {
				return fmt.Errorf("create output: %w", err)
			}

			err = a.client.Render(cmd.Context(), e, f, objsearch.RenderOptions{
				Highlight:  highlight,
				HideOthers: hideOthers,
			})
			if cerr := f.Close(); err == nil && cerr != nil {
				err = fmt.Errorf("close output: %w", cerr)
			}
			if err != nil {
				_ = os.Remove(out)
				return err
			}

			logger.FromContext(cmd.Context()).Info("Overlay rendered", zap.String("image", e.ImagePath), zap.String("out", out))
			_, _ = fmt.Fprintln(cmd.OutOrStdout(), out)
			return nil
		},
	}

	cmd.Flags().StringVarP(&out, "out", "o", "", "output PNG path (default <image>_detections.png)")
	cmd.Flags().StringSliceVar(&highlight, "highlight", nil, "classes drawn in the accent color (repeatable)")
	cmd.Flags().BoolVar(&hideOthers, "hide-others", false, "omit classes not listed in --highlight")

	return cmd
}

func findEntry(entries []objsearch.Entry, image string) (objsearch.Entry, error) {
	for _, e := range entries {
		if e.ImagePath == image {
			return e, nil
		}
	}
	var found []objsearch.Entry
	for _, e := range entries {
		if filepath.Base(e.ImagePath) == filepath.Base(image) {
			found = append(found, e)
		}
	}
	switch len(found) {
	case 0:
		return objsearch.Entry{}, fmt.Errorf("image %q: %w", image, objsearch.ErrNotFound)
	case 1:
		return found[0], nil
	default:
		return objsearch.Entry{}, fmt.Errorf("image %q matches %d entries, use the full path", image, len(found))
	}
}
