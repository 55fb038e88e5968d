package main

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/kailas-cloud/objsearch"
	"github.com/kailas-cloud/objsearch/internal/logger"
)

func newSearchCmd(a *app) *cobra.Command {
	var (
		classes    []string
		searchMode string
		thresholds map[string]string
		paramsFile string
		exportPath string
		format     string
	)

	cmd := &cobra.Command{
		Use:   "search <metadata>",
		Short: "Find images in a batch by object class and count",
		Long: `Search selects the images of a metadata document that contain the requested
classes. A threshold caps the count of a class: with dog=2 an image matches the
dog class when it contains one or two dogs. In OR mode an image matches when
any selected class matches, in AND mode when all of them do.

Parameters can also be read from a JSON file with the keys selectedClasses,
searchMode and thresholds.`,
		Example: `  objsearch search data/processed/<batch-id> --class dog --class cat --mode AND
  objsearch search data/processed/<batch-id>/metadata.json --class person --threshold person=3
  objsearch search data/processed/<batch-id> --params params.json --export hits.parquet`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if format != "" && exportPath == "" {
				return fmt.Errorf("--format requires --export")
			}

			var params objsearch.SearchParams
			if paramsFile != "" {
				if cmd.Flags().Changed("class") || cmd.Flags().Changed("mode") || cmd.Flags().Changed("threshold") {
					return fmt.Errorf("--params cannot be combined with --class, --mode or --threshold")
				}
				p, err := readParams(paramsFile)
				if err != nil {
					return err
				}
				params = p
			} else {
				p, err := paramsFromFlags(classes, searchMode, thresholds)
				if err != nil {
					return err
				}
				params = p
			}

			matches, err := a.client.Search(cmd.Context(), args[0], params)
			if err != nil {
				return err
			}

			w := cmd.OutOrStdout()
			for _, e := range matches {
				_, _ = fmt.Fprintf(w, "%s\t%s\n", e.ImagePath, formatCounts(e.ClassCounts))
			}
			_, _ = fmt.Fprintf(w, "%d matching images\n", len(matches))

			if exportPath != "" {
				if err := a.client.Export(cmd.Context(), exportPath, format, matches); err != nil {
					return err
				}
				logger.FromContext(cmd.Context()).Info("Search results exported",
					zap.String("path", exportPath),
					zap.Int("images", len(matches)),
				)
			}
			return nil
		},
	}

	cmd.Flags().StringSliceVar(&classes, "class", nil, "class to search for (repeatable)")
	cmd.Flags().StringVarP(&searchMode, "mode", "m", string(objsearch.ModeOr), "combine classes with OR or AND")
	cmd.Flags().StringToStringVarP(&thresholds, "threshold", "t", nil, "per-class count upper bound, e.g. dog=2 (None = unbounded)")
	cmd.Flags().StringVar(&paramsFile, "params", "", "read search parameters from a JSON file")
	cmd.Flags().StringVarP(&exportPath, "export", "o", "", "write matching entries to a .json or .parquet file")
	cmd.Flags().StringVar(&format, "format", "", "export format: json or parquet (default from --export extension)")

	return cmd
}

func paramsFromFlags(classes []string, searchMode string, thresholds map[string]string) (objsearch.SearchParams, error) {
	params := objsearch.SearchParams{
		SelectedClasses: classes,
		SearchMode:      objsearch.SearchMode(searchMode),
		Thresholds:      make(map[string]objsearch.Threshold, len(thresholds)),
	}
	for class, raw := range thresholds {
		t, err := objsearch.ParseThreshold(raw)
		if err != nil {
			return objsearch.SearchParams{}, fmt.Errorf("threshold for %q: %w", class, err)
		}
		params.Thresholds[class] = t
	}
	return params, nil
}

func readParams(path string) (objsearch.SearchParams, error) {
	data, err := os.ReadFile(filepath.Clean(path))
	if err != nil {
		return objsearch.SearchParams{}, fmt.Errorf("read search params: %w", err)
	}
	var params objsearch.SearchParams
	if err := json.Unmarshal(data, &params); err != nil {
		return objsearch.SearchParams{}, fmt.Errorf("parse search params %s: %w", path, err)
	}
	return params, nil
}
