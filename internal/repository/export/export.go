package export

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/parquet-go/parquet-go"

	"github.com/kailas-cloud/objsearch/internal/domain/entry"
	"github.com/kailas-cloud/objsearch/internal/repository/metadata"
)

// Format is a search result export format.
type Format string

const (
	JSON    Format = "json"
	Parquet Format = "parquet"
)

// ParseFormat parses a format name; an empty name selects JSON.
func ParseFormat(s string) (Format, error) {
	switch f := Format(strings.ToLower(strings.TrimSpace(s))); f {
	case "":
		return JSON, nil
	case JSON, Parquet:
		return f, nil
	default:
		return "", fmt.Errorf("unsupported export format %q (supported: json, parquet)", s)
	}
}

// FormatFromPath picks the format from a file extension, defaulting to JSON.
func FormatFromPath(path string) Format {
	if strings.EqualFold(filepath.Ext(path), ".parquet") {
		return Parquet
	}
	return JSON
}

// DetectionRow is one flattened Parquet row. Images without detections
// produce a single row with DetectionIndex -1 and no class.
type DetectionRow struct {
	ImagePath      string   `parquet:"image_path"`
	DetectionIndex int32    `parquet:"detection_index"`
	Class          *string  `parquet:"class"`
	Confidence     *float64 `parquet:"confidence"`
	X1             *float64 `parquet:"x1"`
	Y1             *float64 `parquet:"y1"`
	X2             *float64 `parquet:"x2"`
	Y2             *float64 `parquet:"y2"`
	ClassCount     int32    `parquet:"class_count"`
	TotalObjects   int32    `parquet:"total_objects"`
}

// Rows flattens entries into Parquet rows, preserving entry and detection order.
func Rows(entries []entry.Entry) []DetectionRow {
	rows := make([]DetectionRow, 0, len(entries))
	for i := range entries {
		e := &entries[i]
		dets := e.Detections()
		total := int32(e.TotalObjects())
		if len(dets) == 0 {
			rows = append(rows, DetectionRow{ImagePath: e.ImagePath(), DetectionIndex: -1})
			continue
		}
		for j, d := range dets {
			class := d.Class()
			conf := d.Confidence()
			box := d.Box()
			rows = append(rows, DetectionRow{
				ImagePath:      e.ImagePath(),
				DetectionIndex: int32(j),
				Class:          &class,
				Confidence:     &conf,
				X1:             &box.X1,
				Y1:             &box.Y1,
				X2:             &box.X2,
				Y2:             &box.Y2,
				ClassCount:     int32(e.Count(class)),
				TotalObjects:   total,
			})
		}
	}
	return rows
}

// Write encodes entries to w in the given format.
func Write(_ context.Context, w io.Writer, format Format, entries []entry.Entry) error {
	switch format {
	case JSON:
		data, err := metadata.EncodeEntries(entries)
		if err != nil {
			return err
		}
		if _, err := w.Write(data); err != nil {
			return fmt.Errorf("write json export: %w", err)
		}
		return nil
	case Parquet:
		pw := parquet.NewGenericWriter[DetectionRow](w)
		if _, err := pw.Write(Rows(entries)); err != nil {
			_ = pw.Close()
			return fmt.Errorf("write parquet rows: %w", err)
		}
		if err := pw.Close(); err != nil {
			return fmt.Errorf("close parquet writer: %w", err)
		}
		return nil
	default:
		return fmt.Errorf("unsupported export format %q", format)
	}
}

// WriteFile exports entries to path. An empty format is picked from the path extension.
func WriteFile(ctx context.Context, path string, format Format, entries []entry.Entry) error {
	if format == "" {
		format = FormatFromPath(path)
	}
	f, err := os.Create(filepath.Clean(path))
	if err != nil {
		return fmt.Errorf("create export file: %w", err)
	}
	if err := Write(ctx, f, format, entries); err != nil {
		_ = f.Close()
		return err
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("close export file: %w", err)
	}
	return nil
}
