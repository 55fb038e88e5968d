package metadata

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/kailas-cloud/objsearch/internal/domain"
	"github.com/kailas-cloud/objsearch/internal/domain/detection"
	"github.com/kailas-cloud/objsearch/internal/domain/entry"
)

// detectionDTO is the persisted form of one detection.
// Count repeats the per-image count of the detection's class.
type detectionDTO struct {
	Class      string    `json:"class"`
	Confidence float64   `json:"confidence"`
	BBox       []float64 `json:"bbox"`
	Count      int       `json:"count"`
}

// entryDTO is the persisted form of one image entry.
type entryDTO struct {
	ImagePath    string         `json:"image_path"`
	Detections   []detectionDTO `json:"detections"`
	TotalObjects int            `json:"total_objects"`
	UniqueClass  []string       `json:"unique_class"`
	ClassCounts  map[string]int `json:"class_counts"`
}

// EncodeEntries renders entries as the persisted JSON array (2-space indent).
// Malformed entries keep a null detections field so they stay malformed on reload.
func EncodeEntries(entries []entry.Entry) ([]byte, error) {
	dtos := make([]entryDTO, len(entries))
	for i := range entries {
		dtos[i] = toDTO(&entries[i])
	}
	data, err := json.MarshalIndent(dtos, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("marshal entries: %w", err)
	}
	return data, nil
}

func toDTO(e *entry.Entry) entryDTO {
	dto := entryDTO{
		ImagePath:    e.ImagePath(),
		TotalObjects: e.TotalObjects(),
		UniqueClass:  e.UniqueClasses(),
		ClassCounts:  e.ClassCounts(),
	}
	if e.Malformed() {
		return dto
	}
	dto.Detections = make([]detectionDTO, len(e.Detections()))
	for i, d := range e.Detections() {
		dto.Detections[i] = detectionDTO{
			Class:      d.Class(),
			Confidence: d.Confidence(),
			BBox:       d.Box().Slice(),
			Count:      e.Count(d.Class()),
		}
	}
	return dto
}

// DecodeEntries parses a metadata document.
//
// The document must be a JSON array of objects, otherwise ErrInvalidMetadata is returned.
// An element whose detections are missing or unreadable becomes a malformed entry
// instead of failing the whole document. Stored class counts are ignored and re-derived.
func DecodeEntries(data []byte) ([]entry.Entry, error) {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 || trimmed[0] != '[' {
		return nil, fmt.Errorf("%w: expected a JSON array of entries", domain.ErrInvalidMetadata)
	}

	var raws []json.RawMessage
	if err := json.Unmarshal(trimmed, &raws); err != nil {
		return nil, fmt.Errorf("%w: %w", domain.ErrInvalidMetadata, err)
	}

	entries := make([]entry.Entry, 0, len(raws))
	for i, raw := range raws {
		e, err := decodeEntry(raw)
		if err != nil {
			return nil, fmt.Errorf("%w: entry %d: %w", domain.ErrInvalidMetadata, i, err)
		}
		entries = append(entries, e)
	}
	return entries, nil
}

// decodeEntry fails only when raw is not a JSON object.
func decodeEntry(raw json.RawMessage) (entry.Entry, error) {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 || trimmed[0] != '{' {
		return entry.Entry{}, fmt.Errorf("not an object")
	}
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(trimmed, &fields); err != nil {
		return entry.Entry{}, err
	}

	var imagePath string
	if p, ok := fields["image_path"]; ok {
		// A non-string path leaves the entry addressable by index only.
		_ = json.Unmarshal(p, &imagePath)
	}

	dets, ok := decodeDetections(fields["detections"])
	if !ok {
		return entry.NewMalformed(imagePath), nil
	}
	return entry.New(imagePath, dets), nil
}

func decodeDetections(raw json.RawMessage) ([]detection.Detection, bool) {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 || trimmed[0] != '[' {
		return nil, false
	}
	var dtos []detectionDTO
	if err := json.Unmarshal(trimmed, &dtos); err != nil {
		return nil, false
	}
	dets := make([]detection.Detection, 0, len(dtos))
	for _, d := range dtos {
		if d.Class == "" {
			return nil, false
		}
		box, err := detection.BoxFromSlice(d.BBox)
		if err != nil {
			return nil, false
		}
		dets = append(dets, detection.Reconstruct(d.Class, d.Confidence, box))
	}
	return dets, true
}
