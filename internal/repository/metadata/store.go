package metadata

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"

	"go.uber.org/zap"

	"github.com/kailas-cloud/objsearch/internal/domain"
	dombatch "github.com/kailas-cloud/objsearch/internal/domain/batch"
	"github.com/kailas-cloud/objsearch/internal/domain/entry"
)

// FileName is the metadata document name inside each batch directory.
const FileName = "metadata.json"

// Store persists one JSON document per batch under <processedDir>/<batchID>/.
type Store struct {
	processedDir string
	baseDir      string
	logger       *zap.Logger
}

// New creates a filesystem metadata store. Relative Load paths resolve against baseDir.
func New(processedDir, baseDir string, logger *zap.Logger) *Store {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Store{processedDir: processedDir, baseDir: baseDir, logger: logger}
}

// ProcessedDir returns the root directory holding batch directories.
func (s *Store) ProcessedDir() string { return s.processedDir }

// BatchDir returns the directory of a batch.
func (s *Store) BatchDir(batchID string) string {
	return filepath.Join(s.processedDir, batchID)
}

// CreateBatchDir creates a fresh directory for batchID. It fails if the directory exists.
func (s *Store) CreateBatchDir(_ context.Context, batchID string) (string, error) {
	if err := validateBatchID(batchID); err != nil {
		return "", err
	}
	if err := os.MkdirAll(s.processedDir, 0o755); err != nil {
		return "", fmt.Errorf("create processed dir: %w", err)
	}
	dir := s.BatchDir(batchID)
	if err := os.Mkdir(dir, 0o755); err != nil {
		return "", fmt.Errorf("create batch dir: %w", err)
	}
	return dir, nil
}

// RemoveBatchDir deletes a batch directory and everything in it.
func (s *Store) RemoveBatchDir(_ context.Context, batchID string) error {
	if err := validateBatchID(batchID); err != nil {
		return err
	}
	if err := os.RemoveAll(s.BatchDir(batchID)); err != nil {
		return fmt.Errorf("remove batch dir: %w", err)
	}
	return nil
}

// Save writes entries as the batch document, replacing any previous version atomically.
func (s *Store) Save(_ context.Context, batchID string, entries []entry.Entry) (string, error) {
	if err := validateBatchID(batchID); err != nil {
		return "", err
	}
	data, err := EncodeEntries(entries)
	if err != nil {
		return "", err
	}

	dir := s.BatchDir(batchID)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("create batch dir: %w", err)
	}

	tmp, err := os.CreateTemp(dir, ".metadata-*.tmp")
	if err != nil {
		return "", fmt.Errorf("create temp file: %w", err)
	}
	tmpName := tmp.Name()
	committed := false
	defer func() {
		if !committed {
			_ = os.Remove(tmpName)
		}
	}()

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		return "", fmt.Errorf("write metadata: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		_ = tmp.Close()
		return "", fmt.Errorf("sync metadata: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return "", fmt.Errorf("close metadata: %w", err)
	}

	path := filepath.Join(dir, FileName)
	if err := os.Rename(tmpName, path); err != nil {
		return "", fmt.Errorf("commit metadata: %w", err)
	}
	committed = true

	s.logger.Debug("Metadata saved",
		zap.String("batch_id", batchID),
		zap.String("path", path),
		zap.Int("entries", len(entries)),
	)
	return path, nil
}

// Load reads a metadata document. path may point at the document or at its batch directory.
func (s *Store) Load(_ context.Context, path string) ([]entry.Entry, error) {
	full := s.resolve(path)

	info, err := os.Stat(full)
	if err == nil && info.IsDir() {
		full = filepath.Join(full, FileName)
	}

	data, err := os.ReadFile(filepath.Clean(full))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("metadata %s: %w", full, domain.ErrNotFound)
		}
		return nil, fmt.Errorf("read metadata %s: %w", full, err)
	}

	entries, err := DecodeEntries(data)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %w", domain.ErrParse, full, err)
	}
	return entries, nil
}

// List enumerates batches with a metadata document, newest first.
// Batches whose document cannot be parsed are logged and omitted.
func (s *Store) List(ctx context.Context) ([]dombatch.Summary, error) {
	dirents, err := os.ReadDir(s.processedDir)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return []dombatch.Summary{}, nil
		}
		return nil, fmt.Errorf("read processed dir: %w", err)
	}

	summaries := make([]dombatch.Summary, 0, len(dirents))
	for _, d := range dirents {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if !d.IsDir() {
			continue
		}
		path := filepath.Join(s.processedDir, d.Name(), FileName)
		info, err := os.Stat(path)
		if err != nil {
			continue
		}

		data, err := os.ReadFile(path)
		if err != nil {
			s.logger.Warn("Skipping unreadable batch", zap.String("batch_id", d.Name()), zap.Error(err))
			continue
		}
		entries, err := DecodeEntries(data)
		if err != nil {
			s.logger.Warn("Skipping unparsable batch", zap.String("batch_id", d.Name()), zap.Error(err))
			continue
		}

		summaries = append(summaries, dombatch.Summary{
			ID:           d.Name(),
			MetadataPath: path,
			ImageCount:   len(entries),
			ModifiedAt:   info.ModTime(),
		})
	}

	sort.SliceStable(summaries, func(i, j int) bool {
		if !summaries[i].ModifiedAt.Equal(summaries[j].ModifiedAt) {
			return summaries[i].ModifiedAt.After(summaries[j].ModifiedAt)
		}
		return summaries[i].ID < summaries[j].ID
	})
	return summaries, nil
}

func (s *Store) resolve(path string) string {
	if filepath.IsAbs(path) || s.baseDir == "" {
		return path
	}
	return filepath.Join(s.baseDir, path)
}

func validateBatchID(id string) error {
	if id == "" || id == "." || id == ".." || filepath.Base(id) != id {
		return fmt.Errorf("invalid batch id %q", id)
	}
	return nil
}

// HealthCheck verifies that the processed directory exists (creating it if needed) and is writable.
func (s *Store) HealthCheck(_ context.Context) error {
	if err := os.MkdirAll(s.processedDir, 0o755); err != nil {
		return fmt.Errorf("create processed dir: %w", err)
	}
	f, err := os.CreateTemp(s.processedDir, ".health-*")
	if err != nil {
		return fmt.Errorf("processed dir not writable: %w", err)
	}
	name := f.Name()
	_ = f.Close()
	if err := os.Remove(name); err != nil {
		return fmt.Errorf("remove probe file: %w", err)
	}
	return nil
}
