package batch

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/kailas-cloud/objsearch/internal/domain"
	dombatch "github.com/kailas-cloud/objsearch/internal/domain/batch"
	"github.com/kailas-cloud/objsearch/internal/domain/entry"
	logpkg "github.com/kailas-cloud/objsearch/internal/logger"
	"github.com/kailas-cloud/objsearch/internal/metrics"
)

const (
	// DefaultWeights is the detector weights reference used when none is given.
	DefaultWeights = "yolo11m.pt"
	// DefaultTimeout bounds a single detector invocation.
	DefaultTimeout = 10 * time.Minute
)

// DefaultExtensions are the image extensions picked up from a source directory.
var DefaultExtensions = []string{".jpg", ".jpeg", ".png"}

// Source selects the images of a batch: an explicit file list, or a directory.
// MaxItems caps directory resolution; zero means no cap.
type Source struct {
	Files    []string
	Dir      string
	MaxItems int
}

// Service runs the detector over a source and persists the resulting batch.
type Service struct {
	detector       Detector
	store          BatchStore
	logger         *zap.Logger
	extensions     map[string]struct{}
	defaultWeights string
	timeout        time.Duration
	now            func() time.Time
	newID          func() uuid.UUID
}

// New creates a batch service.
func New(detector Detector, store BatchStore, logger *zap.Logger) *Service {
	s := &Service{
		detector:       detector,
		store:          store,
		logger:         logger,
		defaultWeights: DefaultWeights,
		timeout:        DefaultTimeout,
		now:            time.Now,
		newID:          uuid.New,
	}
	return s.WithExtensions(DefaultExtensions)
}

// WithExtensions sets the image extensions accepted during directory resolution.
func (s *Service) WithExtensions(exts []string) *Service {
	if len(exts) == 0 {
		return s
	}
	s.extensions = make(map[string]struct{}, len(exts))
	for _, e := range exts {
		s.extensions[strings.ToLower(e)] = struct{}{}
	}
	return s
}

// WithDefaultWeights sets the weights reference used when Process gets an empty one.
func (s *Service) WithDefaultWeights(weights string) *Service {
	if weights != "" {
		s.defaultWeights = weights
	}
	return s
}

// WithTimeout bounds each detector invocation.
func (s *Service) WithTimeout(d time.Duration) *Service {
	if d > 0 {
		s.timeout = d
	}
	return s
}

// WithClock overrides the batch timestamp source.
func (s *Service) WithClock(now func() time.Time) *Service {
	if now != nil {
		s.now = now
	}
	return s
}

// WithIDGenerator overrides batch id allocation.
func (s *Service) WithIDGenerator(gen func() uuid.UUID) *Service {
	if gen != nil {
		s.newID = gen
	}
	return s
}

// Process resolves the source, runs the detector and persists one batch document.
// On failure after the batch directory was created, the directory is removed.
func (s *Service) Process(ctx context.Context, src Source, weights string) (dombatch.Batch, error) {
	log := logpkg.FromContextOr(ctx, s.logger)

	images, err := s.Resolve(src)
	if err != nil {
		metrics.BatchesTotal.WithLabelValues(status(err)).Inc()
		return dombatch.Batch{}, err
	}
	if weights == "" {
		weights = s.defaultWeights
	}

	id := s.newID()
	batchID := id.String()
	log = log.With(zap.String("batch_id", batchID))

	if _, err := s.store.CreateBatchDir(ctx, batchID); err != nil {
		metrics.BatchesTotal.WithLabelValues("store_error").Inc()
		return dombatch.Batch{}, fmt.Errorf("create batch: %w", err)
	}

	b, err := s.run(ctx, log, id, images, weights)
	if err != nil {
		if rmErr := s.store.RemoveBatchDir(context.WithoutCancel(ctx), batchID); rmErr != nil {
			log.Error("Failed to remove batch directory", zap.Error(rmErr))
		}
		metrics.BatchesTotal.WithLabelValues(status(err)).Inc()
		log.Warn("Batch failed", zap.Error(err))
		return dombatch.Batch{}, err
	}

	metrics.BatchesTotal.WithLabelValues("ok").Inc()
	metrics.ImagesProcessedTotal.Add(float64(len(images)))
	log.Info("Batch processed",
		zap.Int("images", len(images)),
		zap.String("weights", weights),
		zap.String("metadata_path", b.MetadataPath()),
	)
	return b, nil
}

func (s *Service) run(
	ctx context.Context, log *zap.Logger, id uuid.UUID, images []string, weights string,
) (dombatch.Batch, error) {
	detectCtx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	start := time.Now()
	results, err := s.detector.Detect(detectCtx, images, weights)
	elapsed := time.Since(start)
	if err != nil {
		metrics.DetectorDuration.WithLabelValues("error").Observe(elapsed.Seconds())
		if errors.Is(err, domain.ErrDetectionFailed) || errors.Is(err, domain.ErrMalformedDetectorOutput) {
			return dombatch.Batch{}, fmt.Errorf("detect: %w", err)
		}
		return dombatch.Batch{}, fmt.Errorf("detect: %w", domain.NewDetectionFailed(err, ""))
	}
	metrics.DetectorDuration.WithLabelValues("ok").Observe(elapsed.Seconds())
	log.Debug("Detector finished", zap.Duration("elapsed", elapsed), zap.Int("images", len(images)))

	if len(results) != len(images) {
		return dombatch.Batch{}, fmt.Errorf(
			"detector returned %d results for %d images: %w",
			len(results), len(images), domain.ErrMalformedDetectorOutput,
		)
	}

	entries := make([]entry.Entry, len(images))
	for i, img := range images {
		entries[i] = entry.New(img, results[i])
	}

	path, err := s.store.Save(ctx, id.String(), entries)
	if err != nil {
		return dombatch.Batch{}, fmt.Errorf("save batch: %w", err)
	}
	return dombatch.New(id, s.now(), entries, path), nil
}

// Resolve turns a source into the ordered list of image paths to process.
func (s *Service) Resolve(src Source) ([]string, error) {
	if len(src.Files) > 0 {
		for _, f := range src.Files {
			info, err := os.Stat(f)
			if err != nil || info.IsDir() {
				return nil, fmt.Errorf("image %s: %w", f, domain.ErrSourceNotFound)
			}
		}
		out := make([]string, len(src.Files))
		copy(out, src.Files)
		return out, nil
	}

	if src.Dir == "" {
		return nil, fmt.Errorf("no images given: %w", domain.ErrSourceNotFound)
	}
	info, err := os.Stat(src.Dir)
	if err != nil {
		return nil, fmt.Errorf("directory %s: %w: %w", src.Dir, domain.ErrSourceNotFound, err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("%s is not a directory: %w", src.Dir, domain.ErrSourceNotFound)
	}
	dirents, err := os.ReadDir(src.Dir)
	if err != nil {
		return nil, fmt.Errorf("read directory %s: %w: %w", src.Dir, domain.ErrSourceNotFound, err)
	}

	names := make([]string, 0, len(dirents))
	for _, d := range dirents {
		if !d.Type().IsRegular() {
			continue
		}
		if _, ok := s.extensions[strings.ToLower(filepath.Ext(d.Name()))]; ok {
			names = append(names, d.Name())
		}
	}
	sort.Strings(names)
	if src.MaxItems > 0 && len(names) > src.MaxItems {
		names = names[:src.MaxItems]
	}
	if len(names) == 0 {
		return nil, fmt.Errorf("no images in %s: %w", src.Dir, domain.ErrSourceNotFound)
	}

	out := make([]string, len(names))
	for i, n := range names {
		out[i] = filepath.Join(src.Dir, n)
	}
	return out, nil
}

func status(err error) string {
	switch {
	case errors.Is(err, domain.ErrSourceNotFound):
		return "source_not_found"
	case errors.Is(err, domain.ErrDetectionFailed):
		return "detection_failed"
	case errors.Is(err, domain.ErrMalformedDetectorOutput):
		return "malformed_output"
	default:
		return "store_error"
	}
}
