package objsearch

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"time"

	"go.uber.org/zap"

	"github.com/kailas-cloud/objsearch/internal/domain"
	"github.com/kailas-cloud/objsearch/internal/domain/detection"
	"github.com/kailas-cloud/objsearch/internal/domain/entry"
	"github.com/kailas-cloud/objsearch/internal/metrics"
	"github.com/kailas-cloud/objsearch/internal/repository/export"
	"github.com/kailas-cloud/objsearch/internal/repository/metadata"
	"github.com/kailas-cloud/objsearch/internal/transport/subprocess"
	"github.com/kailas-cloud/objsearch/internal/usecase/annotate"
	batchuc "github.com/kailas-cloud/objsearch/internal/usecase/batch"
	healthuc "github.com/kailas-cloud/objsearch/internal/usecase/health"
	queryuc "github.com/kailas-cloud/objsearch/internal/usecase/query"
)

// Detector runs object detection over images, returning one detection list
// per image in input order.
type Detector interface {
	Detect(ctx context.Context, images []string, weights string) ([][]Detection, error)
}

// Client is the objsearch entry point.
type Client struct {
	store     *metadata.Store
	batchSvc  *batchuc.Service
	querySvc  *queryuc.Service
	renderer  *annotate.Renderer
	healthSvc *healthuc.Service
	style     annotate.Style
	obs       *observer
}

// New creates a Client.
func New(opts ...Option) (*Client, error) {
	cfg := &clientConfig{
		processedDir: filepath.Join("data", "processed"),
	}
	for _, o := range opts {
		o.apply(cfg)
	}

	style, err := buildStyle(cfg.style)
	if err != nil {
		return nil, fmt.Errorf("objsearch: %w", err)
	}

	if cfg.metricsReg != nil {
		if err := metrics.Register(cfg.metricsReg); err != nil {
			return nil, fmt.Errorf("objsearch: %w", err)
		}
	}
	obs, err := newObserver(cfg.logger, cfg.metricsReg)
	if err != nil {
		return nil, err
	}

	return wireClient(cfg, style, obs), nil
}

func wireClient(cfg *clientConfig, style annotate.Style, obs *observer) *Client {
	logger := cfg.logger
	if logger == nil {
		logger = zap.NewNop()
	}

	store := metadata.New(cfg.processedDir, cfg.baseDir, logger)

	// Detector: noop unless configured (search and render work without it).
	var det batchuc.Detector = &noopDetector{}
	var detHealth healthuc.DetectorChecker
	switch {
	case cfg.detector != nil:
		det = &detectorAdapter{inner: cfg.detector}
	case cfg.command != "":
		sp := subprocess.NewDetector(&subprocess.Config{
			Command: cfg.command,
			Args:    cfg.args,
			Logger:  logger,
		})
		det = sp
		detHealth = sp
	}

	batchSvc := batchuc.New(det, store, logger).
		WithExtensions(cfg.extensions).
		WithDefaultWeights(cfg.defaultWeights).
		WithTimeout(cfg.timeout)

	return &Client{
		store:     store,
		batchSvc:  batchSvc,
		querySvc:  queryuc.New(logger),
		renderer:  annotate.New(cfg.baseDir, logger),
		healthSvc: healthuc.New(store, detHealth),
		style:     style,
		obs:       obs,
	}
}

func buildStyle(s Style) (annotate.Style, error) {
	out := annotate.DefaultStyle()
	if s.StrokeWidth > 0 {
		out.Width = s.StrokeWidth
	}
	var err error
	if s.Color != "" {
		if out.Color, err = annotate.ParseHexColor(s.Color); err != nil {
			return annotate.Style{}, err
		}
	}
	if s.HighlightColor != "" {
		if out.Accent, err = annotate.ParseHexColor(s.HighlightColor); err != nil {
			return annotate.Style{}, err
		}
	}
	if s.MutedColor != "" {
		if out.Muted, err = annotate.ParseHexColor(s.MutedColor); err != nil {
			return annotate.Style{}, err
		}
	}
	return out, nil
}

// Process runs the detector over explicit image files and persists a new batch.
// An empty weights reference selects the configured default.
func (c *Client) Process(ctx context.Context, files []string, weights string) (b *Batch, err error) {
	defer func(start time.Time) { c.obs.observe("process", start, err) }(time.Now())

	res, err := c.batchSvc.Process(ctx, batchuc.Source{Files: files}, weights)
	if err != nil {
		return nil, fmt.Errorf("process: %w", err)
	}
	return fromBatch(&res), nil
}

// ProcessDir processes the images directly inside dir, in lexical filename order.
// maxItems caps the number of images; zero means no cap.
func (c *Client) ProcessDir(ctx context.Context, dir string, maxItems int, weights string) (b *Batch, err error) {
	defer func(start time.Time) { c.obs.observe("process_dir", start, err) }(time.Now())

	res, err := c.batchSvc.Process(ctx, batchuc.Source{Dir: dir, MaxItems: maxItems}, weights)
	if err != nil {
		return nil, fmt.Errorf("process dir: %w", err)
	}
	return fromBatch(&res), nil
}

// Batches lists processed batches, newest first.
func (c *Client) Batches(ctx context.Context) ([]BatchSummary, error) {
	list, err := c.store.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("list batches: %w", err)
	}
	out := make([]BatchSummary, len(list))
	for i, s := range list {
		out[i] = BatchSummary{
			ID:           s.ID,
			MetadataPath: s.MetadataPath,
			ImageCount:   s.ImageCount,
			ModifiedAt:   s.ModifiedAt,
		}
	}
	return out, nil
}

// Load reads the entries of a metadata document. path may also name a batch directory.
func (c *Client) Load(ctx context.Context, path string) ([]Entry, error) {
	entries, err := c.store.Load(ctx, path)
	if err != nil {
		return nil, fmt.Errorf("load: %w", err)
	}
	return fromEntries(entries), nil
}

// Classes returns the class universe of a metadata document.
func (c *Client) Classes(ctx context.Context, path string) (ClassUniverse, error) {
	entries, err := c.store.Load(ctx, path)
	if err != nil {
		return ClassUniverse{}, fmt.Errorf("classes: %w", err)
	}
	u, err := c.querySvc.ClassUniverse(ctx, entries)
	if err != nil {
		return ClassUniverse{}, fmt.Errorf("classes: %w", err)
	}
	return ClassUniverse{Classes: u.Classes, Counts: u.Counts}, nil
}

// ClassUniverseJSON computes the class universe of a raw metadata payload.
func (c *Client) ClassUniverseJSON(ctx context.Context, raw []byte) (ClassUniverse, error) {
	entries, err := metadata.DecodeEntries(raw)
	if err != nil {
		return ClassUniverse{}, fmt.Errorf("classes: %w", err)
	}
	u, err := c.querySvc.ClassUniverse(ctx, entries)
	if err != nil {
		return ClassUniverse{}, fmt.Errorf("classes: %w", err)
	}
	return ClassUniverse{Classes: u.Classes, Counts: u.Counts}, nil
}

// Search loads a metadata document and returns the entries matching params, in document order.
func (c *Client) Search(ctx context.Context, path string, params SearchParams) (res []Entry, err error) {
	defer func(start time.Time) { c.obs.observe("search", start, err) }(time.Now())

	entries, err := c.store.Load(ctx, path)
	if err != nil {
		return nil, fmt.Errorf("search: %w", err)
	}
	return c.search(ctx, entries, params)
}

// SearchEntries filters an in-memory entry snapshot.
func (c *Client) SearchEntries(ctx context.Context, entries []Entry, params SearchParams) (res []Entry, err error) {
	defer func(start time.Time) { c.obs.observe("search", start, err) }(time.Now())
	return c.search(ctx, toEntries(entries), params)
}

func (c *Client) search(ctx context.Context, entries []entry.Entry, params SearchParams) ([]Entry, error) {
	req, err := toRequest(params)
	if err != nil {
		return nil, fmt.Errorf("search: %w", err)
	}
	matched, err := c.querySvc.Search(ctx, entries, &req)
	if err != nil {
		return nil, fmt.Errorf("search: %w", err)
	}
	return fromEntries(matched), nil
}

// SearchJSON filters a raw metadata payload and returns the matches in the same document format.
func (c *Client) SearchJSON(ctx context.Context, raw []byte, params SearchParams) (out []byte, err error) {
	defer func(start time.Time) { c.obs.observe("search_json", start, err) }(time.Now())

	entries, err := metadata.DecodeEntries(raw)
	if err != nil {
		return nil, fmt.Errorf("search: %w", err)
	}
	req, err := toRequest(params)
	if err != nil {
		return nil, fmt.Errorf("search: %w", err)
	}
	matched, err := c.querySvc.Search(ctx, entries, &req)
	if err != nil {
		return nil, fmt.Errorf("search: %w", err)
	}
	return metadata.EncodeEntries(matched)
}

// Render draws the entry's detections over its image and writes a PNG to w.
func (c *Client) Render(ctx context.Context, e Entry, w io.Writer, opts RenderOptions) (err error) {
	defer func(start time.Time) { c.obs.observe("render", start, err) }(time.Now())

	style := c.style
	style.Highlight = opts.Highlight
	style.HideOthers = opts.HideOthers

	de := toEntry(e)
	if err := c.renderer.RenderFile(ctx, &de, style, w); err != nil {
		return fmt.Errorf("render: %w", err)
	}
	return nil
}

// Export writes entries to path as "json" (metadata document format) or "parquet"
// (one row per detection). An empty format is picked from the path extension.
func (c *Client) Export(ctx context.Context, path, format string, entries []Entry) error {
	var f export.Format
	if format != "" {
		parsed, err := export.ParseFormat(format)
		if err != nil {
			return fmt.Errorf("export: %w: %w", domain.ErrInvalidRequest, err)
		}
		f = parsed
	}
	if err := export.WriteFile(ctx, path, f, toEntries(entries)); err != nil {
		return fmt.Errorf("export: %w", err)
	}
	return nil
}

// Health checks that metadata can be written and the detector program resolves.
func (c *Client) Health(ctx context.Context) HealthReport {
	r := c.healthSvc.Check(ctx)
	out := HealthReport{
		Status: string(r.Status),
		Checks: make(map[string]string, len(r.Checks)),
		Errors: r.Errors,
	}
	for k, v := range r.Checks {
		out.Checks[k] = string(v)
	}
	return out
}

// noopDetector is used when no detector is configured.
type noopDetector struct{}

func (n *noopDetector) Detect(_ context.Context, _ []string, _ string) ([][]detection.Detection, error) {
	return nil, domain.NewDetectionFailed(errors.New("objsearch: no detector configured"), "")
}

// detectorAdapter validates public detections into domain detections.
type detectorAdapter struct {
	inner Detector
}

func (a *detectorAdapter) Detect(ctx context.Context, images []string, weights string) ([][]detection.Detection, error) {
	res, err := a.inner.Detect(ctx, images, weights)
	if err != nil {
		return nil, err
	}
	out := make([][]detection.Detection, len(res))
	for i, dets := range res {
		out[i] = make([]detection.Detection, len(dets))
		for j, d := range dets {
			box := detection.BoundingBox{X1: d.BBox[0], Y1: d.BBox[1], X2: d.BBox[2], Y2: d.BBox[3]}
			dd, err := detection.New(d.Class, d.Confidence, box)
			if err != nil {
				return nil, fmt.Errorf("image %d detection %d: %v: %w", i, j, err, domain.ErrMalformedDetectorOutput)
			}
			out[i][j] = dd
		}
	}
	return out, nil
}
