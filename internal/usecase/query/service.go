package query

import (
	"context"
	"sort"

	"go.uber.org/zap"

	"github.com/kailas-cloud/objsearch/internal/domain"
	"github.com/kailas-cloud/objsearch/internal/domain/entry"
	"github.com/kailas-cloud/objsearch/internal/domain/search/request"
	logpkg "github.com/kailas-cloud/objsearch/internal/logger"
	"github.com/kailas-cloud/objsearch/internal/metrics"
)

// Universe is the set of classes observed in a metadata snapshot and,
// per class, the distinct per-image counts (strictly ascending).
type Universe struct {
	Classes []string
	Counts  map[string][]int
}

// Service evaluates class searches over an in-memory entry snapshot.
// It never mutates its input; concurrent calls on the same snapshot are safe.
type Service struct {
	logger *zap.Logger
}

// New creates a query service. logger may be nil.
func New(logger *zap.Logger) *Service {
	return &Service{logger: logger}
}

// ClassUniverse collects the sorted class labels and their observed per-image counts.
// Malformed entries are skipped with a warning.
func (s *Service) ClassUniverse(ctx context.Context, entries []entry.Entry) (Universe, error) {
	if len(entries) == 0 {
		return Universe{}, domain.ErrEmptyMetadata
	}
	log := logpkg.FromContextOr(ctx, s.logger)

	seen := make(map[string]map[int]struct{})
	for i := range entries {
		e := &entries[i]
		if e.Malformed() {
			log.Warn("Skipping entry with malformed detections",
				zap.Int("index", i), zap.String("image_path", e.ImagePath()))
			metrics.SkippedEntriesTotal.WithLabelValues("class_universe").Inc()
			continue
		}
		for class, n := range e.ClassCounts() {
			if seen[class] == nil {
				seen[class] = make(map[int]struct{})
			}
			seen[class][n] = struct{}{}
		}
	}

	u := Universe{
		Classes: make([]string, 0, len(seen)),
		Counts:  make(map[string][]int, len(seen)),
	}
	for class, set := range seen {
		u.Classes = append(u.Classes, class)
		counts := make([]int, 0, len(set))
		for n := range set {
			counts = append(counts, n)
		}
		sort.Ints(counts)
		u.Counts[class] = counts
	}
	sort.Strings(u.Classes)
	return u, nil
}

// Search returns the entries matching req, in their original order.
//
// Per selected class c, count_c is the number of detections labeled c. A class matches
// when count_c >= 1 and, if a threshold is set, count_c <= threshold. OR mode keeps an
// entry when any class matches, AND mode when all do. An empty or nil request matches nothing.
func (s *Service) Search(ctx context.Context, entries []entry.Entry, req *request.Request) ([]entry.Entry, error) {
	if len(entries) == 0 {
		return nil, domain.ErrEmptyMetadata
	}

	matched := make([]entry.Entry, 0)
	if req == nil || req.IsEmpty() {
		return matched, nil
	}
	log := logpkg.FromContextOr(ctx, s.logger)

	classes := req.Classes()
	perClass := make([]bool, len(classes))
	for i := range entries {
		e := &entries[i]
		if e.Malformed() {
			log.Warn("Skipping entry with malformed detections",
				zap.Int("index", i), zap.String("image_path", e.ImagePath()))
			metrics.SkippedEntriesTotal.WithLabelValues("search").Inc()
			continue
		}
		for j, class := range classes {
			perClass[j] = req.Threshold(class).Allows(e.Count(class))
		}
		if req.Mode().Combine(perClass) {
			matched = append(matched, *e)
		}
	}

	metrics.SearchesTotal.WithLabelValues(string(req.Mode())).Inc()
	metrics.SearchMatches.Observe(float64(len(matched)))
	log.Debug("Search completed",
		zap.Strings("classes", classes),
		zap.String("mode", string(req.Mode())),
		zap.Int("entries", len(entries)),
		zap.Int("matches", len(matched)),
	)
	return matched, nil
}
