package batch

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/kailas-cloud/objsearch/internal/domain"
	"github.com/kailas-cloud/objsearch/internal/domain/detection"
	"github.com/kailas-cloud/objsearch/internal/domain/entry"
	"github.com/kailas-cloud/objsearch/internal/metrics"
	"github.com/kailas-cloud/objsearch/internal/repository/metadata"
)

// --- Mocks ---

type mockDetector struct {
	results   [][]detection.Detection
	err       error
	block     bool
	gotImages []string
	gotWeight string
	callCount int
}

func (m *mockDetector) Detect(ctx context.Context, images []string, weights string) ([][]detection.Detection, error) {
	m.callCount++
	m.gotImages = images
	m.gotWeight = weights
	if m.block {
		<-ctx.Done()
		return nil, ctx.Err()
	}
	if m.err != nil {
		return nil, m.err
	}
	if m.results != nil {
		return m.results, nil
	}
	return make([][]detection.Detection, len(images)), nil
}

type mockStore struct {
	createErr error
	saveErr   error
	created   []string
	removed   []string
	saved     map[string][]entry.Entry
}

func (m *mockStore) CreateBatchDir(_ context.Context, batchID string) (string, error) {
	if m.createErr != nil {
		return "", m.createErr
	}
	m.created = append(m.created, batchID)
	return "/processed/" + batchID, nil
}

func (m *mockStore) RemoveBatchDir(_ context.Context, batchID string) error {
	m.removed = append(m.removed, batchID)
	return nil
}

func (m *mockStore) Save(_ context.Context, batchID string, entries []entry.Entry) (string, error) {
	if m.saveErr != nil {
		return "", m.saveErr
	}
	if m.saved == nil {
		m.saved = make(map[string][]entry.Entry)
	}
	m.saved[batchID] = entries
	return "/processed/" + batchID + "/metadata.json", nil
}

var fixedID = uuid.MustParse("6f1c2a4e-9b7d-4c3a-8e2f-1a2b3c4d5e6f")

func newService(det Detector, store BatchStore) *Service {
	return New(det, store, nil).
		WithIDGenerator(func() uuid.UUID { return fixedID }).
		WithClock(func() time.Time { return time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC) })
}

func mkdet(t *testing.T, class string) detection.Detection {
	t.Helper()
	d, err := detection.New(class, 0.8, detection.BoundingBox{X1: 1, Y1: 1, X2: 20, Y2: 20})
	if err != nil {
		t.Fatalf("detection.New: %v", err)
	}
	return d
}

func touch(t *testing.T, dir string, names ...string) []string {
	t.Helper()
	out := make([]string, len(names))
	for i, n := range names {
		p := filepath.Join(dir, n)
		if err := os.WriteFile(p, []byte("img"), 0o644); err != nil {
			t.Fatalf("write %s: %v", p, err)
		}
		out[i] = p
	}
	return out
}

// --- Process tests ---

func TestProcess_Files(t *testing.T) {
	dir := t.TempDir()
	files := touch(t, dir, "b.jpg", "a.jpg")
	det := &mockDetector{results: [][]detection.Detection{
		{mkdet(t, "cat"), mkdet(t, "cat"), mkdet(t, "dog")},
		{},
	}}
	store := &mockStore{}
	svc := newService(det, store)

	before := testutil.ToFloat64(metrics.BatchesTotal.WithLabelValues("ok"))
	b, err := svc.Process(context.Background(), Source{Files: files}, "custom.pt")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if b.ID() != fixedID {
		t.Errorf("ID = %s, want %s", b.ID(), fixedID)
	}
	if b.MetadataPath() != "/processed/"+fixedID.String()+"/metadata.json" {
		t.Errorf("MetadataPath = %q", b.MetadataPath())
	}
	if !b.CreatedAt().Equal(time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)) {
		t.Errorf("CreatedAt = %v", b.CreatedAt())
	}
	if det.gotWeight != "custom.pt" {
		t.Errorf("weights = %q, want custom.pt", det.gotWeight)
	}

	entries := b.Entries()
	if len(entries) != 2 {
		t.Fatalf("expected 2 entries, got %d", len(entries))
	}
	// explicit file lists keep caller order
	if entries[0].ImagePath() != files[0] || entries[1].ImagePath() != files[1] {
		t.Errorf("entry order = [%s %s]", entries[0].ImagePath(), entries[1].ImagePath())
	}
	if entries[0].Count("cat") != 2 || entries[0].Count("dog") != 1 {
		t.Errorf("class counts = %v", entries[0].ClassCounts())
	}
	if entries[1].TotalObjects() != 0 {
		t.Errorf("expected no detections, got %d", entries[1].TotalObjects())
	}
	if len(store.saved[fixedID.String()]) != 2 {
		t.Error("batch document was not saved")
	}
	if len(store.removed) != 0 {
		t.Errorf("unexpected removal: %v", store.removed)
	}
	if after := testutil.ToFloat64(metrics.BatchesTotal.WithLabelValues("ok")); after-before != 1 {
		t.Errorf("batches_total{ok} delta = %f, want 1", after-before)
	}
}

func TestProcess_DefaultWeights(t *testing.T) {
	files := touch(t, t.TempDir(), "a.png")

	det := &mockDetector{}
	if _, err := newService(det, &mockStore{}).Process(context.Background(), Source{Files: files}, ""); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if det.gotWeight != DefaultWeights {
		t.Errorf("weights = %q, want %q", det.gotWeight, DefaultWeights)
	}

	det = &mockDetector{}
	svc := newService(det, &mockStore{}).WithDefaultWeights("yolo11n.pt")
	if _, err := svc.Process(context.Background(), Source{Files: files}, ""); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if det.gotWeight != "yolo11n.pt" {
		t.Errorf("weights = %q, want yolo11n.pt", det.gotWeight)
	}
}

func TestProcess_SourceNotFound(t *testing.T) {
	empty := t.TempDir()
	touch(t, empty, "notes.txt")
	plainFile := touch(t, t.TempDir(), "a.jpg")[0]

	tests := []struct {
		name string
		src  Source
	}{
		{"missing directory", Source{Dir: filepath.Join(t.TempDir(), "nope")}},
		{"missing file", Source{Files: []string{filepath.Join(t.TempDir(), "ghost.jpg")}}},
		{"directory given as file", Source{Files: []string{t.TempDir()}}},
		{"no images in directory", Source{Dir: empty}},
		{"directory is a regular file", Source{Dir: plainFile}},
		{"empty source", Source{}},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			det := &mockDetector{}
			store := &mockStore{}
			before := testutil.ToFloat64(metrics.BatchesTotal.WithLabelValues("source_not_found"))
			_, err := newService(det, store).Process(context.Background(), tc.src, "")
			if !errors.Is(err, domain.ErrSourceNotFound) {
				t.Fatalf("expected ErrSourceNotFound, got %v", err)
			}
			if got := testutil.ToFloat64(metrics.BatchesTotal.WithLabelValues("source_not_found")); got != before+1 {
				t.Errorf("source_not_found counter = %v, want %v", got, before+1)
			}
			if det.callCount != 0 {
				t.Error("detector must not run")
			}
			if len(store.created) != 0 {
				t.Error("no batch directory may be created")
			}
		})
	}
}

func TestProcess_DetectionFailedRemovesBatch(t *testing.T) {
	files := touch(t, t.TempDir(), "a.jpg")
	det := &mockDetector{err: domain.NewDetectionFailed(errors.New("exit status 1"), "CUDA out of memory")}
	store := &mockStore{}

	_, err := newService(det, store).Process(context.Background(), Source{Files: files}, "")
	if !errors.Is(err, domain.ErrDetectionFailed) {
		t.Fatalf("expected ErrDetectionFailed, got %v", err)
	}
	var dfe *domain.DetectionFailedError
	if !errors.As(err, &dfe) || dfe.Diagnostic != "CUDA out of memory" {
		t.Errorf("diagnostic not preserved: %v", err)
	}
	if len(store.removed) != 1 || store.removed[0] != fixedID.String() {
		t.Errorf("removed = %v, want [%s]", store.removed, fixedID)
	}
	if len(store.saved) != 0 {
		t.Error("no document may be written on failure")
	}
}

func TestProcess_UnclassifiedDetectorErrorIsDetectionFailed(t *testing.T) {
	files := touch(t, t.TempDir(), "a.jpg")
	det := &mockDetector{err: errors.New("boom")}

	_, err := newService(det, &mockStore{}).Process(context.Background(), Source{Files: files}, "")
	if !errors.Is(err, domain.ErrDetectionFailed) {
		t.Errorf("expected ErrDetectionFailed, got %v", err)
	}
}

func TestProcess_Timeout(t *testing.T) {
	files := touch(t, t.TempDir(), "a.jpg")
	det := &mockDetector{block: true}
	store := &mockStore{}
	svc := newService(det, store).WithTimeout(20 * time.Millisecond)

	_, err := svc.Process(context.Background(), Source{Files: files}, "")
	if !errors.Is(err, domain.ErrDetectionFailed) {
		t.Fatalf("expected ErrDetectionFailed, got %v", err)
	}
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("expected deadline in chain, got %v", err)
	}
	if len(store.removed) != 1 {
		t.Error("batch directory must be removed after timeout")
	}
}

func TestProcess_ResultCountMismatch(t *testing.T) {
	files := touch(t, t.TempDir(), "a.jpg", "b.jpg")
	det := &mockDetector{results: [][]detection.Detection{{}}}
	store := &mockStore{}

	_, err := newService(det, store).Process(context.Background(), Source{Files: files}, "")
	if !errors.Is(err, domain.ErrMalformedDetectorOutput) {
		t.Fatalf("expected ErrMalformedDetectorOutput, got %v", err)
	}
	if len(store.removed) != 1 {
		t.Error("batch directory must be removed")
	}
}

func TestProcess_SaveErrorRemovesBatch(t *testing.T) {
	files := touch(t, t.TempDir(), "a.jpg")
	store := &mockStore{saveErr: errors.New("disk full")}

	_, err := newService(&mockDetector{}, store).Process(context.Background(), Source{Files: files}, "")
	if err == nil {
		t.Fatal("expected error")
	}
	if len(store.removed) != 1 {
		t.Error("batch directory must be removed")
	}
}

func TestProcess_CreateDirError(t *testing.T) {
	files := touch(t, t.TempDir(), "a.jpg")
	det := &mockDetector{}
	store := &mockStore{createErr: errors.New("permission denied")}

	if _, err := newService(det, store).Process(context.Background(), Source{Files: files}, ""); err == nil {
		t.Fatal("expected error")
	}
	if det.callCount != 0 {
		t.Error("detector must not run without a batch directory")
	}
}

// --- Resolve tests ---

func TestResolve_Directory(t *testing.T) {
	dir := t.TempDir()
	touch(t, dir, "c.JPG", "a.png", "b.jpeg", "notes.txt", "d.gif")
	if err := os.Mkdir(filepath.Join(dir, "sub.jpg"), 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}

	got, err := New(nil, nil, nil).Resolve(Source{Dir: dir})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := []string{
		filepath.Join(dir, "a.png"),
		filepath.Join(dir, "b.jpeg"),
		filepath.Join(dir, "c.JPG"),
	}
	if len(got) != len(want) {
		t.Fatalf("got %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("got[%d] = %q, want %q", i, got[i], want[i])
		}
	}
}

func TestResolve_MaxItems(t *testing.T) {
	dir := t.TempDir()
	touch(t, dir, "3.jpg", "1.jpg", "2.jpg")

	got, err := New(nil, nil, nil).Resolve(Source{Dir: dir, MaxItems: 2})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(got) != 2 || filepath.Base(got[0]) != "1.jpg" || filepath.Base(got[1]) != "2.jpg" {
		t.Errorf("got %v", got)
	}
}

func TestResolve_CustomExtensions(t *testing.T) {
	dir := t.TempDir()
	touch(t, dir, "a.jpg", "b.webp")

	got, err := New(nil, nil, nil).WithExtensions([]string{".WEBP"}).Resolve(Source{Dir: dir})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(got) != 1 || filepath.Base(got[0]) != "b.webp" {
		t.Errorf("got %v", got)
	}
}

// dogDetector reports one dog per image. Safe for concurrent use.
type dogDetector struct{}

func (dogDetector) Detect(_ context.Context, images []string, _ string) ([][]detection.Detection, error) {
	out := make([][]detection.Detection, len(images))
	for i := range images {
		out[i] = []detection.Detection{
			detection.Reconstruct("dog", 0.9, detection.BoundingBox{X1: 1, Y1: 1, X2: 20, Y2: 20}),
		}
	}
	return out, nil
}

func TestProcess_ConcurrentBatches(t *testing.T) {
	const n = 16
	files := touch(t, t.TempDir(), "a.jpg", "b.jpg")
	store := metadata.New(filepath.Join(t.TempDir(), "processed"), "", nil)
	svc := New(dogDetector{}, store, nil)

	ids := make([]string, n)
	errs := make([]error, n)
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			b, err := svc.Process(context.Background(), Source{Files: files}, "")
			errs[i] = err
			if err == nil {
				ids[i] = b.ID().String()
			}
		}(i)
	}
	wg.Wait()

	seen := make(map[string]bool, n)
	for i := 0; i < n; i++ {
		if errs[i] != nil {
			t.Fatalf("Process %d: %v", i, errs[i])
		}
		if seen[ids[i]] {
			t.Fatalf("duplicate batch id %s", ids[i])
		}
		seen[ids[i]] = true
		if info, err := os.Stat(store.BatchDir(ids[i])); err != nil || !info.IsDir() {
			t.Errorf("batch dir for %s missing: %v", ids[i], err)
		}
	}

	list, err := store.List(context.Background())
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(list) != n {
		t.Fatalf("listed %d batches, want %d", len(list), n)
	}
	for _, s := range list {
		if !seen[s.ID] {
			t.Errorf("unexpected batch %s in listing", s.ID)
		}
		if s.ImageCount != 2 {
			t.Errorf("batch %s has %d images, want 2", s.ID, s.ImageCount)
		}
	}
}
