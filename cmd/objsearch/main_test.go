package main

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"image/color"
	"image/png"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"testing"

	"github.com/spf13/cobra"
	"go.uber.org/zap/zapcore"

	"github.com/kailas-cloud/objsearch/internal/logger"
)

const detectScript = `cat <<'JSON'
[
  {"detections": [
    {"class": "dog", "confidence": 0.9, "bbox": [1, 1, 10, 10]},
    {"class": "dog", "confidence": 0.8, "bbox": [12, 12, 30, 30]}
  ]},
  {"detections": [
    {"class": "cat", "confidence": 0.7, "bbox": [0, 0, 5, 5]}
  ]}
]
JSON
`

type fixture struct {
	dir      string
	config   string
	photos   string
	textfile string
}

func newFixture(t *testing.T) fixture {
	t.Helper()
	if _, err := exec.LookPath("sh"); err != nil {
		t.Skip("sh not available")
	}
	t.Setenv("ENV", "test")

	dir := t.TempDir()
	f := fixture{
		dir:      dir,
		config:   filepath.Join(dir, "objsearch.yaml"),
		photos:   filepath.Join(dir, "photos"),
		textfile: filepath.Join(dir, "objsearch.prom"),
	}
	if err := os.MkdirAll(f.photos, 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	for _, name := range []string{"a.png", "b.png"} {
		writePNG(t, filepath.Join(f.photos, name))
	}

	script := filepath.Join(dir, "detect.sh")
	if err := os.WriteFile(script, []byte(detectScript), 0o644); err != nil {
		t.Fatalf("write script: %v", err)
	}

	cfg := fmt.Sprintf(`storage:
  base_dir: %q
  processed_dir: %q
detector:
  command: sh
  args: [%q]
metrics:
  textfile: %q
`, dir, filepath.Join(dir, "processed"), script, f.textfile)
	if err := os.WriteFile(f.config, []byte(cfg), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return f
}

func writePNG(t *testing.T, path string) {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, 40, 40))
	for y := 0; y < 40; y++ {
		for x := 0; x < 40; x++ {
			img.Set(x, y, color.White)
		}
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatalf("encode png: %v", err)
	}
	if err := os.WriteFile(path, buf.Bytes(), 0o644); err != nil {
		t.Fatalf("write png: %v", err)
	}
}

func (f fixture) run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	root := newRootCmd()
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetArgs(append([]string{"--config", f.config}, args...))
	err := root.ExecuteContext(context.Background())
	return out.String(), err
}

func (f fixture) process(t *testing.T) string {
	t.Helper()
	out, err := f.run(t, "process", "--dir", f.photos)
	if err != nil {
		t.Fatalf("process: %v\n%s", err, out)
	}
	for _, line := range strings.Split(out, "\n") {
		if path, ok := strings.CutPrefix(line, "Metadata:"); ok {
			return strings.TrimSpace(path)
		}
	}
	t.Fatalf("no metadata path in output:\n%s", out)
	return ""
}

func TestCLI_ProcessListClasses(t *testing.T) {
	f := newFixture(t)
	meta := f.process(t)

	if _, err := os.Stat(meta); err != nil {
		t.Fatalf("metadata document missing: %v", err)
	}

	out, err := f.run(t, "batches")
	if err != nil {
		t.Fatalf("batches: %v", err)
	}
	if !strings.Contains(out, meta) || !strings.Contains(out, "2 images") {
		t.Errorf("batches output = %q", out)
	}

	out, err = f.run(t, "classes", meta)
	if err != nil {
		t.Fatalf("classes: %v", err)
	}
	if out != "cat\t1\ndog\t2\n" {
		t.Errorf("classes output = %q", out)
	}
}

func TestCLI_Search(t *testing.T) {
	f := newFixture(t)
	meta := f.process(t)

	tests := []struct {
		name string
		args []string
		want string
	}{
		{"or", []string{"--class", "dog", "--class", "cat"}, "2 matching images"},
		{"and", []string{"--class", "dog,cat", "--mode", "and"}, "0 matching images"},
		{"threshold excludes", []string{"--class", "dog", "--threshold", "dog=1"}, "0 matching images"},
		{"threshold includes", []string{"--class", "dog", "--threshold", "dog=2"}, "1 matching images"},
		{"unbounded", []string{"--class", "dog", "--threshold", "dog=None"}, "1 matching images"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			out, err := f.run(t, append([]string{"search", meta}, tc.args...)...)
			if err != nil {
				t.Fatalf("search: %v", err)
			}
			if !strings.Contains(out, tc.want) {
				t.Errorf("output = %q, want %q", out, tc.want)
			}
		})
	}
}

func TestCLI_SearchParamsFileAndExport(t *testing.T) {
	f := newFixture(t)
	meta := f.process(t)

	params := filepath.Join(f.dir, "params.json")
	if err := os.WriteFile(params, []byte(`{"selectedClasses":["cat"],"searchMode":"OR","thresholds":{"cat":"None"}}`), 0o644); err != nil {
		t.Fatalf("write params: %v", err)
	}
	export := filepath.Join(f.dir, "hits.parquet")

	out, err := f.run(t, "search", meta, "--params", params, "--export", export)
	if err != nil {
		t.Fatalf("search: %v", err)
	}
	if !strings.Contains(out, "b.png") || !strings.Contains(out, "1 matching images") {
		t.Errorf("output = %q", out)
	}
	if info, err := os.Stat(export); err != nil || info.Size() == 0 {
		t.Errorf("export file missing or empty: %v", err)
	}

	if _, err := f.run(t, "search", meta, "--params", params, "--class", "dog"); err == nil {
		t.Error("expected error combining --params and --class")
	}
}

func TestCLI_SearchInvalidThreshold(t *testing.T) {
	f := newFixture(t)
	meta := f.process(t)

	if _, err := f.run(t, "search", meta, "--class", "dog", "--threshold", "dog=lots"); err == nil {
		t.Error("expected error for non-numeric threshold")
	}
	if _, err := f.run(t, "search", meta, "--class", "dog", "--mode", "xor"); err == nil {
		t.Error("expected error for unknown mode")
	}
}

func TestCLI_Render(t *testing.T) {
	f := newFixture(t)
	meta := f.process(t)
	out := filepath.Join(f.dir, "overlay.png")

	if _, err := f.run(t, "render", meta, "a.png", "-o", out, "--highlight", "dog"); err != nil {
		t.Fatalf("render: %v", err)
	}
	file, err := os.Open(out)
	if err != nil {
		t.Fatalf("open overlay: %v", err)
	}
	defer func() { _ = file.Close() }()
	img, err := png.Decode(file)
	if err != nil {
		t.Fatalf("decode overlay: %v", err)
	}
	if img.Bounds().Dx() != 40 {
		t.Errorf("overlay width = %d, want 40", img.Bounds().Dx())
	}

	if _, err := f.run(t, "render", meta, "missing.png", "-o", out); err == nil {
		t.Error("expected error for unknown image")
	}
}

func TestCLI_ProcessRequiresSource(t *testing.T) {
	f := newFixture(t)
	if _, err := f.run(t, "process"); err == nil {
		t.Error("expected error without images or --dir")
	}
	if _, err := f.run(t, "process", "--dir", filepath.Join(f.dir, "nope")); err == nil {
		t.Error("expected error for missing directory")
	}
}

func TestCLI_WritesMetricsTextfile(t *testing.T) {
	f := newFixture(t)
	f.process(t)

	data, err := os.ReadFile(f.textfile)
	if err != nil {
		t.Fatalf("read textfile: %v", err)
	}
	if !strings.Contains(string(data), `objsearch_batches_total{status="ok"}`) {
		t.Errorf("textfile missing batch counter:\n%s", data)
	}
}

func TestCLI_Health(t *testing.T) {
	f := newFixture(t)
	out, err := f.run(t, "health")
	if err != nil {
		t.Fatalf("health: %v\n%s", err, out)
	}
	if !strings.HasPrefix(out, "status: ok") {
		t.Errorf("output = %q", out)
	}
}

func TestCLI_BadConfig(t *testing.T) {
	t.Setenv("ENV", "test")
	path := filepath.Join(t.TempDir(), "bad.yaml")
	if err := os.WriteFile(path, []byte("detector:\n  command: \"\"\n"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	root := newRootCmd()
	root.SetOut(&bytes.Buffer{})
	root.SetErr(&bytes.Buffer{})
	root.SetArgs([]string{"--config", path, "batches"})
	if err := root.Execute(); err == nil {
		t.Error("expected error for config without detector command")
	}
}

func TestCLI_SearchExportFormat(t *testing.T) {
	f := newFixture(t)
	meta := f.process(t)
	export := filepath.Join(f.dir, "hits.out")

	if _, err := f.run(t, "search", meta, "--class", "dog", "--export", export, "--format", "parquet"); err != nil {
		t.Fatalf("search: %v", err)
	}
	data, err := os.ReadFile(export)
	if err != nil {
		t.Fatalf("read export: %v", err)
	}
	if !bytes.HasPrefix(data, []byte("PAR1")) {
		t.Errorf("export is not parquet, starts with %q", data[:min(4, len(data))])
	}

	if _, err := f.run(t, "search", meta, "--class", "dog", "--export", export, "--format", "csv"); err == nil {
		t.Error("expected error for unknown export format")
	}
	if _, err := f.run(t, "search", meta, "--class", "dog", "--format", "json"); err == nil {
		t.Error("expected error for --format without --export")
	}
}

func TestCLI_CommandContextCarriesLogger(t *testing.T) {
	f := newFixture(t)
	t.Setenv("ENV", "local")

	var debugEnabled bool
	root := newRootCmd()
	root.AddCommand(&cobra.Command{
		Use: "ctx-logger",
		RunE: func(cmd *cobra.Command, _ []string) error {
			debugEnabled = logger.FromContext(cmd.Context()).Core().Enabled(zapcore.DebugLevel)
			return nil
		},
	})
	root.SetOut(&bytes.Buffer{})
	root.SetErr(&bytes.Buffer{})
	root.SetArgs([]string{"--config", f.config, "ctx-logger"})
	if err := root.ExecuteContext(context.Background()); err != nil {
		t.Fatalf("execute: %v", err)
	}
	if !debugEnabled {
		t.Error("command context does not carry the configured logger")
	}
}
