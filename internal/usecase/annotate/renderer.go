package annotate

import (
	"context"
	"fmt"
	"image"
	"image/color"
	_ "image/gif"  // register decoder
	_ "image/jpeg" // register decoder
	"image/png"
	"io"
	"math"
	"os"
	"path/filepath"

	_ "golang.org/x/image/bmp" // register decoder
	"golang.org/x/image/draw"
	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"
	_ "golang.org/x/image/tiff" // register decoder
	_ "golang.org/x/image/webp" // register decoder
	"go.uber.org/zap"

	"github.com/kailas-cloud/objsearch/internal/domain/detection"
	"github.com/kailas-cloud/objsearch/internal/domain/entry"
	logpkg "github.com/kailas-cloud/objsearch/internal/logger"
	"github.com/kailas-cloud/objsearch/internal/metrics"
)

const tagPadding = 2

var labelFace font.Face = basicfont.Face7x13

// Renderer draws detection overlays onto images.
type Renderer struct {
	baseDir string
	logger  *zap.Logger
}

// New creates a renderer. Relative image paths resolve against baseDir.
func New(baseDir string, logger *zap.Logger) *Renderer {
	return &Renderer{baseDir: baseDir, logger: logger}
}

// Render returns a copy of img with a box and a "<class> <confidence>" tag per detection.
// img is never modified. Without detections img itself is returned.
func Render(img image.Image, detections []detection.Detection, style Style) image.Image {
	if len(detections) == 0 {
		return img
	}

	b := img.Bounds()
	dst := image.NewRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))
	draw.Draw(dst, dst.Bounds(), img, b.Min, draw.Src)

	highlighted := make(map[string]struct{}, len(style.Highlight))
	for _, c := range style.Highlight {
		highlighted[c] = struct{}{}
	}

	for _, d := range detections {
		c, width, ok := style.pen(d.Class(), highlighted)
		if !ok {
			continue
		}
		r := pixelRect(d.Box())
		strokeRect(dst, r, c, width)
		drawTag(dst, r, fmt.Sprintf("%s %.2f", d.Class(), d.Confidence()), c)
	}
	return dst
}

// RenderFile decodes the entry's image, draws its detections and writes the result as PNG.
func (r *Renderer) RenderFile(ctx context.Context, e *entry.Entry, style Style, w io.Writer) error {
	log := logpkg.FromContextOr(ctx, r.logger)

	img, err := r.decode(e.ImagePath())
	if err != nil {
		metrics.RendersTotal.WithLabelValues("error").Inc()
		return err
	}
	out := Render(img, e.Detections(), style)
	if err := png.Encode(w, out); err != nil {
		metrics.RendersTotal.WithLabelValues("error").Inc()
		return fmt.Errorf("encode png: %w", err)
	}

	metrics.RendersTotal.WithLabelValues("ok").Inc()
	log.Debug("Overlay rendered",
		zap.String("image_path", e.ImagePath()),
		zap.Int("detections", e.TotalObjects()),
	)
	return nil
}

func (r *Renderer) decode(path string) (image.Image, error) {
	if !filepath.IsAbs(path) && r.baseDir != "" {
		path = filepath.Join(r.baseDir, path)
	}
	f, err := os.Open(filepath.Clean(path))
	if err != nil {
		return nil, fmt.Errorf("open image: %w", err)
	}
	defer func() { _ = f.Close() }()

	img, _, err := image.Decode(f)
	if err != nil {
		return nil, fmt.Errorf("decode image %s: %w", path, err)
	}
	return img, nil
}

func pixelRect(b detection.BoundingBox) image.Rectangle {
	return image.Rect(
		int(math.Round(b.X1)), int(math.Round(b.Y1)),
		int(math.Round(b.X2)), int(math.Round(b.Y2)),
	)
}

// strokeRect draws the outline of r inward with the given width, clipped to dst.
func strokeRect(dst *image.RGBA, r image.Rectangle, c color.RGBA, width int) {
	if width*2 > r.Dx() || width*2 > r.Dy() {
		fill(dst, r, c)
		return
	}
	fill(dst, image.Rect(r.Min.X, r.Min.Y, r.Max.X, r.Min.Y+width), c)
	fill(dst, image.Rect(r.Min.X, r.Max.Y-width, r.Max.X, r.Max.Y), c)
	fill(dst, image.Rect(r.Min.X, r.Min.Y, r.Min.X+width, r.Max.Y), c)
	fill(dst, image.Rect(r.Max.X-width, r.Min.Y, r.Max.X, r.Max.Y), c)
}

func fill(dst *image.RGBA, r image.Rectangle, c color.RGBA) {
	draw.Draw(dst, r.Intersect(dst.Bounds()), image.NewUniform(c), image.Point{}, draw.Src)
}

// tagSize returns the width and height of a tag holding label.
func tagSize(label string) (int, int) {
	m := labelFace.Metrics()
	w := font.MeasureString(labelFace, label).Ceil() + 2*tagPadding
	h := (m.Ascent + m.Descent).Ceil() + 2*tagPadding
	return w, h
}

// tagOrigin places a tag of size w×h for box: above its top edge when there is room,
// otherwise inside the box at its top-left corner. The tag never crosses the right frame edge.
func tagOrigin(box, frame image.Rectangle, w, h int) image.Point {
	p := image.Pt(box.Min.X, box.Min.Y-h)
	if p.Y < frame.Min.Y {
		p.Y = box.Min.Y
	}
	if p.X+w > frame.Max.X {
		p.X = frame.Max.X - w
	}
	if p.X < frame.Min.X {
		p.X = frame.Min.X
	}
	return p
}

func drawTag(dst *image.RGBA, box image.Rectangle, label string, c color.RGBA) {
	w, h := tagSize(label)
	p := tagOrigin(box, dst.Bounds(), w, h)
	fill(dst, image.Rect(p.X, p.Y, p.X+w, p.Y+h), c)

	d := font.Drawer{
		Dst:  dst,
		Src:  image.White,
		Face: labelFace,
		Dot:  fixed.P(p.X+tagPadding, p.Y+tagPadding+labelFace.Metrics().Ascent.Ceil()),
	}
	d.DrawString(label)
}
