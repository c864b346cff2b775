package imaging

import (
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"os"
	"strings"
	"sync"
	"unicode"

	"VSLBackend/internal/entity"
	"github.com/sirupsen/logrus"
	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/font/opentype"
	"golang.org/x/image/math/fixed"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

const (
	labelFontSize  = 16
	boxThickness   = 2
	labelPaddingPx = 4
)

var (
	boxColor  = color.RGBA{R: 0, G: 255, B: 0, A: 255}
	textColor = color.RGBA{R: 0, G: 0, B: 0, A: 255}
)

// Renderer draws detection boxes and labels. font.Face implementations keep
// glyph caches, so every draw holds mu.
type Renderer struct {
	mu        sync.Mutex
	face      font.Face
	asciiOnly bool
}

// NewRenderer loads the TrueType font at fontPath. When the font is missing or
// unreadable it falls back to the built-in 7x13 face and ASCII-safe labels.
func NewRenderer(fontPath string, log *logrus.Logger) *Renderer {
	face, err := loadFace(fontPath)
	if err != nil {
		if log != nil {
			log.WithFields(logrus.Fields{
				"font_path": fontPath,
				"error":     err.Error(),
			}).Warn("Label font unavailable, falling back to ASCII rendering")
		}
		return &Renderer{face: basicfont.Face7x13, asciiOnly: true}
	}
	return &Renderer{face: face}
}

func loadFace(fontPath string) (font.Face, error) {
	if fontPath == "" {
		return nil, fmt.Errorf("font path not configured")
	}
	data, err := os.ReadFile(fontPath)
	if err != nil {
		return nil, err
	}
	parsed, err := opentype.Parse(data)
	if err != nil {
		return nil, fmt.Errorf("parse font: %w", err)
	}
	return opentype.NewFace(parsed, &opentype.FaceOptions{
		Size:    labelFontSize,
		DPI:     72,
		Hinting: font.HintingFull,
	})
}

func (r *Renderer) ASCIIOnly() bool {
	return r.asciiOnly
}

// Label formats the caption drawn above a detection box.
func (r *Renderer) Label(d entity.Detection) string {
	label := fmt.Sprintf("%s: %.2f", d.ClassName, d.Confidence)
	if r.asciiOnly {
		return ASCIISafe(label)
	}
	return label
}

// Annotate returns a copy of src with every detection drawn on it. Boxes are
// expected in src's pixel space.
func (r *Renderer) Annotate(src image.Image, detections []entity.Detection) *image.RGBA {
	dst := ToRGBA(src)

	r.mu.Lock()
	defer r.mu.Unlock()

	for _, d := range detections {
		if len(d.BBox) != 4 {
			continue
		}
		x1, y1, x2, y2 := int(d.BBox[0]), int(d.BBox[1]), int(d.BBox[2]), int(d.BBox[3])
		drawBox(dst, x1, y1, x2, y2)
		r.drawLabel(dst, r.Label(d), x1, y1)
	}

	return dst
}

func drawBox(dst *image.RGBA, x1, y1, x2, y2 int) {
	fill := image.NewUniform(boxColor)
	edges := []image.Rectangle{
		image.Rect(x1, y1, x2, y1+boxThickness),
		image.Rect(x1, y2-boxThickness, x2, y2),
		image.Rect(x1, y1, x1+boxThickness, y2),
		image.Rect(x2-boxThickness, y1, x2, y2),
	}
	for _, e := range edges {
		draw.Draw(dst, e.Intersect(dst.Bounds()), fill, image.Point{}, draw.Src)
	}
}

func (r *Renderer) drawLabel(dst *image.RGBA, label string, x, y int) {
	metrics := r.face.Metrics()
	textW := font.MeasureString(r.face, label).Ceil()
	textH := (metrics.Ascent + metrics.Descent).Ceil()

	top := y - textH - labelPaddingPx
	if top < dst.Bounds().Min.Y {
		// no room above the box, draw the caption just inside it
		top = y
	}
	bg := image.Rect(x, top, x+textW, top+textH+labelPaddingPx)
	draw.Draw(dst, bg.Intersect(dst.Bounds()), image.NewUniform(boxColor), image.Point{}, draw.Src)

	d := font.Drawer{
		Dst:  dst,
		Src:  image.NewUniform(textColor),
		Face: r.face,
		Dot:  fixed.P(x, top+labelPaddingPx/2+metrics.Ascent.Ceil()),
	}
	d.DrawString(label)
}

var asciiFallbacks = map[rune]string{
	'đ': "d", 'Đ': "D",
	'ø': "o", 'Ø': "O",
	'ł': "l", 'Ł': "L",
}

// ASCIISafe strips combining marks and replaces anything left outside ASCII so
// the label can be drawn with a Latin-only face.
func ASCIISafe(s string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	stripped, _, err := transform.String(t, s)
	if err != nil {
		stripped = s
	}

	var b strings.Builder
	for _, r := range stripped {
		switch {
		case r < unicode.MaxASCII:
			b.WriteRune(r)
		case asciiFallbacks[r] != "":
			b.WriteString(asciiFallbacks[r])
		default:
			b.WriteByte('?')
		}
	}
	return b.String()
}
