// Package listing renders an ordered list of department names into a
// transparent raster surface, with full support for Arabic text.
//
// Arabic entries are word-wrapped on the logical (unshaped) text; each
// candidate line is measured only after glyph shaping and bidirectional
// reordering have been applied. Shaping a pre-wrapped substring is safe,
// shaping before wrapping is not: cutting an already-shaped run corrupts
// the joining forms, so the wrap loop always re-shapes from the logical
// text.
package listing

import (
	"image"
	"image/color"
	"strings"

	"github.com/abdullahdiaa/garabic"
	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/font/opentype"
	"golang.org/x/image/math/fixed"
	"golang.org/x/text/unicode/bidi"

	"github.com/tawqee/docstamp/internal/imaging"
)

// Style controls how the list is drawn.
type Style struct {
	FontSize    float64     // point size used when a TrueType font is loaded
	DPI         float64     // raster resolution for the font face
	Bullet      rune        // marker drawn before the first line of each entry
	Color       color.NRGBA // text and bullet color
	LineSpacing int         // extra pixels between lines
	Padding     int         // padding around the rendered block
}

// DefaultStyle returns the style used by the signing pipeline.
func DefaultStyle() Style {
	return Style{
		FontSize:    18,
		DPI:         150,
		Bullet:      '•',
		Color:       color.NRGBA{R: 16, G: 16, B: 16, A: 255},
		LineSpacing: 4,
		Padding:     8,
	}
}

// Line is one wrapped output line of a list entry.
type Line struct {
	Text  string // display text, already shaped and reordered
	RTL   bool   // writing direction of the source entry
	First bool   // first wrapped line of its entry (carries the bullet)
}

// Renderer rasterizes department lists with a fixed font face.
type Renderer struct {
	face  font.Face
	style Style
}

// NewRenderer builds a renderer from TrueType font data. When fontData is
// nil the fixed 7x13 fallback face is used; it cannot join Arabic glyphs
// but keeps rendering functional when no font file is configured.
func NewRenderer(fontData []byte, style Style) (*Renderer, error) {
	if style.Bullet == 0 {
		style.Bullet = '•'
	}
	if style.DPI == 0 {
		style.DPI = 150
	}

	var face font.Face = basicfont.Face7x13
	if len(fontData) > 0 {
		ft, err := opentype.Parse(fontData)
		if err != nil {
			return nil, err
		}
		face, err = opentype.NewFace(ft, &opentype.FaceOptions{
			Size:    style.FontSize,
			DPI:     style.DPI,
			Hinting: font.HintingFull,
		})
		if err != nil {
			return nil, err
		}
	}
	return &Renderer{face: face, style: style}, nil
}

// Render wraps the given names against maxWidth pixels and rasterizes them
// into a transparent surface sized to the union of the wrapped lines. A
// single word wider than the budget makes the surface exceed maxWidth
// rather than losing glyphs; the compositor rescales oversized surfaces.
// Blank names are dropped; if nothing remains, Render returns (nil, nil).
func (r *Renderer) Render(names []string, maxWidth int) (*image.NRGBA, error) {
	lines := r.Layout(names, maxWidth)
	if len(lines) == 0 {
		return nil, nil
	}

	metrics := r.face.Metrics()
	ascent := metrics.Ascent.Ceil()
	lineHeight := ascent + metrics.Descent.Ceil()
	bullet := r.bulletAllowance()

	width := 0
	for _, ln := range lines {
		if w := r.measure(ln.Text) + bullet; w > width {
			width = w
		}
	}
	width += 2 * r.style.Padding
	height := len(lines)*(lineHeight+r.style.LineSpacing) - r.style.LineSpacing + 2*r.style.Padding

	surface := imaging.New(width, height)
	src := image.NewUniform(r.style.Color)

	y := r.style.Padding + ascent
	for _, ln := range lines {
		d := font.Drawer{Dst: surface, Src: src, Face: r.face}
		textWidth := r.measure(ln.Text)
		if ln.RTL {
			// Text hugs the right edge; the bullet gutter sits to its right.
			d.Dot = fixed.P(width-r.style.Padding-bullet-textWidth, y)
			d.DrawString(ln.Text)
			if ln.First {
				d.Dot = fixed.P(width-r.style.Padding-r.measure(string(r.style.Bullet)), y)
				d.DrawString(string(r.style.Bullet))
			}
		} else {
			d.Dot = fixed.P(r.style.Padding+bullet, y)
			d.DrawString(ln.Text)
			if ln.First {
				d.Dot = fixed.P(r.style.Padding, y)
				d.DrawString(string(r.style.Bullet))
			}
		}
		y += lineHeight + r.style.LineSpacing
	}
	return surface, nil
}

// Layout wraps the names against the pixel budget without drawing them.
func (r *Renderer) Layout(names []string, maxWidth int) []Line {
	budget := maxWidth - 2*r.style.Padding - r.bulletAllowance()
	if budget < 1 {
		budget = 1
	}

	var lines []Line
	for _, name := range names {
		name = strings.TrimSpace(name)
		if name == "" {
			continue
		}
		lines = append(lines, r.wrapEntry(name, budget)...)
	}
	return lines
}

// wrapEntry word-wraps one logical entry. A single word wider than the
// budget is emitted as its own overflowing line rather than truncated.
func (r *Renderer) wrapEntry(name string, budget int) []Line {
	rtl := IsRTL(name)
	words := strings.Fields(name)

	var lines []Line
	current := ""
	flush := func() {
		if current == "" {
			return
		}
		lines = append(lines, Line{
			Text:  r.shape(current),
			RTL:   rtl,
			First: len(lines) == 0,
		})
		current = ""
	}

	for _, word := range words {
		candidate := word
		if current != "" {
			candidate = current + " " + word
		}
		if r.measure(r.shape(candidate)) <= budget || current == "" {
			current = candidate
			continue
		}
		flush()
		current = word
	}
	flush()
	return lines
}

// shape applies Arabic glyph joining and bidirectional reordering, returning
// a display-ordered string. On any shaping failure the logical text is
// returned unchanged; a misrendered entry beats a failed signing pass.
func (r *Renderer) shape(s string) (display string) {
	if !IsRTL(s) {
		return s
	}
	defer func() {
		if recover() != nil {
			display = s
		}
	}()
	return garabic.Shape(s)
}

func (r *Renderer) measure(s string) int {
	return font.MeasureString(r.face, s).Ceil()
}

// bulletAllowance is the fixed gutter reserved for the bullet glyph on the
// side appropriate to the writing direction.
func (r *Renderer) bulletAllowance() int {
	return r.measure(string(r.style.Bullet)) + r.style.Padding
}

// IsRTL reports whether s contains a right-to-left run. Arabic letters
// classify as bidi.AL; Hebrew and friends as bidi.R.
func IsRTL(s string) bool {
	for _, ch := range s {
		p, _ := bidi.LookupRune(ch)
		if c := p.Class(); c == bidi.AL || c == bidi.R {
			return true
		}
	}
	return false
}

