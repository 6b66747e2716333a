// Package imaging provides the raster surface operations shared by the
// compositing pipeline: format-preserving conversions, proportional
// resampling, and alpha-masked pastes.
package imaging

import (
	"image"
	"image/color"
	"image/draw"

	xdraw "golang.org/x/image/draw"
)

// New returns a fully transparent surface of the given size.
func New(width, height int) *image.NRGBA {
	return image.NewNRGBA(image.Rect(0, 0, width, height))
}

// FromImage converts any decoded image into a working surface with an
// alpha channel. The source is left untouched.
func FromImage(src image.Image) *image.NRGBA {
	if n, ok := src.(*image.NRGBA); ok {
		out := image.NewNRGBA(n.Bounds())
		copy(out.Pix, n.Pix)
		return out
	}
	b := src.Bounds()
	out := image.NewNRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))
	draw.Draw(out, out.Bounds(), src, b.Min, draw.Src)
	return out
}

// Scale resamples src to exactly width x height using Catmull-Rom
// interpolation.
func Scale(src *image.NRGBA, width, height int) *image.NRGBA {
	if width <= 0 || height <= 0 {
		return New(1, 1)
	}
	if b := src.Bounds(); b.Dx() == width && b.Dy() == height {
		return src
	}
	out := image.NewNRGBA(image.Rect(0, 0, width, height))
	xdraw.CatmullRom.Scale(out, out.Bounds(), src, src.Bounds(), xdraw.Src, nil)
	return out
}

// ScaleToWidth resamples src to the given width, preserving aspect ratio.
func ScaleToWidth(src *image.NRGBA, width int) *image.NRGBA {
	b := src.Bounds()
	if b.Dx() == 0 || b.Dy() == 0 || width <= 0 {
		return New(1, 1)
	}
	height := int(float64(width) / (float64(b.Dx()) / float64(b.Dy())))
	if height < 1 {
		height = 1
	}
	return Scale(src, width, height)
}

// Paste composites src onto dst at (x, y) using src's own alpha channel as
// the mask, so nothing outside the artifact's silhouette covers the page.
func Paste(dst *image.NRGBA, src image.Image, x, y int) {
	b := src.Bounds()
	r := image.Rect(x, y, x+b.Dx(), y+b.Dy())
	draw.Draw(dst, r, src, b.Min, draw.Over)
}

// ColorMode identifies the pixel layout of a decoded image so that a stamped
// surface can be converted back before re-encoding.
type ColorMode int

const (
	// ModeNRGBA is the alpha-capable working mode.
	ModeNRGBA ColorMode = iota
	// ModeGray is 8-bit grayscale.
	ModeGray
	// ModePaletted is indexed color.
	ModePaletted
	// ModeOpaque covers truecolor images without alpha (RGB, YCbCr, CMYK).
	ModeOpaque
)

// ModeOf reports the color mode of a decoded image and, for paletted
// images, its palette.
func ModeOf(img image.Image) (ColorMode, color.Palette) {
	switch t := img.(type) {
	case *image.Gray, *image.Gray16:
		return ModeGray, nil
	case *image.Paletted:
		return ModePaletted, t.Palette
	case *image.NRGBA, *image.NRGBA64, *image.RGBA, *image.RGBA64:
		return ModeNRGBA, nil
	default:
		return ModeOpaque, nil
	}
}

// Restore converts a stamped working surface back to the original color
// mode so the re-encoded file keeps the source's pixel layout.
func Restore(img *image.NRGBA, mode ColorMode, palette color.Palette) image.Image {
	b := img.Bounds()
	switch mode {
	case ModeGray:
		out := image.NewGray(b)
		draw.Draw(out, b, img, b.Min, draw.Src)
		return out
	case ModePaletted:
		if len(palette) == 0 {
			palette = color.Palette{color.Black, color.White}
		}
		out := image.NewPaletted(b, palette)
		draw.Draw(out, b, img, b.Min, draw.Src)
		return out
	case ModeOpaque:
		out := image.NewRGBA(b)
		draw.Draw(out, b, img, b.Min, draw.Src)
		return out
	default:
		return img
	}
}
