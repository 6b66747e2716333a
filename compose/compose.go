// Package compose stamps decoded signing artifacts onto a rendered page
// surface. Placement is driven entirely by a LayoutSpec value so that two
// passes with the same inputs always produce the same output.
package compose

import (
	"image"

	"github.com/tawqee/docstamp/internal/imaging"
	"github.com/tawqee/docstamp/layout"
)

// LayoutSpec holds every percentage and pixel constant used during a
// compositing pass. Values are fractions of the page dimension unless noted.
// A LayoutSpec is immutable once handed to Stamp.
type LayoutSpec struct {
	// SignatureX and SignatureY anchor the signature near the
	// bottom-trailing corner, measured from the end of each axis.
	SignatureX float64
	SignatureY float64

	// Margin keeps every artifact away from the page edges.
	Margin float64

	// FallbackY positions the comments block when no signature is present.
	FallbackY float64

	// Scale factors relative to the page width.
	SignatureScale float64
	CommentsScale  float64
	ListScale      float64

	// Gap is the spacing between adjacent artifacts, in pixels.
	Gap int

	// BlockMaxRatio caps the combined list+comments block width as a
	// fraction of the page width. Wider blocks are shrunk to fit.
	BlockMaxRatio float64
}

// DefaultLayoutSpec returns the placement constants used by the engine when
// the caller does not override them.
func DefaultLayoutSpec() LayoutSpec {
	return LayoutSpec{
		SignatureX:     0.90,
		SignatureY:     0.95,
		Margin:         0.02,
		FallbackY:      0.85,
		SignatureScale: 0.25,
		CommentsScale:  0.50,
		ListScale:      0.30,
		Gap:            12,
		BlockMaxRatio:  0.90,
	}
}

// Artifacts carries the optional surfaces of one signing pass. A nil surface
// means the artifact was not supplied.
type Artifacts struct {
	Signature *image.NRGBA
	Comments  *image.NRGBA
	List      *image.NRGBA
}

// Stamp composites the supplied artifacts onto page in place. Every paste is
// masked by the artifact's own alpha channel, so transparent regions never
// cover page content. Stamp performs no I/O; errors only arise from invalid
// LayoutSpec percentages.
func (spec LayoutSpec) Stamp(page *image.NRGBA, art Artifacts) error {
	pageW := page.Bounds().Dx()
	pageH := page.Bounds().Dy()

	sig := scaleToFraction(art.Signature, pageW, spec.SignatureScale)
	com := scaleToFraction(art.Comments, pageW, spec.CommentsScale)
	list := scaleToFraction(art.List, pageW, spec.ListScale)

	var sigX, sigY int
	if sig != nil {
		var err error
		sigX, err = layout.Offset(pageW, sig.Bounds().Dx(), spec.SignatureX, spec.Margin, layout.FromEnd)
		if err != nil {
			return err
		}
		sigY, err = layout.Offset(pageH, sig.Bounds().Dy(), spec.SignatureY, spec.Margin, layout.FromEnd)
		if err != nil {
			return err
		}
	}

	if com != nil || list != nil {
		com, list = spec.fitBlock(com, list, pageW)

		blockW := rowWidth(com, list, spec.Gap)
		blockH := rowHeight(com, list)

		blockX, err := layout.Offset(pageW, blockW, spec.SignatureX, spec.Margin, layout.FromEnd)
		if err != nil {
			return err
		}

		var blockY int
		if sig != nil {
			blockY = sigY - spec.Gap - blockH
			if min := int(spec.Margin * float64(pageH)); blockY < min {
				blockY = min
			}
		} else {
			blockY, err = layout.Offset(pageH, blockH, spec.FallbackY, spec.Margin, layout.FromEnd)
			if err != nil {
				return err
			}
		}

		pasteRow(page, com, list, blockX, blockY, blockH, pageW, spec)
	}

	if sig != nil {
		imaging.Paste(page, sig, sigX, sigY)
	}
	return nil
}

// fitBlock shrinks both block members proportionally until their combined
// width fits under the configured page-width ceiling.
func (spec LayoutSpec) fitBlock(com, list *image.NRGBA, pageW int) (*image.NRGBA, *image.NRGBA) {
	ceiling := int(spec.BlockMaxRatio * float64(pageW))
	w := rowWidth(com, list, spec.Gap)
	if w <= ceiling || w == 0 {
		return com, list
	}
	factor := float64(ceiling-gapWidth(com, list, spec.Gap)) / float64(w-gapWidth(com, list, spec.Gap))
	if com != nil {
		com = imaging.ScaleToWidth(com, int(float64(com.Bounds().Dx())*factor))
	}
	if list != nil {
		list = imaging.ScaleToWidth(list, int(float64(list.Bounds().Dx())*factor))
	}
	return com, list
}

// pasteRow places the list and comments as one side-by-side block. The
// comments go on whichever side of the list leaves more horizontal room
// between the block and the page margin. A lone member spans the row.
func pasteRow(page *image.NRGBA, com, list *image.NRGBA, x, y, rowH, pageW int, spec LayoutSpec) {
	switch {
	case com == nil:
		imaging.Paste(page, list, x, centerInRow(y, rowH, list))
	case list == nil:
		imaging.Paste(page, com, x, centerInRow(y, rowH, com))
	default:
		margin := int(spec.Margin * float64(pageW))
		roomLeft := x - margin
		roomRight := pageW - margin - (x + rowWidth(com, list, spec.Gap))
		if roomRight >= roomLeft {
			imaging.Paste(page, list, x, centerInRow(y, rowH, list))
			imaging.Paste(page, com, x+list.Bounds().Dx()+spec.Gap, centerInRow(y, rowH, com))
		} else {
			imaging.Paste(page, com, x, centerInRow(y, rowH, com))
			imaging.Paste(page, list, x+com.Bounds().Dx()+spec.Gap, centerInRow(y, rowH, list))
		}
	}
}

func centerInRow(rowY, rowH int, img *image.NRGBA) int {
	return rowY + (rowH-img.Bounds().Dy())/2
}

func scaleToFraction(img *image.NRGBA, pageW int, fraction float64) *image.NRGBA {
	if img == nil {
		return nil
	}
	w := int(fraction * float64(pageW))
	if w < 1 {
		w = 1
	}
	return imaging.ScaleToWidth(img, w)
}

func rowWidth(com, list *image.NRGBA, gap int) int {
	w := gapWidth(com, list, gap)
	if com != nil {
		w += com.Bounds().Dx()
	}
	if list != nil {
		w += list.Bounds().Dx()
	}
	return w
}

func rowHeight(com, list *image.NRGBA) int {
	h := 0
	if com != nil && com.Bounds().Dy() > h {
		h = com.Bounds().Dy()
	}
	if list != nil && list.Bounds().Dy() > h {
		h = list.Bounds().Dy()
	}
	return h
}

func gapWidth(com, list *image.NRGBA, gap int) int {
	if com != nil && list != nil {
		return gap
	}
	return 0
}
