// Package pagerender turns attachment files into raster page surfaces,
// hands them to a stamping callback, and re-encodes the result in the
// original container format and physical size.
package pagerender

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	"image/jpeg"
	"image/png"
	"io"
	"math"
	"path/filepath"
	"strings"

	pdflib "github.com/digitorus/pdf"
	"github.com/gen2brain/go-fitz"
	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"

	"github.com/tawqee/docstamp/internal/imaging"
)

// ErrUnsupportedFormat is returned for attachments whose extension maps to
// no known container format.
var ErrUnsupportedFormat = errors.New("unsupported file format")

// Format identifies the container format of an attachment file.
type Format int

const (
	FormatPDF Format = iota + 1
	FormatPNG
	FormatJPEG
)

func (f Format) String() string {
	switch f {
	case FormatPDF:
		return "pdf"
	case FormatPNG:
		return "png"
	case FormatJPEG:
		return "jpeg"
	}
	return "unknown"
}

// DetectFormat maps a file name to its container format by extension.
func DetectFormat(name string) (Format, error) {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".pdf":
		return FormatPDF, nil
	case ".png":
		return FormatPNG, nil
	case ".jpg", ".jpeg":
		return FormatJPEG, nil
	}
	return 0, fmt.Errorf("%w: %q", ErrUnsupportedFormat, name)
}

// ProcessingError reports a failed rasterize, resample, or re-encode step
// with the file and page it happened on.
type ProcessingError struct {
	File string
	Page int
	Op   string
	Err  error
}

func (e *ProcessingError) Error() string {
	return fmt.Sprintf("page processing failed: %s (file=%s, page=%d): %v", e.Op, e.File, e.Page, e.Err)
}

func (e *ProcessingError) Unwrap() error { return e.Err }

func processErr(file string, page int, op string, err error) error {
	return &ProcessingError{File: file, Page: page, Op: op, Err: err}
}

// StampPDF rasterizes the first page of a PDF at the given DPI, passes the
// surface to stamp, re-encodes the stamped page at the page's original point
// size, and splices it back in front of the remaining pages untouched.
func StampPDF(name string, src []byte, dpi int, stamp func(page *image.NRGBA) error) ([]byte, error) {
	widthPts, heightPts, err := pageSize(src)
	if err != nil {
		return nil, processErr(name, 1, "read page geometry", err)
	}

	doc, err := fitz.NewFromMemory(src)
	if err != nil {
		return nil, processErr(name, 1, "open document", err)
	}
	defer doc.Close()

	raster, err := doc.ImageDPI(0, float64(dpi))
	if err != nil {
		return nil, processErr(name, 1, "rasterize", err)
	}

	// The rasterizer rounds pixel dimensions its own way. Resample to the
	// size derived from the page's point geometry so the re-encoded page
	// keeps the original physical size exactly.
	wantW := int(math.Round(widthPts * float64(dpi) / 72))
	wantH := int(math.Round(heightPts * float64(dpi) / 72))
	page := imaging.FromImage(raster)
	if page.Bounds().Dx() != wantW || page.Bounds().Dy() != wantH {
		page = imaging.Scale(page, wantW, wantH)
	}

	if err := stamp(page); err != nil {
		return nil, err
	}

	stamped, err := EncodePage(page, widthPts, heightPts)
	if err != nil {
		return nil, processErr(name, 1, "re-encode", err)
	}

	return spliceRemainder(name, src, stamped)
}

// spliceRemainder appends pages 2..N of the source document after the
// stamped first page, in original order, without re-rasterizing them.
func spliceRemainder(name string, src, stamped []byte) ([]byte, error) {
	conf := model.NewDefaultConfiguration()

	count, err := api.PageCount(bytes.NewReader(src), conf)
	if err != nil {
		return nil, processErr(name, 0, "count pages", err)
	}
	if count <= 1 {
		return stamped, nil
	}

	var rest bytes.Buffer
	if err := api.Trim(bytes.NewReader(src), &rest, []string{"2-"}, conf); err != nil {
		return nil, processErr(name, 2, "extract remaining pages", err)
	}

	var out bytes.Buffer
	readers := []io.ReadSeeker{bytes.NewReader(stamped), bytes.NewReader(rest.Bytes())}
	if err := api.MergeRaw(readers, &out, false, conf); err != nil {
		return nil, processErr(name, 0, "merge pages", err)
	}
	return out.Bytes(), nil
}

// StampImage decodes a raster image, passes an alpha-capable working surface
// to stamp, and re-encodes in the original format. The source color mode is
// restored and, for JPEG, the Exif segment of the source survives.
func StampImage(name string, src []byte, format Format, stamp func(page *image.NRGBA) error) ([]byte, error) {
	img, _, err := image.Decode(bytes.NewReader(src))
	if err != nil {
		return nil, processErr(name, 1, "decode image", err)
	}

	mode, palette := imaging.ModeOf(img)
	page := imaging.FromImage(img)

	if err := stamp(page); err != nil {
		return nil, err
	}

	restored := imaging.Restore(page, mode, palette)

	var out bytes.Buffer
	switch format {
	case FormatPNG:
		err = png.Encode(&out, restored)
	case FormatJPEG:
		err = jpeg.Encode(&out, restored, &jpeg.Options{Quality: jpegQuality})
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedFormat, format)
	}
	if err != nil {
		return nil, processErr(name, 1, "re-encode", err)
	}

	if format == FormatJPEG {
		return insertEXIF(out.Bytes(), extractEXIF(src)), nil
	}
	return out.Bytes(), nil
}

// pageSize reads the first page's media box in points, walking up the page
// tree when the box is inherited. Pages without one get US Letter.
func pageSize(src []byte) (width, height float64, err error) {
	rdr, err := pdflib.NewReader(bytes.NewReader(src), int64(len(src)))
	if err != nil {
		return 0, 0, fmt.Errorf("failed to parse document: %w", err)
	}
	if rdr.NumPage() < 1 {
		return 0, 0, fmt.Errorf("document has no pages")
	}

	node := rdr.Page(1).V
	for depth := 0; depth < 32 && node.Kind() == pdflib.Dict; depth++ {
		mediaBox := node.Key("MediaBox")
		if mediaBox.Kind() == pdflib.Array && mediaBox.Len() >= 4 {
			w := mediaBox.Index(2).Float64() - mediaBox.Index(0).Float64()
			h := mediaBox.Index(3).Float64() - mediaBox.Index(1).Float64()
			if w > 0 && h > 0 {
				return w, h, nil
			}
			break
		}
		node = node.Key("Parent")
	}
	// Default Letter
	return 612, 792, nil
}
