package pagerender

import (
	"bytes"
	"fmt"
	"image"
	"image/jpeg"
)

// jpegQuality is used when re-encoding a rasterized page for embedding.
const jpegQuality = 90

// EncodePage writes a single-page PDF whose page is the given raster image,
// embedded as a DCTDecode XObject and drawn to fill the full media box. The
// media box uses the supplied dimensions in points, so the page keeps its
// original physical size regardless of the raster resolution.
func EncodePage(img *image.NRGBA, widthPts, heightPts float64) ([]byte, error) {
	var jpg bytes.Buffer
	if err := jpeg.Encode(&jpg, img, &jpeg.Options{Quality: jpegQuality}); err != nil {
		return nil, fmt.Errorf("failed to encode page raster: %w", err)
	}

	content := fmt.Sprintf("q %.2f 0 0 %.2f 0 0 cm /Im1 Do Q", widthPts, heightPts)

	var buf bytes.Buffer
	offsets := make([]int, 0, 5)
	buf.WriteString("%PDF-1.4\n")

	addObject := func(body func(w *bytes.Buffer)) {
		offsets = append(offsets, buf.Len())
		fmt.Fprintf(&buf, "%d 0 obj\n", len(offsets))
		body(&buf)
		buf.WriteString("\nendobj\n")
	}

	addObject(func(w *bytes.Buffer) {
		w.WriteString("<< /Type /Catalog /Pages 2 0 R >>")
	})
	addObject(func(w *bytes.Buffer) {
		w.WriteString("<< /Type /Pages /Kids [3 0 R] /Count 1 >>")
	})
	addObject(func(w *bytes.Buffer) {
		fmt.Fprintf(w, "<< /Type /Page /Parent 2 0 R /MediaBox [0 0 %.2f %.2f] /Resources << /XObject << /Im1 5 0 R >> >> /Contents 4 0 R >>",
			widthPts, heightPts)
	})
	addObject(func(w *bytes.Buffer) {
		fmt.Fprintf(w, "<< /Length %d >>\nstream\n", len(content))
		w.WriteString(content)
		w.WriteString("\nendstream")
	})
	addObject(func(w *bytes.Buffer) {
		fmt.Fprintf(w, "<< /Type /XObject /Subtype /Image /Width %d /Height %d /ColorSpace /DeviceRGB /BitsPerComponent 8 /Filter /DCTDecode /Length %d >>\nstream\n",
			img.Bounds().Dx(), img.Bounds().Dy(), jpg.Len())
		w.Write(jpg.Bytes())
		w.WriteString("\nendstream")
	})

	xrefStart := buf.Len()
	fmt.Fprintf(&buf, "xref\n0 %d\n", len(offsets)+1)
	buf.WriteString("0000000000 65535 f \n")
	for _, off := range offsets {
		fmt.Fprintf(&buf, "%010d 00000 n \n", off)
	}
	fmt.Fprintf(&buf, "trailer\n<< /Size %d /Root 1 0 R >>\nstartxref\n%d\n%%%%EOF\n",
		len(offsets)+1, xrefStart)

	return buf.Bytes(), nil
}
