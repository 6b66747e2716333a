// Package artifact decodes base64-encoded signature and comment images into
// raster surfaces.
//
// Payloads arrive either as raw base64 or as data URLs
// ("data:image/png;base64,...."). An empty or whitespace-only payload means
// the caller supplied no artifact; that is not an error.
package artifact

import (
	"bytes"
	"encoding/base64"
	"fmt"
	"image"
	"strings"

	// Raster formats accepted for artifact payloads.
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"

	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"

	"github.com/tawqee/docstamp/internal/imaging"
)

// DecodeError reports a malformed artifact payload. It wraps the underlying
// base64 or raster decode failure.
type DecodeError struct {
	Err error
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("failed to decode artifact: %v", e.Err)
}

func (e *DecodeError) Unwrap() error { return e.Err }

// Decode converts a base64 or data-URL payload into an alpha-capable
// surface. It returns (nil, nil) when the payload is empty after trimming,
// meaning no artifact was supplied.
func Decode(data string) (*image.NRGBA, error) {
	data = strings.TrimSpace(data)
	if data == "" {
		return nil, nil
	}

	// Data URLs carry a "...;base64," prefix in front of the payload.
	if idx := strings.Index(data, "base64,"); idx >= 0 {
		data = data[idx+len("base64,"):]
	}

	raw, err := base64.StdEncoding.DecodeString(data)
	if err != nil {
		// Some clients strip the padding.
		raw, err = base64.RawStdEncoding.DecodeString(data)
	}
	if err != nil {
		return nil, &DecodeError{Err: err}
	}

	img, _, err := image.Decode(bytes.NewReader(raw))
	if err != nil {
		return nil, &DecodeError{Err: err}
	}
	return imaging.FromImage(img), nil
}
