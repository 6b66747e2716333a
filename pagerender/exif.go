package pagerender

import "encoding/binary"

// JPEG files carry orientation metadata in an APP1 Exif segment. Stamping
// re-encodes the image, which drops that segment, so it is lifted from the
// source file and spliced back into the output after the SOI marker.

const (
	markerSOI  = 0xd8
	markerAPP1 = 0xe1
)

// extractEXIF returns the complete APP1 Exif segment (marker included) from
// a JPEG stream, or nil when none is present.
func extractEXIF(data []byte) []byte {
	segs := jpegSegments(data)
	for _, s := range segs {
		if isExifAPP1(data[s.off:s.end]) {
			seg := make([]byte, s.end-s.off)
			copy(seg, data[s.off:s.end])
			return seg
		}
	}
	return nil
}

// insertEXIF splices an APP1 segment into a JPEG stream directly after the
// SOI marker, removing any Exif segment the stream already carries. An empty
// segment leaves the stream untouched.
func insertEXIF(data, seg []byte) []byte {
	if len(seg) == 0 || len(data) < 2 || data[0] != 0xff || data[1] != markerSOI {
		return data
	}

	out := make([]byte, 0, len(data)+len(seg))
	out = append(out, data[:2]...)
	out = append(out, seg...)

	rest := data[2:]
	for _, s := range jpegSegments(data) {
		if isExifAPP1(data[s.off:s.end]) {
			out = append(out, data[2:s.off]...)
			rest = data[s.end:]
			break
		}
	}
	return append(out, rest...)
}

type segment struct {
	off, end int
}

// jpegSegments walks the marker segments between SOI and the start of scan
// data. Walking stops at SOS because entropy-coded data follows it.
func jpegSegments(data []byte) []segment {
	var segs []segment
	if len(data) < 2 || data[0] != 0xff || data[1] != markerSOI {
		return nil
	}
	i := 2
	for i+4 <= len(data) {
		if data[i] != 0xff {
			return segs
		}
		marker := data[i+1]
		if marker == 0xda || marker == 0xd9 {
			return segs
		}
		length := int(binary.BigEndian.Uint16(data[i+2 : i+4]))
		end := i + 2 + length
		if length < 2 || end > len(data) {
			return segs
		}
		segs = append(segs, segment{off: i, end: end})
		i = end
	}
	return segs
}

func isExifAPP1(seg []byte) bool {
	return len(seg) >= 10 && seg[0] == 0xff && seg[1] == markerAPP1 &&
		string(seg[4:10]) == "Exif\x00\x00"
}
