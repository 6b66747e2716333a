package cli

import (
	"bytes"
	"encoding/base64"
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"testing"
)

func writePNG(t *testing.T, path string, w, h int, c color.NRGBA) {
	t.Helper()
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.SetNRGBA(x, y, c)
		}
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, buf.Bytes(), 0o644); err != nil {
		t.Fatal(err)
	}
}

func TestStampFilePNG(t *testing.T) {
	dir := t.TempDir()
	input := filepath.Join(dir, "scan.png")
	output := filepath.Join(dir, "signed.png")
	sig := filepath.Join(dir, "sig.png")

	writePNG(t, input, 200, 280, color.NRGBA{255, 255, 255, 255})
	writePNG(t, sig, 40, 20, color.NRGBA{200, 0, 0, 255})

	SignaturePath = sig
	defer func() { SignaturePath = "" }()

	if err := StampFile(input, output); err != nil {
		t.Fatal(err)
	}

	data, err := os.ReadFile(output)
	if err != nil {
		t.Fatal(err)
	}
	img, err := png.Decode(bytes.NewReader(data))
	if err != nil {
		t.Fatalf("output is not a PNG: %v", err)
	}
	if img.Bounds().Dx() != 200 || img.Bounds().Dy() != 280 {
		t.Errorf("output size %v", img.Bounds())
	}

	stamped := false
	for y := 0; y < 280 && !stamped; y++ {
		for x := 0; x < 200; x++ {
			r, g, b, _ := img.At(x, y).RGBA()
			if r > 0x9000 && g < 0x4000 && b < 0x4000 {
				stamped = true
				break
			}
		}
	}
	if !stamped {
		t.Error("no signature ink found in output")
	}
}

func TestStampFileMissingInput(t *testing.T) {
	dir := t.TempDir()
	if err := StampFile(filepath.Join(dir, "absent.png"), filepath.Join(dir, "out.png")); err == nil {
		t.Fatal("expected error for missing input")
	}
}

func TestReadArtifact(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "sig.png")
	writePNG(t, path, 4, 4, color.NRGBA{0, 0, 0, 255})

	payload, err := readArtifact(path)
	if err != nil {
		t.Fatal(err)
	}
	raw, err := base64.StdEncoding.DecodeString(payload)
	if err != nil {
		t.Fatalf("payload is not base64: %v", err)
	}
	if _, err := png.Decode(bytes.NewReader(raw)); err != nil {
		t.Errorf("payload does not round-trip: %v", err)
	}

	if got, err := readArtifact(""); err != nil || got != "" {
		t.Errorf("empty path: %q, %v", got, err)
	}
}
