package docstamp

import (
	"bytes"
	"context"
	"encoding/base64"
	"errors"
	"image"
	"image/color"
	"image/png"
	"reflect"
	"strings"
	"sync"
	"testing"

	"github.com/tawqee/docstamp/internal/imaging"
	"github.com/tawqee/docstamp/pagerender"
	"github.com/tawqee/docstamp/store"
)

func newTestEngine(t *testing.T, st store.Store) *Engine {
	t.Helper()
	e, err := New(st)
	if err != nil {
		t.Fatal(err)
	}
	return e
}

// seedImageDoc stores a document with n white PNG attachments and returns
// their IDs in order.
func seedImageDoc(t *testing.T, st *store.MemoryStore, n int) []string {
	t.Helper()
	ctx := context.Background()
	if err := st.UpdateDocument(ctx, store.Document{ID: "doc-1", Status: store.StatusInReview}); err != nil {
		t.Fatal(err)
	}
	ids := make([]string, n)
	for i := 0; i < n; i++ {
		id := string(rune('a'+i)) + "-att"
		ref := "upload-" + id + ".png"
		if err := st.WriteBlob(ctx, ref, whitePNG(t, 200, 280)); err != nil {
			t.Fatal(err)
		}
		if err := st.UpdateAttachment(ctx, store.Attachment{
			ID:           id,
			DocumentID:   "doc-1",
			FileRef:      ref,
			OriginalName: "scan-" + id + ".png",
			Version:      1,
		}); err != nil {
			t.Fatal(err)
		}
		ids[i] = id
	}
	return ids
}

func whitePNG(t *testing.T, w, h int) []byte {
	t.Helper()
	img := imaging.New(w, h)
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.SetNRGBA(x, y, color.NRGBA{255, 255, 255, 255})
		}
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatal(err)
	}
	return buf.Bytes()
}

// redPNGBase64 is a small opaque artifact payload.
func redPNGBase64(t *testing.T) string {
	t.Helper()
	img := imaging.New(40, 20)
	for y := 0; y < 20; y++ {
		for x := 0; x < 40; x++ {
			img.SetNRGBA(x, y, color.NRGBA{200, 0, 0, 255})
		}
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatal(err)
	}
	return base64.StdEncoding.EncodeToString(buf.Bytes())
}

func TestSignFirstSignature(t *testing.T) {
	ctx := context.Background()
	st := store.NewMemoryStore()
	ids := seedImageDoc(t, st, 1)
	e := newTestEngine(t, st)

	before, _ := st.Attachment(ctx, ids[0])

	err := e.Sign(ctx, SigningRequest{
		AttachmentID:  ids[0],
		SignedBy:      "reviewer",
		SignatureData: redPNGBase64(t),
		Approved:      true,
	})
	if err != nil {
		t.Fatal(err)
	}

	after, _ := st.Attachment(ctx, ids[0])
	if after.OriginalFileRef != before.FileRef {
		t.Errorf("baseline ref = %q, want pre-sign file ref %q", after.OriginalFileRef, before.FileRef)
	}
	if after.FileRef == before.FileRef {
		t.Error("file ref did not change")
	}
	if !strings.HasPrefix(after.FileRef, "signed_") || !strings.HasSuffix(after.FileRef, ".png") {
		t.Errorf("unexpected replacement ref %q", after.FileRef)
	}
	if after.Version != 1 {
		t.Errorf("first signing bumped version to %d", after.Version)
	}
	if !after.IsSigned {
		t.Error("attachment not marked signed")
	}

	doc, _ := st.Document(ctx, "doc-1")
	if doc.Status != store.StatusSigned {
		t.Errorf("document status = %q", doc.Status)
	}

	sigs, _ := st.SignaturesFor(ctx, ids[0])
	if len(sigs) != 1 {
		t.Fatalf("got %d signature records", len(sigs))
	}
	if sigs[0].SignedBy != "reviewer" || !sigs[0].Approved {
		t.Errorf("signature record = %+v", sigs[0])
	}
	if sigs[0].Digest == "" {
		t.Error("signature record missing content digest")
	}
}

func TestSignResignRestoresBaseline(t *testing.T) {
	ctx := context.Background()
	st := store.NewMemoryStore()
	ids := seedImageDoc(t, st, 1)
	e := newTestEngine(t, st)

	pristine, _ := st.ReadBlob(ctx, "upload-"+ids[0]+".png")

	for i := 0; i < 3; i++ {
		if err := e.Sign(ctx, SigningRequest{
			AttachmentID:  ids[0],
			SignatureData: redPNGBase64(t),
		}); err != nil {
			t.Fatalf("sign %d: %v", i+1, err)
		}
	}

	att, _ := st.Attachment(ctx, ids[0])
	if att.Version != 3 {
		t.Errorf("version after 2 re-signs = %d, want 3", att.Version)
	}

	// The pristine baseline bytes are untouched for all N signs.
	baseline, err := st.ReadBlob(ctx, att.OriginalFileRef)
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(baseline, pristine) {
		t.Error("pristine baseline mutated by re-signing")
	}

	// Single-active-signature policy.
	sigs, _ := st.SignaturesFor(ctx, ids[0])
	if len(sigs) != 1 {
		t.Errorf("got %d signature records, want 1", len(sigs))
	}

	// Every stamped render starts from the baseline, so the stamp ink of
	// pass N covers the same area as pass 1 instead of accumulating.
	out, _ := st.ReadBlob(ctx, att.FileRef)
	img, err := png.Decode(bytes.NewReader(out))
	if err != nil {
		t.Fatal(err)
	}
	if got := inkPixels(img); got > 200*280/2 {
		t.Errorf("stamped area grew to %d pixels, stamps are compounding", got)
	}
}

// inkPixels counts pixels that are not white.
func inkPixels(img image.Image) int {
	n := 0
	b := img.Bounds()
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			r, g, bl, _ := img.At(x, y).RGBA()
			if r < 0xf000 || g < 0xf000 || bl < 0xf000 {
				n++
			}
		}
	}
	return n
}

func TestSignImageFanOutSiblingPropagation(t *testing.T) {
	ctx := context.Background()
	st := store.NewMemoryStore()
	ids := seedImageDoc(t, st, 3)
	e := newTestEngine(t, st)

	req := SigningRequest{AttachmentID: ids[0], SignatureData: redPNGBase64(t)}
	if err := e.Sign(ctx, req); err != nil {
		t.Fatal(err)
	}

	// After the first pass every sibling is stamped but versions stay 1.
	for _, id := range ids {
		att, _ := st.Attachment(ctx, id)
		if att.Version != 1 {
			t.Errorf("%s: version %d after first signing", id, att.Version)
		}
		if !att.IsSigned {
			t.Errorf("%s: not stamped by fan-out", id)
		}
	}

	// Second signing of the same target: 1 -> 2 on the target and the bump
	// propagates to the other image siblings.
	if err := e.Sign(ctx, req); err != nil {
		t.Fatal(err)
	}
	for _, id := range ids {
		att, _ := st.Attachment(ctx, id)
		if att.Version != 2 {
			t.Errorf("%s: version %d after re-sign, want 2", id, att.Version)
		}
	}

	// Only the explicit target carries the signature record.
	for i, id := range ids {
		sigs, _ := st.SignaturesFor(ctx, id)
		want := 0
		if i == 0 {
			want = 1
		}
		if len(sigs) != want {
			t.Errorf("%s: %d signature records, want %d", id, len(sigs), want)
		}
	}
}

func TestSignFanOutDeletesSiblingSignatureRecords(t *testing.T) {
	ctx := context.Background()
	st := store.NewMemoryStore()
	ids := seedImageDoc(t, st, 2)
	e := newTestEngine(t, st)

	payload := redPNGBase64(t)

	// First pass targets the second attachment, giving it a signature
	// record of its own.
	if err := e.Sign(ctx, SigningRequest{AttachmentID: ids[1], SignatureData: payload}); err != nil {
		t.Fatal(err)
	}
	if sigs, _ := st.SignaturesFor(ctx, ids[1]); len(sigs) != 1 {
		t.Fatalf("setup: %d signature records on %s, want 1", len(sigs), ids[1])
	}

	// Second pass targets the first attachment. Fan-out re-baselines the
	// second one: restored content, bumped version, and its now-stale
	// signature record deleted.
	if err := e.Sign(ctx, SigningRequest{AttachmentID: ids[0], SignatureData: payload}); err != nil {
		t.Fatal(err)
	}

	sibling, _ := st.Attachment(ctx, ids[1])
	if sibling.Version != 2 {
		t.Errorf("re-baselined sibling version = %d, want 2", sibling.Version)
	}
	if sigs, _ := st.SignaturesFor(ctx, ids[1]); len(sigs) != 0 {
		t.Errorf("re-baselined sibling kept %d stale signature records", len(sigs))
	}

	// The new target carries the only active record.
	if sigs, _ := st.SignaturesFor(ctx, ids[0]); len(sigs) != 1 {
		t.Errorf("target has %d signature records, want 1", len(sigs))
	}
}

func TestSignEmptyArtifacts(t *testing.T) {
	ctx := context.Background()
	st := store.NewMemoryStore()
	ids := seedImageDoc(t, st, 1)
	e := newTestEngine(t, st)

	err := e.Sign(ctx, SigningRequest{AttachmentID: ids[0]})
	if err != nil {
		t.Fatal(err)
	}

	att, _ := st.Attachment(ctx, ids[0])
	out, _ := st.ReadBlob(ctx, att.FileRef)
	img, err := png.Decode(bytes.NewReader(out))
	if err != nil {
		t.Fatal(err)
	}
	if n := inkPixels(img); n != 0 {
		t.Errorf("page has %d stamped pixels, expected none", n)
	}

	doc, _ := st.Document(ctx, "doc-1")
	if doc.Status != store.StatusSigned {
		t.Errorf("document status = %q", doc.Status)
	}
}

func TestSignPDFAttachment(t *testing.T) {
	ctx := context.Background()
	st := store.NewMemoryStore()
	if err := st.UpdateDocument(ctx, store.Document{ID: "doc-1", Status: store.StatusPending}); err != nil {
		t.Fatal(err)
	}

	page := imaging.New(306, 396)
	for i := range page.Pix {
		page.Pix[i] = 255
	}
	src, err := pagerender.EncodePage(page, 306, 396)
	if err != nil {
		t.Fatal(err)
	}
	if err := st.WriteBlob(ctx, "upload.pdf", src); err != nil {
		t.Fatal(err)
	}
	if err := st.UpdateAttachment(ctx, store.Attachment{
		ID: "att-pdf", DocumentID: "doc-1", FileRef: "upload.pdf",
		OriginalName: "قرار.pdf", Version: 1,
	}); err != nil {
		t.Fatal(err)
	}

	e := newTestEngine(t, st)
	if err := e.Sign(ctx, SigningRequest{
		AttachmentID:  "att-pdf",
		SignatureData: redPNGBase64(t),
		Departments:   []string{"Finance, Legal"},
	}); err != nil {
		t.Fatal(err)
	}

	att, _ := st.Attachment(ctx, "att-pdf")
	if !strings.HasSuffix(att.FileRef, ".pdf") {
		t.Errorf("replacement ref %q lost the extension", att.FileRef)
	}
	out, err := st.ReadBlob(ctx, att.FileRef)
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.HasPrefix(out, []byte("%PDF")) {
		t.Error("stamped output is not a PDF")
	}
	if !bytes.Contains(out, []byte("/MediaBox [0 0 306.00 396.00]")) {
		t.Error("stamped page lost its physical size")
	}
}

func TestSignUnsupportedFormat(t *testing.T) {
	ctx := context.Background()
	st := store.NewMemoryStore()
	st.UpdateDocument(ctx, store.Document{ID: "doc-1"})
	st.UpdateAttachment(ctx, store.Attachment{
		ID: "att-txt", DocumentID: "doc-1", FileRef: "notes.txt",
		OriginalName: "notes.txt", Version: 1,
	})

	e := newTestEngine(t, st)
	err := e.Sign(ctx, SigningRequest{AttachmentID: "att-txt"})
	if !errors.Is(err, ErrUnsupportedFormat) {
		t.Errorf("expected ErrUnsupportedFormat, got %v", err)
	}
}

func TestSignMalformedArtifactIsDecodingStage(t *testing.T) {
	ctx := context.Background()
	st := store.NewMemoryStore()
	ids := seedImageDoc(t, st, 1)
	e := newTestEngine(t, st)

	before, _ := st.Attachment(ctx, ids[0])

	err := e.Sign(ctx, SigningRequest{AttachmentID: ids[0], SignatureData: "%%%not-base64%%%"})
	var serr *StageError
	if !errors.As(err, &serr) {
		t.Fatalf("expected StageError, got %v", err)
	}
	if serr.Stage != StageDecoding {
		t.Errorf("stage = %q, want %q", serr.Stage, StageDecoding)
	}

	// A failed pass finalizes nothing.
	after, _ := st.Attachment(ctx, ids[0])
	if !reflect.DeepEqual(after, before) {
		t.Errorf("failed pass mutated the attachment: %+v", after)
	}
	doc, _ := st.Document(ctx, "doc-1")
	if doc.Status == store.StatusSigned {
		t.Error("failed pass flipped document status")
	}
}

func TestSignSerializesPerAttachment(t *testing.T) {
	ctx := context.Background()
	st := store.NewMemoryStore()
	ids := seedImageDoc(t, st, 1)
	e := newTestEngine(t, st)

	payload := redPNGBase64(t)
	var wg sync.WaitGroup
	errs := make([]error, 4)
	for i := range errs {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			errs[i] = e.Sign(ctx, SigningRequest{AttachmentID: ids[0], SignatureData: payload})
		}(i)
	}
	wg.Wait()
	for i, err := range errs {
		if err != nil {
			t.Fatalf("concurrent sign %d: %v", i, err)
		}
	}

	att, _ := st.Attachment(ctx, ids[0])
	if att.Version != 4 {
		t.Errorf("version after 4 serialized signs = %d, want 4", att.Version)
	}
	sigs, _ := st.SignaturesFor(ctx, ids[0])
	if len(sigs) != 1 {
		t.Errorf("got %d signature records, want 1", len(sigs))
	}
}

func TestNormalizeDepartments(t *testing.T) {
	cases := []struct {
		in   []string
		want []string
	}{
		{nil, nil},
		{[]string{""}, nil},
		{[]string{" Finance "}, []string{"Finance"}},
		{[]string{"Finance, Legal", "IT"}, []string{"Finance", "Legal", "IT"}},
		{[]string{"Finance", "Finance"}, []string{"Finance"}},
		{[]string{"الإدارة المالية , Legal"}, []string{"الإدارة المالية", "Legal"}},
	}
	for _, c := range cases {
		if got := NormalizeDepartments(c.in); !reflect.DeepEqual(got, c.want) {
			t.Errorf("NormalizeDepartments(%q) = %q, want %q", c.in, got, c.want)
		}
	}
}
