// Package docstamp stamps signature, comment, and department-list artifacts
// onto document attachments. It decodes base64 artifact payloads, composites
// them onto rasterized pages with percentage-driven placement, re-encodes
// the result in the original container format, and manages pristine
// baselines so an attachment can be re-signed any number of times without
// compounding stamps.
//
// Basic usage:
//
//	st := store.NewMemoryStore()
//	engine, err := docstamp.New(st)
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	err = engine.Sign(ctx, docstamp.SigningRequest{
//	    AttachmentID:  "att-1",
//	    SignatureData: signaturePNGBase64,
//	    Departments:   []string{"Finance", "الإدارة القانونية"},
//	    Approved:      true,
//	})
package docstamp

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/tawqee/docstamp/compose"
	"github.com/tawqee/docstamp/listing"
	"github.com/tawqee/docstamp/store"
)

// DefaultDPI is the rasterization resolution for PDF pages.
const DefaultDPI = 150

// defaultListWidth is the pixel budget handed to the department-list
// renderer. The compositor rescales the surface to the page afterwards.
const defaultListWidth = 600

// Engine coordinates one signing pass: decode artifacts, restore the
// pristine baseline, composite, re-encode, and persist. Safe for concurrent
// use; passes touching the same attachment are serialized.
type Engine struct {
	store  store.Store
	log    *zap.Logger
	layout compose.LayoutSpec
	dpi    int
	lists  *listing.Renderer
	locks  *keyedLocks
}

// Option configures an Engine.
type Option func(*Engine)

// WithLogger sets the logger. The default discards all output.
func WithLogger(log *zap.Logger) Option {
	return func(e *Engine) { e.log = log }
}

// WithLayoutSpec overrides the placement constants.
func WithLayoutSpec(spec compose.LayoutSpec) Option {
	return func(e *Engine) { e.layout = spec }
}

// WithDPI overrides the PDF rasterization resolution.
func WithDPI(dpi int) Option {
	return func(e *Engine) { e.dpi = dpi }
}

// WithListRenderer sets the department-list renderer, e.g. one built around
// a font with full Arabic coverage.
func WithListRenderer(r *listing.Renderer) Option {
	return func(e *Engine) { e.lists = r }
}

// New returns an Engine backed by the given store.
func New(st store.Store, opts ...Option) (*Engine, error) {
	if st == nil {
		return nil, fmt.Errorf("store is required")
	}
	e := &Engine{
		store:  st,
		log:    zap.NewNop(),
		layout: compose.DefaultLayoutSpec(),
		dpi:    DefaultDPI,
		locks:  newKeyedLocks(),
	}
	for _, opt := range opts {
		opt(e)
	}
	if e.lists == nil {
		r, err := listing.NewRenderer(nil, listing.DefaultStyle())
		if err != nil {
			return nil, fmt.Errorf("failed to build list renderer: %w", err)
		}
		e.lists = r
	}
	return e, nil
}
