package docstamp

import (
	"context"
	"fmt"

	"github.com/tawqee/docstamp/store"
)

// ensureBaseline makes the attachment's pristine backup exist and returns
// its content. The first-ever signing captures the current file ref as the
// baseline; since every signing pass writes its output under a fresh ref,
// the baseline content is never overwritten afterwards.
func (e *Engine) ensureBaseline(ctx context.Context, att *store.Attachment) ([]byte, error) {
	if att.OriginalFileRef == "" {
		att.OriginalFileRef = att.FileRef
	}
	data, err := e.store.ReadBlob(ctx, att.OriginalFileRef)
	if err != nil {
		return nil, fmt.Errorf("failed to read pristine baseline: %w", err)
	}
	return data, nil
}

// prepareAttachment runs the restore-then-replace sequence for one
// attachment of a signing pass: it returns the pristine bytes every stamp
// starts from and, when prior signature records make this a re-sign, bumps
// the version. Record mutations are left to the persist step.
func (e *Engine) prepareAttachment(ctx context.Context, att *store.Attachment) (data []byte, resigned bool, err error) {
	data, err = e.ensureBaseline(ctx, att)
	if err != nil {
		return nil, false, err
	}
	sigs, err := e.store.SignaturesFor(ctx, att.ID)
	if err != nil {
		return nil, false, fmt.Errorf("failed to load signature records: %w", err)
	}
	if len(sigs) > 0 {
		att.Version++
		resigned = true
	}
	return data, resigned, nil
}
