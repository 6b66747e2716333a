package docstamp

import (
	"context"
	"fmt"
	"image"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/tawqee/docstamp/artifact"
	"github.com/tawqee/docstamp/compose"
	"github.com/tawqee/docstamp/pagerender"
	"github.com/tawqee/docstamp/store"
)

// stagedOutput is one fully processed attachment waiting to be persisted.
type stagedOutput struct {
	att      store.Attachment
	data     []byte
	resigned bool
}

// Sign runs one signing pass: decode the request's artifacts, stamp the
// target attachment (and, for image documents, every image sibling), and
// persist the results together with a fresh signature record. The owning
// document's status moves to signed.
//
// Passes touching the same attachment are serialized. All outputs are staged
// in memory first, so a failure before the persist step leaves the store
// untouched.
func (e *Engine) Sign(ctx context.Context, req SigningRequest) error {
	if req.AttachmentID == "" {
		return fmt.Errorf("attachment id is required")
	}
	log := e.log.With(zap.String("attachment_id", req.AttachmentID))

	target, err := e.store.Attachment(ctx, req.AttachmentID)
	if err != nil {
		return fmt.Errorf("failed to load attachment: %w", err)
	}
	format, err := pagerender.DetectFormat(fileName(target))
	if err != nil {
		return err
	}
	doc, err := e.store.Document(ctx, target.DocumentID)
	if err != nil {
		return fmt.Errorf("failed to load document: %w", err)
	}

	log.Debug("decoding artifacts")
	art, departments, err := e.decodeArtifacts(req)
	if err != nil {
		log.Error("signing pass failed", zap.Error(err))
		return err
	}

	attachments, err := e.fanOut(ctx, target, format)
	if err != nil {
		log.Error("signing pass failed", zap.Error(err))
		return err
	}

	ids := make([]string, len(attachments))
	for i, att := range attachments {
		ids[i] = att.ID
	}
	release := e.locks.acquire(ids)
	defer release()

	var outputs []stagedOutput
	for _, att := range attachments {
		log.Debug("composing", zap.String("sibling_id", att.ID))
		out, err := e.processAttachment(ctx, att.ID, art)
		if err != nil {
			log.Error("signing pass failed", zap.String("sibling_id", att.ID), zap.Error(err))
			return err
		}
		outputs = append(outputs, out)
	}

	// A re-signed image document bumps the version of every sibling that
	// did not bump itself.
	if format != pagerender.FormatPDF && outputs[0].att.Version > 1 {
		for i := range outputs[1:] {
			if !outputs[i+1].resigned {
				outputs[i+1].att.Version++
			}
		}
	}

	log.Debug("persisting", zap.Int("attachments", len(outputs)))
	if err := e.persist(ctx, req, doc, departments, outputs); err != nil {
		log.Error("signing pass failed", zap.Error(err))
		return err
	}

	log.Info("signing pass complete",
		zap.Int("attachments", len(outputs)),
		zap.Int("version", outputs[0].att.Version))
	return nil
}

// decodeArtifacts turns the request payloads into surfaces. Missing
// artifacts decode to nil and are not failures.
func (e *Engine) decodeArtifacts(req SigningRequest) (compose.Artifacts, []string, error) {
	var art compose.Artifacts
	var err error

	if art.Signature, err = artifact.Decode(req.SignatureData); err != nil {
		return art, nil, stageErr(StageDecoding, fmt.Errorf("signature: %w", err))
	}
	if art.Comments, err = artifact.Decode(req.CommentsData); err != nil {
		return art, nil, stageErr(StageDecoding, fmt.Errorf("comments: %w", err))
	}

	departments := NormalizeDepartments(req.Departments)
	if len(departments) > 0 {
		if art.List, err = e.lists.Render(departments, defaultListWidth); err != nil {
			return art, nil, stageErr(StageDecoding, fmt.Errorf("department list: %w", err))
		}
	}
	return art, departments, nil
}

// fanOut resolves the attachment set of one pass: just the target for PDFs,
// every image-typed attachment of the document for raster images. The target
// always comes first; siblings follow in stable order.
func (e *Engine) fanOut(ctx context.Context, target store.Attachment, format pagerender.Format) ([]store.Attachment, error) {
	if format == pagerender.FormatPDF {
		return []store.Attachment{target}, nil
	}

	all, err := e.store.DocumentAttachments(ctx, target.DocumentID)
	if err != nil {
		return nil, fmt.Errorf("failed to list document attachments: %w", err)
	}
	sort.Slice(all, func(i, j int) bool { return all[i].ID < all[j].ID })

	out := []store.Attachment{target}
	for _, att := range all {
		if att.ID == target.ID {
			continue
		}
		if f, err := pagerender.DetectFormat(fileName(att)); err == nil && f != pagerender.FormatPDF {
			out = append(out, att)
		}
	}
	return out, nil
}

// processAttachment stamps a single attachment from its pristine baseline
// and stages the result. The record is re-read under the pass lock.
func (e *Engine) processAttachment(ctx context.Context, id string, art compose.Artifacts) (stagedOutput, error) {
	att, err := e.store.Attachment(ctx, id)
	if err != nil {
		return stagedOutput{}, stageErr(StageComposing, err)
	}

	data, resigned, err := e.prepareAttachment(ctx, &att)
	if err != nil {
		return stagedOutput{}, stageErr(StageComposing, err)
	}

	format, err := pagerender.DetectFormat(fileName(att))
	if err != nil {
		return stagedOutput{}, err
	}

	stamp := func(page *image.NRGBA) error {
		return e.layout.Stamp(page, art)
	}

	var out []byte
	if format == pagerender.FormatPDF {
		out, err = pagerender.StampPDF(fileName(att), data, e.dpi, stamp)
	} else {
		out, err = pagerender.StampImage(fileName(att), data, format, stamp)
	}
	if err != nil {
		return stagedOutput{}, stageErr(stampStage(err), err)
	}

	// Fresh uuid names sidestep collisions from non-ASCII or otherwise
	// hostile original filenames.
	att.FileRef = "signed_" + uuid.NewString() + strings.ToLower(filepath.Ext(fileName(att)))
	att.IsSigned = true
	return stagedOutput{att: att, data: out, resigned: resigned}, nil
}

// persist commits every staged output, replaces the target's signature
// record, and flips the document status.
func (e *Engine) persist(ctx context.Context, req SigningRequest, doc store.Document, departments []string, outputs []stagedOutput) error {
	for _, o := range outputs {
		if err := e.store.WriteBlob(ctx, o.att.FileRef, o.data); err != nil {
			return stageErr(StagePersisting, err)
		}
		if err := e.store.UpdateAttachment(ctx, o.att); err != nil {
			return stageErr(StagePersisting, err)
		}
		// Any re-baselined attachment sheds its prior signature records,
		// siblings included; otherwise a restored sibling would keep a
		// record for content that no longer exists.
		if o.resigned {
			if err := e.store.DeleteSignatures(ctx, o.att.ID); err != nil {
				return stageErr(StagePersisting, err)
			}
		}
	}

	target := outputs[0]
	sig := store.Signature{
		ID:           uuid.NewString(),
		AttachmentID: target.att.ID,
		SignedBy:     req.SignedBy,
		Departments:  departments,
		Approved:     req.Approved,
		Digest:       store.ContentDigest(target.data),
		SignedAt:     time.Now(),
	}
	if err := e.store.AddSignature(ctx, sig); err != nil {
		return stageErr(StagePersisting, err)
	}

	doc.Status = store.StatusSigned
	if err := e.store.UpdateDocument(ctx, doc); err != nil {
		return stageErr(StagePersisting, err)
	}
	return nil
}

// fileName returns the name used for format routing and error context.
func fileName(att store.Attachment) string {
	if att.OriginalName != "" {
		return att.OriginalName
	}
	return att.FileRef
}
