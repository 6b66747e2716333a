// Package store defines the persistence contracts the signing engine works
// against and an in-memory implementation suitable for tests and tooling.
package store

import (
	"context"
	"encoding/hex"
	"errors"
	"time"

	"golang.org/x/crypto/blake2b"
)

// ErrNotFound is returned when a document, attachment, or blob does not
// exist in the backing store.
var ErrNotFound = errors.New("not found")

// DocumentStatus tracks where a document sits in the signing lifecycle.
type DocumentStatus string

const (
	StatusPending  DocumentStatus = "pending"
	StatusInReview DocumentStatus = "in_review"
	StatusSigned   DocumentStatus = "signed"
)

// Document is the logical unit being signed. It may own several attachments
// when the underlying files are page scans of one document.
type Document struct {
	ID     string
	Title  string
	Status DocumentStatus
}

// Attachment is one stored file of a document. FileRef points at the current
// content; OriginalFileRef points at the pristine pre-signing baseline and is
// empty until the first signing establishes it.
type Attachment struct {
	ID              string
	DocumentID      string
	FileRef         string
	OriginalFileRef string
	OriginalName    string
	Version         int
	IsSigned        bool
}

// Signature is the record of one applied signature. At most one signature
// record is active per attachment.
type Signature struct {
	ID           string
	AttachmentID string
	SignedBy     string
	Departments  []string
	Approved     bool
	Digest       string
	SignedAt     time.Time
}

// Blobs stores file content addressed by opaque refs.
type Blobs interface {
	ReadBlob(ctx context.Context, ref string) ([]byte, error)
	WriteBlob(ctx context.Context, ref string, data []byte) error
}

// Repository persists documents, attachments, and signature records.
type Repository interface {
	Document(ctx context.Context, id string) (Document, error)
	UpdateDocument(ctx context.Context, doc Document) error

	Attachment(ctx context.Context, id string) (Attachment, error)
	UpdateAttachment(ctx context.Context, att Attachment) error
	DocumentAttachments(ctx context.Context, documentID string) ([]Attachment, error)

	SignaturesFor(ctx context.Context, attachmentID string) ([]Signature, error)
	AddSignature(ctx context.Context, sig Signature) error
	DeleteSignatures(ctx context.Context, attachmentID string) error
}

// Store combines blob and record persistence.
type Store interface {
	Blobs
	Repository
}

// ContentDigest returns the hex BLAKE2b-256 digest of blob content, recorded
// on signature rows so stamped output can be audited later.
func ContentDigest(data []byte) string {
	sum := blake2b.Sum256(data)
	return hex.EncodeToString(sum[:])
}
