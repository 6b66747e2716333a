package store

import (
	"context"
	"fmt"
	"io"
	"sync"

	"github.com/mattetti/filebuffer"
)

// MemoryStore keeps all documents, attachments, signatures, and blobs in
// process memory. Safe for concurrent use.
type MemoryStore struct {
	mu          sync.RWMutex
	documents   map[string]Document
	attachments map[string]Attachment
	signatures  map[string][]Signature
	blobs       map[string]*filebuffer.Buffer
}

// NewMemoryStore returns an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		documents:   make(map[string]Document),
		attachments: make(map[string]Attachment),
		signatures:  make(map[string][]Signature),
		blobs:       make(map[string]*filebuffer.Buffer),
	}
}

func (s *MemoryStore) ReadBlob(_ context.Context, ref string) ([]byte, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	buf, ok := s.blobs[ref]
	if !ok {
		return nil, fmt.Errorf("blob %q: %w", ref, ErrNotFound)
	}
	if _, err := buf.Seek(0, io.SeekStart); err != nil {
		return nil, err
	}
	data, err := io.ReadAll(buf)
	if err != nil {
		return nil, err
	}
	out := make([]byte, len(data))
	copy(out, data)
	return out, nil
}

func (s *MemoryStore) WriteBlob(_ context.Context, ref string, data []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	owned := make([]byte, len(data))
	copy(owned, data)
	s.blobs[ref] = filebuffer.New(owned)
	return nil
}

func (s *MemoryStore) Document(_ context.Context, id string) (Document, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	doc, ok := s.documents[id]
	if !ok {
		return Document{}, fmt.Errorf("document %q: %w", id, ErrNotFound)
	}
	return doc, nil
}

func (s *MemoryStore) UpdateDocument(_ context.Context, doc Document) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.documents[doc.ID] = doc
	return nil
}

func (s *MemoryStore) Attachment(_ context.Context, id string) (Attachment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	att, ok := s.attachments[id]
	if !ok {
		return Attachment{}, fmt.Errorf("attachment %q: %w", id, ErrNotFound)
	}
	return att, nil
}

func (s *MemoryStore) UpdateAttachment(_ context.Context, att Attachment) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.attachments[att.ID] = att
	return nil
}

func (s *MemoryStore) DocumentAttachments(_ context.Context, documentID string) ([]Attachment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []Attachment
	for _, att := range s.attachments {
		if att.DocumentID == documentID {
			out = append(out, att)
		}
	}
	return out, nil
}

func (s *MemoryStore) SignaturesFor(_ context.Context, attachmentID string) ([]Signature, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	sigs := s.signatures[attachmentID]
	out := make([]Signature, len(sigs))
	copy(out, sigs)
	return out, nil
}

func (s *MemoryStore) AddSignature(_ context.Context, sig Signature) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.signatures[sig.AttachmentID] = append(s.signatures[sig.AttachmentID], sig)
	return nil
}

func (s *MemoryStore) DeleteSignatures(_ context.Context, attachmentID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.signatures, attachmentID)
	return nil
}
