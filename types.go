package docstamp

import (
	"strings"

	"github.com/tawqee/docstamp/store"
)

// SigningRequest carries the inputs of one signing pass. Artifact payloads
// are base64-encoded images, raw or as data URLs; an empty payload means the
// artifact was not supplied. A request drives exactly one pass and is never
// persisted.
type SigningRequest struct {
	AttachmentID  string
	SignedBy      string
	SignatureData string
	CommentsData  string
	Departments   []string
	Approved      bool
}

// Aliases so callers work with the engine without importing store directly.
type (
	Document   = store.Document
	Attachment = store.Attachment
	Signature  = store.Signature
)

// NormalizeDepartments coerces raw department input into an ordered list of
// trimmed, non-empty, unique display names. Entries containing commas are
// treated as comma-joined lists.
func NormalizeDepartments(raw []string) []string {
	var out []string
	seen := make(map[string]bool)
	for _, entry := range raw {
		for _, name := range strings.Split(entry, ",") {
			name = strings.TrimSpace(name)
			if name == "" || seen[name] {
				continue
			}
			seen[name] = true
			out = append(out, name)
		}
	}
	return out
}
