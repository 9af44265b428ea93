package index

import (
	"context"
	"errors"
	"fmt"

	"github.com/dshills/projectindex/internal/predicate"
	"github.com/dshills/projectindex/internal/schema"
	"github.com/dshills/projectindex/pkg/types"
)

var (
	// ErrNoSearchIndex is returned when a read needs a search index and none is designated
	ErrNoSearchIndex = errors.New("no search index configured")
	// ErrNoWriteIndex is returned when a write needs at least one write index
	ErrNoWriteIndex = errors.New("no write index configured")
	// ErrUnsupportedField is returned when a predicate references a field the index schema lacks
	ErrUnsupportedField = errors.New("field not supported by index schema")
	// ErrUnsupportedPredicate is returned when a backend cannot translate a predicate
	ErrUnsupportedPredicate = errors.New("predicate not supported by index")
	// ErrFieldNotStored is returned when a raw read asks for a field that is not stored
	ErrFieldNotStored = errors.New("field is not stored")
	// ErrDuplicateDocument is returned by Insert when the key is already indexed
	ErrDuplicateDocument = errors.New("document already exists")
)

// BackendError wraps an I/O or storage failure from an index backend
type BackendError struct {
	Op      string
	Version int
	Err     error
}

func (e *BackendError) Error() string {
	return fmt.Sprintf("index v%d %s: %v", e.Version, e.Op, e.Err)
}

func (e *BackendError) Unwrap() error {
	return e.Err
}

// QueryOptions bounds a search or raw read
type QueryOptions struct {
	Start  int      // Number of results to skip
	Limit  int      // Maximum results; 0 means no limit
	Fields []string // Fields to return from a raw read
}

// RawFields is the undecoded content of stored fields, keyed by field name
type RawFields map[string][][]byte

// Index is one versioned project index of one backend kind
type Index interface {
	// Schema returns the schema this index was created with
	Schema() *schema.Schema

	// Insert adds a document; it fails if the key is already present
	Insert(ctx context.Context, pd *types.ProjectData) error

	// Replace upserts a document, fully superseding any previous one
	Replace(ctx context.Context, pd *types.ProjectData) error

	// Delete removes the document for name; deleting a missing key is a no-op
	Delete(ctx context.Context, name string) error

	// DeleteAll removes every document
	DeleteAll(ctx context.Context) error

	// Search returns the names of matching projects in backend order
	Search(ctx context.Context, p predicate.Predicate, opts QueryOptions) ([]string, error)

	// GetRaw reads stored fields for one key without decoding the document.
	// The boolean is false when the key is not indexed.
	GetRaw(ctx context.Context, name string, opts QueryOptions) (RawFields, bool, error)
}

// CheckFields verifies that every field referenced by p exists in s
func CheckFields(s *schema.Schema, p predicate.Predicate) error {
	for _, f := range predicate.Fields(p) {
		if !s.Has(f) {
			return fmt.Errorf("%w: %s not in schema %s", ErrUnsupportedField, f.Name, s)
		}
		if !f.Matchable() {
			return fmt.Errorf("%w: %s is stored only", ErrUnsupportedField, f.Name)
		}
	}
	return nil
}
