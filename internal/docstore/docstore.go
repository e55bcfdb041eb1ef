package docstore

import (
	"context"
	"errors"
)

var ErrDocumentNotFound = errors.New("document not found")

// Document is the metadata the controller needs; the file bytes are fetched
// separately via Download.
type Document struct {
	ID      int
	Title   string
	Content string
	Tags    []int
}

// Store is the document management system the controller reads from and
// writes OCR results back to. List methods return IDs in ascending order.
type Store interface {
	// ListUntagged returns the IDs of documents that do not carry the
	// finish tag yet.
	ListUntagged(ctx context.Context) ([]int, error)
	// ListTagged returns the IDs of documents carrying the given tag,
	// excluding those already finished.
	ListTagged(ctx context.Context, tag string) ([]int, error)
	Get(ctx context.Context, id int) (*Document, error)
	// Download returns the original file bytes for OCR.
	Download(ctx context.Context, id int) ([]byte, error)
	UpdateContent(ctx context.Context, id int, content string) error
	AddTag(ctx context.Context, id int, tag string) error
	RemoveTag(ctx context.Context, id int, tag string) error
	// EnsureTag creates the tag if missing and returns its id.
	EnsureTag(ctx context.Context, name string) (int, error)
	// CountDocuments returns the total number of documents, or the number
	// carrying the given tag when tag is non-empty.
	CountDocuments(ctx context.Context, tag string) (int, error)
}
