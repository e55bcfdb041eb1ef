package controller

import (
	"context"
	"fmt"
	"sort"

	"github.com/paperkit/ocr-conductor/internal/docstore"
)

type SelectorKind string

const (
	// SelectAllUntagged targets every document not yet carrying the finish tag.
	SelectAllUntagged SelectorKind = "all_untagged"
	// SelectTagged targets documents explicitly marked for OCR with the run tag.
	SelectTagged SelectorKind = "tagged"
	// SelectExplicit targets a caller-provided set of document IDs.
	SelectExplicit SelectorKind = "explicit"
)

// Selector describes which documents a batch run covers. It is resolved once,
// at job start, into an immutable ordered ID list.
type Selector struct {
	Kind SelectorKind `json:"kind"`
	IDs  []int        `json:"ids,omitempty"`
}

// Resolve turns the selector into an ascending, deduplicated document ID list.
func (s Selector) Resolve(ctx context.Context, docs docstore.Store, runTag string) ([]int, error) {
	switch s.Kind {
	case SelectAllUntagged:
		return docs.ListUntagged(ctx)
	case SelectTagged:
		return docs.ListTagged(ctx, runTag)
	case SelectExplicit:
		return normalizeIDs(s.IDs), nil
	default:
		return nil, fmt.Errorf("unknown selector kind %q", s.Kind)
	}
}

func normalizeIDs(ids []int) []int {
	seen := make(map[int]struct{}, len(ids))
	out := make([]int, 0, len(ids))
	for _, id := range ids {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	sort.Ints(out)
	return out
}
