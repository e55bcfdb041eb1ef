package controller_test

import (
	"context"
	"testing"

	"github.com/paperkit/ocr-conductor/internal/controller"
	"github.com/paperkit/ocr-conductor/internal/docstore"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeDocstore struct {
	untagged []int
	tagged   map[string][]int
	docs     map[int]*docstore.Document

	listErr error
}

func newFakeDocstore() *fakeDocstore {
	return &fakeDocstore{
		tagged: make(map[string][]int),
		docs:   make(map[int]*docstore.Document),
	}
}

func (f *fakeDocstore) ListUntagged(ctx context.Context) ([]int, error) {
	return f.untagged, f.listErr
}

func (f *fakeDocstore) ListTagged(ctx context.Context, tag string) ([]int, error) {
	return f.tagged[tag], f.listErr
}

func (f *fakeDocstore) Get(ctx context.Context, id int) (*docstore.Document, error) {
	doc, ok := f.docs[id]
	if !ok {
		return nil, docstore.ErrDocumentNotFound
	}
	return doc, nil
}

func (f *fakeDocstore) Download(ctx context.Context, id int) ([]byte, error) {
	return []byte("image"), nil
}

func (f *fakeDocstore) UpdateContent(ctx context.Context, id int, content string) error {
	return nil
}

func (f *fakeDocstore) AddTag(ctx context.Context, id int, tag string) error    { return nil }
func (f *fakeDocstore) RemoveTag(ctx context.Context, id int, tag string) error { return nil }

func (f *fakeDocstore) EnsureTag(ctx context.Context, name string) (int, error) { return 1, nil }

func (f *fakeDocstore) CountDocuments(ctx context.Context, tag string) (int, error) {
	return len(f.docs), nil
}

func TestSelectorResolve(t *testing.T) {
	docs := newFakeDocstore()
	docs.untagged = []int{1, 2, 3}
	docs.tagged["runocr"] = []int{4, 5}

	tests := []struct {
		name     string
		selector controller.Selector
		want     []int
		wantErr  bool
	}{
		{
			name:     "all untagged",
			selector: controller.Selector{Kind: controller.SelectAllUntagged},
			want:     []int{1, 2, 3},
		},
		{
			name:     "tagged for ocr",
			selector: controller.Selector{Kind: controller.SelectTagged},
			want:     []int{4, 5},
		},
		{
			name:     "explicit ids deduplicated and sorted",
			selector: controller.Selector{Kind: controller.SelectExplicit, IDs: []int{7, 3, 3}},
			want:     []int{3, 7},
		},
		{
			name:     "explicit empty",
			selector: controller.Selector{Kind: controller.SelectExplicit},
			want:     []int{},
		},
		{
			name:     "unknown kind",
			selector: controller.Selector{Kind: "everything"},
			wantErr:  true,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ids, err := tt.selector.Resolve(context.Background(), docs, "runocr")
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, ids)
		})
	}
}
