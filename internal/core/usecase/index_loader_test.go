package usecase

import (
	"context"
	"errors"
	"testing"

	"github.com/kirillkom/notice-extractor/internal/core/domain"
	"github.com/kirillkom/notice-extractor/internal/core/vectorindex"
)

type indexStoreFake struct {
	snapshots map[string][]byte
}

func (f *indexStoreFake) Fetch(_ context.Context, ref domain.DocumentIndexRef) ([]byte, error) {
	data, ok := f.snapshots[ref.String()]
	if !ok {
		return nil, domain.WrapError(domain.ErrIndexNotFound, "fetch", errors.New("no snapshot"))
	}
	return data, nil
}

func (f *indexStoreFake) Exists(_ context.Context, ref domain.DocumentIndexRef) domain.ExistenceCheckResult {
	if _, ok := f.snapshots[ref.String()]; ok {
		return domain.Present()
	}
	return domain.Absent()
}

func TestSnapshotIndexLoaderDecodesStoredSnapshot(t *testing.T) {
	ref := domain.DocumentIndexRef{OwnerID: "user-1", DocumentID: "abc123"}
	h, err := vectorindex.New(ref, []domain.Passage{{ID: "0", Text: "refund"}}, [][]float32{{1, 0}})
	if err != nil {
		t.Fatalf("vectorindex.New() error = %v", err)
	}
	data, err := vectorindex.Encode(h)
	if err != nil {
		t.Fatalf("Encode() error = %v", err)
	}

	loader := NewSnapshotIndexLoader(&indexStoreFake{snapshots: map[string][]byte{ref.String(): data}})
	if got := loader.Exists(context.Background(), ref); got.Status != domain.ExistencePresent {
		t.Fatalf("expected present, got %s", got.Status)
	}
	loaded, err := loader.Load(context.Background(), ref)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if loaded.Len() != 1 || loaded.Ref() != ref {
		t.Fatalf("unexpected handle len=%d ref=%v", loaded.Len(), loaded.Ref())
	}
}

func TestSnapshotIndexLoaderReportsCorruptSnapshot(t *testing.T) {
	ref := domain.DocumentIndexRef{OwnerID: "user-1", DocumentID: "abc123"}
	loader := NewSnapshotIndexLoader(&indexStoreFake{snapshots: map[string][]byte{ref.String(): []byte("garbage")}})

	_, err := loader.Load(context.Background(), ref)
	if !domain.IsKind(err, domain.ErrIndexCorrupt) {
		t.Fatalf("expected index corrupt, got %v", err)
	}
}
