package usecase

import (
	"context"

	"github.com/kirillkom/notice-extractor/internal/core/domain"
	"github.com/kirillkom/notice-extractor/internal/core/ports"
	"github.com/kirillkom/notice-extractor/internal/core/vectorindex"
)

// SnapshotIndexLoader decodes a fresh handle from the store on every Load.
// Handles are never cached across invocations.
type SnapshotIndexLoader struct {
	store ports.IndexStore
}

func NewSnapshotIndexLoader(store ports.IndexStore) *SnapshotIndexLoader {
	return &SnapshotIndexLoader{store: store}
}

func (l *SnapshotIndexLoader) Exists(ctx context.Context, ref domain.DocumentIndexRef) domain.ExistenceCheckResult {
	return l.store.Exists(ctx, ref)
}

func (l *SnapshotIndexLoader) Load(ctx context.Context, ref domain.DocumentIndexRef) (*vectorindex.Handle, error) {
	data, err := l.store.Fetch(ctx, ref)
	if err != nil {
		return nil, err
	}
	return vectorindex.Decode(ref, data)
}
