// Package localfs persists index snapshots as files laid out as
// <base>/<owner>/<document>/index.nxi.
package localfs

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/google/uuid"

	"github.com/kirillkom/notice-extractor/internal/core/domain"
	"github.com/kirillkom/notice-extractor/internal/core/vectorindex"
)

const snapshotFile = "index.nxi"

type Store struct {
	basePath string
}

func New(basePath string) (*Store, error) {
	if basePath == "" {
		basePath = "./data/indexes"
	}
	if err := os.MkdirAll(basePath, 0o755); err != nil {
		return nil, fmt.Errorf("create index dir: %w", err)
	}
	return &Store{basePath: basePath}, nil
}

func (s *Store) path(ref domain.DocumentIndexRef) string {
	return filepath.Join(s.basePath, ref.OwnerID, ref.DocumentID, snapshotFile)
}

// Save writes the snapshot to a temporary file and renames it into place, so
// readers see either the previous snapshot or the complete new one.
func (s *Store) Save(_ context.Context, ref domain.DocumentIndexRef, data []byte) error {
	if err := ref.Validate(); err != nil {
		return domain.WrapError(domain.ErrInvalidInput, "save snapshot", err)
	}
	target := s.path(ref)
	dir := filepath.Dir(target)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create snapshot dir: %w", err)
	}

	tmp := filepath.Join(dir, ".index-"+uuid.NewString()+".tmp")
	f, err := os.OpenFile(tmp, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("create temp snapshot: %w", err)
	}
	if _, err := f.Write(data); err != nil {
		_ = f.Close()
		_ = os.Remove(tmp)
		return fmt.Errorf("write temp snapshot: %w", err)
	}
	if err := f.Sync(); err != nil {
		_ = f.Close()
		_ = os.Remove(tmp)
		return fmt.Errorf("sync temp snapshot: %w", err)
	}
	if err := f.Close(); err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("close temp snapshot: %w", err)
	}
	if err := os.Rename(tmp, target); err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("publish snapshot: %w", err)
	}
	return nil
}

// WriteIndex encodes h and saves it under the handle's own ref.
func (s *Store) WriteIndex(ctx context.Context, h *vectorindex.Handle) error {
	data, err := vectorindex.Encode(h)
	if err != nil {
		return fmt.Errorf("encode snapshot: %w", err)
	}
	return s.Save(ctx, h.Ref(), data)
}

func (s *Store) Fetch(_ context.Context, ref domain.DocumentIndexRef) ([]byte, error) {
	if err := ref.Validate(); err != nil {
		return nil, domain.WrapError(domain.ErrInvalidInput, "fetch snapshot", err)
	}
	data, err := os.ReadFile(s.path(ref))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, domain.WrapError(domain.ErrIndexNotFound, "fetch snapshot", fmt.Errorf("no snapshot for %s", ref))
		}
		return nil, fmt.Errorf("read snapshot: %w", err)
	}
	return data, nil
}

// Exists only reports Absent when the file is definitely missing. Any other
// stat failure is indeterminate.
func (s *Store) Exists(_ context.Context, ref domain.DocumentIndexRef) domain.ExistenceCheckResult {
	if err := ref.Validate(); err != nil {
		return domain.ExistenceFailed(domain.WrapError(domain.ErrInvalidInput, "stat snapshot", err))
	}
	info, err := os.Stat(s.path(ref))
	switch {
	case err == nil && info.Mode().IsRegular():
		return domain.Present()
	case err == nil:
		return domain.ExistenceFailed(fmt.Errorf("snapshot path for %s is not a regular file", ref))
	case errors.Is(err, fs.ErrNotExist):
		return domain.Absent()
	default:
		return domain.ExistenceFailed(fmt.Errorf("stat snapshot: %w", err))
	}
}
