package ports

import (
	"context"

	"github.com/kirillkom/notice-extractor/internal/core/domain"
)

// DocumentExtractor is the inbound contract for the document QA call.
type DocumentExtractor interface {
	Extract(ctx context.Context, req domain.ExtractionRequest) (*domain.ExtractionResult, error)
}

// IndexStatusReader reports whether a document's index can be served.
type IndexStatusReader interface {
	CheckIndex(ctx context.Context, ref domain.DocumentIndexRef) domain.ExistenceCheckResult
}
