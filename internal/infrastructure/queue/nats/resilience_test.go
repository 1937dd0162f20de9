package nats

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/nats-io/nats.go"

	"github.com/kirillkom/notice-extractor/internal/core/domain"
)

func TestClassifyNATSError(t *testing.T) {
	cases := []struct {
		name      string
		err       error
		retryable bool
		record    bool
	}{
		{name: "no responders", err: fmt.Errorf("nats request: %w", nats.ErrNoResponders), retryable: true, record: false},
		{name: "no servers", err: nats.ErrNoServers, retryable: true, record: true},
		{name: "canceled", err: context.Canceled, retryable: false, record: false},
		{name: "bad subject", err: nats.ErrBadSubject, retryable: false, record: true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := classifyNATSError(tc.err)
			if got.Retryable != tc.retryable || got.RecordFailure != tc.record {
				t.Fatalf("classifyNATSError(%v) = %+v", tc.err, got)
			}
		})
	}
}

func TestWrapTemporaryIfNeeded(t *testing.T) {
	if err := wrapTemporaryIfNeeded("nats request", nats.ErrNoResponders); !domain.IsKind(err, domain.ErrTemporary) {
		t.Fatalf("expected temporary, got %v", err)
	}
	if err := wrapTemporaryIfNeeded("nats request", context.DeadlineExceeded); !domain.IsKind(err, domain.ErrTemporary) {
		t.Fatalf("expected deadline to be temporary, got %v", err)
	}
	permanent := errors.New("permission violation")
	if err := wrapTemporaryIfNeeded("nats request", permanent); domain.IsKind(err, domain.ErrTemporary) {
		t.Fatalf("expected permanent error unchanged, got %v", err)
	}
}
