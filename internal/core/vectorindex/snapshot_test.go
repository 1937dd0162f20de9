package vectorindex

import (
	"testing"

	"github.com/kirillkom/notice-extractor/internal/core/domain"
)

func TestSnapshotEncodeDecodePreservesQueries(t *testing.T) {
	h := newTestHandle(t)
	raw, err := Encode(h)
	if err != nil {
		t.Fatalf("Encode() error = %v", err)
	}

	loaded, err := Decode(testRef, raw)
	if err != nil {
		t.Fatalf("Decode() error = %v", err)
	}
	if loaded.Len() != 3 || loaded.Dim() != 3 {
		t.Fatalf("unexpected shape len=%d dim=%d", loaded.Len(), loaded.Dim())
	}
	hits, err := loaded.Query([]float32{0.8, 0.6, 0}, 1)
	if err != nil {
		t.Fatalf("Query() error = %v", err)
	}
	if hits[0].Passage.ID != "p1" || hits[0].Passage.Page != 2 || hits[0].Passage.Offset != 40 {
		t.Fatalf("unexpected passage after decode: %+v", hits[0].Passage)
	}
}

func TestDecodeRejectsCorruptSnapshots(t *testing.T) {
	h := newTestHandle(t)
	raw, err := Encode(h)
	if err != nil {
		t.Fatalf("Encode() error = %v", err)
	}

	cases := map[string][]byte{
		"empty":     nil,
		"bad magic": append([]byte("XXXX"), raw[4:]...),
		"truncated": raw[:len(raw)-3],
		"trailing":  append(append([]byte(nil), raw...), 0x01),
	}
	for name, data := range cases {
		_, err := Decode(testRef, data)
		if !domain.IsKind(err, domain.ErrIndexCorrupt) {
			t.Fatalf("%s: expected ErrIndexCorrupt, got %v", name, err)
		}
	}
}

func TestDecodeEmptyIndex(t *testing.T) {
	empty, err := New(testRef, nil, nil)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	raw, err := Encode(empty)
	if err != nil {
		t.Fatalf("Encode() error = %v", err)
	}
	loaded, err := Decode(testRef, raw)
	if err != nil {
		t.Fatalf("Decode() error = %v", err)
	}
	if loaded.Len() != 0 {
		t.Fatalf("expected empty handle, got %d", loaded.Len())
	}
}
