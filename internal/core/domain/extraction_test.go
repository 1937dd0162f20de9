package domain

import (
	"errors"
	"testing"
)

func TestQuestionSetNormalizeTrimsAndRejectsDuplicates(t *testing.T) {
	got, err := QuestionSet{"  a?  ", "b?"}.Normalize()
	if err != nil {
		t.Fatalf("Normalize() error = %v", err)
	}
	if got[0] != "a?" || got[1] != "b?" {
		t.Fatalf("unexpected normalized set: %#v", got)
	}

	if _, err := (QuestionSet{"a?", " a? "}).Normalize(); err == nil {
		t.Fatalf("expected duplicate question error")
	}
	if _, err := (QuestionSet{"a?", "  "}).Normalize(); err == nil {
		t.Fatalf("expected empty question error")
	}
	if _, err := (QuestionSet{}).Normalize(); err == nil {
		t.Fatalf("expected empty set error")
	}
}

func TestStructuredAnswerMarshalKeepsQuestionOrder(t *testing.T) {
	answer := NewStructuredAnswer(
		[]string{"z?", "a?"},
		map[string]string{"a?": "1", "z?": "2"},
	)
	raw, err := answer.MarshalJSON()
	if err != nil {
		t.Fatalf("MarshalJSON() error = %v", err)
	}
	if string(raw) != `{"z?":"2","a?":"1"}` {
		t.Fatalf("unexpected json: %s", raw)
	}
	if answer.Len() != 2 {
		t.Fatalf("expected 2 entries, got %d", answer.Len())
	}
}

func TestFailureKindNames(t *testing.T) {
	cases := map[error]string{
		WrapError(ErrIndexNotFound, "load", errors.New("x")):       "index_not_found",
		WrapError(ErrIndexCorrupt, "load", errors.New("x")):        "index_corrupt",
		WrapError(ErrMalformedJSON, "parse", errors.New("x")):      "malformed_json",
		WrapError(ErrGeneration, "generate", errors.New("x")):      "generation_error",
		WrapError(ErrConversationStore, "append", errors.New("x")): "conversation_store_error",
		errors.New("plain"): "internal",
	}
	for err, want := range cases {
		if got := FailureKind(err); got != want {
			t.Fatalf("FailureKind(%v) = %q, want %q", err, got, want)
		}
	}
}

func TestExtractionErrorUnwrapsKind(t *testing.T) {
	err := &ExtractionError{State: StateParsing, Err: WrapError(ErrNoJSONFound, "parse", errors.New("prose only"))}
	if !IsKind(err, ErrNoJSONFound) {
		t.Fatalf("expected ErrNoJSONFound through ExtractionError")
	}
	if !IsAnswerFormat(err) {
		t.Fatalf("expected answer format class")
	}
	if IsIndexUnavailable(err) {
		t.Fatalf("did not expect index class")
	}
}

func TestDocumentIndexRefValidate(t *testing.T) {
	if err := (DocumentIndexRef{OwnerID: "u", DocumentID: "abc123"}).Validate(); err != nil {
		t.Fatalf("Validate() error = %v", err)
	}
	if err := (DocumentIndexRef{OwnerID: "u", DocumentID: "../etc"}).Validate(); err == nil {
		t.Fatalf("expected traversal rejection")
	}
	if err := (DocumentIndexRef{DocumentID: "abc"}).Validate(); err == nil {
		t.Fatalf("expected missing owner rejection")
	}
}

func TestKindFromNameInvertsFailureKind(t *testing.T) {
	for name, kind := range kindsByName {
		if got := FailureKind(WrapError(kind, "op", errors.New("x"))); got != name {
			t.Fatalf("FailureKind(%v) = %q, want %q", kind, got, name)
		}
		if KindFromName(name) != kind {
			t.Fatalf("KindFromName(%q) did not return %v", name, kind)
		}
	}
	if KindFromName("internal") != nil {
		t.Fatalf("expected nil for internal kind")
	}
}
