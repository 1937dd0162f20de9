package domain

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
)

// QuestionSet is the ordered list of questions bundled into one generation
// request.
type QuestionSet []string

// Normalize trims every question and rejects empty or duplicate entries.
func (q QuestionSet) Normalize() (QuestionSet, error) {
	if len(q) == 0 {
		return nil, fmt.Errorf("question set is empty")
	}
	out := make(QuestionSet, 0, len(q))
	seen := make(map[string]struct{}, len(q))
	for i, question := range q {
		question = strings.TrimSpace(question)
		if question == "" {
			return nil, fmt.Errorf("question %d is empty", i+1)
		}
		if _, ok := seen[question]; ok {
			return nil, fmt.Errorf("duplicate question %q", question)
		}
		seen[question] = struct{}{}
		out = append(out, question)
	}
	return out, nil
}

func (q QuestionSet) Contains(question string) bool {
	for _, item := range q {
		if item == question {
			return true
		}
	}
	return false
}

// StructuredAnswer maps question text to answer text. Keys keep the order of
// the question set they were validated against.
type StructuredAnswer struct {
	keys   []string
	values map[string]string
}

func NewStructuredAnswer(keys []string, values map[string]string) StructuredAnswer {
	out := StructuredAnswer{
		keys:   make([]string, 0, len(keys)),
		values: make(map[string]string, len(keys)),
	}
	for _, key := range keys {
		value, ok := values[key]
		if !ok {
			continue
		}
		if _, dup := out.values[key]; dup {
			continue
		}
		out.keys = append(out.keys, key)
		out.values[key] = value
	}
	return out
}

func (a StructuredAnswer) Len() int { return len(a.keys) }

func (a StructuredAnswer) Keys() []string {
	return append([]string(nil), a.keys...)
}

func (a StructuredAnswer) Value(question string) (string, bool) {
	v, ok := a.values[question]
	return v, ok
}

func (a StructuredAnswer) Map() map[string]string {
	out := make(map[string]string, len(a.values))
	for k, v := range a.values {
		out[k] = v
	}
	return out
}

// MarshalJSON writes the object with keys in question order.
func (a StructuredAnswer) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, key := range a.keys {
		if i > 0 {
			buf.WriteByte(',')
		}
		k, err := json.Marshal(key)
		if err != nil {
			return nil, err
		}
		v, err := json.Marshal(a.values[key])
		if err != nil {
			return nil, err
		}
		buf.Write(k)
		buf.WriteByte(':')
		buf.Write(v)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

type ExtractionRequest struct {
	Ref            DocumentIndexRef `json:"ref"`
	ConversationID string           `json:"conversation_id,omitempty"`
	Questions      QuestionSet      `json:"questions,omitempty"`
	Strict         bool             `json:"strict,omitempty"`
}

type ExtractionResult struct {
	Answer         StructuredAnswer `json:"answer"`
	Questions      QuestionSet      `json:"questions"`
	Passages       []Passage        `json:"passages"`
	HistoryTurns   int              `json:"history_turns"`
	ConversationID string           `json:"conversation_id,omitempty"`
	TurnRecorded   bool             `json:"turn_recorded"`
}

type ExtractionState string

const (
	StateIdle         ExtractionState = "idle"
	StateIndexLoading ExtractionState = "index_loading"
	StateRetrieving   ExtractionState = "retrieving"
	StateSynthesizing ExtractionState = "synthesizing"
	StateParsing      ExtractionState = "parsing"
	StateDone         ExtractionState = "done"
	StateFailed       ExtractionState = "failed"
)

// ExtractionError is the Failed(kind) terminal state of one invocation.
type ExtractionError struct {
	State ExtractionState
	Err   error
}

func (e *ExtractionError) Error() string {
	if e == nil || e.Err == nil {
		return "extraction failed"
	}
	return fmt.Sprintf("extraction failed while %s: %v", e.State, e.Err)
}

func (e *ExtractionError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}
