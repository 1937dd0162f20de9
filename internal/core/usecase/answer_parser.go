package usecase

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/kirillkom/notice-extractor/internal/core/domain"
)

// ParseStructuredAnswer turns untrusted model output into an answer keyed by
// the given questions. It either returns every question answered or fails;
// there is no partial result.
func ParseStructuredAnswer(raw string, questions domain.QuestionSet) (domain.StructuredAnswer, error) {
	object, err := extractFirstJSONObject(raw)
	if err != nil {
		return domain.StructuredAnswer{}, err
	}
	if !utf8.ValidString(object) {
		return domain.StructuredAnswer{}, domain.WrapError(domain.ErrMalformedJSON, "parse answer", errors.New("object is not valid utf-8"))
	}
	if !json.Valid([]byte(object)) {
		return domain.StructuredAnswer{}, domain.WrapError(domain.ErrMalformedJSON, "parse answer", errors.New("object is not valid json"))
	}

	values, err := decodeFlatObject(object)
	if err != nil {
		return domain.StructuredAnswer{}, err
	}

	keys := make([]string, 0, len(questions))
	for _, q := range questions {
		if _, ok := values[q]; !ok {
			return domain.StructuredAnswer{}, domain.WrapError(domain.ErrInvalidAnswerShape, "parse answer", fmt.Errorf("missing answer for %q", q))
		}
		keys = append(keys, q)
	}
	for key := range values {
		if !questions.Contains(key) {
			return domain.StructuredAnswer{}, domain.WrapError(domain.ErrInvalidAnswerShape, "parse answer", fmt.Errorf("unexpected key %q", key))
		}
	}
	return domain.NewStructuredAnswer(keys, values), nil
}

// extractFirstJSONObject returns the first top-level balanced {...} span,
// ignoring braces inside quoted strings.
func extractFirstJSONObject(raw string) (string, error) {
	start := strings.IndexByte(raw, '{')
	if start < 0 {
		return "", domain.WrapError(domain.ErrNoJSONFound, "parse answer", errors.New("no opening brace in model output"))
	}

	depth := 0
	inString := false
	escaped := false
	for i := start; i < len(raw); i++ {
		ch := raw[i]
		if inString {
			switch {
			case escaped:
				escaped = false
			case ch == '\\':
				escaped = true
			case ch == '"':
				inString = false
			}
			continue
		}
		switch ch {
		case '"':
			inString = true
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				return raw[start : i+1], nil
			}
		}
	}
	return "", domain.WrapError(domain.ErrMalformedJSON, "parse answer", errors.New("unbalanced braces in model output"))
}

func decodeFlatObject(object string) (map[string]string, error) {
	dec := json.NewDecoder(strings.NewReader(object))
	dec.UseNumber()

	if _, err := dec.Token(); err != nil {
		return nil, domain.WrapError(domain.ErrMalformedJSON, "parse answer", err)
	}

	out := make(map[string]string)
	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return nil, domain.WrapError(domain.ErrMalformedJSON, "parse answer", err)
		}
		key, ok := tok.(string)
		if !ok {
			return nil, domain.WrapError(domain.ErrMalformedJSON, "parse answer", fmt.Errorf("unexpected key token %v", tok))
		}
		if _, dup := out[key]; dup {
			return nil, domain.WrapError(domain.ErrInvalidAnswerShape, "parse answer", fmt.Errorf("duplicate key %q", key))
		}

		tok, err = dec.Token()
		if err != nil {
			return nil, domain.WrapError(domain.ErrMalformedJSON, "parse answer", err)
		}
		value, err := scalarText(key, tok)
		if err != nil {
			return nil, err
		}
		out[key] = value
	}

	if _, err := dec.Token(); err != nil && !errors.Is(err, io.EOF) {
		return nil, domain.WrapError(domain.ErrMalformedJSON, "parse answer", err)
	}
	return out, nil
}

func scalarText(key string, tok json.Token) (string, error) {
	switch v := tok.(type) {
	case string:
		return v, nil
	case json.Number:
		return v.String(), nil
	case bool:
		return strconv.FormatBool(v), nil
	case json.Delim:
		return "", domain.WrapError(domain.ErrInvalidAnswerShape, "parse answer", fmt.Errorf("value for %q is a nested %s", key, delimKind(v)))
	case nil:
		return "", domain.WrapError(domain.ErrInvalidAnswerShape, "parse answer", fmt.Errorf("value for %q is null", key))
	default:
		return "", domain.WrapError(domain.ErrInvalidAnswerShape, "parse answer", fmt.Errorf("value for %q has type %T", key, tok))
	}
}

func delimKind(d json.Delim) string {
	if d == '[' {
		return "array"
	}
	return "object"
}
