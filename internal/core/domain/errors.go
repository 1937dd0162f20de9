package domain

import (
	"errors"
	"fmt"
)

var (
	ErrIndexNotFound      = errors.New("index not found")
	ErrIndexCorrupt       = errors.New("index corrupt")
	ErrGeneration         = errors.New("generation failed")
	ErrNoJSONFound        = errors.New("no json object found")
	ErrMalformedJSON      = errors.New("malformed json")
	ErrInvalidAnswerShape = errors.New("invalid answer shape")
	ErrConversationStore  = errors.New("conversation store failure")
	ErrInvalidInput       = errors.New("invalid input")
	ErrTemporary          = errors.New("temporary failure")
)

// WrapError preserves typed semantic errors with operation context.
func WrapError(kind error, operation string, err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w: %w", operation, kind, err)
}

func IsKind(err error, kind error) bool {
	return errors.Is(err, kind)
}

// IsIndexUnavailable reports the "document not ready" class of failures.
func IsIndexUnavailable(err error) bool {
	return IsKind(err, ErrIndexNotFound) || IsKind(err, ErrIndexCorrupt)
}

// IsAnswerFormat reports failures caused by unusable model output rather than
// an unavailable generation service.
func IsAnswerFormat(err error) bool {
	return IsKind(err, ErrNoJSONFound) || IsKind(err, ErrMalformedJSON) || IsKind(err, ErrInvalidAnswerShape)
}

// FailureKind returns the stable wire name of the error kind carried by err.
func FailureKind(err error) string {
	switch {
	case err == nil:
		return ""
	case IsKind(err, ErrIndexNotFound):
		return "index_not_found"
	case IsKind(err, ErrIndexCorrupt):
		return "index_corrupt"
	case IsKind(err, ErrNoJSONFound):
		return "no_json_found"
	case IsKind(err, ErrMalformedJSON):
		return "malformed_json"
	case IsKind(err, ErrInvalidAnswerShape):
		return "invalid_answer_shape"
	case IsKind(err, ErrGeneration):
		return "generation_error"
	case IsKind(err, ErrConversationStore):
		return "conversation_store_error"
	case IsKind(err, ErrInvalidInput):
		return "invalid_input"
	case IsKind(err, ErrTemporary):
		return "temporary"
	default:
		return "internal"
	}
}

var kindsByName = map[string]error{
	"index_not_found":          ErrIndexNotFound,
	"index_corrupt":            ErrIndexCorrupt,
	"no_json_found":            ErrNoJSONFound,
	"malformed_json":           ErrMalformedJSON,
	"invalid_answer_shape":     ErrInvalidAnswerShape,
	"generation_error":         ErrGeneration,
	"conversation_store_error": ErrConversationStore,
	"invalid_input":            ErrInvalidInput,
	"temporary":                ErrTemporary,
}

// KindFromName is the inverse of FailureKind. Unknown names yield nil.
func KindFromName(name string) error {
	return kindsByName[name]
}
