package domain

import (
	"fmt"
	"strings"
)

// DocumentIndexRef identifies the persisted vector index of one document.
type DocumentIndexRef struct {
	OwnerID    string `json:"owner_id"`
	DocumentID string `json:"document_id"`
}

func (r DocumentIndexRef) Validate() error {
	if strings.TrimSpace(r.OwnerID) == "" {
		return fmt.Errorf("owner id is required")
	}
	if strings.TrimSpace(r.DocumentID) == "" {
		return fmt.Errorf("document id is required")
	}
	if strings.Contains(r.OwnerID, "/") || strings.Contains(r.DocumentID, "/") ||
		strings.Contains(r.OwnerID, "..") || strings.Contains(r.DocumentID, "..") {
		return fmt.Errorf("owner and document ids must not contain path separators")
	}
	return nil
}

func (r DocumentIndexRef) String() string {
	return r.OwnerID + "/" + r.DocumentID
}

type ExistenceStatus string

const (
	ExistencePresent ExistenceStatus = "present"
	ExistenceAbsent  ExistenceStatus = "absent"
	ExistenceError   ExistenceStatus = "error"
)

// ExistenceCheckResult distinguishes "definitely absent" from "could not
// determine". Err is set only when Status is ExistenceError.
type ExistenceCheckResult struct {
	Status ExistenceStatus
	Err    error
}

func Present() ExistenceCheckResult { return ExistenceCheckResult{Status: ExistencePresent} }
func Absent() ExistenceCheckResult  { return ExistenceCheckResult{Status: ExistenceAbsent} }

func ExistenceFailed(err error) ExistenceCheckResult {
	return ExistenceCheckResult{Status: ExistenceError, Err: err}
}
