package domain

import (
	"time"

	"github.com/google/uuid"
)

// Outcome is the result of an audited attempt.
type Outcome string

const (
	OutcomeAllowed Outcome = "allowed"
	OutcomeDenied  Outcome = "denied"
	OutcomeError   Outcome = "error"
)

// AuditEntry is an append-only record of one vault operation attempt. Card data never
// appears in it; Token is the opaque token when the operation targets one.
type AuditEntry struct {
	ID           uuid.UUID
	Timestamp    time.Time
	Operation    Operation
	SubjectID    string
	Level        Level
	Purpose      string
	Token        string
	Outcome      Outcome
	Reason       string
	Signature    []byte
	SigningKeyID *string
}

// IsSigned reports whether the entry carries a signature.
func (a *AuditEntry) IsSigned() bool {
	return len(a.Signature) > 0 && a.SigningKeyID != nil
}

// AuditFilter narrows audit listings. Zero values match everything; From and To are
// inclusive bounds.
type AuditFilter struct {
	SubjectID string
	Operation Operation
	Outcome   Outcome
	Token     string
	From      *time.Time
	To        *time.Time
	Offset    int
	Limit     int
}

// VerifyReport summarizes a signature verification pass over audit entries.
type VerifyReport struct {
	Total      int
	Valid      int
	Invalid    int
	Unsigned   int
	InvalidIDs []uuid.UUID
}
