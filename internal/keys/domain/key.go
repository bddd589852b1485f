// Package domain defines key lifecycle metadata: purposes, statuses, the allowed
// status transitions and the default rotation schedule. Key material is never held
// here; a KeyRecord only references an opaque HSM key identifier.
package domain

import (
	"time"

	cryptoDomain "github.com/allisson/cardvault/internal/crypto/domain"
)

// Purpose scopes a key to one kind of data or operation.
type Purpose string

const (
	PurposeData    Purpose = "data"
	PurposePII     Purpose = "pii"
	PurposePayment Purpose = "payment"
	PurposeAuth    Purpose = "auth"
	PurposeHMAC    Purpose = "hmac"
	PurposeSigning Purpose = "signing"
	PurposeMaster  Purpose = "master"
)

// Purposes lists every known purpose.
var Purposes = []Purpose{
	PurposeData,
	PurposePII,
	PurposePayment,
	PurposeAuth,
	PurposeHMAC,
	PurposeSigning,
	PurposeMaster,
}

// ParsePurpose validates s as a known purpose.
func ParsePurpose(s string) (Purpose, error) {
	for _, p := range Purposes {
		if string(p) == s {
			return p, nil
		}
	}
	return "", ErrInvalidPurpose
}

// DefaultRotationPeriods is the rotation schedule applied when configuration does not
// override a purpose.
var DefaultRotationPeriods = map[Purpose]time.Duration{
	PurposeData:    90 * 24 * time.Hour,
	PurposePII:     90 * 24 * time.Hour,
	PurposePayment: 30 * 24 * time.Hour,
	PurposeAuth:    90 * 24 * time.Hour,
	PurposeHMAC:    365 * 24 * time.Hour,
	PurposeSigning: 365 * 24 * time.Hour,
	PurposeMaster:  730 * 24 * time.Hour,
}

// Status is a key's position in its lifecycle.
type Status string

const (
	StatusActive      Status = "active"
	StatusRotating    Status = "rotating"
	StatusDeactivated Status = "deactivated"
	StatusCompromised Status = "compromised"
	StatusArchived    Status = "archived"
)

var transitions = map[Status][]Status{
	StatusActive:      {StatusRotating, StatusCompromised},
	StatusRotating:    {StatusDeactivated, StatusCompromised},
	StatusDeactivated: {StatusCompromised, StatusArchived},
	StatusCompromised: {StatusArchived},
}

// CanTransition reports whether a key may move from one status to another.
func CanTransition(from, to Status) bool {
	for _, s := range transitions[from] {
		if s == to {
			return true
		}
	}
	return false
}

// Decryptable reports whether records encrypted under a key in this status may still
// be read. Compromised keys stay readable so their data can be re-encrypted away.
func (s Status) Decryptable() bool {
	return s != StatusArchived
}

// KeyRecord is the lifecycle metadata for one HSM key.
type KeyRecord struct {
	ID             string
	Purpose        Purpose
	Status         Status
	Algorithm      cryptoDomain.Algorithm
	Version        int
	RotationPeriod time.Duration
	StatusReason   *string
	CreatedAt      time.Time
	UpdatedAt      time.Time
	LastRotatedAt  *time.Time
}

// Transition moves the key to status to, or returns ErrInvalidTransition.
func (k *KeyRecord) Transition(to Status, now time.Time) error {
	if !CanTransition(k.Status, to) {
		return ErrInvalidTransition
	}
	k.Status = to
	k.UpdatedAt = now
	return nil
}

// RotationDue reports whether the key has outlived its rotation period.
func (k *KeyRecord) RotationDue(now time.Time) bool {
	if k.Status != StatusActive || k.RotationPeriod <= 0 {
		return false
	}
	return !now.Before(k.CreatedAt.Add(k.RotationPeriod))
}

// RotationNotice reports an active key whose rotation period has elapsed.
type RotationNotice struct {
	KeyID          string        `json:"key_id"`
	Purpose        Purpose       `json:"purpose"`
	Version        int           `json:"version"`
	Age            time.Duration `json:"age"`
	RotationPeriod time.Duration `json:"rotation_period"`
	DetectedAt     time.Time     `json:"detected_at"`
}

// Rotation identifies an in-flight rotation: the old key is rotating and the new key
// is already active.
type Rotation struct {
	Purpose   Purpose
	OldKeyID  string
	NewKeyID  string
	StartedAt time.Time
}

// KeyFilter narrows key listings. Zero values match everything.
type KeyFilter struct {
	Purpose Purpose
	Status  Status
}
