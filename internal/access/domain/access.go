// Package domain defines access contexts, privilege levels, the operation catalogue
// with its required levels, and the append-only audit entry.
package domain

import (
	"strings"
)

// Level is a privilege level. Levels are totally ordered.
type Level int

const (
	LevelNone Level = iota
	LevelBasic
	LevelStandard
	LevelElevated
	LevelAdmin
	LevelSystem
)

var levelNames = []string{"none", "basic", "standard", "elevated", "admin", "system"}

// String returns the lowercase level name.
func (l Level) String() string {
	if l < LevelNone || int(l) >= len(levelNames) {
		return "unknown"
	}
	return levelNames[l]
}

// ParseLevel parses a level name case-insensitively.
func ParseLevel(s string) (Level, error) {
	for i, name := range levelNames {
		if strings.EqualFold(name, s) {
			return Level(i), nil
		}
	}
	return LevelNone, ErrInvalidLevel
}

// Context is the capability descriptor a caller presents with every vault call.
type Context struct {
	SubjectID string
	Level     Level
	// Purpose is the declared business reason, required for full card reveal.
	Purpose string
}

// System returns a context for internal jobs such as scheduled rotation.
func System(subjectID string) Context {
	return Context{SubjectID: subjectID, Level: LevelSystem, Purpose: "system"}
}

// Operation names a vault operation subject to authorization and audit.
type Operation string

const (
	OpStoreCard         Operation = "store_card"
	OpRetrieveCard      Operation = "retrieve_card"
	OpRevealCard        Operation = "reveal_card"
	OpDeleteCard        Operation = "delete_card"
	OpFindCard          Operation = "find_card"
	OpUpdateCardExpiry  Operation = "update_card_expiry"
	OpExtendTokenExpiry Operation = "extend_token_expiry"
	OpRotateKeys        Operation = "rotate_keys"
	OpVaultStats        Operation = "vault_stats"
	OpPurgeExpired      Operation = "purge_expired"
)

var requiredLevels = map[Operation]Level{
	OpStoreCard:         LevelStandard,
	OpFindCard:          LevelStandard,
	OpDeleteCard:        LevelStandard,
	OpUpdateCardExpiry:  LevelStandard,
	OpExtendTokenExpiry: LevelStandard,
	OpRetrieveCard:      LevelElevated,
	OpRevealCard:        LevelElevated,
	OpRotateKeys:        LevelAdmin,
	OpVaultStats:        LevelAdmin,
	OpPurgeExpired:      LevelAdmin,
}

// RequiredLevel returns the minimum level for op.
func RequiredLevel(op Operation) (Level, bool) {
	level, ok := requiredLevels[op]
	return level, ok
}

// Check decides whether ac may perform op. The returned reason is safe to log and audit.
func Check(ac Context, op Operation) (bool, string) {
	required, ok := RequiredLevel(op)
	if !ok {
		return false, "unknown operation"
	}
	if ac.SubjectID == "" {
		return false, "missing subject"
	}
	if ac.Level < required {
		return false, "requires " + required.String() + ", granted " + ac.Level.String()
	}
	if op == OpRevealCard && strings.TrimSpace(ac.Purpose) == "" {
		return false, "reveal requires a declared purpose"
	}
	return true, ""
}
