package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLevel(t *testing.T) {
	assert.True(t, LevelNone < LevelBasic)
	assert.True(t, LevelBasic < LevelStandard)
	assert.True(t, LevelStandard < LevelElevated)
	assert.True(t, LevelElevated < LevelAdmin)
	assert.True(t, LevelAdmin < LevelSystem)

	assert.Equal(t, "elevated", LevelElevated.String())
	assert.Equal(t, "unknown", Level(99).String())

	level, err := ParseLevel("ADMIN")
	require.NoError(t, err)
	assert.Equal(t, LevelAdmin, level)

	_, err = ParseLevel("root")
	assert.ErrorIs(t, err, ErrInvalidLevel)
}

func TestCheck(t *testing.T) {
	tests := []struct {
		name    string
		ac      Context
		op      Operation
		allowed bool
		reason  string
	}{
		{
			name:    "standard may store",
			ac:      Context{SubjectID: "svc-checkout", Level: LevelStandard},
			op:      OpStoreCard,
			allowed: true,
		},
		{
			name:    "basic may not store",
			ac:      Context{SubjectID: "svc-checkout", Level: LevelBasic},
			op:      OpStoreCard,
			allowed: false,
			reason:  "requires standard, granted basic",
		},
		{
			name:    "standard may not retrieve",
			ac:      Context{SubjectID: "svc-checkout", Level: LevelStandard},
			op:      OpRetrieveCard,
			allowed: false,
			reason:  "requires elevated, granted standard",
		},
		{
			name:    "elevated may retrieve without purpose",
			ac:      Context{SubjectID: "svc-billing", Level: LevelElevated},
			op:      OpRetrieveCard,
			allowed: true,
		},
		{
			name:    "reveal needs purpose",
			ac:      Context{SubjectID: "svc-billing", Level: LevelAdmin},
			op:      OpRevealCard,
			allowed: false,
			reason:  "reveal requires a declared purpose",
		},
		{
			name:    "reveal with purpose",
			ac:      Context{SubjectID: "svc-billing", Level: LevelElevated, Purpose: "recurring-charge"},
			op:      OpRevealCard,
			allowed: true,
		},
		{
			name:    "missing subject",
			ac:      Context{Level: LevelSystem},
			op:      OpFindCard,
			allowed: false,
			reason:  "missing subject",
		},
		{
			name:    "admin may rotate",
			ac:      Context{SubjectID: "ops", Level: LevelAdmin},
			op:      OpRotateKeys,
			allowed: true,
		},
		{
			name:    "elevated may not read stats",
			ac:      Context{SubjectID: "ops", Level: LevelElevated},
			op:      OpVaultStats,
			allowed: false,
			reason:  "requires admin, granted elevated",
		},
		{
			name:    "unknown operation",
			ac:      Context{SubjectID: "ops", Level: LevelSystem},
			op:      Operation("drop_tables"),
			allowed: false,
			reason:  "unknown operation",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			allowed, reason := Check(tt.ac, tt.op)
			assert.Equal(t, tt.allowed, allowed)
			assert.Equal(t, tt.reason, reason)
		})
	}
}

func TestSystemContext(t *testing.T) {
	ac := System("rotation-scheduler")
	allowed, _ := Check(ac, OpRotateKeys)
	assert.True(t, allowed)
}
