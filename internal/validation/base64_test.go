package validation

import (
	"encoding/base64"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestBase64Key(t *testing.T) {
	rule := Base64Key(32)
	key := base64.StdEncoding.EncodeToString([]byte(strings.Repeat("k", 32)))

	tests := []struct {
		name    string
		value   any
		wantErr string
	}{
		{name: "valid key", value: key},
		{name: "empty", value: ""},
		{name: "not base64", value: "***", wantErr: "must be valid base64-encoded data"},
		{
			name:    "wrong size",
			value:   base64.StdEncoding.EncodeToString([]byte("short")),
			wantErr: "must decode to the required key size",
		},
		{name: "not a string", value: 42, wantErr: "must be a string"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := rule.Validate(tt.value)
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			assert.EqualError(t, err, tt.wantErr)
		})
	}
}
