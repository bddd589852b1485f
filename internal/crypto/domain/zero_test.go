package domain

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestZero(t *testing.T) {
	tests := []struct {
		name string
		in   []byte
	}{
		{name: "nil", in: nil},
		{name: "empty", in: []byte{}},
		{name: "card digits", in: []byte("4111111111111111")},
		{name: "key sized", in: bytes.Repeat([]byte{0xAB}, KeySize)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			n := len(tt.in)
			assert.NotPanics(t, func() { Zero(tt.in) })
			assert.Len(t, tt.in, n)
			assert.Equal(t, n, bytes.Count(tt.in, []byte{0}))
		})
	}
}
