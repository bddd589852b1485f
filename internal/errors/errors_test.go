package errors

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

type customError struct {
	Msg string
}

func (e customError) Error() string { return e.Msg }

func TestNew(t *testing.T) {
	err := New("test error")
	assert.EqualError(t, err, "test error")
}

func TestWrap(t *testing.T) {
	baseErr := errors.New("base error")

	t.Run("wrap non-nil error", func(t *testing.T) {
		wrapped := Wrap(baseErr, "wrapped")
		assert.EqualError(t, wrapped, "wrapped: base error")
		assert.True(t, errors.Is(wrapped, baseErr))
	})

	t.Run("wrap nil error", func(t *testing.T) {
		assert.Nil(t, Wrap(nil, "wrapped"))
	})

	t.Run("wrap keeps sentinel through several layers", func(t *testing.T) {
		domainErr := Wrap(ErrIntegrity, "card integrity check failed")
		outer := fmt.Errorf("retrieve card: %w", domainErr)
		assert.True(t, Is(outer, ErrIntegrity))
		assert.False(t, Is(outer, ErrNotFound))
	})
}

func TestAs(t *testing.T) {
	err := fmt.Errorf("outer: %w", customError{Msg: "inner"})

	var target customError
	assert.True(t, As(err, &target))
	assert.Equal(t, "inner", target.Msg)
}

func TestIsRetryable(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{name: "unavailable", err: Wrap(ErrUnavailable, "hsm unavailable"), want: true},
		{name: "integrity", err: Wrap(ErrIntegrity, "tampered"), want: false},
		{name: "invalid input", err: ErrInvalidInput, want: false},
		{name: "nil", err: nil, want: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, IsRetryable(tt.err))
		})
	}
}
