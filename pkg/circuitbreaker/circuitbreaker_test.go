package circuitbreaker

import (
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/sony/gobreaker/v2"
	"github.com/stretchr/testify/assert"
)

var errBoom = errors.New("boom")
var errExpected = errors.New("expected")

func TestNew_TripsAfterThreshold(t *testing.T) {
	s := DefaultSettings("test")
	s.FailureThreshold = 2
	s.Timeout = time.Hour
	cb := New[int](s, zerolog.Nop())

	for i := 0; i < 2; i++ {
		_, err := cb.Execute(func() (int, error) { return 0, errBoom })
		assert.ErrorIs(t, err, errBoom)
	}

	_, err := cb.Execute(func() (int, error) { return 1, nil })
	assert.True(t, IsOpen(err))
	assert.Equal(t, gobreaker.StateOpen, cb.State())
}

func TestNew_IsSuccessfulIgnoresExpectedErrors(t *testing.T) {
	s := DefaultSettings("test")
	s.FailureThreshold = 1
	s.IsSuccessful = func(err error) bool {
		return err == nil || errors.Is(err, errExpected)
	}
	cb := New[string](s, zerolog.Nop())

	for i := 0; i < 3; i++ {
		_, err := cb.Execute(func() (string, error) { return "", errExpected })
		assert.ErrorIs(t, err, errExpected)
	}

	assert.Equal(t, gobreaker.StateClosed, cb.State())
}

func TestIsOpen(t *testing.T) {
	assert.True(t, IsOpen(gobreaker.ErrOpenState))
	assert.True(t, IsOpen(gobreaker.ErrTooManyRequests))
	assert.False(t, IsOpen(errBoom))
	assert.False(t, IsOpen(nil))
}
