package utils

import (
	"errors"
	"io"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testLogger() *logrus.Logger {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return l
}

func TestRetrySucceedsOnFirstAttempt(t *testing.T) {
	calls := 0

	err := Retry(testLogger(), 3, time.Millisecond, func() error {
		calls++
		return nil
	})

	require.NoError(t, err)
	assert.Equal(t, 1, calls)
}

func TestRetryRecoversAfterTransientFailures(t *testing.T) {
	calls := 0

	err := Retry(testLogger(), 3, time.Millisecond, func() error {
		calls++
		if calls < 3 {
			return errors.New("transient")
		}
		return nil
	})

	require.NoError(t, err)
	assert.Equal(t, 3, calls)
}

func TestRetryMaxAttemptsExceeded(t *testing.T) {
	sentinel := errors.New("permanent")
	calls := 0

	err := Retry(testLogger(), 3, time.Millisecond, func() error {
		calls++
		return sentinel
	})

	require.Error(t, err)
	assert.ErrorIs(t, err, sentinel)
	assert.Equal(t, 3, calls)
}
