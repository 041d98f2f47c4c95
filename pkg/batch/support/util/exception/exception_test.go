package exception

import (
	"errors"
	"fmt"
	"io"
	"strconv"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewBatchError(t *testing.T) {
	cause := errors.New("disk full")
	err := NewBatchError("writer", "failed to upload", cause, false, false)

	assert.Equal(t, "[writer] failed to upload: disk full", err.Error())
	assert.Equal(t, cause, errors.Unwrap(err))
	assert.False(t, err.IsSkippable())
	assert.False(t, err.IsRetryable())
	assert.NotEmpty(t, err.StackTrace)

	noCause := NewBatchError("config", "bad value", nil, false, false)
	assert.Equal(t, "[config] bad value", noCause.Error())
}

func TestNewBatchErrorf(t *testing.T) {
	t.Run("flags and cause", func(t *testing.T) {
		err := NewBatchErrorf("reader", "row %d invalid", 7, true, false, io.ErrUnexpectedEOF)
		assert.Equal(t, "row 7 invalid", err.Message)
		assert.True(t, err.IsSkippable())
		assert.False(t, err.IsRetryable())
		assert.ErrorIs(t, err, io.ErrUnexpectedEOF)
	})

	t.Run("cause only", func(t *testing.T) {
		err := NewBatchErrorf("catalog", "lookup %s", "races.races_ext", ErrSchemaMismatch)
		assert.Equal(t, "lookup races.races_ext", err.Message)
		assert.False(t, err.IsSkippable())
		assert.ErrorIs(t, err, ErrSchemaMismatch)
	})

	t.Run("no optional arguments", func(t *testing.T) {
		err := NewBatchErrorf("job", "plain")
		assert.Equal(t, "plain", err.Message)
		assert.Nil(t, err.OriginalErr)
	})
}

func TestIsFatal(t *testing.T) {
	assert.False(t, IsFatal(nil))
	assert.True(t, IsFatal(fmt.Errorf("header: %w", ErrMissingColumn)))
	assert.True(t, IsFatal(NewBatchError("writer", "upload", ErrDestinationUnwritable, true, false)))
	assert.True(t, IsFatal(NewBatchError("step", "boom", nil, false, false)))
	assert.False(t, IsFatal(NewBatchError("reader", "bad cell", ErrTypeCoercion, true, false)))
	assert.True(t, IsFatal(errors.New("open /data: permission denied")))
	assert.False(t, IsFatal(errors.New("something else")))
}

func TestIsErrorOfType(t *testing.T) {
	wrapped := NewBatchError("reader", "bad cell", fmt.Errorf("raceId: %w", ErrTypeCoercion), true, false)
	assert.True(t, IsErrorOfType(wrapped, TypeCoercion))
	assert.False(t, IsErrorOfType(wrapped, SchemaMismatch))

	_, numErr := strconv.Atoi("x")
	assert.True(t, IsErrorOfType(fmt.Errorf("wrap: %w", numErr), "*strconv.NumError"))
	assert.True(t, IsErrorOfType(numErr, "strconv.NumError"))
	assert.True(t, IsErrorOfType(errors.New("connection refused by peer"), "connection refused"))
	assert.False(t, IsErrorOfType(nil, TypeCoercion))
}

func TestRegistry(t *testing.T) {
	assert.True(t, IsErrorTypeRegistered(MissingColumn))
	assert.False(t, IsErrorTypeRegistered("NotRegistered"))

	custom := errors.New("custom")
	RegisterErrorType("CustomForTest", custom)
	assert.True(t, IsErrorOfType(fmt.Errorf("x: %w", custom), "CustomForTest"))

	require.Panics(t, func() { RegisterErrorType("", custom) })
	require.Panics(t, func() { RegisterErrorType("nil", nil) })
}

func TestOptimisticLocking(t *testing.T) {
	err := NewOptimisticLockingFailure("repository", "version 3 not found", nil)
	assert.True(t, IsOptimisticLockingFailure(err))
	assert.True(t, IsFatal(err))

	joined := NewOptimisticLockingFailure("repository", "conflict", errors.New("stale"))
	assert.True(t, IsOptimisticLockingFailure(joined))
	assert.False(t, IsOptimisticLockingFailure(errors.New("other")))
}

func TestExtractErrorMessage(t *testing.T) {
	assert.Equal(t, "", ExtractErrorMessage(nil))
	assert.Equal(t, "clean", ExtractErrorMessage(fmt.Errorf("outer: %w", NewBatchError("m", "clean", io.EOF, false, false))))
	assert.Equal(t, "plain", ExtractErrorMessage(errors.New("plain")))
}
