package skip

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/formula1dl/ingest/pkg/batch/support/util/exception"
)

func newPolicy(t *testing.T, limit int, names ...string) SkipPolicy {
	t.Helper()
	p, err := NewDefaultSkipPolicyFactory().Create(limit, names)
	require.NoError(t, err)
	return p
}

func TestZeroLimitNeverSkips(t *testing.T) {
	p := newPolicy(t, 0)
	err := exception.NewBatchError("reader", "bad row", exception.ErrTypeCoercion, true, false)
	assert.False(t, p.CanSkip())
	assert.False(t, p.ShouldSkip(err))
}

func TestSkippableBatchErrorWithinLimit(t *testing.T) {
	p := newPolicy(t, 2)
	err := exception.NewBatchError("reader", "bad row", exception.ErrTypeCoercion, true, false)

	assert.True(t, p.ShouldSkip(err))
	p.IncrementSkipCount()
	assert.True(t, p.ShouldSkip(err))
	p.IncrementSkipCount()
	assert.False(t, p.ShouldSkip(err))
	assert.Equal(t, 2, p.GetSkipCount())
	assert.Equal(t, 2, p.GetSkipLimit())
}

func TestUnlimited(t *testing.T) {
	p := newPolicy(t, Unlimited)
	err := exception.NewBatchError("reader", "bad row", nil, true, false)
	for i := 0; i < 1000; i++ {
		p.IncrementSkipCount()
	}
	assert.True(t, p.ShouldSkip(err))
}

func TestConfiguredExceptionNames(t *testing.T) {
	p := newPolicy(t, 5, exception.TypeCoercion)
	assert.True(t, p.ShouldSkip(fmt.Errorf("year: %w", exception.ErrTypeCoercion)))
	assert.False(t, p.ShouldSkip(errors.New("unrelated")))
	assert.False(t, p.ShouldSkip(nil))
}

func TestStructuralErrorsAreNeverSkipped(t *testing.T) {
	p := newPolicy(t, Unlimited, exception.MissingColumn)
	err := exception.NewBatchError("reader", "header", exception.ErrMissingColumn, true, false)
	assert.False(t, p.ShouldSkip(err))
}

func TestUnknownExceptionName(t *testing.T) {
	_, err := NewDefaultSkipPolicyFactory().Create(1, []string{"NoSuchError"})
	assert.Error(t, err)
}
