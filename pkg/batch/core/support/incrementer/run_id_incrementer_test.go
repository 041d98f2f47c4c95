package incrementer

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	model "github.com/formula1dl/ingest/pkg/batch/core/domain/model"
)

func TestRunIDIncrementer(t *testing.T) {
	inc := NewRunIDIncrementer("")

	first := inc.GetNext(model.NewJobParameters())
	runID, ok := first.GetInt(DefaultRunIDKey)
	assert.True(t, ok)
	assert.Equal(t, 1, runID)

	params := model.NewJobParameters()
	params.Put("source", "races.csv")
	params.Put(DefaultRunIDKey, float64(4))
	next := inc.GetNext(params)

	runID, _ = next.GetInt(DefaultRunIDKey)
	assert.Equal(t, 5, runID)
	source, _ := next.GetString("source")
	assert.Equal(t, "races.csv", source)

	// the input is left untouched
	orig, _ := params.GetInt(DefaultRunIDKey)
	assert.Equal(t, 4, orig)
}

func TestTimestampIncrementer(t *testing.T) {
	inc := NewTimestampIncrementer("ts")
	inc.now = func() time.Time { return time.UnixMilli(1700000000123) }

	next := inc.GetNext(model.NewJobParameters())
	ts, ok := next.GetString("ts")
	assert.True(t, ok)
	assert.Equal(t, "1700000000123", ts)
	assert.Equal(t, "TimestampIncrementer[name=ts]", inc.String())
}
