package schema

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/formula1dl/ingest/pkg/batch/component/step/reader"
	"github.com/formula1dl/ingest/pkg/batch/support/util/exception"
)

var header = []string{"raceId", "year", "round", "circuitId", "name", "date", "time", "url"}

func bound(t *testing.T) *RaceSchema {
	t.Helper()
	s := NewRaceSchema()
	require.NoError(t, s.Validate(header))
	return s
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		header []string
		target error
	}{
		{name: "exact", header: header},
		{name: "reordered", header: []string{"url", "time", "date", "name", "circuitId", "round", "year", "raceId"}},
		{name: "missing time", header: []string{"raceId", "year", "round", "circuitId", "name", "date", "url"}, target: exception.ErrMissingColumn},
		{name: "case differs", header: []string{"raceid", "year", "round", "circuitId", "name", "date", "time", "url"}, target: exception.ErrMissingColumn},
		{name: "undeclared column", header: append(append([]string{}, header...), "fp1_date"), target: exception.ErrSchemaMismatch},
		{name: "duplicate column", header: append(append([]string{}, header...), "url"), target: exception.ErrSchemaMismatch},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := NewRaceSchema().Validate(tt.header)
			if tt.target == nil {
				assert.NoError(t, err)
				return
			}
			assert.ErrorIs(t, err, tt.target)
		})
	}
}

func TestCoerce(t *testing.T) {
	s := bound(t)
	rec, err := s.Coerce([]string{"1010", "2019", "1", "1", "Australian Grand Prix", "2019-03-17", "05:10:00", "http://en.wikipedia.org/wiki/2019_Australian_Grand_Prix"}, reader.Permissive)
	require.NoError(t, err)

	assert.Equal(t, int32(1010), rec.RaceID)
	require.NotNil(t, rec.Year)
	assert.Equal(t, int32(2019), *rec.Year)
	require.NotNil(t, rec.Date)
	assert.Equal(t, time.Date(2019, 3, 17, 0, 0, 0, 0, time.UTC), *rec.Date)
	require.NotNil(t, rec.Time)
	assert.Equal(t, "05:10:00", *rec.Time)
	require.NotNil(t, rec.Name)
	assert.Equal(t, "Australian Grand Prix", *rec.Name)
}

func TestCoerce_FollowsHeaderOrder(t *testing.T) {
	s := NewRaceSchema()
	require.NoError(t, s.Validate([]string{"name", "raceId", "year", "round", "circuitId", "date", "time", "url"}))

	rec, err := s.Coerce([]string{"Monaco Grand Prix", "1011", "2019", "6", "6", "2019-05-26", "13:10:00", ""}, reader.FailFast)
	require.NoError(t, err)
	assert.Equal(t, int32(1011), rec.RaceID)
	assert.Equal(t, "Monaco Grand Prix", *rec.Name)
	assert.Nil(t, rec.URL)
}

func TestCoerce_EmptyCellsAreNull(t *testing.T) {
	rec, err := bound(t).Coerce([]string{"7", "", "", "", "", "", "", ""}, reader.FailFast)
	require.NoError(t, err)
	assert.Equal(t, int32(7), rec.RaceID)
	assert.Nil(t, rec.Year)
	assert.Nil(t, rec.Round)
	assert.Nil(t, rec.CircuitID)
	assert.Nil(t, rec.Name)
	assert.Nil(t, rec.Date)
	assert.Nil(t, rec.Time)
	assert.Nil(t, rec.URL)
}

func TestCoerce_Permissive(t *testing.T) {
	s := bound(t)

	rec, err := s.Coerce([]string{"8", "nineteen", "1", "1", "Grand Prix", "17/03/2019", `\N`, ""}, reader.Permissive)
	require.NoError(t, err)
	assert.Nil(t, rec.Year)
	assert.Nil(t, rec.Date)
	require.NotNil(t, rec.Time)
	assert.Equal(t, `\N`, *rec.Time)

	rec, err = s.Coerce([]string{"9", "2019"}, reader.Permissive)
	require.NoError(t, err, "short rows are padded with nulls")
	assert.Equal(t, int32(9), rec.RaceID)
	assert.Nil(t, rec.URL)

	_, err = s.Coerce([]string{"x", "2019", "1", "1", "", "", "", ""}, reader.Permissive)
	require.Error(t, err)
	var be *exception.BatchError
	require.ErrorAs(t, err, &be)
	assert.True(t, be.IsSkippable())
	assert.ErrorIs(t, err, exception.ErrTypeCoercion)
}

func TestCoerce_FailFast(t *testing.T) {
	s := bound(t)
	rows := [][]string{
		{"x", "2019", "1", "1", "", "", "", ""},
		{"8", "nineteen", "1", "1", "", "", "", ""},
		{"8", "2019", "1", "1", "", "2019-13-01", "", ""},
		{"8", "2019"},
	}
	for _, row := range rows {
		_, err := s.Coerce(row, reader.FailFast)
		require.Error(t, err, "row %v", row)
		assert.ErrorIs(t, err, exception.ErrTypeCoercion)
		assert.True(t, exception.IsFatal(err))
	}
}

func TestCoerce_Unbound(t *testing.T) {
	_, err := NewRaceSchema().Coerce(header, reader.Permissive)
	assert.Error(t, err)
}
