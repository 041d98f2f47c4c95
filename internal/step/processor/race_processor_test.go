package processor

import (
	"context"
	"reflect"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/formula1dl/ingest/internal/domain/entity"
)

func ptr[T any](v T) *T { return &v }

var fixedNow = time.Date(2021, 3, 21, 9, 30, 0, 0, time.FixedZone("CET", 3600))

func TestRaceTimestamp(t *testing.T) {
	date := time.Date(2019, 3, 17, 0, 0, 0, 0, time.UTC)

	ts := RaceTimestamp(&date, ptr("14:30:00"))
	require.NotNil(t, ts)
	assert.Equal(t, time.Date(2019, 3, 17, 14, 30, 0, 0, time.UTC), time.UnixMicro(*ts).UTC())

	assert.Nil(t, RaceTimestamp(&date, ptr("25:99")))
	assert.Nil(t, RaceTimestamp(&date, ptr(`\N`)))
	assert.Nil(t, RaceTimestamp(&date, nil))
	assert.Nil(t, RaceTimestamp(nil, ptr("14:30:00")))
}

func TestRaceProcessor_Process(t *testing.T) {
	p := NewRaceProcessor(func() time.Time { return fixedNow })
	date := time.Date(2019, 3, 17, 0, 0, 0, 0, time.UTC)

	out, err := p.Process(context.Background(), entity.RaceRecord{
		RaceID:    1010,
		Year:      ptr(int32(2019)),
		Round:     ptr(int32(1)),
		CircuitID: ptr(int32(1)),
		Name:      ptr("Australian Grand Prix"),
		Date:      &date,
		Time:      ptr("05:10:00"),
		URL:       ptr("http://en.wikipedia.org/wiki/2019_Australian_Grand_Prix"),
	})
	require.NoError(t, err)

	assert.Equal(t, int32(1010), out.RaceID)
	assert.Equal(t, int32(2019), *out.RaceYear)
	assert.Equal(t, int32(1), *out.Round)
	assert.Equal(t, int32(1), *out.CircuitID)
	assert.Equal(t, "Australian Grand Prix", *out.Name)
	assert.Equal(t, fixedNow.UTC(), out.IngestedAt())
	assert.Equal(t, time.Date(2019, 3, 17, 5, 10, 0, 0, time.UTC), *out.StartsAt())
}

func TestRaceProcessor_MalformedTimeKeepsRow(t *testing.T) {
	p := NewRaceProcessor(func() time.Time { return fixedNow })
	date := time.Date(1950, 5, 13, 0, 0, 0, 0, time.UTC)

	out, err := p.Process(context.Background(), entity.RaceRecord{RaceID: 1, Date: &date, Time: ptr("afternoon")})
	require.NoError(t, err)
	assert.Equal(t, int32(1), out.RaceID)
	assert.Nil(t, out.RaceTimestamp)
	assert.Equal(t, fixedNow.UTC(), out.IngestedAt())
}

func TestRaceProcessor_SameIngestionDateForEveryRecord(t *testing.T) {
	calls := 0
	p := NewRaceProcessor(func() time.Time {
		calls++
		return fixedNow.Add(time.Duration(calls) * time.Hour)
	})

	a, err := p.Process(context.Background(), entity.RaceRecord{RaceID: 1})
	require.NoError(t, err)
	b, err := p.Process(context.Background(), entity.RaceRecord{RaceID: 2})
	require.NoError(t, err)

	assert.Equal(t, 1, calls)
	assert.Equal(t, a.IngestionDate, b.IngestionDate)
	assert.Equal(t, p.IngestionDate(), a.IngestedAt())
}

func TestRaceProcessor_NewIngestionDatePerStep(t *testing.T) {
	calls := 0
	p := NewRaceProcessor(func() time.Time {
		calls++
		return fixedNow.Add(time.Duration(calls) * time.Hour)
	})
	first := p.IngestionDate()

	p.BeforeStep(context.Background(), nil)
	out, err := p.Process(context.Background(), entity.RaceRecord{RaceID: 1})
	require.NoError(t, err)

	assert.Equal(t, 2, calls)
	assert.Equal(t, first.Add(time.Hour), out.IngestedAt())
}

func TestRaceHasSevenColumns(t *testing.T) {
	typ := reflect.TypeOf(entity.Race{})
	require.Equal(t, 7, typ.NumField())

	var names []string
	for i := 0; i < typ.NumField(); i++ {
		tag := typ.Field(i).Tag.Get("parquet")
		name, _, _ := strings.Cut(strings.TrimPrefix(tag, "name="), ",")
		names = append(names, name)
	}
	assert.Equal(t, []string{"race_id", "race_year", "round", "circuit_id", "name", "ingestion_date", "race_timestamp"}, names)
}

func TestRaceProcessor_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := NewRaceProcessor(nil).Process(ctx, entity.RaceRecord{RaceID: 1})
	assert.ErrorIs(t, err, context.Canceled)
}
