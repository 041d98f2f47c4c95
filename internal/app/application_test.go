package app_test

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/fx"

	"github.com/formula1dl/ingest/internal/app"
	"github.com/formula1dl/ingest/internal/step/processor"
	"github.com/formula1dl/ingest/pkg/batch/core/config"
)

const racesCSV = `raceId,year,round,circuitId,name,date,time,url
1,2009,1,1,"Australian Grand Prix",2009-03-29,06:00:00,http://en.wikipedia.org/wiki/2009_Australian_Grand_Prix
1012,2019,3,17,"Chinese Grand Prix",2019-04-14,06:10:00,http://en.wikipedia.org/wiki/2019_Chinese_Grand_Prix
1010,2019,1,1,"Australian Grand Prix",2019-03-17,05:10:00,http://en.wikipedia.org/wiki/2019_Australian_Grand_Prix
1011,2019,2,3,"Bahrain Grand Prix",2019-03-31,15:10:00,http://en.wikipedia.org/wiki/2019_Bahrain_Grand_Prix
833,1950,1,9,"British Grand Prix",1950-05-13,\N,http://en.wikipedia.org/wiki/1950_British_Grand_Prix
abc,2019,4,71,"Azerbaijan Grand Prix",2019-04-28,12:10:00,http://en.wikipedia.org/wiki/2019_Azerbaijan_Grand_Prix
`

const configTemplate = `
ingest:
  batch:
    job_name: racesIngestion
    chunk_size: 2
  system:
    timezone: UTC
    logging:
      level: WARN
  adapter:
    database:
      metadata:
        type: sqlite
        database: %[1]s/metadata.db
      catalog:
        type: sqlite
        database: %[1]s/catalog.db
    storage:
      raw:
        type: local
        base_dir: %[1]s/data
        bucket_name: raw
      processed:
        type: local
        base_dir: %[1]s/data
        bucket_name: processed
  jobs:
    racesIngestion:
      source:
        storage_ref: raw
        path: races.csv
        strictness: PERMISSIVE
      output:
        storage_ref: processed
        output_dir: races
      table: races.races_ext
      catalog_db_ref: catalog
      preview_year: 2019
`

var ingestedAt = time.Date(2021, 3, 21, 10, 0, 0, 0, time.UTC)

type fixture struct {
	dir  string
	opts app.Options
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	t.Cleanup(func() { config.GlobalConfig = nil })

	dir := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "data", "raw"), 0o755))
	f := &fixture{
		dir: dir,
		opts: app.Options{
			EmbeddedConfig:  config.EmbeddedConfig(fmt.Sprintf(configTemplate, filepath.ToSlash(dir))),
			MigrationsFS:    os.DirFS("../../cmd/ingest-races"),
			DBAdapters:      []string{"sqlite"},
			StorageAdapters: []string{"local"},
			Extra:           []fx.Option{
				fx.Supply(processor.Clock(func() time.Time { return ingestedAt })),
				fx.NopLogger,
			},
		},
	}
	f.writeSource(t, racesCSV)
	return f
}

func (f *fixture) writeSource(t *testing.T, content string) {
	t.Helper()
	require.NoError(t, os.WriteFile(filepath.Join(f.dir, "data", "raw", "races.csv"), []byte(content), 0o644))
}

func (f *fixture) query(t *testing.T, q app.QueryOptions) (int, []map[string]interface{}) {
	t.Helper()
	var out bytes.Buffer
	opts := f.opts
	opts.Query = &q
	opts.Out = &out
	code := app.RunApplication(context.Background(), opts)

	var rows []map[string]interface{}
	for _, line := range strings.Split(strings.TrimSpace(out.String()), "\n") {
		if line == "" {
			continue
		}
		var row map[string]interface{}
		require.NoError(t, json.Unmarshal([]byte(line), &row))
		rows = append(rows, row)
	}
	return code, rows
}

func raceIDs(rows []map[string]interface{}) []float64 {
	ids := make([]float64, 0, len(rows))
	for _, row := range rows {
		ids = append(ids, row["race_id"].(float64))
	}
	return ids
}

func TestRunApplication_IngestsAndRegistersRaces(t *testing.T) {
	f := newFixture(t)

	require.Equal(t, app.ExitOK, app.RunApplication(context.Background(), f.opts))

	files, err := filepath.Glob(filepath.Join(f.dir, "data", "processed", "races", "*.parquet"))
	require.NoError(t, err)
	assert.NotEmpty(t, files)

	code, rows := f.query(t, app.QueryOptions{})
	require.Equal(t, app.ExitOK, code)
	assert.Equal(t, []float64{1, 833, 1010, 1011, 1012}, raceIDs(rows))

	for _, row := range rows {
		assert.Len(t, row, 7)
		assert.Equal(t, "2021-03-21T10:00:00Z", row["ingestion_date"])
		assert.NotContains(t, row, "url")
		assert.NotContains(t, row, "date")
		assert.NotContains(t, row, "time")
	}
	assert.Equal(t, "2009-03-29T06:00:00Z", rows[0]["race_timestamp"])
	assert.Nil(t, rows[1]["race_timestamp"])
	assert.Equal(t, float64(1950), rows[1]["race_year"])
	assert.Equal(t, float64(9), rows[1]["circuit_id"])
	assert.Equal(t, "British Grand Prix", rows[1]["name"])
}

func TestRunApplication_QueryFiltersByYear(t *testing.T) {
	f := newFixture(t)
	require.Equal(t, app.ExitOK, app.RunApplication(context.Background(), f.opts))

	code, rows := f.query(t, app.QueryOptions{Year: 2019})
	require.Equal(t, app.ExitOK, code)
	assert.Equal(t, []float64{1010, 1011, 1012}, raceIDs(rows))
	assert.Equal(t, "2019-03-17T05:10:00Z", rows[0]["race_timestamp"])

	code, rows = f.query(t, app.QueryOptions{Year: 2019, Limit: 1})
	require.Equal(t, app.ExitOK, code)
	assert.Equal(t, []float64{1010}, raceIDs(rows))
}

func TestRunApplication_RerunOverwritesOutput(t *testing.T) {
	f := newFixture(t)
	require.Equal(t, app.ExitOK, app.RunApplication(context.Background(), f.opts))
	code, first := f.query(t, app.QueryOptions{})
	require.Equal(t, app.ExitOK, code)
	require.Len(t, first, 5)

	require.Equal(t, app.ExitOK, app.RunApplication(context.Background(), f.opts))
	code, rows := f.query(t, app.QueryOptions{})
	require.Equal(t, app.ExitOK, code)
	assert.Equal(t, first, rows)

	f.writeSource(t, "raceId,year,round,circuitId,name,date,time,url\n"+
		"1030,2020,1,70,Austrian Grand Prix,2020-07-05,13:10:00,http://en.wikipedia.org/wiki/2020_Austrian_Grand_Prix\n")
	require.Equal(t, app.ExitOK, app.RunApplication(context.Background(), f.opts))

	code, rows = f.query(t, app.QueryOptions{})
	require.Equal(t, app.ExitOK, code)
	assert.Equal(t, []float64{1030}, raceIDs(rows))
}

func TestRunApplication_MissingColumnKeepsPreviousOutput(t *testing.T) {
	f := newFixture(t)
	require.Equal(t, app.ExitOK, app.RunApplication(context.Background(), f.opts))

	f.writeSource(t, "raceId,year,round,name,date,time,url\n"+
		"1030,2020,1,Austrian Grand Prix,2020-07-05,13:10:00,http://en.wikipedia.org/wiki/2020_Austrian_Grand_Prix\n")
	assert.Equal(t, app.ExitFailure, app.RunApplication(context.Background(), f.opts))

	code, rows := f.query(t, app.QueryOptions{})
	require.Equal(t, app.ExitOK, code)
	assert.Len(t, rows, 5)
}

func TestRunApplication_QueryBeforeIngestionFails(t *testing.T) {
	f := newFixture(t)

	code, rows := f.query(t, app.QueryOptions{})
	assert.Equal(t, app.ExitFailure, code)
	assert.Empty(t, rows)
}

func TestRunApplication_InvalidConfiguration(t *testing.T) {
	f := newFixture(t)
	f.opts.EmbeddedConfig = config.EmbeddedConfig("ingest:\n  system:\n    timezone: Mars/Olympus\n")

	assert.Equal(t, app.ExitConfigError, app.RunApplication(context.Background(), f.opts))
}

func TestRunApplication_MissingJobSettings(t *testing.T) {
	f := newFixture(t)
	f.opts.EmbeddedConfig = config.EmbeddedConfig("ingest:\n  batch:\n    job_name: racesIngestion\n")

	assert.Equal(t, app.ExitConfigError, app.RunApplication(context.Background(), f.opts))
}
