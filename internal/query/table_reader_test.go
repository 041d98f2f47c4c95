package query_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/formula1dl/ingest/internal/catalog"
	"github.com/formula1dl/ingest/internal/domain/entity"
	"github.com/formula1dl/ingest/internal/query"
	storageAdapter "github.com/formula1dl/ingest/pkg/batch/adapter/storage"
	"github.com/formula1dl/ingest/pkg/batch/adapter/storage/local"
	"github.com/formula1dl/ingest/pkg/batch/component/step/writer"
	coreConfig "github.com/formula1dl/ingest/pkg/batch/core/config"
	"github.com/formula1dl/ingest/pkg/batch/core/domain/model"
	"github.com/formula1dl/ingest/pkg/batch/support/util/exception"
)

type staticLookup map[string]*catalog.TableDefinition

func (l staticLookup) LookupTable(ctx context.Context, qualifiedName string) (*catalog.TableDefinition, error) {
	def, ok := l[qualifiedName]
	if !ok {
		return nil, exception.NewBatchErrorf("test", "table '%s' is not registered", qualifiedName, catalog.ErrTableNotFound)
	}
	return def, nil
}

func int32Ptr(v int32) *int32 { return &v }

func race(id, year int32) entity.Race {
	name := "Grand Prix"
	return entity.Race{
		RaceID:        id,
		RaceYear:      int32Ptr(year),
		Name:          &name,
		IngestionDate: time.Date(2021, 3, 21, 0, 0, 0, 0, time.UTC).UnixMicro(),
	}
}

// writeRaces stores rows under processed/races and returns the resolver.
func writeRaces(t *testing.T, rows ...entity.Race) storageAdapter.StorageConnectionResolver {
	t.Helper()
	cfg := coreConfig.NewConfig()
	cfg.Ingest.Adapter.Storage["processed"] = map[string]interface{}{
		"type":     "local",
		"base_dir": t.TempDir(),
	}
	resolver := storageAdapter.NewConnectionResolver(storageAdapter.ConnectionResolverParams{
		Providers: []storageAdapter.StorageProvider{local.NewLocalProvider(cfg)},
		Cfg:       cfg,
	})

	w := writer.NewParquetWriter("racesWriter", resolver,
		writer.ParquetWriterConfig{StorageRef: "processed", OutputDir: "races"}, entity.NewRace())
	ctx := context.Background()
	require.NoError(t, w.Open(ctx, model.NewExecutionContext()))
	require.NoError(t, w.Write(ctx, rows))
	require.NoError(t, w.Close(ctx))
	return resolver
}

func ids(rows []entity.Race) []int32 {
	out := make([]int32, 0, len(rows))
	for _, r := range rows {
		out = append(out, r.RaceID)
	}
	return out
}

func TestSelect_FiltersByYearOrderedByRaceID(t *testing.T) {
	resolver := writeRaces(t,
		race(1012, 2019), race(1001, 2018), race(1010, 2019), race(1011, 2019), race(1030, 2020),
	)
	r := query.NewTableReader(nil, resolver)

	rows, err := r.Select(context.Background(), "processed/races", query.Filter{RaceYear: 2019})
	require.NoError(t, err)
	assert.Equal(t, []int32{1010, 1011, 1012}, ids(rows))

	again, err := r.Select(context.Background(), "processed/races", query.Filter{RaceYear: 2019})
	require.NoError(t, err)
	assert.Equal(t, rows, again)
}

func TestSelect_AllAndLimit(t *testing.T) {
	resolver := writeRaces(t, race(3, 2019), race(1, 2019), race(2, 2020))
	r := query.NewTableReader(nil, resolver)

	all, err := r.Select(context.Background(), "processed/races", query.Filter{})
	require.NoError(t, err)
	assert.Equal(t, []int32{1, 2, 3}, ids(all))

	limited, err := r.Select(context.Background(), "processed/races", query.Filter{Limit: 2})
	require.NoError(t, err)
	assert.Equal(t, []int32{1, 2}, ids(limited))
}

func TestSelect_NullYearNeverMatches(t *testing.T) {
	withoutYear := race(7, 2019)
	withoutYear.RaceYear = nil
	resolver := writeRaces(t, withoutYear, race(8, 2019))

	rows, err := query.NewTableReader(nil, resolver).Select(context.Background(), "processed/races", query.Filter{RaceYear: 2019})
	require.NoError(t, err)
	assert.Equal(t, []int32{8}, ids(rows))
}

func TestSelect_BadLocation(t *testing.T) {
	resolver := writeRaces(t)
	r := query.NewTableReader(nil, resolver)

	_, err := r.Select(context.Background(), "races", query.Filter{})
	assert.Error(t, err)

	_, err = r.Select(context.Background(), "unknown/races", query.Filter{})
	assert.ErrorIs(t, err, exception.ErrSourceUnreadable)
}

func TestSelectAll(t *testing.T) {
	resolver := writeRaces(t, race(2, 2019), race(1, 2019))
	lookup := staticLookup{
		"races.races_ext": {Schema: "races", Name: "races_ext", Location: "processed/races", Format: catalog.FormatParquet},
	}
	r := query.NewTableReader(lookup, resolver)

	rows, err := r.SelectAll(context.Background(), "races.races_ext", query.Filter{})
	require.NoError(t, err)
	assert.Equal(t, []int32{1, 2}, ids(rows))

	_, err = r.SelectAll(context.Background(), "races.missing", query.Filter{})
	assert.ErrorIs(t, err, catalog.ErrTableNotFound)
}

func TestSelectAll_UnsupportedFormat(t *testing.T) {
	lookup := staticLookup{
		"races.races_csv": {Schema: "races", Name: "races_csv", Location: "raw/races", Format: "CSV"},
	}
	_, err := query.NewTableReader(lookup, writeRaces(t)).SelectAll(context.Background(), "races.races_csv", query.Filter{})
	assert.ErrorContains(t, err, "unsupported format")
}

func TestSplitLocation(t *testing.T) {
	ref, prefix, err := query.SplitLocation("/processed/races/")
	require.NoError(t, err)
	assert.Equal(t, "processed", ref)
	assert.Equal(t, "races", prefix)

	_, _, err = query.SplitLocation("processed")
	assert.Error(t, err)
}
