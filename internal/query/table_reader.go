// Package query reads registered tables back from storage.
package query

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/formula1dl/ingest/internal/catalog"
	"github.com/formula1dl/ingest/internal/domain/entity"
	storageAdapter "github.com/formula1dl/ingest/pkg/batch/adapter/storage"
	"github.com/formula1dl/ingest/pkg/batch/component/step/reader"
	"github.com/formula1dl/ingest/pkg/batch/support/util/exception"
)

const moduleName = "table_reader"

// Filter restricts the rows returned by a TableReader. Zero values match everything.
type Filter struct {
	RaceYear int32
	// Limit caps the number of rows; 0 returns all.
	Limit int
}

func (f Filter) matches(r entity.Race) bool {
	if f.RaceYear != 0 && (r.RaceYear == nil || *r.RaceYear != f.RaceYear) {
		return false
	}
	return true
}

// TableLookup resolves registered tables.
type TableLookup interface {
	LookupTable(ctx context.Context, qualifiedName string) (*catalog.TableDefinition, error)
}

// TableReader reads race tables written by the parquet writer.
type TableReader struct {
	lookup   TableLookup
	resolver storageAdapter.StorageConnectionResolver
}

// NewTableReader creates a TableReader. lookup may be nil when only Select is used.
func NewTableReader(lookup TableLookup, resolver storageAdapter.StorageConnectionResolver) *TableReader {
	return &TableReader{lookup: lookup, resolver: resolver}
}

// SplitLocation splits "<storage_ref>/<prefix>".
func SplitLocation(location string) (storageRef, prefix string, err error) {
	storageRef, prefix, ok := strings.Cut(strings.Trim(location, "/"), "/")
	if !ok || storageRef == "" || prefix == "" {
		return "", "", fmt.Errorf("invalid table location %q, expected <storage_ref>/<prefix>", location)
	}
	return storageRef, prefix, nil
}

// Select reads every file at location and returns the rows matching filter, ordered by race_id.
// Rows with equal race_id keep their file order.
func (r *TableReader) Select(ctx context.Context, location string, filter Filter) ([]entity.Race, error) {
	storageRef, prefix, err := SplitLocation(location)
	if err != nil {
		return nil, exception.NewBatchError(moduleName, "invalid location", err, false, false)
	}
	rows, err := reader.ReadParquetObjects(ctx, r.resolver, storageRef, prefix+"/", entity.NewRace)
	if err != nil {
		return nil, exception.NewBatchError(moduleName, fmt.Sprintf("failed to read '%s'", location),
			fmt.Errorf("%w: %w", exception.ErrSourceUnreadable, err), false, false)
	}

	selected := rows[:0]
	for _, row := range rows {
		if filter.matches(row) {
			selected = append(selected, row)
		}
	}
	sort.SliceStable(selected, func(i, j int) bool {
		return selected[i].RaceID < selected[j].RaceID
	})
	if filter.Limit > 0 && len(selected) > filter.Limit {
		selected = selected[:filter.Limit]
	}
	return selected, nil
}

// SelectAll reads the registered table qualifiedName, e.g. "races.races_ext".
func (r *TableReader) SelectAll(ctx context.Context, qualifiedName string, filter Filter) ([]entity.Race, error) {
	if r.lookup == nil {
		return nil, exception.NewBatchErrorf(moduleName, "no catalog to resolve '%s'", qualifiedName)
	}
	def, err := r.lookup.LookupTable(ctx, qualifiedName)
	if err != nil {
		return nil, err
	}
	if !strings.EqualFold(def.Format, catalog.FormatParquet) {
		return nil, exception.NewBatchErrorf(moduleName, "table '%s' has unsupported format '%s'", qualifiedName, def.Format)
	}
	return r.Select(ctx, def.Location, filter)
}
