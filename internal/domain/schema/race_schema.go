// Package schema declares the explicit schema of races.csv and coerces raw rows against it.
package schema

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/formula1dl/ingest/internal/domain/entity"
	"github.com/formula1dl/ingest/pkg/batch/component/step/reader"
	"github.com/formula1dl/ingest/pkg/batch/support/util/exception"
	"github.com/formula1dl/ingest/pkg/batch/support/util/logger"
)

const moduleName = "race_schema"

// DateLayout is the layout of the date column.
const DateLayout = "2006-01-02"

// ColumnType is the semantic type of a source column.
type ColumnType string

const (
	Integer ColumnType = "integer"
	String  ColumnType = "string"
	Date    ColumnType = "date"
)

// Column is a declared source column.
type Column struct {
	Name     string
	Type     ColumnType
	Nullable bool
}

// Source column names.
const (
	ColRaceID    = "raceId"
	ColYear      = "year"
	ColRound     = "round"
	ColCircuitID = "circuitId"
	ColName      = "name"
	ColDate      = "date"
	ColTime      = "time"
	ColURL       = "url"
)

// RaceColumns is the declared schema of races.csv, in file order.
var RaceColumns = []Column{
	{Name: ColRaceID, Type: Integer, Nullable: false},
	{Name: ColYear, Type: Integer, Nullable: true},
	{Name: ColRound, Type: Integer, Nullable: true},
	{Name: ColCircuitID, Type: Integer, Nullable: true},
	{Name: ColName, Type: String, Nullable: true},
	{Name: ColDate, Type: Date, Nullable: true},
	{Name: ColTime, Type: String, Nullable: true},
	{Name: ColURL, Type: String, Nullable: true},
}

// RaceSchema checks headers and coerces rows of races.csv.
// It is a reader.RowMapper; one instance serves one file at a time.
type RaceSchema struct {
	columns []Column
	index   map[string]int
}

// NewRaceSchema returns a schema over RaceColumns.
func NewRaceSchema() *RaceSchema {
	return &RaceSchema{columns: RaceColumns}
}

// Columns returns the declared columns.
func (s *RaceSchema) Columns() []Column {
	return s.columns
}

// Validate checks header against the declared columns and records each column's position.
// Names match exactly, in any order.
func (s *RaceSchema) Validate(header []string) error {
	positions := make(map[string]int, len(header))
	for i, name := range header {
		if _, dup := positions[name]; dup {
			return fmt.Errorf("%w: column '%s' appears more than once", exception.ErrSchemaMismatch, name)
		}
		positions[name] = i
	}

	var missing []string
	declared := make(map[string]struct{}, len(s.columns))
	for _, c := range s.columns {
		declared[c.Name] = struct{}{}
		if _, ok := positions[c.Name]; !ok {
			missing = append(missing, c.Name)
		}
	}
	if len(missing) > 0 {
		return fmt.Errorf("%w: %s", exception.ErrMissingColumn, strings.Join(missing, ", "))
	}

	for _, name := range header {
		if _, ok := declared[name]; !ok {
			return fmt.Errorf("%w: undeclared column '%s'", exception.ErrSchemaMismatch, name)
		}
	}
	if len(header) != len(s.columns) {
		return fmt.Errorf("%w: expected %d columns, found %d", exception.ErrSchemaMismatch, len(s.columns), len(header))
	}

	s.index = positions
	return nil
}

// Bind implements reader.RowMapper.
func (s *RaceSchema) Bind(header []string) error {
	return s.Validate(header)
}

// Map implements reader.RowMapper.
func (s *RaceSchema) Map(row []string, mode reader.Strictness) (entity.RaceRecord, error) {
	return s.Coerce(row, mode)
}

// Coerce converts a row to a RaceRecord. Empty cells of nullable columns are null.
//
// In permissive mode a nullable cell that does not parse becomes null, and a row whose raceId
// does not parse fails with a skippable error. In fail-fast mode every failure is fatal.
func (s *RaceSchema) Coerce(row []string, mode reader.Strictness) (entity.RaceRecord, error) {
	var rec entity.RaceRecord
	if s.index == nil {
		return rec, exception.NewBatchError(moduleName, "schema is not bound to a header", nil, false, false)
	}
	if mode == reader.FailFast && len(row) != len(s.columns) {
		return rec, s.coercionError(mode, fmt.Sprintf("expected %d cells, found %d", len(s.columns), len(row)), nil)
	}

	c := coercer{schema: s, row: row, mode: mode}

	raw := strings.TrimSpace(c.cell(ColRaceID))
	id, err := strconv.ParseInt(raw, 10, 32)
	if err != nil {
		// raceId is required: the row cannot be kept in either mode.
		return rec, s.coercionError(mode, fmt.Sprintf("column '%s': cannot coerce %q to %s", ColRaceID, raw, Integer), err)
	}
	rec.RaceID = int32(id)

	if rec.Year, err = c.intCell(ColYear); err != nil {
		return rec, err
	}
	if rec.Round, err = c.intCell(ColRound); err != nil {
		return rec, err
	}
	if rec.CircuitID, err = c.intCell(ColCircuitID); err != nil {
		return rec, err
	}
	if rec.Date, err = c.dateCell(ColDate); err != nil {
		return rec, err
	}
	rec.Name = c.stringCell(ColName)
	rec.Time = c.stringCell(ColTime)
	rec.URL = c.stringCell(ColURL)
	return rec, nil
}

func (s *RaceSchema) coercionError(mode reader.Strictness, message string, cause error) error {
	wrapped := exception.ErrTypeCoercion
	if cause != nil {
		wrapped = fmt.Errorf("%w: %w", exception.ErrTypeCoercion, cause)
	}
	return exception.NewBatchError(moduleName, message, wrapped, mode == reader.Permissive, false)
}

type coercer struct {
	schema *RaceSchema
	row    []string
	mode   reader.Strictness
}

// cell returns the raw value of column, or "" when the row is too short.
func (c coercer) cell(column string) string {
	i := c.schema.index[column]
	if i >= len(c.row) {
		return ""
	}
	return c.row[i]
}

// invalid nulls the cell in permissive mode and fails otherwise.
func (c coercer) invalid(column string, raw string, typ ColumnType, cause error) error {
	if c.mode == reader.Permissive {
		logger.Debugf("Column '%s': %q is not a valid %s, using null.", column, raw, typ)
		return nil
	}
	return c.schema.coercionError(c.mode, fmt.Sprintf("column '%s': cannot coerce %q to %s", column, raw, typ), cause)
}

func (c coercer) intCell(column string) (*int32, error) {
	raw := strings.TrimSpace(c.cell(column))
	if raw == "" {
		return nil, nil
	}
	v, err := strconv.ParseInt(raw, 10, 32)
	if err != nil {
		return nil, c.invalid(column, raw, Integer, err)
	}
	n := int32(v)
	return &n, nil
}

func (c coercer) dateCell(column string) (*time.Time, error) {
	raw := strings.TrimSpace(c.cell(column))
	if raw == "" {
		return nil, nil
	}
	d, err := time.Parse(DateLayout, raw)
	if err != nil {
		return nil, c.invalid(column, raw, Date, err)
	}
	return &d, nil
}

func (c coercer) stringCell(column string) *string {
	raw := c.cell(column)
	if raw == "" {
		return nil
	}
	return &raw
}

var _ reader.RowMapper[entity.RaceRecord] = (*RaceSchema)(nil)
