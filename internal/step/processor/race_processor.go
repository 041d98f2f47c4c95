// Package processor enriches race records and projects them onto the table columns.
package processor

import (
	"context"
	"time"

	"github.com/formula1dl/ingest/internal/domain/entity"
	"github.com/formula1dl/ingest/internal/domain/schema"
	port "github.com/formula1dl/ingest/pkg/batch/core/application/port"
	model "github.com/formula1dl/ingest/pkg/batch/core/domain/model"
)

// RaceTimestampLayout is the layout of date + " " + time.
const RaceTimestampLayout = schema.DateLayout + " 15:04:05"

// Clock returns the current time.
type Clock func() time.Time

// RaceProcessor adds ingestion_date and race_timestamp to a RaceRecord and keeps the
// seven table columns. It never fails on a timestamp: an unparseable one is null.
//
// The clock is read on creation and again before every step execution it is registered
// with, so all records of one run carry the same ingestion_date.
type RaceProcessor struct {
	clock         Clock
	ingestionDate int64
}

// NewRaceProcessor creates a RaceProcessor. A nil clock uses time.Now.
func NewRaceProcessor(clock Clock) *RaceProcessor {
	if clock == nil {
		clock = time.Now
	}
	p := &RaceProcessor{clock: clock}
	p.stamp()
	return p
}

func (p *RaceProcessor) stamp() {
	p.ingestionDate = p.clock().UTC().UnixMicro()
}

// BeforeStep takes a new ingestion_date for the run.
func (p *RaceProcessor) BeforeStep(ctx context.Context, stepExecution *model.StepExecution) {
	p.stamp()
}

func (p *RaceProcessor) AfterStep(ctx context.Context, stepExecution *model.StepExecution) {}

// IngestionDate returns the ingestion_date stamped on every record.
func (p *RaceProcessor) IngestionDate() time.Time {
	return time.UnixMicro(p.ingestionDate).UTC()
}

func (p *RaceProcessor) Process(ctx context.Context, rec entity.RaceRecord) (entity.Race, error) {
	if err := ctx.Err(); err != nil {
		return entity.Race{}, err
	}
	return entity.Race{
		RaceID:        rec.RaceID,
		RaceYear:      rec.Year,
		Round:         rec.Round,
		CircuitID:     rec.CircuitID,
		Name:          rec.Name,
		IngestionDate: p.ingestionDate,
		RaceTimestamp: RaceTimestamp(rec.Date, rec.Time),
	}, nil
}

// RaceTimestamp parses date and time as one UTC instant, in microseconds.
// It returns nil when either part is null or the combination does not parse.
func RaceTimestamp(date *time.Time, clock *string) *int64 {
	if date == nil || clock == nil {
		return nil
	}
	ts, err := time.Parse(RaceTimestampLayout, date.Format(schema.DateLayout)+" "+*clock)
	if err != nil {
		return nil
	}
	micros := ts.UnixMicro()
	return &micros
}

var (
	_ port.ItemProcessor[entity.RaceRecord, entity.Race] = (*RaceProcessor)(nil)
	_ port.StepExecutionListener                         = (*RaceProcessor)(nil)
)
