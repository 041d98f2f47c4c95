package tasklet

import (
	"context"
	"encoding/json"

	"github.com/formula1dl/ingest/internal/domain/entity"
	"github.com/formula1dl/ingest/internal/query"
	"github.com/formula1dl/ingest/pkg/batch/core/application/port"
	"github.com/formula1dl/ingest/pkg/batch/core/domain/model"
	"github.com/formula1dl/ingest/pkg/batch/support/util/logger"
)

// RaceSelector reads a registered table.
type RaceSelector interface {
	SelectAll(ctx context.Context, qualifiedName string, filter query.Filter) ([]entity.Race, error)
}

// PreviewTasklet logs the first rows of one season of the registered table, ordered by race_id.
type PreviewTasklet struct {
	selector RaceSelector
	table    string
	filter   query.Filter
	ec       model.ExecutionContext
}

var _ port.Tasklet = (*PreviewTasklet)(nil)

// NewPreviewTasklet creates a PreviewTasklet over table for the given year. limit <= 0 logs every row.
func NewPreviewTasklet(selector RaceSelector, table string, year int32, limit int) *PreviewTasklet {
	return &PreviewTasklet{
		selector: selector,
		table:    table,
		filter:   query.Filter{RaceYear: year, Limit: limit},
		ec:       model.NewExecutionContext(),
	}
}

func (t *PreviewTasklet) Execute(ctx context.Context, stepExecution *model.StepExecution) (model.ExitStatus, error) {
	rows, err := t.selector.SelectAll(ctx, t.table, t.filter)
	if err != nil {
		return model.ExitStatusFailed, err
	}
	logger.Infof("Preview of '%s' where race_year = %d: %d row(s).", t.table, t.filter.RaceYear, len(rows))
	for _, row := range rows {
		line, err := json.Marshal(row)
		if err != nil {
			logger.Warnf("Preview: cannot render race %d: %v", row.RaceID, err)
			continue
		}
		logger.Infof("%s", line)
	}
	t.ec.Put("preview.rowCount", len(rows))
	if stepExecution != nil {
		stepExecution.ReadCount = len(rows)
	}
	return model.ExitStatusCompleted, nil
}

func (t *PreviewTasklet) Close(ctx context.Context) error {
	return nil
}

func (t *PreviewTasklet) SetExecutionContext(ctx context.Context, ec model.ExecutionContext) error {
	t.ec = ec
	return nil
}

func (t *PreviewTasklet) GetExecutionContext(ctx context.Context) (model.ExecutionContext, error) {
	return t.ec, nil
}
