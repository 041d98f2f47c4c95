package tasklet

import (
	"context"

	"github.com/formula1dl/ingest/internal/catalog"
	"github.com/formula1dl/ingest/pkg/batch/core/application/port"
	"github.com/formula1dl/ingest/pkg/batch/core/domain/model"
	"github.com/formula1dl/ingest/pkg/batch/support/util/logger"
)

// RaceColumns is the column list registered for the races table, in file order.
var RaceColumns = []catalog.Column{
	{Name: "race_id", DataType: "INT32", Nullable: false},
	{Name: "race_year", DataType: "INT32", Nullable: true},
	{Name: "round", DataType: "INT32", Nullable: true},
	{Name: "circuit_id", DataType: "INT32", Nullable: true},
	{Name: "name", DataType: "STRING", Nullable: true},
	{Name: "ingestion_date", DataType: "TIMESTAMP", Nullable: false},
	{Name: "race_timestamp", DataType: "TIMESTAMP", Nullable: true},
}

// TableRegistrar records table metadata.
type TableRegistrar interface {
	RegisterTable(ctx context.Context, def catalog.TableDefinition) error
}

// RegisterTableTasklet registers the written table, replacing any previous registration.
type RegisterTableTasklet struct {
	catalog    TableRegistrar
	definition catalog.TableDefinition
	ec         model.ExecutionContext
}

var _ port.Tasklet = (*RegisterTableTasklet)(nil)

// NewRegisterTableTasklet creates a RegisterTableTasklet for "<schema>.<table>" stored as parquet at location.
func NewRegisterTableTasklet(registrar TableRegistrar, schemaName, tableName, location string, columns []catalog.Column) *RegisterTableTasklet {
	return &RegisterTableTasklet{
		catalog: registrar,
		definition: catalog.TableDefinition{
			Schema:   schemaName,
			Name:     tableName,
			Location: location,
			Format:   catalog.FormatParquet,
			Columns:  columns,
		},
		ec: model.NewExecutionContext(),
	}
}

func (t *RegisterTableTasklet) Execute(ctx context.Context, stepExecution *model.StepExecution) (model.ExitStatus, error) {
	def := t.definition
	logger.Infof("RegisterTableTasklet: registering '%s' at '%s'.", def.QualifiedName(), def.Location)
	if err := t.catalog.RegisterTable(ctx, def); err != nil {
		return model.ExitStatusFailed, err
	}
	t.ec.Put("catalog.table", def.QualifiedName())
	t.ec.Put("catalog.location", def.Location)
	return model.ExitStatusCompleted, nil
}

func (t *RegisterTableTasklet) Close(ctx context.Context) error {
	return nil
}

func (t *RegisterTableTasklet) SetExecutionContext(ctx context.Context, ec model.ExecutionContext) error {
	t.ec = ec
	return nil
}

func (t *RegisterTableTasklet) GetExecutionContext(ctx context.Context) (model.ExecutionContext, error) {
	return t.ec, nil
}
