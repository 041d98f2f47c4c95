// Package tasklet holds the single-shot steps of the races job: catalog schema creation,
// table registration and the post-write preview.
package tasklet

import (
	"context"

	"github.com/formula1dl/ingest/pkg/batch/core/application/port"
	"github.com/formula1dl/ingest/pkg/batch/core/domain/model"
	"github.com/formula1dl/ingest/pkg/batch/support/util/logger"
)

// SchemaCreator creates catalog schemas.
type SchemaCreator interface {
	CreateSchema(ctx context.Context, schemaName string) error
}

// CreateSchemaTasklet creates the schema the job's table lives in. Existing schemas are left alone.
type CreateSchemaTasklet struct {
	catalog    SchemaCreator
	schemaName string
	ec         model.ExecutionContext
}

var _ port.Tasklet = (*CreateSchemaTasklet)(nil)

func NewCreateSchemaTasklet(catalog SchemaCreator, schemaName string) *CreateSchemaTasklet {
	return &CreateSchemaTasklet{
		catalog:    catalog,
		schemaName: schemaName,
		ec:         model.NewExecutionContext(),
	}
}

func (t *CreateSchemaTasklet) Execute(ctx context.Context, stepExecution *model.StepExecution) (model.ExitStatus, error) {
	logger.Infof("CreateSchemaTasklet: ensuring schema '%s' exists.", t.schemaName)
	if err := t.catalog.CreateSchema(ctx, t.schemaName); err != nil {
		return model.ExitStatusFailed, err
	}
	t.ec.Put("catalog.schema", t.schemaName)
	return model.ExitStatusCompleted, nil
}

func (t *CreateSchemaTasklet) Close(ctx context.Context) error {
	return nil
}

func (t *CreateSchemaTasklet) SetExecutionContext(ctx context.Context, ec model.ExecutionContext) error {
	t.ec = ec
	return nil
}

func (t *CreateSchemaTasklet) GetExecutionContext(ctx context.Context) (model.ExecutionContext, error) {
	return t.ec, nil
}
