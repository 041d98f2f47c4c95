package tasklet_test

import (
	"context"
	"errors"
	"reflect"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/formula1dl/ingest/internal/catalog"
	"github.com/formula1dl/ingest/internal/domain/entity"
	"github.com/formula1dl/ingest/internal/query"
	"github.com/formula1dl/ingest/internal/step/tasklet"
	"github.com/formula1dl/ingest/pkg/batch/core/domain/model"
)

type mockCatalog struct {
	mock.Mock
}

func (m *mockCatalog) CreateSchema(ctx context.Context, schemaName string) error {
	return m.Called(ctx, schemaName).Error(0)
}

func (m *mockCatalog) RegisterTable(ctx context.Context, def catalog.TableDefinition) error {
	return m.Called(ctx, def).Error(0)
}

type mockSelector struct {
	mock.Mock
}

func (m *mockSelector) SelectAll(ctx context.Context, qualifiedName string, filter query.Filter) ([]entity.Race, error) {
	args := m.Called(ctx, qualifiedName, filter)
	rows, _ := args.Get(0).([]entity.Race)
	return rows, args.Error(1)
}

func int32Ptr(v int32) *int32 { return &v }

func newStepExecution() *model.StepExecution {
	jobExecution := model.NewJobExecution(model.NewID(), "racesIngestion", model.NewJobParameters())
	return model.NewStepExecution(model.NewID(), jobExecution, "step")
}

func TestCreateSchemaTasklet(t *testing.T) {
	ctx := context.Background()
	cat := new(mockCatalog)
	cat.On("CreateSchema", ctx, "races").Return(nil).Once()

	task := tasklet.NewCreateSchemaTasklet(cat, "races")
	status, err := task.Execute(ctx, newStepExecution())
	require.NoError(t, err)
	assert.Equal(t, model.ExitStatusCompleted, status)

	ec, err := task.GetExecutionContext(ctx)
	require.NoError(t, err)
	schemaName, ok := ec.GetString("catalog.schema")
	assert.True(t, ok)
	assert.Equal(t, "races", schemaName)
	cat.AssertExpectations(t)
}

func TestCreateSchemaTasklet_Failure(t *testing.T) {
	ctx := context.Background()
	cat := new(mockCatalog)
	cat.On("CreateSchema", ctx, "races").Return(errors.New("database is locked"))

	status, err := tasklet.NewCreateSchemaTasklet(cat, "races").Execute(ctx, newStepExecution())
	assert.Error(t, err)
	assert.Equal(t, model.ExitStatusFailed, status)
}

func TestRegisterTableTasklet(t *testing.T) {
	ctx := context.Background()
	cat := new(mockCatalog)
	cat.On("RegisterTable", ctx, mock.MatchedBy(func(def catalog.TableDefinition) bool {
		return def.QualifiedName() == "races.races_ext" &&
			def.Location == "processed/races" &&
			def.Format == catalog.FormatParquet &&
			len(def.Columns) == 7
	})).Return(nil).Once()

	task := tasklet.NewRegisterTableTasklet(cat, "races", "races_ext", "processed/races", tasklet.RaceColumns)
	status, err := task.Execute(ctx, newStepExecution())
	require.NoError(t, err)
	assert.Equal(t, model.ExitStatusCompleted, status)

	ec, _ := task.GetExecutionContext(ctx)
	location, _ := ec.GetString("catalog.location")
	assert.Equal(t, "processed/races", location)
	cat.AssertExpectations(t)
}

func TestRaceColumns(t *testing.T) {
	names := make([]string, 0, len(tasklet.RaceColumns))
	for _, col := range tasklet.RaceColumns {
		names = append(names, col.Name)
	}
	assert.Equal(t, []string{"race_id", "race_year", "round", "circuit_id", "name", "ingestion_date", "race_timestamp"}, names)
	assert.False(t, tasklet.RaceColumns[0].Nullable)
	assert.True(t, tasklet.RaceColumns[6].Nullable)
}

func TestPreviewTasklet(t *testing.T) {
	ctx := context.Background()
	rows := []entity.Race{
		{RaceID: 1010, RaceYear: int32Ptr(2019)},
		{RaceID: 1011, RaceYear: int32Ptr(2019)},
	}
	sel := new(mockSelector)
	sel.On("SelectAll", ctx, "races.races_ext", query.Filter{RaceYear: 2019, Limit: 5}).Return(rows, nil).Once()

	stepExecution := newStepExecution()
	task := tasklet.NewPreviewTasklet(sel, "races.races_ext", 2019, 5)
	status, err := task.Execute(ctx, stepExecution)
	require.NoError(t, err)
	assert.Equal(t, model.ExitStatusCompleted, status)
	assert.Equal(t, 2, stepExecution.ReadCount)

	ec, _ := task.GetExecutionContext(ctx)
	count, ok := ec.GetInt("preview.rowCount")
	assert.True(t, ok)
	assert.Equal(t, 2, count)
	sel.AssertExpectations(t)
}

func TestPreviewTasklet_TableNotFound(t *testing.T) {
	ctx := context.Background()
	sel := new(mockSelector)
	sel.On("SelectAll", ctx, "races.races_ext", mock.Anything).Return(nil, catalog.ErrTableNotFound)

	status, err := tasklet.NewPreviewTasklet(sel, "races.races_ext", 2019, 0).Execute(ctx, newStepExecution())
	assert.ErrorIs(t, err, catalog.ErrTableNotFound)
	assert.Equal(t, model.ExitStatusFailed, status)
}

// parquetColumn derives the catalog column of a field from its parquet tag.
func parquetColumn(tag string) catalog.Column {
	col := catalog.Column{}
	for _, part := range strings.Split(tag, ",") {
		key, value, _ := strings.Cut(strings.TrimSpace(part), "=")
		switch key {
		case "name":
			col.Name = value
		case "type":
			if col.DataType == "" {
				col.DataType = map[string]string{"INT32": "INT32", "BYTE_ARRAY": "STRING"}[value]
			}
		case "convertedtype":
			if value == "TIMESTAMP_MICROS" {
				col.DataType = "TIMESTAMP"
			}
		case "repetitiontype":
			col.Nullable = value == "OPTIONAL"
		}
	}
	return col
}

func TestRaceColumnsMatchParquetSchema(t *testing.T) {
	typ := reflect.TypeOf(entity.Race{})
	require.Len(t, tasklet.RaceColumns, typ.NumField())
	for i := 0; i < typ.NumField(); i++ {
		assert.Equal(t, parquetColumn(typ.Field(i).Tag.Get("parquet")), tasklet.RaceColumns[i], typ.Field(i).Name)
	}
}
