// Package sql implements repository.JobRepository on a database.DBConnection.
package sql

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/fx"

	"github.com/formula1dl/ingest/pkg/batch/adapter/database"
	"github.com/formula1dl/ingest/pkg/batch/core/config"
	model "github.com/formula1dl/ingest/pkg/batch/core/domain/model"
	repository "github.com/formula1dl/ingest/pkg/batch/core/domain/repository"
	tx "github.com/formula1dl/ingest/pkg/batch/core/tx"
	"github.com/formula1dl/ingest/pkg/batch/support/util/exception"
	"github.com/formula1dl/ingest/pkg/batch/support/util/logger"
)

// SQLJobRepository implements repository.JobRepository.
//
// Writes go through the transaction carried by the context (see tx.WithTx) when there is one,
// and through the connection otherwise. Reads always use the connection.
type SQLJobRepository struct {
	dbResolver database.DBConnectionResolver
	// dbName is the name of the connection holding the batch tables (e.g., "metadata").
	dbName string
}

// NewSQLJobRepository creates a SQLJobRepository on the connection called dbName.
func NewSQLJobRepository(dbResolver database.DBConnectionResolver, dbName string) *SQLJobRepository {
	return &SQLJobRepository{
		dbResolver: dbResolver,
		dbName:     dbName,
	}
}

// JobRepositoryParams holds the dependencies of NewJobRepository.
type JobRepositoryParams struct {
	fx.In
	DBResolver database.DBConnectionResolver
	Cfg        *config.Config
}

// NewJobRepository creates the SQL JobRepository on ingest.infrastructure.job_repository_db_ref.
func NewJobRepository(p JobRepositoryParams) repository.JobRepository {
	dbName := p.Cfg.Ingest.Infrastructure.JobRepositoryDBRef
	logger.Debugf("SQLJobRepository uses database connection '%s'.", dbName)
	return NewSQLJobRepository(p.DBResolver, dbName)
}

func (r *SQLJobRepository) getDBConnection(ctx context.Context) (database.DBConnection, error) {
	conn, err := r.dbResolver.ResolveDBConnection(ctx, r.dbName)
	if err != nil {
		return nil, exception.NewBatchError("SQLJobRepository", fmt.Sprintf("Failed to resolve DB connection '%s'", r.dbName), err, false, false)
	}
	return conn, nil
}

// getTxExecutor returns the transaction in ctx, or conn when there is none.
func getTxExecutor(ctx context.Context, conn database.DBConnection) tx.TxExecutor {
	if t, ok := tx.FromContext(ctx); ok {
		return t
	}
	return conn
}

func (r *SQLJobRepository) create(ctx context.Context, op string, entity interface{ TableName() string }, id string) error {
	conn, err := r.getDBConnection(ctx)
	if err != nil {
		return err
	}
	if _, err := getTxExecutor(ctx, conn).ExecuteUpdate(ctx, entity, "CREATE", entity.TableName(), nil); err != nil {
		return exception.NewBatchError(op, fmt.Sprintf("failed to save %s (ID: %s)", entity.TableName(), id), err, false, false)
	}
	return nil
}

// update writes entity only if the stored row still has originalVersion.
func (r *SQLJobRepository) update(ctx context.Context, op string, entity interface{ TableName() string }, id string, originalVersion int) error {
	conn, err := r.getDBConnection(ctx)
	if err != nil {
		return err
	}
	rowsAffected, err := getTxExecutor(ctx, conn).ExecuteUpdate(
		ctx,
		entity,
		"UPDATE",
		entity.TableName(),
		map[string]interface{}{"version": originalVersion},
	)
	if err != nil {
		return exception.NewBatchError(op, fmt.Sprintf("failed to update %s (ID: %s)", entity.TableName(), id), err, false, false)
	}
	if rowsAffected == 0 {
		return exception.NewOptimisticLockingFailure(op, fmt.Sprintf("%s (ID: %s) with version %d not found for update", entity.TableName(), id, originalVersion), nil)
	}
	return nil
}

// --- JobInstance ---

func (r *SQLJobRepository) SaveJobInstance(ctx context.Context, instance *model.JobInstance) error {
	return r.create(ctx, "SQLJobRepository.SaveJobInstance", fromDomainJobInstance(instance), instance.ID)
}

func (r *SQLJobRepository) FindJobInstanceByID(ctx context.Context, id string) (*model.JobInstance, error) {
	const op = "SQLJobRepository.FindJobInstanceByID"
	conn, err := r.getDBConnection(ctx)
	if err != nil {
		return nil, err
	}

	var entities []JobInstanceEntity
	if err := conn.ExecuteQueryAdvanced(ctx, &entities, map[string]interface{}{"id": id}, "", 1); err != nil {
		if conn.IsTableNotExistError(err) {
			return nil, repository.ErrJobInstanceNotFound
		}
		return nil, exception.NewBatchError(op, fmt.Sprintf("failed to find JobInstance by ID: %s", id), err, false, false)
	}
	if len(entities) == 0 {
		return nil, repository.ErrJobInstanceNotFound
	}
	return toDomainJobInstance(&entities[0]), nil
}

// FindJobInstanceByJobNameAndParameters narrows by parameters hash, then compares the parameters themselves.
func (r *SQLJobRepository) FindJobInstanceByJobNameAndParameters(ctx context.Context, jobName string, params model.JobParameters) (*model.JobInstance, error) {
	const op = "SQLJobRepository.FindJobInstanceByJobNameAndParameters"
	hash, err := params.Hash()
	if err != nil {
		return nil, exception.NewBatchError(op, "failed to calculate JobParameters hash", err, false, false)
	}
	conn, err := r.getDBConnection(ctx)
	if err != nil {
		return nil, err
	}

	var entities []JobInstanceEntity
	if err := conn.ExecuteQuery(ctx, &entities, map[string]interface{}{"job_name": jobName, "parameters_hash": hash}); err != nil {
		if conn.IsTableNotExistError(err) {
			return nil, repository.ErrJobInstanceNotFound
		}
		return nil, exception.NewBatchError(op, "failed to find JobInstance", err, false, false)
	}

	for i := range entities {
		instance := toDomainJobInstance(&entities[i])
		if instance.Parameters.Equal(params) {
			return instance, nil
		}
		logger.Warnf("%s: JobInstance (ID: %s) hash matched but parameters mismatched. Possible hash collision.", op, instance.ID)
	}
	return nil, repository.ErrJobInstanceNotFound
}

func (r *SQLJobRepository) FindLatestJobInstance(ctx context.Context, jobName string) (*model.JobInstance, error) {
	const op = "SQLJobRepository.FindLatestJobInstance"
	conn, err := r.getDBConnection(ctx)
	if err != nil {
		return nil, err
	}

	var entities []JobInstanceEntity
	if err := conn.ExecuteQueryAdvanced(ctx, &entities, map[string]interface{}{"job_name": jobName}, "create_time desc", 1); err != nil {
		if conn.IsTableNotExistError(err) {
			return nil, repository.ErrJobInstanceNotFound
		}
		return nil, exception.NewBatchError(op, fmt.Sprintf("failed to find latest JobInstance of '%s'", jobName), err, false, false)
	}
	if len(entities) == 0 {
		return nil, repository.ErrJobInstanceNotFound
	}
	return toDomainJobInstance(&entities[0]), nil
}

func (r *SQLJobRepository) GetJobInstanceCount(ctx context.Context, jobName string) (int, error) {
	const op = "SQLJobRepository.GetJobInstanceCount"
	conn, err := r.getDBConnection(ctx)
	if err != nil {
		return 0, err
	}
	count, err := conn.Count(ctx, &JobInstanceEntity{}, map[string]interface{}{"job_name": jobName})
	if err != nil {
		if conn.IsTableNotExistError(err) {
			return 0, nil
		}
		return 0, exception.NewBatchError(op, "failed to count JobInstances", err, false, false)
	}
	return int(count), nil
}

// --- JobExecution ---

func (r *SQLJobRepository) SaveJobExecution(ctx context.Context, jobExecution *model.JobExecution) error {
	return r.create(ctx, "SQLJobRepository.SaveJobExecution", fromDomainJobExecution(jobExecution), jobExecution.ID)
}

func (r *SQLJobRepository) UpdateJobExecution(ctx context.Context, jobExecution *model.JobExecution) error {
	originalVersion := jobExecution.Version
	jobExecution.Version++
	jobExecution.LastUpdated = time.Now()

	if err := r.update(ctx, "SQLJobRepository.UpdateJobExecution", fromDomainJobExecution(jobExecution), jobExecution.ID, originalVersion); err != nil {
		jobExecution.Version = originalVersion
		return err
	}
	return nil
}

func (r *SQLJobRepository) FindJobExecutionByID(ctx context.Context, executionID string) (*model.JobExecution, error) {
	const op = "SQLJobRepository.FindJobExecutionByID"
	conn, err := r.getDBConnection(ctx)
	if err != nil {
		return nil, err
	}

	var entities []JobExecutionEntity
	if err := conn.ExecuteQueryAdvanced(ctx, &entities, map[string]interface{}{"id": executionID}, "", 1); err != nil {
		if conn.IsTableNotExistError(err) {
			return nil, repository.ErrJobExecutionNotFound
		}
		return nil, exception.NewBatchError(op, fmt.Sprintf("failed to find JobExecution by ID: %s", executionID), err, false, false)
	}
	if len(entities) == 0 {
		return nil, repository.ErrJobExecutionNotFound
	}
	return r.withStepExecutions(ctx, toDomainJobExecution(&entities[0]))
}

func (r *SQLJobRepository) FindLatestJobExecution(ctx context.Context, jobInstanceID string) (*model.JobExecution, error) {
	const op = "SQLJobRepository.FindLatestJobExecution"
	conn, err := r.getDBConnection(ctx)
	if err != nil {
		return nil, err
	}

	var entities []JobExecutionEntity
	if err := conn.ExecuteQueryAdvanced(ctx, &entities, map[string]interface{}{"job_instance_id": jobInstanceID}, "create_time desc", 1); err != nil {
		if conn.IsTableNotExistError(err) {
			return nil, repository.ErrJobExecutionNotFound
		}
		return nil, exception.NewBatchError(op, fmt.Sprintf("failed to find latest JobExecution of JobInstance (ID: %s)", jobInstanceID), err, false, false)
	}
	if len(entities) == 0 {
		return nil, repository.ErrJobExecutionNotFound
	}
	return r.withStepExecutions(ctx, toDomainJobExecution(&entities[0]))
}

// FindJobExecutionsByJobInstance returns the executions latest first, without step executions.
func (r *SQLJobRepository) FindJobExecutionsByJobInstance(ctx context.Context, jobInstance *model.JobInstance) ([]*model.JobExecution, error) {
	const op = "SQLJobRepository.FindJobExecutionsByJobInstance"
	conn, err := r.getDBConnection(ctx)
	if err != nil {
		return nil, err
	}

	var entities []JobExecutionEntity
	if err := conn.ExecuteQueryAdvanced(ctx, &entities, map[string]interface{}{"job_instance_id": jobInstance.ID}, "create_time desc", 0); err != nil {
		if conn.IsTableNotExistError(err) {
			return []*model.JobExecution{}, nil
		}
		return nil, exception.NewBatchError(op, fmt.Sprintf("failed to find JobExecutions of JobInstance (ID: %s)", jobInstance.ID), err, false, false)
	}

	executions := make([]*model.JobExecution, 0, len(entities))
	for i := range entities {
		executions = append(executions, toDomainJobExecution(&entities[i]))
	}
	return executions, nil
}

func (r *SQLJobRepository) withStepExecutions(ctx context.Context, je *model.JobExecution) (*model.JobExecution, error) {
	steps, err := r.FindStepExecutionsByJobExecutionID(ctx, je.ID)
	if err != nil {
		return nil, err
	}
	for _, se := range steps {
		se.JobExecution = je
	}
	je.StepExecutions = steps
	return je, nil
}

// --- StepExecution ---

func (r *SQLJobRepository) SaveStepExecution(ctx context.Context, stepExecution *model.StepExecution) error {
	return r.create(ctx, "SQLJobRepository.SaveStepExecution", fromDomainStepExecution(stepExecution), stepExecution.ID)
}

func (r *SQLJobRepository) UpdateStepExecution(ctx context.Context, stepExecution *model.StepExecution) error {
	originalVersion := stepExecution.Version
	stepExecution.Version++
	stepExecution.LastUpdated = time.Now()

	if err := r.update(ctx, "SQLJobRepository.UpdateStepExecution", fromDomainStepExecution(stepExecution), stepExecution.ID, originalVersion); err != nil {
		stepExecution.Version = originalVersion
		return err
	}
	return nil
}

func (r *SQLJobRepository) FindStepExecutionByID(ctx context.Context, executionID string) (*model.StepExecution, error) {
	const op = "SQLJobRepository.FindStepExecutionByID"
	conn, err := r.getDBConnection(ctx)
	if err != nil {
		return nil, err
	}

	var entities []StepExecutionEntity
	if err := conn.ExecuteQueryAdvanced(ctx, &entities, map[string]interface{}{"id": executionID}, "", 1); err != nil {
		if conn.IsTableNotExistError(err) {
			return nil, repository.ErrStepExecutionNotFound
		}
		return nil, exception.NewBatchError(op, fmt.Sprintf("failed to find StepExecution by ID: %s", executionID), err, false, false)
	}
	if len(entities) == 0 {
		return nil, repository.ErrStepExecutionNotFound
	}
	return toDomainStepExecution(&entities[0]), nil
}

// FindStepExecutionsByJobExecutionID returns the step executions in start order.
func (r *SQLJobRepository) FindStepExecutionsByJobExecutionID(ctx context.Context, jobExecutionID string) ([]*model.StepExecution, error) {
	const op = "SQLJobRepository.FindStepExecutionsByJobExecutionID"
	conn, err := r.getDBConnection(ctx)
	if err != nil {
		return nil, err
	}

	var entities []StepExecutionEntity
	if err := conn.ExecuteQueryAdvanced(ctx, &entities, map[string]interface{}{"job_execution_id": jobExecutionID}, "start_time asc", 0); err != nil {
		if conn.IsTableNotExistError(err) {
			return []*model.StepExecution{}, nil
		}
		return nil, exception.NewBatchError(op, fmt.Sprintf("failed to find StepExecutions of JobExecution (ID: %s)", jobExecutionID), err, false, false)
	}

	steps := make([]*model.StepExecution, 0, len(entities))
	for i := range entities {
		steps = append(steps, toDomainStepExecution(&entities[i]))
	}
	return steps, nil
}

// --- CheckpointData ---

// SaveCheckpointData upserts the checkpoint of data.StepExecutionID.
func (r *SQLJobRepository) SaveCheckpointData(ctx context.Context, data *model.CheckpointData) error {
	const op = "SQLJobRepository.SaveCheckpointData"
	conn, err := r.getDBConnection(ctx)
	if err != nil {
		return err
	}

	data.LastUpdated = time.Now()
	entity := fromDomainCheckpointData(data)
	_, err = getTxExecutor(ctx, conn).ExecuteUpsert(
		ctx,
		entity,
		entity.TableName(),
		[]string{"step_execution_id"},
		[]string{"execution_context", "last_updated"},
	)
	if err != nil {
		return exception.NewBatchError(op, fmt.Sprintf("failed to save CheckpointData (StepExecution ID: %s)", data.StepExecutionID), err, false, false)
	}
	return nil
}

func (r *SQLJobRepository) FindCheckpointData(ctx context.Context, stepExecutionID string) (*model.CheckpointData, error) {
	const op = "SQLJobRepository.FindCheckpointData"
	conn, err := r.getDBConnection(ctx)
	if err != nil {
		return nil, err
	}

	var entities []CheckpointDataEntity
	if err := conn.ExecuteQueryAdvanced(ctx, &entities, map[string]interface{}{"step_execution_id": stepExecutionID}, "", 1); err != nil {
		if conn.IsTableNotExistError(err) {
			return nil, repository.ErrCheckpointDataNotFound
		}
		return nil, exception.NewBatchError(op, fmt.Sprintf("failed to find CheckpointData (StepExecution ID: %s)", stepExecutionID), err, false, false)
	}
	if len(entities) == 0 {
		return nil, repository.ErrCheckpointDataNotFound
	}
	return toDomainCheckpointData(&entities[0]), nil
}

// Close is a no-op: connections are owned and closed by the DBConnectionResolver.
func (r *SQLJobRepository) Close() error {
	return nil
}

var _ repository.JobRepository = (*SQLJobRepository)(nil)
