package sql

import (
	"time"

	model "github.com/formula1dl/ingest/pkg/batch/core/domain/model"
)

// JobInstanceEntity is the persisted form of model.JobInstance.
type JobInstanceEntity struct {
	ID             string              `gorm:"column:id;primaryKey"`
	JobName        string              `gorm:"column:job_name"`
	Parameters     model.JobParameters `gorm:"column:parameters"`
	CreateTime     time.Time           `gorm:"column:create_time"`
	Version        int                 `gorm:"column:version"`
	ParametersHash string              `gorm:"column:parameters_hash"`
}

func (JobInstanceEntity) TableName() string {
	return "batch_job_instance"
}

// JobExecutionEntity is the persisted form of model.JobExecution, without its step executions.
type JobExecutionEntity struct {
	ID               string                 `gorm:"column:id;primaryKey"`
	JobInstanceID    string                 `gorm:"column:job_instance_id"`
	JobName          string                 `gorm:"column:job_name"`
	Parameters       model.JobParameters    `gorm:"column:parameters"`
	StartTime        time.Time              `gorm:"column:start_time"`
	EndTime          *time.Time             `gorm:"column:end_time"`
	Status           model.JobStatus        `gorm:"column:status"`
	ExitStatus       model.ExitStatus       `gorm:"column:exit_status"`
	ExitCode         int                    `gorm:"column:exit_code"`
	Failures         model.FailureList      `gorm:"column:failures"`
	Version          int                    `gorm:"column:version"`
	CreateTime       time.Time              `gorm:"column:create_time"`
	LastUpdated      time.Time              `gorm:"column:last_updated"`
	ExecutionContext model.ExecutionContext `gorm:"column:execution_context"`
	CurrentStepName  string                 `gorm:"column:current_step_name"`
}

func (JobExecutionEntity) TableName() string {
	return "batch_job_execution"
}

// StepExecutionEntity is the persisted form of model.StepExecution.
type StepExecutionEntity struct {
	ID               string                 `gorm:"column:id;primaryKey"`
	StepName         string                 `gorm:"column:step_name"`
	JobExecutionID   string                 `gorm:"column:job_execution_id"`
	StartTime        time.Time              `gorm:"column:start_time"`
	EndTime          *time.Time             `gorm:"column:end_time"`
	Status           model.JobStatus        `gorm:"column:status"`
	ExitStatus       model.ExitStatus       `gorm:"column:exit_status"`
	Failures         model.FailureList      `gorm:"column:failures"`
	ReadCount        int                    `gorm:"column:read_count"`
	WriteCount       int                    `gorm:"column:write_count"`
	CommitCount      int                    `gorm:"column:commit_count"`
	RollbackCount    int                    `gorm:"column:rollback_count"`
	FilterCount      int                    `gorm:"column:filter_count"`
	SkipReadCount    int                    `gorm:"column:skip_read_count"`
	SkipProcessCount int                    `gorm:"column:skip_process_count"`
	SkipWriteCount   int                    `gorm:"column:skip_write_count"`
	ExecutionContext model.ExecutionContext `gorm:"column:execution_context"`
	LastUpdated      time.Time              `gorm:"column:last_updated"`
	Version          int                    `gorm:"column:version"`
}

func (StepExecutionEntity) TableName() string {
	return "batch_step_execution"
}

// CheckpointDataEntity is the persisted form of model.CheckpointData. One row per step execution.
type CheckpointDataEntity struct {
	StepExecutionID  string                 `gorm:"column:step_execution_id;primaryKey"`
	ExecutionContext model.ExecutionContext `gorm:"column:execution_context"`
	LastUpdated      time.Time              `gorm:"column:last_updated"`
}

func (CheckpointDataEntity) TableName() string {
	return "batch_checkpoint_data"
}
