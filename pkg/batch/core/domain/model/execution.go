package model

import (
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/formula1dl/ingest/pkg/batch/support/util/exception"
	"github.com/formula1dl/ingest/pkg/batch/support/util/logger"
)

// NewID generates a new UUID string.
func NewID() string {
	return uuid.New().String()
}

// JobInstance is the logical run of a job for one set of parameters.
type JobInstance struct {
	ID             string
	JobName        string
	Parameters     JobParameters
	CreateTime     time.Time
	Version        int
	ParametersHash string
}

// NewJobInstance creates a JobInstance.
func NewJobInstance(jobName string, params JobParameters) *JobInstance {
	hash, err := params.Hash()
	if err != nil {
		logger.Errorf("Failed to calculate JobParameters hash: %v", err)
	}
	return &JobInstance{
		ID:             NewID(),
		JobName:        jobName,
		Parameters:     params,
		CreateTime:     time.Now(),
		ParametersHash: hash,
	}
}

// JobExecution is one attempt at running a JobInstance.
type JobExecution struct {
	ID               string
	JobInstanceID    string
	JobName          string
	Parameters       JobParameters
	StartTime        time.Time
	EndTime          *time.Time
	Status           JobStatus
	ExitStatus       ExitStatus
	ExitCode         int
	Failures         FailureList
	Version          int
	CreateTime       time.Time
	LastUpdated      time.Time
	StepExecutions   []*StepExecution
	ExecutionContext ExecutionContext
	CurrentStepName  string
}

// NewJobExecution creates a JobExecution in STARTING state.
func NewJobExecution(jobInstanceID string, jobName string, params JobParameters) *JobExecution {
	now := time.Now()
	return &JobExecution{
		ID:               NewID(),
		JobInstanceID:    jobInstanceID,
		JobName:          jobName,
		Parameters:       params,
		StartTime:        now,
		Status:           BatchStatusStarting,
		ExitStatus:       ExitStatusUnknown,
		CreateTime:       now,
		LastUpdated:      now,
		Failures:         make(FailureList, 0),
		StepExecutions:   make([]*StepExecution, 0),
		ExecutionContext: NewExecutionContext(),
	}
}

// TransitionTo changes Status if the transition is allowed.
func (je *JobExecution) TransitionTo(newStatus JobStatus) error {
	if !isValidJobTransition(je.Status, newStatus) {
		return fmt.Errorf("JobExecution (ID: %s): invalid state transition: %s -> %s", je.ID, je.Status, newStatus)
	}
	je.Status = newStatus
	return nil
}

func (je *JobExecution) forceStatus(status JobStatus) {
	if err := je.TransitionTo(status); err != nil {
		logger.Warnf("Could not update JobExecution (ID: %s) status to %s: %v", je.ID, status, err)
		je.Status = status
	}
}

func (je *JobExecution) finish(status JobStatus) {
	je.forceStatus(status)
	je.ExitStatus = status.ToExitStatus()
	je.ExitCode = je.ExitStatus.ExitCode()
	now := time.Now()
	je.EndTime = &now
	je.LastUpdated = now
}

func (je *JobExecution) MarkAsStarted() {
	je.forceStatus(BatchStatusStarted)
	je.StartTime = time.Now()
	je.LastUpdated = je.StartTime
}

func (je *JobExecution) MarkAsCompleted() {
	je.finish(BatchStatusCompleted)
}

// MarkAsFailed sets FAILED and records err.
func (je *JobExecution) MarkAsFailed(err error) {
	je.finish(BatchStatusFailed)
	je.AddFailureException(err)
}

func (je *JobExecution) MarkAsStopped() {
	je.finish(BatchStatusStopped)
}

func (je *JobExecution) MarkAsAbandoned() {
	je.finish(BatchStatusAbandoned)
}

// AddFailureException records the message of err once.
func (je *JobExecution) AddFailureException(err error) {
	if err == nil {
		return
	}
	errMsg := exception.ExtractErrorMessage(err)
	for _, existing := range je.Failures {
		if existing == errMsg {
			return
		}
	}
	je.Failures = append(je.Failures, errMsg)
	je.LastUpdated = time.Now()
}

func (je *JobExecution) AddStepExecution(se *StepExecution) {
	je.StepExecutions = append(je.StepExecutions, se)
}

// StepExecution is one run of a step inside a JobExecution.
type StepExecution struct {
	ID               string
	StepName         string
	JobExecution     *JobExecution
	JobExecutionID   string
	StartTime        time.Time
	EndTime          *time.Time
	Status           JobStatus
	ExitStatus       ExitStatus
	Failures         FailureList
	ReadCount        int
	WriteCount       int
	CommitCount      int
	RollbackCount    int
	FilterCount      int
	SkipReadCount    int
	SkipProcessCount int
	SkipWriteCount   int
	ExecutionContext ExecutionContext
	LastUpdated      time.Time
	Version          int
}

// NewStepExecution creates a StepExecution in STARTING state and attaches it to jobExecution.
func NewStepExecution(id string, jobExecution *JobExecution, stepName string) *StepExecution {
	now := time.Now()
	se := &StepExecution{
		ID:               id,
		StepName:         stepName,
		JobExecution:     jobExecution,
		JobExecutionID:   jobExecution.ID,
		StartTime:        now,
		Status:           BatchStatusStarting,
		ExitStatus:       ExitStatusUnknown,
		Failures:         make(FailureList, 0),
		ExecutionContext: NewExecutionContext(),
		LastUpdated:      now,
	}
	jobExecution.AddStepExecution(se)
	jobExecution.CurrentStepName = stepName
	return se
}

// TransitionTo changes Status if the transition is allowed.
func (se *StepExecution) TransitionTo(newStatus JobStatus) error {
	if !isValidStepTransition(se.Status, newStatus) {
		return fmt.Errorf("StepExecution (ID: %s): invalid state transition: %s -> %s", se.ID, se.Status, newStatus)
	}
	se.Status = newStatus
	return nil
}

func (se *StepExecution) forceStatus(status JobStatus) {
	if err := se.TransitionTo(status); err != nil {
		logger.Warnf("Could not update StepExecution (ID: %s) status to %s: %v", se.ID, status, err)
		se.Status = status
	}
}

func (se *StepExecution) finish(status JobStatus) {
	se.forceStatus(status)
	se.ExitStatus = status.ToExitStatus()
	now := time.Now()
	se.EndTime = &now
	se.LastUpdated = now
}

func (se *StepExecution) MarkAsStarted() {
	se.forceStatus(BatchStatusStarted)
	se.StartTime = time.Now()
	se.LastUpdated = se.StartTime
}

func (se *StepExecution) MarkAsCompleted() {
	se.finish(BatchStatusCompleted)
}

// MarkAsFailed sets FAILED and records err.
func (se *StepExecution) MarkAsFailed(err error) {
	se.finish(BatchStatusFailed)
	se.AddFailureException(err)
}

func (se *StepExecution) MarkAsStopped() {
	se.finish(BatchStatusStopped)
}

// AddFailureException records the message of err once.
func (se *StepExecution) AddFailureException(err error) {
	if err == nil {
		return
	}
	errMsg := exception.ExtractErrorMessage(err)
	for _, existing := range se.Failures {
		if existing == errMsg {
			return
		}
	}
	se.Failures = append(se.Failures, errMsg)
	se.LastUpdated = time.Now()
}

// SkipCount is the total of read, process and write skips.
func (se *StepExecution) SkipCount() int {
	return se.SkipReadCount + se.SkipProcessCount + se.SkipWriteCount
}

// CheckpointData is the persisted execution context of a step at its last committed chunk.
type CheckpointData struct {
	StepExecutionID  string
	ExecutionContext ExecutionContext
	LastUpdated      time.Time
}
