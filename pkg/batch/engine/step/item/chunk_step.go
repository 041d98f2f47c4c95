// Package item implements chunk-oriented steps: items are read and processed one by one
// and written in chunks.
package item

import (
	"context"
	"errors"
	"fmt"
	"io"

	port "github.com/formula1dl/ingest/pkg/batch/core/application/port"
	model "github.com/formula1dl/ingest/pkg/batch/core/domain/model"
	repository "github.com/formula1dl/ingest/pkg/batch/core/domain/repository"
	metrics "github.com/formula1dl/ingest/pkg/batch/core/metrics"
	tx "github.com/formula1dl/ingest/pkg/batch/core/tx"
	"github.com/formula1dl/ingest/pkg/batch/engine/step/skip"
	exception "github.com/formula1dl/ingest/pkg/batch/support/util/exception"
	logger "github.com/formula1dl/ingest/pkg/batch/support/util/logger"
)

// ChunkStep reads items of type I, processes them into O and writes them in chunks.
type ChunkStep[I, O any] struct {
	id            string
	reader        port.ItemReader[I]
	processor     port.ItemProcessor[I, O]
	writer        port.ItemWriter[O]
	chunkSize     int
	jobRepository repository.JobRepository
	skipPolicy    skip.SkipPolicy

	// txManager is optional. When set, every chunk runs in a transaction that also covers its checkpoint.
	txManager tx.TransactionManager

	stepExecutionListeners []port.StepExecutionListener
	skipListeners          []port.SkipListener
	chunkListeners         []port.ChunkListener

	metricRecorder metrics.MetricRecorder
	tracer         metrics.Tracer
}

// NewChunkStep creates a ChunkStep. A nil skipPolicy never skips; nil recorder and tracer record nothing.
func NewChunkStep[I, O any](
	id string,
	reader port.ItemReader[I],
	processor port.ItemProcessor[I, O],
	writer port.ItemWriter[O],
	chunkSize int,
	skipPolicy skip.SkipPolicy,
	jobRepository repository.JobRepository,
	txManager tx.TransactionManager,
	metricRecorder metrics.MetricRecorder,
	tracer metrics.Tracer,
) *ChunkStep[I, O] {
	if chunkSize <= 0 {
		chunkSize = 1
	}
	if skipPolicy == nil {
		skipPolicy, _ = skip.NewDefaultSkipPolicyFactory().Create(0, nil)
	}
	if metricRecorder == nil {
		metricRecorder = metrics.NewNoOpMetricRecorder()
	}
	if tracer == nil {
		tracer = metrics.NewNoOpTracer()
	}
	return &ChunkStep[I, O]{
		id:             id,
		reader:         reader,
		processor:      processor,
		writer:         writer,
		chunkSize:      chunkSize,
		skipPolicy:     skipPolicy,
		jobRepository:  jobRepository,
		txManager:      txManager,
		metricRecorder: metricRecorder,
		tracer:         tracer,
	}
}

func (s *ChunkStep[I, O]) ID() string {
	return s.id
}

func (s *ChunkStep[I, O]) StepName() string {
	return s.id
}

func (s *ChunkStep[I, O]) RegisterStepExecutionListener(l port.StepExecutionListener) {
	s.stepExecutionListeners = append(s.stepExecutionListeners, l)
}

func (s *ChunkStep[I, O]) RegisterSkipListener(l port.SkipListener) {
	s.skipListeners = append(s.skipListeners, l)
}

func (s *ChunkStep[I, O]) RegisterChunkListener(l port.ChunkListener) {
	s.chunkListeners = append(s.chunkListeners, l)
}

func (s *ChunkStep[I, O]) notifySkipRead(ctx context.Context, err error) {
	s.tracer.RecordError(ctx, s.id, err)
	s.metricRecorder.RecordItemSkip(ctx, s.id, "read")
	for _, l := range s.skipListeners {
		l.OnSkipRead(ctx, err)
	}
}

func (s *ChunkStep[I, O]) notifySkipProcess(ctx context.Context, item I, err error) {
	s.tracer.RecordError(ctx, s.id, err)
	s.metricRecorder.RecordItemSkip(ctx, s.id, "process")
	for _, l := range s.skipListeners {
		l.OnSkipProcess(ctx, item, err)
	}
}

// Execute runs the chunk loop until the reader is exhausted or an item fails fatally.
//
// The reader is opened before the writer, so structural input errors surface before
// anything is written. On failure the writer is rolled back instead of closed.
func (s *ChunkStep[I, O]) Execute(ctx context.Context, jobExecution *model.JobExecution, stepExecution *model.StepExecution) error {
	logger.Infof("ChunkStep '%s' executing.", s.id)

	ctx, endSpan := s.tracer.StartStepSpan(ctx, stepExecution)
	defer endSpan()
	ctx = port.GetContextWithStepExecution(ctx, stepExecution)

	stepExecution.MarkAsStarted()
	s.metricRecorder.RecordStepStart(ctx, stepExecution)
	if err := s.jobRepository.UpdateStepExecution(ctx, stepExecution); err != nil {
		return exception.NewBatchError(s.id, "Failed to update StepExecution status to STARTED", err, false, false)
	}
	for _, l := range s.stepExecutionListeners {
		l.BeforeStep(ctx, stepExecution)
	}

	stepErr := s.run(ctx, stepExecution)

	if stepErr != nil {
		s.tracer.RecordError(ctx, s.id, stepErr)
		if errors.Is(stepErr, context.Canceled) {
			stepExecution.MarkAsStopped()
			stepExecution.AddFailureException(stepErr)
		} else {
			stepExecution.MarkAsFailed(stepErr)
		}
	} else {
		stepExecution.MarkAsCompleted()
	}

	for _, l := range s.stepExecutionListeners {
		l.AfterStep(ctx, stepExecution)
	}
	s.metricRecorder.RecordStepEnd(ctx, stepExecution)

	if updateErr := s.jobRepository.UpdateStepExecution(context.WithoutCancel(ctx), stepExecution); updateErr != nil {
		logger.Errorf("ChunkStep '%s': Failed to update final StepExecution state: %v", s.id, updateErr)
		if stepErr == nil {
			stepErr = updateErr
		}
	}

	logger.Infof("ChunkStep '%s' finished. ExitStatus: %s, read: %d, written: %d, skipped: %d",
		s.id, stepExecution.ExitStatus, stepExecution.ReadCount, stepExecution.WriteCount, stepExecution.SkipCount())
	return stepErr
}

func (s *ChunkStep[I, O]) run(ctx context.Context, stepExecution *model.StepExecution) error {
	if err := s.reader.Open(ctx, model.NewExecutionContext()); err != nil {
		return exception.NewBatchError(s.id, "Failed to open ItemReader", err, false, false)
	}
	if err := s.writer.Open(ctx, model.NewExecutionContext()); err != nil {
		s.closeReader(ctx)
		return exception.NewBatchError(s.id, "Failed to open ItemWriter", err, false, false)
	}

	var chunkErr error
	for {
		if err := ctx.Err(); err != nil {
			chunkErr = err
			break
		}
		eof, err := s.processChunk(ctx, stepExecution)
		if err != nil {
			chunkErr = err
			break
		}
		if eof {
			logger.Debugf("ChunkStep '%s': Reached EOF. Exiting chunk loop.", s.id)
			break
		}
	}

	s.closeReader(ctx)
	if chunkErr != nil {
		if rbErr := s.writer.Rollback(context.WithoutCancel(ctx)); rbErr != nil {
			logger.Warnf("ChunkStep '%s': Failed to roll back ItemWriter: %v", s.id, rbErr)
		}
	} else if err := s.writer.Close(ctx); err != nil {
		chunkErr = exception.NewBatchError(s.id, "Failed to close ItemWriter", err, false, false)
	}

	stepExecution.ExecutionContext = s.collectExecutionContext(ctx, stepExecution)
	return chunkErr
}

func (s *ChunkStep[I, O]) closeReader(ctx context.Context) {
	if err := s.reader.Close(ctx); err != nil {
		logger.Warnf("ChunkStep '%s': Failed to close ItemReader: %v", s.id, err)
	}
}

// processChunk reads, processes and writes one chunk. It reports whether the reader is exhausted.
func (s *ChunkStep[I, O]) processChunk(ctx context.Context, stepExecution *model.StepExecution) (bool, error) {
	chunkCtx := ctx
	var chunkTx tx.Tx
	if s.txManager != nil {
		t, err := s.txManager.Begin(ctx)
		if err != nil {
			return false, exception.NewBatchError(s.id, "Failed to begin transaction for chunk", err, false, false)
		}
		chunkTx = t
		chunkCtx = tx.WithTx(ctx, t)
	}
	rollback := func() {
		if chunkTx != nil {
			if err := s.txManager.Rollback(chunkTx); err != nil {
				logger.Warnf("ChunkStep '%s': Failed to roll back chunk transaction: %v", s.id, err)
			}
		}
		stepExecution.RollbackCount++
	}

	for _, l := range s.chunkListeners {
		l.BeforeChunk(chunkCtx, stepExecution)
	}
	defer func() {
		for _, l := range s.chunkListeners {
			l.AfterChunk(chunkCtx, stepExecution)
		}
	}()

	items, eof, err := s.readAndProcess(chunkCtx, stepExecution)
	if err != nil {
		rollback()
		return false, err
	}

	if len(items) > 0 {
		if err := s.writer.Write(chunkCtx, items); err != nil {
			rollback()
			return false, exception.NewBatchError(s.id, "Item write failed", err, false, false)
		}
		stepExecution.WriteCount += len(items)
		s.metricRecorder.RecordItemWrite(chunkCtx, s.id, len(items))
	}

	if err := s.saveCheckpoint(chunkCtx, stepExecution); err != nil {
		logger.Errorf("ChunkStep '%s': Failed to save checkpoint: %v", s.id, err)
	}

	if chunkTx != nil {
		if err := s.txManager.Commit(chunkTx); err != nil {
			stepExecution.RollbackCount++
			return false, exception.NewBatchError(s.id, "Failed to commit transaction for chunk", err, false, false)
		}
	}
	if len(items) > 0 || !eof {
		stepExecution.CommitCount++
		s.metricRecorder.RecordChunkCommit(ctx, s.id, len(items))
	}
	return eof, nil
}

// readAndProcess fills one chunk. Skippable read and process errors are counted and the item is dropped.
func (s *ChunkStep[I, O]) readAndProcess(ctx context.Context, stepExecution *model.StepExecution) ([]O, bool, error) {
	items := make([]O, 0, s.chunkSize)
	for read := 0; read < s.chunkSize; {
		item, err := s.reader.Read(ctx)
		if err != nil {
			if errors.Is(err, io.EOF) {
				return items, true, nil
			}
			if s.skipPolicy.ShouldSkip(err) {
				s.skipPolicy.IncrementSkipCount()
				stepExecution.SkipReadCount++
				stepExecution.AddFailureException(err)
				logger.Warnf("ChunkStep '%s': Item read skipped (Skip Count: %d): %v", s.id, s.skipPolicy.GetSkipCount(), err)
				s.notifySkipRead(ctx, err)
				continue
			}
			return nil, false, exception.NewBatchError(s.id, "Item read failed", err, false, false)
		}
		read++
		stepExecution.ReadCount++
		s.metricRecorder.RecordItemRead(ctx, s.id)

		out, err := s.processor.Process(ctx, item)
		if err != nil {
			if errors.Is(err, port.ErrFilterItem) {
				stepExecution.FilterCount++
				continue
			}
			if s.skipPolicy.ShouldSkip(err) {
				s.skipPolicy.IncrementSkipCount()
				stepExecution.SkipProcessCount++
				stepExecution.AddFailureException(err)
				logger.Warnf("ChunkStep '%s': Item process skipped (Skip Count: %d): %v", s.id, s.skipPolicy.GetSkipCount(), err)
				s.notifySkipProcess(ctx, item, err)
				continue
			}
			return nil, false, exception.NewBatchError(s.id, "Item process failed", err, false, false)
		}
		s.metricRecorder.RecordItemProcess(ctx, s.id)
		items = append(items, out)
	}
	return items, false, nil
}

// collectExecutionContext merges the reader and writer contexts with the step counters.
func (s *ChunkStep[I, O]) collectExecutionContext(ctx context.Context, stepExecution *model.StepExecution) model.ExecutionContext {
	ec := model.NewExecutionContext()
	if readerEC, err := s.reader.GetExecutionContext(ctx); err == nil {
		for k, v := range readerEC {
			ec.Put(k, v)
		}
	} else {
		logger.Warnf("ChunkStep '%s': Failed to get ExecutionContext from ItemReader: %v", s.id, err)
	}
	if writerEC, err := s.writer.GetExecutionContext(ctx); err == nil {
		for k, v := range writerEC {
			ec.Put(k, v)
		}
	} else {
		logger.Warnf("ChunkStep '%s': Failed to get ExecutionContext from ItemWriter: %v", s.id, err)
	}
	ec.Put("readCount", stepExecution.ReadCount)
	ec.Put("writeCount", stepExecution.WriteCount)
	return ec
}

// saveCheckpoint records progress after a chunk. Restarts do not resume from it.
func (s *ChunkStep[I, O]) saveCheckpoint(ctx context.Context, stepExecution *model.StepExecution) error {
	checkpoint := &model.CheckpointData{
		StepExecutionID:  stepExecution.ID,
		ExecutionContext: s.collectExecutionContext(ctx, stepExecution),
	}
	if err := s.jobRepository.SaveCheckpointData(ctx, checkpoint); err != nil {
		return fmt.Errorf("failed to save checkpoint data: %w", err)
	}
	logger.Debugf("Checkpoint data saved for step '%s'. Read: %d, Write: %d", s.id, stepExecution.ReadCount, stepExecution.WriteCount)
	return nil
}

var _ port.Step = (*ChunkStep[any, any])(nil)
