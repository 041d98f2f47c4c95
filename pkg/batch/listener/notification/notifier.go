// Package notification reports finished jobs through a Notifier.
package notification

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/fx"

	port "github.com/formula1dl/ingest/pkg/batch/core/application/port"
	model "github.com/formula1dl/ingest/pkg/batch/core/domain/model"
	logger "github.com/formula1dl/ingest/pkg/batch/support/util/logger"
)

// Notifier is told about every finished JobExecution.
type Notifier interface {
	NotifyJobCompletion(ctx context.Context, execution *model.JobExecution)
}

// LogNotifier writes a one-line job summary to the application log.
type LogNotifier struct{}

func NewLogNotifier() *LogNotifier {
	return &LogNotifier{}
}

// Summary formats the outcome of execution, including per-step counters.
func Summary(execution *model.JobExecution) string {
	duration := time.Duration(0)
	if execution.EndTime != nil {
		duration = execution.EndTime.Sub(execution.StartTime).Round(time.Millisecond)
	}
	msg := fmt.Sprintf("Job '%s' (ID: %s) finished with Status: %s, ExitStatus: %s. Duration: %s, Failures: %d",
		execution.JobName, execution.ID, execution.Status, execution.ExitStatus, duration, len(execution.Failures))
	for _, se := range execution.StepExecutions {
		msg += fmt.Sprintf("; %s=%s(read=%d write=%d skip=%d)", se.StepName, se.Status, se.ReadCount, se.WriteCount, se.SkipCount())
	}
	return msg
}

func (n *LogNotifier) NotifyJobCompletion(ctx context.Context, execution *model.JobExecution) {
	if execution.Status == model.BatchStatusCompleted {
		logger.Infof("Job Notification: %s", Summary(execution))
		return
	}
	logger.Warnf("Job Notification: %s", Summary(execution))
}

var _ Notifier = (*LogNotifier)(nil)

// NotificationListener forwards AfterJob to a Notifier.
type NotificationListener struct {
	notifier Notifier
}

func NewNotificationListener(notifier Notifier) *NotificationListener {
	return &NotificationListener{notifier: notifier}
}

func (l *NotificationListener) BeforeJob(ctx context.Context, jobExecution *model.JobExecution) {}

func (l *NotificationListener) AfterJob(ctx context.Context, jobExecution *model.JobExecution) {
	l.notifier.NotifyJobCompletion(ctx, jobExecution)
}

var _ port.JobExecutionListener = (*NotificationListener)(nil)

// Module provides a LogNotifier and registers NotificationListener as a job listener.
var Module = fx.Provide(
	fx.Annotate(NewLogNotifier, fx.As(new(Notifier))),
	fx.Annotate(NewNotificationListener, fx.As(new(port.JobExecutionListener)), fx.ResultTags(`group:"job_listeners"`)),
)
