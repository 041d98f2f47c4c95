// Package listener aggregates the listener modules of the batch framework.
package listener

import (
	"go.uber.org/fx"

	"github.com/formula1dl/ingest/pkg/batch/listener/logging"
	"github.com/formula1dl/ingest/pkg/batch/listener/notification"
	"github.com/formula1dl/ingest/pkg/batch/listener/tracing"
)

// Module contributes every framework listener to the job, step, chunk and skip listener groups.
var Module = fx.Options(
	logging.Module,
	tracing.Module,
	notification.Module,
)
