package app

import (
	"context"
	"encoding/json"
	"io"
	"io/fs"
	"os"

	"go.uber.org/fx"

	appConfig "github.com/formula1dl/ingest/internal/config"
	"github.com/formula1dl/ingest/internal/job"
	"github.com/formula1dl/ingest/internal/query"
	gormadapter "github.com/formula1dl/ingest/pkg/batch/adapter/database/gorm"
	storageAdapter "github.com/formula1dl/ingest/pkg/batch/adapter/storage"
	"github.com/formula1dl/ingest/pkg/batch/component/tasklet/migration"
	port "github.com/formula1dl/ingest/pkg/batch/core/application/port"
	"github.com/formula1dl/ingest/pkg/batch/core/application/usecase"
	config "github.com/formula1dl/ingest/pkg/batch/core/config"
	model "github.com/formula1dl/ingest/pkg/batch/core/domain/model"
	jobRunner "github.com/formula1dl/ingest/pkg/batch/core/job/runner"
	infraMetrics "github.com/formula1dl/ingest/pkg/batch/infrastructure/metrics"
	"github.com/formula1dl/ingest/pkg/batch/infrastructure/repository/inmemory"
	"github.com/formula1dl/ingest/pkg/batch/infrastructure/repository/sql"
	batchlistener "github.com/formula1dl/ingest/pkg/batch/listener"
	"github.com/formula1dl/ingest/pkg/batch/support/util/logger"
)

// Process exit codes. A launched job exits with its ExitStatus code instead.
const (
	ExitOK          = 0
	ExitFailure     = 1
	ExitConfigError = 2
)

// QueryOptions selects the rows printed in query mode.
type QueryOptions struct {
	// Year keeps only rows with this race_year. Zero keeps all rows.
	Year int32
	// Limit caps the number of rows. Zero means no cap.
	Limit int
}

// Options configures RunApplication.
type Options struct {
	EnvFilePath    string
	EmbeddedConfig config.EmbeddedConfig
	// MigrationsFS holds the catalog migrations under resources/migrations/<db type>.
	MigrationsFS fs.FS
	// DBAdapters and StorageAdapters name the enabled backends. Empty enables all of them.
	DBAdapters      []string
	StorageAdapters []string
	// Query, when set, prints the registered table as JSON lines instead of launching the job.
	Query *QueryOptions
	// Out receives query output. Defaults to os.Stdout.
	Out io.Writer
	// Extra is appended to the Fx options, e.g. to supply a processor.Clock.
	Extra []fx.Option
}

// RunApplication starts the Fx application, launches the configured job (or runs the
// query) and stops the application. It returns the process exit code.
func RunApplication(ctx context.Context, opts Options) int {
	cfg, err := config.NewConfigProvider(config.ConfigParams{
		EmbeddedConfig: opts.EmbeddedConfig,
		EnvFilePath:    opts.EnvFilePath,
	})
	if err != nil {
		logger.Errorf("Failed to load configuration: %v", err)
		return ExitConfigError
	}
	logger.Infof("Log level set to: %s", cfg.Ingest.System.Logging.Level)

	var (
		launcher    port.JobLauncher
		explorer    usecase.JobExplorer
		tableReader *query.TableReader
		jobConfig   *appConfig.RacesJobConfig
	)
	app := fx.New(applicationOptions(cfg, opts, fx.Populate(&launcher, &explorer, &tableReader, &jobConfig))...)
	if err := app.Err(); err != nil {
		logger.Errorf("Failed to build application: %v", err)
		return ExitConfigError
	}

	startCtx, cancelStart := context.WithTimeout(ctx, app.StartTimeout())
	defer cancelStart()
	if err := app.Start(startCtx); err != nil {
		logger.Errorf("Failed to start application: %v", err)
		return ExitFailure
	}
	defer func() {
		stopCtx, cancelStop := context.WithTimeout(context.Background(), app.StopTimeout())
		defer cancelStop()
		logger.Infof("Application is shutting down.")
		if err := app.Stop(stopCtx); err != nil {
			logger.Errorf("Failed to stop application cleanly: %v", err)
		}
	}()

	if opts.Query != nil {
		out := opts.Out
		if out == nil {
			out = os.Stdout
		}
		return runQuery(ctx, tableReader, jobConfig.Table, *opts.Query, out)
	}
	jobName := cfg.Ingest.Batch.JobName
	if jobName == "" {
		jobName = appConfig.RacesJobName
	}
	return launchJob(ctx, launcher, explorer, jobName)
}

func applicationOptions(cfg *config.Config, opts Options, extra ...fx.Option) []fx.Option {
	migrationsFS := opts.MigrationsFS
	options := []fx.Option{
		fx.Supply(cfg),
		fx.Provide(fx.Annotate(
			func() fs.FS { return migrationsFS },
			fx.ResultTags(`name:"rawApplicationMigrationsFS"`),
		)),
		logger.Module,
		config.Module,
		gormadapter.Module,
		storageAdapter.Module,
		migration.Module,
		usecase.Module,
		jobRunner.Module,
		infraMetrics.Module,
		batchlistener.Module,
		Module,
		job.Module,
	}
	options = append(options, selectModules(DBAdapterModules, opts.DBAdapters, "database")...)
	options = append(options, selectModules(StorageAdapterModules, opts.StorageAdapters, "storage")...)

	if cfg.HasJobRepositoryDB() {
		options = append(options, sql.Module)
	} else {
		logger.Infof("No job repository database configured. Job metadata is kept in memory.")
		options = append(options, inmemory.Module)
	}
	options = append(options, opts.Extra...)
	return append(options, extra...)
}

// selectModules returns the modules named in names, or all of them when names is empty.
func selectModules(available map[string]fx.Option, names []string, kind string) []fx.Option {
	if len(names) == 0 {
		for name := range available {
			names = append(names, name)
		}
	}
	seen := make(map[string]bool)
	var selected []fx.Option
	for _, name := range names {
		module, ok := available[name]
		if !ok {
			logger.Warnf("%s adapter '%s' is not recognized. Skipping.", kind, name)
			continue
		}
		if seen[name] {
			continue
		}
		seen[name] = true
		selected = append(selected, module)
		logger.Debugf("%s adapter '%s' enabled.", kind, name)
	}
	return selected
}

func launchJob(ctx context.Context, launcher port.JobLauncher, explorer usecase.JobExplorer, jobName string) int {
	logger.Infof("Starting job '%s'.", jobName)
	execution, err := launcher.Launch(ctx, jobName, model.NewJobParameters())
	if err != nil {
		logger.Errorf("Failed to launch job '%s': %v", jobName, err)
		return ExitFailure
	}
	logger.Infof("Job '%s' (Execution ID: %s) finished with status: %s, ExitStatus: %s",
		jobName, execution.ID, execution.Status, execution.ExitStatus)
	reportSteps(ctx, explorer, jobName, execution.ID)
	return execution.ExitStatus.ExitCode()
}

// reportSteps logs the recorded item counts of every step of the execution.
func reportSteps(ctx context.Context, explorer usecase.JobExplorer, jobName, executionID string) {
	summaries, err := explorer.SummarizeSteps(context.WithoutCancel(ctx), executionID)
	if err != nil {
		logger.Warnf("Could not load step summaries of job '%s': %v", jobName, err)
		return
	}
	for _, s := range summaries {
		logger.Infof("Job '%s' step '%s': %s, read=%d written=%d filtered=%d skipped=%d.",
			jobName, s.StepName, s.Status, s.Read, s.Written, s.Filtered, s.Skipped)
	}
}

func runQuery(ctx context.Context, reader *query.TableReader, table string, q QueryOptions, out io.Writer) int {
	rows, err := reader.SelectAll(ctx, table, query.Filter{RaceYear: q.Year, Limit: q.Limit})
	if err != nil {
		logger.Errorf("Query on '%s' failed: %v", table, err)
		return ExitFailure
	}
	enc := json.NewEncoder(out)
	for _, row := range rows {
		if err := enc.Encode(row); err != nil {
			logger.Errorf("Failed to write query output: %v", err)
			return ExitFailure
		}
	}
	logger.Infof("Query on '%s' returned %d rows.", table, len(rows))
	return ExitOK
}
