// Package job assembles the races ingestion job.
package job

import (
	"io/fs"

	"go.uber.org/fx"

	"github.com/formula1dl/ingest/internal/catalog"
	appConfig "github.com/formula1dl/ingest/internal/config"
	"github.com/formula1dl/ingest/internal/domain/entity"
	"github.com/formula1dl/ingest/internal/domain/schema"
	"github.com/formula1dl/ingest/internal/query"
	"github.com/formula1dl/ingest/internal/step/processor"
	"github.com/formula1dl/ingest/internal/step/tasklet"
	"github.com/formula1dl/ingest/pkg/batch/adapter/database"
	storageAdapter "github.com/formula1dl/ingest/pkg/batch/adapter/storage"
	"github.com/formula1dl/ingest/pkg/batch/component/step/reader"
	"github.com/formula1dl/ingest/pkg/batch/component/step/writer"
	"github.com/formula1dl/ingest/pkg/batch/component/tasklet/migration"
	port "github.com/formula1dl/ingest/pkg/batch/core/application/port"
	coreConfig "github.com/formula1dl/ingest/pkg/batch/core/config"
	repository "github.com/formula1dl/ingest/pkg/batch/core/domain/repository"
	jobRunner "github.com/formula1dl/ingest/pkg/batch/core/job/runner"
	metrics "github.com/formula1dl/ingest/pkg/batch/core/metrics"
	"github.com/formula1dl/ingest/pkg/batch/engine/step/item"
	"github.com/formula1dl/ingest/pkg/batch/engine/step/skip"
	taskletStep "github.com/formula1dl/ingest/pkg/batch/engine/step/tasklet"
	"github.com/formula1dl/ingest/pkg/batch/support/util/logger"
)

// Step names, in execution order.
const (
	StepMigrateCatalog = "migrateCatalog"
	StepCreateSchema   = "createSchema"
	StepIngestRaces    = "ingestRaces"
	StepRegisterTable  = "registerTable"
	StepPreview        = "preview"
)

// RacesJobParams holds the dependencies of NewRacesJob.
type RacesJobParams struct {
	fx.In
	Cfg              *coreConfig.Config
	JobConfig        *appConfig.RacesJobConfig
	JobRepository    repository.JobRepository
	DBResolver       database.DBConnectionResolver
	StorageResolver  storageAdapter.StorageConnectionResolver
	MigratorProvider migration.MigratorProvider
	AppMigrationsFS  fs.FS `name:"appMigrationsFS"`
	Catalog          *catalog.Catalog
	TableReader      *query.TableReader
	MetricRecorder   metrics.MetricRecorder `optional:"true"`
	Tracer           metrics.Tracer         `optional:"true"`
	Clock            processor.Clock        `optional:"true"`
	Listeners        Listeners
}

// Listeners are the listeners registered on the job and its steps, collected from Fx groups.
type Listeners struct {
	fx.In
	Job   []port.JobExecutionListener  `group:"job_listeners"`
	Step  []port.StepExecutionListener `group:"step_listeners"`
	Chunk []port.ChunkListener         `group:"chunk_listeners"`
	Skip  []port.SkipListener          `group:"skip_listeners"`
}

// NewRacesJob builds the job:
//
//	migrateCatalog -> createSchema -> ingestRaces -> registerTable [-> preview]
//
// ingestRaces reads the CSV source through the race schema, enriches each record and
// replaces the parquet output. The table is registered only after the output is committed.
// preview runs when a preview year is configured.
func NewRacesJob(p RacesJobParams) (*jobRunner.SimpleJob, error) {
	jobCfg := p.JobConfig

	migrateTasklet, err := migration.NewMigrationTasklet(p.DBResolver, p.MigratorProvider, p.AppMigrationsFS,
		migration.TaskletConfig{DBRef: jobCfg.CatalogDBRef})
	if err != nil {
		return nil, err
	}

	ingest, err := newIngestStep(p)
	if err != nil {
		return nil, err
	}
	outputLocation := jobCfg.Writer.StorageRef + "/" + jobCfg.Writer.OutputDir

	steps := []port.Step{
		taskletStep.NewTaskletStep(StepMigrateCatalog, migrateTasklet, p.JobRepository, p.MetricRecorder, p.Tracer),
		taskletStep.NewTaskletStep(StepCreateSchema,
			tasklet.NewCreateSchemaTasklet(p.Catalog, jobCfg.SchemaName()),
			p.JobRepository, p.MetricRecorder, p.Tracer),
		ingest,
		taskletStep.NewTaskletStep(StepRegisterTable,
			tasklet.NewRegisterTableTasklet(p.Catalog, jobCfg.SchemaName(), jobCfg.TableName(), outputLocation, tasklet.RaceColumns),
			p.JobRepository, p.MetricRecorder, p.Tracer),
	}
	if jobCfg.PreviewYear != 0 {
		steps = append(steps, taskletStep.NewTaskletStep(StepPreview,
			tasklet.NewPreviewTasklet(p.TableReader, jobCfg.Table, jobCfg.PreviewYear, jobCfg.PreviewLimit),
			p.JobRepository, p.MetricRecorder, p.Tracer))
	}

	for _, step := range steps {
		if s, ok := step.(*taskletStep.TaskletStep); ok {
			for _, l := range p.Listeners.Step {
				s.RegisterStepExecutionListener(l)
			}
		}
	}

	job := jobRunner.NewSimpleJob(appConfig.RacesJobName, p.JobRepository, steps...)
	for _, l := range p.Listeners.Job {
		job.RegisterJobExecutionListener(l)
	}
	logger.Debugf("Job '%s' assembled with %d steps.", job.JobName(), len(steps))
	return job, nil
}

func newIngestStep(p RacesJobParams) (port.Step, error) {
	jobCfg := p.JobConfig

	csvReader := reader.NewCSVReader[entity.RaceRecord]("racesReader", p.StorageResolver, jobCfg.Reader, schema.NewRaceSchema())
	raceProcessor := processor.NewRaceProcessor(p.Clock)
	parquetWriter := writer.NewParquetWriter("racesWriter", p.StorageResolver, jobCfg.Writer, entity.NewRace())

	skipPolicy, err := skip.NewDefaultSkipPolicyFactory().Create(
		skipLimit(jobCfg.Reader.Strictness, p.Cfg.Ingest.Batch.ItemSkip.SkipLimit),
		p.Cfg.Ingest.Batch.ItemSkip.SkippableExceptions,
	)
	if err != nil {
		return nil, err
	}

	step := item.NewChunkStep[entity.RaceRecord, entity.Race](
		StepIngestRaces,
		csvReader,
		raceProcessor,
		parquetWriter,
		jobCfg.ChunkSize,
		skipPolicy,
		p.JobRepository,
		nil,
		p.MetricRecorder,
		p.Tracer,
	)
	step.RegisterStepExecutionListener(raceProcessor)
	for _, l := range p.Listeners.Step {
		step.RegisterStepExecutionListener(l)
	}
	for _, l := range p.Listeners.Chunk {
		step.RegisterChunkListener(l)
	}
	for _, l := range p.Listeners.Skip {
		step.RegisterSkipListener(l)
	}
	return step, nil
}

// skipLimit returns the skip limit of the ingest step. FAILFAST never skips. PERMISSIVE
// uses the configured limit, or no limit when none is configured.
func skipLimit(mode reader.Strictness, configured int) int {
	if mode == reader.FailFast {
		return 0
	}
	if configured > 0 {
		return configured
	}
	return skip.Unlimited
}
