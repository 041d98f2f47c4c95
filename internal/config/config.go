// Package config binds the settings of the races ingestion job.
package config

import (
	"fmt"

	"github.com/formula1dl/ingest/internal/catalog"
	"github.com/formula1dl/ingest/pkg/batch/component/step/reader"
	"github.com/formula1dl/ingest/pkg/batch/component/step/writer"
	coreConfig "github.com/formula1dl/ingest/pkg/batch/core/config"
	"github.com/formula1dl/ingest/pkg/batch/support/util/configbinder"
)

// RacesJobName is the job name and the key of its settings under ingest.jobs.
const RacesJobName = "racesIngestion"

// RacesJobConfig holds the settings of the races ingestion job.
type RacesJobConfig struct {
	// SourceProperties and OutputProperties are bound by the reader and writer configs.
	SourceProperties map[string]interface{} `yaml:"source"`
	OutputProperties map[string]interface{} `yaml:"output"`
	// Table is the qualified name registered in the catalog.
	Table string `yaml:"table"`
	// CatalogDBRef is the database connection holding the catalog.
	CatalogDBRef string `yaml:"catalog_db_ref"`
	ChunkSize    int    `yaml:"chunk_size"`
	PreviewYear  int32  `yaml:"preview_year"`
	PreviewLimit int    `yaml:"preview_limit"`

	Reader reader.CSVReaderConfig     `yaml:"-"`
	Writer writer.ParquetWriterConfig `yaml:"-"`
}

// NewRacesJobConfig binds ingest.jobs.racesIngestion. The chunk size falls back to ingest.batch.chunk_size.
func NewRacesJobConfig(cfg *coreConfig.Config) (*RacesJobConfig, error) {
	jobCfg := &RacesJobConfig{
		Table:        "races.races_ext",
		CatalogDBRef: "catalog",
		PreviewLimit: 10,
	}
	props := cfg.JobProperties(RacesJobName)
	if props == nil {
		return nil, fmt.Errorf("no settings for job '%s' under ingest.jobs", RacesJobName)
	}
	if err := configbinder.BindProperties(props, jobCfg); err != nil {
		return nil, err
	}
	if jobCfg.ChunkSize <= 0 {
		jobCfg.ChunkSize = cfg.Ingest.Batch.ChunkSize
	}
	if _, _, err := catalog.ParseQualifiedName(jobCfg.Table); err != nil {
		return nil, fmt.Errorf("job '%s': %w", RacesJobName, err)
	}

	var err error
	if jobCfg.Reader, err = reader.NewCSVReaderConfig(jobCfg.SourceProperties); err != nil {
		return nil, fmt.Errorf("job '%s' source: %w", RacesJobName, err)
	}
	if jobCfg.Writer, err = writer.NewParquetWriterConfig(jobCfg.OutputProperties); err != nil {
		return nil, fmt.Errorf("job '%s' output: %w", RacesJobName, err)
	}
	return jobCfg, nil
}

// SchemaName returns the schema part of Table.
func (c *RacesJobConfig) SchemaName() string {
	schemaName, _, _ := catalog.ParseQualifiedName(c.Table)
	return schemaName
}

// TableName returns the table part of Table.
func (c *RacesJobConfig) TableName() string {
	_, tableName, _ := catalog.ParseQualifiedName(c.Table)
	return tableName
}
