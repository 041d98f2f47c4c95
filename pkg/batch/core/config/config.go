// Package config holds the runtime configuration of the ingest batch application.
package config

// EmbeddedConfig holds the raw YAML configuration compiled into the binary.
type EmbeddedConfig []byte

// LogLevel defines the logging level for the application.
type LogLevel string

const (
	LogLevelTrace  LogLevel = "TRACE"
	LogLevelDebug  LogLevel = "DEBUG"
	LogLevelInfo   LogLevel = "INFO"
	LogLevelWarn   LogLevel = "WARN"
	LogLevelError  LogLevel = "ERROR"
	LogLevelFatal  LogLevel = "FATAL"
	LogLevelSilent LogLevel = "SILENT"
)

// ItemSkipConfig holds item-level skip configuration.
type ItemSkipConfig struct {
	SkipLimit           int      `yaml:"skip_limit"`           // SkipLimit is the maximum number of items a step may skip.
	SkippableExceptions []string `yaml:"skippable_exceptions"` // SkippableExceptions lists registered error names that may be skipped.
}

// SecurityConfig holds security-related settings.
type SecurityConfig struct {
	// MaskedParameterKeys lists JobParameters keys whose values are masked in logs.
	MaskedParameterKeys []string `yaml:"masked_parameter_keys"`
}

// BatchConfig holds configuration of the batch engine.
type BatchConfig struct {
	// JobName is the job launched when none is given on the command line.
	JobName string `yaml:"job_name"`
	// ChunkSize is the default chunk size for chunk-oriented steps.
	ChunkSize int `yaml:"chunk_size"`
	// ItemSkip is the item-level skip configuration.
	ItemSkip ItemSkipConfig `yaml:"item_skip"`
}

// LoggingConfig holds logging configuration.
type LoggingConfig struct {
	// Level is the logging level (e.g., "INFO", "DEBUG", "TRACE").
	Level string `yaml:"level"`
	// SQL enables logging of every statement issued through gorm.
	SQL bool `yaml:"sql"`
}

// SystemConfig holds system-wide settings.
type SystemConfig struct {
	// Timezone is the location used to interpret local date and time values (e.g., "UTC").
	Timezone string `yaml:"timezone"`
	// Logging is the logging configuration.
	Logging LoggingConfig `yaml:"logging"`
}

// PrometheusConfig configures the Prometheus recorder and its HTTP endpoint.
type PrometheusConfig struct {
	Enabled bool   `yaml:"enabled"`
	Address string `yaml:"address"`
	Path    string `yaml:"path"`
}

// OtelConfig configures an OTLP exporter.
type OtelConfig struct {
	Enabled bool `yaml:"enabled"`
	// Protocol is "grpc" or "http".
	Protocol string `yaml:"protocol"`
	Endpoint string `yaml:"endpoint"`
	Insecure bool   `yaml:"insecure"`
	// ExportIntervalSeconds applies to metrics only.
	ExportIntervalSeconds int `yaml:"export_interval_seconds"`
}

// MetricsConfig selects the metric recorders.
type MetricsConfig struct {
	Prometheus PrometheusConfig `yaml:"prometheus"`
	Otel       OtelConfig       `yaml:"otel"`
	// AsyncBufferSize, when positive, records metrics on a background goroutine through a queue of this size.
	AsyncBufferSize int `yaml:"async_buffer_size"`
}

// InfrastructureConfig holds settings for infrastructure components.
type InfrastructureConfig struct {
	// JobRepositoryDBRef is the name of the database connection used by the job repository.
	JobRepositoryDBRef string `yaml:"job_repository_db_ref"`
	// ServiceName is reported as the OpenTelemetry service.name resource attribute.
	ServiceName string        `yaml:"service_name"`
	Metrics     MetricsConfig `yaml:"metrics"`
	Tracing     OtelConfig    `yaml:"tracing"`
}

// AdapterConfigs holds the raw, per-connection adapter settings, keyed by connection name.
// Each entry is decoded by the provider that owns its "type".
type AdapterConfigs struct {
	Database map[string]interface{} `yaml:"database"`
	Storage  map[string]interface{} `yaml:"storage"`
}

// IngestConfig holds all configuration under the "ingest" top-level key.
type IngestConfig struct {
	Batch          BatchConfig          `yaml:"batch"`
	System         SystemConfig         `yaml:"system"`
	Infrastructure InfrastructureConfig `yaml:"infrastructure"`
	Security       SecurityConfig       `yaml:"security"`
	Adapter        AdapterConfigs       `yaml:"adapter"`
	// Jobs holds application job settings keyed by job name, bound with configbinder.
	Jobs map[string]interface{} `yaml:"jobs"`
}

// Config is the root of the application configuration.
type Config struct {
	Ingest IngestConfig `yaml:"ingest"`
	// EmbeddedConfig is the raw source this Config was loaded from.
	EmbeddedConfig EmbeddedConfig `yaml:"-"`
}

// GlobalConfig is the configuration shared across the application, set by NewConfigProvider.
var GlobalConfig *Config

// GetMaskedParameterKeys returns the JobParameters keys to mask, or nil before configuration is loaded.
func GetMaskedParameterKeys() []string {
	if GlobalConfig == nil {
		return nil
	}
	return GlobalConfig.Ingest.Security.MaskedParameterKeys
}

// JobProperties returns the raw settings of the named job, or nil when absent.
func (c *Config) JobProperties(jobName string) map[string]interface{} {
	if c == nil || c.Ingest.Jobs == nil {
		return nil
	}
	props, _ := c.Ingest.Jobs[jobName].(map[string]interface{})
	return props
}

// HasJobRepositoryDB reports whether job metadata is persisted, which requires
// job_repository_db_ref to name a connection under adapter.database.
func (c *Config) HasJobRepositoryDB() bool {
	ref := c.Ingest.Infrastructure.JobRepositoryDBRef
	if ref == "" {
		return false
	}
	_, ok := c.Ingest.Adapter.Database[ref]
	return ok
}

// NewConfig returns a Config populated with defaults.
func NewConfig() *Config {
	return &Config{
		Ingest: IngestConfig{
			System: SystemConfig{
				Timezone: "UTC",
				Logging:  LoggingConfig{Level: string(LogLevelInfo)},
			},
			Batch: BatchConfig{
				ChunkSize: 100,
				ItemSkip: ItemSkipConfig{
					SkipLimit:           0,
					SkippableExceptions: []string{},
				},
			},
			Infrastructure: InfrastructureConfig{
				JobRepositoryDBRef: "metadata",
				ServiceName:        "ingest",
				Metrics: MetricsConfig{
					Prometheus: PrometheusConfig{Address: ":9090", Path: "/metrics"},
					Otel:       OtelConfig{Protocol: "grpc", ExportIntervalSeconds: 10},
				},
				Tracing: OtelConfig{Protocol: "grpc"},
			},
			Security: SecurityConfig{
				MaskedParameterKeys: []string{"password", "api_key", "secret"},
			},
			Adapter: AdapterConfigs{
				Database: map[string]interface{}{},
				Storage:  map[string]interface{}{},
			},
			Jobs: map[string]interface{}{},
		},
	}
}
