package config

import (
	"fmt"
	"os"
	"reflect"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"go.uber.org/fx"
	"gopkg.in/yaml.v3"

	"github.com/formula1dl/ingest/pkg/batch/support/util/exception"
	"github.com/formula1dl/ingest/pkg/batch/support/util/logger"
)

const moduleName = "config"

// ConfigParams defines the dependencies for NewConfigProvider.
type ConfigParams struct {
	fx.In
	EmbeddedConfig EmbeddedConfig
	EnvFilePath    string              `name:"envFilePath" optional:"true"`
	Expander       EnvironmentExpander `optional:"true"`
}

// loadConfig resolves the configuration in four layers: defaults, the embedded YAML
// (after placeholder expansion), then INGEST_* environment variables, which may come from the .env file.
func loadConfig(envFilePath string, embeddedConfig EmbeddedConfig, expander EnvironmentExpander) (*Config, error) {
	if envFilePath != "" {
		if err := godotenv.Load(envFilePath); err != nil {
			logger.Debugf(".env file (%s) not found or could not be loaded: %v", envFilePath, err)
		}
	}

	if expander == nil {
		expander = NewOsEnvironmentExpander()
	}
	expanded, err := expander.Expand(embeddedConfig)
	if err != nil {
		return nil, exception.NewBatchError(moduleName, "failed to expand environment placeholders", err, false, false)
	}

	cfg := NewConfig()

	var yamlConfig Config
	if err := yaml.Unmarshal(expanded, &yamlConfig); err != nil {
		return nil, exception.NewBatchError(moduleName, "failed to unmarshal embedded config", err, false, false)
	}
	mergeConfig(cfg, &yamlConfig)

	if err := loadStructFromEnv(reflect.ValueOf(cfg).Elem(), ""); err != nil {
		return nil, exception.NewBatchError(moduleName, "failed to load config from environment variables", err, false, false)
	}
	cfg.EmbeddedConfig = embeddedConfig
	return cfg, nil
}

// LoadConfig loads the configuration outside of fx, e.g. from main or tests.
func LoadConfig(envFilePath string, embeddedConfig EmbeddedConfig) (*Config, error) {
	return loadConfig(envFilePath, embeddedConfig, nil)
}

// NewConfigProvider is an fx provider that loads *Config, installs it as GlobalConfig
// and applies the configured log level.
func NewConfigProvider(params ConfigParams) (*Config, error) {
	cfg, err := loadConfig(params.EnvFilePath, params.EmbeddedConfig, params.Expander)
	if err != nil {
		return nil, err
	}
	if err := Validate(cfg); err != nil {
		return nil, err
	}

	GlobalConfig = cfg
	logger.SetLogLevel(cfg.Ingest.System.Logging.Level)
	logger.Debugf("Log level set to: %s", cfg.Ingest.System.Logging.Level)
	return cfg, nil
}

// Validate checks values that cannot be expressed by the YAML types alone.
func Validate(cfg *Config) error {
	if cfg.Ingest.Batch.ChunkSize <= 0 {
		return exception.NewBatchErrorf(moduleName, "batch.chunk_size must be positive, got %d", cfg.Ingest.Batch.ChunkSize)
	}
	if _, err := time.LoadLocation(cfg.Ingest.System.Timezone); err != nil {
		return exception.NewBatchError(moduleName, fmt.Sprintf("unknown timezone '%s'", cfg.Ingest.System.Timezone), err, false, false)
	}
	for _, name := range cfg.Ingest.Batch.ItemSkip.SkippableExceptions {
		if !exception.IsErrorTypeRegistered(name) {
			return exception.NewBatchErrorf(moduleName, "item_skip references unknown exception class '%s'", name)
		}
	}
	return nil
}

// Location returns the configured timezone, falling back to UTC.
func (c *Config) Location() *time.Location {
	loc, err := time.LoadLocation(c.Ingest.System.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

// mergeConfig copies every non-zero value of source into dest.
func mergeConfig(dest, source *Config) {
	d, s := &dest.Ingest, &source.Ingest

	if s.Batch.JobName != "" {
		d.Batch.JobName = s.Batch.JobName
	}
	if s.Batch.ChunkSize != 0 {
		d.Batch.ChunkSize = s.Batch.ChunkSize
	}
	if s.Batch.ItemSkip.SkipLimit != 0 {
		d.Batch.ItemSkip.SkipLimit = s.Batch.ItemSkip.SkipLimit
	}
	if s.Batch.ItemSkip.SkippableExceptions != nil {
		d.Batch.ItemSkip.SkippableExceptions = s.Batch.ItemSkip.SkippableExceptions
	}

	if s.System.Timezone != "" {
		d.System.Timezone = s.System.Timezone
	}
	if s.System.Logging.Level != "" {
		d.System.Logging.Level = s.System.Logging.Level
	}
	d.System.Logging.SQL = d.System.Logging.SQL || s.System.Logging.SQL

	mergeInfrastructureConfig(&d.Infrastructure, &s.Infrastructure)

	if s.Security.MaskedParameterKeys != nil {
		d.Security.MaskedParameterKeys = s.Security.MaskedParameterKeys
	}

	mergeMap(&d.Adapter.Database, s.Adapter.Database)
	mergeMap(&d.Adapter.Storage, s.Adapter.Storage)
	mergeMap(&d.Jobs, s.Jobs)
}

func mergeInfrastructureConfig(dest, source *InfrastructureConfig) {
	if source.JobRepositoryDBRef != "" {
		dest.JobRepositoryDBRef = source.JobRepositoryDBRef
	}
	if source.ServiceName != "" {
		dest.ServiceName = source.ServiceName
	}
	if source.Metrics.Prometheus.Enabled {
		dest.Metrics.Prometheus.Enabled = true
	}
	if source.Metrics.Prometheus.Address != "" {
		dest.Metrics.Prometheus.Address = source.Metrics.Prometheus.Address
	}
	if source.Metrics.Prometheus.Path != "" {
		dest.Metrics.Prometheus.Path = source.Metrics.Prometheus.Path
	}
	mergeOtelConfig(&dest.Metrics.Otel, &source.Metrics.Otel)
	if source.Metrics.AsyncBufferSize != 0 {
		dest.Metrics.AsyncBufferSize = source.Metrics.AsyncBufferSize
	}
	mergeOtelConfig(&dest.Tracing, &source.Tracing)
}

func mergeOtelConfig(dest, source *OtelConfig) {
	if source.Enabled {
		dest.Enabled = true
	}
	if source.Protocol != "" {
		dest.Protocol = source.Protocol
	}
	if source.Endpoint != "" {
		dest.Endpoint = source.Endpoint
	}
	if source.Insecure {
		dest.Insecure = true
	}
	if source.ExportIntervalSeconds != 0 {
		dest.ExportIntervalSeconds = source.ExportIntervalSeconds
	}
}

func mergeMap(dest *map[string]interface{}, source map[string]interface{}) {
	if source == nil {
		return
	}
	if *dest == nil {
		*dest = make(map[string]interface{}, len(source))
	}
	for key, value := range source {
		(*dest)[key] = value
	}
}

// loadStructFromEnv walks val and overrides fields from environment variables named after
// the upper-cased yaml tag path, e.g. INGEST_BATCH_CHUNK_SIZE.
func loadStructFromEnv(val reflect.Value, prefix string) error {
	typ := val.Type()
	for i := 0; i < typ.NumField(); i++ {
		field := val.Field(i)
		fieldType := typ.Field(i)
		yamlTag := strings.Split(fieldType.Tag.Get("yaml"), ",")[0]
		if yamlTag == "" || yamlTag == "-" {
			continue
		}
		envVarName := strings.ToUpper(prefix + yamlTag)

		switch {
		case field.Kind() == reflect.Struct:
			if err := loadStructFromEnv(field, envVarName+"_"); err != nil {
				return err
			}
		case field.Kind() == reflect.Map && field.Type().Key().Kind() == reflect.String &&
			field.Type().Elem().Kind() == reflect.Interface:
			loadMapFromEnv(field, envVarName+"_")
		default:
			envValue, exists := os.LookupEnv(envVarName)
			if !exists {
				continue
			}
			if err := setField(field, envValue); err != nil {
				return fmt.Errorf("failed to set field '%s' from env var '%s': %w", fieldType.Name, envVarName, err)
			}
		}
	}
	return nil
}

// loadMapFromEnv overrides entries of a map[string]interface{} whose keys already exist.
// INGEST_ADAPTER_DATABASE_METADATA_PASSWORD=x sets adapter.database.metadata.password and
// INGEST_JOBS_RACESINGESTION_SOURCE_PATH=x sets jobs.racesIngestion.source.path.
func loadMapFromEnv(mapField reflect.Value, prefix string) {
	if mapField.IsNil() {
		return
	}
	entries, ok := mapField.Interface().(map[string]interface{})
	if !ok {
		return
	}
	for _, env := range os.Environ() {
		name, value, ok := strings.Cut(env, "=")
		if !ok || !strings.HasPrefix(name, prefix) {
			continue
		}
		rest := strings.TrimPrefix(name, prefix)
		for key, entry := range entries {
			nested, ok := entry.(map[string]interface{})
			keyPrefix := strings.ToUpper(key) + "_"
			if !ok || !strings.HasPrefix(rest, keyPrefix) {
				continue
			}
			setNestedFromEnv(nested, strings.TrimPrefix(rest, keyPrefix), value)
		}
	}
}

// setNestedFromEnv descends through the nested maps named by rest and stores value under
// the lower-cased remainder in the deepest map reached.
func setNestedFromEnv(entries map[string]interface{}, rest, value string) {
	for key, entry := range entries {
		nested, ok := entry.(map[string]interface{})
		keyPrefix := strings.ToUpper(key) + "_"
		if ok && strings.HasPrefix(rest, keyPrefix) {
			setNestedFromEnv(nested, strings.TrimPrefix(rest, keyPrefix), value)
			return
		}
	}
	entries[strings.ToLower(rest)] = value
}

// setField converts value to the kind of field. Unsupported kinds are ignored.
func setField(field reflect.Value, value string) error {
	if !field.CanSet() {
		return nil
	}
	switch field.Kind() {
	case reflect.String:
		field.SetString(value)
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		intValue, err := strconv.ParseInt(value, 10, 64)
		if err != nil {
			return err
		}
		field.SetInt(intValue)
	case reflect.Float64, reflect.Float32:
		floatValue, err := strconv.ParseFloat(value, 64)
		if err != nil {
			return err
		}
		field.SetFloat(floatValue)
	case reflect.Bool:
		boolValue, err := strconv.ParseBool(value)
		if err != nil {
			return err
		}
		field.SetBool(boolValue)
	case reflect.Slice:
		if field.Type().Elem().Kind() == reflect.String {
			parts := strings.Split(value, ",")
			for i := range parts {
				parts[i] = strings.TrimSpace(parts[i])
			}
			field.Set(reflect.ValueOf(parts))
		}
	}
	return nil
}
