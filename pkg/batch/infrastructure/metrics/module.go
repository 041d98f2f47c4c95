// Package metrics provides the Prometheus and OpenTelemetry implementations of the batch observability ports.
package metrics

import (
	"context"

	"go.uber.org/fx"

	config "github.com/formula1dl/ingest/pkg/batch/core/config"
	metrics "github.com/formula1dl/ingest/pkg/batch/core/metrics"
	logger "github.com/formula1dl/ingest/pkg/batch/support/util/logger"
)

// RecorderParams defines the dependencies for NewMetricRecorder.
type RecorderParams struct {
	fx.In
	Lifecycle fx.Lifecycle
	Cfg       *config.Config
}

// NewMetricRecorder assembles the recorders enabled under infrastructure.metrics.
// With none enabled it returns a no-op recorder.
func NewMetricRecorder(p RecorderParams) (metrics.MetricRecorder, error) {
	infra := p.Cfg.Ingest.Infrastructure
	var recorders []metrics.MetricRecorder

	if infra.Metrics.Prometheus.Enabled {
		prom := NewPrometheusRecorder()
		server := NewMetricsServer(infra.Metrics.Prometheus, prom)
		p.Lifecycle.Append(fx.Hook{OnStart: server.Start, OnStop: server.Stop})
		recorders = append(recorders, prom)
	}

	if infra.Metrics.Otel.Enabled {
		provider, err := NewMeterProvider(context.Background(), infra.Metrics.Otel, infra.ServiceName)
		if err != nil {
			return nil, err
		}
		p.Lifecycle.Append(fx.Hook{OnStop: provider.Shutdown})
		otelRecorder, err := NewOtelRecorder(provider)
		if err != nil {
			return nil, err
		}
		recorders = append(recorders, otelRecorder)
	}

	var recorder metrics.MetricRecorder
	switch len(recorders) {
	case 0:
		logger.Debugf("No metric recorder enabled.")
		return metrics.NewNoOpMetricRecorder(), nil
	case 1:
		recorder = recorders[0]
	default:
		recorder = NewCompositeRecorder(recorders...)
	}

	if infra.Metrics.AsyncBufferSize > 0 {
		async := NewAsyncMetricRecorder(infra.Metrics.AsyncBufferSize, recorder)
		// Registered last, so it drains before the exporters above shut down.
		p.Lifecycle.Append(fx.Hook{OnStop: func(ctx context.Context) error {
			async.Close()
			return nil
		}})
		return async, nil
	}
	return recorder, nil
}

// NewTracer returns an OpenTelemetry tracer when infrastructure.tracing is enabled, otherwise a no-op tracer.
func NewTracer(p RecorderParams) (metrics.Tracer, error) {
	infra := p.Cfg.Ingest.Infrastructure
	if !infra.Tracing.Enabled {
		return metrics.NewNoOpTracer(), nil
	}
	provider, err := NewTracerProvider(context.Background(), infra.Tracing, infra.ServiceName)
	if err != nil {
		return nil, err
	}
	p.Lifecycle.Append(fx.Hook{OnStop: provider.Shutdown})
	logger.Infof("Tracing: exporting spans over OTLP/%s.", infra.Tracing.Protocol)
	return NewOpenTelemetryTracer(provider), nil
}

// Module provides metrics.MetricRecorder and metrics.Tracer.
var Module = fx.Options(
	fx.Provide(NewMetricRecorder),
	fx.Provide(NewTracer),
)
