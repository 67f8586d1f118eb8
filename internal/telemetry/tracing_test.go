package telemetry

import (
	"bytes"
	"context"
	"testing"

	"github.com/dunamismax/pixelshift/internal/config"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
)

func TestSetupTracingDisabled(t *testing.T) {
	shutdown, err := SetupTracing(context.Background(), config.TelemetryConfig{Exporter: "none"}, zerolog.Nop())
	require.NoError(t, err)
	require.NoError(t, shutdown(context.Background()))
}

func TestSetupTracingStdout(t *testing.T) {
	previous := otel.GetTracerProvider()
	t.Cleanup(func() { otel.SetTracerProvider(previous) })

	var out bytes.Buffer
	shutdown, err := setupTracing(context.Background(), config.TelemetryConfig{
		ServiceName: "pixelshift-test",
		Exporter:    "stdout",
		SampleRatio: 1,
	}, zerolog.Nop(), &out)
	require.NoError(t, err)

	_, span := otel.Tracer("pixelshift/test").Start(context.Background(), "pipeline.process")
	span.End()

	require.NoError(t, shutdown(context.Background()))
	assert.Contains(t, out.String(), "pipeline.process")
	assert.Contains(t, out.String(), "pixelshift-test")
}

func TestSetupTracingErrors(t *testing.T) {
	_, err := SetupTracing(context.Background(), config.TelemetryConfig{Exporter: "otlp"}, zerolog.Nop())
	assert.ErrorContains(t, err, "requires endpoint")

	_, err = SetupTracing(context.Background(), config.TelemetryConfig{Exporter: "zipkin"}, zerolog.Nop())
	assert.ErrorContains(t, err, "unsupported trace exporter")
}
