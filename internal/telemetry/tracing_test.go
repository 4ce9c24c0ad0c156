package telemetry

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
	semconv "go.opentelemetry.io/otel/semconv/v1.17.0"
)

func TestInitTracerProviderExportsSpans(t *testing.T) {
	ctx := context.Background()
	exporter := tracetest.NewInMemoryExporter()

	tp, err := InitTracerProvider(ctx, "armada-test", WithExporter(exporter), WithVersion("1.2.3"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = tp.Shutdown(ctx) })

	_, span := otel.Tracer("telemetry-test").Start(ctx, "cycle")
	span.End()
	require.NoError(t, tp.ForceFlush(ctx))

	spans := exporter.GetSpans()
	require.Len(t, spans, 1)
	require.Equal(t, "cycle", spans[0].Name)

	attrs := spans[0].Resource.Attributes()
	require.Contains(t, attrs, semconv.ServiceName("armada-test"))
	require.Contains(t, attrs, attribute.String("service.version", "1.2.3"))
}

func TestInitTracerProviderDefaultsServiceName(t *testing.T) {
	ctx := context.Background()
	exporter := tracetest.NewInMemoryExporter()

	tp, err := InitTracerProvider(ctx, "", WithExporter(exporter))
	require.NoError(t, err)
	t.Cleanup(func() { _ = tp.Shutdown(ctx) })

	_, span := otel.Tracer("telemetry-test").Start(ctx, "crawl")
	span.End()
	require.NoError(t, tp.ForceFlush(ctx))

	spans := exporter.GetSpans()
	require.Len(t, spans, 1)
	require.Contains(t, spans[0].Resource.Attributes(), semconv.ServiceName("wallpaper-armada"))
}
