package observability

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
)

func TestDefaultConfig(t *testing.T) {
	config := DefaultConfig()
	require.Equal(t, "golive", config.ServiceName)
	require.Equal(t, "development", config.Environment)
	require.Equal(t, 1.0, config.SampleRate)
	require.False(t, config.Enabled)
}

func TestFromEndpoint(t *testing.T) {
	c := FromEndpoint("", "")
	require.False(t, c.Enabled)
	require.Equal(t, "development", c.Environment)

	c = FromEndpoint("collector:4317", "production")
	require.True(t, c.Enabled)
	require.True(t, c.Insecure)
	require.Equal(t, "collector:4317", c.OTLPEndpoint)
	require.Equal(t, "production", c.Environment)
}

func TestNewProviderDisabled(t *testing.T) {
	p, err := New(context.Background(), nil)
	require.NoError(t, err)
	require.False(t, p.Enabled())
	require.NotNil(t, p.Tracer())
	require.NotNil(t, p.Meter())

	// Disabled providers still accept every call.
	ctx, finish := p.TrackOperation(context.Background(), "manifest")
	require.NotNil(t, ctx)
	p.RecordGate(ctx, "fpr_ok", true)
	finish(errors.New("boom"))
	require.NoError(t, p.Shutdown(context.Background()))
}

func TestNewProviderEnabled(t *testing.T) {
	// gRPC dials lazily so no collector is needed for construction.
	p, err := New(context.Background(), FromEndpoint("127.0.0.1:1", "test"))
	require.NoError(t, err)
	require.True(t, p.Enabled())

	_, finish := p.TrackOperation(context.Background(), "verify-manifest")
	p.RecordGate(context.Background(), "alerts_ok", false)
	finish(nil)

	// Nothing listens on the endpoint; flushing may time out.
	ctx, cancel := context.WithTimeout(context.Background(), 200*time.Millisecond)
	defer cancel()
	_ = p.Shutdown(ctx)
}

func TestNewResourceMergesWithSDKDefault(t *testing.T) {
	res, err := newResource(FromEndpoint("collector:4317", "staging"))
	require.NoError(t, err)
	require.Equal(t, resource.Default().SchemaURL(), res.SchemaURL())

	attrs := map[string]string{}
	for _, kv := range res.Attributes() {
		attrs[string(kv.Key)] = kv.Value.Emit()
	}
	require.Equal(t, "golive", attrs["service.name"])
	require.Equal(t, "1.0.0", attrs["service.version"])
	require.Equal(t, "staging", attrs["deployment.environment"])
	require.NotEmpty(t, attrs["telemetry.sdk.language"])
}

func TestTrackOperationRecordsSpan(t *testing.T) {
	rec := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(rec))
	t.Cleanup(func() { _ = tp.Shutdown(context.Background()) })

	p, err := New(context.Background(), DefaultConfig())
	require.NoError(t, err)
	p.tracer = tp.Tracer(instrumentationName)

	_, finish := p.TrackOperation(context.Background(), "bundle", attribute.String("golive.bundle", "out.zip"))
	finish(nil)
	_, finish = p.TrackOperation(context.Background(), "checklist")
	finish(errors.New("gate failed"))

	spans := rec.Ended()
	require.Len(t, spans, 2)
	require.Equal(t, "bundle", spans[0].Name())
	require.Contains(t, spans[0].Attributes(), attribute.String("golive.bundle", "out.zip"))
	require.Empty(t, spans[0].Events())

	require.Equal(t, "checklist", spans[1].Name())
	require.Len(t, spans[1].Events(), 1)
	require.Equal(t, "exception", spans[1].Events()[0].Name)
	require.Equal(t, codes.Unset, spans[1].Status().Code)
}
