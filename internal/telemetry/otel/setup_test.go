package otel

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
)

func TestNewProviders_EmptyEndpoint(t *testing.T) {
	for _, endpoint := range []string{"", "   "} {
		providers, err := NewProviders(context.Background(), endpoint, "authcore-test", false)
		require.NoError(t, err)
		assert.NotNil(t, providers.TracerProvider)
		assert.NotNil(t, providers.MeterProvider)
		assert.NotNil(t, providers.LoggerProvider)
		require.NotNil(t, providers.Shutdown)
		assert.NoError(t, providers.Shutdown(context.Background()))
		assert.NoError(t, providers.Shutdown(context.Background()))
	}
}

func TestNewProviders_InvalidEndpoint(t *testing.T) {
	for _, endpoint := range []string{"://invalid", "http://[invalid", "http://"} {
		t.Run(endpoint, func(t *testing.T) {
			_, err := NewProviders(context.Background(), endpoint, "authcore-test", false)
			assert.Error(t, err)
		})
	}
}

// Exporters dial lazily, so a well-formed endpoint succeeds without a collector.
func TestNewProviders_EndpointForms(t *testing.T) {
	cases := []struct {
		name     string
		endpoint string
		insecure bool
	}{
		{"no scheme", "localhost:4317", false},
		{"http", "http://localhost:4317", false},
		{"https", "https://localhost:4317", false},
		{"https insecure override", "https://localhost:4317", true},
		{"path ignored", "http://localhost:4317/v1/traces", false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			providers, err := NewProviders(context.Background(), tc.endpoint, "authcore-test", tc.insecure)
			if err != nil {
				t.Skipf("exporter setup unavailable: %v", err)
			}
			ctx, cancel := context.WithCancel(context.Background())
			cancel()
			_ = providers.Shutdown(ctx)
		})
	}
}

func TestSetGlobal(t *testing.T) {
	oldTP := otel.GetTracerProvider()
	oldMP := otel.GetMeterProvider()
	oldProp := otel.GetTextMapPropagator()
	t.Cleanup(func() {
		otel.SetTracerProvider(oldTP)
		otel.SetMeterProvider(oldMP)
		otel.SetTextMapPropagator(oldProp)
	})

	providers, err := NewProviders(context.Background(), "", "authcore-test", false)
	require.NoError(t, err)
	providers.SetGlobal()
	assert.Same(t, providers.TracerProvider, otel.GetTracerProvider())
	assert.Contains(t, otel.GetTextMapPropagator().Fields(), "traceparent")
}

func TestSetGlobal_PartialProviders(t *testing.T) {
	oldTP := otel.GetTracerProvider()
	oldMP := otel.GetMeterProvider()
	oldProp := otel.GetTextMapPropagator()
	t.Cleanup(func() {
		otel.SetTracerProvider(oldTP)
		otel.SetMeterProvider(oldMP)
		otel.SetTextMapPropagator(oldProp)
	})

	tp := sdktrace.NewTracerProvider()
	t.Cleanup(func() { _ = tp.Shutdown(context.Background()) })
	(&Providers{TracerProvider: tp}).SetGlobal()
	assert.Same(t, tp, otel.GetTracerProvider())
	assert.Equal(t, oldMP, otel.GetMeterProvider())
}

func TestParseCollector(t *testing.T) {
	cases := []struct {
		endpoint      string
		forceInsecure bool
		want          collector
	}{
		{"localhost:4317", false, collector{target: "localhost:4317", insecure: true}},
		{"https://collector:4317/v1/traces", false, collector{target: "collector:4317", insecure: false}},
		{"https://collector:4317", true, collector{target: "collector:4317", insecure: true}},
	}
	for _, tc := range cases {
		got, err := parseCollector(tc.endpoint, tc.forceInsecure)
		require.NoError(t, err, tc.endpoint)
		assert.Equal(t, tc.want, got, tc.endpoint)
	}
}

func TestShutdownStack_ReverseOrderJoinsErrors(t *testing.T) {
	var order []int
	var stack shutdownStack
	stack.push(func(context.Context) error { order = append(order, 1); return nil })
	stack.push(func(context.Context) error { order = append(order, 2); return errors.New("exporter closed") })

	err := stack.shutdown(context.Background())
	assert.ErrorContains(t, err, "exporter closed")
	assert.Equal(t, []int{2, 1}, order)
}
