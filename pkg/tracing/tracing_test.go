package tracing

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"campus-events/config"
)

func TestNewProvider_Disabled(t *testing.T) {
	p, err := NewProvider(context.Background(), &config.TracingConfig{Enabled: false})
	require.NoError(t, err)
	assert.False(t, p.Enabled())

	_, span := p.Tracer().Start(context.Background(), "noop")
	span.End()
	assert.False(t, span.SpanContext().IsValid())
	assert.NoError(t, p.Shutdown(context.Background()))
}

func TestNewProvider_NoExporter(t *testing.T) {
	p, err := NewProvider(context.Background(), &config.TracingConfig{
		Enabled:  true,
		Exporter: "none",
	})
	require.NoError(t, err)
	assert.True(t, p.Enabled())

	_, span := p.Tracer().Start(context.Background(), "register")
	assert.True(t, span.SpanContext().IsValid())
	span.End()
	assert.NoError(t, p.Shutdown(context.Background()))
}

func TestNewProvider_UnknownExporter(t *testing.T) {
	_, err := NewProvider(context.Background(), &config.TracingConfig{
		Enabled:  true,
		Exporter: "zipkin",
	})
	assert.Error(t, err)
}
