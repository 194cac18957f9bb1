package tracing

import (
	"bytes"
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"

	"github.com/Adithya-Monish-Kumar-K/docstore-admin/pkg/config"
)

func TestDisabledIsNoop(t *testing.T) {
	p, err := Setup(config.TracingConfig{Enabled: false}, "test")
	require.NoError(t, err)
	require.NoError(t, p.Shutdown(context.Background()))
}

func TestSpansAreExported(t *testing.T) {
	prev := otel.GetTracerProvider()
	t.Cleanup(func() { otel.SetTracerProvider(prev) })

	var buf bytes.Buffer
	p, err := SetupWriter(config.TracingConfig{Enabled: true, ServiceName: "emu", SampleRate: 1}, "v0", &buf)
	require.NoError(t, err)

	ctx, span := StartSpan(context.Background(), "CreateIndex", AttrResourceName.String("projects/p/databases/d"))
	assert.NotEmpty(t, TraceID(ctx))
	End(span, errors.New("boom"))

	require.NoError(t, p.Shutdown(context.Background()))
	assert.Contains(t, buf.String(), "CreateIndex")
	assert.Contains(t, buf.String(), "boom")
	assert.Empty(t, TraceID(context.Background()))
}
