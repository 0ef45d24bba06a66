package database

import (
	"bytes"
	"context"
	"log/slog"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
)

func setupTestTracer(t *testing.T) *tracetest.InMemoryExporter {
	t.Helper()

	exporter := tracetest.NewInMemoryExporter()
	tp := sdktrace.NewTracerProvider(
		sdktrace.WithSyncer(exporter),
		sdktrace.WithSampler(sdktrace.AlwaysSample()),
	)

	prev := otel.GetTracerProvider()
	otel.SetTracerProvider(tp)

	t.Cleanup(func() {
		_ = tp.Shutdown(context.Background())
		otel.SetTracerProvider(prev)
	})

	return exporter
}

func tracedClient(t *testing.T, threshold time.Duration, l *slog.Logger) (*redis.Client, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	client.AddHook(NewCommandHook(threshold, l))
	t.Cleanup(func() { _ = client.Close() })
	return client, mr
}

func TestCommandHook_SpanPerCommand(t *testing.T) {
	exporter := setupTestTracer(t)
	client, _ := tracedClient(t, 0, nil)
	ctx := context.Background()

	require.NoError(t, client.Set(ctx, "cart:s1", "[]", 0).Err())

	var found bool
	for _, s := range exporter.GetSpans() {
		if s.Name != "redis.set" {
			continue
		}
		found = true
		attrs := make(map[string]string)
		for _, a := range s.Attributes {
			attrs[string(a.Key)] = a.Value.Emit()
		}
		assert.Equal(t, "redis", attrs["db.system"])
		assert.Equal(t, "set", attrs["db.operation"])
		assert.Equal(t, codes.Unset, s.Status.Code)
	}
	assert.True(t, found, "expected a redis.set span")
}

func TestCommandHook_MissIsNotAnError(t *testing.T) {
	exporter := setupTestTracer(t)
	client, _ := tracedClient(t, 0, nil)

	err := client.Get(context.Background(), "cart:missing").Err()
	require.ErrorIs(t, err, redis.Nil)

	for _, s := range exporter.GetSpans() {
		if s.Name == "redis.get" {
			assert.Equal(t, codes.Unset, s.Status.Code)
			return
		}
	}
	t.Fatal("expected a redis.get span")
}

func TestCommandHook_ErrorRecorded(t *testing.T) {
	exporter := setupTestTracer(t)
	client, mr := tracedClient(t, 0, nil)
	mr.SetError("ERR backend failure")

	require.Error(t, client.Get(context.Background(), "cart:s1").Err())

	for _, s := range exporter.GetSpans() {
		if s.Name == "redis.get" {
			assert.Equal(t, codes.Error, s.Status.Code)
			return
		}
	}
	t.Fatal("expected a redis.get span")
}

func TestCommandHook_SlowCommandLogged(t *testing.T) {
	setupTestTracer(t)
	var buf bytes.Buffer
	l := slog.New(slog.NewJSONHandler(&buf, &slog.HandlerOptions{Level: slog.LevelWarn}))
	client, _ := tracedClient(t, time.Nanosecond, l)

	require.NoError(t, client.Set(context.Background(), "k", "v", 0).Err())

	assert.Contains(t, buf.String(), "slow redis command")
	assert.Contains(t, buf.String(), `"operation":"set"`)
}

func TestCommandHook_Pipeline(t *testing.T) {
	exporter := setupTestTracer(t)
	client, _ := tracedClient(t, 0, nil)
	ctx := context.Background()

	_, err := client.Pipelined(ctx, func(p redis.Pipeliner) error {
		p.Set(ctx, "a", "1", 0)
		p.Get(ctx, "a")
		return nil
	})
	require.NoError(t, err)

	var names []string
	for _, s := range exporter.GetSpans() {
		names = append(names, s.Name)
	}
	assert.Contains(t, names, "redis.pipeline set get")
}
