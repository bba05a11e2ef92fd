package messenger_test

import (
	"context"
	"messenger/internal/messenger"
	"messenger/pkg/metrics"
	"messenger/pkg/storage/memory"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
)

func TestOperationsAreTraced(t *testing.T) {
	recorder := tracetest.NewSpanRecorder()
	provider := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(recorder))
	t.Cleanup(func() { _ = provider.Shutdown(context.Background()) })

	m := messenger.New(memory.New(), messenger.Options{Tracer: provider.Tracer("test")})
	ctx := context.Background()

	_, err := m.RegisterUser(ctx, "alice")
	require.NoError(t, err)
	_, err = m.Inbox(ctx, "nobody")
	require.Error(t, err)

	spans := recorder.Ended()
	require.Len(t, spans, 2)

	require.Equal(t, "Messenger.RegisterUser", spans[0].Name())
	require.Equal(t, codes.Unset, spans[0].Status().Code)

	require.Equal(t, "Messenger.Inbox", spans[1].Name())
	require.Equal(t, codes.Error, spans[1].Status().Code)
	require.Equal(t, "unknown user: nobody", spans[1].Status().Description)
}

func TestOperationsAreMetered(t *testing.T) {
	ctx := context.Background()
	rec, err := metrics.New()
	require.NoError(t, err)
	t.Cleanup(func() { _ = rec.Shutdown(ctx) })

	m := messenger.New(memory.New(), messenger.Options{Metrics: rec})
	_, err = m.RegisterUser(ctx, "alice")
	require.NoError(t, err)
	_, err = m.RegisterUser(ctx, "alice")
	require.Error(t, err)
	_, err = m.ListUsers(ctx)
	require.NoError(t, err)

	samples, err := rec.Snapshot()
	require.NoError(t, err)

	value := func(prefix, labels string) float64 {
		for _, s := range samples {
			if strings.HasPrefix(s.Name, prefix) && s.LabelString() == labels {
				return s.Value
			}
		}
		t.Fatalf("no sample %s{%s} in %+v", prefix, labels, samples)

		return 0
	}

	require.InDelta(t, 2, value("messenger_operations", "operation=RegisterUser"), 0)
	require.InDelta(t, 1, value("messenger_operation_failures", "kind=CONFLICT,operation=RegisterUser"), 0)
	require.InDelta(t, 1, value("messenger_operations", "operation=ListUsers"), 0)
}
