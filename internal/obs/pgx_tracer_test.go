package obs

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
)

func TestPGXTracerSpans(t *testing.T) {
	spans := tracetest.NewSpanRecorder()
	prev := otel.GetTracerProvider()
	otel.SetTracerProvider(sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(spans)))
	t.Cleanup(func() { otel.SetTracerProvider(prev) })

	tracer := PGXTracer{}
	ctx := tracer.TraceQueryStart(context.Background(), nil, pgx.TraceQueryStartData{
		SQL:  "  select stock_quantity from products where id = $1 for update",
		Args: []any{"milk"},
	})
	tracer.TraceQueryEnd(ctx, nil, pgx.TraceQueryEndData{CommandTag: pgconn.NewCommandTag("SELECT 1")})

	ctx = tracer.TraceQueryStart(context.Background(), nil, pgx.TraceQueryStartData{SQL: "UPDATE coupons SET used_count = used_count + 1"})
	tracer.TraceQueryEnd(ctx, nil, pgx.TraceQueryEndData{Err: errors.New("serialization failure")})

	ended := spans.Ended()
	require.Len(t, ended, 2)
	require.Equal(t, "pg SELECT", ended[0].Name())
	require.Equal(t, "pg UPDATE", ended[1].Name())
	require.Equal(t, codes.Error, ended[1].Status().Code)
}

func TestPGXTracerEndWithoutSpan(t *testing.T) {
	require.NotPanics(t, func() {
		PGXTracer{}.TraceQueryEnd(context.Background(), nil, pgx.TraceQueryEndData{})
	})
}

func TestTruncateSQL(t *testing.T) {
	long := "SELECT " + strings.Repeat("x", maxStatementLen)
	require.Len(t, truncateSQL(long), maxStatementLen+3)
	require.Equal(t, "SELECT 1", truncateSQL("  SELECT 1 \n"))
	require.Equal(t, "query", operation("   "))
}
