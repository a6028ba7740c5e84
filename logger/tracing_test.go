package logger

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"strings"
	"testing"

	"go.opentelemetry.io/otel"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
)

func TestInitTracing(t *testing.T) {

	var buf bytes.Buffer
	shutdown, err := InitTracing(&buf, "bocs-test")
	if err != nil {
		t.Fatalf("InitTracing() failed: %v", err)
	}
	_, span := otel.Tracer("test").Start(context.Background(), "brokerage.Book.Record")
	span.End()
	if err := shutdown(context.Background()); err != nil {
		t.Fatalf("shutdown failed: %v", err)
	}

	out := buf.String()
	for _, want := range []string{`"Name":"brokerage.Book.Record"`, `"bocs-test"`} {
		if !strings.Contains(out, want) {
			t.Errorf("exported spans do not contain %s:\n%s", want, out)
		}
	}
}

func TestSpanHandler(t *testing.T) {
	defer slog.SetDefault(slog.Default())

	var buf bytes.Buffer
	l := New(&buf, "info", "json")

	tp := sdktrace.NewTracerProvider()
	defer tp.Shutdown(context.Background())
	ctx, span := tp.Tracer("test").Start(context.Background(), "edit")
	l.InfoContext(ctx, "transaction edited")
	span.End()

	var rec map[string]any
	if err := json.Unmarshal(bytes.TrimSpace(buf.Bytes()), &rec); err != nil {
		t.Fatalf("output is not JSON: %v: %s", err, buf.String())
	}
	if got, want := rec["trace_id"], span.SpanContext().TraceID().String(); got != want {
		t.Errorf("trace_id = %v, want %v", got, want)
	}
	if got, want := rec["span_id"], span.SpanContext().SpanID().String(); got != want {
		t.Errorf("span_id = %v, want %v", got, want)
	}

	buf.Reset()
	l.Info("no span")
	if strings.Contains(buf.String(), "trace_id") {
		t.Errorf("record outside a span has a trace_id: %s", buf.String())
	}
}
