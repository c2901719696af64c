package joinql_test

import (
	"bytes"
	"context"
	"log/slog"
	"strings"
	"testing"
	"time"

	metricnoop "go.opentelemetry.io/otel/metric/noop"
	tracenoop "go.opentelemetry.io/otel/trace/noop"

	"github.com/arllen133/joinql"
)

func newTestLogger(buf *bytes.Buffer, level slog.Level) *slog.Logger {
	return slog.New(slog.NewTextHandler(buf, &slog.HandlerOptions{Level: level}))
}

func TestWithLogger(t *testing.T) {
	var buf bytes.Buffer
	cb := newBuilder(joinql.JPA,
		joinql.WithLogger(newTestLogger(&buf, slog.LevelDebug)),
		joinql.WithBuildLogging(true),
		joinql.WithSlowBuildThreshold(time.Hour),
	).From("Document", "d").Where("d.owner.name").Eq("x")

	query, _, err := cb.Build()
	if err != nil {
		t.Fatalf("failed to build: %v", err)
	}

	logOutput := buf.String()
	for _, want := range []string{"query built", "created join node", "alias=owner_1", "builder=" + cb.ID()} {
		if !strings.Contains(logOutput, want) {
			t.Errorf("expected %q in log, got: %s", want, logOutput)
		}
	}
	if !strings.Contains(logOutput, query) {
		t.Errorf("expected the rendered query in log, got: %s", logOutput)
	}
}

func TestWithSlowBuildThreshold(t *testing.T) {
	var buf bytes.Buffer
	cb := newBuilder(joinql.JPA,
		joinql.WithLogger(newTestLogger(&buf, slog.LevelWarn)),
		joinql.WithSlowBuildThreshold(time.Nanosecond), // Very low threshold to trigger warning
	).From("Document", "d")

	if _, _, err := cb.Build(); err != nil {
		t.Fatalf("failed to build: %v", err)
	}
	if !bytes.Contains(buf.Bytes(), []byte("slow build")) {
		t.Errorf("expected 'slow build' warning in log, got: %s", buf.String())
	}
}

func TestBuildFailureIsLogged(t *testing.T) {
	var buf bytes.Buffer
	cb := newBuilder(joinql.JPA,
		joinql.WithLogger(newTestLogger(&buf, slog.LevelError)),
	).From("Document", "d").
		EntityJoinOn("d", "Person", "p", joinql.LeftJoin).
		On("p.name").EqExpression("d.name").
		End()

	if _, _, err := cb.Build(); err == nil {
		t.Fatal("expected the outer entity join to fail")
	}
	if !bytes.Contains(buf.Bytes(), []byte("build failed")) {
		t.Errorf("expected 'build failed' in log, got: %s", buf.String())
	}
}

func TestQuietByDefault(t *testing.T) {
	var buf bytes.Buffer
	cb := newBuilder(joinql.JPA,
		joinql.WithLogger(newTestLogger(&buf, slog.LevelInfo)),
		joinql.WithSlowBuildThreshold(time.Hour),
	).From("Document", "d")

	if _, _, err := cb.Build(); err != nil {
		t.Fatalf("failed to build: %v", err)
	}
	if buf.Len() != 0 {
		t.Errorf("expected no log output, got: %s", buf.String())
	}
}

func TestWithTracerAndMeter(t *testing.T) {
	cb := newBuilder(joinql.Hibernate,
		joinql.WithTracer(tracenoop.NewTracerProvider().Tracer("test")),
		joinql.WithMeter(metricnoop.NewMeterProvider().Meter("test")),
	).From("Document", "d").Where("d.owner.id").Eq(1)

	query, _, err := cb.BuildContext(context.Background())
	if err != nil {
		t.Fatalf("failed to build with tracer: %v", err)
	}
	if query != "SELECT d FROM Document d WHERE d.owner.id = ?1" {
		t.Errorf("unexpected query %q", query)
	}
}

func TestWithDefaultTracerAndMeter(t *testing.T) {
	// Just test that it doesn't panic
	cb := newBuilder(joinql.JPA,
		joinql.WithDefaultTracer(),
		joinql.WithDefaultMeter(),
	).From("Nope", "n")

	if _, _, err := cb.Build(); err == nil {
		t.Fatal("expected an error for an unknown entity")
	}
}

func TestCopySharesObservability(t *testing.T) {
	var buf bytes.Buffer
	cb := newBuilder(joinql.JPA,
		joinql.WithLogger(newTestLogger(&buf, slog.LevelDebug)),
		joinql.WithBuildLogging(true),
		joinql.WithSlowBuildThreshold(time.Hour),
	).From("Document", "d")

	copied := cb.Copy()
	if _, _, err := copied.Build(); err != nil {
		t.Fatalf("failed to build copy: %v", err)
	}
	if !strings.Contains(buf.String(), "builder="+copied.ID()) {
		t.Errorf("expected the copy to log through the same logger, got: %s", buf.String())
	}
}
