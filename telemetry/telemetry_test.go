package telemetry_test

import (
	"context"
	"testing"

	"github.com/hayride-dev/hayride/telemetry"
)

func TestNoopImplementsInterfaces(t *testing.T) {
	tel := telemetry.Noop()

	tel.Logger.Info(context.Background(), "hello", "key", "value")
	tel.Metrics.IncCounter("threads_spawned", 1, "shape", "cli")

	ctx, span := tel.Tracer.Start(context.Background(), "db.query")
	span.AddEvent("rows_fetched", "count", 3)
	span.End()

	if ctx == nil {
		t.Fatal("expected non-nil context from Tracer.Start")
	}
}
