package observability

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestObserveTranslateCountsByModeAndOutcome(t *testing.T) {
	before := testutil.ToFloat64(translateRequestsTotal.WithLabelValues("optimize", "parse_error"))
	ObserveTranslate("optimize", "parse_error", 40*time.Millisecond)
	after := testutil.ToFloat64(translateRequestsTotal.WithLabelValues("optimize", "parse_error"))
	if after != before+1 {
		t.Fatalf("counter = %v, want %v", after, before+1)
	}
}

func TestObserveArchiveWriteCountsByKind(t *testing.T) {
	before := testutil.ToFloat64(archiveWritesTotal.WithLabelValues("ddl", "ok"))
	ObserveArchiveWrite("ddl", "ok")
	if got := testutil.ToFloat64(archiveWritesTotal.WithLabelValues("ddl", "ok")); got != before+1 {
		t.Fatalf("counter = %v", got)
	}
}
