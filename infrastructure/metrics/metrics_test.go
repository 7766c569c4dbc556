package metrics

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestRecordCut(t *testing.T) {
	before := testutil.ToFloat64(cutsTotal.WithLabelValues("timed_out"))
	RecordCut("timed_out", 2*time.Second)
	after := testutil.ToFloat64(cutsTotal.WithLabelValues("timed_out"))

	if after-before != 1 {
		t.Errorf("cuts_total{timed_out} increased by %v, want 1", after-before)
	}
}

func TestCutStarted(t *testing.T) {
	before := testutil.ToFloat64(cutsInFlight)
	done := CutStarted()
	if got := testutil.ToFloat64(cutsInFlight); got != before+1 {
		t.Errorf("in-flight = %v, want %v", got, before+1)
	}
	done()
	if got := testutil.ToFloat64(cutsInFlight); got != before {
		t.Errorf("in-flight after done = %v, want %v", got, before)
	}
}

func TestRecordSweep(t *testing.T) {
	deletedBefore := testutil.ToFloat64(janitorFilesDeleted)
	errorsBefore := testutil.ToFloat64(janitorSweepsTotal.WithLabelValues("error"))

	RecordSweep(true, 3, 300)
	RecordSweep(false, 0, 0)

	if got := testutil.ToFloat64(janitorFilesDeleted) - deletedBefore; got != 3 {
		t.Errorf("files deleted increased by %v, want 3", got)
	}
	if got := testutil.ToFloat64(janitorSweepsTotal.WithLabelValues("error")) - errorsBefore; got != 1 {
		t.Errorf("error sweeps increased by %v, want 1", got)
	}
}

func TestHandler(t *testing.T) {
	RecordProcessRun("exited")

	rec := httptest.NewRecorder()
	Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "streamcutter_process_runs_total") {
		t.Error("expected process run metric in exposition output")
	}
}
