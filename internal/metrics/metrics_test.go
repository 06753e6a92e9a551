package metrics

import (
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestRecorder_Counts(t *testing.T) {
	r := New()
	r.Turn("symptoms")
	r.Turn("symptoms")
	r.Turn("greeting")
	r.BookingCommitted()
	r.Grounding(GroundingHit)
	r.Grounding(GroundingMiss)
	r.Grounding(GroundingMiss)

	if got := testutil.ToFloat64(r.turns.WithLabelValues("symptoms")); got != 2 {
		t.Errorf("expected 2 symptom turns, got %v", got)
	}
	if got := testutil.ToFloat64(r.bookings); got != 1 {
		t.Errorf("expected 1 booking, got %v", got)
	}
	if got := testutil.ToFloat64(r.grounding.WithLabelValues(GroundingMiss)); got != 2 {
		t.Errorf("expected 2 grounding lookups, got %v", got)
	}
}

func TestRecorder_NilIsNoop(t *testing.T) {
	var r *Recorder
	r.Turn("greeting")
	r.ClassifierFallback()
	r.BookingCommitted()
	r.Cancellation()
	r.Grounding(GroundingError)
	r.StoreSave(nil)
	r.HTTPRequest(http.MethodGet, "/patients", http.StatusOK, time.Millisecond)
}

func TestRecorder_Handler(t *testing.T) {
	r := New()
	r.Cancellation()
	r.HTTPRequest(http.MethodGet, "/patients", http.StatusOK, 5*time.Millisecond)

	srv := httptest.NewServer(r.Handler())
	defer srv.Close()
	resp, err := http.Get(srv.URL)
	if err != nil {
		t.Fatalf("GET metrics: %v", err)
	}
	defer resp.Body.Close()
	body, _ := io.ReadAll(resp.Body)
	for _, want := range []string{"assistant_cancellations_total 1", `http_requests_total{endpoint="/patients",method="GET",status="OK"} 1`} {
		if !strings.Contains(string(body), want) {
			t.Errorf("expected %q in metrics output", want)
		}
	}
}
