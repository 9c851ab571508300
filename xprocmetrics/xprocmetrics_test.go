package xprocmetrics_test

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/prometheus/client_golang/prometheus/testutil"

	"code.hybscloud.com/xproc/xprocmetrics"
)

func TestObserveSend_IncrementsCounters(t *testing.T) {
	before := testutil.ToFloat64(xprocmetrics.BytesSent)
	beforeHandles := testutil.ToFloat64(xprocmetrics.HandlesSent)

	xprocmetrics.ObserveSend(128, 2)

	if got := testutil.ToFloat64(xprocmetrics.BytesSent); got != before+128 {
		t.Fatalf("BytesSent = %v want %v", got, before+128)
	}
	if got := testutil.ToFloat64(xprocmetrics.HandlesSent); got != beforeHandles+2 {
		t.Fatalf("HandlesSent = %v want %v", got, beforeHandles+2)
	}
}

func TestObserveRecv_IncrementsCounters(t *testing.T) {
	before := testutil.ToFloat64(xprocmetrics.BytesRecv)
	beforeHandles := testutil.ToFloat64(xprocmetrics.HandlesRecv)

	xprocmetrics.ObserveRecv(64, 1)

	if got := testutil.ToFloat64(xprocmetrics.BytesRecv); got != before+64 {
		t.Fatalf("BytesRecv = %v want %v", got, before+64)
	}
	if got := testutil.ToFloat64(xprocmetrics.HandlesRecv); got != beforeHandles+1 {
		t.Fatalf("HandlesRecv = %v want %v", got, beforeHandles+1)
	}
}

func TestDecodeFailuresTotal_LabeledByKind(t *testing.T) {
	before := testutil.ToFloat64(xprocmetrics.DecodeFailuresTotal.WithLabelValues("bad-entry"))
	xprocmetrics.DecodeFailuresTotal.WithLabelValues("bad-entry").Inc()
	if got := testutil.ToFloat64(xprocmetrics.DecodeFailuresTotal.WithLabelValues("bad-entry")); got != before+1 {
		t.Fatalf("DecodeFailuresTotal(bad-entry) = %v want %v", got, before+1)
	}
}

// TestMetricsHandler_ExposesRegisteredCounters exercises the same
// promhttp.Handler() ServeHTTP wires at /metrics, via httptest instead of a
// real listener so the test has no network timing to race.
func TestMetricsHandler_ExposesRegisteredCounters(t *testing.T) {
	xprocmetrics.SpawnsTotal.WithLabelValues("add").Inc()

	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	rec := httptest.NewRecorder()
	promhttp.Handler().ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d want %d", rec.Code, http.StatusOK)
	}
	if !strings.Contains(rec.Body.String(), "xproc_spawns_total") {
		t.Fatalf("expected xproc_spawns_total in metrics output")
	}
}
