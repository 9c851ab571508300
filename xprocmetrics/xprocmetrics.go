// Package xprocmetrics exposes Prometheus counters for bootstrap and
// transport activity, the same promauto/promhttp wiring
// kstaniek-go-ampio-server's internal/metrics uses for its CAN frame
// counters, scoped down to this module's own events.
package xprocmetrics

import (
	"context"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"code.hybscloud.com/xproc/xproclog"
)

var (
	// SpawnsTotal counts every successful bootstrap.Spawn call; failed calls
	// are counted by SpawnFailuresTotal instead.
	SpawnsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "xproc_spawns_total",
		Help: "Total successful bootstrap.Spawn calls, labeled by the registered entry id.",
	}, []string{"entry"})

	// SpawnFailuresTotal counts Spawn calls that returned an error before
	// the child process even started running its entry point.
	SpawnFailuresTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "xproc_spawn_failures_total",
		Help: "Spawn calls that failed before the child entry point ran.",
	}, []string{"entry"})

	// ChildExitCodeTotal counts child exit codes, labeled by entry and code,
	// distinguishing the ExitDecodeFailed/ExitPanic sentinels from ExitOK.
	ChildExitCodeTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "xproc_child_exit_code_total",
		Help: "Child process exit codes by entry id.",
	}, []string{"entry", "code"})

	// BytesSent and BytesRecv total payload bytes moved across all
	// transport.Endpoint instances, excluding the SCM_RIGHTS ancillary data.
	BytesSent = promauto.NewCounter(prometheus.CounterOpts{
		Name: "xproc_bytes_sent_total",
		Help: "Total payload bytes sent across all transport endpoints.",
	})
	BytesRecv = promauto.NewCounter(prometheus.CounterOpts{
		Name: "xproc_bytes_recv_total",
		Help: "Total payload bytes received across all transport endpoints.",
	})

	// HandlesSent and HandlesRecv total OS handles transferred.
	HandlesSent = promauto.NewCounter(prometheus.CounterOpts{
		Name: "xproc_handles_sent_total",
		Help: "Total OS handles sent across all transport endpoints.",
	})
	HandlesRecv = promauto.NewCounter(prometheus.CounterOpts{
		Name: "xproc_handles_recv_total",
		Help: "Total OS handles received across all transport endpoints.",
	})

	// DecodeFailuresTotal counts wire.Unmarshal failures, labeled by the
	// failing xerr sentinel's message so cardinality stays bounded.
	DecodeFailuresTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "xproc_decode_failures_total",
		Help: "Frame decode failures, labeled by error kind.",
	}, []string{"kind"})
)

// ObserveSend records one successful transport.Endpoint.Send.
func ObserveSend(payloadBytes, handleCount int) {
	BytesSent.Add(float64(payloadBytes))
	HandlesSent.Add(float64(handleCount))
}

// ObserveRecv records one successful transport.Endpoint.Recv.
func ObserveRecv(payloadBytes, handleCount int) {
	BytesRecv.Add(float64(payloadBytes))
	HandlesRecv.Add(float64(handleCount))
}

// ServeHTTP starts a /metrics listener on addr and returns the *http.Server
// so the caller can Shutdown it; a closed listener is logged, not fatal,
// matching how ampio-server's StartHTTP treats ErrServerClosed.
func ServeHTTP(addr string) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	srv := &http.Server{Addr: addr, Handler: mux}
	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			xproclog.L().Error("metrics_http_error", "error", err)
		}
	}()
	return srv
}

// Shutdown stops a server started by ServeHTTP.
func Shutdown(ctx context.Context, srv *http.Server) error {
	return srv.Shutdown(ctx)
}
