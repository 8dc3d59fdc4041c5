package collector

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// HealthStats tracks per-source record counts and the last time each
// source produced anything, logged every HealthLogInterval and exposed as
// Prometheus counters on the dashboard server.
type HealthStats struct {
	mu       sync.Mutex
	received map[Kind]int64
	dropped  map[Kind]int64
	lastSeen map[Kind]time.Time

	receivedTotal *prometheus.CounterVec
	droppedTotal  *prometheus.CounterVec
}

// NewHealthStats builds an empty HealthStats with its Prometheus counters
// registered against reg (pass prometheus.NewRegistry() for test isolation,
// or prometheus.DefaultRegisterer in production).
func NewHealthStats(reg prometheus.Registerer) *HealthStats {
	factory := promauto.With(reg)
	return &HealthStats{
		received: make(map[Kind]int64),
		dropped:  make(map[Kind]int64),
		lastSeen: make(map[Kind]time.Time),
		receivedTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "collector_records_received_total",
			Help: "Records received from a producer, by source kind.",
		}, []string{"kind"}),
		droppedTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "collector_records_dropped_total",
			Help: "Records dropped because the shared channel was full, by source kind.",
		}, []string{"kind"}),
	}
}

func (h *HealthStats) recordReceived(kind Kind) {
	h.mu.Lock()
	h.received[kind]++
	h.lastSeen[kind] = time.Now()
	h.mu.Unlock()
	h.receivedTotal.WithLabelValues(string(kind)).Inc()
}

func (h *HealthStats) recordDropped(kind Kind) {
	h.mu.Lock()
	h.dropped[kind]++
	h.mu.Unlock()
	h.droppedTotal.WithLabelValues(string(kind)).Inc()
}

// Snapshot is a point-in-time copy of HealthStats, safe to log or range
// over without holding the lock.
type Snapshot struct {
	Received map[Kind]int64
	Dropped  map[Kind]int64
	LastSeen map[Kind]time.Time
}

func (h *HealthStats) snapshot() Snapshot {
	h.mu.Lock()
	defer h.mu.Unlock()
	s := Snapshot{
		Received: make(map[Kind]int64, len(h.received)),
		Dropped:  make(map[Kind]int64, len(h.dropped)),
		LastSeen: make(map[Kind]time.Time, len(h.lastSeen)),
	}
	for k, v := range h.received {
		s.Received[k] = v
	}
	for k, v := range h.dropped {
		s.Dropped[k] = v
	}
	for k, v := range h.lastSeen {
		s.LastSeen[k] = v
	}
	return s
}

// logHealth emits one structured log line per tracked source, the Go
// equivalent of the original's periodic HealthStats dump.
func (h *HealthStats) logHealth(logger *slog.Logger) {
	snap := h.snapshot()
	for kind, received := range snap.Received {
		logger.Info("collector health",
			"source", string(kind),
			"received", received,
			"dropped", snap.Dropped[kind],
			"last_seen", snap.LastSeen[kind].Format(time.RFC3339))
	}
}

// DashboardServer serves /healthz (liveness) and /metrics (Prometheus) for
// the collector orchestrator, adapted from the teacher's
// internal/api/server.go shape: a single *http.Server with a ServeMux,
// started and stopped by the orchestrator's lifecycle instead of a
// WebSocket dashboard hub.
type DashboardServer struct {
	server *http.Server
	logger *slog.Logger
}

// NewDashboardServer builds a dashboard HTTP server on port, backed by
// reg for /metrics.
func NewDashboardServer(port int, reg *prometheus.Registry, logger *slog.Logger) *DashboardServer {
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"status":"ok"}`))
	})
	mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))

	return &DashboardServer{
		server: &http.Server{
			Addr:         fmt.Sprintf(":%d", port),
			Handler:      mux,
			ReadTimeout:  15 * time.Second,
			WriteTimeout: 15 * time.Second,
			IdleTimeout:  60 * time.Second,
		},
		logger: logger.With("component", "collector-dashboard"),
	}
}

// Start blocks serving until Stop is called or the server errors.
func (d *DashboardServer) Start() error {
	d.logger.Info("dashboard server starting", "addr", d.server.Addr)
	if err := d.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("collector: dashboard server: %w", err)
	}
	return nil
}

// Stop gracefully shuts the server down.
func (d *DashboardServer) Stop() error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return d.server.Shutdown(ctx)
}
