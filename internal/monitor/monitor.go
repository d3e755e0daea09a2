package monitor

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"runtime"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"
)

// HealthFunc returns the names of devices that need attention.
type HealthFunc func() []string

type Monitor struct {
	log        logrus.FieldLogger
	registry   *prometheus.Registry
	goroutines prometheus.Gauge
	memory     prometheus.Gauge
	health     HealthFunc
	server     *http.Server
}

// NewMonitor creates a registry holding the Go runtime collectors. Callers
// register their own collectors through Registerer.
func NewMonitor(log logrus.FieldLogger, health HealthFunc) *Monitor {
	m := &Monitor{
		log:      log,
		registry: prometheus.NewRegistry(),
		goroutines: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "awg_goroutines",
			Help: "Current number of goroutines.",
		}),
		memory: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "awg_memory_usage_bytes",
			Help: "Bytes of allocated heap objects.",
		}),
		health: health,
	}
	m.registry.MustRegister(m.goroutines, m.memory)
	return m
}

// Registerer returns the registry served on /metrics.
func (m *Monitor) Registerer() prometheus.Registerer {
	return m.registry
}

// Handler serves /metrics and /health. /health answers 503 and lists the
// suspect devices while any exist.
func (m *Monitor) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{}))
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		var suspect []string
		if m.health != nil {
			suspect = m.health()
		}
		if len(suspect) > 0 {
			w.WriteHeader(http.StatusServiceUnavailable)
			fmt.Fprintf(w, "SUSPECT %s\n", strings.Join(suspect, ","))
			return
		}
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("OK"))
	})
	return mux
}

// StartMetricsServer serves Handler on port in the background.
func (m *Monitor) StartMetricsServer(port int) {
	addr := fmt.Sprintf(":%d", port)
	m.server = &http.Server{
		Addr:              addr,
		Handler:           m.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}
	m.log.Infof("metrics server listening on %s", addr)

	go func() {
		if err := m.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			m.log.Errorf("metrics server: %v", err)
		}
	}()
}

// StartRuntimeMonitor samples goroutine count and heap size until ctx ends.
func (m *Monitor) StartRuntimeMonitor(ctx context.Context, every time.Duration) {
	ticker := time.NewTicker(every)

	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
			}
			m.sample()
		}
	}()
}

func (m *Monitor) sample() {
	var memStats runtime.MemStats
	runtime.ReadMemStats(&memStats)
	m.goroutines.Set(float64(runtime.NumGoroutine()))
	m.memory.Set(float64(memStats.Alloc))

	m.log.Debugf("goroutines: %d, memory: %.2f MB",
		runtime.NumGoroutine(),
		float64(memStats.Alloc)/1024/1024,
	)
}

// Shutdown stops the metrics server.
func (m *Monitor) Shutdown(ctx context.Context) error {
	if m.server == nil {
		return nil
	}
	return m.server.Shutdown(ctx)
}
