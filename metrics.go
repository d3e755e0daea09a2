package cnc

import (
	"context"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds the dispatch collectors.
type Metrics struct {
	Requests       *prometheus.CounterVec
	Failures       *prometheus.CounterVec
	Duration       *prometheus.HistogramVec
	ClausesWritten prometheus.Counter
	BlockBytes     prometheus.Counter
	SuspectDevices prometheus.Gauge
}

// NewMetrics creates the collectors and registers them with reg. A nil reg
// leaves them unregistered.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		Requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "awg_requests_total",
			Help: "Requests handled, by command and reply status.",
		}, []string{"cmd", "status"}),

		Failures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "awg_request_failures_total",
			Help: "Failed requests by error kind.",
		}, []string{"kind"}),

		Duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "awg_request_duration_seconds",
			Help:    "Time from dispatch to reply status.",
			Buckets: prometheus.DefBuckets,
		}, []string{"cmd"}),

		ClausesWritten: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "awg_clauses_written_total",
			Help: "Program messages written to instruments.",
		}),

		BlockBytes: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "awg_block_bytes_total",
			Help: "Bytes written to instruments in binary block transfers.",
		}),

		SuspectDevices: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "awg_suspect_devices",
			Help: "Devices whose connection timed out and should be reopened.",
		}),
	}

	if reg != nil {
		reg.MustRegister(
			m.Requests,
			m.Failures,
			m.Duration,
			m.ClausesWritten,
			m.BlockBytes,
			m.SuspectDevices,
		)
	}
	return m
}

func (m *Metrics) observe(req Request, status Status, kind string, elapsed time.Duration) {
	m.Requests.WithLabelValues(string(req.Command), string(status)).Inc()
	m.Duration.WithLabelValues(string(req.Command)).Observe(elapsed.Seconds())
	if kind != "" {
		m.Failures.WithLabelValues(kind).Inc()
	}
}

func (m *Metrics) instrument(inst Instrument) Instrument {
	return meteredInstrument{Instrument: inst, m: m}
}

// meteredInstrument counts successful writes of the wrapped instrument.
type meteredInstrument struct {
	Instrument
	m *Metrics
}

func (mi meteredInstrument) WriteClause(ctx context.Context, clause string) error {
	err := mi.Instrument.WriteClause(ctx, clause)
	if err == nil {
		mi.m.ClausesWritten.Inc()
	}
	return err
}

func (mi meteredInstrument) WriteBlock(ctx context.Context, block []byte) error {
	err := mi.Instrument.WriteBlock(ctx, block)
	if err == nil {
		mi.m.BlockBytes.Add(float64(len(block)))
	}
	return err
}

func (mi meteredInstrument) WaitComplete(ctx context.Context) error {
	err := mi.Instrument.WaitComplete(ctx)
	if err == nil {
		mi.m.ClausesWritten.Inc()
	}
	return err
}

// CheckErrors forwards to the wrapped instrument when it can check errors.
func (mi meteredInstrument) CheckErrors(ctx context.Context) error {
	if ec, ok := mi.Instrument.(ErrorChecker); ok {
		return ec.CheckErrors(ctx)
	}
	return nil
}
