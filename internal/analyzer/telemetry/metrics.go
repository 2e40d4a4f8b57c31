// Package telemetry provides opt-in, low-overhead instrumentation of
// the timing analyzer. It is safe to call from analysis loops: when
// disabled, all public functions are no-ops.
package telemetry

import (
	"net/http"
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Config controls the telemetry module.
//
// Notes:
//   - MetricsAddr, when non-empty, starts a dedicated HTTP server that
//     serves /metrics. If you already expose Prometheus elsewhere,
//     leave it empty and register promhttp yourself.
//   - LogInterval drives the exporter loop (see exporter.go); 0
//     disables it.
type Config struct {
	Enabled     bool
	MetricsAddr string        // e.g. ":9090"; empty disables the endpoint
	LogInterval time.Duration // summary log cadence; 0 disables
}

var (
	modEnabled atomic.Bool

	analysesTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "sta_analyses_total",
		Help: "Total completed timing analysis passes",
	})
	traversalsTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "sta_traversals_total",
		Help: "Total per-domain-pair traversal pairs performed",
	})
	loopsBrokenTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "sta_comb_loops_broken_total",
		Help: "Total timing graph edges cut to break combinational cycles",
	})
	danglingPinsTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "sta_dangling_pins_total",
		Help: "Total dangling (unused) pins seen during traversals",
	})
	analysisSeconds = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "sta_analysis_duration_seconds",
		Help:    "Wall-clock duration of full analysis passes",
		Buckets: prometheus.ExponentialBuckets(1e-4, 4, 10),
	})
	graphNodes = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "sta_graph_nodes",
		Help: "Timing graph node count of the current context",
	})
	graphLevels = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "sta_graph_levels",
		Help: "Topological level count of the current context",
	})
	criticalPathNs = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "sta_critical_path_ns",
		Help: "Critical path delay of the most recent analysis, in ns",
	})
	sinkSlackNs = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "sta_sink_slack_ns",
		Help:    "Distribution of final per-sink slacks, in ns",
		Buckets: prometheus.LinearBuckets(-10, 5, 12),
	})
)

func init() {
	// Register eagerly; harmless when no endpoint is exposed.
	prometheus.MustRegister(analysesTotal, traversalsTotal, loopsBrokenTotal,
		danglingPinsTotal, analysisSeconds, graphNodes, graphLevels,
		criticalPathNs, sinkSlackNs)
}

// Enable configures the module. Safe to call multiple times; each call
// replaces the enabled flag, but the summary exporter is started at most
// once and keeps the interval of the call that started it.
func Enable(cfg Config) {
	modEnabled.Store(cfg.Enabled)
	if !cfg.Enabled {
		return
	}
	if cfg.MetricsAddr != "" {
		go func() {
			mux := http.NewServeMux()
			mux.Handle("/metrics", promhttp.Handler())
			// Best effort: a dead metrics endpoint must not kill analysis.
			_ = (&http.Server{Addr: cfg.MetricsAddr, Handler: mux}).ListenAndServe()
		}()
	}
	if cfg.LogInterval > 0 {
		startExporter(cfg.LogInterval)
	}
}

// Enabled reports whether telemetry is active.
func Enabled() bool { return modEnabled.Load() }

// ObserveGraph records the shape of a freshly built context.
func ObserveGraph(nodes, levels int) {
	if !Enabled() {
		return
	}
	graphNodes.Set(float64(nodes))
	graphLevels.Set(float64(levels))
}

// ObserveAnalysis records one completed analysis pass.
func ObserveAnalysis(d time.Duration, traversals int, criticalPathSeconds float64) {
	if !Enabled() {
		return
	}
	analysesTotal.Inc()
	traversalsTotal.Add(float64(traversals))
	analysisSeconds.Observe(d.Seconds())
	criticalPathNs.Set(criticalPathSeconds * 1e9)
	lastAnalyses.Add(1)
}

// ObserveLoopsBroken records combinational-loop repairs.
func ObserveLoopsBroken(n int) {
	if !Enabled() || n == 0 {
		return
	}
	loopsBrokenTotal.Add(float64(n))
}

// ObserveDanglingPins records unused-pin warnings.
func ObserveDanglingPins(n int64) {
	if !Enabled() || n == 0 {
		return
	}
	danglingPinsTotal.Add(float64(n))
}

// ObserveSinkSlack records one final per-sink slack, in seconds.
func ObserveSinkSlack(s float64) {
	if !Enabled() {
		return
	}
	sinkSlackNs.Observe(s * 1e9)
}
