// Package metrics exposes Prometheus metrics for the bridge.
//
// Metrics are registered once via Init and recorded through nil-guarded
// helpers, so callers never need to check whether metrics are enabled.
// Serve starts the optional /metrics HTTP listener.
package metrics

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const metricPrefix = "mbus_bridge_"

const (
	resultSuccess = "success"
	resultError   = "error"
)

var (
	registerOnce sync.Once

	pollsTotal   *prometheus.CounterVec
	pollDuration prometheus.Histogram

	scansTotal   *prometheus.CounterVec
	scanDuration prometheus.Histogram

	devicesDiscovered prometheus.Gauge
	devicesOnline     prometheus.Gauge

	commandsTotal *prometheus.CounterVec
)

// Init registers the bridge metrics with the default registry.
func Init() {
	registerOnce.Do(func() {
		pollsTotal = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "polls_total",
				Help: "Total device polls by result",
			},
			[]string{"result"},
		)
		pollDuration = prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    metricPrefix + "poll_cycle_duration_seconds",
				Help:    "Duration of full poll cycles in seconds",
				Buckets: prometheus.DefBuckets,
			},
		)

		scansTotal = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "scans_total",
				Help: "Total bus scans by result",
			},
			[]string{"result"},
		)
		scanDuration = prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    metricPrefix + "scan_duration_seconds",
				Help:    "Duration of bus scans in seconds",
				Buckets: []float64{1, 5, 15, 60, 300, 600, 1200},
			},
		)

		devicesDiscovered = prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: metricPrefix + "devices_discovered",
				Help: "Number of devices in the device table",
			},
		)
		devicesOnline = prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: metricPrefix + "devices_online",
				Help: "Number of devices currently online",
			},
		)

		commandsTotal = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "commands_total",
				Help: "Total MQTT commands received by command and result",
			},
			[]string{"command", "result"},
		)

		prometheus.MustRegister(
			pollsTotal,
			pollDuration,
			scansTotal,
			scanDuration,
			devicesDiscovered,
			devicesOnline,
			commandsTotal,
		)
	})
}

// IncPoll increments the poll counter for one device poll outcome.
func IncPoll(success bool) {
	if pollsTotal == nil {
		return
	}
	if success {
		pollsTotal.WithLabelValues(resultSuccess).Inc()
	} else {
		pollsTotal.WithLabelValues(resultError).Inc()
	}
}

// ObservePollCycle records the duration of a full poll cycle.
func ObservePollCycle(duration time.Duration) {
	if pollDuration != nil {
		pollDuration.Observe(duration.Seconds())
	}
}

// ObserveScan records a bus scan outcome and duration.
func ObserveScan(success bool, duration time.Duration) {
	result := resultSuccess
	if !success {
		result = resultError
	}
	if scansTotal != nil {
		scansTotal.WithLabelValues(result).Inc()
	}
	if scanDuration != nil {
		scanDuration.Observe(duration.Seconds())
	}
}

// SetDeviceCounts updates the discovered/online gauges.
func SetDeviceCounts(discovered, online int) {
	if devicesDiscovered != nil {
		devicesDiscovered.Set(float64(discovered))
	}
	if devicesOnline != nil {
		devicesOnline.Set(float64(online))
	}
}

// IncCommand records an MQTT command outcome.
func IncCommand(command string, accepted bool) {
	if commandsTotal == nil {
		return
	}
	result := resultSuccess
	if !accepted {
		result = resultError
	}
	commandsTotal.WithLabelValues(command, result).Inc()
}

// Serve runs the /metrics HTTP listener until ctx is cancelled.
func Serve(ctx context.Context, listen string) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())

	srv := &http.Server{
		Addr:              listen,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
