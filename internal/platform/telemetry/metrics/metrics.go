package metrics

import (
	"errors"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/louisbranch/twinworks/internal/platform/timeouts"
)

const namespace = "twinworks"

// Recorder owns the collectors emitted by the things engine. A nil Recorder
// is valid and records nothing.
type Recorder struct {
	commands    *prometheus.CounterVec
	durations   *prometheus.HistogramVec
	validations *prometheus.CounterVec
	replication *prometheus.CounterVec
}

// NewRecorder creates a Recorder and registers its collectors on reg.
func NewRecorder(reg prometheus.Registerer) *Recorder {
	r := &Recorder{
		commands: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "engine",
			Name:      "commands_total",
			Help:      "Commands dispatched, by command type and result kind.",
		}, []string{"command", "result"}),
		durations: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "engine",
			Name:      "command_duration_seconds",
			Help:      "Time spent deciding a command, including asynchronous validation.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"command"}),
		validations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "validation",
			Name:      "results_total",
			Help:      "Structural validation outcomes.",
		}, []string{"outcome"}),
		replication: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "ddata",
			Name:      "writes_total",
			Help:      "Replicated writes by key, write consistency and outcome.",
		}, []string{"key", "consistency", "outcome"}),
	}
	if reg != nil {
		reg.MustRegister(r.commands, r.durations, r.validations, r.replication)
	}
	return r
}

// ObserveCommand records one dispatched command.
func (r *Recorder) ObserveCommand(command, result string, elapsed time.Duration) {
	if r == nil {
		return
	}
	r.commands.WithLabelValues(command, result).Inc()
	r.durations.WithLabelValues(command).Observe(elapsed.Seconds())
}

// ObserveValidation records a structural validation outcome.
func (r *Recorder) ObserveValidation(outcome string) {
	if r == nil {
		return
	}
	r.validations.WithLabelValues(outcome).Inc()
}

// ObserveReplicatorWrite records a replicated write attempt.
func (r *Recorder) ObserveReplicatorWrite(key, consistency string, err error) {
	if r == nil {
		return
	}
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	r.replication.WithLabelValues(key, consistency, outcome).Inc()
}

// CommandCount returns the counter for one command/result pair.
func (r *Recorder) CommandCount(command, result string) prometheus.Counter {
	return r.commands.WithLabelValues(command, result)
}

// Serve exposes the default Prometheus gatherer on addr. The returned stop
// function shuts the listener down.
func Serve(addr string, logger *slog.Logger) (func(), error) {
	if logger == nil {
		logger = slog.Default()
	}
	listener, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, err
	}
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	server := &http.Server{Handler: mux, ReadHeaderTimeout: timeouts.ReadHeader}
	go func() {
		if err := server.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("metrics server", "addr", addr, "error", err)
		}
	}()
	logger.Info("metrics listening", "addr", listener.Addr().String())
	return func() { _ = server.Close() }, nil
}
