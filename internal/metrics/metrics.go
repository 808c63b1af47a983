// Package metrics provides Prometheus metrics for the command surface, the
// settings store and the window registry.
package metrics

import (
	"errors"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "livejar"

// Command results
const (
	ResultOK      = "ok"
	ResultInvalid = "invalid"
	ResultError   = "error"
)

var (
	commandsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "commands_total",
		Help:      "Commands handled, by command and result",
	}, []string{"command", "result"})

	storeWritesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "store_writes_total",
		Help:      "Settings document writes, by result",
	}, []string{"result"})

	soloTotal = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "solo_total",
		Help:      "Solo commands applied",
	})
)

// ObserveCommand counts one handled command
func ObserveCommand(command, result string) {
	commandsTotal.WithLabelValues(command, result).Inc()
}

// ObserveStoreWrite counts one store write; it matches config.WriteObserver
func ObserveStoreWrite(err error) {
	if err != nil {
		storeWritesTotal.WithLabelValues(ResultError).Inc()
		return
	}
	storeWritesTotal.WithLabelValues(ResultOK).Inc()
}

// ObserveSolo counts one solo command
func ObserveSolo() {
	soloTotal.Inc()
}

// RegisterOpenWindows exposes livejar_open_windows backed by count.
// Registering twice keeps the first collector.
func RegisterOpenWindows(count func() int) error {
	gauge := prometheus.NewGaugeFunc(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "open_windows",
		Help:      "Stream windows currently registered",
	}, func() float64 { return float64(count()) })

	if err := prometheus.Register(gauge); err != nil {
		var already prometheus.AlreadyRegisteredError
		if errors.As(err, &already) {
			return nil
		}
		return err
	}
	return nil
}

// Handler returns the Prometheus metrics HTTP handler
func Handler() http.Handler {
	return promhttp.Handler()
}
