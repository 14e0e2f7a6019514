// Package metrics счётчики и гистограммы рассылки напоминаний.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "lifecycle"

// Collector метрики рассылки. Регистрируется в явно переданном Registerer.
type Collector struct {
	dispatches    *prometheus.CounterVec
	sweepDuration prometheus.Histogram
	sweepSkipped  *prometheus.CounterVec
	lastSweep     prometheus.Gauge
}

// NewCollector создаёт метрики и регистрирует их в reg.
func NewCollector(reg prometheus.Registerer) *Collector {
	c := &Collector{
		dispatches: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "reminder_dispatch_total",
			Help:      "Reminder send attempts by mode, bucket and status.",
		}, []string{"mode", "bucket", "status"}),
		sweepDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "reminder_sweep_duration_seconds",
			Help:      "Duration of automatic reminder sweeps.",
			Buckets:   []float64{0.5, 1, 5, 15, 30, 60, 120, 300, 600},
		}),
		sweepSkipped: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "reminder_sweep_skipped_total",
			Help:      "Users skipped by automatic sweeps by reason.",
		}, []string{"reason"}),
		lastSweep: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "reminder_sweep_last_finished_timestamp_seconds",
			Help:      "Unix time of the last finished automatic sweep.",
		}),
	}
	reg.MustRegister(c.dispatches, c.sweepDuration, c.sweepSkipped, c.lastSweep)
	return c
}

// Noop возвращает Collector с собственным реестром, для тестов и утилит.
func Noop() *Collector {
	return NewCollector(prometheus.NewRegistry())
}

// Причины пропуска пользователя при обходе.
const (
	SkipAlreadySent = "already_sent"
	SkipFailedToday = "failed_today"
	SkipMalformed   = "malformed_date"
	SkipLedgerError = "ledger_error"
)

// ObserveDispatch учитывает одну попытку отправки.
func (c *Collector) ObserveDispatch(mode, bucket, status string) {
	c.dispatches.WithLabelValues(mode, bucket, status).Inc()
}

// ObserveSkip учитывает пропущенного пользователя.
func (c *Collector) ObserveSkip(reason string) {
	c.sweepSkipped.WithLabelValues(reason).Inc()
}

// ObserveSweep учитывает завершённый обход.
func (c *Collector) ObserveSweep(started, finished time.Time) {
	c.sweepDuration.Observe(finished.Sub(started).Seconds())
	c.lastSweep.Set(float64(finished.Unix()))
}
