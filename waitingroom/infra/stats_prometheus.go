package infra

import (
	"context"
	"errors"
	"strconv"

	"flashsale-gateway/waitingroom/domain"

	"github.com/prometheus/client_golang/prometheus"
)

const metricsNamespace = "waitingroom"

// PrometheusStats transforma eventos em contadores.
type PrometheusStats struct {
	events *prometheus.CounterVec
	units  *prometheus.CounterVec
}

func NewPrometheusStats(reg prometheus.Registerer) (*PrometheusStats, error) {
	s := &PrometheusStats{
		events: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "events_total",
			Help:      "Waiting room events by kind, product and rejection reason.",
		}, []string{"kind", "product", "reason"}),
		units: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "units_sold_total",
			Help:      "Units sold through committed purchases.",
		}, []string{"product"}),
	}
	for _, c := range []prometheus.Collector{s.events, s.units} {
		if err := reg.Register(c); err != nil {
			return nil, err
		}
	}
	return s, nil
}

func (s *PrometheusStats) Record(_ context.Context, ev domain.StatsEvent) error {
	product := ""
	if ev.ProductID != 0 {
		product = strconv.FormatInt(int64(ev.ProductID), 10)
	}
	s.events.WithLabelValues(string(ev.Kind), product, ev.Reason).Inc()
	if ev.Kind == domain.EventPurchased && ev.Quantity > 0 {
		s.units.WithLabelValues(product).Add(float64(ev.Quantity))
	}
	return nil
}

// MultiStats repassa cada evento para todos os stores e junta os erros.
type MultiStats []domain.StatsStore

func (m MultiStats) Record(ctx context.Context, ev domain.StatsEvent) error {
	var errs []error
	for _, s := range m {
		if s == nil {
			continue
		}
		if err := s.Record(ctx, ev); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// WindowSource lista as janelas de admissão (implementado pelo AdmissionController).
type WindowSource interface {
	Snapshots() []domain.WindowSnapshot
}

// WindowCollector expõe o estado das janelas como gauges, lidos a cada scrape.
type WindowCollector struct {
	src WindowSource

	admittedThrough *prometheus.Desc
	capacity        *prometheus.Desc
	outstanding     *prometheus.Desc
	waiting         *prometheus.Desc
	remaining       *prometheus.Desc
	lastSequence    *prometheus.Desc
}

func NewWindowCollector(src WindowSource) *WindowCollector {
	labels := []string{"product"}
	desc := func(name, help string) *prometheus.Desc {
		return prometheus.NewDesc(prometheus.BuildFQName(metricsNamespace, "window", name), help, labels, nil)
	}
	return &WindowCollector{
		src:             src,
		admittedThrough: desc("admitted_through", "Highest sequence number allowed to purchase."),
		capacity:        desc("capacity", "Stock snapshotted when the window opened."),
		outstanding:     desc("outstanding", "Admitted tokens not yet consumed or expired."),
		waiting:         desc("waiting", "Unconsumed queue entries."),
		remaining:       desc("remaining_stock", "Units left in stock."),
		lastSequence:    desc("last_sequence", "Last sequence number issued."),
	}
}

func (c *WindowCollector) Describe(ch chan<- *prometheus.Desc) {
	ch <- c.admittedThrough
	ch <- c.capacity
	ch <- c.outstanding
	ch <- c.waiting
	ch <- c.remaining
	ch <- c.lastSequence
}

func (c *WindowCollector) Collect(ch chan<- prometheus.Metric) {
	for _, snap := range c.src.Snapshots() {
		product := strconv.FormatInt(int64(snap.ProductID), 10)
		gauge := func(d *prometheus.Desc, v float64) {
			ch <- prometheus.MustNewConstMetric(d, prometheus.GaugeValue, v, product)
		}
		gauge(c.admittedThrough, float64(snap.AdmittedThrough))
		gauge(c.capacity, float64(snap.Capacity))
		gauge(c.outstanding, float64(snap.Outstanding))
		gauge(c.waiting, float64(snap.Waiting))
		gauge(c.remaining, float64(snap.Remaining))
		gauge(c.lastSequence, float64(snap.LastSequence))
	}
}
