package metrics

import (
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// OrderMetrics содержит метрики операций над заказами.
type OrderMetrics struct {
	// Счётчики операций
	ordersCreated       prometheus.Counter
	transitionsApplied  *prometheus.CounterVec
	transitionsRejected *prometheus.CounterVec
	versionConflicts    prometheus.Counter
	notificationsQueued prometheus.Counter

	// Гистограммы времени выполнения
	createDuration     prometheus.Histogram
	transitionDuration prometheus.Histogram
}

// NewOrderMetrics создаёт новый экземпляр метрик заказов.
func NewOrderMetrics() *OrderMetrics {
	return newOrderMetricsWithRegisterer(prometheus.DefaultRegisterer)
}

func newOrderMetricsWithRegisterer(registerer prometheus.Registerer) *OrderMetrics {
	if registerer == nil {
		registerer = prometheus.DefaultRegisterer
	}

	return &OrderMetrics{
		ordersCreated: registerCounter(registerer, prometheus.CounterOpts{
			Name: "elsoug_orders_created_total",
			Help: "Total number of orders created",
		}),
		transitionsApplied: registerCounterVec(registerer, prometheus.CounterOpts{
			Name: "elsoug_order_transitions_total",
			Help: "Total number of applied status transitions by target status",
		}, []string{"status"}),
		transitionsRejected: registerCounterVec(registerer, prometheus.CounterOpts{
			Name: "elsoug_order_transitions_rejected_total",
			Help: "Total number of rejected status transitions by reason",
		}, []string{"reason"}),
		versionConflicts: registerCounter(registerer, prometheus.CounterOpts{
			Name: "elsoug_order_version_conflicts_total",
			Help: "Total number of optimistic locking conflicts on save",
		}),
		notificationsQueued: registerCounter(registerer, prometheus.CounterOpts{
			Name: "elsoug_order_notifications_queued_total",
			Help: "Total number of notification events enqueued to the outbox",
		}),
		createDuration: registerHistogram(registerer, prometheus.HistogramOpts{
			Name:    "elsoug_order_create_duration_seconds",
			Help:    "Duration of order creation in seconds",
			Buckets: prometheus.DefBuckets,
		}),
		transitionDuration: registerHistogram(registerer, prometheus.HistogramOpts{
			Name:    "elsoug_order_transition_duration_seconds",
			Help:    "Duration of status transitions in seconds",
			Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1.0, 2.5, 5.0},
		}),
	}
}

func registerCounter(registerer prometheus.Registerer, opts prometheus.CounterOpts) prometheus.Counter {
	collector := prometheus.NewCounter(opts)
	if err := registerer.Register(collector); err != nil {
		if alreadyRegistered, ok := err.(prometheus.AlreadyRegisteredError); ok {
			existing, ok := alreadyRegistered.ExistingCollector.(prometheus.Counter)
			if !ok {
				panic(fmt.Sprintf("collector %q already registered with unexpected type", opts.Name))
			}
			return existing
		}
		panic(fmt.Sprintf("register counter %q: %v", opts.Name, err))
	}
	return collector
}

func registerCounterVec(registerer prometheus.Registerer, opts prometheus.CounterOpts, labels []string) *prometheus.CounterVec {
	collector := prometheus.NewCounterVec(opts, labels)
	if err := registerer.Register(collector); err != nil {
		if alreadyRegistered, ok := err.(prometheus.AlreadyRegisteredError); ok {
			existing, ok := alreadyRegistered.ExistingCollector.(*prometheus.CounterVec)
			if !ok {
				panic(fmt.Sprintf("collector %q already registered with unexpected type", opts.Name))
			}
			return existing
		}
		panic(fmt.Sprintf("register counter vec %q: %v", opts.Name, err))
	}
	return collector
}

func registerHistogram(registerer prometheus.Registerer, opts prometheus.HistogramOpts) prometheus.Histogram {
	collector := prometheus.NewHistogram(opts)
	if err := registerer.Register(collector); err != nil {
		if alreadyRegistered, ok := err.(prometheus.AlreadyRegisteredError); ok {
			existing, ok := alreadyRegistered.ExistingCollector.(prometheus.Histogram)
			if !ok {
				panic(fmt.Sprintf("collector %q already registered with unexpected type", opts.Name))
			}
			return existing
		}
		panic(fmt.Sprintf("register histogram %q: %v", opts.Name, err))
	}
	return collector
}

// RecordOrderCreated увеличивает счётчик созданных заказов.
func (m *OrderMetrics) RecordOrderCreated() {
	m.ordersCreated.Inc()
}

// RecordTransition увеличивает счётчик применённых переходов.
func (m *OrderMetrics) RecordTransition(status string) {
	m.transitionsApplied.WithLabelValues(status).Inc()
}

// RecordTransitionRejected увеличивает счётчик отклонённых переходов.
func (m *OrderMetrics) RecordTransitionRejected(reason string) {
	m.transitionsRejected.WithLabelValues(reason).Inc()
}

// RecordVersionConflict увеличивает счётчик конфликтов optimistic locking.
func (m *OrderMetrics) RecordVersionConflict() {
	m.versionConflicts.Inc()
}

// RecordNotificationQueued увеличивает счётчик поставленных в outbox уведомлений.
func (m *OrderMetrics) RecordNotificationQueued() {
	m.notificationsQueued.Inc()
}

// RecordCreateDuration записывает время создания заказа.
func (m *OrderMetrics) RecordCreateDuration(duration time.Duration) {
	m.createDuration.Observe(duration.Seconds())
}

// RecordTransitionDuration записывает время применения перехода.
func (m *OrderMetrics) RecordTransitionDuration(duration time.Duration) {
	m.transitionDuration.Observe(duration.Seconds())
}
