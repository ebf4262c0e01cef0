package metrics

import "github.com/prometheus/client_golang/prometheus"

// Option configures a Manager before its collectors are registered.
type Option func(*Manager)

// WithNamespace overrides the "pinta" metric namespace.
func WithNamespace(namespace string) Option {
	return func(m *Manager) {
		if namespace != "" {
			m.namespace = namespace
		}
	}
}

// WithSubsystem overrides the "wrapped" metric subsystem.
func WithSubsystem(subsystem string) Option {
	return func(m *Manager) {
		if subsystem != "" {
			m.subsystem = subsystem
		}
	}
}

// WithHistogramBuckets replaces the millisecond latency buckets.
func WithHistogramBuckets(buckets []float64) Option {
	return func(m *Manager) {
		if len(buckets) > 0 {
			m.histogramBuckets = append([]float64(nil), buckets...)
		}
	}
}

// WithConstLabels attaches fixed labels, such as the bar or deployment,
// to every collector.
func WithConstLabels(labels map[string]string) Option {
	return func(m *Manager) {
		if len(labels) == 0 {
			return
		}
		m.constLabels = make(prometheus.Labels, len(labels))
		for k, v := range labels {
			m.constLabels[k] = v
		}
	}
}

// WithPrometheusRegistry registers collectors on registry instead of the
// default registerer.
func WithPrometheusRegistry(registry prometheus.Registerer) Option {
	return func(m *Manager) {
		if registry != nil {
			m.registry = registry
		}
	}
}
