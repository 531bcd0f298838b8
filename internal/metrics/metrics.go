// Package metrics собирает Prometheus-метрики поиска и ленты комментариев.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const (
	MetricSearchTotal           = "content_search_total"
	MetricSearchDuration        = "content_search_duration_seconds"
	MetricCommentPagesTotal     = "content_comment_pages_total"
	MetricCommentMutationsTotal = "content_comment_mutations_total"
)

// Metrics безопасен для конкурентного использования. Методы nil-получателя ничего не делают.
type Metrics struct {
	searchTotal      *prometheus.CounterVec
	searchDuration   *prometheus.HistogramVec
	commentPages     *prometheus.CounterVec
	commentMutations *prometheus.CounterVec
}

// NewMetrics создает коллекторы; регистрация выполняется отдельно через Register.
func NewMetrics() *Metrics {
	return &Metrics{
		searchTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: MetricSearchTotal,
				Help: "Total number of post searches by outcome (ranked, fallback, empty)",
			},
			[]string{"outcome"},
		),
		searchDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    MetricSearchDuration,
				Help:    "Post search latency in seconds by outcome",
				Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1},
			},
			[]string{"outcome"},
		),
		commentPages: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: MetricCommentPagesTotal,
				Help: "Total number of comment pages served by context (top_level, replies)",
			},
			[]string{"context", "has_more"},
		),
		commentMutations: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: MetricCommentMutationsTotal,
				Help: "Total number of successful comment mutations by operation",
			},
			[]string{"operation"},
		),
	}
}

// Register регистрирует все коллекторы в реестре.
func (m *Metrics) Register(reg prometheus.Registerer) error {
	for _, c := range m.Collectors() {
		if err := reg.Register(c); err != nil {
			return err
		}
	}
	return nil
}

func (m *Metrics) Collectors() []prometheus.Collector {
	return []prometheus.Collector{m.searchTotal, m.searchDuration, m.commentPages, m.commentMutations}
}

// ObserveSearch учитывает завершенный поиск.
func (m *Metrics) ObserveSearch(outcome string, took time.Duration) {
	if m == nil {
		return
	}
	m.searchTotal.WithLabelValues(outcome).Inc()
	m.searchDuration.WithLabelValues(outcome).Observe(took.Seconds())
}

func (m *Metrics) IncCommentPage(context string, hasMore bool) {
	if m == nil {
		return
	}
	label := "false"
	if hasMore {
		label = "true"
	}
	m.commentPages.WithLabelValues(context, label).Inc()
}

func (m *Metrics) IncCommentMutation(operation string) {
	if m == nil {
		return
	}
	m.commentMutations.WithLabelValues(operation).Inc()
}
