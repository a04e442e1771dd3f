// Package metrics 定义采集流程的 Prometheus 指标
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "youthnews"

// 候选条目的处理结果
const (
	OutcomeAdded      = "added"
	OutcomeDuplicate  = "duplicate"
	OutcomeIrrelevant = "irrelevant"
	OutcomeSkipped    = "skipped"
)

// 抓取结果
const (
	StatusOK    = "ok"
	StatusError = "error"
)

// Metrics 一次采集运行中记录的全部指标；nil 接收者上的方法什么也不做
type Metrics struct {
	SourceFetches  *prometheus.CounterVec
	FetchDuration  *prometheus.HistogramVec
	Candidates     *prometheus.CounterVec
	ArticlesAdded  prometheus.Counter
	RunDuration    prometheus.Histogram
	RunsTotal      *prometheus.CounterVec
	StoredArticles prometheus.Gauge
	LastRunSuccess prometheus.Gauge
}

// New 在 reg 上注册指标；reg 为空时使用默认 registry
func New(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	factory := promauto.With(reg)

	return &Metrics{
		SourceFetches: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "source_fetches_total",
			Help:      "Source page fetches by outcome",
		}, []string{"source", "status"}),
		FetchDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "source_fetch_duration_seconds",
			Help:      "Time spent fetching one source page",
			Buckets:   prometheus.ExponentialBuckets(0.1, 2, 10),
		}, []string{"source"}),
		Candidates: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "candidates_total",
			Help:      "Extracted candidates by outcome",
		}, []string{"source", "outcome"}),
		ArticlesAdded: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "articles_added_total",
			Help:      "Articles appended to the store",
		}),
		RunDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "run_duration_seconds",
			Help:      "Duration of a full collection run",
			Buckets:   prometheus.ExponentialBuckets(1, 2, 10),
		}),
		RunsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "runs_total",
			Help:      "Collection runs by outcome",
		}, []string{"status"}),
		StoredArticles: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "stored_articles",
			Help:      "Articles in the store after the last run",
		}),
		LastRunSuccess: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "last_run_success_timestamp_seconds",
			Help:      "Unix time of the last successfully persisted run",
		}),
	}
}

func (m *Metrics) ObserveFetch(source string, d time.Duration, err error) {
	if m == nil {
		return
	}
	status := StatusOK
	if err != nil {
		status = StatusError
	}
	m.SourceFetches.WithLabelValues(source, status).Inc()
	m.FetchDuration.WithLabelValues(source).Observe(d.Seconds())
}

func (m *Metrics) ObserveCandidate(source, outcome string) {
	if m == nil {
		return
	}
	m.Candidates.WithLabelValues(source, outcome).Inc()
}

// ObserveRun 在一次运行结束时调用；err 非空表示持久化失败
func (m *Metrics) ObserveRun(d time.Duration, added, total int, finished time.Time, err error) {
	if m == nil {
		return
	}
	m.RunDuration.Observe(d.Seconds())
	if err != nil {
		m.RunsTotal.WithLabelValues(StatusError).Inc()
		return
	}
	m.RunsTotal.WithLabelValues(StatusOK).Inc()
	m.ArticlesAdded.Add(float64(added))
	m.StoredArticles.Set(float64(total))
	m.LastRunSuccess.Set(float64(finished.Unix()))
}
