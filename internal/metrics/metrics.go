// Package metrics はPrometheusメトリクスの収集と公開を提供する。
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// MetricsCollector はメトリクス収集のインターフェース。
// プロバイダーアダプターとアグリゲーターから利用する。
type MetricsCollector interface {
	RecordProviderSuccess(provider string)
	RecordProviderFailure(provider string, reason string)
	RecordProviderHTTPStatus(provider string, statusCode int)
	RecordProviderLatency(provider string, duration time.Duration)
	RecordArticlesFetched(provider string, count int)
	RecordAggregation(articleCount int, duration time.Duration)
}

// Collector はPrometheusメトリクスを収集する実装。
type Collector struct {
	providerSuccess    *prometheus.CounterVec
	providerFail       *prometheus.CounterVec
	providerHTTPStatus *prometheus.CounterVec
	providerLatency    *prometheus.HistogramVec
	articlesFetched    *prometheus.CounterVec
	aggregateArticles  prometheus.Histogram
	aggregateLatency   prometheus.Histogram
}

// NewCollector は新しいCollectorを生成し、指定されたレジストリにメトリクスを登録する。
func NewCollector(reg prometheus.Registerer) *Collector {
	c := &Collector{
		providerSuccess: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "newshub_provider_fetch_success_total",
			Help: "プロバイダー取得成功の合計数",
		}, []string{"provider"}),
		providerFail: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "newshub_provider_fetch_fail_total",
			Help: "プロバイダー取得失敗の合計数（理由別）",
		}, []string{"provider", "reason"}),
		providerHTTPStatus: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "newshub_provider_http_status_total",
			Help: "プロバイダーが返したHTTPステータスコード別のレスポンス数",
		}, []string{"provider", "status_code"}),
		providerLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "newshub_provider_fetch_latency_seconds",
			Help:    "プロバイダー取得のレイテンシ（秒）",
			Buckets: prometheus.DefBuckets,
		}, []string{"provider"}),
		articlesFetched: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "newshub_provider_articles_total",
			Help: "プロバイダーから取得した記事の合計数",
		}, []string{"provider"}),
		aggregateArticles: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "newshub_aggregate_articles",
			Help:    "1回の集約で返した記事数",
			Buckets: []float64{0, 10, 20, 40, 60},
		}),
		aggregateLatency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "newshub_aggregate_latency_seconds",
			Help:    "集約全体のレイテンシ（秒）",
			Buckets: prometheus.DefBuckets,
		}),
	}

	reg.MustRegister(
		c.providerSuccess,
		c.providerFail,
		c.providerHTTPStatus,
		c.providerLatency,
		c.articlesFetched,
		c.aggregateArticles,
		c.aggregateLatency,
	)

	return c
}

// RecordProviderSuccess はプロバイダー取得成功を記録する。
func (c *Collector) RecordProviderSuccess(provider string) {
	c.providerSuccess.WithLabelValues(provider).Inc()
}

// RecordProviderFailure はプロバイダー取得失敗を理由付きで記録する。
func (c *Collector) RecordProviderFailure(provider string, reason string) {
	c.providerFail.WithLabelValues(provider, reason).Inc()
}

// RecordProviderHTTPStatus はプロバイダーのHTTPステータスコードを記録する。
func (c *Collector) RecordProviderHTTPStatus(provider string, statusCode int) {
	c.providerHTTPStatus.WithLabelValues(provider, strconv.Itoa(statusCode)).Inc()
}

// RecordProviderLatency はプロバイダー取得のレイテンシを記録する。
func (c *Collector) RecordProviderLatency(provider string, duration time.Duration) {
	c.providerLatency.WithLabelValues(provider).Observe(duration.Seconds())
}

// RecordArticlesFetched はプロバイダーから取得した記事数を記録する。
func (c *Collector) RecordArticlesFetched(provider string, count int) {
	c.articlesFetched.WithLabelValues(provider).Add(float64(count))
}

// RecordAggregation は1回の集約結果を記録する。
func (c *Collector) RecordAggregation(articleCount int, duration time.Duration) {
	c.aggregateArticles.Observe(float64(articleCount))
	c.aggregateLatency.Observe(duration.Seconds())
}

// Nop は何も記録しないMetricsCollector。
// Collectorを注入しないテストや呼び出し元で使用する。
type Nop struct{}

func (Nop) RecordProviderSuccess(string)                {}
func (Nop) RecordProviderFailure(string, string)        {}
func (Nop) RecordProviderHTTPStatus(string, int)        {}
func (Nop) RecordProviderLatency(string, time.Duration) {}
func (Nop) RecordArticlesFetched(string, int)           {}
func (Nop) RecordAggregation(int, time.Duration)        {}

// Handler はPrometheusスクレイプ用のHTTPハンドラーを返す。
func Handler(gatherer prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}
