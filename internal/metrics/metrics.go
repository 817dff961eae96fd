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
// ミドルウェアやサービス層から利用する。
type MetricsCollector interface {
	RecordHTTPRequest(method string, statusCode int)
	RecordRequestDuration(duration time.Duration)
	RecordRegistration()
	RecordLogin()
	RecordTasksExported(count int)
}

// Collector はPrometheusメトリクスを収集する実装。
type Collector struct {
	httpRequests    *prometheus.CounterVec
	requestDuration prometheus.Histogram
	registrations   prometheus.Counter
	logins          prometheus.Counter
	tasksExported   prometheus.Counter
}

// NewCollector は新しいCollectorを生成し、指定されたレジストリにメトリクスを登録する。
func NewCollector(reg prometheus.Registerer) *Collector {
	c := &Collector{
		httpRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "taskman_http_requests_total",
			Help: "HTTPメソッド・ステータスコード別のリクエスト数",
		}, []string{"method", "status_code"}),
		requestDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "taskman_http_request_duration_seconds",
			Help:    "HTTPリクエスト処理時間（秒）",
			Buckets: prometheus.DefBuckets,
		}),
		registrations: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "taskman_registrations_total",
			Help: "ユーザー登録成功の合計数",
		}),
		logins: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "taskman_logins_total",
			Help: "ログイン成功の合計数",
		}),
		tasksExported: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "taskman_tasks_exported_total",
			Help: "エクスポートされたタスクの合計数",
		}),
	}

	reg.MustRegister(
		c.httpRequests,
		c.requestDuration,
		c.registrations,
		c.logins,
		c.tasksExported,
	)

	return c
}

// RecordHTTPRequest はHTTPリクエストをメソッド・ステータスコード別に記録する。
func (c *Collector) RecordHTTPRequest(method string, statusCode int) {
	c.httpRequests.WithLabelValues(method, strconv.Itoa(statusCode)).Inc()
}

// RecordRequestDuration はリクエスト処理時間を記録する。
func (c *Collector) RecordRequestDuration(duration time.Duration) {
	c.requestDuration.Observe(duration.Seconds())
}

// RecordRegistration はユーザー登録成功を記録する。
func (c *Collector) RecordRegistration() {
	c.registrations.Inc()
}

// RecordLogin はログイン成功を記録する。
func (c *Collector) RecordLogin() {
	c.logins.Inc()
}

// RecordTasksExported はエクスポートされたタスク数を記録する。
func (c *Collector) RecordTasksExported(count int) {
	c.tasksExported.Add(float64(count))
}

// Handler はPrometheusスクレイプ用のHTTPハンドラーを返す。
func Handler(gatherer prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}

// SetupMetricsRoute は/metricsエンドポイントを提供するHTTPハンドラーを返す。
// Prometheusスクレイプに対応する。
func SetupMetricsRoute(gatherer prometheus.Gatherer) http.Handler {
	mux := http.NewServeMux()
	mux.Handle("/metrics", Handler(gatherer))
	return mux
}

// compile-time interface check
var _ MetricsCollector = (*Collector)(nil)
