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
// GraphQLリゾルバー、HTTPミドルウェア、ワーカーから利用する。
type MetricsCollector interface {
	RecordOperation(operation string, code string, duration time.Duration)
	RecordLoginFailure(reason string)
	RecordHTTPStatus(statusCode int)
	RecordContactsPurged(count int64)
}

// Collector はPrometheusメトリクスを収集する実装。
type Collector struct {
	operations     *prometheus.CounterVec
	operationTime  *prometheus.HistogramVec
	loginFailures  *prometheus.CounterVec
	httpStatus     *prometheus.CounterVec
	contactsPurged prometheus.Counter
}

// OutcomeOK は成功したオペレーションのcodeラベル値。
const OutcomeOK = "OK"

// NewCollector は新しいCollectorを生成し、指定されたレジストリにメトリクスを登録する。
func NewCollector(reg prometheus.Registerer) *Collector {
	c := &Collector{
		operations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "salonbook_graphql_operations_total",
			Help: "GraphQLオペレーションの実行数（結果コード別）",
		}, []string{"operation", "code"}),
		operationTime: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "salonbook_graphql_operation_duration_seconds",
			Help:    "GraphQLオペレーションの処理時間（秒）",
			Buckets: prometheus.DefBuckets,
		}, []string{"operation"}),
		loginFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "salonbook_login_failures_total",
			Help: "ログイン失敗の合計数（理由別）",
		}, []string{"reason"}),
		httpStatus: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "salonbook_http_status_total",
			Help: "HTTPステータスコード別のレスポンス数",
		}, []string{"status_code"}),
		contactsPurged: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "salonbook_contacts_purged_total",
			Help: "保持期間超過で削除されたお問い合わせの合計数",
		}),
	}

	reg.MustRegister(
		c.operations,
		c.operationTime,
		c.loginFailures,
		c.httpStatus,
		c.contactsPurged,
	)

	return c
}

// RecordOperation はGraphQLオペレーションの結果と処理時間を記録する。
// 成功時のcodeはOutcomeOK、失敗時はAPIErrorのコードを渡す。
func (c *Collector) RecordOperation(operation string, code string, duration time.Duration) {
	c.operations.WithLabelValues(operation, code).Inc()
	c.operationTime.WithLabelValues(operation).Observe(duration.Seconds())
}

// RecordLoginFailure はログイン失敗を記録する。
func (c *Collector) RecordLoginFailure(reason string) {
	c.loginFailures.WithLabelValues(reason).Inc()
}

// RecordHTTPStatus はHTTPステータスコードを記録する。
func (c *Collector) RecordHTTPStatus(statusCode int) {
	c.httpStatus.WithLabelValues(strconv.Itoa(statusCode)).Inc()
}

// RecordContactsPurged は削除されたお問い合わせ件数を記録する。
func (c *Collector) RecordContactsPurged(count int64) {
	c.contactsPurged.Add(float64(count))
}

// Handler はPrometheusスクレイプ用のHTTPハンドラーを返す。
func Handler(gatherer prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}

// NopCollector は何も記録しないMetricsCollector。
// メトリクスを必要としないテストやサブコマンドで使用する。
type NopCollector struct{}

func (NopCollector) RecordOperation(string, string, time.Duration) {}
func (NopCollector) RecordLoginFailure(string)                     {}
func (NopCollector) RecordHTTPStatus(int)                          {}
func (NopCollector) RecordContactsPurged(int64)                    {}

var (
	_ MetricsCollector = (*Collector)(nil)
	_ MetricsCollector = NopCollector{}
)
