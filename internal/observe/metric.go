// Package observe 暴露 Prometheus 指标与结构化日志初始化
package observe

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// 指标定义
var (
	httpRequestDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "dataagents_http_request_duration_seconds",
		Help:    "HTTP API 请求耗时",
		Buckets: prometheus.DefBuckets,
	}, []string{"path", "method", "code"})

	providerRequests = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "dataagents_provider_requests_total",
		Help: "发往数据提供方的请求数，按状态码分组",
	}, []string{"adapter", "code"})

	providerRetries = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "dataagents_provider_retries_total",
		Help: "单页重试次数",
	}, []string{"adapter"})

	pagesFetched = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "dataagents_pages_fetched_total",
		Help: "分页引擎成功取回的页数",
	}, []string{"adapter"})

	queryDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "dataagents_adapter_query_duration_seconds",
		Help:    "适配器查询耗时，按结果分组",
		Buckets: []float64{.01, .05, .1, .25, .5, 1, 2.5, 5, 10, 30, 60},
	}, []string{"adapter", "outcome"})
)

// Register 必须在 main 调用一次
func Register() {
	prometheus.MustRegister(httpRequestDuration, providerRequests, providerRetries, pagesFetched, queryDuration)
}

// Handler 返回 HTTP 处理器
func Handler() http.Handler { return promhttp.Handler() }

// ObserveProviderRequest 记录一次外发请求；status 为 0 表示传输层失败。
func ObserveProviderRequest(adapter string, status int) {
	code := "error"
	if status > 0 {
		code = strconv.Itoa(status)
	}
	providerRequests.WithLabelValues(adapter, code).Inc()
}

// ObserveRetry 记录一次单页重试
func ObserveRetry(adapter string) { providerRetries.WithLabelValues(adapter).Inc() }

// ObservePage 记录一次成功取回的页
func ObservePage(adapter string) { pagesFetched.WithLabelValues(adapter).Inc() }

// ObserveQuery 记录一次适配器查询的耗时
func ObserveQuery(adapter string, err error, elapsed time.Duration) {
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	queryDuration.WithLabelValues(adapter, outcome).Observe(elapsed.Seconds())
}

// PrometheusMiddleware 记录每个 HTTP API 请求的耗时
func PrometheusMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		path := c.FullPath()
		if path == "" {
			path = "unmatched"
		}
		httpRequestDuration.
			WithLabelValues(path, c.Request.Method, strconv.Itoa(c.Writer.Status())).
			Observe(time.Since(start).Seconds())
	}
}
