// Package metrics 提供 Prometheus helper，包含常用 counter/gauge/histogram 模板
package metrics

import (
	"context"
	"fmt"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/wyfcoding/stocktrading/pkg/logger"
)

// Metrics 指标集合
type Metrics struct {
	// HTTP 请求计数（按方法、路径、状态码）
	HTTPRequestsTotal *prometheus.CounterVec
	// HTTP 请求耗时
	HTTPRequestDuration prometheus.Histogram

	// 上游行情调用计数（按结果：ok, auth_expired, rate_limited, timeout, not_found, unavailable）
	UpstreamCallsTotal *prometheus.CounterVec
	// 上游行情调用耗时
	UpstreamCallDuration prometheus.Histogram
	// token 刷新计数
	TokenRefreshTotal prometheus.Counter

	// 行情缓存命中/未命中计数
	QuoteCacheHits   prometheus.Counter
	QuoteCacheMisses prometheus.Counter

	// 业务指标
	OrdersExecutedTotal *prometheus.CounterVec
	OrdersRejectedTotal *prometheus.CounterVec
}

// New 创建指标实例
func New(serviceName string) *Metrics {
	return &Metrics{
		HTTPRequestsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "stocksim",
			Subsystem: serviceName,
			Name:      "http_requests_total",
			Help:      "Total HTTP requests",
		}, []string{"method", "path", "status"}),
		HTTPRequestDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "stocksim",
			Subsystem: serviceName,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request duration in seconds",
			Buckets:   prometheus.DefBuckets,
		}),

		UpstreamCallsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "stocksim",
			Subsystem: serviceName,
			Name:      "upstream_calls_total",
			Help:      "Total upstream market data calls by outcome",
		}, []string{"outcome"}),
		UpstreamCallDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "stocksim",
			Subsystem: serviceName,
			Name:      "upstream_call_duration_seconds",
			Help:      "Upstream market data call duration in seconds",
			Buckets:   prometheus.DefBuckets,
		}),
		TokenRefreshTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "stocksim",
			Subsystem: serviceName,
			Name:      "token_refresh_total",
			Help:      "Total upstream token refreshes",
		}),

		QuoteCacheHits: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "stocksim",
			Subsystem: serviceName,
			Name:      "quote_cache_hits_total",
			Help:      "Total quote cache hits",
		}),
		QuoteCacheMisses: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "stocksim",
			Subsystem: serviceName,
			Name:      "quote_cache_misses_total",
			Help:      "Total quote cache misses",
		}),

		OrdersExecutedTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "stocksim",
			Subsystem: serviceName,
			Name:      "orders_executed_total",
			Help:      "Total orders executed by side",
		}, []string{"side"}),
		OrdersRejectedTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "stocksim",
			Subsystem: serviceName,
			Name:      "orders_rejected_total",
			Help:      "Total orders rejected by reason",
		}, []string{"reason"}),
	}
}

// Register 注册所有指标
func (m *Metrics) Register() error {
	collectors := []prometheus.Collector{
		m.HTTPRequestsTotal,
		m.HTTPRequestDuration,
		m.UpstreamCallsTotal,
		m.UpstreamCallDuration,
		m.TokenRefreshTotal,
		m.QuoteCacheHits,
		m.QuoteCacheMisses,
		m.OrdersExecutedTotal,
		m.OrdersRejectedTotal,
	}

	for _, collector := range collectors {
		if err := prometheus.DefaultRegisterer.Register(collector); err != nil {
			logger.Error(context.Background(), "Failed to register metric", "error", err)
			return err
		}
	}

	logger.Info(context.Background(), "Metrics registered successfully")
	return nil
}

// StartHTTPServer 启动 Prometheus HTTP 服务器
func StartHTTPServer(port int, path string) error {
	if path == "" {
		path = "/metrics"
	}

	http.Handle(path, promhttp.Handler())

	addr := fmt.Sprintf(":%d", port)
	logger.Info(context.Background(), "Starting Prometheus HTTP server", "addr", addr, "path", path)

	go func() {
		if err := http.ListenAndServe(addr, nil); err != nil {
			logger.Error(context.Background(), "Failed to start Prometheus HTTP server", "error", err)
		}
	}()

	return nil
}
