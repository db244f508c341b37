// Package metrics provides internal metrics collection.
// This package is internal and should not be imported by external projects.
package metrics

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"go.uber.org/zap"
)

// =============================================================================
// 📊 指标收集器
// =============================================================================

// Collector 指标收集器
type Collector struct {
	// HTTP 指标
	httpRequestsTotal   *prometheus.CounterVec
	httpRequestDuration *prometheus.HistogramVec

	// 工作流指标
	workflowsTotal   *prometheus.CounterVec
	workflowDuration *prometheus.HistogramVec
	workflowRetries  *prometheus.CounterVec

	// 准入控制指标
	trafficActive    *prometheus.GaugeVec
	trafficQueued    *prometheus.GaugeVec
	rateLimitBlocks  prometheus.Counter
	trafficBlockedIn prometheus.Gauge

	// 门户自动化指标
	authAttempts    *prometheus.CounterVec
	captchaSolves   *prometheus.CounterVec
	captchaDuration *prometheus.HistogramVec
	mapDetections   *prometheus.CounterVec
	locationMethods *prometheus.CounterVec
	geocodeRequests *prometheus.CounterVec

	// 浏览器会话指标
	browserSessions prometheus.Gauge

	logger *zap.Logger
	mu     sync.RWMutex
}

// NewCollector 创建指标收集器
func NewCollector(namespace string, logger *zap.Logger) *Collector {
	c := &Collector{
		logger: logger.With(zap.String("component", "metrics")),
	}

	// HTTP 指标
	c.httpRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "Total number of HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	c.httpRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request duration in seconds",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"method", "path"},
	)

	// 工作流指标
	c.workflowsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "workflows_total",
			Help:      "Total number of waybill workflows",
		},
		[]string{"mode", "status"},
	)

	c.workflowDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "workflow_duration_seconds",
			Help:      "End-to-end waybill workflow duration in seconds",
			Buckets:   []float64{1, 5, 10, 30, 60, 120, 300},
		},
		[]string{"mode"},
	)

	c.workflowRetries = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "workflow_retries_total",
			Help:      "Total number of workflow retry attempts",
		},
		[]string{"reason"},
	)

	// 准入控制指标
	c.trafficActive = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "traffic_active_workflows",
			Help:      "Workflows currently holding an admission slot",
		},
		[]string{"mode"},
	)

	c.trafficQueued = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "traffic_queued_workflows",
			Help:      "Workflows waiting for an admission slot",
		},
		[]string{"mode"},
	)

	c.rateLimitBlocks = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "rate_limit_blocks_total",
			Help:      "Times the portal signalled rate limiting",
		},
	)

	c.trafficBlockedIn = promauto.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "traffic_blackout_seconds",
			Help:      "Remaining portal blackout window in seconds",
		},
	)

	// 门户自动化指标
	c.authAttempts = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "auth_attempts_total",
			Help:      "Total number of portal login attempts",
		},
		[]string{"status"},
	)

	c.captchaSolves = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "captcha_solves_total",
			Help:      "Total number of captcha solve attempts",
		},
		[]string{"provider", "status"},
	)

	c.captchaDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "captcha_solve_duration_seconds",
			Help:      "Captcha solve duration in seconds",
			Buckets:   []float64{1, 5, 10, 30, 60, 120},
		},
		[]string{"provider"},
	)

	c.mapDetections = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "map_detections_total",
			Help:      "Map engine detections by engine",
		},
		[]string{"engine"},
	)

	c.locationMethods = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "location_resolutions_total",
			Help:      "Location resolutions by strategy and outcome",
		},
		[]string{"method", "status"},
	)

	c.geocodeRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "geocode_requests_total",
			Help:      "Geocoding lookups by outcome",
		},
		[]string{"status"},
	)

	// 浏览器会话指标
	c.browserSessions = promauto.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "browser_sessions_open",
			Help:      "Browser sessions currently open",
		},
	)

	logger.Info("metrics collector initialized", zap.String("namespace", namespace))

	return c
}

// =============================================================================
// 🎯 HTTP 指标记录
// =============================================================================

// RecordHTTPRequest 记录 HTTP 请求
func (c *Collector) RecordHTTPRequest(method, path string, status int, duration time.Duration) {
	c.httpRequestsTotal.WithLabelValues(method, path, statusCode(status)).Inc()
	c.httpRequestDuration.WithLabelValues(method, path).Observe(duration.Seconds())
}

// =============================================================================
// 🚚 工作流指标记录
// =============================================================================

// RecordWorkflow 记录一次工作流结果
func (c *Collector) RecordWorkflow(mode, status string, duration time.Duration) {
	c.workflowsTotal.WithLabelValues(mode, status).Inc()
	c.workflowDuration.WithLabelValues(mode).Observe(duration.Seconds())
}

// RecordWorkflowRetry 记录一次工作流级重试
func (c *Collector) RecordWorkflowRetry(reason string) {
	c.workflowRetries.WithLabelValues(reason).Inc()
}

// =============================================================================
// 🚦 准入控制指标记录
// =============================================================================

// SetTrafficCounts 记录某模式当前的活跃/排队数
func (c *Collector) SetTrafficCounts(mode string, active, queued int) {
	c.trafficActive.WithLabelValues(mode).Set(float64(active))
	c.trafficQueued.WithLabelValues(mode).Set(float64(queued))
}

// RecordRateLimitBlock 记录限流信号并更新封禁剩余时间
func (c *Collector) RecordRateLimitBlock(blackoutRemaining time.Duration) {
	c.rateLimitBlocks.Inc()
	c.trafficBlockedIn.Set(blackoutRemaining.Seconds())
}

// =============================================================================
// 🌐 门户自动化指标记录
// =============================================================================

// RecordAuthAttempt 记录一次登录尝试
func (c *Collector) RecordAuthAttempt(status string) {
	c.authAttempts.WithLabelValues(status).Inc()
}

// RecordCaptchaSolve 记录一次验证码求解
func (c *Collector) RecordCaptchaSolve(provider, status string, duration time.Duration) {
	c.captchaSolves.WithLabelValues(provider, status).Inc()
	c.captchaDuration.WithLabelValues(provider).Observe(duration.Seconds())
}

// RecordMapDetection 记录一次地图引擎探测结果
func (c *Collector) RecordMapDetection(engine string) {
	if engine == "" {
		engine = "none"
	}
	c.mapDetections.WithLabelValues(engine).Inc()
}

// RecordLocationResolution 记录一次位置解析
func (c *Collector) RecordLocationResolution(method, status string) {
	if method == "" {
		method = "none"
	}
	c.locationMethods.WithLabelValues(method, status).Inc()
}

// RecordGeocode 记录一次地理编码请求
func (c *Collector) RecordGeocode(status string) {
	c.geocodeRequests.WithLabelValues(status).Inc()
}

// =============================================================================
// 🖥️ 浏览器会话指标记录
// =============================================================================

// SetBrowserSessions 记录当前打开的浏览器会话数
func (c *Collector) SetBrowserSessions(n int) {
	c.browserSessions.Set(float64(n))
}

// =============================================================================
// 🔧 辅助函数
// =============================================================================

// statusCode 将 HTTP 状态码转换为字符串
func statusCode(code int) string {
	switch {
	case code >= 200 && code < 300:
		return "2xx"
	case code >= 300 && code < 400:
		return "3xx"
	case code >= 400 && code < 500:
		return "4xx"
	case code >= 500:
		return "5xx"
	default:
		return "unknown"
	}
}
