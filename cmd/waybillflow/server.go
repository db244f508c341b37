package main

import (
	"context"
	"fmt"
	"net/http"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/BaSui01/waybillflow/api/handlers"
	"github.com/BaSui01/waybillflow/automation/captcha"
	"github.com/BaSui01/waybillflow/automation/location"
	"github.com/BaSui01/waybillflow/browser"
	"github.com/BaSui01/waybillflow/config"
	"github.com/BaSui01/waybillflow/internal/metrics"
	"github.com/BaSui01/waybillflow/internal/server"
	"github.com/BaSui01/waybillflow/reporting"
	"github.com/BaSui01/waybillflow/service"
	"github.com/BaSui01/waybillflow/traffic"
)

// =============================================================================
// 🖥️ Server 结构
// =============================================================================

// Server 是 WaybillFlow 的主服务器
type Server struct {
	cfg    *config.Config
	logger *zap.Logger

	// 服务器管理器
	httpManager    *server.Manager
	metricsManager *server.Manager

	// 领域组件
	statsDB      *gorm.DB
	reports      *reporting.Service
	trafficCtl   *traffic.Controller
	browserMgr   *browser.Manager
	orchestrator *service.Orchestrator

	// Handlers
	waybillHandler *handlers.WaybillHandler
	reportsHandler *handlers.ReportsHandler
	healthHandler  *handlers.HealthHandler

	// 指标收集器
	metricsCollector *metrics.Collector

	// Rate limiter 生命周期管理
	rateLimiterCancel context.CancelFunc
}

// NewServer 创建新的服务器实例
func NewServer(cfg *config.Config, logger *zap.Logger) *Server {
	return &Server{
		cfg:    cfg,
		logger: logger,
	}
}

// =============================================================================
// 🚀 启动流程
// =============================================================================

// Start 启动所有服务
func (s *Server) Start() error {
	// 1. 初始化指标收集器
	s.metricsCollector = metrics.NewCollector("waybillflow", s.logger)

	// 2. 初始化领域组件（统计库、准入控制、浏览器、工作流）
	if err := s.initComponents(); err != nil {
		return fmt.Errorf("failed to init components: %w", err)
	}

	// 3. 初始化 Handlers
	s.initHandlers()

	// 4. 启动 HTTP 服务器
	if err := s.startHTTPServer(); err != nil {
		return fmt.Errorf("failed to start HTTP server: %w", err)
	}

	// 5. 启动 Metrics 服务器
	if err := s.startMetricsServer(); err != nil {
		return fmt.Errorf("failed to start metrics server: %w", err)
	}

	s.logger.Info("All servers started",
		zap.String("http_addr", s.cfg.Server.Addr),
		zap.String("metrics_addr", s.cfg.Server.MetricsAddr),
	)

	return nil
}

// =============================================================================
// 🔧 初始化方法
// =============================================================================

// initComponents 初始化领域组件
func (s *Server) initComponents() error {
	db, err := reporting.Open(s.cfg.Reporting.DatabasePath)
	if err != nil {
		return fmt.Errorf("open stats database: %w", err)
	}
	s.statsDB = db
	s.reports = reporting.NewService(db, s.cfg.Reporting.LatencySampleMax, s.logger)

	s.trafficCtl = traffic.NewController(traffic.Options{
		MaxConcurrent:   s.cfg.Traffic.MaxConcurrent,
		MinGap:          s.cfg.Traffic.MinGap,
		Jitter:          s.cfg.Traffic.Jitter,
		BlockBackoff:    s.cfg.Traffic.BlockBackoff,
		BlockBackoffMax: s.cfg.Traffic.BlockBackoffMax,
	}, s.logger)

	// 浏览器进程在第一个工作流到达时才真正启动
	s.browserMgr = browser.NewManager(s.cfg.Browser, s.logger)
	s.browserMgr.SetMetrics(s.metricsCollector)

	captchaResolver := captcha.NewResolver(s.cfg.Captcha, s.cfg.Browser.Headless, s.logger)
	captchaResolver.SetMetrics(s.metricsCollector)
	geocoder := location.NewNominatimGeocoder(s.cfg.Geocode, s.logger)
	geocoder.SetMetrics(s.metricsCollector)

	s.orchestrator = service.NewOrchestrator(s.cfg, service.Deps{
		Sessions: service.NewBrowserSessions(s.browserMgr),
		Traffic:  s.trafficCtl,
		Reports:  s.reports,
		Metrics:  s.metricsCollector,
		Captcha:  captchaResolver,
		Geocoder: geocoder,
	}, s.logger)

	s.logger.Info("Domain components initialized",
		zap.Int("max_concurrent", s.cfg.Traffic.MaxConcurrent),
		zap.Duration("min_gap", s.cfg.Traffic.MinGap),
		zap.String("captcha_provider", captchaResolver.ProviderName()),
	)
	return nil
}

// initHandlers 初始化所有 handlers
func (s *Server) initHandlers() {
	s.waybillHandler = handlers.NewWaybillHandler(
		s.orchestrator,
		s.reports,
		s.cfg.Traffic.MaxConcurrent,
		s.cfg.Traffic.MinGap.Seconds(),
		s.logger,
	)
	s.reportsHandler = handlers.NewReportsHandler(s.reports, s.logger)

	s.healthHandler = handlers.NewHealthHandler(s.logger)
	s.healthHandler.RegisterCheck(handlers.NewPingCheck("stats_db", func(ctx context.Context) error {
		sqlDB, err := s.statsDB.DB()
		if err != nil {
			return err
		}
		return sqlDB.PingContext(ctx)
	}))
	s.healthHandler.RegisterCheck(handlers.NewPingCheck("config", func(ctx context.Context) error {
		if s.cfg.Portal.WaybillURL == "" {
			return fmt.Errorf("portal.waybill_url is not configured")
		}
		return nil
	}))

	s.logger.Info("Handlers initialized")
}

// =============================================================================
// 🌐 HTTP 服务器
// =============================================================================

// startHTTPServer 启动 HTTP 服务器
func (s *Server) startHTTPServer() error {
	mux := http.NewServeMux()

	// ========================================
	// 健康检查与版本端点
	// ========================================
	mux.HandleFunc("/healthz", s.healthHandler.HandleHealthz)
	mux.HandleFunc("/readyz", s.healthHandler.HandleReady)
	mux.HandleFunc("/version", s.healthHandler.HandleVersion(Version, BuildTime, GitCommit))

	// ========================================
	// 运单 API 路由
	// ========================================
	mux.HandleFunc("/api/waybill/create-with-map", s.waybillHandler.HandleCreate)
	mux.HandleFunc("/api/waybill/detect-map", s.waybillHandler.HandleDetectMap)
	mux.HandleFunc("/api/waybill/traffic-status", s.waybillHandler.HandleTrafficStatus)
	mux.HandleFunc("/api/waybill/calculate-route", s.waybillHandler.HandleCalculateRoute)

	// ========================================
	// 报表路由
	// ========================================
	mux.HandleFunc("/api/reports/summary", s.reportsHandler.HandleSummary)
	mux.HandleFunc("/api/reports/daily", s.reportsHandler.HandleDaily)
	mux.HandleFunc("/api/reports/operational", s.reportsHandler.HandleOperational)

	// ========================================
	// 构建中间件链
	// ========================================
	// 路线计算是纯几何运算，与健康检查一样保持公开。
	skipAuthPaths := []string{"/healthz", "/readyz", "/version", "/api/waybill/calculate-route"}
	rateLimiterCtx, rateLimiterCancel := context.WithCancel(context.Background())
	s.rateLimiterCancel = rateLimiterCancel

	middlewares := []Middleware{
		Recovery(s.logger),
		RequestID(),
		SecurityHeaders(),
		RequestLogger(s.logger),
		MetricsMiddleware(s.metricsCollector),
		CORS(s.cfg.Server.CORSOrigins),
	}
	if s.cfg.Server.RateLimitRPS > 0 {
		middlewares = append(middlewares,
			RateLimiter(rateLimiterCtx, s.cfg.Server.RateLimitRPS, s.cfg.Server.RateLimitBurst, s.logger))
	}
	middlewares = append(middlewares, SensitiveAuth(s.cfg.API, skipAuthPaths, s.logger))

	handler := Chain(mux, middlewares...)

	// ========================================
	// 使用 internal/server.Manager
	// ========================================
	s.httpManager = server.NewManager(handler, server.FromAppConfig(s.cfg.Server), s.logger)

	if err := s.httpManager.Start(); err != nil {
		return err
	}

	s.logger.Info("HTTP server started", zap.String("addr", s.httpManager.BoundAddr()))
	return nil
}

// =============================================================================
// 📊 Metrics 服务器
// =============================================================================

// startMetricsServer 启动 Metrics 服务器
func (s *Server) startMetricsServer() error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())

	metricsConfig := server.FromAppConfig(s.cfg.Server)
	metricsConfig.Addr = s.cfg.Server.MetricsAddr
	if metricsConfig.Addr == "" {
		metricsConfig.Addr = ":9090"
	}

	s.metricsManager = server.NewManager(mux, metricsConfig, s.logger)

	if err := s.metricsManager.Start(); err != nil {
		return err
	}

	s.logger.Info("Metrics server started", zap.String("addr", s.metricsManager.BoundAddr()))
	return nil
}

// =============================================================================
// 🛑 关闭流程
// =============================================================================

// WaitForShutdown 等待关闭信号并优雅关闭
func (s *Server) WaitForShutdown() {
	if s.httpManager != nil {
		s.httpManager.WaitForShutdown()
	}

	s.Shutdown()
}

// Shutdown 优雅关闭所有服务
func (s *Server) Shutdown() {
	s.logger.Info("Starting graceful shutdown...")

	ctx := context.Background()

	// 0. 停止 rate limiter 清理 goroutine
	if s.rateLimiterCancel != nil {
		s.rateLimiterCancel()
	}

	// 1. 关闭 HTTP 服务器（停止接收新工作流）
	if s.httpManager != nil {
		if err := s.httpManager.Shutdown(ctx); err != nil {
			s.logger.Error("HTTP server shutdown error", zap.Error(err))
		}
	}

	// 2. 关闭 Metrics 服务器
	if s.metricsManager != nil {
		if err := s.metricsManager.Shutdown(ctx); err != nil {
			s.logger.Error("Metrics server shutdown error", zap.Error(err))
		}
	}

	// 3. 关闭浏览器进程
	if s.browserMgr != nil {
		s.browserMgr.Close()
	}

	// 4. 关闭统计库
	if s.statsDB != nil {
		if sqlDB, err := s.statsDB.DB(); err == nil {
			sqlDB.Close()
		}
	}

	s.logger.Info("Graceful shutdown completed")
}
