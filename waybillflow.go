// Package waybillflow provides a top-level convenience entry point for
// embedding the waybill workflow engine with minimal boilerplate.
//
// Usage:
//
//	import "github.com/BaSui01/waybillflow"
//
//	cfg := config.Default()
//	cfg.Portal.BaseURL = "https://barname.example.ir"
//	engine, err := waybillflow.New(cfg, logger)
//	defer engine.Close()
//
//	result, err := engine.CreateWaybill(ctx, req)
//
// The HTTP server in cmd/waybillflow wires the same components; use this
// package when the workflow should run inside another Go process.
package waybillflow

import (
	"context"
	"fmt"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/BaSui01/waybillflow/automation/captcha"
	"github.com/BaSui01/waybillflow/automation/location"
	"github.com/BaSui01/waybillflow/browser"
	"github.com/BaSui01/waybillflow/config"
	"github.com/BaSui01/waybillflow/reporting"
	"github.com/BaSui01/waybillflow/service"
	"github.com/BaSui01/waybillflow/traffic"
	"github.com/BaSui01/waybillflow/types"
)

// Engine bundles the long-lived workflow components behind a small facade.
type Engine struct {
	orchestrator *service.Orchestrator
	reports      *reporting.Service
	browser      *browser.Manager
	statsDB      *gorm.DB
}

// New builds a ready-to-use Engine from the given configuration. The browser
// process starts lazily on the first workflow.
func New(cfg *config.Config, logger *zap.Logger) (*Engine, error) {
	if cfg == nil {
		cfg = config.Default()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if err := config.Validate(cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	db, err := reporting.Open(cfg.Reporting.DatabasePath)
	if err != nil {
		return nil, err
	}
	reports := reporting.NewService(db, cfg.Reporting.LatencySampleMax, logger)

	controller := traffic.NewController(traffic.Options{
		MaxConcurrent:   cfg.Traffic.MaxConcurrent,
		MinGap:          cfg.Traffic.MinGap,
		Jitter:          cfg.Traffic.Jitter,
		BlockBackoff:    cfg.Traffic.BlockBackoff,
		BlockBackoffMax: cfg.Traffic.BlockBackoffMax,
	}, logger)

	browserMgr := browser.NewManager(cfg.Browser, logger)

	orchestrator := service.NewOrchestrator(cfg, service.Deps{
		Sessions: service.NewBrowserSessions(browserMgr),
		Traffic:  controller,
		Reports:  reports,
		Captcha:  captcha.NewResolver(cfg.Captcha, cfg.Browser.Headless, logger),
		Geocoder: location.NewNominatimGeocoder(cfg.Geocode, logger),
	}, logger)

	return &Engine{
		orchestrator: orchestrator,
		reports:      reports,
		browser:      browserMgr,
		statsDB:      db,
	}, nil
}

// CreateWaybill runs one end-to-end workflow.
func (e *Engine) CreateWaybill(ctx context.Context, req *types.WaybillRequest) (*types.WorkflowResult, error) {
	return e.orchestrator.CreateWaybill(ctx, req)
}

// DetectMap probes the waybill page for its map engine.
func (e *Engine) DetectMap(ctx context.Context, sessionID string) (*service.MapDetection, error) {
	return e.orchestrator.DetectMap(ctx, sessionID)
}

// TrafficStatus reports the admission-control state.
func (e *Engine) TrafficStatus() traffic.Snapshot {
	return e.orchestrator.TrafficStatus()
}

// Reports exposes the statistics service.
func (e *Engine) Reports() *reporting.Service {
	return e.reports
}

// Close shuts down the browser process and the stats database.
func (e *Engine) Close() {
	e.browser.Close()
	if sqlDB, err := e.statsDB.DB(); err == nil {
		sqlDB.Close()
	}
}
