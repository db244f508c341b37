// Package service composes admission control, browser sessions,
// authentication, and the waybill form flow into the end-to-end workflow.
// It owns the workflow-level retry loop and the decision to escalate a
// rate-limit response into a temporary admission blackout.
package service

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/BaSui01/waybillflow/automation/auth"
	"github.com/BaSui01/waybillflow/automation/captcha"
	"github.com/BaSui01/waybillflow/automation/location"
	"github.com/BaSui01/waybillflow/automation/waybill"
	"github.com/BaSui01/waybillflow/browser"
	"github.com/BaSui01/waybillflow/config"
	"github.com/BaSui01/waybillflow/internal/metrics"
	"github.com/BaSui01/waybillflow/reporting"
	"github.com/BaSui01/waybillflow/retry"
	"github.com/BaSui01/waybillflow/traffic"
	"github.com/BaSui01/waybillflow/types"
)

// Sessions hands the orchestrator a fresh page per attempt and persists the
// portal auth state after a confirmed login. *browser.Manager satisfies it
// through the BrowserSessions adapter; tests substitute fakes.
type Sessions interface {
	NewPage(ctx context.Context) (browser.Page, error)
	SaveAuthState(ctx context.Context, page browser.Page)
}

// BrowserSessions adapts *browser.Manager to the Sessions interface.
type BrowserSessions struct {
	manager *browser.Manager
}

func NewBrowserSessions(m *browser.Manager) *BrowserSessions {
	return &BrowserSessions{manager: m}
}

func (b *BrowserSessions) NewPage(ctx context.Context) (browser.Page, error) {
	return b.manager.NewSession(ctx)
}

func (b *BrowserSessions) SaveAuthState(ctx context.Context, page browser.Page) {
	if s, ok := page.(*browser.Session); ok {
		b.manager.SaveAuthState(ctx, s)
	}
}

// Deps bundles the long-lived collaborators. Metrics and Reports may be nil;
// the orchestrator degrades to plain logging.
type Deps struct {
	Sessions Sessions
	Traffic  *traffic.Controller
	Reports  *reporting.Service
	Metrics  *metrics.Collector
	Captcha  *captcha.Resolver
	Geocoder location.Geocoder
}

// Orchestrator runs one workflow per CreateWaybill call. Instances are
// constructed once at process start and shared; per-attempt state (page,
// authenticator, form manager) is created fresh inside each attempt.
type Orchestrator struct {
	cfg      *config.Config
	sessions Sessions
	traffic  *traffic.Controller
	reports  *reporting.Service
	metrics  *metrics.Collector
	captcha  *captcha.Resolver
	geocoder location.Geocoder
	logger   *zap.Logger
}

func NewOrchestrator(cfg *config.Config, deps Deps, logger *zap.Logger) *Orchestrator {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Orchestrator{
		cfg:      cfg,
		sessions: deps.Sessions,
		traffic:  deps.Traffic,
		reports:  deps.Reports,
		metrics:  deps.Metrics,
		captcha:  deps.Captcha,
		geocoder: deps.Geocoder,
		logger:   logger.With(zap.String("component", "orchestrator")),
	}
}

// CreateWaybill drives the whole workflow for one request: full-mode guard,
// request accounting, the attempt loop with backoff, and terminal failure
// categorization. The returned result always carries the request id and
// normalized mode.
func (o *Orchestrator) CreateWaybill(ctx context.Context, req *types.WaybillRequest) (*types.WorkflowResult, error) {
	requestID := uuid.NewString()
	mode := req.OperationMode.Normalized()
	logger := o.logger.With(zap.String("request_id", requestID), zap.String("mode", string(mode)))

	// The live-submission switch is checked before any accounting or browser
	// work so a misconfigured caller cannot consume an admission slot.
	if mode == types.ModeFull && !o.cfg.Portal.AllowLiveSubmit {
		logger.Warn("full mode rejected, live submission disabled")
		return nil, types.NewError(types.ErrForbidden,
			"live submission is disabled; enable portal.allow_live_submit to use full mode").
			WithHTTPStatus(403)
	}

	if o.reports != nil {
		o.reports.RecordRequest(ctx, mode)
	}

	maxAttempts := o.cfg.Retry.WorkflowMaxRetries + 1
	if maxAttempts < 1 {
		maxAttempts = 1
	}

	started := time.Now()
	var lastErr error

	for attempt := 1; attempt <= maxAttempts; attempt++ {
		result, err := o.runAttempt(ctx, logger, mode, req, attempt)
		if err == nil {
			latency := time.Since(started)
			result.RequestID = requestID
			result.Mode = mode
			o.recordSuccess(ctx, mode, result, latency)
			logger.Info("workflow succeeded",
				zap.Int("attempt", attempt),
				zap.Duration("latency", latency),
				zap.String("status", result.Status))
			return result, nil
		}
		lastErr = err

		if attempt < maxAttempts {
			if multiplier, reason, ok := o.retryPlan(err); ok {
				o.traffic.MarkTemporaryBlock(multiplier)
				if o.metrics != nil && reason == "rate_limited" {
					snap := o.traffic.Snapshot()
					o.metrics.RecordRateLimitBlock(time.Duration(snap.BlockedForSeconds * float64(time.Second)))
				}
				delay := retry.DelayFor(attempt, o.cfg.Retry.WorkflowBase, o.cfg.Retry.WorkflowJitter)
				if o.metrics != nil {
					o.metrics.RecordWorkflowRetry(reason)
				}
				logger.Warn("workflow attempt failed, retrying",
					zap.Int("attempt", attempt),
					zap.String("reason", reason),
					zap.Duration("delay", delay),
					zap.Error(err))
				if err := sleepCtx(ctx, delay); err != nil {
					lastErr = types.NewError(types.ErrCancelled, "workflow cancelled during backoff").WithCause(err)
					break
				}
				continue
			}
		}
		break
	}

	category := types.CategoryOf(lastErr)
	if o.reports != nil {
		o.reports.RecordFailure(ctx, mode, category)
	}
	if o.metrics != nil {
		o.metrics.RecordWorkflow(string(mode), "failure", time.Since(started))
	}
	logger.Error("workflow failed",
		zap.String("category", category),
		zap.Error(lastErr))
	return nil, lastErr
}

// retryPlan classifies err for the workflow retry loop. Rate-limit-shaped
// failures escalate the admission blackout harder than plain transient ones.
// Caller cancellation is neither: a client that hangs up while queued must
// not extend the shared blackout or burn a retry.
func (o *Orchestrator) retryPlan(err error) (multiplier float64, reason string, ok bool) {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return 0, "", false
	}
	code := types.GetErrorCode(err)
	if code == types.ErrCancelled {
		return 0, "", false
	}
	if code == types.ErrRateLimited {
		return 2.0, "rate_limited", true
	}
	if e, isTyped := err.(*types.Error); isTyped && (e.HTTPStatus == 429 || e.HTTPStatus == 503) {
		return 2.0, "rate_limited", true
	}
	if types.IsRetryable(err) || retry.IsRetryableNetworkError(err) {
		return 1.0, "network", true
	}
	return 0, "", false
}

// runAttempt is one pass of the workflow state machine: admission slot,
// fresh page, auth check (login if needed), then the form flow. The slot and
// page are released whichever step fails.
func (o *Orchestrator) runAttempt(ctx context.Context, logger *zap.Logger, mode types.OperationMode, req *types.WaybillRequest, attempt int) (*types.WorkflowResult, error) {
	if err := o.traffic.Acquire(ctx, mode); err != nil {
		return nil, err
	}
	defer func() {
		o.traffic.Release(mode)
		o.publishTrafficCounts()
	}()
	o.publishTrafficCounts()

	page, err := o.sessions.NewPage(ctx)
	if err != nil {
		if types.GetErrorCode(err) != "" {
			return nil, err
		}
		return nil, types.NewError(types.ErrNetworkTransient, "browser session creation failed").
			WithCause(err).WithRetryable(true)
	}
	defer func() {
		if cerr := page.Close(); cerr != nil {
			logger.Warn("page close failed", zap.Error(cerr))
		}
	}()

	if err := o.ensureAuthenticated(ctx, logger, page); err != nil {
		return nil, err
	}

	attemptReq := *req
	attemptReq.OperationMode = mode

	manager := waybill.NewManager(page, o.geocoder, o.cfg.Portal, o.cfg.Retry, logger)
	if o.metrics != nil {
		manager.Resolver().SetMetrics(o.metrics)
	}
	result, err := manager.Create(ctx, &attemptReq)
	if err != nil {
		logger.Warn("waybill creation failed",
			zap.Int("attempt", attempt),
			zap.Error(err))
		return nil, err
	}
	return result, nil
}

// ensureAuthenticated leaves the page logged in or returns a typed auth
// error. Auth state is persisted in both branches so cookie refreshes from a
// cached session survive too.
func (o *Orchestrator) ensureAuthenticated(ctx context.Context, logger *zap.Logger, page browser.Page) error {
	authenticator := auth.New(page, o.cfg.Portal, o.cfg.Retry, o.captcha, logger)

	if authenticator.IsLoggedIn(ctx) {
		if o.metrics != nil {
			o.metrics.RecordAuthAttempt("cached")
		}
		o.sessions.SaveAuthState(ctx, page)
		return nil
	}

	creds := o.cfg.Credentials
	if creds.Username == "" || creds.Password == "" {
		return types.NewError(types.ErrUnauthorized,
			"portal session expired and no credentials are configured").
			WithHTTPStatus(401)
	}

	if err := authenticator.Login(ctx, creds.Username, creds.Password); err != nil {
		if o.metrics != nil {
			o.metrics.RecordAuthAttempt("failure")
		}
		if types.GetErrorCode(err) != "" {
			return err
		}
		return types.NewError(types.ErrAuthFailure, "portal login failed").
			WithHTTPStatus(401).WithCause(err)
	}

	if o.metrics != nil {
		o.metrics.RecordAuthAttempt("success")
	}
	o.sessions.SaveAuthState(ctx, page)
	return nil
}

func (o *Orchestrator) recordSuccess(ctx context.Context, mode types.OperationMode, result *types.WorkflowResult, latency time.Duration) {
	if o.reports != nil {
		o.reports.RecordSuccess(ctx, mode, latency)
		if result.OriginMethod == types.MethodMap {
			engine := result.OriginMapEngine
			if engine == types.EngineNone {
				engine = result.DestMapEngine
			}
			if engine == types.EngineNone {
				engine = types.EngineUnknownContainer
			}
			o.reports.RecordMapUsage(ctx, engine)
		}
	}
	if o.metrics != nil {
		o.metrics.RecordWorkflow(string(mode), "success", latency)
	}
}

func (o *Orchestrator) publishTrafficCounts() {
	if o.metrics == nil {
		return
	}
	snap := o.traffic.Snapshot()
	o.metrics.SetTrafficCounts(string(types.ModeSafe), snap.ActiveSafe, snap.QueuedSafe)
	o.metrics.SetTrafficCounts(string(types.ModeFull), snap.ActiveFull, snap.QueuedFull)
}

// MapDetection is the result of a standalone map-engine probe against the
// waybill page.
type MapDetection struct {
	RequestID string          `json:"request_id"`
	HasMap    bool            `json:"has_map"`
	MapType   types.MapEngine `json:"map_type,omitempty"`
	SessionID string          `json:"session_id,omitempty"`
}

// DetectMap opens the waybill page in a fresh session and reports which map
// engine renders it, recording the sighting for usage statistics.
func (o *Orchestrator) DetectMap(ctx context.Context, sessionID string) (*MapDetection, error) {
	requestID := uuid.NewString()
	logger := o.logger.With(zap.String("request_id", requestID))

	page, err := o.sessions.NewPage(ctx)
	if err != nil {
		return nil, types.NewError(types.ErrNetworkTransient, "browser session creation failed").
			WithCause(err).WithRetryable(true)
	}
	defer func() {
		if cerr := page.Close(); cerr != nil {
			logger.Warn("page close failed", zap.Error(cerr))
		}
	}()

	err = browser.NavigateWithRetry(ctx, page, o.cfg.Portal.WaybillURL,
		o.cfg.Retry.NavigationMaxRetries, o.cfg.Retry.NavigationBase, o.cfg.Retry.NavigationJitter, logger)
	if err != nil {
		return nil, types.NewError(types.ErrNetworkTransient, "waybill page navigation failed").
			WithCause(err).WithRetryable(true)
	}

	adapter := location.NewMapAdapter(page, logger)
	engine, err := adapter.Detect(ctx)
	if err != nil {
		return nil, types.NewError(types.ErrInternalError, "map detection failed").WithCause(err)
	}

	if o.reports != nil {
		o.reports.RecordMapUsage(ctx, engine)
	}
	if o.metrics != nil {
		o.metrics.RecordMapDetection(string(engine))
	}
	logger.Info("map detection completed", zap.String("map_type", string(engine)))

	return &MapDetection{
		RequestID: requestID,
		HasMap:    engine != types.EngineNone,
		MapType:   engine,
		SessionID: sessionID,
	}, nil
}

// TrafficStatus exposes the admission snapshot for the status endpoint.
func (o *Orchestrator) TrafficStatus() traffic.Snapshot {
	return o.traffic.Snapshot()
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
