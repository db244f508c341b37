package browser

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/chromedp/cdproto/input"
	"github.com/chromedp/chromedp"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/BaSui01/waybillflow/config"
)

// Metrics receives the open-session gauge. *metrics.Collector satisfies it;
// a nil observer disables recording.
type Metrics interface {
	SetBrowserSessions(n int)
}

// Manager owns the shared browser process and hands out isolated tabs.
type Manager struct {
	cfg     config.BrowserConfig
	logger  *zap.Logger
	store   *StateStore
	metrics Metrics

	mu          sync.Mutex
	allocCtx    context.Context
	allocCancel context.CancelFunc
	browserCtx  context.Context
	browserStop context.CancelFunc
	sessions    map[string]*Session
}

// NewManager builds a Manager. The browser process starts lazily on the
// first NewSession call.
func NewManager(cfg config.BrowserConfig, logger *zap.Logger) *Manager {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Manager{
		cfg:      cfg,
		logger:   logger.With(zap.String("component", "browser_manager")),
		store:    NewStateStore(cfg.AuthStatePath, cfg.PersistAuthState, logger),
		sessions: make(map[string]*Session),
	}
}

// StateStore exposes the auth state store, used after a fresh login.
func (m *Manager) StateStore() *StateStore { return m.store }

// SetMetrics attaches a session-count observer. Call before the first
// NewSession.
func (m *Manager) SetMetrics(mt Metrics) {
	m.metrics = mt
}

func (m *Manager) publishSessions(n int) {
	if m.metrics != nil {
		m.metrics.SetBrowserSessions(n)
	}
}

// Start launches the browser process if it is not already running.
func (m *Manager) Start(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.startLocked(ctx)
}

func (m *Manager) startLocked(ctx context.Context) error {
	if m.browserCtx != nil {
		return nil
	}

	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", m.cfg.Headless),
		chromedp.WindowSize(m.cfg.ViewportWidth, m.cfg.ViewportHeight),
		chromedp.Flag("disable-gpu", true),
		chromedp.Flag("no-sandbox", true),
		chromedp.Flag("disable-dev-shm-usage", true),
	)
	if m.cfg.UserAgent != "" {
		opts = append(opts, chromedp.UserAgent(m.cfg.UserAgent))
	}
	if m.cfg.ProxyURL != "" {
		opts = append(opts, chromedp.ProxyServer(m.cfg.ProxyURL))
	}

	allocCtx, allocCancel := chromedp.NewExecAllocator(context.Background(), opts...)
	browserCtx, browserStop := chromedp.NewContext(allocCtx,
		chromedp.WithLogf(func(format string, args ...any) {
			m.logger.Debug(fmt.Sprintf(format, args...))
		}),
	)

	if err := chromedp.Run(browserCtx); err != nil {
		browserStop()
		allocCancel()
		return fmt.Errorf("failed to start browser: %w", err)
	}

	m.allocCtx = allocCtx
	m.allocCancel = allocCancel
	m.browserCtx = browserCtx
	m.browserStop = browserStop

	m.logger.Info("browser started",
		zap.Bool("headless", m.cfg.Headless),
		zap.Int("viewport_w", m.cfg.ViewportWidth),
		zap.Int("viewport_h", m.cfg.ViewportHeight))
	return nil
}

// NewSession opens a fresh tab. Persisted auth cookies, when present, are
// imported before the tab is handed out.
func (m *Manager) NewSession(ctx context.Context) (*Session, error) {
	m.mu.Lock()
	if err := m.startLocked(ctx); err != nil {
		m.mu.Unlock()
		return nil, err
	}
	actionTimeout := m.cfg.ActionTimeout
	if actionTimeout <= 0 {
		actionTimeout = 15 * time.Second
	}
	tabCtx, tabCancel := chromedp.NewContext(m.browserCtx)
	s := &Session{
		id:            uuid.New().String(),
		ctx:           tabCtx,
		cancel:        tabCancel,
		actionTimeout: actionTimeout,
		logger:        m.logger,
		onClose:       m.dropSession,
	}
	m.sessions[s.id] = s
	open := len(m.sessions)
	m.mu.Unlock()
	m.publishSessions(open)

	// Materialize the tab before anyone uses it.
	if err := chromedp.Run(tabCtx, chromedp.Navigate("about:blank")); err != nil {
		s.Close()
		return nil, fmt.Errorf("failed to open tab: %w", err)
	}

	if state, err := m.store.Load(); err != nil {
		m.logger.Warn("auth state load failed", zap.Error(err))
	} else if state != nil {
		if err := s.ImportCookies(ctx, state); err != nil {
			m.logger.Warn("auth state import failed", zap.Error(err))
		}
	}

	return s, nil
}

// SaveAuthState exports the session cookies to the configured state file.
// Failures are logged, never fatal: a lost state file only costs one login.
func (m *Manager) SaveAuthState(ctx context.Context, s *Session) {
	if !m.store.Enabled() {
		return
	}
	state, err := s.ExportCookies(ctx)
	if err != nil {
		m.logger.Warn("auth state export failed", zap.Error(err))
		return
	}
	if err := m.store.Persist(state); err != nil {
		m.logger.Warn("auth state persist failed", zap.Error(err))
	}
}

func (m *Manager) dropSession(id string) {
	m.mu.Lock()
	delete(m.sessions, id)
	open := len(m.sessions)
	m.mu.Unlock()
	m.publishSessions(open)
}

// Close tears down every session and the browser process.
func (m *Manager) Close() {
	m.mu.Lock()
	sessions := make([]*Session, 0, len(m.sessions))
	for _, s := range m.sessions {
		sessions = append(sessions, s)
	}
	m.sessions = make(map[string]*Session)

	browserStop := m.browserStop
	allocCancel := m.allocCancel
	m.browserCtx, m.browserStop = nil, nil
	m.allocCtx, m.allocCancel = nil, nil
	m.mu.Unlock()

	for _, s := range sessions {
		s.closeTab()
	}
	if browserStop != nil {
		browserStop()
	}
	if allocCancel != nil {
		allocCancel()
	}
	m.publishSessions(0)
	m.logger.Info("browser closed")
}

// Session is one isolated tab. All chromedp calls are serialized with a
// mutex because a tab handles one CDP command stream.
type Session struct {
	id            string
	ctx           context.Context
	cancel        context.CancelFunc
	actionTimeout time.Duration
	logger        *zap.Logger
	onClose       func(id string)
	mu            sync.Mutex
}

// ID returns the session identifier.
func (s *Session) ID() string { return s.id }

// Close releases the tab and unregisters it from the manager.
func (s *Session) Close() error {
	if s.onClose != nil {
		s.onClose(s.id)
		s.onClose = nil
	}
	s.closeTab()
	return nil
}

func (s *Session) closeTab() {
	if s.cancel != nil {
		s.cancel()
		s.cancel = nil
	}
}

// run executes actions on the tab under the session mutex, honoring the
// caller context via a derived deadline.
func (s *Session) run(ctx context.Context, timeout time.Duration, actions ...chromedp.Action) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return err
	}

	runCtx := s.ctx
	cancel := func() {}
	if deadline, ok := ctx.Deadline(); ok {
		runCtx, cancel = context.WithDeadline(runCtx, deadline)
	} else if timeout > 0 {
		runCtx, cancel = context.WithTimeout(runCtx, timeout)
	}
	defer cancel()

	return chromedp.Run(runCtx, actions...)
}

func queryOptions(selector string) (string, chromedp.QueryOption) {
	c := compileSelector(selector)
	if c.kind == queryXPath {
		return c.query, chromedp.BySearch
	}
	return c.query, chromedp.ByQuery
}

// Navigate implements Page.
func (s *Session) Navigate(ctx context.Context, url string) error {
	s.logger.Debug("navigating", zap.String("url", url))
	return s.run(ctx, s.actionTimeout,
		chromedp.Navigate(url),
		chromedp.WaitReady("body", chromedp.ByQuery),
	)
}

// URL implements Page.
func (s *Session) URL(ctx context.Context) (string, error) {
	var loc string
	err := s.run(ctx, s.actionTimeout, chromedp.Location(&loc))
	return loc, err
}

// Title implements Page.
func (s *Session) Title(ctx context.Context) (string, error) {
	var title string
	err := s.run(ctx, s.actionTimeout, chromedp.Title(&title))
	return title, err
}

// Exists implements Page.
func (s *Session) Exists(ctx context.Context, selector string) (bool, error) {
	var found bool
	expr := fmt.Sprintf("(%s) !== null", lookupJS(selector))
	err := s.run(ctx, s.actionTimeout, chromedp.Evaluate(expr, &found))
	return found, err
}

// WaitVisible implements Page.
func (s *Session) WaitVisible(ctx context.Context, selector string, timeout time.Duration) error {
	if timeout <= 0 {
		timeout = s.actionTimeout
	}
	q, opt := queryOptions(selector)
	return s.run(ctx, timeout, chromedp.WaitVisible(q, opt))
}

// Click implements Page.
func (s *Session) Click(ctx context.Context, selector string) error {
	q, opt := queryOptions(selector)
	return s.run(ctx, s.actionTimeout, chromedp.Click(q, opt))
}

// ClickAndNavigate implements Page.
func (s *Session) ClickAndNavigate(ctx context.Context, selector string) error {
	q, opt := queryOptions(selector)
	return s.run(ctx, s.actionTimeout,
		chromedp.Click(q, opt),
		chromedp.WaitReady("body", chromedp.ByQuery),
	)
}

// ClickAt implements Page.
func (s *Session) ClickAt(ctx context.Context, x, y float64) error {
	press := chromedp.ActionFunc(func(ctx context.Context) error {
		return input.DispatchMouseEvent(input.MousePressed, x, y).
			WithButton(input.Left).WithClickCount(1).Do(ctx)
	})
	release := chromedp.ActionFunc(func(ctx context.Context) error {
		return input.DispatchMouseEvent(input.MouseReleased, x, y).
			WithButton(input.Left).WithClickCount(1).Do(ctx)
	})
	return s.run(ctx, s.actionTimeout, press, release)
}

// Fill implements Page.
func (s *Session) Fill(ctx context.Context, selector, value string) error {
	s.logger.Debug("filling",
		zap.String("selector", selector),
		zap.String("value", redactValue(selector, value)))
	q, opt := queryOptions(selector)
	return s.run(ctx, s.actionTimeout,
		chromedp.WaitVisible(q, opt),
		chromedp.Clear(q, opt),
		chromedp.SendKeys(q, value, opt),
	)
}

// Check implements Page.
func (s *Session) Check(ctx context.Context, selector string, checked bool) error {
	expr := fmt.Sprintf(`(function() {
		const el = %s;
		if (!el) return false;
		el.checked = %t;
		el.dispatchEvent(new Event('change', {bubbles: true}));
		return true;
	})()`, lookupJS(selector), checked)

	var ok bool
	if err := s.run(ctx, s.actionTimeout, chromedp.Evaluate(expr, &ok)); err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("element not found: %s", selector)
	}
	return nil
}

// SelectByValue implements Page.
func (s *Session) SelectByValue(ctx context.Context, selector, value string) error {
	expr := fmt.Sprintf(`(function() {
		const el = %s;
		if (!el) return false;
		el.value = %s;
		el.dispatchEvent(new Event('input', {bubbles: true}));
		el.dispatchEvent(new Event('change', {bubbles: true}));
		return el.value === %s;
	})()`, lookupJS(selector), jsStringLiteral(value), jsStringLiteral(value))

	var ok bool
	if err := s.run(ctx, s.actionTimeout, chromedp.Evaluate(expr, &ok)); err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("option %q not accepted by %s", value, selector)
	}
	return nil
}

// Options implements Page.
func (s *Session) Options(ctx context.Context, selector string) ([]SelectOption, error) {
	expr := fmt.Sprintf(`(function() {
		const el = %s;
		if (!el || !el.options) return [];
		return Array.from(el.options).map(o => ({value: o.value, label: o.textContent.trim()}));
	})()`, lookupJS(selector))

	var opts []SelectOption
	if err := s.run(ctx, s.actionTimeout, chromedp.Evaluate(expr, &opts)); err != nil {
		return nil, err
	}
	return opts, nil
}

// Value implements Page.
func (s *Session) Value(ctx context.Context, selector string) (string, error) {
	expr := fmt.Sprintf(`(function() {
		const el = %s;
		return el ? String(el.value ?? '') : '';
	})()`, lookupJS(selector))

	var v string
	err := s.run(ctx, s.actionTimeout, chromedp.Evaluate(expr, &v))
	return v, err
}

// Text implements Page.
func (s *Session) Text(ctx context.Context, selector string) (string, error) {
	expr := fmt.Sprintf(`(function() {
		const el = %s;
		return el ? (el.textContent || '').trim() : '';
	})()`, lookupJS(selector))

	var t string
	err := s.run(ctx, s.actionTimeout, chromedp.Evaluate(expr, &t))
	return t, err
}

// TextAll implements Page.
func (s *Session) TextAll(ctx context.Context, selector string) ([]string, error) {
	expr := fmt.Sprintf(`(%s).map(el => (el.textContent || '').trim())`, lookupAllJS(selector))

	var texts []string
	if err := s.run(ctx, s.actionTimeout, chromedp.Evaluate(expr, &texts)); err != nil {
		return nil, err
	}
	return texts, nil
}

// Eval implements Page.
func (s *Session) Eval(ctx context.Context, expression string, out any) error {
	if out == nil {
		var discard any
		out = &discard
	}
	return s.run(ctx, s.actionTimeout, chromedp.Evaluate(expression, out))
}

// ElementScreenshot implements Page.
func (s *Session) ElementScreenshot(ctx context.Context, selector string) ([]byte, error) {
	q, opt := queryOptions(selector)
	var buf []byte
	if err := s.run(ctx, s.actionTimeout, chromedp.Screenshot(q, &buf, opt)); err != nil {
		return nil, fmt.Errorf("element screenshot failed: %w", err)
	}
	return buf, nil
}

// redactValue hides sensitive input in debug logs.
func redactValue(selector, value string) string {
	lowered := strings.ToLower(selector)
	if strings.Contains(lowered, "password") || strings.Contains(lowered, "captoken") {
		return "***"
	}
	return value
}
