// Package auth drives the portal login flow: detecting whether a session
// is already authenticated, submitting credentials, solving the captcha,
// and clearing the first-login rules modal.
package auth

import (
	"context"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/BaSui01/waybillflow/automation/captcha"
	"github.com/BaSui01/waybillflow/automation/selectors"
	"github.com/BaSui01/waybillflow/browser"
	"github.com/BaSui01/waybillflow/config"
	"github.com/BaSui01/waybillflow/types"
)

// rules acceptance modal shown to some accounts on first login
const (
	rulesModalSelector    = "#ExceptRulesModalReal"
	rulesCheckboxSelector = "#ruleExcepted"
	rulesSubmitSelector   = "#submitRules"
)

var loginURLFragments = []string{"/login", "/account/login", "/signin", "/sign-in"}

// Authenticator handles portal authentication for one browser session.
type Authenticator struct {
	page    browser.Page
	it      *browser.Interactor
	portal  config.PortalConfig
	retries config.RetryConfig
	captcha *captcha.Resolver
	logger  *zap.Logger

	lastError string
}

// New builds an Authenticator for page.
func New(page browser.Page, portal config.PortalConfig, retries config.RetryConfig, resolver *captcha.Resolver, logger *zap.Logger) *Authenticator {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Authenticator{
		page:    page,
		it:      browser.NewInteractor(page, portal.ActionTimeout, logger),
		portal:  portal,
		retries: retries,
		captcha: resolver,
		logger:  logger.With(zap.String("component", "authenticator")),
	}
}

// LastError returns the most recent human-readable failure reason.
func (a *Authenticator) LastError() string { return a.lastError }

func isLoginURL(url string) bool {
	lowered := strings.ToLower(url)
	for _, fragment := range loginURLFragments {
		if strings.Contains(lowered, fragment) {
			return true
		}
	}
	return false
}

// candidateLoginURLs returns the configured login URL followed by known
// portal login paths, deduplicated in order.
func (a *Authenticator) candidateLoginURLs() []string {
	base := strings.TrimRight(a.portal.BaseURL, "/")
	candidates := []string{strings.TrimSpace(a.portal.LoginURL)}
	for _, path := range selectors.LoginPathCandidates {
		candidates = append(candidates, base+path)
	}

	seen := make(map[string]bool, len(candidates))
	unique := make([]string, 0, len(candidates))
	for _, c := range candidates {
		if c == "" || seen[c] {
			continue
		}
		seen[c] = true
		unique = append(unique, c)
	}
	return unique
}

func (a *Authenticator) currentURL(ctx context.Context) string {
	url, err := a.page.URL(ctx)
	if err != nil {
		return ""
	}
	return url
}

func (a *Authenticator) navigate(ctx context.Context, url string) error {
	return browser.NavigateWithRetry(ctx, a.page, url,
		a.retries.NavigationMaxRetries, a.retries.NavigationBase, a.retries.NavigationJitter, a.logger)
}

func (a *Authenticator) settle(ctx context.Context, d time.Duration) {
	if d <= 0 {
		return
	}
	select {
	case <-ctx.Done():
	case <-time.After(d):
	}
}

// looksLikeLoginPage reports whether the current page presents a login
// form: login-style URL, or username+password+submit all present.
func (a *Authenticator) looksLikeLoginPage(ctx context.Context) bool {
	if isLoginURL(a.currentURL(ctx)) {
		return true
	}
	return a.it.FirstExisting(ctx, selectors.UsernameSelectors) != "" &&
		a.it.FirstExisting(ctx, selectors.PasswordSelectors) != "" &&
		a.it.FirstExisting(ctx, selectors.LoginSubmitSelectors) != ""
}

func (a *Authenticator) logoutControlVisible(ctx context.Context) bool {
	for _, sel := range selectors.LogoutSelectors {
		if err := a.page.WaitVisible(ctx, sel, 500*time.Millisecond); err == nil {
			return true
		}
	}
	return false
}

// State navigates to the waybill page and classifies the session. The
// checks run in order of decreasing confidence; the final fallback treats
// any non-login page as authenticated because some portal builds rename
// the waybill form fields.
func (a *Authenticator) State(ctx context.Context) types.AuthState {
	a.lastError = ""

	if err := a.navigate(ctx, a.portal.WaybillURL); err != nil {
		a.logger.Debug("waybill page unreachable", zap.Error(err))
		return types.AuthUnknown
	}
	a.settle(ctx, a.portal.SettleDelay)

	if isLoginURL(a.currentURL(ctx)) {
		return types.AuthOnLoginPage
	}
	if a.logoutControlVisible(ctx) {
		return types.AuthLoggedIn
	}
	if a.it.FirstExisting(ctx, selectors.WaybillFormMarkers) != "" {
		return types.AuthLoggedIn
	}
	if a.looksLikeLoginPage(ctx) {
		return types.AuthOnLoginPage
	}

	a.settle(ctx, 400*time.Millisecond)
	if !isLoginURL(a.currentURL(ctx)) {
		a.logger.Warn("no waybill markers found, treating non-login page as authenticated",
			zap.String("url", a.currentURL(ctx)))
		return types.AuthLoggedIn
	}
	return types.AuthOnLoginPage
}

// IsLoggedIn is a convenience wrapper over State.
func (a *Authenticator) IsLoggedIn(ctx context.Context) bool {
	return a.State(ctx) == types.AuthLoggedIn
}

// extractLoginError reads the first non-empty validation or toast message.
func (a *Authenticator) extractLoginError(ctx context.Context) string {
	for _, sel := range selectors.LoginErrorSelectors {
		present, err := a.page.Exists(ctx, sel)
		if err != nil || !present {
			continue
		}
		text, err := a.page.Text(ctx, sel)
		if err == nil && strings.TrimSpace(text) != "" {
			return strings.TrimSpace(text)
		}
	}
	return ""
}

// waitForLoginResult polls after submit until the portal either leaves the
// login page or shows an error message.
func (a *Authenticator) waitForLoginResult(ctx context.Context) bool {
	timeout := a.portal.LoginResultTimeout
	if timeout <= 0 {
		timeout = 12 * time.Second
	}

	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if a.logoutControlVisible(ctx) {
			return true
		}
		if !a.looksLikeLoginPage(ctx) && !isLoginURL(a.currentURL(ctx)) {
			return true
		}
		if msg := a.extractLoginError(ctx); msg != "" {
			a.lastError = msg
			return false
		}

		select {
		case <-ctx.Done():
			return false
		case <-time.After(350 * time.Millisecond):
		}
	}

	return !a.looksLikeLoginPage(ctx) && !isLoginURL(a.currentURL(ctx))
}

// completePostLoginSteps accepts the rules modal when it appears.
func (a *Authenticator) completePostLoginSteps(ctx context.Context) bool {
	if err := a.page.WaitVisible(ctx, rulesModalSelector, 1200*time.Millisecond); err != nil {
		// no modal, nothing to do
		return true
	}

	if err := a.page.Check(ctx, rulesCheckboxSelector, true); err != nil {
		a.lastError = "rules acceptance after login failed: " + err.Error()
		return false
	}
	if err := a.page.Click(ctx, rulesSubmitSelector); err != nil {
		a.lastError = "rules acceptance after login failed: " + err.Error()
		return false
	}

	timeout := a.portal.PostLoginTimeout
	if timeout <= 0 {
		timeout = 12 * time.Second
	}
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if !isLoginURL(a.currentURL(ctx)) {
			return true
		}
		select {
		case <-ctx.Done():
			return false
		case <-time.After(300 * time.Millisecond):
		}
	}
	a.lastError = "still on the login page after accepting the rules modal"
	return false
}

func (a *Authenticator) submitLogin(ctx context.Context, submitSelector string) bool {
	clicked := a.it.SafeClick(ctx, submitSelector, true)
	if !clicked {
		// some builds submit via script without a navigation
		clicked = a.it.SafeClick(ctx, submitSelector, false)
	}
	if !clicked {
		a.lastError = "login form could not be submitted"
		return false
	}

	if a.waitForLoginResult(ctx) {
		if !a.completePostLoginSteps(ctx) {
			if a.lastError == "" {
				a.lastError = "post-login steps failed"
			}
			return false
		}
		if a.IsLoggedIn(ctx) {
			return true
		}
		if a.lastError == "" {
			if msg := a.extractLoginError(ctx); msg != "" {
				a.lastError = msg
			} else {
				a.lastError = "login finished but the waybill form is not reachable"
			}
		}
		return false
	}

	if a.lastError == "" {
		if msg := a.extractLoginError(ctx); msg != "" {
			a.lastError = msg
		} else {
			a.lastError = "login failed, the page stayed on the login form"
		}
	}
	return false
}

// Login walks the candidate login URLs, fills credentials, solves the
// captcha when present, and submits. A captcha failure aborts the whole
// attempt instead of moving to the next URL, because the captcha state is
// tied to the rendered page.
func (a *Authenticator) Login(ctx context.Context, username, password string) error {
	a.lastError = ""

	for _, loginURL := range a.candidateLoginURLs() {
		if err := a.navigate(ctx, loginURL); err != nil {
			a.logger.Debug("login url unreachable",
				zap.String("url", loginURL), zap.Error(err))
			continue
		}
		a.settle(ctx, a.portal.SettleDelay)

		usernameSel := a.it.FirstExisting(ctx, selectors.UsernameSelectors)
		passwordSel := a.it.FirstExisting(ctx, selectors.PasswordSelectors)
		submitSel := a.it.FirstExisting(ctx, selectors.LoginSubmitSelectors)
		if usernameSel == "" || passwordSel == "" || submitSel == "" {
			continue
		}

		if !a.it.SafeFill(ctx, usernameSel, username) || !a.it.SafeFill(ctx, passwordSel, password) {
			a.lastError = "filling the login form failed"
			continue
		}

		captchaSel := a.it.FirstExisting(ctx, selectors.CaptchaInputSelectors)
		if captchaSel != "" && a.captcha != nil {
			if err := a.captcha.Solve(ctx, a.page, captchaSel); err != nil {
				a.lastError = err.Error()
				return err
			}
		}

		if a.submitLogin(ctx, submitSel) {
			a.logger.Info("login succeeded", zap.String("login_url", loginURL))
			return nil
		}
		if a.lastError != "" {
			return types.NewError(types.ErrAuthFailure, a.lastError)
		}
	}

	if a.lastError == "" {
		a.lastError = "no usable login form found at the known URLs; set the login url explicitly"
	}
	a.logger.Warn("login failed", zap.String("reason", a.lastError))
	return types.NewError(types.ErrAuthFailure, a.lastError)
}
