package auth_test

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/BaSui01/waybillflow/automation/auth"
	"github.com/BaSui01/waybillflow/automation/captcha"
	"github.com/BaSui01/waybillflow/config"
	"github.com/BaSui01/waybillflow/testutil"
	"github.com/BaSui01/waybillflow/types"
)

const (
	baseURL    = "https://portal.example"
	loginURL   = baseURL + "/Account/Login"
	waybillURL = baseURL + "/Barname/Waybill/Create"
)

func testPortalConfig() config.PortalConfig {
	return config.PortalConfig{
		BaseURL:            baseURL,
		LoginURL:           loginURL,
		WaybillURL:         waybillURL,
		ActionTimeout:      time.Second,
		SettleDelay:        0,
		LoginResultTimeout: 300 * time.Millisecond,
		PostLoginTimeout:   300 * time.Millisecond,
	}
}

func testRetryConfig() config.RetryConfig {
	return config.RetryConfig{NavigationMaxRetries: 1, NavigationBase: time.Millisecond}
}

func newAuthenticator(page *testutil.FakePage, resolver *captcha.Resolver) *auth.Authenticator {
	return auth.New(page, testPortalConfig(), testRetryConfig(), resolver, zap.NewNop())
}

func addLoginForm(page *testutil.FakePage) {
	page.AddVisible("input[name='NationalCode']")
	page.AddVisible("input[name='Password']")
	page.AddVisible("button[type='submit']")
}

func removeLoginForm(page *testutil.FakePage) {
	page.RemoveElement("input[name='NationalCode']")
	page.RemoveElement("input[name='Password']")
	page.RemoveElement("button[type='submit']")
}

func TestStateLoggedInViaLogoutControl(t *testing.T) {
	page := testutil.NewFakePage().AddVisible("text=خروج")
	a := newAuthenticator(page, nil)

	assert.Equal(t, types.AuthLoggedIn, a.State(testutil.TestContext(t)))
	assert.Equal(t, []string{waybillURL}, page.Navigations)
}

func TestStateRedirectedToLoginPage(t *testing.T) {
	page := testutil.NewFakePage()
	page.NavHook = func(string) { page.CurrentURL = loginURL }
	a := newAuthenticator(page, nil)

	assert.Equal(t, types.AuthOnLoginPage, a.State(testutil.TestContext(t)))
}

func TestStateLoggedInViaFormMarkers(t *testing.T) {
	page := testutil.NewFakePage().AddVisible("input[name='SenderName']")
	a := newAuthenticator(page, nil)

	assert.Equal(t, types.AuthLoggedIn, a.State(testutil.TestContext(t)))
}

func TestStateLoginFormWithoutLoginURL(t *testing.T) {
	// some builds serve the login form on a non-login URL
	page := testutil.NewFakePage()
	addLoginForm(page)
	a := newAuthenticator(page, nil)

	assert.Equal(t, types.AuthOnLoginPage, a.State(testutil.TestContext(t)))
}

func TestStateFallbackTreatsNonLoginPageAsAuthenticated(t *testing.T) {
	page := testutil.NewFakePage()
	a := newAuthenticator(page, nil)

	assert.Equal(t, types.AuthLoggedIn, a.State(testutil.TestContext(t)))
}

func TestStateUnknownWhenPortalUnreachable(t *testing.T) {
	page := testutil.NewFakePage()
	page.NavErrors[waybillURL] = []error{
		errors.New("net::ERR_NAME_NOT_RESOLVED"),
		errors.New("net::ERR_NAME_NOT_RESOLVED"),
	}
	a := newAuthenticator(page, nil)

	assert.Equal(t, types.AuthUnknown, a.State(testutil.TestContext(t)))
}

func TestLoginSuccess(t *testing.T) {
	page := testutil.NewFakePage()
	addLoginForm(page)
	page.NavHook = func(url string) {
		if url == waybillURL {
			// after login the waybill page stays reachable
			page.CurrentURL = waybillURL
		}
	}
	page.ClickNavHook = func(string) {
		removeLoginForm(page)
		page.CurrentURL = baseURL + "/Home"
		page.AddVisible("text=خروج")
	}
	a := newAuthenticator(page, nil)

	require.NoError(t, a.Login(testutil.TestContext(t), "0012345678", "secret"))
	assert.Equal(t, "0012345678", page.Fills["input[name='NationalCode']"])
	assert.Equal(t, "secret", page.Fills["input[name='Password']"])
	assert.Contains(t, page.Clicks, "button[type='submit']")
}

func TestLoginSurfacesPortalErrorMessage(t *testing.T) {
	page := testutil.NewFakePage()
	addLoginForm(page)
	page.ClickNavHook = func(string) {
		page.AddElement(".validation-summary-errors", &testutil.FakeElement{
			Visible: true,
			Text:    "invalid credentials",
		})
	}
	a := newAuthenticator(page, nil)

	err := a.Login(testutil.TestContext(t), "user", "wrong")
	require.Error(t, err)
	assert.Equal(t, types.ErrAuthFailure, types.GetErrorCode(err))
	assert.Contains(t, err.Error(), "invalid credentials")
	assert.Equal(t, "invalid credentials", a.LastError())
}

func TestLoginAcceptsRulesModal(t *testing.T) {
	page := testutil.NewFakePage()
	addLoginForm(page)
	page.ClickNavHook = func(sel string) {
		if sel != "button[type='submit']" {
			return
		}
		removeLoginForm(page)
		page.CurrentURL = baseURL + "/Home"
		page.AddVisible("#ExceptRulesModalReal")
		page.AddVisible("#ruleExcepted")
		page.AddVisible("#submitRules")
		page.AddVisible("text=خروج")
	}
	a := newAuthenticator(page, nil)

	require.NoError(t, a.Login(testutil.TestContext(t), "user", "pass"))
	assert.True(t, page.Element("#ruleExcepted").Checked)
	assert.Contains(t, page.Clicks, "#submitRules")
}

func TestLoginSolvesCaptchaWithFixedValue(t *testing.T) {
	page := testutil.NewFakePage()
	addLoginForm(page)
	page.AddVisible("input[name='CapToken']")
	page.ClickNavHook = func(string) {
		removeLoginForm(page)
		page.RemoveElement("input[name='CapToken']")
		page.CurrentURL = baseURL + "/Home"
		page.AddVisible("text=خروج")
	}

	resolver := captcha.NewResolver(config.CaptchaConfig{FixedValue: "1234"}, true, zap.NewNop())
	a := newAuthenticator(page, resolver)

	require.NoError(t, a.Login(testutil.TestContext(t), "user", "pass"))
	assert.Equal(t, "1234", page.Fills["input[name='CapToken']"])
}

func TestLoginCaptchaFailureAborts(t *testing.T) {
	page := testutil.NewFakePage()
	addLoginForm(page)
	page.AddVisible("input[name='CapToken']")

	// no fixed value, no provider, manual disabled: captcha cannot be solved
	resolver := captcha.NewResolver(config.CaptchaConfig{Mode: "provider_only"}, true, zap.NewNop())
	a := newAuthenticator(page, resolver)

	err := a.Login(testutil.TestContext(t), "user", "pass")
	require.Error(t, err)
	assert.Equal(t, types.ErrCaptchaFailure, types.GetErrorCode(err))
	assert.Empty(t, page.Clicks, "submit must not be clicked after captcha failure")
}

func TestLoginNoFormFound(t *testing.T) {
	page := testutil.NewFakePage()
	a := newAuthenticator(page, nil)

	err := a.Login(testutil.TestContext(t), "user", "pass")
	require.Error(t, err)
	assert.Equal(t, types.ErrAuthFailure, types.GetErrorCode(err))
}
