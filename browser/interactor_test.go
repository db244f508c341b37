package browser_test

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/BaSui01/waybillflow/browser"
	"github.com/BaSui01/waybillflow/testutil"
)

func TestSafeFill(t *testing.T) {
	page := testutil.NewFakePage().AddVisible("input[name='Username']")
	it := browser.NewInteractor(page, time.Second, zap.NewNop())
	ctx := testutil.TestContext(t)

	assert.True(t, it.SafeFill(ctx, "input[name='Username']", "0012345678"))
	assert.Equal(t, "0012345678", page.Fills["input[name='Username']"])

	// missing element reports false, no error escapes
	assert.False(t, it.SafeFill(ctx, "input[name='Missing']", "x"))
}

func TestSafeClickInvisibleElement(t *testing.T) {
	page := testutil.NewFakePage().AddElement("button[type='submit']", &testutil.FakeElement{Visible: false})
	it := browser.NewInteractor(page, time.Second, zap.NewNop())

	assert.False(t, it.SafeClick(testutil.TestContext(t), "button[type='submit']", false))
	assert.Empty(t, page.Clicks)
}

func TestSafeClickWithNavigation(t *testing.T) {
	page := testutil.NewFakePage().AddVisible("button[type='submit']")
	page.ClickNavHook = func(string) { page.CurrentURL = "https://portal.example/home" }
	it := browser.NewInteractor(page, time.Second, zap.NewNop())
	ctx := testutil.TestContext(t)

	require.True(t, it.SafeClick(ctx, "button[type='submit']", true))
	url, err := page.URL(ctx)
	require.NoError(t, err)
	assert.Equal(t, "https://portal.example/home", url)
}

func TestFillFirstUsesFirstPresentSelector(t *testing.T) {
	page := testutil.NewFakePage().AddVisible("input[name='username']")
	it := browser.NewInteractor(page, time.Second, zap.NewNop())

	used := it.FillFirst(testutil.TestContext(t), []string{
		"input[name='NationalCode']",
		"input[name='Username']",
		"input[name='username']",
	}, "user")
	assert.Equal(t, "input[name='username']", used)
	assert.Equal(t, "user", page.Fills["input[name='username']"])
}

func TestFillFirstNoMatch(t *testing.T) {
	page := testutil.NewFakePage()
	it := browser.NewInteractor(page, time.Second, zap.NewNop())
	assert.Empty(t, it.FillFirst(testutil.TestContext(t), []string{"#a", "#b"}, "v"))
}

func TestClickFirstAndFirstExisting(t *testing.T) {
	page := testutil.NewFakePage().
		AddVisible("input[type='submit']").
		AddVisible(".alert-danger")
	it := browser.NewInteractor(page, time.Second, zap.NewNop())
	ctx := testutil.TestContext(t)

	used := it.ClickFirst(ctx, []string{"button[type='submit']", "input[type='submit']"}, false)
	assert.Equal(t, "input[type='submit']", used)
	assert.Equal(t, []string{"input[type='submit']"}, page.Clicks)

	assert.Equal(t, ".alert-danger", it.FirstExisting(ctx, []string{".toast-message", ".alert-danger"}))
	assert.Empty(t, it.FirstExisting(ctx, []string{".nope"}))
}

func TestNavigateWithRetryRecoversFromTransientDNSFailure(t *testing.T) {
	page := testutil.NewFakePage()
	page.NavErrors["https://portal.example/waybill"] = []error{
		errors.New("net::ERR_NAME_NOT_RESOLVED"),
		nil,
	}

	err := browser.NavigateWithRetry(testutil.TestContext(t), page,
		"https://portal.example/waybill", 2, time.Millisecond, 0, zap.NewNop())
	require.NoError(t, err)
	assert.Len(t, page.Navigations, 2)
}

func TestNavigateWithRetryStopsOnPermanentError(t *testing.T) {
	page := testutil.NewFakePage()
	page.NavErrors["https://portal.example/waybill"] = []error{
		errors.New("invalid URL scheme"),
	}

	err := browser.NavigateWithRetry(testutil.TestContext(t), page,
		"https://portal.example/waybill", 3, time.Millisecond, 0, zap.NewNop())
	require.Error(t, err)
	assert.Len(t, page.Navigations, 1)
}
