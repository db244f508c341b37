package captcha_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/BaSui01/waybillflow/automation/captcha"
	"github.com/BaSui01/waybillflow/config"
	"github.com/BaSui01/waybillflow/testutil"
	"github.com/BaSui01/waybillflow/types"
)

const captchaInput = "input[name='CapToken']"

type stubProvider struct {
	value string
	err   error
	calls int
}

func (s *stubProvider) SolveText(ctx context.Context, imageBase64 string) (string, error) {
	s.calls++
	return s.value, s.err
}

func (s *stubProvider) Name() string { return "stub" }

func TestSolveNoCaptchaPresent(t *testing.T) {
	r := captcha.NewResolver(config.CaptchaConfig{Mode: "provider_first"}, true, zap.NewNop())
	assert.NoError(t, r.Solve(testutil.TestContext(t), testutil.NewFakePage(), ""))
}

func TestSolveFixedValue(t *testing.T) {
	page := testutil.NewFakePage().AddVisible(captchaInput)
	r := captcha.NewResolver(config.CaptchaConfig{FixedValue: "9999"}, true, zap.NewNop())

	require.NoError(t, r.Solve(testutil.TestContext(t), page, captchaInput))
	assert.Equal(t, "9999", page.Fills[captchaInput])
}

func TestSolveProviderFirstUsesProvider(t *testing.T) {
	page := testutil.NewFakePage().
		AddVisible(captchaInput).
		AddVisible(`img[id*='captcha' i]`)

	stub := &stubProvider{value: "ab12"}
	r := captcha.NewResolver(config.CaptchaConfig{Mode: "provider_first"}, true, zap.NewNop()).
		WithProvider(stub)

	require.NoError(t, r.Solve(testutil.TestContext(t), page, captchaInput))
	assert.Equal(t, 1, stub.calls)
	assert.Equal(t, "ab12", page.Fills[captchaInput])
}

func TestSolveProviderFirstFallsBackToManual(t *testing.T) {
	page := testutil.NewFakePage().
		AddVisible(captchaInput).
		AddVisible(`img[src*='captcha' i]`)

	stub := &stubProvider{err: errors.New("service down")}
	r := captcha.NewResolver(config.CaptchaConfig{
		Mode:               "provider_first",
		EnableManual:       true,
		ManualTimeout:      5 * time.Second,
		ManualPollInterval: time.Second,
	}, false, zap.NewNop()).WithProvider(stub)

	// a human types the value shortly after solving starts
	go func() {
		time.Sleep(50 * time.Millisecond)
		page.Element(captchaInput).Value = "typed"
	}()

	require.NoError(t, r.Solve(testutil.TestContext(t), page, captchaInput))
	assert.Equal(t, 1, stub.calls)
}

func TestSolveManualRequiresVisibleBrowser(t *testing.T) {
	page := testutil.NewFakePage().AddVisible(captchaInput)
	r := captcha.NewResolver(config.CaptchaConfig{
		Mode:         "manual_only",
		EnableManual: true,
	}, true, zap.NewNop())

	err := r.Solve(testutil.TestContext(t), page, captchaInput)
	require.Error(t, err)
	assert.Equal(t, types.ErrCaptchaFailure, types.GetErrorCode(err))
	assert.Contains(t, err.Error(), "headless")
}

func TestSolveProviderOnlyFailure(t *testing.T) {
	page := testutil.NewFakePage().AddVisible(captchaInput)
	// no captcha image on the page, so the provider path cannot start
	stub := &stubProvider{value: "unused"}
	r := captcha.NewResolver(config.CaptchaConfig{Mode: "provider_only"}, true, zap.NewNop()).
		WithProvider(stub)

	err := r.Solve(testutil.TestContext(t), page, captchaInput)
	require.Error(t, err)
	assert.Equal(t, 0, stub.calls)
	assert.Contains(t, err.Error(), "provider_only")
}

func TestSolveNoPathConfigured(t *testing.T) {
	page := testutil.NewFakePage().AddVisible(captchaInput)
	r := captcha.NewResolver(config.CaptchaConfig{Mode: "provider_first"}, true, zap.NewNop())

	err := r.Solve(testutil.TestContext(t), page, captchaInput)
	require.Error(t, err)
	assert.Equal(t, types.ErrCaptchaFailure, types.GetErrorCode(err))
}

type recordedSolve struct {
	provider string
	status   string
}

type stubSolveMetrics struct {
	solves []recordedSolve
}

func (m *stubSolveMetrics) RecordCaptchaSolve(provider, status string, _ time.Duration) {
	m.solves = append(m.solves, recordedSolve{provider: provider, status: status})
}

func TestSolveReportsOutcomes(t *testing.T) {
	page := testutil.NewFakePage().
		AddVisible(captchaInput).
		AddVisible(`img[id*='captcha' i]`)

	stub := &stubProvider{value: "ab12"}
	observer := &stubSolveMetrics{}
	r := captcha.NewResolver(config.CaptchaConfig{Mode: "provider_first"}, true, zap.NewNop()).
		WithProvider(stub)
	r.SetMetrics(observer)

	require.NoError(t, r.Solve(testutil.TestContext(t), page, captchaInput))
	require.Len(t, observer.solves, 1)
	assert.Equal(t, recordedSolve{provider: "stub", status: "success"}, observer.solves[0])
}

func TestSolveReportsProviderFailure(t *testing.T) {
	page := testutil.NewFakePage().
		AddVisible(captchaInput).
		AddVisible(`img[id*='captcha' i]`)

	stub := &stubProvider{err: errors.New("service down")}
	observer := &stubSolveMetrics{}
	r := captcha.NewResolver(config.CaptchaConfig{Mode: "provider_only"}, true, zap.NewNop()).
		WithProvider(stub)
	r.SetMetrics(observer)

	err := r.Solve(testutil.TestContext(t), page, captchaInput)
	require.Error(t, err)
	require.Len(t, observer.solves, 1)
	assert.Equal(t, recordedSolve{provider: "stub", status: "failure"}, observer.solves[0])
}

func TestSolveFixedValueReportsOutcome(t *testing.T) {
	page := testutil.NewFakePage().AddVisible(captchaInput)
	observer := &stubSolveMetrics{}
	r := captcha.NewResolver(config.CaptchaConfig{FixedValue: "9999"}, true, zap.NewNop())
	r.SetMetrics(observer)

	require.NoError(t, r.Solve(testutil.TestContext(t), page, captchaInput))
	require.Len(t, observer.solves, 1)
	assert.Equal(t, recordedSolve{provider: "fixed", status: "success"}, observer.solves[0])
}
