package captcha

import (
	"context"
	"encoding/base64"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/BaSui01/waybillflow/automation/selectors"
	"github.com/BaSui01/waybillflow/browser"
	"github.com/BaSui01/waybillflow/config"
	"github.com/BaSui01/waybillflow/types"
)

// Metrics receives solve outcomes. *metrics.Collector satisfies it; a nil
// observer disables recording.
type Metrics interface {
	RecordCaptchaSolve(provider, status string, duration time.Duration)
}

// Resolver fills the login captcha input using the configured strategy:
// a fixed value, a solving provider, a human at the visible browser, or
// combinations of those.
type Resolver struct {
	cfg      config.CaptchaConfig
	headless bool
	provider Provider
	metrics  Metrics
	logger   *zap.Logger
}

// NewResolver builds a Resolver. The provider is wired from cfg; today
// only 2captcha is supported.
func NewResolver(cfg config.CaptchaConfig, headless bool, logger *zap.Logger) *Resolver {
	if logger == nil {
		logger = zap.NewNop()
	}

	var provider Provider
	if cfg.Provider == "twocaptcha" && cfg.APIKey != "" {
		provider = NewTwoCaptcha(cfg.APIKey, cfg.ProviderTimeout, cfg.ProviderPollInterval, cfg.ProviderMaxRetries, logger)
	}

	return &Resolver{
		cfg:      cfg,
		headless: headless,
		provider: provider,
		logger:   logger.With(zap.String("component", "captcha_resolver")),
	}
}

// WithProvider replaces the solving provider, used by tests.
func (r *Resolver) WithProvider(p Provider) *Resolver {
	r.provider = p
	return r
}

// SetMetrics attaches a solve-outcome observer.
func (r *Resolver) SetMetrics(m Metrics) {
	r.metrics = m
}

func (r *Resolver) observe(provider, status string, started time.Time) {
	if r.metrics != nil {
		r.metrics.RecordCaptchaSolve(provider, status, time.Since(started))
	}
}

// ProviderName reports the active provider, or "" when none is wired.
func (r *Resolver) ProviderName() string {
	if r.provider == nil {
		return ""
	}
	return r.provider.Name()
}

func (r *Resolver) mode() string {
	mode := strings.ToLower(strings.TrimSpace(r.cfg.Mode))
	switch mode {
	case "provider_first", "provider_only", "manual_only", "fixed":
		return mode
	}
	return "provider_first"
}

// Solve fills inputSelector with a captcha solution. An empty selector
// means no captcha is present and is not an error.
func (r *Resolver) Solve(ctx context.Context, page browser.Page, inputSelector string) error {
	if inputSelector == "" {
		return nil
	}
	started := time.Now()

	if r.cfg.FixedValue != "" {
		if err := page.Fill(ctx, inputSelector, r.cfg.FixedValue); err != nil {
			r.observe("fixed", "failure", started)
			return types.NewError(types.ErrCaptchaFailure, "captcha field found but could not be filled").WithCause(err)
		}
		r.observe("fixed", "success", started)
		return nil
	}

	mode := r.mode()
	if mode == "fixed" {
		return types.NewError(types.ErrCaptchaFailure, "captcha mode is fixed but no fixed value is configured")
	}

	allowProvider := mode == "provider_first" || mode == "provider_only"
	allowManual := (mode == "provider_first" || mode == "manual_only") && r.cfg.EnableManual

	if allowProvider && r.provider != nil {
		value, err := r.solveWithProvider(ctx, page)
		if err == nil && value != "" {
			if fillErr := page.Fill(ctx, inputSelector, value); fillErr != nil {
				r.observe(r.provider.Name(), "failure", started)
				return types.NewError(types.ErrCaptchaFailure, "captcha solved but the input could not be filled").WithCause(fillErr)
			}
			r.observe(r.provider.Name(), "success", started)
			return nil
		}
		if err != nil {
			r.observe(r.provider.Name(), "failure", started)
			r.logger.Warn("captcha provider failed",
				zap.String("provider", r.provider.Name()), zap.Error(err))
		}
	}

	if allowManual {
		if r.headless {
			return types.NewError(types.ErrCaptchaFailure,
				"manual captcha entry requires a visible browser; disable headless mode")
		}
		if err := r.waitForManualInput(ctx, page, inputSelector); err != nil {
			r.observe("manual", "failure", started)
			return err
		}
		r.observe("manual", "success", started)
		return nil
	}

	switch mode {
	case "provider_only":
		return types.NewError(types.ErrCaptchaFailure,
			"captcha unsolved in provider_only mode; check the provider and api key settings")
	case "manual_only":
		return types.NewError(types.ErrCaptchaFailure,
			"manual_only mode is set but manual captcha entry is disabled")
	default:
		return types.NewError(types.ErrCaptchaFailure,
			"captcha is active on the login page; configure a fixed value, a provider key, or manual entry")
	}
}

// solveWithProvider grabs the captcha image from the page and asks the
// provider for its text.
func (r *Resolver) solveWithProvider(ctx context.Context, page browser.Page) (string, error) {
	var image []byte
	for _, sel := range selectors.CaptchaImageSelectors {
		present, err := page.Exists(ctx, sel)
		if err != nil || !present {
			continue
		}
		if buf, err := page.ElementScreenshot(ctx, sel); err == nil && len(buf) > 0 {
			image = buf
			break
		}
	}
	if len(image) == 0 {
		return "", types.NewError(types.ErrCaptchaFailure, "captcha image not found on the page")
	}

	return r.provider.SolveText(ctx, base64.StdEncoding.EncodeToString(image))
}

// waitForManualInput polls the captcha input until a human types a value.
func (r *Resolver) waitForManualInput(ctx context.Context, page browser.Page, inputSelector string) error {
	timeout := r.cfg.ManualTimeout
	if timeout < 5*time.Second {
		timeout = 5 * time.Second
	}
	poll := r.cfg.ManualPollInterval
	if poll < 200*time.Millisecond {
		poll = 200 * time.Millisecond
	}

	r.logger.Info("waiting for manual captcha entry",
		zap.Duration("timeout", timeout))

	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		value, err := page.Value(ctx, inputSelector)
		if err == nil && strings.TrimSpace(value) != "" {
			return nil
		}

		select {
		case <-ctx.Done():
			return types.NewError(types.ErrCaptchaFailure, "manual captcha entry cancelled").WithCause(ctx.Err())
		case <-time.After(poll):
		}
	}

	return types.NewError(types.ErrCaptchaFailure,
		"captcha was not entered within the allowed time; type it in the browser and retry")
}
