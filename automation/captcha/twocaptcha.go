package captcha

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/BaSui01/waybillflow/internal/tlsutil"
	"github.com/BaSui01/waybillflow/types"
)

const (
	twoCaptchaInURL  = "https://2captcha.com/in.php"
	twoCaptchaResURL = "https://2captcha.com/res.php"

	// the service answers this while a worker is still typing
	captchaNotReady = "CAPCHA_NOT_READY"
)

// TwoCaptcha talks to the 2captcha.com image-solving API: submit the image
// to in.php, then poll res.php until a worker answers.
type TwoCaptcha struct {
	apiKey     string
	inURL      string
	resURL     string
	timeout    time.Duration
	poll       time.Duration
	maxRetries int
	client     *http.Client
	logger     *zap.Logger
}

// TwoCaptchaOption adjusts a TwoCaptcha client.
type TwoCaptchaOption func(*TwoCaptcha)

// WithEndpoints overrides the API endpoints, used by tests.
func WithEndpoints(inURL, resURL string) TwoCaptchaOption {
	return func(t *TwoCaptcha) {
		t.inURL = inURL
		t.resURL = resURL
	}
}

// WithHTTPClient overrides the HTTP client.
func WithHTTPClient(c *http.Client) TwoCaptchaOption {
	return func(t *TwoCaptcha) { t.client = c }
}

// NewTwoCaptcha builds a client. Timeout bounds the whole poll loop and
// is clamped to at least 30s, poll to at least 2s, per service guidance.
func NewTwoCaptcha(apiKey string, timeout, poll time.Duration, maxRetries int, logger *zap.Logger, opts ...TwoCaptchaOption) *TwoCaptcha {
	if timeout < 30*time.Second {
		timeout = 30 * time.Second
	}
	if poll < 2*time.Second {
		poll = 2 * time.Second
	}
	if maxRetries < 1 {
		maxRetries = 1
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	t := &TwoCaptcha{
		apiKey:     strings.TrimSpace(apiKey),
		inURL:      twoCaptchaInURL,
		resURL:     twoCaptchaResURL,
		timeout:    timeout,
		poll:       poll,
		maxRetries: maxRetries,
		client:     tlsutil.SecureHTTPClient(30 * time.Second),
		logger:     logger.With(zap.String("component", "twocaptcha")),
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// Name implements Provider.
func (t *TwoCaptcha) Name() string { return "twocaptcha" }

type apiResponse struct {
	Status  json.Number `json:"status"`
	Request string      `json:"request"`
}

// SolveText implements Provider.
func (t *TwoCaptcha) SolveText(ctx context.Context, imageBase64 string) (string, error) {
	if t.apiKey == "" {
		return "", types.NewError(types.ErrCaptchaFailure, "twocaptcha api key is not configured")
	}
	if imageBase64 == "" {
		return "", types.NewError(types.ErrCaptchaFailure, "captcha image is empty")
	}

	var lastErr error
	for attempt := 1; attempt <= t.maxRetries; attempt++ {
		taskID, err := t.createTask(ctx, imageBase64)
		if err != nil {
			lastErr = err
			t.logger.Warn("captcha task create failed",
				zap.Int("attempt", attempt), zap.Error(err))
			continue
		}

		value, err := t.pollResult(ctx, taskID)
		if err != nil {
			lastErr = err
			t.logger.Warn("captcha solve failed",
				zap.Int("attempt", attempt),
				zap.String("task_id", taskID),
				zap.Error(err))
			continue
		}
		return value, nil
	}

	return "", types.NewError(types.ErrCaptchaFailure, "captcha provider could not solve the image").WithCause(lastErr)
}

func (t *TwoCaptcha) createTask(ctx context.Context, imageBase64 string) (string, error) {
	form := url.Values{
		"key":    {t.apiKey},
		"method": {"base64"},
		"body":   {imageBase64},
		"json":   {"1"},
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, t.inURL, strings.NewReader(form.Encode()))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	payload, err := t.doJSON(req)
	if err != nil {
		return "", err
	}
	if payload.Status.String() != "1" {
		return "", fmt.Errorf("task rejected: %s", payload.Request)
	}
	return payload.Request, nil
}

func (t *TwoCaptcha) pollResult(ctx context.Context, taskID string) (string, error) {
	deadline := time.Now().Add(t.timeout)

	for time.Now().Before(deadline) {
		q := url.Values{
			"key":    {t.apiKey},
			"action": {"get"},
			"id":     {taskID},
			"json":   {"1"},
		}
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, t.resURL+"?"+q.Encode(), nil)
		if err != nil {
			return "", err
		}

		payload, err := t.doJSON(req)
		if err != nil {
			return "", err
		}

		if payload.Status.String() == "1" {
			value := strings.TrimSpace(payload.Request)
			if value == "" {
				return "", fmt.Errorf("service returned an empty solution")
			}
			return value, nil
		}
		if payload.Request != captchaNotReady {
			return "", fmt.Errorf("task failed: %s", payload.Request)
		}

		select {
		case <-ctx.Done():
			return "", ctx.Err()
		case <-time.After(t.poll):
		}
	}

	return "", fmt.Errorf("solve timed out after %s", t.timeout)
}

func (t *TwoCaptcha) doJSON(req *http.Request) (*apiResponse, error) {
	resp, err := t.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, err
	}

	var payload apiResponse
	if err := json.Unmarshal(body, &payload); err != nil {
		return nil, fmt.Errorf("unexpected response %q: %w", string(body), err)
	}
	return &payload, nil
}
