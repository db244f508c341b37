package browser

import (
	"context"
	"time"

	"go.uber.org/zap"
)

// Interactor wraps a Page with failure-tolerant helpers. Form code probes
// many candidate selectors per field, so a miss is expected and reported
// as false rather than an error.
type Interactor struct {
	page    Page
	logger  *zap.Logger
	timeout time.Duration
}

// NewInteractor builds an Interactor with the given per-action timeout.
func NewInteractor(page Page, timeout time.Duration, logger *zap.Logger) *Interactor {
	if logger == nil {
		logger = zap.NewNop()
	}
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &Interactor{page: page, logger: logger, timeout: timeout}
}

// Page returns the wrapped page.
func (it *Interactor) Page() Page { return it.page }

// SafeClick clicks the first match, optionally waiting for the navigation
// it triggers. Returns false on any failure.
func (it *Interactor) SafeClick(ctx context.Context, selector string, waitForNavigation bool) bool {
	if err := it.page.WaitVisible(ctx, selector, it.timeout); err != nil {
		it.logger.Warn("safe click: element not visible",
			zap.String("selector", selector), zap.Error(err))
		return false
	}

	var err error
	if waitForNavigation {
		err = it.page.ClickAndNavigate(ctx, selector)
	} else {
		err = it.page.Click(ctx, selector)
	}
	if err != nil {
		it.logger.Warn("safe click failed",
			zap.String("selector", selector), zap.Error(err))
		return false
	}
	return true
}

// SafeFill fills the first match with value. Returns false on any failure.
func (it *Interactor) SafeFill(ctx context.Context, selector, value string) bool {
	if err := it.page.WaitVisible(ctx, selector, it.timeout); err != nil {
		it.logger.Warn("safe fill: element not visible",
			zap.String("selector", selector), zap.Error(err))
		return false
	}
	if err := it.page.Fill(ctx, selector, value); err != nil {
		it.logger.Warn("safe fill failed",
			zap.String("selector", selector), zap.Error(err))
		return false
	}
	return true
}

// FillFirst tries each candidate selector in order and fills the first one
// present on the page. Returns the selector used, or "" when none matched.
func (it *Interactor) FillFirst(ctx context.Context, selectors []string, value string) string {
	for _, sel := range selectors {
		present, err := it.page.Exists(ctx, sel)
		if err != nil || !present {
			continue
		}
		if it.SafeFill(ctx, sel, value) {
			return sel
		}
	}
	return ""
}

// ClickFirst tries each candidate selector in order and clicks the first
// one present. Returns the selector used, or "" when none matched.
func (it *Interactor) ClickFirst(ctx context.Context, selectors []string, waitForNavigation bool) string {
	for _, sel := range selectors {
		present, err := it.page.Exists(ctx, sel)
		if err != nil || !present {
			continue
		}
		if it.SafeClick(ctx, sel, waitForNavigation) {
			return sel
		}
	}
	return ""
}

// FirstExisting returns the first candidate selector present on the page.
func (it *Interactor) FirstExisting(ctx context.Context, selectors []string) string {
	for _, sel := range selectors {
		present, err := it.page.Exists(ctx, sel)
		if err == nil && present {
			return sel
		}
	}
	return ""
}
