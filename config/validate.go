package config

import (
	"fmt"

	"github.com/BaSui01/waybillflow/retry"
)

// =============================================================================
// ✅ 配置验证
// =============================================================================

// Validate 验证配置的合法性
func Validate(cfg *Config) error {
	if cfg.Portal.BaseURL == "" {
		return fmt.Errorf("portal.base_url is required")
	}
	if cfg.Traffic.MaxConcurrent < 1 {
		return fmt.Errorf("traffic.max_concurrent must be >= 1, got %d", cfg.Traffic.MaxConcurrent)
	}
	if cfg.Traffic.MinGap < 0 {
		return fmt.Errorf("traffic.min_gap must not be negative")
	}
	if cfg.Traffic.BlockBackoff > cfg.Traffic.BlockBackoffMax {
		return fmt.Errorf("traffic.block_backoff exceeds traffic.block_backoff_max")
	}
	if cfg.Retry.WorkflowMaxRetries < 0 || cfg.Retry.NavigationMaxRetries < 0 {
		return fmt.Errorf("retry counts must not be negative")
	}
	if cfg.Retry.WorkflowBase < retry.MinBaseDelay {
		return fmt.Errorf("retry.workflow_base must be at least %s, got %s", retry.MinBaseDelay, cfg.Retry.WorkflowBase)
	}
	if cfg.Retry.NavigationBase < retry.MinBaseDelay {
		return fmt.Errorf("retry.navigation_base must be at least %s, got %s", retry.MinBaseDelay, cfg.Retry.NavigationBase)
	}
	switch cfg.Captcha.Mode {
	case "provider_first", "provider_only", "manual_only", "fixed":
	default:
		return fmt.Errorf("captcha.mode %q is not supported", cfg.Captcha.Mode)
	}
	if cfg.Captcha.Mode == "fixed" && cfg.Captcha.FixedValue == "" {
		return fmt.Errorf("captcha.fixed_value is required when captcha.mode is fixed")
	}
	if cfg.Geocode.RatePerSecond <= 0 {
		return fmt.Errorf("geocode.rate_per_second must be positive")
	}
	if cfg.Browser.ViewportWidth <= 0 || cfg.Browser.ViewportHeight <= 0 {
		return fmt.Errorf("browser viewport must be positive")
	}
	return nil
}
