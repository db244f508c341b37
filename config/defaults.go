package config

import "time"

// Default 返回完整的默认配置。
// 门户相关的延迟默认值取自对目标门户的实际观测。
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Addr:            ":8000",
			MetricsAddr:     ":9090",
			ReadTimeout:     30 * time.Second,
			WriteTimeout:    5 * time.Minute, // 工作流同步执行，响应可能很慢
			ShutdownTimeout: 30 * time.Second,
			RateLimitRPS:    5,
			RateLimitBurst:  10,
		},
		Portal: PortalConfig{
			BaseURL:            "https://barname.utcms.ir",
			LoginURL:           "https://barname.utcms.ir/Login",
			WaybillURL:         "https://barname.utcms.ir/Barname/Waybill/Create",
			AllowLiveSubmit:    false,
			NavigationTimeout:  60 * time.Second,
			ActionTimeout:      30 * time.Second,
			SettleDelay:        time.Second,
			CascadeDelay:       500 * time.Millisecond,
			FieldDelay:         200 * time.Millisecond,
			SuggestionDelay:    time.Second,
			SubmitSettleDelay:  2 * time.Second,
			LoginResultTimeout: 12 * time.Second,
			PostLoginTimeout:   12 * time.Second,
		},
		Captcha: CaptchaConfig{
			Mode:                 "provider_first",
			EnableManual:         true,
			ManualTimeout:        2 * time.Minute,
			ManualPollInterval:   700 * time.Millisecond,
			Provider:             "twocaptcha",
			ProviderTimeout:      2 * time.Minute,
			ProviderPollInterval: 5 * time.Second,
			ProviderMaxRetries:   2,
		},
		Traffic: TrafficConfig{
			MaxConcurrent:   2,
			MinGap:          800 * time.Millisecond,
			Jitter:          400 * time.Millisecond,
			BlockBackoff:    15 * time.Second,
			BlockBackoffMax: 3 * time.Minute,
		},
		Retry: RetryConfig{
			WorkflowMaxRetries:   1,
			WorkflowBase:         time.Second,
			WorkflowJitter:       500 * time.Millisecond,
			NavigationMaxRetries: 2,
			NavigationBase:       time.Second,
			NavigationJitter:     400 * time.Millisecond,
		},
		Browser: BrowserConfig{
			Headless:         true,
			ViewportWidth:    1280,
			ViewportHeight:   720,
			UserAgent:        "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/91.0.4472.124 Safari/537.36",
			AuthStatePath:    ".auth/portal_state.json",
			PersistAuthState: true,
			SessionTimeout:   10 * time.Minute,
			ActionTimeout:    15 * time.Second,
		},
		Geocode: GeocodeConfig{
			Endpoint:      "https://nominatim.openstreetmap.org/search",
			UserAgent:     "WaybillFlow/1.0",
			Timeout:       10 * time.Second,
			RatePerSecond: 1,
			CountryHint:   "Iran",
		},
		Reporting: ReportingConfig{
			DatabasePath:     "bot_stats.db",
			LatencySampleMax: 2000,
		},
		API: APIAuthConfig{
			Mode:         "api_key_or_jwt",
			APIKeyHeader: "X-API-Key",
		},
		Log: LogConfig{
			Level:  "info",
			Format: "json",
		},
	}
}
