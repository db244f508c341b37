// =============================================================================
// 📦 WaybillFlow 配置
// =============================================================================
// 统一配置加载，支持 YAML 文件 + 环境变量覆盖
//
// 使用方法:
//
//	cfg, err := config.Load("config.yaml")
//
// 配置优先级: 默认值 → YAML 文件 → 环境变量（前缀 WAYBILLFLOW_）
// =============================================================================
package config

import "time"

// Config 是 WaybillFlow 的完整配置结构
type Config struct {
	// Server HTTP 服务配置
	Server ServerConfig `yaml:"server" env:"SERVER"`

	// Portal 目标运单门户配置
	Portal PortalConfig `yaml:"portal" env:"PORTAL"`

	// Credentials 门户登录凭据
	Credentials CredentialsConfig `yaml:"credentials" env:"CREDENTIALS"`

	// Captcha 验证码处理配置
	Captcha CaptchaConfig `yaml:"captcha" env:"CAPTCHA"`

	// Traffic 准入控制配置（并发上限 / 节奏间隔 / 临时封禁退避）
	Traffic TrafficConfig `yaml:"traffic" env:"TRAFFIC"`

	// Retry 重试配置（页面导航级 + 工作流级）
	Retry RetryConfig `yaml:"retry" env:"RETRY"`

	// Browser 浏览器配置
	Browser BrowserConfig `yaml:"browser" env:"BROWSER"`

	// Geocode 地理编码配置
	Geocode GeocodeConfig `yaml:"geocode" env:"GEOCODE"`

	// Reporting 统计持久化配置
	Reporting ReportingConfig `yaml:"reporting" env:"REPORTING"`

	// API 敏感端点鉴权配置
	API APIAuthConfig `yaml:"api" env:"API"`

	// Log 日志配置
	Log LogConfig `yaml:"log" env:"LOG"`
}

// ServerConfig 服务器配置
type ServerConfig struct {
	// HTTP 监听地址
	Addr string `yaml:"addr" env:"ADDR"`
	// Metrics 监听地址
	MetricsAddr string `yaml:"metrics_addr" env:"METRICS_ADDR"`
	// 读取超时
	ReadTimeout time.Duration `yaml:"read_timeout" env:"READ_TIMEOUT"`
	// 写入超时
	WriteTimeout time.Duration `yaml:"write_timeout" env:"WRITE_TIMEOUT"`
	// 优雅关闭超时
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout" env:"SHUTDOWN_TIMEOUT"`
	// 每 IP 限流速率（请求/秒，0 表示关闭）
	RateLimitRPS float64 `yaml:"rate_limit_rps" env:"RATE_LIMIT_RPS"`
	// 限流突发容量
	RateLimitBurst int `yaml:"rate_limit_burst" env:"RATE_LIMIT_BURST"`
	// 允许的跨域来源（为空则拒绝跨域）
	CORSOrigins []string `yaml:"cors_origins" env:"CORS_ORIGINS"`
}

// PortalConfig 目标门户配置
type PortalConfig struct {
	// 门户根地址
	BaseURL string `yaml:"base_url" env:"BASE_URL"`
	// 登录页地址（为空则由 BaseURL 推导候选）
	LoginURL string `yaml:"login_url" env:"LOGIN_URL"`
	// 运单创建页地址（同时作为"仅认证可见"的探测 URL）
	WaybillURL string `yaml:"waybill_url" env:"WAYBILL_URL"`
	// 是否允许真实提交（full 模式的硬开关）
	AllowLiveSubmit bool `yaml:"allow_live_submit" env:"ALLOW_LIVE_SUBMIT"`

	// 页面导航超时
	NavigationTimeout time.Duration `yaml:"navigation_timeout" env:"NAVIGATION_TIMEOUT"`
	// 单个 DOM 操作超时
	ActionTimeout time.Duration `yaml:"action_timeout" env:"ACTION_TIMEOUT"`

	// 以下延迟来自门户前端的渲染节奏，按原始观测值设默认，均可调。
	// 导航后的页面安定延迟
	SettleDelay time.Duration `yaml:"settle_delay" env:"SETTLE_DELAY"`
	// 级联下拉加载延迟（省→市→区）
	CascadeDelay time.Duration `yaml:"cascade_delay" env:"CASCADE_DELAY"`
	// 相邻表单字段填写间隔
	FieldDelay time.Duration `yaml:"field_delay" env:"FIELD_DELAY"`
	// 自动完成建议渲染延迟
	SuggestionDelay time.Duration `yaml:"suggestion_delay" env:"SUGGESTION_DELAY"`
	// 提交后的安定延迟
	SubmitSettleDelay time.Duration `yaml:"submit_settle_delay" env:"SUBMIT_SETTLE_DELAY"`
	// 登录结果轮询总时限
	LoginResultTimeout time.Duration `yaml:"login_result_timeout" env:"LOGIN_RESULT_TIMEOUT"`
	// 登录后规则弹窗处理时限
	PostLoginTimeout time.Duration `yaml:"post_login_timeout" env:"POST_LOGIN_TIMEOUT"`
}

// CredentialsConfig 门户凭据
type CredentialsConfig struct {
	Username string `yaml:"username" env:"USERNAME"`
	Password string `yaml:"password" env:"PASSWORD"`
}

// CaptchaConfig 验证码配置
type CaptchaConfig struct {
	// 模式: provider_first / manual_only / provider_only
	Mode string `yaml:"mode" env:"MODE"`
	// 固定验证码值（测试/旁路）
	FixedValue string `yaml:"fixed_value" env:"FIXED_VALUE"`
	// 是否允许人工输入
	EnableManual bool `yaml:"enable_manual" env:"ENABLE_MANUAL"`
	// 人工输入总时限
	ManualTimeout time.Duration `yaml:"manual_timeout" env:"MANUAL_TIMEOUT"`
	// 人工输入轮询间隔
	ManualPollInterval time.Duration `yaml:"manual_poll_interval" env:"MANUAL_POLL_INTERVAL"`
	// 外部打码服务名（当前支持 twocaptcha）
	Provider string `yaml:"provider" env:"PROVIDER"`
	// 打码服务 API Key
	APIKey string `yaml:"api_key" env:"API_KEY"`
	// 打码服务总时限
	ProviderTimeout time.Duration `yaml:"provider_timeout" env:"PROVIDER_TIMEOUT"`
	// 打码结果轮询间隔
	ProviderPollInterval time.Duration `yaml:"provider_poll_interval" env:"PROVIDER_POLL_INTERVAL"`
	// 打码任务重试次数
	ProviderMaxRetries int `yaml:"provider_max_retries" env:"PROVIDER_MAX_RETRIES"`
}

// TrafficConfig 准入控制配置
type TrafficConfig struct {
	// 最大并发工作流数
	MaxConcurrent int `yaml:"max_concurrent" env:"MAX_CONCURRENT"`
	// 相邻工作流启动的最小间隔
	MinGap time.Duration `yaml:"min_gap" env:"MIN_GAP"`
	// 间隔的随机抖动上限
	Jitter time.Duration `yaml:"jitter" env:"JITTER"`
	// 收到限流信号后的基础封禁时长
	BlockBackoff time.Duration `yaml:"block_backoff" env:"BLOCK_BACKOFF"`
	// 封禁时长上限
	BlockBackoffMax time.Duration `yaml:"block_backoff_max" env:"BLOCK_BACKOFF_MAX"`
}

// RetryConfig 重试配置
type RetryConfig struct {
	// 工作流级最大重试次数（0 表示不重试）
	WorkflowMaxRetries int `yaml:"workflow_max_retries" env:"WORKFLOW_MAX_RETRIES"`
	// 工作流级基础退避
	WorkflowBase time.Duration `yaml:"workflow_base" env:"WORKFLOW_BASE"`
	// 工作流级抖动上限
	WorkflowJitter time.Duration `yaml:"workflow_jitter" env:"WORKFLOW_JITTER"`
	// 导航级最大重试次数
	NavigationMaxRetries int `yaml:"navigation_max_retries" env:"NAVIGATION_MAX_RETRIES"`
	// 导航级基础退避
	NavigationBase time.Duration `yaml:"navigation_base" env:"NAVIGATION_BASE"`
	// 导航级抖动上限
	NavigationJitter time.Duration `yaml:"navigation_jitter" env:"NAVIGATION_JITTER"`
}

// BrowserConfig 浏览器配置
type BrowserConfig struct {
	// 无头模式（人工验证码需要可见界面）
	Headless bool `yaml:"headless" env:"HEADLESS"`
	// 视口宽度
	ViewportWidth int `yaml:"viewport_width" env:"VIEWPORT_WIDTH"`
	// 视口高度
	ViewportHeight int `yaml:"viewport_height" env:"VIEWPORT_HEIGHT"`
	// User-Agent
	UserAgent string `yaml:"user_agent" env:"USER_AGENT"`
	// 代理地址
	ProxyURL string `yaml:"proxy_url" env:"PROXY_URL"`
	// 认证状态（Cookie）持久化路径
	AuthStatePath string `yaml:"auth_state_path" env:"AUTH_STATE_PATH"`
	// 是否启用认证状态持久化
	PersistAuthState bool `yaml:"persist_auth_state" env:"PERSIST_AUTH_STATE"`
	// 会话超时
	SessionTimeout time.Duration `yaml:"session_timeout" env:"SESSION_TIMEOUT"`
	// 单个页面动作的默认超时
	ActionTimeout time.Duration `yaml:"action_timeout" env:"ACTION_TIMEOUT"`
}

// GeocodeConfig 地理编码配置
type GeocodeConfig struct {
	// 查询端点（Nominatim 兼容）
	Endpoint string `yaml:"endpoint" env:"ENDPOINT"`
	// 请求 User-Agent（Nominatim 使用条款要求）
	UserAgent string `yaml:"user_agent" env:"USER_AGENT"`
	// 单次请求超时
	Timeout time.Duration `yaml:"timeout" env:"TIMEOUT"`
	// 请求速率上限（请求/秒）
	RatePerSecond float64 `yaml:"rate_per_second" env:"RATE_PER_SECOND"`
	// 附加在查询末尾的国家提示
	CountryHint string `yaml:"country_hint" env:"COUNTRY_HINT"`
}

// ReportingConfig 统计配置
type ReportingConfig struct {
	// SQLite 数据库路径
	DatabasePath string `yaml:"database_path" env:"DATABASE_PATH"`
	// 延迟样本窗口大小
	LatencySampleMax int `yaml:"latency_sample_max" env:"LATENCY_SAMPLE_MAX"`
}

// APIAuthConfig 敏感端点鉴权配置
type APIAuthConfig struct {
	// 模式: api_key_or_jwt / api_key / jwt / none
	Mode string `yaml:"mode" env:"MODE"`
	// API Key 请求头名
	APIKeyHeader string `yaml:"api_key_header" env:"API_KEY_HEADER"`
	// API Key 值
	APIKey string `yaml:"api_key" env:"API_KEY"`
	// JWT HS256 密钥
	JWTSecret string `yaml:"jwt_secret" env:"JWT_SECRET"`
	// JWT 签发者（为空则不校验）
	JWTIssuer string `yaml:"jwt_issuer" env:"JWT_ISSUER"`
	// JWT 受众（为空则不校验）
	JWTAudience string `yaml:"jwt_audience" env:"JWT_AUDIENCE"`
}

// LogConfig 日志配置
type LogConfig struct {
	// 级别: debug / info / warn / error
	Level string `yaml:"level" env:"LEVEL"`
	// 格式: json / console
	Format string `yaml:"format" env:"FORMAT"`
}
