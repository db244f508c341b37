package retry

import (
	"context"
	"fmt"
	"math"
	"math/rand"
	"time"

	"go.uber.org/zap"
)

// MinBaseDelay 是重试器允许的最小基础延迟，防止把门户打成快速轮询。
const MinBaseDelay = 100 * time.Millisecond

// Policy 定义重试策略配置
// 遵循 KISS 原则：指数退避 + 加性随机抖动
type Policy struct {
	MaxRetries int                                               // 最大重试次数（0 表示不重试）
	BaseDelay  time.Duration                                     // 首次重试前的基础延迟
	Jitter     time.Duration                                     // 每次延迟上叠加 [0, Jitter) 的随机量
	Classify   func(err error) bool                              // 判断错误是否可重试（nil 则全部重试）
	OnRetry    func(attempt int, err error, delay time.Duration) // 重试回调
}

// DefaultPolicy 返回默认的重试策略
func DefaultPolicy() *Policy {
	return &Policy{
		MaxRetries: 2,
		BaseDelay:  1 * time.Second,
		Jitter:     500 * time.Millisecond,
	}
}

// DelayFor 计算第 attempt 次重试前的延迟（attempt 从 1 开始）。
// delay = base * 2^(attempt-1) + uniform(0, jitter)
// base 不做下限修正，调用方在配置层保证其合理性。
func DelayFor(attempt int, base, jitter time.Duration) time.Duration {
	if base < 0 {
		base = 0
	}
	if attempt < 1 {
		attempt = 1
	}
	delay := float64(base) * math.Pow(2, float64(attempt-1))
	if jitter > 0 {
		delay += rand.Float64() * float64(jitter)
	}
	return time.Duration(delay)
}

// Retryer 重试器接口
type Retryer interface {
	// Do 执行函数，失败时根据策略重试
	Do(ctx context.Context, fn func() error) error
}

// backoffRetryer 基于指数退避的重试器实现
type backoffRetryer struct {
	policy *Policy
	logger *zap.Logger
}

// New 创建指数退避重试器
func New(policy *Policy, logger *zap.Logger) Retryer {
	if policy == nil {
		policy = DefaultPolicy()
	}
	if policy.MaxRetries < 0 {
		policy.MaxRetries = 0
	}
	if policy.BaseDelay <= 0 {
		policy.BaseDelay = 1 * time.Second
	} else if policy.BaseDelay < MinBaseDelay {
		policy.BaseDelay = MinBaseDelay
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &backoffRetryer{policy: policy, logger: logger}
}

// Do 核心重试逻辑：指数退避 + 随机抖动 + 错误分类
func (r *backoffRetryer) Do(ctx context.Context, fn func() error) error {
	var lastErr error

	for attempt := 0; attempt <= r.policy.MaxRetries; attempt++ {
		if attempt > 0 {
			delay := DelayFor(attempt, r.policy.BaseDelay, r.policy.Jitter)

			r.logger.Debug("retrying",
				zap.Int("attempt", attempt),
				zap.Int("max_retries", r.policy.MaxRetries),
				zap.Duration("delay", delay),
				zap.Error(lastErr),
			)

			if r.policy.OnRetry != nil {
				r.policy.OnRetry(attempt, lastErr, delay)
			}

			select {
			case <-ctx.Done():
				return fmt.Errorf("retry cancelled: %w", ctx.Err())
			case <-time.After(delay):
			}
		}

		lastErr = fn()
		if lastErr == nil {
			if attempt > 0 {
				r.logger.Info("retry succeeded", zap.Int("attempt", attempt))
			}
			return nil
		}

		if r.policy.Classify != nil && !r.policy.Classify(lastErr) {
			r.logger.Debug("error not retryable", zap.Error(lastErr))
			return lastErr
		}

		if attempt >= r.policy.MaxRetries {
			break
		}
	}

	r.logger.Warn("retries exhausted",
		zap.Int("attempts", r.policy.MaxRetries+1),
		zap.Error(lastErr),
	)
	return fmt.Errorf("failed after %d retries: %w", r.policy.MaxRetries, lastErr)
}
