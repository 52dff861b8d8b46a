package retry

import (
	"context"
	"fmt"
	"time"
)

// Policy 有界重试策略：最大尝试次数 + 指数退避。
// 原脚本里的固定sleep无限重试被替换为该策略，所有网络客户端共用。
type Policy struct {
	MaxAttempts int           // 最大尝试次数(含首次)，<=0 视为1
	BaseDelay   time.Duration // 首次重试前的等待时间
	MaxDelay    time.Duration // 退避上限
}

// DefaultPolicy 返回默认策略：3次尝试，2s起步，30s封顶
func DefaultPolicy() Policy {
	return Policy{
		MaxAttempts: 3,
		BaseDelay:   2 * time.Second,
		MaxDelay:    30 * time.Second,
	}
}

// Backoff 计算第attempt次失败后的等待时间（attempt从0开始）
func (p Policy) Backoff(attempt int) time.Duration {
	if p.BaseDelay <= 0 {
		return 0
	}
	delay := p.BaseDelay
	for i := 0; i < attempt; i++ {
		delay *= 2
		if p.MaxDelay > 0 && delay >= p.MaxDelay {
			return p.MaxDelay
		}
	}
	if p.MaxDelay > 0 && delay > p.MaxDelay {
		return p.MaxDelay
	}
	return delay
}

// Do 执行op，失败时按策略退避重试。
// 上下文取消立即终止等待并返回上下文错误。
func (p Policy) Do(ctx context.Context, op func() error) error {
	attempts := p.MaxAttempts
	if attempts <= 0 {
		attempts = 1
	}

	var lastErr error
	for attempt := 0; attempt < attempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return err
		}

		lastErr = op()
		if lastErr == nil {
			return nil
		}

		if attempt == attempts-1 {
			break
		}

		timer := time.NewTimer(p.Backoff(attempt))
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
	}

	return fmt.Errorf("操作在%d次尝试后仍然失败: %w", attempts, lastErr)
}
