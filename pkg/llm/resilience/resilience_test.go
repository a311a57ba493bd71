package resilience

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fastRetryConfig(attempts int) *RetryConfig {
	return &RetryConfig{
		MaxAttempts:     attempts,
		InitialDelay:    time.Millisecond,
		MaxDelay:        5 * time.Millisecond,
		Multiplier:      2.0,
		RetryableErrors: func(error) bool { return true },
	}
}

func TestRetryWithBackoffSucceedsAfterTransientFailures(t *testing.T) {
	calls := 0
	err := RetryWithBackoff(context.Background(), fastRetryConfig(5), func() error {
		calls++
		if calls < 3 {
			return fmt.Errorf("transient")
		}
		return nil
	})

	require.NoError(t, err)
	assert.Equal(t, 3, calls)
}

func TestRetryWithBackoffStopsOnNonRetryable(t *testing.T) {
	cfg := fastRetryConfig(5)
	cfg.RetryableErrors = func(error) bool { return false }

	calls := 0
	err := RetryWithBackoff(context.Background(), cfg, func() error {
		calls++
		return fmt.Errorf("fatal")
	})

	require.Error(t, err)
	assert.Equal(t, 1, calls)
}

func TestRetryWithBackoffExhaustsAttempts(t *testing.T) {
	calls := 0
	err := RetryWithBackoff(context.Background(), fastRetryConfig(3), func() error {
		calls++
		return fmt.Errorf("always fails")
	})

	require.Error(t, err)
	assert.Equal(t, 3, calls)
	assert.Contains(t, err.Error(), "max retry attempts")
}

func TestRetryWithBackoffRespectsContextCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())

	calls := 0
	err := RetryWithBackoff(ctx, fastRetryConfig(10), func() error {
		calls++
		cancel()
		return fmt.Errorf("fail then cancel")
	})

	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 1, calls)
}

func TestCircuitBreakerOpensAfterMaxFailures(t *testing.T) {
	cb := NewCircuitBreaker(&CircuitBreakerConfig{
		MaxFailures:      2,
		Timeout:          time.Hour,
		HalfOpenMaxCalls: 1,
	})

	boom := fmt.Errorf("boom")
	for i := 0; i < 2; i++ {
		assert.Error(t, cb.Execute(func() error { return boom }))
	}
	assert.Equal(t, StateOpen, cb.State())

	// 打开状态下直接拒绝, 不执行函数
	calls := 0
	err := cb.Execute(func() error { calls++; return nil })
	assert.ErrorIs(t, err, ErrCircuitBreakerOpen)
	assert.Equal(t, 0, calls)
}

func TestCircuitBreakerHalfOpenRecovery(t *testing.T) {
	cb := NewCircuitBreaker(&CircuitBreakerConfig{
		MaxFailures:      1,
		Timeout:          time.Millisecond,
		HalfOpenMaxCalls: 1,
	})

	require.Error(t, cb.Execute(func() error { return fmt.Errorf("boom") }))
	require.Equal(t, StateOpen, cb.State())

	time.Sleep(5 * time.Millisecond)

	// 超时后进入半开, 探测成功则恢复关闭
	require.NoError(t, cb.Execute(func() error { return nil }))
	assert.Equal(t, StateClosed, cb.State())
}

func TestCircuitBreakerReset(t *testing.T) {
	cb := NewCircuitBreaker(&CircuitBreakerConfig{MaxFailures: 1, Timeout: time.Hour, HalfOpenMaxCalls: 1})
	require.Error(t, cb.Execute(func() error { return fmt.Errorf("boom") }))
	require.Equal(t, StateOpen, cb.State())

	cb.Reset()
	assert.Equal(t, StateClosed, cb.State())
	assert.Equal(t, 0, cb.Failures())
}

func TestIsRetryableError(t *testing.T) {
	assert.False(t, IsRetryableError(nil))
	assert.False(t, IsRetryableError(context.Canceled))
	assert.False(t, IsRetryableError(ErrCircuitBreakerOpen))
	assert.False(t, IsRetryableError(errors.New("bad request")))
	assert.True(t, IsRetryableError(errors.New("请求失败, 状态码 503: unavailable")))
	assert.True(t, IsRetryableError(errors.New("unexpected EOF")))
	assert.True(t, IsRetryableError(errors.New("read: connection reset by peer")))
}
