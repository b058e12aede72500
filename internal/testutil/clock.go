package testutil

import (
	"sync"
	"testing"
	"time"
)

// FakeClock 测试用时钟：Sleep 立即返回并把时间向前推进，同时记录每次睡眠时长
type FakeClock struct {
	mu    sync.Mutex
	now   time.Time
	slept []time.Duration
}

// NewFakeClock 从固定时刻开始，保证每次测试的时间线一致
func NewFakeClock(t testing.TB) *FakeClock {
	t.Helper()
	return &FakeClock{now: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)}
}

func (c *FakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *FakeClock) Sleep(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if d <= 0 {
		return
	}
	c.slept = append(c.slept, d)
	c.now = c.now.Add(d)
}

// Advance 不计入睡眠记录地推进时间（模拟令牌过期等）
func (c *FakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

// Slept 返回所有睡眠时长的副本
func (c *FakeClock) Slept() []time.Duration {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]time.Duration, len(c.slept))
	copy(out, c.slept)
	return out
}

func (c *FakeClock) TotalSlept() time.Duration {
	c.mu.Lock()
	defer c.mu.Unlock()
	var total time.Duration
	for _, d := range c.slept {
		total += d
	}
	return total
}
