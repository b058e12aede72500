// Package clock 可注入的时钟：目录限流、令牌过期和重试退避都通过它取时间与睡眠
package clock

import "time"

// Clock 时间来源。Sleep 不可取消，调用方在醒来后自行检查 ctx
type Clock interface {
	Now() time.Time
	Sleep(d time.Duration)
}

type realClock struct{}

// Real 系统时钟
func Real() Clock { return realClock{} }

func (realClock) Now() time.Time { return time.Now() }

func (realClock) Sleep(d time.Duration) {
	if d > 0 {
		time.Sleep(d)
	}
}
