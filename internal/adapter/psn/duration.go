package psn

import (
	"fmt"
	"math"
	"regexp"
	"strconv"
)

// PSN 返回的 playDuration 只用到天/时/分/秒，如 PT228H56M33S、P1DT2H
var isoDuration = regexp.MustCompile(`^P(?:(\d+)D)?(?:T(?:(\d+)H)?(?:(\d+)M)?(?:(\d+(?:\.\d+)?)S)?)?$`)

// parseDuration 把 ISO-8601 时长转为秒（小数秒向下取整）
func parseDuration(s string) (int64, error) {
	if s == "" {
		return 0, nil
	}
	m := isoDuration.FindStringSubmatch(s)
	if m == nil || s == "P" || s == "PT" {
		return 0, fmt.Errorf("无法解析时长: %q", s)
	}
	var total int64
	for i, unit := range []int64{86400, 3600, 60} {
		if m[i+1] == "" {
			continue
		}
		n, err := strconv.ParseInt(m[i+1], 10, 64)
		if err != nil {
			return 0, fmt.Errorf("无法解析时长: %q: %w", s, err)
		}
		total += n * unit
	}
	if m[4] != "" {
		sec, err := strconv.ParseFloat(m[4], 64)
		if err != nil {
			return 0, fmt.Errorf("无法解析时长: %q: %w", s, err)
		}
		total += int64(math.Floor(sec))
	}
	return total, nil
}
