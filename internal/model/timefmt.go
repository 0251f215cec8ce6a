package model

import (
	"strings"
	"time"
)

// TimeLayout 对外统一的时间格式（精确到秒，无时区）
const TimeLayout = "2006-01-02 15:04:05"

// 未指定时间范围时的默认边界，保证查询总是带完整的时间区间
var (
	DefaultStartTime = time.Date(1970, 1, 1, 0, 0, 0, 0, time.UTC)
	DefaultEndTime   = time.Date(9999, 12, 31, 23, 59, 59, 0, time.UTC)
)

// NormalizeTime 规范化前端传入的时间字符串
//
//	2025-10-10 08:00   -> 2025-10-10 08:00:00
//	2025-10-10+08:00   -> 2025-10-10 08:00:00
//	2025-10-10T08:00   -> 2025-10-10 08:00:00
//	2025-10-10         -> 2025-10-10 00:00:00
func NormalizeTime(raw string) string {
	s := strings.TrimSpace(raw)
	if len(s) >= 11 && (s[10] == '+' || s[10] == 'T') {
		s = s[:10] + " " + s[11:]
	}
	switch {
	case len(s) == 16 && strings.Count(s, "-") == 2 && strings.Count(s, ":") == 1:
		return s + ":00"
	case len(s) == 10 && strings.Count(s, "-") == 2:
		return s + " 00:00:00"
	}
	return s
}

// ParseTime 解析时间字符串，结果为 UTC 标记的墙上时间
func ParseTime(raw string) (time.Time, error) {
	t, err := time.ParseInLocation(TimeLayout, NormalizeTime(raw), time.UTC)
	if err != nil {
		return time.Time{}, NewValidationError("time", "时间格式错误，应为 YYYY-MM-DD HH:MM:SS: "+raw)
	}
	return t, nil
}

// FormatTime 格式化为 YYYY-MM-DD HH:MM:SS
func FormatTime(t time.Time) string {
	return t.Format(TimeLayout)
}

// WallClock 将时刻转换为业务时区下的墙上时间（去掉时区并截断到秒）
func WallClock(t time.Time, loc *time.Location) time.Time {
	if loc != nil {
		t = t.In(loc)
	}
	return time.Date(t.Year(), t.Month(), t.Day(), t.Hour(), t.Minute(), t.Second(), 0, time.UTC)
}
