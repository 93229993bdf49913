package intake

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"
)

const (
	// DefaultDurationDays 在未选择服用期限时使用。
	DefaultDurationDays = 30
	// CustomDuration 是选择“直接输入”期限时的选择器取值。
	CustomDuration = "custom"
)

// PresetDurations 是表单下拉框提供的固定期限（天）。
var PresetDurations = []int{30, 60, 90, 180, 365}

// ErrInvalidDuration 在期限不是正整数时返回
var ErrInvalidDuration = errors.New("intake duration must be a positive number of days")

// DurationSelector 对应表单中的期限下拉框及“直接输入”数字框。
type DurationSelector struct {
	Value  string
	Custom string
}

// Days 解析期限天数：空选择器为 30，"custom" 取 Custom 字段，其余取 Value。
func (s DurationSelector) Days() (int, error) {
	value := strings.TrimSpace(s.Value)
	switch value {
	case "":
		return DefaultDurationDays, nil
	case CustomDuration:
		return parsePositiveDays(s.Custom)
	default:
		return parsePositiveDays(value)
	}
}

func parsePositiveDays(raw string) (int, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return 0, fmt.Errorf("%w: empty", ErrInvalidDuration)
	}
	days, err := strconv.Atoi(trimmed)
	if err != nil {
		return 0, fmt.Errorf("%w: %q", ErrInvalidDuration, raw)
	}
	if days <= 0 {
		return 0, fmt.Errorf("%w: %d", ErrInvalidDuration, days)
	}
	return days, nil
}

// ComputeEndDate 返回 start 加上期限天数后的日历日期（不含时间部分）。
func ComputeEndDate(start time.Time, selector DurationSelector) (time.Time, error) {
	days, err := selector.Days()
	if err != nil {
		return time.Time{}, err
	}
	return DateOf(start).AddDate(0, 0, days), nil
}
