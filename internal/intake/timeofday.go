// Package intake 把服用计划展开为日历事件，并据此计算今日与周视图。
package intake

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// TimeOfDay 是固定的服用时段枚举。
type TimeOfDay string

const (
	Morning TimeOfDay = "morning"
	Midday  TimeOfDay = "midday"
	Evening TimeOfDay = "evening"
)

// OccurrenceLength 是未由后端提供结束时间时单次服用事件的时长。
const OccurrenceLength = 30 * time.Minute

// ErrUnknownTimeOfDay 在时段不属于固定枚举时返回
var ErrUnknownTimeOfDay = errors.New("unknown time of day")

// TimesOfDay 按展示顺序返回全部时段。
func TimesOfDay() []TimeOfDay {
	return []TimeOfDay{Morning, Midday, Evening}
}

var aliases = map[string]TimeOfDay{
	"morning": Morning,
	"아침":      Morning,
	"midday":  Midday,
	"noon":    Midday,
	"점심":      Midday,
	"evening": Evening,
	"저녁":      Evening,
}

// ParseTimeOfDay 解析时段，兼容韩文标签（아침/점심/저녁）。
func ParseTimeOfDay(raw string) (TimeOfDay, error) {
	key := strings.ToLower(strings.TrimSpace(raw))
	if tod, ok := aliases[key]; ok {
		return tod, nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownTimeOfDay, raw)
}

// Clock 返回时段对应的固定钟点：morning 08:00, midday 12:00, evening 19:00。
func (t TimeOfDay) Clock() (hour, minute int, err error) {
	switch t {
	case Morning:
		return 8, 0, nil
	case Midday:
		return 12, 0, nil
	case Evening:
		return 19, 0, nil
	default:
		return 0, 0, fmt.Errorf("%w: %q", ErrUnknownTimeOfDay, string(t))
	}
}

// At 把日期与时段钟点组合为具体时刻，日期中的时间部分被忽略。
func (t TimeOfDay) At(date time.Time) (time.Time, error) {
	hour, minute, err := t.Clock()
	if err != nil {
		return time.Time{}, err
	}
	y, m, d := date.Date()
	return time.Date(y, m, d, hour, minute, 0, 0, date.Location()), nil
}

// Valid 报告时段是否属于固定枚举。
func (t TimeOfDay) Valid() bool {
	_, _, err := t.Clock()
	return err == nil
}

// DateOf 把时刻截断为所在时区的零点。
func DateOf(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
}

// SameDay 报告两个时刻在 a 所在时区下是否为同一日历日。
func SameDay(a, b time.Time) bool {
	ay, am, ad := a.Date()
	by, bm, bd := b.In(a.Location()).Date()
	return ay == by && am == bm && ad == bd
}

// DaysBetween 返回 start 到 end 间相差的日历天数。
func DaysBetween(start, end time.Time) int {
	s := time.Date(start.Year(), start.Month(), start.Day(), 0, 0, 0, 0, time.UTC)
	e := time.Date(end.Year(), end.Month(), end.Day(), 0, 0, 0, 0, time.UTC)
	return int(e.Sub(s).Hours() / 24)
}
