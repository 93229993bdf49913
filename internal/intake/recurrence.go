package intake

import (
	"cmp"
	"errors"
	"fmt"
	"slices"
	"time"

	"github.com/teambition/rrule-go"
)

// Series 描述一条按天重复的服用日程：从 First 开始每天同一时刻，直到 Until（含）。
type Series struct {
	ID        uint
	Product   string
	TimeOfDay TimeOfDay
	First     time.Time
	Until     time.Time
}

func (s Series) rule() (*rrule.RRule, error) {
	if s.Until.Before(s.First) {
		return nil, ErrEndBeforeStart
	}
	rule, err := rrule.NewRRule(rrule.ROption{
		Freq:    rrule.DAILY,
		Dtstart: s.First,
		Until:   s.Until,
	})
	if err != nil {
		return nil, fmt.Errorf("build daily rule: %w", err)
	}
	return rule, nil
}

// RRule 返回不含 DTSTART 的 RRULE 文本，用于导出日历。
func (s Series) RRule() string {
	opt := rrule.ROption{Freq: rrule.DAILY, Until: s.Until.UTC()}
	return opt.RRuleString()
}

// Instants 返回 [from, to] 区间内的每日实例时刻。
func (s Series) Instants(from, to time.Time) ([]time.Time, error) {
	if to.Before(from) {
		return nil, errors.New("range end is before range start")
	}
	rule, err := s.rule()
	if err != nil {
		return nil, err
	}
	return rule.Between(from, to, true), nil
}

// ActiveOn 报告该日程在 day 这一天是否有实例。
func (s Series) ActiveOn(day time.Time) (time.Time, bool) {
	dayStart := DateOf(day.In(s.First.Location()))
	instants, err := s.Instants(dayStart, dayStart.AddDate(0, 0, 1).Add(-time.Nanosecond))
	if err != nil || len(instants) == 0 {
		return time.Time{}, false
	}
	return instants[0], true
}

// ExpandRange 把多条日程在 [from, to] 内展开为事件，按开始时间排序。
// 无法展开的日程（如结束早于开始）被跳过。
func ExpandRange(series []Series, from, to time.Time) []Occurrence {
	occurrences := make([]Occurrence, 0)
	for _, s := range series {
		instants, err := s.Instants(from, to)
		if err != nil {
			continue
		}
		for _, at := range instants {
			occurrences = append(occurrences, FromSchedule(s.ID, s.Product, s.TimeOfDay, at, time.Time{}))
		}
	}

	slices.SortStableFunc(occurrences, func(a, b Occurrence) int {
		if diff := a.Start.Compare(b.Start); diff != 0 {
			return diff
		}
		return cmp.Compare(a.ID, b.ID)
	})
	return occurrences
}
