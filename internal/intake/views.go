package intake

import (
	"slices"
	"time"
)

// Status 是周计划中某一天的完成状态。
type Status string

const (
	StatusDone     Status = "완료"
	StatusNotDone  Status = "미완료"
	StatusUpcoming Status = "예정"
)

// ParseStatus 解析后端返回的状态，未知值视为 예정。
func ParseStatus(raw string) Status {
	switch Status(raw) {
	case StatusDone, StatusNotDone:
		return Status(raw)
	default:
		return StatusUpcoming
	}
}

// TodayPlanItem 是“今日营养剂”组件中的一项。
// At 为实际服用时刻，拖拽后可能与 TimeOfDay 的默认时刻不同；为零值时按 TimeOfDay 推算。
type TodayPlanItem struct {
	Supplement string
	TimeOfDay  TimeOfDay
	ID         string
	At         time.Time
}

// DueAt 返回 day 当天的提醒时刻。
func (item TodayPlanItem) DueAt(day time.Time) (time.Time, error) {
	if !item.At.IsZero() {
		return item.At, nil
	}
	return item.TimeOfDay.At(day)
}

// TodayColumn 是按时段分组的一列。
type TodayColumn struct {
	TimeOfDay TimeOfDay
	Items     []TodayPlanItem
}

// WeekDay 是周计划中的一天。
type WeekDay struct {
	Items  []string
	Status Status
}

// WeeklyPlan 以星期名称（time.Weekday.String()）为键。
type WeeklyPlan map[string]WeekDay

// FilterToday 返回与 today 同一日历日的事件。
func FilterToday(occurrences []Occurrence, today time.Time) []Occurrence {
	out := make([]Occurrence, 0)
	for _, occ := range occurrences {
		if SameDay(occ.Start, today) {
			out = append(out, occ)
		}
	}
	return out
}

// TodayPlan 把今日事件整理为今日计划项，按开始时间排序。
func TodayPlan(occurrences []Occurrence, today time.Time) []TodayPlanItem {
	todays := FilterToday(occurrences, today)
	slices.SortStableFunc(todays, func(a, b Occurrence) int {
		return a.Start.Compare(b.Start)
	})

	items := make([]TodayPlanItem, 0, len(todays))
	for _, occ := range todays {
		items = append(items, TodayPlanItem{Supplement: occ.Product, TimeOfDay: occ.TimeOfDay, ID: occ.ID, At: occ.Start})
	}
	return items
}

// TodayColumns 按 morning/midday/evening 固定三列分组。
func TodayColumns(items []TodayPlanItem) []TodayColumn {
	columns := make([]TodayColumn, 0, 3)
	for _, tod := range TimesOfDay() {
		column := TodayColumn{TimeOfDay: tod, Items: []TodayPlanItem{}}
		for _, item := range items {
			if item.TimeOfDay == tod {
				column.Items = append(column.Items, item)
			}
		}
		columns = append(columns, column)
	}
	return columns
}

// WeekStart 返回 t 所在周的周一零点。
func WeekStart(t time.Time) time.Time {
	day := DateOf(t)
	weekday := int(day.Weekday())
	if weekday == 0 {
		weekday = 7
	}
	return day.AddDate(0, 0, -weekday+1)
}

// GroupWeekly 把 [weekStart, weekStart+7d) 内的事件按星期分组。
// 同一天重复登记的同名产品只出现一次；客户端分组只产生 예정 状态。
func GroupWeekly(occurrences []Occurrence, weekStart time.Time) WeeklyPlan {
	start := DateOf(weekStart)
	end := start.AddDate(0, 0, 7)

	sorted := slices.Clone(occurrences)
	slices.SortStableFunc(sorted, func(a, b Occurrence) int {
		return a.Start.Compare(b.Start)
	})

	plan := make(WeeklyPlan)
	for _, occ := range sorted {
		if occ.Start.Before(start) || !occ.Start.Before(end) {
			continue
		}
		key := occ.Start.Weekday().String()
		day := plan[key]
		if !slices.Contains(day.Items, occ.Product) {
			day.Items = append(day.Items, occ.Product)
		}
		if day.Status == "" {
			day.Status = StatusUpcoming
		}
		plan[key] = day
	}
	return plan
}
