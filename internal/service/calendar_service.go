package service

import (
	"bytes"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/emersion/go-ical"
	"github.com/google/uuid"
	"github.com/intakeplan/internal/intake"
	"gorm.io/gorm"
)

const calendarProductID = "-//intakeplan//supplement schedule//KO"

// calendarNamespace 用于从日程 ID 派生稳定的 UID
var calendarNamespace = uuid.NewSHA1(uuid.NameSpaceURL, []byte("https://intakeplan.local/schedules"))

// CalendarService 把日程导出为 iCalendar，便于订阅到其它日历应用
type CalendarService struct {
	schedules *ScheduleService
	now       func() time.Time
}

// NewCalendarService 构造 CalendarService
func NewCalendarService(gdb *gorm.DB) *CalendarService {
	return &CalendarService{schedules: NewScheduleService(gdb), now: time.Now}
}

// Export 生成包含用户全部日程的 iCalendar 文本，每条日程为一个按天重复的 VEVENT
func (s *CalendarService) Export(userID uint) ([]byte, error) {
	schedules, err := s.schedules.loadSchedules(userID)
	if err != nil {
		return nil, err
	}

	cal := ical.NewCalendar()
	cal.Props.SetText(ical.PropVersion, "2.0")
	cal.Props.SetText(ical.PropProductID, calendarProductID)

	stamp := s.now().UTC()
	for _, schedule := range schedules {
		series := seriesOf(schedule)

		event := ical.NewEvent()
		event.Props.SetText(ical.PropUID, ScheduleUID(schedule.ID))
		event.Props.SetDateTime(ical.PropDateTimeStamp, stamp)
		event.Props.SetDateTime(ical.PropDateTimeStart, series.First.UTC())
		event.Props.SetDateTime(ical.PropDateTimeEnd, series.First.Add(intake.OccurrenceLength).UTC())
		event.Props.SetText(ical.PropSummary, intake.Title(schedule.Plan.ProductName, series.TimeOfDay))
		if memo := strings.TrimSpace(schedule.Plan.Memo); memo != "" {
			event.Props.SetText(ical.PropDescription, memo)
		}
		if !series.Until.Before(series.First.Add(24 * time.Hour)) {
			rule := ical.NewProp(ical.PropRecurrenceRule)
			rule.Value = series.RRule()
			event.Props.Set(rule)
		}

		cal.Children = append(cal.Children, event.Component)
	}

	var buf bytes.Buffer
	if err := ical.NewEncoder(&buf).Encode(cal); err != nil {
		return nil, fmt.Errorf("encode calendar: %w", err)
	}
	return buf.Bytes(), nil
}

// ScheduleUID 返回日程在导出日历中的稳定 UID
func ScheduleUID(scheduleID uint) string {
	return uuid.NewSHA1(calendarNamespace, []byte(strconv.FormatUint(uint64(scheduleID), 10))).String()
}
