// Package planner 维护日历事件、今日计划与周计划，并为今日服用项布置提醒
package planner

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/intakeplan/internal/client"
	"github.com/intakeplan/internal/intake"
	"github.com/intakeplan/internal/logger"
	"github.com/intakeplan/internal/notify"
	"github.com/sirupsen/logrus"
)

const reminderHorizon = 24 * time.Hour

var (
	// ErrStaleSearch 在更新的检索已发出后返回，旧结果被丢弃
	ErrStaleSearch = errors.New("search superseded by a newer request")
	// ErrUnknownOccurrence 在事件不在当前日历中时返回
	ErrUnknownOccurrence = errors.New("occurrence not found")
	// ErrNotPersisted 在事件仍使用临时 ID、尚未与后端对齐时返回
	ErrNotPersisted = errors.New("occurrence is not saved yet")
)

// Planner 持有日历事件、今日计划、周计划与检索结果
type Planner struct {
	mu        sync.Mutex
	source    client.DataSource
	notifier  notify.Notifier
	reminders *notify.Registry
	now       func() time.Time
	log       *logrus.Entry

	events    []intake.Occurrence
	today     []intake.TodayPlanItem
	taken     map[string]bool
	weekly    intake.WeeklyPlan
	results   []client.Product
	searchSeq uint64
}

// Option 调整 Planner 的依赖
type Option func(*Planner)

// WithClock 替换时钟
func WithClock(now func() time.Time) Option {
	return func(p *Planner) { p.now = now }
}

// WithRegistry 使用外部提醒表
func WithRegistry(registry *notify.Registry) Option {
	return func(p *Planner) { p.reminders = registry }
}

// WithLogger 替换日志条目
func WithLogger(entry *logrus.Entry) Option {
	return func(p *Planner) { p.log = entry }
}

// New 构造 Planner
func New(source client.DataSource, notifier notify.Notifier, opts ...Option) *Planner {
	p := &Planner{
		source:   source,
		notifier: notifier,
		now:      time.Now,
		log:      logger.WithComponent("planner"),
		taken:    make(map[string]bool),
		weekly:   intake.WeeklyPlan{},
	}
	for _, opt := range opts {
		opt(p)
	}
	if p.reminders == nil {
		p.reminders = notify.NewRegistry(notify.WithClock(p.now))
	}
	if p.notifier == nil {
		p.notifier = notify.NewLogNotifier(p.log)
	}
	return p
}

// NewForm 返回以今天为开始日期的登记表单
func (p *Planner) NewForm() *intake.Form {
	return intake.NewForm(p.now())
}

// Events 返回当前日历事件的副本
func (p *Planner) Events() []intake.Occurrence {
	p.mu.Lock()
	defer p.mu.Unlock()
	return slices.Clone(p.events)
}

// Today 返回今日计划
func (p *Planner) Today() []intake.TodayPlanItem {
	p.mu.Lock()
	defer p.mu.Unlock()
	return slices.Clone(p.today)
}

// TodayColumns 返回按时段分组的今日计划
func (p *Planner) TodayColumns() []intake.TodayColumn {
	return intake.TodayColumns(p.Today())
}

// Weekly 返回周计划的副本
func (p *Planner) Weekly() intake.WeeklyPlan {
	p.mu.Lock()
	defer p.mu.Unlock()

	out := make(intake.WeeklyPlan, len(p.weekly))
	for weekday, day := range p.weekly {
		out[weekday] = intake.WeekDay{Items: slices.Clone(day.Items), Status: day.Status}
	}
	return out
}

// SearchResults 返回最近一次有效检索的结果
func (p *Planner) SearchResults() []client.Product {
	p.mu.Lock()
	defer p.mu.Unlock()
	return slices.Clone(p.results)
}

// Reminders 返回提醒表
func (p *Planner) Reminders() *notify.Registry {
	return p.reminders
}

// Search 检索产品；关键词不足两个字符时清空结果。
// 每次调用取得新的请求序号，返回时序号已过期的结果被丢弃。
func (p *Planner) Search(ctx context.Context, term string) ([]client.Product, error) {
	p.mu.Lock()
	p.searchSeq++
	token := p.searchSeq
	if utf8.RuneCountInString(term) < 2 {
		p.results = nil
		p.mu.Unlock()
		return []client.Product{}, nil
	}
	p.mu.Unlock()

	results, err := p.source.SearchProducts(ctx, term)

	p.mu.Lock()
	defer p.mu.Unlock()
	if token != p.searchSeq {
		return nil, ErrStaleSearch
	}
	if err != nil {
		p.log.WithError(err).WithField("term", term).Error("product search failed")
		return nil, fmt.Errorf("search products: %w", err)
	}
	p.results = results
	return slices.Clone(results), nil
}

// Submit 校验表单并登记计划。校验失败时不发起请求；
// 成功后先展示开始日的事件，再重置表单并重新拉取。
func (p *Planner) Submit(ctx context.Context, form *intake.Form) ([]intake.Occurrence, error) {
	def, err := form.Definition()
	if err != nil {
		p.alert(ctx, "입력 확인", validationMessage(err))
		return nil, err
	}

	ids, err := p.source.CreateSchedule(ctx, client.ScheduleFromDefinition(def))
	if err != nil {
		p.fail(ctx, "등록 실패", "일정 등록 중 오류가 발생했습니다.", err)
		return nil, fmt.Errorf("create schedule: %w", err)
	}

	occurrences, err := intake.Expand(def, ids, p.now())
	if err != nil {
		return nil, err
	}

	p.mu.Lock()
	p.events = append(p.events, occurrences...)
	p.mu.Unlock()

	p.alert(ctx, "등록 완료", "일정이 등록되었습니다.")
	form.Reset(p.now())

	if err := p.Refresh(ctx); err != nil {
		p.log.WithError(err).Warn("refresh after submit incomplete")
	}
	return occurrences, nil
}

// Move 保存拖拽结果，后端确认后才更新本地事件；
// 今日计划随之调整，提醒按新的时刻重新布置
func (p *Planner) Move(ctx context.Context, id string, start, end time.Time) error {
	scheduleID, err := p.persistedID(id)
	if err != nil {
		return err
	}
	if end.Before(start) {
		p.alert(ctx, "입력 확인", "종료 시각은 시작 시각 이후여야 합니다.")
		return intake.ErrEndBeforeStart
	}

	if err := p.source.UpdateSchedule(ctx, scheduleID, start, end); err != nil {
		p.fail(ctx, "변경 실패", "일정 업데이트 중 오류가 발생했습니다.", err)
		return fmt.Errorf("update schedule: %w", err)
	}

	now := p.now()
	p.mu.Lock()
	for i := range p.events {
		if p.events[i].ID == id {
			p.events[i].Start = start
			p.events[i].End = end
		}
	}
	if intake.SameDay(start, now) {
		for i := range p.today {
			if p.today[i].ID == id {
				p.today[i].At = start
			}
		}
	} else {
		p.today = slices.DeleteFunc(p.today, func(item intake.TodayPlanItem) bool { return item.ID == id })
	}
	p.mu.Unlock()
	p.ArmReminders(now)

	p.log.WithFields(logrus.Fields{"id": id, "start": start, "end": end}).Info("schedule moved")
	return nil
}

// Delete 删除日程，后端确认后才移除本地事件并取消提醒；被拒绝时事件保持可见
func (p *Planner) Delete(ctx context.Context, id string) error {
	scheduleID, err := p.persistedID(id)
	if err != nil {
		return err
	}

	if err := p.source.DeleteSchedule(ctx, scheduleID); err != nil {
		p.fail(ctx, "삭제 실패", "일정 삭제 중 오류가 발생했습니다.", err)
		return fmt.Errorf("delete schedule: %w", err)
	}

	p.mu.Lock()
	p.events = slices.DeleteFunc(p.events, func(occ intake.Occurrence) bool { return occ.ID == id })
	p.today = slices.DeleteFunc(p.today, func(item intake.TodayPlanItem) bool { return item.ID == id })
	p.mu.Unlock()

	p.reminders.Cancel(id)
	p.alert(ctx, "삭제 완료", "일정이 삭제되었습니다.")
	return nil
}

// MarkTaken 记录今天已服用并刷新周计划
func (p *Planner) MarkTaken(ctx context.Context, id string) error {
	scheduleID, err := p.persistedID(id)
	if err != nil {
		return err
	}

	now := p.now()
	if err := p.source.MarkTaken(ctx, scheduleID, now); err != nil {
		p.fail(ctx, "기록 실패", "복용 기록 중 오류가 발생했습니다.", err)
		return fmt.Errorf("mark taken: %w", err)
	}
	p.mu.Lock()
	p.taken[id] = true
	p.mu.Unlock()
	p.reminders.Cancel(id)

	if err := p.refreshWeekly(ctx, now); err != nil {
		p.log.WithError(err).Warn("weekly refresh after intake log failed")
	}
	return nil
}

// Refresh 拉取全部日程、今日计划与周计划。单项失败只记录日志，其余照常更新；
// 今日计划更新后重新布置提醒。
func (p *Planner) Refresh(ctx context.Context) error {
	now := p.now()
	var errs []error

	if schedules, err := p.source.AllSchedules(ctx); err != nil {
		p.log.WithError(err).Error("load all schedules failed")
		errs = append(errs, fmt.Errorf("load all schedules: %w", err))
	} else {
		events := make([]intake.Occurrence, 0, len(schedules))
		for _, schedule := range schedules {
			events = append(events, intake.FromSchedule(schedule.ID, schedule.ProductName, schedule.TimeOfDay, schedule.Start, schedule.End))
		}
		p.mu.Lock()
		p.events = events
		p.mu.Unlock()
	}

	if daily, err := p.source.DailySchedules(ctx, now); err != nil {
		p.log.WithError(err).Error("load today's schedules failed")
		errs = append(errs, fmt.Errorf("load today's schedules: %w", err))
	} else {
		items := make([]intake.TodayPlanItem, 0, len(daily))
		taken := make(map[string]bool)
		for _, item := range daily {
			if item.Taken {
				taken[intake.ServerID(item.ScheduleID)] = true
			}
			items = append(items, intake.TodayPlanItem{
				Supplement: item.ProductName,
				TimeOfDay:  item.TimeOfDay,
				ID:         intake.ServerID(item.ScheduleID),
				At:         item.At,
			})
		}
		p.mu.Lock()
		p.today = items
		p.taken = taken
		p.mu.Unlock()
		p.ArmReminders(now)
	}

	if err := p.refreshWeekly(ctx, now); err != nil {
		errs = append(errs, err)
	}

	return errors.Join(errs...)
}

// ArmReminders 为今日计划中 24 小时内尚未到点且未服用的项目布置提醒，
// 并取消已不在今日计划中的提醒。返回当前布置的数量。
func (p *Planner) ArmReminders(now time.Time) int {
	p.mu.Lock()
	items := slices.Clone(p.today)
	taken := make(map[string]bool, len(p.taken))
	for id := range p.taken {
		taken[id] = true
	}
	p.mu.Unlock()

	keep := make([]string, 0, len(items))
	for _, item := range items {
		if taken[item.ID] {
			continue
		}
		at, err := item.DueAt(now)
		if err != nil {
			p.log.WithError(err).WithField("id", item.ID).Warn("skip reminder with unknown time of day")
			continue
		}
		delay := at.Sub(now)
		if delay <= 0 || delay >= reminderHorizon {
			continue
		}

		supplement := item.Supplement
		p.reminders.Schedule(item.ID, delay, func() {
			if err := p.notifier.Notify(context.Background(), notify.Reminder(supplement)); err != nil {
				p.log.WithError(err).WithField("supplement", supplement).Warn("deliver reminder failed")
			}
		})
		keep = append(keep, item.ID)
	}

	if swept := p.reminders.Sweep(keep); swept > 0 {
		p.log.WithField("cancelled", swept).Debug("stale reminders cancelled")
	}
	return len(keep)
}

// Close 取消全部待触发的提醒
func (p *Planner) Close() {
	p.reminders.Stop()
}

func (p *Planner) refreshWeekly(ctx context.Context, now time.Time) error {
	weekly, err := p.source.WeeklySchedules(ctx, intake.WeekStart(now))
	if err != nil {
		p.log.WithError(err).Error("load weekly schedules failed")
		return fmt.Errorf("load weekly schedules: %w", err)
	}

	p.mu.Lock()
	p.weekly = weekly
	p.mu.Unlock()
	return nil
}

func (p *Planner) persistedID(id string) (uint, error) {
	p.mu.Lock()
	idx := slices.IndexFunc(p.events, func(occ intake.Occurrence) bool { return occ.ID == id })
	var temporary bool
	if idx >= 0 {
		temporary = p.events[idx].Temporary
	}
	p.mu.Unlock()

	if temporary {
		return 0, ErrNotPersisted
	}
	scheduleID, ok := intake.ParseServerID(id)
	if !ok {
		return 0, fmt.Errorf("%w: %s", ErrUnknownOccurrence, id)
	}
	return scheduleID, nil
}

func (p *Planner) alert(ctx context.Context, title, text string) {
	if err := p.notifier.Notify(ctx, notify.Alert(title, text)); err != nil {
		p.log.WithError(err).Warn("deliver alert failed")
	}
}

func (p *Planner) fail(ctx context.Context, title, text string, err error) {
	p.log.WithError(err).Error(title)
	switch {
	case errors.Is(err, client.ErrLoginRequired), errors.Is(err, client.ErrUnauthorized):
		text = "로그인이 필요합니다."
	}
	p.alert(ctx, title, text)
}

func validationMessage(err error) string {
	switch {
	case errors.Is(err, intake.ErrProductRequired):
		return "영양제를 선택해주세요."
	case errors.Is(err, intake.ErrTimesRequired):
		return "복용 시간을 선택해주세요."
	case errors.Is(err, intake.ErrInvalidDuration):
		return "복용 기간을 올바르게 입력해주세요."
	case errors.Is(err, intake.ErrEndBeforeStart):
		return "종료일은 시작일 이후여야 합니다."
	default:
		return "입력값을 확인해주세요."
	}
}
