package service

import (
	"cmp"
	"errors"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/intakeplan/internal/db"
	"github.com/intakeplan/internal/intake"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

var (
	// ErrScheduleNotFound 在指定日程不存在时返回
	ErrScheduleNotFound = errors.New("schedule not found")
	// ErrInvalidSchedule 当登记或更新参数不合法时返回
	ErrInvalidSchedule = errors.New("invalid schedule")
)

// ScheduleService 负责服用计划与日程的增删改查，以及今日/周视图的计算
// 每次登记写入一条 IntakePlan，并按服用时段拆成多条 IntakeSchedule
type ScheduleService struct {
	db *gorm.DB
}

// ScheduleInput 定义登记服用计划时的输入
// End 为空时按 Start + DurationDays 计算；DurationDays 为 0 时默认 30 天
type ScheduleInput struct {
	ProductID    uint
	ProductName  string
	Start        time.Time
	DurationDays int
	End          *time.Time
	Times        []string
	Memo         string
}

// ScheduleEntry 是全部日程列表中的一项
type ScheduleEntry struct {
	ID          uint
	ProductName string
	TimeOfDay   intake.TimeOfDay
	IntakeStart time.Time
	IntakeEnd   time.Time
}

// DailyEntry 是某天需要服用的一项
type DailyEntry struct {
	ScheduleID  uint
	ProductName string
	TimeOfDay   intake.TimeOfDay
	At          time.Time
	Taken       bool
}

// NewScheduleService 构造 ScheduleService
func NewScheduleService(gdb *gorm.DB) *ScheduleService {
	return &ScheduleService{db: gdb}
}

// Create 校验并保存 userID 名下的服用计划，按提交的时段顺序返回日程 ID
func (s *ScheduleService) Create(userID uint, input ScheduleInput) ([]uint, error) {
	def, err := s.definitionFromInput(input)
	if err != nil {
		return nil, err
	}

	plan := db.IntakePlan{
		UserID:       userID,
		ProductName:  def.Product.Name,
		StartDate:    def.Start,
		EndDate:      def.End,
		DurationDays: def.DurationDays,
		Memo:         def.Memo,
	}
	if def.Product.Catalogued() {
		id := def.Product.ID
		plan.ProductID = &id
	}

	ids := make([]uint, 0, len(def.Times))
	err = s.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&plan).Error; err != nil {
			return err
		}

		for _, tod := range def.Times {
			first, err := tod.At(def.Start)
			if err != nil {
				return err
			}
			last, err := tod.At(def.End)
			if err != nil {
				return err
			}

			schedule := db.IntakeSchedule{
				PlanID:      plan.ID,
				TimeOfDay:   string(tod),
				IntakeStart: first,
				IntakeEnd:   last.Add(intake.OccurrenceLength),
			}
			if err := tx.Create(&schedule).Error; err != nil {
				return err
			}
			ids = append(ids, schedule.ID)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("create schedule: %w", err)
	}

	return ids, nil
}

func (s *ScheduleService) definitionFromInput(input ScheduleInput) (intake.Definition, error) {
	product := intake.ProductRef{ID: input.ProductID, Name: strings.TrimSpace(input.ProductName)}
	if product.ID != 0 {
		var catalogued db.Product
		if err := s.db.First(&catalogued, product.ID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return intake.Definition{}, ErrProductNotFound
			}
			return intake.Definition{}, fmt.Errorf("find product: %w", err)
		}
		if product.Name == "" {
			product.Name = catalogued.Name
		}
	}

	times := make([]intake.TimeOfDay, 0, len(input.Times))
	for _, raw := range input.Times {
		tod, err := intake.ParseTimeOfDay(raw)
		if err != nil {
			return intake.Definition{}, fmt.Errorf("%w: %w", ErrInvalidSchedule, err)
		}
		times = append(times, tod)
	}

	start := intake.DateOf(input.Start)
	days := input.DurationDays
	var end time.Time
	if input.End != nil {
		end = intake.DateOf(*input.End)
		days = intake.DaysBetween(start, end)
	} else {
		if days == 0 {
			days = intake.DefaultDurationDays
		}
		if days < 0 {
			return intake.Definition{}, fmt.Errorf("%w: %w", ErrInvalidSchedule, intake.ErrInvalidDuration)
		}
		end = start.AddDate(0, 0, days)
	}

	def := intake.Definition{
		Product:      product,
		Start:        start,
		End:          end,
		DurationDays: days,
		Times:        intake.NormalizeTimes(times),
		Memo:         strings.TrimSpace(input.Memo),
	}
	if err := def.Validate(); err != nil {
		return intake.Definition{}, fmt.Errorf("%w: %w", ErrInvalidSchedule, err)
	}
	return def, nil
}

// List 返回用户的全部日程，按开始时间排序
func (s *ScheduleService) List(userID uint) ([]ScheduleEntry, error) {
	schedules, err := s.loadSchedules(userID)
	if err != nil {
		return nil, err
	}

	entries := make([]ScheduleEntry, 0, len(schedules))
	for _, schedule := range schedules {
		entries = append(entries, ScheduleEntry{
			ID:          schedule.ID,
			ProductName: schedule.Plan.ProductName,
			TimeOfDay:   intake.TimeOfDay(schedule.TimeOfDay),
			IntakeStart: schedule.IntakeStart,
			IntakeEnd:   schedule.IntakeEnd,
		})
	}
	return entries, nil
}

// Daily 返回指定日期需要服用的项目，按服用时刻排序
func (s *ScheduleService) Daily(userID uint, day time.Time) ([]DailyEntry, error) {
	schedules, err := s.loadSchedules(userID)
	if err != nil {
		return nil, err
	}

	entries := dailyEntries(schedules, day)
	if len(entries) == 0 {
		return entries, nil
	}

	taken, err := s.takenKeys(scheduleIDs(schedules))
	if err != nil {
		return nil, err
	}
	for i := range entries {
		entries[i].Taken = taken[logKey(entries[i].ScheduleID, day)]
	}
	return entries, nil
}

// Weekly 返回以 weekStart 所在周一开始的七天计划
// 状态由服用记录决定：全部服用为 완료；今天之前未全部服用为 미완료；其余为 예정
func (s *ScheduleService) Weekly(userID uint, weekStart, now time.Time) (intake.WeeklyPlan, error) {
	schedules, err := s.loadSchedules(userID)
	if err != nil {
		return nil, err
	}

	taken, err := s.takenKeys(scheduleIDs(schedules))
	if err != nil {
		return nil, err
	}

	start := intake.WeekStart(weekStart)
	today := intake.DateOf(now)
	plan := make(intake.WeeklyPlan)

	for offset := 0; offset < 7; offset++ {
		day := start.AddDate(0, 0, offset)
		entries := dailyEntries(schedules, day)
		if len(entries) == 0 {
			continue
		}

		weekDay := intake.WeekDay{Items: []string{}}
		allTaken := true
		for _, entry := range entries {
			if !slices.Contains(weekDay.Items, entry.ProductName) {
				weekDay.Items = append(weekDay.Items, entry.ProductName)
			}
			if !taken[logKey(entry.ScheduleID, day)] {
				allTaken = false
			}
		}

		switch {
		case allTaken:
			weekDay.Status = intake.StatusDone
		case day.Before(today):
			weekDay.Status = intake.StatusNotDone
		default:
			weekDay.Status = intake.StatusUpcoming
		}

		plan[day.Weekday().String()] = weekDay
	}

	return plan, nil
}

// Occurrences 把用户的全部日程在 [from, to] 区间内按天展开
func (s *ScheduleService) Occurrences(userID uint, from, to time.Time) ([]intake.Occurrence, error) {
	if to.Before(from) {
		return nil, fmt.Errorf("%w: range end before start", ErrInvalidSchedule)
	}

	schedules, err := s.loadSchedules(userID)
	if err != nil {
		return nil, err
	}

	series := make([]intake.Series, 0, len(schedules))
	for _, schedule := range schedules {
		series = append(series, seriesOf(schedule))
	}
	return intake.ExpandRange(series, from, to), nil
}

// Update 按拖拽结果更新日程的开始与结束时刻
func (s *ScheduleService) Update(userID, id uint, start, end time.Time) (*db.IntakeSchedule, error) {
	if start.IsZero() || end.IsZero() {
		return nil, fmt.Errorf("%w: start and end are required", ErrInvalidSchedule)
	}
	if end.Before(start) {
		return nil, fmt.Errorf("%w: %w", ErrInvalidSchedule, intake.ErrEndBeforeStart)
	}

	existing, err := s.findOwned(userID, id)
	if err != nil {
		return nil, err
	}

	existing.IntakeStart = start
	existing.IntakeEnd = end
	if err := s.db.Model(existing).Updates(map[string]any{
		"intake_start": start,
		"intake_end":   end,
	}).Error; err != nil {
		return nil, fmt.Errorf("update schedule: %w", err)
	}
	return existing, nil
}

// Delete 删除日程及其服用记录；计划下已无日程时一并删除计划
func (s *ScheduleService) Delete(userID, id uint) error {
	existing, err := s.findOwned(userID, id)
	if err != nil {
		return err
	}

	err = s.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Unscoped().Where("schedule_id = ?", id).Delete(&db.IntakeLog{}).Error; err != nil {
			return err
		}
		if err := tx.Delete(&db.IntakeSchedule{}, id).Error; err != nil {
			return err
		}

		var remaining int64
		if err := tx.Model(&db.IntakeSchedule{}).Where("plan_id = ?", existing.PlanID).Count(&remaining).Error; err != nil {
			return err
		}
		if remaining == 0 {
			return tx.Delete(&db.IntakePlan{}, existing.PlanID).Error
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("delete schedule: %w", err)
	}
	return nil
}

// GetPlan 返回用户名下的计划及其全部日程
func (s *ScheduleService) GetPlan(userID, planID uint) (*db.IntakePlan, error) {
	var plan db.IntakePlan
	if err := s.db.Preload("Schedules", func(tx *gorm.DB) *gorm.DB {
		return tx.Order("intake_start ASC")
	}).Where("user_id = ?", userID).First(&plan, planID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrScheduleNotFound
		}
		return nil, fmt.Errorf("get plan: %w", err)
	}
	return &plan, nil
}

// MarkTaken 幂等地记录某条日程在某天已服用
func (s *ScheduleService) MarkTaken(userID, scheduleID uint, day time.Time, takenAt *time.Time) (*db.IntakeLog, error) {
	schedule, err := s.findOwned(userID, scheduleID)
	if err != nil {
		return nil, err
	}

	if _, ok := seriesOf(*schedule).ActiveOn(day); !ok {
		return nil, fmt.Errorf("%w: schedule is not active on %s", ErrInvalidSchedule, day.Format("2006-01-02"))
	}

	logDate := intake.DateOf(day)
	record := db.IntakeLog{
		ScheduleID: scheduleID,
		LogDate:    logDate,
		TakenAt:    takenAt,
	}

	if err := s.db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "schedule_id"}, {Name: "log_date"}},
		DoUpdates: clause.AssignmentColumns([]string{"taken_at", "updated_at"}),
	}).Create(&record).Error; err != nil {
		return nil, fmt.Errorf("upsert intake log: %w", err)
	}

	if err := s.db.Where("schedule_id = ? AND log_date = ?", scheduleID, logDate).First(&record).Error; err != nil {
		return nil, fmt.Errorf("reload intake log: %w", err)
	}
	return &record, nil
}

// UnmarkTaken 撤销某天的服用记录
func (s *ScheduleService) UnmarkTaken(userID, scheduleID uint, day time.Time) error {
	if _, err := s.findOwned(userID, scheduleID); err != nil {
		return err
	}

	if err := s.db.Unscoped().
		Where("schedule_id = ? AND log_date = ?", scheduleID, intake.DateOf(day)).
		Delete(&db.IntakeLog{}).Error; err != nil {
		return fmt.Errorf("delete intake log: %w", err)
	}
	return nil
}

// owned 把查询限制在 userID 名下计划的日程上
func (s *ScheduleService) owned(userID uint) *gorm.DB {
	plans := s.db.Model(&db.IntakePlan{}).Select("id").Where("user_id = ?", userID)
	return s.db.Where("plan_id IN (?)", plans)
}

// findOwned 查找日程；不存在或属于其他用户时都返回 ErrScheduleNotFound
func (s *ScheduleService) findOwned(userID, id uint) (*db.IntakeSchedule, error) {
	var schedule db.IntakeSchedule
	if err := s.owned(userID).Preload("Plan").First(&schedule, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrScheduleNotFound
		}
		return nil, fmt.Errorf("find schedule: %w", err)
	}
	return &schedule, nil
}

func (s *ScheduleService) loadSchedules(userID uint) ([]db.IntakeSchedule, error) {
	var schedules []db.IntakeSchedule
	if err := s.owned(userID).Preload("Plan").Order("intake_start ASC, id ASC").Find(&schedules).Error; err != nil {
		return nil, fmt.Errorf("list schedules: %w", err)
	}
	return schedules, nil
}

func (s *ScheduleService) takenKeys(ids []uint) (map[string]bool, error) {
	taken := make(map[string]bool)
	if len(ids) == 0 {
		return taken, nil
	}

	var logs []db.IntakeLog
	if err := s.db.Where("schedule_id IN ?", ids).Find(&logs).Error; err != nil {
		return nil, fmt.Errorf("list intake logs: %w", err)
	}
	for _, log := range logs {
		taken[logKey(log.ScheduleID, log.LogDate)] = true
	}
	return taken, nil
}

func dailyEntries(schedules []db.IntakeSchedule, day time.Time) []DailyEntry {
	entries := make([]DailyEntry, 0)
	for _, schedule := range schedules {
		at, ok := seriesOf(schedule).ActiveOn(day)
		if !ok {
			continue
		}
		entries = append(entries, DailyEntry{
			ScheduleID:  schedule.ID,
			ProductName: schedule.Plan.ProductName,
			TimeOfDay:   intake.TimeOfDay(schedule.TimeOfDay),
			At:          at,
		})
	}

	slices.SortStableFunc(entries, func(a, b DailyEntry) int {
		if diff := a.At.Compare(b.At); diff != 0 {
			return diff
		}
		return cmp.Compare(a.ScheduleID, b.ScheduleID)
	})
	return entries
}

func seriesOf(schedule db.IntakeSchedule) intake.Series {
	return intake.Series{
		ID:        schedule.ID,
		Product:   schedule.Plan.ProductName,
		TimeOfDay: intake.TimeOfDay(schedule.TimeOfDay),
		First:     schedule.IntakeStart,
		Until:     schedule.IntakeEnd,
	}
}

func scheduleIDs(schedules []db.IntakeSchedule) []uint {
	ids := make([]uint, 0, len(schedules))
	for _, schedule := range schedules {
		ids = append(ids, schedule.ID)
	}
	return ids
}

func logKey(scheduleID uint, day time.Time) string {
	return fmt.Sprintf("%d@%s", scheduleID, day.In(time.Local).Format("2006-01-02"))
}
