package client

import (
	"cmp"
	"context"
	"fmt"
	"os"
	"slices"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/intakeplan/internal/intake"
	"github.com/intakeplan/internal/logger"
	"github.com/sirupsen/logrus"
	"gopkg.in/yaml.v3"
)

// Fixture 是占位数据的 YAML 结构
type Fixture struct {
	Products  []FixtureProduct  `yaml:"products"`
	Schedules []FixtureSchedule `yaml:"schedules"`
}

// FixtureProduct 是占位产品
type FixtureProduct struct {
	ID      uint   `yaml:"id"`
	Name    string `yaml:"name"`
	Company string `yaml:"company"`
}

// FixtureSchedule 是占位计划，Start 为 YYYY-MM-DD
type FixtureSchedule struct {
	Product string   `yaml:"product"`
	Start   string   `yaml:"start"`
	Days    int      `yaml:"days"`
	Times   []string `yaml:"times"`
}

// DefaultFixture 返回内置的占位数据
func DefaultFixture() Fixture {
	return Fixture{
		Products: []FixtureProduct{
			{ID: 1, Name: "오메가3", Company: "뉴트리"},
			{ID: 2, Name: "비타민C 1000", Company: "고려은단"},
			{ID: 3, Name: "비타민D 2000IU", Company: "종근당"},
			{ID: 4, Name: "유산균", Company: "락토핏"},
			{ID: 5, Name: "마그네슘", Company: "솔가"},
		},
	}
}

// LoadFixture 从 YAML 文件读取占位数据
func LoadFixture(path string) (Fixture, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return Fixture{}, fmt.Errorf("read fixture: %w", err)
	}

	var fixture Fixture
	if err := yaml.Unmarshal(raw, &fixture); err != nil {
		return Fixture{}, fmt.Errorf("parse fixture: %w", err)
	}
	return fixture, nil
}

type fixtureRow struct {
	id      uint
	product string
	tod     intake.TimeOfDay
	start   time.Time
	end     time.Time
}

func (r fixtureRow) series() intake.Series {
	return intake.Series{ID: r.id, Product: r.product, TimeOfDay: r.tod, First: r.start, Until: r.end}
}

// FixtureSource 是与后端语义一致的内存数据源
type FixtureSource struct {
	mu       sync.Mutex
	products []Product
	rows     []fixtureRow
	taken    map[string]bool
	nextID   uint
	now      func() time.Time
}

// NewFixtureSource 用占位数据构造数据源，无效的占位计划记录警告后跳过
func NewFixtureSource(fixture Fixture) *FixtureSource {
	s := &FixtureSource{
		taken:  make(map[string]bool),
		nextID: 1,
		now:    time.Now,
	}
	for _, p := range fixture.Products {
		s.products = append(s.products, Product{ID: p.ID, Name: p.Name, Company: p.Company})
	}

	log := logger.WithComponent("fixture")
	for i, seed := range fixture.Schedules {
		entry := log.WithFields(logrus.Fields{"index": i, "product": seed.Product})

		start, err := time.ParseInLocation(dateFormat, strings.TrimSpace(seed.Start), time.Local)
		if err != nil {
			entry.WithError(err).Warn("skip fixture schedule with invalid start date")
			continue
		}
		times := make([]intake.TimeOfDay, 0, len(seed.Times))
		for _, raw := range seed.Times {
			tod, err := intake.ParseTimeOfDay(raw)
			if err != nil {
				entry.WithError(err).Warn("ignore unknown fixture time of day")
				continue
			}
			times = append(times, tod)
		}
		if _, err := s.CreateSchedule(context.Background(), NewSchedule{
			ProductName:  seed.Product,
			Start:        start,
			DurationDays: seed.Days,
			Times:        times,
		}); err != nil {
			entry.WithError(err).Warn("skip invalid fixture schedule")
		}
	}
	return s
}

// SetClock 替换时钟，供测试使用
func (s *FixtureSource) SetClock(now func() time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.now = now
}

// SearchProducts 按名称或厂商匹配
func (s *FixtureSource) SearchProducts(_ context.Context, term string) ([]Product, error) {
	term = strings.ToLower(strings.TrimSpace(term))
	if utf8.RuneCountInString(term) < 2 {
		return []Product{}, nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	results := make([]Product, 0)
	for _, p := range s.products {
		if strings.Contains(strings.ToLower(p.Name), term) || strings.Contains(strings.ToLower(p.Company), term) {
			results = append(results, p)
		}
	}
	return results, nil
}

// CreateSchedule 校验并保存计划，每个时段一行
func (s *FixtureSource) CreateSchedule(_ context.Context, schedule NewSchedule) ([]uint, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	product := intake.ProductRef{ID: schedule.ProductID, Name: strings.TrimSpace(schedule.ProductName)}
	if product.ID != 0 {
		idx := slices.IndexFunc(s.products, func(p Product) bool { return p.ID == product.ID })
		if idx < 0 {
			return nil, &APIError{Status: 404, Message: "제품을 찾을 수 없습니다"}
		}
		if product.Name == "" {
			product.Name = s.products[idx].Name
		}
	}

	start := intake.DateOf(schedule.Start)
	days := schedule.DurationDays
	end := schedule.End
	if end.IsZero() {
		if days == 0 {
			days = intake.DefaultDurationDays
		}
		end = start.AddDate(0, 0, days)
	} else {
		end = intake.DateOf(end)
		days = intake.DaysBetween(start, end)
	}

	def := intake.Definition{
		Product:      product,
		Start:        start,
		End:          end,
		DurationDays: days,
		Times:        intake.NormalizeTimes(schedule.Times),
		Memo:         schedule.Memo,
	}
	if err := def.Validate(); err != nil {
		return nil, &APIError{Status: 400, Message: err.Error()}
	}

	ids := make([]uint, 0, len(def.Times))
	for _, tod := range def.Times {
		first, err := tod.At(def.Start)
		if err != nil {
			return nil, err
		}
		last, err := tod.At(def.End)
		if err != nil {
			return nil, err
		}
		row := fixtureRow{id: s.nextID, product: product.Name, tod: tod, start: first, end: last.Add(intake.OccurrenceLength)}
		s.nextID++
		s.rows = append(s.rows, row)
		ids = append(ids, row.id)
	}
	return ids, nil
}

// AllSchedules 返回全部日程
func (s *FixtureSource) AllSchedules(context.Context) ([]Schedule, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	schedules := make([]Schedule, 0, len(s.rows))
	for _, row := range s.rows {
		schedules = append(schedules, Schedule{ID: row.id, ProductName: row.product, TimeOfDay: row.tod, Start: row.start, End: row.end})
	}
	slices.SortStableFunc(schedules, func(a, b Schedule) int {
		if diff := a.Start.Compare(b.Start); diff != 0 {
			return diff
		}
		return cmp.Compare(a.ID, b.ID)
	})
	return schedules, nil
}

// DailySchedules 返回某天的服用清单
func (s *FixtureSource) DailySchedules(_ context.Context, day time.Time) ([]DailyItem, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.dailyLocked(day), nil
}

func (s *FixtureSource) dailyLocked(day time.Time) []DailyItem {
	items := make([]DailyItem, 0)
	for _, row := range s.rows {
		at, ok := row.series().ActiveOn(day)
		if !ok {
			continue
		}
		items = append(items, DailyItem{
			ScheduleID:  row.id,
			ProductName: row.product,
			TimeOfDay:   row.tod,
			At:          at,
			Taken:       s.taken[takenKey(row.id, day)],
		})
	}
	slices.SortStableFunc(items, func(a, b DailyItem) int {
		if diff := a.At.Compare(b.At); diff != 0 {
			return diff
		}
		return cmp.Compare(a.ScheduleID, b.ScheduleID)
	})
	return items
}

// WeeklySchedules 按服用记录计算周计划状态
func (s *FixtureSource) WeeklySchedules(_ context.Context, weekStart time.Time) (intake.WeeklyPlan, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	start := intake.WeekStart(weekStart)
	today := intake.DateOf(s.now())
	plan := make(intake.WeeklyPlan)
	for offset := 0; offset < 7; offset++ {
		day := start.AddDate(0, 0, offset)
		items := s.dailyLocked(day)
		if len(items) == 0 {
			continue
		}

		weekDay := intake.WeekDay{Items: []string{}}
		allTaken := true
		for _, item := range items {
			if !slices.Contains(weekDay.Items, item.ProductName) {
				weekDay.Items = append(weekDay.Items, item.ProductName)
			}
			allTaken = allTaken && item.Taken
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

// UpdateSchedule 更新开始与结束时刻
func (s *FixtureSource) UpdateSchedule(_ context.Context, id uint, start, end time.Time) error {
	if end.Before(start) {
		return &APIError{Status: 400, Message: intake.ErrEndBeforeStart.Error()}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	idx := s.indexLocked(id)
	if idx < 0 {
		return &APIError{Status: 404, Message: "일정을 찾을 수 없습니다"}
	}
	s.rows[idx].start = start
	s.rows[idx].end = end
	return nil
}

// DeleteSchedule 删除日程及其服用记录
func (s *FixtureSource) DeleteSchedule(_ context.Context, id uint) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	idx := s.indexLocked(id)
	if idx < 0 {
		return &APIError{Status: 404, Message: "일정을 찾을 수 없습니다"}
	}
	s.rows = slices.Delete(s.rows, idx, idx+1)

	prefix := fmt.Sprintf("%d@", id)
	for key := range s.taken {
		if strings.HasPrefix(key, prefix) {
			delete(s.taken, key)
		}
	}
	return nil
}

// MarkTaken 记录某天已服用
func (s *FixtureSource) MarkTaken(_ context.Context, id uint, day time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	idx := s.indexLocked(id)
	if idx < 0 {
		return &APIError{Status: 404, Message: "일정을 찾을 수 없습니다"}
	}
	if _, ok := s.rows[idx].series().ActiveOn(day); !ok {
		return &APIError{Status: 400, Message: "일정 정보가 올바르지 않습니다"}
	}
	s.taken[takenKey(id, day)] = true
	return nil
}

func (s *FixtureSource) indexLocked(id uint) int {
	return slices.IndexFunc(s.rows, func(row fixtureRow) bool { return row.id == id })
}

func takenKey(id uint, day time.Time) string {
	return fmt.Sprintf("%d@%s", id, day.In(time.Local).Format(dateFormat))
}
