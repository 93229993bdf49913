// Package client 提供日程数据源：REST 后端或内存占位数据
package client

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/intakeplan/internal/config"
	"github.com/intakeplan/internal/intake"
)

var (
	// ErrLoginRequired 在本地没有可用令牌时返回，调用方应引导用户登录
	ErrLoginRequired = errors.New("login required")
	// ErrUnauthorized 在后端拒绝令牌时返回
	ErrUnauthorized = errors.New("unauthorized")
	// ErrNotFound 在目标日程不存在时返回
	ErrNotFound = errors.New("not found")
)

// Product 是产品目录中的一项
type Product struct {
	ID      uint
	Name    string
	Company string
}

// NewSchedule 是登记服用计划时提交的内容，End 为零值时由后端按天数计算
type NewSchedule struct {
	ProductID    uint
	ProductName  string
	Start        time.Time
	DurationDays int
	End          time.Time
	Times        []intake.TimeOfDay
	Memo         string
}

// Schedule 是全部日程列表中的一行，End 原样来自后端
type Schedule struct {
	ID          uint
	ProductName string
	TimeOfDay   intake.TimeOfDay
	Start       time.Time
	End         time.Time
}

// DailyItem 是某天需要服用的一项
type DailyItem struct {
	ScheduleID  uint
	ProductName string
	TimeOfDay   intake.TimeOfDay
	At          time.Time
	Taken       bool
}

// DataSource 是 planner 依赖的后端能力
type DataSource interface {
	SearchProducts(ctx context.Context, term string) ([]Product, error)
	CreateSchedule(ctx context.Context, schedule NewSchedule) ([]uint, error)
	AllSchedules(ctx context.Context) ([]Schedule, error)
	DailySchedules(ctx context.Context, day time.Time) ([]DailyItem, error)
	WeeklySchedules(ctx context.Context, weekStart time.Time) (intake.WeeklyPlan, error)
	UpdateSchedule(ctx context.Context, id uint, start, end time.Time) error
	DeleteSchedule(ctx context.Context, id uint) error
	MarkTaken(ctx context.Context, id uint, day time.Time) error
}

// ScheduleFromDefinition 把校验过的定义转换为提交内容
func ScheduleFromDefinition(def intake.Definition) NewSchedule {
	return NewSchedule{
		ProductID:    def.Product.ID,
		ProductName:  def.Product.Name,
		Start:        def.Start,
		DurationDays: def.DurationDays,
		End:          def.End,
		Times:        append([]intake.TimeOfDay(nil), def.Times...),
		Memo:         def.Memo,
	}
}

// New 按配置选择数据源
func New(cfg config.AppConfig) (DataSource, error) {
	switch cfg.Source {
	case config.SourceFixture:
		if cfg.FixturePath == "" {
			return NewFixtureSource(DefaultFixture()), nil
		}
		fixture, err := LoadFixture(cfg.FixturePath)
		if err != nil {
			return nil, err
		}
		return NewFixtureSource(fixture), nil
	case config.SourceBackend, "":
		return NewHTTPSource(cfg.APIBaseURL, FileToken{Path: cfg.TokenFile}), nil
	default:
		return nil, fmt.Errorf("unsupported data source %q", cfg.Source)
	}
}
