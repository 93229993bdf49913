package db

import (
	"time"

	"gorm.io/gorm"
)

// Product 是营养剂目录中的一项
type Product struct {
	gorm.Model
	Name        string `gorm:"index;not null"`
	CompanyName string
}

// IntakePlan 对应一次登记提交的服用计划
// ProductID 为空表示未匹配目录、直接输入的产品名
// StartDate/EndDate 只保留日期部分
// 计划归属于登记它的用户，日程与服用记录都经由计划判断归属
type IntakePlan struct {
	gorm.Model
	UserID       uint `gorm:"index;not null"`
	User         User `gorm:"constraint:OnDelete:CASCADE"`
	ProductID    *uint
	ProductName  string `gorm:"not null"`
	StartDate    time.Time
	EndDate      time.Time
	DurationDays int
	Memo         string
	Schedules    []IntakeSchedule `gorm:"foreignKey:PlanID"`
}

// IntakeSchedule 是计划中每个服用时段对应的一条日程，其 ID 即客户端使用的 scheduleId
// IntakeStart 为首日服用时刻，IntakeEnd 为最后一次服用的结束时刻
type IntakeSchedule struct {
	gorm.Model
	PlanID      uint       `gorm:"index"`
	Plan        IntakePlan `gorm:"constraint:OnDelete:CASCADE"`
	TimeOfDay   string     `gorm:"not null"`
	IntakeStart time.Time  `gorm:"index"`
	IntakeEnd   time.Time  `gorm:"index"`
}

// IntakeLog 记录某条日程在某天已服用
// ScheduleID + LogDate 采用唯一索引，保证幂等
type IntakeLog struct {
	gorm.Model
	ScheduleID uint           `gorm:"index;index:idx_intake_log_unique,unique"`
	Schedule   IntakeSchedule `gorm:"constraint:OnDelete:CASCADE"`
	LogDate    time.Time      `gorm:"index:idx_intake_log_unique,unique"`
	TakenAt    *time.Time
}

// TableName 确保唯一索引作用到 schedule_id + log_date
func (IntakeLog) TableName() string {
	return "intake_logs"
}
