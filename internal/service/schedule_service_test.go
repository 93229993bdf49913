package service

import (
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/intakeplan/internal/db"
	"github.com/intakeplan/internal/intake"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func setupScheduleTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	dsn := fmt.Sprintf("file:schedule-service-%d?mode=memory&cache=shared", time.Now().UnixNano())
	gdb, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
	if err != nil {
		t.Fatalf("failed to open test database: %v", err)
	}

	if err := db.Migrate(gdb); err != nil {
		t.Fatalf("failed to migrate test database: %v", err)
	}

	t.Cleanup(func() {
		if sqlDB, err := gdb.DB(); err == nil {
			sqlDB.Close()
		}
	})
	return gdb
}

func seedScheduleUser(t *testing.T, gdb *gorm.DB, username string) uint {
	t.Helper()

	user := db.User{Username: username, Password: "hashed"}
	if err := gdb.Create(&user).Error; err != nil {
		t.Fatalf("failed to seed user: %v", err)
	}
	return user.ID
}

func localDate(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.Local)
}

func TestScheduleServiceCreateAndList(t *testing.T) {
	gdb := setupScheduleTestDB(t)
	products := NewProductService(gdb)
	svc := NewScheduleService(gdb)
	owner := seedScheduleUser(t, gdb, "owner")

	product, err := products.Create("오메가3", "뉴트리")
	if err != nil {
		t.Fatalf("failed to create product: %v", err)
	}

	ids, err := svc.Create(owner, ScheduleInput{
		ProductID:    product.ID,
		Start:        localDate(2024, 1, 1),
		DurationDays: 30,
		Times:        []string{"morning", "저녁"},
		Memo:         "식후 복용",
	})
	if err != nil {
		t.Fatalf("Create returned error: %v", err)
	}
	if len(ids) != 2 {
		t.Fatalf("expected 2 schedule ids, got %d", len(ids))
	}

	entries, err := svc.List(owner)
	if err != nil {
		t.Fatalf("List returned error: %v", err)
	}
	if len(entries) != 2 {
		t.Fatalf("expected 2 entries, got %d", len(entries))
	}

	morning := entries[0]
	if morning.ID != ids[0] || morning.TimeOfDay != intake.Morning {
		t.Fatalf("unexpected first entry: %+v", morning)
	}
	if morning.ProductName != "오메가3" {
		t.Fatalf("expected catalog name to be used, got %s", morning.ProductName)
	}
	if !morning.IntakeStart.Equal(time.Date(2024, 1, 1, 8, 0, 0, 0, time.Local)) {
		t.Fatalf("unexpected intake start: %s", morning.IntakeStart)
	}
	if !morning.IntakeEnd.Equal(time.Date(2024, 1, 31, 8, 30, 0, 0, time.Local)) {
		t.Fatalf("unexpected intake end: %s", morning.IntakeEnd)
	}

	plan, err := svc.GetPlan(owner, 1)
	if err != nil {
		t.Fatalf("GetPlan returned error: %v", err)
	}
	if plan.ProductID == nil || *plan.ProductID != product.ID || plan.DurationDays != 30 {
		t.Fatalf("unexpected plan: %+v", plan)
	}
	if len(plan.Schedules) != 2 {
		t.Fatalf("expected plan to hold 2 schedules, got %d", len(plan.Schedules))
	}
}

func TestScheduleServiceCreateValidation(t *testing.T) {
	gdb := setupScheduleTestDB(t)
	svc := NewScheduleService(gdb)
	owner := seedScheduleUser(t, gdb, "owner")

	tests := []struct {
		name  string
		input ScheduleInput
		want  error
	}{
		{name: "missing product", input: ScheduleInput{Start: localDate(2024, 1, 1), Times: []string{"morning"}}, want: intake.ErrProductRequired},
		{name: "missing times", input: ScheduleInput{ProductName: "비타민C", Start: localDate(2024, 1, 1)}, want: intake.ErrTimesRequired},
		{name: "unknown time", input: ScheduleInput{ProductName: "비타민C", Start: localDate(2024, 1, 1), Times: []string{"새벽"}}, want: intake.ErrUnknownTimeOfDay},
		{name: "negative duration", input: ScheduleInput{ProductName: "비타민C", Start: localDate(2024, 1, 1), DurationDays: -3, Times: []string{"morning"}}, want: intake.ErrInvalidDuration},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.Create(owner, tt.input)
			if !errors.Is(err, ErrInvalidSchedule) || !errors.Is(err, tt.want) {
				t.Fatalf("expected %v wrapped in ErrInvalidSchedule, got %v", tt.want, err)
			}
		})
	}

	end := localDate(2023, 12, 1)
	if _, err := svc.Create(owner, ScheduleInput{ProductName: "비타민C", Start: localDate(2024, 1, 1), End: &end, Times: []string{"midday"}}); !errors.Is(err, intake.ErrEndBeforeStart) {
		t.Fatalf("expected end-before-start error, got %v", err)
	}

	if _, err := svc.Create(owner, ScheduleInput{ProductID: 99, Start: localDate(2024, 1, 1), Times: []string{"midday"}}); !errors.Is(err, ErrProductNotFound) {
		t.Fatalf("expected product not found, got %v", err)
	}
}

func TestScheduleServiceDailyAndOccurrences(t *testing.T) {
	gdb := setupScheduleTestDB(t)
	svc := NewScheduleService(gdb)
	owner := seedScheduleUser(t, gdb, "owner")

	end := localDate(2024, 1, 3)
	if _, err := svc.Create(owner, ScheduleInput{ProductName: "유산균", Start: localDate(2024, 1, 1), End: &end, Times: []string{"evening", "morning"}}); err != nil {
		t.Fatalf("Create returned error: %v", err)
	}
	if _, err := svc.Create(owner, ScheduleInput{ProductName: "마그네슘", Start: localDate(2024, 1, 3), DurationDays: 5, Times: []string{"midday"}}); err != nil {
		t.Fatalf("Create returned error: %v", err)
	}

	daily, err := svc.Daily(owner, localDate(2024, 1, 3))
	if err != nil {
		t.Fatalf("Daily returned error: %v", err)
	}
	if len(daily) != 3 {
		t.Fatalf("expected 3 items on Jan 3, got %d", len(daily))
	}
	if daily[0].TimeOfDay != intake.Morning || daily[1].ProductName != "마그네슘" || daily[2].TimeOfDay != intake.Evening {
		t.Fatalf("unexpected daily order: %+v", daily)
	}

	daily, err = svc.Daily(owner, localDate(2024, 1, 4))
	if err != nil {
		t.Fatalf("Daily returned error: %v", err)
	}
	if len(daily) != 1 || daily[0].ProductName != "마그네슘" {
		t.Fatalf("expected only 마그네슘 on Jan 4, got %+v", daily)
	}

	occurrences, err := svc.Occurrences(owner, localDate(2024, 1, 1), localDate(2024, 1, 2))
	if err != nil {
		t.Fatalf("Occurrences returned error: %v", err)
	}
	// 1/1 两次 + 1/2 零点之前无实例
	if len(occurrences) != 2 {
		t.Fatalf("expected 2 occurrences, got %d", len(occurrences))
	}
	if occurrences[0].Title != "유산균 - morning" {
		t.Fatalf("unexpected title: %s", occurrences[0].Title)
	}

	if _, err := svc.Occurrences(owner, localDate(2024, 1, 2), localDate(2024, 1, 1)); !errors.Is(err, ErrInvalidSchedule) {
		t.Fatalf("expected invalid range error, got %v", err)
	}
}

func TestScheduleServiceWeeklyStatus(t *testing.T) {
	gdb := setupScheduleTestDB(t)
	svc := NewScheduleService(gdb)
	owner := seedScheduleUser(t, gdb, "owner")

	// 2024-05-06 是周一
	weekStart := localDate(2024, 5, 6)
	ids, err := svc.Create(owner, ScheduleInput{ProductName: "비타민D", Start: weekStart, DurationDays: 3, Times: []string{"morning"}})
	if err != nil {
		t.Fatalf("Create returned error: %v", err)
	}
	sameDay := weekStart
	if _, err := svc.Create(owner, ScheduleInput{ProductName: "비타민D", Start: weekStart, End: &sameDay, Times: []string{"evening"}}); err != nil {
		t.Fatalf("Create returned error: %v", err)
	}

	if _, err := svc.MarkTaken(owner, ids[0], localDate(2024, 5, 7), nil); err != nil {
		t.Fatalf("MarkTaken returned error: %v", err)
	}
	// 重复打卡保持幂等
	if _, err := svc.MarkTaken(owner, ids[0], localDate(2024, 5, 7), nil); err != nil {
		t.Fatalf("MarkTaken repeat returned error: %v", err)
	}

	now := time.Date(2024, 5, 8, 9, 0, 0, 0, time.Local)
	plan, err := svc.Weekly(owner, localDate(2024, 5, 8), now)
	if err != nil {
		t.Fatalf("Weekly returned error: %v", err)
	}

	monday, ok := plan["Monday"]
	if !ok {
		t.Fatal("expected Monday entry")
	}
	if len(monday.Items) != 1 || monday.Items[0] != "비타민D" {
		t.Fatalf("expected deduplicated items on Monday, got %v", monday.Items)
	}
	if monday.Status != intake.StatusNotDone {
		t.Fatalf("expected Monday to be not done, got %s", monday.Status)
	}
	if plan["Tuesday"].Status != intake.StatusDone {
		t.Fatalf("expected Tuesday to be done, got %s", plan["Tuesday"].Status)
	}
	if plan["Wednesday"].Status != intake.StatusUpcoming {
		t.Fatalf("expected Wednesday to be upcoming, got %s", plan["Wednesday"].Status)
	}
	if _, ok := plan["Friday"]; ok {
		t.Fatal("Friday has no items and should be omitted")
	}

	if err := svc.UnmarkTaken(owner, ids[0], localDate(2024, 5, 7)); err != nil {
		t.Fatalf("UnmarkTaken returned error: %v", err)
	}
	plan, err = svc.Weekly(owner, weekStart, now)
	if err != nil {
		t.Fatalf("Weekly returned error: %v", err)
	}
	if plan["Tuesday"].Status != intake.StatusNotDone {
		t.Fatalf("expected Tuesday to revert to not done, got %s", plan["Tuesday"].Status)
	}

	if _, err := svc.MarkTaken(owner, ids[0], localDate(2024, 6, 1), nil); !errors.Is(err, ErrInvalidSchedule) {
		t.Fatalf("expected inactive day error, got %v", err)
	}
}

func TestScheduleServiceUpdateAndDelete(t *testing.T) {
	gdb := setupScheduleTestDB(t)
	svc := NewScheduleService(gdb)
	owner := seedScheduleUser(t, gdb, "owner")

	ids, err := svc.Create(owner, ScheduleInput{ProductName: "철분", Start: localDate(2024, 2, 1), Times: []string{"morning", "midday"}})
	if err != nil {
		t.Fatalf("Create returned error: %v", err)
	}

	newStart := time.Date(2024, 2, 3, 9, 0, 0, 0, time.Local)
	newEnd := newStart.Add(30 * time.Minute)
	updated, err := svc.Update(owner, ids[0], newStart, newEnd)
	if err != nil {
		t.Fatalf("Update returned error: %v", err)
	}
	if !updated.IntakeStart.Equal(newStart) || !updated.IntakeEnd.Equal(newEnd) {
		t.Fatalf("unexpected updated schedule: %+v", updated)
	}

	if _, err := svc.Update(owner, ids[0], newEnd, newStart); !errors.Is(err, ErrInvalidSchedule) {
		t.Fatalf("expected invalid schedule error, got %v", err)
	}
	if _, err := svc.Update(owner, 999, newStart, newEnd); !errors.Is(err, ErrScheduleNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}

	if err := svc.Delete(owner, ids[0]); err != nil {
		t.Fatalf("Delete returned error: %v", err)
	}
	if err := svc.Delete(owner, ids[0]); !errors.Is(err, ErrScheduleNotFound) {
		t.Fatalf("expected not found on second delete, got %v", err)
	}

	var planCount int64
	gdb.Model(&db.IntakePlan{}).Count(&planCount)
	if planCount != 1 {
		t.Fatalf("plan should survive while schedules remain, got %d", planCount)
	}

	if err := svc.Delete(owner, ids[1]); err != nil {
		t.Fatalf("Delete returned error: %v", err)
	}
	gdb.Model(&db.IntakePlan{}).Count(&planCount)
	if planCount != 0 {
		t.Fatalf("plan should be removed with its last schedule, got %d", planCount)
	}
}

func TestScheduleServiceScopesByOwner(t *testing.T) {
	gdb := setupScheduleTestDB(t)
	svc := NewScheduleService(gdb)
	owner := seedScheduleUser(t, gdb, "owner")
	stranger := seedScheduleUser(t, gdb, "stranger")

	ids, err := svc.Create(owner, ScheduleInput{ProductName: "아연", Start: localDate(2024, 3, 1), DurationDays: 10, Times: []string{"morning"}})
	if err != nil {
		t.Fatalf("Create returned error: %v", err)
	}
	if _, err := svc.MarkTaken(owner, ids[0], localDate(2024, 3, 2), nil); err != nil {
		t.Fatalf("MarkTaken returned error: %v", err)
	}

	entries, err := svc.List(stranger)
	if err != nil {
		t.Fatalf("List returned error: %v", err)
	}
	if len(entries) != 0 {
		t.Fatalf("expected no entries for another user, got %+v", entries)
	}
	daily, err := svc.Daily(stranger, localDate(2024, 3, 2))
	if err != nil {
		t.Fatalf("Daily returned error: %v", err)
	}
	if len(daily) != 0 {
		t.Fatalf("expected empty daily list for another user, got %+v", daily)
	}

	start := time.Date(2024, 3, 3, 9, 0, 0, 0, time.Local)
	if _, err := svc.Update(stranger, ids[0], start, start.Add(time.Hour)); !errors.Is(err, ErrScheduleNotFound) {
		t.Fatalf("expected not found on foreign update, got %v", err)
	}
	if _, err := svc.MarkTaken(stranger, ids[0], localDate(2024, 3, 3), nil); !errors.Is(err, ErrScheduleNotFound) {
		t.Fatalf("expected not found on foreign mark, got %v", err)
	}
	if err := svc.UnmarkTaken(stranger, ids[0], localDate(2024, 3, 2)); !errors.Is(err, ErrScheduleNotFound) {
		t.Fatalf("expected not found on foreign unmark, got %v", err)
	}
	if _, err := svc.GetPlan(stranger, 1); !errors.Is(err, ErrScheduleNotFound) {
		t.Fatalf("expected not found on foreign plan, got %v", err)
	}
	if err := svc.Delete(stranger, ids[0]); !errors.Is(err, ErrScheduleNotFound) {
		t.Fatalf("expected not found on foreign delete, got %v", err)
	}

	daily, err = svc.Daily(owner, localDate(2024, 3, 2))
	if err != nil {
		t.Fatalf("Daily returned error: %v", err)
	}
	if len(daily) != 1 || !daily[0].Taken {
		t.Fatalf("owner's schedule and log should be untouched, got %+v", daily)
	}
}
