package handler

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/intakeplan/internal/db"
	"github.com/intakeplan/internal/intake"
	"github.com/intakeplan/internal/service"
)

type schedulePayload struct {
	PrdID          uint     `json:"prdId"`
	ProductName    string   `json:"productName"`
	IntakeStart    string   `json:"intakeStart"`
	IntakeDistance int      `json:"intakeDistance"`
	IntakeEnd      string   `json:"intakeEnd"`
	IntakeTimes    []string `json:"intakeTimes"`
	Memo           string   `json:"memo"`
}

type scheduleUpdatePayload struct {
	IntakeStart string `json:"intakeStart"`
	IntakeEnd   string `json:"intakeEnd"`
}

type intakeLogPayload struct {
	Date    string `json:"date"`
	TakenAt string `json:"takenAt"`
}

type scheduleItem struct {
	ScheduleID  uint      `json:"scheduleId"`
	ProductName string    `json:"productName"`
	IntakeTime  string    `json:"intakeTime"`
	IntakeStart time.Time `json:"intakeStart"`
	IntakeEnd   time.Time `json:"intakeEnd"`
}

type dailyItem struct {
	ScheduleID  uint      `json:"scheduleId"`
	ProductName string    `json:"productName"`
	IntakeTime  string    `json:"intakeTime"`
	At          time.Time `json:"at"`
	Taken       bool      `json:"taken"`
}

type weekDayItem struct {
	Items  []string `json:"items"`
	Status string   `json:"status"`
}

type occurrenceItem struct {
	ID         string    `json:"id"`
	Title      string    `json:"title"`
	Product    string    `json:"productName"`
	IntakeTime string    `json:"intakeTime"`
	Start      time.Time `json:"start"`
	End        time.Time `json:"end"`
	AllDay     bool      `json:"allDay"`
}

// CreateSchedule 登记服用计划，返回按提交顺序排列的日程 ID
func (a *API) CreateSchedule(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		return
	}

	var payload schedulePayload
	if !bindJSON(c, &payload, "등록 요청 형식이 올바르지 않습니다") {
		return
	}

	start, err := parseDate(payload.IntakeStart, time.Time{})
	if err != nil || start.IsZero() {
		respondError(c, http.StatusBadRequest, "복용 시작일이 올바르지 않습니다")
		return
	}

	input := service.ScheduleInput{
		ProductID:    payload.PrdID,
		ProductName:  payload.ProductName,
		Start:        start,
		DurationDays: payload.IntakeDistance,
		Times:        payload.IntakeTimes,
		Memo:         payload.Memo,
	}
	if strings.TrimSpace(payload.IntakeEnd) != "" {
		end, err := parseDate(payload.IntakeEnd, time.Time{})
		if err != nil {
			respondError(c, http.StatusBadRequest, "복용 종료일이 올바르지 않습니다")
			return
		}
		input.End = &end
	}

	ids, err := a.schedules.Create(userID, input)
	if err != nil {
		handleScheduleError(c, err)
		return
	}

	c.JSON(http.StatusCreated, ids)
}

// ListSchedules 返回当前用户的全部日程
func (a *API) ListSchedules(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		return
	}

	entries, err := a.schedules.List(userID)
	if err != nil {
		handleScheduleError(c, err)
		return
	}

	items := make([]scheduleItem, 0, len(entries))
	for _, entry := range entries {
		items = append(items, scheduleItem{
			ScheduleID:  entry.ID,
			ProductName: entry.ProductName,
			IntakeTime:  string(entry.TimeOfDay),
			IntakeStart: entry.IntakeStart,
			IntakeEnd:   entry.IntakeEnd,
		})
	}

	c.JSON(http.StatusOK, items)
}

// DailySchedules 返回某天的服用清单，date 缺省为今天
func (a *API) DailySchedules(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		return
	}

	day, err := parseDate(c.Query("date"), a.now())
	if err != nil {
		respondError(c, http.StatusBadRequest, "날짜 형식이 올바르지 않습니다")
		return
	}

	entries, err := a.schedules.Daily(userID, day)
	if err != nil {
		handleScheduleError(c, err)
		return
	}

	items := make([]dailyItem, 0, len(entries))
	for _, entry := range entries {
		items = append(items, dailyItem{
			ScheduleID:  entry.ScheduleID,
			ProductName: entry.ProductName,
			IntakeTime:  string(entry.TimeOfDay),
			At:          entry.At,
			Taken:       entry.Taken,
		})
	}

	c.JSON(http.StatusOK, items)
}

// WeeklySchedules 返回以 start 所在周一开始的周计划
func (a *API) WeeklySchedules(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		return
	}

	now := a.now()
	start, err := parseDate(c.Query("start"), now)
	if err != nil {
		respondError(c, http.StatusBadRequest, "날짜 형식이 올바르지 않습니다")
		return
	}

	plan, err := a.schedules.Weekly(userID, start, now)
	if err != nil {
		handleScheduleError(c, err)
		return
	}

	payload := make(map[string]weekDayItem, len(plan))
	for weekday, day := range plan {
		payload[weekday] = weekDayItem{Items: day.Items, Status: string(day.Status)}
	}

	c.JSON(http.StatusOK, payload)
}

// ListOccurrences 在 [from, to] 日期区间内按天展开全部日程
func (a *API) ListOccurrences(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		return
	}

	now := a.now()
	from, err := parseDate(c.Query("from"), intake.WeekStart(now))
	if err != nil {
		respondError(c, http.StatusBadRequest, "날짜 형식이 올바르지 않습니다")
		return
	}
	to, err := parseDate(c.Query("to"), from.AddDate(0, 0, 6))
	if err != nil {
		respondError(c, http.StatusBadRequest, "날짜 형식이 올바르지 않습니다")
		return
	}

	occurrences, err := a.schedules.Occurrences(userID, from, to.AddDate(0, 0, 1).Add(-time.Second))
	if err != nil {
		handleScheduleError(c, err)
		return
	}

	items := make([]occurrenceItem, 0, len(occurrences))
	for _, occ := range occurrences {
		items = append(items, occurrenceItem{
			ID:         occ.ID,
			Title:      occ.Title,
			Product:    occ.Product,
			IntakeTime: string(occ.TimeOfDay),
			Start:      occ.Start,
			End:        occ.End,
			AllDay:     occ.AllDay,
		})
	}

	c.JSON(http.StatusOK, items)
}

// UpdateSchedule 保存拖拽后的开始与结束时刻
func (a *API) UpdateSchedule(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		return
	}

	id, err := parseUintParam(c, "id")
	if err != nil {
		respondError(c, http.StatusBadRequest, "잘못된 일정 ID입니다")
		return
	}

	var payload scheduleUpdatePayload
	if !bindJSON(c, &payload, "수정 요청 형식이 올바르지 않습니다") {
		return
	}

	start, err := parseInstant(payload.IntakeStart)
	if err != nil {
		respondError(c, http.StatusBadRequest, "시작 시각이 올바르지 않습니다")
		return
	}
	end, err := parseInstant(payload.IntakeEnd)
	if err != nil {
		respondError(c, http.StatusBadRequest, "종료 시각이 올바르지 않습니다")
		return
	}

	schedule, err := a.schedules.Update(userID, id, start, end)
	if err != nil {
		handleScheduleError(c, err)
		return
	}

	c.JSON(http.StatusOK, scheduleToItem(*schedule))
}

// DeleteSchedule 删除日程
func (a *API) DeleteSchedule(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		return
	}

	id, err := parseUintParam(c, "id")
	if err != nil {
		respondError(c, http.StatusBadRequest, "잘못된 일정 ID입니다")
		return
	}

	if err := a.schedules.Delete(userID, id); err != nil {
		handleScheduleError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"deleted": true, "scheduleId": id})
}

// MarkTaken 记录某天已服用，重复提交保持幂等
func (a *API) MarkTaken(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		return
	}

	id, err := parseUintParam(c, "id")
	if err != nil {
		respondError(c, http.StatusBadRequest, "잘못된 일정 ID입니다")
		return
	}

	var payload intakeLogPayload
	if !bindJSON(c, &payload, "복용 기록 형식이 올바르지 않습니다") {
		return
	}

	now := a.now()
	day, err := parseDate(payload.Date, now)
	if err != nil {
		respondError(c, http.StatusBadRequest, "날짜 형식이 올바르지 않습니다")
		return
	}

	takenAt := now
	if strings.TrimSpace(payload.TakenAt) != "" {
		takenAt, err = parseInstant(payload.TakenAt)
		if err != nil {
			respondError(c, http.StatusBadRequest, "복용 시각이 올바르지 않습니다")
			return
		}
	}

	record, err := a.schedules.MarkTaken(userID, id, day, &takenAt)
	if err != nil {
		handleScheduleError(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{
		"scheduleId": record.ScheduleID,
		"date":       record.LogDate.In(time.Local).Format(dateFormat),
		"takenAt":    record.TakenAt,
	})
}

// UnmarkTaken 撤销某天的服用记录
func (a *API) UnmarkTaken(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		return
	}

	id, err := parseUintParam(c, "id")
	if err != nil {
		respondError(c, http.StatusBadRequest, "잘못된 일정 ID입니다")
		return
	}

	day, err := parseDate(c.Param("date"), time.Time{})
	if err != nil || day.IsZero() {
		respondError(c, http.StatusBadRequest, "날짜 형식이 올바르지 않습니다")
		return
	}

	if err := a.schedules.UnmarkTaken(userID, id, day); err != nil {
		handleScheduleError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"deleted": true, "scheduleId": id})
}

// GetPlan 返回计划详情，备注渲染为安全的 HTML
func (a *API) GetPlan(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		return
	}

	id, err := parseUintParam(c, "id")
	if err != nil {
		respondError(c, http.StatusBadRequest, "잘못된 계획 ID입니다")
		return
	}

	plan, err := a.schedules.GetPlan(userID, id)
	if err != nil {
		handleScheduleError(c, err)
		return
	}

	schedules := make([]scheduleItem, 0, len(plan.Schedules))
	for _, schedule := range plan.Schedules {
		item := scheduleToItem(schedule)
		item.ProductName = plan.ProductName
		schedules = append(schedules, item)
	}

	c.JSON(http.StatusOK, gin.H{
		"planId":         plan.ID,
		"prdId":          plan.ProductID,
		"productName":    plan.ProductName,
		"intakeStart":    plan.StartDate.In(time.Local).Format(dateFormat),
		"intakeEnd":      plan.EndDate.In(time.Local).Format(dateFormat),
		"intakeDistance": plan.DurationDays,
		"memo":           plan.Memo,
		"memoHtml":       service.RenderMemo(plan.Memo),
		"schedules":      schedules,
	})
}

// ExportCalendar 以 iCalendar 格式导出全部日程
func (a *API) ExportCalendar(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		return
	}

	raw, err := a.calendar.Export(userID)
	if err != nil {
		respondError(c, http.StatusInternalServerError, "캘린더 내보내기에 실패했습니다")
		return
	}

	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", "intakeplan.ics"))
	c.Data(http.StatusOK, "text/calendar; charset=utf-8", raw)
}

func scheduleToItem(schedule db.IntakeSchedule) scheduleItem {
	return scheduleItem{
		ScheduleID:  schedule.ID,
		ProductName: schedule.Plan.ProductName,
		IntakeTime:  schedule.TimeOfDay,
		IntakeStart: schedule.IntakeStart,
		IntakeEnd:   schedule.IntakeEnd,
	}
}

func handleScheduleError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, service.ErrScheduleNotFound):
		respondError(c, http.StatusNotFound, "일정을 찾을 수 없습니다")
	case errors.Is(err, service.ErrProductNotFound):
		respondError(c, http.StatusNotFound, "제품을 찾을 수 없습니다")
	case errors.Is(err, intake.ErrProductRequired):
		respondError(c, http.StatusBadRequest, "영양제를 선택해주세요")
	case errors.Is(err, intake.ErrTimesRequired):
		respondError(c, http.StatusBadRequest, "복용 시간을 선택해주세요")
	case errors.Is(err, intake.ErrEndBeforeStart):
		respondError(c, http.StatusBadRequest, "종료일은 시작일 이후여야 합니다")
	case errors.Is(err, intake.ErrUnknownTimeOfDay):
		respondError(c, http.StatusBadRequest, "알 수 없는 복용 시간입니다")
	case errors.Is(err, service.ErrInvalidSchedule):
		respondError(c, http.StatusBadRequest, "일정 정보가 올바르지 않습니다")
	default:
		respondError(c, http.StatusInternalServerError, "요청 처리에 실패했습니다")
	}
}
