package handler

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-contrib/sessions"
	"github.com/gin-contrib/sessions/cookie"
	"github.com/gin-gonic/gin"
	gsessions "github.com/gorilla/sessions"
	"github.com/intakeplan/internal/db"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func setupTestAPI(t *testing.T) *API {
	t.Helper()
	gin.SetMode(gin.TestMode)

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", strings.ReplaceAll(t.Name(), "/", "_"))
	gdb, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
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

	if err := gdb.Create(testOwner()).Error; err != nil {
		t.Fatalf("failed to seed owner: %v", err)
	}

	api := NewAPI(gdb)
	api.now = func() time.Time { return time.Date(2024, 5, 8, 9, 0, 0, 0, time.Local) }
	return api
}

// testOwner 是 jsonContext 默认携带的已认证用户，每个测试库中的第一个用户
func testOwner() *db.User {
	return &db.User{Model: gorm.Model{ID: 1}, Username: "owner", Password: "hashed"}
}

func jsonContext(method, target string, payload any) (*gin.Context, *httptest.ResponseRecorder) {
	var body *bytes.Reader
	if payload != nil {
		raw, _ := json.Marshal(payload)
		body = bytes.NewReader(raw)
	} else {
		body = bytes.NewReader(nil)
	}

	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = httptest.NewRequest(method, target, body)
	c.Request.Header.Set("Content-Type", "application/json")
	c.Set(currentUserKey, testOwner())
	return c, w
}

// unsavableStore 模拟无法写回的会话存储
type unsavableStore struct {
	cookie.Store
}

func (s unsavableStore) Get(r *http.Request, name string) (*gsessions.Session, error) {
	return gsessions.GetRegistry(r).Get(s, name)
}

func (s unsavableStore) New(r *http.Request, name string) (*gsessions.Session, error) {
	session := gsessions.NewSession(s, name)
	session.Options = &gsessions.Options{Path: "/"}
	session.IsNew = true
	return session, nil
}

func (unsavableStore) Save(*http.Request, http.ResponseWriter, *gsessions.Session) error {
	return errors.New("session backend unavailable")
}

func createTestSchedule(t *testing.T, api *API, payload map[string]any) []uint {
	t.Helper()

	c, w := jsonContext(http.MethodPost, "/api/schedules", payload)
	api.CreateSchedule(c)
	if w.Code != http.StatusCreated {
		t.Fatalf("expected status 201, got %d: %s", w.Code, w.Body.String())
	}

	var ids []uint
	if err := json.Unmarshal(w.Body.Bytes(), &ids); err != nil {
		t.Fatalf("failed to decode ids: %v", err)
	}
	return ids
}

func TestCreateScheduleReturnsIDsInOrder(t *testing.T) {
	api := setupTestAPI(t)

	ids := createTestSchedule(t, api, map[string]any{
		"productName":    "오메가3",
		"intakeStart":    "2024-01-01",
		"intakeDistance": 30,
		"intakeTimes":    []string{"evening", "morning"},
		"memo":           "식후",
	})
	if len(ids) != 2 {
		t.Fatalf("expected 2 ids, got %v", ids)
	}

	var first db.IntakeSchedule
	if err := api.DB().First(&first, ids[0]).Error; err != nil {
		t.Fatalf("failed to load schedule: %v", err)
	}
	if first.TimeOfDay != "evening" {
		t.Fatalf("expected first id to be evening, got %s", first.TimeOfDay)
	}
}

func TestCreateScheduleValidation(t *testing.T) {
	api := setupTestAPI(t)

	cases := []struct {
		name    string
		payload map[string]any
		status  int
		message string
	}{
		{"missing times", map[string]any{"productName": "루테인", "intakeStart": "2024-01-01"}, http.StatusBadRequest, "복용 시간을 선택해주세요"},
		{"missing product", map[string]any{"intakeStart": "2024-01-01", "intakeTimes": []string{"morning"}}, http.StatusBadRequest, "영양제를 선택해주세요"},
		{"bad start", map[string]any{"productName": "루테인", "intakeStart": "01/01/2024", "intakeTimes": []string{"morning"}}, http.StatusBadRequest, "복용 시작일이 올바르지 않습니다"},
		{"end before start", map[string]any{"productName": "루테인", "intakeStart": "2024-01-10", "intakeEnd": "2024-01-01", "intakeTimes": []string{"morning"}}, http.StatusBadRequest, "종료일은 시작일 이후여야 합니다"},
		{"unknown time", map[string]any{"productName": "루테인", "intakeStart": "2024-01-01", "intakeTimes": []string{"midnight"}}, http.StatusBadRequest, "알 수 없는 복용 시간입니다"},
		{"unknown product", map[string]any{"prdId": 42, "intakeStart": "2024-01-01", "intakeTimes": []string{"morning"}}, http.StatusNotFound, "제품을 찾을 수 없습니다"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			c, w := jsonContext(http.MethodPost, "/api/schedules", tc.payload)
			api.CreateSchedule(c)

			if w.Code != tc.status {
				t.Fatalf("expected status %d, got %d: %s", tc.status, w.Code, w.Body.String())
			}
			var body map[string]string
			if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
				t.Fatalf("failed to decode error: %v", err)
			}
			if body["error"] != tc.message {
				t.Fatalf("expected message %q, got %q", tc.message, body["error"])
			}
		})
	}
}

func TestDailyAndWeeklySchedules(t *testing.T) {
	api := setupTestAPI(t)
	ids := createTestSchedule(t, api, map[string]any{
		"productName":    "비타민D",
		"intakeStart":    "2024-05-06",
		"intakeDistance": 3,
		"intakeTimes":    []string{"morning"},
	})

	c, w := jsonContext(http.MethodPost, "/api/schedules/1/logs", map[string]string{"date": "2024-05-07"})
	c.Params = gin.Params{{Key: "id", Value: fmt.Sprint(ids[0])}}
	api.MarkTaken(c)
	if w.Code != http.StatusCreated {
		t.Fatalf("expected status 201, got %d: %s", w.Code, w.Body.String())
	}

	c, w = jsonContext(http.MethodGet, "/api/schedules/daily?date=2024-05-07", nil)
	api.DailySchedules(c)
	if w.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", w.Code)
	}
	var daily []dailyItem
	if err := json.Unmarshal(w.Body.Bytes(), &daily); err != nil {
		t.Fatalf("failed to decode daily: %v", err)
	}
	if len(daily) != 1 || !daily[0].Taken || daily[0].IntakeTime != "morning" {
		t.Fatalf("unexpected daily payload: %+v", daily)
	}

	c, w = jsonContext(http.MethodGet, "/api/schedules/weekly?start=2024-05-06", nil)
	api.WeeklySchedules(c)
	if w.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", w.Code)
	}
	var weekly map[string]weekDayItem
	if err := json.Unmarshal(w.Body.Bytes(), &weekly); err != nil {
		t.Fatalf("failed to decode weekly: %v", err)
	}
	if weekly["Monday"].Status != "미완료" {
		t.Fatalf("expected Monday to be not done, got %+v", weekly["Monday"])
	}
	if weekly["Tuesday"].Status != "완료" {
		t.Fatalf("expected Tuesday to be done, got %+v", weekly["Tuesday"])
	}
	if weekly["Wednesday"].Status != "예정" {
		t.Fatalf("expected Wednesday to be upcoming, got %+v", weekly["Wednesday"])
	}
	if _, ok := weekly["Friday"]; ok {
		t.Fatal("expected Friday to be absent")
	}

	c, w = jsonContext(http.MethodGet, "/api/schedules/daily?date=May-7", nil)
	api.DailySchedules(c)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected status 400 for bad date, got %d", w.Code)
	}
}

func TestUpdateAndDeleteSchedule(t *testing.T) {
	api := setupTestAPI(t)
	ids := createTestSchedule(t, api, map[string]any{
		"productName": "마그네슘",
		"intakeStart": "2024-01-01",
		"intakeTimes": []string{"evening"},
	})
	target := fmt.Sprint(ids[0])

	c, w := jsonContext(http.MethodPut, "/api/schedules/"+target, map[string]string{
		"intakeStart": "2024-01-02T20:00:00",
		"intakeEnd":   "2024-01-31T20:30:00",
	})
	c.Params = gin.Params{{Key: "id", Value: target}}
	api.UpdateSchedule(c)
	if w.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d: %s", w.Code, w.Body.String())
	}

	var updated db.IntakeSchedule
	api.DB().First(&updated, ids[0])
	if updated.IntakeStart.In(time.Local).Hour() != 20 {
		t.Fatalf("expected start to move to 20:00, got %s", updated.IntakeStart)
	}

	c, w = jsonContext(http.MethodPut, "/api/schedules/999", map[string]string{
		"intakeStart": "2024-01-02T20:00:00",
		"intakeEnd":   "2024-01-31T20:30:00",
	})
	c.Params = gin.Params{{Key: "id", Value: "999"}}
	api.UpdateSchedule(c)
	if w.Code != http.StatusNotFound {
		t.Fatalf("expected status 404, got %d", w.Code)
	}

	c, w = jsonContext(http.MethodDelete, "/api/schedules/"+target, nil)
	c.Params = gin.Params{{Key: "id", Value: target}}
	api.DeleteSchedule(c)
	if w.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", w.Code)
	}

	c, w = jsonContext(http.MethodDelete, "/api/schedules/"+target, nil)
	c.Params = gin.Params{{Key: "id", Value: target}}
	api.DeleteSchedule(c)
	if w.Code != http.StatusNotFound {
		t.Fatalf("expected status 404 on second delete, got %d", w.Code)
	}
}

func TestGetPlanRendersMemo(t *testing.T) {
	api := setupTestAPI(t)
	createTestSchedule(t, api, map[string]any{
		"productName": "밀크씨슬",
		"intakeStart": "2024-01-01",
		"intakeTimes": []string{"morning", "evening"},
		"memo":        "**공복** 금지",
	})

	c, w := jsonContext(http.MethodGet, "/api/plans/1", nil)
	c.Params = gin.Params{{Key: "id", Value: "1"}}
	api.GetPlan(c)
	if w.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d: %s", w.Code, w.Body.String())
	}

	var body struct {
		IntakeEnd string         `json:"intakeEnd"`
		MemoHTML  string         `json:"memoHtml"`
		Schedules []scheduleItem `json:"schedules"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatalf("failed to decode plan: %v", err)
	}
	if body.IntakeEnd != "2024-01-31" {
		t.Fatalf("expected default 30 day plan, got end %s", body.IntakeEnd)
	}
	if !strings.Contains(body.MemoHTML, "<strong>공복</strong>") {
		t.Fatalf("expected rendered memo, got %q", body.MemoHTML)
	}
	if len(body.Schedules) != 2 || body.Schedules[0].ProductName != "밀크씨슬" {
		t.Fatalf("unexpected schedules: %+v", body.Schedules)
	}
}

func TestAuthRequired(t *testing.T) {
	api := setupTestAPI(t)
	if err := db.EnsureUser(api.DB(), "tester", "pa55word"); err != nil {
		t.Fatalf("failed to seed user: %v", err)
	}

	r := gin.New()
	r.Use(sessions.Sessions("test_session", cookie.NewStore([]byte("test-secret"))))
	r.POST("/login", api.Login)
	r.GET("/protected", api.AuthRequired(), func(c *gin.Context) {
		user, ok := CurrentUser(c)
		name := ""
		if ok {
			name = user.Username
		}
		c.JSON(http.StatusOK, gin.H{"user": name})
	})

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/protected", nil))
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 without credentials, got %d", w.Code)
	}

	raw, _ := json.Marshal(loginPayload{Username: "tester", Password: "pa55word"})
	w = httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/login", bytes.NewReader(raw))
	req.Header.Set("Content-Type", "application/json")
	r.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Fatalf("expected login to succeed, got %d: %s", w.Code, w.Body.String())
	}
	var login struct {
		Token string `json:"token"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &login); err != nil || login.Token == "" {
		t.Fatalf("expected token in login response: %s", w.Body.String())
	}
	sessionCookies := w.Result().Cookies()

	w = httptest.NewRecorder()
	req = httptest.NewRequest(http.MethodGet, "/protected", nil)
	req.Header.Set("Authorization", "Bearer "+login.Token)
	r.ServeHTTP(w, req)
	if w.Code != http.StatusOK || !strings.Contains(w.Body.String(), "tester") {
		t.Fatalf("expected bearer access, got %d: %s", w.Code, w.Body.String())
	}

	w = httptest.NewRecorder()
	req = httptest.NewRequest(http.MethodGet, "/protected", nil)
	for _, ck := range sessionCookies {
		req.AddCookie(ck)
	}
	r.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Fatalf("expected session access, got %d", w.Code)
	}

	w = httptest.NewRecorder()
	req = httptest.NewRequest(http.MethodGet, "/protected", nil)
	req.Header.Set("Authorization", "Bearer not-a-token")
	r.ServeHTTP(w, req)
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 for unknown token, got %d", w.Code)
	}
}

func TestHandlersRequireCurrentUser(t *testing.T) {
	api := setupTestAPI(t)

	c, w := jsonContext(http.MethodGet, "/api/schedules", nil)
	c.Keys = nil
	api.ListSchedules(c)
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("expected status 401 without a current user, got %d", w.Code)
	}
}

func TestForeignScheduleIsNotFound(t *testing.T) {
	api := setupTestAPI(t)
	ids := createTestSchedule(t, api, map[string]any{
		"productName": "비타민B",
		"intakeStart": "2024-05-06",
		"intakeTimes": []string{"morning"},
	})
	target := fmt.Sprint(ids[0])

	stranger := &db.User{Username: "stranger", Password: "hashed"}
	if err := api.DB().Create(stranger).Error; err != nil {
		t.Fatalf("failed to seed stranger: %v", err)
	}

	c, w := jsonContext(http.MethodGet, "/api/schedules", nil)
	c.Set(currentUserKey, stranger)
	api.ListSchedules(c)
	if w.Code != http.StatusOK || strings.TrimSpace(w.Body.String()) != "[]" {
		t.Fatalf("expected empty list for stranger, got %d: %s", w.Code, w.Body.String())
	}

	c, w = jsonContext(http.MethodDelete, "/api/schedules/"+target, nil)
	c.Set(currentUserKey, stranger)
	c.Params = gin.Params{{Key: "id", Value: target}}
	api.DeleteSchedule(c)
	if w.Code != http.StatusNotFound {
		t.Fatalf("expected status 404 for stranger delete, got %d", w.Code)
	}

	c, w = jsonContext(http.MethodGet, "/api/plans/1", nil)
	c.Set(currentUserKey, stranger)
	c.Params = gin.Params{{Key: "id", Value: "1"}}
	api.GetPlan(c)
	if w.Code != http.StatusNotFound {
		t.Fatalf("expected status 404 for stranger plan, got %d", w.Code)
	}

	var count int64
	api.DB().Model(&db.IntakeSchedule{}).Where("id = ?", ids[0]).Count(&count)
	if count != 1 {
		t.Fatalf("owner's schedule should survive, got %d rows", count)
	}
}

func TestLogoutReportsSessionSaveFailure(t *testing.T) {
	api := setupTestAPI(t)

	r := gin.New()
	r.Use(sessions.Sessions("test_session", unsavableStore{cookie.NewStore([]byte("test-secret"))}))
	r.POST("/logout", func(c *gin.Context) {
		sessions.Default(c).Set(sessionUserKey, uint(1))
		c.Next()
	}, api.Logout)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/logout", nil))
	if w.Code != http.StatusInternalServerError {
		t.Fatalf("expected status 500 when the session cannot be saved, got %d: %s", w.Code, w.Body.String())
	}
	if !strings.Contains(w.Body.String(), "로그아웃에 실패했습니다") {
		t.Fatalf("unexpected body: %s", w.Body.String())
	}
}
