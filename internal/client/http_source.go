package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/intakeplan/internal/intake"
)

const (
	dateFormat       = "2006-01-02"
	defaultUserAgent = "intakeplan-client/1.0"
	maxResponseBytes = 1 << 20
)

type httpDoer interface {
	Do(req *http.Request) (*http.Response, error)
}

// APIError 是后端返回的非 401 错误
type APIError struct {
	Status  int
	Message string
}

func (e *APIError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("backend returned status %d", e.Status)
	}
	return fmt.Sprintf("backend returned status %d: %s", e.Status, e.Message)
}

// Is 让 404 可以用 errors.Is(err, ErrNotFound) 匹配
func (e *APIError) Is(target error) bool {
	return target == ErrNotFound && e.Status == http.StatusNotFound
}

// HTTPSource 通过 REST API 访问后端
type HTTPSource struct {
	baseURL     string
	http        httpDoer
	credentials CredentialProvider
}

// NewHTTPSource 构造 HTTPSource，baseURL 形如 http://host:8080/api
func NewHTTPSource(baseURL string, credentials CredentialProvider) *HTTPSource {
	return &HTTPSource{
		baseURL:     strings.TrimRight(strings.TrimSpace(baseURL), "/"),
		http:        &http.Client{Timeout: 15 * time.Second},
		credentials: credentials,
	}
}

// SetHTTPClient 替换底层 HTTP 客户端
func (s *HTTPSource) SetHTTPClient(client httpDoer) {
	if client == nil {
		s.http = &http.Client{Timeout: 15 * time.Second}
		return
	}
	s.http = client
}

type loginResponse struct {
	Token string `json:"token"`
}

// Login 用账号密码换取 Bearer 令牌
func (s *HTTPSource) Login(ctx context.Context, username, password string) (string, error) {
	var resp loginResponse
	payload := map[string]string{"username": username, "password": password}
	if err := s.send(ctx, http.MethodPost, "/auth/login", nil, payload, &resp, false); err != nil {
		return "", err
	}
	if strings.TrimSpace(resp.Token) == "" {
		return "", errors.New("login response carried no token")
	}
	return resp.Token, nil
}

type productResponse struct {
	Data []struct {
		PrdID       uint   `json:"prdId"`
		ProductName string `json:"productName"`
		CompanyName string `json:"companyName"`
	} `json:"data"`
}

// SearchProducts 检索产品目录
func (s *HTTPSource) SearchProducts(ctx context.Context, term string) ([]Product, error) {
	var resp productResponse
	query := url.Values{"keyword": []string{term}}
	if err := s.send(ctx, http.MethodGet, "/products/search", query, nil, &resp, true); err != nil {
		return nil, err
	}

	products := make([]Product, 0, len(resp.Data))
	for _, item := range resp.Data {
		products = append(products, Product{ID: item.PrdID, Name: item.ProductName, Company: item.CompanyName})
	}
	return products, nil
}

type createRequest struct {
	PrdID          uint     `json:"prdId,omitempty"`
	ProductName    string   `json:"productName"`
	IntakeStart    string   `json:"intakeStart"`
	IntakeDistance int      `json:"intakeDistance"`
	IntakeEnd      string   `json:"intakeEnd,omitempty"`
	IntakeTimes    []string `json:"intakeTimes"`
	Memo           string   `json:"memo"`
}

// CreateSchedule 提交服用计划，返回与 Times 位置对应的日程 ID
func (s *HTTPSource) CreateSchedule(ctx context.Context, schedule NewSchedule) ([]uint, error) {
	req := createRequest{
		PrdID:          schedule.ProductID,
		ProductName:    schedule.ProductName,
		IntakeStart:    schedule.Start.Format(dateFormat),
		IntakeDistance: schedule.DurationDays,
		Memo:           schedule.Memo,
	}
	if !schedule.End.IsZero() {
		req.IntakeEnd = schedule.End.Format(dateFormat)
	}
	for _, tod := range schedule.Times {
		req.IntakeTimes = append(req.IntakeTimes, string(tod))
	}

	var ids []uint
	if err := s.send(ctx, http.MethodPost, "/schedules", nil, req, &ids, true); err != nil {
		return nil, err
	}
	return ids, nil
}

type scheduleResponse struct {
	ScheduleID  uint      `json:"scheduleId"`
	ProductName string    `json:"productName"`
	IntakeTime  string    `json:"intakeTime"`
	IntakeStart time.Time `json:"intakeStart"`
	IntakeEnd   time.Time `json:"intakeEnd"`
}

// AllSchedules 返回全部日程
func (s *HTTPSource) AllSchedules(ctx context.Context) ([]Schedule, error) {
	var resp []scheduleResponse
	if err := s.send(ctx, http.MethodGet, "/schedules", nil, nil, &resp, true); err != nil {
		return nil, err
	}

	schedules := make([]Schedule, 0, len(resp))
	for _, item := range resp {
		schedules = append(schedules, Schedule{
			ID:          item.ScheduleID,
			ProductName: item.ProductName,
			TimeOfDay:   intake.TimeOfDay(item.IntakeTime),
			Start:       item.IntakeStart.Local(),
			End:         item.IntakeEnd.Local(),
		})
	}
	return schedules, nil
}

type dailyResponse struct {
	ScheduleID  uint      `json:"scheduleId"`
	ProductName string    `json:"productName"`
	IntakeTime  string    `json:"intakeTime"`
	At          time.Time `json:"at"`
	Taken       bool      `json:"taken"`
}

// DailySchedules 返回某天的服用清单
func (s *HTTPSource) DailySchedules(ctx context.Context, day time.Time) ([]DailyItem, error) {
	var resp []dailyResponse
	query := url.Values{"date": []string{day.Format(dateFormat)}}
	if err := s.send(ctx, http.MethodGet, "/schedules/daily", query, nil, &resp, true); err != nil {
		return nil, err
	}

	items := make([]DailyItem, 0, len(resp))
	for _, item := range resp {
		items = append(items, DailyItem{
			ScheduleID:  item.ScheduleID,
			ProductName: item.ProductName,
			TimeOfDay:   intake.TimeOfDay(item.IntakeTime),
			At:          item.At.Local(),
			Taken:       item.Taken,
		})
	}
	return items, nil
}

type weekDayResponse struct {
	Items  []string `json:"items"`
	Status string   `json:"status"`
}

// WeeklySchedules 返回周计划，状态以后端为准
func (s *HTTPSource) WeeklySchedules(ctx context.Context, weekStart time.Time) (intake.WeeklyPlan, error) {
	var resp map[string]weekDayResponse
	query := url.Values{"start": []string{weekStart.Format(dateFormat)}}
	if err := s.send(ctx, http.MethodGet, "/schedules/weekly", query, nil, &resp, true); err != nil {
		return nil, err
	}

	plan := make(intake.WeeklyPlan, len(resp))
	for weekday, day := range resp {
		plan[weekday] = intake.WeekDay{Items: day.Items, Status: intake.ParseStatus(day.Status)}
	}
	return plan, nil
}

// UpdateSchedule 保存拖拽后的开始与结束时刻
func (s *HTTPSource) UpdateSchedule(ctx context.Context, id uint, start, end time.Time) error {
	payload := map[string]string{
		"intakeStart": start.Format(time.RFC3339),
		"intakeEnd":   end.Format(time.RFC3339),
	}
	return s.send(ctx, http.MethodPut, fmt.Sprintf("/schedules/%d", id), nil, payload, nil, true)
}

// DeleteSchedule 删除日程
func (s *HTTPSource) DeleteSchedule(ctx context.Context, id uint) error {
	return s.send(ctx, http.MethodDelete, fmt.Sprintf("/schedules/%d", id), nil, nil, nil, true)
}

// MarkTaken 记录某天已服用
func (s *HTTPSource) MarkTaken(ctx context.Context, id uint, day time.Time) error {
	payload := map[string]string{"date": day.Format(dateFormat)}
	return s.send(ctx, http.MethodPost, fmt.Sprintf("/schedules/%d/logs", id), nil, payload, nil, true)
}

func (s *HTTPSource) send(ctx context.Context, method, path string, query url.Values, payload, out any, authenticated bool) error {
	var token string
	if authenticated {
		if s.credentials != nil {
			raw, err := s.credentials.Token()
			if err != nil {
				return err
			}
			token = raw
		}
		if token == "" {
			return ErrLoginRequired
		}
	}

	var body io.Reader
	if payload != nil {
		raw, err := json.Marshal(payload)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		body = bytes.NewReader(raw)
	}

	endpoint := s.baseURL + path
	if len(query) > 0 {
		endpoint += "?" + query.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, method, endpoint, body)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", defaultUserAgent)
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	client := s.http
	if client == nil {
		client = http.DefaultClient
	}

	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode == http.StatusUnauthorized && authenticated {
		return ErrUnauthorized
	}
	if resp.StatusCode >= http.StatusBadRequest {
		var apiErr struct {
			Error string `json:"error"`
		}
		_ = json.Unmarshal(respBody, &apiErr)
		message := strings.TrimSpace(apiErr.Error)
		if message == "" {
			message = strings.TrimSpace(string(respBody))
		}
		return &APIError{Status: resp.StatusCode, Message: message}
	}

	if out == nil || len(respBody) == 0 {
		return nil
	}
	if err := json.Unmarshal(respBody, out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}
