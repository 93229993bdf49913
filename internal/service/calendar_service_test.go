package service

import (
	"bytes"
	"strings"
	"testing"
	"time"

	ics "github.com/arran4/golang-ical"
)

func TestCalendarServiceExport(t *testing.T) {
	gdb := setupScheduleTestDB(t)
	schedules := NewScheduleService(gdb)
	owner := seedScheduleUser(t, gdb, "owner")
	other := seedScheduleUser(t, gdb, "other")

	ids, err := schedules.Create(owner, ScheduleInput{
		ProductName:  "오메가3",
		Start:        localDate(2024, 1, 1),
		DurationDays: 30,
		Times:        []string{"morning", "evening"},
		Memo:         "식후",
	})
	if err != nil {
		t.Fatalf("Create returned error: %v", err)
	}

	svc := NewCalendarService(gdb)
	svc.now = func() time.Time { return time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC) }

	raw, err := svc.Export(owner)
	if err != nil {
		t.Fatalf("Export returned error: %v", err)
	}

	cal, err := ics.ParseCalendar(bytes.NewReader(raw))
	if err != nil {
		t.Fatalf("exported calendar is not parseable: %v", err)
	}

	events := cal.Events()
	if len(events) != 2 {
		t.Fatalf("expected 2 events, got %d", len(events))
	}

	first := events[0]
	if first.Id() != ScheduleUID(ids[0]) {
		t.Fatalf("unexpected uid: %s", first.Id())
	}
	if summary := first.GetProperty(ics.ComponentPropertySummary); summary == nil || summary.Value != "오메가3 - morning" {
		t.Fatalf("unexpected summary: %+v", summary)
	}
	rule := first.GetProperty(ics.ComponentPropertyRrule)
	if rule == nil || !strings.Contains(rule.Value, "FREQ=DAILY") {
		t.Fatalf("expected daily recurrence rule, got %+v", rule)
	}

	if ScheduleUID(ids[0]) == ScheduleUID(ids[1]) {
		t.Fatal("expected distinct uids per schedule")
	}

	raw, err = svc.Export(other)
	if err != nil {
		t.Fatalf("Export returned error: %v", err)
	}
	cal, err = ics.ParseCalendar(bytes.NewReader(raw))
	if err != nil {
		t.Fatalf("exported calendar is not parseable: %v", err)
	}
	if len(cal.Events()) != 0 {
		t.Fatalf("expected no events for another user, got %d", len(cal.Events()))
	}
}

func TestRenderMemoSanitizes(t *testing.T) {
	html := RenderMemo("**식후** 30분 <script>alert(1)</script>")
	if !strings.Contains(html, "<strong>식후</strong>") {
		t.Fatalf("expected markdown to render, got %q", html)
	}
	if strings.Contains(html, "<script>") {
		t.Fatalf("expected script to be stripped, got %q", html)
	}
	if RenderMemo("   ") != "" {
		t.Fatal("expected blank memo to render empty")
	}
}
