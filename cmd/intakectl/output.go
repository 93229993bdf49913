package main

import (
	"fmt"
	"io"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/intakeplan/internal/client"
	"github.com/intakeplan/internal/intake"
)

const (
	dateLayout   = "2006-01-02"
	minuteLayout = "2006-01-02 15:04"
)

var weekdays = []time.Weekday{
	time.Monday, time.Tuesday, time.Wednesday, time.Thursday, time.Friday, time.Saturday, time.Sunday,
}

func table(out io.Writer, header ...string) *tabwriter.Writer {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, strings.Join(header, "\t"))
	return w
}

func printProducts(out io.Writer, products []client.Product) error {
	if len(products) == 0 {
		fmt.Fprintln(out, "검색 결과가 없습니다.")
		return nil
	}
	w := table(out, "ID", "PRODUCT", "COMPANY")
	for _, p := range products {
		fmt.Fprintf(w, "%d\t%s\t%s\n", p.ID, p.Name, p.Company)
	}
	return w.Flush()
}

func printOccurrences(out io.Writer, occurrences []intake.Occurrence) error {
	if len(occurrences) == 0 {
		fmt.Fprintln(out, "등록된 일정이 없습니다.")
		return nil
	}
	w := table(out, "ID", "TITLE", "START", "END")
	for _, occ := range occurrences {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", occ.ID, occ.Title, occ.Start.Format(minuteLayout), occ.End.Format(minuteLayout))
	}
	return w.Flush()
}

func printToday(out io.Writer, columns []intake.TodayColumn) error {
	w := table(out, "TIME", "SUPPLEMENT", "ID")
	for _, column := range columns {
		if len(column.Items) == 0 {
			fmt.Fprintf(w, "%s\t-\t\n", column.TimeOfDay)
			continue
		}
		for _, item := range column.Items {
			fmt.Fprintf(w, "%s\t%s\t%s\n", column.TimeOfDay, item.Supplement, item.ID)
		}
	}
	return w.Flush()
}

func printWeekly(out io.Writer, weekStart time.Time, plan intake.WeeklyPlan) error {
	w := table(out, "DAY", "DATE", "ITEMS", "STATUS")
	for i, weekday := range weekdays {
		day, ok := plan[weekday.String()]
		date := weekStart.AddDate(0, 0, i).Format(dateLayout)
		if !ok {
			fmt.Fprintf(w, "%s\t%s\t-\t\n", weekday, date)
			continue
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", weekday, date, strings.Join(day.Items, ", "), day.Status)
	}
	return w.Flush()
}
