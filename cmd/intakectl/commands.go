package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/intakeplan/internal/client"
	"github.com/intakeplan/internal/config"
	"github.com/intakeplan/internal/intake"
	"github.com/intakeplan/internal/logger"
	"github.com/intakeplan/internal/planner"
	"github.com/intakeplan/internal/scheduler"
	"github.com/spf13/cobra"
)

const appVersion = "0.3.0"

func newRootCmd(e *env) *cobra.Command {
	root := &cobra.Command{
		Use:           "intakectl",
		Short:         "Supplement intake planner",
		Version:       appVersion,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.SetVersionTemplate("intakectl v{{.Version}}\n")

	root.AddCommand(
		newLoginCmd(e),
		newLogoutCmd(e),
		newSearchCmd(e),
		newAddCmd(e),
		newListCmd(e),
		newTodayCmd(e),
		newWeekCmd(e),
		newMoveCmd(e),
		newDeleteCmd(e),
		newCheckCmd(e),
		newWatchCmd(e),
	)
	return root
}

func newLoginCmd(e *env) *cobra.Command {
	var username, password string
	cmd := &cobra.Command{
		Use:   "login",
		Short: "Log in to the backend and store the access token",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if e.cfg.Source == config.SourceFixture {
				fmt.Fprintln(cmd.OutOrStdout(), "fixture 데이터 소스는 로그인이 필요하지 않습니다.")
				return nil
			}
			if strings.TrimSpace(username) == "" || password == "" {
				return errors.New("--username and --password are required")
			}

			source := client.NewHTTPSource(e.cfg.APIBaseURL, nil)
			token, err := source.Login(cmd.Context(), username, password)
			if err != nil {
				return fmt.Errorf("login: %w", err)
			}
			if err := e.tokenFile().Save(token); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "로그인되었습니다.")
			return nil
		},
	}
	cmd.Flags().StringVarP(&username, "username", "u", "", "Account name")
	cmd.Flags().StringVarP(&password, "password", "p", "", "Account password")
	return cmd
}

func newLogoutCmd(e *env) *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Remove the stored access token",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := e.tokenFile().Clear(); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "로그아웃되었습니다.")
			return nil
		},
	}
}

func newSearchCmd(e *env) *cobra.Command {
	return &cobra.Command{
		Use:   "search TERM",
		Short: "Search the product catalog",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			p, err := e.planner()
			if err != nil {
				return err
			}
			defer p.Close()

			products, err := p.Search(cmd.Context(), strings.Join(args, " "))
			if err != nil {
				return err
			}
			return printProducts(cmd.OutOrStdout(), products)
		},
	}
}

func newAddCmd(e *env) *cobra.Command {
	var (
		productID uint
		start     string
		days      string
		custom    string
		end       string
		times     []string
		memo      string
	)
	cmd := &cobra.Command{
		Use:   "add PRODUCT",
		Short: "Register an intake plan",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			p, err := e.planner()
			if err != nil {
				return err
			}
			defer p.Close()

			form := p.NewForm()
			name := strings.Join(args, " ")
			if productID != 0 {
				form.SelectProduct(productID, name)
			} else {
				form.UseFreeText(name)
			}
			if start != "" {
				parsed, err := parseDate(start)
				if err != nil {
					return err
				}
				form.SetStart(parsed)
			}
			form.SetDuration(intake.DurationSelector{Value: days, Custom: custom})
			if end != "" {
				parsed, err := parseDate(end)
				if err != nil {
					return err
				}
				form.SetEndDate(parsed)
			}
			for _, raw := range times {
				tod, err := intake.ParseTimeOfDay(raw)
				if err != nil {
					return err
				}
				form.ToggleTime(tod)
			}
			form.SetMemo(memo)

			occurrences, err := p.Submit(cmd.Context(), form)
			if err != nil {
				return err
			}
			return printOccurrences(cmd.OutOrStdout(), occurrences)
		},
	}
	cmd.Flags().UintVar(&productID, "product-id", 0, "Catalog product id")
	cmd.Flags().StringVar(&start, "start", "", "Start date YYYY-MM-DD (default today)")
	cmd.Flags().StringVar(&days, "days", "", "Duration in days (30, 60, 90, 180, 365 or custom)")
	cmd.Flags().StringVar(&custom, "custom", "", "Custom duration in days when --days=custom")
	cmd.Flags().StringVar(&end, "end", "", "Explicit end date YYYY-MM-DD, overrides --days")
	cmd.Flags().StringSliceVarP(&times, "times", "t", nil, "Times of day: morning, midday, evening")
	cmd.Flags().StringVar(&memo, "memo", "", "Memo (markdown)")
	return cmd
}

func newListCmd(e *env) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List all scheduled occurrences",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			p, err := refreshed(cmd.Context(), e)
			if err != nil {
				return err
			}
			defer p.Close()
			return printOccurrences(cmd.OutOrStdout(), p.Events())
		},
	}
}

func newTodayCmd(e *env) *cobra.Command {
	return &cobra.Command{
		Use:   "today",
		Short: "Show today's plan grouped by time of day",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			p, err := refreshed(cmd.Context(), e)
			if err != nil {
				return err
			}
			defer p.Close()
			return printToday(cmd.OutOrStdout(), p.TodayColumns())
		},
	}
}

func newWeekCmd(e *env) *cobra.Command {
	return &cobra.Command{
		Use:   "week",
		Short: "Show this week's plan and intake status",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			p, err := refreshed(cmd.Context(), e)
			if err != nil {
				return err
			}
			defer p.Close()
			return printWeekly(cmd.OutOrStdout(), intake.WeekStart(e.now()), p.Weekly())
		},
	}
}

func newMoveCmd(e *env) *cobra.Command {
	var start, end string
	cmd := &cobra.Command{
		Use:   "move ID",
		Short: "Change the start and end of a schedule",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			from, err := parseMinute(start)
			if err != nil {
				return err
			}
			to, err := parseMinute(end)
			if err != nil {
				return err
			}

			p, err := refreshed(cmd.Context(), e)
			if err != nil {
				return err
			}
			defer p.Close()

			if err := p.Move(cmd.Context(), args[0], from, to); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "일정 %s 변경됨: %s ~ %s\n", args[0], from.Format(minuteLayout), to.Format(minuteLayout))
			return nil
		},
	}
	cmd.Flags().StringVar(&start, "start", "", "New start, \"YYYY-MM-DD HH:MM\" or RFC3339")
	cmd.Flags().StringVar(&end, "end", "", "New end, \"YYYY-MM-DD HH:MM\" or RFC3339")
	_ = cmd.MarkFlagRequired("start")
	_ = cmd.MarkFlagRequired("end")
	return cmd
}

func newDeleteCmd(e *env) *cobra.Command {
	return &cobra.Command{
		Use:   "delete ID",
		Short: "Delete a schedule",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			p, err := refreshed(cmd.Context(), e)
			if err != nil {
				return err
			}
			defer p.Close()

			if err := p.Delete(cmd.Context(), args[0]); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "일정 %s 삭제됨\n", args[0])
			return nil
		},
	}
}

func newCheckCmd(e *env) *cobra.Command {
	return &cobra.Command{
		Use:   "check ID",
		Short: "Record today's intake for a schedule",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			p, err := refreshed(cmd.Context(), e)
			if err != nil {
				return err
			}
			defer p.Close()

			if err := p.MarkTaken(cmd.Context(), args[0]); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "일정 %s 복용 완료\n", args[0])
			return nil
		},
	}
}

func newWatchCmd(e *env) *cobra.Command {
	var spec string
	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Keep reminders armed for today's plan until interrupted",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			p, err := e.planner()
			if err != nil {
				return err
			}
			defer p.Close()

			log := logger.WithComponent("watch")
			if err := p.Refresh(cmd.Context()); err != nil {
				log.WithError(err).Warn("initial refresh incomplete")
			}

			jobs := scheduler.New(logger.WithComponent("scheduler"))
			if err := jobs.Add(scheduler.Job{Name: "refresh", Spec: spec, Run: p.Refresh}); err != nil {
				return err
			}
			jobs.Start()
			defer jobs.Stop()

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			log.WithField("reminders", len(p.Reminders().Pending())).Info("watching today's plan")
			<-ctx.Done()
			return nil
		},
	}
	cmd.Flags().StringVar(&spec, "refresh", e.cfg.RefreshCron, "Cron expression for refetching schedules")
	return cmd
}

// refreshed 构造 planner 并拉取一次数据；只要有部分数据可用就继续
func refreshed(ctx context.Context, e *env) (*planner.Planner, error) {
	p, err := e.planner()
	if err != nil {
		return nil, err
	}
	if err := p.Refresh(ctx); err != nil {
		if errors.Is(err, client.ErrLoginRequired) || errors.Is(err, client.ErrUnauthorized) {
			p.Close()
			return nil, fmt.Errorf("%w: run intakectl login first", err)
		}
		logger.WithComponent("intakectl").WithError(err).Warn("refresh incomplete")
	}
	return p, nil
}

func parseDate(raw string) (time.Time, error) {
	parsed, err := time.ParseInLocation(dateLayout, strings.TrimSpace(raw), time.Local)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid date %q, expected YYYY-MM-DD", raw)
	}
	return parsed, nil
}

func parseMinute(raw string) (time.Time, error) {
	raw = strings.TrimSpace(raw)
	if parsed, err := time.Parse(time.RFC3339, raw); err == nil {
		return parsed.Local(), nil
	}
	parsed, err := time.ParseInLocation(minuteLayout, raw, time.Local)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid time %q, expected \"YYYY-MM-DD HH:MM\"", raw)
	}
	return parsed, nil
}
