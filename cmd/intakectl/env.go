package main

import (
	"time"

	"github.com/intakeplan/internal/client"
	"github.com/intakeplan/internal/config"
	"github.com/intakeplan/internal/logger"
	"github.com/intakeplan/internal/notify"
	"github.com/intakeplan/internal/planner"
)

// env 汇总命令共享的依赖
type env struct {
	cfg    config.AppConfig
	source func() (client.DataSource, error)
	now    func() time.Time
	extra  []notify.Notifier
}

func newEnv(cfg config.AppConfig) *env {
	return &env{
		cfg:    cfg,
		source: func() (client.DataSource, error) { return client.New(cfg) },
		now:    time.Now,
	}
}

func (e *env) tokenFile() client.FileToken {
	return client.FileToken{Path: e.cfg.TokenFile}
}

// notifier 日志始终启用，配置了 Telegram 时同时推送
func (e *env) notifier() notify.Notifier {
	log := logger.WithComponent("intakectl")
	multi := notify.Multi{notify.NewLogNotifier(log)}
	multi = append(multi, e.extra...)

	if e.cfg.TelegramToken != "" {
		telegram, err := notify.NewTelegramNotifier(e.cfg.TelegramToken, e.cfg.TelegramChatID)
		if err != nil {
			log.WithError(err).Warn("telegram notifier disabled")
		} else {
			multi = append(multi, telegram)
		}
	}
	return multi
}

func (e *env) planner() (*planner.Planner, error) {
	source, err := e.source()
	if err != nil {
		return nil, err
	}
	return planner.New(source, e.notifier(),
		planner.WithClock(e.now),
		planner.WithLogger(logger.WithComponent("planner")),
	), nil
}
