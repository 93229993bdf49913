package notify

import (
	"context"
	"errors"
	"fmt"

	"github.com/sirupsen/logrus"
)

// Kind 区分提醒与操作提示
type Kind string

const (
	KindReminder Kind = "reminder"
	KindAlert    Kind = "alert"
)

// Notice 是一条待展示的通知
type Notice struct {
	Kind  Kind
	Title string
	Text  string
}

// Notifier 是通知出口
type Notifier interface {
	Notify(ctx context.Context, notice Notice) error
}

// Reminder 构造服用提醒
func Reminder(supplement string) Notice {
	return Notice{
		Kind:  KindReminder,
		Title: fmt.Sprintf("%s 복용 시간입니다!", supplement),
		Text:  fmt.Sprintf("지금 %s을(를) 복용하세요.", supplement),
	}
}

// Alert 构造操作结果或失败提示
func Alert(title, text string) Notice {
	return Notice{Kind: KindAlert, Title: title, Text: text}
}

// LogNotifier 把通知写入日志
type LogNotifier struct {
	log *logrus.Entry
}

// NewLogNotifier 构造 LogNotifier
func NewLogNotifier(entry *logrus.Entry) *LogNotifier {
	return &LogNotifier{log: entry}
}

// Notify 记录通知，提醒为 Info，提示为 Warn
func (n *LogNotifier) Notify(_ context.Context, notice Notice) error {
	entry := n.log.WithFields(logrus.Fields{
		"kind":  notice.Kind,
		"title": notice.Title,
	})
	if notice.Kind == KindAlert {
		entry.Warn(notice.Text)
		return nil
	}
	entry.Info(notice.Text)
	return nil
}

// Multi 把通知依次投递给多个出口，汇总全部错误
type Multi []Notifier

// Notify 投递到每个出口
func (m Multi) Notify(ctx context.Context, notice Notice) error {
	var errs []error
	for _, n := range m {
		if n == nil {
			continue
		}
		if err := n.Notify(ctx, notice); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
