package scheduler

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"
)

const defaultTimeout = time.Minute

// Job 是一个周期任务
type Job struct {
	Name    string
	Spec    string
	Timeout time.Duration
	Run     func(ctx context.Context) error
}

// Scheduler 包装 cron 引擎，任务失败只记录日志
type Scheduler struct {
	engine *cron.Cron
	log    *logrus.Entry

	mu      sync.Mutex
	entries map[string]cron.EntryID
	started bool
}

// New 构造使用本地时区的调度器
func New(log *logrus.Entry) *Scheduler {
	return &Scheduler{
		engine:  cron.New(cron.WithLocation(time.Local)),
		log:     log,
		entries: make(map[string]cron.EntryID),
	}
}

// Add 注册任务，spec 使用标准五段 cron 表达式或 @every 描述符
func (s *Scheduler) Add(job Job) error {
	if job.Run == nil {
		return fmt.Errorf("job %q has no run function", job.Name)
	}
	timeout := job.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.entries[job.Name]; exists {
		return fmt.Errorf("job %q already registered", job.Name)
	}

	id, err := s.engine.AddFunc(job.Spec, func() {
		s.execute(job.Name, timeout, job.Run)
	})
	if err != nil {
		return fmt.Errorf("add job %q: %w", job.Name, err)
	}
	s.entries[job.Name] = id
	s.log.WithFields(logrus.Fields{"job": job.Name, "spec": job.Spec}).Info("job registered")
	return nil
}

// Next 返回任务下一次触发时刻，调度器未启动时为零值
func (s *Scheduler) Next(name string) (time.Time, bool) {
	s.mu.Lock()
	id, ok := s.entries[name]
	s.mu.Unlock()
	if !ok {
		return time.Time{}, false
	}
	return s.engine.Entry(id).Next, true
}

// Start 启动调度
func (s *Scheduler) Start() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.started {
		return
	}
	s.started = true
	s.engine.Start()
	s.log.WithField("jobs", len(s.entries)).Info("scheduler started")
}

// Stop 停止调度并等待运行中的任务结束
func (s *Scheduler) Stop() {
	s.mu.Lock()
	started := s.started
	s.started = false
	s.mu.Unlock()
	if !started {
		return
	}

	ctx := s.engine.Stop()
	<-ctx.Done()
	s.log.Info("scheduler stopped")
}

func (s *Scheduler) execute(name string, timeout time.Duration, run func(ctx context.Context) error) {
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	started := time.Now()
	entry := s.log.WithField("job", name)
	if err := run(ctx); err != nil {
		entry.WithError(err).Error("job failed")
		return
	}
	entry.WithField("elapsed", time.Since(started).String()).Debug("job finished")
}
