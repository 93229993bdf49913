package notify

import (
	"slices"
	"sync"
	"time"
)

type pending struct {
	timer *time.Timer
	at    time.Time
}

// Registry 保存按事件 ID 区分的待触发提醒，同一 ID 只保留最新一个
type Registry struct {
	mu      sync.Mutex
	pending map[string]*pending
	now     func() time.Time
}

// RegistryOption 调整 Registry
type RegistryOption func(*Registry)

// WithClock 替换计算触发时刻所用的时钟
func WithClock(now func() time.Time) RegistryOption {
	return func(r *Registry) { r.now = now }
}

// NewRegistry 构造空的提醒表
func NewRegistry(opts ...RegistryOption) *Registry {
	r := &Registry{pending: make(map[string]*pending), now: time.Now}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Schedule 在 delay 后执行 fn，替换 key 下尚未触发的提醒
func (r *Registry) Schedule(key string, delay time.Duration, fn func()) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if existing, ok := r.pending[key]; ok {
		existing.timer.Stop()
	}

	entry := &pending{at: r.now().Add(delay)}
	entry.timer = time.AfterFunc(delay, func() {
		r.mu.Lock()
		current, ok := r.pending[key]
		if !ok || current != entry {
			r.mu.Unlock()
			return
		}
		delete(r.pending, key)
		r.mu.Unlock()
		fn()
	})
	r.pending[key] = entry
}

// Cancel 取消 key 下的提醒，返回是否存在
func (r *Registry) Cancel(key string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	entry, ok := r.pending[key]
	if !ok {
		return false
	}
	entry.timer.Stop()
	delete(r.pending, key)
	return true
}

// Sweep 取消不在 keep 中的提醒，返回取消数量
func (r *Registry) Sweep(keep []string) int {
	r.mu.Lock()
	defer r.mu.Unlock()

	cancelled := 0
	for key, entry := range r.pending {
		if slices.Contains(keep, key) {
			continue
		}
		entry.timer.Stop()
		delete(r.pending, key)
		cancelled++
	}
	return cancelled
}

// Pending 返回尚未触发的提醒 ID，按字典序
func (r *Registry) Pending() []string {
	r.mu.Lock()
	defer r.mu.Unlock()

	keys := make([]string, 0, len(r.pending))
	for key := range r.pending {
		keys = append(keys, key)
	}
	slices.Sort(keys)
	return keys
}

// DueAt 返回提醒的预计触发时刻
func (r *Registry) DueAt(key string) (time.Time, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	entry, ok := r.pending[key]
	if !ok {
		return time.Time{}, false
	}
	return entry.at, true
}

// Stop 取消全部提醒
func (r *Registry) Stop() {
	r.mu.Lock()
	defer r.mu.Unlock()

	for key, entry := range r.pending {
		entry.timer.Stop()
		delete(r.pending, key)
	}
}
