package intake

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

var (
	// ErrProductRequired 在未选择或填写营养剂时返回
	ErrProductRequired = errors.New("product selection is required")
	// ErrTimesRequired 在未勾选任何服用时段时返回
	ErrTimesRequired = errors.New("at least one time of day is required")
	// ErrEndBeforeStart 在结束日期早于开始日期时返回
	ErrEndBeforeStart = errors.New("intake end date is before start date")
	// ErrStartRequired 在缺少开始日期时返回
	ErrStartRequired = errors.New("intake start date is required")
)

// ProductRef 引用目录中的产品；ID 为 0 表示未匹配目录、直接输入的名称。
type ProductRef struct {
	ID   uint
	Name string
}

// Catalogued 报告是否引用了目录中的产品。
func (p ProductRef) Catalogued() bool {
	return p.ID != 0
}

// Definition 是用户提交的服用计划。
type Definition struct {
	Product      ProductRef
	Start        time.Time
	End          time.Time
	DurationDays int
	Times        []TimeOfDay
	Memo         string
}

// Validate 检查计划的不变量，均在任何网络调用前执行。
func (d Definition) Validate() error {
	if strings.TrimSpace(d.Product.Name) == "" {
		return ErrProductRequired
	}
	if d.Start.IsZero() {
		return ErrStartRequired
	}
	if len(d.Times) == 0 {
		return ErrTimesRequired
	}
	for _, tod := range d.Times {
		if !tod.Valid() {
			return fmt.Errorf("%w: %q", ErrUnknownTimeOfDay, string(tod))
		}
	}
	if DateOf(d.End).Before(DateOf(d.Start)) {
		return ErrEndBeforeStart
	}
	if d.DurationDays < 0 {
		return ErrInvalidDuration
	}
	return nil
}

// NormalizeTimes 去重并保留首次出现的顺序。
func NormalizeTimes(times []TimeOfDay) []TimeOfDay {
	seen := make(map[TimeOfDay]struct{}, len(times))
	out := make([]TimeOfDay, 0, len(times))
	for _, tod := range times {
		if _, ok := seen[tod]; ok {
			continue
		}
		seen[tod] = struct{}{}
		out = append(out, tod)
	}
	return out
}
