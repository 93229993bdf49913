package intake

import (
	"slices"
	"strings"
	"time"

	"github.com/samber/mo"
)

// Form 保存登记表单的字段状态。
// 结束日期只要被用户显式填写就优先生效，开始日期或期限的变化不会覆盖它。
type Form struct {
	product  mo.Option[ProductRef]
	start    time.Time
	duration DurationSelector
	end      mo.Option[time.Time]
	times    []TimeOfDay
	memo     string
}

// NewForm 返回以 today 为开始日期的空表单。
func NewForm(today time.Time) *Form {
	f := &Form{}
	f.Reset(today)
	return f
}

// Reset 恢复默认值。
func (f *Form) Reset(today time.Time) {
	f.product = mo.None[ProductRef]()
	f.start = DateOf(today)
	f.duration = DurationSelector{}
	f.end = mo.None[time.Time]()
	f.times = nil
	f.memo = ""
}

// SelectProduct 选中目录中的产品。
func (f *Form) SelectProduct(id uint, name string) {
	f.product = mo.Some(ProductRef{ID: id, Name: strings.TrimSpace(name)})
}

// UseFreeText 使用未匹配目录的自由输入名称。
func (f *Form) UseFreeText(name string) {
	name = strings.TrimSpace(name)
	if name == "" {
		f.product = mo.None[ProductRef]()
		return
	}
	f.product = mo.Some(ProductRef{Name: name})
}

// Product 返回当前选中的产品。
func (f *Form) Product() (ProductRef, bool) {
	return f.product.Get()
}

func (f *Form) SetStart(start time.Time) {
	f.start = DateOf(start)
}

func (f *Form) Start() time.Time {
	return f.start
}

func (f *Form) SetDuration(selector DurationSelector) {
	f.duration = selector
}

func (f *Form) Duration() DurationSelector {
	return f.duration
}

// SetEndDate 记录用户显式选择的结束日期。
func (f *Form) SetEndDate(end time.Time) {
	f.end = mo.Some(DateOf(end))
}

// ClearEndDate 清除显式结束日期，恢复自动计算。
func (f *Form) ClearEndDate() {
	f.end = mo.None[time.Time]()
}

// EndDateExplicit 报告结束日期是否由用户显式填写。
func (f *Form) EndDateExplicit() bool {
	return f.end.IsPresent()
}

// EndDate 返回显式结束日期，否则按开始日期与期限计算。
func (f *Form) EndDate() (time.Time, error) {
	if end, ok := f.end.Get(); ok {
		return end, nil
	}
	return ComputeEndDate(f.start, f.duration)
}

// ToggleTime 勾选或取消一个服用时段。
func (f *Form) ToggleTime(tod TimeOfDay) {
	if idx := slices.Index(f.times, tod); idx >= 0 {
		f.times = slices.Delete(f.times, idx, idx+1)
		return
	}
	f.times = append(f.times, tod)
}

func (f *Form) Times() []TimeOfDay {
	return slices.Clone(f.times)
}

func (f *Form) SetMemo(memo string) {
	f.memo = memo
}

// Definition 校验表单并生成服用计划。
// 显式结束日期存在时忽略期限选择器，DurationDays 取开始到结束的天数。
func (f *Form) Definition() (Definition, error) {
	product, ok := f.product.Get()
	if !ok || product.Name == "" {
		return Definition{}, ErrProductRequired
	}
	if len(f.times) == 0 {
		return Definition{}, ErrTimesRequired
	}

	var (
		end  time.Time
		days int
	)
	if explicit, ok := f.end.Get(); ok {
		end = explicit
		days = DaysBetween(f.start, explicit)
	} else {
		resolved, err := f.duration.Days()
		if err != nil {
			return Definition{}, err
		}
		days = resolved
		end = f.start.AddDate(0, 0, resolved)
	}

	def := Definition{
		Product:      product,
		Start:        f.start,
		End:          end,
		DurationDays: days,
		Times:        NormalizeTimes(f.times),
		Memo:         strings.TrimSpace(f.memo),
	}
	if err := def.Validate(); err != nil {
		return Definition{}, err
	}
	return def, nil
}
