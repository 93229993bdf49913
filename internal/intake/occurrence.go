package intake

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

const (
	temporaryIDPrefix   = "tmp-"
	fallbackProductName = "영양제"
)

// Occurrence 是日历上展示的一次具体服用事件。
type Occurrence struct {
	ID        string
	Temporary bool
	Title     string
	Product   string
	TimeOfDay TimeOfDay
	Start     time.Time
	End       time.Time
	AllDay    bool
}

// ServerID 把后端分配的 ID 渲染为事件标识。
func ServerID(id uint) string {
	return strconv.FormatUint(uint64(id), 10)
}

// TemporaryID 在后端尚未返回 ID 时生成本地唯一的临时标识。
func TemporaryID(now time.Time, index int) string {
	return fmt.Sprintf("%s%d", temporaryIDPrefix, now.UnixMilli()+int64(index))
}

// ParseServerID 解析由 ServerID 生成的标识；临时标识返回 false。
func ParseServerID(id string) (uint, bool) {
	if strings.HasPrefix(id, temporaryIDPrefix) {
		return 0, false
	}
	parsed, err := strconv.ParseUint(id, 10, 32)
	if err != nil || parsed == 0 {
		return 0, false
	}
	return uint(parsed), true
}

// Title 生成 "{产品名} - {时段}" 形式的标题。
func Title(product string, tod TimeOfDay) string {
	name := strings.TrimSpace(product)
	if name == "" {
		name = fallbackProductName
	}
	return fmt.Sprintf("%s - %s", name, tod)
}

// Expand 为每个服用时段在开始日期生成一个事件。
// ids[i] 按位置对应 def.Times[i]；缺失或为 0 时使用临时标识。
// 开始到结束之间的其余日期不在此展开，由后端的列表接口负责。
func Expand(def Definition, ids []uint, now time.Time) ([]Occurrence, error) {
	if len(def.Times) == 0 {
		return nil, ErrTimesRequired
	}

	times := NormalizeTimes(def.Times)
	occurrences := make([]Occurrence, 0, len(times))
	for i, tod := range times {
		start, err := tod.At(def.Start)
		if err != nil {
			return nil, err
		}

		occ := Occurrence{
			Title:     Title(def.Product.Name, tod),
			Product:   def.Product.Name,
			TimeOfDay: tod,
			Start:     start,
			End:       start.Add(OccurrenceLength),
		}
		if i < len(ids) && ids[i] != 0 {
			occ.ID = ServerID(ids[i])
		} else {
			occ.ID = TemporaryID(now, i)
			occ.Temporary = true
		}
		occurrences = append(occurrences, occ)
	}

	return occurrences, nil
}

// FromSchedule 根据后端返回的日程记录构造事件。
// end 非零时原样使用（即使远在未来），否则为 start + 30 分钟。
func FromSchedule(id uint, product string, tod TimeOfDay, start, end time.Time) Occurrence {
	occ := Occurrence{
		ID:        ServerID(id),
		Title:     Title(product, tod),
		Product:   product,
		TimeOfDay: tod,
		Start:     start,
		End:       end,
	}
	if end.IsZero() {
		occ.End = start.Add(OccurrenceLength)
	}
	return occ
}
