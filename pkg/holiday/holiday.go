// Package holiday 提供命名的节假日预设日历，按年份或周期展开为
// 日期集合，供 SchedulerConfig.Holidays 使用。
package holiday

import (
	"fmt"
	"sort"
	"time"

	"github.com/zhiban/zhiban/pkg/model"
)

// Rule 单条节假日规则，三种形态：
//   - 固定日期：Month + Day
//   - 月内第N个星期X：Month + Weekday + Nth（Nth 为负时从月末倒数）
//   - 复活节偏移：EasterOffset（天数，可为负）
type Rule struct {
	Name         string        `json:"name"`
	Month        time.Month    `json:"month,omitempty"`
	Day          int           `json:"day,omitempty"`
	Weekday      *time.Weekday `json:"weekday,omitempty"`
	Nth          int           `json:"nth,omitempty"`
	EasterOffset *int          `json:"easter_offset,omitempty"`
}

// dateIn 计算规则在给定年份的日期
func (r Rule) dateIn(year int) (time.Time, bool) {
	switch {
	case r.EasterOffset != nil:
		return Easter(year).AddDate(0, 0, *r.EasterOffset), true
	case r.Weekday != nil && r.Nth != 0:
		return nthWeekday(year, r.Month, *r.Weekday, r.Nth)
	case r.Month != 0 && r.Day != 0:
		return time.Date(year, r.Month, r.Day, 0, 0, 0, 0, time.UTC), true
	}
	return time.Time{}, false
}

// Calendar 命名节假日日历。Rules 按年展开，Weekdays 标记每周
// 固定休息日（如周末日历）。
type Calendar struct {
	Name     string         `json:"name"`
	Note     string         `json:"note,omitempty"`
	Rules    []Rule         `json:"rules,omitempty"`
	Weekdays []time.Weekday `json:"weekdays,omitempty"`
}

// Expand 展开日历在某年的全部节假日，升序且去重。
func (c *Calendar) Expand(year int) []string {
	start := fmt.Sprintf("%04d-01-01", year)
	end := fmt.Sprintf("%04d-12-31", year)
	dates, _ := c.ExpandRange(start, end)
	return dates
}

// ExpandRange 展开日历在给定周期（含两端）内的节假日。
func (c *Calendar) ExpandRange(startDate, endDate string) ([]string, error) {
	start, err := model.ParseDate(startDate)
	if err != nil {
		return nil, fmt.Errorf("起始日期无效: %w", err)
	}
	end, err := model.ParseDate(endDate)
	if err != nil {
		return nil, fmt.Errorf("结束日期无效: %w", err)
	}
	if end.Before(start) {
		return nil, fmt.Errorf("结束日期早于起始日期")
	}

	seen := make(map[string]struct{})

	for year := start.Year(); year <= end.Year(); year++ {
		for _, rule := range c.Rules {
			d, ok := rule.dateIn(year)
			if !ok {
				continue
			}
			iso := d.Format(model.DateLayout)
			if iso >= startDate && iso <= endDate {
				seen[iso] = struct{}{}
			}
		}
	}

	if len(c.Weekdays) > 0 {
		for cur := start; !cur.After(end); cur = cur.AddDate(0, 0, 1) {
			for _, wd := range c.Weekdays {
				if cur.Weekday() == wd {
					seen[cur.Format(model.DateLayout)] = struct{}{}
					break
				}
			}
		}
	}

	dates := make([]string, 0, len(seen))
	for d := range seen {
		dates = append(dates, d)
	}
	sort.Strings(dates)
	return dates, nil
}

// ApplyTo 将日历在配置周期内的节假日合并进 cfg.Holidays。
func (c *Calendar) ApplyTo(cfg *model.SchedulerConfig) error {
	dates, err := c.ExpandRange(cfg.StartDate, cfg.EndDate)
	if err != nil {
		return err
	}
	cfg.Holidays = Merge(cfg.Holidays, dates)
	return nil
}

// Merge 合并多个日期集合，升序且去重。
func Merge(sets ...[]string) []string {
	seen := make(map[string]struct{})
	for _, set := range sets {
		for _, d := range set {
			seen[d] = struct{}{}
		}
	}
	out := make([]string, 0, len(seen))
	for d := range seen {
		out = append(out, d)
	}
	sort.Strings(out)
	return out
}

// Easter 计算某年的复活节（公历，Meeus/Jones/Butcher 算法）。
func Easter(year int) time.Time {
	a := year % 19
	b := year / 100
	c := year % 100
	d := b / 4
	e := b % 4
	f := (b + 8) / 25
	g := (b - f + 1) / 3
	h := (19*a + b - d - g + 15) % 30
	i := c / 4
	k := c % 4
	l := (32 + 2*e + 2*i - h - k) % 7
	m := (a + 11*h + 22*l) / 451
	month := (h + l - 7*m + 114) / 31
	day := (h+l-7*m+114)%31 + 1
	return time.Date(year, time.Month(month), day, 0, 0, 0, 0, time.UTC)
}

// nthWeekday 计算某月第N个星期X；N为负时从月末倒数。
func nthWeekday(year int, month time.Month, wd time.Weekday, nth int) (time.Time, bool) {
	if nth > 0 {
		first := time.Date(year, month, 1, 0, 0, 0, 0, time.UTC)
		offset := (int(wd) - int(first.Weekday()) + 7) % 7
		d := first.AddDate(0, 0, offset+(nth-1)*7)
		if d.Month() != month {
			return time.Time{}, false
		}
		return d, true
	}
	last := time.Date(year, month+1, 1, 0, 0, 0, 0, time.UTC).AddDate(0, 0, -1)
	offset := (int(last.Weekday()) - int(wd) + 7) % 7
	d := last.AddDate(0, 0, -offset-(-nth-1)*7)
	if d.Month() != month {
		return time.Time{}, false
	}
	return d, true
}

func weekdayPtr(wd time.Weekday) *time.Weekday { return &wd }
func intPtr(n int) *int                        { return &n }

// presets 内置预设日历。农历节日逐年变动，需由调用方以固定日期补充。
var presets = map[string]*Calendar{
	"cn": {
		Name: "cn",
		Note: "中国法定节假日（固定公历部分）",
		Rules: []Rule{
			{Name: "元旦", Month: time.January, Day: 1},
			{Name: "劳动节", Month: time.May, Day: 1},
			{Name: "国庆节", Month: time.October, Day: 1},
			{Name: "国庆节次日", Month: time.October, Day: 2},
			{Name: "国庆节第三日", Month: time.October, Day: 3},
		},
	},
	"es": {
		Name: "es",
		Note: "西班牙全国性节假日",
		Rules: []Rule{
			{Name: "Año Nuevo", Month: time.January, Day: 1},
			{Name: "Epifanía del Señor", Month: time.January, Day: 6},
			{Name: "Viernes Santo", EasterOffset: intPtr(-2)},
			{Name: "Fiesta del Trabajo", Month: time.May, Day: 1},
			{Name: "Asunción de la Virgen", Month: time.August, Day: 15},
			{Name: "Fiesta Nacional", Month: time.October, Day: 12},
			{Name: "Todos los Santos", Month: time.November, Day: 1},
			{Name: "Día de la Constitución", Month: time.December, Day: 6},
			{Name: "Inmaculada Concepción", Month: time.December, Day: 8},
			{Name: "Navidad", Month: time.December, Day: 25},
		},
	},
	"us": {
		Name: "us",
		Note: "美国联邦节假日",
		Rules: []Rule{
			{Name: "New Year's Day", Month: time.January, Day: 1},
			{Name: "Martin Luther King Jr. Day", Month: time.January, Weekday: weekdayPtr(time.Monday), Nth: 3},
			{Name: "Memorial Day", Month: time.May, Weekday: weekdayPtr(time.Monday), Nth: -1},
			{Name: "Independence Day", Month: time.July, Day: 4},
			{Name: "Labor Day", Month: time.September, Weekday: weekdayPtr(time.Monday), Nth: 1},
			{Name: "Thanksgiving", Month: time.November, Weekday: weekdayPtr(time.Thursday), Nth: 4},
			{Name: "Christmas", Month: time.December, Day: 25},
		},
	},
	"weekends": {
		Name:     "weekends",
		Note:     "全部周六与周日",
		Weekdays: []time.Weekday{time.Saturday, time.Sunday},
	},
}

// Get 按名称查找预设日历。
func Get(name string) (*Calendar, bool) {
	c, ok := presets[name]
	return c, ok
}

// Presets 返回全部预设名称，升序。
func Presets() []string {
	names := make([]string, 0, len(presets))
	for name := range presets {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
