// Package calendar 构建排班周期的日历索引与日期分类
package calendar

import (
	"time"

	"github.com/zhiban/zhiban/pkg/errors"
	"github.com/zhiban/zhiban/pkg/model"
)

// DayInfo 周期内单日信息
type DayInfo struct {
	Index        int          `json:"index"`
	Date         string       `json:"date"` // YYYY-MM-DD
	Time         time.Time    `json:"-"`
	Weekday      time.Weekday `json:"weekday"`
	Slots        int          `json:"slots"`
	IsHoliday    bool         `json:"is_holiday"`
	IsPreHoliday bool         `json:"is_pre_holiday"`
	WeekendLike  bool         `json:"is_weekend_like"`
}

// Calendar 排班周期日历：按日索引，支持日期到下标的双向查找
type Calendar struct {
	Days  []DayInfo
	index map[string]int
}

// New 根据配置构建日历
// 周末类 = 周五/周六/周日 ∪ 节假日 ∪ 节假日前一日
func New(cfg *model.SchedulerConfig) (*Calendar, error) {
	start, err := model.ParseDate(cfg.StartDate)
	if err != nil {
		return nil, errors.InvalidDateRange(cfg.StartDate, cfg.EndDate).WithCause(err)
	}
	end, err := model.ParseDate(cfg.EndDate)
	if err != nil {
		return nil, errors.InvalidDateRange(cfg.StartDate, cfg.EndDate).WithCause(err)
	}
	if end.Before(start) {
		return nil, errors.InvalidDateRange(cfg.StartDate, cfg.EndDate).WithDetails("结束日期早于起始日期")
	}

	holidays := make(map[string]bool, len(cfg.Holidays))
	for _, h := range cfg.Holidays {
		holidays[h] = true
	}

	cal := &Calendar{
		Days:  make([]DayInfo, 0, int(end.Sub(start).Hours()/24)+1),
		index: make(map[string]int),
	}

	for t := start; !t.After(end); t = t.AddDate(0, 0, 1) {
		date := t.Format(model.DateLayout)
		next := t.AddDate(0, 0, 1).Format(model.DateLayout)
		wd := t.Weekday()

		day := DayInfo{
			Index:        len(cal.Days),
			Date:         date,
			Time:         t,
			Weekday:      wd,
			Slots:        cfg.SlotsOn(date),
			IsHoliday:    holidays[date],
			IsPreHoliday: holidays[next],
		}
		day.WeekendLike = day.IsHoliday || day.IsPreHoliday ||
			wd == time.Friday || wd == time.Saturday || wd == time.Sunday

		cal.index[date] = day.Index
		cal.Days = append(cal.Days, day)
	}

	return cal, nil
}

// Len 返回周期天数
func (c *Calendar) Len() int {
	return len(c.Days)
}

// IndexOf 返回日期对应的下标
func (c *Calendar) IndexOf(date string) (int, bool) {
	i, ok := c.index[date]
	return i, ok
}

// Day 返回下标对应的日信息
func (c *Calendar) Day(i int) *DayInfo {
	return &c.Days[i]
}

// DateOf 返回下标对应的日期字符串
func (c *Calendar) DateOf(i int) string {
	return c.Days[i].Date
}

// TotalSlots 返回周期内槽位总数
func (c *Calendar) TotalSlots() int {
	total := 0
	for i := range c.Days {
		total += c.Days[i].Slots
	}
	return total
}

// WeekendLikeSlots 返回周末类日期的槽位总数
func (c *Calendar) WeekendLikeSlots() int {
	total := 0
	for i := range c.Days {
		if c.Days[i].WeekendLike {
			total += c.Days[i].Slots
		}
	}
	return total
}

// LastPostSlots 返回末槽位总数（每日一个末槽位）
func (c *Calendar) LastPostSlots() int {
	total := 0
	for i := range c.Days {
		if c.Days[i].Slots > 0 {
			total++
		}
	}
	return total
}
