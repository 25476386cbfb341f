// Package stats 提供值班表统计分析功能
package stats

import (
	"github.com/zhiban/zhiban/pkg/model"
	"github.com/zhiban/zhiban/pkg/scheduler/constraint"
)

// CoverageMetrics 覆盖率指标
type CoverageMetrics struct {
	TotalSlots      int                    `json:"total_slots"`      // 总槽位数
	FilledSlots     int                    `json:"filled_slots"`     // 已填充槽位数
	EmptySlots      int                    `json:"empty_slots"`      // 空槽位数
	CoverageRate    float64                `json:"coverage_rate"`    // 整体覆盖率 (%)
	WeekendCoverage float64                `json:"weekend_coverage"` // 周末类覆盖率 (%)
	DailyCoverage   map[string]DayCoverage `json:"daily_coverage"`   // 每日覆盖情况
	UncoveredSlots  []UncoveredSlot        `json:"uncovered_slots"`  // 未覆盖槽位
}

// DayCoverage 每日覆盖情况
type DayCoverage struct {
	Date        string  `json:"date"`
	Slots       int     `json:"slots"`
	Filled      int     `json:"filled"`
	Rate        float64 `json:"rate"`
	WeekendLike bool    `json:"weekend_like"`
}

// UncoveredSlot 未覆盖槽位
type UncoveredSlot struct {
	Date string `json:"date"`
	Post int    `json:"post"`
}

// CoverageAnalyzer 覆盖率分析器
type CoverageAnalyzer struct{}

// NewCoverageAnalyzer 创建覆盖率分析器
func NewCoverageAnalyzer() *CoverageAnalyzer {
	return &CoverageAnalyzer{}
}

// Analyze 分析值班表覆盖率
func (a *CoverageAnalyzer) Analyze(c *constraint.Context) *CoverageMetrics {
	metrics := &CoverageMetrics{
		TotalSlots:    c.Calendar.TotalSlots(),
		FilledSlots:   c.FilledCount(),
		DailyCoverage: make(map[string]DayCoverage, c.Calendar.Len()),
	}
	metrics.EmptySlots = metrics.TotalSlots - metrics.FilledSlots

	weekendTotal := 0
	weekendFilled := 0

	for day := 0; day < c.Calendar.Len(); day++ {
		info := c.Calendar.Day(day)
		filled := 0
		for post := 0; post < info.Slots; post++ {
			if c.WorkerAt(day, post) == model.EmptySlot {
				metrics.UncoveredSlots = append(metrics.UncoveredSlots, UncoveredSlot{
					Date: info.Date,
					Post: post,
				})
				continue
			}
			filled++
		}

		dc := DayCoverage{
			Date:        info.Date,
			Slots:       info.Slots,
			Filled:      filled,
			WeekendLike: info.WeekendLike,
		}
		if info.Slots > 0 {
			dc.Rate = float64(filled) / float64(info.Slots) * 100
		}
		metrics.DailyCoverage[info.Date] = dc

		if info.WeekendLike {
			weekendTotal += info.Slots
			weekendFilled += filled
		}
	}

	if metrics.TotalSlots > 0 {
		metrics.CoverageRate = float64(metrics.FilledSlots) / float64(metrics.TotalSlots) * 100
	}
	if weekendTotal > 0 {
		metrics.WeekendCoverage = float64(weekendFilled) / float64(weekendTotal) * 100
	}

	return metrics
}
