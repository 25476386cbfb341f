// Package stats 提供值班表统计分析功能
package stats

import (
	"time"

	"github.com/zhiban/zhiban/pkg/model"
	"github.com/zhiban/zhiban/pkg/scheduler/constraint"
)

// Collect 汇总一次生成的统计数据
// 人员级计数直接读上下文缓存，槽位分布需要扫一遍值班表
func Collect(c *constraint.Context, attemptsUsed, improvementLoops int, elapsed time.Duration) *model.Statistics {
	total := c.Calendar.TotalSlots()
	filled := c.FilledCount()

	out := &model.Statistics{
		TotalSlots:       total,
		FilledSlots:      filled,
		EmptySlots:       total - filled,
		Workers:          make(map[string]*model.WorkerStat, len(c.Workers)),
		AttemptsUsed:     attemptsUsed,
		ImprovementLoops: improvementLoops,
		ElapsedMS:        elapsed.Milliseconds(),
	}
	if total > 0 {
		out.CoverageRate = float64(filled) / float64(total) * 100
	}

	for _, w := range c.Workers {
		ws := &model.WorkerStat{
			WorkerID:      w.ID,
			Target:        c.Targets[w.ID],
			Assigned:      c.Count(w.ID),
			WeekendShifts: c.WeekendCount(w.ID),
			HolidayShifts: c.HolidayCount(w.ID),
			PostCounts:    make(map[int]int),
		}
		ws.Deviation = ws.Assigned - ws.Target
		if ws.Target > 0 {
			ws.DevPct = float64(ws.Deviation) / float64(ws.Target) * 100
		}
		out.Workers[w.ID] = ws
	}

	for day := range c.Schedule {
		for post, id := range c.Schedule[day] {
			if id == model.EmptySlot {
				continue
			}
			if ws := out.Workers[id]; ws != nil {
				ws.PostCounts[post]++
			}
		}
	}

	out.FairnessScore = NewFairnessAnalyzer().Analyze(c).OverallScore
	return out
}
