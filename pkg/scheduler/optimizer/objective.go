// Package optimizer 提供值班表的宽松迭代改进器
package optimizer

import (
	"math"

	"github.com/zhiban/zhiban/pkg/scheduler/constraint"
)

// 目标函数权重：空槽项占绝对主导，填充永远优先于均衡
const (
	weightEmpty        = 1000
	weightDeviation    = 10
	weightLastPost     = 5
	weightWeekendShare = 5
)

// Objective 计算目标函数
// J = 空槽数 + 目标偏差和 + 末槽位不均 + 周末类不均 的加权和，
// 全部从上下文的计数缓存读取，复杂度与人员数成正比
func Objective(c *constraint.Context) float64 {
	cal := c.Calendar
	empty := cal.TotalSlots() - c.FilledCount()

	sumDev := 0
	totalTarget := 0
	for _, w := range c.Workers {
		dev := c.Count(w.ID) - c.Targets[w.ID]
		if dev < 0 {
			dev = -dev
		}
		sumDev += dev
		totalTarget += c.Targets[w.ID]
	}

	lastImb := 0.0
	wkndImb := 0.0
	if totalTarget > 0 {
		lastSlots := float64(cal.LastPostSlots())
		wkndSlots := float64(cal.WeekendLikeSlots())
		for _, w := range c.Workers {
			share := float64(c.Targets[w.ID]) / float64(totalTarget)
			lastImb += math.Abs(float64(c.LastPostCount(w.ID)) - lastSlots*share)
			wkndImb += math.Abs(float64(c.WeekendCount(w.ID)) - wkndSlots*share)
		}
	}

	return weightEmpty*float64(empty) +
		weightDeviation*float64(sumDev) +
		weightLastPost*lastImb +
		weightWeekendShare*wkndImb
}
