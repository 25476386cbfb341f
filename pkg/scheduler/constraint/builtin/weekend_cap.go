// Package builtin 提供内置约束实现
package builtin

import (
	"fmt"
	"sort"

	"github.com/zhiban/zhiban/pkg/model"
	"github.com/zhiban/zhiban/pkg/scheduler/constraint"
)

// 滑动窗口跨度：三个连续周末
const weekendWindowDays = 21

// WeekendCapConstraint 任意 21 天窗口内周末类值班数不得超过上限
// 强制值班不豁免此约束：无法满足时由求解器登记为未决强制值班
type WeekendCapConstraint struct {
	*BaseConstraint
}

// NewWeekendCapConstraint 创建周末上限约束
func NewWeekendCapConstraint() *WeekendCapConstraint {
	return &WeekendCapConstraint{
		BaseConstraint: NewBaseConstraint(
			"周末上限",
			model.ViolationWeekendCap,
			constraint.CategoryHard,
			70,
		),
	}
}

// weekendDays 过滤出人员的周末类值班日（升序）
func weekendDays(ctx *constraint.Context, workerID string) []int {
	var out []int
	for _, d := range ctx.AssignedDays(workerID) {
		if ctx.Calendar.Day(d).WeekendLike {
			out = append(out, d)
		}
	}
	return out
}

// countInWindow 统计 days 中落在 [start, start+weekendWindowDays) 的数量
func countInWindow(days []int, start int) int {
	n := 0
	for _, d := range days {
		if d >= start && d < start+weekendWindowDays {
			n++
		}
	}
	return n
}

// Evaluate 评估整个值班表
func (c *WeekendCapConstraint) Evaluate(ctx *constraint.Context) (bool, int, []model.Violation) {
	var violations []model.Violation
	totalPenalty := 0
	max := ctx.Config.MaxConsecutiveWeekends

	for _, w := range ctx.Workers {
		days := weekendDays(ctx, w.ID)
		for i := range days {
			count := countInWindow(days, days[i])
			if count > max {
				// 在窗口内第 max+1 个周末类值班处报告
				over := days[i+max]
				totalPenalty += c.Weight()
				violations = append(violations, c.CreateViolation(
					w.ID, ctx.Calendar.DateOf(over), ctx.PostOf(over, w.ID),
					fmt.Sprintf("人员 %s 在 %s 起的三周内周末类值班达 %d 次，超过上限 %d",
						w.ID, ctx.Calendar.DateOf(days[i]), count, max),
				))
			}
		}
	}

	return len(violations) == 0, totalPenalty, violations
}

// EvaluateAssignment 检查单次分配
func (c *WeekendCapConstraint) EvaluateAssignment(ctx *constraint.Context, workerID string, day, post int) (bool, string) {
	if !ctx.Calendar.Day(day).WeekendLike {
		return true, ""
	}
	max := ctx.Config.MaxConsecutiveWeekends

	days := weekendDays(ctx, workerID)
	merged := make([]int, 0, len(days)+1)
	merged = append(merged, days...)
	merged = append(merged, day)
	sort.Ints(merged)

	for _, start := range merged {
		if day < start || day >= start+weekendWindowDays {
			continue
		}
		if countInWindow(merged, start) > max {
			return false, fmt.Sprintf("三周窗口内周末类值班将超过上限 %d", max)
		}
	}
	return true, ""
}
