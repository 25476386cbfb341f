// Package builtin 提供内置约束实现
package builtin

import (
	"fmt"

	"github.com/zhiban/zhiban/pkg/model"
	"github.com/zhiban/zhiban/pkg/scheduler/constraint"
)

// GapConstraint 两次值班的最小间隔约束
// 强制值班不可动摇，安置强制值班本身免检；普通值班即使紧邻
// 已有的强制值班也必须保持间隔，仅两端都是强制值班的日期对豁免
type GapConstraint struct {
	*BaseConstraint
}

// NewGapConstraint 创建最小间隔约束
func NewGapConstraint() *GapConstraint {
	return &GapConstraint{
		BaseConstraint: NewBaseConstraint(
			"最小间隔",
			model.ViolationGap,
			constraint.CategoryHard,
			80,
		),
	}
}

// Evaluate 评估整个值班表
func (c *GapConstraint) Evaluate(ctx *constraint.Context) (bool, int, []model.Violation) {
	var violations []model.Violation
	totalPenalty := 0
	minDiff := ctx.Config.GapBetweenShifts + 1

	for _, w := range ctx.Workers {
		days := ctx.AssignedDays(w.ID)
		for i := 0; i < len(days); i++ {
			for j := i + 1; j < len(days) && days[j]-days[i] < minDiff; j++ {
				if ctx.IsMandatory(w.ID, days[i]) && ctx.IsMandatory(w.ID, days[j]) {
					continue
				}
				totalPenalty += c.Weight()
				violations = append(violations, c.CreateViolation(
					w.ID, ctx.Calendar.DateOf(days[j]), ctx.PostOf(days[j], w.ID),
					fmt.Sprintf("人员 %s 在 %s 与 %s 的间隔不足 %d 天",
						w.ID, ctx.Calendar.DateOf(days[i]), ctx.Calendar.DateOf(days[j]), minDiff),
				))
			}
		}
	}

	return len(violations) == 0, totalPenalty, violations
}

// EvaluateAssignment 检查单次分配
func (c *GapConstraint) EvaluateAssignment(ctx *constraint.Context, workerID string, day, post int) (bool, string) {
	// 安置的是强制值班本身时豁免；已有值班是强制值班不构成豁免理由
	if ctx.IsMandatory(workerID, day) {
		return true, ""
	}
	minDiff := ctx.Config.GapBetweenShifts + 1

	for _, d := range ctx.AssignedDays(workerID) {
		if d == day {
			continue
		}
		diff := day - d
		if diff < 0 {
			diff = -diff
		}
		if diff < minDiff {
			return false, fmt.Sprintf("与 %s 的间隔不足 %d 天", ctx.Calendar.DateOf(d), minDiff)
		}
	}
	return true, ""
}
