// Package builtin 提供内置约束实现
package builtin

import (
	"fmt"

	"github.com/zhiban/zhiban/pkg/model"
	"github.com/zhiban/zhiban/pkg/scheduler/constraint"
)

// WeeklyPatternConstraint 禁止相距恰好 7 或 14 天的同星期值班对
// 豁免规则与最小间隔约束一致：安置强制值班本身免检，
// 普通值班与已有强制值班构成的模式照常禁止
type WeeklyPatternConstraint struct {
	*BaseConstraint
}

// NewWeeklyPatternConstraint 创建周期模式约束
func NewWeeklyPatternConstraint() *WeeklyPatternConstraint {
	return &WeeklyPatternConstraint{
		BaseConstraint: NewBaseConstraint(
			"周期模式",
			model.ViolationWeeklyPattern,
			constraint.CategoryHard,
			75,
		),
	}
}

// forbiddenPatternDiff 相距 7 或 14 天的日期必然同星期
func forbiddenPatternDiff(diff int) bool {
	return diff == 7 || diff == 14
}

// Evaluate 评估整个值班表
func (c *WeeklyPatternConstraint) Evaluate(ctx *constraint.Context) (bool, int, []model.Violation) {
	var violations []model.Violation
	totalPenalty := 0

	for _, w := range ctx.Workers {
		days := ctx.AssignedDays(w.ID)
		for i := 0; i < len(days); i++ {
			for j := i + 1; j < len(days) && days[j]-days[i] <= 14; j++ {
				if !forbiddenPatternDiff(days[j] - days[i]) {
					continue
				}
				if ctx.IsMandatory(w.ID, days[i]) && ctx.IsMandatory(w.ID, days[j]) {
					continue
				}
				totalPenalty += c.Weight()
				violations = append(violations, c.CreateViolation(
					w.ID, ctx.Calendar.DateOf(days[j]), ctx.PostOf(days[j], w.ID),
					fmt.Sprintf("人员 %s 在 %s 与 %s 构成 %d 天同星期模式",
						w.ID, ctx.Calendar.DateOf(days[i]), ctx.Calendar.DateOf(days[j]), days[j]-days[i]),
				))
			}
		}
	}

	return len(violations) == 0, totalPenalty, violations
}

// EvaluateAssignment 检查单次分配
func (c *WeeklyPatternConstraint) EvaluateAssignment(ctx *constraint.Context, workerID string, day, post int) (bool, string) {
	if ctx.IsMandatory(workerID, day) {
		return true, ""
	}

	for _, d := range ctx.AssignedDays(workerID) {
		if d == day {
			continue
		}
		diff := day - d
		if diff < 0 {
			diff = -diff
		}
		if forbiddenPatternDiff(diff) {
			return false, fmt.Sprintf("与 %s 构成 %d 天同星期模式", ctx.Calendar.DateOf(d), diff)
		}
	}
	return true, ""
}
