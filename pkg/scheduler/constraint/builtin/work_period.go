// Package builtin 提供内置约束实现
package builtin

import (
	"fmt"

	"github.com/zhiban/zhiban/pkg/model"
	"github.com/zhiban/zhiban/pkg/scheduler/constraint"
)

// WorkPeriodConstraint 在岗时段之外不得排班
type WorkPeriodConstraint struct {
	*BaseConstraint
}

// NewWorkPeriodConstraint 创建在岗时段约束
func NewWorkPeriodConstraint() *WorkPeriodConstraint {
	return &WorkPeriodConstraint{
		BaseConstraint: NewBaseConstraint(
			"在岗时段",
			model.ViolationWorkPeriod,
			constraint.CategoryHard,
			90,
		),
	}
}

// Evaluate 评估整个值班表
func (c *WorkPeriodConstraint) Evaluate(ctx *constraint.Context) (bool, int, []model.Violation) {
	var violations []model.Violation
	totalPenalty := 0

	for day, row := range ctx.Schedule {
		date := ctx.Calendar.DateOf(day)
		for post, id := range row {
			if id == model.EmptySlot {
				continue
			}
			w := ctx.Worker(id)
			if w != nil && !w.InWorkPeriod(date) {
				totalPenalty += c.Weight()
				violations = append(violations, c.CreateViolation(
					id, date, post,
					fmt.Sprintf("人员 %s 在在岗时段外的 %s 被排班", id, date),
				))
			}
		}
	}

	return len(violations) == 0, totalPenalty, violations
}

// EvaluateAssignment 检查单次分配
func (c *WorkPeriodConstraint) EvaluateAssignment(ctx *constraint.Context, workerID string, day, post int) (bool, string) {
	w := ctx.Worker(workerID)
	if w != nil && !w.InWorkPeriod(ctx.Calendar.DateOf(day)) {
		return false, "不在在岗时段内"
	}
	return true, ""
}
