// Package builtin 提供内置约束实现
package builtin

import (
	"fmt"

	"github.com/zhiban/zhiban/pkg/model"
	"github.com/zhiban/zhiban/pkg/scheduler/constraint"
)

// DaysOffConstraint 不可用日不得排班
type DaysOffConstraint struct {
	*BaseConstraint
}

// NewDaysOffConstraint 创建不可用日约束
func NewDaysOffConstraint() *DaysOffConstraint {
	return &DaysOffConstraint{
		BaseConstraint: NewBaseConstraint(
			"不可用日",
			model.ViolationDaysOff,
			constraint.CategoryHard,
			95,
		),
	}
}

// Evaluate 评估整个值班表
func (c *DaysOffConstraint) Evaluate(ctx *constraint.Context) (bool, int, []model.Violation) {
	var violations []model.Violation
	totalPenalty := 0

	for day, row := range ctx.Schedule {
		date := ctx.Calendar.DateOf(day)
		for post, id := range row {
			if id == model.EmptySlot {
				continue
			}
			w := ctx.Worker(id)
			if w != nil && w.IsDayOff(date) {
				totalPenalty += c.Weight()
				violations = append(violations, c.CreateViolation(
					id, date, post,
					fmt.Sprintf("人员 %s 在不可用日 %s 被排班", id, date),
				))
			}
		}
	}

	return len(violations) == 0, totalPenalty, violations
}

// EvaluateAssignment 检查单次分配
func (c *DaysOffConstraint) EvaluateAssignment(ctx *constraint.Context, workerID string, day, post int) (bool, string) {
	w := ctx.Worker(workerID)
	if w != nil && w.IsDayOff(ctx.Calendar.DateOf(day)) {
		return false, "当日为不可用日"
	}
	return true, ""
}
