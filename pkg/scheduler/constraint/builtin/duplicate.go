// Package builtin 提供内置约束实现
package builtin

import (
	"fmt"

	"github.com/zhiban/zhiban/pkg/model"
	"github.com/zhiban/zhiban/pkg/scheduler/constraint"
)

// DuplicateOnDayConstraint 同日槽位人员必须互不相同
type DuplicateOnDayConstraint struct {
	*BaseConstraint
}

// NewDuplicateOnDayConstraint 创建同日重复约束
func NewDuplicateOnDayConstraint() *DuplicateOnDayConstraint {
	return &DuplicateOnDayConstraint{
		BaseConstraint: NewBaseConstraint(
			"同日人员唯一",
			model.ViolationDuplicateOnDay,
			constraint.CategoryHard,
			100,
		),
	}
}

// Evaluate 评估整个值班表
func (c *DuplicateOnDayConstraint) Evaluate(ctx *constraint.Context) (bool, int, []model.Violation) {
	var violations []model.Violation
	totalPenalty := 0

	for day, row := range ctx.Schedule {
		seen := make(map[string]bool, len(row))
		for post, id := range row {
			if id == model.EmptySlot {
				continue
			}
			if seen[id] {
				totalPenalty += c.Weight()
				violations = append(violations, c.CreateViolation(
					id, ctx.Calendar.DateOf(day), post,
					fmt.Sprintf("人员 %s 在 %s 重复值班", id, ctx.Calendar.DateOf(day)),
				))
			}
			seen[id] = true
		}
	}

	return len(violations) == 0, totalPenalty, violations
}

// EvaluateAssignment 检查单次分配
func (c *DuplicateOnDayConstraint) EvaluateAssignment(ctx *constraint.Context, workerID string, day, post int) (bool, string) {
	if ctx.HasWorkerOn(day, workerID) {
		return false, "当日已有值班"
	}
	return true, ""
}
