// Package builtin 提供内置约束实现
package builtin

import (
	"fmt"

	"github.com/zhiban/zhiban/pkg/model"
	"github.com/zhiban/zhiban/pkg/scheduler/constraint"
)

// IncompatibilityConstraint 不相容人员不得同日值班
type IncompatibilityConstraint struct {
	*BaseConstraint
}

// NewIncompatibilityConstraint 创建不相容约束
func NewIncompatibilityConstraint() *IncompatibilityConstraint {
	return &IncompatibilityConstraint{
		BaseConstraint: NewBaseConstraint(
			"人员不相容",
			model.ViolationIncompatibility,
			constraint.CategoryHard,
			85,
		),
	}
}

// Evaluate 评估整个值班表
func (c *IncompatibilityConstraint) Evaluate(ctx *constraint.Context) (bool, int, []model.Violation) {
	var violations []model.Violation
	totalPenalty := 0

	for day, row := range ctx.Schedule {
		date := ctx.Calendar.DateOf(day)
		for i := 0; i < len(row); i++ {
			if row[i] == model.EmptySlot {
				continue
			}
			for j := i + 1; j < len(row); j++ {
				if row[j] == model.EmptySlot {
					continue
				}
				if ctx.AreIncompatible(row[i], row[j]) {
					totalPenalty += c.Weight()
					violations = append(violations, c.CreateViolation(
						row[i], date, i,
						fmt.Sprintf("人员 %s 与 %s 不相容，不能在 %s 同日值班", row[i], row[j], date),
					))
				}
			}
		}
	}

	return len(violations) == 0, totalPenalty, violations
}

// EvaluateAssignment 检查单次分配
func (c *IncompatibilityConstraint) EvaluateAssignment(ctx *constraint.Context, workerID string, day, post int) (bool, string) {
	for _, other := range ctx.Schedule[day] {
		if other == model.EmptySlot || other == workerID {
			continue
		}
		if ctx.AreIncompatible(workerID, other) {
			return false, fmt.Sprintf("与当日人员 %s 不相容", other)
		}
	}
	return true, ""
}
