// Package builtin 提供内置约束实现
package builtin

import (
	"fmt"

	"github.com/zhiban/zhiban/pkg/model"
	"github.com/zhiban/zhiban/pkg/scheduler/constraint"
)

// CoverageConstraint 槽位覆盖（软约束）：空槽位以 uncovered 记录报告
type CoverageConstraint struct {
	*BaseConstraint
}

// NewCoverageConstraint 创建覆盖约束
func NewCoverageConstraint() *CoverageConstraint {
	return &CoverageConstraint{
		BaseConstraint: NewBaseConstraint(
			"槽位覆盖",
			model.ViolationUncovered,
			constraint.CategorySoft,
			10,
		),
	}
}

// Evaluate 评估整个值班表
func (c *CoverageConstraint) Evaluate(ctx *constraint.Context) (bool, int, []model.Violation) {
	var violations []model.Violation
	totalPenalty := 0

	for day, row := range ctx.Schedule {
		date := ctx.Calendar.DateOf(day)
		for post, id := range row {
			if id != model.EmptySlot {
				continue
			}
			totalPenalty += c.Weight()
			violations = append(violations, c.CreateViolation(
				"", date, post,
				fmt.Sprintf("%s 第 %d 槽位无可行人选", date, post),
			))
		}
	}

	return len(violations) == 0, totalPenalty, violations
}
