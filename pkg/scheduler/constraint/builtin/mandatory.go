// Package builtin 提供内置约束实现
package builtin

import (
	"fmt"

	"github.com/zhiban/zhiban/pkg/model"
	"github.com/zhiban/zhiban/pkg/scheduler/constraint"
)

// MandatoryPresenceConstraint 强制值班日必须在班
// 已登记为未决的强制值班不再重复报告
type MandatoryPresenceConstraint struct {
	*BaseConstraint
}

// NewMandatoryPresenceConstraint 创建强制值班约束
func NewMandatoryPresenceConstraint() *MandatoryPresenceConstraint {
	return &MandatoryPresenceConstraint{
		BaseConstraint: NewBaseConstraint(
			"强制值班",
			model.ViolationMandatoryMissing,
			constraint.CategoryHard,
			65,
		),
	}
}

// Evaluate 评估整个值班表
func (c *MandatoryPresenceConstraint) Evaluate(ctx *constraint.Context) (bool, int, []model.Violation) {
	var violations []model.Violation
	totalPenalty := 0

	for _, w := range ctx.Workers {
		for _, day := range ctx.MandatoryDayIndexes(w.ID) {
			if ctx.IsUnresolved(w.ID, day) {
				continue
			}
			if !ctx.HasWorkerOn(day, w.ID) {
				date := ctx.Calendar.DateOf(day)
				totalPenalty += c.Weight()
				violations = append(violations, c.CreateViolation(
					w.ID, date, 0,
					fmt.Sprintf("人员 %s 的强制值班日 %s 缺席", w.ID, date),
				))
			}
		}
	}

	return len(violations) == 0, totalPenalty, violations
}
