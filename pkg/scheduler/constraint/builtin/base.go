// Package builtin 提供内置约束实现
package builtin

import (
	"github.com/zhiban/zhiban/pkg/model"
	"github.com/zhiban/zhiban/pkg/scheduler/constraint"
)

// BaseConstraint 约束基类
type BaseConstraint struct {
	name     string
	kind     model.ViolationKind
	category constraint.Category
	weight   int
}

// NewBaseConstraint 创建基础约束
func NewBaseConstraint(name string, kind model.ViolationKind, cat constraint.Category, weight int) *BaseConstraint {
	return &BaseConstraint{
		name:     name,
		kind:     kind,
		category: cat,
		weight:   weight,
	}
}

// Name 返回约束名称
func (c *BaseConstraint) Name() string { return c.name }

// Kind 返回违规类型
func (c *BaseConstraint) Kind() model.ViolationKind { return c.kind }

// Category 返回约束类别
func (c *BaseConstraint) Category() constraint.Category { return c.category }

// Weight 返回约束权重
func (c *BaseConstraint) Weight() int { return c.weight }

// CreateViolation 创建违规记录
func (c *BaseConstraint) CreateViolation(workerID, date string, post int, message string) model.Violation {
	return model.Violation{
		Kind:     c.kind,
		WorkerID: workerID,
		Date:     date,
		Post:     post,
		Message:  message,
	}
}

// Evaluate 默认评估实现（子类需覆盖）
func (c *BaseConstraint) Evaluate(ctx *constraint.Context) (bool, int, []model.Violation) {
	return true, 0, nil
}

// EvaluateAssignment 默认分配检查实现（子类需覆盖）
func (c *BaseConstraint) EvaluateAssignment(ctx *constraint.Context, workerID string, day, post int) (bool, string) {
	return true, ""
}
