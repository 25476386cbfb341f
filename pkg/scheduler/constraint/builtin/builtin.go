// Package builtin 提供内置约束实现
package builtin

import (
	"github.com/zhiban/zhiban/pkg/scheduler/constraint"
)

// RegisterDefaults 注册全部内置约束
// 硬约束按权重从高到低参与 CanAssign 检查，
// 软约束（槽位覆盖）只在全表评估时产出记录
func RegisterDefaults(manager *constraint.Manager) {
	manager.Register(NewDuplicateOnDayConstraint())
	manager.Register(NewDaysOffConstraint())
	manager.Register(NewWorkPeriodConstraint())
	manager.Register(NewIncompatibilityConstraint())
	manager.Register(NewGapConstraint())
	manager.Register(NewWeeklyPatternConstraint())
	manager.Register(NewWeekendCapConstraint())
	manager.Register(NewMandatoryPresenceConstraint())
	manager.Register(NewCoverageConstraint())
}
