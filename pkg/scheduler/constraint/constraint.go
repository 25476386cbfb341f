// Package constraint 定义值班约束接口和管理器
package constraint

import (
	"github.com/zhiban/zhiban/pkg/model"
)

// Category 约束类别
type Category string

const (
	CategoryHard Category = "hard" // 硬约束（必须满足）
	CategorySoft Category = "soft" // 软约束（尽量满足）
)

// Constraint 约束接口
// 每种违规类型对应一个约束实现，既提供全表评估也提供单次分配的增量检查
type Constraint interface {
	// Name 返回约束名称
	Name() string

	// Kind 返回对应的违规类型
	Kind() model.ViolationKind

	// Category 返回约束类别
	Category() Category

	// Weight 返回约束权重 (1-100)，决定检查顺序
	Weight() int

	// Evaluate 评估整个值班表
	// 返回：是否满足、惩罚值、违规详情
	Evaluate(ctx *Context) (valid bool, penalty int, violations []model.Violation)

	// EvaluateAssignment 检查将 workerID 排入 (day, post) 是否可行
	// 返回：是否可行、拒绝原因
	EvaluateAssignment(ctx *Context, workerID string, day, post int) (valid bool, reason string)
}

// Result 约束评估结果
type Result struct {
	IsValid        bool              `json:"is_valid"`
	TotalPenalty   int               `json:"total_penalty"`
	HardViolations []model.Violation `json:"hard_violations"`
	SoftViolations []model.Violation `json:"soft_violations"`
	Score          float64           `json:"score"` // 0-100
}

// AllViolations 合并硬软违规（硬约束在前）
func (r *Result) AllViolations() []model.Violation {
	out := make([]model.Violation, 0, len(r.HardViolations)+len(r.SoftViolations))
	out = append(out, r.HardViolations...)
	out = append(out, r.SoftViolations...)
	return out
}

// CalculateScore 计算约束满足度得分
func (r *Result) CalculateScore(maxPenalty int) {
	if maxPenalty == 0 {
		r.Score = 100.0
		return
	}
	r.Score = 100.0 * float64(maxPenalty-r.TotalPenalty) / float64(maxPenalty)
	if r.Score < 0 {
		r.Score = 0
	}
}
