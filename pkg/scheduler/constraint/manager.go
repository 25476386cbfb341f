// Package constraint 定义值班约束接口和管理器
package constraint

import (
	"sort"
	"sync"

	"github.com/zhiban/zhiban/pkg/logger"
	"github.com/zhiban/zhiban/pkg/model"
)

// Manager 约束管理器
type Manager struct {
	constraints []Constraint
	mu          sync.RWMutex
	logger      *logger.EngineLogger
}

// NewManager 创建约束管理器
func NewManager() *Manager {
	return &Manager{
		constraints: make([]Constraint, 0),
		logger:      logger.NewEngineLogger(),
	}
}

// Register 注册约束，同类型约束被替换
func (m *Manager) Register(c Constraint) {
	m.mu.Lock()
	defer m.mu.Unlock()

	for i, existing := range m.constraints {
		if existing.Kind() == c.Kind() {
			m.constraints[i] = c
			return
		}
	}

	m.constraints = append(m.constraints, c)

	// 按类别和权重排序：硬约束在前，权重高的在前
	sort.Slice(m.constraints, func(i, j int) bool {
		ci, cj := m.constraints[i], m.constraints[j]
		if ci.Category() != cj.Category() {
			return ci.Category() == CategoryHard
		}
		return ci.Weight() > cj.Weight()
	})
}

// Unregister 注销约束
func (m *Manager) Unregister(kind model.ViolationKind) {
	m.mu.Lock()
	defer m.mu.Unlock()

	for i, c := range m.constraints {
		if c.Kind() == kind {
			m.constraints = append(m.constraints[:i], m.constraints[i+1:]...)
			return
		}
	}
}

// Get 按违规类型获取约束
func (m *Manager) Get(kind model.ViolationKind) Constraint {
	m.mu.RLock()
	defer m.mu.RUnlock()

	for _, c := range m.constraints {
		if c.Kind() == kind {
			return c
		}
	}
	return nil
}

// GetAll 获取所有约束
func (m *Manager) GetAll() []Constraint {
	m.mu.RLock()
	defer m.mu.RUnlock()

	result := make([]Constraint, len(m.constraints))
	copy(result, m.constraints)
	return result
}

// GetByCategory 按类别获取约束
func (m *Manager) GetByCategory(cat Category) []Constraint {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var result []Constraint
	for _, c := range m.constraints {
		if c.Category() == cat {
			result = append(result, c)
		}
	}
	return result
}

// Evaluate 评估所有约束
func (m *Manager) Evaluate(ctx *Context) *Result {
	m.mu.RLock()
	constraints := make([]Constraint, len(m.constraints))
	copy(constraints, m.constraints)
	m.mu.RUnlock()

	result := &Result{
		IsValid:        true,
		HardViolations: make([]model.Violation, 0),
		SoftViolations: make([]model.Violation, 0),
	}

	maxPenalty := 0
	for _, c := range constraints {
		valid, penalty, violations := c.Evaluate(ctx)
		maxPenalty += c.Weight() * 100

		if !valid || len(violations) > 0 {
			result.TotalPenalty += penalty
			for _, v := range violations {
				if c.Category() == CategoryHard {
					result.IsValid = false
					result.HardViolations = append(result.HardViolations, v)
					m.logger.ConstraintViolation(string(v.Kind), v.Message)
				} else {
					result.SoftViolations = append(result.SoftViolations, v)
				}
			}
		}
	}

	result.CalculateScore(maxPenalty)
	return result
}

// CanAssign 检查将 workerID 排入 (day, post) 是否满足全部硬约束
// 返回首个拒绝的违规类型和原因
func (m *Manager) CanAssign(ctx *Context, workerID string, day, post int) (bool, model.ViolationKind, string) {
	m.mu.RLock()
	constraints := make([]Constraint, len(m.constraints))
	copy(constraints, m.constraints)
	m.mu.RUnlock()

	for _, c := range constraints {
		if c.Category() != CategoryHard {
			continue
		}
		if valid, reason := c.EvaluateAssignment(ctx, workerID, day, post); !valid {
			return false, c.Kind(), reason
		}
	}
	return true, "", ""
}

// Clear 清除所有约束
func (m *Manager) Clear() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.constraints = make([]Constraint, 0)
}

// Count 返回约束数量
func (m *Manager) Count() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.constraints)
}

// Summary 返回约束摘要
func (m *Manager) Summary() map[string]interface{} {
	m.mu.RLock()
	defer m.mu.RUnlock()

	hard := 0
	soft := 0
	for _, c := range m.constraints {
		if c.Category() == CategoryHard {
			hard++
		} else {
			soft++
		}
	}

	return map[string]interface{}{
		"total": len(m.constraints),
		"hard":  hard,
		"soft":  soft,
	}
}
