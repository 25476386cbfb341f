// Package model 定义值班排班引擎的核心数据模型
package model

// ReplacementRequest 替班查找请求
type ReplacementRequest struct {
	Date           string `json:"date"`                       // 需要替班的日期
	Post           int    `json:"post"`                       // 槽位编号
	AbsentWorkerID string `json:"absent_worker_id,omitempty"` // 缺席人员（可为空，表示填补空槽）
	MaxCandidates  int    `json:"max_candidates,omitempty"`   // 返回候选上限
}

// ReplacementCandidate 替班候选人
type ReplacementCandidate struct {
	WorkerID  string   `json:"worker_id"`
	Name      string   `json:"name,omitempty"`
	Score     float64  `json:"score"`
	Feasible  bool     `json:"feasible"`
	Deviation int      `json:"deviation"` // 当前工作量偏差，负值表示欠班
	Reasons   []string `json:"reasons,omitempty"`
	Conflicts []string `json:"conflicts,omitempty"`
}

// ReplacementResult 替班查找结果
type ReplacementResult struct {
	Date         string                 `json:"date"`
	Post         int                    `json:"post"`
	BestMatch    *ReplacementCandidate  `json:"best_match,omitempty"`
	Alternatives []ReplacementCandidate `json:"alternatives,omitempty"`
}

// HasMatch 检查是否找到可行替班人
func (r *ReplacementResult) HasMatch() bool {
	return r.BestMatch != nil && r.BestMatch.Feasible
}
