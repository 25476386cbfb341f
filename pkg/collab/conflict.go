package collab

import (
	"time"

	"github.com/google/uuid"
)

// Strategy 冲突解决策略。
type Strategy string

const (
	StrategyLastWriterWins  Strategy = "last_writer_wins"  // 后写者胜
	StrategyFirstWriterWins Strategy = "first_writer_wins" // 先写者胜
	StrategyManual          Strategy = "manual"            // 人工裁决
	StrategyAutomaticMerge  Strategy = "automatic_merge"   // 自动合并
)

// Valid 检查策略是否合法。
func (s Strategy) Valid() bool {
	switch s {
	case StrategyLastWriterWins, StrategyFirstWriterWins, StrategyManual, StrategyAutomaticMerge:
		return true
	}
	return false
}

// Conflict 编辑冲突记录。提议的变更落在他人锁定的资源上时生成，
// 解决后保留一段时间供审计，超过保留期由后台清理移除。
type Conflict struct {
	ID             uuid.UUID      `json:"id"`
	OpType         string         `json:"op_type"`
	ResourceID     string         `json:"resource_id"`
	UserID         string         `json:"user_id"`   // 提议方
	HolderID       string         `json:"holder_id"` // 资源持有方
	LockID         uuid.UUID      `json:"lock_id"`
	ProposedChange map[string]any `json:"proposed_change,omitempty"`
	DetectedAt     time.Time      `json:"detected_at"`
	Resolved       bool           `json:"resolved"`
	ResolvedAt     *time.Time     `json:"resolved_at,omitempty"`
	Strategy       Strategy       `json:"strategy,omitempty"`
	Resolution     map[string]any `json:"resolution,omitempty"`
}

func (c *Conflict) clone() *Conflict {
	cp := *c
	cp.ProposedChange = copyMeta(c.ProposedChange)
	cp.Resolution = copyMeta(c.Resolution)
	if c.ResolvedAt != nil {
		t := *c.ResolvedAt
		cp.ResolvedAt = &t
	}
	return &cp
}
