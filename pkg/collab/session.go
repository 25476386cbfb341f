// Package collab 提供协作核心：会话、资源锁与冲突检测。
// 全部状态由单把互斥锁保护，锁操作的先后顺序即互斥锁的获取顺序。
package collab

import (
	"sort"
	"time"

	"github.com/google/uuid"
)

// Session 协作会话。记录用户身份、活跃时间、权限与持有的锁。
// 空闲超过会话超时后过期，过期会话连同其持有的锁一并清除。
type Session struct {
	ID           uuid.UUID      `json:"id"`
	UserID       string         `json:"user_id"`
	CreatedAt    time.Time      `json:"created_at"`
	LastActivity time.Time      `json:"last_activity"`
	Permissions  []string       `json:"permissions,omitempty"`
	Metadata     map[string]any `json:"metadata,omitempty"`

	locks map[uuid.UUID]struct{}
}

// Expired 判断会话是否因空闲超时而过期。
func (s *Session) Expired(now time.Time, idle time.Duration) bool {
	return now.Sub(s.LastActivity) >= idle
}

// HasPermission 检查会话是否拥有某权限，"*" 表示全部权限。
func (s *Session) HasPermission(perm string) bool {
	for _, p := range s.Permissions {
		if p == perm || p == "*" {
			return true
		}
	}
	return false
}

// HeldLocks 返回会话当前持有的锁ID快照。
func (s *Session) HeldLocks() []uuid.UUID {
	ids := make([]uuid.UUID, 0, len(s.locks))
	for id := range s.locks {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i].String() < ids[j].String() })
	return ids
}

// clone 复制会话快照，供对外返回。
func (s *Session) clone() *Session {
	cp := *s
	cp.Permissions = append([]string(nil), s.Permissions...)
	cp.Metadata = copyMeta(s.Metadata)
	cp.locks = make(map[uuid.UUID]struct{}, len(s.locks))
	for id := range s.locks {
		cp.locks[id] = struct{}{}
	}
	return &cp
}
