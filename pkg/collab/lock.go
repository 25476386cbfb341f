package collab

import (
	"time"

	"github.com/google/uuid"
)

// LockType 资源锁类型。
type LockType string

const (
	LockWorkerAssignment   LockType = "worker_assignment"   // 单日值班分配
	LockShiftEdit          LockType = "shift_edit"          // 班次编辑
	LockScheduleGeneration LockType = "schedule_generation" // 整表生成
	LockBulkOperation      LockType = "bulk_operation"      // 批量操作
)

// AllLockTypes 全部锁类型，冲突检测按此顺序扫描资源。
var AllLockTypes = []LockType{
	LockWorkerAssignment,
	LockShiftEdit,
	LockScheduleGeneration,
	LockBulkOperation,
}

// Valid 检查锁类型是否合法。
func (t LockType) Valid() bool {
	switch t {
	case LockWorkerAssignment, LockShiftEdit, LockScheduleGeneration, LockBulkOperation:
		return true
	}
	return false
}

// Lock 资源锁。同一 (类型, 资源) 上至多存在一把未过期的锁；
// 过期的锁等同于不存在。
type Lock struct {
	ID         uuid.UUID      `json:"id"`
	OwnerID    string         `json:"owner_id"`
	Type       LockType       `json:"type"`
	ResourceID string         `json:"resource_id"`
	AcquiredAt time.Time      `json:"acquired_at"`
	ExpiresAt  time.Time      `json:"expires_at"`
	Metadata   map[string]any `json:"metadata,omitempty"`
}

// Expired 判断锁是否已过期。
func (l *Lock) Expired(now time.Time) bool {
	return !now.Before(l.ExpiresAt)
}

func (l *Lock) clone() *Lock {
	cp := *l
	cp.Metadata = copyMeta(l.Metadata)
	return &cp
}

// lockKey 锁的唯一标识：(类型, 资源)。
type lockKey struct {
	typ      LockType
	resource string
}

func (k lockKey) String() string { return string(k.typ) + ":" + k.resource }

// AcquireOptions 获取锁的可选参数。
type AcquireOptions struct {
	Timeout  time.Duration  // 锁有效期，零值使用管理器默认值
	Metadata map[string]any // 附加元数据
	Wait     bool           // 资源被占用时是否排队
	OnGrant  func(*Lock)    // 排队获准后的通知回调，在互斥锁外触发
}

// Ticket 排队凭据。资源被他人占用且 wait=true 时立即返回，
// 锁释放后按先进先出顺序兑现，兑现的锁ID即凭据Token。
type Ticket struct {
	Token      uuid.UUID `json:"token"`
	UserID     string    `json:"user_id"`
	Type       LockType  `json:"type"`
	ResourceID string    `json:"resource_id"`
	Position   int       `json:"position"`
	EnqueuedAt time.Time `json:"enqueued_at"`
}

// waiter 排队中的锁请求。
type waiter struct {
	token    uuid.UUID
	userID   string
	timeout  time.Duration
	metadata map[string]any
	onGrant  func(*Lock)
	enqueued time.Time
}
