package collab

import (
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// 测试用短超时配置，留足余量避免慢机器上抖动。
func testConfig() Config {
	return Config{
		LockTimeout:       120 * time.Millisecond,
		SessionTimeout:    200 * time.Millisecond,
		ConflictRetention: 100 * time.Millisecond,
		CleanupInterval:   time.Hour,
	}
}

func TestManager_SessionLifecycle(t *testing.T) {
	m := NewManager(Config{})

	id := m.CreateSession("alice", []string{"schedule:edit"}, map[string]any{"client": "web"})
	require.NotEqual(t, uuid.Nil, id)

	s := m.GetSession(id)
	require.NotNil(t, s)
	assert.Equal(t, "alice", s.UserID)
	assert.True(t, s.HasPermission("schedule:edit"))
	assert.False(t, s.HasPermission("admin"))
	assert.Empty(t, s.HeldLocks())

	assert.True(t, m.TouchSession(id))
	assert.True(t, m.EndSession(id))

	// 结束后等同于不存在
	assert.Nil(t, m.GetSession(id))
	assert.False(t, m.TouchSession(id))
	assert.False(t, m.EndSession(id))
}

func TestManager_CreateSession_EmptyUser(t *testing.T) {
	m := NewManager(Config{})
	assert.Equal(t, uuid.Nil, m.CreateSession("", nil, nil))
}

func TestManager_SessionWildcardPermission(t *testing.T) {
	m := NewManager(Config{})
	id := m.CreateSession("root", []string{"*"}, nil)
	s := m.GetSession(id)
	require.NotNil(t, s)
	assert.True(t, s.HasPermission("anything"))
}

func TestManager_AcquireLock_Basic(t *testing.T) {
	m := NewManager(Config{})

	lock, ticket := m.AcquireLock("alice", LockShiftEdit, "2026-05-01:0", nil)
	require.NotNil(t, lock)
	require.Nil(t, ticket)
	assert.Equal(t, "alice", lock.OwnerID)
	assert.Equal(t, LockShiftEdit, lock.Type)
	assert.Equal(t, "2026-05-01:0", lock.ResourceID)
	assert.True(t, lock.ExpiresAt.After(lock.AcquiredAt))

	got := m.CheckLock(LockShiftEdit, "2026-05-01:0")
	require.NotNil(t, got)
	assert.Equal(t, lock.ID, got.ID)

	assert.True(t, m.ReleaseLock(lock.ID, "alice"))
	assert.Nil(t, m.CheckLock(LockShiftEdit, "2026-05-01:0"))
	assert.False(t, m.ReleaseLock(lock.ID, "alice"))
}

func TestManager_AcquireLock_InvalidInput(t *testing.T) {
	m := NewManager(Config{})

	lock, ticket := m.AcquireLock("", LockShiftEdit, "r", nil)
	assert.Nil(t, lock)
	assert.Nil(t, ticket)

	lock, ticket = m.AcquireLock("alice", LockType("unknown"), "r", nil)
	assert.Nil(t, lock)
	assert.Nil(t, ticket)

	lock, ticket = m.AcquireLock("alice", LockShiftEdit, "", nil)
	assert.Nil(t, lock)
	assert.Nil(t, ticket)
}

// 同一 (类型, 资源) 上任意时刻至多一把未过期的锁。
func TestManager_AcquireLock_SingleHolder(t *testing.T) {
	m := NewManager(Config{})

	var (
		mu      sync.Mutex
		granted int
		wg      sync.WaitGroup
	)
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			user := string(rune('a' + n))
			if lock, _ := m.AcquireLock(user, LockScheduleGeneration, "generation:root", nil); lock != nil {
				mu.Lock()
				granted++
				mu.Unlock()
			}
		}(i)
	}
	wg.Wait()

	assert.Equal(t, 1, granted, "exactly one acquirer must win")
	assert.Equal(t, 1, m.Status().ActiveLocks)
}

// 持有者重复获取返回同一锁ID并延长有效期。
func TestManager_AcquireLock_OwnerReacquire(t *testing.T) {
	m := NewManager(Config{})

	first, _ := m.AcquireLock("alice", LockWorkerAssignment, "2026-05-02:1", nil)
	require.NotNil(t, first)

	time.Sleep(20 * time.Millisecond)

	second, ticket := m.AcquireLock("alice", LockWorkerAssignment, "2026-05-02:1", nil)
	require.NotNil(t, second)
	require.Nil(t, ticket)
	assert.Equal(t, first.ID, second.ID)
	assert.True(t, second.ExpiresAt.After(first.ExpiresAt))
}

// 非持有者且 wait=false 时拒绝，不改变任何状态。
func TestManager_AcquireLock_Refused(t *testing.T) {
	m := NewManager(Config{})

	held, _ := m.AcquireLock("alice", LockShiftEdit, "2026-05-01:0", nil)
	require.NotNil(t, held)

	lock, ticket := m.AcquireLock("bob", LockShiftEdit, "2026-05-01:0", nil)
	assert.Nil(t, lock)
	assert.Nil(t, ticket)

	got := m.CheckLock(LockShiftEdit, "2026-05-01:0")
	require.NotNil(t, got)
	assert.Equal(t, "alice", got.OwnerID)
}

// 结束会话后，该会话持有的锁全部失效。
func TestManager_EndSessionReleasesLocks(t *testing.T) {
	m := NewManager(Config{})

	sid := m.CreateSession("alice", nil, nil)
	require.NotEqual(t, uuid.Nil, sid)

	l1, _ := m.AcquireLock("alice", LockShiftEdit, "2026-05-01:0", nil)
	l2, _ := m.AcquireLock("alice", LockWorkerAssignment, "2026-05-02:1", nil)
	require.NotNil(t, l1)
	require.NotNil(t, l2)

	s := m.GetSession(sid)
	require.NotNil(t, s)
	assert.Len(t, s.HeldLocks(), 2)

	require.True(t, m.EndSession(sid))
	assert.Nil(t, m.CheckLock(LockShiftEdit, "2026-05-01:0"))
	assert.Nil(t, m.CheckLock(LockWorkerAssignment, "2026-05-02:1"))
}

// 过期的锁在 check_lock 中等同于不存在。
func TestManager_ExpiredLockIndistinguishable(t *testing.T) {
	m := NewManager(testConfig())

	lock, _ := m.AcquireLock("alice", LockShiftEdit, "2026-05-01:0", &AcquireOptions{Timeout: 60 * time.Millisecond})
	require.NotNil(t, lock)
	require.NotNil(t, m.CheckLock(LockShiftEdit, "2026-05-01:0"))

	time.Sleep(150 * time.Millisecond)

	assert.Nil(t, m.CheckLock(LockShiftEdit, "2026-05-01:0"))
	assert.False(t, m.ReleaseLock(lock.ID, "alice"))
}

// 锁生命周期：占用期间他人被拒绝，超时后重试即获准。
func TestManager_LockLifecycle(t *testing.T) {
	m := NewManager(Config{})

	held, _ := m.AcquireLock("alice", LockShiftEdit, "2026-05-01:0", &AcquireOptions{Timeout: 120 * time.Millisecond})
	require.NotNil(t, held)

	refused, ticket := m.AcquireLock("bob", LockShiftEdit, "2026-05-01:0", nil)
	assert.Nil(t, refused)
	assert.Nil(t, ticket)

	time.Sleep(250 * time.Millisecond)

	retry, _ := m.AcquireLock("bob", LockShiftEdit, "2026-05-01:0", nil)
	require.NotNil(t, retry)
	assert.Equal(t, "bob", retry.OwnerID)
	assert.NotEqual(t, held.ID, retry.ID)
}

// 等待队列先进先出，兑现的锁ID等于排队凭据Token。
func TestManager_WaitQueueFIFO(t *testing.T) {
	m := NewManager(Config{})

	held, _ := m.AcquireLock("alice", LockShiftEdit, "2026-05-01:0", nil)
	require.NotNil(t, held)

	var order []string
	var mu sync.Mutex
	grantedTo := func(user string) func(*Lock) {
		return func(l *Lock) {
			mu.Lock()
			order = append(order, user+":"+l.ID.String())
			mu.Unlock()
		}
	}

	_, t1 := m.AcquireLock("bob", LockShiftEdit, "2026-05-01:0", &AcquireOptions{Wait: true, OnGrant: grantedTo("bob")})
	require.NotNil(t, t1)
	assert.Equal(t, 1, t1.Position)

	_, t2 := m.AcquireLock("carol", LockShiftEdit, "2026-05-01:0", &AcquireOptions{Wait: true, OnGrant: grantedTo("carol")})
	require.NotNil(t, t2)
	assert.Equal(t, 2, t2.Position)

	assert.Equal(t, map[string]int{"shift_edit:2026-05-01:0": 2}, m.Status().QueueDepths)

	// alice 释放后 bob 接管；回调在 ReleaseLock 返回前同步触发
	require.True(t, m.ReleaseLock(held.ID, "alice"))
	got := m.CheckLock(LockShiftEdit, "2026-05-01:0")
	require.NotNil(t, got)
	assert.Equal(t, "bob", got.OwnerID)
	assert.Equal(t, t1.Token, got.ID)

	require.True(t, m.ReleaseLock(t1.Token, "bob"))
	got = m.CheckLock(LockShiftEdit, "2026-05-01:0")
	require.NotNil(t, got)
	assert.Equal(t, "carol", got.OwnerID)
	assert.Equal(t, t2.Token, got.ID)

	mu.Lock()
	defer mu.Unlock()
	require.Len(t, order, 2)
	assert.Equal(t, "bob:"+t1.Token.String(), order[0])
	assert.Equal(t, "carol:"+t2.Token.String(), order[1])
}

func TestManager_CancelWait(t *testing.T) {
	m := NewManager(Config{})

	held, _ := m.AcquireLock("alice", LockShiftEdit, "2026-05-01:0", nil)
	require.NotNil(t, held)

	fired := false
	_, ticket := m.AcquireLock("bob", LockShiftEdit, "2026-05-01:0", &AcquireOptions{
		Wait:    true,
		OnGrant: func(*Lock) { fired = true },
	})
	require.NotNil(t, ticket)

	assert.True(t, m.CancelWait(ticket.Token))
	assert.False(t, m.CancelWait(ticket.Token))

	require.True(t, m.ReleaseLock(held.ID, "alice"))
	assert.Nil(t, m.CheckLock(LockShiftEdit, "2026-05-01:0"))
	assert.False(t, fired)
}

func TestManager_DetectConflict(t *testing.T) {
	m := NewManager(Config{})

	held, _ := m.AcquireLock("alice", LockShiftEdit, "2026-05-01:0", nil)
	require.NotNil(t, held)

	// 资源空闲或持有者本人操作都不算冲突
	assert.Nil(t, m.DetectConflict("assign_worker", "2026-06-01:0", "bob", nil))
	assert.Nil(t, m.DetectConflict("assign_worker", "2026-05-01:0", "alice", nil))

	c := m.DetectConflict("assign_worker", "2026-05-01:0", "bob", map[string]any{"worker_id": "w3"})
	require.NotNil(t, c)
	assert.Equal(t, "assign_worker", c.OpType)
	assert.Equal(t, "bob", c.UserID)
	assert.Equal(t, "alice", c.HolderID)
	assert.Equal(t, held.ID, c.LockID)
	assert.False(t, c.Resolved)

	got := m.GetConflict(c.ID)
	require.NotNil(t, got)
	assert.Equal(t, c.ID, got.ID)

	pending := m.PendingConflicts()
	require.Len(t, pending, 1)
	assert.Equal(t, c.ID, pending[0].ID)
}

func TestManager_ResolveConflict(t *testing.T) {
	m := NewManager(Config{})

	held, _ := m.AcquireLock("alice", LockShiftEdit, "2026-05-01:0", nil)
	require.NotNil(t, held)
	c := m.DetectConflict("assign_worker", "2026-05-01:0", "bob", nil)
	require.NotNil(t, c)

	assert.False(t, m.ResolveConflict(c.ID, Strategy("split_the_difference"), nil))
	assert.False(t, m.ResolveConflict(uuid.New(), StrategyManual, nil))

	require.True(t, m.ResolveConflict(c.ID, StrategyLastWriterWins, nil))
	got := m.GetConflict(c.ID)
	require.NotNil(t, got)
	assert.True(t, got.Resolved)
	assert.Equal(t, StrategyLastWriterWins, got.Strategy)
	assert.Equal(t, "bob", got.Resolution["winner"])
	require.NotNil(t, got.ResolvedAt)

	// 已解决的冲突不能重复解决
	assert.False(t, m.ResolveConflict(c.ID, StrategyManual, nil))
	assert.Empty(t, m.PendingConflicts())
}

func TestManager_ResolveConflict_FirstWriterWins(t *testing.T) {
	m := NewManager(Config{})

	_, _ = m.AcquireLock("alice", LockShiftEdit, "2026-05-01:0", nil)
	c := m.DetectConflict("assign_worker", "2026-05-01:0", "bob", nil)
	require.NotNil(t, c)

	require.True(t, m.ResolveConflict(c.ID, StrategyFirstWriterWins, map[string]any{"note": "manual review"}))
	got := m.GetConflict(c.ID)
	require.NotNil(t, got)
	assert.Equal(t, "alice", got.Resolution["winner"])
	assert.Equal(t, "manual review", got.Resolution["note"])
}

// 空闲超时的会话在触达时被清除，其锁随之释放。
func TestManager_SessionExpiryReleasesLocks(t *testing.T) {
	m := NewManager(testConfig())

	sid := m.CreateSession("alice", nil, nil)
	lock, _ := m.AcquireLock("alice", LockShiftEdit, "2026-05-01:0", &AcquireOptions{Timeout: time.Hour})
	require.NotNil(t, lock)

	time.Sleep(400 * time.Millisecond)

	assert.False(t, m.TouchSession(sid))
	assert.Nil(t, m.GetSession(sid))
	assert.Nil(t, m.CheckLock(LockShiftEdit, "2026-05-01:0"))
}

func TestManager_Cleanup(t *testing.T) {
	m := NewManager(testConfig())

	// 过期锁：短超时 + 排队等待者，清理时应兑现给等待者
	short, _ := m.AcquireLock("alice", LockShiftEdit, "2026-05-01:0", &AcquireOptions{Timeout: 60 * time.Millisecond})
	require.NotNil(t, short)
	var grantedLock *Lock
	_, ticket := m.AcquireLock("bob", LockShiftEdit, "2026-05-01:0", &AcquireOptions{
		Wait:    true,
		Timeout: time.Hour,
		OnGrant: func(l *Lock) { grantedLock = l },
	})
	require.NotNil(t, ticket)

	// 空闲会话：持有一把未过期的锁，清理会话时连带释放
	sid := m.CreateSession("carol", nil, nil)
	carolLock, _ := m.AcquireLock("carol", LockBulkOperation, "batch:1", &AcquireOptions{Timeout: time.Hour})
	require.NotNil(t, carolLock)

	// 已解决冲突：超过保留期后被删除
	dave, _ := m.AcquireLock("dave", LockWorkerAssignment, "2026-05-03:0", &AcquireOptions{Timeout: time.Hour})
	require.NotNil(t, dave)
	c := m.DetectConflict("assign_worker", "2026-05-03:0", "erin", nil)
	require.NotNil(t, c)
	require.True(t, m.ResolveConflict(c.ID, StrategyManual, nil))

	time.Sleep(400 * time.Millisecond)

	locks, sessions, conflicts := m.Cleanup()
	assert.Equal(t, 1, locks, "only the short lock expires")
	assert.Equal(t, 1, sessions)
	assert.Equal(t, 1, conflicts)

	// 未过期的锁绝不被清理丢弃
	require.NotNil(t, grantedLock)
	assert.Equal(t, ticket.Token, grantedLock.ID)
	got := m.CheckLock(LockShiftEdit, "2026-05-01:0")
	require.NotNil(t, got)
	assert.Equal(t, "bob", got.OwnerID)

	assert.Nil(t, m.CheckLock(LockBulkOperation, "batch:1"))
	assert.NotNil(t, m.CheckLock(LockWorkerAssignment, "2026-05-03:0"))
	assert.Nil(t, m.GetSession(sid))
	assert.Nil(t, m.GetConflict(c.ID))
}

func TestManager_Status(t *testing.T) {
	m := NewManager(Config{})

	m.CreateSession("alice", nil, nil)
	m.CreateSession("alice", nil, nil)
	m.CreateSession("bob", nil, nil)

	a, _ := m.AcquireLock("alice", LockShiftEdit, "2026-05-01:0", nil)
	require.NotNil(t, a)
	b, _ := m.AcquireLock("bob", LockScheduleGeneration, "generation:root", nil)
	require.NotNil(t, b)

	_, ticket := m.AcquireLock("carol", LockShiftEdit, "2026-05-01:0", &AcquireOptions{Wait: true})
	require.NotNil(t, ticket)

	c := m.DetectConflict("assign_worker", "2026-05-01:0", "dave", nil)
	require.NotNil(t, c)

	st := m.Status()
	assert.Equal(t, 3, st.ActiveSessions)
	assert.Equal(t, 2, st.UsersOnline)
	assert.Equal(t, 2, st.ActiveLocks)
	assert.Equal(t, 1, st.PendingConflicts)
	assert.Equal(t, map[string]int{"shift_edit:2026-05-01:0": 1}, st.QueueDepths)
}
