// Package scenario 提供场景测试
package scenario

import (
	"testing"
	"time"

	"github.com/zhiban/zhiban/pkg/collab"
)

// TestLockLifecycle 锁生命周期场景：
// 用户A锁定某天的班次编辑后，用户B的非等待请求被拒绝；
// 持有者重复获取返回同一把锁并续期；锁过期后资源可再次获取
func TestLockLifecycle(t *testing.T) {
	m := collab.NewManager(collab.Config{})
	const resource = "2026-05-01:0"

	lockA, ticket := m.AcquireLock("user-a", collab.LockShiftEdit, resource,
		&collab.AcquireOptions{Timeout: 150 * time.Millisecond})
	if lockA == nil {
		t.Fatal("user-a 应获得锁")
	}
	if ticket != nil {
		t.Fatalf("直接授予不应产生排队凭据: %+v", ticket)
	}

	// 资源被占用时非等待请求直接拒绝
	if lockB, ticketB := m.AcquireLock("user-b", collab.LockShiftEdit, resource, nil); lockB != nil || ticketB != nil {
		t.Fatalf("user-b 的请求应被拒绝，实际 lock=%v ticket=%v", lockB, ticketB)
	}

	held := m.CheckLock(collab.LockShiftEdit, resource)
	if held == nil || held.OwnerID != "user-a" {
		t.Fatalf("锁应由 user-a 持有: %+v", held)
	}

	// 持有者重复获取：同一锁ID，过期时间顺延
	time.Sleep(10 * time.Millisecond)
	again, _ := m.AcquireLock("user-a", collab.LockShiftEdit, resource,
		&collab.AcquireOptions{Timeout: 150 * time.Millisecond})
	if again == nil || again.ID != lockA.ID {
		t.Fatalf("持有者重复获取应返回同一把锁: %+v vs %+v", again, lockA)
	}
	if !again.ExpiresAt.After(lockA.ExpiresAt) {
		t.Errorf("重复获取应续期: %v -> %v", lockA.ExpiresAt, again.ExpiresAt)
	}

	// 过期的锁等同于不存在
	time.Sleep(250 * time.Millisecond)
	if l := m.CheckLock(collab.LockShiftEdit, resource); l != nil {
		t.Fatalf("过期的锁不应再出现在检查结果中: %+v", l)
	}

	// 过期后重试即可获得
	lockB, _ := m.AcquireLock("user-b", collab.LockShiftEdit, resource, nil)
	if lockB == nil {
		t.Fatal("锁过期后 user-b 应获得锁")
	}
	if lockB.ID == lockA.ID {
		t.Error("新锁不应复用旧锁ID")
	}

	if !m.ReleaseLock(lockB.ID, "user-b") {
		t.Error("user-b 应能释放自己的锁")
	}
	if l := m.CheckLock(collab.LockShiftEdit, resource); l != nil {
		t.Errorf("释放后不应再有锁: %+v", l)
	}
}

// TestLockSessionTeardown 会话结束场景：结束会话时其持有的锁一并释放
func TestLockSessionTeardown(t *testing.T) {
	m := collab.NewManager(collab.Config{})

	sid := m.CreateSession("user-a", []string{"*"}, nil)
	lock, _ := m.AcquireLock("user-a", collab.LockWorkerAssignment, "worker:w1", nil)
	if lock == nil {
		t.Fatal("user-a 应获得锁")
	}

	s := m.GetSession(sid)
	if s == nil || len(s.HeldLocks()) != 1 {
		t.Fatalf("会话应登记1把锁: %+v", s)
	}

	if !m.EndSession(sid) {
		t.Fatal("结束会话失败")
	}
	if l := m.CheckLock(collab.LockWorkerAssignment, "worker:w1"); l != nil {
		t.Errorf("会话结束后锁应被释放: %+v", l)
	}
}
