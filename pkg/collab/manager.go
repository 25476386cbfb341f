package collab

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/zhiban/zhiban/pkg/logger"
)

// 默认超时参数，均可通过 Config 覆盖。
const (
	DefaultLockTimeout       = 300 * time.Second
	DefaultSessionTimeout    = 1800 * time.Second
	DefaultConflictRetention = 24 * time.Hour
	DefaultCleanupInterval   = 60 * time.Second
)

// Config 协作核心配置。零值字段使用默认值。
type Config struct {
	LockTimeout       time.Duration `json:"lock_timeout"`
	SessionTimeout    time.Duration `json:"session_timeout"`
	ConflictRetention time.Duration `json:"conflict_retention"`
	CleanupInterval   time.Duration `json:"cleanup_interval"`
}

func (c Config) withDefaults() Config {
	if c.LockTimeout <= 0 {
		c.LockTimeout = DefaultLockTimeout
	}
	if c.SessionTimeout <= 0 {
		c.SessionTimeout = DefaultSessionTimeout
	}
	if c.ConflictRetention <= 0 {
		c.ConflictRetention = DefaultConflictRetention
	}
	if c.CleanupInterval <= 0 {
		c.CleanupInterval = DefaultCleanupInterval
	}
	return c
}

// Manager 协作核心管理器。会话、资源锁、冲突记录与等待队列
// 全部由同一把互斥锁保护，后台清理与外部调用共用这把锁。
// 拒绝与未找到一律返回 nil/false，不产生错误。
type Manager struct {
	mu sync.Mutex

	cfg       Config
	sessions  map[uuid.UUID]*Session
	byUser    map[string]map[uuid.UUID]*Session
	locks     map[lockKey]*Lock
	lockIndex map[uuid.UUID]lockKey
	queues    map[lockKey][]*waiter
	conflicts map[uuid.UUID]*Conflict

	log *logger.CollabLogger
}

// NewManager 创建协作核心管理器。
func NewManager(cfg Config) *Manager {
	return &Manager{
		cfg:       cfg.withDefaults(),
		sessions:  make(map[uuid.UUID]*Session),
		byUser:    make(map[string]map[uuid.UUID]*Session),
		locks:     make(map[lockKey]*Lock),
		lockIndex: make(map[uuid.UUID]lockKey),
		queues:    make(map[lockKey][]*waiter),
		conflicts: make(map[uuid.UUID]*Conflict),
		log:       logger.NewCollabLogger(),
	}
}

// CreateSession 创建会话并返回会话ID。userID 为空时返回 uuid.Nil。
func (m *Manager) CreateSession(userID string, permissions []string, metadata map[string]any) uuid.UUID {
	if userID == "" {
		return uuid.Nil
	}
	now := time.Now()
	s := &Session{
		ID:           uuid.New(),
		UserID:       userID,
		CreatedAt:    now,
		LastActivity: now,
		Permissions:  append([]string(nil), permissions...),
		Metadata:     copyMeta(metadata),
		locks:        make(map[uuid.UUID]struct{}),
	}

	m.mu.Lock()
	m.sessions[s.ID] = s
	if m.byUser[userID] == nil {
		m.byUser[userID] = make(map[uuid.UUID]*Session)
	}
	m.byUser[userID][s.ID] = s
	m.mu.Unlock()

	return s.ID
}

// GetSession 返回会话快照。不存在或已过期时返回 nil。
func (m *Manager) GetSession(id uuid.UUID) *Session {
	m.mu.Lock()
	defer m.mu.Unlock()

	s, ok := m.sessions[id]
	if !ok || s.Expired(time.Now(), m.cfg.SessionTimeout) {
		return nil
	}
	return s.clone()
}

// EndSession 结束会话并释放其持有的全部锁。
// 会话不存在或已过期时返回 false，过期会话同样被清除。
func (m *Manager) EndSession(id uuid.UUID) bool {
	m.mu.Lock()
	s, ok := m.sessions[id]
	if !ok {
		m.mu.Unlock()
		return false
	}
	now := time.Now()
	alive := !s.Expired(now, m.cfg.SessionTimeout)
	grants := m.purgeSessionLocked(s, now)
	m.mu.Unlock()

	m.fire(grants)
	return alive
}

// TouchSession 刷新会话活跃时间。不存在或已过期时返回 false，
// 过期会话连同其持有的锁一并清除。
func (m *Manager) TouchSession(id uuid.UUID) bool {
	m.mu.Lock()
	s, ok := m.sessions[id]
	if !ok {
		m.mu.Unlock()
		return false
	}
	now := time.Now()
	if s.Expired(now, m.cfg.SessionTimeout) {
		grants := m.purgeSessionLocked(s, now)
		m.mu.Unlock()
		m.fire(grants)
		return false
	}
	s.LastActivity = now
	m.mu.Unlock()
	return true
}

// AcquireLock 获取资源锁，立即返回，从不阻塞。三种结果：
//   - 获准：返回 (锁, nil)；持有者重复获取延长有效期并返回同一把锁
//   - 排队：资源被他人占用且 wait=true，返回 (nil, 凭据)
//   - 拒绝：返回 (nil, nil)，后续策略由调用方决定
func (m *Manager) AcquireLock(userID string, lockType LockType, resourceID string, opts *AcquireOptions) (*Lock, *Ticket) {
	if userID == "" || resourceID == "" || !lockType.Valid() {
		return nil, nil
	}
	var o AcquireOptions
	if opts != nil {
		o = *opts
	}
	timeout := o.Timeout
	if timeout <= 0 {
		timeout = m.cfg.LockTimeout
	}

	key := lockKey{typ: lockType, resource: resourceID}
	now := time.Now()

	m.mu.Lock()
	var grants []grant
	if cur, ok := m.locks[key]; ok && cur.Expired(now) {
		grants = append(grants, m.removeLockLocked(cur, now)...)
	}

	// 过期锁清除后资源可能已被队首等待者接管，重新检查
	if cur, ok := m.locks[key]; ok {
		if cur.OwnerID == userID {
			cur.ExpiresAt = now.Add(timeout)
			lock := cur.clone()
			m.mu.Unlock()
			m.fire(grants)
			return lock, nil
		}
		if o.Wait {
			w := &waiter{
				token:    uuid.New(),
				userID:   userID,
				timeout:  timeout,
				metadata: copyMeta(o.Metadata),
				onGrant:  o.OnGrant,
				enqueued: now,
			}
			m.queues[key] = append(m.queues[key], w)
			ticket := &Ticket{
				Token:      w.token,
				UserID:     userID,
				Type:       lockType,
				ResourceID: resourceID,
				Position:   len(m.queues[key]),
				EnqueuedAt: now,
			}
			m.mu.Unlock()
			m.fire(grants)
			return nil, ticket
		}
		holder := cur.OwnerID
		m.mu.Unlock()
		m.fire(grants)
		m.log.LockRefused(userID, string(lockType), resourceID, holder)
		return nil, nil
	}

	lock := &Lock{
		ID:         uuid.New(),
		OwnerID:    userID,
		Type:       lockType,
		ResourceID: resourceID,
		AcquiredAt: now,
		ExpiresAt:  now.Add(timeout),
		Metadata:   copyMeta(o.Metadata),
	}
	m.locks[key] = lock
	m.lockIndex[lock.ID] = key
	m.attachLocked(userID, lock.ID, now)
	out := lock.clone()
	m.mu.Unlock()

	m.fire(grants)
	m.log.LockAcquired(lock.ID.String(), userID, string(lockType), resourceID)
	return out, nil
}

// ReleaseLock 释放锁，仅持有者本人可释放。
// 锁不存在、已过期或请求者不是持有者时返回 false。
func (m *Manager) ReleaseLock(lockID uuid.UUID, userID string) bool {
	m.mu.Lock()
	key, ok := m.lockIndex[lockID]
	if !ok {
		m.mu.Unlock()
		return false
	}
	cur := m.locks[key]
	if cur == nil || cur.ID != lockID {
		delete(m.lockIndex, lockID)
		m.mu.Unlock()
		return false
	}
	now := time.Now()
	if cur.Expired(now) {
		grants := m.removeLockLocked(cur, now)
		m.mu.Unlock()
		m.fire(grants)
		return false
	}
	if cur.OwnerID != userID {
		m.mu.Unlock()
		return false
	}
	grants := m.removeLockLocked(cur, now)
	m.mu.Unlock()
	m.fire(grants)
	return true
}

// CheckLock 查询资源当前的锁快照。无锁或锁已过期时返回 nil。
func (m *Manager) CheckLock(lockType LockType, resourceID string) *Lock {
	m.mu.Lock()
	defer m.mu.Unlock()

	l, ok := m.locks[lockKey{typ: lockType, resource: resourceID}]
	if !ok || l.Expired(time.Now()) {
		return nil
	}
	return l.clone()
}

// CancelWait 撤销排队凭据。凭据不在任何队列中时返回 false。
func (m *Manager) CancelWait(token uuid.UUID) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	for key, q := range m.queues {
		for i, w := range q {
			if w.token != token {
				continue
			}
			copy(q[i:], q[i+1:])
			q = q[:len(q)-1]
			if len(q) == 0 {
				delete(m.queues, key)
			} else {
				m.queues[key] = q
			}
			return true
		}
	}
	return false
}

// DetectConflict 检测提议的变更是否与他人持有的锁冲突。
// 冲突时生成并登记冲突记录，否则返回 nil。
func (m *Manager) DetectConflict(opType, resourceID, userID string, proposedChange map[string]any) *Conflict {
	if resourceID == "" || userID == "" {
		return nil
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	now := time.Now()
	for _, t := range AllLockTypes {
		l, ok := m.locks[lockKey{typ: t, resource: resourceID}]
		if !ok || l.Expired(now) || l.OwnerID == userID {
			continue
		}
		c := &Conflict{
			ID:             uuid.New(),
			OpType:         opType,
			ResourceID:     resourceID,
			UserID:         userID,
			HolderID:       l.OwnerID,
			LockID:         l.ID,
			ProposedChange: copyMeta(proposedChange),
			DetectedAt:     now,
		}
		m.conflicts[c.ID] = c
		return c.clone()
	}
	return nil
}

// GetConflict 返回冲突记录快照，不存在时返回 nil。
func (m *Manager) GetConflict(id uuid.UUID) *Conflict {
	m.mu.Lock()
	defer m.mu.Unlock()

	c, ok := m.conflicts[id]
	if !ok {
		return nil
	}
	return c.clone()
}

// PendingConflicts 返回未解决冲突的快照，按检测时间升序。
func (m *Manager) PendingConflicts() []*Conflict {
	m.mu.Lock()
	defer m.mu.Unlock()

	var out []*Conflict
	for _, c := range m.conflicts {
		if !c.Resolved {
			out = append(out, c.clone())
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].DetectedAt.Before(out[j].DetectedAt) })
	return out
}

// ResolveConflict 按指定策略解决冲突。未知冲突、非法策略或
// 重复解决时返回 false。后写者胜/先写者胜会在解决数据中记下胜方。
func (m *Manager) ResolveConflict(id uuid.UUID, strategy Strategy, data map[string]any) bool {
	if !strategy.Valid() {
		return false
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	c, ok := m.conflicts[id]
	if !ok || c.Resolved {
		return false
	}
	now := time.Now()
	c.Resolved = true
	c.ResolvedAt = &now
	c.Strategy = strategy
	c.Resolution = copyMeta(data)
	switch strategy {
	case StrategyLastWriterWins:
		c.Resolution = withWinner(c.Resolution, c.UserID)
	case StrategyFirstWriterWins:
		c.Resolution = withWinner(c.Resolution, c.HolderID)
	}
	return true
}

// Status 协作核心状态报告。
type Status struct {
	ActiveSessions   int            `json:"active_sessions"`
	ActiveLocks      int            `json:"active_locks"`
	PendingConflicts int            `json:"pending_conflicts"`
	UsersOnline      int            `json:"users_online"`
	QueueDepths      map[string]int `json:"queue_depths"`
}

// Status 汇总当前活跃会话、锁、待解决冲突与等待队列深度。
func (m *Manager) Status() Status {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := time.Now()
	st := Status{QueueDepths: make(map[string]int)}
	users := make(map[string]struct{})
	for _, s := range m.sessions {
		if s.Expired(now, m.cfg.SessionTimeout) {
			continue
		}
		st.ActiveSessions++
		users[s.UserID] = struct{}{}
	}
	st.UsersOnline = len(users)
	for _, l := range m.locks {
		if !l.Expired(now) {
			st.ActiveLocks++
		}
	}
	for _, c := range m.conflicts {
		if !c.Resolved {
			st.PendingConflicts++
		}
	}
	for key, q := range m.queues {
		if len(q) > 0 {
			st.QueueDepths[key.String()] = len(q)
		}
	}
	return st
}

// Cleanup 执行一轮清理：移除过期锁并兑现其排队请求、清除空闲
// 超时的会话并释放其持有的锁、删除超过保留期的已解决冲突。
// 未过期的锁绝不会被清理丢弃。返回各类清理数量。
func (m *Manager) Cleanup() (locks, sessions, conflicts int) {
	now := time.Now()

	m.mu.Lock()
	var grants []grant

	var expiredLocks []*Lock
	for _, l := range m.locks {
		if l.Expired(now) {
			expiredLocks = append(expiredLocks, l)
		}
	}
	for _, l := range expiredLocks {
		grants = append(grants, m.removeLockLocked(l, now)...)
	}
	locks = len(expiredLocks)

	var idle []*Session
	for _, s := range m.sessions {
		if s.Expired(now, m.cfg.SessionTimeout) {
			idle = append(idle, s)
		}
	}
	for _, s := range idle {
		grants = append(grants, m.purgeSessionLocked(s, now)...)
	}
	sessions = len(idle)

	for id, c := range m.conflicts {
		if c.Resolved && c.ResolvedAt != nil && now.Sub(*c.ResolvedAt) >= m.cfg.ConflictRetention {
			delete(m.conflicts, id)
			conflicts++
		}
	}
	m.mu.Unlock()

	m.fire(grants)
	m.log.CleanupDone(locks, sessions, conflicts)
	return locks, sessions, conflicts
}

// StartCleanup 启动后台清理循环，ctx 取消后退出。
func (m *Manager) StartCleanup(ctx context.Context) {
	go func() {
		ticker := time.NewTicker(m.cfg.CleanupInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				m.Cleanup()
			}
		}
	}()
}

// grant 待兑现的排队通知，互斥锁释放后触发。
type grant struct {
	fn   func(*Lock)
	lock *Lock
}

// fire 在互斥锁外触发排队兑现的日志与回调。
func (m *Manager) fire(grants []grant) {
	for _, g := range grants {
		m.log.LockAcquired(g.lock.ID.String(), g.lock.OwnerID, string(g.lock.Type), g.lock.ResourceID)
		if g.fn != nil {
			g.fn(g.lock)
		}
	}
}

// removeLockLocked 移除指定的锁并把资源交给队首等待者。
// 须持有 m.mu；按指针比对防止误删接管后的新锁。
func (m *Manager) removeLockLocked(l *Lock, now time.Time) []grant {
	key := lockKey{typ: l.Type, resource: l.ResourceID}
	if cur, ok := m.locks[key]; !ok || cur != l {
		return nil
	}
	delete(m.locks, key)
	delete(m.lockIndex, l.ID)
	m.detachLocked(l.OwnerID, l.ID)
	return m.grantNextLocked(key, now)
}

// grantNextLocked 把资源锁授予队首等待者。须持有 m.mu。
func (m *Manager) grantNextLocked(key lockKey, now time.Time) []grant {
	q := m.queues[key]
	if len(q) == 0 {
		return nil
	}
	w := q[0]
	copy(q, q[1:])
	q = q[:len(q)-1]
	if len(q) == 0 {
		delete(m.queues, key)
	} else {
		m.queues[key] = q
	}

	lock := &Lock{
		ID:         w.token,
		OwnerID:    w.userID,
		Type:       key.typ,
		ResourceID: key.resource,
		AcquiredAt: now,
		ExpiresAt:  now.Add(w.timeout),
		Metadata:   w.metadata,
	}
	m.locks[key] = lock
	m.lockIndex[lock.ID] = key
	m.attachLocked(w.userID, lock.ID, now)
	return []grant{{fn: w.onGrant, lock: lock.clone()}}
}

// purgeSessionLocked 清除会话并释放其持有的全部锁。须持有 m.mu。
func (m *Manager) purgeSessionLocked(s *Session, now time.Time) []grant {
	var grants []grant
	for _, lockID := range s.HeldLocks() {
		key, ok := m.lockIndex[lockID]
		if !ok {
			continue
		}
		l := m.locks[key]
		if l == nil || l.OwnerID != s.UserID {
			continue
		}
		grants = append(grants, m.removeLockLocked(l, now)...)
	}
	delete(m.sessions, s.ID)
	if users := m.byUser[s.UserID]; users != nil {
		delete(users, s.ID)
		if len(users) == 0 {
			delete(m.byUser, s.UserID)
		}
	}
	return grants
}

// attachLocked 把锁记入该用户全部活跃会话。须持有 m.mu。
func (m *Manager) attachLocked(userID string, lockID uuid.UUID, now time.Time) {
	for _, s := range m.byUser[userID] {
		if !s.Expired(now, m.cfg.SessionTimeout) {
			s.locks[lockID] = struct{}{}
		}
	}
}

// detachLocked 把锁从该用户全部会话中移除。须持有 m.mu。
func (m *Manager) detachLocked(userID string, lockID uuid.UUID) {
	for _, s := range m.byUser[userID] {
		delete(s.locks, lockID)
	}
}

// withWinner 在解决数据中记下胜方。
func withWinner(data map[string]any, winner string) map[string]any {
	if data == nil {
		data = make(map[string]any, 1)
	}
	data["winner"] = winner
	return data
}

// copyMeta 浅拷贝元数据，nil 保持 nil。
func copyMeta(meta map[string]any) map[string]any {
	if meta == nil {
		return nil
	}
	out := make(map[string]any, len(meta))
	for k, v := range meta {
		out[k] = v
	}
	return out
}
