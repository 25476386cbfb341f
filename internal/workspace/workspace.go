// Package workspace 提供值班表工作区管理：每个工作区绑定一份排班
// 配置与生成结果，并持有自己的协作管理器，支持多份值班表并行编辑。
package workspace

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/zhiban/zhiban/pkg/collab"
	"github.com/zhiban/zhiban/pkg/model"
)

var (
	ErrWorkspaceNotFound = errors.New("工作区不存在")
	ErrInvalidWorkspace  = errors.New("无效的工作区")
	ErrWorkspaceExists   = errors.New("工作区编码已存在")
	ErrWorkspaceArchived = errors.New("工作区已归档")
	ErrTooManyWorkers    = errors.New("人员数量超过工作区上限")
)

// Settings 工作区配置
type Settings struct {
	MaxWorkers    int `json:"max_workers"`    // 最大人员数
	RetentionDays int `json:"retention_days"` // 闲置保留天数，0 表示永不过期
}

// DefaultSettings 默认工作区配置
func DefaultSettings() Settings {
	return Settings{
		MaxWorkers:    200,
		RetentionDays: 30,
	}
}

// Workspace 值班表工作区
type Workspace struct {
	ID        uuid.UUID              `json:"id"`
	Code      string                 `json:"code"`   // 工作区编码
	Name      string                 `json:"name"`   // 工作区名称
	Status    string                 `json:"status"` // active/archived
	Settings  Settings               `json:"settings"`
	Config    *model.SchedulerConfig `json:"config,omitempty"`
	Result    *model.Result          `json:"result,omitempty"`
	CreatedAt time.Time              `json:"created_at"`
	UpdatedAt time.Time              `json:"updated_at"`
	ExpiresAt *time.Time             `json:"expires_at,omitempty"`

	// 协作状态对 JSON 不可见，经 Collab() 访问
	collab *collab.Manager
}

// IsActive 检查工作区是否活跃
func (w *Workspace) IsActive() bool {
	if w.Status != "active" {
		return false
	}
	if w.ExpiresAt != nil && w.ExpiresAt.Before(time.Now()) {
		return false
	}
	return true
}

// Collab 返回工作区的协作管理器
func (w *Workspace) Collab() *collab.Manager {
	return w.collab
}

// HasResult 检查工作区是否已有生成结果
func (w *Workspace) HasResult() bool {
	return w.Result != nil
}

// Manager 工作区管理器
type Manager struct {
	workspaces map[string]*Workspace // code -> workspace
	mu         sync.RWMutex
	collabCfg  collab.Config
	defaults   Settings
}

// NewManager 创建工作区管理器
// collabCfg 作为每个工作区协作管理器的配置模板
func NewManager(collabCfg collab.Config) *Manager {
	return &Manager{
		workspaces: make(map[string]*Workspace),
		collabCfg:  collabCfg,
		defaults:   DefaultSettings(),
	}
}

// Create 创建工作区，编码重复时拒绝
func (m *Manager) Create(code, name string, cfg *model.SchedulerConfig) (*Workspace, error) {
	if code == "" {
		return nil, ErrInvalidWorkspace
	}
	if cfg != nil && m.defaults.MaxWorkers > 0 && len(cfg.Workers) > m.defaults.MaxWorkers {
		return nil, ErrTooManyWorkers
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.workspaces[code]; exists {
		return nil, ErrWorkspaceExists
	}

	now := time.Now()
	ws := &Workspace{
		ID:        uuid.New(),
		Code:      code,
		Name:      name,
		Status:    "active",
		Settings:  m.defaults,
		Config:    cfg,
		CreatedAt: now,
		UpdatedAt: now,
		collab:    collab.NewManager(m.collabCfg),
	}
	if m.defaults.RetentionDays > 0 {
		exp := now.AddDate(0, 0, m.defaults.RetentionDays)
		ws.ExpiresAt = &exp
	}

	m.workspaces[code] = ws
	return ws, nil
}

// Get 获取工作区，归档或过期的按不可用处理
func (m *Manager) Get(code string) (*Workspace, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	ws, exists := m.workspaces[code]
	if !exists {
		return nil, ErrWorkspaceNotFound
	}
	if !ws.IsActive() {
		return nil, ErrWorkspaceArchived
	}
	return ws, nil
}

// GetByID 通过ID获取工作区
func (m *Manager) GetByID(id uuid.UUID) (*Workspace, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	for _, ws := range m.workspaces {
		if ws.ID == id {
			if !ws.IsActive() {
				return nil, ErrWorkspaceArchived
			}
			return ws, nil
		}
	}
	return nil, ErrWorkspaceNotFound
}

// List 列出全部工作区（按编码排序）
func (m *Manager) List() []*Workspace {
	m.mu.RLock()
	defer m.mu.RUnlock()

	result := make([]*Workspace, 0, len(m.workspaces))
	for _, ws := range m.workspaces {
		result = append(result, ws)
	}
	sort.Slice(result, func(i, j int) bool {
		return result[i].Code < result[j].Code
	})
	return result
}

// AttachResult 绑定生成结果并顺延保留期
func (m *Manager) AttachResult(code string, cfg *model.SchedulerConfig, result *model.Result) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	ws, exists := m.workspaces[code]
	if !exists {
		return ErrWorkspaceNotFound
	}
	if !ws.IsActive() {
		return ErrWorkspaceArchived
	}

	now := time.Now()
	if cfg != nil {
		ws.Config = cfg
	}
	ws.Result = result
	ws.UpdatedAt = now
	if ws.Settings.RetentionDays > 0 {
		exp := now.AddDate(0, 0, ws.Settings.RetentionDays)
		ws.ExpiresAt = &exp
	}
	return nil
}

// Archive 归档工作区，保留数据但拒绝后续访问
func (m *Manager) Archive(code string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	ws, exists := m.workspaces[code]
	if !exists {
		return ErrWorkspaceNotFound
	}
	ws.Status = "archived"
	ws.UpdatedAt = time.Now()
	return nil
}

// Remove 移除工作区
func (m *Manager) Remove(code string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.workspaces, code)
}

// Sweep 清理一轮：移除过期工作区，并驱动存留工作区的协作清理
// 返回移除的工作区数
func (m *Manager) Sweep() int {
	m.mu.Lock()
	var expired []string
	var live []*Workspace
	now := time.Now()
	for code, ws := range m.workspaces {
		if ws.ExpiresAt != nil && ws.ExpiresAt.Before(now) {
			expired = append(expired, code)
			continue
		}
		live = append(live, ws)
	}
	for _, code := range expired {
		delete(m.workspaces, code)
	}
	m.mu.Unlock()

	// 协作清理在注册表锁外进行，各工作区互不阻塞
	for _, ws := range live {
		ws.collab.Cleanup()
	}
	return len(expired)
}

// StartSweep 启动周期清理，上下文取消时停止
func (m *Manager) StartSweep(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = time.Minute
	}
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				m.Sweep()
			}
		}
	}()
}

// workspaceContextKey 工作区上下文键
type workspaceContextKey struct{}

// WithWorkspace 将工作区添加到上下文
func WithWorkspace(ctx context.Context, ws *Workspace) context.Context {
	return context.WithValue(ctx, workspaceContextKey{}, ws)
}

// FromContext 从上下文获取工作区
func FromContext(ctx context.Context) (*Workspace, bool) {
	ws, ok := ctx.Value(workspaceContextKey{}).(*Workspace)
	return ws, ok
}

// CreateDefault 创建默认工作区（开发测试用）
func (m *Manager) CreateDefault() *Workspace {
	ws, err := m.Create("default", "默认工作区", nil)
	if err != nil {
		existing, _ := m.Get("default")
		return existing
	}
	return ws
}
