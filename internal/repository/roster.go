// Package repository 提供数据访问层
package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/zhiban/zhiban/pkg/model"
)

// RosterAssignment 值班表的单条排班记录（某日某槽位由谁值班）
type RosterAssignment struct {
	ID         uuid.UUID `json:"id"`
	RosterID   uuid.UUID `json:"roster_id"`
	Date       string    `json:"date"` // YYYY-MM-DD
	Post       int       `json:"post"` // 当日槽位编号，从 0 开始
	WorkerID   string    `json:"worker_id"`
	WorkerName string    `json:"worker_name,omitempty"`
	CreatedAt  time.Time `json:"created_at"`
}

// RosterRepositoryInterface 值班表归档仓储接口
type RosterRepositoryInterface interface {
	// 值班表档案操作
	Create(ctx context.Context, roster *model.Roster) error
	GetByID(ctx context.Context, id uuid.UUID) (*model.Roster, error)
	Update(ctx context.Context, roster *model.Roster) error
	Delete(ctx context.Context, id uuid.UUID) error
	List(ctx context.Context, filter ListFilter) ([]*model.Roster, int, error)

	// 排班明细操作
	ReplaceAssignments(ctx context.Context, rosterID uuid.UUID, cfg *model.SchedulerConfig, schedule model.Schedule) error
	GetAssignments(ctx context.Context, rosterID uuid.UUID) ([]*RosterAssignment, error)
	GetAssignmentsByWorker(ctx context.Context, workerID string, startDate, endDate string) ([]*RosterAssignment, error)
	DeleteAssignments(ctx context.Context, rosterID uuid.UUID) error

	// 状态与查询
	Publish(ctx context.Context, id uuid.UUID) error
	GetLatest(ctx context.Context, workspace string) (*model.Roster, error)
	CountByDateRange(ctx context.Context, workspace string, startDate, endDate, status string) (int, error)
}

// RosterRepository 值班表归档仓储实现
type RosterRepository struct {
	db DB
}

// NewRosterRepository 创建值班表仓储
func NewRosterRepository(db DB) *RosterRepository {
	return &RosterRepository{db: db}
}

// Create 归档一份值班表（配置与生成结果存 JSONB）
func (r *RosterRepository) Create(ctx context.Context, roster *model.Roster) error {
	if roster.ID == uuid.Nil {
		roster.ID = uuid.New()
	}
	now := time.Now()
	roster.CreatedAt = now
	roster.UpdatedAt = now
	if roster.Status == "" {
		roster.Status = "draft"
	}
	if roster.Version == 0 {
		roster.Version = 1
	}

	configJSON, _ := json.Marshal(roster.Config)
	resultJSON, _ := json.Marshal(roster.Result)

	query := `
		INSERT INTO rosters (
			id, workspace_id, name, start_date, end_date, status,
			version, created_by, published_at, config, result, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
	`

	_, err := r.db.ExecContext(ctx, query,
		roster.ID, roster.WorkspaceID, roster.Name, roster.StartDate, roster.EndDate, roster.Status,
		roster.Version, roster.CreatedBy, roster.PublishedAt, configJSON, resultJSON,
		roster.CreatedAt, roster.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("归档值班表失败: %w", err)
	}

	return nil
}

// GetByID 根据ID获取值班表
func (r *RosterRepository) GetByID(ctx context.Context, id uuid.UUID) (*model.Roster, error) {
	query := `
		SELECT id, workspace_id, name, start_date, end_date, status,
			version, created_by, published_at, config, result, created_at, updated_at
		FROM rosters
		WHERE id = $1 AND deleted_at IS NULL
	`

	return r.scanRoster(r.db.QueryRowContext(ctx, query, id))
}

// Update 更新值班表（重新生成后版本号递增）
func (r *RosterRepository) Update(ctx context.Context, roster *model.Roster) error {
	roster.UpdatedAt = time.Now()
	configJSON, _ := json.Marshal(roster.Config)
	resultJSON, _ := json.Marshal(roster.Result)

	query := `
		UPDATE rosters SET
			name = $2, status = $3, version = version + 1,
			config = $4, result = $5, updated_at = $6
		WHERE id = $1 AND deleted_at IS NULL
	`

	result, err := r.db.ExecContext(ctx, query,
		roster.ID, roster.Name, roster.Status, configJSON, resultJSON, roster.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("更新值班表失败: %w", err)
	}

	rows, _ := result.RowsAffected()
	if rows == 0 {
		return fmt.Errorf("值班表不存在")
	}
	roster.Version++

	return nil
}

// Delete 软删除值班表（明细保留，随档案一并恢复）
func (r *RosterRepository) Delete(ctx context.Context, id uuid.UUID) error {
	query := `UPDATE rosters SET deleted_at = $2 WHERE id = $1 AND deleted_at IS NULL`

	result, err := r.db.ExecContext(ctx, query, id, time.Now())
	if err != nil {
		return fmt.Errorf("删除值班表失败: %w", err)
	}

	rows, _ := result.RowsAffected()
	if rows == 0 {
		return fmt.Errorf("值班表不存在")
	}

	return nil
}

// List 列出值班表
func (r *RosterRepository) List(ctx context.Context, filter ListFilter) ([]*model.Roster, int, error) {
	var conditions []string
	var args []interface{}
	argNum := 1

	conditions = append(conditions, "deleted_at IS NULL")

	if filter.Workspace != "" {
		conditions = append(conditions, fmt.Sprintf("workspace_id = $%d", argNum))
		args = append(args, filter.Workspace)
		argNum++
	}

	if filter.Status != "" {
		conditions = append(conditions, fmt.Sprintf("status = $%d", argNum))
		args = append(args, filter.Status)
		argNum++
	}

	if filter.Search != "" {
		conditions = append(conditions, fmt.Sprintf("name ILIKE $%d", argNum))
		args = append(args, "%"+filter.Search+"%")
		argNum++
	}

	if filter.StartDate != "" {
		conditions = append(conditions, fmt.Sprintf("start_date >= $%d", argNum))
		args = append(args, filter.StartDate)
		argNum++
	}

	if filter.EndDate != "" {
		conditions = append(conditions, fmt.Sprintf("end_date <= $%d", argNum))
		args = append(args, filter.EndDate)
		argNum++
	}

	whereClause := "WHERE " + strings.Join(conditions, " AND ")

	// 计数
	countQuery := fmt.Sprintf("SELECT COUNT(*) FROM rosters %s", whereClause)
	var total int
	if err := r.db.QueryRowContext(ctx, countQuery, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("统计值班表数量失败: %w", err)
	}

	orderBy := filter.OrderBy
	if orderBy == "" {
		orderBy = "created_at"
	}
	orderDir := filter.OrderDir
	if orderDir == "" {
		orderDir = "desc"
	}

	query := fmt.Sprintf(`
		SELECT id, workspace_id, name, start_date, end_date, status,
			version, created_by, published_at, config, result, created_at, updated_at
		FROM rosters %s
		ORDER BY %s %s
		LIMIT $%d OFFSET $%d
	`, whereClause, orderBy, orderDir, argNum, argNum+1)

	args = append(args, filter.Limit, filter.Offset)

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("查询值班表列表失败: %w", err)
	}
	defer rows.Close()

	var rosters []*model.Roster
	for rows.Next() {
		roster, err := r.scanRoster(rows)
		if err != nil {
			return nil, 0, err
		}
		rosters = append(rosters, roster)
	}

	return rosters, total, nil
}

// ReplaceAssignments 用排班结果重写值班表的明细行
// 每个已填充的 (日期, 槽位) 一行，空槽位不落库
func (r *RosterRepository) ReplaceAssignments(ctx context.Context, rosterID uuid.UUID, cfg *model.SchedulerConfig, schedule model.Schedule) error {
	if err := r.DeleteAssignments(ctx, rosterID); err != nil {
		return err
	}

	dates := make([]string, 0, len(schedule))
	for date := range schedule {
		dates = append(dates, date)
	}
	sort.Strings(dates)

	now := time.Now()
	for _, date := range dates {
		for post, workerID := range schedule[date] {
			if workerID == model.EmptySlot {
				continue
			}
			name := ""
			if w := cfg.WorkerByID(workerID); w != nil {
				name = w.Name
			}
			a := &RosterAssignment{
				ID:         uuid.New(),
				RosterID:   rosterID,
				Date:       date,
				Post:       post,
				WorkerID:   workerID,
				WorkerName: name,
				CreatedAt:  now,
			}
			if err := r.createAssignment(ctx, a); err != nil {
				return err
			}
		}
	}

	return nil
}

// createAssignment 写入单条排班明细
func (r *RosterRepository) createAssignment(ctx context.Context, a *RosterAssignment) error {
	query := `
		INSERT INTO roster_assignments (
			id, roster_id, date, post, worker_id, worker_name, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7)
	`

	_, err := r.db.ExecContext(ctx, query,
		a.ID, a.RosterID, a.Date, a.Post, a.WorkerID, a.WorkerName, a.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("写入排班明细失败: %w", err)
	}

	return nil
}

// GetAssignments 获取值班表的全部排班明细
func (r *RosterRepository) GetAssignments(ctx context.Context, rosterID uuid.UUID) ([]*RosterAssignment, error) {
	query := `
		SELECT id, roster_id, date, post, worker_id, worker_name, created_at
		FROM roster_assignments
		WHERE roster_id = $1
		ORDER BY date, post
	`

	rows, err := r.db.QueryContext(ctx, query, rosterID)
	if err != nil {
		return nil, fmt.Errorf("查询排班明细失败: %w", err)
	}
	defer rows.Close()

	return r.scanAssignments(rows)
}

// GetAssignmentsByWorker 获取某人员在日期范围内的排班明细
func (r *RosterRepository) GetAssignmentsByWorker(ctx context.Context, workerID string, startDate, endDate string) ([]*RosterAssignment, error) {
	query := `
		SELECT id, roster_id, date, post, worker_id, worker_name, created_at
		FROM roster_assignments
		WHERE worker_id = $1 AND date >= $2 AND date <= $3
		ORDER BY date, post
	`

	rows, err := r.db.QueryContext(ctx, query, workerID, startDate, endDate)
	if err != nil {
		return nil, fmt.Errorf("查询人员排班失败: %w", err)
	}
	defer rows.Close()

	return r.scanAssignments(rows)
}

// DeleteAssignments 删除值班表的全部排班明细
func (r *RosterRepository) DeleteAssignments(ctx context.Context, rosterID uuid.UUID) error {
	_, err := r.db.ExecContext(ctx, "DELETE FROM roster_assignments WHERE roster_id = $1", rosterID)
	if err != nil {
		return fmt.Errorf("删除排班明细失败: %w", err)
	}
	return nil
}

// Publish 发布值班表（仅草稿可发布）
func (r *RosterRepository) Publish(ctx context.Context, id uuid.UUID) error {
	now := time.Now()
	query := `
		UPDATE rosters SET status = 'published', published_at = $2, updated_at = $2
		WHERE id = $1 AND status = 'draft' AND deleted_at IS NULL
	`

	result, err := r.db.ExecContext(ctx, query, id, now)
	if err != nil {
		return fmt.Errorf("发布值班表失败: %w", err)
	}

	rows, _ := result.RowsAffected()
	if rows == 0 {
		return fmt.Errorf("值班表不存在或不是草稿状态")
	}

	return nil
}

// GetLatest 获取工作区内最新归档的值班表
func (r *RosterRepository) GetLatest(ctx context.Context, workspace string) (*model.Roster, error) {
	query := `
		SELECT id, workspace_id, name, start_date, end_date, status,
			version, created_by, published_at, config, result, created_at, updated_at
		FROM rosters
		WHERE workspace_id = $1 AND deleted_at IS NULL
		ORDER BY created_at DESC
		LIMIT 1
	`

	return r.scanRoster(r.db.QueryRowContext(ctx, query, workspace))
}

// CountByDateRange 统计工作区内与日期范围相交的值班表数
// status 为空时统计全部状态
func (r *RosterRepository) CountByDateRange(ctx context.Context, workspace string, startDate, endDate, status string) (int, error) {
	query := `
		SELECT COUNT(*) FROM rosters
		WHERE workspace_id = $1 AND start_date <= $3 AND end_date >= $2 AND deleted_at IS NULL
	`
	args := []interface{}{workspace, startDate, endDate}
	if status != "" {
		query += " AND status = $4"
		args = append(args, status)
	}

	var count int
	if err := r.db.QueryRowContext(ctx, query, args...).Scan(&count); err != nil {
		return 0, fmt.Errorf("统计值班表数量失败: %w", err)
	}
	return count, nil
}

// scanRoster 扫描单行值班表档案
// *sql.Row 与 *sql.Rows 均实现 Scanner，查不到时返回 (nil, nil)
func (r *RosterRepository) scanRoster(s Scanner) (*model.Roster, error) {
	roster := &model.Roster{}
	var configJSON, resultJSON []byte

	err := s.Scan(
		&roster.ID, &roster.WorkspaceID, &roster.Name, &roster.StartDate, &roster.EndDate, &roster.Status,
		&roster.Version, &roster.CreatedBy, &roster.PublishedAt, &configJSON, &resultJSON,
		&roster.CreatedAt, &roster.UpdatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("扫描值班表失败: %w", err)
	}

	if len(configJSON) > 0 {
		json.Unmarshal(configJSON, &roster.Config)
	}
	if len(resultJSON) > 0 {
		json.Unmarshal(resultJSON, &roster.Result)
	}

	return roster, nil
}

// scanAssignments 扫描排班明细行
func (r *RosterRepository) scanAssignments(rows *sql.Rows) ([]*RosterAssignment, error) {
	var assignments []*RosterAssignment
	for rows.Next() {
		a := &RosterAssignment{}
		if err := rows.Scan(
			&a.ID, &a.RosterID, &a.Date, &a.Post,
			&a.WorkerID, &a.WorkerName, &a.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("扫描排班明细失败: %w", err)
		}
		assignments = append(assignments, a)
	}
	return assignments, nil
}
