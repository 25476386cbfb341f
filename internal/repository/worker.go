// Package repository 提供数据访问层
package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/zhiban/zhiban/pkg/model"
)

// WorkerRecord 值班人员档案
// Profile 存放完整的排班属性（不可用日、强制值班日、不相容关系等），
// 标量字段冗余成列以便检索
type WorkerRecord struct {
	ID             uuid.UUID    `json:"id"`
	Workspace      string       `json:"workspace"`
	Code           string       `json:"code"` // 排班配置中的人员ID
	Name           string       `json:"name"`
	WorkPercentage int          `json:"work_percentage"`
	Status         string       `json:"status"` // active/inactive
	Profile        model.Worker `json:"profile"`
	CreatedAt      time.Time    `json:"created_at"`
	UpdatedAt      time.Time    `json:"updated_at"`
}

// NewWorkerRecord 从排班人员构造档案
func NewWorkerRecord(workspace string, w model.Worker) *WorkerRecord {
	return &WorkerRecord{
		ID:             uuid.New(),
		Workspace:      workspace,
		Code:           w.ID,
		Name:           w.Name,
		WorkPercentage: w.WorkPercentage,
		Status:         "active",
		Profile:        w,
	}
}

// ToWorker 还原为排班人员（列上的标量覆盖 Profile 中的副本）
func (rec *WorkerRecord) ToWorker() *model.Worker {
	w := rec.Profile
	w.ID = rec.Code
	w.Name = rec.Name
	w.WorkPercentage = rec.WorkPercentage
	return &w
}

// WorkerRepositoryInterface 人员档案仓储接口
type WorkerRepositoryInterface interface {
	Create(ctx context.Context, rec *WorkerRecord) error
	GetByID(ctx context.Context, id uuid.UUID) (*WorkerRecord, error)
	GetByCode(ctx context.Context, workspace, code string) (*WorkerRecord, error)
	Update(ctx context.Context, rec *WorkerRecord) error
	Delete(ctx context.Context, id uuid.UUID) error
	List(ctx context.Context, filter ListFilter) ([]*WorkerRecord, int, error)
	ListActive(ctx context.Context, workspace string) ([]*model.Worker, error)
	SyncWorkspace(ctx context.Context, workspace string, workers []*model.Worker) error
}

// WorkerRepository 值班人员仓储
type WorkerRepository struct {
	db DB
}

// NewWorkerRepository 创建人员仓储
func NewWorkerRepository(db DB) *WorkerRepository {
	return &WorkerRepository{db: db}
}

// Create 创建人员档案
func (r *WorkerRepository) Create(ctx context.Context, rec *WorkerRecord) error {
	if rec.ID == uuid.Nil {
		rec.ID = uuid.New()
	}
	now := time.Now()
	rec.CreatedAt = now
	rec.UpdatedAt = now
	if rec.Status == "" {
		rec.Status = "active"
	}

	profileJSON, _ := json.Marshal(rec.Profile)

	query := `
		INSERT INTO workers (
			id, workspace, code, name, work_percentage, status,
			profile, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`

	_, err := r.db.ExecContext(ctx, query,
		rec.ID, rec.Workspace, rec.Code, rec.Name, rec.WorkPercentage, rec.Status,
		profileJSON, rec.CreatedAt, rec.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("创建人员档案失败: %w", err)
	}

	return nil
}

// GetByID 根据ID获取人员
func (r *WorkerRepository) GetByID(ctx context.Context, id uuid.UUID) (*WorkerRecord, error) {
	query := `
		SELECT id, workspace, code, name, work_percentage, status,
			profile, created_at, updated_at
		FROM workers
		WHERE id = $1 AND deleted_at IS NULL
	`

	return r.scanWorker(r.db.QueryRowContext(ctx, query, id))
}

// GetByCode 根据工作区与人员编号获取人员
func (r *WorkerRepository) GetByCode(ctx context.Context, workspace, code string) (*WorkerRecord, error) {
	query := `
		SELECT id, workspace, code, name, work_percentage, status,
			profile, created_at, updated_at
		FROM workers
		WHERE workspace = $1 AND code = $2 AND deleted_at IS NULL
	`

	return r.scanWorker(r.db.QueryRowContext(ctx, query, workspace, code))
}

// Update 更新人员档案
func (r *WorkerRepository) Update(ctx context.Context, rec *WorkerRecord) error {
	rec.UpdatedAt = time.Now()

	profileJSON, _ := json.Marshal(rec.Profile)

	query := `
		UPDATE workers SET
			name = $2, work_percentage = $3, status = $4,
			profile = $5, updated_at = $6
		WHERE id = $1 AND deleted_at IS NULL
	`

	result, err := r.db.ExecContext(ctx, query,
		rec.ID, rec.Name, rec.WorkPercentage, rec.Status, profileJSON, rec.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("更新人员档案失败: %w", err)
	}

	rows, _ := result.RowsAffected()
	if rows == 0 {
		return fmt.Errorf("人员不存在")
	}

	return nil
}

// Delete 软删除人员
func (r *WorkerRepository) Delete(ctx context.Context, id uuid.UUID) error {
	query := `UPDATE workers SET deleted_at = $2 WHERE id = $1 AND deleted_at IS NULL`

	result, err := r.db.ExecContext(ctx, query, id, time.Now())
	if err != nil {
		return fmt.Errorf("删除人员失败: %w", err)
	}

	rows, _ := result.RowsAffected()
	if rows == 0 {
		return fmt.Errorf("人员不存在")
	}

	return nil
}

// List 查询人员列表
func (r *WorkerRepository) List(ctx context.Context, filter ListFilter) ([]*WorkerRecord, int, error) {
	var conditions []string
	var args []interface{}
	argNum := 1

	conditions = append(conditions, "deleted_at IS NULL")

	if filter.Workspace != "" {
		conditions = append(conditions, fmt.Sprintf("workspace = $%d", argNum))
		args = append(args, filter.Workspace)
		argNum++
	}

	if filter.Status != "" {
		conditions = append(conditions, fmt.Sprintf("status = $%d", argNum))
		args = append(args, filter.Status)
		argNum++
	}

	if filter.Search != "" {
		conditions = append(conditions, fmt.Sprintf("(name ILIKE $%d OR code ILIKE $%d)", argNum, argNum))
		args = append(args, "%"+filter.Search+"%")
		argNum++
	}

	whereClause := strings.Join(conditions, " AND ")

	// 查询总数
	countQuery := fmt.Sprintf("SELECT COUNT(*) FROM workers WHERE %s", whereClause)
	var total int
	if err := r.db.QueryRowContext(ctx, countQuery, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("统计人员数量失败: %w", err)
	}

	orderBy := filter.OrderBy
	if orderBy == "" {
		orderBy = "code"
	}
	orderDir := filter.OrderDir
	if orderDir == "" {
		orderDir = "asc"
	}

	query := fmt.Sprintf(`
		SELECT id, workspace, code, name, work_percentage, status,
			profile, created_at, updated_at
		FROM workers
		WHERE %s
		ORDER BY %s %s
		LIMIT $%d OFFSET $%d
	`, whereClause, orderBy, orderDir, argNum, argNum+1)

	args = append(args, filter.Limit, filter.Offset)

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("查询人员列表失败: %w", err)
	}
	defer rows.Close()

	var records []*WorkerRecord
	for rows.Next() {
		rec, err := r.scanWorker(rows)
		if err != nil {
			return nil, 0, err
		}
		records = append(records, rec)
	}

	return records, total, nil
}

// ListActive 获取工作区内全部在岗人员，直接还原为排班人员列表
func (r *WorkerRepository) ListActive(ctx context.Context, workspace string) ([]*model.Worker, error) {
	filter := DefaultListFilter().WithWorkspace(workspace).WithStatus("active").WithLimit(10000)
	records, _, err := r.List(ctx, filter)
	if err != nil {
		return nil, err
	}

	workers := make([]*model.Worker, 0, len(records))
	for _, rec := range records {
		workers = append(workers, rec.ToWorker())
	}
	return workers, nil
}

// SyncWorkspace 将排班配置中的人员名单同步到工作区档案
// 已存在的按编号更新，缺失的新建；不动未出现在名单中的档案
func (r *WorkerRepository) SyncWorkspace(ctx context.Context, workspace string, workers []*model.Worker) error {
	for _, w := range workers {
		existing, err := r.GetByCode(ctx, workspace, w.ID)
		if err != nil {
			return err
		}
		if existing == nil {
			if err := r.Create(ctx, NewWorkerRecord(workspace, *w)); err != nil {
				return err
			}
			continue
		}
		existing.Name = w.Name
		existing.WorkPercentage = w.WorkPercentage
		existing.Profile = *w
		if err := r.Update(ctx, existing); err != nil {
			return err
		}
	}
	return nil
}

// scanWorker 扫描单行人员档案
func (r *WorkerRepository) scanWorker(s Scanner) (*WorkerRecord, error) {
	rec := &WorkerRecord{}
	var profileJSON []byte

	err := s.Scan(
		&rec.ID, &rec.Workspace, &rec.Code, &rec.Name, &rec.WorkPercentage, &rec.Status,
		&profileJSON, &rec.CreatedAt, &rec.UpdatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("扫描人员档案失败: %w", err)
	}

	if len(profileJSON) > 0 {
		json.Unmarshal(profileJSON, &rec.Profile)
	}

	return rec, nil
}
