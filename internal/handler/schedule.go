package handler

import (
	"context"
	"database/sql"
	stderrors "errors"
	"fmt"
	"net/http"
	"time"

	"github.com/zhiban/zhiban/internal/metrics"
	"github.com/zhiban/zhiban/internal/repository"
	"github.com/zhiban/zhiban/internal/workspace"
	"github.com/zhiban/zhiban/pkg/calendar"
	"github.com/zhiban/zhiban/pkg/collab"
	"github.com/zhiban/zhiban/pkg/errors"
	"github.com/zhiban/zhiban/pkg/holiday"
	"github.com/zhiban/zhiban/pkg/logger"
	"github.com/zhiban/zhiban/pkg/model"
	"github.com/zhiban/zhiban/pkg/scheduler"
	"github.com/zhiban/zhiban/pkg/scheduler/constraint"
	"github.com/zhiban/zhiban/pkg/stats"
	"github.com/zhiban/zhiban/pkg/validator"
)

// GenerateRequest 排班生成请求
type GenerateRequest struct {
	Workspace      string                 `json:"workspace,omitempty"`       // 缺省使用 default 工作区
	UserID         string                 `json:"user_id,omitempty"`         // 触发生成的用户，参与生成锁
	Name           string                 `json:"name,omitempty"`            // 归档名称
	Save           bool                   `json:"save,omitempty"`            // 是否归档到数据库
	HolidayPreset  string                 `json:"holiday_preset,omitempty"`  // 节假日方案，展开后并入配置
	TimeoutSeconds int                    `json:"timeout_seconds,omitempty"` // 生成超时，缺省取服务配置
	Config         *model.SchedulerConfig `json:"config"`
}

// GenerateResponse 排班生成响应
type GenerateResponse struct {
	Workspace string        `json:"workspace"`
	RosterID  string        `json:"roster_id,omitempty"`
	Result    *model.Result `json:"result"`
}

// GenerateSchedule 排班生成API
//
// 同一工作区同一时刻只允许一次生成：生成期间持有整表生成锁，
// 其他用户的生成请求与整表操作会被拒绝
func (h *Handler) GenerateSchedule(w http.ResponseWriter, r *http.Request) {
	var req GenerateRequest
	if appErr := decodeJSON(r, &req); appErr != nil {
		respondError(w, appErr)
		return
	}
	if req.Config == nil {
		respondError(w, errors.InvalidInput("config", "排班配置不能为空"))
		return
	}
	if req.Save {
		if appErr := h.requireDB(); appErr != nil {
			respondError(w, appErr)
			return
		}
	}
	if req.HolidayPreset != "" {
		cal, ok := holiday.Get(req.HolidayPreset)
		if !ok {
			respondError(w, errors.InvalidInput("holiday_preset", "未知的节假日方案: "+req.HolidayPreset))
			return
		}
		if err := cal.ApplyTo(req.Config); err != nil {
			respondError(w, errors.InvalidInput("holiday_preset", err.Error()))
			return
		}
	}

	code := req.Workspace
	if code == "" {
		code = "default"
	}
	userID := req.UserID
	if userID == "" {
		userID = "system"
	}

	ws, appErr := h.ensureWorkspace(code, req.Config)
	if appErr != nil {
		respondError(w, appErr)
		return
	}

	resource := "roster:" + ws.Code
	lock, _ := ws.Collab().AcquireLock(userID, collab.LockScheduleGeneration, resource, nil)
	if lock == nil {
		appErr := errors.LockRefused(string(collab.LockScheduleGeneration), resource).
			WithDetails("该工作区已有生成任务在运行")
		if holder := ws.Collab().CheckLock(collab.LockScheduleGeneration, resource); holder != nil {
			appErr = appErr.WithField("holder", holder.OwnerID)
		}
		respondError(w, appErr)
		return
	}
	defer ws.Collab().ReleaseLock(lock.ID, userID)

	timeout := h.cfg.Engine.GenerateTimeout
	if req.TimeoutSeconds > 0 {
		timeout = time.Duration(req.TimeoutSeconds) * time.Second
	}
	ctx, cancel := context.WithTimeout(r.Context(), timeout)
	defer cancel()

	engine := h.engineFor(ws.Code)

	logger.WithContext(r.Context()).Info().
		Str("workspace", ws.Code).
		Str("user_id", userID).
		Int("workers", len(req.Config.Workers)).
		Str("period", req.Config.StartDate+" ~ "+req.Config.EndDate).
		Msg("接收排班生成请求")

	metrics.IncActiveGenerations()
	start := time.Now()
	result, err := engine.Generate(ctx, req.Config)
	elapsed := time.Since(start)
	metrics.DecActiveGenerations()

	if err != nil {
		metrics.RecordGeneration(ws.Code, "failed", elapsed)
		respondError(w, toAppError(err))
		return
	}

	h.recordGeneration(ws.Code, result, elapsed)

	if err := h.workspaces.AttachResult(ws.Code, req.Config, result); err != nil {
		logger.Get().Warn().Err(err).Str("workspace", ws.Code).Msg("绑定生成结果失败")
	}

	resp := GenerateResponse{Workspace: ws.Code, Result: result}
	if req.Save {
		roster, err := h.saveRoster(r.Context(), ws.Code, userID, req.Name, req.Config, result)
		if err != nil {
			respondError(w, errors.Wrap(err, errors.CodeDatabaseError, "归档值班表失败"))
			return
		}
		resp.RosterID = roster.ID.String()
	}

	respondJSON(w, http.StatusOK, resp)
}

// engineFor 返回工作区专属的排班引擎
func (h *Handler) engineFor(code string) *scheduler.Engine {
	if e, ok := h.engines.Load(code); ok {
		return e.(*scheduler.Engine)
	}
	e, _ := h.engines.LoadOrStore(code, scheduler.NewEngine(h.cfg.Engine.Parallelism))
	return e.(*scheduler.Engine)
}

// ensureWorkspace 获取工作区，不存在时自动创建
func (h *Handler) ensureWorkspace(code string, cfg *model.SchedulerConfig) (*workspace.Workspace, *errors.AppError) {
	ws, err := h.workspaces.Get(code)
	if err == nil {
		return ws, nil
	}
	if stderrors.Is(err, workspace.ErrWorkspaceArchived) {
		return nil, errors.New(errors.CodeForbidden, "工作区已归档").WithField("code", code)
	}

	ws, err = h.workspaces.Create(code, code, cfg)
	if err != nil {
		if stderrors.Is(err, workspace.ErrWorkspaceExists) {
			// 并发创建，重新获取
			if ws, err2 := h.workspaces.Get(code); err2 == nil {
				return ws, nil
			}
		}
		return nil, toAppError(err)
	}
	return ws, nil
}

// recordGeneration 上报生成指标
func (h *Handler) recordGeneration(code string, result *model.Result, elapsed time.Duration) {
	status := "success"
	switch {
	case result.Cancelled:
		status = "cancelled"
	case !result.Success():
		status = "partial"
	}
	metrics.RecordGeneration(code, status, elapsed)

	for _, v := range result.Violations {
		metrics.RecordViolation(string(v.Kind))
	}
	if result.Stats != nil {
		metrics.SetCoverageRate(code, result.Stats.CoverageRate)
		metrics.SetFairnessScore(code, result.Stats.FairnessScore)
		var devSum float64
		for _, st := range result.Stats.Workers {
			if st.Deviation < 0 {
				devSum -= float64(st.Deviation)
			} else {
				devSum += float64(st.Deviation)
			}
		}
		metrics.SetDeviationSum(code, devSum)
	}
}

// saveRoster 在单个事务中归档值班表头、逐日明细与人员档案
func (h *Handler) saveRoster(ctx context.Context, code, userID, name string, cfg *model.SchedulerConfig, result *model.Result) (*model.Roster, error) {
	if name == "" {
		name = fmt.Sprintf("值班表 %s ~ %s", cfg.StartDate, cfg.EndDate)
	}
	roster := &model.Roster{
		WorkspaceID: code,
		Name:        name,
		StartDate:   cfg.StartDate,
		EndDate:     cfg.EndDate,
		CreatedBy:   userID,
		Config:      cfg,
		Result:      result,
	}

	err := h.db.Transaction(ctx, func(tx *sql.Tx) error {
		rosters := repository.NewRosterRepository(tx)
		if err := rosters.Create(ctx, roster); err != nil {
			return err
		}
		if err := rosters.ReplaceAssignments(ctx, roster.ID, cfg, result.Schedule); err != nil {
			return err
		}
		workers := repository.NewWorkerRepository(tx)
		return workers.SyncWorkspace(ctx, code, cfg.Workers)
	})
	if err != nil {
		return nil, err
	}

	logger.Get().Info().
		Str("roster_id", roster.ID.String()).
		Str("workspace", code).
		Msg("值班表归档完成")
	return roster, nil
}

// GenerationProgress 生成进度API
func (h *Handler) GenerationProgress(w http.ResponseWriter, r *http.Request) {
	code := r.URL.Query().Get("workspace")
	if code == "" {
		code = "default"
	}
	e, ok := h.engines.Load(code)
	if !ok {
		respondJSON(w, http.StatusOK, scheduler.Progress{Phase: "idle"})
		return
	}
	respondJSON(w, http.StatusOK, e.(*scheduler.Engine).Progress())
}

// VerifyRequest 值班表校验请求
type VerifyRequest struct {
	Config   *model.SchedulerConfig `json:"config"`
	Schedule model.Schedule         `json:"schedule"`
}

// VerifySchedule 值班表校验API
// 对人工编辑或历史存档的值班表重新评估全部约束
func (h *Handler) VerifySchedule(w http.ResponseWriter, r *http.Request) {
	var req VerifyRequest
	if appErr := decodeJSON(r, &req); appErr != nil {
		respondError(w, appErr)
		return
	}
	if req.Config == nil {
		respondError(w, errors.InvalidInput("config", "排班配置不能为空"))
		return
	}
	if req.Schedule == nil {
		respondError(w, errors.InvalidInput("schedule", "值班表不能为空"))
		return
	}

	report, err := scheduler.Check(req.Config, req.Schedule)
	if err != nil {
		respondError(w, toAppError(err))
		return
	}
	respondJSON(w, http.StatusOK, report)
}

// StatsRequest 统计请求
type StatsRequest struct {
	Config   *model.SchedulerConfig `json:"config"`
	Schedule model.Schedule         `json:"schedule"`
}

// StatsResponse 统计响应
type StatsResponse struct {
	Stats    *model.Statistics      `json:"stats"`
	Fairness *stats.FairnessMetrics `json:"fairness"`
	Coverage *stats.CoverageMetrics `json:"coverage"`
}

// ScheduleStats 值班表统计API
// 汇总工作量偏差、公平性指标与覆盖率
func (h *Handler) ScheduleStats(w http.ResponseWriter, r *http.Request) {
	var req StatsRequest
	if appErr := decodeJSON(r, &req); appErr != nil {
		respondError(w, appErr)
		return
	}
	if req.Schedule == nil {
		respondError(w, errors.InvalidInput("schedule", "值班表不能为空"))
		return
	}

	c, appErr := loadContext(req.Config, req.Schedule)
	if appErr != nil {
		respondError(w, appErr)
		return
	}

	respondJSON(w, http.StatusOK, StatsResponse{
		Stats:    stats.Collect(c, 0, 0, 0),
		Fairness: stats.NewFairnessAnalyzer().Analyze(c),
		Coverage: stats.NewCoverageAnalyzer().Analyze(c),
	})
}

// loadContext 从配置与值班表构建约束上下文，供统计与建议类接口复用
func loadContext(cfg *model.SchedulerConfig, schedule model.Schedule) (*constraint.Context, *errors.AppError) {
	if cfg == nil {
		return nil, errors.InvalidInput("config", "排班配置不能为空")
	}
	if err := validator.ValidateConfig(cfg); err != nil {
		return nil, toAppError(err)
	}
	cal, err := calendar.New(cfg)
	if err != nil {
		return nil, toAppError(err)
	}
	targets := calendar.Targets(cfg.Workers, cal.TotalSlots())
	c := constraint.NewContext(cfg, cal, targets)
	if schedule != nil {
		if err := c.LoadSchedule(schedule); err != nil {
			return nil, toAppError(err)
		}
	}
	return c, nil
}
