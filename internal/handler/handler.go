// Package handler 提供值班排班服务的HTTP处理器
package handler

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"net/http"
	"runtime"
	"strconv"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"

	"github.com/zhiban/zhiban/internal/config"
	"github.com/zhiban/zhiban/internal/database"
	"github.com/zhiban/zhiban/internal/metrics"
	"github.com/zhiban/zhiban/internal/repository"
	"github.com/zhiban/zhiban/internal/rules"
	"github.com/zhiban/zhiban/internal/workspace"
	"github.com/zhiban/zhiban/pkg/errors"
	"github.com/zhiban/zhiban/pkg/holiday"
)

// VersionInfo 构建版本信息，由 main 经 ldflags 注入
type VersionInfo struct {
	Version   string `json:"version"`
	BuildTime string `json:"build_time"`
	GitCommit string `json:"git_commit"`
}

// Handler HTTP处理器集合
// db 为空时归档类接口返回数据库未配置错误，其余接口不受影响
type Handler struct {
	cfg        *config.Config
	workspaces *workspace.Manager
	db         *database.DB
	rosters    repository.RosterRepositoryInterface
	workers    repository.WorkerRepositoryInterface
	version    VersionInfo
	startedAt  time.Time

	// 工作区编码 -> 排班引擎，同一工作区的生成进度可被并发轮询
	engines sync.Map
}

// New 创建处理器集合
func New(cfg *config.Config, workspaces *workspace.Manager, db *database.DB, version VersionInfo) *Handler {
	h := &Handler{
		cfg:        cfg,
		workspaces: workspaces,
		db:         db,
		version:    version,
		startedAt:  time.Now(),
	}
	if db != nil {
		h.rosters = repository.NewRosterRepository(db)
		h.workers = repository.NewWorkerRepository(db)
	}
	return h
}

// Router 构建路由表
func (h *Handler) Router() *mux.Router {
	r := mux.NewRouter()

	r.HandleFunc("/health", h.Health).Methods(http.MethodGet)
	r.HandleFunc("/version", h.Version).Methods(http.MethodGet)
	if h.cfg == nil || h.cfg.Metrics.Enabled {
		path := "/metrics"
		if h.cfg != nil && h.cfg.Metrics.Path != "" {
			path = h.cfg.Metrics.Path
		}
		r.Handle(path, metrics.Handler()).Methods(http.MethodGet)
	}

	api := r.PathPrefix("/api/v1").Subrouter()
	api.HandleFunc("/rules", h.Rules).Methods(http.MethodGet)
	api.HandleFunc("/holidays", h.HolidayPresets).Methods(http.MethodGet)
	api.HandleFunc("/holidays/{name}", h.ExpandHolidays).Methods(http.MethodGet)

	// 排班引擎
	api.HandleFunc("/schedule/generate", h.GenerateSchedule).Methods(http.MethodPost)
	api.HandleFunc("/schedule/progress", h.GenerationProgress).Methods(http.MethodGet)
	api.HandleFunc("/schedule/verify", h.VerifySchedule).Methods(http.MethodPost)
	api.HandleFunc("/schedule/stats", h.ScheduleStats).Methods(http.MethodPost)
	api.HandleFunc("/swaps/suggest", h.SuggestSwaps).Methods(http.MethodPost)
	api.HandleFunc("/replacements/find", h.FindReplacements).Methods(http.MethodPost)

	// 工作区
	api.HandleFunc("/workspaces", h.CreateWorkspace).Methods(http.MethodPost)
	api.HandleFunc("/workspaces", h.ListWorkspaces).Methods(http.MethodGet)
	api.HandleFunc("/workspaces/{code}", h.GetWorkspace).Methods(http.MethodGet)
	api.HandleFunc("/workspaces/{code}", h.ArchiveWorkspace).Methods(http.MethodDelete)
	api.HandleFunc("/workspaces/{code}/workers", h.ListWorkers).Methods(http.MethodGet)

	// 协作：会话
	api.HandleFunc("/workspaces/{code}/sessions", h.CreateSession).Methods(http.MethodPost)
	api.HandleFunc("/workspaces/{code}/sessions/{id}", h.GetSession).Methods(http.MethodGet)
	api.HandleFunc("/workspaces/{code}/sessions/{id}/touch", h.TouchSession).Methods(http.MethodPost)
	api.HandleFunc("/workspaces/{code}/sessions/{id}", h.EndSession).Methods(http.MethodDelete)

	// 协作：资源锁
	api.HandleFunc("/workspaces/{code}/locks", h.AcquireLock).Methods(http.MethodPost)
	api.HandleFunc("/workspaces/{code}/locks/{id}", h.ReleaseLock).Methods(http.MethodDelete)
	api.HandleFunc("/workspaces/{code}/locks/{type}/{resource}", h.CheckLock).Methods(http.MethodGet)
	api.HandleFunc("/workspaces/{code}/waiters/{token}", h.CancelWait).Methods(http.MethodDelete)

	// 协作：冲突
	api.HandleFunc("/workspaces/{code}/conflicts/detect", h.DetectConflict).Methods(http.MethodPost)
	api.HandleFunc("/workspaces/{code}/conflicts", h.ListConflicts).Methods(http.MethodGet)
	api.HandleFunc("/workspaces/{code}/conflicts/{id}", h.GetConflict).Methods(http.MethodGet)
	api.HandleFunc("/workspaces/{code}/conflicts/{id}/resolve", h.ResolveConflict).Methods(http.MethodPost)
	api.HandleFunc("/workspaces/{code}/collab/status", h.CollabStatus).Methods(http.MethodGet)

	// 值班表归档
	api.HandleFunc("/workspaces/{code}/rosters", h.ListRosters).Methods(http.MethodGet)
	api.HandleFunc("/workspaces/{code}/rosters/latest", h.LatestRoster).Methods(http.MethodGet)
	api.HandleFunc("/rosters/{id}", h.GetRoster).Methods(http.MethodGet)
	api.HandleFunc("/rosters/{id}", h.DeleteRoster).Methods(http.MethodDelete)
	api.HandleFunc("/rosters/{id}/assignments", h.RosterAssignments).Methods(http.MethodGet)
	api.HandleFunc("/rosters/{id}/publish", h.PublishRoster).Methods(http.MethodPost)
	api.HandleFunc("/assignments", h.WorkerAssignments).Methods(http.MethodGet)

	r.NotFoundHandler = http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		respondError(w, errors.New(errors.CodeNotFound, "接口不存在").WithDetails(req.URL.Path))
	})
	r.MethodNotAllowedHandler = http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		appErr := errors.New(errors.CodeInvalidInput, "请求方法不支持").WithDetails(req.Method + " " + req.URL.Path)
		appErr.HTTPStatus = http.StatusMethodNotAllowed
		respondError(w, appErr)
	})

	return r
}

// HealthResponse 健康检查响应
type HealthResponse struct {
	Status        string  `json:"status"`
	Time          string  `json:"time"`
	UptimeSeconds float64 `json:"uptime_seconds"`
	Database      string  `json:"database"`
	Workspaces    int     `json:"workspaces"`
}

// Health 健康检查API
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	resp := HealthResponse{
		Status:        "ok",
		Time:          time.Now().Format(time.RFC3339),
		UptimeSeconds: time.Since(h.startedAt).Seconds(),
		Database:      "unconfigured",
		Workspaces:    len(h.workspaces.List()),
	}

	if h.db != nil {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		if err := h.db.Health(ctx); err != nil {
			resp.Status = "degraded"
			resp.Database = "error"
		} else {
			resp.Database = "ok"
			st := h.db.Stats()
			metrics.SetDBConnections(st.OpenConnections, st.Idle, st.InUse)
		}
	}

	status := http.StatusOK
	if resp.Status != "ok" {
		status = http.StatusServiceUnavailable
	}
	respondJSON(w, status, resp)
}

// Version 版本信息API
func (h *Handler) Version(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]string{
		"version":    h.version.Version,
		"build_time": h.version.BuildTime,
		"git_commit": h.version.GitCommit,
		"go_version": runtime.Version(),
	})
}

// Rules 规则目录API
func (h *Handler) Rules(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, rules.CatalogResponse{Rules: rules.Catalog()})
}

// HolidayPresets 节假日方案列表API
func (h *Handler) HolidayPresets(w http.ResponseWriter, r *http.Request) {
	presets := holiday.Presets()
	respondJSON(w, http.StatusOK, map[string]interface{}{
		"presets": presets,
		"count":   len(presets),
	})
}

// ExpandHolidays 节假日展开API
// 给定 start/end 时展开区间，否则展开 year 指定的整年
func (h *Handler) ExpandHolidays(w http.ResponseWriter, r *http.Request) {
	name := mux.Vars(r)["name"]
	cal, ok := holiday.Get(name)
	if !ok {
		respondError(w, errors.NotFound("holiday_preset", name))
		return
	}

	q := r.URL.Query()
	start, end := q.Get("start"), q.Get("end")
	if start == "" && end == "" {
		year := queryInt(r, "year", time.Now().Year())
		dates := cal.Expand(year)
		respondJSON(w, http.StatusOK, map[string]interface{}{
			"name":  name,
			"year":  year,
			"dates": dates,
			"count": len(dates),
		})
		return
	}

	dates, err := cal.ExpandRange(start, end)
	if err != nil {
		respondError(w, errors.InvalidInput("start/end", err.Error()))
		return
	}
	respondJSON(w, http.StatusOK, map[string]interface{}{
		"name":  name,
		"start": start,
		"end":   end,
		"dates": dates,
		"count": len(dates),
	})
}

// respondJSON 返回JSON响应
func respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

// respondError 返回错误响应
func respondError(w http.ResponseWriter, err *errors.AppError) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(err.HTTPStatus)
	json.NewEncoder(w).Encode(map[string]interface{}{
		"error":   true,
		"code":    err.Code,
		"message": err.Message,
		"details": err.Details,
	})
}

// decodeJSON 解析请求体
func decodeJSON(r *http.Request, dst interface{}) *errors.AppError {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		return errors.InvalidInput("body", "请求体解析失败: "+err.Error())
	}
	return nil
}

// toAppError 将任意错误转换为应用错误
func toAppError(err error) *errors.AppError {
	var app *errors.AppError
	if stderrors.As(err, &app) {
		return app
	}
	return errors.Wrap(err, errors.CodeInternal, "内部错误")
}

// workspaceFrom 从路径参数解析工作区
func (h *Handler) workspaceFrom(r *http.Request) (*workspace.Workspace, *errors.AppError) {
	code := mux.Vars(r)["code"]
	ws, err := h.workspaces.Get(code)
	if err != nil {
		switch {
		case stderrors.Is(err, workspace.ErrWorkspaceArchived):
			return nil, errors.New(errors.CodeForbidden, "工作区已归档").WithField("code", code)
		default:
			return nil, errors.NotFound("workspace", code)
		}
	}
	return ws, nil
}

// pathUUID 从路径参数解析UUID
func pathUUID(r *http.Request, name string) (uuid.UUID, *errors.AppError) {
	raw := mux.Vars(r)[name]
	id, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, errors.InvalidInput(name, "不是合法的UUID: "+raw)
	}
	return id, nil
}

// queryInt 解析查询参数中的整数，缺省或非法时返回默认值
func queryInt(r *http.Request, name string, def int) int {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return def
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return def
	}
	return n
}

// requireDB 检查归档功能是否可用
func (h *Handler) requireDB() *errors.AppError {
	if h.db == nil || h.rosters == nil {
		return errors.New(errors.CodeDatabaseError, "数据库未配置").
			WithDetails("归档接口需要配置 PostgreSQL 连接")
	}
	return nil
}
