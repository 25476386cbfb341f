// Package integration 通过 httptest 驱动完整路由，覆盖排班接口与
// 协作接口的HTTP行为。测试不连接数据库，归档类接口另行断言降级响应。
package integration

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zhiban/zhiban/internal/config"
	"github.com/zhiban/zhiban/internal/handler"
	"github.com/zhiban/zhiban/internal/rules"
	"github.com/zhiban/zhiban/internal/workspace"
	"github.com/zhiban/zhiban/pkg/collab"
	"github.com/zhiban/zhiban/pkg/model"
	"github.com/zhiban/zhiban/pkg/scheduler"
)

// newTestRouter 构建无数据库的完整路由
func newTestRouter(t *testing.T) http.Handler {
	t.Helper()

	cfg := &config.Config{}
	cfg.App.Name = "zhiban"
	cfg.App.Env = "test"
	cfg.Engine.GenerateTimeout = 30 * time.Second
	cfg.Engine.Parallelism = 2

	ws := workspace.NewManager(collab.Config{})
	ws.CreateDefault()

	h := handler.New(cfg, ws, nil, handler.VersionInfo{Version: "test", BuildTime: "-", GitCommit: "-"})
	return h.Router()
}

// do 发送一次请求并返回录制的响应
func do(t *testing.T, router http.Handler, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()

	var rd io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		rd = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(method, path, rd)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

// decode 解析响应体
func decode(t *testing.T, rec *httptest.ResponseRecorder, dst any) {
	t.Helper()
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), dst), "响应体: %s", rec.Body.String())
}

// errEnvelope 错误响应信封
type errEnvelope struct {
	Error   bool   `json:"error"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

// requireError 断言错误响应的状态码与错误码
func requireError(t *testing.T, rec *httptest.ResponseRecorder, status int, code string) {
	t.Helper()
	require.Equal(t, status, rec.Code, "响应体: %s", rec.Body.String())
	var env errEnvelope
	decode(t, rec, &env)
	assert.True(t, env.Error)
	assert.Equal(t, code, env.Code)
}

// smallConfig 一周三人的最小可行配置
func smallConfig() *model.SchedulerConfig {
	cfg := model.DefaultSchedulerConfig()
	cfg.StartDate = "2026-06-01"
	cfg.EndDate = "2026-06-07"
	seed := int64(7)
	cfg.Seed = &seed
	cfg.Workers = []*model.Worker{
		{ID: "w1", Name: "w1", WorkPercentage: 100},
		{ID: "w2", Name: "w2", WorkPercentage: 100},
		{ID: "w3", Name: "w3", WorkPercentage: 100},
	}
	return cfg
}

// weekSchedule 与 smallConfig 配套的合法值班表：三人轮转，
// 相邻两班间隔恰好满足最小间隔
func weekSchedule() model.Schedule {
	return model.Schedule{
		"2026-06-01": {"w1"},
		"2026-06-02": {"w2"},
		"2026-06-03": {"w3"},
		"2026-06-04": {"w1"},
		"2026-06-05": {"w2"},
		"2026-06-06": {"w3"},
		"2026-06-07": {"w1"},
	}
}

// rebalanceConfig 十八天六人的再平衡配置：wo 超额、wu 空手
func rebalanceConfig() *model.SchedulerConfig {
	cfg := model.DefaultSchedulerConfig()
	cfg.StartDate = "2026-04-06"
	cfg.EndDate = "2026-04-23"
	cfg.Workers = []*model.Worker{
		{ID: "wo", Name: "wo", WorkPercentage: 100},
		{ID: "wu", Name: "wu", WorkPercentage: 100},
		{ID: "w3", Name: "w3", WorkPercentage: 100},
		{ID: "w4", Name: "w4", WorkPercentage: 100},
		{ID: "w5", Name: "w5", WorkPercentage: 100},
		{ID: "w6", Name: "w6", WorkPercentage: 100},
	}
	return cfg
}

// rebalanceSchedule 手工构造的合法值班表：wo 占 6 班（偏差 +3），
// wu 一班未排（偏差 -3），其余四人各 3 班
func rebalanceSchedule() model.Schedule {
	byDay := []string{
		"wo", "w3", "w4", "wo", "w3", "w4",
		"wo", "w3", "w4", "wo", "w5", "w6",
		"wo", "w5", "w6", "wo", "w5", "w6",
	}
	start := time.Date(2026, 4, 6, 0, 0, 0, 0, time.UTC)
	schedule := model.Schedule{}
	for i, w := range byDay {
		date := start.AddDate(0, 0, i).Format("2006-01-02")
		schedule[date] = []string{w}
	}
	return schedule
}

func TestAPI_HealthAndVersion(t *testing.T) {
	router := newTestRouter(t)

	rec := do(t, router, http.MethodGet, "/health", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var health handler.HealthResponse
	decode(t, rec, &health)
	assert.Equal(t, "ok", health.Status)
	assert.Equal(t, "unconfigured", health.Database)
	assert.GreaterOrEqual(t, health.Workspaces, 1)

	rec = do(t, router, http.MethodGet, "/version", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var version map[string]string
	decode(t, rec, &version)
	assert.Equal(t, "test", version["version"])
	assert.NotEmpty(t, version["go_version"])
}

func TestAPI_NotFoundAndMethodNotAllowed(t *testing.T) {
	router := newTestRouter(t)

	rec := do(t, router, http.MethodGet, "/api/v1/nonexistent", nil)
	requireError(t, rec, http.StatusNotFound, "NOT_FOUND")

	// 路径存在但方法不支持
	rec = do(t, router, http.MethodDelete, "/health", nil)
	requireError(t, rec, http.StatusMethodNotAllowed, "INVALID_INPUT")
}

func TestAPI_RulesCatalog(t *testing.T) {
	router := newTestRouter(t)

	rec := do(t, router, http.MethodGet, "/api/v1/rules", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var catalog rules.CatalogResponse
	decode(t, rec, &catalog)
	require.NotEmpty(t, catalog.Rules)

	names := make(map[string]rules.RuleDefinition, len(catalog.Rules))
	for _, r := range catalog.Rules {
		names[r.Name] = r
	}
	gap, ok := names["gap"]
	require.True(t, ok, "规则目录缺少最小间隔规则")
	assert.Equal(t, "hard", gap.Type)
	assert.NotEmpty(t, gap.Params)
	assert.Contains(t, names, "weekly_pattern")
	assert.Contains(t, names, "weekend_cap")
	assert.Contains(t, names, "mandatory_missing")
}

func TestAPI_HolidayEndpoints(t *testing.T) {
	router := newTestRouter(t)

	rec := do(t, router, http.MethodGet, "/api/v1/holidays", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var presets struct {
		Presets []string `json:"presets"`
		Count   int      `json:"count"`
	}
	decode(t, rec, &presets)
	assert.Equal(t, len(presets.Presets), presets.Count)
	assert.Contains(t, presets.Presets, "cn")
	assert.Contains(t, presets.Presets, "weekends")

	rec = do(t, router, http.MethodGet, "/api/v1/holidays/cn?year=2026", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var expanded struct {
		Name  string   `json:"name"`
		Year  int      `json:"year"`
		Dates []string `json:"dates"`
		Count int      `json:"count"`
	}
	decode(t, rec, &expanded)
	assert.Equal(t, "cn", expanded.Name)
	assert.Equal(t, 2026, expanded.Year)
	assert.Contains(t, expanded.Dates, "2026-01-01")
	assert.Equal(t, len(expanded.Dates), expanded.Count)

	// 区间展开
	rec = do(t, router, http.MethodGet, "/api/v1/holidays/cn?start=2026-01-01&end=2026-12-31", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = do(t, router, http.MethodGet, "/api/v1/holidays/never-heard-of", nil)
	requireError(t, rec, http.StatusNotFound, "NOT_FOUND")
}

func TestAPI_GenerateSchedule(t *testing.T) {
	router := newTestRouter(t)

	// 缺配置
	rec := do(t, router, http.MethodPost, "/api/v1/schedule/generate", handler.GenerateRequest{})
	requireError(t, rec, http.StatusBadRequest, "INVALID_INPUT")

	// 未知节假日方案
	rec = do(t, router, http.MethodPost, "/api/v1/schedule/generate", handler.GenerateRequest{
		Config:        smallConfig(),
		HolidayPreset: "never-heard-of",
	})
	requireError(t, rec, http.StatusBadRequest, "INVALID_INPUT")

	// 无数据库时拒绝归档请求
	rec = do(t, router, http.MethodPost, "/api/v1/schedule/generate", handler.GenerateRequest{
		Config: smallConfig(),
		Save:   true,
	})
	requireError(t, rec, http.StatusInternalServerError, "DATABASE_ERROR")

	// 正常生成
	rec = do(t, router, http.MethodPost, "/api/v1/schedule/generate", handler.GenerateRequest{
		Workspace: "ops",
		UserID:    "alice",
		Config:    smallConfig(),
	})
	require.Equal(t, http.StatusOK, rec.Code, "响应体: %s", rec.Body.String())
	var resp handler.GenerateResponse
	decode(t, rec, &resp)
	assert.Equal(t, "ops", resp.Workspace)
	assert.Empty(t, resp.RosterID)
	require.NotNil(t, resp.Result)
	assert.False(t, resp.Result.Cancelled)
	assert.Len(t, resp.Result.Schedule, 7)
	for date, row := range resp.Result.Schedule {
		require.Len(t, row, 1, "日期 %s", date)
		assert.NotEqual(t, model.EmptySlot, row[0], "日期 %s", date)
	}
	require.NotNil(t, resp.Result.Stats)
	assert.Equal(t, 7, resp.Result.Stats.FilledSlots)

	// 生成过的工作区进度为完成态
	rec = do(t, router, http.MethodGet, "/api/v1/schedule/progress?workspace=ops", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var progress scheduler.Progress
	decode(t, rec, &progress)
	assert.Equal(t, "done", progress.Phase)

	// 从未生成过的工作区进度为空闲态
	rec = do(t, router, http.MethodGet, "/api/v1/schedule/progress?workspace=untouched", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	decode(t, rec, &progress)
	assert.Equal(t, "idle", progress.Phase)

	// 生成请求自动创建了工作区
	rec = do(t, router, http.MethodGet, "/api/v1/workspaces/ops", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var ws workspace.Workspace
	decode(t, rec, &ws)
	assert.Equal(t, "ops", ws.Code)
	assert.Equal(t, "active", ws.Status)
}

func TestAPI_VerifySchedule(t *testing.T) {
	router := newTestRouter(t)

	rec := do(t, router, http.MethodPost, "/api/v1/schedule/verify", map[string]any{
		"config":   smallConfig(),
		"schedule": weekSchedule(),
	})
	require.Equal(t, http.StatusOK, rec.Code, "响应体: %s", rec.Body.String())
	var report scheduler.CheckReport
	decode(t, rec, &report)
	assert.True(t, report.Valid)
	assert.Empty(t, report.Violations)

	// 篡改：w1 连续两天值班，触发最小间隔违规
	tampered := weekSchedule()
	tampered["2026-06-02"] = []string{"w1"}
	rec = do(t, router, http.MethodPost, "/api/v1/schedule/verify", map[string]any{
		"config":   smallConfig(),
		"schedule": tampered,
	})
	require.Equal(t, http.StatusOK, rec.Code)
	decode(t, rec, &report)
	assert.False(t, report.Valid)
	require.NotEmpty(t, report.Violations)
	for _, v := range report.Violations {
		assert.Equal(t, model.ViolationGap, v.Kind)
		assert.Equal(t, "w1", v.WorkerID)
	}

	// 缺值班表
	rec = do(t, router, http.MethodPost, "/api/v1/schedule/verify", map[string]any{
		"config": smallConfig(),
	})
	requireError(t, rec, http.StatusBadRequest, "INVALID_INPUT")
}

func TestAPI_ScheduleStats(t *testing.T) {
	router := newTestRouter(t)

	rec := do(t, router, http.MethodPost, "/api/v1/schedule/stats", map[string]any{
		"config":   smallConfig(),
		"schedule": weekSchedule(),
	})
	require.Equal(t, http.StatusOK, rec.Code, "响应体: %s", rec.Body.String())

	var resp handler.StatsResponse
	decode(t, rec, &resp)
	require.NotNil(t, resp.Stats)
	assert.Equal(t, 7, resp.Stats.TotalSlots)
	assert.Equal(t, 0, resp.Stats.EmptySlots)
	require.NotNil(t, resp.Fairness)
	assert.Greater(t, resp.Fairness.OverallScore, 0.0)
	require.NotNil(t, resp.Coverage)
	assert.Equal(t, 7, resp.Coverage.FilledSlots)
	assert.Empty(t, resp.Coverage.UncoveredSlots)
}

func TestAPI_SuggestSwaps(t *testing.T) {
	router := newTestRouter(t)

	rec := do(t, router, http.MethodPost, "/api/v1/swaps/suggest", handler.SuggestSwapsRequest{
		Config:   rebalanceConfig(),
		Schedule: rebalanceSchedule(),
	})
	require.Equal(t, http.StatusOK, rec.Code, "响应体: %s", rec.Body.String())
	var resp handler.SuggestSwapsResponse
	decode(t, rec, &resp)
	require.NotEmpty(t, resp.Suggestions)
	assert.Equal(t, len(resp.Suggestions), resp.Count)
	assert.LessOrEqual(t, resp.Count, 5)

	// 超额的 wo 向空手的 wu 转让班次
	first := resp.Suggestions[0]
	assert.Equal(t, "wo", first.FromWorker)
	assert.Equal(t, "wu", first.ToWorker)
	assert.Equal(t, 3, first.Improvement)

	// 上限截断
	rec = do(t, router, http.MethodPost, "/api/v1/swaps/suggest", handler.SuggestSwapsRequest{
		Config:         rebalanceConfig(),
		Schedule:       rebalanceSchedule(),
		MaxSuggestions: 2,
	})
	require.Equal(t, http.StatusOK, rec.Code)
	decode(t, rec, &resp)
	assert.Len(t, resp.Suggestions, 2)

	// 缺值班表
	rec = do(t, router, http.MethodPost, "/api/v1/swaps/suggest", handler.SuggestSwapsRequest{
		Config: rebalanceConfig(),
	})
	requireError(t, rec, http.StatusBadRequest, "INVALID_INPUT")
}

func TestAPI_FindReplacements(t *testing.T) {
	router := newTestRouter(t)

	// 单槽位：wo 缺席 4 月 6 日，空手的 wu 是最佳替班人
	rec := do(t, router, http.MethodPost, "/api/v1/replacements/find", handler.FindReplacementsRequest{
		Config:         rebalanceConfig(),
		Schedule:       rebalanceSchedule(),
		Date:           "2026-04-06",
		Post:           0,
		AbsentWorkerID: "wo",
	})
	require.Equal(t, http.StatusOK, rec.Code, "响应体: %s", rec.Body.String())
	var resp handler.FindReplacementsResponse
	decode(t, rec, &resp)
	require.Len(t, resp.Results, 1)

	result := resp.Results[0]
	require.NotNil(t, result.BestMatch)
	assert.Equal(t, "wu", result.BestMatch.WorkerID)
	assert.True(t, result.BestMatch.Feasible)
	assert.Equal(t, -3, result.BestMatch.Deviation)

	// 相邻有班的 w3 不可行，冲突原因可追溯
	var foundInfeasible bool
	for _, alt := range result.Alternatives {
		if alt.WorkerID == "w3" {
			foundInfeasible = true
			assert.False(t, alt.Feasible)
			assert.NotEmpty(t, alt.Conflicts)
		}
	}
	assert.True(t, foundInfeasible, "候选列表应包含不可行的 w3")

	// 批量模式：wo 病假，其全部班次逐一找到替班
	rec = do(t, router, http.MethodPost, "/api/v1/replacements/find", handler.FindReplacementsRequest{
		Config:         rebalanceConfig(),
		Schedule:       rebalanceSchedule(),
		AbsentWorkerID: "wo",
	})
	require.Equal(t, http.StatusOK, rec.Code, "响应体: %s", rec.Body.String())
	decode(t, rec, &resp)
	assert.Equal(t, 6, resp.Count)
	for _, r := range resp.Results {
		require.NotNil(t, r.BestMatch, "日期 %s 未找到替班", r.Date)
		assert.True(t, r.BestMatch.Feasible, "日期 %s", r.Date)
		assert.NotEqual(t, "wo", r.BestMatch.WorkerID)
	}

	// 日期与缺席人员均缺失
	rec = do(t, router, http.MethodPost, "/api/v1/replacements/find", handler.FindReplacementsRequest{
		Config:   rebalanceConfig(),
		Schedule: rebalanceSchedule(),
	})
	requireError(t, rec, http.StatusBadRequest, "INVALID_INPUT")
}

func TestAPI_WorkspaceLifecycle(t *testing.T) {
	router := newTestRouter(t)

	rec := do(t, router, http.MethodPost, "/api/v1/workspaces", handler.CreateWorkspaceRequest{
		Code: "icu",
		Name: "重症监护",
	})
	require.Equal(t, http.StatusCreated, rec.Code, "响应体: %s", rec.Body.String())
	var ws workspace.Workspace
	decode(t, rec, &ws)
	assert.Equal(t, "icu", ws.Code)
	assert.Equal(t, "重症监护", ws.Name)
	assert.Equal(t, "active", ws.Status)

	// 编码重复
	rec = do(t, router, http.MethodPost, "/api/v1/workspaces", handler.CreateWorkspaceRequest{Code: "icu"})
	requireError(t, rec, http.StatusConflict, "ALREADY_EXISTS")

	// 编码为空
	rec = do(t, router, http.MethodPost, "/api/v1/workspaces", handler.CreateWorkspaceRequest{})
	requireError(t, rec, http.StatusBadRequest, "INVALID_INPUT")

	rec = do(t, router, http.MethodGet, "/api/v1/workspaces", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var list handler.ListWorkspacesResponse
	decode(t, rec, &list)
	assert.Equal(t, len(list.Workspaces), list.Count)
	codes := make([]string, 0, list.Count)
	for _, w := range list.Workspaces {
		codes = append(codes, w.Code)
	}
	assert.Contains(t, codes, "default")
	assert.Contains(t, codes, "icu")

	rec = do(t, router, http.MethodGet, "/api/v1/workspaces/icu", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	// 无数据库时人员档案接口降级
	rec = do(t, router, http.MethodGet, "/api/v1/workspaces/icu/workers", nil)
	requireError(t, rec, http.StatusInternalServerError, "DATABASE_ERROR")

	// 归档后拒绝访问
	rec = do(t, router, http.MethodDelete, "/api/v1/workspaces/icu", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	rec = do(t, router, http.MethodGet, "/api/v1/workspaces/icu", nil)
	requireError(t, rec, http.StatusForbidden, "FORBIDDEN")

	rec = do(t, router, http.MethodGet, "/api/v1/workspaces/no-such", nil)
	requireError(t, rec, http.StatusNotFound, "NOT_FOUND")
	rec = do(t, router, http.MethodDelete, "/api/v1/workspaces/no-such", nil)
	requireError(t, rec, http.StatusNotFound, "NOT_FOUND")
}

func TestAPI_SessionEndpoints(t *testing.T) {
	router := newTestRouter(t)
	base := "/api/v1/workspaces/default/sessions"

	rec := do(t, router, http.MethodPost, base, handler.CreateSessionRequest{
		UserID:      "alice",
		Permissions: []string{"schedule:edit"},
	})
	require.Equal(t, http.StatusCreated, rec.Code, "响应体: %s", rec.Body.String())
	var session collab.Session
	decode(t, rec, &session)
	require.NotEqual(t, uuid.Nil, session.ID)
	assert.Equal(t, "alice", session.UserID)

	// 用户标识为空
	rec = do(t, router, http.MethodPost, base, handler.CreateSessionRequest{})
	requireError(t, rec, http.StatusBadRequest, "INVALID_INPUT")

	rec = do(t, router, http.MethodGet, fmt.Sprintf("%s/%s", base, session.ID), nil)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = do(t, router, http.MethodPost, fmt.Sprintf("%s/%s/touch", base, session.ID), nil)
	require.Equal(t, http.StatusOK, rec.Code)

	// 不存在的会话按过期处理
	rec = do(t, router, http.MethodGet, fmt.Sprintf("%s/%s", base, uuid.New()), nil)
	requireError(t, rec, http.StatusUnauthorized, "SESSION_EXPIRED")

	// 非法的会话标识
	rec = do(t, router, http.MethodGet, base+"/not-a-uuid", nil)
	requireError(t, rec, http.StatusBadRequest, "INVALID_INPUT")

	rec = do(t, router, http.MethodDelete, fmt.Sprintf("%s/%s", base, session.ID), nil)
	require.Equal(t, http.StatusOK, rec.Code)
	rec = do(t, router, http.MethodDelete, fmt.Sprintf("%s/%s", base, session.ID), nil)
	requireError(t, rec, http.StatusNotFound, "NOT_FOUND")
}

func TestAPI_LockEndpoints(t *testing.T) {
	router := newTestRouter(t)
	base := "/api/v1/workspaces/default/locks"

	rec := do(t, router, http.MethodPost, base, handler.AcquireLockRequest{
		UserID:     "alice",
		Type:       string(collab.LockShiftEdit),
		ResourceID: "2026-06-03:0",
	})
	require.Equal(t, http.StatusCreated, rec.Code, "响应体: %s", rec.Body.String())
	var acquired handler.AcquireLockResponse
	decode(t, rec, &acquired)
	assert.Equal(t, "granted", acquired.Status)
	require.NotNil(t, acquired.Lock)
	assert.Equal(t, "alice", acquired.Lock.OwnerID)
	lockID := acquired.Lock.ID

	// 持有者重复获取拿回同一把锁
	rec = do(t, router, http.MethodPost, base, handler.AcquireLockRequest{
		UserID:     "alice",
		Type:       string(collab.LockShiftEdit),
		ResourceID: "2026-06-03:0",
	})
	require.Equal(t, http.StatusCreated, rec.Code)
	decode(t, rec, &acquired)
	require.NotNil(t, acquired.Lock)
	assert.Equal(t, lockID, acquired.Lock.ID)

	// 他人立即获取被拒绝
	rec = do(t, router, http.MethodPost, base, handler.AcquireLockRequest{
		UserID:     "bob",
		Type:       string(collab.LockShiftEdit),
		ResourceID: "2026-06-03:0",
	})
	requireError(t, rec, http.StatusConflict, "LOCK_REFUSED")

	// 他人排队等待
	rec = do(t, router, http.MethodPost, base, handler.AcquireLockRequest{
		UserID:     "bob",
		Type:       string(collab.LockShiftEdit),
		ResourceID: "2026-06-03:0",
		Wait:       true,
	})
	require.Equal(t, http.StatusAccepted, rec.Code, "响应体: %s", rec.Body.String())
	var queued handler.AcquireLockResponse
	decode(t, rec, &queued)
	assert.Equal(t, "queued", queued.Status)
	require.NotNil(t, queued.Ticket)
	assert.Equal(t, "bob", queued.Ticket.UserID)
	assert.Equal(t, 1, queued.Ticket.Position)

	// 锁状态查询
	rec = do(t, router, http.MethodGet, base+"/shift_edit/2026-06-03:0", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var check handler.CheckLockResponse
	decode(t, rec, &check)
	assert.True(t, check.Locked)
	require.NotNil(t, check.Lock)
	assert.Equal(t, "alice", check.Lock.OwnerID)

	// 取消排队
	rec = do(t, router, http.MethodDelete,
		fmt.Sprintf("/api/v1/workspaces/default/waiters/%s", queued.Ticket.Token), nil)
	require.Equal(t, http.StatusOK, rec.Code)
	rec = do(t, router, http.MethodDelete,
		fmt.Sprintf("/api/v1/workspaces/default/waiters/%s", queued.Ticket.Token), nil)
	requireError(t, rec, http.StatusNotFound, "NOT_FOUND")

	// 非持有者无法释放
	rec = do(t, router, http.MethodDelete, fmt.Sprintf("%s/%s?user_id=bob", base, lockID), nil)
	requireError(t, rec, http.StatusNotFound, "NOT_FOUND")

	rec = do(t, router, http.MethodDelete, fmt.Sprintf("%s/%s?user_id=alice", base, lockID), nil)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = do(t, router, http.MethodGet, base+"/shift_edit/2026-06-03:0", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	decode(t, rec, &check)
	assert.False(t, check.Locked)

	// 未知锁类型
	rec = do(t, router, http.MethodPost, base, handler.AcquireLockRequest{
		UserID:     "alice",
		Type:       "unknown",
		ResourceID: "r",
	})
	requireError(t, rec, http.StatusBadRequest, "INVALID_INPUT")
	rec = do(t, router, http.MethodGet, base+"/unknown/r", nil)
	requireError(t, rec, http.StatusBadRequest, "INVALID_INPUT")
}

func TestAPI_ConflictEndpoints(t *testing.T) {
	router := newTestRouter(t)

	// carol 先锁定资源
	rec := do(t, router, http.MethodPost, "/api/v1/workspaces/default/locks", handler.AcquireLockRequest{
		UserID:     "carol",
		Type:       string(collab.LockWorkerAssignment),
		ResourceID: "2026-06-05:0",
	})
	require.Equal(t, http.StatusCreated, rec.Code)

	// dave 提议的变更撞上 carol 的锁
	rec = do(t, router, http.MethodPost, "/api/v1/workspaces/default/conflicts/detect", handler.DetectConflictRequest{
		OpType:         "update",
		ResourceID:     "2026-06-05:0",
		UserID:         "dave",
		ProposedChange: map[string]any{"worker_id": "w9"},
	})
	require.Equal(t, http.StatusConflict, rec.Code, "响应体: %s", rec.Body.String())
	var detected handler.DetectConflictResponse
	decode(t, rec, &detected)
	assert.True(t, detected.Detected)
	require.NotNil(t, detected.Conflict)
	assert.Equal(t, "dave", detected.Conflict.UserID)
	assert.Equal(t, "carol", detected.Conflict.HolderID)
	conflictID := detected.Conflict.ID

	// 未被锁定的资源不产生冲突
	rec = do(t, router, http.MethodPost, "/api/v1/workspaces/default/conflicts/detect", handler.DetectConflictRequest{
		OpType:     "update",
		ResourceID: "2026-06-06:0",
		UserID:     "dave",
	})
	require.Equal(t, http.StatusOK, rec.Code)
	decode(t, rec, &detected)
	assert.False(t, detected.Detected)
	assert.Nil(t, detected.Conflict)

	rec = do(t, router, http.MethodGet, "/api/v1/workspaces/default/conflicts", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var pending handler.ListConflictsResponse
	decode(t, rec, &pending)
	assert.Equal(t, 1, pending.Count)

	rec = do(t, router, http.MethodGet,
		fmt.Sprintf("/api/v1/workspaces/default/conflicts/%s", conflictID), nil)
	require.Equal(t, http.StatusOK, rec.Code)

	// 未知策略
	rec = do(t, router, http.MethodPost,
		fmt.Sprintf("/api/v1/workspaces/default/conflicts/%s/resolve", conflictID),
		handler.ResolveConflictRequest{Strategy: "coin_flip"})
	requireError(t, rec, http.StatusBadRequest, "INVALID_INPUT")

	rec = do(t, router, http.MethodPost,
		fmt.Sprintf("/api/v1/workspaces/default/conflicts/%s/resolve", conflictID),
		handler.ResolveConflictRequest{
			Strategy:   string(collab.StrategyLastWriterWins),
			Resolution: map[string]any{"winner": "dave"},
		})
	require.Equal(t, http.StatusOK, rec.Code, "响应体: %s", rec.Body.String())
	var resolved collab.Conflict
	decode(t, rec, &resolved)
	assert.True(t, resolved.Resolved)
	assert.Equal(t, collab.StrategyLastWriterWins, resolved.Strategy)

	// 重复解决
	rec = do(t, router, http.MethodPost,
		fmt.Sprintf("/api/v1/workspaces/default/conflicts/%s/resolve", conflictID),
		handler.ResolveConflictRequest{Strategy: string(collab.StrategyLastWriterWins)})
	requireError(t, rec, http.StatusConflict, "CONFLICT_PENDING")

	rec = do(t, router, http.MethodGet, "/api/v1/workspaces/default/conflicts", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	decode(t, rec, &pending)
	assert.Equal(t, 0, pending.Count)

	// 协作状态汇总
	rec = do(t, router, http.MethodGet, "/api/v1/workspaces/default/collab/status", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var status collab.Status
	decode(t, rec, &status)
	assert.Equal(t, 1, status.ActiveLocks)
	assert.Equal(t, 0, status.PendingConflicts)
}

func TestAPI_RosterEndpointsWithoutDB(t *testing.T) {
	router := newTestRouter(t)

	rec := do(t, router, http.MethodGet, "/api/v1/workspaces/default/rosters", nil)
	requireError(t, rec, http.StatusInternalServerError, "DATABASE_ERROR")

	rec = do(t, router, http.MethodGet, fmt.Sprintf("/api/v1/rosters/%s", uuid.New()), nil)
	requireError(t, rec, http.StatusInternalServerError, "DATABASE_ERROR")

	rec = do(t, router, http.MethodGet, "/api/v1/assignments?worker_id=w1", nil)
	requireError(t, rec, http.StatusInternalServerError, "DATABASE_ERROR")
}
