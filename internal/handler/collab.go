package handler

import (
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"

	"github.com/zhiban/zhiban/internal/metrics"
	"github.com/zhiban/zhiban/pkg/collab"
	"github.com/zhiban/zhiban/pkg/errors"
)

// CreateSessionRequest 创建会话请求
type CreateSessionRequest struct {
	UserID      string         `json:"user_id"`
	Permissions []string       `json:"permissions,omitempty"`
	Metadata    map[string]any `json:"metadata,omitempty"`
}

// CreateSession 创建协作会话API
func (h *Handler) CreateSession(w http.ResponseWriter, r *http.Request) {
	ws, appErr := h.workspaceFrom(r)
	if appErr != nil {
		respondError(w, appErr)
		return
	}

	var req CreateSessionRequest
	if appErr := decodeJSON(r, &req); appErr != nil {
		respondError(w, appErr)
		return
	}

	id := ws.Collab().CreateSession(req.UserID, req.Permissions, req.Metadata)
	if id == uuid.Nil {
		respondError(w, errors.InvalidInput("user_id", "用户标识不能为空"))
		return
	}
	respondJSON(w, http.StatusCreated, ws.Collab().GetSession(id))
}

// GetSession 查询会话API
func (h *Handler) GetSession(w http.ResponseWriter, r *http.Request) {
	ws, appErr := h.workspaceFrom(r)
	if appErr != nil {
		respondError(w, appErr)
		return
	}
	id, appErr := pathUUID(r, "id")
	if appErr != nil {
		respondError(w, appErr)
		return
	}

	session := ws.Collab().GetSession(id)
	if session == nil {
		respondError(w, errors.New(errors.CodeSessionExpired, "会话不存在或已过期").WithField("id", id.String()))
		return
	}
	respondJSON(w, http.StatusOK, session)
}

// TouchSession 会话保活API
func (h *Handler) TouchSession(w http.ResponseWriter, r *http.Request) {
	ws, appErr := h.workspaceFrom(r)
	if appErr != nil {
		respondError(w, appErr)
		return
	}
	id, appErr := pathUUID(r, "id")
	if appErr != nil {
		respondError(w, appErr)
		return
	}

	if !ws.Collab().TouchSession(id) {
		respondError(w, errors.New(errors.CodeSessionExpired, "会话不存在或已过期").WithField("id", id.String()))
		return
	}
	respondJSON(w, http.StatusOK, ws.Collab().GetSession(id))
}

// EndSession 结束会话API
// 会话持有的锁随之释放，等待这些资源的请求被兑现
func (h *Handler) EndSession(w http.ResponseWriter, r *http.Request) {
	ws, appErr := h.workspaceFrom(r)
	if appErr != nil {
		respondError(w, appErr)
		return
	}
	id, appErr := pathUUID(r, "id")
	if appErr != nil {
		respondError(w, appErr)
		return
	}

	if !ws.Collab().EndSession(id) {
		respondError(w, errors.NotFound("session", id.String()))
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{"ended": true, "id": id.String()})
}

// AcquireLockRequest 获取锁请求
type AcquireLockRequest struct {
	UserID         string         `json:"user_id"`
	Type           string         `json:"type"`
	ResourceID     string         `json:"resource_id"`
	Wait           bool           `json:"wait,omitempty"`            // 资源被占用时是否排队
	TimeoutSeconds int            `json:"timeout_seconds,omitempty"` // 锁有效期
	Metadata       map[string]any `json:"metadata,omitempty"`
}

// AcquireLockResponse 获取锁响应
// granted 时携带锁，queued 时携带排队凭据
type AcquireLockResponse struct {
	Status string         `json:"status"` // granted/queued
	Lock   *collab.Lock   `json:"lock,omitempty"`
	Ticket *collab.Ticket `json:"ticket,omitempty"`
}

// AcquireLock 获取资源锁API
//
// 三种结局：立即获得锁（201）、排队等待（202）、拒绝（409）。
// 重复获取自己持有的锁会刷新有效期
func (h *Handler) AcquireLock(w http.ResponseWriter, r *http.Request) {
	ws, appErr := h.workspaceFrom(r)
	if appErr != nil {
		respondError(w, appErr)
		return
	}

	var req AcquireLockRequest
	if appErr := decodeJSON(r, &req); appErr != nil {
		respondError(w, appErr)
		return
	}
	if req.UserID == "" {
		respondError(w, errors.InvalidInput("user_id", "用户标识不能为空"))
		return
	}
	lockType := collab.LockType(req.Type)
	if !lockType.Valid() {
		respondError(w, errors.InvalidInput("type", "未知的锁类型: "+req.Type))
		return
	}
	if req.ResourceID == "" {
		respondError(w, errors.InvalidInput("resource_id", "资源标识不能为空"))
		return
	}

	opts := &collab.AcquireOptions{
		Wait:     req.Wait,
		Metadata: req.Metadata,
	}
	if req.TimeoutSeconds > 0 {
		opts.Timeout = time.Duration(req.TimeoutSeconds) * time.Second
	}

	lock, ticket := ws.Collab().AcquireLock(req.UserID, lockType, req.ResourceID, opts)
	switch {
	case lock != nil:
		respondJSON(w, http.StatusCreated, AcquireLockResponse{Status: "granted", Lock: lock})
	case ticket != nil:
		respondJSON(w, http.StatusAccepted, AcquireLockResponse{Status: "queued", Ticket: ticket})
	default:
		appErr := errors.LockRefused(req.Type, req.ResourceID)
		if holder := ws.Collab().CheckLock(lockType, req.ResourceID); holder != nil {
			appErr = appErr.WithField("holder", holder.OwnerID)
		}
		respondError(w, appErr)
	}
}

// ReleaseLock 释放资源锁API
// 只有持有者本人可以释放，user_id 经查询参数传入
func (h *Handler) ReleaseLock(w http.ResponseWriter, r *http.Request) {
	ws, appErr := h.workspaceFrom(r)
	if appErr != nil {
		respondError(w, appErr)
		return
	}
	id, appErr := pathUUID(r, "id")
	if appErr != nil {
		respondError(w, appErr)
		return
	}
	userID := r.URL.Query().Get("user_id")
	if userID == "" {
		respondError(w, errors.InvalidInput("user_id", "用户标识不能为空"))
		return
	}

	if !ws.Collab().ReleaseLock(id, userID) {
		respondError(w, errors.NotFound("lock", id.String()).WithDetails("锁不存在、已过期或无权释放"))
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{"released": true, "id": id.String()})
}

// CheckLockResponse 锁状态响应
type CheckLockResponse struct {
	Locked bool         `json:"locked"`
	Lock   *collab.Lock `json:"lock,omitempty"`
}

// CheckLock 查询锁状态API
func (h *Handler) CheckLock(w http.ResponseWriter, r *http.Request) {
	ws, appErr := h.workspaceFrom(r)
	if appErr != nil {
		respondError(w, appErr)
		return
	}

	vars := mux.Vars(r)
	lockType := collab.LockType(vars["type"])
	if !lockType.Valid() {
		respondError(w, errors.InvalidInput("type", "未知的锁类型: "+vars["type"]))
		return
	}

	lock := ws.Collab().CheckLock(lockType, vars["resource"])
	respondJSON(w, http.StatusOK, CheckLockResponse{Locked: lock != nil, Lock: lock})
}

// CancelWait 取消排队API
func (h *Handler) CancelWait(w http.ResponseWriter, r *http.Request) {
	ws, appErr := h.workspaceFrom(r)
	if appErr != nil {
		respondError(w, appErr)
		return
	}
	token, appErr := pathUUID(r, "token")
	if appErr != nil {
		respondError(w, appErr)
		return
	}

	if !ws.Collab().CancelWait(token) {
		respondError(w, errors.NotFound("waiter", token.String()).WithDetails("排队凭据不存在或已兑现"))
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{"cancelled": true, "token": token.String()})
}

// DetectConflictRequest 冲突检测请求
type DetectConflictRequest struct {
	OpType         string         `json:"op_type"`
	ResourceID     string         `json:"resource_id"`
	UserID         string         `json:"user_id"`
	ProposedChange map[string]any `json:"proposed_change,omitempty"`
}

// DetectConflictResponse 冲突检测响应
type DetectConflictResponse struct {
	Detected bool             `json:"detected"`
	Conflict *collab.Conflict `json:"conflict,omitempty"`
}

// DetectConflict 冲突检测API
//
// 提议的变更落在他人锁定的资源上时登记冲突并返回409，
// 响应体携带冲突记录供后续解决；资源未被他人锁定时返回200
func (h *Handler) DetectConflict(w http.ResponseWriter, r *http.Request) {
	ws, appErr := h.workspaceFrom(r)
	if appErr != nil {
		respondError(w, appErr)
		return
	}

	var req DetectConflictRequest
	if appErr := decodeJSON(r, &req); appErr != nil {
		respondError(w, appErr)
		return
	}
	if req.ResourceID == "" {
		respondError(w, errors.InvalidInput("resource_id", "资源标识不能为空"))
		return
	}
	if req.UserID == "" {
		respondError(w, errors.InvalidInput("user_id", "用户标识不能为空"))
		return
	}

	conflict := ws.Collab().DetectConflict(req.OpType, req.ResourceID, req.UserID, req.ProposedChange)
	if conflict == nil {
		respondJSON(w, http.StatusOK, DetectConflictResponse{Detected: false})
		return
	}
	respondJSON(w, http.StatusConflict, DetectConflictResponse{Detected: true, Conflict: conflict})
}

// ListConflictsResponse 待解决冲突列表响应
type ListConflictsResponse struct {
	Conflicts []*collab.Conflict `json:"conflicts"`
	Count     int                `json:"count"`
}

// ListConflicts 待解决冲突列表API，按检测时间升序
func (h *Handler) ListConflicts(w http.ResponseWriter, r *http.Request) {
	ws, appErr := h.workspaceFrom(r)
	if appErr != nil {
		respondError(w, appErr)
		return
	}

	conflicts := ws.Collab().PendingConflicts()
	respondJSON(w, http.StatusOK, ListConflictsResponse{Conflicts: conflicts, Count: len(conflicts)})
}

// GetConflict 查询冲突API
func (h *Handler) GetConflict(w http.ResponseWriter, r *http.Request) {
	ws, appErr := h.workspaceFrom(r)
	if appErr != nil {
		respondError(w, appErr)
		return
	}
	id, appErr := pathUUID(r, "id")
	if appErr != nil {
		respondError(w, appErr)
		return
	}

	conflict := ws.Collab().GetConflict(id)
	if conflict == nil {
		respondError(w, errors.NotFound("conflict", id.String()))
		return
	}
	respondJSON(w, http.StatusOK, conflict)
}

// ResolveConflictRequest 解决冲突请求
type ResolveConflictRequest struct {
	Strategy   string         `json:"strategy"`
	Resolution map[string]any `json:"resolution,omitempty"`
}

// ResolveConflict 解决冲突API
func (h *Handler) ResolveConflict(w http.ResponseWriter, r *http.Request) {
	ws, appErr := h.workspaceFrom(r)
	if appErr != nil {
		respondError(w, appErr)
		return
	}
	id, appErr := pathUUID(r, "id")
	if appErr != nil {
		respondError(w, appErr)
		return
	}

	var req ResolveConflictRequest
	if appErr := decodeJSON(r, &req); appErr != nil {
		respondError(w, appErr)
		return
	}
	strategy := collab.Strategy(req.Strategy)
	if !strategy.Valid() {
		respondError(w, errors.InvalidInput("strategy", "未知的解决策略: "+req.Strategy))
		return
	}

	if !ws.Collab().ResolveConflict(id, strategy, req.Resolution) {
		respondError(w, errors.New(errors.CodeConflictPending, "冲突不存在或已解决").WithField("id", id.String()))
		return
	}
	respondJSON(w, http.StatusOK, ws.Collab().GetConflict(id))
}

// CollabStatus 协作状态API
func (h *Handler) CollabStatus(w http.ResponseWriter, r *http.Request) {
	ws, appErr := h.workspaceFrom(r)
	if appErr != nil {
		respondError(w, appErr)
		return
	}

	status := ws.Collab().Status()
	metrics.SetCollabStatus(ws.Code, status.ActiveSessions, status.ActiveLocks, status.PendingConflicts)
	respondJSON(w, http.StatusOK, status)
}
