package handler

import (
	stderrors "errors"
	"net/http"

	"github.com/gorilla/mux"

	"github.com/zhiban/zhiban/internal/repository"
	"github.com/zhiban/zhiban/internal/workspace"
	"github.com/zhiban/zhiban/pkg/errors"
	"github.com/zhiban/zhiban/pkg/model"
)

// CreateWorkspaceRequest 创建工作区请求
type CreateWorkspaceRequest struct {
	Code   string                 `json:"code"`
	Name   string                 `json:"name,omitempty"`
	Config *model.SchedulerConfig `json:"config,omitempty"`
}

// CreateWorkspace 创建工作区API
func (h *Handler) CreateWorkspace(w http.ResponseWriter, r *http.Request) {
	var req CreateWorkspaceRequest
	if appErr := decodeJSON(r, &req); appErr != nil {
		respondError(w, appErr)
		return
	}
	if req.Name == "" {
		req.Name = req.Code
	}

	ws, err := h.workspaces.Create(req.Code, req.Name, req.Config)
	if err != nil {
		switch {
		case stderrors.Is(err, workspace.ErrWorkspaceExists):
			respondError(w, errors.New(errors.CodeAlreadyExists, "工作区编码已存在").WithField("code", req.Code))
		case stderrors.Is(err, workspace.ErrInvalidWorkspace):
			respondError(w, errors.InvalidInput("code", "工作区编码不能为空"))
		case stderrors.Is(err, workspace.ErrTooManyWorkers):
			respondError(w, errors.InvalidInput("config.workers", "人员数量超过工作区上限"))
		default:
			respondError(w, toAppError(err))
		}
		return
	}
	respondJSON(w, http.StatusCreated, ws)
}

// ListWorkspacesResponse 工作区列表响应
type ListWorkspacesResponse struct {
	Workspaces []*workspace.Workspace `json:"workspaces"`
	Count      int                    `json:"count"`
}

// ListWorkspaces 工作区列表API
func (h *Handler) ListWorkspaces(w http.ResponseWriter, r *http.Request) {
	list := h.workspaces.List()
	respondJSON(w, http.StatusOK, ListWorkspacesResponse{Workspaces: list, Count: len(list)})
}

// GetWorkspace 查询工作区API
func (h *Handler) GetWorkspace(w http.ResponseWriter, r *http.Request) {
	ws, appErr := h.workspaceFrom(r)
	if appErr != nil {
		respondError(w, appErr)
		return
	}
	respondJSON(w, http.StatusOK, ws)
}

// ArchiveWorkspace 归档工作区API
// 保留数据但拒绝后续访问，工作区过保留期后由后台清理移除
func (h *Handler) ArchiveWorkspace(w http.ResponseWriter, r *http.Request) {
	code := mux.Vars(r)["code"]
	if err := h.workspaces.Archive(code); err != nil {
		respondError(w, errors.NotFound("workspace", code))
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{"archived": true, "code": code})
}

// ListWorkersResponse 人员档案列表响应
type ListWorkersResponse struct {
	Workers []*repository.WorkerRecord `json:"workers"`
	Total   int                        `json:"total"`
	Limit   int                        `json:"limit"`
	Offset  int                        `json:"offset"`
}

// ListWorkers 人员档案列表API，查询数据库中归档的人员记录
func (h *Handler) ListWorkers(w http.ResponseWriter, r *http.Request) {
	if appErr := h.requireDB(); appErr != nil {
		respondError(w, appErr)
		return
	}
	code := mux.Vars(r)["code"]

	filter := repository.DefaultListFilter().
		WithWorkspace(code).
		WithLimit(queryInt(r, "limit", 20)).
		WithOffset(queryInt(r, "offset", 0))
	if status := r.URL.Query().Get("status"); status != "" {
		filter = filter.WithStatus(status)
	}
	filter.Search = r.URL.Query().Get("search")

	workers, total, err := h.workers.List(r.Context(), filter)
	if err != nil {
		respondError(w, errors.Wrap(err, errors.CodeDatabaseError, "查询人员档案失败"))
		return
	}
	respondJSON(w, http.StatusOK, ListWorkersResponse{
		Workers: workers,
		Total:   total,
		Limit:   filter.Limit,
		Offset:  filter.Offset,
	})
}
