package handler

import (
	"net/http"

	"github.com/gorilla/mux"

	"github.com/zhiban/zhiban/internal/repository"
	"github.com/zhiban/zhiban/pkg/errors"
	"github.com/zhiban/zhiban/pkg/logger"
	"github.com/zhiban/zhiban/pkg/model"
)

// ListRostersResponse 值班表列表响应
type ListRostersResponse struct {
	Rosters []*model.Roster `json:"rosters"`
	Total   int             `json:"total"`
	Limit   int             `json:"limit"`
	Offset  int             `json:"offset"`
}

// ListRosters 值班表列表API
// 归档的值班表不随工作区过期而消失，工作区编码直接取自路径
func (h *Handler) ListRosters(w http.ResponseWriter, r *http.Request) {
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
	if start, end := r.URL.Query().Get("start"), r.URL.Query().Get("end"); start != "" || end != "" {
		filter = filter.WithDateRange(start, end)
	}
	filter.Search = r.URL.Query().Get("search")

	rosters, total, err := h.rosters.List(r.Context(), filter)
	if err != nil {
		respondError(w, errors.Wrap(err, errors.CodeDatabaseError, "查询值班表列表失败"))
		return
	}
	respondJSON(w, http.StatusOK, ListRostersResponse{
		Rosters: rosters,
		Total:   total,
		Limit:   filter.Limit,
		Offset:  filter.Offset,
	})
}

// GetRoster 查询值班表API
func (h *Handler) GetRoster(w http.ResponseWriter, r *http.Request) {
	if appErr := h.requireDB(); appErr != nil {
		respondError(w, appErr)
		return
	}
	id, appErr := pathUUID(r, "id")
	if appErr != nil {
		respondError(w, appErr)
		return
	}

	roster, err := h.rosters.GetByID(r.Context(), id)
	if err != nil {
		respondError(w, errors.Wrap(err, errors.CodeDatabaseError, "查询值班表失败"))
		return
	}
	if roster == nil {
		respondError(w, errors.NotFound("roster", id.String()))
		return
	}
	respondJSON(w, http.StatusOK, roster)
}

// DeleteRoster 删除值班表API（软删除）
func (h *Handler) DeleteRoster(w http.ResponseWriter, r *http.Request) {
	if appErr := h.requireDB(); appErr != nil {
		respondError(w, appErr)
		return
	}
	id, appErr := pathUUID(r, "id")
	if appErr != nil {
		respondError(w, appErr)
		return
	}

	roster, err := h.rosters.GetByID(r.Context(), id)
	if err != nil {
		respondError(w, errors.Wrap(err, errors.CodeDatabaseError, "查询值班表失败"))
		return
	}
	if roster == nil {
		respondError(w, errors.NotFound("roster", id.String()))
		return
	}

	if err := h.rosters.Delete(r.Context(), id); err != nil {
		respondError(w, errors.Wrap(err, errors.CodeDatabaseError, "删除值班表失败"))
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{"deleted": true, "id": id.String()})
}

// PublishRoster 发布值班表API
//
// 仅草稿可发布；同一工作区内与已发布值班表时段相交时拒绝，
// 避免同一天存在两份生效的值班安排
func (h *Handler) PublishRoster(w http.ResponseWriter, r *http.Request) {
	if appErr := h.requireDB(); appErr != nil {
		respondError(w, appErr)
		return
	}
	id, appErr := pathUUID(r, "id")
	if appErr != nil {
		respondError(w, appErr)
		return
	}

	roster, err := h.rosters.GetByID(r.Context(), id)
	if err != nil {
		respondError(w, errors.Wrap(err, errors.CodeDatabaseError, "查询值班表失败"))
		return
	}
	if roster == nil {
		respondError(w, errors.NotFound("roster", id.String()))
		return
	}

	overlap, err := h.rosters.CountByDateRange(r.Context(), roster.WorkspaceID, roster.StartDate, roster.EndDate, "published")
	if err != nil {
		respondError(w, errors.Wrap(err, errors.CodeDatabaseError, "统计值班表失败"))
		return
	}
	if overlap > 0 {
		respondError(w, errors.New(errors.CodeAlreadyExists, "该时段已有已发布的值班表").
			WithField("workspace", roster.WorkspaceID).
			WithField("period", roster.StartDate+" ~ "+roster.EndDate))
		return
	}

	if err := h.rosters.Publish(r.Context(), id); err != nil {
		respondError(w, errors.New(errors.CodeAlreadyExists, "值班表不是草稿状态").WithDetails(err.Error()))
		return
	}

	logger.Get().Info().
		Str("roster_id", id.String()).
		Str("workspace", roster.WorkspaceID).
		Msg("值班表已发布")

	published, err := h.rosters.GetByID(r.Context(), id)
	if err != nil || published == nil {
		respondJSON(w, http.StatusOK, map[string]any{"published": true, "id": id.String()})
		return
	}
	respondJSON(w, http.StatusOK, published)
}

// RosterAssignmentsResponse 排班明细响应
type RosterAssignmentsResponse struct {
	RosterID    string                         `json:"roster_id"`
	Assignments []*repository.RosterAssignment `json:"assignments"`
	Count       int                            `json:"count"`
}

// RosterAssignments 排班明细API，按日期与槽位排序
func (h *Handler) RosterAssignments(w http.ResponseWriter, r *http.Request) {
	if appErr := h.requireDB(); appErr != nil {
		respondError(w, appErr)
		return
	}
	id, appErr := pathUUID(r, "id")
	if appErr != nil {
		respondError(w, appErr)
		return
	}

	roster, err := h.rosters.GetByID(r.Context(), id)
	if err != nil {
		respondError(w, errors.Wrap(err, errors.CodeDatabaseError, "查询值班表失败"))
		return
	}
	if roster == nil {
		respondError(w, errors.NotFound("roster", id.String()))
		return
	}

	assignments, err := h.rosters.GetAssignments(r.Context(), id)
	if err != nil {
		respondError(w, errors.Wrap(err, errors.CodeDatabaseError, "查询排班明细失败"))
		return
	}
	respondJSON(w, http.StatusOK, RosterAssignmentsResponse{
		RosterID:    id.String(),
		Assignments: assignments,
		Count:       len(assignments),
	})
}

// LatestRoster 最新值班表API
func (h *Handler) LatestRoster(w http.ResponseWriter, r *http.Request) {
	if appErr := h.requireDB(); appErr != nil {
		respondError(w, appErr)
		return
	}
	code := mux.Vars(r)["code"]

	roster, err := h.rosters.GetLatest(r.Context(), code)
	if err != nil {
		respondError(w, errors.Wrap(err, errors.CodeDatabaseError, "查询值班表失败"))
		return
	}
	if roster == nil {
		respondError(w, errors.NotFound("roster", code))
		return
	}
	respondJSON(w, http.StatusOK, roster)
}

// WorkerAssignmentsResponse 人员班次查询响应
type WorkerAssignmentsResponse struct {
	WorkerID    string                         `json:"worker_id"`
	StartDate   string                         `json:"start_date,omitempty"`
	EndDate     string                         `json:"end_date,omitempty"`
	Assignments []*repository.RosterAssignment `json:"assignments"`
	Count       int                            `json:"count"`
}

// WorkerAssignments 人员班次查询API
// 跨值班表按人员检索排班记录，供"我的班"类查询使用
func (h *Handler) WorkerAssignments(w http.ResponseWriter, r *http.Request) {
	if appErr := h.requireDB(); appErr != nil {
		respondError(w, appErr)
		return
	}

	q := r.URL.Query()
	workerID := q.Get("worker_id")
	if workerID == "" {
		respondError(w, errors.InvalidInput("worker_id", "人员标识不能为空"))
		return
	}

	assignments, err := h.rosters.GetAssignmentsByWorker(r.Context(), workerID, q.Get("start"), q.Get("end"))
	if err != nil {
		respondError(w, errors.Wrap(err, errors.CodeDatabaseError, "查询人员班次失败"))
		return
	}
	respondJSON(w, http.StatusOK, WorkerAssignmentsResponse{
		WorkerID:    workerID,
		StartDate:   q.Get("start"),
		EndDate:     q.Get("end"),
		Assignments: assignments,
		Count:       len(assignments),
	})
}
