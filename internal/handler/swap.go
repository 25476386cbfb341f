package handler

import (
	"net/http"

	"github.com/zhiban/zhiban/pkg/errors"
	"github.com/zhiban/zhiban/pkg/model"
	"github.com/zhiban/zhiban/pkg/replacement"
	"github.com/zhiban/zhiban/pkg/scheduler/constraint"
	"github.com/zhiban/zhiban/pkg/scheduler/constraint/builtin"
	"github.com/zhiban/zhiban/pkg/swap"
)

// SuggestSwapsRequest 换班建议请求
type SuggestSwapsRequest struct {
	Config         *model.SchedulerConfig `json:"config"`
	Schedule       model.Schedule         `json:"schedule"`
	MaxSuggestions int                    `json:"max_suggestions,omitempty"`
	AllowExchange  *bool                  `json:"allow_exchange,omitempty"` // 缺省允许互换
}

// SuggestSwapsResponse 换班建议响应
type SuggestSwapsResponse struct {
	Suggestions []swap.Suggestion `json:"suggestions"`
	Count       int               `json:"count"`
}

// SuggestSwaps 换班建议API
// 在给定值班表上搜索工作量再平衡建议，不修改值班表本身
func (h *Handler) SuggestSwaps(w http.ResponseWriter, r *http.Request) {
	var req SuggestSwapsRequest
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

	manager := constraint.NewManager()
	builtin.RegisterDefaults(manager)

	opts := swap.DefaultOptions()
	if req.MaxSuggestions > 0 {
		opts.MaxSuggestions = req.MaxSuggestions
	}
	if req.AllowExchange != nil {
		opts.AllowExchange = *req.AllowExchange
	}

	suggestions := swap.NewSuggester(manager).FindBestSwaps(c, opts)
	respondJSON(w, http.StatusOK, SuggestSwapsResponse{
		Suggestions: suggestions,
		Count:       len(suggestions),
	})
}

// FindReplacementsRequest 替班查找请求
// 给定日期与槽位时查找单个空缺的替班人；只给定缺席人员时
// 批量处理该人员在值班表中的全部班次（如病假）
type FindReplacementsRequest struct {
	Config         *model.SchedulerConfig `json:"config"`
	Schedule       model.Schedule         `json:"schedule"`
	Date           string                 `json:"date,omitempty"`
	Post           int                    `json:"post,omitempty"`
	AbsentWorkerID string                 `json:"absent_worker_id,omitempty"`
	MaxCandidates  int                    `json:"max_candidates,omitempty"`
}

// FindReplacementsResponse 替班查找响应
type FindReplacementsResponse struct {
	Results []*model.ReplacementResult `json:"results"`
	Count   int                        `json:"count"`
}

// FindReplacements 替班查找API
func (h *Handler) FindReplacements(w http.ResponseWriter, r *http.Request) {
	var req FindReplacementsRequest
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

	finder := replacement.NewFinder()

	// 批量模式：缺席人员的全部班次
	if req.Date == "" {
		if req.AbsentWorkerID == "" {
			respondError(w, errors.InvalidInput("date", "必须给定替班日期或缺席人员"))
			return
		}
		results, err := finder.FindForAbsence(req.Config, req.Schedule, req.AbsentWorkerID)
		if err != nil {
			respondError(w, toAppError(err))
			return
		}
		respondJSON(w, http.StatusOK, FindReplacementsResponse{Results: results, Count: len(results)})
		return
	}

	result, err := finder.Find(req.Config, req.Schedule, &model.ReplacementRequest{
		Date:           req.Date,
		Post:           req.Post,
		AbsentWorkerID: req.AbsentWorkerID,
		MaxCandidates:  req.MaxCandidates,
	})
	if err != nil {
		respondError(w, toAppError(err))
		return
	}
	respondJSON(w, http.StatusOK, FindReplacementsResponse{
		Results: []*model.ReplacementResult{result},
		Count:   1,
	})
}
