// Package replacement 提供替班候选查找：为空出的 (日期, 槽位)
// 在全部硬约束下筛选可行人员，并按补班优先度排序。
package replacement

import (
	"fmt"
	"sort"

	"github.com/zhiban/zhiban/pkg/calendar"
	"github.com/zhiban/zhiban/pkg/errors"
	"github.com/zhiban/zhiban/pkg/model"
	"github.com/zhiban/zhiban/pkg/scheduler/constraint"
	"github.com/zhiban/zhiban/pkg/scheduler/constraint/builtin"
	"github.com/zhiban/zhiban/pkg/validator"
)

// 评分权重：工作量欠额最重，其次休息间隔，最后周末均衡
const (
	weightDeviation = 0.5
	weightRest      = 0.3
	weightWeekend   = 0.2
)

// restComfortDays 间隔评分的饱和天数，超过按满分计
const restComfortDays = 14

// DefaultMaxCandidates 默认返回的候选上限
const DefaultMaxCandidates = 5

// Finder 替班候选查找器
type Finder struct {
	manager *constraint.Manager
}

// NewFinder 创建替班候选查找器，装载全部内置约束。
func NewFinder() *Finder {
	m := constraint.NewManager()
	builtin.RegisterDefaults(m)
	return &Finder{manager: m}
}

// Find 为单个 (日期, 槽位) 查找替班候选。
// 指定缺席人员时先让出槽位再评估，结果按可行优先、评分降序排列。
func (f *Finder) Find(cfg *model.SchedulerConfig, schedule model.Schedule, req *model.ReplacementRequest) (*model.ReplacementResult, error) {
	if req == nil {
		return nil, errors.InvalidInput("request", "替班请求不能为空")
	}
	if err := validator.ValidateConfig(cfg); err != nil {
		return nil, err
	}

	cal, err := calendar.New(cfg)
	if err != nil {
		return nil, err
	}
	day, ok := cal.IndexOf(req.Date)
	if !ok {
		return nil, errors.InvalidInput("date", "日期 "+req.Date+" 不在排班周期内")
	}
	slots := cal.Day(day).Slots
	if req.Post < 0 || req.Post >= slots {
		return nil, errors.InvalidInput("post", fmt.Sprintf("槽位 %d 超出当日范围 [0,%d)", req.Post, slots))
	}

	ctx := constraint.NewContext(cfg, cal, calendar.Targets(cfg.Workers, cal.TotalSlots()))
	if err := ctx.LoadSchedule(schedule); err != nil {
		return nil, err
	}

	if cur := ctx.WorkerAt(day, req.Post); cur != model.EmptySlot {
		if req.AbsentWorkerID != "" && cur != req.AbsentWorkerID {
			return nil, errors.InvalidInput("absent_worker_id",
				fmt.Sprintf("槽位由 %s 而非 %s 持有", cur, req.AbsentWorkerID))
		}
		ctx.Unassign(day, req.Post)
	}

	return f.rank(ctx, day, req), nil
}

// FindForAbsence 批量替班（病假模式）：为缺席人员的全部值班日
// 依次查找替班。已敲定的替班计入后续日期的评估，避免同一
// 替班人因间隔或周末上限在后续日期上隐性违规。
func (f *Finder) FindForAbsence(cfg *model.SchedulerConfig, schedule model.Schedule, absentWorkerID string) ([]*model.ReplacementResult, error) {
	if absentWorkerID == "" {
		return nil, errors.InvalidInput("absent_worker_id", "缺席人员不能为空")
	}
	if cfg.WorkerByID(absentWorkerID) == nil {
		return nil, errors.NotFound("worker", absentWorkerID)
	}
	if err := validator.ValidateConfig(cfg); err != nil {
		return nil, err
	}

	cal, err := calendar.New(cfg)
	if err != nil {
		return nil, err
	}
	ctx := constraint.NewContext(cfg, cal, calendar.Targets(cfg.Workers, cal.TotalSlots()))
	if err := ctx.LoadSchedule(schedule); err != nil {
		return nil, err
	}

	type slot struct {
		day  int
		post int
	}
	var vacated []slot
	for _, day := range append([]int(nil), ctx.AssignedDays(absentWorkerID)...) {
		if post := ctx.PostOf(day, absentWorkerID); post >= 0 {
			vacated = append(vacated, slot{day: day, post: post})
		}
	}

	results := make([]*model.ReplacementResult, 0, len(vacated))
	for _, s := range vacated {
		ctx.Unassign(s.day, s.post)
		req := &model.ReplacementRequest{
			Date:           cal.DateOf(s.day),
			Post:           s.post,
			AbsentWorkerID: absentWorkerID,
		}
		result := f.rank(ctx, s.day, req)
		if result.HasMatch() {
			ctx.Assign(result.BestMatch.WorkerID, s.day, s.post)
		}
		results = append(results, result)
	}
	return results, nil
}

// rank 评估全部候选并组装结果。
func (f *Finder) rank(ctx *constraint.Context, day int, req *model.ReplacementRequest) *model.ReplacementResult {
	candidates := make([]model.ReplacementCandidate, 0, len(ctx.Workers))
	for _, w := range ctx.Workers {
		if w.ID == req.AbsentWorkerID {
			continue
		}
		candidates = append(candidates, f.evaluate(ctx, w, day, req.Post))
	}

	// 可行解优先，评分降序，并列按人员ID保证确定性
	sort.SliceStable(candidates, func(i, j int) bool {
		a, b := candidates[i], candidates[j]
		if a.Feasible != b.Feasible {
			return a.Feasible
		}
		if a.Score != b.Score {
			return a.Score > b.Score
		}
		return a.WorkerID < b.WorkerID
	})

	max := req.MaxCandidates
	if max <= 0 {
		max = DefaultMaxCandidates
	}

	result := &model.ReplacementResult{Date: req.Date, Post: req.Post}
	if len(candidates) == 0 {
		return result
	}
	if candidates[0].Feasible {
		best := candidates[0]
		result.BestMatch = &best
		candidates = candidates[1:]
		if max > 0 {
			max--
		}
	}
	if len(candidates) > max {
		candidates = candidates[:max]
	}
	result.Alternatives = candidates
	return result
}

// evaluate 评估单个候选：先过全部硬约束，可行者再计算偏好评分。
func (f *Finder) evaluate(ctx *constraint.Context, w *model.Worker, day, post int) model.ReplacementCandidate {
	cand := model.ReplacementCandidate{
		WorkerID:  w.ID,
		Name:      w.Name,
		Deviation: ctx.Count(w.ID) - ctx.Targets[w.ID],
		Feasible:  true,
	}

	for _, c := range f.manager.GetByCategory(constraint.CategoryHard) {
		if valid, reason := c.EvaluateAssignment(ctx, w.ID, day, post); !valid {
			cand.Feasible = false
			cand.Conflicts = append(cand.Conflicts, string(c.Kind())+": "+reason)
		}
	}
	if !cand.Feasible {
		return cand
	}

	devScore := clampScore(50 - float64(cand.Deviation)*10)
	if cand.Deviation < 0 {
		cand.Reasons = append(cand.Reasons, fmt.Sprintf("欠班 %d 天，优先补班", -cand.Deviation))
	}

	restScore := 100.0
	if nearest := nearestAssignment(ctx, w.ID, day); nearest >= 0 {
		if nearest > restComfortDays {
			nearest = restComfortDays
		}
		restScore = float64(nearest) / restComfortDays * 100
		cand.Reasons = append(cand.Reasons, fmt.Sprintf("距最近值班 %d 天", nearest))
	} else {
		cand.Reasons = append(cand.Reasons, "本周期尚无值班")
	}

	weekendScore := 100.0
	if ctx.Calendar.Day(day).WeekendLike {
		weekendScore = clampScore(100 - float64(ctx.WeekendCount(w.ID))*25)
		if ctx.WeekendCount(w.ID) == 0 {
			cand.Reasons = append(cand.Reasons, "本周期尚无周末类值班")
		}
	}

	cand.Score = devScore*weightDeviation + restScore*weightRest + weekendScore*weightWeekend
	return cand
}

// nearestAssignment 返回候选人现有值班到 day 的最小天数差，
// 无值班时返回 -1。
func nearestAssignment(ctx *constraint.Context, workerID string, day int) int {
	days := ctx.AssignedDays(workerID)
	if len(days) == 0 {
		return -1
	}
	i := sort.SearchInts(days, day)
	nearest := -1
	if i < len(days) {
		nearest = days[i] - day
	}
	if i > 0 {
		if d := day - days[i-1]; nearest < 0 || d < nearest {
			nearest = d
		}
	}
	return nearest
}

func clampScore(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 100 {
		return 100
	}
	return v
}
