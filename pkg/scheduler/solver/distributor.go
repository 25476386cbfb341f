// Package solver 提供值班表的严格初始分配求解器
package solver

import (
	"math/rand"
	"sort"

	"github.com/zhiban/zhiban/pkg/model"
	"github.com/zhiban/zhiban/pkg/scheduler/constraint"
)

// 候选打分权重，数值为经验校准值，测试只验证排序关系
const (
	weightTargetGap     = 10 // 距目标差额
	weightPostBalance   = 3  // 末槽位均衡
	weightWeekendSpread = 2  // 周末类值班均衡
	weightRecentDensity = 1  // 近期密度惩罚
)

// densityRadius 近期密度的统计半径（天）
const densityRadius = 6

// Attempt 一次严格分配尝试的产出
type Attempt struct {
	Index  int
	Ctx    *constraint.Context
	Filled int
	Equity int
}

// Better 判断当前尝试是否优于另一个：填充数大者优，
// 公平性得分大者次之，尝试序号小者再次，保证同种子可复现
func (a *Attempt) Better(b *Attempt) bool {
	if a.Filled != b.Filled {
		return a.Filled > b.Filled
	}
	if a.Equity != b.Equity {
		return a.Equity > b.Equity
	}
	return a.Index < b.Index
}

// Distributor 严格初始分配器
// 先安置强制值班，再按乱序日期逐槽位填充得分最高的可行人选；
// 硬约束一票否决，找不到可行人选的槽位留空，决不违规填充
type Distributor struct {
	manager *constraint.Manager
}

// NewDistributor 创建严格初始分配器
func NewDistributor(m *constraint.Manager) *Distributor {
	return &Distributor{manager: m}
}

// Run 执行一次分配尝试
// base 为空白上下文模板，内部克隆后填充，尝试之间互不影响；
// 同一 (seed, index) 输入产生完全相同的草稿
func (d *Distributor) Run(base *constraint.Context, seed int64, index int) *Attempt {
	ctx := base.Clone()
	rng := rand.New(rand.NewSource(seed + int64(index)))

	d.placeMandatories(ctx)
	d.fill(ctx, rng)

	return &Attempt{
		Index:  index,
		Ctx:    ctx,
		Filled: ctx.FilledCount(),
		Equity: ctx.EquityScore(),
	}
}

// placeMandatories 先行安置全部强制值班
// 按日期先后处理，同日多名强制人员时可用日少者优先；
// 放不下的登记为未决冲突，不中断整体排班
func (d *Distributor) placeMandatories(ctx *constraint.Context) {
	type entry struct {
		day      int
		workerID string
		avail    int
		order    int
	}

	period := ctx.Config.Period()
	var entries []entry
	for i, w := range ctx.Workers {
		for _, day := range ctx.MandatoryDayIndexes(w.ID) {
			entries = append(entries, entry{
				day:      day,
				workerID: w.ID,
				avail:    w.AvailableDaysWithin(period),
				order:    i,
			})
		}
	}

	sort.Slice(entries, func(i, j int) bool {
		if entries[i].day != entries[j].day {
			return entries[i].day < entries[j].day
		}
		if entries[i].avail != entries[j].avail {
			return entries[i].avail < entries[j].avail
		}
		return entries[i].order < entries[j].order
	})

	for _, e := range entries {
		d.placeMandatory(ctx, e.workerID, e.day)
	}
}

// placeMandatory 将单个强制值班排入当日首个可行空槽
func (d *Distributor) placeMandatory(ctx *constraint.Context, workerID string, day int) {
	slots := ctx.Calendar.Day(day).Slots

	tried := false
	var lastKind model.ViolationKind
	for post := 0; post < slots; post++ {
		if ctx.WorkerAt(day, post) != model.EmptySlot {
			continue
		}
		tried = true
		ok, kind, _ := d.manager.CanAssign(ctx, workerID, day, post)
		if ok {
			ctx.Assign(workerID, day, post)
			return
		}
		lastKind = kind
	}

	// 当日槽位已满时，若占用者中存在不相容人员，按不相容冲突归因
	if !tried {
		for _, other := range ctx.Schedule[day] {
			if other != model.EmptySlot && ctx.AreIncompatible(workerID, other) {
				lastKind = model.ViolationIncompatibility
				break
			}
		}
	}

	ctx.MarkUnresolved(workerID, day, refusalReason(ctx, workerID, day, lastKind))
}

// refusalReason 将强制值班的拒绝类型映射为结果中的固定原因
func refusalReason(ctx *constraint.Context, workerID string, day int, kind model.ViolationKind) string {
	switch kind {
	case model.ViolationIncompatibility:
		for _, other := range ctx.Schedule[day] {
			if other == model.EmptySlot || !ctx.AreIncompatible(workerID, other) {
				continue
			}
			if ctx.IsMandatory(other, day) {
				return "incompatible co-mandatory"
			}
		}
		return "incompatible with assigned worker"
	case model.ViolationDaysOff:
		return "mandatory day is a day off"
	case model.ViolationWorkPeriod:
		return "mandatory day outside work periods"
	case model.ViolationWeekendCap:
		return "exceeds weekend cap"
	case model.ViolationDuplicateOnDay:
		return "already assigned that day"
	case "":
		return "no free slot"
	default:
		return string(kind)
	}
}

// fill 以乱序遍历日期，对每个空槽位选取得分最高的可行人选
func (d *Distributor) fill(ctx *constraint.Context, rng *rand.Rand) {
	for _, day := range rng.Perm(ctx.Calendar.Len()) {
		slots := ctx.Calendar.Day(day).Slots
		for post := 0; post < slots; post++ {
			if ctx.WorkerAt(day, post) != model.EmptySlot {
				continue
			}
			if id := d.pickCandidate(ctx, day, post, rng); id != model.EmptySlot {
				ctx.Assign(id, day, post)
			}
		}
	}
}

// pickCandidate 返回槽位上得分最高的可行人选，同分者等概率抽取
func (d *Distributor) pickCandidate(ctx *constraint.Context, day, post int, rng *rand.Rand) string {
	bestID := model.EmptySlot
	bestScore := 0
	ties := 0

	for _, w := range ctx.Workers {
		ok, _, _ := d.manager.CanAssign(ctx, w.ID, day, post)
		if !ok {
			continue
		}
		score := d.score(ctx, w.ID, day, post)
		switch {
		case bestID == model.EmptySlot || score > bestScore:
			bestID = w.ID
			bestScore = score
			ties = 1
		case score == bestScore:
			ties++
			if rng.Intn(ties) == 0 {
				bestID = w.ID
			}
		}
	}

	return bestID
}

// score 计算候选得分：距目标差额与均衡项为正向，近期密度为负向
func (d *Distributor) score(ctx *constraint.Context, workerID string, day, post int) int {
	s := weightTargetGap * (ctx.Targets[workerID] - ctx.Count(workerID))
	s += weightPostBalance * d.postBalance(ctx, workerID, day, post)
	s += weightWeekendSpread * d.weekendBalance(ctx, workerID, day)
	s -= weightRecentDensity * d.recentDensity(ctx, workerID, day)
	return s
}

// postBalance 末槽位均衡项：当前末槽位值班越多，再排末槽位的得分越低
func (d *Distributor) postBalance(ctx *constraint.Context, workerID string, day, post int) int {
	if post != ctx.Calendar.Day(day).Slots-1 {
		return 0
	}
	return -ctx.LastPostCount(workerID)
}

// weekendBalance 周末类均衡项：周末类值班越多，再排周末类日期的得分越低
func (d *Distributor) weekendBalance(ctx *constraint.Context, workerID string, day int) int {
	if !ctx.Calendar.Day(day).WeekendLike {
		return 0
	}
	return -ctx.WeekendCount(workerID)
}

// recentDensity 近期密度：统计半径内已有的值班数，抑制值班扎堆
func (d *Distributor) recentDensity(ctx *constraint.Context, workerID string, day int) int {
	n := 0
	for _, assigned := range ctx.AssignedDays(workerID) {
		diff := assigned - day
		if diff < 0 {
			diff = -diff
		}
		if diff <= densityRadius {
			n++
		}
	}
	return n
}
