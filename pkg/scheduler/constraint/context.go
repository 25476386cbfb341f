// Package constraint 定义值班约束接口和管理器
package constraint

import (
	"sort"

	"github.com/zhiban/zhiban/pkg/calendar"
	"github.com/zhiban/zhiban/pkg/errors"
	"github.com/zhiban/zhiban/pkg/model"
)

// Context 排班上下文：按日下标持有值班表状态及各类索引缓存
// 求解与改进阶段的所有读写都经过这里，计数缓存保证目标函数的增量更新
type Context struct {
	Config   *model.SchedulerConfig
	Calendar *calendar.Calendar
	Workers  []*model.Worker
	Targets  map[string]int

	// schedule[dayIdx][post] = 人员ID 或 model.EmptySlot
	Schedule [][]string

	// 未能满足的强制值班，由求解器填入
	Unresolved []model.UnresolvedMandatory

	// 索引缓存
	workerMap      map[string]*model.Worker
	assignedDays   map[string][]int // 人员ID -> 升序日下标
	counts         map[string]int
	weekendCounts  map[string]int
	holidayCounts  map[string]int
	lastPostCounts map[string]int
	mandatoryDays  map[string]map[int]bool
	incompatible   map[string]map[string]bool
	unresolvedSet  map[string]map[int]bool
	filled         int
}

// NewContext 创建排班上下文并构建索引
// 不相容关系被归一化为对称邻接表：incompatible_with 双向登记，
// 带组不相容标记的人员两两互斥
func NewContext(cfg *model.SchedulerConfig, cal *calendar.Calendar, targets map[string]int) *Context {
	ctx := &Context{
		Config:         cfg,
		Calendar:       cal,
		Workers:        cfg.Workers,
		Targets:        targets,
		Schedule:       make([][]string, cal.Len()),
		workerMap:      make(map[string]*model.Worker, len(cfg.Workers)),
		assignedDays:   make(map[string][]int),
		counts:         make(map[string]int),
		weekendCounts:  make(map[string]int),
		holidayCounts:  make(map[string]int),
		lastPostCounts: make(map[string]int),
		mandatoryDays:  make(map[string]map[int]bool),
		incompatible:   make(map[string]map[string]bool),
		unresolvedSet:  make(map[string]map[int]bool),
	}

	for i := 0; i < cal.Len(); i++ {
		ctx.Schedule[i] = make([]string, cal.Day(i).Slots)
	}

	for _, w := range cfg.Workers {
		ctx.workerMap[w.ID] = w

		// 周期外的强制值班日不参与排班
		for _, d := range w.MandatoryDays {
			if idx, ok := cal.IndexOf(d); ok {
				if ctx.mandatoryDays[w.ID] == nil {
					ctx.mandatoryDays[w.ID] = make(map[int]bool)
				}
				ctx.mandatoryDays[w.ID][idx] = true
			}
		}

		for _, other := range w.IncompatibleWith {
			ctx.addIncompatible(w.ID, other)
		}
	}

	// 组不相容：带标记的人员构成互斥团
	var grouped []string
	for _, w := range cfg.Workers {
		if w.IsIncompatible {
			grouped = append(grouped, w.ID)
		}
	}
	for i := 0; i < len(grouped); i++ {
		for j := i + 1; j < len(grouped); j++ {
			ctx.addIncompatible(grouped[i], grouped[j])
		}
	}

	return ctx
}

func (c *Context) addIncompatible(a, b string) {
	if a == b {
		return
	}
	if c.incompatible[a] == nil {
		c.incompatible[a] = make(map[string]bool)
	}
	if c.incompatible[b] == nil {
		c.incompatible[b] = make(map[string]bool)
	}
	c.incompatible[a][b] = true
	c.incompatible[b][a] = true
}

// Worker 按ID查找人员
func (c *Context) Worker(id string) *model.Worker {
	return c.workerMap[id]
}

// WorkerAt 返回 (day, post) 上的人员ID，空槽返回 EmptySlot
func (c *Context) WorkerAt(day, post int) string {
	return c.Schedule[day][post]
}

// HasWorkerOn 检查人员当日是否已有值班
func (c *Context) HasWorkerOn(day int, workerID string) bool {
	for _, id := range c.Schedule[day] {
		if id == workerID {
			return true
		}
	}
	return false
}

// PostOf 返回人员当日所在槽位，未值班返回 -1
func (c *Context) PostOf(day int, workerID string) int {
	for p, id := range c.Schedule[day] {
		if id == workerID {
			return p
		}
	}
	return -1
}

// Assign 将人员排入 (day, post)，调用方保证该槽位为空
func (c *Context) Assign(workerID string, day, post int) {
	c.Schedule[day][post] = workerID
	c.filled++

	days := c.assignedDays[workerID]
	i := sort.SearchInts(days, day)
	days = append(days, 0)
	copy(days[i+1:], days[i:])
	days[i] = day
	c.assignedDays[workerID] = days

	c.counts[workerID]++
	info := c.Calendar.Day(day)
	if info.WeekendLike {
		c.weekendCounts[workerID]++
	}
	if info.IsHoliday {
		c.holidayCounts[workerID]++
	}
	if post == info.Slots-1 {
		c.lastPostCounts[workerID]++
	}
}

// Unassign 清空 (day, post)，返回被移除的人员ID
func (c *Context) Unassign(day, post int) string {
	workerID := c.Schedule[day][post]
	if workerID == model.EmptySlot {
		return model.EmptySlot
	}
	c.Schedule[day][post] = model.EmptySlot
	c.filled--

	days := c.assignedDays[workerID]
	i := sort.SearchInts(days, day)
	if i < len(days) && days[i] == day {
		c.assignedDays[workerID] = append(days[:i], days[i+1:]...)
	}

	c.counts[workerID]--
	info := c.Calendar.Day(day)
	if info.WeekendLike {
		c.weekendCounts[workerID]--
	}
	if info.IsHoliday {
		c.holidayCounts[workerID]--
	}
	if post == info.Slots-1 {
		c.lastPostCounts[workerID]--
	}
	return workerID
}

// AssignedDays 返回人员的全部值班日下标（升序，勿修改）
func (c *Context) AssignedDays(workerID string) []int {
	return c.assignedDays[workerID]
}

// Count 返回人员当前值班数
func (c *Context) Count(workerID string) int {
	return c.counts[workerID]
}

// WeekendCount 返回人员的周末类值班数
func (c *Context) WeekendCount(workerID string) int {
	return c.weekendCounts[workerID]
}

// HolidayCount 返回人员的节假日值班数
func (c *Context) HolidayCount(workerID string) int {
	return c.holidayCounts[workerID]
}

// LastPostCount 返回人员的末槽位值班数
func (c *Context) LastPostCount(workerID string) int {
	return c.lastPostCounts[workerID]
}

// FilledCount 返回已填充槽位数
func (c *Context) FilledCount() int {
	return c.filled
}

// EquityScore 返回公平性得分 -Σ|current - target|，越大越均衡
func (c *Context) EquityScore() int {
	score := 0
	for _, w := range c.Workers {
		dev := c.counts[w.ID] - c.Targets[w.ID]
		if dev < 0 {
			dev = -dev
		}
		score -= dev
	}
	return score
}

// IsMandatory 检查 (workerID, day) 是否为强制值班
func (c *Context) IsMandatory(workerID string, day int) bool {
	return c.mandatoryDays[workerID][day]
}

// MandatoryDayIndexes 返回人员在周期内的强制值班日下标（升序）
func (c *Context) MandatoryDayIndexes(workerID string) []int {
	set := c.mandatoryDays[workerID]
	if len(set) == 0 {
		return nil
	}
	days := make([]int, 0, len(set))
	for d := range set {
		days = append(days, d)
	}
	sort.Ints(days)
	return days
}

// AreIncompatible 检查两名人员是否不相容
func (c *Context) AreIncompatible(a, b string) bool {
	return c.incompatible[a][b]
}

// MarkUnresolved 登记无法满足的强制值班
func (c *Context) MarkUnresolved(workerID string, day int, reason string) {
	c.Unresolved = append(c.Unresolved, model.UnresolvedMandatory{
		WorkerID: workerID,
		Date:     c.Calendar.DateOf(day),
		Reason:   reason,
	})
	if c.unresolvedSet[workerID] == nil {
		c.unresolvedSet[workerID] = make(map[int]bool)
	}
	c.unresolvedSet[workerID][day] = true
}

// IsUnresolved 检查 (workerID, day) 是否已登记为未决强制值班
func (c *Context) IsUnresolved(workerID string, day int) bool {
	return c.unresolvedSet[workerID][day]
}

// Clone 深拷贝可变状态；配置、日历与不相容关系等只读索引共享
func (c *Context) Clone() *Context {
	clone := &Context{
		Config:         c.Config,
		Calendar:       c.Calendar,
		Workers:        c.Workers,
		Targets:        c.Targets,
		Schedule:       make([][]string, len(c.Schedule)),
		Unresolved:     append([]model.UnresolvedMandatory(nil), c.Unresolved...),
		workerMap:      c.workerMap,
		assignedDays:   make(map[string][]int, len(c.assignedDays)),
		counts:         make(map[string]int, len(c.counts)),
		weekendCounts:  make(map[string]int, len(c.weekendCounts)),
		holidayCounts:  make(map[string]int, len(c.holidayCounts)),
		lastPostCounts: make(map[string]int, len(c.lastPostCounts)),
		mandatoryDays:  c.mandatoryDays,
		incompatible:   c.incompatible,
		unresolvedSet:  make(map[string]map[int]bool, len(c.unresolvedSet)),
		filled:         c.filled,
	}
	for i, row := range c.Schedule {
		clone.Schedule[i] = append([]string(nil), row...)
	}
	for id, days := range c.assignedDays {
		clone.assignedDays[id] = append([]int(nil), days...)
	}
	for id, n := range c.counts {
		clone.counts[id] = n
	}
	for id, n := range c.weekendCounts {
		clone.weekendCounts[id] = n
	}
	for id, n := range c.holidayCounts {
		clone.holidayCounts[id] = n
	}
	for id, n := range c.lastPostCounts {
		clone.lastPostCounts[id] = n
	}
	for id, set := range c.unresolvedSet {
		s := make(map[int]bool, len(set))
		for d := range set {
			s[d] = true
		}
		clone.unresolvedSet[id] = s
	}
	return clone
}

// ToSchedule 导出为日期键值形式
func (c *Context) ToSchedule() model.Schedule {
	out := make(model.Schedule, len(c.Schedule))
	for i, row := range c.Schedule {
		out[c.Calendar.DateOf(i)] = append([]string(nil), row...)
	}
	return out
}

// LoadSchedule 从日期键值形式载入已有值班表
// 日期必须落在日历内；行长不足时按空槽补齐。
// 同日重复出现的人员只载入首次，其余槽位留空，
// 否则重复条目会污染值班日索引并虚报零间隔违规
func (c *Context) LoadSchedule(s model.Schedule) error {
	for date, row := range s {
		idx, ok := c.Calendar.IndexOf(date)
		if !ok {
			return errors.InvalidInput("schedule", "日期 "+date+" 不在排班周期内")
		}
		slots := c.Calendar.Day(idx).Slots
		if len(row) > slots {
			return errors.InvalidInput("schedule", "日期 "+date+" 的槽位数超出配置")
		}
		seen := make(map[string]bool, len(row))
		for post, id := range row {
			if id == model.EmptySlot {
				continue
			}
			if c.workerMap[id] == nil {
				return errors.InvalidInput("schedule", "未知人员 "+id)
			}
			if seen[id] {
				continue
			}
			if c.Schedule[idx][post] != model.EmptySlot {
				continue
			}
			seen[id] = true
			c.Assign(id, idx, post)
		}
	}
	return nil
}
