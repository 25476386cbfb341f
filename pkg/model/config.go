// Package model 定义值班排班引擎的核心数据模型
package model

// VariableShift 按日期区间覆盖每日槽位数
type VariableShift struct {
	StartDate string `json:"start"` // YYYY-MM-DD
	EndDate   string `json:"end"`   // YYYY-MM-DD
	Count     int    `json:"count"` // 区间内每日槽位数
}

// SchedulerConfig 排班引擎配置
// 解码时先填入 DefaultSchedulerConfig 的默认值，再用请求体覆盖，
// 因此缺省字段保持默认值，显式传入的零值同样生效
type SchedulerConfig struct {
	StartDate string `json:"start_date"` // 周期起始（含）
	EndDate   string `json:"end_date"`   // 周期结束（含）

	NumShifts      int             `json:"num_shifts"`                // 默认每日槽位数
	VariableShifts []VariableShift `json:"variable_shifts,omitempty"` // 按区间覆盖槽位数
	Holidays       []string        `json:"holidays,omitempty"`        // 节假日（YYYY-MM-DD）
	Workers        []*Worker       `json:"workers"`

	GapBetweenShifts       int     `json:"gap_between_shifts"`       // 两次值班的最小间隔天数
	MaxConsecutiveWeekends int     `json:"max_consecutive_weekends"` // 滑动三周窗口内的周末类值班上限
	Tolerance              float64 `json:"tolerance"`                // 工作量偏差容忍度 [0,1]

	NumInitialAttempts  int    `json:"num_initial_attempts"`  // 第一阶段尝试次数
	MaxImprovementLoops int    `json:"max_improvement_loops"` // 第二阶段最大改进轮数
	EnableDualMode      bool   `json:"enable_dual_mode"`      // 启用双阶段流水线
	Seed                *int64 `json:"seed,omitempty"`        // 可选随机种子（缺省则取时钟）
}

// DefaultSchedulerConfig 返回带默认值的配置
func DefaultSchedulerConfig() *SchedulerConfig {
	return &SchedulerConfig{
		NumShifts:              1,
		GapBetweenShifts:       2,
		MaxConsecutiveWeekends: 2,
		Tolerance:              0.1,
		NumInitialAttempts:     30,
		MaxImprovementLoops:    150,
		EnableDualMode:         true,
	}
}

// Period 返回配置的全局周期
func (c *SchedulerConfig) Period() DateRange {
	return DateRange{StartDate: c.StartDate, EndDate: c.EndDate}
}

// SlotsOn 返回某日的槽位数：取第一个覆盖该日的区间，否则默认值
func (c *SchedulerConfig) SlotsOn(date string) int {
	for _, vs := range c.VariableShifts {
		if date >= vs.StartDate && date <= vs.EndDate {
			return vs.Count
		}
	}
	return c.NumShifts
}

// WorkerByID 按ID查找人员
func (c *SchedulerConfig) WorkerByID(id string) *Worker {
	for _, w := range c.Workers {
		if w.ID == id {
			return w
		}
	}
	return nil
}
