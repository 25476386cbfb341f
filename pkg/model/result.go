// Package model 定义值班排班引擎的核心数据模型
package model

import "time"

// ViolationKind 约束违规类型
type ViolationKind string

const (
	ViolationIncompatibility  ViolationKind = "incompatibility"   // 不相容人员同日值班
	ViolationGap              ViolationKind = "gap"               // 间隔不足或 7/14 天同星期
	ViolationWeeklyPattern    ViolationKind = "weekly_pattern"    // 周期性同星期模式
	ViolationWeekendCap       ViolationKind = "weekend_cap"       // 周末类值班超限
	ViolationDaysOff          ViolationKind = "days_off"          // 不可用日被排班
	ViolationWorkPeriod       ViolationKind = "work_period"       // 在岗时段外被排班
	ViolationDuplicateOnDay   ViolationKind = "duplicate_on_day"  // 同日重复排班
	ViolationMandatoryMissing ViolationKind = "mandatory_missing" // 强制值班日缺席
	ViolationUncovered        ViolationKind = "uncovered"         // 槽位未填充
)

// Violation 单条约束违规记录
type Violation struct {
	Kind     ViolationKind `json:"kind"`
	WorkerID string        `json:"worker_id,omitempty"`
	Date     string        `json:"date"`
	Post     int           `json:"post"`
	Message  string        `json:"message"`
}

// UnresolvedMandatory 无法满足的强制值班
type UnresolvedMandatory struct {
	WorkerID string `json:"worker_id"`
	Date     string `json:"date"`
	Reason   string `json:"reason"`
}

// WorkerStat 单个人员的工作量统计
type WorkerStat struct {
	WorkerID      string      `json:"worker_id"`
	Target        int         `json:"target"`
	Assigned      int         `json:"assigned"`
	Deviation     int         `json:"deviation"` // assigned - target
	DevPct        float64     `json:"dev_pct"`
	WeekendShifts int         `json:"weekend_shifts"`
	HolidayShifts int         `json:"holiday_shifts"`
	PostCounts    map[int]int `json:"post_counts"` // 槽位编号 -> 次数
}

// Statistics 值班表整体统计
type Statistics struct {
	TotalSlots       int                    `json:"total_slots"`
	FilledSlots      int                    `json:"filled_slots"`
	EmptySlots       int                    `json:"empty_slots"`
	CoverageRate     float64                `json:"coverage_rate"`  // 覆盖率百分比 0-100
	FairnessScore    float64                `json:"fairness_score"` // 公平性综合评分 0-100
	Workers          map[string]*WorkerStat `json:"workers"`
	AttemptsUsed     int                    `json:"attempts_used"`
	ImprovementLoops int                    `json:"improvement_loops"`
	ElapsedMS        int64                  `json:"elapsed_ms"`
}

// Result 排班引擎输出
type Result struct {
	Schedule              Schedule              `json:"schedule"`
	UnresolvedMandatories []UnresolvedMandatory `json:"unresolved_mandatories"`
	Violations            []Violation           `json:"violations"`
	Stats                 *Statistics           `json:"stats,omitempty"`
	Cancelled             bool                  `json:"cancelled"`
}

// Success 检查结果是否无违规且无未决强制值班
func (r *Result) Success() bool {
	return !r.Cancelled && len(r.Violations) == 0 && len(r.UnresolvedMandatories) == 0
}

// Roster 持久化的值班表档案
type Roster struct {
	BaseModel
	WorkspaceID string           `json:"workspace_id" db:"workspace_id"`
	Name        string           `json:"name" db:"name"`
	StartDate   string           `json:"start_date" db:"start_date"`
	EndDate     string           `json:"end_date" db:"end_date"`
	Status      string           `json:"status" db:"status"` // draft/published/archived
	Version     int              `json:"version" db:"version"`
	CreatedBy   string           `json:"created_by,omitempty" db:"created_by"`
	PublishedAt *time.Time       `json:"published_at,omitempty" db:"published_at"`
	Config      *SchedulerConfig `json:"config,omitempty" db:"-"`
	Result      *Result          `json:"result,omitempty" db:"-"`
}

// IsPublished 检查值班表是否已发布
func (r *Roster) IsPublished() bool {
	return r.Status == "published"
}
