// Package model 定义值班排班引擎的核心数据模型
package model

// Worker 值班人员（医生）
type Worker struct {
	ID   string `json:"id" db:"id"`
	Name string `json:"name,omitempty" db:"name"`

	// 工作量相关
	WorkPercentage      int  `json:"work_percentage" db:"work_percentage"`             // 出勤百分比 (0, 100]
	TargetShifts        *int `json:"target_shifts,omitempty" db:"target_shifts"`       // 可选的班次数覆盖值
	AutoCalculateShifts bool `json:"auto_calculate_shifts" db:"auto_calculate_shifts"` // 按百分比自动计算班次数

	// 不相容关系
	IsIncompatible   bool     `json:"is_incompatible" db:"is_incompatible"`               // 组不相容标记
	IncompatibleWith []string `json:"incompatible_with,omitempty" db:"incompatible_with"` // 成对不相容的人员ID

	// 可用性
	MandatoryDays []string    `json:"mandatory_days,omitempty" db:"mandatory_days"`   // 必须值班的日期
	DaysOff       []string    `json:"days_off,omitempty" db:"days_off"`               // 单日不可用
	DaysOffRanges []DateRange `json:"days_off_ranges,omitempty" db:"days_off_ranges"` // 区间不可用
	WorkPeriods   []DateRange `json:"work_periods,omitempty" db:"work_periods"`       // 在岗时段（空表示全周期可用）
}

// IsDayOff 检查日期是否为该人员的不可用日
func (w *Worker) IsDayOff(date string) bool {
	for _, d := range w.DaysOff {
		if d == date {
			return true
		}
	}
	for _, r := range w.DaysOffRanges {
		if r.Contains(date) {
			return true
		}
	}
	return false
}

// InWorkPeriod 检查日期是否落在该人员的在岗时段内
// work_periods 为空表示全周期在岗
func (w *Worker) InWorkPeriod(date string) bool {
	if len(w.WorkPeriods) == 0 {
		return true
	}
	for _, p := range w.WorkPeriods {
		if p.Contains(date) {
			return true
		}
	}
	return false
}

// IsAvailableOn 检查人员在某日是否可排班（在岗且非不可用日）
func (w *Worker) IsAvailableOn(date string) bool {
	return w.InWorkPeriod(date) && !w.IsDayOff(date)
}

// IsMandatoryOn 检查日期是否为该人员的强制值班日
func (w *Worker) IsMandatoryOn(date string) bool {
	for _, d := range w.MandatoryDays {
		if d == date {
			return true
		}
	}
	return false
}

// AvailableDaysWithin 统计人员在给定周期内的可用天数
// 用于强制值班冲突时按"最受限优先"排序
func (w *Worker) AvailableDaysWithin(period DateRange) int {
	if len(w.WorkPeriods) == 0 {
		return period.Days()
	}
	total := 0
	for _, p := range w.WorkPeriods {
		start := p.StartDate
		if period.StartDate > start {
			start = period.StartDate
		}
		end := p.EndDate
		if period.EndDate < end {
			end = period.EndDate
		}
		if start <= end {
			total += DateRange{StartDate: start, EndDate: end}.Days()
		}
	}
	return total
}
