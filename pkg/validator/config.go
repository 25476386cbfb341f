// Package validator 提供排班配置验证功能
package validator

import (
	"fmt"
	"sort"

	"github.com/zhiban/zhiban/pkg/errors"
	"github.com/zhiban/zhiban/pkg/model"
)

// IssueType 问题类型
type IssueType string

const (
	IssueDateFormat   IssueType = "date_format"   // 日期格式错误
	IssueDateOrder    IssueType = "date_order"    // 起止顺序错误
	IssueSlotCount    IssueType = "slot_count"    // 槽位数非法
	IssueRangeOverlap IssueType = "range_overlap" // 变动槽位区间重叠
	IssueParameter    IssueType = "parameter"     // 参数越界
	IssueWorker       IssueType = "worker"        // 人员定义错误
	IssueReference    IssueType = "reference"     // 引用了未知人员
	IssueMandatory    IssueType = "mandatory"     // 强制值班日无法满足
)

// 问题严重程度。error 级问题会拒绝整份配置，warning 级仅提示
const (
	SeverityError   = "error"
	SeverityWarning = "warning"
)

// Issue 验证发现的单个问题
type Issue struct {
	Type     IssueType `json:"type"`
	Severity string    `json:"severity"`
	Field    string    `json:"field"`
	Message  string    `json:"message"`
}

// ConfigValidator 配置验证器
// 在构建日历之前对配置做结构化检查，保证拒绝时不产生任何中间状态
type ConfigValidator struct{}

// NewConfigValidator 创建配置验证器
func NewConfigValidator() *ConfigValidator {
	return &ConfigValidator{}
}

// Validate 检查配置并返回全部问题（含 warning 级）
func (v *ConfigValidator) Validate(cfg *model.SchedulerConfig) []Issue {
	if cfg == nil {
		return []Issue{{
			Type:     IssueParameter,
			Severity: SeverityError,
			Field:    "config",
			Message:  "配置为空",
		}}
	}

	var issues []Issue
	issues = append(issues, v.checkPeriod(cfg)...)
	issues = append(issues, v.checkShifts(cfg)...)
	issues = append(issues, v.checkParameters(cfg)...)
	issues = append(issues, v.checkWorkers(cfg)...)
	return issues
}

// checkPeriod 检查全局周期与节假日
func (v *ConfigValidator) checkPeriod(cfg *model.SchedulerConfig) []Issue {
	var issues []Issue

	startOK := model.IsValidDate(cfg.StartDate)
	endOK := model.IsValidDate(cfg.EndDate)
	if !startOK {
		issues = append(issues, dateFormatIssue("start_date"))
	}
	if !endOK {
		issues = append(issues, dateFormatIssue("end_date"))
	}
	if startOK && endOK && cfg.StartDate > cfg.EndDate {
		issues = append(issues, Issue{
			Type:     IssueDateOrder,
			Severity: SeverityError,
			Field:    "end_date",
			Message:  fmt.Sprintf("结束日期 %s 早于起始日期 %s", cfg.EndDate, cfg.StartDate),
		})
	}

	for i, h := range cfg.Holidays {
		if !model.IsValidDate(h) {
			issues = append(issues, dateFormatIssue(fmt.Sprintf("holidays[%d]", i)))
		}
	}

	return issues
}

// checkShifts 检查默认槽位数与变动槽位区间
func (v *ConfigValidator) checkShifts(cfg *model.SchedulerConfig) []Issue {
	var issues []Issue

	if cfg.NumShifts < 1 {
		issues = append(issues, Issue{
			Type:     IssueSlotCount,
			Severity: SeverityError,
			Field:    "num_shifts",
			Message:  fmt.Sprintf("每日槽位数必须大于等于1，当前为 %d", cfg.NumShifts),
		})
	}

	valid := make([]model.VariableShift, 0, len(cfg.VariableShifts))
	for i, vs := range cfg.VariableShifts {
		field := fmt.Sprintf("variable_shifts[%d]", i)
		r := model.DateRange{StartDate: vs.StartDate, EndDate: vs.EndDate}
		if !r.Valid() {
			issues = append(issues, Issue{
				Type:     IssueDateFormat,
				Severity: SeverityError,
				Field:    field,
				Message:  fmt.Sprintf("区间 %s ~ %s 非法，日期应为YYYY-MM-DD且起始不晚于结束", vs.StartDate, vs.EndDate),
			})
			continue
		}
		if vs.Count < 1 {
			issues = append(issues, Issue{
				Type:     IssueSlotCount,
				Severity: SeverityError,
				Field:    field,
				Message:  fmt.Sprintf("区间槽位数必须大于等于1，当前为 %d", vs.Count),
			})
		}
		if model.IsValidDate(cfg.StartDate) && model.IsValidDate(cfg.EndDate) &&
			(vs.EndDate < cfg.StartDate || vs.StartDate > cfg.EndDate) {
			issues = append(issues, Issue{
				Type:     IssueParameter,
				Severity: SeverityWarning,
				Field:    field,
				Message:  fmt.Sprintf("区间 %s ~ %s 不在排班周期内，将被忽略", vs.StartDate, vs.EndDate),
			})
		}
		valid = append(valid, vs)
	}

	issues = append(issues, v.checkShiftOverlaps(valid)...)
	return issues
}

// checkShiftOverlaps 检测变动槽位区间的两两重叠
// 排序后只需比较相邻区间
func (v *ConfigValidator) checkShiftOverlaps(shifts []model.VariableShift) []Issue {
	if len(shifts) < 2 {
		return nil
	}

	sorted := make([]model.VariableShift, len(shifts))
	copy(sorted, shifts)
	sort.Slice(sorted, func(i, j int) bool {
		return sorted[i].StartDate < sorted[j].StartDate
	})

	var issues []Issue
	for i := 0; i < len(sorted)-1; i++ {
		cur, next := sorted[i], sorted[i+1]
		if next.StartDate <= cur.EndDate {
			issues = append(issues, Issue{
				Type:     IssueRangeOverlap,
				Severity: SeverityError,
				Field:    "variable_shifts",
				Message:  fmt.Sprintf("区间 %s ~ %s 与 %s ~ %s 重叠", cur.StartDate, cur.EndDate, next.StartDate, next.EndDate),
			})
		}
	}
	return issues
}

// checkParameters 检查数值参数范围
func (v *ConfigValidator) checkParameters(cfg *model.SchedulerConfig) []Issue {
	var issues []Issue

	if cfg.GapBetweenShifts < 0 {
		issues = append(issues, parameterIssue("gap_between_shifts",
			fmt.Sprintf("值班间隔不能为负数，当前为 %d", cfg.GapBetweenShifts)))
	}
	if cfg.MaxConsecutiveWeekends < 1 {
		issues = append(issues, parameterIssue("max_consecutive_weekends",
			fmt.Sprintf("周末值班上限必须大于等于1，当前为 %d", cfg.MaxConsecutiveWeekends)))
	}
	if cfg.Tolerance < 0 || cfg.Tolerance > 1 {
		issues = append(issues, parameterIssue("tolerance",
			fmt.Sprintf("容忍度必须在 [0,1] 范围内，当前为 %.2f", cfg.Tolerance)))
	}
	if cfg.NumInitialAttempts < 1 {
		issues = append(issues, parameterIssue("num_initial_attempts",
			fmt.Sprintf("初始尝试次数必须大于等于1，当前为 %d", cfg.NumInitialAttempts)))
	}
	if cfg.MaxImprovementLoops < 0 {
		issues = append(issues, parameterIssue("max_improvement_loops",
			fmt.Sprintf("改进轮数不能为负数，当前为 %d", cfg.MaxImprovementLoops)))
	}

	return issues
}

// checkWorkers 检查人员定义、日期字符串与相互引用
func (v *ConfigValidator) checkWorkers(cfg *model.SchedulerConfig) []Issue {
	var issues []Issue

	if len(cfg.Workers) == 0 {
		issues = append(issues, Issue{
			Type:     IssueWorker,
			Severity: SeverityError,
			Field:    "workers",
			Message:  "至少需要一名值班人员",
		})
		return issues
	}

	seen := make(map[string]bool, len(cfg.Workers))
	for i, w := range cfg.Workers {
		field := fmt.Sprintf("workers[%d]", i)

		if w.ID == "" {
			issues = append(issues, Issue{
				Type:     IssueWorker,
				Severity: SeverityError,
				Field:    field + ".id",
				Message:  "人员ID不能为空",
			})
		} else if seen[w.ID] {
			issues = append(issues, Issue{
				Type:     IssueWorker,
				Severity: SeverityError,
				Field:    field + ".id",
				Message:  fmt.Sprintf("人员ID '%s' 重复", w.ID),
			})
		} else {
			seen[w.ID] = true
		}

		if w.WorkPercentage <= 0 || w.WorkPercentage > 100 {
			issues = append(issues, Issue{
				Type:     IssueWorker,
				Severity: SeverityError,
				Field:    field + ".work_percentage",
				Message:  fmt.Sprintf("出勤百分比必须在 (0,100] 范围内，当前为 %d", w.WorkPercentage),
			})
		}
		if w.TargetShifts != nil && *w.TargetShifts < 0 {
			issues = append(issues, Issue{
				Type:     IssueWorker,
				Severity: SeverityError,
				Field:    field + ".target_shifts",
				Message:  fmt.Sprintf("目标班次数不能为负数，当前为 %d", *w.TargetShifts),
			})
		}

		issues = append(issues, v.checkWorkerDates(cfg, w, field)...)
	}

	// 不相容引用要等ID集合收集完毕后再检查
	for i, w := range cfg.Workers {
		field := fmt.Sprintf("workers[%d]", i)
		for j, other := range w.IncompatibleWith {
			refField := fmt.Sprintf("%s.incompatible_with[%d]", field, j)
			if other == w.ID {
				issues = append(issues, Issue{
					Type:     IssueReference,
					Severity: SeverityError,
					Field:    refField,
					Message:  fmt.Sprintf("人员 '%s' 不能与自己不相容", w.ID),
				})
				continue
			}
			if !seen[other] {
				issues = append(issues, Issue{
					Type:     IssueReference,
					Severity: SeverityError,
					Field:    refField,
					Message:  fmt.Sprintf("引用了未知人员 '%s'", other),
				})
			}
		}
	}

	return issues
}

// checkWorkerDates 检查单个人员的日期字段
func (v *ConfigValidator) checkWorkerDates(cfg *model.SchedulerConfig, w *model.Worker, field string) []Issue {
	var issues []Issue

	for i, d := range w.DaysOff {
		if !model.IsValidDate(d) {
			issues = append(issues, dateFormatIssue(fmt.Sprintf("%s.days_off[%d]", field, i)))
		}
	}
	for i, r := range w.DaysOffRanges {
		if !r.Valid() {
			issues = append(issues, rangeIssue(fmt.Sprintf("%s.days_off_ranges[%d]", field, i), r))
		}
	}
	for i, r := range w.WorkPeriods {
		if !r.Valid() {
			issues = append(issues, rangeIssue(fmt.Sprintf("%s.work_periods[%d]", field, i), r))
		}
	}

	periodOK := model.IsValidDate(cfg.StartDate) && model.IsValidDate(cfg.EndDate)
	for i, d := range w.MandatoryDays {
		mField := fmt.Sprintf("%s.mandatory_days[%d]", field, i)
		if !model.IsValidDate(d) {
			issues = append(issues, dateFormatIssue(mField))
			continue
		}
		// 以下为可静态判定的不可行强制值班，仅提示，生成时仍会在
		// unresolved_mandatories 中逐条报告
		if periodOK && !cfg.Period().Contains(d) {
			issues = append(issues, Issue{
				Type:     IssueMandatory,
				Severity: SeverityWarning,
				Field:    mField,
				Message:  fmt.Sprintf("强制值班日 %s 不在排班周期内，将被忽略", d),
			})
			continue
		}
		if w.IsDayOff(d) {
			issues = append(issues, Issue{
				Type:     IssueMandatory,
				Severity: SeverityWarning,
				Field:    mField,
				Message:  fmt.Sprintf("强制值班日 %s 同时是不可用日", d),
			})
		}
		if !w.InWorkPeriod(d) {
			issues = append(issues, Issue{
				Type:     IssueMandatory,
				Severity: SeverityWarning,
				Field:    mField,
				Message:  fmt.Sprintf("强制值班日 %s 不在在岗时段内", d),
			})
		}
	}

	return issues
}

// ValidateConfig 验证配置：存在 error 级问题时返回聚合的验证错误
// warning 级问题不阻止生成，由调用方自行决定是否展示
func ValidateConfig(cfg *model.SchedulerConfig) error {
	issues := NewConfigValidator().Validate(cfg)
	ve := &errors.ValidationErrors{}
	for _, issue := range issues {
		if issue.Severity == SeverityError {
			ve.Add(issue.Field, issue.Message)
		}
	}
	if ve.HasErrors() {
		return ve.ToAppError()
	}
	return nil
}

func dateFormatIssue(field string) Issue {
	return Issue{
		Type:     IssueDateFormat,
		Severity: SeverityError,
		Field:    field,
		Message:  "日期格式无效，应为YYYY-MM-DD",
	}
}

func rangeIssue(field string, r model.DateRange) Issue {
	return Issue{
		Type:     IssueDateFormat,
		Severity: SeverityError,
		Field:    field,
		Message:  fmt.Sprintf("区间 %s ~ %s 非法，日期应为YYYY-MM-DD且起始不晚于结束", r.StartDate, r.EndDate),
	}
}

func parameterIssue(field, message string) Issue {
	return Issue{
		Type:     IssueParameter,
		Severity: SeverityError,
		Field:    field,
		Message:  message,
	}
}
