// Package rules 提供排班规则目录：引擎内置约束的机器可读描述，
// 供前端展示规则说明与参数表单。
package rules

import (
	"github.com/zhiban/zhiban/pkg/model"
)

// RuleParam 规则参数定义
type RuleParam struct {
	Name        string `json:"name"`
	Type        string `json:"type"`   // int, float, string, bool, array
	Source      string `json:"source"` // config/worker，参数所在层级
	Description string `json:"description"`
	Default     string `json:"default,omitempty"`
	Min         string `json:"min,omitempty"`
	Max         string `json:"max,omitempty"`
}

// RuleDefinition 规则定义
// Name 与引擎的违规类型一一对应，Type 与 Weight 同内置约束保持一致
type RuleDefinition struct {
	Name        string      `json:"name"`
	DisplayName string      `json:"display_name"`
	Type        string      `json:"type"` // hard 硬约束, soft 软约束
	Weight      int         `json:"weight"`
	Category    string      `json:"category"`
	Description string      `json:"description"`
	Params      []RuleParam `json:"params"`
}

// CatalogResponse 规则目录响应
type CatalogResponse struct {
	Rules []RuleDefinition `json:"rules"`
}

// Catalog 返回完整的规则目录，顺序与硬约束检查顺序一致（权重降序）
func Catalog() []RuleDefinition {
	return []RuleDefinition{
		{
			Name:        string(model.ViolationDuplicateOnDay),
			DisplayName: "同日人员唯一",
			Type:        "hard",
			Weight:      100,
			Category:    "基础约束",
			Description: "同一人员每天最多占用一个槽位，同日重复排班直接拒绝。",
			Params:      []RuleParam{},
		},
		{
			Name:        string(model.ViolationDaysOff),
			DisplayName: "不可用日",
			Type:        "hard",
			Weight:      95,
			Category:    "时间限制",
			Description: "人员声明的不可用日（含区间）内不安排值班，如休假、进修。",
			Params: []RuleParam{
				{Name: "days_off", Type: "array", Source: "worker", Description: "不可用日期列表，YYYY-MM-DD"},
				{Name: "days_off_ranges", Type: "array", Source: "worker", Description: "不可用日期区间列表"},
			},
		},
		{
			Name:        string(model.ViolationWorkPeriod),
			DisplayName: "在岗时段",
			Type:        "hard",
			Weight:      90,
			Category:    "时间限制",
			Description: "仅在人员的在岗时段内排班；未声明时段的人员在整个周期内可用。",
			Params: []RuleParam{
				{Name: "work_periods", Type: "array", Source: "worker", Description: "在岗时段区间列表，空表示全周期"},
			},
		},
		{
			Name:        string(model.ViolationIncompatibility),
			DisplayName: "人员不相容",
			Type:        "hard",
			Weight:      85,
			Category:    "人员关系",
			Description: "互不相容的人员不得同日值班；带组内不相容标记的人员两两互斥。",
			Params: []RuleParam{
				{Name: "incompatible_with", Type: "array", Source: "worker", Description: "不相容人员ID列表"},
				{Name: "is_incompatible", Type: "bool", Source: "worker", Description: "组内不相容标记", Default: "false"},
			},
		},
		{
			Name:        string(model.ViolationGap),
			DisplayName: "最小间隔",
			Type:        "hard",
			Weight:      80,
			Category:    "休息保障",
			Description: "同一人员两次值班之间至少间隔指定天数，强制值班日构成的日期对免检。",
			Params: []RuleParam{
				{Name: "gap_between_shifts", Type: "int", Source: "config", Description: "最小间隔天数", Default: "2", Min: "0", Max: "30"},
			},
		},
		{
			Name:        string(model.ViolationWeeklyPattern),
			DisplayName: "周期模式",
			Type:        "hard",
			Weight:      75,
			Category:    "休息保障",
			Description: "禁止同一人员在相距恰好 7 或 14 天的同星期日期重复值班，避免固化的周几模式。",
			Params:      []RuleParam{},
		},
		{
			Name:        string(model.ViolationWeekendCap),
			DisplayName: "周末上限",
			Type:        "hard",
			Weight:      70,
			Category:    "休息保障",
			Description: "任意连续三周（21 天窗口）内，周末类值班（周五/周六/周日/节假日/节假日前一日）不超过上限。",
			Params: []RuleParam{
				{Name: "max_consecutive_weekends", Type: "int", Source: "config", Description: "三周窗口内周末类值班上限", Default: "2", Min: "1", Max: "3"},
			},
		},
		{
			Name:        string(model.ViolationMandatoryMissing),
			DisplayName: "强制值班",
			Type:        "hard",
			Weight:      65,
			Category:    "人员关系",
			Description: "人员声明的强制值班日必须在班；无法满足时在结果中登记为未决强制值班。",
			Params: []RuleParam{
				{Name: "mandatory_days", Type: "array", Source: "worker", Description: "强制值班日期列表，YYYY-MM-DD"},
			},
		},
		{
			Name:        string(model.ViolationUncovered),
			DisplayName: "槽位覆盖",
			Type:        "soft",
			Weight:      10,
			Category:    "覆盖保障",
			Description: "尽量填满每日的全部槽位；无法填充的槽位保持空置并在结果中报告原因。",
			Params: []RuleParam{
				{Name: "num_shifts", Type: "int", Source: "config", Description: "每日默认槽位数", Default: "1", Min: "1", Max: "10"},
				{Name: "variable_shifts", Type: "array", Source: "config", Description: "指定日期区间的槽位数覆盖"},
			},
		},
	}
}

// Get 按规则名查找定义
func Get(name string) (RuleDefinition, bool) {
	for _, r := range Catalog() {
		if r.Name == name {
			return r, true
		}
	}
	return RuleDefinition{}, false
}

// HardRules 返回全部硬约束定义
func HardRules() []RuleDefinition {
	var out []RuleDefinition
	for _, r := range Catalog() {
		if r.Type == "hard" {
			out = append(out, r)
		}
	}
	return out
}
