// Package model 定义值班排班引擎的核心数据模型
package model

import (
	"time"

	"github.com/google/uuid"
)

// DateLayout 日期格式（ISO-8601 日历日期）
const DateLayout = "2006-01-02"

// ConstraintCategory 约束类别
type ConstraintCategory string

const (
	ConstraintHard ConstraintCategory = "hard" // 硬约束（必须满足）
	ConstraintSoft ConstraintCategory = "soft" // 软约束（尽量满足）
)

// BaseModel 基础模型（包含通用字段）
type BaseModel struct {
	ID        uuid.UUID  `json:"id" db:"id"`
	CreatedAt time.Time  `json:"created_at" db:"created_at"`
	UpdatedAt time.Time  `json:"updated_at" db:"updated_at"`
	DeletedAt *time.Time `json:"-" db:"deleted_at"`
}

// NewBaseModel 创建新的基础模型
func NewBaseModel() BaseModel {
	now := time.Now()
	return BaseModel{
		ID:        uuid.New(),
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// JSONMap 用于存储 JSONB 数据
type JSONMap map[string]interface{}

// ParseDate 解析 YYYY-MM-DD 日期字符串
func ParseDate(s string) (time.Time, error) {
	return time.Parse(DateLayout, s)
}

// IsValidDate 检查日期字符串是否为合法的 YYYY-MM-DD
func IsValidDate(s string) bool {
	_, err := time.Parse(DateLayout, s)
	return err == nil
}

// DateRange 日期范围（闭区间）
type DateRange struct {
	StartDate string `json:"start" db:"start_date"` // YYYY-MM-DD
	EndDate   string `json:"end" db:"end_date"`     // YYYY-MM-DD
}

// Contains 检查日期是否落在范围内
// ISO 日期字符串的字典序与时间序一致，可直接比较
func (dr DateRange) Contains(date string) bool {
	return date >= dr.StartDate && date <= dr.EndDate
}

// Valid 检查范围是否合法（两端均为合法日期且起始不晚于结束）
func (dr DateRange) Valid() bool {
	if !IsValidDate(dr.StartDate) || !IsValidDate(dr.EndDate) {
		return false
	}
	return dr.StartDate <= dr.EndDate
}

// Days 返回范围覆盖的天数（非法范围返回 0）
func (dr DateRange) Days() int {
	start, err1 := ParseDate(dr.StartDate)
	end, err2 := ParseDate(dr.EndDate)
	if err1 != nil || err2 != nil || end.Before(start) {
		return 0
	}
	return int(end.Sub(start).Hours()/24) + 1
}

// Overlaps 检查两个日期范围是否重叠
func (dr DateRange) Overlaps(other DateRange) bool {
	return dr.StartDate <= other.EndDate && other.StartDate <= dr.EndDate
}
