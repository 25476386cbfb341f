// Package model 定义值班排班引擎的核心数据模型
package model

import (
	"encoding/json"
	"sort"
)

// EmptySlot 空槽位哨兵值，序列化为 null
const EmptySlot = ""

// Schedule 值班表：日期 -> 当日各槽位的人员ID
// 空槽位在内存中为 EmptySlot，在 JSON 中为 null
type Schedule map[string][]string

// MarshalJSON 将空槽位输出为 null
func (s Schedule) MarshalJSON() ([]byte, error) {
	out := make(map[string][]*string, len(s))
	for date, posts := range s {
		row := make([]*string, len(posts))
		for i := range posts {
			if posts[i] != EmptySlot {
				row[i] = &posts[i]
			}
		}
		out[date] = row
	}
	return json.Marshal(out)
}

// UnmarshalJSON 将 null 槽位还原为 EmptySlot
func (s *Schedule) UnmarshalJSON(data []byte) error {
	var raw map[string][]*string
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	out := make(Schedule, len(raw))
	for date, posts := range raw {
		row := make([]string, len(posts))
		for i, p := range posts {
			if p != nil {
				row[i] = *p
			}
		}
		out[date] = row
	}
	*s = out
	return nil
}

// Dates 返回按时间序排列的全部日期
func (s Schedule) Dates() []string {
	dates := make([]string, 0, len(s))
	for d := range s {
		dates = append(dates, d)
	}
	sort.Strings(dates)
	return dates
}

// Clone 深拷贝值班表
func (s Schedule) Clone() Schedule {
	out := make(Schedule, len(s))
	for date, posts := range s {
		row := make([]string, len(posts))
		copy(row, posts)
		out[date] = row
	}
	return out
}

// CountFilled 统计已填充的槽位数
func (s Schedule) CountFilled() int {
	n := 0
	for _, posts := range s {
		for _, id := range posts {
			if id != EmptySlot {
				n++
			}
		}
	}
	return n
}

// CountEmpty 统计空槽位数
func (s Schedule) CountEmpty() int {
	n := 0
	for _, posts := range s {
		for _, id := range posts {
			if id == EmptySlot {
				n++
			}
		}
	}
	return n
}

// HasWorker 检查某日是否已分配该人员
func (s Schedule) HasWorker(date, workerID string) bool {
	for _, id := range s[date] {
		if id == workerID {
			return true
		}
	}
	return false
}

// AssignmentsOf 返回该人员的全部值班日期（时间序）
func (s Schedule) AssignmentsOf(workerID string) []string {
	var dates []string
	for date, posts := range s {
		for _, id := range posts {
			if id == workerID {
				dates = append(dates, date)
				break
			}
		}
	}
	sort.Strings(dates)
	return dates
}
