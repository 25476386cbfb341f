// Package calendar 构建排班周期的日历索引与日期分类
package calendar

import (
	"math"
	"sort"

	"github.com/zhiban/zhiban/pkg/model"
)

// Targets 按最大余数法计算各人员的目标班次数
//
// 规则：
//   - target_shifts 显式给定且未开启自动计算的人员按给定值使用，
//     其余槽位在剩余人员间按 work_percentage 比例分摊
//   - work_percentage 为 0 的人员不参与排班，目标为 0
//   - 余数分配的并列按人员输入顺序决定
func Targets(workers []*model.Worker, totalSlots int) map[string]int {
	targets := make(map[string]int, len(workers))

	remaining := totalSlots
	var auto []*model.Worker
	for _, w := range workers {
		switch {
		case w.TargetShifts != nil && !w.AutoCalculateShifts:
			targets[w.ID] = *w.TargetShifts
			remaining -= *w.TargetShifts
		case w.WorkPercentage <= 0:
			targets[w.ID] = 0
		default:
			auto = append(auto, w)
		}
	}
	if remaining < 0 {
		remaining = 0
	}

	if len(auto) == 0 {
		return targets
	}

	sumPct := 0
	for _, w := range auto {
		sumPct += w.WorkPercentage
	}
	if sumPct == 0 {
		for _, w := range auto {
			targets[w.ID] = 0
		}
		return targets
	}

	type share struct {
		order int
		id    string
		base  int
		frac  float64
	}
	shares := make([]share, len(auto))
	assigned := 0
	for i, w := range auto {
		raw := float64(remaining) * float64(w.WorkPercentage) / float64(sumPct)
		base := int(math.Floor(raw))
		shares[i] = share{order: i, id: w.ID, base: base, frac: raw - float64(base)}
		assigned += base
	}

	// 余数从大到小补齐，余数相同按输入顺序
	leftover := remaining - assigned
	sort.SliceStable(shares, func(i, j int) bool {
		return shares[i].frac > shares[j].frac
	})
	for i := range shares {
		if leftover <= 0 {
			break
		}
		shares[i].base++
		leftover--
	}

	for _, s := range shares {
		targets[s.id] = s.base
	}
	return targets
}
