// Package stats 提供值班表统计分析功能
package stats

import (
	"math"
	"sort"

	"github.com/zhiban/zhiban/pkg/scheduler/constraint"
)

// FairnessMetrics 公平性指标
type FairnessMetrics struct {
	AssignmentGini    float64 `json:"assignment_gini"`    // 值班数基尼系数 (0=完全公平)
	WeekendGini       float64 `json:"weekend_gini"`       // 周末类值班基尼系数
	DeviationVariance float64 `json:"deviation_variance"` // 目标偏差方差
	DeviationStdDev   float64 `json:"deviation_std_dev"`  // 目标偏差标准差
	MaxAssigned       int     `json:"max_assigned"`       // 最多值班数
	MinAssigned       int     `json:"min_assigned"`       // 最少值班数
	OverallScore      float64 `json:"overall_score"`      // 综合公平性评分 (0-100)
}

// FairnessAnalyzer 公平性分析器
type FairnessAnalyzer struct{}

// NewFairnessAnalyzer 创建公平性分析器
func NewFairnessAnalyzer() *FairnessAnalyzer {
	return &FairnessAnalyzer{}
}

// Analyze 分析值班表公平性
// 基尼系数衡量值班数的集中程度，偏差统计衡量与配额目标的吻合度
func (f *FairnessAnalyzer) Analyze(c *constraint.Context) *FairnessMetrics {
	if len(c.Workers) == 0 {
		return &FairnessMetrics{OverallScore: 100}
	}

	counts := make([]float64, len(c.Workers))
	weekends := make([]float64, len(c.Workers))
	devs := make([]float64, len(c.Workers))
	maxAssigned, minAssigned := 0, math.MaxInt

	for i, w := range c.Workers {
		n := c.Count(w.ID)
		counts[i] = float64(n)
		weekends[i] = float64(c.WeekendCount(w.ID))
		devs[i] = float64(n - c.Targets[w.ID])
		if n > maxAssigned {
			maxAssigned = n
		}
		if n < minAssigned {
			minAssigned = n
		}
	}

	variance := 0.0
	for _, d := range devs {
		variance += d * d
	}
	variance /= float64(len(devs))
	stdDev := math.Sqrt(variance)

	assignGini := gini(counts)
	weekendGini := gini(weekends)

	return &FairnessMetrics{
		AssignmentGini:    assignGini,
		WeekendGini:       weekendGini,
		DeviationVariance: variance,
		DeviationStdDev:   stdDev,
		MaxAssigned:       maxAssigned,
		MinAssigned:       minAssigned,
		OverallScore:      overallScore(assignGini, weekendGini, stdDev),
	}
}

// overallScore 把各项指标合成 0-100 的综合评分，偏差项权重最高
func overallScore(assignGini, weekendGini, stdDev float64) float64 {
	const (
		devWeight     = 0.5
		assignWeight  = 0.3
		weekendWeight = 0.2
	)

	devScore := math.Max(0, 100-stdDev*20)
	assignScore := (1 - assignGini) * 100
	weekendScore := (1 - weekendGini) * 100

	score := devWeight*devScore + assignWeight*assignScore + weekendWeight*weekendScore
	return math.Max(0, math.Min(100, score))
}

// gini 计算基尼系数，全零序列视为完全公平
func gini(values []float64) float64 {
	n := len(values)
	if n == 0 {
		return 0
	}

	sorted := make([]float64, n)
	copy(sorted, values)
	sort.Float64s(sorted)

	sum := 0.0
	for _, v := range sorted {
		sum += v
	}
	if sum == 0 {
		return 0
	}

	g := 0.0
	for i, v := range sorted {
		g += (2*float64(i+1) - float64(n) - 1) * v
	}
	g /= float64(n) * sum
	return math.Max(0, math.Min(1, g))
}
