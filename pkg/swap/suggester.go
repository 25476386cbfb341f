// Package swap 提供工作量再平衡的换班建议搜索
package swap

import (
	"fmt"
	"math"
	"sort"

	"github.com/zhiban/zhiban/pkg/scheduler/constraint"
)

// SuggestionType 建议类型
type SuggestionType string

const (
	TypeTransfer SuggestionType = "transfer" // 超额方的班次直接转给缺额方
	TypeExchange SuggestionType = "exchange" // 双方互换两天班次
)

// Suggestion 单条换班建议
type Suggestion struct {
	Type         SuggestionType `json:"type"`
	FromWorker   string         `json:"from_worker"`
	ToWorker     string         `json:"to_worker"`
	Date         string         `json:"date"` // 超额方让出的日期
	Post         int            `json:"post"`
	ExchangeDate string         `json:"exchange_date,omitempty"` // 互换时缺额方让出的日期
	ExchangePost int            `json:"exchange_post,omitempty"`
	Improvement  int            `json:"improvement"` // min(|超额偏差|, |缺额偏差|)
	Reason       string         `json:"reason"`
	Rank         int            `json:"rank"`
}

// Options 搜索选项
type Options struct {
	MaxSuggestions int  // 返回条数上限
	AllowExchange  bool // 是否搜索互换建议
}

// DefaultOptions 返回默认选项
func DefaultOptions() *Options {
	return &Options{
		MaxSuggestions: 5,
		AllowExchange:  true,
	}
}

// Suggester 换班建议搜索器
// 只读搜索：所有可行性探测都在探测后立即还原上下文
type Suggester struct {
	manager *constraint.Manager
}

// NewSuggester 创建换班建议搜索器
func NewSuggester(m *constraint.Manager) *Suggester {
	return &Suggester{manager: m}
}

// imbalance 偏差超出容忍带的人员
type imbalance struct {
	workerID string
	dev      int // assigned - target
}

// FindBestSwaps 在当前值班表上搜索工作量再平衡建议
//
// 超额方与缺额方两两配对，直接转让优先于互换，
// 同类建议按 min(|dev_O|, |dev_U|) 的改进量降序返回前 K 条
func (s *Suggester) FindBestSwaps(c *constraint.Context, opts *Options) []Suggestion {
	if opts == nil {
		opts = DefaultOptions()
	}

	over, under := s.classify(c)
	if len(over) == 0 || len(under) == 0 {
		return nil
	}

	var found []Suggestion
	for _, o := range over {
		for _, u := range under {
			improvement := min(abs(o.dev), abs(u.dev))
			found = append(found, s.directTransfers(c, o, u, improvement)...)
			if opts.AllowExchange {
				found = append(found, s.mutualExchanges(c, o, u, improvement)...)
			}
		}
	}

	sortSuggestions(found)
	if len(found) > opts.MaxSuggestions {
		found = found[:opts.MaxSuggestions]
	}
	for i := range found {
		found[i].Rank = i + 1
	}
	return found
}

// classify 按容忍带划分超额与缺额人员
// 容忍带为 floor(tolerance × target)，带内偏差视为均衡
func (s *Suggester) classify(c *constraint.Context) (over, under []imbalance) {
	for _, w := range c.Workers {
		target := c.Targets[w.ID]
		dev := c.Count(w.ID) - target
		band := int(math.Floor(c.Config.Tolerance * float64(target)))
		switch {
		case dev > band:
			over = append(over, imbalance{workerID: w.ID, dev: dev})
		case dev < -band:
			under = append(under, imbalance{workerID: w.ID, dev: dev})
		}
	}

	// 偏差大的先处理，并列按人员输入顺序
	sort.SliceStable(over, func(i, j int) bool {
		return abs(over[i].dev) > abs(over[j].dev)
	})
	sort.SliceStable(under, func(i, j int) bool {
		return abs(under[i].dev) > abs(under[j].dev)
	})
	return over, under
}

// sortSuggestions 改进量降序，转让先于互换，余下按人员与日期排序保证确定性
func sortSuggestions(list []Suggestion) {
	sort.Slice(list, func(i, j int) bool {
		a, b := list[i], list[j]
		if a.Improvement != b.Improvement {
			return a.Improvement > b.Improvement
		}
		if a.Type != b.Type {
			return a.Type == TypeTransfer
		}
		if a.FromWorker != b.FromWorker {
			return a.FromWorker < b.FromWorker
		}
		if a.Date != b.Date {
			return a.Date < b.Date
		}
		if a.ToWorker != b.ToWorker {
			return a.ToWorker < b.ToWorker
		}
		return a.ExchangeDate < b.ExchangeDate
	})
}

func transferReason(o, u imbalance) string {
	return fmt.Sprintf("%s 超额 %d 班，%s 缺额 %d 班，转让一班", o.workerID, o.dev, u.workerID, -u.dev)
}

func exchangeReason(o, u imbalance) string {
	return fmt.Sprintf("%s 与 %s 互换班次，为后续转让腾挪空间", o.workerID, u.workerID)
}

func abs(n int) int {
	if n < 0 {
		return -n
	}
	return n
}

func min(a, b int) int {
	if a < b {
		return a
	}
	return b
}
