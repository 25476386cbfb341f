package solver

import (
	"context"
	"runtime"
	"sync"
	"sync/atomic"

	"github.com/zhiban/zhiban/pkg/logger"
	"github.com/zhiban/zhiban/pkg/scheduler/constraint"
)

// Runner 并行执行多次初始分配尝试并挑选最优草稿
// 尝试之间只共享只读配置，结果按尝试序号落位，选优阶段串行
type Runner struct {
	distributor *Distributor
	workerCount int
	logger      *logger.EngineLogger
}

// NewRunner 创建尝试执行器，workerCount 不大于 0 时取 CPU 数
func NewRunner(m *constraint.Manager, workerCount int) *Runner {
	if workerCount <= 0 {
		workerCount = runtime.NumCPU()
	}
	return &Runner{
		distributor: NewDistributor(m),
		workerCount: workerCount,
		logger:      logger.NewEngineLogger(),
	}
}

// RunAttempts 执行 attempts 次独立尝试，返回最优结果
// 取消信号在每次尝试开始前检查，completed 供宿主轮询进度；
// 取消过早以致没有任何完整尝试时，退回仅含强制值班的草稿
func (r *Runner) RunAttempts(ctx context.Context, base *constraint.Context, attempts int, seed int64, completed *atomic.Int32) *Attempt {
	if attempts < 1 {
		attempts = 1
	}
	workers := r.workerCount
	if workers > attempts {
		workers = attempts
	}

	results := make([]*Attempt, attempts)
	jobChan := make(chan int, attempts)
	totalSlots := base.Calendar.TotalSlots()

	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for idx := range jobChan {
				if ctx.Err() != nil {
					continue
				}
				attempt := r.distributor.Run(base, seed, idx)
				results[idx] = attempt
				if completed != nil {
					completed.Add(1)
				}
				r.logger.AttemptFinished(idx, attempt.Filled, totalSlots, attempt.Equity)
			}
		}()
	}

	for i := 0; i < attempts; i++ {
		jobChan <- i
	}
	close(jobChan)
	wg.Wait()

	best := pickBest(results)
	if best == nil {
		draft := base.Clone()
		r.distributor.placeMandatories(draft)
		best = &Attempt{
			Index:  -1,
			Ctx:    draft,
			Filled: draft.FilledCount(),
			Equity: draft.EquityScore(),
		}
	}
	return best
}

// pickBest 串行扫描全部尝试，返回最优者；全部被取消时返回 nil
func pickBest(results []*Attempt) *Attempt {
	var best *Attempt
	for _, a := range results {
		if a == nil {
			continue
		}
		if best == nil || a.Better(best) {
			best = a
		}
	}
	return best
}
