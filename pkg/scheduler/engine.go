// Package scheduler 实现两阶段值班排班引擎的编排入口
//
// 第一阶段由并行的严格分配器生成 N 份候选草稿并择优，
// 第二阶段在最优草稿上做放松的迭代改进。两个阶段共享同一套
// 硬约束检查，改进阶段只接受严格降低目标函数的变换
package scheduler

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/zhiban/zhiban/pkg/calendar"
	"github.com/zhiban/zhiban/pkg/logger"
	"github.com/zhiban/zhiban/pkg/model"
	"github.com/zhiban/zhiban/pkg/scheduler/constraint"
	"github.com/zhiban/zhiban/pkg/scheduler/constraint/builtin"
	"github.com/zhiban/zhiban/pkg/scheduler/optimizer"
	"github.com/zhiban/zhiban/pkg/scheduler/solver"
	"github.com/zhiban/zhiban/pkg/stats"
	"github.com/zhiban/zhiban/pkg/validator"
)

// Phase 生成阶段
type Phase int32

const (
	PhaseIdle    Phase = iota // 未开始
	PhaseInitial              // 第一阶段：并行初始分配
	PhaseImprove              // 第二阶段：迭代改进
	PhaseDone                 // 已完成
)

// String 返回阶段名称
func (p Phase) String() string {
	switch p {
	case PhaseInitial:
		return "initial"
	case PhaseImprove:
		return "improve"
	case PhaseDone:
		return "done"
	default:
		return "idle"
	}
}

// Progress 生成进度快照
// 引擎在生成期间以原子方式更新各计数，宿主可并发轮询
type Progress struct {
	Phase             string `json:"phase"`
	AttemptsCompleted int    `json:"attempts_completed"`
	TotalAttempts     int    `json:"total_attempts"`
	ImprovementPasses int    `json:"improvement_passes"`
}

// Engine 值班排班引擎
// 单个 Engine 可被复用，但同一时刻只应有一次 Generate 在运行，
// 进度计数描述的是最近一次生成
type Engine struct {
	workerCount int
	logger      *logger.EngineLogger

	phase    atomic.Int32
	attempts atomic.Int32
	total    atomic.Int32
	passes   atomic.Int32
}

// NewEngine 创建排班引擎
// workerCount 为第一阶段的并行度，非正数时取 CPU 核数
func NewEngine(workerCount int) *Engine {
	return &Engine{
		workerCount: workerCount,
		logger:      logger.NewEngineLogger(),
	}
}

// Progress 返回当前生成进度
func (e *Engine) Progress() Progress {
	return Progress{
		Phase:             Phase(e.phase.Load()).String(),
		AttemptsCompleted: int(e.attempts.Load()),
		TotalAttempts:     int(e.total.Load()),
		ImprovementPasses: int(e.passes.Load()),
	}
}

// Generate 生成值班表
//
// 配置错误在任何状态产生之前被拒绝。取消信号在阶段之间与每轮
// 迭代之间被检查，取消时返回当前最优草稿并置 Cancelled 标记，
// 不返回错误
func (e *Engine) Generate(ctx context.Context, cfg *model.SchedulerConfig) (*model.Result, error) {
	if err := validator.ValidateConfig(cfg); err != nil {
		return nil, err
	}

	cal, err := calendar.New(cfg)
	if err != nil {
		return nil, err
	}
	targets := calendar.Targets(cfg.Workers, cal.TotalSlots())

	manager := constraint.NewManager()
	builtin.RegisterDefaults(manager)
	base := constraint.NewContext(cfg, cal, targets)

	e.phase.Store(int32(PhaseInitial))
	e.attempts.Store(0)
	e.total.Store(int32(cfg.NumInitialAttempts))
	e.passes.Store(0)

	start := time.Now()
	e.logger.StartGeneration(len(cfg.Workers), cal.Len(), cfg.NumInitialAttempts)

	// 未显式给定种子时取时钟，保证同一 (配置, 种子) 输出一致
	seed := start.UnixNano()
	if cfg.Seed != nil {
		seed = *cfg.Seed
	}

	runner := solver.NewRunner(manager, e.workerCount)
	best := runner.RunAttempts(ctx, base, cfg.NumInitialAttempts, seed, &e.attempts)
	draft := best.Ctx

	loops := 0
	if cfg.EnableDualMode && ctx.Err() == nil {
		e.phase.Store(int32(PhaseImprove))
		improver := optimizer.NewImprover(manager, cfg.MaxImprovementLoops)
		draft, loops = improver.Improve(ctx, draft, &e.passes)
	}

	res := manager.Evaluate(draft)
	elapsed := time.Since(start)

	unresolved := make([]model.UnresolvedMandatory, 0, len(draft.Unresolved))
	unresolved = append(unresolved, draft.Unresolved...)

	result := &model.Result{
		Schedule:              draft.ToSchedule(),
		UnresolvedMandatories: unresolved,
		Violations:            res.AllViolations(),
		Stats:                 stats.Collect(draft, int(e.attempts.Load()), loops, elapsed),
		Cancelled:             ctx.Err() != nil,
	}

	e.phase.Store(int32(PhaseDone))
	e.logger.GenerationComplete(draft.FilledCount(), cal.TotalSlots(), elapsed, result.Cancelled)
	return result, nil
}
