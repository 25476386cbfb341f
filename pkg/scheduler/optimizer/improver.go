package optimizer

import (
	"context"
	"sync/atomic"

	"github.com/zhiban/zhiban/pkg/logger"
	"github.com/zhiban/zhiban/pkg/scheduler/constraint"
)

// maxChainDepth 补位位移链的最大长度
const maxChainDepth = 3

// lastPostMaxIterations 末槽位收尾调整的迭代上限
const lastPostMaxIterations = 50

// Improver 宽松迭代改进器
// 在不引入硬约束违反的前提下对初始草稿做变换：补空槽、
// 超欠额转移、双向互换，收尾阶段做末槽位均衡微调。
// 每个提议只在目标函数严格下降时被接受，持平一律拒绝以防循环
type Improver struct {
	manager  *constraint.Manager
	maxLoops int
	logger   *logger.EngineLogger
}

// NewImprover 创建改进器，maxLoops 为改进轮次上限
func NewImprover(m *constraint.Manager, maxLoops int) *Improver {
	return &Improver{
		manager:  m,
		maxLoops: maxLoops,
		logger:   logger.NewEngineLogger(),
	}
}

// Improve 迭代改进草稿并返回改进后的上下文与实际轮次数
// 取消信号在轮与轮之间检查；每轮结束做一次全量约束复核，
// 发现硬违反时回退该轮并中止改进，这属于内部缺陷信号而非用户错误
func (im *Improver) Improve(ctx context.Context, draft *constraint.Context, passes *atomic.Int32) (*constraint.Context, int) {
	current := draft
	used := 0

	for pass := 1; pass <= im.maxLoops; pass++ {
		if ctx.Err() != nil {
			break
		}

		snapshot := current.Clone()
		accepted := im.runPass(current)

		if res := im.manager.Evaluate(current); len(res.HardViolations) > 0 {
			v := res.HardViolations[0]
			im.logger.ConstraintViolation(string(v.Kind), "改进轮次引入违规，已回退: "+v.Message)
			current = snapshot
			break
		}

		// 收敛判定的空轮不计入实际轮次数
		if accepted > 0 {
			used = pass
		}
		if passes != nil {
			passes.Add(1)
		}
		im.logger.ImprovementPass(pass, accepted, Objective(current))

		if accepted == 0 {
			break
		}
	}

	im.rebalanceLastPosts(ctx, current)
	return current, used
}

// runPass 依次尝试各类变换，返回本轮接受的变换数
// 末槽位交换也参与主循环，保证循环收敛时四类变换都无利可图，
// 对已收敛的草稿再次改进不会产生任何变化
func (im *Improver) runPass(c *constraint.Context) int {
	accepted := im.fillGaps(c)
	accepted += im.transferShifts(c)
	accepted += im.exchangeShifts(c)
	accepted += im.lastPostSweep(c)
	return accepted
}
