package optimizer

import (
	"context"
	"reflect"
	"testing"

	"github.com/zhiban/zhiban/pkg/calendar"
	"github.com/zhiban/zhiban/pkg/model"
	"github.com/zhiban/zhiban/pkg/scheduler/constraint"
	"github.com/zhiban/zhiban/pkg/scheduler/constraint/builtin"
)

func newManager() *constraint.Manager {
	m := constraint.NewManager()
	builtin.RegisterDefaults(m)
	return m
}

func buildContext(t *testing.T, cfg *model.SchedulerConfig) *constraint.Context {
	t.Helper()
	cal, err := calendar.New(cfg)
	if err != nil {
		t.Fatalf("build calendar: %v", err)
	}
	return constraint.NewContext(cfg, cal, calendar.Targets(cfg.Workers, cal.TotalSlots()))
}

func worker(id string, pct int) *model.Worker {
	return &model.Worker{ID: id, Name: id, WorkPercentage: pct}
}

func TestFillGapsByDisplacementChain(t *testing.T) {
	// 第 3 天直接补位对三人都不可行，需要一条三步位移链才能填满
	cfg := model.DefaultSchedulerConfig()
	cfg.StartDate = "2026-01-05"
	cfg.EndDate = "2026-01-11"
	cfg.Workers = []*model.Worker{worker("w1", 100), worker("w2", 100), worker("w3", 100)}

	c := buildContext(t, cfg)
	c.Assign("w1", 1, 0)
	c.Assign("w1", 5, 0)
	c.Assign("w2", 2, 0)
	c.Assign("w2", 6, 0)
	c.Assign("w3", 0, 0)
	c.Assign("w3", 4, 0)

	m := newManager()
	before := Objective(c)

	improved, _ := NewImprover(m, 150).Improve(context.Background(), c, nil)

	if improved.FilledCount() != 7 {
		t.Fatalf("FilledCount = %d, want 7", improved.FilledCount())
	}
	if after := Objective(improved); after >= before {
		t.Errorf("objective did not decrease: before=%.1f after=%.1f", before, after)
	}
	if res := m.Evaluate(improved); len(res.HardViolations) > 0 {
		for _, v := range res.HardViolations {
			t.Errorf("hard violation %s: %s", v.Kind, v.Message)
		}
	}
}

func TestTransferBalancesDeviation(t *testing.T) {
	cfg := model.DefaultSchedulerConfig()
	cfg.StartDate = "2026-01-05"
	cfg.EndDate = "2026-01-10"
	cfg.GapBetweenShifts = 0
	cfg.Workers = []*model.Worker{worker("w1", 100), worker("w2", 100)}

	c := buildContext(t, cfg)
	for day := 0; day < 6; day++ {
		c.Assign("w1", day, 0)
	}

	m := newManager()
	improved, _ := NewImprover(m, 150).Improve(context.Background(), c, nil)

	if improved.FilledCount() != 6 {
		t.Fatalf("FilledCount = %d, want 6", improved.FilledCount())
	}
	if got := improved.Count("w1"); got != 3 {
		t.Errorf("w1 count = %d, want 3", got)
	}
	if got := improved.Count("w2"); got != 3 {
		t.Errorf("w2 count = %d, want 3", got)
	}
	if res := m.Evaluate(improved); len(res.HardViolations) > 0 {
		t.Errorf("hard violations after improvement: %d", len(res.HardViolations))
	}
}

func TestTransferSkipsMandatoryDays(t *testing.T) {
	cfg := model.DefaultSchedulerConfig()
	cfg.StartDate = "2026-01-05"
	cfg.EndDate = "2026-01-08"
	cfg.GapBetweenShifts = 0
	target := 1
	cfg.Workers = []*model.Worker{
		{ID: "w1", Name: "w1", WorkPercentage: 100, TargetShifts: &target, MandatoryDays: []string{"2026-01-07"}},
		worker("w2", 100),
	}

	c := buildContext(t, cfg)
	c.Assign("w1", 0, 0)
	c.Assign("w1", 2, 0) // 强制值班日
	c.Assign("w2", 1, 0)
	c.Assign("w2", 3, 0)

	improved, _ := NewImprover(newManager(), 150).Improve(context.Background(), c, nil)

	if !improved.HasWorkerOn(2, "w1") {
		t.Error("mandatory assignment on 2026-01-07 was released")
	}
	if got := improved.Count("w1"); got != 1 {
		t.Errorf("w1 count = %d, want 1", got)
	}
}

func TestImproveIdempotent(t *testing.T) {
	cfg := model.DefaultSchedulerConfig()
	cfg.StartDate = "2026-01-05"
	cfg.EndDate = "2026-01-18"
	cfg.NumShifts = 2
	cfg.Workers = []*model.Worker{
		worker("w1", 100), worker("w2", 100), worker("w3", 100),
		worker("w4", 100), worker("w5", 100),
	}

	c := buildContext(t, cfg)
	c.Assign("w1", 0, 0)
	c.Assign("w2", 0, 1)
	c.Assign("w3", 1, 0)
	c.Assign("w4", 1, 1)
	c.Assign("w5", 2, 0)

	im := NewImprover(newManager(), 150)
	first, _ := im.Improve(context.Background(), c, nil)
	snapshot := first.ToSchedule()

	second, passes := im.Improve(context.Background(), first, nil)
	if !reflect.DeepEqual(snapshot, second.ToSchedule()) {
		t.Fatal("improving an already improved draft must not change it")
	}
	// 已收敛的草稿上只会跑出一轮零接受的空轮，不计入轮次数
	if passes != 0 {
		t.Errorf("second run counted %d improvement passes, want 0", passes)
	}
}

func TestImproveCancelled(t *testing.T) {
	cfg := model.DefaultSchedulerConfig()
	cfg.StartDate = "2026-01-05"
	cfg.EndDate = "2026-01-11"
	cfg.Workers = []*model.Worker{worker("w1", 100), worker("w2", 100)}

	c := buildContext(t, cfg)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	improved, passes := NewImprover(newManager(), 150).Improve(ctx, c, nil)
	if passes != 0 {
		t.Errorf("passes = %d, want 0", passes)
	}
	if improved.FilledCount() != 0 {
		t.Errorf("cancelled improve mutated the draft: filled=%d", improved.FilledCount())
	}
}

// trapConstraint 逐槽检查永远放行，全量评估却对 w1 的任何值班报违规，
// 用于验证改进器的防御性回退
type trapConstraint struct {
	*builtin.BaseConstraint
}

func newTrapConstraint() *trapConstraint {
	return &trapConstraint{
		BaseConstraint: builtin.NewBaseConstraint("测试陷阱", "test_trap", constraint.CategoryHard, 99),
	}
}

func (tc *trapConstraint) Evaluate(ctx *constraint.Context) (bool, int, []model.Violation) {
	var violations []model.Violation
	for day := 0; day < ctx.Calendar.Len(); day++ {
		if ctx.HasWorkerOn(day, "w1") {
			violations = append(violations, tc.CreateViolation("w1", ctx.Calendar.DateOf(day), 0, "陷阱触发"))
		}
	}
	return len(violations) == 0, len(violations) * tc.Weight(), violations
}

func (tc *trapConstraint) EvaluateAssignment(ctx *constraint.Context, workerID string, day, post int) (bool, string) {
	return true, ""
}

func TestImproveRevertsOnDefect(t *testing.T) {
	cfg := model.DefaultSchedulerConfig()
	cfg.StartDate = "2026-01-05"
	cfg.EndDate = "2026-01-06"
	cfg.GapBetweenShifts = 0
	cfg.Workers = []*model.Worker{worker("w1", 100)}

	m := newManager()
	m.Register(newTrapConstraint())

	c := buildContext(t, cfg)
	improved, passes := NewImprover(m, 150).Improve(context.Background(), c, nil)

	if improved.FilledCount() != 0 {
		t.Errorf("defective pass was not reverted: filled=%d", improved.FilledCount())
	}
	if passes != 0 {
		t.Errorf("passes = %d, want 0 after revert", passes)
	}
}
