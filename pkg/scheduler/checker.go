package scheduler

import (
	"github.com/zhiban/zhiban/pkg/calendar"
	"github.com/zhiban/zhiban/pkg/model"
	"github.com/zhiban/zhiban/pkg/scheduler/constraint"
	"github.com/zhiban/zhiban/pkg/scheduler/constraint/builtin"
	"github.com/zhiban/zhiban/pkg/validator"
)

// CheckReport 外部值班表的校验结果
type CheckReport struct {
	Valid      bool              `json:"valid"`
	Score      float64           `json:"score"`
	Violations []model.Violation `json:"violations"`
}

// Check 在给定配置下校验一份外部值班表
//
// 值班表可以来自人工编辑或历史存档。全部约束被重新评估，
// 包括强制值班缺席，因为外部值班表没有生成期的未决记录
func Check(cfg *model.SchedulerConfig, schedule model.Schedule) (*CheckReport, error) {
	if err := validator.ValidateConfig(cfg); err != nil {
		return nil, err
	}

	cal, err := calendar.New(cfg)
	if err != nil {
		return nil, err
	}
	targets := calendar.Targets(cfg.Workers, cal.TotalSlots())

	c := constraint.NewContext(cfg, cal, targets)
	if err := c.LoadSchedule(schedule); err != nil {
		return nil, err
	}

	manager := constraint.NewManager()
	builtin.RegisterDefaults(manager)
	res := manager.Evaluate(c)

	return &CheckReport{
		Valid:      res.IsValid,
		Score:      res.Score,
		Violations: res.AllViolations(),
	}, nil
}
