package scheduler

import (
	"context"
	"reflect"
	"testing"

	"github.com/zhiban/zhiban/pkg/calendar"
	"github.com/zhiban/zhiban/pkg/errors"
	"github.com/zhiban/zhiban/pkg/model"
)

func fullTimeWorker(id string) *model.Worker {
	return &model.Worker{ID: id, Name: id, WorkPercentage: 100}
}

func seedPtr(v int64) *int64 {
	return &v
}

// dayDiff 返回两个日期相差的天数（d2 - d1）
func dayDiff(t *testing.T, d1, d2 string) int {
	t.Helper()
	t1, err1 := model.ParseDate(d1)
	t2, err2 := model.ParseDate(d2)
	if err1 != nil || err2 != nil {
		t.Fatalf("parse dates %s %s: %v %v", d1, d2, err1, err2)
	}
	return int(t2.Sub(t1).Hours() / 24)
}

// propertyConfig 覆盖各类人员限制的一月期配置
func propertyConfig() *model.SchedulerConfig {
	cfg := model.DefaultSchedulerConfig()
	cfg.StartDate = "2026-01-01"
	cfg.EndDate = "2026-01-31"
	cfg.Seed = seedPtr(42)
	cfg.VariableShifts = []model.VariableShift{
		{StartDate: "2026-01-12", EndDate: "2026-01-16", Count: 2},
	}

	w1 := fullTimeWorker("w1")
	w1.DaysOffRanges = []model.DateRange{{StartDate: "2026-01-05", EndDate: "2026-01-07"}}
	w1.DaysOff = []string{"2026-01-20"}
	w2 := fullTimeWorker("w2")
	w2.IncompatibleWith = []string{"w3"}
	w3 := fullTimeWorker("w3")
	w4 := fullTimeWorker("w4")
	w4.WorkPeriods = []model.DateRange{{StartDate: "2026-01-01", EndDate: "2026-01-20"}}
	w5 := fullTimeWorker("w5")
	w5.MandatoryDays = []string{"2026-01-18"}
	w6 := fullTimeWorker("w6")
	w6.WorkPercentage = 50

	cfg.Workers = []*model.Worker{w1, w2, w3, w4, w5, w6, fullTimeWorker("w7"), fullTimeWorker("w8")}
	return cfg
}

func TestGenerateProperties(t *testing.T) {
	cfg := propertyConfig()
	result, err := NewEngine(4).Generate(context.Background(), cfg)
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if result.Cancelled {
		t.Fatal("result.Cancelled = true, want false")
	}

	cal, err := calendar.New(cfg)
	if err != nil {
		t.Fatalf("build calendar: %v", err)
	}

	t.Run("行长与去重", func(t *testing.T) {
		if len(result.Schedule) != cal.Len() {
			t.Fatalf("len(Schedule) = %d, want %d", len(result.Schedule), cal.Len())
		}
		for i := 0; i < cal.Len(); i++ {
			info := cal.Day(i)
			row, ok := result.Schedule[info.Date]
			if !ok {
				t.Fatalf("schedule missing date %s", info.Date)
			}
			if len(row) != info.Slots {
				t.Errorf("len(schedule[%s]) = %d, want %d", info.Date, len(row), info.Slots)
			}
			seen := make(map[string]bool, len(row))
			for _, id := range row {
				if id == model.EmptySlot {
					continue
				}
				if seen[id] {
					t.Errorf("worker %s appears twice on %s", id, info.Date)
				}
				seen[id] = true
			}
		}
	})

	t.Run("不可用日与在岗时段", func(t *testing.T) {
		for _, w := range cfg.Workers {
			for _, date := range result.Schedule.AssignmentsOf(w.ID) {
				if w.IsDayOff(date) {
					t.Errorf("worker %s assigned on day off %s", w.ID, date)
				}
				if !w.InWorkPeriod(date) {
					t.Errorf("worker %s assigned outside work period on %s", w.ID, date)
				}
			}
		}
	})

	t.Run("强制值班与未决互补", func(t *testing.T) {
		unresolved := make(map[string]map[string]bool)
		for _, u := range result.UnresolvedMandatories {
			if unresolved[u.WorkerID] == nil {
				unresolved[u.WorkerID] = make(map[string]bool)
			}
			unresolved[u.WorkerID][u.Date] = true
			if u.Reason == "" {
				t.Errorf("unresolved mandatory %s@%s has empty reason", u.WorkerID, u.Date)
			}
		}
		for _, w := range cfg.Workers {
			for _, d := range w.MandatoryDays {
				if unresolved[w.ID][d] {
					continue
				}
				if !result.Schedule.HasWorker(d, w.ID) {
					t.Errorf("mandatory %s@%s neither scheduled nor unresolved", w.ID, d)
				}
			}
		}
		// w5 无其他限制，强制值班应直接满足
		if !result.Schedule.HasWorker("2026-01-18", "w5") {
			t.Error("w5 missing from mandatory day 2026-01-18")
		}
	})

	t.Run("不相容人员", func(t *testing.T) {
		for date := range result.Schedule {
			if result.Schedule.HasWorker(date, "w2") && result.Schedule.HasWorker(date, "w3") {
				t.Errorf("incompatible workers w2 and w3 share %s", date)
			}
		}
	})

	t.Run("间隔与同星期模式", func(t *testing.T) {
		minDiff := cfg.GapBetweenShifts + 1
		for _, w := range cfg.Workers {
			dates := result.Schedule.AssignmentsOf(w.ID)
			for i := 0; i < len(dates); i++ {
				for j := i + 1; j < len(dates); j++ {
					if w.IsMandatoryOn(dates[i]) && w.IsMandatoryOn(dates[j]) {
						continue
					}
					diff := dayDiff(t, dates[i], dates[j])
					if diff < minDiff {
						t.Errorf("worker %s: %s and %s only %d days apart", w.ID, dates[i], dates[j], diff)
					}
					if diff == 7 || diff == 14 {
						t.Errorf("worker %s: %s and %s form a %d-day weekday pattern", w.ID, dates[i], dates[j], diff)
					}
				}
			}
		}
	})

	t.Run("周末上限", func(t *testing.T) {
		for _, w := range cfg.Workers {
			var weekendIdx []int
			for _, date := range result.Schedule.AssignmentsOf(w.ID) {
				idx, ok := cal.IndexOf(date)
				if !ok {
					t.Fatalf("date %s not in calendar", date)
				}
				if cal.Day(idx).WeekendLike {
					weekendIdx = append(weekendIdx, idx)
				}
			}
			for _, start := range weekendIdx {
				count := 0
				for _, d := range weekendIdx {
					if d >= start && d < start+21 {
						count++
					}
				}
				if count > cfg.MaxConsecutiveWeekends {
					t.Errorf("worker %s has %d weekend-like shifts in the 21-day window from index %d",
						w.ID, count, start)
				}
			}
		}
	})

	t.Run("目标总和守恒", func(t *testing.T) {
		targets := calendar.Targets(cfg.Workers, cal.TotalSlots())
		sum := 0
		for _, n := range targets {
			sum += n
		}
		if sum != cal.TotalSlots() {
			t.Errorf("sum of targets = %d, want %d", sum, cal.TotalSlots())
		}
	})

	t.Run("无硬违规", func(t *testing.T) {
		for _, v := range result.Violations {
			if v.Kind != model.ViolationUncovered {
				t.Errorf("hard violation in result: %s %s@%s: %s", v.Kind, v.WorkerID, v.Date, v.Message)
			}
		}
	})

	t.Run("统计一致", func(t *testing.T) {
		s := result.Stats
		if s == nil {
			t.Fatal("Stats = nil")
		}
		if s.TotalSlots != cal.TotalSlots() {
			t.Errorf("Stats.TotalSlots = %d, want %d", s.TotalSlots, cal.TotalSlots())
		}
		if s.FilledSlots != result.Schedule.CountFilled() {
			t.Errorf("Stats.FilledSlots = %d, want %d", s.FilledSlots, result.Schedule.CountFilled())
		}
		if s.AttemptsUsed != cfg.NumInitialAttempts {
			t.Errorf("Stats.AttemptsUsed = %d, want %d", s.AttemptsUsed, cfg.NumInitialAttempts)
		}
		if s.CoverageRate < 90 {
			t.Errorf("Stats.CoverageRate = %.1f, want at least 90", s.CoverageRate)
		}
	})
}

func TestGenerateMinimalFeasible(t *testing.T) {
	cfg := model.DefaultSchedulerConfig()
	cfg.StartDate = "2026-01-05"
	cfg.EndDate = "2026-01-11"
	cfg.Seed = seedPtr(1)
	cfg.Workers = []*model.Worker{fullTimeWorker("w1"), fullTimeWorker("w2"), fullTimeWorker("w3")}

	result, err := NewEngine(2).Generate(context.Background(), cfg)
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}

	if result.Stats.EmptySlots != 0 {
		t.Fatalf("EmptySlots = %d, want 0; schedule: %v", result.Stats.EmptySlots, result.Schedule)
	}
	if len(result.Violations) != 0 {
		t.Errorf("Violations = %+v, want none", result.Violations)
	}
	if len(result.UnresolvedMandatories) != 0 {
		t.Errorf("UnresolvedMandatories = %+v, want none", result.UnresolvedMandatories)
	}
	for id, ws := range result.Stats.Workers {
		if ws.Deviation < -1 || ws.Deviation > 1 {
			t.Errorf("worker %s deviation = %d, want within [-1,1]", id, ws.Deviation)
		}
	}
}

func TestGenerateDeterministic(t *testing.T) {
	build := func() *model.SchedulerConfig {
		cfg := model.DefaultSchedulerConfig()
		cfg.StartDate = "2026-01-05"
		cfg.EndDate = "2026-01-18"
		cfg.NumShifts = 2
		cfg.NumInitialAttempts = 10
		cfg.Seed = seedPtr(7)
		cfg.Workers = []*model.Worker{
			fullTimeWorker("w1"), fullTimeWorker("w2"), fullTimeWorker("w3"),
			fullTimeWorker("w4"), fullTimeWorker("w5"),
		}
		return cfg
	}

	// 并行度不同不应影响输出
	first, err := NewEngine(4).Generate(context.Background(), build())
	if err != nil {
		t.Fatalf("first Generate: %v", err)
	}
	second, err := NewEngine(1).Generate(context.Background(), build())
	if err != nil {
		t.Fatalf("second Generate: %v", err)
	}

	if !reflect.DeepEqual(first.Schedule, second.Schedule) {
		t.Errorf("same seed produced different schedules:\n%v\n%v", first.Schedule, second.Schedule)
	}
}

func TestGenerateRejectsBadConfig(t *testing.T) {
	cfg := model.DefaultSchedulerConfig()
	cfg.StartDate = "2026-01-10"
	cfg.EndDate = "2026-01-01"
	cfg.Workers = []*model.Worker{fullTimeWorker("w1")}

	result, err := NewEngine(1).Generate(context.Background(), cfg)
	if err == nil {
		t.Fatal("Generate = nil error, want validation failure")
	}
	if result != nil {
		t.Errorf("result = %+v, want nil on rejected config", result)
	}
	if errors.GetCode(err) != errors.CodeValidationFail {
		t.Errorf("code = %s, want %s", errors.GetCode(err), errors.CodeValidationFail)
	}
}

func TestGenerateCancelled(t *testing.T) {
	cfg := model.DefaultSchedulerConfig()
	cfg.StartDate = "2026-01-01"
	cfg.EndDate = "2026-01-14"
	cfg.Seed = seedPtr(3)
	w1 := fullTimeWorker("w1")
	w1.MandatoryDays = []string{"2026-01-03"}
	cfg.Workers = []*model.Worker{w1, fullTimeWorker("w2"), fullTimeWorker("w3")}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	result, err := NewEngine(2).Generate(ctx, cfg)
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if !result.Cancelled {
		t.Error("result.Cancelled = false, want true")
	}
	// 取消时仍返回保底草稿，强制值班已就位
	if !result.Schedule.HasWorker("2026-01-03", "w1") {
		t.Error("fallback draft missing mandatory w1@2026-01-03")
	}
}

func TestEngineProgress(t *testing.T) {
	e := NewEngine(2)
	if p := e.Progress(); p.Phase != "idle" {
		t.Errorf("initial phase = %s, want idle", p.Phase)
	}

	cfg := model.DefaultSchedulerConfig()
	cfg.StartDate = "2026-01-05"
	cfg.EndDate = "2026-01-11"
	cfg.NumInitialAttempts = 5
	cfg.Seed = seedPtr(11)
	cfg.Workers = []*model.Worker{fullTimeWorker("w1"), fullTimeWorker("w2"), fullTimeWorker("w3")}

	if _, err := e.Generate(context.Background(), cfg); err != nil {
		t.Fatalf("Generate: %v", err)
	}

	p := e.Progress()
	if p.Phase != "done" {
		t.Errorf("phase = %s, want done", p.Phase)
	}
	if p.AttemptsCompleted != 5 || p.TotalAttempts != 5 {
		t.Errorf("attempts = %d/%d, want 5/5", p.AttemptsCompleted, p.TotalAttempts)
	}
}

func TestCheckExternalSchedule(t *testing.T) {
	cfg := model.DefaultSchedulerConfig()
	cfg.StartDate = "2026-01-05"
	cfg.EndDate = "2026-01-11"
	w3 := fullTimeWorker("w3")
	w3.MandatoryDays = []string{"2026-01-11"}
	cfg.Workers = []*model.Worker{fullTimeWorker("w1"), fullTimeWorker("w2"), w3}

	t.Run("合规值班表", func(t *testing.T) {
		schedule := model.Schedule{
			"2026-01-05": {"w1"},
			"2026-01-06": {"w2"},
			"2026-01-07": {"w3"},
			"2026-01-08": {"w1"},
			"2026-01-09": {"w2"},
			"2026-01-10": {"w3"},
			"2026-01-11": {"w3"}, // 强制值班日，与前一日的间隔对因此免检
		}
		report, err := Check(cfg, schedule)
		if err != nil {
			t.Fatalf("Check: %v", err)
		}
		if !report.Valid {
			t.Errorf("Valid = false, violations: %+v", report.Violations)
		}
		if len(report.Violations) != 0 {
			t.Errorf("Violations = %+v, want none", report.Violations)
		}
	})

	t.Run("违规值班表", func(t *testing.T) {
		schedule := model.Schedule{
			"2026-01-05": {"w1"},
			"2026-01-06": {"w1"}, // 间隔不足
			"2026-01-11": {"w2"}, // w3 的强制值班日被占
		}
		report, err := Check(cfg, schedule)
		if err != nil {
			t.Fatalf("Check: %v", err)
		}
		if report.Valid {
			t.Error("Valid = true, want false")
		}
		kinds := make(map[model.ViolationKind]bool)
		for _, v := range report.Violations {
			kinds[v.Kind] = true
		}
		for _, want := range []model.ViolationKind{
			model.ViolationGap,
			model.ViolationMandatoryMissing,
			model.ViolationUncovered,
		} {
			if !kinds[want] {
				t.Errorf("missing violation kind %s in %+v", want, report.Violations)
			}
		}
	})

	t.Run("未知人员", func(t *testing.T) {
		schedule := model.Schedule{"2026-01-05": {"ghost"}}
		if _, err := Check(cfg, schedule); err == nil {
			t.Error("Check = nil error, want unknown worker rejection")
		}
	})
}
