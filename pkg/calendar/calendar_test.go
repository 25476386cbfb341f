package calendar

import (
	"testing"
	"time"

	"github.com/zhiban/zhiban/pkg/model"
)

func TestNew_DateClassification(t *testing.T) {
	cfg := &model.SchedulerConfig{
		StartDate: "2026-12-21",
		EndDate:   "2026-12-27",
		NumShifts: 1,
		Holidays:  []string{"2026-12-25"},
	}

	cal, err := New(cfg)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	if cal.Len() != 7 {
		t.Fatalf("Len() = %d, expected 7", cal.Len())
	}

	tests := []struct {
		date         string
		weekday      time.Weekday
		isHoliday    bool
		isPreHoliday bool
		weekendLike  bool
	}{
		{"2026-12-21", time.Monday, false, false, false},
		{"2026-12-22", time.Tuesday, false, false, false},
		{"2026-12-23", time.Wednesday, false, false, false},
		{"2026-12-24", time.Thursday, false, true, true}, // 节假日前一日
		{"2026-12-25", time.Friday, true, false, true},
		{"2026-12-26", time.Saturday, false, false, true},
		{"2026-12-27", time.Sunday, false, false, true},
	}

	for _, tt := range tests {
		i, ok := cal.IndexOf(tt.date)
		if !ok {
			t.Fatalf("IndexOf(%s) not found", tt.date)
		}
		day := cal.Day(i)
		if day.Weekday != tt.weekday {
			t.Errorf("%s Weekday = %v, expected %v", tt.date, day.Weekday, tt.weekday)
		}
		if day.IsHoliday != tt.isHoliday {
			t.Errorf("%s IsHoliday = %v, expected %v", tt.date, day.IsHoliday, tt.isHoliday)
		}
		if day.IsPreHoliday != tt.isPreHoliday {
			t.Errorf("%s IsPreHoliday = %v, expected %v", tt.date, day.IsPreHoliday, tt.isPreHoliday)
		}
		if day.WeekendLike != tt.weekendLike {
			t.Errorf("%s WeekendLike = %v, expected %v", tt.date, day.WeekendLike, tt.weekendLike)
		}
	}
}

func TestNew_VariableSlots(t *testing.T) {
	cfg := &model.SchedulerConfig{
		StartDate: "2026-07-01",
		EndDate:   "2026-07-10",
		NumShifts: 1,
		VariableShifts: []model.VariableShift{
			{StartDate: "2026-07-05", EndDate: "2026-07-07", Count: 3},
		},
	}

	cal, err := New(cfg)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	if got := cal.TotalSlots(); got != 7+9 {
		t.Errorf("TotalSlots() = %d, expected 16", got)
	}
	i, _ := cal.IndexOf("2026-07-06")
	if cal.Day(i).Slots != 3 {
		t.Errorf("Slots on 2026-07-06 = %d, expected 3", cal.Day(i).Slots)
	}
}

func TestNew_InvalidRange(t *testing.T) {
	tests := []struct {
		name string
		cfg  *model.SchedulerConfig
	}{
		{"结束早于起始", &model.SchedulerConfig{StartDate: "2026-02-01", EndDate: "2026-01-01", NumShifts: 1}},
		{"起始日期非法", &model.SchedulerConfig{StartDate: "2026-13-01", EndDate: "2026-12-31", NumShifts: 1}},
		{"结束日期非法", &model.SchedulerConfig{StartDate: "2026-01-01", EndDate: "bad", NumShifts: 1}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := New(tt.cfg); err == nil {
				t.Error("New() expected error, got nil")
			}
		})
	}
}

func TestTargets_LargestRemainder(t *testing.T) {
	workers := []*model.Worker{
		{ID: "a", WorkPercentage: 100},
		{ID: "b", WorkPercentage: 100},
		{ID: "c", WorkPercentage: 100},
	}

	targets := Targets(workers, 7)

	sum := 0
	for _, w := range workers {
		sum += targets[w.ID]
	}
	if sum != 7 {
		t.Errorf("targets sum = %d, expected 7", sum)
	}
	for _, w := range workers {
		if targets[w.ID] < 2 || targets[w.ID] > 3 {
			t.Errorf("target[%s] = %d, expected 2 or 3", w.ID, targets[w.ID])
		}
	}
	// 余数并列时按输入顺序补齐
	if targets["a"] != 3 {
		t.Errorf("target[a] = %d, expected 3 (first in input order)", targets["a"])
	}
}

func TestTargets_PartTime(t *testing.T) {
	workers := []*model.Worker{
		{ID: "full", WorkPercentage: 100},
		{ID: "half", WorkPercentage: 50},
	}

	targets := Targets(workers, 30)

	if targets["full"]+targets["half"] != 30 {
		t.Errorf("targets sum = %d, expected 30", targets["full"]+targets["half"])
	}
	if targets["full"] != 20 || targets["half"] != 10 {
		t.Errorf("targets = %v, expected full=20 half=10", targets)
	}
}

func TestTargets_Override(t *testing.T) {
	five := 5
	workers := []*model.Worker{
		{ID: "fixed", WorkPercentage: 100, TargetShifts: &five},
		{ID: "a", WorkPercentage: 100},
		{ID: "b", WorkPercentage: 100},
	}

	targets := Targets(workers, 25)

	if targets["fixed"] != 5 {
		t.Errorf("target[fixed] = %d, expected verbatim 5", targets["fixed"])
	}
	if targets["a"]+targets["b"] != 20 {
		t.Errorf("remaining sum = %d, expected 20", targets["a"]+targets["b"])
	}
}

func TestTargets_ZeroPercentExcluded(t *testing.T) {
	workers := []*model.Worker{
		{ID: "active", WorkPercentage: 100},
		{ID: "excluded", WorkPercentage: 0},
	}

	targets := Targets(workers, 10)

	if targets["excluded"] != 0 {
		t.Errorf("target[excluded] = %d, expected 0", targets["excluded"])
	}
	if targets["active"] != 10 {
		t.Errorf("target[active] = %d, expected 10", targets["active"])
	}
}

func TestTargets_AutoCalculateIgnoresOverride(t *testing.T) {
	five := 5
	workers := []*model.Worker{
		{ID: "auto", WorkPercentage: 100, TargetShifts: &five, AutoCalculateShifts: true},
		{ID: "b", WorkPercentage: 100},
	}

	targets := Targets(workers, 10)

	if targets["auto"] != 5 || targets["b"] != 5 {
		t.Errorf("targets = %v, expected auto=5 b=5 by percentage", targets)
	}
}
