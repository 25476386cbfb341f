package rules

import (
	"testing"

	"github.com/zhiban/zhiban/pkg/scheduler/constraint"
	"github.com/zhiban/zhiban/pkg/scheduler/constraint/builtin"
)

// 目录必须与引擎注册的内置约束保持一致：同名、同类别、同权重
func TestCatalogMatchesRegisteredConstraints(t *testing.T) {
	manager := constraint.NewManager()
	builtin.RegisterDefaults(manager)

	registered := make(map[string]constraint.Constraint)
	for _, c := range manager.GetAll() {
		registered[string(c.Kind())] = c
	}

	catalog := Catalog()
	if len(catalog) != len(registered) {
		t.Fatalf("catalog has %d rules, engine registers %d", len(catalog), len(registered))
	}

	for _, rule := range catalog {
		c, ok := registered[rule.Name]
		if !ok {
			t.Errorf("rule %s not registered in the engine", rule.Name)
			continue
		}
		wantType := "soft"
		if c.Category() == constraint.CategoryHard {
			wantType = "hard"
		}
		if rule.Type != wantType {
			t.Errorf("rule %s type = %s, engine says %s", rule.Name, rule.Type, wantType)
		}
		if rule.Weight != c.Weight() {
			t.Errorf("rule %s weight = %d, engine says %d", rule.Name, rule.Weight, c.Weight())
		}
		if rule.DisplayName != c.Name() {
			t.Errorf("rule %s display name = %s, engine says %s", rule.Name, rule.DisplayName, c.Name())
		}
	}
}

func TestCatalogHardRulesOrderedByWeight(t *testing.T) {
	hard := HardRules()
	if len(hard) != 8 {
		t.Fatalf("hard rules = %d, expected 8", len(hard))
	}
	for i := 1; i < len(hard); i++ {
		if hard[i-1].Weight < hard[i].Weight {
			t.Errorf("hard rules out of order: %s(%d) before %s(%d)",
				hard[i-1].Name, hard[i-1].Weight, hard[i].Name, hard[i].Weight)
		}
	}
}

func TestGet(t *testing.T) {
	rule, ok := Get("gap")
	if !ok {
		t.Fatal("gap rule missing")
	}
	if len(rule.Params) != 1 || rule.Params[0].Name != "gap_between_shifts" {
		t.Errorf("gap params = %+v, expected gap_between_shifts", rule.Params)
	}
	if rule.Params[0].Default != "2" {
		t.Errorf("gap default = %s, expected 2", rule.Params[0].Default)
	}

	if _, ok := Get("nonexistent"); ok {
		t.Error("unknown rule should not be found")
	}
}
