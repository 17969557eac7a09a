package planner

import (
	"testing"
)

func TestNewMergePlan(t *testing.T) {
	plan := NewMergePlan([]string{"free", "pro", "addon"})

	if len(plan.Branches) != 3 {
		t.Errorf("expected 3 branches, got %d", len(plan.Branches))
	}
	if plan.Operations == nil {
		t.Error("expected Operations to be initialized")
	}
	if plan.Overrides == nil {
		t.Error("expected Overrides to be initialized")
	}
	if plan.HasOverrides() {
		t.Error("expected new plan to have no overrides")
	}
}

func TestMergePlan_AddOverride(t *testing.T) {
	plan := NewMergePlan([]string{"free", "pro"})
	plan.AddOverride(Override{Path: "free.php", Previous: "free", Branch: "pro"})

	if !plan.HasOverrides() {
		t.Error("expected HasOverrides() to be true")
	}
	if plan.Overrides[0].Branch != "pro" {
		t.Errorf("unexpected override: %+v", plan.Overrides[0])
	}
}
