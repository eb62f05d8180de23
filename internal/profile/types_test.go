package profile

import "testing"

func decisionPtr(d Decision) *Decision { return &d }

func TestRuleSet_SetDomainRule(t *testing.T) {
	rs := NewRuleSet(Google)

	rs.SetDomainRule("camera", DecisionSuppress)
	if rule := rs.RuleFor("camera"); rule == nil || rule.Decision != DecisionSuppress {
		t.Fatalf("RuleFor(camera) = %v, want suppress", rule)
	}

	// Replacing an existing rule must not duplicate it.
	rs.SetDomainRule("camera", DecisionExpose)
	if len(rs.DomainRules) != 1 {
		t.Errorf("len(DomainRules) = %d, want 1", len(rs.DomainRules))
	}
	if rule := rs.RuleFor("camera"); rule.Decision != DecisionExpose {
		t.Errorf("RuleFor(camera).Decision = %q, want expose", rule.Decision)
	}

	// Empty decision removes the rule.
	rs.SetDomainRule("camera", "")
	if rs.RuleFor("camera") != nil {
		t.Error("RuleFor(camera) should be nil after removal")
	}
}

func TestRuleSet_SetOverride(t *testing.T) {
	rs := NewRuleSet(Alexa)

	rs.SetOverride(EntityOverride{EntityID: "light.lamp", Alias: "Lamp"})
	if o := rs.OverrideFor("light.lamp"); o == nil || o.Alias != "Lamp" {
		t.Fatalf("OverrideFor(light.lamp) = %v, want alias Lamp", o)
	}

	rs.SetOverride(EntityOverride{EntityID: "light.lamp", Alias: "Desk Lamp"})
	if len(rs.Overrides) != 1 {
		t.Errorf("len(Overrides) = %d, want 1", len(rs.Overrides))
	}

	// An empty override is dropped, not stored.
	rs.SetOverride(EntityOverride{EntityID: "light.lamp"})
	if rs.OverrideFor("light.lamp") != nil {
		t.Error("empty override should remove the entry")
	}
}

func TestRuleSet_ClearOverride(t *testing.T) {
	rs := NewRuleSet(Google)
	rs.SetOverride(EntityOverride{EntityID: "switch.fan", Decision: decisionPtr(DecisionExpose)})

	rs.ClearOverride("switch.fan")
	if rs.OverrideFor("switch.fan") != nil {
		t.Error("override should be gone after ClearOverride")
	}

	// Clearing a missing override is a no-op.
	rs.ClearOverride("switch.fan")
}

func TestRuleSet_DeepCopy(t *testing.T) {
	rs := NewRuleSet(Google)
	rs.SetDomainRule("light", DecisionExpose)
	rs.SetOverride(EntityOverride{EntityID: "light.lamp", Decision: decisionPtr(DecisionSuppress)})

	clone := rs.DeepCopy()
	clone.SetDomainRule("light", DecisionSuppress)
	*clone.Overrides[0].Decision = DecisionExpose

	if rs.RuleFor("light").Decision != DecisionExpose {
		t.Error("mutating the copy changed the original domain rule")
	}
	if *rs.Overrides[0].Decision != DecisionSuppress {
		t.Error("mutating the copy changed the original override decision")
	}
}

func TestRuleSet_Equal(t *testing.T) {
	a := NewRuleSet(Google)
	a.SetDomainRule("light", DecisionExpose)
	a.SetDomainRule("camera", DecisionSuppress)
	a.SetOverride(EntityOverride{EntityID: "light.lamp", Alias: "Lamp"})

	b := a.DeepCopy()
	// Same content in a different order is still equal.
	b.DomainRules[0], b.DomainRules[1] = b.DomainRules[1], b.DomainRules[0]
	b.Version = a.Version + 3

	if !a.Equal(b) {
		t.Error("rule sets with identical content should be equal regardless of order and version")
	}

	b.SetOverride(EntityOverride{EntityID: "light.lamp", Alias: "Desk Lamp"})
	if a.Equal(b) {
		t.Error("rule sets with different aliases should not be equal")
	}
}

func TestManagerSettings_Authoritative(t *testing.T) {
	ms := DefaultManagerSettings()
	if got := ms.Authoritative(Google); got != Linked {
		t.Errorf("linked mode: Authoritative(google) = %q, want linked", got)
	}

	ms.Mode = ModeSeparate
	if got := ms.Authoritative(Google); got != Google {
		t.Errorf("separate mode: Authoritative(google) = %q, want google", got)
	}
}
