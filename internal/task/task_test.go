package task

import (
	"errors"
	"testing"

	"gopkg.in/yaml.v3"
)

func TestFromDescriptorAppliesDefaults(t *testing.T) {
	tk, err := FromDescriptor(Descriptor{Type: ResourceGathering})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	p, ok := tk.Params.(GatherParams)
	if !ok {
		t.Fatalf("expected GatherParams, got %T", tk.Params)
	}
	if len(p.ResourceTypes) != 3 || !p.ReturnToBase || p.GatherTime != 3 {
		t.Errorf("defaults not applied: %+v", p)
	}
	if !tk.Enabled || tk.Name != string(ResourceGathering) {
		t.Errorf("unexpected task header: %+v", tk)
	}
}

func TestFromDescriptorDecodesOverrides(t *testing.T) {
	raw := `
name: farm-herbs
type: resource_gathering
priority: 3
enabled: false
params:
  resourceTypes: [herb]
  gatherTime: 8
  returnToBase: false
`
	var d Descriptor
	if err := yaml.Unmarshal([]byte(raw), &d); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}

	tk, err := FromDescriptor(d)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	p := tk.Params.(GatherParams)
	if len(p.ResourceTypes) != 1 || p.ResourceTypes[0] != "herb" {
		t.Errorf("resourceTypes override lost: %v", p.ResourceTypes)
	}
	if p.ReturnToBase {
		t.Errorf("returnToBase should be false")
	}
	if p.GatherCount != 10 {
		t.Errorf("untouched field should keep default, got %d", p.GatherCount)
	}
	if p.GatherWait() != MaxGatherWait {
		t.Errorf("gather wait should be capped at %v, got %v", MaxGatherWait, p.GatherWait())
	}
	if tk.Enabled || tk.Priority != 3 || tk.Name != "farm-herbs" {
		t.Errorf("unexpected task header: %+v", tk)
	}
}

func TestFromDescriptorRejectsInvalid(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		want error
	}{
		{"unknown type", "type: fishing", ErrUnknownType},
		{"empty enemies", "type: combat\nparams:\n  enemyTypes: []", ErrInvalidParams},
		{"bad percent", "type: combat\nparams:\n  retreatHealthPercent: 140", ErrInvalidParams},
		{"empty mission", "type: mission\nparams:\n  missionType: ''", ErrInvalidParams},
		{"wrong shape", "type: mission\nparams:\n  maxTravelTime: [1, 2]", ErrInvalidParams},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var d Descriptor
			if err := yaml.Unmarshal([]byte(tt.raw), &d); err != nil {
				t.Fatalf("unmarshal: %v", err)
			}
			if _, err := FromDescriptor(d); !errors.Is(err, tt.want) {
				t.Errorf("expected %v, got %v", tt.want, err)
			}
		})
	}
}

func TestValidateRejectsMismatchedParams(t *testing.T) {
	tk := Task{Name: "x", Type: Combat, Params: DefaultMissionParams()}
	if err := tk.Validate(); !errors.Is(err, ErrInvalidParams) {
		t.Fatalf("expected ErrInvalidParams, got %v", err)
	}
}

func TestMissionTravelWaitCapped(t *testing.T) {
	p := DefaultMissionParams()
	p.MaxTravelTime = 500
	if p.TravelWait() != MaxTravelWait {
		t.Fatalf("expected %v, got %v", MaxTravelWait, p.TravelWait())
	}
}

func TestStandardPolicy(t *testing.T) {
	p := StandardPolicy()
	want := []Type{ResourceGathering, Combat, InventoryManagement, InventoryManagement}
	for i, w := range want {
		if got := p.For(i).Type; got != w {
			t.Errorf("index %d: expected %s, got %s", i, w, got)
		}
	}
}

func TestCatalogPolicyResolvesNamedTasks(t *testing.T) {
	var d Descriptor
	if err := yaml.Unmarshal([]byte("name: boars\ntype: combat\nparams:\n  enemyTypes: [boar]"), &d); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	c, err := NewCatalog([]Descriptor{d})
	if err != nil {
		t.Fatalf("catalog: %v", err)
	}

	p, err := NewDefaultPolicy(c, []string{"mission", "boars"}, "inventory_management")
	if err != nil {
		t.Fatalf("policy: %v", err)
	}
	if p.For(0).Type != Mission {
		t.Errorf("index 0 should resolve the mission type default")
	}
	if got := p.For(1).Params.(CombatParams).EnemyTypes; len(got) != 1 || got[0] != "boar" {
		t.Errorf("index 1 should resolve the named task, got %v", got)
	}
	if p.For(7).Type != InventoryManagement {
		t.Errorf("fallback not applied")
	}

	if _, err = NewDefaultPolicy(c, []string{"nope"}, "combat"); !errors.Is(err, ErrUnknownType) {
		t.Errorf("expected ErrUnknownType, got %v", err)
	}
}
