package behavior

import (
	"context"
	"testing"
	"time"

	"github.com/darkepoch/mubot/internal/screen"
	"github.com/darkepoch/mubot/internal/task"
	"github.com/darkepoch/mubot/internal/utils"
	"github.com/darkepoch/mubot/internal/vision"
)

func TestGatherNoNodes(t *testing.T) {
	h := newHarness(screen.InGame, nil)

	ok, err := h.engine.gather(context.Background(), testClient, task.DefaultGatherParams())
	if err != nil || ok {
		t.Fatalf("expected failure without error, got %v %v", ok, err)
	}
	if len(h.input.clicks) != 0 {
		t.Fatalf("nothing should be clicked, got %v", h.input.clicks)
	}
	held := h.input.held()
	if len(held) != 1 {
		t.Fatalf("expected a single random movement, got %v", h.input.events)
	}
	if !contains(movementKeys, held[0]) {
		t.Errorf("unexpected movement key %q", held[0])
	}
}

func TestGatherClicksNearestNode(t *testing.T) {
	h := newHarness(screen.InGame, map[string][]vision.MatchResult{
		"ore_node":  at(100, 100),
		"herb_node": {{Position: utils.Position{X: 700, Y: 500}}, {Position: utils.Position{X: 390, Y: 290}}},
	})

	ok, err := h.engine.gather(context.Background(), testClient, task.DefaultGatherParams())
	if err != nil || !ok {
		t.Fatalf("expected success, got %v %v", ok, err)
	}
	if len(h.input.clicks) != 1 || !near(h.input.clicks[0], utils.Position{X: 390, Y: 290}) {
		t.Fatalf("expected a click near the closest node, got %v", h.input.clicks)
	}
}

func TestGatherOnlyConfiguredTypes(t *testing.T) {
	h := newHarness(screen.InGame, map[string][]vision.MatchResult{"ore_node": at(100, 100)})
	p := task.DefaultGatherParams()
	p.ResourceTypes = []string{"herb"}

	ok, _ := h.engine.gather(context.Background(), testClient, p)
	if ok {
		t.Fatalf("ore nodes must be ignored when only herb is configured")
	}
}

func TestGatherWaitIsCapped(t *testing.T) {
	limit := time.Duration(task.MaxGatherWait * float64(time.Second))
	for _, gatherTime := range []float64{3, 4.5, 5, 30} {
		for i := 0; i < 20; i++ {
			h := newHarness(screen.InGame, map[string][]vision.MatchResult{"wood_node": at(10, 10)})
			p := task.DefaultGatherParams()
			p.GatherTime = gatherTime

			if _, err := h.engine.gather(context.Background(), testClient, p); err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			for _, w := range h.waits {
				if w > limit {
					t.Fatalf("gather time %v: wait %v exceeds %v", gatherTime, w, limit)
				}
			}
		}
	}
}

func TestGatherInventoryFull(t *testing.T) {
	visible := map[string][]vision.MatchResult{
		"ore_node":    at(380, 300),
		InventoryFull: at(700, 500),
		CityIcon:      at(50, 50),
		TravelButton:  at(60, 60),
	}

	t.Run("returns to base before reporting success", func(t *testing.T) {
		h := newHarness(screen.InGame, visible)
		ok, err := h.engine.gather(context.Background(), testClient, task.DefaultGatherParams())
		if err != nil || !ok {
			t.Fatalf("expected success, got %v %v", ok, err)
		}
		if !h.input.has("tap:m") || len(h.input.clicks) != 3 {
			t.Fatalf("expected a fast travel, got %v", h.input.events)
		}
	})

	t.Run("stays when returnToBase is off", func(t *testing.T) {
		h := newHarness(screen.InGame, visible)
		p := task.DefaultGatherParams()
		p.ReturnToBase = false
		ok, _ := h.engine.gather(context.Background(), testClient, p)
		if !ok || h.input.has("tap:m") {
			t.Fatalf("expected success without travel, got %v %v", ok, h.input.events)
		}
	})
}

func TestGatherLowHealth(t *testing.T) {
	visible := map[string][]vision.MatchResult{
		"herb_node": at(400, 300),
		LowHealth:   at(20, 20),
	}

	tests := []struct {
		name    string
		retreat int
		ok      bool
		travel  bool
	}{
		{"default threshold keeps gathering", 30, true, false},
		{"below floor retreats", 20, false, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newHarness(screen.InGame, visible)
			p := task.DefaultGatherParams()
			p.RetreatHealthPercent = tt.retreat

			ok, err := h.engine.gather(context.Background(), testClient, p)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if ok != tt.ok {
				t.Errorf("expected %v, got %v", tt.ok, ok)
			}
			if !h.input.has("tap:h") {
				t.Errorf("a health item should be used")
			}
			if h.input.has("tap:m") != tt.travel {
				t.Errorf("return to base: expected %v, events %v", tt.travel, h.input.events)
			}
		})
	}
}

func TestCombatAbilitiesInOrder(t *testing.T) {
	h := newHarness(screen.InGame, map[string][]vision.MatchResult{"enemy_boar": at(420, 310)})
	p := task.DefaultCombatParams()
	p.AbilityKeys = []string{"3", "1", "f"}

	ok, err := h.engine.fight(context.Background(), testClient, p)
	if err != nil || !ok {
		t.Fatalf("expected success, got %v %v", ok, err)
	}
	i3, i1, iF := h.input.index("tap:3"), h.input.index("tap:1"), h.input.index("tap:f")
	if i3 < 0 || i1 < i3 || iF < i1 {
		t.Fatalf("abilities out of order: %v", h.input.events)
	}
	if len(h.input.clicks) != 1 || !near(h.input.clicks[0], utils.Position{X: 420, Y: 310}) {
		t.Fatalf("expected the enemy to be engaged, got %v", h.input.clicks)
	}
}

func TestCombatNoEnemies(t *testing.T) {
	h := newHarness(screen.InGame, nil)
	ok, err := h.engine.fight(context.Background(), testClient, task.DefaultCombatParams())
	if err != nil || ok {
		t.Fatalf("expected failure, got %v %v", ok, err)
	}
	if len(h.input.held()) != 1 || h.input.has("tap:1") {
		t.Fatalf("expected only a random movement, got %v", h.input.events)
	}
}

func TestCombatRetreat(t *testing.T) {
	h := newHarness(screen.InGame, map[string][]vision.MatchResult{
		"enemy_wolf": at(400, 300),
		LowHealth:    at(5, 5),
	})
	p := task.DefaultCombatParams()
	p.RetreatHealthPercent = 10

	ok, err := h.engine.fight(context.Background(), testClient, p)
	if err != nil || ok {
		t.Fatalf("expected failure, got %v %v", ok, err)
	}
	iH, iEsc, iMap := h.input.index("tap:h"), h.input.index("tap:esc"), h.input.index("tap:m")
	if iH < 0 || iEsc < iH || iMap < iEsc {
		t.Fatalf("expected health item, esc, then map: %v", h.input.events)
	}
}

func TestMission(t *testing.T) {
	objectives := map[string][]vision.MatchResult{
		MissionPanel:     at(700, 100),
		"mission_main":   at(700, 150),
		MissionObjective: at(300, 300),
		ConfirmButton:    at(400, 450),
	}

	t.Run("completes", func(t *testing.T) {
		h := newHarness(screen.InGame, objectives)
		ok, err := h.engine.mission(context.Background(), testClient, task.DefaultMissionParams())
		if err != nil || !ok {
			t.Fatalf("expected success, got %v %v", ok, err)
		}
		if len(h.input.clicks) != 4 {
			t.Fatalf("expected panel, list, objective and confirm clicks, got %v", h.input.events)
		}
		travel := h.waits[len(h.waits)-1]
		if travel < 3*time.Second || travel > 5*time.Second {
			t.Errorf("travel wait %v outside 3-5s", travel)
		}
	})

	t.Run("short travel limit", func(t *testing.T) {
		h := newHarness(screen.InGame, objectives)
		p := task.DefaultMissionParams()
		p.MaxTravelTime = 1
		if ok, _ := h.engine.mission(context.Background(), testClient, p); !ok {
			t.Fatalf("expected success")
		}
		if travel := h.waits[len(h.waits)-1]; travel != time.Second {
			t.Errorf("expected the travel wait to be capped at 1s, got %v", travel)
		}
	})

	t.Run("panel shortcut", func(t *testing.T) {
		h := newHarness(screen.InGame, map[string][]vision.MatchResult{MissionObjective: at(1, 1), ConfirmButton: at(2, 2)})
		if ok, _ := h.engine.mission(context.Background(), testClient, task.DefaultMissionParams()); !ok {
			t.Fatalf("expected success")
		}
		if !h.input.has("tap:q") {
			t.Errorf("expected the mission shortcut, got %v", h.input.events)
		}
	})

	t.Run("no confirm button", func(t *testing.T) {
		h := newHarness(screen.InGame, map[string][]vision.MatchResult{MissionObjective: at(1, 1)})
		if ok, _ := h.engine.mission(context.Background(), testClient, task.DefaultMissionParams()); ok {
			t.Fatalf("expected failure")
		}
	})

	t.Run("no objectives", func(t *testing.T) {
		h := newHarness(screen.InGame, nil)
		if ok, _ := h.engine.mission(context.Background(), testClient, task.DefaultMissionParams()); ok {
			t.Fatalf("expected failure")
		}
	})

	t.Run("not in game", func(t *testing.T) {
		h := newHarness(screen.MainMenu, objectives)
		if ok, _ := h.engine.mission(context.Background(), testClient, task.DefaultMissionParams()); ok {
			t.Fatalf("expected failure outside the game")
		}
		if len(h.input.events) != 0 {
			t.Errorf("no input expected, got %v", h.input.events)
		}
	})
}

func TestMaintenance(t *testing.T) {
	upgrades := []vision.MatchResult{
		{Position: utils.Position{X: 10, Y: 10}},
		{Position: utils.Position{X: 20, Y: 20}},
		{Position: utils.Position{X: 30, Y: 30}},
	}

	t.Run("applies at most two upgrades", func(t *testing.T) {
		h := newHarness(screen.InGame, map[string][]vision.MatchResult{
			UpgradeIndicator: upgrades,
			ConfirmButton:    at(400, 400),
		})
		ok, err := h.engine.maintain(context.Background(), task.DefaultMaintenanceParams())
		if err != nil || !ok {
			t.Fatalf("expected success, got %v %v", ok, err)
		}
		if h.input.events[0] != "tap:i" || h.input.events[1] != "tap:esc" {
			t.Fatalf("expected inventory check first, got %v", h.input.events)
		}
		if len(h.input.clicks) != 4 {
			t.Fatalf("expected two upgrades with confirmation, got %v", h.input.clicks)
		}
	})

	t.Run("respects params", func(t *testing.T) {
		h := newHarness(screen.InGame, map[string][]vision.MatchResult{
			UpgradeIndicator: upgrades,
			LowHealth:        at(1, 1),
		})
		ok, _ := h.engine.maintain(context.Background(), task.MaintenanceParams{})
		if !ok {
			t.Fatalf("maintenance always succeeds")
		}
		if len(h.input.clicks) != 0 || h.input.has("tap:h") {
			t.Fatalf("nothing but the inventory check expected, got %v", h.input.events)
		}
	})

	t.Run("uses health items", func(t *testing.T) {
		h := newHarness(screen.InGame, map[string][]vision.MatchResult{
			LowHealth:      at(1, 1),
			HealthPotion:   at(100, 100),
			UseItemConfirm: at(110, 110),
		})
		h.engine.maintain(context.Background(), task.DefaultMaintenanceParams())
		if !h.input.has("tap:h") || len(h.input.clicks) != 2 {
			t.Fatalf("expected potion and confirm clicks, got %v", h.input.events)
		}
	})
}

func contains(list []string, v string) bool {
	for _, s := range list {
		if s == v {
			return true
		}
	}
	return false
}
