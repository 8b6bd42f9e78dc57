package behavior

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/darkepoch/mubot/internal/input"
	"github.com/darkepoch/mubot/internal/utils"
	"github.com/darkepoch/mubot/internal/vision"
)

const (
	LowHealth        = "low_health"
	InventoryFull    = "inventory_full"
	HealthPotion     = "health_potion"
	UseItemConfirm   = "use_item_confirm"
	CityIcon         = "city_icon"
	TravelButton     = "travel_button"
	ConfirmButton    = "confirm_button"
	MissionPanel     = "mission_panel"
	MissionObjective = "mission_objective"
	UpgradeIndicator = "upgrade_indicator"
)

const (
	keyEscape    = "esc"
	keyHealth    = "h"
	keyMap       = "m"
	keyInventory = "i"
	keyMissions  = "q"
	keyForward   = "w"

	clickJitter = 5
)

var movementKeys = []string{"w", "a", "s", "d"}

// pause waits a random duration in [minS, maxS] seconds.
func (e *Engine) pause(ctx context.Context, minS, maxS float64) error {
	return e.wait(ctx, utils.RandomDuration(e.rng, minS, maxS))
}

func (e *Engine) tap(key string) error {
	if err := e.input.KeyTap(key); err != nil {
		return fmt.Errorf("pressing %s: %w", key, err)
	}
	return nil
}

// hold keeps key pressed for a random duration. The key is always released.
func (e *Engine) hold(ctx context.Context, key string, minS, maxS float64) error {
	if err := e.input.KeyDown(key); err != nil {
		return fmt.Errorf("holding %s: %w", key, err)
	}
	waitErr := e.pause(ctx, minS, maxS)
	if err := e.input.KeyUp(key); err != nil {
		return fmt.Errorf("releasing %s: %w", key, err)
	}
	return waitErr
}

// safeClick clicks near p and waits the configured click delay. Any cached
// frame is dropped since the click changes the screen.
func (e *Engine) safeClick(ctx context.Context, p utils.Position) error {
	x := p.X + e.rng.Intn(2*clickJitter+1) - clickJitter
	y := p.Y + e.rng.Intn(2*clickJitter+1) - clickJitter

	if err := e.input.Click(x, y, input.LeftButton); err != nil {
		return fmt.Errorf("clicking at %d,%d: %w", x, y, err)
	}
	e.finder.Invalidate()

	return e.pause(ctx, e.settings.ClickDelayMin, e.settings.ClickDelayMax)
}

func (e *Engine) randomMove(ctx context.Context) error {
	key := movementKeys[e.rng.Intn(len(movementKeys))]
	e.logger.Debug("Random movement", slog.String("key", key))
	return e.hold(ctx, key, 0.5, 1.5)
}

// recoverScreen is used on screens nobody recognizes.
func (e *Engine) recoverScreen(ctx context.Context) error {
	if err := e.tap(keyEscape); err != nil {
		return err
	}
	if err := e.pause(ctx, 1.0, 2.0); err != nil {
		return err
	}
	return e.randomMove(ctx)
}

// lowHealth reports the low health marker, or the health bar reading when an
// OCR reader is configured.
func (e *Engine) lowHealth() bool {
	if _, found := e.finder.FindOne(LowHealth); found {
		return true
	}
	if e.health == nil || e.settings.LowHealthPercent <= 0 {
		return false
	}

	frame, err := e.finder.Frame()
	if err != nil {
		return false
	}
	pct, ok := e.health.HealthPercent(frame)
	if ok {
		e.logger.Debug("Health read", slog.Int("percent", pct))
	}
	return ok && pct <= e.settings.LowHealthPercent
}

func (e *Engine) useHealthItem(ctx context.Context) error {
	e.logger.Info("Using health potion")
	if err := e.tap(keyHealth); err != nil {
		return err
	}
	e.finder.Invalidate()

	potion, found := e.finder.FindOne(HealthPotion)
	if !found {
		return nil
	}
	if err := e.safeClick(ctx, potion.Position); err != nil {
		return err
	}
	if confirm, found := e.finder.FindOne(UseItemConfirm); found {
		return e.safeClick(ctx, confirm.Position)
	}
	return nil
}

// returnToBase tries fast travel through the map and falls back to walking.
// Walking cannot confirm arrival so it reports false.
func (e *Engine) returnToBase(ctx context.Context) (bool, error) {
	e.logger.Info("Attempting to return to base")
	if err := e.tap(keyMap); err != nil {
		return false, err
	}
	if err := e.pause(ctx, 1.0, 1.5); err != nil {
		return false, err
	}
	e.finder.Invalidate()

	if city, found := e.finder.FindOne(CityIcon); found {
		if err := e.safeClick(ctx, city.Position); err != nil {
			return false, err
		}
		if err := e.pause(ctx, 0.5, 1.0); err != nil {
			return false, err
		}
		if travel, found := e.finder.FindOne(TravelButton); found {
			if err := e.safeClick(ctx, travel.Position); err != nil {
				return false, err
			}
			e.logger.Info("Traveling to base")
			if err := e.pause(ctx, 5.0, 10.0); err != nil {
				return false, err
			}
			return true, nil
		}
	}

	e.logger.Warn("Could not use fast travel, walking back")
	if err := e.tap(keyEscape); err != nil {
		return false, err
	}
	if err := e.pause(ctx, 0.5, 1.0); err != nil {
		return false, err
	}
	if err := e.hold(ctx, keyForward, 10.0, 15.0); err != nil {
		return false, err
	}
	e.logger.Warn("Manual return to base finished, arrival unknown")
	return false, nil
}

// nearest returns the match closest to origin, ties keep the first one.
func nearest(origin utils.Position, matches []vision.MatchResult) vision.MatchResult {
	positions := make([]utils.Position, len(matches))
	for i, m := range matches {
		positions[i] = m.Position
	}
	return matches[utils.Nearest(origin, positions)]
}
