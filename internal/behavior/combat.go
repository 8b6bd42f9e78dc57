package behavior

import (
	"context"
	"log/slog"

	"github.com/darkepoch/mubot/internal/client"
	"github.com/darkepoch/mubot/internal/task"
)

const enemyLimit = 3

func enemyTemplates(kinds []string) []string {
	names := make([]string, len(kinds))
	for i, k := range kinds {
		names[i] = "enemy_" + k
	}
	return names
}

func (e *Engine) fight(ctx context.Context, c client.ClientWindow, p task.CombatParams) (bool, error) {
	e.logger.Info("Searching for enemies", slog.Any("types", p.EnemyTypes))
	enemies := e.finder.FindAny(enemyTemplates(p.EnemyTypes), enemyLimit)
	if len(enemies) == 0 {
		e.logger.Warn("No enemies found, moving around")
		return false, e.randomMove(ctx)
	}

	target := nearest(e.clients.Center(c), enemies)
	e.logger.Info("Engaging enemy", slog.Int("x", target.X), slog.Int("y", target.Y))
	if err := e.safeClick(ctx, target.Position); err != nil {
		return false, err
	}
	if err := e.pause(ctx, 1.0, 2.0); err != nil {
		return false, err
	}

	for _, key := range p.AbilityKeys {
		if err := e.tap(key); err != nil {
			return false, err
		}
		if err := e.pause(ctx, 0.5, 1.0); err != nil {
			return false, err
		}
	}
	e.finder.Invalidate()

	if !e.lowHealth() {
		return true, nil
	}

	e.logger.Warn("Low health detected during combat")
	if err := e.useHealthItem(ctx); err != nil {
		return false, err
	}
	if p.RetreatHealthPercent >= task.RetreatHealthFloor {
		return true, nil
	}

	e.logger.Warn("Retreating", slog.Int("retreatHealthPercent", p.RetreatHealthPercent))
	if err := e.tap(keyEscape); err != nil {
		return false, err
	}
	if err := e.pause(ctx, 0.5, 1.0); err != nil {
		return false, err
	}
	if err := e.randomMove(ctx); err != nil {
		return false, err
	}
	_, err := e.returnToBase(ctx)
	return false, err
}
