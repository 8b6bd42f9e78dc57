package behavior

import (
	"context"
	"log/slog"
	"time"

	"github.com/darkepoch/mubot/internal/client"
	"github.com/darkepoch/mubot/internal/task"
)

const nodeLimit = 5

func nodeTemplates(kinds []string) []string {
	names := make([]string, len(kinds))
	for i, k := range kinds {
		names[i] = k + "_node"
	}
	return names
}

func (e *Engine) gather(ctx context.Context, c client.ClientWindow, p task.GatherParams) (bool, error) {
	e.logger.Info("Searching for resource nodes", slog.Any("types", p.ResourceTypes))
	nodes := e.finder.FindAny(nodeTemplates(p.ResourceTypes), nodeLimit)
	if len(nodes) == 0 {
		e.logger.Warn("No resource nodes found, moving around")
		return false, e.randomMove(ctx)
	}

	target := nearest(e.clients.Center(c), nodes)
	e.logger.Info("Moving to nearest resource", slog.Int("x", target.X), slog.Int("y", target.Y))
	if err := e.safeClick(ctx, target.Position); err != nil {
		return false, err
	}
	if err := e.pause(ctx, 1.0, 2.0); err != nil {
		return false, err
	}

	window := p.GatherWait()
	e.logger.Debug("Waiting for gathering", slog.Duration("window", time.Duration(window*float64(time.Second))))
	if err := e.pause(ctx, window, min(window+1.0, task.MaxGatherWait)); err != nil {
		return false, err
	}
	e.finder.Invalidate()

	if _, full := e.finder.FindOne(InventoryFull); full {
		e.logger.Info("Inventory is full")
		if p.ReturnToBase {
			if _, err := e.returnToBase(ctx); err != nil {
				return false, err
			}
		}
		return true, nil
	}

	if e.lowHealth() {
		e.logger.Warn("Low health detected while gathering")
		if err := e.useHealthItem(ctx); err != nil {
			return false, err
		}
		if p.RetreatHealthPercent < task.RetreatHealthFloor {
			e.logger.Warn("Retreating to base", slog.Int("retreatHealthPercent", p.RetreatHealthPercent))
			_, err := e.returnToBase(ctx)
			return false, err
		}
	}

	e.logger.Info("Gathered resources")
	return true, nil
}
