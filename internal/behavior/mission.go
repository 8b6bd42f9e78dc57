package behavior

import (
	"context"
	"log/slog"
	"time"

	"github.com/darkepoch/mubot/internal/client"
	"github.com/darkepoch/mubot/internal/screen"
	"github.com/darkepoch/mubot/internal/task"
	"github.com/darkepoch/mubot/internal/utils"
)

const objectiveLimit = 10

func (e *Engine) mission(ctx context.Context, c client.ClientWindow, p task.MissionParams) (bool, error) {
	if e.classifier.Classify() != screen.InGame {
		e.logger.Warn("Not in game, skipping mission")
		return false, nil
	}

	if panel, found := e.finder.FindOne(MissionPanel); found {
		if err := e.safeClick(ctx, panel.Position); err != nil {
			return false, err
		}
	} else if err := e.tap(keyMissions); err != nil {
		return false, err
	}
	if err := e.pause(ctx, 0.5, 1.0); err != nil {
		return false, err
	}
	e.finder.Invalidate()

	e.logger.Info("Selecting mission type", slog.String("type", p.MissionType))
	if list, found := e.finder.FindOne("mission_" + p.MissionType); found {
		if err := e.safeClick(ctx, list.Position); err != nil {
			return false, err
		}
		if err := e.pause(ctx, 0.5, 1.0); err != nil {
			return false, err
		}
	}

	objectives := e.finder.FindAll(MissionObjective, objectiveLimit)
	if len(objectives) == 0 {
		e.logger.Warn("No mission objectives found")
		return false, nil
	}

	target := nearest(e.clients.Center(c), objectives)
	e.logger.Info("Heading to mission objective", slog.Int("found", len(objectives)), slog.Int("x", target.X), slog.Int("y", target.Y))
	if err := e.safeClick(ctx, target.Position); err != nil {
		return false, err
	}
	if err := e.pause(ctx, 1.0, 2.0); err != nil {
		return false, err
	}

	confirm, found := e.finder.FindOne(ConfirmButton)
	if !found {
		e.logger.Warn("Mission confirmation button not found")
		return false, nil
	}
	if err := e.safeClick(ctx, confirm.Position); err != nil {
		return false, err
	}

	travel := utils.RandomDuration(e.rng, 3.0, 5.0)
	if limit := time.Duration(p.TravelWait() * float64(time.Second)); limit < travel {
		travel = limit
	}
	e.logger.Info("Waiting for mission travel", slog.Duration("wait", travel))
	if err := e.wait(ctx, travel); err != nil {
		return false, err
	}
	return true, nil
}
