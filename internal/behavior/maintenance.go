package behavior

import (
	"context"
	"log/slog"

	"github.com/darkepoch/mubot/internal/task"
)

const upgradeLimit = 2

func (e *Engine) maintain(ctx context.Context, p task.MaintenanceParams) (bool, error) {
	if err := e.checkInventory(ctx); err != nil {
		return false, err
	}

	if p.UseHealthItems && e.lowHealth() {
		e.logger.Info("Low health detected, using health items")
		if err := e.useHealthItem(ctx); err != nil {
			return false, err
		}
	}

	if p.UpgradeEquipment {
		if err := e.upgradeEquipment(ctx); err != nil {
			return false, err
		}
	}
	return true, nil
}

func (e *Engine) checkInventory(ctx context.Context) error {
	e.logger.Debug("Checking inventory")
	if err := e.tap(keyInventory); err != nil {
		return err
	}
	if err := e.pause(ctx, 0.5, 1.0); err != nil {
		return err
	}
	e.finder.Invalidate()
	return e.tap(keyEscape)
}

func (e *Engine) upgradeEquipment(ctx context.Context) error {
	upgrades := e.finder.FindAll(UpgradeIndicator, upgradeLimit)
	if len(upgrades) == 0 {
		e.logger.Debug("No equipment upgrades available")
		return nil
	}

	e.logger.Info("Applying equipment upgrades", slog.Int("count", len(upgrades)))
	for _, u := range upgrades {
		if err := e.safeClick(ctx, u.Position); err != nil {
			return err
		}
		if err := e.pause(ctx, 0.5, 1.0); err != nil {
			return err
		}
		if confirm, found := e.finder.FindOne(ConfirmButton); found {
			if err := e.safeClick(ctx, confirm.Position); err != nil {
				return err
			}
			if err := e.pause(ctx, 1.0, 1.5); err != nil {
				return err
			}
		}
	}
	return nil
}
