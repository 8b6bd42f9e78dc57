package main

import (
	"context"
	"log/slog"
	"runtime"
	"time"

	"github.com/darkepoch/mubot/internal/bot"
	"github.com/getlantern/systray"
)

// runTray blocks until the tray is closed or ctx is done.
func runTray(ctx context.Context, controller bot.Controller, logger *slog.Logger) {
	runtime.LockOSThread()
	defer runtime.UnlockOSThread()

	systray.Run(func() {
		systray.SetTitle("mubot")
		systray.SetTooltip("mubot")

		statusItem := systray.AddMenuItem("Status: idle", "Current bot status")
		statusItem.Disable()
		systray.AddSeparator()
		startItem := systray.AddMenuItem("Start", "Start the bot")
		pauseItem := systray.AddMenuItem("Pause", "Pause after the current cycle")
		resumeItem := systray.AddMenuItem("Resume", "Resume a paused bot")
		stopItem := systray.AddMenuItem("Stop", "Stop the bot")
		systray.AddSeparator()
		quitItem := systray.AddMenuItem("Quit", "Quit mubot")

		go func() {
			ticker := time.NewTicker(time.Second)
			defer ticker.Stop()

			run := func(name string, op func() error) {
				if err := op(); err != nil {
					logger.Warn("Tray action failed", slog.String("action", name), slog.Any("error", err))
				}
			}

			for {
				select {
				case <-ctx.Done():
					systray.Quit()
					return
				case <-ticker.C:
					statusItem.SetTitle("Status: " + controller.Status().State)
				case <-startItem.ClickedCh:
					run("start", controller.Start)
				case <-pauseItem.ClickedCh:
					run("pause", controller.Pause)
				case <-resumeItem.ClickedCh:
					run("resume", controller.Resume)
				case <-stopItem.ClickedCh:
					run("stop", controller.Stop)
				case <-quitItem.ClickedCh:
					systray.Quit()
					return
				}
			}
		}()
	}, func() {
		logger.Info("Tray closed")
	})
}
