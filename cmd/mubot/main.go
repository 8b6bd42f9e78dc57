package main

import (
	"context"
	"errors"
	"fmt"
	"image"
	"log"
	"log/slog"
	"os"
	"runtime"
	"runtime/debug"
	"time"

	sloggger "github.com/darkepoch/mubot/cmd/mubot/log"
	"github.com/darkepoch/mubot/internal/behavior"
	"github.com/darkepoch/mubot/internal/bot"
	"github.com/darkepoch/mubot/internal/client"
	"github.com/darkepoch/mubot/internal/config"
	"github.com/darkepoch/mubot/internal/event"
	"github.com/darkepoch/mubot/internal/health"
	"github.com/darkepoch/mubot/internal/input"
	"github.com/darkepoch/mubot/internal/input/robot"
	"github.com/darkepoch/mubot/internal/remote/discord"
	ngrokremote "github.com/darkepoch/mubot/internal/remote/ngrok"
	"github.com/darkepoch/mubot/internal/remote/telegram"
	"github.com/darkepoch/mubot/internal/screen"
	"github.com/darkepoch/mubot/internal/server"
	"github.com/darkepoch/mubot/internal/task"
	"github.com/darkepoch/mubot/internal/utils"
	"github.com/darkepoch/mubot/internal/vision"
	"github.com/darkepoch/mubot/internal/vision/cv"
	"github.com/darkepoch/mubot/internal/vision/ocr"
	"golang.org/x/sync/errgroup"
)

var (
	buildID   string
	buildTime string
)

// wrapWithRecover wraps a function with panic recovery logic
func wrapWithRecover(logger *slog.Logger, f func() error) func() error {
	return func() error {
		defer func() {
			if r := recover(); r != nil {
				stackTrace := debug.Stack()
				errMsg := fmt.Sprintf("panic recovered: %v\nStacktrace: %s", r, stackTrace)
				logger.Error(errMsg)
				sloggger.FlushLog()
			}
		}()
		return f()
	}
}

func main() {
	_ = buildID
	_ = buildTime

	err := config.Load()
	if err != nil {
		utils.ShowDialog("Error loading configuration", err.Error())
		log.Fatalf("Error loading configuration: %s", err.Error())
		return
	}
	cfg := config.Current()

	logger, err := sloggger.NewLogger(cfg.Debug.Log, cfg.LogSaveDirectory, "")
	if err != nil {
		log.Fatalf("Error starting logger: %s", err.Error())
	}
	defer sloggger.FlushAndClose()

	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("fatal error detected, mubot will close with the following error: %v\n Stacktrace: %s", r, debug.Stack())
			logger.Error(err.Error())
			sloggger.FlushAndClose()
			utils.ShowDialog("mubot error :(", fmt.Sprintf("mubot will close due to an expected error, please check the latest log file for more info!\n %s", err.Error()))
		}
	}()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	g, ctx := errgroup.WithContext(ctx)

	setDPIAware()
	if runtime.GOOS == "windows" && !utils.HasAdminPermission() {
		logger.Warn("mubot is not running as administrator, input may not reach elevated game clients")
	}

	eventListener := event.NewListener(logger)

	matcher, references, err := newMatchers(cfg, logger)
	if err != nil {
		utils.ShowDialog("Error loading reference images", err.Error())
		logger.Error("Error loading reference images", slog.Any("error", err))
		return
	}

	catalog, err := task.NewCatalog(cfg.Tasks)
	if err != nil {
		logger.Error("Invalid task list", slog.Any("error", err))
		return
	}
	policy, err := task.NewDefaultPolicy(catalog, cfg.DefaultTasks.ByIndex, cfg.DefaultTasks.Fallback)
	if err != nil {
		logger.Error("Invalid default task mapping", slog.Any("error", err))
		return
	}

	registry := client.NewRegistry(client.NewEnumerator(), cfg.ClientWindowTitles, logger)
	if cfg.ArrangeWindows && registry.Supported() {
		registry.Scan()
		if err = registry.Arrange(); err != nil {
			logger.Warn("Could not arrange client windows", slog.Any("error", err))
		}
	}

	processes := client.NewProcessManager(client.ProcessConfig{
		Enabled:      cfg.ProcessManagement.Enabled,
		GamePath:     cfg.ProcessManagement.GamePath,
		GameArgs:     cfg.ProcessManagement.GameArgs,
		MaxProcesses: cfg.ProcessManagement.MaxClientProcesses,
	}, logger)

	var sink input.Sink = input.Null{Logger: logger}
	if !cfg.Debug.NullCapture {
		sink = robot.New()
	}

	var healthReader vision.HealthReader
	if cfg.OCR.Enabled {
		r := cfg.OCR.HealthRegion
		healthReader = ocr.NewHealthReader(image.Rect(r[0], r[1], r[0]+r[2], r[1]+r[3]), logger)
	}

	engine := behavior.NewEngine(behavior.Deps{
		Finder:     matcher,
		Classifier: screen.NewClassifier(matcher, logger),
		Clients:    registry,
		Input:      sink,
		Policy:     policy,
		Health:     healthReader,
		Settings: behavior.Settings{
			ClickDelayMin:    cfg.ClickDelayMin,
			ClickDelayMax:    cfg.ClickDelayMax,
			LowHealthPercent: cfg.OCR.LowHealthPercent,
		},
	}, logger)

	scheduler := bot.NewScheduler(registry, engine, bot.Settings{
		CycleDelayMin:  cfg.CycleDelayMin,
		CycleDelayMax:  cfg.CycleDelayMax,
		ErrorThreshold: cfg.ErrorThreshold,
	}, logger)

	if cfg.Debug.SaveFrames {
		eventListener.Register(frameSaver(matcher, cfg.ScreenshotsDirectory, logger))
	}

	srv, err := server.New(logger, server.Deps{
		Controller: scheduler,
		Clients:    registry,
		Processes:  processes,
		References: references,
		Tasks:      catalog,
	})
	if err != nil {
		log.Fatalf("Error starting local server: %s", err.Error())
	}

	var ngrokTunnel *ngrokremote.Tunnel
	if cfg.Ngrok.Enabled {
		if cfg.Ngrok.Authtoken == "" && os.Getenv("NGROK_AUTHTOKEN") == "" {
			logger.Warn("ngrok enabled but no authtoken set; skipping tunnel start")
		} else {
			opts := ngrokremote.Options{
				LocalAddr:     ngrokremote.LocalAddr(cfg.Server.Port),
				Authtoken:     cfg.Ngrok.Authtoken,
				Region:        cfg.Ngrok.Region,
				Domain:        cfg.Ngrok.Domain,
				BasicAuthUser: cfg.Ngrok.BasicAuthUser,
				BasicAuthPass: cfg.Ngrok.BasicAuthPass,
			}
			tunnel, err := ngrokremote.Start(ctx, opts)
			if err != nil {
				logger.Error("ngrok tunnel failed to start", slog.Any("error", err))
			} else {
				logger.Info("ngrok tunnel established", slog.String("url", tunnel.URL()))
				if cfg.Ngrok.SendURL {
					go event.Send(event.NgrokTunnel(tunnel.URL()))
				}
			}
			ngrokTunnel = tunnel
		}
	}

	// Discord Bot initialization
	if cfg.Discord.Enabled {
		discordBot, err := discord.NewBot(
			cfg.Discord.Token,
			cfg.Discord.ChannelID,
			scheduler,
			registry,
			cfg.Discord.UseWebhook,
			cfg.Discord.WebhookURL,
		)
		if err != nil {
			logger.Error("Discord could not been initialized", slog.Any("error", err))
			return
		}

		eventListener.Register(discordBot.Handle)
		if !cfg.Discord.UseWebhook {
			g.Go(wrapWithRecover(logger, func() error {
				return discordBot.Start(ctx)
			}))
		}
	}

	// Telegram Bot initialization
	if cfg.Telegram.Enabled {
		telegramBot, err := telegram.NewBot(cfg.Telegram.Token, cfg.Telegram.ChatID, scheduler, logger)
		if err != nil {
			logger.Error("Telegram could not been initialized", slog.Any("error", err))
			return
		}

		eventListener.Register(telegramBot.Handle)
		g.Go(wrapWithRecover(logger, func() error {
			defer telegramBot.Close()
			return telegramBot.Start(ctx)
		}))
	}

	if processes.Enabled() {
		monitor := health.NewProcessMonitor(processes, time.Duration(cfg.ProcessManagement.MonitorInterval)*time.Second, logger)
		g.Go(wrapWithRecover(logger, func() error {
			return monitor.Run(ctx)
		}))
	}

	if cfg.Tray.Enabled {
		g.Go(wrapWithRecover(logger, func() error {
			defer cancel()
			runTray(ctx, scheduler, logger)
			return nil
		}))
	}

	g.Go(wrapWithRecover(logger, func() error {
		defer cancel()
		return srv.Listen(cfg.Server.Port)
	}))

	g.Go(wrapWithRecover(logger, func() error {
		defer cancel()
		return eventListener.Listen(ctx)
	}))

	if cfg.AutoStart {
		if err = scheduler.Start(); err != nil {
			logger.Error("Auto start failed", slog.Any("error", err))
		}
	}

	g.Go(wrapWithRecover(logger, func() error {
		<-ctx.Done()
		logger.Info("mubot shutting down...")
		cancel()
		if stopErr := scheduler.Stop(); stopErr != nil && !errors.Is(stopErr, bot.ErrNotRunning) {
			logger.Error("error stopping bot", slog.Any("error", stopErr))
		}
		processes.TerminateAll()
		err := srv.Stop()
		if err != nil {
			logger.Error("error stopping local server", slog.Any("error", err))
		}
		if ngrokTunnel != nil {
			if closeErr := ngrokTunnel.Close(); closeErr != nil {
				logger.Error("error stopping ngrok tunnel", slog.Any("error", closeErr))
			}
		}

		return err
	}))

	err = g.Wait()
	if err != nil {
		cancel()
		logger.Error("Error running mubot", slog.Any("error", err))
		return
	}

	sloggger.FlushAndClose()
}

// newMatchers returns the matcher driven by the bot worker and a second one,
// with its own frame cache, for reference captures requested over HTTP.
func newMatchers(cfg config.BotCfg, logger *slog.Logger) (*vision.Matcher, *vision.Matcher, error) {
	seeded, err := config.SeedReferenceImages(cfg.ReferenceImagesDir)
	if err != nil {
		return nil, nil, err
	}
	if seeded {
		logger.Info("Reference images copied from template", slog.String("dir", cfg.ReferenceImagesDir))
	}

	store, err := vision.LoadStore(cfg.ReferenceImagesDir, cfg.TemplateScale, logger)
	if err != nil {
		return nil, nil, err
	}

	var source vision.ScreenSource = vision.NullSource{}
	if !cfg.Debug.NullCapture {
		source = robot.New()
	}

	var correlator vision.Correlator = vision.NCC{}
	if cfg.MatchBackend == config.MatchOpenCV {
		correlator = cv.New()
	}

	worker := vision.NewMatcher(store, source, correlator, cfg.ConfidenceThreshold, logger)
	references := vision.NewMatcher(store, source, nil, cfg.ConfidenceThreshold, logger)

	return worker, references, nil
}

// frameSaver stores the last frame when a cycle fails, for debugging.
func frameSaver(matcher *vision.Matcher, dir string, logger *slog.Logger) event.Handler {
	return func(_ context.Context, e event.Event) error {
		if _, ok := e.(event.CycleFailedEvent); !ok {
			return nil
		}
		path, err := matcher.SaveFrame(dir, "cycle_failed")
		if err != nil {
			return fmt.Errorf("error saving frame: %w", err)
		}
		logger.Debug("Frame saved", slog.String("path", path))
		return nil
	}
}
