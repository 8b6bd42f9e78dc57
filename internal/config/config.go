package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/darkepoch/mubot/internal/task"
	cp "github.com/otiai10/copy"
	"gopkg.in/yaml.v3"
)

var (
	cfgMux  sync.RWMutex
	Bot     *BotCfg
	Version = "dev"
)

const (
	MatchOpenCV = "opencv"
	MatchNative = "native"
)

const (
	configFile   = "config/bot.yaml"
	templateFile = "config/template/bot.yaml"
	templateRefs = "config/template/reference_images"
)

type BotCfg struct {
	Debug struct {
		Log         bool `yaml:"log"`
		SaveFrames  bool `yaml:"saveFrames"`
		NullCapture bool `yaml:"nullCapture"`
	} `yaml:"debug"`
	LogSaveDirectory     string   `yaml:"logSaveDirectory"`
	ScreenshotsDirectory string   `yaml:"screenshotsDirectory"`
	ReferenceImagesDir   string   `yaml:"referenceImagesDir"`
	ClientWindowTitles   []string `yaml:"clientWindowTitles"`
	ConfidenceThreshold  float64  `yaml:"confidenceThreshold"`
	TemplateScale        float64  `yaml:"templateScale"`
	MatchBackend         string   `yaml:"matchBackend"` // opencv or native
	ClickDelayMin        float64  `yaml:"clickDelayMin"`
	ClickDelayMax        float64  `yaml:"clickDelayMax"`
	CycleDelayMin        float64  `yaml:"cycleDelayMin"`
	CycleDelayMax        float64  `yaml:"cycleDelayMax"`
	ErrorThreshold       int      `yaml:"errorThreshold"`
	ArrangeWindows       bool     `yaml:"arrangeWindows"`
	AutoStart            bool     `yaml:"autoStart"`
	ProcessManagement    struct {
		Enabled            bool     `yaml:"enabled"`
		MaxClientProcesses int      `yaml:"maxClientProcesses"`
		GamePath           string   `yaml:"gamePath"`
		GameArgs           []string `yaml:"gameArgs"`
		MonitorInterval    int      `yaml:"monitorInterval"` // seconds
	} `yaml:"processManagement"`
	OCR struct {
		Enabled          bool   `yaml:"enabled"`
		HealthRegion     [4]int `yaml:"healthRegion"` // x, y, width, height
		LowHealthPercent int    `yaml:"lowHealthPercent"`
	} `yaml:"ocr"`
	Tasks        []task.Descriptor `yaml:"tasks"`
	DefaultTasks struct {
		ByIndex  []string `yaml:"byIndex"`
		Fallback string   `yaml:"fallback"`
	} `yaml:"defaultTasks"`
	Server struct {
		Port int `yaml:"port"`
	} `yaml:"server"`
	Tray struct {
		Enabled bool `yaml:"enabled"`
	} `yaml:"tray"`
	Discord struct {
		Enabled              bool     `yaml:"enabled"`
		EnableStatusMessages bool     `yaml:"enableStatusMessages"`
		EnableErrorMessages  bool     `yaml:"enableErrorMessages"`
		EnableTaskMessages   bool     `yaml:"enableTaskMessages"`
		BotAdmins            []string `yaml:"botAdmins"`
		ChannelID            string   `yaml:"channelId"`
		Token                string   `yaml:"token"`
		UseWebhook           bool     `yaml:"useWebhook"`
		WebhookURL           string   `yaml:"webhookUrl"`
	} `yaml:"discord"`
	Telegram struct {
		Enabled bool   `yaml:"enabled"`
		ChatID  int64  `yaml:"chatId"`
		Token   string `yaml:"token"`
	} `yaml:"telegram"`
	Ngrok struct {
		Enabled       bool   `yaml:"enabled"`
		SendURL       bool   `yaml:"sendUrl"`
		Authtoken     string `yaml:"authtoken"`
		Region        string `yaml:"region"`
		Domain        string `yaml:"domain"`
		BasicAuthUser string `yaml:"basicAuthUser"`
		BasicAuthPass string `yaml:"basicAuthPass"`
	} `yaml:"ngrok"`
}

// Default returns a configuration holding the stock values.
func Default() BotCfg {
	cfg := BotCfg{}
	applyDefaults(&cfg)
	return cfg
}

func applyDefaults(cfg *BotCfg) {
	if cfg.LogSaveDirectory == "" {
		cfg.LogSaveDirectory = "logs"
	}
	if cfg.ScreenshotsDirectory == "" {
		cfg.ScreenshotsDirectory = "screenshots"
	}
	if cfg.ReferenceImagesDir == "" {
		cfg.ReferenceImagesDir = "reference_images"
	}
	if cfg.ClientWindowTitles == nil {
		cfg.ClientWindowTitles = []string{"game", "LDPlayer"}
	}
	if cfg.ConfidenceThreshold == 0 {
		cfg.ConfidenceThreshold = 0.7
	}
	if cfg.TemplateScale == 0 {
		cfg.TemplateScale = 1
	}
	if cfg.MatchBackend == "" {
		cfg.MatchBackend = MatchOpenCV
	}
	if cfg.ClickDelayMin == 0 && cfg.ClickDelayMax == 0 {
		cfg.ClickDelayMin, cfg.ClickDelayMax = 0.2, 0.5
	}
	if cfg.CycleDelayMin == 0 && cfg.CycleDelayMax == 0 {
		cfg.CycleDelayMin, cfg.CycleDelayMax = 1.0, 3.0
	}
	if cfg.ErrorThreshold == 0 {
		cfg.ErrorThreshold = 5
	}
	if cfg.ProcessManagement.MaxClientProcesses == 0 {
		cfg.ProcessManagement.MaxClientProcesses = 2
	}
	if cfg.ProcessManagement.MonitorInterval == 0 {
		cfg.ProcessManagement.MonitorInterval = 10
	}
	if cfg.OCR.LowHealthPercent == 0 {
		cfg.OCR.LowHealthPercent = 35
	}
	if cfg.DefaultTasks.ByIndex == nil {
		cfg.DefaultTasks.ByIndex = []string{string(task.ResourceGathering), string(task.Combat)}
	}
	if cfg.DefaultTasks.Fallback == "" {
		cfg.DefaultTasks.Fallback = string(task.InventoryManagement)
	}
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 8087
	}
}

// Validate enforces the value ranges the bot relies on.
func (c *BotCfg) Validate() error {
	if len(c.ClientWindowTitles) == 0 {
		return errors.New("clientWindowTitles must be a non-empty list")
	}
	for _, t := range c.ClientWindowTitles {
		if strings.TrimSpace(t) == "" {
			return errors.New("clientWindowTitles must not contain empty titles")
		}
	}
	if c.ConfidenceThreshold < 0 || c.ConfidenceThreshold > 1 {
		return fmt.Errorf("confidenceThreshold must be between 0 and 1, got %v", c.ConfidenceThreshold)
	}
	if c.TemplateScale <= 0 {
		return fmt.Errorf("templateScale must be positive, got %v", c.TemplateScale)
	}
	if c.MatchBackend != MatchOpenCV && c.MatchBackend != MatchNative {
		return fmt.Errorf("matchBackend must be %q or %q, got %q", MatchOpenCV, MatchNative, c.MatchBackend)
	}
	if err := validateDelay("clickDelay", c.ClickDelayMin, c.ClickDelayMax); err != nil {
		return err
	}
	if err := validateDelay("cycleDelay", c.CycleDelayMin, c.CycleDelayMax); err != nil {
		return err
	}
	if c.ErrorThreshold < 1 {
		return fmt.Errorf("errorThreshold must be an integer >= 1, got %d", c.ErrorThreshold)
	}
	if c.ProcessManagement.Enabled && c.ProcessManagement.MaxClientProcesses < 1 {
		return errors.New("processManagement.maxClientProcesses must be >= 1")
	}
	if c.OCR.Enabled && (c.OCR.HealthRegion[2] <= 0 || c.OCR.HealthRegion[3] <= 0) {
		return errors.New("ocr.healthRegion must have a positive width and height")
	}
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port out of range: %d", c.Server.Port)
	}
	if _, err := task.NewCatalog(c.Tasks); err != nil {
		return fmt.Errorf("tasks: %w", err)
	}

	return nil
}

func validateDelay(name string, lo, hi float64) error {
	if lo < 0 || hi < 0 {
		return fmt.Errorf("%sMin and %sMax must not be negative", name, name)
	}
	if lo > hi {
		return fmt.Errorf("%sMin must be <= %sMax", name, name)
	}
	return nil
}

// Load reads config/bot.yaml, creating it from the template when missing, and
// publishes the result in Bot.
func Load() error {
	cfgMux.Lock()
	defer cfgMux.Unlock()

	_, err := os.Getwd()
	if err != nil {
		return fmt.Errorf("error getting current working directory: %w", err)
	}

	path := getAbsPath(configFile)
	if _, err = os.Stat(path); os.IsNotExist(err) {
		if err = CreateFromTemplate(); err != nil {
			return err
		}
	}

	cfg, err := LoadFrom(path)
	if err != nil {
		return err
	}
	Bot = cfg

	return nil
}

// LoadFrom decodes, defaults and validates a config file.
func LoadFrom(path string) (*BotCfg, error) {
	r, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("error loading %s: %w", filepath.Base(path), err)
	}
	defer r.Close()

	cfg := &BotCfg{}
	d := yaml.NewDecoder(r)
	if err = d.Decode(cfg); err != nil {
		return nil, fmt.Errorf("error reading config %s: %w", path, err)
	}
	applyDefaults(cfg)
	sanitizeDiscordConfig(cfg)

	baseDir := filepath.Dir(filepath.Dir(path))
	cfg.LogSaveDirectory = absFrom(baseDir, cfg.LogSaveDirectory)
	cfg.ScreenshotsDirectory = absFrom(baseDir, cfg.ScreenshotsDirectory)
	cfg.ReferenceImagesDir = absFrom(baseDir, cfg.ReferenceImagesDir)

	if err = cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config %s: %w", path, err)
	}

	return cfg, nil
}

// Current returns a copy of the loaded config.
func Current() BotCfg {
	cfgMux.RLock()
	defer cfgMux.RUnlock()
	if Bot == nil {
		return Default()
	}
	return *Bot
}

func sanitizeDiscordConfig(cfg *BotCfg) {
	if !cfg.Discord.Enabled {
		return
	}
	useWebhook := cfg.Discord.UseWebhook
	webhookURL := strings.TrimSpace(cfg.Discord.WebhookURL)
	token := strings.TrimSpace(cfg.Discord.Token)
	channelID := strings.TrimSpace(cfg.Discord.ChannelID)

	if (useWebhook && webhookURL == "") || (!useWebhook && (token == "" || channelID == "")) {
		cfg.Discord.Enabled = false
	}
}

// CreateFromTemplate seeds config/bot.yaml from the bundled template.
func CreateFromTemplate() error {
	src := getAbsPath(templateFile)
	if _, err := os.Stat(src); os.IsNotExist(err) {
		return fmt.Errorf("config template not found at %s", src)
	}

	if err := cp.Copy(src, getAbsPath(configFile)); err != nil {
		return fmt.Errorf("error copying template: %w", err)
	}

	return nil
}

// SeedReferenceImages fills an empty reference image directory with the
// bundled template images. Existing images are never overwritten.
func SeedReferenceImages(dir string) (bool, error) {
	entries, err := os.ReadDir(dir)
	if err == nil && len(entries) > 0 {
		return false, nil
	}

	src := getAbsPath(templateRefs)
	if _, err = os.Stat(src); os.IsNotExist(err) {
		return false, nil
	}

	err = cp.Copy(src, dir, cp.Options{
		OnDirExists: func(_, _ string) cp.DirExistsAction { return cp.Merge },
		Skip: func(_ os.FileInfo, _, dest string) (bool, error) {
			_, statErr := os.Stat(dest)
			return statErr == nil, nil
		},
	})
	if err != nil {
		return false, fmt.Errorf("error copying reference images: %w", err)
	}

	return true, nil
}

// ValidateAndSaveConfig persists a config after validation and reloads it.
func ValidateAndSaveConfig(config BotCfg) error {
	applyDefaults(&config)
	sanitizeDiscordConfig(&config)
	if err := config.Validate(); err != nil {
		return err
	}

	text, err := yaml.Marshal(config)
	if err != nil {
		return fmt.Errorf("error parsing bot config: %w", err)
	}

	err = os.WriteFile(getAbsPath(configFile), text, 0644)
	if err != nil {
		return fmt.Errorf("error writing bot config: %w", err)
	}

	return Load()
}

func getAbsPath(relPath string) string {
	cwd, err := os.Getwd()
	if err != nil {
		//Error should be checked in the Load function before any calls
		return relPath
	}
	return filepath.Join(cwd, relPath)
}

func absFrom(base, p string) string {
	if p == "" || filepath.IsAbs(p) {
		return p
	}
	return filepath.Join(base, p)
}
