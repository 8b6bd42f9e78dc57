package vision

import (
	"errors"
	"fmt"
	"image"
	"log/slog"
	"time"
)

type findOptions struct {
	threshold float64
	frame     image.Image
}

type Option func(*findOptions)

// WithThreshold overrides the default confidence threshold for one lookup.
func WithThreshold(t float64) Option {
	return func(o *findOptions) {
		o.threshold = t
	}
}

// WithFrame matches against img instead of the cached capture.
func WithFrame(img image.Image) Option {
	return func(o *findOptions) {
		o.frame = img
	}
}

// Matcher finds named templates on the screen. A captured frame is reused for
// half a second unless Refresh is called.
type Matcher struct {
	store      *Store
	source     ScreenSource
	correlator Correlator
	threshold  float64
	cache      *frameCache
	logger     *slog.Logger
}

func NewMatcher(store *Store, source ScreenSource, correlator Correlator, threshold float64, logger *slog.Logger) *Matcher {
	if source == nil {
		source = NullSource{}
	}
	if correlator == nil {
		correlator = NCC{}
	}
	return &Matcher{
		store:      store,
		source:     source,
		correlator: correlator,
		threshold:  threshold,
		cache:      newFrameCache(frameTTL),
		logger:     logger,
	}
}

func (m *Matcher) Threshold() float64 {
	return m.threshold
}

func (m *Matcher) Has(name string) bool {
	_, found := m.store.Get(name)
	return found
}

// Frame returns the cached frame, capturing a new one when stale.
func (m *Matcher) Frame() (image.Image, error) {
	return m.cache.get(m.source, false)
}

// Refresh forces a new capture.
func (m *Matcher) Refresh() (image.Image, error) {
	return m.cache.get(m.source, true)
}

// Invalidate drops the cached frame so the next lookup captures again. Used
// after input that changes the screen.
func (m *Matcher) Invalidate() {
	m.cache.invalidate()
}

// FindOne returns the center of the best match of name if its score reaches
// the threshold.
func (m *Matcher) FindOne(name string, opts ...Option) (MatchResult, bool) {
	o, tmpl, scores, ok := m.correlate(name, opts)
	if !ok {
		return MatchResult{}, false
	}

	pos, score, found := scores.Best()
	if !found || score < o.threshold {
		return MatchResult{}, false
	}

	w, h := tmpl.Size()
	pos.X += w / 2
	pos.Y += h / 2

	return MatchResult{Position: pos, Score: score}, true
}

// FindAll returns up to limit non overlapping matches of name, in scan order.
func (m *Matcher) FindAll(name string, limit int, opts ...Option) []MatchResult {
	if limit <= 0 {
		return nil
	}
	o, tmpl, scores, ok := m.correlate(name, opts)
	if !ok {
		return nil
	}

	w, h := tmpl.Size()
	return scores.Peaks(o.threshold, w, h, limit)
}

// FindAny runs FindAll for every name against the same frame and returns the
// first limit results, preserving name order.
func (m *Matcher) FindAny(names []string, limit int, opts ...Option) []MatchResult {
	if limit <= 0 {
		return nil
	}
	frame, err := m.frameFor(opts)
	if err != nil {
		m.logger.Warn("Frame capture failed", slog.Any("error", err))
		return nil
	}

	opts = append(opts[:len(opts):len(opts)], WithFrame(frame))
	var all []MatchResult
	for _, n := range names {
		all = append(all, m.FindAll(n, limit, opts...)...)
		if len(all) >= limit {
			return all[:limit]
		}
	}
	return all
}

// SaveReference crops region out of a fresh frame and stores it as a reference
// image named name. An empty region saves the whole frame. The new image is
// only picked up on the next start. It captures, so callers outside the bot
// worker should use a Matcher of their own.
func (m *Matcher) SaveReference(name string, region image.Rectangle) (string, error) {
	if name == "" {
		return "", errors.New("reference name cannot be empty")
	}
	if m.store.Dir() == "" {
		return "", errors.New("reference images directory not configured")
	}

	frame, err := m.Refresh()
	if err != nil {
		return "", fmt.Errorf("error capturing reference image: %w", err)
	}

	img, err := crop(frame, region)
	if err != nil {
		return "", err
	}

	path, err := saveImage(m.store.Dir(), name, img)
	if err != nil {
		return "", err
	}
	m.logger.Info("Reference image captured", slog.String("name", name), slog.String("path", path))

	return path, nil
}

// SaveFrame writes the last captured frame to dir, used for debugging. It never
// captures, so it is safe to call from outside the goroutine driving the game.
func (m *Matcher) SaveFrame(dir, prefix string) (string, error) {
	frame := m.cache.last()
	if frame == nil {
		return "", errors.New("no captured frame to save")
	}
	return saveImage(dir, fmt.Sprintf("%s_%s", prefix, time.Now().Format("20060102_150405.000")), frame)
}

func (m *Matcher) frameFor(opts []Option) (image.Image, error) {
	o := findOptions{}
	for _, opt := range opts {
		opt(&o)
	}
	if o.frame != nil {
		return o.frame, nil
	}
	return m.Frame()
}

func (m *Matcher) correlate(name string, opts []Option) (findOptions, Template, ScoreMap, bool) {
	o := findOptions{threshold: m.threshold}
	for _, opt := range opts {
		opt(&o)
	}

	tmpl, found := m.store.Get(name)
	if !found {
		m.logger.Warn("Reference image not found", slog.String("template", name))
		return o, Template{}, ScoreMap{}, false
	}

	frame := o.frame
	if frame == nil {
		var err error
		frame, err = m.Frame()
		if err != nil {
			m.logger.Warn("Frame capture failed", slog.String("template", name), slog.Any("error", err))
			return o, tmpl, ScoreMap{}, false
		}
	}

	tw, th := tmpl.Size()
	fb := frame.Bounds()
	if tw > fb.Dx() || th > fb.Dy() {
		m.logger.Debug("Template larger than frame", slog.String("template", name))
		return o, tmpl, ScoreMap{}, false
	}

	scores, err := m.correlator.Correlate(frame, tmpl.Image)
	if err != nil {
		m.logger.Warn("Template matching failed", slog.String("template", name), slog.Any("error", err))
		return o, tmpl, ScoreMap{}, false
	}

	return o, tmpl, scores, true
}

type subImager interface {
	SubImage(r image.Rectangle) image.Image
}

func crop(img image.Image, region image.Rectangle) (image.Image, error) {
	if region.Empty() {
		return img, nil
	}
	region = region.Add(img.Bounds().Min).Intersect(img.Bounds())
	if region.Empty() {
		return nil, errors.New("region outside of the captured frame")
	}
	si, ok := img.(subImager)
	if !ok {
		return nil, fmt.Errorf("frame of type %T cannot be cropped", img)
	}
	return si.SubImage(region), nil
}
