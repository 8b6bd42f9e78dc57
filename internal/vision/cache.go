package vision

import (
	"image"
	"sync"
	"time"
)

const frameTTL = 500 * time.Millisecond

// frameCache reuses a captured frame for up to ttl.
type frameCache struct {
	mu    sync.Mutex
	ttl   time.Duration
	now   func() time.Time
	frame image.Image
	at    time.Time
}

func newFrameCache(ttl time.Duration) *frameCache {
	return &frameCache{ttl: ttl, now: time.Now}
}

func (c *frameCache) get(source ScreenSource, force bool) (image.Image, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !force && c.frame != nil && c.now().Sub(c.at) < c.ttl {
		return c.frame, nil
	}

	img, err := source.Capture()
	if err != nil {
		c.frame = nil
		return nil, err
	}
	c.frame = img
	c.at = c.now()

	return img, nil
}

// last returns the most recent frame regardless of its age, or nil.
func (c *frameCache) last() image.Image {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.frame
}

func (c *frameCache) invalidate() {
	c.mu.Lock()
	c.frame = nil
	c.mu.Unlock()
}
