package playback

import (
	"context"
	"sync"
	"time"

	"github.com/jonathan/lecture-pipeline/internal/types"
)

// DefaultTickInterval is how often the controller re-resolves the playback
// position while running.
const DefaultTickInterval = 100 * time.Millisecond

// EffectSink receives the visual effects the controller derives from the
// audio clock. Implementations are typically UI adapters and must tolerate
// being called from the controller's goroutine.
type EffectSink interface {
	// HighlightWord marks the word at the given track index as active
	HighlightWord(timing types.WordTiming, index int)
	// ScrollToBlock brings the given script block into view
	ScrollToBlock(blockID string)
	// ShowPage turns the document to the given page
	ShowPage(page int)
}

// PositionSource reports the current audio playback position in seconds.
type PositionSource interface {
	Position() float64
}

// Controller drives highlight, scroll and page-turn effects from the audio
// clock. Every tick performs a fresh index lookup, so the controller stays
// correct across seeks, stalls and clock jitter without tracking playback
// deltas itself.
type Controller struct {
	index    *WordTimingIndex
	pages    map[string]int
	sink     EffectSink
	clock    PositionSource
	interval time.Duration

	mu        sync.Mutex
	paused    bool
	lastIndex int
	lastBlock string
	lastPage  int
}

// ControllerOption customizes a Controller.
type ControllerOption func(*Controller)

// WithTickInterval overrides the lookup cadence.
func WithTickInterval(d time.Duration) ControllerOption {
	return func(c *Controller) {
		c.interval = d
	}
}

// NewController creates a controller over the given timing index. The script
// blocks supply the block-to-page mapping used for page turn effects.
func NewController(index *WordTimingIndex, blocks []types.ScriptBlock, sink EffectSink, clock PositionSource, opts ...ControllerOption) *Controller {
	pages := make(map[string]int, len(blocks))
	for _, b := range blocks {
		pages[b.ID] = b.PageReference
	}
	c := &Controller{
		index:     index,
		pages:     pages,
		sink:      sink,
		clock:     clock,
		interval:  DefaultTickInterval,
		lastIndex: -1,
		lastPage:  -1,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Run ticks until the context is canceled. It returns the context's error so
// callers can distinguish cancellation from deadline expiry.
func (c *Controller) Run(ctx context.Context) error {
	ticker := time.NewTicker(c.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			c.mu.Lock()
			paused := c.paused
			c.mu.Unlock()
			if paused {
				continue
			}
			c.apply(c.clock.Position())
		}
	}
}

// Seek resolves the given position immediately, independent of the tick loop
// and of the paused state, so a paused UI still lands on the right word.
func (c *Controller) Seek(position float64) {
	c.apply(position)
}

// Pause stops effect emission until Resume. The tick loop keeps running.
func (c *Controller) Pause() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.paused = true
}

// Resume re-enables effect emission.
func (c *Controller) Resume() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.paused = false
}

// apply performs one fresh lookup and emits only the effects whose target
// changed since the previous emission.
func (c *Controller) apply(position float64) {
	timing, i, err := c.index.Lookup(position)
	if err != nil {
		return
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if i != c.lastIndex {
		c.lastIndex = i
		c.sink.HighlightWord(timing, i)
	}
	if timing.ScriptBlockID != c.lastBlock {
		c.lastBlock = timing.ScriptBlockID
		c.sink.ScrollToBlock(timing.ScriptBlockID)
		if page, ok := c.pages[timing.ScriptBlockID]; ok && page != c.lastPage {
			c.lastPage = page
			c.sink.ShowPage(page)
		}
	}
}
