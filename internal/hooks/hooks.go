// Package hooks is the game client's lifecycle layer. The client calls into
// it when a screen changes, on every tick and when the window is resized, and
// it publishes the matching events.
//
// Events come in two flavours. Post events are only published while the
// player is on the game server; post-always events are published regardless.
// All methods must be called from the main loop.
package hooks

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/msageha/contentbook/internal/events"
)

// Publisher is the part of the event bus the hooks need.
type Publisher interface {
	Publish(eventType events.EventType, payload any)
}

// PreOpenListener runs before a screen opens and returns true to cancel it.
type PreOpenListener func(next events.Screen) (cancel bool)

type Client struct {
	pub    Publisher
	logger *zap.Logger

	onServer bool
	screen   *events.Screen
	ticks    uint64
	width    int
	height   int

	nextID  int
	preOpen map[int]PreOpenListener
	order   []int
}

func New(pub Publisher, logger *zap.Logger) *Client {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Client{pub: pub, logger: logger, preOpen: make(map[int]PreOpenListener)}
}

// SetOnServer records whether the player is connected to the game server.
func (c *Client) SetOnServer(on bool) {
	c.onServer = on
}

func (c *Client) OnServer() bool {
	return c.onServer
}

// OnPreOpen registers fn and returns a function removing it. Listeners run
// in registration order; the first to cancel stops the rest.
func (c *Client) OnPreOpen(fn PreOpenListener) func() {
	c.nextID++
	id := c.nextID
	c.preOpen[id] = fn
	c.order = append(c.order, id)
	return func() {
		delete(c.preOpen, id)
		for i, v := range c.order {
			if v == id {
				c.order = append(c.order[:i:i], c.order[i+1:]...)
				break
			}
		}
	}
}

// SetScreen shows next, or closes the current screen when next is nil. It
// reports false when a pre-open listener cancelled the change.
func (c *Client) SetScreen(next *events.Screen) bool {
	old := c.screen

	if next != nil && c.cancelled(*next) {
		c.logger.Debug("screen open cancelled", zap.String("title", next.Title.String()))
		return false
	}

	if next == nil {
		c.screen = nil
		if old != nil {
			c.post(events.EventScreenClosed, events.ScreenClosed{Screen: *old})
		}
		return true
	}

	s := *next
	c.screen = &s
	c.post(events.EventScreenOpened, events.ScreenOpened{Screen: s})
	return true
}

func (c *Client) cancelled(next events.Screen) bool {
	for _, id := range c.order {
		fn := c.preOpen[id]
		cancel, err := c.runPreOpen(fn, next)
		if err != nil {
			c.logger.Error("pre-open listener failed", zap.Error(err))
			continue
		}
		if cancel {
			return true
		}
	}
	return false
}

func (c *Client) runPreOpen(fn PreOpenListener, next events.Screen) (cancel bool, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("pre-open listener panicked: %v", r)
		}
	}()
	return fn(next), nil
}

// Screen returns the screen being shown.
func (c *Client) Screen() (events.Screen, bool) {
	if c.screen == nil {
		return events.Screen{}, false
	}
	return *c.screen, true
}

// Tick advances the client by one tick.
func (c *Client) Tick() {
	c.ticks++
	payload := events.Tick{Count: c.ticks}
	c.post(events.EventTick, payload)
	c.postAlways(events.EventTickAlways, payload)
}

func (c *Client) Ticks() uint64 {
	return c.ticks
}

// ResizeDisplay records the new window size.
func (c *Client) ResizeDisplay(width, height int) {
	c.width, c.height = width, height
	c.postAlways(events.EventDisplayResized, events.DisplayResized{Width: width, Height: height})
}

func (c *Client) Display() (width, height int) {
	return c.width, c.height
}

func (c *Client) post(t events.EventType, payload any) {
	if !c.onServer {
		return
	}
	c.pub.Publish(t, payload)
}

func (c *Client) postAlways(t events.EventType, payload any) {
	c.pub.Publish(t, payload)
}
