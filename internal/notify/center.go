// Package notify keeps the on-screen status messages shown while the client
// works in the background, and can mirror them as desktop notifications.
package notify

import (
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/msageha/contentbook/internal/styled"
)

// Color is the styling code a message is shown with.
type Color string

const (
	ColorYellow Color = "§e"
	ColorGreen  Color = "§a"
	ColorRed    Color = "§c"
	ColorWhite  Color = "§f"
)

// Message is one on-screen status line. Edits replace its text in place.
type Message struct {
	ID      string
	Text    string
	Color   Color
	Created time.Time
	Updated time.Time
}

// Styled returns the message text with its colour code.
func (m Message) Styled() styled.Text {
	return styled.Text(string(m.Color) + m.Text)
}

// DesktopSender delivers a desktop notification.
type DesktopSender func(title, message string) error

const desktopTitle = "Content Book"

// Center stores messages and mirrors them to the desktop when enabled.
// It is safe for concurrent use.
type Center struct {
	mu       sync.Mutex
	messages []*Message
	byID     map[string]*Message
	limit    int

	enabled bool
	desktop DesktopSender
	logger  *zap.Logger
	now     func() time.Time
}

type Options struct {
	Enabled bool
	// Desktop, when non-nil, receives every queued, edited or error message.
	Desktop DesktopSender
	// Limit caps the number of retained messages; the oldest are dropped.
	Limit  int
	Logger *zap.Logger
}

func NewCenter(opts Options) *Center {
	if opts.Limit <= 0 {
		opts.Limit = 50
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	return &Center{
		byID:    make(map[string]*Message),
		limit:   opts.Limit,
		enabled: opts.Enabled,
		desktop: opts.Desktop,
		logger:  opts.Logger,
		now:     time.Now,
	}
}

// SetEnabled switches message display on or off. Errors are always kept.
func (c *Center) SetEnabled(enabled bool) {
	c.mu.Lock()
	c.enabled = enabled
	c.mu.Unlock()
}

// SetDesktop replaces the desktop sender; nil disables mirroring.
func (c *Center) SetDesktop(d DesktopSender) {
	c.mu.Lock()
	c.desktop = d
	c.mu.Unlock()
}

// Queue adds a message and returns its ID. When disabled it returns "".
func (c *Center) Queue(text string, color Color) string {
	c.mu.Lock()
	if !c.enabled {
		c.mu.Unlock()
		return ""
	}
	now := c.now()
	m := &Message{ID: uuid.NewString(), Text: text, Color: color, Created: now, Updated: now}
	c.add(m)
	desktop := c.desktop
	c.mu.Unlock()

	c.logger.Info("notification", zap.String("id", m.ID), zap.String("text", text))
	c.mirror(desktop, text)
	return m.ID
}

// Edit replaces the text of a queued message.
func (c *Center) Edit(id, text string, color Color) error {
	c.mu.Lock()
	m, ok := c.byID[id]
	if !ok {
		c.mu.Unlock()
		return fmt.Errorf("notification %q not found", id)
	}
	m.Text = text
	m.Color = color
	m.Updated = c.now()
	desktop := c.desktop
	c.mu.Unlock()

	c.logger.Info("notification updated", zap.String("id", id), zap.String("text", text))
	c.mirror(desktop, text)
	return nil
}

// SendError posts an error message regardless of the enabled setting.
func (c *Center) SendError(text string) {
	c.mu.Lock()
	now := c.now()
	m := &Message{ID: uuid.NewString(), Text: text, Color: ColorRed, Created: now, Updated: now}
	c.add(m)
	desktop := c.desktop
	c.mu.Unlock()

	c.logger.Warn("error notification", zap.String("text", text))
	c.mirror(desktop, text)
}

// Messages returns copies of the retained messages, oldest first.
func (c *Center) Messages() []Message {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]Message, len(c.messages))
	for i, m := range c.messages {
		out[i] = *m
	}
	return out
}

func (c *Center) add(m *Message) {
	c.messages = append(c.messages, m)
	c.byID[m.ID] = m
	for len(c.messages) > c.limit {
		delete(c.byID, c.messages[0].ID)
		c.messages = c.messages[1:]
	}
}

func (c *Center) mirror(desktop DesktopSender, text string) {
	if desktop == nil {
		return
	}
	if err := desktop(desktopTitle, text); err != nil {
		c.logger.Debug("desktop notification failed", zap.Error(err))
	}
}
