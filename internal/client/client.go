// Package client assembles the game client: the main loop, the hook layer,
// the content book queries and the telemetry collector, driven by a tick
// timer and a hot-reloaded config file.
package client

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/msageha/contentbook/internal/activity"
	"github.com/msageha/contentbook/internal/container"
	"github.com/msageha/contentbook/internal/control"
	"github.com/msageha/contentbook/internal/crowdsource"
	"github.com/msageha/contentbook/internal/events"
	"github.com/msageha/contentbook/internal/hooks"
	"github.com/msageha/contentbook/internal/lock"
	"github.com/msageha/contentbook/internal/logging"
	"github.com/msageha/contentbook/internal/mainloop"
	"github.com/msageha/contentbook/internal/model"
	"github.com/msageha/contentbook/internal/notify"
	"github.com/msageha/contentbook/internal/query"
	"github.com/msageha/contentbook/internal/sim"
)

// LockFileName is the lock taken in the data directory while a client runs.
const LockFileName = "client.lock"

// Options configures a client beyond its config file.
type Options struct {
	// Dir is the data directory. When set, the client holds a lock in it.
	Dir string
	// ConfigPath, when set, is watched and reloaded on change.
	ConfigPath string
	// Book is the content book fixture served by the simulated server.
	Book sim.Fixture
	// BookOptions tunes the simulated server. HotbarSlot and OnClose are set
	// by the client.
	BookOptions sim.Options
	// LogOutput receives the log; stderr when nil.
	LogOutput io.Writer
	// ControlSocket, when set, is where the client answers CLI requests.
	ControlSocket string
}

// Client is one running game client.
type Client struct {
	opts   Options
	logger *zap.Logger
	level  zap.AtomicLevel

	mu  sync.RWMutex
	cfg model.Config

	loop      *mainloop.Loop
	bus       *events.Bus
	hooks     *hooks.Client
	book      *sim.Book
	runner    *query.Runner
	center    *notify.Center
	queries   *activity.Queries
	service   *activity.Service
	lootrun   *crowdsource.Lootrun
	collector *crowdsource.Collector
	journal   *events.Journal
	fileLock  *lock.FileLock
	control   *control.Server

	cancel    context.CancelFunc
	loopDone  chan struct{}
	wg        sync.WaitGroup
	stopTicks func()
	detach    []func()

	started  bool
	running  bool
	shutdown sync.Once
}

// New builds a client. Nothing runs until Start.
func New(cfg model.Config, opts Options) *Client {
	cfg.ApplyDefaults()
	logger, level := logging.New(cfg.Logging, opts.LogOutput)

	c := &Client{
		opts:     opts,
		logger:   logger,
		level:    level,
		cfg:      cfg,
		loopDone: make(chan struct{}),
	}

	c.loop = mainloop.New(logger.Named("loop"))
	c.bus = events.NewBus(256, logger.Named("events"))
	c.hooks = hooks.New(c.bus, logger.Named("hooks"))

	bookOpts := opts.BookOptions
	bookOpts.HotbarSlot = cfg.ContentBook.HotbarSlot
	bookOpts.OnClose = func(id int) {
		c.loop.Post(func() { c.containerClosed(id) })
	}
	c.book = sim.New(opts.Book, bookOpts)

	transport := &screenTransport{inner: c.book, loop: c.loop, hooks: c.hooks}
	c.runner = query.NewRunner(c.loop, transport, query.RunnerOptions{
		StepTimeout: cfg.Query.StepTimeout(),
		MaxSteps:    cfg.Query.MaxSteps,
		Logger:      logger.Named("query"),
	})
	c.center = notify.NewCenter(notify.Options{
		Enabled: cfg.Notify.Enabled,
		Desktop: desktopSender(cfg.Notify),
		Logger:  logger.Named("notify"),
	})
	c.queries = activity.NewQueries(c.runner, c.center, activity.BookConfigFrom(cfg.ContentBook), logger.Named("contentbook"))
	c.service = activity.NewService(c.queries, c.loop.Done(), logger.Named("contentbook"))

	c.lootrun = &crowdsource.Lootrun{}
	c.collector = crowdsource.NewCollector(c.lootrun, collectorOptions(cfg.Telemetry, logger))
	return c
}

// containerClosed runs on the main loop when the server closes container id.
// Only a script clicking in that container is aborted.
func (c *Client) containerClosed(id int) {
	c.runner.Abort(id, container.ErrContainerClosed)
	if screen, open := c.hooks.Screen(); open && screen.ContainerID == id {
		c.hooks.SetScreen(nil)
	}
}

func desktopSender(cfg model.NotifyConfig) notify.DesktopSender {
	if !cfg.Desktop {
		return nil
	}
	return notify.Send
}

func collectorOptions(cfg model.TelemetryConfig, logger *zap.Logger) crowdsource.Options {
	return crowdsource.Options{
		Enabled:            cfg.Enabled,
		BatchSize:          cfg.BatchSize,
		FlushIntervalTicks: cfg.FlushIntervalTicks,
		Logger:             logger.Named("crowdsource"),
	}
}

// Start takes the directory lock, starts the main loop, the tick driver and
// the config watcher. It returns once the client is running.
func (c *Client) Start(ctx context.Context) error {
	if c.started {
		return errors.New("client already started")
	}
	c.started = true

	if c.opts.Dir != "" {
		c.fileLock = lock.NewFileLock(filepath.Join(c.opts.Dir, LockFileName))
		if err := c.fileLock.TryLock(); err != nil {
			return fmt.Errorf("client lock: %w", err)
		}
	}

	cfg := c.Config()
	if cfg.Logging.Journal != "" {
		path := cfg.Logging.Journal
		if !filepath.IsAbs(path) && c.opts.Dir != "" {
			path = filepath.Join(c.opts.Dir, path)
		}
		j, err := events.OpenJournal(path, 0, c.logger.Named("journal"))
		if err != nil {
			c.releaseLock()
			return err
		}
		j.EnableChecksum(true)
		c.journal = j
		c.detach = append(c.detach, j.Attach(c.bus,
			events.EventScreenOpened,
			events.EventScreenClosed,
			events.EventDisplayResized,
			events.EventLootrunBeaconSelected))
	}

	c.detach = append(c.detach,
		c.collector.Attach(c.bus),
	)

	ctx, c.cancel = context.WithCancel(ctx)
	c.running = true
	go func() {
		defer close(c.loopDone)
		if err := c.loop.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
			c.logger.Error("main loop stopped", zap.Error(err))
		}
	}()

	c.loop.Post(func() { c.hooks.SetOnServer(true) })
	c.stopTicks = c.loop.Every(cfg.Client.TickInterval(), c.hooks.Tick)

	if c.opts.ConfigPath != "" {
		c.wg.Add(1)
		go func() {
			defer c.wg.Done()
			err := model.WatchConfig(ctx, c.opts.ConfigPath, c.logger.Named("config"), c.ApplyConfig)
			if err != nil && !errors.Is(err, context.Canceled) {
				c.logger.Warn("config watcher stopped", zap.Error(err))
			}
		}()
	}

	if c.opts.ControlSocket != "" {
		c.control = control.NewServer(c.opts.ControlSocket, c.logger.Named("control"))
		c.registerControl(c.control)
		if err := c.control.Start(); err != nil {
			c.control = nil
			c.Shutdown()
			return err
		}
	}

	c.logger.Info("client started",
		zap.Int("hotbar_slot", cfg.ContentBook.HotbarSlot),
		zap.Duration("tick", cfg.Client.TickInterval()))
	return nil
}

// ApplyConfig takes a reloaded config into use. Query timeouts and the
// step ceiling keep their startup values.
func (c *Client) ApplyConfig(cfg model.Config) {
	cfg.ApplyDefaults()
	c.mu.Lock()
	c.cfg = cfg
	c.mu.Unlock()

	c.level.SetLevel(logging.ParseLevel(cfg.Logging.Level))
	c.center.SetEnabled(cfg.Notify.Enabled)
	c.center.SetDesktop(desktopSender(cfg.Notify))
	c.queries.SetConfig(activity.BookConfigFrom(cfg.ContentBook))
	c.collector.SetOptions(collectorOptions(cfg.Telemetry, c.logger))
	c.logger.Info("config reloaded", zap.String("log_level", cfg.Logging.Level))
}

func (c *Client) Config() model.Config {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.cfg
}

func (c *Client) Logger() *zap.Logger               { return c.logger }
func (c *Client) Service() *activity.Service        { return c.service }
func (c *Client) Book() *sim.Book                   { return c.book }
func (c *Client) Notifications() *notify.Center     { return c.center }
func (c *Client) Lootrun() *crowdsource.Lootrun     { return c.lootrun }
func (c *Client) Collector() *crowdsource.Collector { return c.collector }

// Do runs fn on the main loop and waits for it.
func (c *Client) Do(ctx context.Context, fn func(h *hooks.Client)) error {
	return c.loop.Call(ctx, func() { fn(c.hooks) })
}

// SelectBeacon reports that the player picked a lootrun beacon.
func (c *Client) SelectBeacon(color events.BeaconColor, task events.Position) {
	c.bus.Publish(events.EventLootrunBeaconSelected, events.LootrunBeaconSelected{Color: color, Task: task})
}

// Wait blocks until ctx is done, then shuts the client down.
func (c *Client) Wait(ctx context.Context) {
	select {
	case <-ctx.Done():
		c.logger.Info("shutdown requested", zap.Error(ctx.Err()))
	case <-c.loopDone:
	}
	c.Shutdown()
}

// Shutdown stops the client. It is idempotent.
func (c *Client) Shutdown() {
	c.shutdown.Do(func() {
		c.logger.Info("shutdown started")

		if c.control != nil {
			c.control.Stop()
		}
		if c.stopTicks != nil {
			c.stopTicks()
		}
		if c.cancel != nil {
			c.cancel()
		}
		c.loop.Stop()

		done := make(chan struct{})
		go func() {
			if c.running {
				<-c.loopDone
			}
			c.wg.Wait()
			close(done)
		}()

		timeout := c.Config().Client.ShutdownTimeout()
		select {
		case <-done:
		case <-time.After(timeout):
			c.logger.Warn("shutdown timed out, some work may be incomplete", zap.Duration("timeout", timeout))
		}

		for _, fn := range c.detach {
			fn()
		}
		c.bus.Close()
		c.collector.Flush()

		if c.journal != nil {
			if err := c.journal.Close(); err != nil {
				c.logger.Warn("close journal", zap.Error(err))
			}
		}
		c.releaseLock()
		c.logger.Info("client stopped")
		_ = c.logger.Sync()
	})
}

func (c *Client) releaseLock() {
	if c.fileLock == nil {
		return
	}
	if err := c.fileLock.Unlock(); err != nil {
		c.logger.Warn("release client lock", zap.Error(err))
	}
}
