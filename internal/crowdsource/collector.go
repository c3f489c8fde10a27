package crowdsource

import (
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/msageha/contentbook/internal/events"
)

// DataTypeLootrunTaskLocations names the samples this collector produces.
const DataTypeLootrunTaskLocations = "lootrun_task_locations"

// TaskLocation is one sample: a task of a type was found at a position
// during a lootrun at a location.
type TaskLocation struct {
	Location Location        `yaml:"location"`
	TaskType TaskType        `yaml:"task_type"`
	Position events.Position `yaml:"position"`
}

// Batch is a sealed group of samples.
type Batch struct {
	ID       string         `yaml:"id"`
	DataType string         `yaml:"data_type"`
	SealedAt time.Time      `yaml:"sealed_at"`
	Samples  []TaskLocation `yaml:"samples"`
}

type Options struct {
	Enabled bool
	// BatchSize seals a batch once it holds this many samples.
	BatchSize int
	// FlushIntervalTicks seals a partial batch after this many ticks.
	FlushIntervalTicks int
	Logger             *zap.Logger
}

// Collector turns lootrun beacon selections into task location samples.
// Identical samples are collected once per collector.
type Collector struct {
	state LootrunState
	now   func() time.Time

	// mu guards the fields below. SetOptions swaps logger.
	mu         sync.Mutex
	logger     *zap.Logger
	enabled    bool
	batchSize  int
	flushTicks int
	ticks      int
	seen       map[TaskLocation]struct{}
	pending    []TaskLocation
	batches    []Batch
}

func NewCollector(state LootrunState, opts Options) *Collector {
	c := &Collector{
		state: state,
		now:   time.Now,
		seen:  make(map[TaskLocation]struct{}),
	}
	c.SetOptions(opts)
	return c
}

// SetOptions applies new settings. Samples already pending are kept.
func (c *Collector) SetOptions(opts Options) {
	if opts.BatchSize <= 0 {
		opts.BatchSize = 20
	}
	if opts.FlushIntervalTicks <= 0 {
		opts.FlushIntervalTicks = 1200
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.enabled = opts.Enabled
	c.batchSize = opts.BatchSize
	c.flushTicks = opts.FlushIntervalTicks
	c.logger = opts.Logger
}

// Attach subscribes the collector to bus and returns the unsubscribe function.
func (c *Collector) Attach(bus *events.Bus) func() {
	unsubBeacon := bus.Subscribe(events.EventLootrunBeaconSelected, func(e events.Event) {
		if ev, ok := e.Payload.(events.LootrunBeaconSelected); ok {
			c.OnBeaconSelected(ev)
		}
	})
	unsubTick := bus.Subscribe(events.EventTickAlways, func(events.Event) {
		c.OnTick()
	})
	return func() {
		unsubBeacon()
		unsubTick()
	}
}

// OnBeaconSelected collects a sample when the beacon marks a lootrun task and
// the current lootrun location and task type are known.
func (c *Collector) OnBeaconSelected(ev events.LootrunBeaconSelected) {
	if !ev.Color.UsedInLootruns() {
		return
	}
	task, ok := c.state.TaskType()
	if !ok {
		return
	}
	location, ok := c.state.Location()
	if !ok {
		return
	}
	c.collect(TaskLocation{Location: location, TaskType: task, Position: ev.Task})
}

func (c *Collector) collect(sample TaskLocation) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.enabled {
		return
	}
	if _, dup := c.seen[sample]; dup {
		return
	}
	c.seen[sample] = struct{}{}
	c.pending = append(c.pending, sample)
	c.logger.Debug("lootrun task location collected",
		zap.String("location", string(sample.Location)),
		zap.String("task_type", string(sample.TaskType)))

	if len(c.pending) >= c.batchSize {
		c.sealLocked()
	}
}

// OnTick seals the pending samples every FlushIntervalTicks ticks.
func (c *Collector) OnTick() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.ticks++
	if c.ticks < c.flushTicks {
		return
	}
	c.ticks = 0
	c.sealLocked()
}

// Flush seals whatever is pending.
func (c *Collector) Flush() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.sealLocked()
}

func (c *Collector) sealLocked() {
	if len(c.pending) == 0 {
		return
	}
	b := Batch{
		ID:       uuid.NewString(),
		DataType: DataTypeLootrunTaskLocations,
		SealedAt: c.now().UTC(),
		Samples:  c.pending,
	}
	c.pending = nil
	c.batches = append(c.batches, b)
	c.logger.Info("telemetry batch sealed", zap.String("batch_id", b.ID), zap.Int("samples", len(b.Samples)))
}

// Pending returns the number of samples not yet in a batch.
func (c *Collector) Pending() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.pending)
}

// Batches returns the sealed batches, oldest first.
func (c *Collector) Batches() []Batch {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]Batch(nil), c.batches...)
}
