package activity

import (
	"regexp"
	"sync"

	"go.uber.org/zap"

	"github.com/msageha/contentbook/internal/container"
	"github.com/msageha/contentbook/internal/model"
	"github.com/msageha/contentbook/internal/notify"
	"github.com/msageha/contentbook/internal/query"
	"github.com/msageha/contentbook/internal/styled"
)

const (
	ChangeViewSlot = 66
	ProgressSlot   = 68
	NextPageSlot   = 69

	// ActivitySlots is the number of leading slots that may hold activities.
	ActivitySlots = 54

	MaxFilters = 11
)

const (
	ScrollDownText  styled.Text = "§7Scroll Down"
	FilterItemTitle styled.Text = "§eFilter"
)

var activeFilterPattern = regexp.MustCompile(`^§f- §7(.*)$`)

// Executor runs query scripts; *query.Runner satisfies it.
type Executor interface {
	Execute(s *query.Script) bool
}

// Notifier shows progress and failures to the player; *notify.Center
// satisfies it.
type Notifier interface {
	Queue(text string, color notify.Color) string
	Edit(id, text string, color notify.Color) error
	SendError(text string)
}

// BookConfig holds the content book settings used when building scripts.
type BookConfig struct {
	HotbarSlot   int
	Title        styled.Text
	MaxFilters   int
	ResetFilters bool
}

func BookConfigFrom(cfg model.ContentBookConfig) BookConfig {
	return BookConfig{
		HotbarSlot:   cfg.HotbarSlot,
		Title:        styled.Text(cfg.Title),
		MaxFilters:   cfg.MaxFilters,
		ResetFilters: cfg.ResetFilters,
	}
}

// Queries builds and submits content book scripts.
type Queries struct {
	exec     Executor
	notifier Notifier
	logger   *zap.Logger

	mu  sync.RWMutex
	cfg BookConfig
}

func NewQueries(exec Executor, notifier Notifier, cfg BookConfig, logger *zap.Logger) *Queries {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.MaxFilters <= 0 {
		cfg.MaxFilters = MaxFilters
	}
	return &Queries{exec: exec, notifier: notifier, logger: logger, cfg: cfg}
}

// SetConfig applies to scripts built afterwards.
func (q *Queries) SetConfig(cfg BookConfig) {
	if cfg.MaxFilters <= 0 {
		cfg.MaxFilters = MaxFilters
	}
	q.mu.Lock()
	q.cfg = cfg
	q.mu.Unlock()
}

func (q *Queries) config() BookConfig {
	q.mu.RLock()
	defer q.mu.RUnlock()
	return q.cfg
}

// ScanRequest describes one content book scan.
type ScanRequest struct {
	Type Type
	// OnResult receives every activity found and the progress lines; it is
	// called only when the whole scan succeeded.
	OnResult func(activities []Info, progress []styled.Text)
	// OnError, if set, receives the failure after it has been reported.
	OnError       func(error)
	ShowUpdates   bool
	FirstPageOnly bool
}

// filterState is the per-script bookkeeping for cycling the filter item.
type filterState struct {
	loops    int
	selected string
	recorded bool
}

func (f *filterState) reset() {
	f.loops = 0
	f.selected = ""
	f.recorded = false
}

// QueryContentBook opens the content book, selects the filter for req.Type,
// reads every page and hands the activities to req.OnResult.
func (q *Queries) QueryContentBook(req ScanRequest) bool {
	cfg := q.config()
	group := req.Type.GroupName()

	var activities []Info
	var progress []styled.Text
	var messageID string
	filter := &filterState{}

	s := query.NewBuilder("Content Book Query for "+req.Type.DisplayName()).
		OnError(func(err error) {
			q.logger.Warn("problem querying content book", zap.String("type", req.Type.String()), zap.Error(err))
			if req.ShowUpdates && messageID != "" && q.notifier != nil {
				_ = q.notifier.Edit(messageID, "Error loading "+group+" from content book", notify.ColorRed)
			}
			if req.OnError != nil {
				req.OnError(err)
			}
		}).
		PreExecute(func() {
			if req.ShowUpdates && q.notifier != nil {
				messageID = q.notifier.Queue("Loading "+group+" from content book...", notify.ColorYellow)
			}
		}).
		// Open content book
		Then(query.UseHotbarItem(cfg.HotbarSlot, cfg.Title)).
		// Save filter state, and set it correctly
		Execute(filter.reset).
		Repeat(selectFilter(filter, cfg.MaxFilters, req.Type.DisplayName()),
			query.ClickSlot(ChangeViewSlot).ExpectContainerTitle(cfg.Title)).
		// The first page arrived with the last filter click.
		Reprocess(func(c container.Snapshot) error {
			activities = appendPage(activities, c)
			// An empty progress slot still contributes its blank name line.
			it := c.Slot(ProgressSlot)
			progress = append(progress, container.ItemName(it))
			progress = append(progress, container.ItemLore(it)...)
			return nil
		}).
		Repeat(func(c container.Snapshot) (bool, error) {
			if req.FirstPageOnly {
				return false, nil
			}
			return query.ContainerHasSlot(c, NextPageSlot, container.KindGoldenShovel, ScrollDownText), nil
		}, query.ClickSlot(NextPageSlot).
			ExpectContainerTitle(cfg.Title).
			ProcessIncomingContainer(func(c container.Snapshot) error {
				activities = appendPage(activities, c)
				return nil
			})).
		// Restore filter to original value
		Execute(func() { filter.loops = 0 }).
		Repeat(restoreFilter(filter, cfg.MaxFilters, cfg.ResetFilters),
			query.ClickSlot(ChangeViewSlot).ExpectContainerTitle(cfg.Title)).
		Execute(func() {
			if req.OnResult != nil {
				req.OnResult(activities, progress)
			}
		}).
		Execute(func() {
			if req.ShowUpdates && messageID != "" && q.notifier != nil {
				_ = q.notifier.Edit(messageID, "Loaded "+group+" from content book", notify.ColorGreen)
			}
		}).
		Build()

	return q.exec.Execute(s)
}

// ToggleTracking finds the named activity in the content book and clicks it,
// which toggles tracking on the server. onDone, if set, receives nil on
// success or the failure.
func (q *Queries) ToggleTracking(name string, typ Type, onDone func(error)) bool {
	cfg := q.config()
	filter := &filterState{}
	finish := func(err error) {
		if onDone != nil {
			onDone(err)
		}
	}

	s := query.NewBuilder("Toggle Activity Tracking Query: "+name).
		OnError(func(err error) {
			q.logger.Warn("problem querying content book for tracking", zap.String("activity", name), zap.Error(err))
			if q.notifier != nil {
				q.notifier.SendError("Setting tracking in Content Book failed")
			}
			finish(err)
		}).
		Then(query.UseHotbarItem(cfg.HotbarSlot, cfg.Title)).
		Execute(filter.reset).
		Repeat(selectFilter(filter, cfg.MaxFilters, typ.DisplayName()),
			query.ClickSlot(ChangeViewSlot).ExpectContainerTitle(cfg.Title)).
		// Click the activity if it is on this page, otherwise turn the page.
		SearchAndAct(func(c container.Snapshot) (int, bool, error) {
			slot := findTrackedActivity(c, name, typ)
			return slot, slot >= 0, nil
		}, query.ClickMatchingSlot(NextPageSlot, container.KindGoldenShovel, ScrollDownText).
			ExpectContainerTitle(cfg.Title)).
		Execute(func() { filter.loops = 0 }).
		Repeat(restoreFilter(filter, cfg.MaxFilters, cfg.ResetFilters),
			query.ClickSlot(ChangeViewSlot).ExpectContainerTitle(cfg.Title)).
		Execute(func() { finish(nil) }).
		Build()

	return q.exec.Execute(s)
}

func selectFilter(f *filterState, maxFilters int, want string) query.Predicate {
	return func(c container.Snapshot) (bool, error) {
		f.loops++
		if f.loops > maxFilters {
			return false, query.Errorf(query.KindRunaway, "Filter setting has exceeded max loops")
		}
		active, ok := ActiveFilter(c.Slot(ChangeViewSlot))
		if !ok {
			return false, query.Errorf(query.KindProtocol, "Cannot determine active filter")
		}
		if !f.recorded {
			f.selected = active
			f.recorded = true
		}
		return active != want, nil
	}
}

func restoreFilter(f *filterState, maxFilters int, enabled bool) query.Predicate {
	return func(c container.Snapshot) (bool, error) {
		if !enabled || !f.recorded {
			return false, nil
		}
		f.loops++
		if f.loops > maxFilters {
			return false, query.Errorf(query.KindRunaway, "Filter setting has exceeded max loops")
		}
		active, ok := ActiveFilter(c.Slot(ChangeViewSlot))
		if !ok {
			return false, query.Errorf(query.KindProtocol, "Cannot determine active filter")
		}
		return active != f.selected, nil
	}
}

// ActiveFilter reads the selected filter name from the filter item.
func ActiveFilter(it container.Item) (string, bool) {
	if !container.ItemName(it).Equal(FilterItemTitle) {
		return "", false
	}
	for _, line := range container.ItemLore(it) {
		if m, ok := line.Match(activeFilterPattern); ok {
			return m[1], true
		}
	}
	return "", false
}

func appendPage(dst []Info, c container.Snapshot) []Info {
	for slot := 0; slot < ActivitySlots; slot++ {
		info, ok := ParseItem(c.Slot(slot))
		if !ok {
			continue
		}
		dst = append(dst, info)
	}
	return dst
}

func findTrackedActivity(c container.Snapshot, name string, typ Type) int {
	for slot := 0; slot < ActivitySlots; slot++ {
		info, ok := ParseItem(c.Slot(slot))
		if !ok {
			continue
		}
		if info.Type.MatchesTracking(typ) && info.Name == name {
			return slot
		}
	}
	return -1
}
