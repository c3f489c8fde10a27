// Package sim is an in-process content book server. It answers container
// actions the way the game server does, so scripts can be driven without a
// game client.
package sim

import (
	"fmt"
	"os"
	"sync"
	"time"

	yamlv3 "gopkg.in/yaml.v3"

	"github.com/msageha/contentbook/internal/activity"
	"github.com/msageha/contentbook/internal/container"
	"github.com/msageha/contentbook/internal/styled"
)

// FilterAll is the filter that shows every activity.
const FilterAll = "All"

// Size is the number of slots in the content book container, including the
// player inventory rows.
const Size = 90

// Progress is the item shown in the progress slot.
type Progress struct {
	Name styled.Text   `yaml:"name"`
	Lore []styled.Text `yaml:"lore"`
}

// Fixture is the server-side state of a content book.
type Fixture struct {
	Title        styled.Text     `yaml:"title"`
	Filters      []string        `yaml:"filters"`
	ActiveFilter string          `yaml:"active_filter"`
	PageSize     int             `yaml:"page_size"`
	Progress     Progress        `yaml:"progress"`
	Activities   []activity.Info `yaml:"activities"`
}

// DefaultFilters is the in-game filter cycle.
func DefaultFilters() []string {
	filters := []string{FilterAll}
	for _, t := range activity.Types() {
		switch t {
		case activity.TypeStorylineQuest, activity.TypeSecretDiscovery,
			activity.TypeWorldDiscovery, activity.TypeTerritorialDiscovery:
			continue
		}
		filters = append(filters, t.DisplayName())
	}
	return filters
}

// LoadFixture reads a YAML fixture. Missing fields get game defaults.
func LoadFixture(path string) (Fixture, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Fixture{}, fmt.Errorf("read fixture: %w", err)
	}
	return ParseFixture(data)
}

func ParseFixture(data []byte) (Fixture, error) {
	var f Fixture
	if err := yamlv3.Unmarshal(data, &f); err != nil {
		return Fixture{}, fmt.Errorf("parse fixture: %w", err)
	}
	f.applyDefaults()
	return f, nil
}

func (f *Fixture) applyDefaults() {
	if f.Title == "" {
		f.Title = "§0§lContent Book"
	}
	if len(f.Filters) == 0 {
		f.Filters = DefaultFilters()
	}
	if f.ActiveFilter == "" {
		f.ActiveFilter = f.Filters[0]
	}
	if f.PageSize <= 0 || f.PageSize > activity.ActivitySlots {
		f.PageSize = activity.ActivitySlots
	}
}

// Options controls how the book behaves as a transport.
type Options struct {
	// HotbarSlot holding the book; other slots open nothing.
	HotbarSlot int
	// Latency delays every reply. Zero replies synchronously.
	Latency time.Duration
	// CloseAfter closes the book once this many actions were answered.
	CloseAfter int
	// DropAfter stops answering once this many actions were answered.
	DropAfter int
	// OnClose runs with the closed container's ID after the book closes on
	// its own or through Close.
	OnClose func(containerID int)
}

// Book implements container.Transport over a Fixture.
type Book struct {
	opts Options

	mu          sync.Mutex
	fixture     Fixture
	filterIdx   int
	page        int
	open        bool
	containerID int
	actions     []container.Action
}

var _ container.Transport = (*Book)(nil)

func New(f Fixture, opts Options) *Book {
	f.applyDefaults()
	f.Activities = append([]activity.Info(nil), f.Activities...)
	b := &Book{fixture: f, opts: opts}
	b.filterIdx = b.filterIndex(f.ActiveFilter)
	return b
}

// answer is the outcome of one action.
type answer struct {
	snap   container.Snapshot
	err    error
	send   bool
	closed bool
	id     int
}

// Do answers one action.
func (b *Book) Do(action container.Action, reply container.Reply) {
	a := b.handle(action)
	if a.closed && b.opts.OnClose != nil {
		b.opts.OnClose(a.id)
	}
	if !a.send {
		return
	}
	if b.opts.Latency > 0 {
		time.AfterFunc(b.opts.Latency, func() { reply(a.snap, a.err) })
		return
	}
	reply(a.snap, a.err)
}

func (b *Book) handle(action container.Action) answer {
	b.mu.Lock()
	defer b.mu.Unlock()

	answered := len(b.actions)
	b.actions = append(b.actions, action)

	if b.opts.DropAfter > 0 && answered >= b.opts.DropAfter {
		return answer{}
	}
	if b.opts.CloseAfter > 0 && answered >= b.opts.CloseAfter {
		was := b.open
		b.open = false
		return answer{err: container.ErrContainerClosed, send: true, closed: was, id: b.containerID}
	}

	switch action.Kind {
	case container.ActionUseHotbarItem:
		if action.Slot != b.opts.HotbarSlot {
			return answer{err: container.ErrNoContainer, send: true}
		}
		b.containerID++
		b.open = true
		b.page = 0
		return answer{snap: b.render(), send: true}

	case container.ActionClickSlot:
		if !b.open || action.ContainerID != b.containerID {
			return answer{err: container.ErrContainerClosed, send: true}
		}
		b.click(action.Slot)
		return answer{snap: b.render(), send: true}

	default:
		return answer{err: fmt.Errorf("unsupported action %s", action), send: true}
	}
}

func (b *Book) click(slot int) {
	switch {
	case slot == activity.ChangeViewSlot:
		b.filterIdx = (b.filterIdx + 1) % len(b.fixture.Filters)
		b.page = 0
	case slot == activity.NextPageSlot:
		if b.hasNextPage() {
			b.page++
		}
	case slot >= 0 && slot < activity.ActivitySlots:
		if idx, ok := b.activityAt(slot); ok {
			b.toggleTracking(idx)
		}
	}
}

// toggleTracking tracks activity idx, untracking any other. Clicking the
// tracked activity untracks it.
func (b *Book) toggleTracking(idx int) {
	was := b.fixture.Activities[idx].Tracked
	for i := range b.fixture.Activities {
		b.fixture.Activities[i].Tracked = false
	}
	b.fixture.Activities[idx].Tracked = !was
}

// visible returns the indexes of the activities the active filter shows.
func (b *Book) visible() []int {
	filter := b.fixture.Filters[b.filterIdx]
	var out []int
	for i, a := range b.fixture.Activities {
		if filter == FilterAll {
			out = append(out, i)
			continue
		}
		for _, t := range activity.Types() {
			if t.DisplayName() == filter && a.Type.MatchesTracking(t) {
				out = append(out, i)
				break
			}
		}
	}
	return out
}

func (b *Book) pageBounds(n int) (int, int) {
	start := b.page * b.fixture.PageSize
	if start > n {
		start = n
	}
	end := start + b.fixture.PageSize
	if end > n {
		end = n
	}
	return start, end
}

func (b *Book) hasNextPage() bool {
	return (b.page+1)*b.fixture.PageSize < len(b.visible())
}

func (b *Book) activityAt(slot int) (int, bool) {
	vis := b.visible()
	start, end := b.pageBounds(len(vis))
	if slot >= end-start {
		return 0, false
	}
	return vis[start+slot], true
}

func (b *Book) render() container.Snapshot {
	items := make([]container.Item, Size)
	for i := range items {
		items[i] = container.Air
	}

	vis := b.visible()
	start, end := b.pageBounds(len(vis))
	for slot, idx := range vis[start:end] {
		items[slot] = b.fixture.Activities[idx].Item()
	}

	items[activity.ChangeViewSlot] = b.filterItem()
	if p := b.fixture.Progress; !p.Name.IsEmpty() {
		items[activity.ProgressSlot] = container.Item{
			Kind: container.KindEmeraldBlock,
			Name: p.Name,
			Lore: append([]styled.Text(nil), p.Lore...),
		}
	}
	if b.hasNextPage() {
		items[activity.NextPageSlot] = container.Item{
			Kind: container.KindGoldenShovel,
			Name: activity.ScrollDownText,
		}
	}

	return container.Snapshot{ID: b.containerID, Title: b.fixture.Title, Items: items}
}

func (b *Book) filterItem() container.Item {
	lore := []styled.Text{"§7Click to change view", ""}
	for i, f := range b.fixture.Filters {
		if i == b.filterIdx {
			lore = append(lore, styled.Text("§f- §7"+f))
		} else {
			lore = append(lore, styled.Text("§7- §8"+f))
		}
	}
	return container.Item{Kind: container.KindPaper, Name: activity.FilterItemTitle, Lore: lore}
}

func (b *Book) filterIndex(name string) int {
	for i, f := range b.fixture.Filters {
		if f == name {
			return i
		}
	}
	return 0
}

// Close closes the book as if the player pressed escape.
func (b *Book) Close() {
	b.mu.Lock()
	was := b.open
	id := b.containerID
	b.open = false
	b.mu.Unlock()
	if was && b.opts.OnClose != nil {
		b.opts.OnClose(id)
	}
}

// IsOpen reports whether the book is showing.
func (b *Book) IsOpen() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.open
}

// ActiveFilter returns the selected filter.
func (b *Book) ActiveFilter() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.fixture.Filters[b.filterIdx]
}

// Activities returns a copy of the server-side activity list.
func (b *Book) Activities() []activity.Info {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]activity.Info(nil), b.fixture.Activities...)
}

// Actions returns every action received so far.
func (b *Book) Actions() []container.Action {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]container.Action(nil), b.actions...)
}

// Clicks counts the clicks received on slot.
func (b *Book) Clicks(slot int) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	n := 0
	for _, a := range b.actions {
		if a.Kind == container.ActionClickSlot && a.Slot == slot {
			n++
		}
	}
	return n
}
