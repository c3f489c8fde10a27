package sim

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/msageha/contentbook/internal/activity"
	"github.com/msageha/contentbook/internal/container"
	"github.com/msageha/contentbook/internal/styled"
)

func do(t *testing.T, b *Book, a container.Action) (container.Snapshot, error) {
	t.Helper()
	var (
		snap    container.Snapshot
		err     error
		replied bool
	)
	b.Do(a, func(s container.Snapshot, e error) {
		snap, err, replied = s, e, true
	})
	require.True(t, replied, "no reply to %s", a)
	return snap, err
}

func openBook(t *testing.T, b *Book) container.Snapshot {
	t.Helper()
	snap, err := do(t, b, container.Action{Kind: container.ActionUseHotbarItem, Slot: 7})
	require.NoError(t, err)
	return snap
}

func click(t *testing.T, b *Book, id, slot int) (container.Snapshot, error) {
	t.Helper()
	return do(t, b, container.Action{Kind: container.ActionClickSlot, ContainerID: id, Slot: slot})
}

func quests(names ...string) []activity.Info {
	out := make([]activity.Info, len(names))
	for i, n := range names {
		out[i] = activity.Info{Type: activity.TypeQuest, Name: n}
	}
	return out
}

func TestDefaultFilters(t *testing.T) {
	filters := DefaultFilters()
	assert.Equal(t, FilterAll, filters[0])
	assert.Equal(t, "Quests", filters[1])
	assert.NotContains(t, filters, "Storyline")
	assert.Contains(t, filters, "Mini-Quests")
	assert.LessOrEqual(t, len(filters), activity.MaxFilters)
}

func TestBook_OpenRendersFirstPage(t *testing.T) {
	b := New(Fixture{
		Progress:   Progress{Name: "§aProgress", Lore: []styled.Text{"§7Quests: 2/3"}},
		Activities: quests("Cook Assistant", "Infested Plants"),
	}, Options{HotbarSlot: 7})

	snap := openBook(t, b)
	assert.True(t, b.IsOpen())
	assert.Equal(t, 1, snap.ID)
	assert.Equal(t, Size, snap.Len())
	assert.Equal(t, "§0§lContent Book", snap.Title.String())

	info, ok := activity.ParseItem(snap.Slot(0))
	require.True(t, ok)
	assert.Equal(t, "Cook Assistant", info.Name)
	info, ok = activity.ParseItem(snap.Slot(1))
	require.True(t, ok)
	assert.Equal(t, "Infested Plants", info.Name)
	assert.True(t, snap.Slot(2).IsEmpty())

	active, ok := activity.ActiveFilter(snap.Slot(activity.ChangeViewSlot))
	require.True(t, ok)
	assert.Equal(t, FilterAll, active)
	assert.Equal(t, "§aProgress", snap.Slot(activity.ProgressSlot).Name.String())
	assert.True(t, snap.Slot(activity.NextPageSlot).IsEmpty())
}

func TestBook_WrongHotbarSlot(t *testing.T) {
	b := New(Fixture{}, Options{HotbarSlot: 7})
	_, err := do(t, b, container.Action{Kind: container.ActionUseHotbarItem, Slot: 3})
	assert.ErrorIs(t, err, container.ErrNoContainer)
	assert.False(t, b.IsOpen())
}

func TestBook_FilterCycleAndPaging(t *testing.T) {
	acts := quests("A", "B", "C")
	acts = append(acts, activity.Info{Type: activity.TypeMiniQuest, Name: "Lost Soul"})
	b := New(Fixture{PageSize: 2, Activities: acts}, Options{HotbarSlot: 7})

	snap := openBook(t, b)
	assert.Equal(t, container.KindGoldenShovel, snap.Slot(activity.NextPageSlot).Kind)

	snap, err := click(t, b, snap.ID, activity.ChangeViewSlot)
	require.NoError(t, err)
	assert.Equal(t, "Quests", b.ActiveFilter())
	info, _ := activity.ParseItem(snap.Slot(0))
	assert.Equal(t, "A", info.Name)

	snap, err = click(t, b, snap.ID, activity.NextPageSlot)
	require.NoError(t, err)
	info, _ = activity.ParseItem(snap.Slot(0))
	assert.Equal(t, "C", info.Name)
	assert.True(t, snap.Slot(1).IsEmpty())
	assert.True(t, snap.Slot(activity.NextPageSlot).IsEmpty())

	// Changing the view starts again at page one.
	snap, err = click(t, b, snap.ID, activity.ChangeViewSlot)
	require.NoError(t, err)
	assert.Equal(t, "Mini-Quests", b.ActiveFilter())
	info, _ = activity.ParseItem(snap.Slot(0))
	assert.Equal(t, "Lost Soul", info.Name)
	assert.True(t, snap.Slot(1).IsEmpty())

	assert.Equal(t, 2, b.Clicks(activity.ChangeViewSlot))
	assert.Equal(t, 1, b.Clicks(activity.NextPageSlot))
}

func TestBook_QuestFilterShowsStoryline(t *testing.T) {
	b := New(Fixture{
		ActiveFilter: "Quests",
		Activities: []activity.Info{
			{Type: activity.TypeStorylineQuest, Name: "King's Recruit"},
			{Type: activity.TypeCave, Name: "Nivla Woods Cave"},
		},
	}, Options{HotbarSlot: 7})

	snap := openBook(t, b)
	info, ok := activity.ParseItem(snap.Slot(0))
	require.True(t, ok)
	assert.Equal(t, "King's Recruit", info.Name)
	assert.True(t, snap.Slot(1).IsEmpty())
}

func TestBook_ClickActivityTogglesTracking(t *testing.T) {
	acts := quests("A", "B")
	acts[1].Tracked = true
	b := New(Fixture{Activities: acts}, Options{HotbarSlot: 7})

	snap := openBook(t, b)
	snap, err := click(t, b, snap.ID, 0)
	require.NoError(t, err)

	got := b.Activities()
	assert.True(t, got[0].Tracked)
	assert.False(t, got[1].Tracked)
	info, _ := activity.ParseItem(snap.Slot(0))
	assert.True(t, info.Tracked)

	_, err = click(t, b, snap.ID, 0)
	require.NoError(t, err)
	assert.False(t, b.Activities()[0].Tracked)
}

func TestBook_StaleContainer(t *testing.T) {
	b := New(Fixture{}, Options{HotbarSlot: 7})
	_, err := click(t, b, 1, activity.ChangeViewSlot)
	assert.ErrorIs(t, err, container.ErrContainerClosed)

	snap := openBook(t, b)
	_, err = click(t, b, snap.ID+1, activity.ChangeViewSlot)
	assert.ErrorIs(t, err, container.ErrContainerClosed)
}

func TestBook_CloseAfter(t *testing.T) {
	var closed []int
	b := New(Fixture{}, Options{HotbarSlot: 7, CloseAfter: 1, OnClose: func(id int) { closed = append(closed, id) }})

	snap := openBook(t, b)
	_, err := click(t, b, snap.ID, activity.ChangeViewSlot)
	assert.ErrorIs(t, err, container.ErrContainerClosed)
	assert.False(t, b.IsOpen())
	assert.Equal(t, []int{snap.ID}, closed)
}

func TestBook_DropAfter(t *testing.T) {
	b := New(Fixture{}, Options{HotbarSlot: 7, DropAfter: 1})
	openBook(t, b)

	replied := false
	b.Do(container.Action{Kind: container.ActionClickSlot, ContainerID: 1, Slot: 66}, func(container.Snapshot, error) {
		replied = true
	})
	assert.False(t, replied)
	assert.Len(t, b.Actions(), 2)
}

func TestBook_Close(t *testing.T) {
	var closed []int
	b := New(Fixture{}, Options{HotbarSlot: 7, OnClose: func(id int) { closed = append(closed, id) }})
	b.Close()
	assert.Empty(t, closed, "closing a closed book is a no-op")

	openBook(t, b)
	second := openBook(t, b)
	b.Close()
	assert.False(t, b.IsOpen())
	assert.Equal(t, []int{second.ID}, closed, "the close names the container that was showing")
}

func TestLoadFixture(t *testing.T) {
	path := filepath.Join(t.TempDir(), "book.yaml")
	data := `
active_filter: Quests
page_size: 2
progress:
  name: "§aQuests Completed"
  lore: ["§71 of 2"]
activities:
  - type: quest
    name: Cook Assistant
    status: completed
  - type: mini_quest
    name: Lost Soul
    status: started
    level: 12
    tracked: true
`
	require.NoError(t, os.WriteFile(path, []byte(data), 0o644))

	f, err := LoadFixture(path)
	require.NoError(t, err)
	assert.Equal(t, "§0§lContent Book", f.Title.String())
	assert.Equal(t, DefaultFilters(), f.Filters)
	assert.Equal(t, "Quests", f.ActiveFilter)
	assert.Equal(t, 2, f.PageSize)
	require.Len(t, f.Activities, 2)
	assert.Equal(t, activity.TypeMiniQuest, f.Activities[1].Type)
	assert.Equal(t, activity.StatusStarted, f.Activities[1].Status)
	assert.Equal(t, 12, f.Activities[1].Level)
	assert.True(t, f.Activities[1].Tracked)
}

func TestParseFixture_Invalid(t *testing.T) {
	_, err := ParseFixture([]byte("activities:\n  - type: spaceship\n"))
	assert.Error(t, err)

	_, err = LoadFixture(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}
