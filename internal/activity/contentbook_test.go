package activity

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/msageha/contentbook/internal/container"
	"github.com/msageha/contentbook/internal/model"
	"github.com/msageha/contentbook/internal/query"
	"github.com/msageha/contentbook/internal/styled"
)

func filterItem(active string, others ...string) container.Item {
	lore := []styled.Text{"§7Click to change view"}
	lore = append(lore, styled.Text("§f- §7"+active))
	for _, o := range others {
		lore = append(lore, styled.Text("§7- §8"+o))
	}
	return container.Item{Kind: container.KindPaper, Name: FilterItemTitle, Lore: lore}
}

func bookWithFilter(it container.Item) container.Snapshot {
	items := make([]container.Item, 72)
	for i := range items {
		items[i] = container.Air
	}
	items[ChangeViewSlot] = it
	return container.Snapshot{ID: 1, Items: items}
}

func TestActiveFilter(t *testing.T) {
	got, ok := ActiveFilter(filterItem("Quests", "All", "Caves"))
	require.True(t, ok)
	assert.Equal(t, "Quests", got)

	_, ok = ActiveFilter(container.Air)
	assert.False(t, ok)

	renamed := filterItem("Quests")
	renamed.Name = "§eFilters"
	_, ok = ActiveFilter(renamed)
	assert.False(t, ok, "name must match exactly")

	noActive := container.Item{Kind: container.KindPaper, Name: FilterItemTitle, Lore: []styled.Text{"§7- §8All"}}
	_, ok = ActiveFilter(noActive)
	assert.False(t, ok)
}

func TestSelectFilter(t *testing.T) {
	f := &filterState{}
	pred := selectFilter(f, 3, "Quests")

	again, err := pred(bookWithFilter(filterItem("All")))
	require.NoError(t, err)
	assert.True(t, again)
	assert.Equal(t, "All", f.selected)

	again, err = pred(bookWithFilter(filterItem("Quests")))
	require.NoError(t, err)
	assert.False(t, again)
	assert.Equal(t, "All", f.selected, "only the first filter seen is recorded")
}

func TestSelectFilter_Runaway(t *testing.T) {
	f := &filterState{}
	pred := selectFilter(f, 2, "Quests")
	snap := bookWithFilter(filterItem("All"))

	for i := 0; i < 2; i++ {
		again, err := pred(snap)
		require.NoError(t, err)
		require.True(t, again)
	}
	_, err := pred(snap)
	require.Error(t, err)
	assert.Equal(t, query.KindRunaway, query.KindOf(err))
	assert.Equal(t, "Filter setting has exceeded max loops", err.Error())
}

func TestSelectFilter_NotAFilter(t *testing.T) {
	pred := selectFilter(&filterState{}, MaxFilters, "Quests")
	_, err := pred(bookWithFilter(container.Item{Kind: container.KindCompass, Name: "§bMap"}))
	require.Error(t, err)
	assert.Equal(t, query.KindProtocol, query.KindOf(err))
	assert.Equal(t, "Cannot determine active filter", err.Error())
}

func TestRestoreFilter(t *testing.T) {
	f := &filterState{selected: "Caves", recorded: true}

	again, err := restoreFilter(f, MaxFilters, false)(bookWithFilter(filterItem("Quests")))
	require.NoError(t, err)
	assert.False(t, again, "disabled restore never clicks")

	pred := restoreFilter(f, MaxFilters, true)
	again, err = pred(bookWithFilter(filterItem("Quests")))
	require.NoError(t, err)
	assert.True(t, again)
	again, err = pred(bookWithFilter(filterItem("Caves")))
	require.NoError(t, err)
	assert.False(t, again)

	again, err = restoreFilter(&filterState{}, MaxFilters, true)(bookWithFilter(filterItem("Quests")))
	require.NoError(t, err)
	assert.False(t, again, "nothing recorded, nothing to restore")
}

func TestAppendPage(t *testing.T) {
	snap := bookWithFilter(filterItem("All"))
	snap.Items[0] = Info{Type: TypeQuest, Name: "Cook Assistant"}.Item()
	snap.Items[5] = Info{Type: TypeCave, Name: "Nivla Woods Cave"}.Item()
	snap.Items[60] = Info{Type: TypeQuest, Name: "Outside the list"}.Item()

	got := appendPage([]Info{{Type: TypeRaid, Name: "Earlier"}}, snap)
	require.Len(t, got, 3)
	assert.Equal(t, "Earlier", got[0].Name)
	assert.Equal(t, "Cook Assistant", got[1].Name)
	assert.Equal(t, "Nivla Woods Cave", got[2].Name)
}

func TestFindTrackedActivity(t *testing.T) {
	snap := bookWithFilter(filterItem("Quests"))
	snap.Items[3] = Info{Type: TypeStorylineQuest, Name: "King's Recruit"}.Item()
	snap.Items[4] = Info{Type: TypeQuest, Name: "Cook Assistant"}.Item()

	assert.Equal(t, 3, findTrackedActivity(snap, "King's Recruit", TypeQuest))
	assert.Equal(t, 4, findTrackedActivity(snap, "Cook Assistant", TypeQuest))
	assert.Equal(t, -1, findTrackedActivity(snap, "Cook Assistant", TypeMiniQuest))
	assert.Equal(t, -1, findTrackedActivity(snap, "Lost Soul", TypeQuest))
}

type recordingExecutor struct {
	scripts []*query.Script
}

func (r *recordingExecutor) Execute(s *query.Script) bool {
	r.scripts = append(r.scripts, s)
	return true
}

func TestQueryContentBook_ScriptShape(t *testing.T) {
	exec := &recordingExecutor{}
	q := NewQueries(exec, nil, BookConfig{HotbarSlot: 7, Title: "§0§lContent Book"}, nil)

	require.True(t, q.QueryContentBook(ScanRequest{Type: TypeDungeon}))
	require.Len(t, exec.scripts, 1)
	s := exec.scripts[0]
	assert.Equal(t, "Content Book Query for Dungeons", s.Name())
	assert.Equal(t, []query.StageKind{
		query.StageThen,
		query.StageExecute,
		query.StageRepeat,
		query.StageReprocess,
		query.StageRepeat,
		query.StageExecute,
		query.StageRepeat,
		query.StageExecute,
		query.StageExecute,
	}, s.Kinds())

	require.True(t, q.ToggleTracking("Decrepit Sewers", TypeDungeon, nil))
	require.Len(t, exec.scripts, 2)
	assert.Equal(t, "Toggle Activity Tracking Query: Decrepit Sewers", exec.scripts[1].Name())
	assert.Contains(t, exec.scripts[1].Kinds(), query.StageSearchAndAct)
	assert.NotEqual(t, s.ID(), exec.scripts[1].ID(), "every invocation builds a fresh script")
}

func TestBookConfigFrom(t *testing.T) {
	cfg := BookConfigFrom(model.Default().ContentBook)
	assert.Equal(t, BookConfig{HotbarSlot: 7, Title: "§0§lContent Book", MaxFilters: 11}, cfg)
}

func TestQueries_SetConfig(t *testing.T) {
	q := NewQueries(&recordingExecutor{}, nil, BookConfig{}, nil)
	assert.Equal(t, MaxFilters, q.config().MaxFilters)

	q.SetConfig(BookConfig{HotbarSlot: 2, Title: "§0§lBook", MaxFilters: 4, ResetFilters: true})
	cfg := q.config()
	assert.Equal(t, 2, cfg.HotbarSlot)
	assert.Equal(t, 4, cfg.MaxFilters)
	assert.True(t, cfg.ResetFilters)
}
