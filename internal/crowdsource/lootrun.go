// Package crowdsource collects gameplay samples worth sharing with other
// players. The only collector so far records where lootrun tasks are.
package crowdsource

import (
	"fmt"
	"sync"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// TaskType is the kind of task a lootrun beacon leads to.
type TaskType string

const (
	TaskDefend  TaskType = "defend"
	TaskDestroy TaskType = "destroy"
	TaskLoot    TaskType = "loot"
	TaskSlay    TaskType = "slay"
	TaskSpelunk TaskType = "spelunk"
)

var taskTypes = []TaskType{TaskDefend, TaskDestroy, TaskLoot, TaskSlay, TaskSpelunk}

// ParseTaskType accepts a task type in any case, as shown in the scoreboard.
func ParseTaskType(s string) (TaskType, error) {
	key := cases.Fold().String(s)
	for _, t := range taskTypes {
		if string(t) == key {
			return t, nil
		}
	}
	return "", fmt.Errorf("unknown lootrun task type %q", s)
}

// Title is the task type as displayed in game, e.g. "Spelunk".
func (t TaskType) Title() string {
	return cases.Title(language.English).String(string(t))
}

// Location is the lootrun camp region, e.g. "Silent Expanse".
type Location string

// LootrunState reports the lootrun the player is on.
type LootrunState interface {
	Location() (Location, bool)
	TaskType() (TaskType, bool)
}

// Lootrun is a LootrunState fed by the client as the scoreboard changes.
type Lootrun struct {
	mu       sync.RWMutex
	location Location
	task     TaskType
}

var _ LootrunState = (*Lootrun)(nil)

// Enter starts a lootrun at location.
func (l *Lootrun) Enter(location Location) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.location = location
	l.task = ""
}

// SetTask records the current task type. An empty type clears it.
func (l *Lootrun) SetTask(t TaskType) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.task = t
}

// Leave ends the lootrun.
func (l *Lootrun) Leave() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.location = ""
	l.task = ""
}

func (l *Lootrun) Location() (Location, bool) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.location, l.location != ""
}

func (l *Lootrun) TaskType() (TaskType, bool) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.task, l.task != ""
}
