// Package container models the server-authoritative container GUI: the
// snapshots the server sends, the click actions the client may send back, and
// the transport that carries them.
package container

import (
	"errors"
	"fmt"

	"github.com/msageha/contentbook/internal/styled"
)

// ItemKind identifies the item type occupying a slot.
type ItemKind string

const (
	KindAir          ItemKind = "air"
	KindGoldenShovel ItemKind = "golden_shovel"
	KindWrittenBook  ItemKind = "written_book"
	KindPaper        ItemKind = "paper"
	KindCompass      ItemKind = "compass"
	KindEmeraldBlock ItemKind = "emerald_block"
)

// Item is the content of a single slot.
type Item struct {
	Kind ItemKind      `yaml:"kind"`
	Name styled.Text   `yaml:"name"`
	Lore []styled.Text `yaml:"lore,omitempty"`
}

// Air is the empty slot.
var Air = Item{Kind: KindAir}

func (i Item) IsEmpty() bool {
	return i.Kind == "" || i.Kind == KindAir
}

// Snapshot is an immutable view of the open container at one instant.
// Callers must not modify Items.
type Snapshot struct {
	ID    int
	Title styled.Text
	Items []Item
}

// Slot returns the item at index, or Air when the index is out of range.
func (s Snapshot) Slot(index int) Item {
	if index < 0 || index >= len(s.Items) {
		return Air
	}
	return s.Items[index]
}

func (s Snapshot) Len() int {
	return len(s.Items)
}

// ItemName returns the display name of a slot item. Empty slots have no name.
func ItemName(it Item) styled.Text {
	if it.IsEmpty() {
		return styled.Empty
	}
	return it.Name
}

// ItemLore returns the lore lines of a slot item.
func ItemLore(it Item) []styled.Text {
	if it.IsEmpty() {
		return nil
	}
	return it.Lore
}

// ActionKind is the kind of client action sent to the server.
type ActionKind int

const (
	ActionUseHotbarItem ActionKind = iota
	ActionClickSlot
)

func (k ActionKind) String() string {
	switch k {
	case ActionUseHotbarItem:
		return "use_hotbar_item"
	case ActionClickSlot:
		return "click_slot"
	default:
		return fmt.Sprintf("action(%d)", int(k))
	}
}

// MouseButton is the button used for a slot click.
type MouseButton int

const (
	ButtonLeft MouseButton = iota
	ButtonRight
)

// Action is a single client action. ContainerID is ignored for hotbar use.
type Action struct {
	Kind        ActionKind
	ContainerID int
	Slot        int
	Button      MouseButton
}

func (a Action) String() string {
	if a.Kind == ActionUseHotbarItem {
		return fmt.Sprintf("%s slot=%d", a.Kind, a.Slot)
	}
	return fmt.Sprintf("%s container=%d slot=%d", a.Kind, a.ContainerID, a.Slot)
}

// Reply receives the snapshot produced by an action, or the reason none came.
type Reply func(Snapshot, error)

// Transport sends actions to the server. Do must call reply exactly once,
// from any goroutine, with the next snapshot of the resulting container or an
// error. Loss of the container is reported as ErrContainerClosed.
type Transport interface {
	Do(action Action, reply Reply)
}

var (
	// ErrContainerClosed is reported when the container went away (menu
	// closed, teleport, disconnect) before or while an action was pending.
	ErrContainerClosed = errors.New("container closed")
	// ErrNoContainer is reported for slot clicks when nothing is open.
	ErrNoContainer = errors.New("no container open")
)
