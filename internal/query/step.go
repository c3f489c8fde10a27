// Package query drives server-side container GUIs through scripted click and
// response round-trips.
package query

import (
	"fmt"

	"github.com/msageha/contentbook/internal/container"
	"github.com/msageha/contentbook/internal/styled"
)

// StepKind tags the variant of a QueryStep.
type StepKind int

const (
	StepUseHotbarItem StepKind = iota
	StepClickSlot
	StepClickSlotMatching
	StepInspect
)

func (k StepKind) String() string {
	switch k {
	case StepUseHotbarItem:
		return "use_hotbar_item"
	case StepClickSlot:
		return "click_slot"
	case StepClickSlotMatching:
		return "click_matching_slot"
	case StepInspect:
		return "inspect"
	default:
		return fmt.Sprintf("step(%d)", int(k))
	}
}

// Observer reads a snapshot. Returning an error aborts the script.
type Observer func(container.Snapshot) error

// QueryStep is one primitive action against the transport. Steps carry no
// meaning of their own; scripts decide what a click is for.
type QueryStep struct {
	Kind StepKind
	Slot int

	// ExpectedTitle, when set, must equal the title of the resulting snapshot.
	ExpectedTitle styled.Text

	// Guard for StepClickSlotMatching.
	ItemKind     container.ItemKind
	NameFragment styled.Text

	Inspect    Observer
	OnIncoming Observer
}

// UseHotbarItem right-clicks a hotbar slot and expects a container titled
// title to open.
func UseHotbarItem(slot int, title styled.Text) QueryStep {
	return QueryStep{Kind: StepUseHotbarItem, Slot: slot, ExpectedTitle: title}
}

// ClickSlot left-clicks a slot of the open container.
func ClickSlot(slot int) QueryStep {
	return QueryStep{Kind: StepClickSlot, Slot: slot}
}

// ClickMatchingSlot clicks slot only if it currently holds an item of kind
// whose name contains fragment; otherwise the step fails with ErrPredicateFail.
func ClickMatchingSlot(slot int, kind container.ItemKind, fragment styled.Text) QueryStep {
	return QueryStep{Kind: StepClickSlotMatching, Slot: slot, ItemKind: kind, NameFragment: fragment}
}

// InspectContainer runs fn on the current snapshot without any transport action.
func InspectContainer(fn Observer) QueryStep {
	return QueryStep{Kind: StepInspect, Inspect: fn}
}

// ExpectContainerTitle returns a copy of s that checks the resulting title.
func (s QueryStep) ExpectContainerTitle(title styled.Text) QueryStep {
	s.ExpectedTitle = title
	return s
}

// ProcessIncomingContainer returns a copy of s that passes the response
// snapshot to fn.
func (s QueryStep) ProcessIncomingContainer(fn Observer) QueryStep {
	s.OnIncoming = fn
	return s
}

func (s QueryStep) String() string {
	switch s.Kind {
	case StepUseHotbarItem:
		return fmt.Sprintf("%s(%d)", s.Kind, s.Slot)
	case StepClickSlot:
		return fmt.Sprintf("%s(%d)", s.Kind, s.Slot)
	case StepClickSlotMatching:
		return fmt.Sprintf("%s(%d, %s, %q)", s.Kind, s.Slot, s.ItemKind, s.NameFragment)
	default:
		return s.Kind.String()
	}
}

// ContainerHasSlot reports whether slot holds an item of kind whose name
// contains fragment.
func ContainerHasSlot(c container.Snapshot, slot int, kind container.ItemKind, fragment styled.Text) bool {
	it := c.Slot(slot)
	if it.Kind != kind {
		return false
	}
	return container.ItemName(it).Contains(fragment)
}
