// Package activity reads and drives the in-game content book: the paginated,
// filterable list of quests, discoveries, dungeons and the like.
package activity

import (
	"fmt"
	"strings"

	"golang.org/x/text/cases"
)

// Type is the category of an activity.
type Type int

const (
	TypeQuest Type = iota
	TypeStorylineQuest
	TypeMiniQuest
	TypeDiscovery
	TypeSecretDiscovery
	TypeWorldDiscovery
	TypeTerritorialDiscovery
	TypeCave
	TypeDungeon
	TypeRaid
	TypeBossAltar
	TypeLootrunCamp
)

type typeInfo struct {
	id      string // stable identifier
	label   string // how an item's lore names the type
	display string // content book filter name
	group   string // plural used in messages
}

var types = [...]typeInfo{
	TypeQuest:                {"quest", "Quest", "Quests", "quests"},
	TypeStorylineQuest:       {"storyline_quest", "Storyline Quest", "Storyline", "storyline quests"},
	TypeMiniQuest:            {"mini_quest", "Mini-Quest", "Mini-Quests", "mini-quests"},
	TypeDiscovery:            {"discovery", "Discovery", "Discoveries", "discoveries"},
	TypeSecretDiscovery:      {"secret_discovery", "Secret Discovery", "Secret Discoveries", "secret discoveries"},
	TypeWorldDiscovery:       {"world_discovery", "World Discovery", "World Discoveries", "world discoveries"},
	TypeTerritorialDiscovery: {"territorial_discovery", "Territorial Discovery", "Territorial Discoveries", "territorial discoveries"},
	TypeCave:                 {"cave", "Cave", "Caves", "caves"},
	TypeDungeon:              {"dungeon", "Dungeon", "Dungeons", "dungeons"},
	TypeRaid:                 {"raid", "Raid", "Raids", "raids"},
	TypeBossAltar:            {"boss_altar", "Boss Altar", "Boss Altars", "boss altars"},
	TypeLootrunCamp:          {"lootrun_camp", "Lootrun Camp", "Lootrun Camps", "lootrun camps"},
}

// Types lists every activity type in declaration order.
func Types() []Type {
	out := make([]Type, len(types))
	for i := range types {
		out[i] = Type(i)
	}
	return out
}

func (t Type) valid() bool {
	return t >= 0 && int(t) < len(types)
}

func (t Type) String() string {
	if !t.valid() {
		return fmt.Sprintf("activity_type(%d)", int(t))
	}
	return types[t].id
}

// DisplayName is the content book filter name selecting this type.
func (t Type) DisplayName() string {
	if !t.valid() {
		return ""
	}
	return types[t].display
}

// GroupName is the lower-case plural used in user messages.
func (t Type) GroupName() string {
	if !t.valid() {
		return ""
	}
	return types[t].group
}

// Label is the type name as it appears in an activity item's lore.
func (t Type) Label() string {
	if !t.valid() {
		return ""
	}
	return types[t].label
}

// MatchesTracking reports whether an item of type t satisfies a tracking
// request for requested. Quest requests accept storyline quests and discovery
// requests accept every kind of discovery.
func (t Type) MatchesTracking(requested Type) bool {
	if t == requested {
		return true
	}
	switch requested {
	case TypeQuest:
		return t == TypeStorylineQuest
	case TypeDiscovery:
		return t == TypeSecretDiscovery || t == TypeWorldDiscovery || t == TypeTerritorialDiscovery
	default:
		return false
	}
}

func (t Type) MarshalText() ([]byte, error) {
	if !t.valid() {
		return nil, fmt.Errorf("invalid activity type %d", int(t))
	}
	return []byte(types[t].id), nil
}

func (t *Type) UnmarshalText(b []byte) error {
	parsed, err := ParseType(string(b))
	if err != nil {
		return err
	}
	*t = parsed
	return nil
}

// ParseType accepts an identifier ("mini_quest"), lore label ("Mini-Quest") or
// filter name ("Mini-Quests"), ignoring case.
func ParseType(s string) (Type, error) {
	fold := cases.Fold()
	key := fold.String(strings.TrimSpace(s))
	for i, ti := range types {
		for _, name := range []string{ti.id, ti.label, ti.display} {
			if fold.String(name) == key {
				return Type(i), nil
			}
		}
	}
	return 0, fmt.Errorf("unknown activity type %q", s)
}

// typeFromLabel maps an exact lore label to its type.
func typeFromLabel(label string) (Type, bool) {
	for i, ti := range types {
		if ti.label == label {
			return Type(i), true
		}
	}
	return 0, false
}
