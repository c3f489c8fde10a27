package events

import "github.com/msageha/contentbook/internal/styled"

// Screen identifies a client screen. A container screen has a non-zero
// ContainerID.
type Screen struct {
	Title       styled.Text `json:"title"`
	ContainerID int         `json:"container_id,omitempty"`
}

type ScreenOpened struct {
	Screen Screen `json:"screen"`
}

// ScreenClosed carries the screen that was showing before it closed.
type ScreenClosed struct {
	Screen Screen `json:"screen"`
}

type Tick struct {
	Count uint64 `json:"count"`
}

type DisplayResized struct {
	Width  int `json:"width"`
	Height int `json:"height"`
}

// Position is a block position in the world.
type Position struct {
	X int `json:"x" yaml:"x"`
	Y int `json:"y" yaml:"y"`
	Z int `json:"z" yaml:"z"`
}

// BeaconColor is the colour of a lootrun beacon.
type BeaconColor string

const (
	BeaconBlue    BeaconColor = "blue"
	BeaconPurple  BeaconColor = "purple"
	BeaconYellow  BeaconColor = "yellow"
	BeaconRed     BeaconColor = "red"
	BeaconGrey    BeaconColor = "grey"
	BeaconOrange  BeaconColor = "orange"
	BeaconRainbow BeaconColor = "rainbow"
	BeaconWhite   BeaconColor = "white"
)

// UsedInLootruns reports whether beacons of this colour mark lootrun tasks.
func (c BeaconColor) UsedInLootruns() bool {
	switch c {
	case BeaconBlue, BeaconPurple, BeaconYellow, BeaconRed, BeaconGrey, BeaconOrange, BeaconRainbow:
		return true
	default:
		return false
	}
}

type LootrunBeaconSelected struct {
	Color BeaconColor `json:"color"`
	// Task is where the selected beacon's task is.
	Task Position `json:"task"`
}
