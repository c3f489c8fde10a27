package activity

import (
	"fmt"
	"regexp"
	"strconv"

	"github.com/msageha/contentbook/internal/container"
	"github.com/msageha/contentbook/internal/styled"
)

// Status is the player's progress on an activity, shown by the name colour.
type Status int

const (
	StatusAvailable Status = iota
	StatusStarted
	StatusCompleted
	StatusUnavailable
)

var statusCodes = map[rune]Status{
	'a': StatusAvailable,
	'e': StatusStarted,
	'2': StatusCompleted,
	'c': StatusUnavailable,
}

var statusNames = [...]string{
	StatusAvailable:   "available",
	StatusStarted:     "started",
	StatusCompleted:   "completed",
	StatusUnavailable: "unavailable",
}

func (s Status) String() string {
	if s < 0 || int(s) >= len(statusNames) {
		return fmt.Sprintf("status(%d)", int(s))
	}
	return statusNames[s]
}

func (s Status) code() rune {
	for c, st := range statusCodes {
		if st == s {
			return c
		}
	}
	return 'f'
}

func (s Status) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

func (s *Status) UnmarshalText(b []byte) error {
	for i, name := range statusNames {
		if name == string(b) {
			*s = Status(i)
			return nil
		}
	}
	return fmt.Errorf("unknown activity status %q", string(b))
}

// Info describes one activity as listed in the content book.
type Info struct {
	Type        Type          `yaml:"type"`
	Name        string        `yaml:"name"`
	Status      Status        `yaml:"status"`
	Level       int           `yaml:"level,omitempty"`
	Tracked     bool          `yaml:"tracked,omitempty"`
	Description []styled.Text `yaml:"description,omitempty"`
}

var (
	activityNamePattern = regexp.MustCompile(`^§([0-9a-f])(?:§l)?(.+)$`)
	typeLinePattern     = regexp.MustCompile(`^§7(.+)$`)
	levelLinePattern    = regexp.MustCompile(`^§7Level §f(\d+)$`)
)

const trackedLine styled.Text = "§d§lTRACKED"

// ParseItem recognises an activity item: a coloured name whose first lore
// line is the type label.
func ParseItem(it container.Item) (Info, bool) {
	if it.IsEmpty() {
		return Info{}, false
	}
	lore := container.ItemLore(it)
	if len(lore) == 0 {
		return Info{}, false
	}
	m, ok := container.ItemName(it).Match(activityNamePattern)
	if !ok {
		return Info{}, false
	}
	status, ok := statusCodes[rune(m[1][0])]
	if !ok {
		return Info{}, false
	}
	tm, ok := lore[0].Match(typeLinePattern)
	if !ok {
		return Info{}, false
	}
	typ, ok := typeFromLabel(tm[1])
	if !ok {
		return Info{}, false
	}

	info := Info{
		Type:   typ,
		Name:   styled.Text(m[2]).Strip(),
		Status: status,
	}
	for _, line := range lore[1:] {
		if line == trackedLine {
			info.Tracked = true
			continue
		}
		if lm, ok := line.Match(levelLinePattern); ok {
			if n, err := strconv.Atoi(lm[1]); err == nil {
				info.Level = n
				continue
			}
		}
		info.Description = append(info.Description, line)
	}
	return info, true
}

// Item renders info the way the content book shows it. ParseItem(i.Item())
// yields i back.
func (i Info) Item() container.Item {
	lore := []styled.Text{styled.Text("§7" + i.Type.Label())}
	if i.Level > 0 {
		lore = append(lore, styled.Text(fmt.Sprintf("§7Level §f%d", i.Level)))
	}
	if i.Tracked {
		lore = append(lore, trackedLine)
	}
	lore = append(lore, i.Description...)
	return container.Item{
		Kind: container.KindWrittenBook,
		Name: styled.Text(fmt.Sprintf("§%c%s", i.Status.code(), i.Name)),
		Lore: lore,
	}
}
