// Package styled provides the text value used for item names, lore and
// container titles. Styling markers (§ followed by one code character) are
// kept byte-for-byte so comparisons match what the server sent.
package styled

import (
	"regexp"
	"strings"
)

// Marker is the inline styling prefix used by the host game.
const Marker = "§"

const markerRune = '§'

// Text is a string with inline styling markers preserved.
type Text string

// Empty is the styled text of an empty slot.
const Empty Text = ""

func FromString(s string) Text {
	return Text(s)
}

// String returns the raw text including styling markers.
func (t Text) String() string {
	return string(t)
}

func (t Text) IsEmpty() bool {
	return t == ""
}

// Equal compares byte-for-byte, markers included.
func (t Text) Equal(other Text) bool {
	return t == other
}

// Contains reports whether fragment occurs in t, markers included.
func (t Text) Contains(fragment Text) bool {
	return strings.Contains(string(t), string(fragment))
}

// Match applies an anchored pattern to the raw text and returns the submatches.
func (t Text) Match(re *regexp.Regexp) ([]string, bool) {
	m := re.FindStringSubmatch(string(t))
	if m == nil {
		return nil, false
	}
	return m, true
}

// Strip removes every styling marker and its code character.
func (t Text) Strip() string {
	s := string(t)
	if !strings.Contains(s, Marker) {
		return s
	}
	var b strings.Builder
	b.Grow(len(s))
	skip := false
	for _, r := range s {
		switch {
		case skip:
			skip = false
		case r == markerRune:
			skip = true
		default:
			b.WriteRune(r)
		}
	}
	return b.String()
}

// Code returns the styling code of a leading marker, if any.
func (t Text) Code() (rune, bool) {
	s := string(t)
	if !strings.HasPrefix(s, Marker) {
		return 0, false
	}
	for _, r := range s[len(Marker):] {
		return r, true
	}
	return 0, false
}

// Join concatenates lines with a newline.
func Join(lines []Text) string {
	parts := make([]string, len(lines))
	for i, l := range lines {
		parts[i] = string(l)
	}
	return strings.Join(parts, "\n")
}
