package styled

import (
	"regexp"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestText_Strip(t *testing.T) {
	tests := []struct {
		name string
		in   Text
		want string
	}{
		{"plain", "Cook Assistant", "Cook Assistant"},
		{"leading code", "§aCook Assistant", "Cook Assistant"},
		{"bold and colour", "§e§lLost Soul", "Lost Soul"},
		{"inner codes", "§f- §7Quests", "- Quests"},
		{"trailing marker", "abc§", "abc"},
		{"empty", "", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.in.Strip())
		})
	}
}

func TestText_ByteExactComparison(t *testing.T) {
	assert.True(t, FromString("§eFilter").Equal("§eFilter"))
	assert.False(t, FromString("§eFilter").Equal("Filter"))
	assert.False(t, FromString("§6Filter").Equal("§eFilter"))
}

func TestText_Contains(t *testing.T) {
	name := Text("§7Scroll Down §8(page 2)")
	assert.True(t, name.Contains("§7Scroll Down"))
	assert.False(t, name.Contains("Scroll Up"))
	assert.False(t, Text("Scroll Down").Contains("§7Scroll Down"))
}

func TestText_Match(t *testing.T) {
	re := regexp.MustCompile(`^§f- §7(.*)$`)

	m, ok := Text("§f- §7Mini-Quests").Match(re)
	assert.True(t, ok)
	assert.Equal(t, "Mini-Quests", m[1])

	_, ok = Text("§7- §8Mini-Quests").Match(re)
	assert.False(t, ok)
}

func TestText_Code(t *testing.T) {
	r, ok := Text("§aDone").Code()
	assert.True(t, ok)
	assert.Equal(t, 'a', r)

	_, ok = Text("Done").Code()
	assert.False(t, ok)

	_, ok = Text("§").Code()
	assert.False(t, ok)
}
