package notify

import (
	"errors"
	"runtime"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/msageha/contentbook/internal/styled"
)

func TestEscapeAppleScript(t *testing.T) {
	tests := []struct {
		input string
		want  string
	}{
		{"hello", "hello"},
		{`say "hello"`, `say \"hello\"`},
		{`path\to\file`, `path\\to\\file`},
		{"two\nlines", "two lines"},
		{"", ""},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, escapeAppleScript(tt.input), "input %q", tt.input)
	}
}

func TestAppleScript_StripsFormatting(t *testing.T) {
	got := appleScript("§0§lContent Book", `§cSetting "tracking" failed`)
	assert.Equal(t, `display notification "Setting \"tracking\" failed" with title "Content Book"`, got)
}

func TestSend_Unsupported(t *testing.T) {
	if runtime.GOOS == "darwin" {
		t.Skip("osascript is available")
	}
	assert.ErrorIs(t, Send("Content Book", "hello"), ErrDesktopUnsupported)
}

func TestCenter_QueueAndEdit(t *testing.T) {
	c := NewCenter(Options{Enabled: true})

	id := c.Queue("Loading quests from content book...", ColorYellow)
	require.NotEmpty(t, id)
	require.NoError(t, c.Edit(id, "Loaded quests from content book", ColorGreen))

	msgs := c.Messages()
	require.Len(t, msgs, 1)
	assert.Equal(t, "Loaded quests from content book", msgs[0].Text)
	assert.Equal(t, styled.Text("§aLoaded quests from content book"), msgs[0].Styled())
	assert.False(t, msgs[0].Updated.Before(msgs[0].Created))
}

func TestCenter_EditUnknown(t *testing.T) {
	c := NewCenter(Options{Enabled: true})
	assert.Error(t, c.Edit("missing", "x", ColorRed))
}

func TestCenter_DisabledStillKeepsErrors(t *testing.T) {
	c := NewCenter(Options{Enabled: false})

	assert.Empty(t, c.Queue("Loading", ColorYellow))
	c.SendError("Setting tracking in Content Book failed")

	msgs := c.Messages()
	require.Len(t, msgs, 1)
	assert.Equal(t, ColorRed, msgs[0].Color)

	c.SetEnabled(true)
	assert.NotEmpty(t, c.Queue("Loading", ColorYellow))
}

func TestCenter_Limit(t *testing.T) {
	c := NewCenter(Options{Enabled: true, Limit: 2})
	first := c.Queue("one", ColorWhite)
	c.Queue("two", ColorWhite)
	c.Queue("three", ColorWhite)

	msgs := c.Messages()
	require.Len(t, msgs, 2)
	assert.Equal(t, "two", msgs[0].Text)
	assert.Error(t, c.Edit(first, "gone", ColorWhite))
}

func TestCenter_DesktopMirror(t *testing.T) {
	var sent []string
	c := NewCenter(Options{Enabled: true, Desktop: func(title, message string) error {
		sent = append(sent, title+": "+message)
		return errors.New("no display")
	}})

	id := c.Queue("Loading", ColorYellow)
	_ = c.Edit(id, "Loaded", ColorGreen)
	c.SendError("Failed")

	assert.Equal(t, []string{"Content Book: Loading", "Content Book: Loaded", "Content Book: Failed"}, sent)

	c.SetDesktop(nil)
	c.Queue("quiet", ColorWhite)
	assert.Len(t, sent, 3)
}
