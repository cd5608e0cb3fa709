package shell

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func fixedClock() time.Time {
	return time.UnixMilli(1700000000000)
}

func TestParseCommand(t *testing.T) {
	cases := []struct {
		name string
		line string
		want Command
	}{
		{"exit", ".exit", ExitCmd{}},
		{"exit with surrounding whitespace", "  .exit  ", ExitCmd{}},
		{"inline eval", `:js session.url()`, EvalCmd{Code: "session.url()"}},
		{"inline eval keeps body verbatim", ":js  1 + 1", EvalCmd{Code: " 1 + 1"}},
		{"url", ":url", URLCmd{}},
		{"screenshot with path", ":screenshot /tmp/page.png", ScreenshotCmd{Path: "/tmp/page.png"}},
		{"screenshot default path", ":screenshot", ScreenshotCmd{Path: "screenshot-1700000000000.png"}},
		{"empty line", "", NoneCmd{}},
		{"whitespace only", "   \t ", NoneCmd{}},
		{"instruction", "log in and open the dashboard", InstructCmd{Text: "log in and open the dashboard"}},
		{"bare :js is an instruction", ":js", InstructCmd{Text: ":js"}},
		{"unknown colon command is an instruction", ":help", InstructCmd{Text: ":help"}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, ParseCommand(tc.line, fixedClock))
		})
	}
}

func TestParseCommand_AnythingElseIsInstruction(t *testing.T) {
	for _, line := range []string{"exit", ".quit", "url", "take a screenshot of the page"} {
		cmd := ParseCommand(line, fixedClock)
		assert.IsType(t, InstructCmd{}, cmd, "line %q", line)
	}
}
