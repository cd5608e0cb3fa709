package shell

import (
	"fmt"
	"strings"
	"time"
)

// Command is one classified input line. Exactly one variant applies per line;
// handlers type-switch over the concrete types.
type Command interface {
	isCommand()
}

// ExitCmd terminates the loop.
type ExitCmd struct{}

// EvalCmd runs an inline script body.
type EvalCmd struct {
	Code string
}

// URLCmd prints the current page URL.
type URLCmd struct{}

// ScreenshotCmd captures the page to Path.
type ScreenshotCmd struct {
	Path string
}

// InstructCmd dispatches a natural-language instruction to the agent.
type InstructCmd struct {
	Text string
}

// NoneCmd is an empty line; the loop just re-prompts.
type NoneCmd struct{}

func (ExitCmd) isCommand()       {}
func (EvalCmd) isCommand()       {}
func (URLCmd) isCommand()        {}
func (ScreenshotCmd) isCommand() {}
func (InstructCmd) isCommand()   {}
func (NoneCmd) isCommand()       {}

const (
	exitWord         = ".exit"
	evalPrefix       = ":js "
	urlWord          = ":url"
	screenshotPrefix = ":screenshot"
)

// ParseCommand classifies one input line. Matching is ordered: exit, inline
// eval, url, screenshot, and everything else non-empty is an agent
// instruction. now supplies the clock for the default screenshot filename.
func ParseCommand(line string, now func() time.Time) Command {
	line = strings.TrimSpace(line)
	switch {
	case line == "":
		return NoneCmd{}
	case line == exitWord:
		return ExitCmd{}
	case strings.HasPrefix(line, evalPrefix):
		return EvalCmd{Code: line[len(evalPrefix):]}
	case line == urlWord:
		return URLCmd{}
	case strings.HasPrefix(line, screenshotPrefix):
		return ScreenshotCmd{Path: screenshotPath(line, now)}
	default:
		return InstructCmd{Text: line}
	}
}

// screenshotPath resolves the optional path token, defaulting to a
// timestamped filename.
func screenshotPath(line string, now func() time.Time) string {
	fields := strings.Fields(line)
	if len(fields) > 1 {
		return fields[1]
	}
	return fmt.Sprintf("screenshot-%d.png", now().UnixMilli())
}
