package shell

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/dkovalq/pagepilot-cli/internal/agent"
)

// Prompt is the interactive read-line prompt.
const Prompt = "agent> "

// Session is the slice of the browser session the loop drives directly.
// *browser.Session satisfies it.
type Session interface {
	CurrentURL(ctx context.Context) (string, error)
	CaptureScreenshot(ctx context.Context, path string) error
	Errs() <-chan error
	Close() error
}

// Evaluator runs one inline script body and returns its value, or nil when
// the script produced none.
type Evaluator interface {
	Eval(ctx context.Context, body string) (interface{}, error)
}

// Params collects the loop's collaborators. Session, Eval and Runner are
// required; History may be nil; In/Out/Logger/Now default sensibly.
type Params struct {
	Session Session
	Eval    Evaluator
	Runner  agent.Runner
	History *History
	In      io.Reader
	Out     io.Writer
	Logger  *zap.Logger
	Now     func() time.Time
}

// Shell is the interactive session loop. It owns the single-flight state: at
// most one foreground operation runs at a time, and lines submitted while the
// agent branch is in flight are dropped without output.
type Shell struct {
	session Session
	eval    Evaluator
	runner  agent.Runner
	history *History
	in      io.Reader
	out     io.Writer
	logger  *zap.Logger
	now     func() time.Time

	spinner *Spinner

	// processing and agentDone are touched only by the Run goroutine.
	processing bool
	agentDone  chan agentOutcome

	teardownOnce sync.Once
	teardownErr  error
}

type agentOutcome struct {
	line   string
	result *agent.RunResult
	err    error
}

func New(p Params) *Shell {
	if p.In == nil {
		p.In = os.Stdin
	}
	if p.Out == nil {
		p.Out = os.Stdout
	}
	if p.Logger == nil {
		p.Logger = zap.NewNop()
	}
	if p.Now == nil {
		p.Now = time.Now
	}
	return &Shell{
		session:   p.Session,
		eval:      p.Eval,
		runner:    p.Runner,
		history:   p.History,
		in:        p.In,
		out:       p.Out,
		logger:    p.Logger.Named("shell"),
		now:       p.Now,
		spinner:   NewSpinner(p.Out),
		agentDone: make(chan agentOutcome, 1),
	}
}

// Run drives the loop until `.exit`, input close, or context cancellation.
// The session is torn down exactly once on every return path; the background
// error subscription ends with the loop.
func (s *Shell) Run(ctx context.Context) error {
	defer s.teardown()

	loopDone := make(chan struct{})
	defer close(loopDone)
	lines := make(chan string)
	go readLines(s.in, lines, loopDone)

	s.prompt()
	for {
		select {
		case <-ctx.Done():
			s.println("")
			return nil

		case err := <-s.session.Errs():
			s.handleBackgroundErr(err)

		case outcome := <-s.agentDone:
			s.settleAgent(outcome)

		case line, ok := <-lines:
			if !ok {
				s.println("")
				return nil
			}
			if s.processing {
				// Single-flight: the pending prompt re-issues itself
				// when the in-flight operation settles.
				continue
			}
			if exit := s.dispatch(ctx, line); exit {
				return nil
			}
		}
	}
}

// dispatch classifies and runs one line, re-prompting after every branch
// except the async agent branch (which re-prompts on settlement) and exit.
func (s *Shell) dispatch(ctx context.Context, line string) (exit bool) {
	switch cmd := ParseCommand(line, s.now).(type) {
	case ExitCmd:
		return true
	case NoneCmd:
		s.prompt()
	case EvalCmd:
		s.handleEval(ctx, cmd.Code)
		s.prompt()
	case URLCmd:
		s.handleURL(ctx)
		s.prompt()
	case ScreenshotCmd:
		s.handleScreenshot(ctx, cmd.Path)
		s.prompt()
	case InstructCmd:
		s.startAgent(ctx, cmd.Text)
	}
	return false
}

func (s *Shell) handleEval(ctx context.Context, code string) {
	value, err := s.eval.Eval(ctx, code)
	if err != nil {
		s.printError(err, Hints(err))
		s.history.Record(code, "js", false)
		return
	}
	if value != nil {
		s.println(fmt.Sprintf("%v", value))
	}
	s.history.Record(code, "js", true)
}

func (s *Shell) handleURL(ctx context.Context) {
	url, err := s.session.CurrentURL(ctx)
	if err != nil {
		s.printError(err, Hints(err))
		return
	}
	s.println(url)
}

func (s *Shell) handleScreenshot(ctx context.Context, path string) {
	if err := s.session.CaptureScreenshot(ctx, path); err != nil {
		s.printError(err, Hints(err))
		return
	}
	s.println("Saved screenshot to " + path)
}

// startAgent acquires the single-flight slot and runs the instruction in the
// background; settleAgent releases the slot when the run finishes.
func (s *Shell) startAgent(ctx context.Context, instruction string) {
	s.processing = true
	s.spinner.Start("Thinking...")
	go func() {
		result, err := s.runner.Run(ctx, instruction)
		s.agentDone <- agentOutcome{line: instruction, result: result, err: err}
	}()
}

func (s *Shell) settleAgent(outcome agentOutcome) {
	s.spinner.Stop()
	s.processing = false

	if outcome.err != nil {
		s.printError(outcome.err, Hints(outcome.err))
		s.history.Record(outcome.line, "agent", false)
		s.prompt()
		return
	}
	for _, line := range FormatRunResult(outcome.result) {
		s.println(line)
	}
	s.history.Record(outcome.line, "agent", true)
	s.prompt()
}

// handleBackgroundErr recovers from an asynchronous failure that escaped the
// normal request path: reset the indicator and the single-flight flag, report,
// and hand the prompt back.
func (s *Shell) handleBackgroundErr(err error) {
	s.spinner.Stop()
	s.processing = false
	s.logger.Warn("Background session error", zap.Error(err))
	s.printError(err, Hints(err))
	s.prompt()
}

func (s *Shell) teardown() {
	s.teardownOnce.Do(func() {
		if err := s.session.Close(); err != nil {
			s.logger.Warn("Session teardown failed", zap.Error(err))
			s.teardownErr = err
		}
		if err := s.history.Close(); err != nil {
			s.logger.Warn("History close failed", zap.Error(err))
		}
	})
}

func (s *Shell) prompt() {
	fmt.Fprint(s.out, Prompt)
}

func (s *Shell) println(line string) {
	fmt.Fprintln(s.out, line)
}

func (s *Shell) printError(err error, hints []string) {
	s.println(failureStyle.Render("Error: " + err.Error()))
	for _, hint := range hints {
		s.println(dimStyle.Render(hint))
	}
}

// readLines feeds input lines to the loop and closes the channel on EOF. The
// done channel unblocks a pending send when the loop exits first.
func readLines(r io.Reader, lines chan<- string, done <-chan struct{}) {
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		select {
		case lines <- scanner.Text():
		case <-done:
			return
		}
	}
	close(lines)
}
