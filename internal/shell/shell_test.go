package shell

import (
	"context"
	"errors"
	"io"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
	"go.uber.org/zap"

	"github.com/dkovalq/pagepilot-cli/internal/agent"
)

type stubSession struct {
	url     string
	urlErr  error
	shotErr error
	shots   []string
	errs    chan error
	closed  int32
}

func newStubSession() *stubSession {
	return &stubSession{url: "https://example.com", errs: make(chan error, 1)}
}

func (s *stubSession) CurrentURL(ctx context.Context) (string, error) {
	return s.url, s.urlErr
}

func (s *stubSession) CaptureScreenshot(ctx context.Context, path string) error {
	if s.shotErr != nil {
		return s.shotErr
	}
	s.shots = append(s.shots, path)
	return nil
}

func (s *stubSession) Errs() <-chan error { return s.errs }

func (s *stubSession) Close() error {
	atomic.AddInt32(&s.closed, 1)
	return nil
}

type stubEval struct {
	fn func(code string) (interface{}, error)
}

func (e *stubEval) Eval(ctx context.Context, code string) (interface{}, error) {
	if e.fn != nil {
		return e.fn(code)
	}
	return nil, nil
}

type stubRunner struct {
	result  *agent.RunResult
	err     error
	calls   int32
	started chan struct{}
	release chan struct{}
}

func (r *stubRunner) Run(ctx context.Context, instruction string) (*agent.RunResult, error) {
	atomic.AddInt32(&r.calls, 1)
	if r.started != nil {
		close(r.started)
	}
	if r.release != nil {
		<-r.release
	}
	return r.result, r.err
}

func okResult() *agent.RunResult {
	return &agent.RunResult{
		Steps: []agent.StepResult{{
			Step: 1,
			Actions: []agent.ActionResult{{
				Action:  agent.ActionDescriptor{Type: "click", Target: "#go"},
				Success: true,
			}},
		}},
		GoalAchieved: true,
		TotalSteps:   1,
	}
}

// runShell drives the loop over the given input and returns its output.
func runShell(t *testing.T, input string, session *stubSession, eval Evaluator, runner agent.Runner) string {
	t.Helper()
	var out syncBuffer
	sh := New(Params{
		Session: session,
		Eval:    eval,
		Runner:  runner,
		In:      strings.NewReader(input),
		Out:     &out,
		Now:     fixedClock,
	})
	require.NoError(t, sh.Run(context.Background()))
	return out.String()
}

func TestRun_ExitTearsDownOnce(t *testing.T) {
	defer goleak.VerifyNone(t)

	session := newStubSession()
	out := runShell(t, ".exit\n", session, &stubEval{}, &stubRunner{})

	assert.Equal(t, int32(1), atomic.LoadInt32(&session.closed))
	assert.Contains(t, out, Prompt)
}

func TestRun_EOFTearsDownOnce(t *testing.T) {
	session := newStubSession()
	runShell(t, "", session, &stubEval{}, &stubRunner{})

	assert.Equal(t, int32(1), atomic.LoadInt32(&session.closed))
}

func TestRun_EmptyLineReprompts(t *testing.T) {
	session := newStubSession()
	out := runShell(t, "\n\n.exit\n", session, &stubEval{}, &stubRunner{})

	assert.Equal(t, 3, strings.Count(out, Prompt))
}

func TestRun_URLBranch(t *testing.T) {
	session := newStubSession()
	out := runShell(t, ":url\n.exit\n", session, &stubEval{}, &stubRunner{})

	assert.Contains(t, out, "https://example.com")
}

func TestRun_URLBranchError(t *testing.T) {
	session := newStubSession()
	session.urlErr = errors.New("target closed")
	out := runShell(t, ":url\n.exit\n", session, &stubEval{}, &stubRunner{})

	assert.Contains(t, out, "target closed")
	// The loop survives the error and reaches .exit.
	assert.Equal(t, int32(1), atomic.LoadInt32(&session.closed))
}

func TestRun_ScreenshotBranch(t *testing.T) {
	session := newStubSession()
	out := runShell(t, ":screenshot /tmp/shot.png\n.exit\n", session, &stubEval{}, &stubRunner{})

	assert.Equal(t, []string{"/tmp/shot.png"}, session.shots)
	assert.Contains(t, out, "Saved screenshot to /tmp/shot.png")
}

func TestRun_ScreenshotDefaultPath(t *testing.T) {
	session := newStubSession()
	runShell(t, ":screenshot\n.exit\n", session, &stubEval{}, &stubRunner{})

	require.Len(t, session.shots, 1)
	assert.Equal(t, "screenshot-1700000000000.png", session.shots[0])
}

func TestRun_EvalPrintsValue(t *testing.T) {
	session := newStubSession()
	eval := &stubEval{fn: func(code string) (interface{}, error) {
		assert.Equal(t, "1 + 1", code)
		return int64(2), nil
	}}
	out := runShell(t, ":js 1 + 1\n.exit\n", session, eval, &stubRunner{})

	assert.Contains(t, out, "2\n")
}

func TestRun_EvalNilValuePrintsNothing(t *testing.T) {
	session := newStubSession()
	out := runShell(t, ":js session.navigate('x')\n.exit\n", session, &stubEval{}, &stubRunner{})

	// Output is just the prompts; the undefined sentinel is not printed.
	assert.Equal(t, Prompt+Prompt, out)
}

func TestRun_EvalErrorDoesNotCrashLoop(t *testing.T) {
	session := newStubSession()
	eval := &stubEval{fn: func(code string) (interface{}, error) {
		return nil, errors.New("ReferenceError: nope is not defined")
	}}
	out := runShell(t, ":js nope\n:url\n.exit\n", session, eval, &stubRunner{})

	assert.Contains(t, out, "ReferenceError")
	assert.Contains(t, out, "https://example.com")
}

func TestRun_AgentSuccess(t *testing.T) {
	session := newStubSession()
	runner := &stubRunner{result: okResult()}
	out := runShell(t, "click the go button\n.exit\n", session, &stubEval{}, runner)

	assert.Equal(t, int32(1), atomic.LoadInt32(&runner.calls))
	assert.Contains(t, out, `click "#go"`)
	assert.Contains(t, out, "Goal achieved in 1 step(s).")
}

func TestRun_AgentFailurePrintsHint(t *testing.T) {
	session := newStubSession()
	runner := &stubRunner{err: errors.New("ECONNREFUSED: connect failed")}
	out := runShell(t, "do a thing\n.exit\n", session, &stubEval{}, runner)

	assert.Contains(t, out, "ECONNREFUSED: connect failed")
	assert.Contains(t, out, hintNetwork)
}

func TestRun_SingleFlightDropsLines(t *testing.T) {
	session := newStubSession()
	runner := &stubRunner{
		result:  okResult(),
		started: make(chan struct{}),
		release: make(chan struct{}),
	}

	pr, pw := io.Pipe()
	var out syncBuffer
	sh := New(Params{
		Session: session,
		Eval:    &stubEval{},
		Runner:  runner,
		In:      pr,
		Out:     &out,
		Now:     fixedClock,
	})

	done := make(chan error, 1)
	go func() { done <- sh.Run(context.Background()) }()

	_, err := io.WriteString(pw, "first instruction\n")
	require.NoError(t, err)
	<-runner.started

	// These lines arrive while processing; they are dropped without output.
	_, err = io.WriteString(pw, "second instruction\n:url\n")
	require.NoError(t, err)
	time.Sleep(50 * time.Millisecond)

	close(runner.release)
	assert.Eventually(t, func() bool {
		return strings.Contains(out.String(), "Goal achieved")
	}, time.Second, 5*time.Millisecond)

	_, err = io.WriteString(pw, ".exit\n")
	require.NoError(t, err)
	require.NoError(t, <-done)

	assert.Equal(t, int32(1), atomic.LoadInt32(&runner.calls))
	assert.NotContains(t, out.String(), "https://example.com")
	assert.Equal(t, int32(1), atomic.LoadInt32(&session.closed))
	pw.Close()
}

func TestRun_BackgroundErrorRecovers(t *testing.T) {
	session := newStubSession()

	pr, pw := io.Pipe()
	var out syncBuffer
	sh := New(Params{
		Session: session,
		Eval:    &stubEval{},
		Runner:  &stubRunner{},
		In:      pr,
		Out:     &out,
		Now:     fixedClock,
	})

	done := make(chan error, 1)
	go func() { done <- sh.Run(context.Background()) }()

	session.errs <- errors.New("browser process crashed: network down")
	assert.Eventually(t, func() bool {
		return strings.Contains(out.String(), "browser process crashed")
	}, time.Second, 5*time.Millisecond)
	assert.Contains(t, out.String(), hintNetwork)

	// The loop is still serving commands.
	_, err := io.WriteString(pw, ":url\n.exit\n")
	require.NoError(t, err)
	require.NoError(t, <-done)
	assert.Contains(t, out.String(), "https://example.com")
	pw.Close()
}

func TestRun_ContextCancelTearsDown(t *testing.T) {
	session := newStubSession()
	pr, pw := io.Pipe()
	defer pw.Close()

	sh := New(Params{
		Session: session,
		Eval:    &stubEval{},
		Runner:  &stubRunner{},
		In:      pr,
		Out:     io.Discard,
		Now:     fixedClock,
	})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- sh.Run(ctx) }()

	cancel()
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("loop did not stop on context cancellation")
	}
	assert.Equal(t, int32(1), atomic.LoadInt32(&session.closed))
}

func TestRun_HistoryRecordsBranches(t *testing.T) {
	session := newStubSession()
	dbPath := t.TempDir() + "/history.db"
	history, err := NewHistory(dbPath, zap.NewNop())
	require.NoError(t, err)

	var out syncBuffer
	sh := New(Params{
		Session: session,
		Eval:    &stubEval{},
		Runner:  &stubRunner{result: okResult()},
		History: history,
		In:      strings.NewReader(":js 1\nopen the page\n.exit\n"),
		Out:     &out,
		Now:     fixedClock,
	})
	require.NoError(t, sh.Run(context.Background()))

	// Teardown closed the history database with the session; reopen to read.
	reopened, err := NewHistory(dbPath, zap.NewNop())
	require.NoError(t, err)
	defer reopened.Close()
	entries, err := reopened.Recent(10)
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, "agent", entries[0].Branch)
	assert.Equal(t, "js", entries[1].Branch)
}
