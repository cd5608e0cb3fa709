// File: internal/browser/jsexec/runtime.go
package jsexec

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/dop251/goja"
	"github.com/dop251/goja_nodejs/eventloop"
	"go.uber.org/zap"

	"github.com/dkovalq/pagepilot-cli/internal/browser"
)

// Page is the slice of the browser session exposed to user scripts. The
// runtime never reaches past it, so tests can drive it with a stub.
type Page interface {
	CurrentURL(ctx context.Context) (string, error)
	Navigate(ctx context.Context, url string) error
	CaptureScreenshot(ctx context.Context, path string) error
	Click(ctx context.Context, selector string) error
	Type(ctx context.Context, selector, text string) error
	Eval(ctx context.Context, expr string) (interface{}, error)
	QueryOne(ctx context.Context, selector string) (*browser.Element, error)
	QueryAll(ctx context.Context, selector string) ([]browser.Element, error)
}

// DefaultTimeout bounds a script run when the caller's context carries no
// deadline.
const DefaultTimeout = 30 * time.Second

// Runtime hosts a persistent goja environment for the shell's inline
// evaluation escape hatch. Scripts run with the same privileges as the host
// process; the bindings are the only sanctioned bridge to the browser.
type Runtime struct {
	loop   *eventloop.EventLoop
	logger *zap.Logger
	page   Page

	// execMu serializes script execution; the VM is not goroutine safe and
	// the shell runs one foreground operation at a time anyway.
	execMu sync.Mutex
	// ctx is the context of the in-flight Eval, read by the bindings.
	ctxMu sync.RWMutex
	ctx   context.Context

	vmMu sync.Mutex
	vm   *goja.Runtime
}

type evalOutcome struct {
	value interface{}
	err   error
}

// NewRuntime starts the event loop and installs the script bindings:
// `session` (url/navigate/screenshot/click/type/eval), `query`, `queryAll`.
func NewRuntime(logger *zap.Logger, page Page) *Runtime {
	if logger == nil {
		logger = zap.NewNop()
	}
	r := &Runtime{
		loop:   eventloop.NewEventLoop(),
		logger: logger.Named("jsexec"),
		page:   page,
	}
	r.loop.Start()

	installed := make(chan struct{})
	r.loop.RunOnLoop(func(vm *goja.Runtime) {
		r.install(vm)
		r.vmMu.Lock()
		r.vm = vm
		r.vmMu.Unlock()
		close(installed)
	})
	<-installed
	return r
}

// Close stops the event loop. The runtime is unusable afterwards.
func (r *Runtime) Close() {
	r.loop.Stop()
}

func (r *Runtime) callCtx() context.Context {
	r.ctxMu.RLock()
	defer r.ctxMu.RUnlock()
	if r.ctx != nil {
		return r.ctx
	}
	return context.Background()
}

// install wires the Go bindings into the VM. Runs on the loop goroutine.
func (r *Runtime) install(vm *goja.Runtime) {
	session := vm.NewObject()
	_ = session.Set("url", func() (string, error) {
		return r.page.CurrentURL(r.callCtx())
	})
	_ = session.Set("navigate", func(url string) error {
		return r.page.Navigate(r.callCtx(), url)
	})
	_ = session.Set("screenshot", func(path string) error {
		return r.page.CaptureScreenshot(r.callCtx(), path)
	})
	_ = session.Set("click", func(selector string) error {
		return r.page.Click(r.callCtx(), selector)
	})
	_ = session.Set("type", func(selector, text string) error {
		return r.page.Type(r.callCtx(), selector, text)
	})
	_ = session.Set("eval", func(expr string) (interface{}, error) {
		return r.page.Eval(r.callCtx(), expr)
	})
	_ = vm.Set("session", session)

	_ = vm.Set("query", func(selector string) (*browser.Element, error) {
		return r.page.QueryOne(r.callCtx(), selector)
	})
	_ = vm.Set("queryAll", func(selector string) ([]browser.Element, error) {
		return r.page.QueryAll(r.callCtx(), selector)
	})
}

// wrapBody turns the user's snippet into an async function body. A body that
// already starts with a return or await continuation is used verbatim;
// anything else is wrapped so its value is returned.
func wrapBody(body string) string {
	trimmed := strings.TrimSpace(body)
	if !strings.HasPrefix(trimmed, "return") && !strings.HasPrefix(trimmed, "await") {
		trimmed = "return (" + trimmed + ");"
	}
	return "(async function() {\n" + trimmed + "\n})()"
}

// Eval runs one snippet to settlement. A nil result means the script produced
// the undefined/null sentinel and nothing should be printed.
func (r *Runtime) Eval(ctx context.Context, body string) (interface{}, error) {
	r.execMu.Lock()
	defer r.execMu.Unlock()

	if _, hasDeadline := ctx.Deadline(); !hasDeadline {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, DefaultTimeout)
		defer cancel()
	}

	r.ctxMu.Lock()
	r.ctx = ctx
	r.ctxMu.Unlock()
	defer func() {
		r.ctxMu.Lock()
		r.ctx = nil
		r.ctxMu.Unlock()
	}()

	script := wrapBody(body)
	outcomes := make(chan evalOutcome, 1)

	r.loop.RunOnLoop(func(vm *goja.Runtime) {
		settle := func(o evalOutcome) {
			select {
			case outcomes <- o:
			default:
			}
		}

		_ = vm.Set("__resolve", func(v goja.Value) {
			settle(evalOutcome{value: exportValue(v)})
		})
		_ = vm.Set("__reject", func(v goja.Value) {
			settle(evalOutcome{err: fmt.Errorf("script error: %s", v.String())})
		})

		promise, err := vm.RunString(script)
		if err != nil {
			settle(evalOutcome{err: normalizeJSError(err)})
			return
		}

		// The wrapper always yields a promise; chain the settlement
		// callbacks through plain JS to stay on the loop goroutine.
		_ = vm.Set("__pending", promise)
		if _, err := vm.RunString("__pending.then(__resolve, __reject); undefined"); err != nil {
			settle(evalOutcome{err: normalizeJSError(err)})
		}
	})

	select {
	case outcome := <-outcomes:
		return outcome.value, outcome.err
	case <-ctx.Done():
		r.interrupt()
		return nil, fmt.Errorf("script execution interrupted: %w", ctx.Err())
	}
}

// interrupt aborts the currently running script, if any.
func (r *Runtime) interrupt() {
	r.vmMu.Lock()
	if r.vm != nil {
		r.vm.Interrupt("context cancelled")
	}
	r.vmMu.Unlock()
	// Re-arm the VM once the interrupted job has unwound; the queued job
	// runs strictly after it.
	r.loop.RunOnLoop(func(vm *goja.Runtime) {
		vm.ClearInterrupt()
	})
}

func exportValue(v goja.Value) interface{} {
	if v == nil || goja.IsUndefined(v) || goja.IsNull(v) {
		return nil
	}
	return v.Export()
}

func normalizeJSError(err error) error {
	if jsErr, ok := err.(*goja.Exception); ok {
		return fmt.Errorf("script exception: %s", jsErr.String())
	}
	if _, ok := err.(*goja.InterruptedError); ok {
		return fmt.Errorf("script execution interrupted")
	}
	return fmt.Errorf("script error: %w", err)
}
