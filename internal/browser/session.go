// File: internal/browser/session.go
package browser

import (
	"context"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/chromedp/cdproto/inspector"
	"github.com/chromedp/cdproto/page"
	cdpruntime "github.com/chromedp/cdproto/runtime"
	"github.com/chromedp/chromedp"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/dkovalq/pagepilot-cli/internal/config"
)

// Session owns one headless browser target for the lifetime of a shell
// invocation. It is the single shared automation resource; callers must not
// issue overlapping operations against it (the shell loop's single-flight
// invariant guarantees this).
type Session struct {
	id     string
	logger *zap.Logger
	cfg    config.BrowserConfig

	allocCtx    context.Context
	allocCancel context.CancelFunc
	ctx         context.Context
	cancel      context.CancelFunc

	// errs carries asynchronous failures that escape the normal
	// request/response path (target crash, inspector detach). The shell loop
	// subscribes to it for the duration of its run.
	errs chan error

	closeOnce sync.Once
	closeErr  error
}

// NewSession launches the browser and attaches the background failure
// listener. The caller must Close the session exactly once.
func NewSession(parent context.Context, cfg config.BrowserConfig, logger *zap.Logger) (*Session, error) {
	sessionID := uuid.New().String()
	log := logger.Named("browser").With(zap.String("session_id", sessionID))

	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", cfg.Headless),
		chromedp.WindowSize(cfg.WindowWidth, cfg.WindowHeight),
	)
	if cfg.UserAgent != "" {
		opts = append(opts, chromedp.UserAgent(cfg.UserAgent))
	}
	if cfg.IgnoreTLSErrors {
		opts = append(opts, chromedp.Flag("ignore-certificate-errors", true))
	}

	allocCtx, allocCancel := chromedp.NewExecAllocator(parent, opts...)
	ctx, cancel := chromedp.NewContext(allocCtx, chromedp.WithLogf(func(format string, args ...interface{}) {
		log.Sugar().Debugf(format, args...)
	}))

	s := &Session{
		id:          sessionID,
		logger:      log,
		cfg:         cfg,
		allocCtx:    allocCtx,
		allocCancel: allocCancel,
		ctx:         ctx,
		cancel:      cancel,
		errs:        make(chan error, 4),
	}

	// Starting the browser eagerly surfaces launch failures (missing binary,
	// sandbox restrictions) as initialization errors instead of failing the
	// first command.
	startCtx, startCancel := context.WithTimeout(ctx, cfg.NavigationTimeout)
	defer startCancel()
	if err := chromedp.Run(startCtx); err != nil {
		cancel()
		allocCancel()
		return nil, fmt.Errorf("failed to launch browser: %w", err)
	}

	chromedp.ListenTarget(ctx, s.watchTarget)

	log.Info("Browser session started", zap.Bool("headless", cfg.Headless))
	return s, nil
}

// watchTarget translates CDP lifecycle events into background errors.
// It runs on chromedp's event goroutine; sends must never block.
func (s *Session) watchTarget(ev interface{}) {
	switch e := ev.(type) {
	case *inspector.EventTargetCrashed:
		s.postBackgroundErr(fmt.Errorf("browser target crashed"))
	case *inspector.EventDetached:
		s.postBackgroundErr(fmt.Errorf("browser connection detached: %s", e.Reason))
	}
}

func (s *Session) postBackgroundErr(err error) {
	select {
	case s.errs <- err:
	default:
		s.logger.Warn("Dropping background browser error, channel full", zap.Error(err))
	}
}

// Errs exposes asynchronous session failures. The channel is never closed;
// the subscription ends when the consumer stops selecting on it.
func (s *Session) Errs() <-chan error {
	return s.errs
}

// run executes chromedp actions against the session target, bounding them by
// both the operational context and a timeout.
func (s *Session) run(ctx context.Context, timeout time.Duration, actions ...chromedp.Action) error {
	// The chromedp context carries the CDP target; the operational context
	// only contributes cancellation.
	opCtx, opCancel := context.WithTimeout(s.ctx, timeout)
	defer opCancel()

	stop := propagateCancel(ctx, opCancel)
	defer stop()

	return chromedp.Run(opCtx, actions...)
}

// propagateCancel cancels via cancelFn when ctx ends, until the returned stop
// function is called.
func propagateCancel(ctx context.Context, cancelFn context.CancelFunc) func() {
	done := make(chan struct{})
	go func() {
		select {
		case <-ctx.Done():
			cancelFn()
		case <-done:
		}
	}()
	return func() { close(done) }
}

// CurrentURL returns the document location of the active target.
func (s *Session) CurrentURL(ctx context.Context) (string, error) {
	var loc string
	if err := s.run(ctx, 10*time.Second, chromedp.Location(&loc)); err != nil {
		return "", fmt.Errorf("failed to query current URL: %w", err)
	}
	return loc, nil
}

// Navigate loads the given URL and waits for the load event.
func (s *Session) Navigate(ctx context.Context, url string) error {
	if err := s.run(ctx, s.cfg.NavigationTimeout, chromedp.Navigate(url)); err != nil {
		return fmt.Errorf("navigation to %s failed: %w", url, err)
	}
	return nil
}

// CaptureScreenshot writes a full-viewport PNG to path.
func (s *Session) CaptureScreenshot(ctx context.Context, path string) error {
	var buf []byte
	err := s.run(ctx, s.cfg.NavigationTimeout, chromedp.ActionFunc(func(cctx context.Context) error {
		var err error
		buf, err = page.CaptureScreenshot().WithFormat(page.CaptureScreenshotFormatPng).Do(cctx)
		return err
	}))
	if err != nil {
		return fmt.Errorf("screenshot capture failed: %w", err)
	}
	if err := os.WriteFile(path, buf, 0o644); err != nil {
		return fmt.Errorf("failed to write screenshot to %s: %w", path, err)
	}
	return nil
}

// Eval evaluates a JavaScript expression in the page, awaiting promises.
func (s *Session) Eval(ctx context.Context, expr string) (interface{}, error) {
	var result interface{}
	err := s.run(ctx, s.cfg.NavigationTimeout,
		chromedp.Evaluate(expr, &result, func(p *cdpruntime.EvaluateParams) *cdpruntime.EvaluateParams {
			return p.WithAwaitPromise(true)
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("page evaluation failed: %w", err)
	}
	return result, nil
}

// Click dispatches a click on the first node matching the selector.
func (s *Session) Click(ctx context.Context, selector string) error {
	if err := s.run(ctx, 15*time.Second, chromedp.Click(selector, chromedp.ByQuery)); err != nil {
		return fmt.Errorf("click on %q failed: %w", selector, err)
	}
	return nil
}

// Type clears the matching field and types text into it.
func (s *Session) Type(ctx context.Context, selector, text string) error {
	err := s.run(ctx, 15*time.Second,
		chromedp.Clear(selector, chromedp.ByQuery),
		chromedp.SendKeys(selector, text, chromedp.ByQuery),
	)
	if err != nil {
		return fmt.Errorf("typing into %q failed: %w", selector, err)
	}
	return nil
}

// Scroll moves the viewport vertically by dy pixels.
func (s *Session) Scroll(ctx context.Context, dy int) error {
	expr := fmt.Sprintf("window.scrollBy(0, %d); true", dy)
	var ignored bool
	if err := s.run(ctx, 10*time.Second, chromedp.Evaluate(expr, &ignored)); err != nil {
		return fmt.Errorf("scroll failed: %w", err)
	}
	return nil
}

// WaitVisible blocks until the selector matches a visible node.
func (s *Session) WaitVisible(ctx context.Context, selector string) error {
	if err := s.run(ctx, 15*time.Second, chromedp.WaitVisible(selector, chromedp.ByQuery)); err != nil {
		return fmt.Errorf("wait for %q failed: %w", selector, err)
	}
	return nil
}

// Close tears down the browser exactly once. Safe against double calls, but
// the shell loop is the only caller and calls it once.
func (s *Session) Close() error {
	s.closeOnce.Do(func() {
		s.logger.Info("Closing browser session")

		// chromedp.Cancel blocks until the browser process exits; bound it.
		done := make(chan error, 1)
		go func() { done <- chromedp.Cancel(s.ctx) }()
		select {
		case err := <-done:
			if err != nil && err != context.Canceled {
				s.closeErr = err
			}
		case <-time.After(10 * time.Second):
			s.closeErr = fmt.Errorf("browser shutdown timed out")
		}

		s.cancel()
		s.allocCancel()
	})
	return s.closeErr
}
