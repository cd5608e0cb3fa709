package shell

import (
	"fmt"
	"io"
	"sync"
	"time"
)

// spinnerFrames contains the braille spinner animation frames.
var spinnerFrames = []string{"⠋", "⠙", "⠹", "⠸", "⠼", "⠴", "⠦", "⠧", "⠇", "⠏"}

const spinnerInterval = 80 * time.Millisecond

// Spinner animates a single-line busy indicator. The loop holds at most one
// and starts it only for the agent branch. Stop is a safe no-op when the
// spinner is not running.
type Spinner struct {
	writer   io.Writer
	frames   []string
	interval time.Duration

	mu      sync.Mutex
	running bool
	stop    chan struct{}
	done    chan struct{}
}

func NewSpinner(writer io.Writer) *Spinner {
	return &Spinner{
		writer:   writer,
		frames:   spinnerFrames,
		interval: spinnerInterval,
	}
}

// Start renders frame 0 immediately and then advances the animation every
// interval, rewriting the same line in place. Calling Start while already
// running is a no-op.
func (s *Spinner) Start(label string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.running {
		return
	}
	s.running = true
	s.stop = make(chan struct{})
	s.done = make(chan struct{})
	go s.run(label, s.stop, s.done)
}

func (s *Spinner) run(label string, stop <-chan struct{}, done chan<- struct{}) {
	defer close(done)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	frameIndex := 0
	s.renderFrame(frameIndex, label)

	for {
		select {
		case <-stop:
			s.clearLine()
			return
		case <-ticker.C:
			frameIndex = (frameIndex + 1) % len(s.frames)
			s.renderFrame(frameIndex, label)
		}
	}
}

// Stop cancels the animation and clears the rendered line, blocking until the
// line has been cleared so the caller's next write starts clean.
func (s *Spinner) Stop() {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return
	}
	s.running = false
	stop, done := s.stop, s.done
	s.mu.Unlock()

	close(stop)
	<-done
}

// IsRunning reports whether the spinner is animating.
func (s *Spinner) IsRunning() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.running
}

// renderFrame rewrites the spinner line: cursor to column 0, clear, redraw.
func (s *Spinner) renderFrame(frameIndex int, label string) {
	frame := spinnerStyle.Render(s.frames[frameIndex])
	if label != "" {
		fmt.Fprintf(s.writer, "\r\033[K%s %s", frame, label)
		return
	}
	fmt.Fprintf(s.writer, "\r\033[K%s", frame)
}

func (s *Spinner) clearLine() {
	fmt.Fprintf(s.writer, "\r\033[K")
}
