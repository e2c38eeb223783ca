// Package progress draws a status line on a terminal while work is running.
package progress

import (
	"fmt"
	"io"
	"strings"
	"sync"
	"time"
)

var frames = []string{"⠋", "⠙", "⠹", "⠸", "⠼", "⠴", "⠦", "⠧", "⠇", "⠏"}

type Spinner struct {
	mu      sync.Mutex
	w       io.Writer
	message string
	frame   int

	started time.Time
	stop    chan struct{}
	done    chan struct{}
	once    sync.Once
}

// NewSpinner starts redrawing message and a spinner frame on w every
// interval until Stop is called.
func NewSpinner(w io.Writer, message string, interval time.Duration) *Spinner {
	s := &Spinner{
		w:       w,
		message: strings.TrimSpace(message),
		started: time.Now(),
		stop:    make(chan struct{}),
		done:    make(chan struct{}),
	}

	// hide cursor
	fmt.Fprint(w, "\033[?25l")
	s.render()

	go s.run(interval)
	return s
}

func (s *Spinner) String() string {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.message == "" {
		return frames[s.frame]
	}
	return s.message + " " + frames[s.frame]
}

func (s *Spinner) render() {
	fmt.Fprint(s.w, "\033[1G", s.String(), "\033[K")
}

func (s *Spinner) run(interval time.Duration) {
	defer close(s.done)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-s.stop:
			return
		case <-ticker.C:
			s.mu.Lock()
			s.frame = (s.frame + 1) % len(frames)
			s.mu.Unlock()
			s.render()
		}
	}
}

// Stop clears the status line and returns how long the spinner ran. It is
// safe to call more than once.
func (s *Spinner) Stop() time.Duration {
	s.once.Do(func() {
		close(s.stop)
		<-s.done
		// clear line, show cursor
		fmt.Fprint(s.w, "\033[2K", "\033[1G", "\033[?25h")
	})
	return time.Since(s.started)
}
