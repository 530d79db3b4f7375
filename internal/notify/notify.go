// Package notify shows message payloads to the user.
package notify

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"sync"

	"github.com/rs/zerolog"
)

// Notifier presents a text to the user. Implementations must pass the text
// through unmodified.
type Notifier interface {
	Notify(ctx context.Context, text string) error
}

// New returns the notifier registered under kind.
func New(kind string, in io.Reader, out io.Writer, log zerolog.Logger) (Notifier, error) {
	switch kind {
	case "alert":
		return NewAlert(in, out), nil
	case "log":
		return NewLog(log), nil
	default:
		return nil, fmt.Errorf("unknown notifier: %s", kind)
	}
}

const dismissPrompt = "[press Enter to dismiss]"

// Alert blocks every notification until the user acknowledges it with a line
// on the input. Only one alert is on screen at a time, and only lines read
// while an alert is showing count as acknowledgements.
type Alert struct {
	out io.Writer
	in  io.Reader

	mu sync.Mutex

	pendingMu sync.Mutex
	pending   chan struct{}

	eof chan struct{}
}

// NewAlert starts reading in right away so that input typed while no alert
// is showing is discarded instead of dismissing the next one.
func NewAlert(in io.Reader, out io.Writer) *Alert {
	a := &Alert{
		in:  in,
		out: out,
		eof: make(chan struct{}),
	}
	go a.readAcks()
	return a
}

func (a *Alert) Notify(ctx context.Context, text string) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	ack := make(chan struct{}, 1)
	a.setPending(ack)
	defer a.setPending(nil)

	if _, err := fmt.Fprintf(a.out, "%s\n%s\n", text, dismissPrompt); err != nil {
		return fmt.Errorf("failed to write alert: %w", err)
	}

	select {
	case <-ack:
		return nil
	case <-a.eof:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (a *Alert) setPending(ack chan struct{}) {
	a.pendingMu.Lock()
	a.pending = ack
	a.pendingMu.Unlock()
}

// readAcks hands each input line to the alert on screen, if any, and drops
// it otherwise. It never blocks on a notifier and returns when the input is
// exhausted; from then on alerts stop blocking.
func (a *Alert) readAcks() {
	defer close(a.eof)

	scanner := bufio.NewScanner(a.in)
	for scanner.Scan() {
		a.pendingMu.Lock()
		if a.pending != nil {
			a.pending <- struct{}{}
			a.pending = nil
		}
		a.pendingMu.Unlock()
	}
}

// Log writes notifications to a zerolog logger and never blocks.
type Log struct {
	log zerolog.Logger
}

func NewLog(log zerolog.Logger) *Log {
	return &Log{log: log}
}

func (l *Log) Notify(_ context.Context, text string) error {
	// NoLevel passes any level filter: a notification must not be hidden by
	// logging.level.
	l.log.WithLevel(zerolog.NoLevel).Str("data", text).Msg("notification")
	return nil
}
