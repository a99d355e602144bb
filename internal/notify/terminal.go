package notify

import (
	"context"
	"fmt"
	"io"
	"os"
	"sync"
)

// TerminalNotifier writes a one-line alert, optionally ringing the bell.
type TerminalNotifier struct {
	w    io.Writer
	bell bool
	mu   sync.Mutex
}

// NewTerminalNotifier writes to w, or stderr when w is nil.
func NewTerminalNotifier(w io.Writer, bell bool) *TerminalNotifier {
	if w == nil {
		w = os.Stderr
	}
	return &TerminalNotifier{w: w, bell: bell}
}

// Name returns the name of the notifier.
func (t *TerminalNotifier) Name() string {
	return "terminal"
}

// Send writes the notification title and message.
func (t *TerminalNotifier) Send(_ context.Context, n Notification) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	prefix := ""
	if t.bell {
		prefix = "\a"
	}
	_, err := fmt.Fprintf(t.w, "%s🔔 %s: %s\n", prefix, n.Title, n.Message)
	return err
}
