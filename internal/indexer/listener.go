package indexer

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
)

// Listener is told about every project written to the index
type Listener interface {
	OnProjectIndexed(ctx context.Context, name string) error
}

// ListenerFunc adapts a function to Listener
type ListenerFunc func(ctx context.Context, name string) error

func (f ListenerFunc) OnProjectIndexed(ctx context.Context, name string) error {
	return f(ctx, name)
}

// Notifier delivers "project indexed" events to its listeners synchronously.
// A failing or panicking listener is logged and never affects the caller or
// the remaining listeners.
type Notifier struct {
	mu        sync.RWMutex
	listeners []Listener
	logger    *slog.Logger
}

// NewNotifier creates a notifier with an initial set of listeners
func NewNotifier(logger *slog.Logger, listeners ...Listener) *Notifier {
	if logger == nil {
		logger = slog.Default()
	}
	return &Notifier{listeners: listeners, logger: logger}
}

// Add registers another listener
func (n *Notifier) Add(l Listener) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.listeners = append(n.listeners, l)
}

// Notify calls every listener in registration order
func (n *Notifier) Notify(ctx context.Context, name string) {
	if n == nil {
		return
	}
	n.mu.RLock()
	listeners := append([]Listener(nil), n.listeners...)
	n.mu.RUnlock()

	for i, l := range listeners {
		if err := n.call(ctx, l, name); err != nil {
			n.logger.Warn("project indexed listener failed",
				"listener", i,
				"project", name,
				"error", err)
		}
	}
}

func (n *Notifier) call(ctx context.Context, l Listener, name string) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic: %v", r)
		}
	}()
	return l.OnProjectIndexed(ctx, name)
}
