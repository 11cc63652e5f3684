package ui

import (
	"context"
	"sync/atomic"

	tea "github.com/charmbracelet/bubbletea"
	"go.uber.org/zap"

	"github.com/rovshanmuradov/launchpad/internal/events"
)

// EventForwarder is an events.Handler pushing events to the dashboard
// without blocking the bus.
type EventForwarder struct {
	msgChan chan tea.Msg
	sent    uint64
	dropped uint64
	logger  *zap.Logger
}

func NewEventForwarder(size int, logger *zap.Logger) *EventForwarder {
	if size <= 0 {
		size = 256
	}
	return &EventForwarder{msgChan: make(chan tea.Msg, size), logger: logger}
}

// Handle never blocks: when the dashboard lags, events are dropped since
// the next snapshot shows the resulting state anyway.
func (f *EventForwarder) Handle(_ context.Context, event events.Event) error {
	select {
	case f.msgChan <- EventMsg{Event: event}:
		atomic.AddUint64(&f.sent, 1)
	default:
		if atomic.AddUint64(&f.dropped, 1)%100 == 1 {
			f.logger.Warn("UI update dropped", zap.String("type", string(event.Type())))
		}
	}
	return nil
}

// Stats returns sent and dropped counts.
func (f *EventForwarder) Stats() (sent, dropped uint64) {
	return atomic.LoadUint64(&f.sent), atomic.LoadUint64(&f.dropped)
}

// Listen waits for the next forwarded event.
func (f *EventForwarder) Listen() tea.Cmd {
	return func() tea.Msg {
		return <-f.msgChan
	}
}
