// ABOUTME: Bridge connecting canvas store events to the Bubble Tea message loop.
// ABOUTME: Provides EventBridge for buffered event delivery, and tea.Cmd factories for events and ticks.
package tui

import (
	"time"

	"github.com/2389-research/flowcanvas/canvas"
	tea "github.com/charmbracelet/bubbletea"
)

// EventBridge forwards store events into a buffered channel. Store listeners
// run on the mutating goroutine, which is often the Bubble Tea loop itself,
// so delivery never blocks: events beyond the buffer are dropped. The view
// re-reads the store on every message, so a dropped event only loses a log line.
type EventBridge struct {
	ch          chan canvas.Event
	unsubscribe func()
}

// NewEventBridge subscribes to store with room for buffer pending events.
func NewEventBridge(store *canvas.Store, buffer int) *EventBridge {
	if buffer <= 0 {
		buffer = 256
	}
	b := &EventBridge{ch: make(chan canvas.Event, buffer)}
	b.unsubscribe = store.Subscribe(b.handle)
	return b
}

func (b *EventBridge) handle(ev canvas.Event) {
	select {
	case b.ch <- ev:
	default:
	}
}

// Events returns the channel WaitForEventCmd reads from.
func (b *EventBridge) Events() <-chan canvas.Event {
	return b.ch
}

// Close stops forwarding. The channel is left open for readers still waiting.
func (b *EventBridge) Close() {
	b.unsubscribe()
}

// WaitForEventCmd returns a tea.Cmd that blocks on ch and delivers the next
// event as a CanvasEventMsg.
func WaitForEventCmd(ch <-chan canvas.Event) tea.Cmd {
	return func() tea.Msg {
		ev, ok := <-ch
		if !ok {
			return nil
		}
		return CanvasEventMsg{Event: ev}
	}
}

// TickCmd returns a tea.Cmd that sends a TickMsg after the given interval.
// Used for spinner animation and generation progress.
func TickCmd(interval time.Duration) tea.Cmd {
	return tea.Tick(interval, func(t time.Time) tea.Msg {
		return TickMsg{Time: t}
	})
}
