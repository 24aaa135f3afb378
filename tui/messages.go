// ABOUTME: Bubble Tea message types used in the TUI message loop.
// ABOUTME: Each type wraps domain events for the tea.Msg interface (which is interface{}).
package tui

import (
	"time"

	"github.com/2389-research/flowcanvas/canvas"
)

// CanvasEventMsg wraps a canvas.Event for the Bubble Tea message loop.
type CanvasEventMsg struct {
	Event canvas.Event
}

// TickMsg is sent periodically to update spinners and progress.
type TickMsg struct {
	Time time.Time
}
