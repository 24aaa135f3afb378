// ABOUTME: Defines the NodeStatus enum derived from a node's generation record.
// ABOUTME: Provides String/Icon methods and spinner animation frames for TUI rendering.
package tui

import "github.com/2389-research/flowcanvas/graph"

// NodeStatus is the display state of a node.
type NodeStatus int

const (
	NodeIdle       NodeStatus = iota // No generation, or idle
	NodeGenerating                   // A task is ticking
	NodeComplete                     // Holds an artifact
	NodeFailed                       // Last attempt failed
)

// StatusOf derives the display status from n's generation record.
func StatusOf(n graph.Node) NodeStatus {
	rec := n.Data.Generation
	switch {
	case rec == nil:
		return NodeIdle
	case rec.State == graph.GenerationGenerating:
		return NodeGenerating
	case rec.State == graph.GenerationComplete:
		return NodeComplete
	case rec.LastError != "":
		return NodeFailed
	default:
		return NodeIdle
	}
}

// String returns the lowercase name of the status.
func (s NodeStatus) String() string {
	switch s {
	case NodeIdle:
		return "idle"
	case NodeGenerating:
		return "generating"
	case NodeComplete:
		return "complete"
	case NodeFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// Icon returns a bracket-style status marker for TUI display.
func (s NodeStatus) Icon() string {
	switch s {
	case NodeIdle:
		return "[ ]"
	case NodeGenerating:
		return "[~]"
	case NodeComplete:
		return "[*]"
	case NodeFailed:
		return "[!]"
	default:
		return "[?]"
	}
}

// SpinnerFrames contains the Braille-dot animation frames for generating nodes.
var SpinnerFrames = []string{"⠋", "⠙", "⠹", "⠸", "⠼", "⠴", "⠦", "⠧", "⠇", "⠏"}
