// ABOUTME: Tests for the StyleForStatus helper.
// ABOUTME: Compares foreground colors since rendering in tests carries no color codes.
package tui

import (
	"testing"

	"github.com/charmbracelet/lipgloss"
)

func TestStyleForStatus(t *testing.T) {
	tests := []struct {
		status NodeStatus
		want   lipgloss.Style
	}{
		{NodeIdle, IdleStyle},
		{NodeGenerating, GeneratingStyle},
		{NodeComplete, CompleteStyle},
		{NodeFailed, FailedStyle},
		{NodeStatus(99), IdleStyle},
	}
	for _, tt := range tests {
		t.Run(tt.status.String(), func(t *testing.T) {
			got := StyleForStatus(tt.status)
			if got.GetForeground() != tt.want.GetForeground() || got.GetBold() != tt.want.GetBold() {
				t.Errorf("StyleForStatus(%v) returned the wrong style", tt.status)
			}
		})
	}
}
