// ABOUTME: Single-node clipboard for the canvas store: set, copy the selection, and paste at a position.
// ABOUTME: Entries hold authored data only, so pasted nodes never carry upstream content.
package canvas

import (
	"github.com/2389-research/flowcanvas/graph"
	"go.uber.org/zap"
)

// SetClipboard replaces the clipboard; nil clears it. Entries with an
// unknown category are rejected.
func (s *Store) SetClipboard(entry *ClipboardEntry) bool {
	return s.mutate("set_clipboard", func() (Event, bool) {
		if entry == nil {
			s.clipboard = nil
			return Event{Kind: EventClipboardChanged}, true
		}
		if !entry.Category.Valid() {
			return Event{}, false
		}
		c := ClipboardEntry{
			Category: entry.Category,
			Data:     entry.Data.Sanitized().Authored(),
			Style:    entry.clone().Style,
		}
		s.clipboard = &c
		return Event{Kind: EventClipboardChanged}, true
	})
}

// Clipboard returns a copy of the current clipboard entry, if any.
func (s *Store) Clipboard() (ClipboardEntry, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.clipboard == nil {
		return ClipboardEntry{}, false
	}
	return s.clipboard.clone(), true
}

// CopySelection puts the selected node on the clipboard.
func (s *Store) CopySelection() bool {
	return s.mutate("copy_selection", func() (Event, bool) {
		if s.selection == "" {
			return Event{}, false
		}
		i := s.indexOf(s.selection)
		if i < 0 {
			s.logger.Warn("selection references a missing node", zap.String("node", s.selection))
			s.selection = ""
			return Event{}, false
		}
		n := s.nodes[i].Clone()
		s.clipboard = &ClipboardEntry{
			Category: n.Category,
			Data:     n.Data.Authored(),
			Style:    n.Style,
		}
		return Event{Kind: EventClipboardChanged, NodeIDs: []string{n.ID}}, true
	})
}

// PasteClipboard creates a selected node from the clipboard at pos and
// returns its id. The clipboard is left in place for repeated pastes.
func (s *Store) PasteClipboard(pos graph.Position) string {
	var id string
	s.mutate("paste_clipboard", func() (Event, bool) {
		if s.clipboard == nil {
			return Event{}, false
		}
		candidate := s.newID()
		if s.indexOf(candidate) >= 0 {
			s.logger.Warn("id generator returned an existing node id", zap.String("node", candidate))
			return Event{}, false
		}
		s.record()

		entry := s.clipboard.clone()
		n := newNode(candidate, entry.Category, pos, entry.Data)
		n.Style = entry.Style
		n.Fresh = true
		s.nodes = append(s.nodes, n)
		s.selectLocked(candidate)

		id = candidate
		return Event{Kind: EventNodeAdded, NodeIDs: []string{candidate}}, true
	})
	return id
}
