// ABOUTME: Key bindings for canvas editing shortcuts and the context menu.
// ABOUTME: Bindings carry help text so the terminal host can render them.
package controller

import "github.com/charmbracelet/bubbles/key"

// KeyMap holds every binding the controller reacts to.
type KeyMap struct {
	Undo      key.Binding
	Redo      key.Binding
	Copy      key.Binding
	Paste     key.Binding
	Duplicate key.Binding
	Delete    key.Binding
	Submit    key.Binding
	Cancel    key.Binding
	AddNode   key.Binding

	PanLeft  key.Binding
	PanRight key.Binding
	PanUp    key.Binding
	PanDown  key.Binding

	MenuUp     key.Binding
	MenuDown   key.Binding
	MenuChoose key.Binding
}

// DefaultKeyMap returns the standard bindings.
func DefaultKeyMap() KeyMap {
	return KeyMap{
		Undo:      key.NewBinding(key.WithKeys("ctrl+z", "u"), key.WithHelp("u", "undo")),
		Redo:      key.NewBinding(key.WithKeys("ctrl+y", "ctrl+r"), key.WithHelp("ctrl+r", "redo")),
		Copy:      key.NewBinding(key.WithKeys("y"), key.WithHelp("y", "copy")),
		Paste:     key.NewBinding(key.WithKeys("ctrl+v", "p"), key.WithHelp("p", "paste")),
		Duplicate: key.NewBinding(key.WithKeys("ctrl+d", "d"), key.WithHelp("d", "duplicate")),
		Delete:    key.NewBinding(key.WithKeys("delete", "backspace", "x"), key.WithHelp("x", "delete")),
		Submit:    key.NewBinding(key.WithKeys("enter", "g"), key.WithHelp("g", "generate")),
		Cancel:    key.NewBinding(key.WithKeys("esc"), key.WithHelp("esc", "cancel")),
		AddNode:   key.NewBinding(key.WithKeys("a"), key.WithHelp("a", "add node")),

		PanLeft:  key.NewBinding(key.WithKeys("left", "h")),
		PanRight: key.NewBinding(key.WithKeys("right", "l")),
		PanUp:    key.NewBinding(key.WithKeys("up", "k")),
		PanDown:  key.NewBinding(key.WithKeys("down", "j")),

		MenuUp:     key.NewBinding(key.WithKeys("up", "k")),
		MenuDown:   key.NewBinding(key.WithKeys("down", "j")),
		MenuChoose: key.NewBinding(key.WithKeys("enter")),
	}
}

// ShortHelp lists the bindings shown in a status line.
func (k KeyMap) ShortHelp() []key.Binding {
	return []key.Binding{k.AddNode, k.Submit, k.Cancel, k.Undo, k.Redo, k.Copy, k.Paste, k.Duplicate, k.Delete}
}
