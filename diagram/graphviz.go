// ABOUTME: Renders DOT text to SVG or PNG by piping it through the Graphviz dot command.
// ABOUTME: The "dot" format returns the text unchanged and needs no Graphviz install.
package diagram

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strings"
)

var (
	// ErrUnsupportedFormat is returned for formats other than dot, svg, and png.
	ErrUnsupportedFormat = errors.New("unsupported diagram format")
	// ErrGraphvizMissing is returned when svg or png is requested without Graphviz installed.
	ErrGraphvizMissing = errors.New("graphviz dot command not found")
)

// Formats lists the accepted output formats.
var Formats = []string{"dot", "svg", "png"}

// ContentType returns the MIME type for format.
func ContentType(format string) string {
	switch format {
	case "svg":
		return "image/svg+xml"
	case "png":
		return "image/png"
	}
	return "text/vnd.graphviz; charset=utf-8"
}

// RenderFunc renders DOT text to format.
type RenderFunc func(ctx context.Context, dotText, format string) ([]byte, error)

// Engine is a Graphviz layout command. The zero value uses "dot".
type Engine struct {
	// Command is the layout program; "neato" honours pinned positions.
	Command string
	lookPath func(string) (string, error)
}

// GraphvizAvailable reports whether the engine's command is on PATH.
func (e Engine) GraphvizAvailable() bool {
	_, err := e.look(e.command())
	return err == nil
}

func (e Engine) command() string {
	if e.Command == "" {
		return "dot"
	}
	return e.Command
}

func (e Engine) look(name string) (string, error) {
	if e.lookPath != nil {
		return e.lookPath(name)
	}
	return exec.LookPath(name)
}

// Render implements RenderFunc.
func (e Engine) Render(ctx context.Context, dotText, format string) ([]byte, error) {
	if dotText == "" {
		return nil, fmt.Errorf("render diagram: empty DOT text")
	}
	switch format {
	case "dot":
		return []byte(dotText), nil
	case "svg", "png":
	default:
		return nil, fmt.Errorf("%w %q: use one of %s", ErrUnsupportedFormat, format, strings.Join(Formats, ", "))
	}

	path, err := e.look(e.command())
	if err != nil {
		return nil, fmt.Errorf("%w: install graphviz to render %s", ErrGraphvizMissing, format)
	}
	cmd := exec.CommandContext(ctx, path, "-T"+format)
	cmd.Stdin = strings.NewReader(dotText)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		return nil, fmt.Errorf("%s -T%s: %w: %s", e.command(), format, err, strings.TrimSpace(stderr.String()))
	}
	return stdout.Bytes(), nil
}
