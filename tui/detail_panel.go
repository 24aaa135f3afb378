// ABOUTME: Bubble Tea sub-model for displaying the selected node's data and generation progress.
// ABOUTME: Renders category, position, authored and upstream fields, and a progress bar while generating.
package tui

import (
	"fmt"
	"strings"

	"github.com/2389-research/flowcanvas/graph"
	"github.com/charmbracelet/bubbles/progress"
)

// DetailPanelModel displays the selected node.
type DetailPanelModel struct {
	node     *graph.Node
	progress progress.Model
	width    int
	height   int
}

// NewDetailPanelModel creates a new DetailPanelModel with no node.
func NewDetailPanelModel() DetailPanelModel {
	return DetailPanelModel{
		progress: progress.New(progress.WithDefaultGradient(), progress.WithWidth(20)),
	}
}

// SetNode shows n. A nil node clears the panel.
func (m *DetailPanelModel) SetNode(n *graph.Node) {
	if n == nil {
		m.node = nil
		return
	}
	c := n.Clone()
	m.node = &c
}

// SetSize sets the available dimensions.
func (m *DetailPanelModel) SetSize(w, h int) {
	m.width = w
	m.height = h
	if w > 14 {
		m.progress.Width = w - 14
	}
}

// maxOutputLen is the maximum number of characters shown for a field value.
const maxOutputLen = 80

// truncateOutput truncates s to maxOutputLen characters, appending "..." if truncated.
func truncateOutput(s string) string {
	runes := []rune(oneLine(s))
	if len(runes) <= maxOutputLen {
		return string(runes)
	}
	return string(runes[:maxOutputLen]) + "..."
}

// View renders the detail panel as a string.
func (m DetailPanelModel) View() string {
	title := TitleStyle.Render("NODE DETAIL")

	var content string
	if m.node == nil {
		content = title + "\n\n" + ValueStyle.Render("No node selected")
	} else {
		n := m.node
		d := n.Data
		status := StatusOf(*n)

		lines := []string{title}
		lines = append(lines, row("Kind:", n.Category.Label()))
		lines = append(lines, row("ID:", n.ID))
		lines = append(lines, row("At:", fmt.Sprintf("%.0f, %.0f", n.Position.X, n.Position.Y)))
		for _, f := range []struct{ label, value string }{
			{"Label:", d.Label},
			{"Content:", d.Content},
			{"Image:", d.ImageURL},
			{"Video:", d.VideoURL},
			{"Model:", d.ModelID},
			{"Prompt:", d.SourceNodeContent},
			{"Src img:", d.SourceImageURL},
			{"Src vid:", d.SourceVideoURL},
		} {
			if f.value != "" {
				lines = append(lines, row(f.label, truncateOutput(f.value)))
			}
		}
		if rec := d.Generation; rec != nil {
			lines = append(lines, LabelStyle.Render("Status:")+StyleForStatus(status).Render(status.String()))
			if rec.State == graph.GenerationGenerating && rec.TotalTicks > 0 {
				done := float64(rec.TotalTicks-rec.RemainingTicks) / float64(rec.TotalTicks)
				lines = append(lines, LabelStyle.Render("Progress:")+m.progress.ViewAs(done))
			}
			if rec.ArtifactURL != "" {
				lines = append(lines, row("Output:", truncateOutput(rec.ArtifactURL)))
			}
			if rec.LastError != "" {
				lines = append(lines, LabelStyle.Render("Error:")+FailedStyle.Render(truncateOutput(rec.LastError)))
			}
		}
		content = strings.Join(lines, "\n")
	}

	style := BorderStyle
	if m.width > 0 {
		style = style.Width(m.width - 2)
	}
	if m.height > 0 {
		style = style.Height(m.height - 2)
	}

	return style.Render(content)
}

// row renders a label-value pair using the standard label and value styles.
func row(label, value string) string {
	return LabelStyle.Render(label) + ValueStyle.Render(value)
}
