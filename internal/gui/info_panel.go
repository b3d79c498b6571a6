// Status panel with session state and render statistics
package gui

import (
	"fmt"

	"fyne.io/fyne/v2"
	"fyne.io/fyne/v2/container"
	"fyne.io/fyne/v2/widget"

	"virtual-hair-salon/internal/core"
	"virtual-hair-salon/internal/metrics"
)

// StatusPanel displays the last action, the session state and the render counters.
type StatusPanel struct {
	vbox    *fyne.Container
	message *widget.Label
	state   *widget.Label
	stats   *widget.Label
}

func NewStatusPanel() *StatusPanel {
	sp := &StatusPanel{
		message: widget.NewLabel("Ready"),
		state:   widget.NewLabel(stateText(core.StateIdle)),
		stats:   widget.NewLabel("No frames yet"),
	}
	sp.message.Truncation = fyne.TextTruncateEllipsis
	sp.vbox = container.NewVBox(
		widget.NewCard("📊 Status", "", container.NewVBox(sp.message, sp.state, sp.stats)),
	)
	return sp
}

func (sp *StatusPanel) GetContainer() fyne.CanvasObject {
	return sp.vbox
}

func (sp *StatusPanel) SetMessage(message string) {
	sp.message.SetText(message)
}

// Update refreshes the state and counters. Call it on the UI thread.
func (sp *StatusPanel) Update(state core.State, stats metrics.RenderStats) {
	sp.state.SetText(stateText(state))
	if stats.Presented == 0 {
		sp.stats.SetText("No frames yet")
		return
	}
	sp.stats.SetText(stats.String())
}

func stateText(state core.State) string {
	switch state {
	case core.StateIdle:
		return "⏸️ Camera idle"
	case core.StateInitializing:
		return "⏳ Starting camera…"
	case core.StateCapturing:
		return "🟢 Live"
	case core.StateStopped:
		return "⏹️ Stopped"
	default:
		return fmt.Sprintf("State: %s", state)
	}
}
