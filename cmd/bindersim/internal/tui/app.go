// Package tui is bindersim's live region inspector: a single-screen
// Bubbletea model rendering a region's page map and buffer list, modelled
// on the host CLI's Model/Update/View shape (minus the screen stack, which
// this tool has no need for since there is only ever one view).
package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/nuttx-binder/binderalloc"
)

// Model is the Bubbletea model wrapping one already-mapped Region. It does
// not mutate the region; Update re-snapshots it only when a window-size
// message arrives (keypresses scroll or quit, and there is no timer), so it
// shows the region as the CLI's scripted operations left it before the TUI
// started.
type Model struct {
	region *binderalloc.Region
	vp     viewport.Model
	width  int
	height int
	ready  bool
}

// NewModel builds an inspector over region.
func NewModel(region *binderalloc.Region) Model {
	return Model{region: region}
}

func (m Model) Init() tea.Cmd { return nil }

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width, m.height = msg.Width, msg.Height
		if !m.ready {
			m.vp = viewport.New(msg.Width, msg.Height-4)
			m.ready = true
		} else {
			m.vp.Width = msg.Width
			m.vp.Height = msg.Height - 4
		}
		m.vp.SetContent(m.render())
		return m, nil
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c", "esc":
			return m, tea.Quit
		}
	}
	var cmd tea.Cmd
	m.vp, cmd = m.vp.Update(msg)
	return m, cmd
}

func (m Model) View() string {
	if !m.ready {
		return "loading...\n"
	}
	header := styleTitle.Render("bindersim — region inspector")
	help := styleHelp.Render("↑/↓ scroll · q quit")
	return header + "\n" + m.vp.View() + "\n" + help
}

// render produces a one-line Stats summary plus one row per buffer in
// address order, live rows in styleLive and free rows in styleFree. The page
// map is not drawn page by page; only the materialised page count appears,
// in the summary line.
func (m Model) render() string {
	var b strings.Builder

	stats := m.region.Stats()
	fmt.Fprintf(&b, "mapped=%v region=%d bytes page=%d bytes live=%d free=%d pages=%d\n\n",
		stats.Mapped, stats.RegionSize, stats.PageSize, stats.LiveBuffers, stats.FreeBuffers, stats.MaterialisedPages)

	for _, buf := range m.region.Buffers() {
		style := styleFree
		kind := "free"
		if !buf.Free {
			style = styleLive
			kind = "live"
		}
		fmt.Fprintf(&b, "%s\n", style.Render(fmt.Sprintf("[%8d, %8d)  %6d bytes  %s", buf.UserData, buf.UserData+buf.Size, buf.Size, kind)))
	}

	return b.String()
}

// Run launches the inspector as an alt-screen Bubbletea program over region.
func Run(region *binderalloc.Region) error {
	p := tea.NewProgram(NewModel(region), tea.WithAltScreen())
	_, err := p.Run()
	return err
}
