package tui

import (
	"fmt"

	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/zarlcorp/core/pkg/zstyle"
)

type menuChoice int

const (
	menuProfile menuChoice = iota
	menuPassword
	menuAvatar
	menuLogout
	menuQuit
)

var menuItems = []string{
	"Update info",
	"Change password",
	"Change avatar",
	"Log out",
	"Quit",
}

// menuModel is the main menu view.
type menuModel struct {
	cursor  int
	version string
	user    string
	flash   string
}

// navigateMsg tells the root model to switch views.
type navigateMsg struct {
	view viewID
}

// openProfileMsg opens the profile page in the given mode.
type openProfileMsg struct {
	password bool
}

// logoutMsg asks the root to end the session.
type logoutMsg struct{}

func newMenuModel(version, user string) menuModel {
	return menuModel{version: version, user: user}
}

func (m menuModel) Init() tea.Cmd {
	return nil
}

func (m menuModel) Update(msg tea.Msg) (menuModel, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		if key.Matches(msg, zstyle.KeyQuit) {
			return m, tea.Quit
		}

		if key.Matches(msg, zstyle.KeyUp) {
			if m.cursor > 0 {
				m.cursor--
			}
			return m, nil
		}

		if key.Matches(msg, zstyle.KeyDown) {
			if m.cursor < len(menuItems)-1 {
				m.cursor++
			}
			return m, nil
		}

		if key.Matches(msg, zstyle.KeyEnter) {
			return m, m.selectItem()
		}

	case flashMsg:
		m.flash = ""
	}

	return m, nil
}

func (m menuModel) selectItem() tea.Cmd {
	switch menuChoice(m.cursor) {
	case menuProfile:
		return func() tea.Msg { return openProfileMsg{} }
	case menuPassword:
		return func() tea.Msg { return openProfileMsg{password: true} }
	case menuAvatar:
		return func() tea.Msg { return navigateMsg{view: viewAvatar} }
	case menuLogout:
		return func() tea.Msg { return logoutMsg{} }
	case menuQuit:
		return tea.Quit
	}
	return nil
}

func (m menuModel) View() string {
	title := zstyle.Title.Render("zclover")
	ver := zstyle.MutedText.Render(m.version)

	s := fmt.Sprintf("\n  %s %s\n", title, ver)
	if m.user != "" {
		s += "  " + zstyle.Subtitle.Render(m.user) + "\n"
	}
	s += "\n"

	for i, item := range menuItems {
		if m.cursor == i {
			s += zstyle.Highlight.Render(fmt.Sprintf("    > %s", item)) + "\n"
		} else {
			s += fmt.Sprintf("      %s\n", item)
		}
	}

	if m.flash != "" {
		s += "\n  " + zstyle.StatusErr.Render(m.flash) + "\n"
	}

	s += "\n  " + zstyle.MutedText.Render("j/k navigate  enter select  q quit") + "\n\n"
	return s
}
