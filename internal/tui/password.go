package tui

import (
	"errors"
	"fmt"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/zarlcorp/core/pkg/zstyle"
	"github.com/zarlcorp/zclover/internal/vault"
)

// passwordModel unlocks the session vault with the master password.
// On first run the password is entered twice and must meet
// vault.MinPasswordLen.
type passwordModel struct {
	input    textinput.Model
	firstRun bool
	// first entry while waiting for the confirmation
	pending  string
	failures int
	errMsg   string
}

// passwordSubmitMsg carries the master password. The receiver erases the
// slice; the string copies held by the text input and the first-run entry
// are only dropped, not wiped.
type passwordSubmitMsg struct {
	password []byte
}

// passwordErrMsg is sent when the vault could not be unlocked.
type passwordErrMsg struct {
	err error
}

func newPasswordModel(firstRun bool) passwordModel {
	ti := textinput.New()
	ti.EchoMode = textinput.EchoPassword
	ti.EchoCharacter = '*'
	ti.CharLimit = 128
	ti.Width = 40
	ti.Focus()

	return passwordModel{input: ti, firstRun: firstRun}
}

func (m passwordModel) Init() tea.Cmd {
	return textinput.Blink
}

func (m passwordModel) confirming() bool {
	return m.firstRun && m.pending != ""
}

func (m passwordModel) Update(msg tea.Msg) (passwordModel, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		if msg.Type == tea.KeyCtrlC {
			return m, tea.Quit
		}
		if key.Matches(msg, zstyle.KeyEnter) {
			return m.submit()
		}

	case passwordErrMsg:
		m.failures++
		m.errMsg = msg.err.Error()
		if errors.Is(msg.err, vault.ErrWrongPassword) && m.failures > 1 {
			m.errMsg = fmt.Sprintf("%s (%d failed attempts)", m.errMsg, m.failures)
		}
		m.pending = ""
		m.input.SetValue("")
		return m, nil
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

func (m passwordModel) submit() (passwordModel, tea.Cmd) {
	val := m.input.Value()
	if val == "" {
		return m, nil
	}
	m.input.SetValue("")

	if m.firstRun {
		switch {
		case m.pending == "":
			if err := vault.CheckNewPassword([]byte(val)); err != nil {
				m.errMsg = err.Error()
				return m, nil
			}
			m.pending = val
			m.errMsg = ""
			return m, nil
		case val != m.pending:
			m.pending = ""
			m.errMsg = "passwords do not match"
			return m, nil
		}
	}

	m.pending = ""
	m.errMsg = ""
	pass := []byte(val)
	return m, func() tea.Msg {
		return passwordSubmitMsg{password: pass}
	}
}

func (m passwordModel) View() string {
	indent := lipgloss.NewStyle().MarginLeft(2)
	logo := indent.Render(zstyle.StyledLogo(lipgloss.NewStyle().Foreground(accent)))
	name := indent.Render(zstyle.MutedText.Render("zclover  clover network profile"))

	prompt := "master password:"
	switch {
	case m.confirming():
		prompt = "confirm password:"
	case m.firstRun:
		prompt = fmt.Sprintf("create master password (min %d):", vault.MinPasswordLen)
	}

	s := fmt.Sprintf("\n%s\n%s\n\n  %s\n  %s\n", logo, name, prompt, m.input.View())
	if m.errMsg != "" {
		s += "\n  " + zstyle.StatusErr.Render(m.errMsg)
	}
	return s + "\n"
}
