package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/zarlcorp/core/pkg/zstyle"
)

const (
	loginEmail = iota
	loginPassword
	loginFieldCount
)

// loginModel signs in to Clover with email and password.
type loginModel struct {
	inputs  [loginFieldCount]textinput.Model
	focus   int
	pending bool
	errMsg  string
}

// loginSubmitMsg asks the root to sign in.
type loginSubmitMsg struct {
	email    string
	password string
}

// loginResultMsg carries the outcome of a sign-in.
type loginResultMsg struct {
	email string
	token string
	err   error
}

func newLoginModel(email string) loginModel {
	var inputs [loginFieldCount]textinput.Model
	for i := range loginFieldCount {
		ti := textinput.New()
		ti.CharLimit = 256
		ti.Width = 40
		ti.Prompt = ""
		inputs[i] = ti
	}
	inputs[loginPassword].EchoMode = textinput.EchoPassword
	inputs[loginPassword].EchoCharacter = '*'
	inputs[loginEmail].SetValue(email)

	m := loginModel{inputs: inputs}
	if email != "" {
		m.focus = loginPassword
	}
	m.inputs[m.focus].Focus()
	return m
}

func (m loginModel) Init() tea.Cmd {
	return textinput.Blink
}

func (m loginModel) Update(msg tea.Msg) (loginModel, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		if msg.Type == tea.KeyCtrlC {
			return m, tea.Quit
		}

		switch msg.String() {
		case "tab", "shift+tab":
			m.inputs[m.focus].Blur()
			m.focus = (m.focus + 1) % loginFieldCount
			m.inputs[m.focus].Focus()
			return m, textinput.Blink
		}

		if key.Matches(msg, zstyle.KeyEnter) {
			return m.submit()
		}

	case loginResultMsg:
		m.pending = false
		if msg.err != nil {
			m.errMsg = msg.err.Error()
			m.inputs[loginPassword].SetValue("")
		}
		return m, nil
	}

	var cmd tea.Cmd
	m.inputs[m.focus], cmd = m.inputs[m.focus].Update(msg)
	return m, cmd
}

func (m loginModel) submit() (loginModel, tea.Cmd) {
	if m.pending {
		return m, nil
	}

	email := strings.TrimSpace(m.inputs[loginEmail].Value())
	pass := m.inputs[loginPassword].Value()
	if email == "" || pass == "" {
		m.errMsg = "email and password are required"
		return m, nil
	}

	m.pending = true
	m.errMsg = ""
	return m, func() tea.Msg {
		return loginSubmitMsg{email: email, password: pass}
	}
}

func (m loginModel) View() string {
	s := fmt.Sprintf("\n  %s\n\n", zstyle.Title.Render("sign in to clover"))

	labels := [loginFieldCount]string{"email", "password"}
	for i := range loginFieldCount {
		cursor := "  "
		if i == m.focus {
			cursor = "> "
		}
		label := zstyle.MutedText.Render(fmt.Sprintf("%-10s", labels[i]))
		s += fmt.Sprintf("  %s%s %s\n", cursor, label, m.inputs[i].View())
	}

	s += "\n"
	switch {
	case m.pending:
		s += "  " + zstyle.MutedText.Render("signing in...") + "\n"
	case m.errMsg != "":
		s += "  " + zstyle.StatusErr.Render(m.errMsg) + "\n"
	}
	return s
}
