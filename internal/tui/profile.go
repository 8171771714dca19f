package tui

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/zarlcorp/core/pkg/zstyle"
	"github.com/zarlcorp/zclover/internal/notify"
	"github.com/zarlcorp/zclover/internal/profile"
)

// info tab fields, in focus order
const (
	infoFirstname = iota
	infoLastname
	infoPhone
	infoDate
	infoGender
	infoFieldCount
)

// password tab fields, in focus order
const (
	passEmail = iota
	passOld
	passNew
	passRepeat
	passFieldCount
)

var infoLabels = [infoFieldCount]string{"firstname", "lastname", "phone", "birthday", "gender"}

var infoNames = [infoFieldCount]string{
	profile.FieldFirstname,
	profile.FieldLastname,
	profile.FieldPhoneNo,
	"",
	profile.FieldGender,
}

var passLabels = [passFieldCount]string{"email", "old password", "new password", "repeat"}

var passNames = [passFieldCount]string{
	profile.FieldEmail,
	profile.FieldOldPassword,
	profile.FieldNewPassword,
	profile.FieldRepeatNewPassword,
}

var (
	keyToggleMode = key.NewBinding(key.WithKeys("ctrl+t"))
	keyAvatar     = key.NewBinding(key.WithKeys("ctrl+a"))
)

// profileModel is the profile page: an info tab and a password tab over
// one Editor.
type profileModel struct {
	ctx    context.Context
	editor *profile.Editor
	queue  *notify.Queue

	info      [infoFieldCount]textinput.Model
	pass      [passFieldCount]textinput.Model
	infoFocus int
	passFocus int
	gender    profile.Gender
	dateErr   string

	avatar     string
	spinner    spinner.Model
	submitting bool
	toasts     toasts
}

// submitDoneMsg carries the outcome of a form submit.
type submitDoneMsg struct {
	mode profile.Mode
	err  error
}

// refreshUserMsg asks the root to refetch the cached profile.
type refreshUserMsg struct{}

func newProfileModel(ctx context.Context, e *profile.Editor, q *notify.Queue, mode profile.Mode, avatar string) profileModel {
	m := profileModel{
		ctx:     ctx,
		editor:  e,
		queue:   q,
		avatar:  avatar,
		spinner: spinner.New(spinner.WithSpinner(spinner.Dot)),
	}

	for i := range infoFieldCount {
		m.info[i] = newField(false)
	}
	for i := range passFieldCount {
		m.pass[i] = newField(i != passEmail)
	}
	m.info[infoDate].CharLimit = 10
	m.info[infoDate].Placeholder = "dd/mm/yyyy"

	e.SetMode(mode)
	m = m.loadInfo()
	m = m.loadPassword()
	m = m.focusActive()
	return m
}

func newField(secret bool) textinput.Model {
	ti := textinput.New()
	ti.CharLimit = 128
	ti.Width = 36
	ti.Prompt = ""
	if secret {
		ti.EchoMode = textinput.EchoPassword
		ti.EchoCharacter = '*'
	}
	return ti
}

// loadInfo copies the info form into the inputs.
func (m profileModel) loadInfo() profileModel {
	f := m.editor.Info()
	m.info[infoFirstname].SetValue(f.Value(profile.FieldFirstname))
	m.info[infoLastname].SetValue(f.Value(profile.FieldLastname))
	m.info[infoPhone].SetValue(f.Value(profile.FieldPhoneNo))
	m.info[infoDate].SetValue(profile.FormatDate(m.editor.DateOfBirth()))
	m.gender = profile.Gender(f.Value(profile.FieldGender))
	m.dateErr = ""
	return m
}

// loadPassword copies the password form into the inputs.
func (m profileModel) loadPassword() profileModel {
	f := m.editor.Password()
	for i := range passFieldCount {
		m.pass[i].SetValue(f.Value(passNames[i]))
	}
	return m
}

func (m profileModel) Init() tea.Cmd {
	return textinput.Blink
}

func (m profileModel) Update(msg tea.Msg) (profileModel, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		return m.handleKey(msg)

	case spinner.TickMsg:
		if !m.submitting {
			return m, nil
		}
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd

	case submitDoneMsg:
		return m.handleDone(msg)

	case flashMsg:
		m.toasts = m.toasts.expire(time.Now())
		return m, nil
	}

	return m.updateInput(msg)
}

func (m profileModel) mode() profile.Mode { return m.editor.Mode() }

func (m profileModel) handleKey(msg tea.KeyMsg) (profileModel, tea.Cmd) {
	if msg.Type == tea.KeyCtrlC {
		return m, tea.Quit
	}

	if key.Matches(msg, zstyle.KeyBack) {
		return m, func() tea.Msg { return navigateMsg{view: viewMenu} }
	}

	if key.Matches(msg, keyToggleMode) {
		m = m.blurActive()
		m.editor.Toggle()
		m = m.focusActive()
		return m, textinput.Blink
	}

	if key.Matches(msg, keyAvatar) {
		return m, func() tea.Msg { return navigateMsg{view: viewAvatar} }
	}

	switch msg.String() {
	case "tab":
		return m.moveFocus(1), textinput.Blink
	case "shift+tab":
		return m.moveFocus(-1), textinput.Blink
	}

	if key.Matches(msg, zstyle.KeyEnter) {
		return m.submit()
	}

	if m.mode() == profile.ModeInfo {
		switch m.infoFocus {
		case infoGender:
			switch msg.String() {
			case " ", "right", "l":
				m.gender = m.gender.Next()
				_ = m.editor.Info().Set(profile.FieldGender, string(m.gender))
			}
			return m, nil
		case infoDate:
			switch msg.String() {
			case "+":
				return m.stepDate(1)
			case "-":
				return m.stepDate(-1)
			}
		}
	}

	return m.updateInput(msg)
}

// stepDate moves the date of birth by days, starting from the typed date
// when it parses.
func (m profileModel) stepDate(days int) (profileModel, tea.Cmd) {
	from := m.editor.DateOfBirth()
	if typed, err := profile.ParseDate(strings.TrimSpace(m.info[infoDate].Value())); err == nil {
		from = typed
	}
	next := from.AddDate(0, 0, days)
	if err := m.editor.SetDate(next); err == nil {
		m.info[infoDate].SetValue(profile.FormatDate(next))
		m.dateErr = ""
	}
	var cmd tea.Cmd
	m.toasts, cmd = m.toasts.absorb(m.queue)
	return m, cmd
}

func (m profileModel) moveFocus(delta int) profileModel {
	m = m.blurActive()
	if m.mode() == profile.ModeInfo {
		m.infoFocus = (m.infoFocus + delta + infoFieldCount) % infoFieldCount
	} else {
		m.passFocus = (m.passFocus + delta + passFieldCount) % passFieldCount
	}
	return m.focusActive()
}

func (m profileModel) blurActive() profileModel {
	if m.mode() == profile.ModeInfo {
		m.info[m.infoFocus].Blur()
	} else {
		m.pass[m.passFocus].Blur()
	}
	return m
}

func (m profileModel) focusActive() profileModel {
	if m.mode() == profile.ModeInfo {
		if m.infoFocus != infoGender {
			m.info[m.infoFocus].Focus()
		}
	} else {
		m.pass[m.passFocus].Focus()
	}
	return m
}

func (m profileModel) updateInput(msg tea.Msg) (profileModel, tea.Cmd) {
	var cmd tea.Cmd
	if m.mode() == profile.ModeInfo {
		if m.infoFocus == infoGender {
			return m, nil
		}
		m.info[m.infoFocus], cmd = m.info[m.infoFocus].Update(msg)
		return m, cmd
	}
	m.pass[m.passFocus], cmd = m.pass[m.passFocus].Update(msg)
	return m, cmd
}

func (m profileModel) submit() (profileModel, tea.Cmd) {
	if m.submitting {
		return m, nil
	}

	mode := m.mode()
	e := m.editor
	ctx := m.ctx

	if mode == profile.ModeInfo {
		f := e.Info()
		for _, i := range []int{infoFirstname, infoLastname, infoPhone} {
			_ = f.Set(infoNames[i], strings.TrimSpace(m.info[i].Value()))
		}
		_ = f.Set(profile.FieldGender, string(m.gender))

		dob, err := profile.ParseDate(strings.TrimSpace(m.info[infoDate].Value()))
		if err != nil {
			m.dateErr = profile.MsgDateOfBirth
			return m, nil
		}
		if err := e.SetDate(dob); err != nil {
			m.dateErr = profile.MsgDateOfBirth
			var cmd tea.Cmd
			m.toasts, cmd = m.toasts.absorb(m.queue)
			return m, cmd
		}
		m.dateErr = ""
	} else {
		f := e.Password()
		for i := range passFieldCount {
			v := m.pass[i].Value()
			if i == passEmail {
				v = strings.TrimSpace(v)
			}
			_ = f.Set(passNames[i], v)
		}
	}

	m.submitting = true
	run := func() tea.Msg {
		var err error
		if mode == profile.ModeInfo {
			err = e.SubmitInfo(ctx)
		} else {
			err = e.SubmitPassword(ctx)
		}
		return submitDoneMsg{mode: mode, err: err}
	}
	return m, tea.Batch(m.spinner.Tick, run)
}

func (m profileModel) handleDone(msg submitDoneMsg) (profileModel, tea.Cmd) {
	m.submitting = false

	var cmd tea.Cmd
	m.toasts, cmd = m.toasts.absorb(m.queue)
	cmds := []tea.Cmd{cmd}

	if msg.err == nil {
		if msg.mode == profile.ModeInfo {
			cmds = append(cmds, func() tea.Msg { return refreshUserMsg{} })
		} else {
			// a successful change resets the form
			m = m.loadPassword()
		}
	}

	return m, tea.Batch(cmds...)
}

// reseed reloads the info tab after the cached profile changed.
func (m profileModel) reseed(avatar string) profileModel {
	m.avatar = avatar
	return m.loadInfo()
}

func (m profileModel) View() string {
	e := m.editor
	s := "\n"

	s += fmt.Sprintf("  %s %s\n", zstyle.MutedText.Render("avatar"), m.avatar)
	if name := e.DisplayName(); name != "" {
		s += "  " + zstyle.Subtitle.Render(name) + "\n"
	}
	s += "\n  " + m.tabs() + "\n\n"

	if m.mode() == profile.ModeInfo {
		s += m.infoView()
	} else {
		s += m.passwordView()
	}

	s += "\n"
	if m.submitting {
		s += "  " + m.spinner.View() + " " + zstyle.MutedText.Render("saving...") + "\n"
	}
	s += m.toasts.View()
	return s
}

func (m profileModel) tabs() string {
	var parts []string
	for _, mode := range []profile.Mode{profile.ModeInfo, profile.ModePassword} {
		label := mode.String()
		if mode == m.mode() {
			parts = append(parts, zstyle.Highlight.Render("["+label+"]"))
		} else {
			parts = append(parts, zstyle.MutedText.Render(" "+label+" "))
		}
	}
	return strings.Join(parts, " ")
}

func (m profileModel) infoView() string {
	f := m.editor.Info()
	var s string
	for i := range infoFieldCount {
		cursor := "  "
		if i == m.infoFocus {
			cursor = "> "
		}
		label := zstyle.MutedText.Render(fmt.Sprintf("%-14s", infoLabels[i]))

		var value, errMsg string
		switch i {
		case infoGender:
			value = genderPicker(m.gender)
			errMsg = f.Error(profile.FieldGender)
		case infoDate:
			value = m.info[i].View()
			errMsg = m.dateErr
		default:
			value = m.info[i].View()
			errMsg = f.Error(infoNames[i])
		}

		s += fmt.Sprintf("  %s%s %s\n", cursor, label, value)
		if errMsg != "" {
			s += fmt.Sprintf("    %-14s %s\n", "", zstyle.StatusErr.Render(errMsg))
		}
	}
	return s
}

func (m profileModel) passwordView() string {
	f := m.editor.Password()
	var s string
	for i := range passFieldCount {
		cursor := "  "
		if i == m.passFocus {
			cursor = "> "
		}
		label := zstyle.MutedText.Render(fmt.Sprintf("%-14s", passLabels[i]))
		s += fmt.Sprintf("  %s%s %s\n", cursor, label, m.pass[i].View())
		if msg := f.Error(passNames[i]); msg != "" {
			s += fmt.Sprintf("    %-14s %s\n", "", zstyle.StatusErr.Render(msg))
		}
	}
	return s
}

func genderPicker(current profile.Gender) string {
	var parts []string
	for _, g := range profile.Genders {
		if g == current {
			parts = append(parts, zstyle.Highlight.Render("(*) "+g.Label()))
		} else {
			parts = append(parts, zstyle.MutedText.Render("( ) "+g.Label()))
		}
	}
	return strings.Join(parts, "  ")
}
