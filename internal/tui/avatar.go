package tui

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/zarlcorp/core/pkg/zstyle"
	"github.com/zarlcorp/zclover/internal/intake"
)

// avatarModel asks for an image file to use as the new avatar.
type avatarModel struct {
	input   textinput.Model
	spinner spinner.Model
	pending bool
	toasts  toasts
	errMsg  string
}

// avatarSelectMsg asks the root to load and decode a file.
type avatarSelectMsg struct {
	path string
}

// decodedMsg reports that the decode started for the seq-th selection
// on pipeline settled.
type decodedMsg struct {
	pipeline *intake.Pipeline
	seq      int
}

func newAvatarModel() avatarModel {
	ti := textinput.New()
	ti.Placeholder = "~/Pictures/me.png"
	ti.CharLimit = 1024
	ti.Width = 50
	ti.Prompt = ""
	ti.Focus()

	return avatarModel{
		input:   ti,
		spinner: spinner.New(spinner.WithSpinner(spinner.Dot)),
	}
}

func (m avatarModel) Init() tea.Cmd {
	return textinput.Blink
}

func (m avatarModel) Update(msg tea.Msg) (avatarModel, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		if msg.Type == tea.KeyCtrlC {
			return m, tea.Quit
		}
		if key.Matches(msg, zstyle.KeyBack) {
			return m, func() tea.Msg { return navigateMsg{view: viewProfile} }
		}
		if key.Matches(msg, zstyle.KeyEnter) {
			return m.submit()
		}

	case spinner.TickMsg:
		if !m.pending {
			return m, nil
		}
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd

	case flashMsg:
		m.toasts = m.toasts.expire(time.Now())
		return m, nil
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

func (m avatarModel) submit() (avatarModel, tea.Cmd) {
	if m.pending {
		return m, nil
	}
	path := expandHome(strings.TrimSpace(m.input.Value()))
	if path == "" {
		return m, nil
	}
	m.errMsg = ""
	return m, func() tea.Msg { return avatarSelectMsg{path: path} }
}

func (m avatarModel) View() string {
	s := fmt.Sprintf("\n  %s\n\n", zstyle.Title.Render("choose an image"))
	s += fmt.Sprintf("  %s %s\n", zstyle.MutedText.Render("file"), m.input.View())
	s += "  " + zstyle.MutedText.Render("png or jpeg") + "\n\n"

	if m.pending {
		s += "  " + m.spinner.View() + " " + zstyle.MutedText.Render("reading image...") + "\n"
	}
	if m.errMsg != "" {
		s += "  " + zstyle.StatusErr.Render(m.errMsg) + "\n"
	}
	s += m.toasts.View()
	return s
}

// cropModel confirms the centered square crop of a decoded image.
type cropModel struct {
	file      string
	preview   intake.Preview
	spinner   spinner.Model
	uploading bool
	flash     string
}

// cropConfirmMsg asks the root to crop and upload.
type cropConfirmMsg struct{}

// cropCancelMsg closes the crop step without uploading.
type cropCancelMsg struct{}

// avatarDoneMsg carries the outcome of a crop and upload.
type avatarDoneMsg struct {
	err error
}

func newCropModel(file string, p intake.Preview) cropModel {
	return cropModel{
		file:    file,
		preview: p,
		spinner: spinner.New(spinner.WithSpinner(spinner.Dot)),
	}
}

func (m cropModel) Update(msg tea.Msg) (cropModel, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		if msg.Type == tea.KeyCtrlC {
			return m, tea.Quit
		}
		if m.uploading {
			return m, nil
		}
		if key.Matches(msg, zstyle.KeyBack) || msg.String() == "n" {
			return m, func() tea.Msg { return cropCancelMsg{} }
		}
		if key.Matches(msg, zstyle.KeyEnter) || msg.String() == "y" {
			m.uploading = true
			m.flash = ""
			return m, tea.Batch(m.spinner.Tick, func() tea.Msg { return cropConfirmMsg{} })
		}
		if msg.String() == "c" {
			return m, copyCmd(m.preview.DataURI)
		}

	case copiedMsg:
		if msg.err != nil {
			m.flash = msg.err.Error()
		} else {
			m.flash = "copied preview"
		}
		return m, clearFlashAfter()

	case flashMsg:
		m.flash = ""
		return m, nil

	case spinner.TickMsg:
		if !m.uploading {
			return m, nil
		}
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	}

	return m, nil
}

func (m cropModel) View() string {
	w, h := m.preview.Bounds()
	side := min(w, h)

	s := fmt.Sprintf("\n  %s\n\n", zstyle.Subtitle.Render("crop "+m.file+"?"))
	s += fmt.Sprintf("  %s %dx%d\n", zstyle.MutedText.Render("image   "), w, h)
	s += fmt.Sprintf("  %s %dx%d, centered\n", zstyle.MutedText.Render("crop    "), side, side)
	s += fmt.Sprintf("  %s %d bytes\n\n", zstyle.MutedText.Render("preview "), len(m.preview.DataURI))

	if m.uploading {
		s += "  " + m.spinner.View() + " " + zstyle.MutedText.Render("uploading...") + "\n"
	} else {
		s += "  crop and upload? (y/n)\n"
	}
	if m.flash != "" {
		s += "\n  " + zstyle.StatusOK.Render(m.flash) + "\n"
	}
	return s
}

func expandHome(path string) string {
	if path == "~" || strings.HasPrefix(path, "~/") {
		if home, err := os.UserHomeDir(); err == nil {
			return home + path[1:]
		}
	}
	return path
}
