package tui

import (
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/zarlcorp/core/pkg/zstyle"
	"github.com/zarlcorp/zclover/internal/notify"
)

// toastTTL is how long a toast stays on screen.
const toastTTL = 3 * time.Second

// flashMsg expires old toasts.
type flashMsg struct{}

func clearFlashAfter() tea.Cmd {
	return tea.Tick(toastTTL, func(time.Time) tea.Msg {
		return flashMsg{}
	})
}

// toasts is the on-screen notification stack.
type toasts []notify.Toast

// absorb moves queued notifications on screen and schedules their expiry.
func (ts toasts) absorb(q *notify.Queue) (toasts, tea.Cmd) {
	drained := q.Drain()
	if len(drained) == 0 {
		return ts, nil
	}
	return append(ts, drained...), clearFlashAfter()
}

func (ts toasts) expire(now time.Time) toasts {
	var keep toasts
	for _, t := range ts {
		if now.Sub(t.At) < toastTTL {
			keep = append(keep, t)
		}
	}
	return keep
}

func (ts toasts) View() string {
	var s string
	for _, t := range ts {
		switch t.Level {
		case notify.LevelSuccess:
			s += "  " + zstyle.StatusOK.Render(t.Message) + "\n"
		case notify.LevelWarning:
			s += "  " + zstyle.StatusWarn.Render(t.Message) + "\n"
		default:
			s += "  " + zstyle.StatusErr.Render(t.Message) + "\n"
		}
	}
	return s
}
