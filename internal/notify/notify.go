// Package notify carries fire-and-forget user notifications.
package notify

import (
	"fmt"
	"io"
	"log/slog"
	"sync"
	"time"
)

// Level is the styling of a notification.
type Level int

const (
	LevelSuccess Level = iota
	LevelError
	LevelWarning
)

func (l Level) String() string {
	switch l {
	case LevelSuccess:
		return "success"
	case LevelError:
		return "error"
	case LevelWarning:
		return "warning"
	}
	return "unknown"
}

// Notifier surfaces messages to the user.
type Notifier interface {
	Success(message string)
	Error(message string)
	Warning(message string)
}

// Toast is one queued notification.
type Toast struct {
	Level   Level
	Message string
	At      time.Time
}

// Queue collects notifications until the view drains them. It is safe for
// concurrent use.
type Queue struct {
	mu     sync.Mutex
	toasts []Toast
}

func (q *Queue) Success(message string) { q.push(LevelSuccess, message) }
func (q *Queue) Error(message string) { q.push(LevelError, message) }
func (q *Queue) Warning(message string) { q.push(LevelWarning, message) }

func (q *Queue) push(l Level, message string) {
	q.mu.Lock()
	q.toasts = append(q.toasts, Toast{Level: l, Message: message, At: time.Now()})
	q.mu.Unlock()
}

// Drain returns and clears all queued notifications, oldest first.
func (q *Queue) Drain() []Toast {
	q.mu.Lock()
	defer q.mu.Unlock()
	out := q.toasts
	q.toasts = nil
	return out
}

// Log writes notifications to a structured logger.
type Log struct {
	Logger *slog.Logger
}

func (l Log) Success(message string) { l.logger().Info(message, "notify", LevelSuccess.String()) }
func (l Log) Error(message string) { l.logger().Error(message, "notify", LevelError.String()) }
func (l Log) Warning(message string) { l.logger().Warn(message, "notify", LevelWarning.String()) }

func (l Log) logger() *slog.Logger {
	if l.Logger == nil {
		return slog.Default()
	}
	return l.Logger
}

// Writer prints notifications as lines, for the command line.
type Writer struct {
	W io.Writer
}

func (w Writer) Success(message string) { fmt.Fprintln(w.W, message) }
func (w Writer) Error(message string) { fmt.Fprintf(w.W, "error: %s\n", message) }
func (w Writer) Warning(message string) { fmt.Fprintf(w.W, "warning: %s\n", message) }

// Tee fans notifications out to several notifiers.
type Tee []Notifier

func (t Tee) Success(message string) {
	for _, n := range t {
		n.Success(message)
	}
}

func (t Tee) Error(message string) {
	for _, n := range t {
		n.Error(message)
	}
}

func (t Tee) Warning(message string) {
	for _, n := range t {
		n.Warning(message)
	}
}

// Discard drops every notification.
type Discard struct{}

func (Discard) Success(string) {}
func (Discard) Error(string) {}
func (Discard) Warning(string) {}
