package testutil

import (
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/royalacademy/backoffice/core"
)

// Logger is a core.Logger writing to the test log. It records every entry.
type Logger struct {
	t       testing.TB
	mu      sync.Mutex
	entries []string
}

var _ core.Logger = (*Logger)(nil)

func NewLogger(t testing.TB) *Logger {
	return &Logger{t: t}
}

func (l *Logger) log(level, msg string, args []interface{}) {
	entry := level + ": " + msg
	for _, arg := range args {
		entry += fmt.Sprintf(" | %v", arg)
	}
	l.mu.Lock()
	l.entries = append(l.entries, entry)
	l.mu.Unlock()
	l.t.Log(entry)
}

func (l *Logger) Debug(msg string, args ...interface{}) { l.log("DEBUG", msg, args) }
func (l *Logger) Info(msg string, args ...interface{})  { l.log("INFO", msg, args) }
func (l *Logger) Warn(msg string, args ...interface{})  { l.log("WARN", msg, args) }
func (l *Logger) Error(msg string, args ...interface{}) { l.log("ERROR", msg, args) }
func (l *Logger) Fatal(msg string, args ...interface{}) {
	l.log("FATAL", msg, args)
	l.t.FailNow()
}

// Entries returns the entries logged so far.
func (l *Logger) Entries() []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]string(nil), l.entries...)
}

// FreezeTime makes core.NowFunc return `at` until the test ends.
func FreezeTime(t testing.TB, at time.Time) {
	orig := core.NowFunc
	core.NowFunc = func() time.Time { return at }
	t.Cleanup(func() { core.NowFunc = orig })
}

// TickTime makes core.NowFunc start at `start` and advance by `step` on every call until the test ends.
func TickTime(t testing.TB, start time.Time, step time.Duration) {
	orig := core.NowFunc
	var mu sync.Mutex
	now := start
	core.NowFunc = func() time.Time {
		mu.Lock()
		defer mu.Unlock()
		cur := now
		now = now.Add(step)
		return cur
	}
	t.Cleanup(func() { core.NowFunc = orig })
}
