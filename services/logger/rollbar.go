package logsvc

import (
	"log"
	"os"

	"github.com/rollbar/rollbar-go"
	"github.com/rollbar/rollbar-go/errors"

	"github.com/royalacademy/backoffice/core"
)

type Level int

const (
	LevelDebug Level = iota
	LevelInfo
	LevelWarn
	LevelError
)

// RollbarLogger prints entries to a std logger and reports them to Rollbar (when enabled).
// Entries below the minimum level are dropped; Debug entries are only kept in debug mode.
type RollbarLogger struct {
	std      *log.Logger
	minLevel Level
}

var _ core.Logger = (*RollbarLogger)(nil)

func NewRollbarLogger(std *log.Logger, conf *core.Config) *RollbarLogger {
	host, _ := os.Hostname()
	rollbar.SetToken(conf.RollbarToken)
	rollbar.SetEnvironment(conf.Env)
	rollbar.SetServerHost(host)
	rollbar.SetCodeVersion(conf.Build)
	rollbar.SetStackTracer(errors.StackTracer)

	minLevel := LevelInfo
	if conf.Debug {
		minLevel = LevelDebug
	}
	return &RollbarLogger{std: std, minLevel: minLevel}
}

func (l RollbarLogger) Enable(enabled bool) {
	rollbar.SetEnabled(enabled)
}

// Close waits for queued Rollbar reports to be sent.
func (l RollbarLogger) Close() {
	rollbar.Close()
}

// expected fmt: msg | error, map[string]interface{}, core.Identity
func (l RollbarLogger) prepare(msg string, args []interface{}) []interface{} {
	var idSet bool
	newArgs := make([]interface{}, 0, len(args)+1)
	newArgs = append(newArgs, msg)
	for _, arg := range args {
		// set the person the entry relates to
		if id, ok := arg.(core.Identity); ok {
			if !idSet { // only set one Identity
				rollbar.SetPerson(id.ID, id.Username, id.Email)
				idSet = true
			}
		} else {
			newArgs = append(newArgs, arg)
		}
	}
	if !idSet {
		rollbar.ClearPerson()
	}
	return newArgs
}

func (l RollbarLogger) print(msg string, args []interface{}) {
	l.std.Println(msg)
	for _, arg := range args {
		l.std.Printf("%+v\n", arg)
	}
}

func (l RollbarLogger) Debug(msg string, args ...interface{}) {
	if l.minLevel > LevelDebug {
		return
	}
	rollbar.Debug(l.prepare(msg, args)...)
	l.print("DEBUG: "+msg, args)
}

func (l RollbarLogger) Info(msg string, args ...interface{}) {
	if l.minLevel > LevelInfo {
		return
	}
	rollbar.Info(l.prepare(msg, args)...)
	l.print("INFO: "+msg, args)
}

func (l RollbarLogger) Warn(msg string, args ...interface{}) {
	if l.minLevel > LevelWarn {
		return
	}
	rollbar.Warning(l.prepare(msg, args)...)
	l.print("WARN: "+msg, args)
}

func (l RollbarLogger) Error(msg string, args ...interface{}) {
	if l.minLevel > LevelError {
		return
	}
	rollbar.Error(l.prepare(msg, args)...)
	l.print("ERROR: "+msg, args)
}

func (l RollbarLogger) Fatal(msg string, args ...interface{}) {
	rollbar.Critical(l.prepare(msg, args)...)
	l.print("FATAL: "+msg, args)
	l.std.Fatal(msg)
}
