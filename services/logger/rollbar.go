package logsvc

import (
	"io"
	"os"
	"time"

	"github.com/rollbar/rollbar-go"
	"github.com/rollbar/rollbar-go/errors"
	"github.com/rs/zerolog"

	"github.com/DexterJames00/EduTrack360/core"
)

// RollbarLogger writes structured lines with zerolog and reports them to Rollbar when enabled.
type RollbarLogger struct {
	zl zerolog.Logger
}

var _ core.Logger = (*RollbarLogger)(nil)

func NewRollbarLogger(w io.Writer, conf *core.Config) *RollbarLogger {
	rollbar.SetToken(conf.RollbarToken)
	rollbar.SetEnvironment(conf.Env)
	rollbar.SetServerHost(conf.Server.Host)
	rollbar.SetCodeVersion(conf.Build)
	rollbar.SetStackTracer(errors.StackTracer)

	if w == nil {
		w = os.Stdout
	}
	if conf.Debug {
		w = zerolog.ConsoleWriter{Out: w, TimeFormat: time.RFC3339}
	}
	level := zerolog.InfoLevel
	if conf.Debug {
		level = zerolog.DebugLevel
	}
	zl := zerolog.New(w).Level(level).With().Timestamp().Str("app", conf.AppName).Logger()
	return &RollbarLogger{zl: zl}
}

// NewNopLogger discards everything; for tests.
func NewNopLogger() *RollbarLogger {
	rollbar.SetEnabled(false)
	return &RollbarLogger{zl: zerolog.Nop()}
}

func (l RollbarLogger) Enable(enabled bool) {
	rollbar.SetEnabled(enabled)
}

// Component returns a logger tagging every line with the component name.
func (l RollbarLogger) Component(name string) *RollbarLogger {
	return &RollbarLogger{zl: l.zl.With().Str("component", name).Logger()}
}

// expected fmt: msg | error, map[string]interface{}, core.LogPerson
func (l RollbarLogger) prepare(msg string, args []interface{}) []interface{} {
	var personSet bool
	newArgs := make([]interface{}, 0, len(args)+1)
	newArgs = append(newArgs, msg)
	for _, arg := range args {
		// set the caller
		if p, ok := arg.(core.LogPerson); ok {
			if !personSet { // only set one person
				rollbar.SetPerson(p.ID, p.Name, "")
				personSet = true
			}
		} else if arg != nil {
			newArgs = append(newArgs, arg)
		}
	}
	if !personSet {
		rollbar.ClearPerson()
	}
	return newArgs
}

func (l RollbarLogger) print(ev *zerolog.Event, msg string, args []interface{}) {
	for _, arg := range args {
		switch a := arg.(type) {
		case error:
			ev = ev.Err(a)
		case map[string]interface{}:
			ev = ev.Fields(a)
		case core.LogPerson:
			ev = ev.Str("person", a.ID)
		case nil:
		default:
			ev = ev.Interface("extra", a)
		}
	}
	ev.Msg(msg)
}

func (l RollbarLogger) Debug(msg string, args ...interface{}) {
	rollbar.Debug(l.prepare(msg, args)...)
	l.print(l.zl.Debug(), msg, args)
}

func (l RollbarLogger) Info(msg string, args ...interface{}) {
	rollbar.Info(l.prepare(msg, args)...)
	l.print(l.zl.Info(), msg, args)
}

func (l RollbarLogger) Warn(msg string, args ...interface{}) {
	rollbar.Warning(l.prepare(msg, args)...)
	l.print(l.zl.Warn(), msg, args)
}

func (l RollbarLogger) Error(msg string, args ...interface{}) {
	rollbar.Error(l.prepare(msg, args)...)
	l.print(l.zl.Error(), msg, args)
}

func (l RollbarLogger) Fatal(msg string, args ...interface{}) {
	rollbar.Critical(l.prepare(msg, args)...)
	rollbar.Wait()
	l.print(l.zl.Fatal(), msg, args)
}
