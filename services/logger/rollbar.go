package logsvc

import (
	"context"
	"io"
	"log"

	"github.com/rollbar/rollbar-go"
	"github.com/rollbar/rollbar-go/errors"

	"github.com/TTR-x/ttr-gestion-sub002/core"
	"github.com/TTR-x/ttr-gestion-sub002/core/member"
)

type RollbarLogger struct {
	std *log.Logger
}

var _ core.Logger = (*RollbarLogger)(nil)

func NewRollbarLogger(std *log.Logger, conf *core.Config) *RollbarLogger {
	rollbar.SetToken(conf.RollbarToken)
	rollbar.SetEnvironment(conf.Env)
	rollbar.SetServerHost(conf.Server.Host)
	rollbar.SetCodeVersion(conf.Build)
	rollbar.SetStackTracer(errors.StackTracer)
	return &RollbarLogger{std: std}
}

// NewDiscardLogger returns a logger with rollbar reporting disabled and no output.
func NewDiscardLogger(conf *core.Config) *RollbarLogger {
	l := NewRollbarLogger(log.New(io.Discard, "", 0), conf)
	l.Enable(false)
	return l
}

func (l RollbarLogger) Enable(enabled bool) {
	rollbar.SetEnabled(enabled)
}

// prepare converts args to rollbar's variadic form: msg | error, map[string]interface{}, member.Member.
// The first Member becomes the person of this item only; the global person is never set
// because requests log concurrently.
func (l RollbarLogger) prepare(msg string, args []interface{}) []interface{} {
	var person *rollbar.Person
	items := make([]interface{}, 0, len(args)+2)
	items = append(items, msg)
	for _, arg := range args {
		if m, ok := arg.(member.Member); ok {
			if person == nil {
				person = &rollbar.Person{Id: m.ID, Username: m.Name, Email: m.Email}
			}
			continue
		}
		items = append(items, arg)
	}
	if person != nil {
		items = append(items, rollbar.NewPersonContext(context.Background(), person))
	}
	return items
}

func (l RollbarLogger) print(msg string, args []interface{}) {
	l.std.Println(msg)
	for _, arg := range args {
		switch v := arg.(type) {
		case member.Member:
			l.std.Printf("member: %s <%s> business=%s\n", v.ID, v.Email, v.BusinessID)
		case map[string]interface{}:
			l.std.Printf("%v\n", v)
		default:
			l.std.Printf("%+v\n", v)
		}
	}
}

func (l RollbarLogger) Debug(msg string, args ...interface{}) {
	rollbar.Debug(l.prepare(msg, args)...)
	l.print(msg, args)
}

func (l RollbarLogger) Info(msg string, args ...interface{}) {
	rollbar.Info(l.prepare(msg, args)...)
	l.print(msg, args)
}

func (l RollbarLogger) Warn(msg string, args ...interface{}) {
	rollbar.Warning(l.prepare(msg, args)...)
	l.print(msg, args)
}

func (l RollbarLogger) Error(msg string, args ...interface{}) {
	rollbar.Error(l.prepare(msg, args)...)
	l.print(msg, args)
}

func (l RollbarLogger) Fatal(msg string, args ...interface{}) {
	rollbar.Critical(l.prepare(msg, args)...)
	l.print(msg, args)
	rollbar.Wait()
	l.std.Fatal(msg)
}
