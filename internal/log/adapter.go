package log

import (
	"fmt"

	"github.com/rs/zerolog"

	"github.com/lokutor-ai/lokutor-callstream/pkg/orchestrator"
)

// Adapter exposes a zerolog logger through orchestrator.Logger. Arguments are
// alternating key/value pairs.
type Adapter struct {
	l zerolog.Logger
}

var _ orchestrator.Logger = (*Adapter)(nil)

func NewAdapter(l zerolog.Logger) *Adapter {
	return &Adapter{l: l}
}

func (a *Adapter) Debug(msg string, args ...interface{}) { a.emit(a.l.Debug(), msg, args) }
func (a *Adapter) Info(msg string, args ...interface{})  { a.emit(a.l.Info(), msg, args) }
func (a *Adapter) Warn(msg string, args ...interface{})  { a.emit(a.l.Warn(), msg, args) }
func (a *Adapter) Error(msg string, args ...interface{}) { a.emit(a.l.Error(), msg, args) }

func (a *Adapter) emit(ev *zerolog.Event, msg string, args []interface{}) {
	if ev == nil {
		return
	}
	for i := 0; i < len(args); i += 2 {
		key, ok := args[i].(string)
		if !ok {
			key = "!BADKEY"
		}
		if i+1 >= len(args) {
			ev = ev.Interface("!MISSING", key)
			break
		}
		switch v := args[i+1].(type) {
		case error:
			ev = ev.AnErr(key, v)
		case fmt.Stringer:
			ev = ev.Str(key, v.String())
		default:
			ev = ev.Interface(key, v)
		}
	}
	ev.Msg(msg)
}
