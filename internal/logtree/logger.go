package logtree

import (
	"os"
	"time"
)

// Logger is a node in the topology's logger tree. Nodes are built once at
// startup and never mutated, so emitting is lock-free.
type Logger struct {
	qualname  string
	floor     Level
	handlers  []Handler
	propagate bool
	parent    *Logger // nil only on the root
}

func (l *Logger) Qualname() string {
	if l.qualname == "" {
		return "root"
	}
	return l.qualname
}

func (l *Logger) Floor() Level { return l.floor }

// Enabled reports whether a record of the given severity would be
// accepted by this node.
func (l *Logger) Enabled(level Level) bool { return level >= l.floor }

// Log emits a record against this node. name is the full dotted name the
// caller addressed (which may be a descendant of this declared node) and
// is preserved on the record for formatting.
func (l *Logger) Log(level Level, name string, msg string) {
	if level < l.floor {
		return
	}
	if name == "" {
		name = l.Qualname()
	}
	l.offer(Record{
		Time:    time.Now(),
		Name:    name,
		Level:   level,
		Message: msg,
		PID:     os.Getpid(),
	})
}

// offer delivers a record to this node's handlers and, if propagation is
// on, walks it up the owned parent chain. Each node's floor gates only
// its own handlers; the walk itself is controlled by the propagate flags,
// so an ancestor with a high floor stays silent without cutting off the
// chain above it. Handlers additionally apply their own floors.
func (l *Logger) offer(r Record) {
	if r.Level >= l.floor {
		for _, h := range l.handlers {
			h.Emit(r)
		}
	}
	if l.propagate && l.parent != nil {
		l.parent.offer(r)
	}
}
