package logtree

import (
	"io"
	"strings"
	"sync"

	"github.com/keithlinneman/wireup/internal/report"
)

// Handler is a log sink bound to a formatter and a severity floor. A
// NOTSET floor applies no filtering beyond the owning logger's own floor.
type Handler interface {
	Name() string
	Floor() Level
	Emit(r Record)
}

// streamHandler writes rendered records to a console stream, one per
// line. Writes are serialized so interleaved loggers stay readable.
type streamHandler struct {
	name  string
	floor Level
	f     *Formatter

	mu sync.Mutex
	w  io.Writer
}

func newStreamHandler(name string, floor Level, f *Formatter, w io.Writer) *streamHandler {
	return &streamHandler{name: name, floor: floor, f: f, w: w}
}

func (h *streamHandler) Name() string { return h.name }
func (h *streamHandler) Floor() Level { return h.floor }

func (h *streamHandler) Emit(r Record) {
	if r.Level < h.floor {
		return
	}
	line := h.f.Render(r)
	h.mu.Lock()
	defer h.mu.Unlock()
	io.WriteString(h.w, line+"\n")
}

// reportHandler forwards records to the error-report collector.
type reportHandler struct {
	name  string
	floor Level
	f     *Formatter
	rep   report.Reporter
}

func newReportHandler(name string, floor Level, f *Formatter, rep report.Reporter) *reportHandler {
	return &reportHandler{name: name, floor: floor, f: f, rep: rep}
}

func (h *reportHandler) Name() string { return h.name }
func (h *reportHandler) Floor() Level { return h.floor }

func (h *reportHandler) Emit(r Record) {
	if r.Level < h.floor {
		return
	}
	h.rep.Capture(report.Event{
		Timestamp: r.Time,
		Level:     strings.ToLower(r.Level.String()),
		Logger:    r.Name,
		Message:   r.Message,
	})
}
