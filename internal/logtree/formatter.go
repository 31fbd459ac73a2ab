package logtree

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Record is a single log event flowing through the topology.
type Record struct {
	Time    time.Time
	Name    string // logger name the record was emitted against
	Level   Level
	Message string
	PID     int
}

// Formatter renders records from a template with %(field)s placeholders.
// Recognized fields: asctime, created, name, levelname, levelno, process,
// message. Unknown fields render empty. Formatters are immutable after
// compilation.
type Formatter struct {
	name     string
	template string
	segments []segment
}

// segment is either a literal run or a named field reference.
type segment struct {
	literal string
	field   string
}

// NewFormatter compiles a template. Placeholders are %(field) followed by
// a single verb letter (s, d, and friends all render the same way here).
// Malformed placeholders are kept as literals, matching how lenient the
// source format is about stray percent signs.
func NewFormatter(name, template string) *Formatter {
	f := &Formatter{name: name, template: template}
	rest := template
	for {
		i := strings.Index(rest, "%(")
		if i < 0 {
			break
		}
		j := strings.Index(rest[i:], ")")
		if j < 0 || i+j+1 >= len(rest) || !isVerb(rest[i+j+1]) {
			break
		}
		if i > 0 {
			f.segments = append(f.segments, segment{literal: rest[:i]})
		}
		f.segments = append(f.segments, segment{field: rest[i+2 : i+j]})
		rest = rest[i+j+2:]
	}
	if rest != "" {
		f.segments = append(f.segments, segment{literal: rest})
	}
	return f
}

func isVerb(c byte) bool {
	return (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z')
}

func (f *Formatter) Name() string { return f.name }

// Render produces the textual form of a record.
func (f *Formatter) Render(r Record) string {
	var b strings.Builder
	for _, s := range f.segments {
		if s.field == "" {
			b.WriteString(s.literal)
			continue
		}
		b.WriteString(f.renderField(s.field, r))
	}
	return b.String()
}

func (f *Formatter) renderField(field string, r Record) string {
	switch field {
	case "asctime":
		// 2006-01-02 15:04:05,123 with a comma before milliseconds
		return r.Time.Format("2006-01-02 15:04:05") + "," + fmt.Sprintf("%03d", r.Time.Nanosecond()/int(time.Millisecond))
	case "created":
		return strconv.FormatFloat(float64(r.Time.UnixNano())/float64(time.Second), 'f', 6, 64)
	case "name":
		if r.Name == "" {
			return "root"
		}
		return r.Name
	case "levelname":
		return r.Level.String()
	case "levelno":
		return strconv.Itoa(int(r.Level))
	case "process":
		return strconv.Itoa(r.PID)
	case "message":
		return r.Message
	}
	return ""
}
