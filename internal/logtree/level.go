package logtree

import (
	"errors"
	"strconv"
	"strings"

	"github.com/keithlinneman/wireup/internal/xerrors"
)

// Level is a record severity. The zero value NOTSET sorts below every
// real severity, so a NOTSET floor filters nothing.
type Level int

const (
	NOTSET   Level = 0
	DEBUG    Level = 10
	INFO     Level = 20
	WARNING  Level = 30
	ERROR    Level = 40
	CRITICAL Level = 50
)

// ErrInvalidSeverity reports an unrecognized severity token in a
// declaration.
var ErrInvalidSeverity = errors.New("invalid severity")

func (l Level) String() string {
	switch l {
	case NOTSET:
		return "NOTSET"
	case DEBUG:
		return "DEBUG"
	case INFO:
		return "INFO"
	case WARNING:
		return "WARNING"
	case ERROR:
		return "ERROR"
	case CRITICAL:
		return "CRITICAL"
	}
	return "Level(" + strconv.Itoa(int(l)) + ")"
}

// ParseLevel maps a declaration severity token to a Level. Tokens are
// case-insensitive; WARN is accepted for WARNING.
func ParseLevel(tok string) (Level, error) {
	switch strings.ToUpper(strings.TrimSpace(tok)) {
	case "NOTSET":
		return NOTSET, nil
	case "DEBUG":
		return DEBUG, nil
	case "INFO":
		return INFO, nil
	case "WARN", "WARNING":
		return WARNING, nil
	case "ERROR":
		return ERROR, nil
	case "CRITICAL", "FATAL":
		return CRITICAL, nil
	}
	return NOTSET, xerrors.Wrapf(ErrInvalidSeverity, "unknown severity token %q", tok)
}
