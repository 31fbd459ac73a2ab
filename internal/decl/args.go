package decl

import (
	"strings"

	"github.com/keithlinneman/wireup/internal/xerrors"
)

// ParseArgs parses a handler's positional constructor arguments, written
// in the declaration as a tuple literal: (sys.stderr,) or
// ('https://key@errors.example.com/1', 'WARNING'). Quoted elements are
// unquoted; bare tokens are kept verbatim. A trailing comma is allowed.
// An empty string or () yields no arguments.
func ParseArgs(s string) ([]string, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, nil
	}
	if !strings.HasPrefix(s, "(") || !strings.HasSuffix(s, ")") {
		return nil, xerrors.Newf("args %q: expected tuple literal", s)
	}
	body := s[1 : len(s)-1]

	var (
		out  []string
		i    int
		last = len(body)
	)
	for i < last {
		// skip element separators
		for i < last && (body[i] == ' ' || body[i] == '\t' || body[i] == '\n') {
			i++
		}
		if i >= last {
			break
		}

		switch body[i] {
		case ',':
			return nil, xerrors.Newf("args %q: empty element", s)
		case '\'', '"':
			quote := body[i]
			i++
			var b strings.Builder
			closed := false
			for i < last {
				c := body[i]
				if c == '\\' && i+1 < last {
					b.WriteByte(body[i+1])
					i += 2
					continue
				}
				if c == quote {
					closed = true
					i++
					break
				}
				b.WriteByte(c)
				i++
			}
			if !closed {
				return nil, xerrors.Newf("args %q: unterminated string", s)
			}
			out = append(out, b.String())
		default:
			start := i
			for i < last && body[i] != ',' {
				i++
			}
			tok := strings.TrimSpace(body[start:i])
			if tok == "" {
				return nil, xerrors.Newf("args %q: empty element", s)
			}
			out = append(out, tok)
		}

		// past the element: expect comma or end
		for i < last && (body[i] == ' ' || body[i] == '\t' || body[i] == '\n') {
			i++
		}
		if i < last {
			if body[i] != ',' {
				return nil, xerrors.Newf("args %q: expected comma at offset %d", s, i)
			}
			i++
		}
	}
	return out, nil
}
