package at

import (
	"strconv"
	"strings"
)

// Line walks the comma separated fields of an information line such as
// `+CREG: 1,"4145",7`. Call Start first to move past the prefix, then read
// the fields in order with the typed Next methods.
//
// A Line never panics on malformed input; every accessor returns a
// *ParseError wrapping ErrParse instead.
type Line struct {
	raw  string
	rest string
	// end is set once the last field has been consumed
	end   bool
	field int
}

// NewLine returns a Line positioned at the start of s.
func NewLine(s string) *Line {
	return &Line{raw: s, rest: s}
}

// Raw returns the unmodified line.
func (l *Line) Raw() string { return l.raw }

// Start skips everything up to and including the first ':'.
func (l *Line) Start() error {
	i := strings.IndexByte(l.rest, ':')
	if i < 0 {
		return l.fail("prefix")
	}
	l.rest = l.rest[i+1:]
	return nil
}

// HasMore reports whether any unread field text remains.
func (l *Line) HasMore() bool {
	return !l.end && l.rest != ""
}

// NextInt reads a decimal integer field.
func (l *Line) NextInt() (int, error) {
	return l.nextInt(10, "int")
}

// NextHexInt reads a hexadecimal integer field without a 0x prefix. Numeric
// fields may be quoted.
func (l *Line) NextHexInt() (int, error) {
	return l.nextInt(16, "hex int")
}

// NextBool reads a 0/1 field.
func (l *Line) NextBool() (bool, error) {
	n, err := l.nextInt(10, "bool")
	if err != nil {
		return false, err
	}
	switch n {
	case 0:
		return false, nil
	case 1:
		return true, nil
	default:
		return false, l.fail("bool")
	}
}

// NextString reads a string field. Surrounding double quotes are removed;
// unquoted text runs to the next comma.
func (l *Line) NextString() (string, error) {
	if l.end {
		return "", l.fail("string")
	}
	l.rest = strings.TrimLeft(l.rest, " ")
	if !strings.HasPrefix(l.rest, `"`) {
		return l.next(), nil
	}
	closing := strings.IndexByte(l.rest[1:], '"')
	if closing < 0 {
		return "", l.fail("quoted string")
	}
	s := l.rest[1 : closing+1]
	l.rest = l.rest[closing+2:]
	// drop anything between the closing quote and the separator
	l.next()
	return s, nil
}

// Skip discards the next field regardless of its type.
func (l *Line) Skip() error {
	_, err := l.NextString()
	return err
}

// SkipN discards n fields.
func (l *Line) SkipN(n int) error {
	for range n {
		if err := l.Skip(); err != nil {
			return err
		}
	}
	return nil
}

func (l *Line) nextInt(base int, want string) (int, error) {
	if l.end {
		return 0, l.fail(want)
	}
	tok := strings.Trim(strings.TrimSpace(l.next()), `"`)
	n, err := strconv.ParseInt(tok, base, 64)
	if err != nil {
		return 0, l.fail(want)
	}
	return int(n), nil
}

func (l *Line) next() string {
	l.rest = strings.TrimLeft(l.rest, " ")
	var tok string
	if i := strings.IndexByte(l.rest, ','); i >= 0 {
		tok, l.rest = l.rest[:i], l.rest[i+1:]
	} else {
		tok, l.rest, l.end = l.rest, "", true
	}
	l.field++
	return tok
}

func (l *Line) fail(want string) error {
	return &ParseError{Line: l.raw, Field: l.field, Want: want}
}
