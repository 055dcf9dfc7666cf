package ldif

import (
	"bufio"
	"io"
	"strings"

	"github.com/isometry/dirconv/internal/ldap"
)

const maxLineSize = 64 << 20

// logicalLine is one unfolded LDIF line and the number of the physical line
// it starts on.
type logicalLine struct {
	text string
	line int
}

func (l logicalLine) blank() bool {
	return l.text == ""
}

// lineReader unfolds continuation lines and drops comments.
type lineReader struct {
	scanner *bufio.Scanner
	lineNo  int

	peeked    string
	hasPeeked bool
}

func newLineReader(r io.Reader) *lineReader {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), maxLineSize)
	return &lineReader{scanner: scanner}
}

// physical returns the next physical line with any trailing CR removed.
func (lr *lineReader) physical() (string, bool, error) {
	if lr.hasPeeked {
		lr.hasPeeked = false
		lr.lineNo++
		return lr.peeked, true, nil
	}
	if !lr.scanner.Scan() {
		if err := lr.scanner.Err(); err != nil {
			return "", false, ldap.WrapIO("ldif read", err)
		}
		return "", false, nil
	}
	lr.lineNo++
	return strings.TrimSuffix(lr.scanner.Text(), "\r"), true, nil
}

// continuation reports whether the next physical line continues the current one.
func (lr *lineReader) continuation() (bool, error) {
	if !lr.hasPeeked {
		if !lr.scanner.Scan() {
			if err := lr.scanner.Err(); err != nil {
				return false, ldap.WrapIO("ldif read", err)
			}
			return false, nil
		}
		lr.peeked = strings.TrimSuffix(lr.scanner.Text(), "\r")
		lr.hasPeeked = true
	}
	return strings.HasPrefix(lr.peeked, " "), nil
}

// next returns the next logical line. ok is false at end of input.
func (lr *lineReader) next() (logicalLine, bool, error) {
	for {
		text, ok, err := lr.physical()
		if err != nil || !ok {
			return logicalLine{}, false, err
		}
		start := lr.lineNo

		if text == "" {
			return logicalLine{line: start}, true, nil
		}

		if strings.HasPrefix(text, " ") {
			return logicalLine{}, false, ldap.GrammarError("ldif read", start, 1, "attribute line", "continuation line without a preceding line")
		}

		comment := strings.HasPrefix(text, "#")

		var b strings.Builder
		b.WriteString(text)
		for {
			more, err := lr.continuation()
			if err != nil {
				return logicalLine{}, false, err
			}
			if !more {
				break
			}
			cont, _, _ := lr.physical()
			b.WriteString(cont[1:])
		}

		if comment {
			continue
		}
		return logicalLine{text: b.String(), line: start}, true, nil
	}
}

// Fold splits s into physical lines of at most width bytes. Continuation
// lines start with a single space. Lines are joined with lineEnding.
func Fold(s string, width int, lineEnding string) string {
	if width < 2 || len(s) <= width {
		return s
	}

	var b strings.Builder
	b.Grow(len(s) + (len(s)/(width-1)+1)*(len(lineEnding)+1))

	b.WriteString(s[:width])
	for rest := s[width:]; rest != ""; {
		n := min(width-1, len(rest))
		b.WriteString(lineEnding)
		b.WriteByte(' ')
		b.WriteString(rest[:n])
		rest = rest[n:]
	}
	return b.String()
}

// Unfold reverses Fold: every line after the first loses its leading space
// and is appended to the previous one.
func Unfold(s string, lineEnding string) string {
	parts := strings.Split(s, lineEnding)

	var b strings.Builder
	b.WriteString(parts[0])
	for _, p := range parts[1:] {
		b.WriteString(strings.TrimPrefix(p, " "))
	}
	return b.String()
}
