package dictprotocol

import (
	"strconv"
	"strings"
)

// ParseStatus decodes a status line into its code and detail text.
//
// The line must start with three digits forming a code in [100,599],
// followed by end of line or a space. A trailing CR is ignored.
func ParseStatus(line string) (Status, error) {
	trimmed := strings.TrimRight(line, "\r\n")
	if len(trimmed) < 3 {
		return Status{}, newMalformedStatusError(trimmed)
	}
	if len(trimmed) > 3 && trimmed[3] != ' ' {
		return Status{}, newMalformedStatusError(trimmed)
	}

	for i := 0; i < 3; i++ {
		if trimmed[i] < '0' || trimmed[i] > '9' {
			return Status{}, newMalformedStatusError(trimmed)
		}
	}
	code, _ := strconv.Atoi(trimmed[:3])
	if code < 100 || code > 599 {
		return Status{}, newMalformedStatusError(trimmed)
	}

	detail := ""
	if len(trimmed) > 4 {
		detail = strings.TrimSpace(trimmed[4:])
	}
	return Status{Code: code, Detail: detail}, nil
}

// SplitAtoms splits a response line into atoms.
//
// Atoms are separated by spaces or tabs. An atom that starts with a double
// or single quote extends to the matching closing quote and is returned
// without the quotes; inside it, a backslash escapes the next character.
// An unterminated quote runs to the end of the line.
func SplitAtoms(line string) []string {
	var atoms []string
	i, n := 0, len(line)

	for i < n {
		for i < n && isAtomSpace(line[i]) {
			i++
		}
		if i >= n {
			break
		}

		if q := line[i]; q == '"' || q == '\'' {
			var b strings.Builder
			i++
			for i < n && line[i] != q {
				if line[i] == '\\' && i+1 < n {
					i++
				}
				b.WriteByte(line[i])
				i++
			}
			i++ // closing quote
			atoms = append(atoms, b.String())
			continue
		}

		start := i
		for i < n && !isAtomSpace(line[i]) {
			i++
		}
		atoms = append(atoms, line[start:i])
	}
	return atoms
}

func isAtomSpace(c byte) bool {
	return c == ' ' || c == '\t' || c == '\r' || c == '\n'
}

// IsListTerminator reports whether line ends a database, strategy or match
// listing. Servers may append timing details after "250 ok".
func IsListTerminator(line string) bool {
	return line == ListTerminator || strings.HasPrefix(line, ListTerminator+" ")
}

// IsBlockTerminator reports whether line ends a text body.
func IsBlockTerminator(line string) bool {
	return line == BlockTerminator
}
