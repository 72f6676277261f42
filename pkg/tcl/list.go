package tcl

import (
	"strings"

	"github.com/slopdrop/slopdrop/pkg/errors"
)

// The language is string-typed; lists are strings with whitespace-separated
// elements, brace-quoted when an element contains whitespace or braces.

// needsQuoting reports whether a list element must be brace-quoted to
// round-trip through listSplit.
func needsQuoting(s string) bool {
	if s == "" {
		return true
	}
	return strings.ContainsAny(s, " \t\n\r{}\"")
}

// listJoin renders elements as a single list string.
func listJoin(elems []string) string {
	var b strings.Builder
	for i, e := range elems {
		if i > 0 {
			b.WriteByte(' ')
		}
		if needsQuoting(e) {
			b.WriteByte('{')
			b.WriteString(e)
			b.WriteByte('}')
		} else {
			b.WriteString(e)
		}
	}
	return b.String()
}

// listSplit parses a list string into its elements, honoring brace and
// quote grouping.
func listSplit(s string) ([]string, error) {
	var elems []string
	i := 0
	for i < len(s) {
		for i < len(s) && isListSpace(s[i]) {
			i++
		}
		if i >= len(s) {
			break
		}
		switch s[i] {
		case '{':
			depth := 1
			j := i + 1
			for j < len(s) && depth > 0 {
				switch s[j] {
				case '\\':
					j++
				case '{':
					depth++
				case '}':
					depth--
				}
				j++
			}
			if depth != 0 {
				return nil, errors.Runtime("", "unmatched open brace in list")
			}
			elems = append(elems, s[i+1:j-1])
			i = j
		case '"':
			j := i + 1
			for j < len(s) && s[j] != '"' {
				if s[j] == '\\' {
					j++
				}
				j++
			}
			if j >= len(s) {
				return nil, errors.Runtime("", "unmatched open quote in list")
			}
			elems = append(elems, s[i+1:j])
			i = j + 1
		default:
			j := i
			for j < len(s) && !isListSpace(s[j]) {
				j++
			}
			elems = append(elems, s[i:j])
			i = j
		}
	}
	return elems, nil
}

func isListSpace(c byte) bool {
	return c == ' ' || c == '\t' || c == '\n' || c == '\r'
}

// resolveListIndex parses an index spec, supporting "end" and "end-N".
func resolveListIndex(spec string, length int) (int, error) {
	if spec == "end" {
		return length - 1, nil
	}
	if rest, ok := strings.CutPrefix(spec, "end-"); ok {
		n, err := parseInt(rest)
		if err != nil {
			return 0, errors.Runtime("", "bad index %q: must be integer or end?-integer?", spec)
		}
		return length - 1 - int(n), nil
	}
	n, err := parseInt(spec)
	if err != nil {
		return 0, errors.Runtime("", "bad index %q: must be integer or end?-integer?", spec)
	}
	return int(n), nil
}
