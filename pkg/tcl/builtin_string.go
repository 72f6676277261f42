package tcl

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/slopdrop/slopdrop/pkg/errors"
)

func init() {
	registerBuiltin("string", builtinString)
	registerBuiltin("format", builtinFormat)
}

func builtinString(in *Interp, args []string) (result, error) {
	if err := arity("string", args, 2, -1); err != nil {
		return result{}, err
	}
	sub := args[0]
	rest := args[1:]
	switch sub {
	case "length":
		if err := arity("string length", rest, 1, 1); err != nil {
			return result{}, err
		}
		return normal(strconv.Itoa(len([]rune(rest[0])))), nil
	case "toupper":
		if err := arity("string toupper", rest, 1, 1); err != nil {
			return result{}, err
		}
		return normal(strings.ToUpper(rest[0])), nil
	case "tolower":
		if err := arity("string tolower", rest, 1, 1); err != nil {
			return result{}, err
		}
		return normal(strings.ToLower(rest[0])), nil
	case "trim":
		if err := arity("string trim", rest, 1, 2); err != nil {
			return result{}, err
		}
		cutset := " \t\n\r"
		if len(rest) == 2 {
			cutset = rest[1]
		}
		return normal(strings.Trim(rest[0], cutset)), nil
	case "index":
		if err := arity("string index", rest, 2, 2); err != nil {
			return result{}, err
		}
		runes := []rune(rest[0])
		idx, err := resolveListIndex(rest[1], len(runes))
		if err != nil {
			return result{}, err
		}
		if idx < 0 || idx >= len(runes) {
			return normal(""), nil
		}
		return normal(string(runes[idx])), nil
	case "range":
		if err := arity("string range", rest, 3, 3); err != nil {
			return result{}, err
		}
		runes := []rune(rest[0])
		first, err := resolveListIndex(rest[1], len(runes))
		if err != nil {
			return result{}, err
		}
		last, err := resolveListIndex(rest[2], len(runes))
		if err != nil {
			return result{}, err
		}
		if first < 0 {
			first = 0
		}
		if last >= len(runes) {
			last = len(runes) - 1
		}
		if first > last {
			return normal(""), nil
		}
		return normal(string(runes[first : last+1])), nil
	case "match":
		if err := arity("string match", rest, 2, 2); err != nil {
			return result{}, err
		}
		if globMatch([]rune(rest[0]), []rune(rest[1])) {
			return normal("1"), nil
		}
		return normal("0"), nil
	case "equal":
		if err := arity("string equal", rest, 2, 2); err != nil {
			return result{}, err
		}
		if rest[0] == rest[1] {
			return normal("1"), nil
		}
		return normal("0"), nil
	case "first":
		if err := arity("string first", rest, 2, 2); err != nil {
			return result{}, err
		}
		return normal(strconv.Itoa(strings.Index(rest[1], rest[0]))), nil
	case "repeat":
		if err := arity("string repeat", rest, 2, 2); err != nil {
			return result{}, err
		}
		n, err := parseInt(rest[1])
		if err != nil || n < 0 {
			return result{}, errors.Runtime("string repeat", "expected non-negative integer but got %q", rest[1])
		}
		if n > 1<<20 {
			return result{}, errors.Runtime("string repeat", "repeat count %d too large", n)
		}
		return normal(strings.Repeat(rest[0], int(n))), nil
	case "reverse":
		if err := arity("string reverse", rest, 1, 1); err != nil {
			return result{}, err
		}
		runes := []rune(rest[0])
		for i, j := 0, len(runes)-1; i < j; i, j = i+1, j-1 {
			runes[i], runes[j] = runes[j], runes[i]
		}
		return normal(string(runes)), nil
	default:
		return result{}, errors.Runtime("string", "unknown string subcommand %q", sub)
	}
}

// globMatch implements the glob dialect of string match: * matches any
// sequence of characters (there is no path separator special case), ? matches
// one character, [a-z] matches a class, and \x matches x literally.
func globMatch(p, s []rune) bool {
	for len(p) > 0 {
		switch p[0] {
		case '*':
			for len(p) > 0 && p[0] == '*' {
				p = p[1:]
			}
			if len(p) == 0 {
				return true
			}
			for i := 0; i <= len(s); i++ {
				if globMatch(p, s[i:]) {
					return true
				}
			}
			return false
		case '?':
			if len(s) == 0 {
				return false
			}
			p, s = p[1:], s[1:]
		case '[':
			if len(s) == 0 {
				return false
			}
			ok, rest := matchClass(p, s[0])
			if !ok {
				return false
			}
			p, s = rest, s[1:]
		case '\\':
			if len(p) > 1 {
				p = p[1:]
			}
			fallthrough
		default:
			if len(s) == 0 || p[0] != s[0] {
				return false
			}
			p, s = p[1:], s[1:]
		}
	}
	return len(s) == 0
}

// matchClass matches c against the [...] class opening at p[0]. An
// unterminated class matches nothing.
func matchClass(p []rune, c rune) (ok bool, rest []rune) {
	i := 1
	matched := false
	for i < len(p) && p[i] != ']' {
		lo := p[i]
		if i+2 < len(p) && p[i+1] == '-' && p[i+2] != ']' {
			if lo <= c && c <= p[i+2] {
				matched = true
			}
			i += 3
		} else {
			if c == lo {
				matched = true
			}
			i++
		}
	}
	if i >= len(p) {
		return false, nil
	}
	return matched, p[i+1:]
}

// builtinFormat implements a subset of format: %s %d %i %f %g %x %X %o %c %%
// with optional width/precision/zero-pad flags, enough for the scripts the
// runtime hosts.
func builtinFormat(in *Interp, args []string) (result, error) {
	if err := arity("format", args, 1, -1); err != nil {
		return result{}, err
	}
	spec := args[0]
	values := args[1:]
	var b strings.Builder
	vi := 0
	i := 0
	for i < len(spec) {
		c := spec[i]
		if c != '%' {
			b.WriteByte(c)
			i++
			continue
		}
		j := i + 1
		for j < len(spec) && (spec[j] == '-' || spec[j] == '+' || spec[j] == ' ' ||
			spec[j] == '0' || spec[j] == '.' || (spec[j] >= '0' && spec[j] <= '9')) {
			j++
		}
		if j >= len(spec) {
			return result{}, errors.Runtime("format", "format string ended in middle of field specifier")
		}
		verb := spec[j]
		directive := spec[i : j+1]
		i = j + 1
		if verb == '%' {
			b.WriteByte('%')
			continue
		}
		if vi >= len(values) {
			return result{}, errors.Runtime("format", "not enough arguments for all format specifiers")
		}
		arg := values[vi]
		vi++
		switch verb {
		case 's':
			fmt.Fprintf(&b, directive, arg)
		case 'd', 'i', 'x', 'X', 'o', 'c':
			n, err := parseInt(arg)
			if err != nil {
				return result{}, errors.Runtime("format", "expected integer but got %q", arg)
			}
			d := directive
			if verb == 'i' {
				d = d[:len(d)-1] + "d"
			}
			if verb == 'c' {
				fmt.Fprintf(&b, d, rune(n))
			} else {
				fmt.Fprintf(&b, d, n)
			}
		case 'f', 'g', 'e':
			f, err := strconv.ParseFloat(strings.TrimSpace(arg), 64)
			if err != nil {
				return result{}, errors.Runtime("format", "expected floating-point number but got %q", arg)
			}
			fmt.Fprintf(&b, directive, f)
		default:
			return result{}, errors.Runtime("format", "bad field specifier %q", string(verb))
		}
	}
	return normal(b.String()), nil
}
