package tcl

import (
	"fmt"
	"math"
	"math/rand"
	"strconv"
	"strings"

	"github.com/expr-lang/expr"
	"github.com/expr-lang/expr/ast"
	"github.com/slopdrop/slopdrop/pkg/errors"
)

// The expr builtin evaluates infix arithmetic/comparison expressions over
// numeric-looking strings. Variable and command substitution happens first
// (expr re-substitutes even inside braced operands), then the resulting
// expression text is compiled and run. Compiled programs are cached per
// interpreter keyed by the substituted text, so loop conditions with stable
// operand text compile once.

// exprFunctions are the extra functions exposed to expressions beyond the
// compiler's own builtins (abs, int, float, min, max come for free).
var exprFunctions = []expr.Option{
	expr.Function("rand", func(params ...interface{}) (interface{}, error) {
		if len(params) != 0 {
			return nil, fmt.Errorf("rand() takes no arguments")
		}
		return rand.Float64(), nil
	}),
	expr.Function("double", func(params ...interface{}) (interface{}, error) {
		if len(params) != 1 {
			return nil, fmt.Errorf("double() requires 1 argument")
		}
		return toFloat(params[0])
	}),
	expr.Function("sqrt", func(params ...interface{}) (interface{}, error) {
		if len(params) != 1 {
			return nil, fmt.Errorf("sqrt() requires 1 argument")
		}
		f, err := toFloat(params[0])
		if err != nil {
			return nil, err
		}
		return math.Sqrt(f), nil
	}),
	expr.Function("pow", func(params ...interface{}) (interface{}, error) {
		if len(params) != 2 {
			return nil, fmt.Errorf("pow() requires 2 arguments")
		}
		a, err := toFloat(params[0])
		if err != nil {
			return nil, err
		}
		b, err := toFloat(params[1])
		if err != nil {
			return nil, err
		}
		return math.Pow(a, b), nil
	}),
	expr.Function("fmod", func(params ...interface{}) (interface{}, error) {
		if len(params) != 2 {
			return nil, fmt.Errorf("fmod() requires 2 arguments")
		}
		a, err := toFloat(params[0])
		if err != nil {
			return nil, err
		}
		b, err := toFloat(params[1])
		if err != nil {
			return nil, err
		}
		if b == 0 {
			return nil, fmt.Errorf("divide by zero")
		}
		return math.Mod(a, b), nil
	}),
	expr.Function("div", func(params ...interface{}) (interface{}, error) {
		if len(params) != 2 {
			return nil, fmt.Errorf("div() requires 2 arguments")
		}
		ai, aok := asInt(params[0])
		bi, bok := asInt(params[1])
		if aok && bok {
			if bi == 0 {
				return nil, fmt.Errorf("divide by zero")
			}
			q := ai / bi
			// floor division: -7 / 2 is -4, not -3
			if ai%bi != 0 && (ai < 0) != (bi < 0) {
				q--
			}
			return q, nil
		}
		a, err := toFloat(params[0])
		if err != nil {
			return nil, err
		}
		b, err := toFloat(params[1])
		if err != nil {
			return nil, err
		}
		if b == 0 {
			return nil, fmt.Errorf("divide by zero")
		}
		return a / b, nil
	}),
	expr.Function("mod", func(params ...interface{}) (interface{}, error) {
		if len(params) != 2 {
			return nil, fmt.Errorf("mod() requires 2 arguments")
		}
		ai, aok := asInt(params[0])
		bi, bok := asInt(params[1])
		if !aok || !bok {
			return nil, fmt.Errorf("%% requires integer operands")
		}
		if bi == 0 {
			return nil, fmt.Errorf("divide by zero")
		}
		r := ai % bi
		// remainder takes the divisor's sign
		if r != 0 && (r < 0) != (bi < 0) {
			r += bi
		}
		return r, nil
	}),
}

// divPatcher rewrites the / and % binary operators into the checked div and
// mod calls at compile time. The compiler's own / is float division, which
// would make integer operands produce floats and a zero divisor produce
// Inf or NaN instead of a script error.
type divPatcher struct{}

func (divPatcher) Visit(node *ast.Node) {
	n, ok := (*node).(*ast.BinaryNode)
	if !ok {
		return
	}
	var fn string
	switch n.Operator {
	case "/":
		fn = "div"
	case "%":
		fn = "mod"
	default:
		return
	}
	ast.Patch(node, &ast.CallNode{
		Callee:    &ast.IdentifierNode{Value: fn},
		Arguments: []ast.Node{n.Left, n.Right},
	})
}

var exprOptions = append(exprFunctions, expr.Patch(divPatcher{}))

// exprEval evaluates Tcl expression text and renders the result as a string.
func (in *Interp) exprEval(text string) (string, error) {
	v, err := in.exprValue(text)
	if err != nil {
		return "", err
	}
	return formatExprValue(v), nil
}

// exprEvalBool evaluates expression text as a condition.
func (in *Interp) exprEvalBool(text string) (bool, error) {
	v, err := in.exprValue(text)
	if err != nil {
		return false, err
	}
	switch t := v.(type) {
	case bool:
		return t, nil
	case int:
		return t != 0, nil
	case int64:
		return t != 0, nil
	case float64:
		return t != 0, nil
	case string:
		switch strings.ToLower(t) {
		case "1", "true", "yes", "on":
			return true, nil
		case "0", "false", "no", "off", "":
			return false, nil
		}
	}
	return false, errors.Runtime("expr", "expected boolean value but got %q", formatExprValue(v))
}

func (in *Interp) exprValue(text string) (interface{}, error) {
	substituted, err := in.substituteExpr(text)
	if err != nil {
		return nil, err
	}
	program, ok := in.programs[substituted]
	if !ok {
		program, err = expr.Compile(substituted, exprOptions...)
		if err != nil {
			return nil, errors.Runtime("expr", "invalid expression %q: %v", text, exprErrMessage(err))
		}
		in.programs[substituted] = program
	}
	v, err := expr.Run(program, map[string]interface{}{})
	if err != nil {
		// Runtime failures (division by zero, coercion) are script errors,
		// never process faults.
		return nil, errors.Runtime("expr", "%v", exprErrMessage(err))
	}
	if f, ok := v.(float64); ok && (math.IsInf(f, 0) || math.IsNaN(f)) {
		return nil, errors.Runtime("expr", "floating-point value out of range")
	}
	return v, nil
}

func exprErrMessage(err error) string {
	// Compiler and VM errors carry a multi-line source snippet; the first
	// line is the useful part for single-line script output.
	msg := err.Error()
	if i := strings.IndexByte(msg, '\n'); i >= 0 {
		msg = msg[:i]
	}
	return msg
}

// substituteExpr expands $var and [command] references inside expression
// text, quoting non-numeric values so they stay single operands, and maps
// the Tcl-only spellings eq/ne onto == and !=.
func (in *Interp) substituteExpr(text string) (string, error) {
	var b strings.Builder
	i := 0
	for i < len(text) {
		c := text[i]
		switch {
		case c == '$':
			name, next, ok := scanVarName(text, i)
			if !ok {
				b.WriteByte(c)
				i++
				continue
			}
			v, err := in.getVar(name)
			if err != nil {
				return "", err
			}
			b.WriteString(operandRepr(v))
			i = next
		case c == '[':
			script, next, err := scanBracket(text, i)
			if err != nil {
				return "", err
			}
			r, err := in.evalScript(script)
			if err != nil {
				return "", err
			}
			b.WriteString(operandRepr(r.val))
			i = next
		case c == '"':
			j := i + 1
			for j < len(text) && text[j] != '"' {
				if text[j] == '\\' {
					j++
				}
				j++
			}
			if j >= len(text) {
				return "", errors.NewParseError("quote", i)
			}
			b.WriteString(text[i : j+1])
			i = j + 1
		case c == '{':
			// A braced operand is a string literal.
			depth := 1
			j := i + 1
			for j < len(text) && depth > 0 {
				switch text[j] {
				case '{':
					depth++
				case '}':
					depth--
				}
				j++
			}
			if depth != 0 {
				return "", errors.NewParseError("brace", i)
			}
			b.WriteString(strconv.Quote(text[i+1 : j-1]))
			i = j
		case isIdentStart(c):
			j := i
			for j < len(text) && isIdentChar(text[j]) {
				j++
			}
			word := text[i:j]
			switch word {
			case "eq":
				b.WriteString("==")
			case "ne":
				b.WriteString("!=")
			default:
				b.WriteString(word)
			}
			i = j
		default:
			b.WriteByte(c)
			i++
		}
	}
	return b.String(), nil
}

// scanVarName parses a $name or ${name} reference starting at i.
func scanVarName(s string, i int) (name string, next int, ok bool) {
	j := i + 1
	if j < len(s) && s[j] == '{' {
		k := j + 1
		for k < len(s) && s[k] != '}' {
			k++
		}
		if k >= len(s) {
			return "", 0, false
		}
		return s[j+1 : k], k + 1, true
	}
	k := j
	for k < len(s) && isVarNameChar(s[k]) {
		k++
	}
	if k == j {
		return "", 0, false
	}
	return s[j:k], k, true
}

// scanBracket finds the matching close bracket starting at i (an open
// bracket), returning the enclosed script.
func scanBracket(s string, i int) (script string, next int, err error) {
	depth := 1
	j := i + 1
	for j < len(s) {
		switch s[j] {
		case '\\':
			j++
		case '[':
			depth++
		case ']':
			depth--
			if depth == 0 {
				return s[i+1 : j], j + 1, nil
			}
		}
		j++
	}
	return "", 0, errors.NewParseError("bracket", i)
}

// operandRepr renders a substituted value so it re-parses as one operand:
// numbers stay bare, everything else becomes a quoted string literal.
func operandRepr(v string) string {
	if _, err := parseInt(v); err == nil {
		return v
	}
	if _, err := strconv.ParseFloat(v, 64); err == nil {
		return v
	}
	return strconv.Quote(v)
}

// formatExprValue renders an expression result in the language's string
// representation: booleans as 1/0, integral floats with a trailing .0.
func formatExprValue(v interface{}) string {
	switch t := v.(type) {
	case bool:
		if t {
			return "1"
		}
		return "0"
	case int:
		return strconv.Itoa(t)
	case int64:
		return strconv.FormatInt(t, 10)
	case uint64:
		return strconv.FormatUint(t, 10)
	case float64:
		s := strconv.FormatFloat(t, 'g', -1, 64)
		if !strings.ContainsAny(s, ".eE") {
			s += ".0"
		}
		return s
	case string:
		return t
	default:
		return fmt.Sprint(v)
	}
}

func parseInt(s string) (int64, error) {
	return strconv.ParseInt(strings.TrimSpace(s), 10, 64)
}

func asInt(v interface{}) (int64, bool) {
	switch t := v.(type) {
	case int:
		return int64(t), true
	case int64:
		return t, true
	case string:
		n, err := parseInt(t)
		return n, err == nil
	}
	return 0, false
}

func toFloat(v interface{}) (float64, error) {
	switch t := v.(type) {
	case int:
		return float64(t), nil
	case int64:
		return float64(t), nil
	case float64:
		return t, nil
	case string:
		f, err := strconv.ParseFloat(t, 64)
		if err != nil {
			return 0, fmt.Errorf("expected number but got %q", t)
		}
		return f, nil
	default:
		return 0, fmt.Errorf("expected number but got %T", v)
	}
}

func isIdentStart(c byte) bool {
	return c == '_' || (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z')
}

func isIdentChar(c byte) bool {
	return isIdentStart(c) || (c >= '0' && c <= '9')
}
