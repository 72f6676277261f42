package tcl

import (
	goerrors "errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/slopdrop/slopdrop/pkg/errors"
)

func init() {
	registerBuiltin("set", builtinSet)
	registerBuiltin("unset", builtinUnset)
	registerBuiltin("incr", builtinIncr)
	registerBuiltin("append", builtinAppend)
	registerBuiltin("puts", builtinPuts)
	registerBuiltin("proc", builtinProc)
	registerBuiltin("return", builtinReturn)
	registerBuiltin("break", builtinBreak)
	registerBuiltin("continue", builtinContinue)
	registerBuiltin("if", builtinIf)
	registerBuiltin("while", builtinWhile)
	registerBuiltin("for", builtinFor)
	registerBuiltin("foreach", builtinForeach)
	registerBuiltin("expr", builtinExpr)
	registerBuiltin("catch", builtinCatch)
	registerBuiltin("error", builtinError)
	registerBuiltin("global", builtinGlobal)
	registerBuiltin("eval", builtinEval)
}

func arity(name string, args []string, min, max int) error {
	if len(args) < min || (max >= 0 && len(args) > max) {
		return errors.NewEvalError(name, fmt.Sprintf("wrong # args to %q", name), errors.ErrArityMismatch)
	}
	return nil
}

func builtinSet(in *Interp, args []string) (result, error) {
	if err := arity("set", args, 1, 2); err != nil {
		return result{}, err
	}
	if len(args) == 1 {
		v, err := in.getVar(args[0])
		if err != nil {
			return result{}, err
		}
		return normal(v), nil
	}
	if err := in.setVar(args[0], args[1]); err != nil {
		return result{}, err
	}
	return normal(args[1]), nil
}

func builtinUnset(in *Interp, args []string) (result, error) {
	if err := arity("unset", args, 1, -1); err != nil {
		return result{}, err
	}
	for _, name := range args {
		if err := in.unsetVar(name); err != nil {
			return result{}, err
		}
	}
	return normal(""), nil
}

func builtinIncr(in *Interp, args []string) (result, error) {
	if err := arity("incr", args, 1, 2); err != nil {
		return result{}, err
	}
	delta := int64(1)
	if len(args) == 2 {
		d, err := parseInt(args[1])
		if err != nil {
			return result{}, errors.Runtime("incr", "expected integer but got %q", args[1])
		}
		delta = d
	}
	cur := int64(0)
	if v, err := in.getVar(args[0]); err == nil {
		n, perr := parseInt(v)
		if perr != nil {
			return result{}, errors.Runtime("incr", "expected integer but got %q", v)
		}
		cur = n
	}
	next := strconv.FormatInt(cur+delta, 10)
	if err := in.setVar(args[0], next); err != nil {
		return result{}, err
	}
	return normal(next), nil
}

func builtinAppend(in *Interp, args []string) (result, error) {
	if err := arity("append", args, 1, -1); err != nil {
		return result{}, err
	}
	cur, _ := in.getVar(args[0])
	cur += strings.Join(args[1:], "")
	if err := in.setVar(args[0], cur); err != nil {
		return result{}, err
	}
	return normal(cur), nil
}

func builtinPuts(in *Interp, args []string) (result, error) {
	if err := arity("puts", args, 1, 2); err != nil {
		return result{}, err
	}
	if len(args) == 2 {
		if args[0] != "-nonewline" {
			return result{}, errors.Runtime("puts", "bad option %q: channels are not supported", args[0])
		}
		in.pending += args[1]
		return normal(""), nil
	}
	in.emit(args[0])
	return normal(""), nil
}

// builtinProc defines or redefines a procedure. Redefining an existing
// procedure is admin-gated; the check runs here so invocations nested inside
// other procedure bodies inherit the submitting caller's privilege.
func builtinProc(in *Interp, args []string) (result, error) {
	if err := arity("proc", args, 3, 3); err != nil {
		return result{}, err
	}
	name, paramSpec, body := args[0], args[1], args[2]
	if IsBuiltin(name) {
		return result{}, errors.Runtime("proc", "cannot redefine builtin command %q", name)
	}
	if _, exists := in.env.Procs[name]; exists && !in.caller.Admin {
		return result{}, errors.NewEvalError("proc",
			fmt.Sprintf("redefining %q requires privileges", name), errors.ErrPermissionDenied)
	}
	params, err := parseParamSpec(paramSpec)
	if err != nil {
		return result{}, err
	}
	in.env.Procs[name] = Proc{Name: name, Params: params, Body: body}
	return normal(""), nil
}

// parseParamSpec parses a parameter list: each element is either a name or
// a {name default} pair.
func parseParamSpec(spec string) ([]Param, error) {
	elems, err := listSplit(spec)
	if err != nil {
		return nil, err
	}
	params := make([]Param, 0, len(elems))
	for _, e := range elems {
		parts, err := listSplit(e)
		if err != nil {
			return nil, err
		}
		switch len(parts) {
		case 1:
			params = append(params, Param{Name: parts[0]})
		case 2:
			params = append(params, Param{Name: parts[0], Default: parts[1], HasDefault: true})
		default:
			return nil, errors.Runtime("proc", "too many fields in argument specifier %q", e)
		}
	}
	return params, nil
}

func builtinReturn(in *Interp, args []string) (result, error) {
	if err := arity("return", args, 0, 1); err != nil {
		return result{}, err
	}
	val := ""
	if len(args) == 1 {
		val = args[0]
	}
	return result{val: val, flow: flowReturn}, nil
}

func builtinBreak(in *Interp, args []string) (result, error) {
	if err := arity("break", args, 0, 0); err != nil {
		return result{}, err
	}
	return result{flow: flowBreak}, nil
}

func builtinContinue(in *Interp, args []string) (result, error) {
	if err := arity("continue", args, 0, 0); err != nil {
		return result{}, err
	}
	return result{flow: flowContinue}, nil
}

// builtinIf handles: if cond ?then? body ?elseif cond ?then? body?* ?else? body
func builtinIf(in *Interp, args []string) (result, error) {
	i := 0
	for {
		if i >= len(args) {
			return result{}, errors.Runtime("if", "wrong # args: no expression after %q", "if")
		}
		cond := args[i]
		i++
		if i < len(args) && args[i] == "then" {
			i++
		}
		if i >= len(args) {
			return result{}, errors.Runtime("if", "wrong # args: no script following condition")
		}
		body := args[i]
		i++
		ok, err := in.exprEvalBool(cond)
		if err != nil {
			return result{}, err
		}
		if ok {
			return in.evalScript(body)
		}
		if i >= len(args) {
			return normal(""), nil
		}
		switch args[i] {
		case "elseif":
			i++
			continue
		case "else":
			i++
			if i != len(args)-1 {
				return result{}, errors.Runtime("if", "wrong # args: extra words after else clause")
			}
			return in.evalScript(args[i])
		default:
			return result{}, errors.Runtime("if", "expected elseif or else but got %q", args[i])
		}
	}
}

func builtinWhile(in *Interp, args []string) (result, error) {
	if err := arity("while", args, 2, 2); err != nil {
		return result{}, err
	}
	cond, body := args[0], args[1]
	for {
		if err := in.spendStep(); err != nil {
			return result{}, err
		}
		ok, err := in.exprEvalBool(cond)
		if err != nil {
			return result{}, err
		}
		if !ok {
			return normal(""), nil
		}
		r, err := in.evalScript(body)
		if err != nil {
			return result{}, err
		}
		switch r.flow {
		case flowBreak:
			return normal(""), nil
		case flowReturn:
			return r, nil
		}
	}
}

func builtinFor(in *Interp, args []string) (result, error) {
	if err := arity("for", args, 4, 4); err != nil {
		return result{}, err
	}
	start, cond, next, body := args[0], args[1], args[2], args[3]
	if _, err := in.evalScript(start); err != nil {
		return result{}, err
	}
	for {
		if err := in.spendStep(); err != nil {
			return result{}, err
		}
		ok, err := in.exprEvalBool(cond)
		if err != nil {
			return result{}, err
		}
		if !ok {
			return normal(""), nil
		}
		r, err := in.evalScript(body)
		if err != nil {
			return result{}, err
		}
		switch r.flow {
		case flowBreak:
			return normal(""), nil
		case flowReturn:
			return r, nil
		}
		if _, err := in.evalScript(next); err != nil {
			return result{}, err
		}
	}
}

// builtinForeach iterates variable names over list elements. Multiple names
// consume the list in strides: foreach {k v} $pairs ...
func builtinForeach(in *Interp, args []string) (result, error) {
	if err := arity("foreach", args, 3, 3); err != nil {
		return result{}, err
	}
	names, err := listSplit(args[0])
	if err != nil {
		return result{}, err
	}
	if len(names) == 0 {
		return result{}, errors.Runtime("foreach", "foreach varlist is empty")
	}
	elems, err := listSplit(args[1])
	if err != nil {
		return result{}, err
	}
	body := args[2]
	for i := 0; i < len(elems); i += len(names) {
		if err := in.spendStep(); err != nil {
			return result{}, err
		}
		for j, name := range names {
			v := ""
			if i+j < len(elems) {
				v = elems[i+j]
			}
			if err := in.setVar(name, v); err != nil {
				return result{}, err
			}
		}
		r, err := in.evalScript(body)
		if err != nil {
			return result{}, err
		}
		switch r.flow {
		case flowBreak:
			return normal(""), nil
		case flowReturn:
			return r, nil
		}
	}
	return normal(""), nil
}

func builtinExpr(in *Interp, args []string) (result, error) {
	if err := arity("expr", args, 1, -1); err != nil {
		return result{}, err
	}
	v, err := in.exprEval(strings.Join(args, " "))
	if err != nil {
		return result{}, err
	}
	return normal(v), nil
}

// builtinCatch evaluates a script, returning 1 if it raised an error and 0
// otherwise, optionally storing the result or error message in a variable.
func builtinCatch(in *Interp, args []string) (result, error) {
	if err := arity("catch", args, 1, 2); err != nil {
		return result{}, err
	}
	r, err := in.evalScript(args[0])
	code := "0"
	msg := r.val
	if err != nil {
		// Timeouts are not catchable: the budget bounds the whole submission.
		if goerrors.Is(err, errors.ErrTimeout) {
			return result{}, err
		}
		code = "1"
		msg = err.Error()
	}
	if len(args) == 2 {
		if serr := in.setVar(args[1], msg); serr != nil {
			return result{}, serr
		}
	}
	return normal(code), nil
}

func builtinError(in *Interp, args []string) (result, error) {
	if err := arity("error", args, 1, 1); err != nil {
		return result{}, err
	}
	return result{}, errors.Runtime("", "%s", args[0])
}

// builtinGlobal links names in the current frame to the shared environment.
// At global scope it is a no-op.
func builtinGlobal(in *Interp, args []string) (result, error) {
	if err := arity("global", args, 1, -1); err != nil {
		return result{}, err
	}
	f := in.currentFrame()
	if f == nil {
		return normal(""), nil
	}
	for _, name := range args {
		f.linked[name] = true
	}
	return normal(""), nil
}

func builtinEval(in *Interp, args []string) (result, error) {
	if err := arity("eval", args, 1, -1); err != nil {
		return result{}, err
	}
	r, err := in.evalScript(strings.Join(args, " "))
	if err != nil {
		return result{}, err
	}
	return normal(r.val), nil
}
