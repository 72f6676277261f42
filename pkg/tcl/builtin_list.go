package tcl

import (
	"strconv"
	"strings"
)

func init() {
	registerBuiltin("list", builtinList)
	registerBuiltin("lindex", builtinLindex)
	registerBuiltin("llength", builtinLlength)
	registerBuiltin("lappend", builtinLappend)
	registerBuiltin("lrange", builtinLrange)
	registerBuiltin("join", builtinJoin)
	registerBuiltin("split", builtinSplit)
	registerBuiltin("concat", builtinConcat)
}

func builtinList(in *Interp, args []string) (result, error) {
	return normal(listJoin(args)), nil
}

func builtinLindex(in *Interp, args []string) (result, error) {
	if err := arity("lindex", args, 1, 2); err != nil {
		return result{}, err
	}
	elems, err := listSplit(args[0])
	if err != nil {
		return result{}, err
	}
	if len(args) == 1 {
		return normal(args[0]), nil
	}
	idx, err := resolveListIndex(args[1], len(elems))
	if err != nil {
		return result{}, err
	}
	if idx < 0 || idx >= len(elems) {
		return normal(""), nil
	}
	return normal(elems[idx]), nil
}

func builtinLlength(in *Interp, args []string) (result, error) {
	if err := arity("llength", args, 1, 1); err != nil {
		return result{}, err
	}
	elems, err := listSplit(args[0])
	if err != nil {
		return result{}, err
	}
	return normal(strconv.Itoa(len(elems))), nil
}

func builtinLappend(in *Interp, args []string) (result, error) {
	if err := arity("lappend", args, 1, -1); err != nil {
		return result{}, err
	}
	cur, _ := in.getVar(args[0])
	elems, err := listSplit(cur)
	if err != nil {
		return result{}, err
	}
	elems = append(elems, args[1:]...)
	v := listJoin(elems)
	if err := in.setVar(args[0], v); err != nil {
		return result{}, err
	}
	return normal(v), nil
}

func builtinLrange(in *Interp, args []string) (result, error) {
	if err := arity("lrange", args, 3, 3); err != nil {
		return result{}, err
	}
	elems, err := listSplit(args[0])
	if err != nil {
		return result{}, err
	}
	first, err := resolveListIndex(args[1], len(elems))
	if err != nil {
		return result{}, err
	}
	last, err := resolveListIndex(args[2], len(elems))
	if err != nil {
		return result{}, err
	}
	if first < 0 {
		first = 0
	}
	if last >= len(elems) {
		last = len(elems) - 1
	}
	if first > last {
		return normal(""), nil
	}
	return normal(listJoin(elems[first : last+1])), nil
}

func builtinJoin(in *Interp, args []string) (result, error) {
	if err := arity("join", args, 1, 2); err != nil {
		return result{}, err
	}
	sep := " "
	if len(args) == 2 {
		sep = args[1]
	}
	elems, err := listSplit(args[0])
	if err != nil {
		return result{}, err
	}
	return normal(strings.Join(elems, sep)), nil
}

func builtinSplit(in *Interp, args []string) (result, error) {
	if err := arity("split", args, 1, 2); err != nil {
		return result{}, err
	}
	s := args[0]
	if len(args) == 2 && args[1] == "" {
		parts := make([]string, 0, len(s))
		for _, r := range s {
			parts = append(parts, string(r))
		}
		return normal(listJoin(parts)), nil
	}
	seps := " \t\n\r"
	if len(args) == 2 {
		seps = args[1]
	}
	parts := strings.FieldsFunc(s, func(r rune) bool {
		return strings.ContainsRune(seps, r)
	})
	return normal(listJoin(parts)), nil
}

func builtinConcat(in *Interp, args []string) (result, error) {
	var all []string
	for _, a := range args {
		elems, err := listSplit(a)
		if err != nil {
			return result{}, err
		}
		all = append(all, elems...)
	}
	return normal(listJoin(all)), nil
}
