package tcl

import (
	"sort"

	"github.com/slopdrop/slopdrop/pkg/errors"
)

func init() {
	registerBuiltin("info", builtinInfo)
}

func builtinInfo(in *Interp, args []string) (result, error) {
	if err := arity("info", args, 1, -1); err != nil {
		return result{}, err
	}
	sub := args[0]
	rest := args[1:]
	switch sub {
	case "procs":
		if err := arity("info procs", rest, 0, 0); err != nil {
			return result{}, err
		}
		names := make([]string, 0, len(in.env.Procs))
		for name := range in.env.Procs {
			names = append(names, name)
		}
		sort.Strings(names)
		return normal(listJoin(names)), nil
	case "globals":
		if err := arity("info globals", rest, 0, 0); err != nil {
			return result{}, err
		}
		names := make([]string, 0, len(in.env.Vars))
		for name := range in.env.Vars {
			names = append(names, name)
		}
		sort.Strings(names)
		return normal(listJoin(names)), nil
	case "commands":
		if err := arity("info commands", rest, 0, 0); err != nil {
			return result{}, err
		}
		names := BuiltinNames()
		for name := range in.env.Procs {
			names = append(names, name)
		}
		sort.Strings(names)
		return normal(listJoin(names)), nil
	case "args":
		if err := arity("info args", rest, 1, 1); err != nil {
			return result{}, err
		}
		p, ok := in.env.Procs[rest[0]]
		if !ok {
			return result{}, errors.Runtime("info args", "%q isn't a procedure", rest[0])
		}
		names := make([]string, len(p.Params))
		for i, prm := range p.Params {
			names[i] = prm.Name
		}
		return normal(listJoin(names)), nil
	case "body":
		if err := arity("info body", rest, 1, 1); err != nil {
			return result{}, err
		}
		p, ok := in.env.Procs[rest[0]]
		if !ok {
			return result{}, errors.Runtime("info body", "%q isn't a procedure", rest[0])
		}
		return normal(p.Body), nil
	case "exists":
		if err := arity("info exists", rest, 1, 1); err != nil {
			return result{}, err
		}
		if _, err := in.getVar(rest[0]); err == nil {
			return normal("1"), nil
		}
		return normal("0"), nil
	default:
		return result{}, errors.Runtime("info", "unknown info subcommand %q", sub)
	}
}
