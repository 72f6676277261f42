package tcl

import (
	"github.com/slopdrop/slopdrop/pkg/errors"
	"github.com/tidwall/gjson"
)

func init() {
	registerBuiltin("json::get", builtinJSONGet)
	registerBuiltin("json::exists", builtinJSONExists)
}

// builtinJSONGet extracts a value from a JSON document by path:
// json::get {{"a":{"b":1}}} a.b -> 1
func builtinJSONGet(in *Interp, args []string) (result, error) {
	if err := arity("json::get", args, 2, 2); err != nil {
		return result{}, err
	}
	doc, path := args[0], args[1]
	if !gjson.Valid(doc) {
		return result{}, errors.Runtime("json::get", "invalid JSON document")
	}
	r := gjson.Get(doc, path)
	if !r.Exists() {
		return result{}, errors.Runtime("json::get", "path %q not found", path)
	}
	return normal(r.String()), nil
}

func builtinJSONExists(in *Interp, args []string) (result, error) {
	if err := arity("json::exists", args, 2, 2); err != nil {
		return result{}, err
	}
	doc, path := args[0], args[1]
	if !gjson.Valid(doc) {
		return result{}, errors.Runtime("json::exists", "invalid JSON document")
	}
	if gjson.Get(doc, path).Exists() {
		return normal("1"), nil
	}
	return normal("0"), nil
}
