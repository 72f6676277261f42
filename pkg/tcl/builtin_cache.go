package tcl

import (
	"github.com/slopdrop/slopdrop/pkg/errors"
)

// The cache::* commands expose the injected side-cache to scripts. The cache
// is keyed by (bucket, key) and lives outside versioned state: writes here
// never produce commits and rollback never touches them.

func init() {
	registerBuiltin("cache::put", builtinCachePut)
	registerBuiltin("cache::get", builtinCacheGet)
	registerBuiltin("cache::keys", builtinCacheKeys)
	registerBuiltin("cache::exists", builtinCacheExists)
	registerBuiltin("cache::delete", builtinCacheDelete)
	registerBuiltin("cache::fetch", builtinCacheFetch)
}

func (in *Interp) requireCache(cmd string) (CacheStore, error) {
	if in.cache == nil {
		return nil, errors.Runtime(cmd, "no cache is configured")
	}
	return in.cache, nil
}

func builtinCachePut(in *Interp, args []string) (result, error) {
	if err := arity("cache::put", args, 3, 3); err != nil {
		return result{}, err
	}
	c, err := in.requireCache("cache::put")
	if err != nil {
		return result{}, err
	}
	if err := c.Put(args[0], args[1], args[2]); err != nil {
		return result{}, errors.Runtime("cache::put", "%v", err)
	}
	return normal(args[2]), nil
}

func builtinCacheGet(in *Interp, args []string) (result, error) {
	if err := arity("cache::get", args, 2, 2); err != nil {
		return result{}, err
	}
	c, err := in.requireCache("cache::get")
	if err != nil {
		return result{}, err
	}
	v, ok, err := c.Get(args[0], args[1])
	if err != nil {
		return result{}, errors.Runtime("cache::get", "%v", err)
	}
	if !ok {
		return result{}, errors.Runtime("cache::get", "bucket %q doesn't have key %q", args[0], args[1])
	}
	return normal(v), nil
}

func builtinCacheKeys(in *Interp, args []string) (result, error) {
	if err := arity("cache::keys", args, 1, 1); err != nil {
		return result{}, err
	}
	c, err := in.requireCache("cache::keys")
	if err != nil {
		return result{}, err
	}
	keys, err := c.Keys(args[0])
	if err != nil {
		return result{}, errors.Runtime("cache::keys", "%v", err)
	}
	return normal(listJoin(keys)), nil
}

func builtinCacheExists(in *Interp, args []string) (result, error) {
	if err := arity("cache::exists", args, 2, 2); err != nil {
		return result{}, err
	}
	c, err := in.requireCache("cache::exists")
	if err != nil {
		return result{}, err
	}
	ok, err := c.Exists(args[0], args[1])
	if err != nil {
		return result{}, errors.Runtime("cache::exists", "%v", err)
	}
	if ok {
		return normal("1"), nil
	}
	return normal("0"), nil
}

func builtinCacheDelete(in *Interp, args []string) (result, error) {
	if err := arity("cache::delete", args, 2, 2); err != nil {
		return result{}, err
	}
	c, err := in.requireCache("cache::delete")
	if err != nil {
		return result{}, err
	}
	ok, err := c.Delete(args[0], args[1])
	if err != nil {
		return result{}, errors.Runtime("cache::delete", "%v", err)
	}
	if !ok {
		return result{}, errors.Runtime("cache::delete", "bucket %q doesn't have key %q", args[0], args[1])
	}
	return normal(""), nil
}

// builtinCacheFetch returns the cached value, or evaluates the script and
// caches its result: cache::fetch bucket key { expensive computation }
func builtinCacheFetch(in *Interp, args []string) (result, error) {
	if err := arity("cache::fetch", args, 3, 3); err != nil {
		return result{}, err
	}
	c, err := in.requireCache("cache::fetch")
	if err != nil {
		return result{}, err
	}
	v, ok, err := c.Get(args[0], args[1])
	if err != nil {
		return result{}, errors.Runtime("cache::fetch", "%v", err)
	}
	if ok {
		return normal(v), nil
	}
	r, err := in.evalScript(args[2])
	if err != nil {
		return result{}, err
	}
	if err := c.Put(args[0], args[1], r.val); err != nil {
		return result{}, errors.Runtime("cache::fetch", "%v", err)
	}
	return normal(r.val), nil
}
