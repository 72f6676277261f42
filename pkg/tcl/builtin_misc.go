package tcl

import (
	"crypto/sha1"
	"encoding/base64"
	"encoding/hex"
	"net/url"

	"github.com/slopdrop/slopdrop/pkg/errors"
)

func init() {
	registerBuiltin("sha1", builtinSha1)
	registerBuiltin("encoding", builtinEncoding)
}

func builtinSha1(in *Interp, args []string) (result, error) {
	if err := arity("sha1", args, 1, 1); err != nil {
		return result{}, err
	}
	sum := sha1.Sum([]byte(args[0]))
	return normal(hex.EncodeToString(sum[:])), nil
}

func builtinEncoding(in *Interp, args []string) (result, error) {
	if err := arity("encoding", args, 2, 2); err != nil {
		return result{}, err
	}
	sub, s := args[0], args[1]
	switch sub {
	case "base64":
		return normal(base64.StdEncoding.EncodeToString([]byte(s))), nil
	case "unbase64":
		decoded, err := base64.StdEncoding.DecodeString(s)
		if err != nil {
			return result{}, errors.Runtime("encoding", "invalid base64 input: %v", err)
		}
		return normal(string(decoded)), nil
	case "url":
		return normal(url.QueryEscape(s)), nil
	case "unurl":
		decoded, err := url.QueryUnescape(s)
		if err != nil {
			return result{}, errors.Runtime("encoding", "invalid url-encoded input: %v", err)
		}
		return normal(decoded), nil
	default:
		return result{}, errors.Runtime("encoding", "unknown encoding subcommand %q", sub)
	}
}
