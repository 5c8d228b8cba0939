package jsonrpc2

import (
	"encoding/json"
	"errors"
	"reflect"
)

// parsePositionalArguments takes the params of a JSONRPC request, and asserts
// each positional argument into the reflected value of its type. Missing
// trailing arguments are allowed for pointer types, which are left nil.
func parsePositionalArguments(rawArgs json.RawMessage, types []reflect.Type) ([]reflect.Value, error) {
	var args []json.RawMessage
	if len(rawArgs) > 0 && string(rawArgs) != "null" {
		if !isArray(rawArgs) {
			return nil, errors.New("non-array params are not supported")
		}
		if err := json.Unmarshal(rawArgs, &args); err != nil {
			return nil, err
		}
	}
	if len(args) > len(types) {
		return nil, errors.New("too many arguments")
	}

	values := make([]reflect.Value, 0, len(types))
	for i, t := range types {
		if i >= len(args) {
			if t.Kind() != reflect.Ptr {
				return nil, errors.New("not enough arguments")
			}
			values = append(values, reflect.Zero(t))
			continue
		}
		v := reflect.New(t)
		if err := json.Unmarshal(args[i], v.Interface()); err != nil {
			return nil, err
		}
		values = append(values, v.Elem())
	}
	return values, nil
}
