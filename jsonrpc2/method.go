package jsonrpc2

import (
	"context"
	"encoding/json"
	"fmt"
	"reflect"
)

var typeOfError = reflect.TypeOf((*error)(nil)).Elem()
var typeOfContext = reflect.TypeOf((*context.Context)(nil)).Elem()

// Method is the definition of a callable method.
type Method struct {
	Receiver reflect.Value
	Method   reflect.Method
	ArgTypes []reflect.Type
	ErrPos   int
	HasCtx   bool
}

// methodArgTypes returns the arg types, skipping the receiver and a leading
// context, and whether all the types are exported or builtin.
func methodArgTypes(methodType reflect.Type) (argTypes []reflect.Type, hasCtx bool, ok bool) {
	argNum := methodType.NumIn()
	argTypes = make([]reflect.Type, 0, argNum)
	for pos := 1; pos < argNum; pos++ {
		argType := methodType.In(pos)
		if pos == 1 && argType == typeOfContext {
			hasCtx = true
			continue
		}
		if !isExportedOrBuiltin(argType) {
			return nil, hasCtx, false
		}
		argTypes = append(argTypes, argType)
	}
	return argTypes, hasCtx, true
}

// methodErrPos returns the return value index position of an error type for
// supported return layouts: (), (T), (error), (T, error)
func methodErrPos(methodType reflect.Type) (int, bool) {
	switch methodType.NumOut() {
	case 0:
		return -1, true
	case 1:
		if methodType.Out(0) == typeOfError {
			return 0, true
		}
		return -1, true
	case 2:
		if methodType.Out(1) == typeOfError {
			return 1, true
		}
	}
	return -1, false
}

func newMethod(val reflect.Value, method reflect.Method) (Method, bool, error) {
	argTypes, hasCtx, ok := methodArgTypes(method.Type)
	if !ok {
		return Method{}, false, nil
	}
	errPos, ok := methodErrPos(method.Type)
	if !ok {
		return Method{}, false, fmt.Errorf("unsupported return values in method: %s", method.Name)
	}
	return Method{
		Receiver: val,
		Method:   method,
		ArgTypes: argTypes,
		ErrPos:   errPos,
		HasCtx:   hasCtx,
	}, true, nil
}

// Methods returns a mapping of valid method names to Method definitions for
// the receiver's exported methods.
func Methods(receiver interface{}) (map[string]Method, error) {
	kind := reflect.TypeOf(receiver)
	val := reflect.ValueOf(receiver)
	if name := reflect.Indirect(val).Type().Name(); !isExported(name) {
		return nil, fmt.Errorf("receiver must be exported: %s", name)
	}

	methods := map[string]Method{}
	for i := 0; i < kind.NumMethod(); i++ {
		method := kind.Method(i)
		if method.PkgPath != "" {
			continue
		}
		m, ok, err := newMethod(val, method)
		if err != nil {
			return nil, err
		}
		if !ok {
			continue
		}
		methods[method.Name] = m
	}
	return methods, nil
}

// MethodByName returns the Method definition of a single receiver method.
func MethodByName(receiver interface{}, name string) (*Method, error) {
	val := reflect.ValueOf(receiver)
	method, ok := reflect.TypeOf(receiver).MethodByName(name)
	if !ok {
		return nil, fmt.Errorf("method not found: %s", name)
	}
	m, ok, err := newMethod(val, method)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, fmt.Errorf("method has unexported argument types: %s", name)
	}
	return &m, nil
}

// CallJSON wraps Call but supports JSON-encoded positional args.
func (m *Method) CallJSON(ctx context.Context, rawArgs json.RawMessage) (interface{}, error) {
	args, err := parsePositionalArguments(rawArgs, m.ArgTypes)
	if err != nil {
		return nil, err
	}
	return m.Call(ctx, args)
}

// Call executes the method with the given arguments.
func (m *Method) Call(ctx context.Context, args []reflect.Value) (interface{}, error) {
	if len(args) != len(m.ArgTypes) {
		return nil, fmt.Errorf("invalid number of args: expected %d, got %d", len(m.ArgTypes), len(args))
	}

	arguments := make([]reflect.Value, 0, len(args)+2)
	arguments = append(arguments, m.Receiver)
	if m.HasCtx {
		arguments = append(arguments, reflect.ValueOf(&ctx).Elem())
	}
	arguments = append(arguments, args...)

	reply := m.Method.Func.Call(arguments)
	if len(reply) == 0 {
		return nil, nil
	}
	if m.ErrPos >= 0 && !reply[m.ErrPos].IsNil() {
		return nil, reply[m.ErrPos].Interface().(error)
	}
	if m.ErrPos == 0 {
		return nil, nil
	}
	return reply[0].Interface(), nil
}
