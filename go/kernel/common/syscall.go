package common

import (
	"reflect"

	"github.com/pkg/errors"
)

var (
	errorType  = reflect.TypeOf((*error)(nil)).Elem()
	uint64Type = reflect.TypeOf(uint64(0))
)

type Syscall struct {
	Num      int
	Name     string
	Kernel   *KernelBase
	Instance reflect.Value
	Method   reflect.Method
	In       []reflect.Type
	Out      []reflect.Type
}

// Call runs the handler with raw argument words. A non-nil error result from
// the handler is returned as is; otherwise the first integer or bool result
// becomes the return value. Handlers with no such result are void.
func (sys Syscall) Call(args []uint64) (ret uint64, hasRet bool, err error) {
	in := make([]reflect.Value, len(sys.In)+1)
	in[0] = sys.Instance
	converted, err := sys.Kernel.Argjoy.Convert(sys.In, false, args)
	if err != nil {
		return 0, false, errors.Wrapf(err, "calling %T.%s()", sys.Instance.Interface(), sys.Method.Name)
	}
	copy(in[1:], converted)
	out := sys.Method.Func.Call(in)
	for _, o := range out {
		switch {
		case o.Type() == errorType:
			if !o.IsNil() {
				return 0, false, o.Interface().(error)
			}
		case hasRet:
		case o.Kind() == reflect.Bool:
			ret, hasRet = 0, true
			if o.Bool() {
				ret = 1
			}
		case o.Type().ConvertibleTo(uint64Type):
			ret, hasRet = o.Convert(uint64Type).Uint(), true
		}
	}
	return ret, hasRet, nil
}
