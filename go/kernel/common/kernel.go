package common

import (
	"encoding/binary"
	"reflect"
	"strings"
	"unicode"

	"github.com/lunixbochs/argjoy"
	"github.com/pkg/errors"

	"github.com/lunixbochs/trapgate/go/models"
)

type KernelBase struct {
	Validator
	// Numbers maps platform call numbers to handler names, e.g. 9 -> "write".
	Numbers  map[int]string
	Syscalls map[int]Syscall
	Argjoy   argjoy.Argjoy
	Config   *models.Config
	Bits     uint
	Order    binary.ByteOrder
}

func NewKernelBase(config *models.Config, mem models.AddressSpace, numbers map[int]string) *KernelBase {
	return &KernelBase{
		Validator: Validator{
			Mem:      mem,
			PhysBase: config.PhysBase,
			PageSize: config.PageSize,
		},
		Numbers: numbers,
		Config:  config,
		Bits:    config.Bits,
		Order:   config.ByteOrder(),
	}
}

func (k *KernelBase) TrapKernel() *KernelBase {
	return k
}

type Kernel interface {
	TrapKernel() *KernelBase
}

func (k *KernelBase) WordSize() uint64 {
	return uint64(k.Bits / 8)
}

func camelToSnakeCase(name string) string {
	var words []string
	last := 0
	for i, c := range name {
		if unicode.IsUpper(c) {
			if i > 0 {
				words = append(words, name[last:i])
			}
			last = i
		}
	}
	words = append(words, name[last:])
	return strings.ToLower(strings.Join(words, "_"))
}

// Init builds the dispatch table from kf's exported methods. A method becomes
// the handler for every number whose name matches its snake_case name.
func Init(kf Kernel) error {
	k := kf.TrapKernel()
	byName := make(map[string][]int, len(k.Numbers))
	for num, name := range k.Numbers {
		byName[name] = append(byName[name], num)
	}
	k.Syscalls = make(map[int]Syscall, len(k.Numbers))
	instance := reflect.ValueOf(kf)
	typ := instance.Type()
	for i := 0; i < typ.NumMethod(); i++ {
		method := typ.Method(i)
		name := camelToSnakeCase(method.Name)
		nums, ok := byName[name]
		if !ok {
			continue
		}
		in := make([]reflect.Type, method.Type.NumIn()-1)
		for j := 1; j < method.Type.NumIn(); j++ {
			in[j-1] = method.Type.In(j)
		}
		out := make([]reflect.Type, method.Type.NumOut())
		for j := 0; j < method.Type.NumOut(); j++ {
			out[j] = method.Type.Out(j)
		}
		for _, num := range nums {
			k.Syscalls[num] = Syscall{
				Num:      num,
				Name:     name,
				Kernel:   k,
				Instance: instance,
				Method:   method,
				In:       in,
				Out:      out,
			}
		}
		delete(byName, name)
	}
	for name := range byName {
		return errors.Errorf("no handler for system call %q on %T", name, kf)
	}
	k.Argjoy.Register(k.commonArgCodec)
	k.Argjoy.Register(argjoy.IntToInt)
	return nil
}

func Lookup(kf Kernel, num int) *Syscall {
	k := kf.TrapKernel()
	if sys, ok := k.Syscalls[num]; ok {
		return &sys
	}
	return nil
}

// Trap decodes the call at the trapped stack pointer and runs its handler.
// The handler's result, if any, is stored in f. Protocol violations and
// terminations come back as errors and leave f untouched.
func (k *KernelBase) Trap(f *models.TrapFrame) (*Syscall, []uint64, error) {
	words, err := k.ReadArgs(f.SP(), 1, "system call number")
	if err != nil {
		return nil, nil, err
	}
	num := int(k.signed(words[0]))
	sys, ok := k.Syscalls[num]
	if !ok {
		return nil, nil, UnknownSyscall(num)
	}
	args, err := k.ReadArgs(f.SP()+k.WordSize(), len(sys.In), "argument")
	if err != nil {
		return &sys, nil, err
	}
	ret, hasRet, err := sys.Call(args)
	if err != nil {
		return &sys, args, err
	}
	if hasRet {
		f.SetReturn(ret)
	}
	return &sys, args, nil
}
