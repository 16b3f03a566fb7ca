package models

import (
	"fmt"

	"github.com/pkg/errors"
)

// ExitStatus is returned through the trap path once a process has terminated.
type ExitStatus int

func (e ExitStatus) Error() string {
	return fmt.Sprintf("exit %d", e)
}

// ErrHalted is returned through the trap path once the machine powers off.
var ErrHalted = errors.New("machine halted")
