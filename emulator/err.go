package emulator

import (
	"github.com/rachitdhar/tasm/translate"
)

var f = translate.From

// ErrRuntime indicates the location of a runtime error.
type ErrRuntime struct {
	Pos    uint32
	LineNo int
	Err    error
}

func (err *ErrRuntime) Error() string {
	return f("at 0x%08x (line %d) %v", err.Pos, err.LineNo, err.Err)
}

func (err *ErrRuntime) Unwrap() error {
	return err.Err
}
