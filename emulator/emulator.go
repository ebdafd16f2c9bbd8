// Package emulator wires an assembled program to the TASM machine and the
// host-facing surfaces: display output, runtime error context and memory
// dump files.
package emulator

import (
	"fmt"
	"iter"
	"maps"

	"github.com/rachitdhar/tasm/internal"
	"github.com/rachitdhar/tasm/machine"
)

var _emulator_defines = map[string]string{
	"STORE_SIZE":   fmt.Sprintf("%v", machine.STORE_SIZE),
	"STACK_SIZE":   fmt.Sprintf("%v", machine.STACK_SIZE),
	"DISPLAY_SIZE": fmt.Sprintf("%v", machine.DISPLAY_SIZE),
	"INSTR_SIZE":   fmt.Sprintf("%v", machine.INSTR_SIZE),
}

// Emulator is the run context for one assembled program.
type Emulator struct {
	Verbose bool // If set, enables verbose logging.

	*machine.Machine
	Program *machine.Program // Reference to the currently loaded program listing.
}

// NewEmulator creates a new emulator with a fresh machine.
func NewEmulator() (emu *Emulator) {
	emu = &Emulator{
		Machine: machine.NewMachine(),
		Program: &machine.Program{},
	}

	return
}

// Defines returns an iterator over all of the defines
func (emu *Emulator) Defines() iter.Seq2[string, string] {
	return internal.IterSeq2Concat(maps.All(_emulator_defines),
		emu.Machine.Defines(),
	)
}

// Reset loads the program and establishes the initial machine state.
func (emu *Emulator) Reset() (err error) {
	emu.Machine.Verbose = emu.Verbose

	return emu.Machine.Load(emu.Program)
}

// LineNo returns the source line number for the executing micro-op.
func (emu *Emulator) LineNo() int {
	return emu.Program.LineAt(emu.Machine.Cursor.Pos)
}

// Tick performs a single micro-op step of the emulator.
func (emu *Emulator) Tick() (done bool, err error) {
	// Set machine verbosity
	emu.Machine.Verbose = emu.Verbose

	pos := emu.Machine.Cursor.Pos
	defer func() {
		if err != nil {
			err = &ErrRuntime{Pos: pos, LineNo: emu.Program.LineAt(pos), Err: err}
		}
	}()

	done, err = emu.Machine.Step()

	return
}

// Run ticks the machine until it halts or fails.
func (emu *Emulator) Run() (err error) {
	var done bool
	for !done {
		done, err = emu.Tick()
		if err != nil {
			return
		}
	}

	return
}
