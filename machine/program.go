package machine

import (
	"iter"
)

// LinkRef marks a cell within an Opcode whose data slot takes a label
// address once the label table is complete. Add biases the address, used
// when a string operand advances the destination per character.
type LinkRef struct {
	Index int
	Add   uint32
}

// Opcode represents a line of assembled source with its emitted cells.
type Opcode struct {
	LineNo    int
	Addr      uint32
	Words     []string
	Cells     []Cell
	LinkLabel string
	LinkRefs  []LinkRef
}

// Program is the assembled micro-op listing plus its entry point.
type Program struct {
	Opcodes []Opcode
	Entry   uint32
}

type Debug struct {
	*Opcode
	Index int
}

// Debug locates the opcode record covering an instruction address.
func (prog *Program) Debug(addr uint32) (dbg Debug) {
	for n, op := range prog.Opcodes {
		if addr >= op.Addr && addr < op.Addr+uint32(len(op.Cells)) {
			dbg = Debug{
				Opcode: &prog.Opcodes[n],
				Index:  int(addr - op.Addr),
			}
			break
		}
	}

	return
}

// LineAt returns the source line for an instruction address, or 0.
func (prog *Program) LineAt(addr uint32) int {
	dbg := prog.Debug(addr)
	if dbg.Opcode == nil {
		return 0
	}

	return dbg.Opcode.LineNo
}

// Cells iterates the emitted cells with their absolute tape addresses.
func (prog *Program) Cells() iter.Seq2[uint32, Cell] {
	return func(yield func(addr uint32, cell Cell) bool) {
		for _, op := range prog.Opcodes {
			for n, cell := range op.Cells {
				if !yield(op.Addr+uint32(n), cell) {
					return
				}
			}
		}
	}
}
