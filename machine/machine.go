package machine

import (
	"bytes"
	"fmt"
	"io"
	"iter"
	"log"
	"maps"
	"strconv"
)

// Cursor is the machine-wide tape pointer. Data and Dtype hold the most
// recently read datum, acting as a single-register accumulator between READ
// and the micro-op that consumes it.
type Cursor struct {
	Pos   uint32
	Data  uint32
	Dtype DataType
}

var _machine_defines = map[string]string{
	"TEMP":      fmt.Sprintf("%#v", REG_TEMP),
	"ZF":        fmt.Sprintf("%#v", REG_ZF),
	"CF":        fmt.Sprintf("%#v", REG_CF),
	"DISP":      fmt.Sprintf("%#v", REG_DISP),
	"STK":       fmt.Sprintf("%#v", REG_STK),
	"SAFE_MEM":  fmt.Sprintf("%#v", SAFE_MEM),
	"MEM":       fmt.Sprintf("%#v", MEM),
	"MEM_END":   fmt.Sprintf("%#v", MEM_END),
	"STACK":     fmt.Sprintf("%#v", STACK),
	"STACK_END": fmt.Sprintf("%#v", STACK_END),
	"OUT":       fmt.Sprintf("%#v", OUT),
	"OUT_END":   fmt.Sprintf("%#v", OUT_END),
	"MAIN":      fmt.Sprintf("%#v", MAIN),
	"END":       fmt.Sprintf("%#v", END),
}

// Machine executes micro-ops laid into the instruction region of the tape.
type Machine struct {
	Verbose bool // Set to enable verbose logging.

	Tape   *Tape
	Cursor Cursor
	Output io.Writer // Receives the rendered display buffer on each OUT.

	Ticks int // Executed micro-op counter.

	halted bool
}

// NewMachine creates a machine with a fresh tape. Output defaults to
// io.Discard until the caller wires a real sink.
func NewMachine() (m *Machine) {
	m = &Machine{
		Tape:   NewTape(),
		Output: io.Discard,
	}

	return
}

// Defines for the machine address map.
func (m *Machine) Defines() iter.Seq2[string, string] {
	return maps.All(_machine_defines)
}

// Load lays a program into instruction memory and establishes the initial
// machine state: cursor at the entry point, DISP at the display base, STK at
// the stack top, flags clear.
func (m *Machine) Load(prog *Program) (err error) {
	if m.Verbose {
		log.Printf("machine: load entry 0x%x", prog.Entry)
	}

	for addr, cell := range prog.Cells() {
		err = m.Tape.Write(addr, cell)
		if err != nil {
			return
		}
	}

	m.Tape.at(REG_ZF).Data = 0
	m.Tape.at(REG_CF).Data = 0
	m.Tape.at(REG_DISP).Data = OUT
	m.Tape.at(REG_STK).Data = STACK

	m.Cursor = Cursor{Pos: prog.Entry}
	m.halted = false
	m.Ticks = 0

	return
}

// Halted reports whether a HALT micro-op has executed.
func (m *Machine) Halted() bool {
	return m.halted
}

// jumpIf moves the cursor to addr when cond holds, else to the next cell.
func (m *Machine) jumpIf(cond bool, addr uint32) {
	if cond {
		m.Cursor.Pos = addr
	} else {
		m.Cursor.Pos++
	}
}

// Step fetches and executes a single micro-op. Every micro-op either halts,
// advances the cursor by exactly one, or moves it to an explicit target.
func (m *Machine) Step() (done bool, err error) {
	if m.halted {
		done = true
		return
	}

	if m.Cursor.Pos > END {
		err = ErrAddressInvalid(m.Cursor.Pos)
		return
	}

	cell := m.Tape.at(m.Cursor.Pos)
	addr := cell.Data

	// The operand is validated before dispatch, uniformly for every
	// micro-op, inert NONE literals included.
	if addr > END {
		err = ErrAddressInvalid(addr)
		return
	}

	if m.Verbose {
		log.Printf("%06x: %v 0x%x", m.Cursor.Pos, cell.Op, addr)
	}

	m.Ticks++

	zf := m.Tape.at(REG_ZF)
	cf := m.Tape.at(REG_CF)

	switch cell.Op {
	case OP_NONE:
		m.Cursor.Pos++
	case OP_HALT:
		m.halted = true
		done = true
	case OP_JUMP:
		m.Cursor.Pos = addr
	case OP_CMP:
		target := m.Tape.at(addr)
		zf.Data = 0
		if target.Data == m.Cursor.Data {
			zf.Data = 1
		}
		cf.Data = 0
		if target.Data < m.Cursor.Data {
			cf.Data = 1
		}
		m.Cursor.Pos++
	case OP_JE:
		m.jumpIf(zf.Data == 1, addr)
	case OP_JNE:
		m.jumpIf(zf.Data == 0, addr)
	case OP_JG:
		m.jumpIf(zf.Data == 0 && cf.Data == 0, addr)
	case OP_JGE:
		m.jumpIf(cf.Data == 0, addr)
	case OP_JL:
		m.jumpIf(cf.Data == 1, addr)
	case OP_JLE:
		m.jumpIf(zf.Data == 1 || cf.Data == 1, addr)
	case OP_READ:
		src := m.Tape.at(addr)
		m.Cursor.Data = src.Data
		m.Cursor.Dtype = src.Dtype
		m.Cursor.Pos++
	case OP_WRITE:
		dst := m.Tape.at(addr)
		dst.Data = m.Cursor.Data
		dst.Dtype = m.Cursor.Dtype

		disp := m.Tape.at(REG_DISP)
		if addr >= disp.Data && addr <= OUT_END {
			disp.Data = addr + 1
		}
		m.Cursor.Pos++
	case OP_CALL:
		stk := m.Tape.at(REG_STK)
		if stk.Data < STACK_END {
			err = ErrStackOverflow
			return
		}
		if stk.Data > END {
			err = ErrAddressInvalid(stk.Data)
			return
		}
		m.Tape.at(stk.Data).Data = m.Cursor.Pos + 1
		stk.Data--
		m.Cursor.Pos = addr
	case OP_RET:
		stk := m.Tape.at(REG_STK)
		if stk.Data >= STACK {
			err = ErrStackUnderflow
			return
		}
		stk.Data++
		m.Cursor.Pos = m.Tape.at(stk.Data).Data
	case OP_AND:
		m.Tape.at(addr).Data &= m.Cursor.Data
		m.Cursor.Pos++
	case OP_OR:
		m.Tape.at(addr).Data |= m.Cursor.Data
		m.Cursor.Pos++
	case OP_XOR:
		m.Tape.at(addr).Data ^= m.Cursor.Data
		m.Cursor.Pos++
	case OP_NOT:
		// Logical not, not a bitwise complement.
		target := m.Tape.at(addr)
		if target.Data == 0 {
			target.Data = 1
		} else {
			target.Data = 0
		}
		m.Cursor.Pos++
	case OP_LSHIFT:
		m.Tape.at(addr).Data <<= m.Cursor.Data
		m.Cursor.Pos++
	case OP_RSHIFT:
		m.Tape.at(addr).Data >>= m.Cursor.Data
		m.Cursor.Pos++
	case OP_ADD:
		m.Tape.at(addr).Data += m.Cursor.Data
		m.Cursor.Pos++
	case OP_SUB:
		m.Tape.at(addr).Data -= m.Cursor.Data
		m.Cursor.Pos++
	case OP_MUL:
		m.Tape.at(addr).Data *= m.Cursor.Data
		m.Cursor.Pos++
	case OP_DIV:
		if m.Cursor.Data == 0 {
			err = ErrDivideByZero
			return
		}
		m.Tape.at(addr).Data /= m.Cursor.Data
		m.Cursor.Pos++
	case OP_OUT:
		err = m.flush()
		if err != nil {
			return
		}
		m.Cursor.Pos++
	default:
		err = ErrInstructionInvalid(cell.Op)
	}

	return
}

// flush renders the display region up to DISP and writes it to Output.
// Non-destructive: display cells and DISP are left untouched, so a later
// OUT re-emits the whole buffer.
func (m *Machine) flush() (err error) {
	var buf bytes.Buffer

	disp := m.Tape.at(REG_DISP).Data
	escaped := false
	for addr := OUT; addr < OUT_END && addr < disp; addr++ {
		cell := m.Tape.at(addr)
		val := cell.Data

		// A backslash consumes the following cell: n and r emit their
		// control byte, anything else is swallowed.
		if escaped {
			switch val {
			case uint32('n'):
				buf.WriteByte('\n')
			case uint32('r'):
				buf.WriteByte('\r')
			}
			escaped = false
			continue
		}

		if cell.Dtype == T_CHAR {
			if val == uint32('\\') {
				escaped = true
				continue
			}
			buf.WriteByte(byte(val))
		} else {
			buf.WriteString(strconv.FormatUint(uint64(val), 10))
		}
	}

	_, err = m.Output.Write(buf.Bytes())
	return
}
