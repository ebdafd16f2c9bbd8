package machine

import (
	"bytes"
	"strconv"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

// display is the base of display memory, as written in TASM source.
const display = "0x18a88"

func assemble(t *testing.T, source string) *Program {
	t.Helper()

	asm := &Assembler{}
	prog, err := asm.Parse(strings.NewReader(source))
	if err != nil {
		t.Fatalf("assemble: %v", err)
	}

	return prog
}

func run(t *testing.T, source string) (m *Machine, output string, err error) {
	t.Helper()

	prog := assemble(t, source)

	m = NewMachine()
	out := &bytes.Buffer{}
	m.Output = out

	if lerr := m.Load(prog); lerr != nil {
		t.Fatalf("load: %v", lerr)
	}

	for range 1000000 {
		var done bool
		done, err = m.Step()
		if done || err != nil {
			output = out.String()
			return
		}
	}

	t.Fatalf("program did not halt")
	return
}

func TestMachineDisplayBase(t *testing.T) {
	assert := assert.New(t)

	// The literal used by the test programs below.
	assert.Equal(uint32(0x18a88), OUT)
}

func TestMachineInitialState(t *testing.T) {
	assert := assert.New(t)

	prog := assemble(t, "start:\nhlt\nmain:\nhlt\n")

	m := NewMachine()
	err := m.Load(prog)
	assert.NoError(err)

	assert.Equal(prog.Entry, m.Cursor.Pos)
	assert.Equal(MAIN+1, m.Cursor.Pos)

	disp, _ := m.Tape.Read(REG_DISP)
	assert.Equal(OUT, disp.Data)
	stk, _ := m.Tape.Read(REG_STK)
	assert.Equal(STACK, stk.Data)
	zf, _ := m.Tape.Read(REG_ZF)
	assert.Equal(uint32(0), zf.Data)
	cf, _ := m.Tape.Read(REG_CF)
	assert.Equal(uint32(0), cf.Data)
}

func TestMachineHello(t *testing.T) {
	assert := assert.New(t)

	program := []string{
		"main:",
		"put " + display + ` "Hi\n"`,
		"out",
		"hlt",
	}

	m, output, err := run(t, strings.Join(program, "\n"))
	assert.NoError(err)
	assert.Equal("Hi\n", output)

	// "Hi\n" is four display cells; DISP advanced past them.
	disp, _ := m.Tape.Read(REG_DISP)
	assert.Equal(OUT+4, disp.Data)
}

func TestMachineArithmetic(t *testing.T) {
	assert := assert.New(t)

	program := []string{
		"main:",
		"put 0x10 3",
		"put 0x11 4",
		"add 0x10 0x11",
		"mov " + display + " 0x10",
		"out",
		"hlt",
	}

	m, output, err := run(t, strings.Join(program, "\n"))
	assert.NoError(err)

	cell, _ := m.Tape.Read(0x10)
	assert.Equal(uint32(7), cell.Data)
	assert.Equal("7", output)
}

func TestMachineAluOps(t *testing.T) {
	assert := assert.New(t)

	table := [](struct {
		name     string
		op       string
		a        uint32
		b        uint32
		expected uint32
	}){
		{"and", "and", 0xff, 0x0f, 0x0f},
		{"or", "or", 0xf0, 0x0f, 0xff},
		{"xor", "xor", 0xff, 0x0f, 0xf0},
		{"lsh", "lsh", 1, 4, 16},
		{"rsh", "rsh", 16, 4, 1},
		{"add", "add", 3, 4, 7},
		{"sub", "sub", 9, 4, 5},
		{"mul", "mul", 6, 3, 18},
		{"div", "div", 18, 3, 6},
		{"add_wrap", "add", 0xffffffff, 1, 0},
		{"sub_wrap", "sub", 0, 1, 0xffffffff},
	}

	for _, entry := range table {
		program := []string{
			"main:",
			"put 0x10 " + uitoa(entry.a),
			"put 0x11 " + uitoa(entry.b),
			entry.op + " 0x10 0x11",
			"hlt",
		}

		m, _, err := run(t, strings.Join(program, "\n"))
		assert.NoError(err, entry.name)

		cell, _ := m.Tape.Read(0x10)
		assert.Equal(entry.expected, cell.Data, entry.name)
	}
}

func uitoa(v uint32) string {
	return strconv.FormatUint(uint64(v), 10)
}

func TestMachineNotLogical(t *testing.T) {
	assert := assert.New(t)

	program := []string{
		"main:",
		"put 0x10 7",
		"not 0x10",
		"put 0x11 0",
		"not 0x11",
		"hlt",
	}

	m, _, err := run(t, strings.Join(program, "\n"))
	assert.NoError(err)

	cell, _ := m.Tape.Read(0x10)
	assert.Equal(uint32(0), cell.Data)
	cell, _ = m.Tape.Read(0x11)
	assert.Equal(uint32(1), cell.Data)
}

func TestMachineFlags(t *testing.T) {
	assert := assert.New(t)

	table := [](struct {
		name string
		x    uint32
		y    uint32
		zf   uint32
		cf   uint32
	}){
		{"equal", 5, 5, 1, 0},
		{"less", 3, 5, 0, 1},
		{"greater", 5, 3, 0, 0},
		{"zero", 0, 0, 1, 0},
	}

	for _, entry := range table {
		program := []string{
			"main:",
			"put 0x10 " + uitoa(entry.x),
			"put 0x11 " + uitoa(entry.y),
			"cmp 0x10 0x11",
			"hlt",
		}

		m, _, err := run(t, strings.Join(program, "\n"))
		assert.NoError(err, entry.name)

		zf, _ := m.Tape.Read(REG_ZF)
		cf, _ := m.Tape.Read(REG_CF)
		assert.Equal(entry.zf, zf.Data, entry.name)
		assert.Equal(entry.cf, cf.Data, entry.name)
	}
}

func TestMachineBranch(t *testing.T) {
	assert := assert.New(t)

	program := []string{
		"main:",
		"put 0x10 5",
		"put 0x11 5",
		"cmp 0x10 0x11",
		"je eq",
		"put " + display + ` "N\n"`,
		"jmp end",
		"eq:",
		"put " + display + ` "Y\n"`,
		"end:",
		"out",
		"hlt",
	}

	_, output, err := run(t, strings.Join(program, "\n"))
	assert.NoError(err)
	assert.Equal("Y\n", output)
}

func TestMachineConditionals(t *testing.T) {
	assert := assert.New(t)

	table := [](struct {
		name  string
		x     uint32
		y     uint32
		jump  string
		taken bool
	}){
		{"jg_taken", 7, 3, "jg", true},
		{"jg_equal", 3, 3, "jg", false},
		{"jg_less", 2, 3, "jg", false},
		{"jge_taken", 3, 3, "jge", true},
		{"jge_less", 2, 3, "jge", false},
		{"jl_taken", 2, 3, "jl", true},
		{"jl_equal", 3, 3, "jl", false},
		{"jle_equal", 3, 3, "jle", true},
		{"jle_less", 2, 3, "jle", true},
		{"jle_greater", 7, 3, "jle", false},
		{"jne_taken", 2, 3, "jne", true},
		{"jne_equal", 3, 3, "jne", false},
	}

	for _, entry := range table {
		program := []string{
			"main:",
			"put 0x10 " + uitoa(entry.x),
			"put 0x11 " + uitoa(entry.y),
			"cmp 0x10 0x11",
			entry.jump + " yes",
			"put 0x20 0",
			"jmp end",
			"yes:",
			"put 0x20 1",
			"end:",
			"hlt",
		}

		m, _, err := run(t, strings.Join(program, "\n"))
		assert.NoError(err, entry.name)

		cell, _ := m.Tape.Read(0x20)
		expected := uint32(0)
		if entry.taken {
			expected = 1
		}
		assert.Equal(expected, cell.Data, entry.name)
	}
}

func TestMachineCallRet(t *testing.T) {
	assert := assert.New(t)

	program := []string{
		"main:",
		"call sub",
		"hlt",
		"sub:",
		"put " + display + ` "x"`,
		"out",
		"ret",
	}

	m, output, err := run(t, strings.Join(program, "\n"))
	assert.NoError(err)
	assert.Equal("x", output)

	stk, _ := m.Tape.Read(REG_STK)
	assert.Equal(STACK, stk.Data)
}

func TestMachineCallRetBalance(t *testing.T) {
	assert := assert.New(t)

	program := []string{
		"main:",
		"call a",
		"call a",
		"hlt",
		"a:",
		"call b",
		"ret",
		"b:",
		"ret",
	}

	m, _, err := run(t, strings.Join(program, "\n"))
	assert.NoError(err)

	stk, _ := m.Tape.Read(REG_STK)
	assert.Equal(STACK, stk.Data)
}

func TestMachineStackOverflow(t *testing.T) {
	assert := assert.New(t)

	program := []string{
		"main:",
		"call main",
	}

	m, _, err := run(t, strings.Join(program, "\n"))
	assert.ErrorIs(err, ErrStackOverflow)

	// All stack slots were consumed before the failing push.
	stk, _ := m.Tape.Read(REG_STK)
	assert.Equal(STACK_END-1, stk.Data)
}

func TestMachineStackUnderflow(t *testing.T) {
	assert := assert.New(t)

	program := []string{
		"main:",
		"ret",
	}

	_, _, err := run(t, strings.Join(program, "\n"))
	assert.ErrorIs(err, ErrStackUnderflow)
}

func TestMachineDivideByZero(t *testing.T) {
	assert := assert.New(t)

	program := []string{
		"main:",
		"put 0x10 4",
		"put 0x11 0",
		"div 0x10 [0x11]",
		"hlt",
	}

	_, _, err := run(t, strings.Join(program, "\n"))
	assert.ErrorIs(err, ErrDivideByZero)
}

func TestMachineDerefIndirection(t *testing.T) {
	assert := assert.New(t)

	// 0x20 holds an address; [0x20] reads through it.
	program := []string{
		"main:",
		"put 0x10 5",
		"put 0x20 0x10",
		"mov " + display + " [0x20]",
		"out",
		"hlt",
	}

	_, output, err := run(t, strings.Join(program, "\n"))
	assert.NoError(err)
	assert.Equal("5", output)
}

func TestMachineDerefWrite(t *testing.T) {
	assert := assert.New(t)

	// [0x20] as destination writes through the pointer.
	program := []string{
		"main:",
		"put 0x10 9",
		"put 0x20 0x30",
		"mov [0x20] 0x10",
		"hlt",
	}

	m, _, err := run(t, strings.Join(program, "\n"))
	assert.NoError(err)

	cell, _ := m.Tape.Read(0x30)
	assert.Equal(uint32(9), cell.Data)
}

func TestMachineMovPreservesDtype(t *testing.T) {
	assert := assert.New(t)

	program := []string{
		"main:",
		`put 0x10 "a"`,
		"mov 0x11 0x10",
		"put 0x12 7",
		"mov 0x13 0x12",
		"hlt",
	}

	m, _, err := run(t, strings.Join(program, "\n"))
	assert.NoError(err)

	cell, _ := m.Tape.Read(0x11)
	assert.Equal(uint32('a'), cell.Data)
	assert.Equal(T_CHAR, cell.Dtype)

	cell, _ = m.Tape.Read(0x13)
	assert.Equal(uint32(7), cell.Data)
	assert.Equal(T_UINT, cell.Dtype)
}

func TestMachineDispMonotonic(t *testing.T) {
	assert := assert.New(t)

	program := []string{
		"main:",
		"put 0x18a8a \"z\"", // two cells past the display base
		"put 0x18a88 \"a\"", // behind DISP once it advanced
		"hlt",
	}

	m, _, err := run(t, strings.Join(program, "\n"))
	assert.NoError(err)

	disp, _ := m.Tape.Read(REG_DISP)
	assert.Equal(OUT+3, disp.Data)
}

func TestMachineOutRepeats(t *testing.T) {
	assert := assert.New(t)

	program := []string{
		"main:",
		"put " + display + ` "hi"`,
		"out",
		"out",
		"hlt",
	}

	_, output, err := run(t, strings.Join(program, "\n"))
	assert.NoError(err)
	assert.Equal("hihi", output)
}

func TestMachineOutEscapes(t *testing.T) {
	assert := assert.New(t)

	table := [](struct {
		name     string
		str      string
		expected string
	}){
		{"newline", `a\nb`, "a\nb"},
		{"return", `a\rb`, "a\rb"},
		{"swallowed", `a\qb`, "ab"},
		{"trailing", `ab\`, "ab"},
	}

	for _, entry := range table {
		program := []string{
			"main:",
			"put " + display + " \"" + entry.str + "\"",
			"out",
			"hlt",
		}

		_, output, err := run(t, strings.Join(program, "\n"))
		assert.NoError(err, entry.name)
		assert.Equal(entry.expected, output, entry.name)
	}
}

func TestMachineOutMixed(t *testing.T) {
	assert := assert.New(t)

	// A numeric cell amid characters prints its decimal value.
	program := []string{
		"main:",
		"put " + display + ` "n="`,
		"put 0x30 1234",
		"mov 0x18a8a 0x30",
		"out",
		"hlt",
	}

	_, output, err := run(t, strings.Join(program, "\n"))
	assert.NoError(err)
	assert.Equal("n=1234", output)
}

func TestMachineStepAdvance(t *testing.T) {
	assert := assert.New(t)

	table := [](struct {
		name string
		cell Cell
	}){
		{"none", Cell{Op: OP_NONE, Data: 3}},
		{"read", Cell{Op: OP_READ, Data: SAFE_MEM}},
		{"write", Cell{Op: OP_WRITE, Data: SAFE_MEM}},
		{"cmp", Cell{Op: OP_CMP, Data: SAFE_MEM}},
		{"and", Cell{Op: OP_AND, Data: SAFE_MEM}},
		{"not", Cell{Op: OP_NOT, Data: SAFE_MEM}},
		{"add", Cell{Op: OP_ADD, Data: SAFE_MEM}},
		{"out", Cell{Op: OP_OUT}},
	}

	for _, entry := range table {
		m := NewMachine()
		m.Tape.at(REG_DISP).Data = OUT
		m.Tape.at(REG_STK).Data = STACK
		m.Tape.at(MAIN).Op = entry.cell.Op
		m.Tape.at(MAIN).Data = entry.cell.Data
		m.Cursor = Cursor{Pos: MAIN}

		done, err := m.Step()
		assert.NoError(err, entry.name)
		assert.False(done, entry.name)
		assert.Equal(MAIN+1, m.Cursor.Pos, entry.name)
	}
}

func TestMachineOperandOutOfBounds(t *testing.T) {
	assert := assert.New(t)

	// The operand check applies even to inert NONE literals.
	program := []string{
		"main:",
		"put 0x10 400000",
		"hlt",
	}

	_, _, err := run(t, strings.Join(program, "\n"))
	assert.ErrorIs(err, ErrAddressInvalid(0))
}

func TestMachineRunawayCursor(t *testing.T) {
	assert := assert.New(t)

	m := NewMachine()
	m.Cursor = Cursor{Pos: END + 1}

	_, err := m.Step()
	assert.ErrorIs(err, ErrAddressInvalid(0))
}

func TestMachineInvalidInstruction(t *testing.T) {
	assert := assert.New(t)

	m := NewMachine()
	err := m.Tape.Write(MAIN, Cell{Op: Op(0x42)})
	assert.NoError(err)
	m.Cursor = Cursor{Pos: MAIN}

	_, err = m.Step()
	assert.ErrorIs(err, ErrInstructionInvalid(0))
}

func TestMachineHaltStaysHalted(t *testing.T) {
	assert := assert.New(t)

	m := NewMachine()
	m.Cursor = Cursor{Pos: MAIN}
	err := m.Tape.Write(MAIN, Cell{Op: OP_HALT})
	assert.NoError(err)

	done, err := m.Step()
	assert.NoError(err)
	assert.True(done)
	assert.True(m.Halted())

	done, err = m.Step()
	assert.NoError(err)
	assert.True(done)
}
