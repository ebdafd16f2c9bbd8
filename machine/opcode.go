package machine

// Op is a micro-opcode executed directly by the machine. The numbering
// matches the instruction dump format, so dumps stay comparable across
// implementations.
type Op int

//go:generate go tool stringer -linecomment -type=Op
const (
	OP_NONE = Op(0x00) // none
	OP_HALT = Op(0x01) // halt

	/* Standard micro-ops */
	OP_JUMP  = Op(0x02) // jump
	OP_CMP   = Op(0x03) // cmp
	OP_JE    = Op(0x04) // je
	OP_JNE   = Op(0x05) // jne
	OP_JG    = Op(0x06) // jg
	OP_JGE   = Op(0x07) // jge
	OP_JL    = Op(0x08) // jl
	OP_JLE   = Op(0x09) // jle
	OP_READ  = Op(0x0a) // read
	OP_WRITE = Op(0x0b) // write
	OP_CALL  = Op(0x0c) // call
	OP_RET   = Op(0x0d) // ret

	/* Bitwise micro-ops. NOT is a logical not, despite its name. */
	OP_AND    = Op(0x0e) // and
	OP_OR     = Op(0x0f) // or
	OP_XOR    = Op(0x10) // xor
	OP_NOT    = Op(0x11) // not
	OP_LSHIFT = Op(0x12) // lshift
	OP_RSHIFT = Op(0x13) // rshift

	/* Arithmetic micro-ops, unsigned 32-bit modular */
	OP_ADD = Op(0x14) // add
	OP_SUB = Op(0x15) // sub
	OP_MUL = Op(0x16) // mul
	OP_DIV = Op(0x17) // div

	/* I/O micro-ops */
	OP_OUT = Op(0x18) // out
)

// DataType tags how a display cell renders: numeric cells print their
// unsigned decimal value, character cells print their low byte.
type DataType byte

//go:generate go tool stringer -linecomment -type=DataType
const (
	T_UINT = DataType(0) // uint
	T_CHAR = DataType(1) // char
)
