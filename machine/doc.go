// Package machine implements the tape, the micro-op executor and the
// assembler for the TASM toy architecture.
//
// The tape is a flat array of cells split into four fixed regions: general
// storage (whose first five cells are reserved registers), the call stack,
// the display buffer and instruction memory. The executor walks instruction
// memory one cell at a time with a single cursor whose data/dtype fields act
// as a one-value accumulator between READ and the micro-op that consumes it.
//
// The assembler translates TASM source line by line into micro-op cells,
// supporting labels, equates, and compile-time expression evaluation.
// Dereferenced operands are lowered to load-then-patch micro-op pairs that
// rewrite the operand of a downstream cell just before it executes.
package machine
