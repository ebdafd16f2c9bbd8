package machine

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"log"
	"maps"
	"regexp"
	"slices"
	"strconv"
	"strings"

	"go.starlark.net/starlark"
	"go.starlark.net/syntax"
)

// LINE_LIMIT is the longest accepted source line, in bytes.
const LINE_LIMIT = 255

// Predefined system equates
var sysEquate = map[string]string{
	"LINENO": "0",
}

// Zero-operand mnemonics and their micro-ops.
var zeroOpMap = map[string]Op{
	"hlt": OP_HALT,
	"out": OP_OUT,
	"ret": OP_RET,
}

// One-operand mnemonics lowering to a single micro-op.
var singleOpMap = map[string]Op{
	"not":  OP_NOT,
	"jmp":  OP_JUMP,
	"call": OP_CALL,
	"je":   OP_JE,
	"jne":  OP_JNE,
	"jg":   OP_JG,
	"jge":  OP_JGE,
	"jl":   OP_JL,
	"jle":  OP_JLE,
}

// Two-operand mnemonics lowering to a READ/op pair. mov is the pair form
// whose consumer is a plain WRITE.
var pairOpMap = map[string]Op{
	"mov": OP_WRITE,
	"cmp": OP_CMP,
	"and": OP_AND,
	"or":  OP_OR,
	"xor": OP_XOR,
	"lsh": OP_LSHIFT,
	"rsh": OP_RSHIFT,
	"add": OP_ADD,
	"sub": OP_SUB,
	"mul": OP_MUL,
	"div": OP_DIV,
}

// Assembler is a line-oriented translator from TASM source to micro-op
// cells, with a deferred link step resolving label references forward and
// backward.
type Assembler struct {
	Verbose bool     // If set, verbosely logs the assembler actions.
	Opcode  []Opcode // List of assembled opcodes.

	predefine map[string]string // Predefines
	Label     map[string]uint32 // Map of labels to instruction addresses.
	Equate    map[string]string // Map of equates.
}

// Predefine defines a new equate or redefines an existing equate.
func (asm *Assembler) Predefine(equ string, value string) {
	if asm.predefine == nil {
		asm.predefine = map[string]string{equ: value}
	} else {
		asm.predefine[equ] = value
	}
}

// valueOf returns the value of a numeric word. The base is autodetected:
// leading 0x is hex, leading 0 is octal, else decimal.
func (asm *Assembler) valueOf(word string) (value uint32, err error) {
	v64, err := strconv.ParseUint(word, 0, 32)
	if err != nil {
		err = ErrOperandMalformed(word)
		return
	}

	value = uint32(v64)
	return
}

// parenEval does compile-time $(...) evaluations
func (asm *Assembler) parenEval(expr string) (value uint32, err error) {
	thread := starlark.Thread{}
	opts := syntax.FileOptions{}
	pred := starlark.StringDict{}
	for key, str := range asm.Equate {
		value32, verr := asm.valueOf(str)
		if verr != nil {
			// Ignore non-integer equates.
			continue
		}
		pred[key] = starlark.MakeInt(int(value32))
	}
	prog := "rc=" + expr + "\n"
	dict, err := starlark.ExecFileOptions(&opts, &thread, "expr", prog, pred)
	if err != nil {
		return
	}
	st_rc, ok := dict["rc"]
	if !ok {
		err = ErrParseExpression(expr)
		return
	}
	st_int, ok := st_rc.(starlark.Int)
	if !ok {
		err = ErrParseExpression(expr)
		return
	}
	st_int64, ok := st_int.Int64()
	if !ok {
		err = ErrParseExpression(expr)
		return
	}
	value = uint32(st_int64)
	return
}

// currentAddr is the next free instruction address.
func (asm *Assembler) currentAddr() uint32 {
	if len(asm.Opcode) == 0 {
		return MAIN
	}

	last := asm.Opcode[len(asm.Opcode)-1]

	return last.Addr + uint32(len(last.Cells))
}

// parseLine splits a source line into mnemonic and operand words, applying
// $() evaluation, .equ directives, equate substitution and label
// definitions. A quoted string operand is kept verbatim as a single word.
func (asm *Assembler) parseLine(line string, lineno int) (words []string, err error) {
	// Set line number.
	asm.Equate["LINENO"] = fmt.Sprintf("%v", lineno)

	head := line
	var tail string
	if n := strings.IndexByte(line, '"'); n >= 0 {
		head = line[:n]
		tail = strings.TrimRight(line[n:], " \t")
	}

	// Do $() evaluations, never inside a string literal.
	re := regexp.MustCompile(`\$\([^\$]*\)`)
	head = re.ReplaceAllStringFunc(head, func(str string) string {
		value, _err := asm.parenEval(str[2 : len(str)-1])
		if _err != nil {
			err = _err
		}
		return fmt.Sprintf("%#v", value)
	})
	if err != nil {
		return
	}

	words = strings.Fields(head)
	if len(tail) != 0 {
		words = append(words, tail)
	}

	if len(words) == 0 {
		return
	}

	// .equ CONST VALUE
	if words[0] == ".equ" {
		if len(words) != 3 {
			err = ErrEquateSyntax
			return
		}
		_, ok := asm.Equate[words[1]]
		if ok {
			err = ErrEquateDuplicate
			return
		}
		asm.Equate[words[1]] = words[2]
		words = words[:0]
		return
	}

	for n, word := range words {
		if strings.HasPrefix(word, `"`) {
			continue
		}
		equate, ok := asm.Equate[word]
		if ok {
			words[n] = equate
		}
	}

	for strings.HasSuffix(words[0], ":") {
		label := words[0][:len(words[0])-1]
		if len(label) == 0 || strings.ContainsAny(label, `:"[]`) {
			err = ErrLabelInvalid
			return
		}
		_, ok := asm.Label[label]
		if ok {
			err = ErrLabelDuplicate
			return
		}

		if asm.Label == nil {
			asm.Label = make(map[string]uint32, 16)
		}
		asm.Label[label] = asm.currentAddr()
		words = words[1:]
		if len(words) == 0 {
			return
		}
	}

	return
}

// firstOperand parses an address operand: a hex literal, a dereferenced hex
// literal in brackets, or a label reference resolved at link time.
func (asm *Assembler) firstOperand(word string) (addr uint32, deref bool, label string, err error) {
	switch {
	case strings.HasPrefix(word, "0x"):
		addr, err = asm.valueOf(word)
	case strings.HasPrefix(word, "[0x") && strings.HasSuffix(word, "]"):
		deref = true
		addr, err = asm.valueOf(word[1 : len(word)-1])
	case strings.ContainsAny(word, `[]":`):
		err = ErrOperandMalformed(word)
	default:
		label = word
	}

	return
}

// secondOperand parses a value operand: a numeric literal in any base, or a
// dereferenced address in brackets. String operands are handled by the
// caller.
func (asm *Assembler) secondOperand(word string) (val uint32, deref bool, err error) {
	if strings.HasPrefix(word, "[") && strings.HasSuffix(word, "]") {
		deref = true
		val, err = asm.valueOf(word[1 : len(word)-1])
		return
	}

	val, err = asm.valueOf(word)
	return
}

// emitter accumulates the cells for one source line.
type emitter struct {
	base  uint32
	cells []Cell
}

// pos is the absolute tape address of the next emitted cell.
func (em *emitter) pos() uint32 {
	return em.base + uint32(len(em.cells))
}

func (em *emitter) emit(op Op, data uint32, dtype DataType) {
	em.cells = append(em.cells, Cell{Op: op, Data: data, Dtype: dtype})
}

// deref emits the load-then-patch pair for a dereferenced operand: read the
// enclosed address, then write the datum into the data slot overwriteAt
// cells past the WRITE itself.
func (em *emitter) deref(addr uint32, overwriteAt uint32) {
	em.emit(OP_READ, addr, T_UINT)
	em.emit(OP_WRITE, em.pos()+overwriteAt, T_UINT)
}

// parseWords lowers the words of one source line into micro-op cells.
func (asm *Assembler) parseWords(words []string, lineno int) (err error) {
	// no-op
	if len(words) == 0 {
		return
	}

	if asm.currentAddr() > END {
		err = ErrInstructionOverflow
		return
	}

	em := &emitter{base: asm.currentAddr()}
	var label string
	var refs []LinkRef

	defer func() {
		if err != nil || len(em.cells) == 0 {
			return
		}
		if em.pos()-1 > END {
			err = ErrInstructionOverflow
			return
		}
		opcode := Opcode{LineNo: lineno, Addr: em.base, Words: words, Cells: em.cells, LinkLabel: label, LinkRefs: refs}
		asm.Opcode = append(asm.Opcode, opcode)
	}()

	mnemonic := words[0]

	if op, ok := zeroOpMap[mnemonic]; ok {
		if len(words) > 1 {
			err = ErrOperandExtra
			return
		}
		em.emit(op, 0, T_UINT)
		return
	}

	if op, ok := singleOpMap[mnemonic]; ok {
		if len(words) < 2 {
			err = ErrOperandMissing
			return
		}
		if len(words) > 2 {
			err = ErrOperandExtra
			return
		}
		var a1 uint32
		var deref1 bool
		a1, deref1, label, err = asm.firstOperand(words[1])
		if err != nil {
			return
		}
		if deref1 {
			em.deref(a1, 1)
		}
		if len(label) != 0 {
			refs = append(refs, LinkRef{Index: len(em.cells)})
		}
		em.emit(op, a1, T_UINT)
		return
	}

	// Two-operand instructions: put plus the READ/op pairs.
	op, isPair := pairOpMap[mnemonic]
	if !isPair && mnemonic != "put" {
		err = ErrMnemonicUnknown(mnemonic)
		return
	}
	if len(words) < 3 {
		err = ErrOperandMissing
		return
	}
	if len(words) > 3 {
		err = ErrOperandExtra
		return
	}

	var a1 uint32
	var deref1 bool
	a1, deref1, label, err = asm.firstOperand(words[1])
	if err != nil {
		return
	}

	// lower emits one full lowered instruction. The deref-2 prelude comes
	// first, its patch offset bumped past the deref-1 prelude when both
	// operands are dereferenced, so the deref-1 patch still rewrites an
	// unexecuted cell.
	lower := func(a1 uint32, a2 uint32, dtype DataType, deref2 bool, bias uint32) {
		if deref2 {
			at := uint32(1)
			if deref1 {
				at = 3
			}
			em.deref(a2, at)
		}

		if mnemonic == "put" {
			if deref1 {
				em.deref(a1, 3)
			}
			none := em.pos()
			em.emit(OP_NONE, a2, dtype)
			em.emit(OP_READ, none, T_UINT)
			if len(label) != 0 {
				refs = append(refs, LinkRef{Index: len(em.cells), Add: bias})
			}
			em.emit(OP_WRITE, a1, T_UINT)
			return
		}

		if deref1 {
			em.deref(a1, 2)
		}
		em.emit(OP_READ, a2, T_UINT)
		if len(label) != 0 {
			refs = append(refs, LinkRef{Index: len(em.cells), Add: bias})
		}
		em.emit(op, a1, T_UINT)
	}

	second := words[2]

	if strings.HasPrefix(second, `"`) {
		if len(second) < 2 || !strings.HasSuffix(second, `"`) ||
			strings.Contains(second[1:len(second)-1], `"`) {
			err = ErrOperandMalformed(second)
			return
		}

		// One full lowered instruction per character, destination
		// auto-incremented. Backslashes pass through verbatim; escapes
		// are decoded at OUT time.
		str := second[1 : len(second)-1]
		for i := range len(str) {
			lower(a1+uint32(i), uint32(str[i]), T_CHAR, false, uint32(i))
		}
		return
	}

	var a2 uint32
	var deref2 bool
	a2, deref2, err = asm.secondOperand(second)
	if err != nil {
		return
	}

	lower(a1, a2, T_UINT, deref2, 0)
	return
}

// Parse assembles an input stream into a Program.
func (asm *Assembler) Parse(input io.Reader) (prog *Program, err error) {
	scanner := bufio.NewScanner(input)

	var line string
	var lineno int

	defer func() {
		if err != nil && !errors.Is(err, ErrMainMissing) {
			err = &ErrSyntax{LineNo: lineno, Line: line, Err: err}
		}
	}()

	clear(asm.Label)
	asm.Opcode = asm.Opcode[:0]
	asm.Equate = maps.Clone(sysEquate)
	for attr, val := range asm.predefine {
		asm.Equate[attr] = val
	}

	for scanner.Scan() {
		text := scanner.Text()
		lineno += 1

		if asm.Verbose {
			log.Printf("%v: %v\n", lineno, text)
		}

		if len(text) > LINE_LIMIT {
			err = ErrLineTooLong
			return
		}

		if n := strings.Index(text, "//"); n >= 0 {
			text = text[:n]
		}
		line = strings.TrimSpace(text)

		var words []string
		words, err = asm.parseLine(line, lineno)
		if err != nil {
			return
		}

		err = asm.parseWords(words, lineno)
		if err != nil {
			return
		}
	}
	err = scanner.Err()
	if err != nil {
		return
	}

	// Safety net: a trailing HALT past the last line.
	if asm.currentAddr() > END {
		err = ErrInstructionOverflow
		return
	}
	asm.Opcode = append(asm.Opcode, Opcode{
		LineNo: lineno,
		Addr:   asm.currentAddr(),
		Cells:  []Cell{{Op: OP_HALT}},
	})

	// Final linking of label references.
	for n := range asm.Opcode {
		op := &asm.Opcode[n]

		if len(op.LinkLabel) == 0 {
			continue
		}
		addr, ok := asm.Label[op.LinkLabel]
		if !ok {
			lineno = op.LineNo
			line = strings.Join(op.Words, " ")
			err = ErrLabelMissing(op.LinkLabel)
			return
		}
		for _, ref := range op.LinkRefs {
			op.Cells[ref.Index].Data = addr + ref.Add
		}
	}

	entry, ok := asm.Label["main"]
	if !ok {
		err = ErrMainMissing
		return
	}

	prog = &Program{
		Opcodes: slices.Clone(asm.Opcode),
		Entry:   entry,
	}

	return
}
