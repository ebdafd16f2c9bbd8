package emulator

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"

	"github.com/rachitdhar/tasm/machine"
)

// Memory dump file names, one per dumped region.
const (
	STORE_DUMP_FILE       = "__STORE_DUMP.tasm.txt"
	DISPLAY_DUMP_FILE     = "__DISPLAY_DUMP.tasm.txt"
	INSTRUCTION_DUMP_FILE = "__INSTRUCTION_DUMP.tasm.txt"
)

// WriteMemoryDump writes the three region dump files into dir, one line per
// cell: absolute address, region tag plus offset, opcode, data, dtype.
func (emu *Emulator) WriteMemoryDump(dir string) (err error) {
	regions := []struct {
		file string
		tag  string
		lo   uint32
		hi   uint32
	}{
		{STORE_DUMP_FILE, "_MEM", machine.MEM, machine.MEM_END},
		{DISPLAY_DUMP_FILE, "_OUT", machine.OUT, machine.OUT_END},
		{INSTRUCTION_DUMP_FILE, "_MAIN", machine.MAIN, machine.END},
	}

	for _, region := range regions {
		err = emu.dumpRegion(filepath.Join(dir, region.file), region.tag, region.lo, region.hi)
		if err != nil {
			return
		}
	}

	return
}

// dumpRegion writes one line per cell in [lo, hi].
func (emu *Emulator) dumpRegion(path string, tag string, lo uint32, hi uint32) (err error) {
	file, err := os.Create(path)
	if err != nil {
		return
	}
	defer file.Close()

	w := bufio.NewWriter(file)
	for addr := lo; addr <= hi; addr++ {
		var cell machine.Cell
		cell, err = emu.Tape.Read(addr)
		if err != nil {
			return
		}
		fmt.Fprintf(w, "0x%08x [%s + %010d] \t0x%08x  0x%08x  %d\n",
			addr, tag, addr-lo, uint32(cell.Op), cell.Data, cell.Dtype)
	}

	return w.Flush()
}
