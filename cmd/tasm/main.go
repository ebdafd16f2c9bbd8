package main

import (
	"flag"
	"fmt"
	"os"
	"strings"

	"github.com/rachitdhar/tasm/emulator"
	"github.com/rachitdhar/tasm/machine"
)

// fatalf prints a prefixed error to stderr and exits with status 1.
func fatalf(prefix string, format string, args ...any) {
	fmt.Fprintf(os.Stderr, prefix+format+"\n", args...)
	os.Exit(1)
}

func main() {
	var memdump bool
	var verbose bool

	flag.BoolVar(&memdump, "memdump", false, "Generate memory dump files")
	flag.BoolVar(&verbose, "v", false, "Verbose mode")

	flag.Parse()

	args := flag.Args()
	if len(args) == 0 || !strings.HasSuffix(args[0], ".tasm") {
		fatalf("ERROR: ", "Provide the .tasm file name in the argument")
	}
	path := args[0]

	// The dump flag may also follow the file name.
	for _, arg := range args[1:] {
		if arg == "-memdump" {
			memdump = true
			continue
		}
		fatalf("ERROR: ", "Unknown argument: %v", arg)
	}

	file, err := os.Open(path)
	if err != nil {
		fatalf("ERROR: ", ".tasm file not found: %v", path)
	}
	defer file.Close()

	emu := emulator.NewEmulator()
	emu.Verbose = verbose
	emu.Output = os.Stdout

	asm := &machine.Assembler{Verbose: verbose}
	for key, value := range emu.Defines() {
		asm.Predefine(key, value)
	}

	prog, err := asm.Parse(file)
	if err != nil {
		fatalf("ERROR: ", "%v", err)
	}
	emu.Program = prog

	err = emu.Reset()
	if err != nil {
		fatalf("RUNTIME ERROR: ", "%v", err)
	}

	err = emu.Run()
	if err != nil {
		if memdump {
			emu.WriteMemoryDump(".")
		}
		fatalf("RUNTIME ERROR: ", "%v", err)
	}

	if memdump {
		err = emu.WriteMemoryDump(".")
		if err != nil {
			fatalf("ERROR: ", "Failed to create memory dump: %v", err)
		}
	}
}
