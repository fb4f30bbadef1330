package main

import (
	"fmt"
	"os"

	"github.com/bollu/elfsage/elf"
)

const usageText = `USAGE: elfsage <command> [flags] <file>

Commands:
  read      print decoded file header / program headers / sections / symbols
  hexdump   hex dump of the raw file image
  validate  check structural invariants and report each violation
  patch     edit one table entry field (or apply a yaml patch script)
  shell     interactive inspection/patching session
  help      print this message

Run 'elfsage <command> -h' for command flags.
`

func main() {
	if len(os.Args) < 2 {
		fmt.Fprint(os.Stderr, usageText)
		os.Exit(1)
	}

	var err error
	switch os.Args[1] {
	case "read":
		err = readCommand(os.Args[2:])
	case "hexdump":
		err = hexdumpCommand(os.Args[2:])
	case "validate":
		err = validateCommand(os.Args[2:])
	case "patch":
		err = patchCommand(os.Args[2:])
	case "shell":
		err = shellCommand(os.Args[2:])
	case "help", "-h", "--help":
		fmt.Print(usageText)
	default:
		fmt.Fprintf(os.Stderr, "unknown command: %s\n", os.Args[1])
		fmt.Fprint(os.Stderr, usageText)
		os.Exit(1)
	}

	if err != nil {
		fmt.Fprintln(os.Stderr, "elfsage:", err)
		os.Exit(1)
	}
}

func loadFile(path string) (*elf.File, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}

	file, err := elf.ParseBytes(content)
	if err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", path, err)
	}

	return file, nil
}
