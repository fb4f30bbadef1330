package main

import (
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/chzyer/readline"

	"github.com/bollu/elfsage/elf"
	"github.com/bollu/elfsage/patchscript"
)

type shellState struct {
	path  string
	image []byte
	file  *elf.File
}

// setImage re-decodes the in-memory image so every view reflects the latest
// patches.
func (state *shellState) setImage(image []byte) error {
	file, err := elf.ParseBytes(image)
	if err != nil {
		return err
	}

	state.image = image
	state.file = file
	return nil
}

type shellCmd struct {
	name string
	help string
	run  func(*shellState, []string) error
}

var shellCommands = []shellCmd{
	{
		name: "header",
		help: "print the elf file header",
		run: func(state *shellState, args []string) error {
			printFileHeader(state.file)
			return nil
		},
	},
	{
		name: "segments",
		help: "print the program header table",
		run: func(state *shellState, args []string) error {
			printProgramHeaders(state.file)
			return nil
		},
	},
	{
		name: "sections",
		help: "print the section header table",
		run: func(state *shellState, args []string) error {
			printSectionHeaders(state.file)
			return nil
		},
	},
	{
		name: "symbols",
		help: "symbols [table-name] - print a symbol table (default .symtab)",
		run: func(state *shellState, args []string) error {
			name := ".symtab"
			if len(args) > 0 {
				name = args[0]
			}
			printSymbolTable(state.file, name)
			return nil
		},
	},
	{
		name: "validate",
		help: "check structural invariants",
		run: func(state *shellState, args []string) error {
			violations := state.file.Validate()
			for _, violation := range violations {
				fmt.Println(violation)
			}
			if len(violations) == 0 {
				fmt.Println("ok")
			}
			return nil
		},
	},
	{
		name: "peek",
		help: "peek <offset> <u8|u16|u32|u64> - read a field from the image",
		run:  peekShellCommand,
	},
	{
		name: "patch",
		help: "patch <program|section|symbol> <index> <field> <value>",
		run:  patchShellCommand,
	},
	{
		name: "write",
		help: "write [path] - save the current image (default: original path)",
		run: func(state *shellState, args []string) error {
			path := state.path
			if len(args) > 0 {
				path = args[0]
			}

			err := os.WriteFile(path, state.image, 0644)
			if err != nil {
				return err
			}

			fmt.Println("wrote", path)
			return nil
		},
	},
}

// Registered here rather than in the composite literal above; the help
// closure ranges over shellCommands and must not appear in the slice's own
// initializer.
func init() {
	shellCommands = append(
		shellCommands,
		shellCmd{
			name: "help",
			help: "print this message",
			run: func(state *shellState, args []string) error {
				for _, cmd := range shellCommands {
					fmt.Printf("  %-10s %s\n", cmd.name, cmd.help)
				}
				return nil
			},
		})
}

func peekShellCommand(state *shellState, args []string) error {
	if len(args) != 2 {
		return fmt.Errorf("USAGE: peek <offset> <u8|u16|u32|u64>")
	}

	offset, err := strconv.ParseUint(args[0], 0, 64)
	if err != nil {
		return fmt.Errorf("invalid offset %q: %w", args[0], err)
	}

	cursor := elf.NewCursor(state.file.ByteOrder, state.image)
	err = cursor.SeekTo(offset)
	if err != nil {
		return err
	}

	switch args[1] {
	case "u8":
		value, err := cursor.U8()
		if err != nil {
			return err
		}
		fmt.Printf("0x%02x\n", value)
	case "u16":
		value, err := cursor.U16()
		if err != nil {
			return err
		}
		fmt.Printf("0x%04x\n", value)
	case "u32":
		value, err := cursor.U32()
		if err != nil {
			return err
		}
		fmt.Printf("0x%08x\n", value)
	case "u64":
		value, err := cursor.U64()
		if err != nil {
			return err
		}
		fmt.Printf("0x%016x\n", value)
	default:
		return fmt.Errorf("unknown width %q", args[1])
	}

	return nil
}

func patchShellCommand(state *shellState, args []string) error {
	if len(args) != 4 {
		return fmt.Errorf(
			"USAGE: patch <program|section|symbol> <index> <field> <value>")
	}

	index, err := strconv.Atoi(args[1])
	if err != nil {
		return fmt.Errorf("invalid index %q: %w", args[1], err)
	}

	value, err := strconv.ParseUint(args[3], 0, 64)
	if err != nil {
		return fmt.Errorf("invalid value %q: %w", args[3], err)
	}

	script := &patchscript.Script{
		Patches: []patchscript.Edit{
			{
				Table: args[0],
				Index: index,
				Field: args[2],
				Value: patchscript.Value(value),
			},
		},
	}

	switch args[0] {
	case patchscript.TableProgram,
		patchscript.TableSection,
		patchscript.TableSymbol:
	default:
		return fmt.Errorf("unknown table: %q", args[0])
	}

	patched, err := script.Apply(state.image)
	if err != nil {
		return err
	}

	err = state.setImage(patched)
	if err != nil {
		return fmt.Errorf("patched image no longer parses: %w", err)
	}

	fmt.Println("patched (in memory; use write to save)")
	return nil
}

func shellCommand(args []string) error {
	if len(args) != 1 {
		return fmt.Errorf("USAGE: elfsage shell <file>")
	}

	content, err := os.ReadFile(args[0])
	if err != nil {
		return fmt.Errorf("failed to read %s: %w", args[0], err)
	}

	state := &shellState{path: args[0]}
	err = state.setImage(content)
	if err != nil {
		return fmt.Errorf("failed to parse %s: %w", args[0], err)
	}

	fmt.Printf(
		"loaded %s (%s, %s)\n",
		state.path,
		state.file.Class(),
		state.file.Machine())

	rl, err := readline.New("elfsage > ")
	if err != nil {
		return err
	}
	defer rl.Close()

	lastLine := ""
	for {
		line, err := rl.Readline()
		if err != nil {
			if err == io.EOF || err == readline.ErrInterrupt {
				break
			}
			return err
		}

		line = strings.TrimSpace(line)
		if line == "" {
			line = lastLine
		}
		lastLine = line

		if line == "" {
			continue
		}

		if runShellLine(state, line) {
			break
		}
	}

	return nil
}

// runShellLine dispatches one non-empty input line to the first command
// whose name the first word prefixes.  Returns true when the session should
// end.
func runShellLine(state *shellState, line string) bool {
	args := strings.Fields(line)
	if args[0] == "quit" || args[0] == "exit" {
		return true
	}

	for _, cmd := range shellCommands {
		if strings.HasPrefix(cmd.name, args[0]) {
			err := cmd.run(state, args[1:])
			if err != nil {
				fmt.Println("error:", err)
			}
			return false
		}
	}

	fmt.Println("invalid command:", args[0])
	return false
}
