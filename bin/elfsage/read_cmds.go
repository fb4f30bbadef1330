package main

import (
	"encoding/binary"
	"flag"
	"fmt"
	"os"

	"github.com/bollu/elfsage/elf"
)

// Recognized but unimplemented read selectors.  Any of these set
// short-circuits the command before decoding begins.
var unimplementedReadFlags = []string{
	"section-groups",
	"relocs",
	"notes",
	"dynamic",
	"demangle",
	"hex-dump",
	"string-dump",
	"archive-index",
	"lint",
	"decompress",
}

func registerUnimplementedFlags(flags *flag.FlagSet) map[string]*bool {
	values := map[string]*bool{}
	for _, name := range unimplementedReadFlags {
		values[name] = flags.Bool(name, false, "(recognized but not implemented)")
	}
	return values
}

func rejectUnimplemented(values map[string]*bool) error {
	for _, name := range unimplementedReadFlags {
		if *values[name] {
			return fmt.Errorf("flag -%s is not implemented", name)
		}
	}
	return nil
}

func readCommand(args []string) error {
	flags := flag.NewFlagSet("read", flag.ContinueOnError)
	fileHeader := flags.Bool("file-header", false, "print the elf file header")
	segments := flags.Bool("segments", false, "print the program header table")
	sections := flags.Bool("sections", false, "print the section header table")
	syms := flags.Bool("syms", false, "print the symbol table (.symtab)")
	dynSyms := flags.Bool(
		"dyn-syms",
		false,
		"print the dynamic symbol table (.dynsym)")
	unimplemented := registerUnimplementedFlags(flags)

	err := flags.Parse(args)
	if err != nil {
		return err
	}

	err = rejectUnimplemented(unimplemented)
	if err != nil {
		return err
	}

	if flags.NArg() != 1 {
		return fmt.Errorf("USAGE: elfsage read [flags] <file>")
	}

	// No selector means print everything.
	all := !(*fileHeader || *segments || *sections || *syms || *dynSyms)

	file, err := loadFile(flags.Arg(0))
	if err != nil {
		return err
	}

	if all || *fileHeader {
		printFileHeader(file)
	}

	if all || *segments {
		printProgramHeaders(file)
	}

	if all || *sections {
		printSectionHeaders(file)
	}

	if all || *syms {
		printSymbolTable(file, ".symtab")
	}

	if all || *dynSyms {
		printSymbolTable(file, ".dynsym")
	}

	return nil
}

func hexdumpCommand(args []string) error {
	flags := flag.NewFlagSet("hexdump", flag.ContinueOnError)
	offset := flags.Uint64("offset", 0, "start offset into the file image")
	length := flags.Int("length", 0, "number of bytes to dump (0 = to end)")

	err := flags.Parse(args)
	if err != nil {
		return err
	}

	if flags.NArg() != 1 {
		return fmt.Errorf("USAGE: elfsage hexdump [flags] <file>")
	}

	content, err := os.ReadFile(flags.Arg(0))
	if err != nil {
		return fmt.Errorf("failed to read %s: %w", flags.Arg(0), err)
	}

	// Byte order is irrelevant for a raw dump; the cursor only provides the
	// bounds checking here.
	cursor := elf.NewCursor(binary.LittleEndian, content)
	err = cursor.SeekTo(*offset)
	if err != nil {
		return err
	}

	size := *length
	if size == 0 {
		size = len(content) - int(*offset)
	}

	chunk, err := cursor.Bytes(size)
	if err != nil {
		return err
	}

	dumpHex(os.Stdout, chunk, *offset)
	return nil
}
