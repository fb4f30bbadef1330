package main

import (
	"fmt"
	"io"

	"github.com/bollu/elfsage/elf"
)

func printFileHeader(file *elf.File) {
	id := file.Identifier()

	fmt.Println("ELF header:")
	fmt.Printf("  Class:                 %s\n", file.Class())
	fmt.Printf("  Data encoding:         %s\n", id.DataEncoding)
	fmt.Printf("  OS/ABI:                %s\n", id.OperatingSystemABI)
	fmt.Printf("  Type:                  %s\n", file.FileType())
	fmt.Printf("  Machine:               %s\n", file.Machine())
	fmt.Printf("  Entry point:           0x%x\n", file.EntryPointAddress())
	fmt.Printf(
		"  Program headers:       %d entries of 0x%x bytes at 0x%x\n",
		file.NumProgramHeaderEntries(),
		file.ProgramHeaderEntrySize(),
		file.ProgramHeaderOffset())
	fmt.Printf(
		"  Section headers:       %d entries of 0x%x bytes at 0x%x\n",
		file.NumSectionHeaderEntries(),
		file.SectionHeaderEntrySize(),
		file.SectionHeaderOffset())
	fmt.Printf(
		"  Section name table:    index %d\n",
		file.SectionStringTableIndex())
}

func printProgramHeaders(file *elf.File) {
	fmt.Println("Program headers:", len(file.ProgramHeaders))
	for idx, header := range file.ProgramHeaders {
		fmt.Printf(
			"  [%2d] %-16s %s offset=0x%08x vaddr=0x%012x paddr=0x%012x "+
				"filesz=0x%x memsz=0x%x align=0x%x\n",
			idx,
			header.Type(),
			header.Flags(),
			header.ContentOffset(),
			header.VirtualAddress(),
			header.PhysicalAddress(),
			header.FileImageSize(),
			header.MemoryImageSize(),
			header.Alignment())
	}
}

func printSectionHeaders(file *elf.File) {
	fmt.Println("Sections:", len(file.Sections))
	for idx, section := range file.Sections {
		header := section.Header()
		fmt.Printf(
			"  [%2d] %-20s %-20s %s addr=0x%012x offset=0x%08x size=0x%x "+
				"link=%d info=%d align=0x%x entsize=0x%x\n",
			idx,
			section.Name(),
			header.Type(),
			header.Flags(),
			header.Address(),
			header.Offset(),
			header.Size(),
			header.Link(),
			header.Info(),
			header.AddressAlignment(),
			header.EntrySize())
	}
}

func printSymbolTable(file *elf.File, name string) {
	section, ok := file.GetSection(name)
	if !ok {
		fmt.Printf("No %s section in this file.\n", name)
		return
	}

	table, ok := section.(*elf.SymbolTableSection)
	if !ok {
		fmt.Printf("Section %s is not a symbol table.\n", name)
		return
	}

	fmt.Printf("Symbol table %s: %d entries\n", name, len(table.Symbols))
	for idx, symbol := range table.Symbols {
		fmt.Printf(
			"  %4d: %016x %6d %-10s %-7s %-9s %4d %s\n",
			idx,
			symbol.Value(),
			symbol.Size(),
			symbol.Type(),
			symbol.Binding(),
			symbol.Visibility(),
			symbol.SectionIndex(),
			symbol.Name)
	}
}

const hexdumpRowSize = 16

func dumpHex(out io.Writer, content []byte, baseOffset uint64) {
	for start := 0; start < len(content); start += hexdumpRowSize {
		end := start + hexdumpRowSize
		if end > len(content) {
			end = len(content)
		}
		row := content[start:end]

		fmt.Fprintf(out, "%08x ", baseOffset+uint64(start))
		for idx := 0; idx < hexdumpRowSize; idx++ {
			if idx%8 == 0 {
				fmt.Fprint(out, " ")
			}
			if idx < len(row) {
				fmt.Fprintf(out, "%02x ", row[idx])
			} else {
				fmt.Fprint(out, "   ")
			}
		}

		fmt.Fprint(out, " |")
		for _, b := range row {
			if b < 0x20 || b > 0x7e {
				b = '.'
			}
			fmt.Fprintf(out, "%c", b)
		}
		fmt.Fprintln(out, "|")
	}
}
