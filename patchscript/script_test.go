package patchscript

import (
	"bytes"
	"encoding/binary"
	"testing"

	"github.com/pattyshack/gt/testing/expect"
	"github.com/pattyshack/gt/testing/suite"

	"github.com/bollu/elfsage/elf"
)

// newExecutable builds a minimal little endian 64-bit image with one
// loadable program header.
func newExecutable() []byte {
	header := elf.Header64{
		Identifier: elf.Identifier{
			Magic:             [4]byte{0x7f, 'E', 'L', 'F'},
			Class:             elf.Class64,
			DataEncoding:      elf.DataEncodingTwosComplementLittleEndian,
			IdentifierVersion: elf.IdentifierVersion,
		},
		FileType:                elf.FileTypeExecutable,
		MachineArchitecture:     elf.MachineArchitectureX86_64,
		FormatVersion:           elf.FormatVersion,
		ProgramHeaderOffset:     elf.Elf64HeaderSize,
		ElfHeaderSize:           elf.Elf64HeaderSize,
		ProgramHeaderEntrySize:  elf.Elf64ProgramHeaderEntrySize,
		NumProgramHeaderEntries: 1,
	}

	phdr := elf.ProgramHeader64{
		ProgramType:   elf.ProgramLoadable,
		FileImageSize: elf.Elf64HeaderSize + elf.Elf64ProgramHeaderEntrySize,
		Alignment:     0x1000,
	}

	image := elf.RawHeader{Ehdr64: &header}.Encode(binary.LittleEndian)
	return append(
		image,
		elf.RawProgramHeader{Phdr64: &phdr}.Encode(binary.LittleEndian)...)
}

// newObject builds a little endian 32-bit image with a two-entry .symtab
// (entry 1 is "main"), its .strtab, and the section name table.
func newObject() []byte {
	const (
		symtabOffset   = elf.Elf32HeaderSize
		strtabOffset   = symtabOffset + 2*elf.Elf32SymbolEntrySize
		shstrtabOffset = strtabOffset + 6
		shoff          = shstrtabOffset + 27
	)

	header := elf.Header32{
		Identifier: elf.Identifier{
			Magic:             [4]byte{0x7f, 'E', 'L', 'F'},
			Class:             elf.Class32,
			DataEncoding:      elf.DataEncodingTwosComplementLittleEndian,
			IdentifierVersion: elf.IdentifierVersion,
		},
		FileType:                elf.FileTypeRelocatable,
		MachineArchitecture:     elf.MachineArchitectureX86,
		FormatVersion:           elf.FormatVersion,
		SectionHeaderOffset:     shoff,
		ElfHeaderSize:           elf.Elf32HeaderSize,
		SectionHeaderEntrySize:  elf.Elf32SectionHeaderEntrySize,
		NumSectionHeaderEntries: 4,
		SectionStringTableIndex: 3,
	}

	symbols := []elf.Symbol32{
		{},
		{
			NameIndex: 1, // "main"
			Value:     0x100,
			Size:      4,
			Info: byte(elf.SymbolBindingGlobal)<<4 |
				byte(elf.SymbolTypeFunction),
			SectionIndex: 1,
		},
	}

	sectionHeaders := []elf.SectionHeader32{
		{},
		{
			NameIndex:        1, // ".symtab"
			SectionType:      elf.SectionTypeSymbolTable,
			Offset:           symtabOffset,
			Size:             2 * elf.Elf32SymbolEntrySize,
			Link:             2,
			Info:             1,
			AddressAlignment: 4,
			EntrySize:        elf.Elf32SymbolEntrySize,
		},
		{
			NameIndex:        9, // ".strtab"
			SectionType:      elf.SectionTypeStringTable,
			Offset:           strtabOffset,
			Size:             6,
			AddressAlignment: 1,
		},
		{
			NameIndex:        17, // ".shstrtab"
			SectionType:      elf.SectionTypeStringTable,
			Offset:           shstrtabOffset,
			Size:             27,
			AddressAlignment: 1,
		},
	}

	image := elf.RawHeader{Ehdr32: &header}.Encode(binary.LittleEndian)
	for _, symbol := range symbols {
		entry := symbol
		image = append(
			image,
			elf.RawSymbol{Sym32: &entry}.Encode(binary.LittleEndian)...)
	}
	image = append(image, []byte("\x00main\x00")...)
	image = append(image, []byte("\x00.symtab\x00.strtab\x00.shstrtab\x00")...)
	for _, sectionHeader := range sectionHeaders {
		entry := sectionHeader
		image = append(
			image,
			elf.RawSectionHeader{Shdr32: &entry}.Encode(binary.LittleEndian)...)
	}

	return image
}

type ScriptSuite struct{}

func TestScript(t *testing.T) {
	suite.RunTests(t, &ScriptSuite{})
}

func (ScriptSuite) TestParseErrors(t *testing.T) {
	_, err := Parse([]byte("patches: ["))
	expect.Error(t, err, "failed to parse patch script")

	_, err = Parse([]byte("patches: []"))
	expect.Error(t, err, "contains no patches")

	_, err = Parse([]byte(`
patches:
- table: bogus
  index: 0
  field: vaddr
  value: 1
`))
	expect.Error(t, err, `unknown table: "bogus"`)

	_, err = Parse([]byte(`
patches:
- table: program
  index: -1
  field: vaddr
  value: 1
`))
	expect.Error(t, err, "negative entry index")

	_, err = Parse([]byte(`
patches:
- table: program
  index: 0
  value: 1
`))
	expect.Error(t, err, "missing field name")

	_, err = Parse([]byte(`
patches:
- table: section
  section: .symtab
  index: 0
  field: size
  value: 1
`))
	expect.Error(t, err, "only valid for symbol edits")

	_, err = Parse([]byte(`
patches:
- table: program
  index: 0
  field: vaddr
  value: xyz
`))
	expect.Error(t, err, `invalid value "xyz"`)
}

func (ScriptSuite) TestValueForms(t *testing.T) {
	script, err := Parse([]byte(`
patches:
- table: program
  index: 0
  field: vaddr
  value: 0x1000
- table: program
  index: 0
  field: memsz
  value: 4096
`))
	expect.Nil(t, err)
	expect.Equal(t, Value(0x1000), script.Patches[0].Value)
	expect.Equal(t, Value(4096), script.Patches[1].Value)

	patched, err := script.Apply(newExecutable())
	expect.Nil(t, err)

	file, err := elf.ParseBytes(patched)
	expect.Nil(t, err)
	expect.Equal(t, 0x1000, file.ProgramHeaders[0].VirtualAddress())
	expect.Equal(t, 4096, file.ProgramHeaders[0].MemoryImageSize())
}

func (ScriptSuite) TestApplyInOrder(t *testing.T) {
	image := newObject()
	pristine := make([]byte, len(image))
	copy(pristine, image)

	script, err := Parse([]byte(`
patches:
- table: symbol
  index: 1
  field: value
  value: 0x200
- table: symbol
  section: .symtab
  index: 1
  field: size
  value: 8
- table: section
  index: 2
  field: addralign
  value: 16
`))
	expect.Nil(t, err)

	patched, err := script.Apply(image)
	expect.Nil(t, err)

	// The input image is never mutated.
	expect.True(t, bytes.Equal(pristine, image))

	file, err := elf.ParseBytes(patched)
	expect.Nil(t, err)

	section, ok := file.GetSection(".symtab")
	expect.True(t, ok)

	main := section.(*elf.SymbolTableSection).Symbols[1]
	expect.Equal(t, "main", main.Name)
	expect.Equal(t, 0x200, main.Value())
	expect.Equal(t, 8, main.Size())

	expect.Equal(t, 16, file.SectionHeaders[2].AddressAlignment())
}

func (ScriptSuite) TestApplyErrors(t *testing.T) {
	script, err := Parse([]byte(`
patches:
- table: program
  index: 3
  field: vaddr
  value: 1
`))
	expect.Nil(t, err)

	_, err = script.Apply(newExecutable())
	expect.Error(t, err, "patch 0")
	expect.Error(t, err, "program header index out of range")

	script, err = Parse([]byte(`
patches:
- table: symbol
  section: .dynsym
  index: 0
  field: value
  value: 1
`))
	expect.Nil(t, err)

	_, err = script.Apply(newObject())
	expect.Error(t, err, "no .dynsym section")

	script, err = Parse([]byte(`
patches:
- table: symbol
  index: 0
  field: bogus
  value: 1
`))
	expect.Nil(t, err)

	_, err = script.Apply(newObject())
	expect.Error(t, err, "unknown symbol field")
}
