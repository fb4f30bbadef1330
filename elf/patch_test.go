package elf

import (
	"bytes"
	"testing"

	"github.com/pattyshack/gt/testing/expect"
	"github.com/pattyshack/gt/testing/suite"
)

type PatchSuite struct{}

func TestPatch(t *testing.T) {
	suite.RunTests(t, &PatchSuite{})
}

// expectDiffersOnlyWithin verifies that original and patched agree on every
// byte outside [start, end).
func expectDiffersOnlyWithin(
	t *testing.T,
	original []byte,
	patched []byte,
	start uint64,
	end uint64,
) {
	expect.Equal(t, len(original), len(patched))
	expect.True(t, bytes.Equal(original[:start], patched[:start]))
	expect.True(t, bytes.Equal(original[end:], patched[end:]))
}

func (PatchSuite) TestPatchProgramHeader(t *testing.T) {
	image := newExecutable64(&ProgramHeader64{
		ProgramType:     ProgramLoadable,
		ProgramFlags:    ProgramFlagReadableBit,
		VirtualAddress:  0x400000,
		FileImageSize:   executable64Size,
		MemoryImageSize: executable64Size,
		Alignment:       0x1000,
	})
	pristine := make([]byte, len(image))
	copy(pristine, image)

	file, err := ParseBytes(image)
	expect.Nil(t, err)

	entry, err := file.ProgramHeaders[0].WithField("vaddr", 0x600000)
	expect.Nil(t, err)

	patched, err := file.PatchProgramHeader(0, entry)
	expect.Nil(t, err)

	// The original image is untouched; only the entry's span changed.
	expect.True(t, bytes.Equal(pristine, file.Image))
	expectDiffersOnlyWithin(
		t,
		file.Image,
		patched,
		Elf64HeaderSize,
		Elf64HeaderSize+Elf64ProgramHeaderEntrySize)

	reparsed, err := ParseBytes(patched)
	expect.Nil(t, err)
	expect.Equal(t, 0x600000, reparsed.ProgramHeaders[0].VirtualAddress())
	expect.Equal(t, ProgramLoadable, reparsed.ProgramHeaders[0].Type())

	_, err = file.PatchProgramHeader(5, entry)
	expect.Error(t, err, "program header index out of range")
}

func (PatchSuite) TestPatchSectionHeader(t *testing.T) {
	file, err := ParseBytes(newObject32())
	expect.Nil(t, err)

	entry, err := file.SectionHeaders[2].WithField("addralign", 8)
	expect.Nil(t, err)

	patched, err := file.PatchSectionHeader(2, entry)
	expect.Nil(t, err)

	start := file.SectionHeaderOffset() +
		2*uint64(Elf32SectionHeaderEntrySize)
	expectDiffersOnlyWithin(
		t,
		file.Image,
		patched,
		start,
		start+uint64(Elf32SectionHeaderEntrySize))

	reparsed, err := ParseBytes(patched)
	expect.Nil(t, err)
	expect.Equal(t, 8, reparsed.SectionHeaders[2].AddressAlignment())
	expect.Equal(t, StringTableName, reparsed.Sections[2].Name())

	_, err = file.PatchSectionHeader(-1, entry)
	expect.Error(t, err, "section header index out of range")
}

func (PatchSuite) TestPatchSymbol(t *testing.T) {
	file, err := ParseBytes(newObject32())
	expect.Nil(t, err)

	section, ok := file.GetSection(".symtab")
	expect.True(t, ok)

	symtab := section.(*SymbolTableSection)
	entry, err := symtab.Symbols[1].WithField("value", 0x200)
	expect.Nil(t, err)

	patched, err := file.PatchSymbol(1, 1, entry)
	expect.Nil(t, err)

	start := symtab.Offset() + uint64(Elf32SymbolEntrySize)
	expectDiffersOnlyWithin(
		t,
		file.Image,
		patched,
		start,
		start+uint64(Elf32SymbolEntrySize))

	reparsed, err := ParseBytes(patched)
	expect.Nil(t, err)

	section, ok = reparsed.GetSection(".symtab")
	expect.True(t, ok)

	main := section.(*SymbolTableSection).Symbols[1]
	expect.Equal(t, "main", main.Name)
	expect.Equal(t, 0x200, main.Value())

	_, err = file.PatchSymbol(2, 1, entry)
	expect.Error(t, err, "is not a symbol table")

	_, err = file.PatchSymbol(1, 2, entry)
	expect.Error(t, err, "symbol index out of range")
}

func (PatchSuite) TestPatchClassMismatchPanics(t *testing.T) {
	image := newExecutable64(&ProgramHeader64{
		ProgramType:   ProgramLoadable,
		FileImageSize: executable64Size,
		Alignment:     0x1000,
	})

	file, err := ParseBytes(image)
	expect.Nil(t, err)

	defer func() {
		expect.NotNil(t, recover())
	}()

	_, _ = file.PatchProgramHeader(
		0,
		RawProgramHeader{Phdr32: &ProgramHeader32{}})
}
