package elf

import (
	"fmt"
)

// Patch operations regenerate one table entry's exact byte span and splice
// it into a copy of the file image.  The original image is never mutated.
// Entries are fixed-size, so a patch can change field values but never the
// layout: a replacement that encodes to a different length than the entry
// span, or whose class differs from the file's, is a programming error and
// panics.

func (file *File) spliced(start uint64, replacement []byte) []byte {
	image := make([]byte, len(file.Image))
	copy(image, file.Image)
	copy(image[start:], replacement)
	return image
}

func (file *File) encodeEntry(
	kind string,
	entryClass Class,
	encode func() []byte,
	span int,
) []byte {
	if entryClass != file.Class() {
		panic(fmt.Sprintf(
			"patched %s class (%s) does not match file class (%s)",
			kind,
			entryClass,
			file.Class()))
	}

	encoded := encode()
	if len(encoded) != span {
		panic(fmt.Sprintf(
			"patched %s encodes to %d bytes, expected %d",
			kind,
			len(encoded),
			span))
	}

	return encoded
}

// PatchProgramHeader returns a new image with program header table entry
// index replaced by entry.  Every byte outside the entry's span is
// identical to the original image.
func (file *File) PatchProgramHeader(
	index int,
	entry RawProgramHeader,
) (
	[]byte,
	error,
) {
	if index < 0 || index >= len(file.ProgramHeaders) {
		return nil, fmt.Errorf(
			"program header index out of range (%d of %d)",
			index,
			len(file.ProgramHeaders))
	}

	entrySize := file.ProgramHeaderEntrySize()
	encoded := file.encodeEntry(
		"program header",
		entry.Class(),
		func() []byte { return entry.Encode(file.ByteOrder) },
		entrySize)

	start := file.ProgramHeaderOffset() + uint64(index)*uint64(entrySize)
	return file.spliced(start, encoded), nil
}

// PatchSectionHeader returns a new image with section header table entry
// index replaced by entry.
func (file *File) PatchSectionHeader(
	index int,
	entry RawSectionHeader,
) (
	[]byte,
	error,
) {
	if index < 0 || index >= len(file.SectionHeaders) {
		return nil, fmt.Errorf(
			"section header index out of range (%d of %d)",
			index,
			len(file.SectionHeaders))
	}

	entrySize := file.SectionHeaderEntrySize()
	encoded := file.encodeEntry(
		"section header",
		entry.Class(),
		func() []byte { return entry.Encode(file.ByteOrder) },
		entrySize)

	start := file.SectionHeaderOffset() + uint64(index)*uint64(entrySize)
	return file.spliced(start, encoded), nil
}

// PatchSymbol returns a new image with entry symbolIndex of the symbol
// table section at sectionIndex replaced by entry.
func (file *File) PatchSymbol(
	sectionIndex int,
	symbolIndex int,
	entry RawSymbol,
) (
	[]byte,
	error,
) {
	if sectionIndex < 0 || sectionIndex >= len(file.SectionHeaders) {
		return nil, fmt.Errorf(
			"section index out of range (%d of %d)",
			sectionIndex,
			len(file.SectionHeaders))
	}

	header := file.SectionHeaders[sectionIndex]
	switch header.Type() {
	case SectionTypeSymbolTable, SectionTypeDynamicSymbolTable:
	default:
		return nil, fmt.Errorf(
			"section %d is not a symbol table (%s)",
			sectionIndex,
			header.Type())
	}

	entrySize := SymbolEntrySize(file.Class())
	if symbolIndex < 0 ||
		(uint64(symbolIndex)+1)*uint64(entrySize) > header.Size() {

		return nil, fmt.Errorf(
			"symbol index out of range (%d of %d)",
			symbolIndex,
			header.Size()/uint64(entrySize))
	}

	start := header.Offset() + uint64(symbolIndex)*uint64(entrySize)
	if start+uint64(entrySize) > uint64(len(file.Image)) {
		return nil, fmt.Errorf(
			"%w: symbol %d span [0x%x, 0x%x) is not within the file image",
			ErrOutOfBounds,
			symbolIndex,
			start,
			start+uint64(entrySize))
	}

	encoded := file.encodeEntry(
		"symbol",
		entry.Class(),
		func() []byte { return entry.Encode(file.ByteOrder) },
		entrySize)

	return file.spliced(start, encoded), nil
}
