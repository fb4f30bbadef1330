package elf

import (
	"encoding/binary"
	"fmt"
)

// decodeTable decodes count fixed-size entries starting at baseOffset,
// entry i at baseOffset + i*entrySize.  It fails fast on the first entry
// that fails to decode; a corrupt stride or base offset likely invalidates
// every subsequent offset too, so no partial table is ever returned.  The
// resulting slice order is the on-disk index order, which is semantically
// significant (it is the index referenced elsewhere in the format).
func decodeTable[Entry any](
	content []byte,
	class Class,
	order binary.ByteOrder,
	baseOffset uint64,
	entrySize int,
	count int,
	decodeEntry func([]byte, Class, binary.ByteOrder, uint64) (Entry, error),
) ([]Entry, error) {
	entries := make([]Entry, 0, count)
	for idx := 0; idx < count; idx++ {
		offset := baseOffset + uint64(idx)*uint64(entrySize)
		if offset < baseOffset {
			return nil, fmt.Errorf(
				"%w: entry %d offset overflows (base=0x%x entry size=0x%x)",
				ErrOutOfBounds,
				idx,
				baseOffset,
				entrySize)
		}

		entry, err := decodeEntry(content, class, order, offset)
		if err != nil {
			return nil, fmt.Errorf(
				"failed to decode entry %d at 0x%x: %w",
				idx,
				offset,
				err)
		}

		entries = append(entries, entry)
	}

	return entries, nil
}

// DecodeProgramHeaderTable decodes the program header table described by
// the header locator fields.  The declared entry size must match the fixed
// size for the class.
func DecodeProgramHeaderTable(
	content []byte,
	class Class,
	order binary.ByteOrder,
	baseOffset uint64,
	entrySize int,
	count int,
) (
	[]RawProgramHeader,
	error,
) {
	if entrySize != ProgramHeaderEntrySize(class) {
		return nil, fmt.Errorf(
			"%w: unexpected %s program header entry size: 0x%x",
			ErrUnknownFormat,
			class,
			entrySize)
	}

	return decodeTable(
		content,
		class,
		order,
		baseOffset,
		entrySize,
		count,
		DecodeProgramHeader)
}

// DecodeSectionHeaderTable decodes the section header table described by
// the header locator fields.  The declared entry size must match the fixed
// size for the class.
func DecodeSectionHeaderTable(
	content []byte,
	class Class,
	order binary.ByteOrder,
	baseOffset uint64,
	entrySize int,
	count int,
) (
	[]RawSectionHeader,
	error,
) {
	if entrySize != SectionHeaderEntrySize(class) {
		return nil, fmt.Errorf(
			"%w: unexpected %s section header entry size: 0x%x",
			ErrUnknownFormat,
			class,
			entrySize)
	}

	return decodeTable(
		content,
		class,
		order,
		baseOffset,
		entrySize,
		count,
		DecodeSectionHeader)
}

// DecodeSymbolTable decodes a symbol table section's contents by
// entry-size-driven iteration.  The content length must be an exact
// multiple of the fixed symbol entry size for the class.
func DecodeSymbolTable(
	content []byte,
	class Class,
	order binary.ByteOrder,
) (
	[]RawSymbol,
	error,
) {
	entrySize := SymbolEntrySize(class)
	if len(content)%entrySize != 0 {
		return nil, fmt.Errorf("invalid symbol table size (%d)", len(content))
	}

	return decodeTable(
		content,
		class,
		order,
		0,
		entrySize,
		len(content)/entrySize,
		DecodeSymbol)
}
