package elf

import (
	"encoding/binary"
	"fmt"
)

// sh_type
type SectionType uint32

const (
	SectionTypeNull                  = SectionType(0)  // SHT_NULL
	SectionTypeProgramDefinedInfo    = SectionType(1)  // SHT_PROGBITS
	SectionTypeSymbolTable           = SectionType(2)  // SHT_SYMTAB
	SectionTypeStringTable           = SectionType(3)  // SHT_STRTAB
	SectionTypeRelocationWithAddends = SectionType(4)  // SHT_RELA
	SectionTypeSymbolHashTable       = SectionType(5)  // SHT_HASH
	SectionTypeDynamic               = SectionType(6)  // SHT_DYNAMIC
	SectionTypeNote                  = SectionType(7)  // SHT_NOTE
	SectionTypeNoSpace               = SectionType(8)  // SHT_NOBITS
	SectionTypeRelocationNoAddends   = SectionType(9)  // SHT_REL
	SectionTypeDynamicSymbolTable    = SectionType(11) // SHT_DYNSYM
	SectionTypeInitArray             = SectionType(14) // SHT_INIT_ARRAY
	SectionTypeFiniArray             = SectionType(15) // SHT_FINI_ARRAY
)

func (stype SectionType) String() string {
	switch stype {
	case SectionTypeNull:
		return "SectionTypeNull"
	case SectionTypeProgramDefinedInfo:
		return "ProgramDefinedInfo"
	case SectionTypeSymbolTable:
		return "SymbolTable"
	case SectionTypeStringTable:
		return "StringTable"
	case SectionTypeRelocationWithAddends:
		return "RelocationWithAddends"
	case SectionTypeSymbolHashTable:
		return "SymbolHashTable"
	case SectionTypeDynamic:
		return "Dynamic"
	case SectionTypeNote:
		return "Note"
	case SectionTypeNoSpace:
		return "NoSpace"
	case SectionTypeRelocationNoAddends:
		return "RelocationNoAddends"
	case SectionTypeDynamicSymbolTable:
		return "DynamicSymbolTable"
	case SectionTypeInitArray:
		return "InitArray"
	case SectionTypeFiniArray:
		return "FiniArray"
	default:
		return fmt.Sprintf("SectionTypeUnknown(%d)", stype)
	}
}

// sh_flags
type SectionFlags uint64

const (
	SectionContainsWritableData         = SectionFlags(0x1)   // SHF_WRITE
	SectionOccupiesMemory               = SectionFlags(0x2)   // SHF_ALLOC
	SectionContainsInstructions         = SectionFlags(0x4)   // SHF_EXECINSTR
	SectionMayBeMerged                  = SectionFlags(0x10)  // SHF_MERGE
	SectionContainsStrings              = SectionFlags(0x20)  // SHF_STRINGS
	SectionInfoHoldsSectionIndex        = SectionFlags(0x40)  // SHF_INFO_LINK
	SectionRequiresSpecialOrdering      = SectionFlags(0x80)  // SHF_LINK_ORDER
	SectionRequiresOsSpecificProcessing = SectionFlags(0x100) // SHF_OS_NONCONFORMING
	SectionIsGroupMember                = SectionFlags(0x200) // SHF_GROUP
	SectionContainsTLSData              = SectionFlags(0x400) // SHF_TLS
	SectionIsCompressed                 = SectionFlags(0x800) // SHF_COMPRESSED
)

func (flags SectionFlags) String() string {
	result := make([]byte, 11)
	for i := 0; i < 11; i++ {
		result[i] = '-'
	}

	if flags&SectionContainsWritableData != 0 {
		result[0] = 'w'
	}
	if flags&SectionOccupiesMemory != 0 {
		result[1] = 'a'
	}
	if flags&SectionContainsInstructions != 0 {
		result[2] = 'x'
	}
	if flags&SectionMayBeMerged != 0 {
		result[3] = 'm'
	}
	if flags&SectionContainsStrings != 0 {
		result[4] = 's'
	}
	if flags&SectionInfoHoldsSectionIndex != 0 {
		result[5] = 'i'
	}
	if flags&SectionRequiresSpecialOrdering != 0 {
		result[6] = 'l'
	}
	if flags&SectionRequiresOsSpecificProcessing != 0 {
		result[7] = 'o'
	}
	if flags&SectionIsGroupMember != 0 {
		result[8] = 'g'
	}
	if flags&SectionContainsTLSData != 0 {
		result[9] = 't'
	}
	if flags&SectionIsCompressed != 0 {
		result[10] = 'c'
	}

	return string(result)
}

// Elf32_Shdr.  Used only for (de-)serialization.
type SectionHeader32 struct {
	NameIndex        uint32 // sh_name
	SectionType             // sh_type
	Flags            uint32 // sh_flags
	Address          uint32 // sh_addr
	Offset           uint32 // sh_offset
	Size             uint32 // sh_size
	Link             uint32 // sh_link
	Info             uint32 // sh_info
	AddressAlignment uint32 // sh_addralign
	EntrySize        uint32 // sh_entsize
}

// Elf64_Shdr.  Used only for (de-)serialization.
type SectionHeader64 struct {
	NameIndex        uint32 // sh_name
	SectionType             // sh_type
	SectionFlags            // sh_flags
	Address          uint64 // sh_addr
	Offset           uint64 // sh_offset
	Size             uint64 // sh_size
	Link             uint32 // sh_link
	Info             uint32 // sh_info
	AddressAlignment uint64 // sh_addralign
	EntrySize        uint64 // sh_entsize
}

// RawSectionHeader is the width-polymorphic view of one section header
// table entry.  Exactly one variant is populated.
type RawSectionHeader struct {
	Shdr32 *SectionHeader32
	Shdr64 *SectionHeader64
}

func (header RawSectionHeader) Class() Class {
	if header.Shdr64 != nil {
		return Class64
	}
	return Class32
}

func (header RawSectionHeader) NameIndex() uint32 {
	if header.Shdr64 != nil {
		return header.Shdr64.NameIndex
	}
	return header.Shdr32.NameIndex
}

func (header RawSectionHeader) Type() SectionType {
	if header.Shdr64 != nil {
		return header.Shdr64.SectionType
	}
	return header.Shdr32.SectionType
}

func (header RawSectionHeader) Flags() SectionFlags {
	if header.Shdr64 != nil {
		return header.Shdr64.SectionFlags
	}
	return SectionFlags(header.Shdr32.Flags)
}

func (header RawSectionHeader) Address() uint64 {
	if header.Shdr64 != nil {
		return header.Shdr64.Address
	}
	return uint64(header.Shdr32.Address)
}

func (header RawSectionHeader) Offset() uint64 {
	if header.Shdr64 != nil {
		return header.Shdr64.Offset
	}
	return uint64(header.Shdr32.Offset)
}

func (header RawSectionHeader) Size() uint64 {
	if header.Shdr64 != nil {
		return header.Shdr64.Size
	}
	return uint64(header.Shdr32.Size)
}

func (header RawSectionHeader) Link() uint32 {
	if header.Shdr64 != nil {
		return header.Shdr64.Link
	}
	return header.Shdr32.Link
}

func (header RawSectionHeader) Info() uint32 {
	if header.Shdr64 != nil {
		return header.Shdr64.Info
	}
	return header.Shdr32.Info
}

func (header RawSectionHeader) AddressAlignment() uint64 {
	if header.Shdr64 != nil {
		return header.Shdr64.AddressAlignment
	}
	return uint64(header.Shdr32.AddressAlignment)
}

func (header RawSectionHeader) EntrySize() uint64 {
	if header.Shdr64 != nil {
		return header.Shdr64.EntrySize
	}
	return uint64(header.Shdr32.EntrySize)
}

// Encode reproduces the entry's exact on-disk byte sequence for its class.
func (header RawSectionHeader) Encode(order binary.ByteOrder) []byte {
	var content []byte
	var err error
	if header.Shdr64 != nil {
		content, err = binary.Append(nil, order, header.Shdr64)
	} else {
		content, err = binary.Append(nil, order, header.Shdr32)
	}
	if err != nil {
		panic("should never happen")
	}
	return content
}

// WithField returns a copy of the entry with the named field replaced.
// Recognized fields: name, type, flags, addr, offset, size, link, info,
// addralign, entsize.
func (header RawSectionHeader) WithField(
	field string,
	value uint64,
) (
	RawSectionHeader,
	error,
) {
	if header.Shdr64 != nil {
		entry := *header.Shdr64
		switch field {
		case "name", "type", "link", "info":
			if err := mustFitUint32(field, value); err != nil {
				return RawSectionHeader{}, err
			}
		}
		switch field {
		case "name":
			entry.NameIndex = uint32(value)
		case "type":
			entry.SectionType = SectionType(value)
		case "flags":
			entry.SectionFlags = SectionFlags(value)
		case "addr":
			entry.Address = value
		case "offset":
			entry.Offset = value
		case "size":
			entry.Size = value
		case "link":
			entry.Link = uint32(value)
		case "info":
			entry.Info = uint32(value)
		case "addralign":
			entry.AddressAlignment = value
		case "entsize":
			entry.EntrySize = value
		default:
			return RawSectionHeader{}, fmt.Errorf(
				"unknown section header field: %s",
				field)
		}
		return RawSectionHeader{Shdr64: &entry}, nil
	}

	if err := mustFitUint32(field, value); err != nil {
		return RawSectionHeader{}, err
	}

	entry := *header.Shdr32
	switch field {
	case "name":
		entry.NameIndex = uint32(value)
	case "type":
		entry.SectionType = SectionType(value)
	case "flags":
		entry.Flags = uint32(value)
	case "addr":
		entry.Address = uint32(value)
	case "offset":
		entry.Offset = uint32(value)
	case "size":
		entry.Size = uint32(value)
	case "link":
		entry.Link = uint32(value)
	case "info":
		entry.Info = uint32(value)
	case "addralign":
		entry.AddressAlignment = uint32(value)
	case "entsize":
		entry.EntrySize = uint32(value)
	default:
		return RawSectionHeader{}, fmt.Errorf(
			"unknown section header field: %s",
			field)
	}
	return RawSectionHeader{Shdr32: &entry}, nil
}

// SectionHeaderEntrySize returns the fixed section header entry size for
// the class.
func SectionHeaderEntrySize(class Class) int {
	if class == Class64 {
		return Elf64SectionHeaderEntrySize
	}
	return Elf32SectionHeaderEntrySize
}

// DecodeSectionHeader decodes the fixed-size section header entry at the
// given offset.
func DecodeSectionHeader(
	content []byte,
	class Class,
	order binary.ByteOrder,
	offset uint64,
) (
	RawSectionHeader,
	error,
) {
	cursor := NewCursor(order, content)
	err := cursor.SeekTo(offset)
	if err != nil {
		return RawSectionHeader{}, err
	}

	switch class {
	case Class32:
		entry := &SectionHeader32{}
		err := cursor.decode(entry, "section header")
		if err != nil {
			return RawSectionHeader{}, err
		}
		return RawSectionHeader{Shdr32: entry}, nil
	case Class64:
		entry := &SectionHeader64{}
		err := cursor.decode(entry, "section header")
		if err != nil {
			return RawSectionHeader{}, err
		}
		return RawSectionHeader{Shdr64: entry}, nil
	default:
		return RawSectionHeader{}, fmt.Errorf(
			"%w: unsupported elf class: %s",
			ErrUnknownFormat,
			class)
	}
}
