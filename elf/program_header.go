package elf

import (
	"encoding/binary"
	"fmt"
	"math"
)

// p_type
type ProgramType uint32

// see debug/elf for a more complete list
const (
	ProgramNull            = ProgramType(0)          // PT_NULL
	ProgramLoadable        = ProgramType(1)          // PT_LOAD
	ProgramDynamicLinking  = ProgramType(2)          // PT_DYNAMIC
	ProgramInterpreterPath = ProgramType(3)          // PT_INTERP
	ProgramNote            = ProgramType(4)          // PT_NOTE
	ProgramHeaderInfo      = ProgramType(6)          // PT_PHDR
	ProgramTLS             = ProgramType(7)          // PT_TLS
	ProgramGNUEhFrame      = ProgramType(0x6474e550) // PT_GNU_EH_FRAME
	ProgramGNUStack        = ProgramType(0x6474e551) // PT_GNU_STACK
	ProgramGNURelro        = ProgramType(0x6474e552) // PT_GNU_RELRO
)

func (segType ProgramType) String() string {
	switch segType {
	case ProgramNull:
		return "ProgramNull"
	case ProgramLoadable:
		return "Loadable"
	case ProgramDynamicLinking:
		return "DynamicLinking"
	case ProgramInterpreterPath:
		return "InterpreterPath"
	case ProgramNote:
		return "Note"
	case ProgramHeaderInfo:
		return "HeaderInfo"
	case ProgramTLS:
		return "TLS"
	case ProgramGNUEhFrame:
		return "GNUEhFrame"
	case ProgramGNUStack:
		return "GNUStack"
	case ProgramGNURelro:
		return "GNURelro"
	default:
		return fmt.Sprintf("ProgramUnknown(%d)", segType)
	}
}

// p_flags
type ProgramFlags uint32

const (
	ProgramFlagExecutableBit = ProgramFlags(0x1)
	ProgramFlagWritableBit   = ProgramFlags(0x2)
	ProgramFlagReadableBit   = ProgramFlags(0x4)
)

func (bits ProgramFlags) String() string {
	if bits > 7 {
		return fmt.Sprintf("%#x", uint32(bits))
	}

	rwx := []byte{'-', '-', '-'}
	if bits&ProgramFlagReadableBit != 0 {
		rwx[0] = 'r'
	}

	if bits&ProgramFlagWritableBit != 0 {
		rwx[1] = 'w'
	}

	if bits&ProgramFlagExecutableBit != 0 {
		rwx[2] = 'x'
	}

	return string(rwx)
}

// Elf32_Phdr.  Used only for (de-)serialization.  Field order differs from
// Elf64_Phdr; p_flags moved when the 64-bit layout was defined.
type ProgramHeader32 struct {
	ProgramType            // p_type
	ContentOffset   uint32 // p_offset
	VirtualAddress  uint32 // p_vaddr
	PhysicalAddress uint32 // p_paddr
	FileImageSize   uint32 // p_filesz
	MemoryImageSize uint32 // p_memsz
	ProgramFlags           // p_flags
	Alignment       uint32 // p_align
}

// Elf64_Phdr.  Used only for (de-)serialization.
type ProgramHeader64 struct {
	ProgramType            // p_type
	ProgramFlags           // p_flags
	ContentOffset   uint64 // p_offset
	VirtualAddress  uint64 // p_vaddr
	PhysicalAddress uint64 // p_paddr
	FileImageSize   uint64 // p_filesz
	MemoryImageSize uint64 // p_memsz
	Alignment       uint64 // p_align
}

// RawProgramHeader is the width-polymorphic view of one program header
// table entry (segment descriptor).  Exactly one variant is populated.
type RawProgramHeader struct {
	Phdr32 *ProgramHeader32
	Phdr64 *ProgramHeader64
}

func (header RawProgramHeader) Class() Class {
	if header.Phdr64 != nil {
		return Class64
	}
	return Class32
}

func (header RawProgramHeader) Type() ProgramType {
	if header.Phdr64 != nil {
		return header.Phdr64.ProgramType
	}
	return header.Phdr32.ProgramType
}

func (header RawProgramHeader) Flags() ProgramFlags {
	if header.Phdr64 != nil {
		return header.Phdr64.ProgramFlags
	}
	return header.Phdr32.ProgramFlags
}

func (header RawProgramHeader) ContentOffset() uint64 {
	if header.Phdr64 != nil {
		return header.Phdr64.ContentOffset
	}
	return uint64(header.Phdr32.ContentOffset)
}

func (header RawProgramHeader) VirtualAddress() uint64 {
	if header.Phdr64 != nil {
		return header.Phdr64.VirtualAddress
	}
	return uint64(header.Phdr32.VirtualAddress)
}

func (header RawProgramHeader) PhysicalAddress() uint64 {
	if header.Phdr64 != nil {
		return header.Phdr64.PhysicalAddress
	}
	return uint64(header.Phdr32.PhysicalAddress)
}

func (header RawProgramHeader) FileImageSize() uint64 {
	if header.Phdr64 != nil {
		return header.Phdr64.FileImageSize
	}
	return uint64(header.Phdr32.FileImageSize)
}

func (header RawProgramHeader) MemoryImageSize() uint64 {
	if header.Phdr64 != nil {
		return header.Phdr64.MemoryImageSize
	}
	return uint64(header.Phdr32.MemoryImageSize)
}

func (header RawProgramHeader) Alignment() uint64 {
	if header.Phdr64 != nil {
		return header.Phdr64.Alignment
	}
	return uint64(header.Phdr32.Alignment)
}

// Encode reproduces the entry's exact on-disk byte sequence for its class.
// Decoding the result with the same class and order yields an identical
// entry.
func (header RawProgramHeader) Encode(order binary.ByteOrder) []byte {
	var content []byte
	var err error
	if header.Phdr64 != nil {
		content, err = binary.Append(nil, order, header.Phdr64)
	} else {
		content, err = binary.Append(nil, order, header.Phdr32)
	}
	if err != nil {
		panic("should never happen")
	}
	return content
}

// WithField returns a copy of the entry with the named field replaced.
// Recognized fields: type, flags, offset, vaddr, paddr, filesz, memsz,
// align.
func (header RawProgramHeader) WithField(
	field string,
	value uint64,
) (
	RawProgramHeader,
	error,
) {
	if header.Phdr64 != nil {
		entry := *header.Phdr64
		switch field {
		case "type":
			if err := mustFitUint32(field, value); err != nil {
				return RawProgramHeader{}, err
			}
			entry.ProgramType = ProgramType(value)
		case "flags":
			if err := mustFitUint32(field, value); err != nil {
				return RawProgramHeader{}, err
			}
			entry.ProgramFlags = ProgramFlags(value)
		case "offset":
			entry.ContentOffset = value
		case "vaddr":
			entry.VirtualAddress = value
		case "paddr":
			entry.PhysicalAddress = value
		case "filesz":
			entry.FileImageSize = value
		case "memsz":
			entry.MemoryImageSize = value
		case "align":
			entry.Alignment = value
		default:
			return RawProgramHeader{}, fmt.Errorf(
				"unknown program header field: %s",
				field)
		}
		return RawProgramHeader{Phdr64: &entry}, nil
	}

	if err := mustFitUint32(field, value); err != nil {
		return RawProgramHeader{}, err
	}

	entry := *header.Phdr32
	switch field {
	case "type":
		entry.ProgramType = ProgramType(value)
	case "flags":
		entry.ProgramFlags = ProgramFlags(value)
	case "offset":
		entry.ContentOffset = uint32(value)
	case "vaddr":
		entry.VirtualAddress = uint32(value)
	case "paddr":
		entry.PhysicalAddress = uint32(value)
	case "filesz":
		entry.FileImageSize = uint32(value)
	case "memsz":
		entry.MemoryImageSize = uint32(value)
	case "align":
		entry.Alignment = uint32(value)
	default:
		return RawProgramHeader{}, fmt.Errorf(
			"unknown program header field: %s",
			field)
	}
	return RawProgramHeader{Phdr32: &entry}, nil
}

func mustFitUint32(field string, value uint64) error {
	if value > math.MaxUint32 {
		return fmt.Errorf(
			"value 0x%x does not fit in 32-bit field %s",
			value,
			field)
	}
	return nil
}

// Segments are mapped in whole-page chunks; a loadable segment's virtual
// address and file offset must agree modulo the page size.
const loadablePageSize = 0x1000

// AlignmentViolation describes one failed segment congruence rule, with
// enough hexadecimal context to locate the relevant bytes.
type AlignmentViolation struct {
	Rule           string
	ContentOffset  uint64
	VirtualAddress uint64
	Alignment      uint64
}

func (violation AlignmentViolation) Error() string {
	return fmt.Sprintf(
		"%s: offset=0x%x vaddr=0x%x align=0x%x",
		violation.Rule,
		violation.ContentOffset,
		violation.VirtualAddress,
		violation.Alignment)
}

// CheckAlignment applies the segment congruence rules.  Both rules always
// run; a single entry can report two violations.  Advisory only: violations
// never block decoding or encoding.
func (header RawProgramHeader) CheckAlignment() []AlignmentViolation {
	violations := []AlignmentViolation{}

	offset := header.ContentOffset()
	vaddr := header.VirtualAddress()
	align := header.Alignment()

	if header.Type() == ProgramLoadable &&
		vaddr%loadablePageSize != offset%loadablePageSize {

		violations = append(
			violations,
			AlignmentViolation{
				Rule:           "loadable segment vaddr/offset not page congruent",
				ContentOffset:  offset,
				VirtualAddress: vaddr,
				Alignment:      align,
			})
	}

	if align >= 2 && vaddr%align != offset%align {
		violations = append(
			violations,
			AlignmentViolation{
				Rule:           "segment vaddr/offset not congruent modulo alignment",
				ContentOffset:  offset,
				VirtualAddress: vaddr,
				Alignment:      align,
			})
	}

	return violations
}

// ProgramHeaderEntrySize returns the fixed program header entry size for
// the class.
func ProgramHeaderEntrySize(class Class) int {
	if class == Class64 {
		return Elf64ProgramHeaderEntrySize
	}
	return Elf32ProgramHeaderEntrySize
}

// DecodeProgramHeader decodes the fixed-size program header entry at the
// given offset.
func DecodeProgramHeader(
	content []byte,
	class Class,
	order binary.ByteOrder,
	offset uint64,
) (
	RawProgramHeader,
	error,
) {
	cursor := NewCursor(order, content)
	err := cursor.SeekTo(offset)
	if err != nil {
		return RawProgramHeader{}, err
	}

	switch class {
	case Class32:
		entry := &ProgramHeader32{}
		err := cursor.decode(entry, "program header")
		if err != nil {
			return RawProgramHeader{}, err
		}
		return RawProgramHeader{Phdr32: entry}, nil
	case Class64:
		entry := &ProgramHeader64{}
		err := cursor.decode(entry, "program header")
		if err != nil {
			return RawProgramHeader{}, err
		}
		return RawProgramHeader{Phdr64: entry}, nil
	default:
		return RawProgramHeader{}, fmt.Errorf(
			"%w: unsupported elf class: %s",
			ErrUnknownFormat,
			class)
	}
}
