// Based on linux's man page, elf.h, golang's debug/elf package,
// and the elf 1.2 spec.
package elf

import (
	"bytes"
	"encoding/binary"
	"fmt"
)

var (
	// EI_MAG0 - EI_MAG3
	IdentifierMagic = []byte{
		0x7f, // ELFMAG0
		'E',  // ELFMAG1
		'L',  // ELFMAG2
		'F',  // ELFMAG3
	}

	// Identification bytes don't match a recognized width/endianness/version
	// marker.  Nothing further can be decoded.
	ErrUnknownFormat = fmt.Errorf("unknown format")
)

const (
	IdentifierVersion = 1 // EI_CURRENT
	FormatVersion     = 1 // EV_CURRENT

	ElfIdentifierSize = 16

	Elf32HeaderSize             = 52
	Elf32ProgramHeaderEntrySize = 0x20
	Elf32SectionHeaderEntrySize = 40
	Elf32SymbolEntrySize        = 16

	Elf64HeaderSize             = 64
	Elf64ProgramHeaderEntrySize = 0x38
	Elf64SectionHeaderEntrySize = 64
	Elf64SymbolEntrySize        = 24
)

// EI_CLASS
type Class byte

const (
	ClassNone = Class(0) // ELFCLASSNONE
	Class32   = Class(1) // ELFCLASS32
	Class64   = Class(2) // ELFCLASS64
)

func (class Class) String() string {
	switch class {
	case ClassNone:
		return "ClassNone"
	case Class32:
		return "Class32"
	case Class64:
		return "Class64"
	default:
		return fmt.Sprintf("ClassUnknown(%d)", class)
	}
}

// EI_DATA
type DataEncoding byte

const (
	DataEncodingNone                       = DataEncoding(0) // ELFDATANONE
	DataEncodingTwosComplementLittleEndian = DataEncoding(1) // ELFDATA2LSB
	DataEncodingTwosComplementBigEndian    = DataEncoding(2) // ELFDATA2MSB
)

func (encoding DataEncoding) String() string {
	switch encoding {
	case DataEncodingNone:
		return "DataEncodingNone"
	case DataEncodingTwosComplementLittleEndian:
		return "TwosComplementLittleEndian"
	case DataEncodingTwosComplementBigEndian:
		return "TwosComplementBigEndian"
	default:
		return fmt.Sprintf("DataEncodingUnknown(%d)", encoding)
	}
}

// EI_OSABI
// NOTE: golang's debug/elf.OSABI defines a more complete list
type OperatingSystemABI byte

const (
	OperatingSystemABIUnixSystemV = OperatingSystemABI(0) // ELFOSABI_NONE
	OperatingSystemABILinux       = OperatingSystemABI(3) // ELFOSABI_LINUX
)

func (osAbi OperatingSystemABI) String() string {
	switch osAbi {
	case OperatingSystemABIUnixSystemV:
		return "UnixSystemV"
	case OperatingSystemABILinux:
		return "Linux"
	default:
		return fmt.Sprintf("OperatingSystemABIUnknown(%d)", osAbi)
	}
}

// e_type
type FileType uint16

const (
	FileTypeNone         = FileType(0) // ET_NONE
	FileTypeRelocatable  = FileType(1) // ET_REL
	FileTypeExecutable   = FileType(2) // ET_EXEC
	FileTypeSharedObject = FileType(3) // ET_DYN
	FileTypeCore         = FileType(4) // ET_CORE
)

func (ft FileType) String() string {
	switch ft {
	case FileTypeNone:
		return "FileTypeNone"
	case FileTypeRelocatable:
		return "Relocatable"
	case FileTypeExecutable:
		return "Executable"
	case FileTypeSharedObject:
		return "SharedObject"
	case FileTypeCore:
		return "Core"
	default:
		return fmt.Sprintf("FileTypeUnknown(%d)", ft)
	}
}

// e_machine
// NOTE: golang's debug/elf.Machine defines a more complete list of machine
// types.
type MachineArchitecture uint16

const (
	MachineArchitectureNone      = MachineArchitecture(0)   // EM_NONE
	MachineArchitectureX86       = MachineArchitecture(3)   // EM_386
	MachineArchitectureMIPS      = MachineArchitecture(8)   // EM_MIPS
	MachineArchitecturePowerPC   = MachineArchitecture(20)  // EM_PPC
	MachineArchitecturePowerPC64 = MachineArchitecture(21)  // EM_PPC64
	MachineArchitectureARM       = MachineArchitecture(40)  // EM_ARM
	MachineArchitectureX86_64    = MachineArchitecture(62)  // EM_X86_64
	MachineArchitectureAArch64   = MachineArchitecture(183) // EM_AARCH64
	MachineArchitectureRISCV     = MachineArchitecture(243) // EM_RISCV
)

func (arch MachineArchitecture) String() string {
	switch arch {
	case MachineArchitectureNone:
		return "MachineArchitectureNone"
	case MachineArchitectureX86:
		return "x86"
	case MachineArchitectureMIPS:
		return "MIPS"
	case MachineArchitecturePowerPC:
		return "PowerPC"
	case MachineArchitecturePowerPC64:
		return "PowerPC64"
	case MachineArchitectureARM:
		return "ARM"
	case MachineArchitectureX86_64:
		return "x86-64"
	case MachineArchitectureAArch64:
		return "AArch64"
	case MachineArchitectureRISCV:
		return "RISC-V"
	default:
		return fmt.Sprintf("MachineArchitectureUnknown(%d)", arch)
	}
}

type SectionIndex uint16

const (
	SectionIndexUndefined = SectionIndex(0)
	SectionIndexAbsolute  = SectionIndex(0xfff1)

	SectionStringTableName = ".shstrtab"
	StringTableName        = ".strtab"
)

// Header structs matching c's elf32/elf64 header definitions.  These are
// only used for (de-)serialization.

// e_ident
type Identifier struct {
	Magic              [4]byte // EI_MAG0 ... EI_MAG3
	Class                      // EI_CLASS
	DataEncoding               // EI_DATA
	IdentifierVersion  byte    // EI_VERSION
	OperatingSystemABI         // EI_OSABI
	ABIVersion         byte    // EI_ABIVERSION
	Padding            [7]byte // EI_PAD
}

// ByteOrder maps the identifier's data encoding marker to the byte order
// used by every multi-byte field in the rest of the file.
func (id Identifier) ByteOrder() (binary.ByteOrder, error) {
	switch id.DataEncoding {
	case DataEncodingTwosComplementLittleEndian:
		return binary.LittleEndian, nil
	case DataEncodingTwosComplementBigEndian:
		return binary.BigEndian, nil
	default:
		return nil, fmt.Errorf(
			"%w: unsupported data encoding: %s",
			ErrUnknownFormat,
			id.DataEncoding)
	}
}

// Elf32_Ehdr
type Header32 struct {
	Identifier                           // e_ident[EI_NIDENT]
	FileType                             // e_type
	MachineArchitecture                  // e_machine
	FormatVersion           uint32       // e_version
	EntryPointAddress       uint32       // e_entry
	ProgramHeaderOffset     uint32       // e_phoff
	SectionHeaderOffset     uint32       // e_shoff
	ArchitectureFlags       uint32       // e_flags
	ElfHeaderSize           uint16       // e_ehsize
	ProgramHeaderEntrySize  uint16       // e_phentsize
	NumProgramHeaderEntries uint16       // e_phnum
	SectionHeaderEntrySize  uint16       // e_shentsize
	NumSectionHeaderEntries uint16       // e_shnum
	SectionStringTableIndex SectionIndex // e_shstrndx
}

// Elf64_Ehdr
type Header64 struct {
	Identifier                           // e_ident[EI_NIDENT]
	FileType                             // e_type
	MachineArchitecture                  // e_machine
	FormatVersion           uint32       // e_version
	EntryPointAddress       uint64       // e_entry
	ProgramHeaderOffset     uint64       // e_phoff
	SectionHeaderOffset     uint64       // e_shoff
	ArchitectureFlags       uint32       // e_flags
	ElfHeaderSize           uint16       // e_ehsize
	ProgramHeaderEntrySize  uint16       // e_phentsize
	NumProgramHeaderEntries uint16       // e_phnum
	SectionHeaderEntrySize  uint16       // e_shentsize
	NumSectionHeaderEntries uint16       // e_shnum
	SectionStringTableIndex SectionIndex // e_shstrndx
}

// RawHeader is the width-polymorphic view of the file header.  Exactly one
// of the two variants is populated; accessors expose every logical field
// normalized to the widest representation so callers never branch on class
// after decode.
type RawHeader struct {
	Ehdr32 *Header32
	Ehdr64 *Header64
}

func (header RawHeader) Class() Class {
	if header.Ehdr64 != nil {
		return Class64
	}
	return Class32
}

func (header RawHeader) Identifier() Identifier {
	if header.Ehdr64 != nil {
		return header.Ehdr64.Identifier
	}
	return header.Ehdr32.Identifier
}

func (header RawHeader) FileType() FileType {
	if header.Ehdr64 != nil {
		return header.Ehdr64.FileType
	}
	return header.Ehdr32.FileType
}

func (header RawHeader) Machine() MachineArchitecture {
	if header.Ehdr64 != nil {
		return header.Ehdr64.MachineArchitecture
	}
	return header.Ehdr32.MachineArchitecture
}

func (header RawHeader) EntryPointAddress() uint64 {
	if header.Ehdr64 != nil {
		return header.Ehdr64.EntryPointAddress
	}
	return uint64(header.Ehdr32.EntryPointAddress)
}

func (header RawHeader) ProgramHeaderOffset() uint64 {
	if header.Ehdr64 != nil {
		return header.Ehdr64.ProgramHeaderOffset
	}
	return uint64(header.Ehdr32.ProgramHeaderOffset)
}

func (header RawHeader) SectionHeaderOffset() uint64 {
	if header.Ehdr64 != nil {
		return header.Ehdr64.SectionHeaderOffset
	}
	return uint64(header.Ehdr32.SectionHeaderOffset)
}

func (header RawHeader) ArchitectureFlags() uint32 {
	if header.Ehdr64 != nil {
		return header.Ehdr64.ArchitectureFlags
	}
	return header.Ehdr32.ArchitectureFlags
}

func (header RawHeader) ElfHeaderSize() int {
	if header.Ehdr64 != nil {
		return int(header.Ehdr64.ElfHeaderSize)
	}
	return int(header.Ehdr32.ElfHeaderSize)
}

func (header RawHeader) ProgramHeaderEntrySize() int {
	if header.Ehdr64 != nil {
		return int(header.Ehdr64.ProgramHeaderEntrySize)
	}
	return int(header.Ehdr32.ProgramHeaderEntrySize)
}

func (header RawHeader) NumProgramHeaderEntries() int {
	if header.Ehdr64 != nil {
		return int(header.Ehdr64.NumProgramHeaderEntries)
	}
	return int(header.Ehdr32.NumProgramHeaderEntries)
}

func (header RawHeader) SectionHeaderEntrySize() int {
	if header.Ehdr64 != nil {
		return int(header.Ehdr64.SectionHeaderEntrySize)
	}
	return int(header.Ehdr32.SectionHeaderEntrySize)
}

func (header RawHeader) NumSectionHeaderEntries() int {
	if header.Ehdr64 != nil {
		return int(header.Ehdr64.NumSectionHeaderEntries)
	}
	return int(header.Ehdr32.NumSectionHeaderEntries)
}

func (header RawHeader) SectionStringTableIndex() SectionIndex {
	if header.Ehdr64 != nil {
		return header.Ehdr64.SectionStringTableIndex
	}
	return header.Ehdr32.SectionStringTableIndex
}

// Encode reproduces the header's exact on-disk byte sequence for its class.
func (header RawHeader) Encode(order binary.ByteOrder) []byte {
	var content []byte
	var err error
	if header.Ehdr64 != nil {
		content, err = binary.Append(nil, order, header.Ehdr64)
	} else {
		content, err = binary.Append(nil, order, header.Ehdr32)
	}
	if err != nil {
		panic("should never happen")
	}
	return content
}

// HeaderSize returns the fixed file header size for the class.
func HeaderSize(class Class) int {
	if class == Class64 {
		return Elf64HeaderSize
	}
	return Elf32HeaderSize
}

// DecodeIdentifier decodes and validates the 16 identification bytes.
// NOTE: the identifier (e_ident) has no endian-ness.  It must be decoded
// first to determine the endian-ness of everything else, the rest of the
// file header included.
func DecodeIdentifier(content []byte) (Identifier, error) {
	id := Identifier{}

	if len(content) < ElfIdentifierSize {
		return id, fmt.Errorf(
			"%w: %d byte buffer is too short for an elf identifier",
			ErrOutOfBounds,
			len(content))
	}

	n, err := binary.Decode(content, binary.NativeEndian, &id)
	if err != nil {
		return id, fmt.Errorf("failed to parse identifier: %w", err)
	}

	if n != ElfIdentifierSize {
		panic("should never happen")
	}

	if !bytes.Equal(id.Magic[:], IdentifierMagic) {
		return id, fmt.Errorf("%w: invalid elf magic number", ErrUnknownFormat)
	}

	switch id.Class {
	case Class32, Class64:
	default:
		return id, fmt.Errorf(
			"%w: unsupported elf class: %s",
			ErrUnknownFormat,
			id.Class)
	}

	if _, err := id.ByteOrder(); err != nil {
		return id, err
	}

	if id.IdentifierVersion != IdentifierVersion {
		return id, fmt.Errorf(
			"%w: unsupported identifier version: %d",
			ErrUnknownFormat,
			id.IdentifierVersion)
	}

	return id, nil
}

// DecodeHeader decodes the fixed-size file header, dispatching on the
// identifier's class and data encoding.  The returned locator fields
// (table offsets / entry sizes / entry counts) are exposed as-is; table
// construction validates bounds per entry.
func DecodeHeader(content []byte) (RawHeader, error) {
	id, err := DecodeIdentifier(content)
	if err != nil {
		return RawHeader{}, err
	}

	order, err := id.ByteOrder()
	if err != nil {
		return RawHeader{}, err
	}

	cursor := NewCursor(order, content)
	switch id.Class {
	case Class32:
		header := &Header32{}
		err := cursor.decode(header, "elf header")
		if err != nil {
			return RawHeader{}, err
		}
		return RawHeader{Ehdr32: header}, nil
	case Class64:
		header := &Header64{}
		err := cursor.decode(header, "elf header")
		if err != nil {
			return RawHeader{}, err
		}
		return RawHeader{Ehdr64: header}, nil
	default:
		panic("should never happen")
	}
}
