package elf

import (
	"encoding/binary"
	"fmt"
)

// The bottom 4 bits of st_info
type SymbolType byte

func SymbolInfoToType(info byte) SymbolType {
	return SymbolType(info & 0xf)
}

const (
	SymbolTypeNone                     = SymbolType(0) // STT_NOTYPE
	SymbolTypeObject                   = SymbolType(1) // STT_OBJECT
	SymbolTypeFunction                 = SymbolType(2) // STT_FUNC
	SymbolTypeSection                  = SymbolType(3) // STT_SECTION
	SymbolTypeSourceFile               = SymbolType(4) // STT_FILE
	SymbolTypeUninitializedCommonBlock = SymbolType(5) // STT_COMMON
	SymbolTypeTLSObject                = SymbolType(6) // STT_TLS
)

func (st SymbolType) String() string {
	switch st {
	case SymbolTypeNone:
		return "NoType"
	case SymbolTypeObject:
		return "Object"
	case SymbolTypeFunction:
		return "Function"
	case SymbolTypeSection:
		return "Section"
	case SymbolTypeSourceFile:
		return "SourceFile"
	case SymbolTypeUninitializedCommonBlock:
		return "UninitializedCommonBlock"
	case SymbolTypeTLSObject:
		return "TLSObject"
	default:
		return fmt.Sprintf("SymbolTypeUnknown(%d)", st)
	}
}

// The top 4 bits of st_info
type SymbolBinding byte

func SymbolInfoToBinding(info byte) SymbolBinding {
	return SymbolBinding(info >> 4)
}

const (
	SymbolBindingLocal  = SymbolBinding(0) // STB_LOCAL
	SymbolBindingGlobal = SymbolBinding(1) // STB_GLOBAL
	SymbolBindingWeak   = SymbolBinding(2) // STB_WEAK
)

func (sb SymbolBinding) String() string {
	switch sb {
	case SymbolBindingLocal:
		return "Local"
	case SymbolBindingGlobal:
		return "Global"
	case SymbolBindingWeak:
		return "Weak"
	default:
		return fmt.Sprintf("SymbolBindingUnknown(%d)", sb)
	}
}

type SymbolVisibility byte

const (
	SymbolVisibilityDefault   = SymbolVisibility(0) // STV_DEFAULT
	SymbolVisibilityInternal  = SymbolVisibility(1) // STV_INTERNAL
	SymbolVisibilityHidden    = SymbolVisibility(2) // STV_HIDDEN
	SymbolVisibilityProtected = SymbolVisibility(3) // STV_PROTECTED
)

func (vis SymbolVisibility) String() string {
	switch vis {
	case SymbolVisibilityDefault:
		return "Default"
	case SymbolVisibilityInternal:
		return "Internal"
	case SymbolVisibilityHidden:
		return "Hidden"
	case SymbolVisibilityProtected:
		return "Protected"
	default:
		return fmt.Sprintf("SymbolVisibilityUnknown(%d)", vis)
	}
}

// Elf32_Sym.  Used only for (de-)serialization.  Field order differs from
// Elf64_Sym; st_value/st_size moved when the 64-bit layout was defined.
type Symbol32 struct {
	NameIndex        uint32 // st_name
	Value            uint32 // st_value
	Size             uint32 // st_size
	Info             byte   // st_info.  (4 bits st_bind, 4 bits st_type)
	SymbolVisibility        // st_other
	SectionIndex            // st_shndx
}

// Elf64_Sym.  Used only for (de-)serialization.
type Symbol64 struct {
	NameIndex        uint32 // st_name
	Info             byte   // st_info.  (4 bits st_bind, 4 bits st_type)
	SymbolVisibility        // st_other
	SectionIndex            // st_shndx
	Value            uint64 // st_value
	Size             uint64 // st_size
}

// RawSymbol is the width-polymorphic view of one symbol table entry.
// Exactly one variant is populated.
type RawSymbol struct {
	Sym32 *Symbol32
	Sym64 *Symbol64
}

func (symbol RawSymbol) Class() Class {
	if symbol.Sym64 != nil {
		return Class64
	}
	return Class32
}

func (symbol RawSymbol) NameIndex() uint32 {
	if symbol.Sym64 != nil {
		return symbol.Sym64.NameIndex
	}
	return symbol.Sym32.NameIndex
}

func (symbol RawSymbol) Info() byte {
	if symbol.Sym64 != nil {
		return symbol.Sym64.Info
	}
	return symbol.Sym32.Info
}

func (symbol RawSymbol) Type() SymbolType {
	return SymbolInfoToType(symbol.Info())
}

func (symbol RawSymbol) Binding() SymbolBinding {
	return SymbolInfoToBinding(symbol.Info())
}

func (symbol RawSymbol) Visibility() SymbolVisibility {
	if symbol.Sym64 != nil {
		return symbol.Sym64.SymbolVisibility
	}
	return symbol.Sym32.SymbolVisibility
}

func (symbol RawSymbol) SectionIndex() SectionIndex {
	if symbol.Sym64 != nil {
		return symbol.Sym64.SectionIndex
	}
	return symbol.Sym32.SectionIndex
}

func (symbol RawSymbol) Value() uint64 {
	if symbol.Sym64 != nil {
		return symbol.Sym64.Value
	}
	return uint64(symbol.Sym32.Value)
}

func (symbol RawSymbol) Size() uint64 {
	if symbol.Sym64 != nil {
		return symbol.Sym64.Size
	}
	return uint64(symbol.Sym32.Size)
}

// Encode reproduces the entry's exact on-disk byte sequence for its class.
func (symbol RawSymbol) Encode(order binary.ByteOrder) []byte {
	var content []byte
	var err error
	if symbol.Sym64 != nil {
		content, err = binary.Append(nil, order, symbol.Sym64)
	} else {
		content, err = binary.Append(nil, order, symbol.Sym32)
	}
	if err != nil {
		panic("should never happen")
	}
	return content
}

// WithField returns a copy of the entry with the named field replaced.
// Recognized fields: name, value, size, info, other, shndx.
func (symbol RawSymbol) WithField(
	field string,
	value uint64,
) (
	RawSymbol,
	error,
) {
	switch field {
	case "name":
		if err := mustFitUint32(field, value); err != nil {
			return RawSymbol{}, err
		}
	case "info", "other":
		if value > 0xff {
			return RawSymbol{}, fmt.Errorf(
				"value 0x%x does not fit in 8-bit field %s",
				value,
				field)
		}
	case "shndx":
		if value > 0xffff {
			return RawSymbol{}, fmt.Errorf(
				"value 0x%x does not fit in 16-bit field %s",
				value,
				field)
		}
	}

	if symbol.Sym64 != nil {
		entry := *symbol.Sym64
		switch field {
		case "name":
			entry.NameIndex = uint32(value)
		case "value":
			entry.Value = value
		case "size":
			entry.Size = value
		case "info":
			entry.Info = byte(value)
		case "other":
			entry.SymbolVisibility = SymbolVisibility(value)
		case "shndx":
			entry.SectionIndex = SectionIndex(value)
		default:
			return RawSymbol{}, fmt.Errorf("unknown symbol field: %s", field)
		}
		return RawSymbol{Sym64: &entry}, nil
	}

	if err := mustFitUint32(field, value); err != nil {
		return RawSymbol{}, err
	}

	entry := *symbol.Sym32
	switch field {
	case "name":
		entry.NameIndex = uint32(value)
	case "value":
		entry.Value = uint32(value)
	case "size":
		entry.Size = uint32(value)
	case "info":
		entry.Info = byte(value)
	case "other":
		entry.SymbolVisibility = SymbolVisibility(value)
	case "shndx":
		entry.SectionIndex = SectionIndex(value)
	default:
		return RawSymbol{}, fmt.Errorf("unknown symbol field: %s", field)
	}
	return RawSymbol{Sym32: &entry}, nil
}

// SymbolEntrySize returns the fixed symbol entry size for the class.
func SymbolEntrySize(class Class) int {
	if class == Class64 {
		return Elf64SymbolEntrySize
	}
	return Elf32SymbolEntrySize
}

// DecodeSymbol decodes the fixed-size symbol entry at the given offset.
func DecodeSymbol(
	content []byte,
	class Class,
	order binary.ByteOrder,
	offset uint64,
) (
	RawSymbol,
	error,
) {
	cursor := NewCursor(order, content)
	err := cursor.SeekTo(offset)
	if err != nil {
		return RawSymbol{}, err
	}

	switch class {
	case Class32:
		entry := &Symbol32{}
		err := cursor.decode(entry, "symbol")
		if err != nil {
			return RawSymbol{}, err
		}
		return RawSymbol{Sym32: entry}, nil
	case Class64:
		entry := &Symbol64{}
		err := cursor.decode(entry, "symbol")
		if err != nil {
			return RawSymbol{}, err
		}
		return RawSymbol{Sym64: entry}, nil
	default:
		return RawSymbol{}, fmt.Errorf(
			"%w: unsupported elf class: %s",
			ErrUnknownFormat,
			class)
	}
}
