package elf

import (
	"bytes"
	"fmt"
)

type FileAddress uint64

type Section interface {
	Header() RawSectionHeader

	BindSectionNameTable(sectionNames *StringTableSection)
	Name() string

	RawContent() ([]byte, error)

	// See elf spec. Figure 1-12. sh_link interpretation.
	BindStringTable(stringTable *StringTableSection)
}

type BaseSection struct {
	RawSectionHeader

	sectionNameTable *StringTableSection
	name             string
}

func newBaseSection(header RawSectionHeader) BaseSection {
	return BaseSection{
		RawSectionHeader: header,
	}
}

func (base *BaseSection) Header() RawSectionHeader {
	return base.RawSectionHeader
}

func (base *BaseSection) Name() string {
	return base.name
}

func (base *BaseSection) BindSectionNameTable(
	sectionNames *StringTableSection,
) {
	base.sectionNameTable = sectionNames
	base.name = sectionNames.Get(base.NameIndex())
}

func (BaseSection) RawContent() ([]byte, error) {
	return nil, fmt.Errorf("cannot get raw content")
}

func (BaseSection) BindStringTable(table *StringTableSection) {
}

type RawSection struct {
	BaseSection

	Content []byte
}

func newRawSection(header RawSectionHeader, buffer []byte) *RawSection {
	if buffer == nil {
		// Content range is not within the file image.  Decoding still
		// succeeds; Validate reports the inconsistency.
		return &RawSection{
			BaseSection: newBaseSection(header),
		}
	}

	content := make([]byte, len(buffer))
	copy(content, buffer)

	return &RawSection{
		BaseSection: newBaseSection(header),
		Content:     content,
	}
}

func (section *RawSection) RawContent() ([]byte, error) {
	if section.Content == nil {
		return nil, fmt.Errorf(
			"section content [0x%x, 0x%x) is not within the file image",
			section.Offset(),
			section.Offset()+section.Size())
	}

	return section.Content, nil
}

type StringTableSection struct {
	BaseSection

	Content []byte
}

func NewStringTableSection(
	header RawSectionHeader,
	buffer []byte,
) *StringTableSection {
	content := make([]byte, len(buffer))
	copy(content, buffer)

	return &StringTableSection{
		BaseSection: newBaseSection(header),
		Content:     content,
	}
}

// Get returns the NUL-terminated string starting at index, or "" if the
// index is out of range or the string is not terminated.
func (table *StringTableSection) Get(index uint32) string {
	if index >= uint32(len(table.Content)) {
		return ""
	}

	chunk := table.Content[index:]
	end := bytes.IndexByte(chunk, 0)
	if end == -1 {
		return ""
	}

	return string(chunk[:end])
}

func (table *StringTableSection) NumEntries() int {
	if len(table.Content) == 0 {
		return 0
	}

	count := 0
	for _, b := range table.Content[1:] {
		if b == 0 {
			count += 1
		}
	}
	return count
}

type Symbol struct {
	RawSymbol

	Parent *SymbolTableSection
	Name   string
}

func (symbol *Symbol) AddressRange() (FileAddress, FileAddress, bool) {
	if symbol.Value() == 0 ||
		symbol.NameIndex() == 0 ||
		symbol.Type() == SymbolTypeTLSObject {

		return 0, 0, false
	}

	start := FileAddress(symbol.Value())
	end := FileAddress(symbol.Value() + symbol.Size())
	return start, end, true
}

type SymbolTableSection struct {
	BaseSection

	Symbols []*Symbol

	stringTable *StringTableSection
}

func newSymbolTableSection(
	header RawSectionHeader,
	entries []RawSymbol,
) *SymbolTableSection {
	table := &SymbolTableSection{
		BaseSection: newBaseSection(header),
	}

	symbols := make([]*Symbol, 0, len(entries))
	for _, entry := range entries {
		symbols = append(
			symbols,
			&Symbol{
				RawSymbol: entry,
				Parent:    table,
			})
	}

	table.Symbols = symbols
	return table
}

func (table *SymbolTableSection) BindStringTable(names *StringTableSection) {
	table.stringTable = names
	for _, symbol := range table.Symbols {
		symbol.Name = names.Get(symbol.NameIndex())
	}
}

func (table *SymbolTableSection) SymbolsByName(name string) []*Symbol {
	result := []*Symbol{}
	for _, symbol := range table.Symbols {
		if symbol.Name == name {
			result = append(result, symbol)
		}
	}
	return result
}

func (table *SymbolTableSection) SymbolAt(address FileAddress) *Symbol {
	for _, symbol := range table.Symbols {
		low, _, ok := symbol.AddressRange()
		if ok && low == address {
			return symbol
		}
	}

	return nil
}

func (table *SymbolTableSection) SymbolSpans(address FileAddress) *Symbol {
	for _, symbol := range table.Symbols {
		low, high, ok := symbol.AddressRange()
		if ok && low <= address && address < high {
			return symbol
		}
	}

	return nil
}
