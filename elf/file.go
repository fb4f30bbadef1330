package elf

import (
	"encoding/binary"
	"fmt"
	"io"
)

// Resources:
// https://refspecs.linuxfoundation.org/

// File is a decoded view of one elf image.  Every model hanging off File is
// a pure value derived from Image; Image itself is treated as immutable for
// the lifetime of the File, and patch operations return a new image rather
// than mutating in place.
type File struct {
	// The raw file image everything below was decoded from.
	Image []byte

	binary.ByteOrder
	RawHeader

	ProgramHeaders []RawProgramHeader
	SectionHeaders []RawSectionHeader
	Sections       []Section
}

func (file *File) GetSection(name string) (Section, bool) {
	for _, section := range file.Sections {
		if section.Name() == name {
			return section, true
		}
	}

	return nil, false
}

func (file *File) GetSectionIndex(name string) (int, bool) {
	for idx, section := range file.Sections {
		if section.Name() == name {
			return idx, true
		}
	}

	return 0, false
}

type parser struct {
	File
}

func Parse(reader io.Reader) (*File, error) {
	content, err := io.ReadAll(reader)
	if err != nil {
		return nil, fmt.Errorf("failed to read elf file: %w", err)
	}

	return ParseBytes(content)
}

// ParseBytes decodes the whole image: identifier, file header, section
// header table, program header table, then typed section views.  ParseBytes
// takes ownership of content; the caller must not modify it afterwards.
func ParseBytes(content []byte) (*File, error) {
	p := parser{
		File: File{
			Image: content,
		},
	}

	err := p.parse()
	if err != nil {
		return nil, err
	}

	return &p.File, nil
}

func (p *parser) parse() error {
	header, err := DecodeHeader(p.Image)
	if err != nil {
		return err
	}
	p.RawHeader = header

	// Already validated by DecodeHeader.
	order, err := header.Identifier().ByteOrder()
	if err != nil {
		panic("should never happen")
	}
	p.ByteOrder = order

	err = p.parseSectionHeaders()
	if err != nil {
		return err
	}

	err = p.parseProgramHeaders()
	if err != nil {
		return err
	}

	err = p.buildSections()
	if err != nil {
		return err
	}

	return nil
}

func (p *parser) parseSectionHeaders() error {
	if p.NumSectionHeaderEntries() == 0 {
		// For simplicity, we'll disallow extended section header.  Most elf
		// structs (e.g., Elf64_Sym.st_shndx) don't support extended section
		// indexing.
		//
		// https://docs.oracle.com/en/operating-systems/solaris/oracle-solaris/11.4/linkers-libraries/extended-section-header.html
		if p.SectionHeaderOffset() > 0 {
			return fmt.Errorf("extended section header not supported")
		}

		return nil
	}

	sectionHeaders, err := DecodeSectionHeaderTable(
		p.Image,
		p.Class(),
		p.ByteOrder,
		p.SectionHeaderOffset(),
		p.SectionHeaderEntrySize(),
		p.NumSectionHeaderEntries())
	if err != nil {
		return fmt.Errorf("failed to decode section header table: %w", err)
	}

	p.SectionHeaders = sectionHeaders
	return nil
}

func (p *parser) parseProgramHeaders() error {
	if p.NumProgramHeaderEntries() == 0 {
		return nil
	}

	programHeaders, err := DecodeProgramHeaderTable(
		p.Image,
		p.Class(),
		p.ByteOrder,
		p.ProgramHeaderOffset(),
		p.ProgramHeaderEntrySize(),
		p.NumProgramHeaderEntries())
	if err != nil {
		return fmt.Errorf("failed to decode program header table: %w", err)
	}

	p.ProgramHeaders = programHeaders
	return nil
}

// sectionContent slices the section's content range out of the image, or
// returns nil if the range does not fit.  An out of range section is not a
// decode failure; Validate reports it.
func (p *parser) sectionContent(header RawSectionHeader) []byte {
	start := header.Offset()
	end := start + header.Size()
	if end < start || end > uint64(len(p.Image)) {
		return nil
	}

	return p.Image[start:end]
}

func (p *parser) buildSections() error {
	for _, header := range p.SectionHeaders {
		var content []byte
		if header.Type() != SectionTypeNoSpace {
			content = p.sectionContent(header)
		}

		switch header.Type() {
		case SectionTypeStringTable:
			p.Sections = append(
				p.Sections,
				NewStringTableSection(header, content))
		case SectionTypeSymbolTable,
			SectionTypeDynamicSymbolTable:

			if content == nil {
				p.Sections = append(p.Sections, newRawSection(header, nil))
				continue
			}

			entries, err := DecodeSymbolTable(content, p.Class(), p.ByteOrder)
			if err != nil {
				return fmt.Errorf("failed to parse symbol table: %w", err)
			}
			p.Sections = append(p.Sections, newSymbolTableSection(header, entries))
		default:
			p.Sections = append(p.Sections, newRawSection(header, content))
		}
	}

	err := p.bindSectionNames()
	if err != nil {
		return err
	}

	return p.bindStringTables()
}

func (p *parser) bindSectionNames() error {
	if p.SectionStringTableIndex() == SectionIndexUndefined {
		return nil
	}

	idx := int(p.SectionStringTableIndex())
	if idx >= len(p.Sections) {
		return fmt.Errorf(
			"section name index out of bound (%d >= %d)",
			idx,
			len(p.Sections))
	}

	table, ok := p.Sections[idx].(*StringTableSection)
	if !ok {
		return fmt.Errorf("section name index does not point to a string table")
	}

	for _, section := range p.Sections {
		section.BindSectionNameTable(table)
	}

	return nil
}

// Bind sh_link string tables.
// See elf spec. Figure 1-12. sh_link and sh_info Interpretation.
func (p *parser) bindStringTables() error {
	for _, section := range p.Sections {
		hdr := section.Header()

		if hdr.Link() == 0 { // section 0 is always undefined
			continue
		}

		switch hdr.Type() {
		case SectionTypeDynamic,
			SectionTypeSymbolTable,
			SectionTypeDynamicSymbolTable:

			if hdr.Link() >= uint32(len(p.Sections)) {
				return fmt.Errorf(
					"string table index out of bound (%d >= %d)",
					hdr.Link(),
					len(p.Sections))
			}

			table, ok := p.Sections[hdr.Link()].(*StringTableSection)
			if !ok {
				return fmt.Errorf(
					"string table index does not point to a string table")
			}

			section.BindStringTable(table)
		}
	}

	return nil
}
