// Package patchscript applies yaml-described field edits to an elf image
// through the core patch path.  Each edit names a table, an entry index, a
// field, and the new value; edits apply in document order, each re-encoding
// exactly one fixed-size entry.
package patchscript

import (
	"fmt"
	"strconv"

	"gopkg.in/yaml.v3"

	"github.com/bollu/elfsage/elf"
)

const (
	TableProgram = "program"
	TableSection = "section"
	TableSymbol  = "symbol"
)

// Value is an unsigned field value.  Yaml scalars in either decimal or
// 0x-hex form are accepted.
type Value uint64

func (value *Value) UnmarshalYAML(node *yaml.Node) error {
	var raw string
	err := node.Decode(&raw)
	if err != nil {
		return err
	}

	parsed, err := strconv.ParseUint(raw, 0, 64)
	if err != nil {
		return fmt.Errorf("invalid value %q: %w", raw, err)
	}

	*value = Value(parsed)
	return nil
}

type Edit struct {
	Table string `yaml:"table"`

	// Symbol table section name.  Symbol edits only; defaults to .symtab.
	Section string `yaml:"section,omitempty"`

	Index int    `yaml:"index"`
	Field string `yaml:"field"`
	Value Value  `yaml:"value"`
}

type Script struct {
	Patches []Edit `yaml:"patches"`
}

// Parse decodes and validates a patch script.  Field names are validated
// lazily (by the core's WithField) since they depend on the table kind.
func Parse(content []byte) (*Script, error) {
	script := &Script{}
	err := yaml.Unmarshal(content, script)
	if err != nil {
		return nil, fmt.Errorf("failed to parse patch script: %w", err)
	}

	if len(script.Patches) == 0 {
		return nil, fmt.Errorf("patch script contains no patches")
	}

	for idx, edit := range script.Patches {
		switch edit.Table {
		case TableProgram, TableSection, TableSymbol:
		default:
			return nil, fmt.Errorf(
				"patch %d: unknown table: %q",
				idx,
				edit.Table)
		}

		if edit.Index < 0 {
			return nil, fmt.Errorf(
				"patch %d: negative entry index (%d)",
				idx,
				edit.Index)
		}

		if edit.Field == "" {
			return nil, fmt.Errorf("patch %d: missing field name", idx)
		}

		if edit.Section != "" && edit.Table != TableSymbol {
			return nil, fmt.Errorf(
				"patch %d: section name is only valid for symbol edits",
				idx)
		}
	}

	return script, nil
}

// Apply runs every edit in order against the image, re-decoding between
// edits so later edits observe earlier ones.  The input image is never
// mutated.
func (script *Script) Apply(image []byte) ([]byte, error) {
	for idx, edit := range script.Patches {
		patched, err := edit.apply(image)
		if err != nil {
			return nil, fmt.Errorf("patch %d: %w", idx, err)
		}

		image = patched
	}

	return image, nil
}

func (edit Edit) apply(image []byte) ([]byte, error) {
	file, err := elf.ParseBytes(image)
	if err != nil {
		return nil, err
	}

	switch edit.Table {
	case TableProgram:
		if edit.Index >= len(file.ProgramHeaders) {
			return nil, fmt.Errorf(
				"program header index out of range (%d of %d)",
				edit.Index,
				len(file.ProgramHeaders))
		}

		entry, err := file.ProgramHeaders[edit.Index].WithField(
			edit.Field,
			uint64(edit.Value))
		if err != nil {
			return nil, err
		}

		return file.PatchProgramHeader(edit.Index, entry)
	case TableSection:
		if edit.Index >= len(file.SectionHeaders) {
			return nil, fmt.Errorf(
				"section header index out of range (%d of %d)",
				edit.Index,
				len(file.SectionHeaders))
		}

		entry, err := file.SectionHeaders[edit.Index].WithField(
			edit.Field,
			uint64(edit.Value))
		if err != nil {
			return nil, err
		}

		return file.PatchSectionHeader(edit.Index, entry)
	case TableSymbol:
		name := edit.Section
		if name == "" {
			name = ".symtab"
		}

		sectionIdx, ok := file.GetSectionIndex(name)
		if !ok {
			return nil, fmt.Errorf("no %s section", name)
		}

		table, ok := file.Sections[sectionIdx].(*elf.SymbolTableSection)
		if !ok {
			return nil, fmt.Errorf("%s is not a symbol table", name)
		}

		if edit.Index >= len(table.Symbols) {
			return nil, fmt.Errorf(
				"symbol index out of range (%d of %d)",
				edit.Index,
				len(table.Symbols))
		}

		entry, err := table.Symbols[edit.Index].WithField(
			edit.Field,
			uint64(edit.Value))
		if err != nil {
			return nil, err
		}

		return file.PatchSymbol(sectionIdx, edit.Index, entry)
	default:
		panic("should never happen") // Parse validated the table name
	}
}
