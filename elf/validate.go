package elf

import (
	"fmt"
)

// Validate runs the structural invariant checks over the decoded tables and
// returns every violation found, not just the first.  Checks are advisory:
// a violation is reported, never auto-repaired, and never blocks decoding
// or patching.  An empty result means the file passed.
func (file *File) Validate() []error {
	violations := []error{}

	for idx, header := range file.ProgramHeaders {
		for _, violation := range header.CheckAlignment() {
			violations = append(
				violations,
				fmt.Errorf("program header %d: %w", idx, violation))
		}

		start := header.ContentOffset()
		end := start + header.FileImageSize()
		if end < start || end > uint64(len(file.Image)) {
			violations = append(
				violations,
				fmt.Errorf(
					"program header %d: file image [0x%x, 0x%x) extends past "+
						"end of file (0x%x)",
					idx,
					start,
					end,
					len(file.Image)))
		}
	}

	for idx, header := range file.SectionHeaders {
		switch header.Type() {
		case SectionTypeNull, SectionTypeNoSpace:
			continue
		}

		start := header.Offset()
		end := start + header.Size()
		if end < start || end > uint64(len(file.Image)) {
			violations = append(
				violations,
				fmt.Errorf(
					"section header %d: content [0x%x, 0x%x) extends past "+
						"end of file (0x%x)",
					idx,
					start,
					end,
					len(file.Image)))
		}
	}

	return violations
}
