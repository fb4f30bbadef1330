package elf

import (
	"encoding/binary"
	"errors"
	"testing"

	"github.com/pattyshack/gt/testing/expect"
	"github.com/pattyshack/gt/testing/suite"
)

type ProgramHeaderSuite struct{}

func TestProgramHeader(t *testing.T) {
	suite.RunTests(t, &ProgramHeaderSuite{})
}

var byteOrders = []binary.ByteOrder{
	binary.LittleEndian,
	binary.BigEndian,
}

func (ProgramHeaderSuite) TestRoundTrip64(t *testing.T) {
	entry := RawProgramHeader{
		Phdr64: &ProgramHeader64{
			ProgramType:     ProgramLoadable,
			ProgramFlags:    ProgramFlagReadableBit | ProgramFlagExecutableBit,
			ContentOffset:   0x1000,
			VirtualAddress:  0x401000,
			PhysicalAddress: 0x401000,
			FileImageSize:   0x2345,
			MemoryImageSize: 0x2345,
			Alignment:       0x1000,
		},
	}

	for _, order := range byteOrders {
		encoded := entry.Encode(order)
		expect.Equal(t, Elf64ProgramHeaderEntrySize, len(encoded))

		decoded, err := DecodeProgramHeader(encoded, Class64, order, 0)
		expect.Nil(t, err)
		expect.Equal(t, *entry.Phdr64, *decoded.Phdr64)
	}
}

func (ProgramHeaderSuite) TestRoundTrip32(t *testing.T) {
	entry := RawProgramHeader{
		Phdr32: &ProgramHeader32{
			ProgramType:     ProgramInterpreterPath,
			ContentOffset:   0x154,
			VirtualAddress:  0x8048154,
			PhysicalAddress: 0x8048154,
			FileImageSize:   0x13,
			MemoryImageSize: 0x13,
			ProgramFlags:    ProgramFlagReadableBit,
			Alignment:       1,
		},
	}

	for _, order := range byteOrders {
		encoded := entry.Encode(order)
		expect.Equal(t, Elf32ProgramHeaderEntrySize, len(encoded))

		decoded, err := DecodeProgramHeader(encoded, Class32, order, 0)
		expect.Nil(t, err)
		expect.Equal(t, *entry.Phdr32, *decoded.Phdr32)
		expect.Equal(t, Class32, decoded.Class())
		expect.Equal(t, 0x8048154, decoded.VirtualAddress())
	}
}

func (ProgramHeaderSuite) TestDecodeAtOffset(t *testing.T) {
	entry := RawProgramHeader{
		Phdr64: &ProgramHeader64{
			ProgramType:    ProgramNote,
			ContentOffset:  0x200,
			VirtualAddress: 0x400200,
		},
	}

	content := make([]byte, 7)
	content = append(content, entry.Encode(binary.LittleEndian)...)

	decoded, err := DecodeProgramHeader(content, Class64, binary.LittleEndian, 7)
	expect.Nil(t, err)
	expect.Equal(t, ProgramNote, decoded.Type())
	expect.Equal(t, 0x200, decoded.ContentOffset())
}

func (ProgramHeaderSuite) TestInsufficientSpace(t *testing.T) {
	content := make([]byte, Elf64ProgramHeaderEntrySize-1)

	_, err := DecodeProgramHeader(content, Class64, binary.LittleEndian, 0)
	expect.Error(t, err, "out of bounds")
	expect.True(t, errors.Is(err, ErrOutOfBounds))

	// One byte short when starting mid-buffer.
	content = make([]byte, Elf32ProgramHeaderEntrySize+9)
	_, err = DecodeProgramHeader(content, Class32, binary.BigEndian, 10)
	expect.True(t, errors.Is(err, ErrOutOfBounds))

	// Offset past the end of the buffer.
	_, err = DecodeProgramHeader(content, Class32, binary.BigEndian, 0x10000)
	expect.True(t, errors.Is(err, ErrOutOfBounds))
}

func (ProgramHeaderSuite) TestWithField(t *testing.T) {
	entry := RawProgramHeader{
		Phdr64: &ProgramHeader64{
			ProgramType:    ProgramLoadable,
			VirtualAddress: 0x1000,
		},
	}

	modified, err := entry.WithField("vaddr", 0x2000)
	expect.Nil(t, err)
	expect.Equal(t, 0x2000, modified.VirtualAddress())

	// The original entry is unchanged.
	expect.Equal(t, 0x1000, entry.VirtualAddress())

	_, err = entry.WithField("bogus", 1)
	expect.Error(t, err, "unknown program header field")

	entry32 := RawProgramHeader{
		Phdr32: &ProgramHeader32{},
	}

	modified, err = entry32.WithField("offset", 0xffff)
	expect.Nil(t, err)
	expect.Equal(t, 0xffff, modified.ContentOffset())

	_, err = entry32.WithField("offset", 0x1_0000_0000)
	expect.Error(t, err, "does not fit in 32-bit field")
}

func (ProgramHeaderSuite) TestCheckAlignmentPasses(t *testing.T) {
	entry := RawProgramHeader{
		Phdr64: &ProgramHeader64{
			ProgramType:    ProgramLoadable,
			ContentOffset:  0x1000,
			VirtualAddress: 0x2000,
			Alignment:      0x1000,
		},
	}

	expect.Equal(t, 0, len(entry.CheckAlignment()))
}

func (ProgramHeaderSuite) TestCheckAlignmentViolations(t *testing.T) {
	entry := RawProgramHeader{
		Phdr64: &ProgramHeader64{
			ProgramType:    ProgramLoadable,
			ContentOffset:  0x1000,
			VirtualAddress: 0x2001,
			Alignment:      0x1000,
		},
	}

	// Both rules run independently; each reports its own violation.
	violations := entry.CheckAlignment()
	expect.Equal(t, 2, len(violations))
	expect.Error(t, violations[0], "not page congruent")
	expect.Error(t, violations[0], "offset=0x1000 vaddr=0x2001 align=0x1000")
	expect.Error(t, violations[1], "not congruent modulo alignment")
}

func (ProgramHeaderSuite) TestCheckAlignmentNonLoadable(t *testing.T) {
	// The page congruence rule only applies to loadable segments, and the
	// alignment rule only applies when align >= 2.
	entry := RawProgramHeader{
		Phdr64: &ProgramHeader64{
			ProgramType:    ProgramNote,
			ContentOffset:  0x1000,
			VirtualAddress: 0x2001,
			Alignment:      1,
		},
	}

	expect.Equal(t, 0, len(entry.CheckAlignment()))

	// A misaligned non-loadable segment still trips the alignment rule.
	entry.Phdr64.Alignment = 8
	expect.Equal(t, 1, len(entry.CheckAlignment()))
}
