package elf

import (
	"encoding/binary"
	"errors"
	"testing"

	"github.com/pattyshack/gt/testing/expect"
	"github.com/pattyshack/gt/testing/suite"
)

type CursorSuite struct{}

func TestCursor(t *testing.T) {
	suite.RunTests(t, &CursorSuite{})
}

func (CursorSuite) TestLittleEndianReads(t *testing.T) {
	content := []byte{0x01, 0x02, 0x03, 0x04, 0x05, 0x06, 0x07, 0x08}
	cursor := NewCursor(binary.LittleEndian, content)

	value16, err := cursor.U16()
	expect.Nil(t, err)
	expect.Equal(t, 0x0201, value16)

	value32, err := cursor.U32()
	expect.Nil(t, err)
	expect.Equal(t, 0x06050403, value32)

	err = cursor.SeekTo(0)
	expect.Nil(t, err)

	value64, err := cursor.U64()
	expect.Nil(t, err)
	expect.Equal(t, 0x0807060504030201, value64)

	expect.True(t, cursor.HasReachedEnd())
}

func (CursorSuite) TestBigEndianReads(t *testing.T) {
	content := []byte{0x01, 0x02, 0x03, 0x04, 0x05, 0x06, 0x07, 0x08}
	cursor := NewCursor(binary.BigEndian, content)

	value16, err := cursor.U16()
	expect.Nil(t, err)
	expect.Equal(t, 0x0102, value16)

	value8, err := cursor.U8()
	expect.Nil(t, err)
	expect.Equal(t, 0x03, value8)

	err = cursor.SeekTo(0)
	expect.Nil(t, err)

	value64, err := cursor.U64()
	expect.Nil(t, err)
	expect.Equal(t, 0x0102030405060708, value64)
}

func (CursorSuite) TestAppendIsReadInverse(t *testing.T) {
	orders := []binary.ByteOrder{binary.LittleEndian, binary.BigEndian}
	for _, order := range orders {
		content := AppendUint16(nil, order, 0xbeef)
		content = AppendUint32(content, order, 0xdeadbeef)
		content = AppendUint64(content, order, 0x0123456789abcdef)
		expect.Equal(t, 14, len(content))

		cursor := NewCursor(order, content)

		value16, err := cursor.U16()
		expect.Nil(t, err)
		expect.Equal(t, 0xbeef, value16)

		value32, err := cursor.U32()
		expect.Nil(t, err)
		expect.Equal(t, 0xdeadbeef, value32)

		value64, err := cursor.U64()
		expect.Nil(t, err)
		expect.Equal(t, 0x0123456789abcdef, value64)
	}
}

func (CursorSuite) TestReadThenAppendReproducesBytes(t *testing.T) {
	content := []byte{0xca, 0xfe, 0xba, 0xbe, 0x00, 0x11, 0x22, 0x33}
	for _, order := range []binary.ByteOrder{
		binary.LittleEndian,
		binary.BigEndian,
	} {
		cursor := NewCursor(order, content)
		err := cursor.SeekTo(2)
		expect.Nil(t, err)

		value, err := cursor.U32()
		expect.Nil(t, err)

		expect.Equal(t, content[2:6], AppendUint32(nil, order, value))
	}
}

func (CursorSuite) TestOutOfBounds(t *testing.T) {
	content := []byte{0x01, 0x02, 0x03}
	cursor := NewCursor(binary.LittleEndian, content)

	_, err := cursor.U32()
	expect.Error(t, err, "out of bounds")
	expect.True(t, errors.Is(err, ErrOutOfBounds))

	// A failed read never advances the cursor.
	expect.Equal(t, 0, cursor.Position)

	err = cursor.SeekTo(4)
	expect.Error(t, err, "out of bounds")
	expect.True(t, errors.Is(err, ErrOutOfBounds))

	err = cursor.SeekTo(3)
	expect.Nil(t, err)
	expect.True(t, cursor.HasReachedEnd())

	_, err = cursor.U8()
	expect.Error(t, err, "out of bounds")

	err = cursor.SeekTo(1)
	expect.Nil(t, err)

	_, err = cursor.Bytes(3)
	expect.Error(t, err, "out of bounds")

	chunk, err := cursor.Bytes(2)
	expect.Nil(t, err)
	expect.Equal(t, []byte{0x02, 0x03}, chunk)
}
