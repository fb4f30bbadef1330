package elf

import (
	"encoding/binary"
	"fmt"
)

var (
	// A computed offset or fixed-size record does not fit in the buffer.
	ErrOutOfBounds = fmt.Errorf("out of bounds")
)

// Cursor provides bounds-checked, endianness-aware field access over an
// immutable byte buffer.  Every read either returns the decoded value or an
// error wrapping ErrOutOfBounds; no read ever touches bytes past the end of
// Content.
type Cursor struct {
	binary.ByteOrder

	Content  []byte
	Position int
}

func NewCursor(
	byteOrder binary.ByteOrder,
	content []byte,
) *Cursor {
	return &Cursor{
		ByteOrder: byteOrder,
		Content:   content,
		Position:  0,
	}
}

func (cursor *Cursor) remaining() []byte {
	return cursor.Content[cursor.Position:]
}

func (cursor *Cursor) HasReachedEnd() bool {
	return len(cursor.remaining()) == 0
}

// SeekTo repositions the cursor to an absolute offset.  Offsets originate
// from untrusted header fields and hence are uint64.
func (cursor *Cursor) SeekTo(offset uint64) error {
	if offset > uint64(len(cursor.Content)) {
		return fmt.Errorf(
			"%w: seek to 0x%x in %d byte buffer",
			ErrOutOfBounds,
			offset,
			len(cursor.Content))
	}

	cursor.Position = int(offset)
	return nil
}

func (cursor *Cursor) Bytes(size int) ([]byte, error) {
	content := cursor.remaining()
	if size < 0 || len(content) < size {
		return nil, fmt.Errorf(
			"%w: slice %d [%d:%d+%d]",
			ErrOutOfBounds,
			len(content),
			cursor.Position,
			cursor.Position,
			size)
	}

	content = content[:size]
	cursor.Position += size
	return content, nil
}

func (cursor *Cursor) decode(out interface{}, name string) error {
	n, err := binary.Decode(cursor.remaining(), cursor.ByteOrder, out)
	if err != nil {
		return fmt.Errorf(
			"%w: failed to decode %s at 0x%x: %s",
			ErrOutOfBounds,
			name,
			cursor.Position,
			err)
	}

	cursor.Position += n
	return nil
}

func (cursor *Cursor) U8() (uint8, error) {
	var result uint8
	err := cursor.decode(&result, "U8")
	return result, err
}

func (cursor *Cursor) U16() (uint16, error) {
	var result uint16
	err := cursor.decode(&result, "U16")
	return result, err
}

func (cursor *Cursor) U32() (uint32, error) {
	var result uint32
	err := cursor.decode(&result, "U32")
	return result, err
}

func (cursor *Cursor) U64() (uint64, error) {
	var result uint64
	err := cursor.decode(&result, "U64")
	return result, err
}

// The Append* functions are the write-direction inverses of U16/U32/U64.
// For any order, decoding the appended bytes with the same order reproduces
// the value bit-exactly.

func AppendUint16(
	content []byte,
	order binary.ByteOrder,
	value uint16,
) []byte {
	content, err := binary.Append(content, order, value)
	if err != nil {
		panic("should never happen")
	}
	return content
}

func AppendUint32(
	content []byte,
	order binary.ByteOrder,
	value uint32,
) []byte {
	content, err := binary.Append(content, order, value)
	if err != nil {
		panic("should never happen")
	}
	return content
}

func AppendUint64(
	content []byte,
	order binary.ByteOrder,
	value uint64,
) []byte {
	content, err := binary.Append(content, order, value)
	if err != nil {
		panic("should never happen")
	}
	return content
}
