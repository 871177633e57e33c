package psf

import (
	"encoding/binary"
	"math"
	"unicode/utf8"
)

// Cursor reads big-endian primitives from a window of a file buffer. Offsets
// are absolute positions in the buffer so that errors point into the file.
type Cursor struct {
	buf     []byte
	pos     int
	end     int
	section SectionKind
}

// NewCursor returns a cursor over the whole buffer.
func NewCursor(buf []byte) *Cursor {
	return &Cursor{buf: buf, end: len(buf), section: sectionDirectory}
}

// newSectionCursor returns a cursor over buf[start:end] attributed to section.
func newSectionCursor(buf []byte, section SectionKind, start, end int) (*Cursor, error) {
	if start < 0 || end > len(buf) || start > end {
		return nil, newError(ErrOutOfBounds, section, start,
			"range [%d, %d) outside buffer of %d bytes", start, end, len(buf))
	}
	return &Cursor{buf: buf, pos: start, end: end, section: section}, nil
}

func (c *Cursor) Offset() int {
	return c.pos
}

func (c *Cursor) Remaining() int {
	return c.end - c.pos
}

func (c *Cursor) need(n int) error {
	if n < 0 || c.end-c.pos < n {
		return newError(ErrOutOfBounds, c.section, c.pos, "need %d bytes, %d remain", n, c.end-c.pos)
	}
	return nil
}

// ReadU32 consumes a 4-byte big-endian unsigned integer.
func (c *Cursor) ReadU32() (uint32, error) {
	if err := c.need(4); err != nil {
		return 0, err
	}
	v := binary.BigEndian.Uint32(c.buf[c.pos : c.pos+4])
	c.pos += 4
	return v, nil
}

// ReadI32 consumes a 4-byte big-endian signed integer.
func (c *Cursor) ReadI32() (int32, error) {
	v, err := c.ReadU32()
	return int32(v), err
}

// PeekU32 returns the 4-byte big-endian word at the absolute offset at
// without moving the cursor.
func (c *Cursor) PeekU32(at int) (uint32, error) {
	if at < 0 || at > c.end-4 {
		return 0, newError(ErrOutOfBounds, c.section, at, "peek of 4 bytes past end %d", c.end)
	}
	return binary.BigEndian.Uint32(c.buf[at : at+4]), nil
}

// ReadF64 consumes an 8-byte big-endian IEEE-754 double.
func (c *Cursor) ReadF64() (float64, error) {
	if err := c.need(8); err != nil {
		return 0, err
	}
	bits := binary.BigEndian.Uint64(c.buf[c.pos : c.pos+8])
	c.pos += 8
	return math.Float64frombits(bits), nil
}

// ReadPaddedString consumes a length-prefixed UTF-8 string. The payload is
// followed by (4 - L%4) % 4 padding bytes, so lengths that are already a
// multiple of four carry no padding.
func (c *Cursor) ReadPaddedString() (string, error) {
	n, err := c.ReadU32()
	if err != nil {
		return "", err
	}
	length := int(n)
	if err := c.need(length); err != nil {
		return "", err
	}
	raw := c.buf[c.pos : c.pos+length]
	if !utf8.Valid(raw) {
		return "", newError(ErrInvalidUTF8, c.section, c.pos, "%d-byte string", length)
	}
	s := string(raw)
	c.pos += length
	if err := c.Skip(paddingFor(length)); err != nil {
		return "", err
	}
	return s, nil
}

func paddingFor(length int) int {
	return (4 - length%4) % 4
}

// Skip advances the cursor by n bytes.
func (c *Cursor) Skip(n int) error {
	if err := c.need(n); err != nil {
		return err
	}
	c.pos += n
	return nil
}

// Seek moves the cursor to the absolute offset at, which must lie within the
// cursor's window.
func (c *Cursor) Seek(at int) error {
	if at < 0 || at > c.end {
		return newError(ErrOutOfBounds, c.section, at, "seek past end %d", c.end)
	}
	c.pos = at
	return nil
}

// expectTag consumes a word and fails unless it equals tag.
func (c *Cursor) expectTag(tag uint32) error {
	at := c.pos
	got, err := c.ReadU32()
	if err != nil {
		return err
	}
	if got != tag {
		return tagError(c.section, at, tag, got)
	}
	return nil
}

// limit shrinks the readable window to end at the absolute offset end.
func (c *Cursor) limit(end int) error {
	if end < c.pos || end > c.end {
		return newError(ErrOutOfBounds, c.section, c.pos,
			"declared end %d outside [%d, %d]", end, c.pos, c.end)
	}
	c.end = end
	return nil
}
