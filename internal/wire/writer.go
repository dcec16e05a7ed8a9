package wire

import "encoding/binary"

// Writer builds a little-endian packet body by appending to a growing buffer.
type Writer struct {
	buf []byte
}

// NewWriter allocates a Writer with the given initial capacity hint.
func NewWriter(capHint int) *Writer {
	return &Writer{buf: make([]byte, 0, capHint)}
}

// WriteByte appends a single byte.
func (w *Writer) WriteByte(b byte) *Writer {
	w.buf = append(w.buf, b)
	return w
}

// WriteUint16 appends a little-endian uint16.
func (w *Writer) WriteUint16(v uint16) *Writer {
	var b [2]byte
	binary.LittleEndian.PutUint16(b[:], v)
	w.buf = append(w.buf, b[:]...)
	return w
}

// WriteInt16 appends a little-endian int16.
func (w *Writer) WriteInt16(v int16) *Writer { return w.WriteUint16(uint16(v)) }

// WriteUint32 appends a little-endian uint32.
func (w *Writer) WriteUint32(v uint32) *Writer {
	var b [4]byte
	binary.LittleEndian.PutUint32(b[:], v)
	w.buf = append(w.buf, b[:]...)
	return w
}

// WriteInt32 appends a little-endian int32.
func (w *Writer) WriteInt32(v int32) *Writer { return w.WriteUint32(uint32(v)) }

// WriteBytes appends raw bytes verbatim.
func (w *Writer) WriteBytes(b []byte) *Writer {
	w.buf = append(w.buf, b...)
	return w
}

// WriteCString appends s followed by a NUL terminator.
func (w *Writer) WriteCString(s string) *Writer {
	w.buf = append(w.buf, s...)
	w.buf = append(w.buf, 0)
	return w
}

// WriteFixedString appends s zero-padded/truncated to exactly n bytes.
func (w *Writer) WriteFixedString(s string, n int) *Writer {
	b := make([]byte, n)
	copy(b, s)
	w.buf = append(w.buf, b...)
	return w
}

// Bytes returns the accumulated buffer.
func (w *Writer) Bytes() []byte { return w.buf }

// Len returns the number of bytes written so far.
func (w *Writer) Len() int { return len(w.buf) }
