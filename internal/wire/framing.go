package wire

import (
	"errors"
	"fmt"

	"github.com/ssgo/zonecore/internal/constants"
)

// ErrMalformedGroup is returned when a grouped packet's embedded lengths
// don't partition the datagram cleanly (spec.md §4.3: "a malformed inner
// length drops the whole group and logs malicious").
var ErrMalformedGroup = errors.New("wire: malformed grouped packet")

// ErrOversizedPacket is returned when a big-packet's declared total length
// exceeds the configured assembly cap.
var ErrOversizedPacket = errors.New("wire: declared big-packet length exceeds cap")

// FrameKind identifies which of the framing packets (spec.md §4.3, §6) a
// datagram carries. Application packets (non-zero first byte) are not a
// FrameKind; they are dispatched by opcode once reliable reassembly hands
// them to the handler chain.
type FrameKind byte

const (
	KindRegular FrameKind = iota
	KindConnectionInit
	KindConnectionResp
	KindReliable
	KindAck
	KindGrouped
	KindBigPacket
	KindDisconnect
)

// Classify inspects a raw datagram's framing bytes and returns its kind and
// the body following the framing prefix. Regular (non-zero first byte)
// datagrams are application packets and are returned with the whole
// datagram as body.
func Classify(datagram []byte) (FrameKind, []byte, error) {
	if len(datagram) == 0 {
		return KindRegular, nil, fmt.Errorf("wire: empty datagram")
	}
	if datagram[0] != constants.FrameMarker {
		return KindRegular, datagram, nil
	}
	if len(datagram) < 2 {
		return KindRegular, nil, fmt.Errorf("wire: truncated framing header")
	}
	switch datagram[1] {
	case constants.FrameConnectionInit:
		return KindConnectionInit, datagram[2:], nil
	case constants.FrameConnectionResp:
		return KindConnectionResp, datagram[2:], nil
	case constants.FrameReliable:
		return KindReliable, datagram[2:], nil
	case constants.FrameAck:
		return KindAck, datagram[2:], nil
	case constants.FrameGrouped:
		return KindGrouped, datagram[2:], nil
	case constants.FrameBigPacket:
		return KindBigPacket, datagram[2:], nil
	case constants.FrameDisconnect:
		return KindDisconnect, datagram[2:], nil
	default:
		return KindRegular, nil, fmt.Errorf("wire: unknown framing byte 0x%02x", datagram[1])
	}
}

// EncodeReliable wraps payload with the 0x00 0x03 reliable framing and the
// 4-byte LE sequence prefix.
func EncodeReliable(seq uint32, payload []byte) []byte {
	w := NewWriter(2 + 4 + len(payload))
	w.WriteByte(constants.FrameMarker).WriteByte(constants.FrameReliable).WriteUint32(seq).WriteBytes(payload)
	return w.Bytes()
}

// DecodeReliable splits a reliable frame's body (post-Classify) into its
// sequence number and inner payload.
func DecodeReliable(body []byte) (seq uint32, payload []byte, err error) {
	r := NewReader(body)
	seq, err = r.Uint32()
	if err != nil {
		return 0, nil, fmt.Errorf("wire: decoding reliable sequence: %w", err)
	}
	rest, err := r.Bytes(r.Len())
	if err != nil {
		return 0, nil, err
	}
	return seq, rest, nil
}

// EncodeAck builds a 0x00 0x04 ACK datagram echoing seq.
func EncodeAck(seq uint32) []byte {
	w := NewWriter(6)
	w.WriteByte(constants.FrameMarker).WriteByte(constants.FrameAck).WriteUint32(seq)
	return w.Bytes()
}

// DecodeAck extracts the acknowledged sequence from an ACK frame's body.
func DecodeAck(body []byte) (uint32, error) {
	r := NewReader(body)
	return r.Uint32()
}

// EncodeGrouped coalesces inner packets (each ≤ 255 bytes) into a single
// 0x00 0x05 grouped datagram, stopping before exceeding maxTotal.
// Returns the encoded datagram and the number of inner packets consumed.
func EncodeGrouped(inner [][]byte, maxTotal int) ([]byte, int) {
	w := NewWriter(maxTotal)
	w.WriteByte(constants.FrameMarker).WriteByte(constants.FrameGrouped)
	used := 0
	for _, p := range inner {
		if len(p) > constants.GroupedInnerMax {
			break
		}
		if w.Len()+1+len(p) > maxTotal {
			break
		}
		w.WriteByte(byte(len(p))).WriteBytes(p)
		used++
	}
	return w.Bytes(), used
}

// DecodeGrouped splits a grouped frame's body into its inner packets.
// A malformed length prefix (one that would read past the body) drops the
// whole group per spec.md §4.3.
func DecodeGrouped(body []byte) ([][]byte, error) {
	var out [][]byte
	r := NewReader(body)
	for r.Len() > 0 {
		n, err := r.Byte()
		if err != nil {
			return nil, ErrMalformedGroup
		}
		p, err := r.Bytes(int(n))
		if err != nil {
			return nil, ErrMalformedGroup
		}
		out = append(out, p)
	}
	return out, nil
}

// EncodeBigFragment builds one 0x00 0x06 big-packet fragment.
func EncodeBigFragment(totalLen, offset uint32, chunk []byte) []byte {
	w := NewWriter(2 + 4 + 4 + len(chunk))
	w.WriteByte(constants.FrameMarker).WriteByte(constants.FrameBigPacket).
		WriteUint32(totalLen).WriteUint32(offset).WriteBytes(chunk)
	return w.Bytes()
}

// DecodeBigFragment splits a big-packet frame's body into declared total
// length, this fragment's offset, and its chunk.
func DecodeBigFragment(body []byte) (totalLen, offset uint32, chunk []byte, err error) {
	r := NewReader(body)
	totalLen, err = r.Uint32()
	if err != nil {
		return 0, 0, nil, fmt.Errorf("wire: decoding big-packet total length: %w", err)
	}
	offset, err = r.Uint32()
	if err != nil {
		return 0, 0, nil, fmt.Errorf("wire: decoding big-packet offset: %w", err)
	}
	chunk, err = r.Bytes(r.Len())
	if err != nil {
		return 0, 0, nil, err
	}
	return totalLen, offset, chunk, nil
}

// EncodeConnectionInit builds the 0x00 0x01 handshake datagram.
func EncodeConnectionInit(clientKind byte, key int32) []byte {
	w := NewWriter(8)
	w.WriteByte(constants.FrameMarker).WriteByte(constants.FrameConnectionInit).
		WriteByte(clientKind).WriteInt32(key).WriteByte(0)
	return w.Bytes()
}

// DecodeConnectionInit parses a connection-init frame's body.
func DecodeConnectionInit(body []byte) (clientKind byte, key int32, err error) {
	r := NewReader(body)
	clientKind, err = r.Byte()
	if err != nil {
		return 0, 0, fmt.Errorf("wire: decoding connection-init client kind: %w", err)
	}
	key, err = r.Int32()
	if err != nil {
		return 0, 0, fmt.Errorf("wire: decoding connection-init key: %w", err)
	}
	return clientKind, key, nil
}

// EncodeConnectionResp builds the 0x00 0x02 handshake response.
func EncodeConnectionResp(key int32) []byte {
	w := NewWriter(6)
	w.WriteByte(constants.FrameMarker).WriteByte(constants.FrameConnectionResp).WriteInt32(key)
	return w.Bytes()
}
