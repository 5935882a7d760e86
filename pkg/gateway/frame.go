package gateway

import (
	"encoding/binary"
	"fmt"
	"io"
)

// HeaderLength is the fixed size of a packet header: version, flags,
// stream, opcode, and a 4-byte length.
const HeaderLength = 8

const (
	flagCompressed uint8 = 0x01
	flagTracing    uint8 = 0x02
)

const directionResponseBit uint8 = 0x80

// Header is the fixed-width preamble of every packet on the wire.
type Header struct {
	Version    uint8 // low 7 bits of the version byte
	Response   bool  // high bit of the version byte
	Compressed bool
	Tracing    bool
	Stream     int8
	Opcode     OpCode
	BodyLength int32
}

// ProtocolError is returned whenever framing, version, or length checks
// fail. One raised after a packet has been read (a version change, a
// failed decompression) is answered with an ERROR packet on that
// packet's stream before the session closes. One returned by ReadPacket
// itself closes the session without an ERROR packet, since the rejected
// header is not handed back to the caller.
type ProtocolError struct {
	reason string
}

func (e *ProtocolError) Error() string { return "protocol error: " + e.reason }

func newProtocolError(format string, args ...interface{}) *ProtocolError {
	return &ProtocolError{reason: fmt.Sprintf(format, args...)}
}

// DecodeHeader parses a HeaderLength-byte buffer into a Header. It does
// not validate direction or version against session expectations -
// that is the caller's job (ReadPacket does it, since it knows the
// expected direction and the session's pinned version).
func DecodeHeader(buf []byte) (Header, error) {
	if len(buf) != HeaderLength {
		return Header{}, fmt.Errorf("header buffer must be %d bytes, got %d", HeaderLength, len(buf))
	}
	versionByte := buf[0]
	h := Header{
		Version:    versionByte &^ directionResponseBit,
		Response:   versionByte&directionResponseBit != 0,
		Compressed: buf[1]&flagCompressed != 0,
		Tracing:    buf[1]&flagTracing != 0,
		Stream:     int8(buf[2]),
		Opcode:     OpCode(buf[3]),
		BodyLength: int32(binary.BigEndian.Uint32(buf[4:8])),
	}
	return h, nil
}

// Encode writes the header back into wire form.
func (h Header) Encode() []byte {
	buf := make([]byte, HeaderLength)
	versionByte := h.Version
	if h.Response {
		versionByte |= directionResponseBit
	}
	buf[0] = versionByte
	if h.Compressed {
		buf[1] |= flagCompressed
	}
	if h.Tracing {
		buf[1] |= flagTracing
	}
	buf[2] = byte(h.Stream)
	buf[3] = byte(h.Opcode)
	binary.BigEndian.PutUint32(buf[4:8], uint32(h.BodyLength))
	return buf
}

// Packet is a fully framed header plus body, always held with
// BodyLength == len(Body) (invariant 5 in spec.md §3).
type Packet struct {
	Header Header
	Body   []byte
}

func (p *Packet) setBody(body []byte) {
	p.Body = body
	p.Header.BodyLength = int32(len(body))
}

// Encode serializes the packet, recomputing the length field from the
// current body so invariant 5 always holds for what goes on the wire.
func (p *Packet) Encode() []byte {
	p.Header.BodyLength = int32(len(p.Body))
	out := make([]byte, 0, HeaderLength+len(p.Body))
	out = append(out, p.Header.Encode()...)
	out = append(out, p.Body...)
	return out
}

// ReadPacket reads one full packet from r, enforcing framing per
// spec.md §4.1: direction and protocol version must match what the
// session expects, stream ids on requests must be non-negative, and the
// body must not exceed maxBodyLength. expectedVersion of 0 means "not
// yet pinned" (only legal for the very first packet of a session).
func ReadPacket(r io.Reader, expectResponse bool, expectedVersion uint8, maxBodyLength int32) (*Packet, error) {
	headerBuf := make([]byte, HeaderLength)
	if _, err := io.ReadFull(r, headerBuf); err != nil {
		return nil, err
	}
	header, err := DecodeHeader(headerBuf)
	if err != nil {
		return nil, newProtocolError("%v", err)
	}
	if header.Response != expectResponse {
		return nil, newProtocolError("unexpected direction bit (response=%v, expected=%v)", header.Response, expectResponse)
	}
	if expectedVersion != 0 && header.Version != expectedVersion {
		return nil, newProtocolError("version mismatch: session pinned to %d, packet carries %d", expectedVersion, header.Version)
	}
	if !expectResponse && header.Stream < 0 {
		return nil, newProtocolError("negative stream id %d on request", header.Stream)
	}
	if header.BodyLength < 0 || header.BodyLength > maxBodyLength {
		return nil, newProtocolError("declared body length %d exceeds maximum %d", header.BodyLength, maxBodyLength)
	}
	body := make([]byte, header.BodyLength)
	if _, err := io.ReadFull(r, body); err != nil {
		return nil, fmt.Errorf("short read of body (wanted %d bytes): %w", header.BodyLength, err)
	}
	return &Packet{Header: header, Body: body}, nil
}

// WritePacket writes a full packet (header + body) to w in one call.
func WritePacket(w io.Writer, p *Packet) error {
	_, err := w.Write(p.Encode())
	return err
}
