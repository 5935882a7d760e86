package gateway

import (
	"errors"
	"fmt"
	"strings"
)

// Sentinel errors, mapped to wire error codes by wireErrorCode. Callers
// wrap these with fmt.Errorf("...: %w", ErrX) to add context while
// keeping errors.Is classification intact, following the wrapping style
// throughout proxy/pkg/zdmproxy (adaptConnErr, pendingrequests.go).
var (
	ErrProtocol       = errors.New("protocol error")
	ErrBadCredentials = errors.New("bad credentials")
	ErrUnauthorized   = errors.New("unauthorized")
	ErrServer         = errors.New("server error")
)

// wireErrorCode maps a sentinel error to the wire error code placed in
// an ERROR body, per the categorization table in spec.md §7. Framing
// failures surface as *ProtocolError (frame.go) rather than the
// ErrProtocol sentinel, so both are recognized here.
func wireErrorCode(err error) ErrorCode {
	var protoErr *ProtocolError
	switch {
	case errors.As(err, &protoErr), errors.Is(err, ErrProtocol):
		return ErrorCodeProtocol
	case errors.Is(err, ErrBadCredentials):
		return ErrorCodeBadCredentials
	case errors.Is(err, ErrUnauthorized):
		return ErrorCodeUnauthorized
	default:
		return ErrorCodeServer
	}
}

// BuildErrorPacket constructs a wire ERROR packet carrying err's message
// under the code wireErrorCode(err) maps it to, addressed to stream on
// the session's pinned version. Every fatal path in spec.md §7 ends by
// sending one of these before closing the session.
func BuildErrorPacket(version uint8, stream int8, err error) *Packet {
	body := make([]byte, 0, 6+len(err.Error()))
	body = append(body, writeInt(int32(wireErrorCode(err)))...)
	body = append(body, writeString(err.Error())...)

	p := &Packet{Header: Header{
		Version:  version,
		Response: true,
		Stream:   stream,
		Opcode:   OpCodeError,
	}}
	p.setBody(body)
	return p
}

// RewriteErrorBody strips internalToken from an ERROR body's message,
// and from its keyspace field when the error is already-exists, per
// spec.md §4.3.
func RewriteErrorBody(body []byte, internalToken []byte) ([]byte, error) {
	code, offset, err := readInt(body, 0)
	if err != nil {
		return nil, fmt.Errorf("could not read error code: %w", err)
	}
	message, offset, err := readString(body, offset)
	if err != nil {
		return nil, fmt.Errorf("could not read error message: %w", err)
	}
	message = stripAllOccurrences(message, string(internalToken))

	out := make([]byte, 0, len(body))
	out = append(out, writeInt(code)...)
	out = append(out, writeString(message)...)

	if ErrorCode(code) == ErrorCodeAlreadyExists {
		keyspace, next, err := readString(body, offset)
		if err != nil {
			return nil, fmt.Errorf("could not read already-exists keyspace: %w", err)
		}
		table, _, err := readString(body, next)
		if err != nil {
			return nil, fmt.Errorf("could not read already-exists table: %w", err)
		}
		keyspace = strings.TrimPrefix(keyspace, string(internalToken))
		out = append(out, writeString(keyspace)...)
		out = append(out, writeString(table)...)
	}
	return out, nil
}

// stripAllOccurrences removes every occurrence of substr from s, one at
// a time, per spec.md §4.3 ("repeated until none remain") rather than a
// single non-overlapping pass.
func stripAllOccurrences(s, substr string) string {
	if substr == "" {
		return s
	}
	for strings.Contains(s, substr) {
		s = strings.Replace(s, substr, "", 1)
	}
	return s
}
