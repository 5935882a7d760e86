package gateway

import (
	"errors"
	"fmt"
	"time"
)

// RewriteRequest dispatches a decompressed request body by opcode, per
// spec.md §4.2. The returned body is always uncompressed; the caller
// (the ingress pipeline) clears the compression flag before forwarding,
// since the upstream link never carries a compressed body.
func RewriteRequest(session *Session, header Header, body []byte, validator TokenValidator, tokenLength int) ([]byte, error) {
	switch header.Opcode {
	case OpCodeStartup:
		return rewriteStartup(session, body)
	case OpCodeCredentials:
		return rewriteCredentials(session, body, validator, tokenLength)
	case OpCodeQuery:
		return rewriteQueryLike(session, header.Stream, body, true)
	case OpCodePrepare:
		return rewriteQueryLike(session, header.Stream, body, false)
	case OpCodeExecute:
		return rewriteExecute(session, body)
	case OpCodeOptions, OpCodeRegister:
		return body, nil
	default:
		return nil, fmt.Errorf("%w: unsupported request opcode %s", ErrProtocol, header.Opcode)
	}
}

// rewriteStartup negotiates compression out of band and strips the
// COMPRESSION entry so the upstream always sees an uncompressed session
// (spec.md §4.2).
func rewriteStartup(session *Session, body []byte) ([]byte, error) {
	m, err := readStringMap(body)
	if err != nil {
		return nil, fmt.Errorf("%w: startup body is not a string map: %v", ErrProtocol, err)
	}
	if name, ok := m.Get("COMPRESSION"); ok {
		codec, err := CodecForName(name)
		if err != nil {
			return nil, err
		}
		session.SetCompression(codec)
		m.Delete("COMPRESSION")
	}
	return m.encode(), nil
}

// rewriteCredentials extracts the user token prefix from the username,
// validates it, and rewrites the username to (internal_token ∥
// real_username) before forwarding, per spec.md §4.2.
func rewriteCredentials(session *Session, body []byte, validator TokenValidator, tokenLength int) ([]byte, error) {
	if v := session.ProtocolVersion(); v != 1 {
		return nil, fmt.Errorf("%w: CREDENTIALS is only valid in protocol version 1, session is on %d", ErrProtocol, v)
	}
	m, err := readStringMap(body)
	if err != nil {
		return nil, fmt.Errorf("%w: credentials body is not a string map: %v", ErrProtocol, err)
	}
	username, ok := m.Get("username")
	if !ok {
		return nil, fmt.Errorf("%w: credentials missing username", ErrBadCredentials)
	}
	if len(username) <= tokenLength {
		return nil, fmt.Errorf("%w: username shorter than or equal to token width", ErrBadCredentials)
	}
	userToken := username[:tokenLength]
	realUsername := username[tokenLength:]

	result, err := session.ValidateAndSetInternalToken([]byte(userToken), validator.Validate)
	if err != nil {
		if errors.Is(err, ErrTokenNotFound) {
			return nil, fmt.Errorf("%w: user token not recognized", ErrBadCredentials)
		}
		return nil, fmt.Errorf("%w: token validator: %v", ErrServer, err)
	}
	if result.ExpiryEpoch > 0 && result.ExpiryEpoch <= time.Now().Unix() {
		return nil, fmt.Errorf("%w: token expired", ErrBadCredentials)
	}

	m.Set("username", string(result.InternalToken)+realUsername)
	return m.encode(), nil
}

// rewriteQueryLike handles both QUERY and PREPARE: both carry the
// statement text as a leading long string, with QUERY carrying
// consistency/flag bytes afterward that are preserved verbatim.
func rewriteQueryLike(session *Session, stream int8, body []byte, hasTrailer bool) ([]byte, error) {
	text, offset, err := readLongString(body, 0)
	if err != nil {
		return nil, fmt.Errorf("%w: could not read statement text: %v", ErrProtocol, err)
	}
	token, ok := session.InternalToken()
	if !ok {
		return nil, fmt.Errorf("%w: query before successful authentication", ErrProtocol)
	}

	rewritten, interesting := RewriteKeyspacePrefix(text, token)
	if interesting {
		session.MarkInteresting(stream)
	}

	out := writeLongString(rewritten)
	if hasTrailer {
		out = append(out, body[offset:]...)
	}
	return out, nil
}

// rewriteExecute checks that the session's tenant owns the prepared
// statement being executed; the body is otherwise forwarded unmodified
// (spec.md §4.2).
func rewriteExecute(session *Session, body []byte) ([]byte, error) {
	preparedID, _, err := readShortBytes(body, 0)
	if err != nil {
		return nil, fmt.Errorf("%w: could not read prepared id: %v", ErrProtocol, err)
	}
	token, ok := session.InternalToken()
	if !ok {
		return nil, fmt.Errorf("%w: execute before successful authentication", ErrProtocol)
	}
	if !session.PreparedOwners().OwnedBy(preparedID, token) {
		return nil, fmt.Errorf("%w: prepared statement owned by another tenant", ErrUnauthorized)
	}
	return body, nil
}
