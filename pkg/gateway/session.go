package gateway

import (
	"sync"

	"github.com/google/uuid"
)

// Session is the shared, per-connection state described in spec.md §3.
// It is guarded by a single mutex; critical sections are kept short and,
// except for the once-per-session credential check in
// ValidateAndSetInternalToken, never span an I/O suspension point.
type Session struct {
	ID uuid.UUID // for log correlation only, not part of the wire protocol

	mu sync.Mutex

	protocolVersion uint8 // 0 means "not yet pinned"
	compression     Codec

	internalToken []byte // the tenant's namespace prefix, set once

	interestingStreams map[int8]struct{}

	preparedOwners *PreparedStatementCache
}

// NewSession creates a freshly initialized session, owned from
// connection accept until both pipelines have torn down
// (spec.md §3 "Lifecycle").
func NewSession() *Session {
	return &Session{
		ID:                 uuid.New(),
		compression:        noneCodec{},
		interestingStreams: make(map[int8]struct{}),
		preparedOwners:     NewPreparedStatementCache(),
	}
}

// ProtocolVersion returns the pinned version, or 0 if unset.
func (s *Session) ProtocolVersion() uint8 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.protocolVersion
}

// PinProtocolVersion sets the session's protocol version the first time
// it is observed. A later call with a different version is a protocol
// error (invariant 1 in spec.md §3).
func (s *Session) PinProtocolVersion(version uint8) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.protocolVersion == 0 {
		s.protocolVersion = version
		return nil
	}
	if s.protocolVersion != version {
		return newProtocolError("version changed mid-session: pinned %d, saw %d", s.protocolVersion, version)
	}
	return nil
}

// Compression returns the negotiated codec (none until STARTUP sets it).
func (s *Session) Compression() Codec {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.compression
}

// SetCompression records the codec negotiated in STARTUP. Only callable
// from request rewriting of the STARTUP packet.
func (s *Session) SetCompression(codec Codec) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.compression = codec
}

// InternalToken returns the tenant's namespace prefix and whether
// authentication has completed.
func (s *Session) InternalToken() ([]byte, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.internalToken == nil {
		return nil, false
	}
	return s.internalToken, true
}

// SetInternalToken records the internal token exactly once, atomically
// with successful credential validation (invariant 2 in spec.md §3).
func (s *Session) SetInternalToken(token []byte) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.internalToken == nil {
		s.internalToken = token
	}
}

// MarkInteresting flags a request stream as requiring row-level
// filtering on its response.
func (s *Session) MarkInteresting(stream int8) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.interestingStreams[stream] = struct{}{}
}

// TakeInteresting reports whether stream was flagged interesting and
// removes it, satisfying invariant 3 in spec.md §3 ("removed exactly
// once — when the correlated response arrives").
func (s *Session) TakeInteresting(stream int8) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.interestingStreams[stream]
	delete(s.interestingStreams, stream)
	return ok
}

// ValidateAndSetInternalToken holds the session lock for the duration
// of validate's call, per spec.md §4.2's explicit requirement that
// CREDENTIALS processing keep the lock held across the token store
// round trip (an exception to the general "never suspend under the
// lock" rule in spec.md §5, which applies to the steady-state request
// path, not the once-per-session authentication step). On success the
// internal token is recorded exactly once (invariant 2 in spec.md §3).
func (s *Session) ValidateAndSetInternalToken(userToken []byte, validate func([]byte) (ValidationResult, error)) (ValidationResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	result, err := validate(userToken)
	if err != nil {
		return ValidationResult{}, err
	}
	if s.internalToken == nil {
		s.internalToken = result.InternalToken
	}
	return result, nil
}

// PreparedOwners exposes the prepared-statement ownership cache. The
// cache has its own internal locking (pscache.go); Session does not
// need to hold its own mutex across cache operations.
func (s *Session) PreparedOwners() *PreparedStatementCache {
	return s.preparedOwners
}
