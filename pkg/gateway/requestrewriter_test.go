package gateway

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
)

type fakeValidator struct {
	tokens map[string]ValidationResult
}

func (f fakeValidator) Validate(userToken []byte) (ValidationResult, error) {
	result, ok := f.tokens[string(userToken)]
	if !ok {
		return ValidationResult{}, ErrTokenNotFound
	}
	return result, nil
}

type erroringValidator struct{}

func (erroringValidator) Validate([]byte) (ValidationResult, error) {
	return ValidationResult{}, errors.New("connection reset")
}

func TestRewriteRequest_StartupStripsCompression(t *testing.T) {
	session := NewSession()
	m := &StringMap{}
	m.Set("CQL_VERSION", "3.0.0")
	m.Set("COMPRESSION", "snappy")

	out, err := RewriteRequest(session, Header{Opcode: OpCodeStartup}, m.encode(), nil, 20)
	require.NoError(t, err)

	result, err := readStringMap(out)
	require.NoError(t, err)
	_, ok := result.Get("COMPRESSION")
	require.False(t, ok)
	require.Equal(t, CompressionSnappy, session.Compression().Name())
}

func TestRewriteRequest_StartupUnknownCompressionFails(t *testing.T) {
	session := NewSession()
	m := &StringMap{}
	m.Set("COMPRESSION", "zstd")

	_, err := RewriteRequest(session, Header{Opcode: OpCodeStartup}, m.encode(), nil, 20)
	require.Error(t, err)
}

func TestRewriteRequest_CredentialsHappyPath(t *testing.T) {
	session := NewSession()
	require.NoError(t, session.PinProtocolVersion(1))
	validator := fakeValidator{tokens: map[string]ValidationResult{
		"0123456789abcdef0123": {InternalToken: []byte("tttttttttttttttttttt")},
	}}
	m := &StringMap{}
	m.Set("username", "0123456789abcdef0123alice")

	out, err := RewriteRequest(session, Header{Opcode: OpCodeCredentials}, m.encode(), validator, 20)
	require.NoError(t, err)

	result, err := readStringMap(out)
	require.NoError(t, err)
	username, ok := result.Get("username")
	require.True(t, ok)
	require.Equal(t, "ttttttttttttttttttttalice", username)

	token, ok := session.InternalToken()
	require.True(t, ok)
	require.Equal(t, []byte("tttttttttttttttttttt"), token)
}

func TestRewriteRequest_CredentialsUnknownTokenIsBadCredentials(t *testing.T) {
	session := NewSession()
	require.NoError(t, session.PinProtocolVersion(1))
	validator := fakeValidator{tokens: map[string]ValidationResult{}}
	m := &StringMap{}
	m.Set("username", "0123456789abcdef0123alice")

	_, err := RewriteRequest(session, Header{Opcode: OpCodeCredentials}, m.encode(), validator, 20)
	require.ErrorIs(t, err, ErrBadCredentials)
}

func TestRewriteRequest_CredentialsTransportFailureIsServerError(t *testing.T) {
	session := NewSession()
	require.NoError(t, session.PinProtocolVersion(1))
	m := &StringMap{}
	m.Set("username", "0123456789abcdef0123alice")

	_, err := RewriteRequest(session, Header{Opcode: OpCodeCredentials}, m.encode(), erroringValidator{}, 20)
	require.ErrorIs(t, err, ErrServer)
	require.NotErrorIs(t, err, ErrBadCredentials)
}

func TestRewriteRequest_CredentialsShortUsernameIsBadCredentials(t *testing.T) {
	session := NewSession()
	require.NoError(t, session.PinProtocolVersion(1))
	m := &StringMap{}
	m.Set("username", "short")

	_, err := RewriteRequest(session, Header{Opcode: OpCodeCredentials}, m.encode(), fakeValidator{}, 20)
	require.ErrorIs(t, err, ErrBadCredentials)
}

func TestRewriteRequest_QueryRewritesAndLeavesStreamUninteresting(t *testing.T) {
	session := NewSession()
	session.SetInternalToken([]byte("tttttttttttttttttttt"))

	body := append(writeLongString("USE app;"), []byte{0x00, 0x01}...) // consistency bytes
	out, err := RewriteRequest(session, Header{Opcode: OpCodeQuery, Stream: 3}, body, nil, 20)
	require.NoError(t, err)

	text, offset, err := readLongString(out, 0)
	require.NoError(t, err)
	require.Equal(t, "USE ttttttttttttttttttttapp;", text)
	require.Equal(t, []byte{0x00, 0x01}, out[offset:])
	require.False(t, session.TakeInteresting(3))
}

func TestRewriteRequest_QueryOnSystemTableIsInteresting(t *testing.T) {
	session := NewSession()
	session.SetInternalToken([]byte("tttttttttttttttttttt"))

	body := writeLongString("SELECT * FROM system.schema_keyspaces;")
	_, err := RewriteRequest(session, Header{Opcode: OpCodeQuery, Stream: 7}, body, nil, 20)
	require.NoError(t, err)
	require.True(t, session.TakeInteresting(7))
}

func TestRewriteRequest_ExecuteRejectsOtherTenantsPreparedID(t *testing.T) {
	session := NewSession()
	session.SetInternalToken([]byte("tenantBBBBBBBBBBBBBB"))
	session.PreparedOwners().Record([]byte("prepared-x"), []byte("tenantAAAAAAAAAAAAAA"))

	var body []byte
	body = append(body, writeShort(len("prepared-x"))...)
	body = append(body, []byte("prepared-x")...)

	_, err := RewriteRequest(session, Header{Opcode: OpCodeExecute}, body, nil, 20)
	require.ErrorIs(t, err, ErrUnauthorized)
}

func TestRewriteRequest_ExecuteAcceptsOwnPreparedID(t *testing.T) {
	session := NewSession()
	session.SetInternalToken([]byte("tenantAAAAAAAAAAAAAA"))
	session.PreparedOwners().Record([]byte("prepared-x"), []byte("tenantAAAAAAAAAAAAAA"))

	var body []byte
	body = append(body, writeShort(len("prepared-x"))...)
	body = append(body, []byte("prepared-x")...)

	out, err := RewriteRequest(session, Header{Opcode: OpCodeExecute}, body, nil, 20)
	require.NoError(t, err)
	require.Equal(t, body, out)
}

func TestRewriteRequest_UnsupportedOpcodeFails(t *testing.T) {
	session := NewSession()
	_, err := RewriteRequest(session, Header{Opcode: OpCodeBatch}, nil, nil, 20)
	require.ErrorIs(t, err, ErrProtocol)
}
