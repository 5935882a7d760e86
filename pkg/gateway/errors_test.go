package gateway

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestBuildErrorPacket_MapsSentinelToWireCode(t *testing.T) {
	p := BuildErrorPacket(1, 5, fmt.Errorf("wrap: %w", ErrUnauthorized))
	require.Equal(t, OpCodeError, p.Header.Opcode)
	require.True(t, p.Header.Response)
	require.Equal(t, int8(5), p.Header.Stream)

	code, _, err := readInt(p.Body, 0)
	require.NoError(t, err)
	require.Equal(t, int32(ErrorCodeUnauthorized), code)
}

func TestRewriteErrorBody_StripsTokenFromMessage(t *testing.T) {
	token := "tttttttttttttttttttt"
	var body []byte
	body = append(body, writeInt(int32(ErrorCodeServer))...)
	body = append(body, writeString("keyspace ttttttttttttttttttttapp already has ttttttttttttttttttttowner")...)

	out, err := RewriteErrorBody(body, []byte(token))
	require.NoError(t, err)

	code, offset, err := readInt(out, 0)
	require.NoError(t, err)
	require.Equal(t, int32(ErrorCodeServer), code)
	message, _, err := readString(out, offset)
	require.NoError(t, err)
	require.Equal(t, "keyspace app already has owner", message)
}

func TestRewriteErrorBody_AlreadyExistsStripsKeyspacePrefix(t *testing.T) {
	token := "tttttttttttttttttttt"
	var body []byte
	body = append(body, writeInt(int32(ErrorCodeAlreadyExists))...)
	body = append(body, writeString("table already exists")...)
	body = append(body, writeString("ttttttttttttttttttttapp")...)
	body = append(body, writeString("users")...)

	out, err := RewriteErrorBody(body, []byte(token))
	require.NoError(t, err)

	_, offset, err := readInt(out, 0)
	require.NoError(t, err)
	_, offset, err = readString(out, offset)
	require.NoError(t, err)
	keyspace, offset, err := readString(out, offset)
	require.NoError(t, err)
	table, _, err := readString(out, offset)
	require.NoError(t, err)
	require.Equal(t, "app", keyspace)
	require.Equal(t, "users", table)
}
