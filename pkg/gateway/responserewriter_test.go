package gateway

import (
	"testing"

	"github.com/stretchr/testify/require"
)

// TestRewriteResponse_ClearsInterestingOnNonRowsResult reproduces
// QUERY "USE system;": the request rewriter flags the stream
// interesting (the statement names "system"), but the reply is a
// SET_KEYSPACE result, not rows. The flag must still be cleared so it
// does not leak for the rest of the session (invariant 3, spec.md §3).
func TestRewriteResponse_ClearsInterestingOnNonRowsResult(t *testing.T) {
	session := NewSession()
	session.SetInternalToken([]byte("tttttttttttttttttttt"))
	session.MarkInteresting(3)

	body := append(writeInt(int32(ResultKindSetKeyspace)), writeString("ttttttttttttttttttttapp")...)
	_, _, err := RewriteResponse(session, Header{Opcode: OpCodeResult, Stream: 3}, body)
	require.NoError(t, err)

	require.False(t, session.TakeInteresting(3))
}

// TestRewriteResponse_ClearsInterestingOnErrorResult checks the same
// invariant on the ERROR path.
func TestRewriteResponse_ClearsInterestingOnErrorResult(t *testing.T) {
	session := NewSession()
	session.SetInternalToken([]byte("tttttttttttttttttttt"))
	session.MarkInteresting(4)

	body := append(writeInt(int32(ErrorCodeServer)), writeString("boom")...)
	_, _, err := RewriteResponse(session, Header{Opcode: OpCodeError, Stream: 4}, body)
	require.NoError(t, err)

	require.False(t, session.TakeInteresting(4))
}

func TestRewriteResponse_SetKeyspaceStripsPrefix(t *testing.T) {
	session := NewSession()
	session.SetInternalToken([]byte("tttttttttttttttttttt"))

	body := append(writeInt(int32(ResultKindSetKeyspace)), writeString("ttttttttttttttttttttapp")...)
	out, drop, err := RewriteResponse(session, Header{Opcode: OpCodeResult}, body)
	require.NoError(t, err)
	require.False(t, drop)

	kind, offset, err := readInt(out, 0)
	require.NoError(t, err)
	require.Equal(t, int32(ResultKindSetKeyspace), kind)
	keyspace, _, err := readString(out, offset)
	require.NoError(t, err)
	require.Equal(t, "app", keyspace)
}

func TestRewriteResponse_SchemaChangeStripsKeyspaceOnly(t *testing.T) {
	session := NewSession()
	session.SetInternalToken([]byte("tttttttttttttttttttt"))

	var body []byte
	body = append(body, writeInt(int32(ResultKindSchemaChange))...)
	body = append(body, writeString("UPDATED")...)
	body = append(body, writeString("ttttttttttttttttttttapp")...)
	body = append(body, writeString("users")...)

	out, _, err := RewriteResponse(session, Header{Opcode: OpCodeResult}, body)
	require.NoError(t, err)

	_, offset, err := readInt(out, 0)
	require.NoError(t, err)
	change, offset, err := readString(out, offset)
	require.NoError(t, err)
	keyspace, offset, err := readString(out, offset)
	require.NoError(t, err)
	table, _, err := readString(out, offset)
	require.NoError(t, err)
	require.Equal(t, "UPDATED", change)
	require.Equal(t, "app", keyspace)
	require.Equal(t, "users", table)
}

func TestRewriteResponse_PreparedRecordsOwnerAndForwards(t *testing.T) {
	session := NewSession()
	session.SetInternalToken([]byte("tttttttttttttttttttt"))

	var rest []byte
	rest = append(rest, writeShort(4)...)
	rest = append(rest, []byte{1, 2, 3, 4}...)
	rest = append(rest, buildMetadataWithColumns("bind_var")...)
	body := append(writeInt(int32(ResultKindPrepared)), rest...)

	out, _, err := RewriteResponse(session, Header{Opcode: OpCodeResult}, body)
	require.NoError(t, err)
	require.Equal(t, body, out)

	owner, ok := session.PreparedOwners().Owner([]byte{1, 2, 3, 4})
	require.True(t, ok)
	require.Equal(t, []byte("tttttttttttttttttttt"), owner)
}

func TestRewriteResponse_RowsFiltersOnlyWhenInterestingAndPrivileged(t *testing.T) {
	session := NewSession()
	session.SetInternalToken([]byte("tttttttttttttttttttt"))
	session.MarkInteresting(2)

	var rest []byte
	rest = append(rest, writeInt(flagGlobalTablesSpec)...)
	rest = append(rest, writeInt(1)...)
	rest = append(rest, writeString("system")...)
	rest = append(rest, writeString("schema_keyspaces")...)
	rest = append(rest, writeString("keyspace_name")...)
	rest = append(rest, writeShort(0x000D)...)
	rest = append(rest, writeInt(2)...) // row count
	rest = append(rest, writeInt(6)...)
	rest = append(rest, []byte("system")...)
	rest = append(rest, writeInt(25)...)
	rest = append(rest, []byte("uuuuuuuuuuuuuuuuuuuuother")...)

	body := append(writeInt(int32(ResultKindRows)), rest...)
	out, _, err := RewriteResponse(session, Header{Opcode: OpCodeResult, Stream: 2}, body)
	require.NoError(t, err)

	_, offset, err := readInt(out, 0)
	require.NoError(t, err)
	parsed, err := ParseRowsResult(out[offset:])
	require.NoError(t, err)
	require.Len(t, parsed.Rows.Rows, 1)
	require.Equal(t, "system", string(parsed.Rows.Rows[0].Cells[0]))

	require.False(t, session.TakeInteresting(2))
}

func TestRewriteResponse_RowsSkipsFilterWhenNotInteresting(t *testing.T) {
	session := NewSession()
	session.SetInternalToken([]byte("tttttttttttttttttttt"))

	var rest []byte
	rest = append(rest, writeInt(flagGlobalTablesSpec)...)
	rest = append(rest, writeInt(1)...)
	rest = append(rest, writeString("system")...)
	rest = append(rest, writeString("schema_keyspaces")...)
	rest = append(rest, writeString("keyspace_name")...)
	rest = append(rest, writeShort(0x000D)...)
	rest = append(rest, writeInt(1)...)
	rest = append(rest, writeInt(25)...)
	rest = append(rest, []byte("uuuuuuuuuuuuuuuuuuuuother")...)

	body := append(writeInt(int32(ResultKindRows)), rest...)
	out, _, err := RewriteResponse(session, Header{Opcode: OpCodeResult, Stream: 9}, body)
	require.NoError(t, err)

	_, offset, err := readInt(out, 0)
	require.NoError(t, err)
	parsed, err := ParseRowsResult(out[offset:])
	require.NoError(t, err)
	require.Len(t, parsed.Rows.Rows, 1)
}

func TestRewriteResponse_SchemaChangeEventDropsOtherTenant(t *testing.T) {
	session := NewSession()
	session.SetInternalToken([]byte("tttttttttttttttttttt"))

	var body []byte
	body = append(body, writeString("SCHEMA_CHANGE")...)
	body = append(body, writeString("UPDATED")...)
	body = append(body, writeString("uuuuuuuuuuuuuuuuuuuuother")...)
	body = append(body, writeString("table1")...)

	out, drop, err := RewriteResponse(session, Header{Opcode: OpCodeEvent}, body)
	require.NoError(t, err)
	require.True(t, drop)
	require.Nil(t, out)
}

func TestRewriteResponse_SchemaChangeEventForwardsOwnTenant(t *testing.T) {
	session := NewSession()
	session.SetInternalToken([]byte("tttttttttttttttttttt"))

	var body []byte
	body = append(body, writeString("SCHEMA_CHANGE")...)
	body = append(body, writeString("UPDATED")...)
	body = append(body, writeString("ttttttttttttttttttttapp")...)
	body = append(body, writeString("table1")...)

	out, drop, err := RewriteResponse(session, Header{Opcode: OpCodeEvent}, body)
	require.NoError(t, err)
	require.False(t, drop)

	_, offset, err := readString(out, 0)
	require.NoError(t, err)
	_, offset, err = readString(out, offset)
	require.NoError(t, err)
	keyspace, _, err := readString(out, offset)
	require.NoError(t, err)
	require.Equal(t, "app", keyspace)
}

func TestRewriteResponse_ErrorStripsTokenFromMessage(t *testing.T) {
	session := NewSession()
	session.SetInternalToken([]byte("tttttttttttttttttttt"))

	var body []byte
	body = append(body, writeInt(int32(ErrorCodeServer))...)
	body = append(body, writeString("ttttttttttttttttttttapp failed")...)

	out, _, err := RewriteResponse(session, Header{Opcode: OpCodeError}, body)
	require.NoError(t, err)

	_, offset, err := readInt(out, 0)
	require.NoError(t, err)
	message, _, err := readString(out, offset)
	require.NoError(t, err)
	require.Equal(t, "app failed", message)
}

func TestRewriteResponse_UnsupportedOpcodeFails(t *testing.T) {
	session := NewSession()
	_, _, err := RewriteResponse(session, Header{Opcode: OpCodeBatch}, nil)
	require.ErrorIs(t, err, ErrProtocol)
}
