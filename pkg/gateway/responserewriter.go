package gateway

import (
	"fmt"
	"strings"
)

// RewriteResponse dispatches an upstream response body by opcode, per
// spec.md §4.3. It returns the rewritten body and whether the packet
// should be dropped silently (only possible for an out-of-tenant
// SCHEMA_CHANGE event). Session state reads are taken under the lock
// inside Session's own methods.
//
// ERROR and RESULT are the only opcodes that carry a client-assigned
// stream id correlated with a request, so they are the only ones that
// can be the "correlated response" invariant 3 (spec.md §3) talks
// about: the interesting flag set on a request stream is consulted and
// cleared here, once, regardless of which kind of RESULT (or ERROR)
// comes back, not just when it happens to be rows. EVENT carries no
// request-correlated stream - it is an unsolicited server push - so it
// never touches the interesting set.
func RewriteResponse(session *Session, header Header, body []byte) (out []byte, drop bool, err error) {
	switch header.Opcode {
	case OpCodeError:
		session.TakeInteresting(header.Stream)
		out, err = rewriteErrorResponse(session, body)
	case OpCodeResult:
		interesting := session.TakeInteresting(header.Stream)
		out, err = rewriteResultResponse(session, interesting, body)
	case OpCodeEvent:
		out, drop, err = rewriteEventResponse(session, body)
	case OpCodeReady, OpCodeSupported, OpCodeAuthenticate:
		out = body
	default:
		err = fmt.Errorf("%w: unsupported response opcode %s", ErrProtocol, header.Opcode)
	}
	return out, drop, err
}

func rewriteErrorResponse(session *Session, body []byte) ([]byte, error) {
	token, ok := session.InternalToken()
	if !ok {
		return body, nil
	}
	out, err := RewriteErrorBody(body, token)
	if err != nil {
		return nil, fmt.Errorf("%w: malformed error body: %v", ErrServer, err)
	}
	return out, nil
}

func rewriteResultResponse(session *Session, interesting bool, body []byte) ([]byte, error) {
	kind, offset, err := readInt(body, 0)
	if err != nil {
		return nil, fmt.Errorf("%w: could not read result kind: %v", ErrServer, err)
	}
	rest := body[offset:]

	switch ResultKind(kind) {
	case ResultKindSetKeyspace:
		return rewriteSetKeyspaceResult(session, kind, rest)
	case ResultKindSchemaChange:
		return rewriteSchemaChangeResult(session, kind, rest)
	case ResultKindPrepared:
		return rewritePreparedResult(session, kind, rest)
	case ResultKindRows:
		return rewriteRowsResult(session, interesting, kind, rest)
	default:
		// ResultKindVoid and any other kind carry no tenant-visible
		// identifiers and are forwarded unmodified.
		return body, nil
	}
}

func rewriteSetKeyspaceResult(session *Session, kind int32, rest []byte) ([]byte, error) {
	keyspace, _, err := readString(rest, 0)
	if err != nil {
		return nil, fmt.Errorf("%w: could not read set-keyspace result: %v", ErrServer, err)
	}
	token, _ := session.InternalToken()
	keyspace = strings.TrimPrefix(keyspace, string(token))

	out := writeInt(kind)
	out = append(out, writeString(keyspace)...)
	return out, nil
}

func rewriteSchemaChangeResult(session *Session, kind int32, rest []byte) ([]byte, error) {
	change, offset, err := readString(rest, 0)
	if err != nil {
		return nil, fmt.Errorf("%w: could not read schema-change result: %v", ErrServer, err)
	}
	keyspace, offset, err := readString(rest, offset)
	if err != nil {
		return nil, fmt.Errorf("%w: could not read schema-change keyspace: %v", ErrServer, err)
	}
	table, _, err := readString(rest, offset)
	if err != nil {
		return nil, fmt.Errorf("%w: could not read schema-change table: %v", ErrServer, err)
	}

	token, _ := session.InternalToken()
	keyspace = strings.TrimPrefix(keyspace, string(token))

	out := writeInt(kind)
	out = append(out, writeString(change)...)
	out = append(out, writeString(keyspace)...)
	out = append(out, writeString(table)...)
	return out, nil
}

func rewritePreparedResult(session *Session, kind int32, rest []byte) ([]byte, error) {
	token, _ := session.InternalToken()
	parsed, err := ParsePreparedResult(rest)
	if err != nil {
		return nil, fmt.Errorf("%w: could not parse prepared result: %v", ErrServer, err)
	}
	session.PreparedOwners().Record(parsed.PreparedID, token)

	// Metadata (bound-variable keyspace/table strings) is advanced over
	// only, never rewritten, per spec.md §4.3 and §9's open question 1.
	out := writeInt(kind)
	out = append(out, rest...)
	return out, nil
}

func rewriteRowsResult(session *Session, interesting bool, kind int32, rest []byte) ([]byte, error) {
	parsed, err := ParseRowsResult(rest)
	if err != nil {
		return nil, fmt.Errorf("%w: could not parse rows result: %v", ErrServer, err)
	}

	if interesting {
		keyspace, table := resultMetadataTable(parsed.Metadata)
		if IsPrivileged(keyspace, table) {
			token, _ := session.InternalToken()
			FilterRows(parsed.Rows, parsed.Metadata, token)
		}
	}

	out := writeInt(kind)
	out = append(out, parsed.Encode()...)
	return out, nil
}

// resultMetadataTable returns the (keyspace, table) a rows result's
// metadata describes, preferring the global-tables-spec pair and
// falling back to the first column's, since every privileged table
// query in this gateway selects from exactly one table.
func resultMetadataTable(m *ResultMetadata) (string, string) {
	if m.GlobalKeyspace != "" || m.GlobalTable != "" {
		return m.GlobalKeyspace, m.GlobalTable
	}
	if len(m.Columns) > 0 {
		return m.Columns[0].Keyspace, m.Columns[0].Table
	}
	return "", ""
}

func rewriteEventResponse(session *Session, body []byte) ([]byte, bool, error) {
	eventType, offset, err := readString(body, 0)
	if err != nil {
		return nil, false, fmt.Errorf("%w: could not read event type: %v", ErrServer, err)
	}
	if eventType != "SCHEMA_CHANGE" {
		return body, false, nil
	}

	change, offset, err := readString(body, offset)
	if err != nil {
		return nil, false, fmt.Errorf("%w: could not read schema-change event: %v", ErrServer, err)
	}
	keyspace, offset, err := readString(body, offset)
	if err != nil {
		return nil, false, fmt.Errorf("%w: could not read schema-change event keyspace: %v", ErrServer, err)
	}
	table, _, err := readString(body, offset)
	if err != nil {
		return nil, false, fmt.Errorf("%w: could not read schema-change event table: %v", ErrServer, err)
	}

	token, _ := session.InternalToken()
	if !strings.HasPrefix(keyspace, string(token)) {
		return nil, true, nil
	}
	keyspace = strings.TrimPrefix(keyspace, string(token))

	out := writeString(eventType)
	out = append(out, writeString(change)...)
	out = append(out, writeString(keyspace)...)
	out = append(out, writeString(table)...)
	return out, false, nil
}
