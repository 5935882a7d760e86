package gateway

import "fmt"

// Result-Set Metadata and Result Row Set, per spec.md §3. Only as much of
// the type system is decoded as is needed to walk past a column's
// type-specific payload to the next column - this gateway never
// interprets cell contents beyond the row filter's UTF-8 text columns.

const flagGlobalTablesSpec int32 = 0x0001

const (
	typeCustom uint16 = 0x0000
	typeList   uint16 = 0x0020
	typeMap    uint16 = 0x0021
	typeSet    uint16 = 0x0022
)

// maxTypeDepth bounds the recursive descent into list/map/set/custom
// payloads, per spec.md §3 ("recursive, bounded to depth 2 in this spec").
const maxTypeDepth = 2

// ColumnSpec describes one column of a Result-Set Metadata block.
type ColumnSpec struct {
	Keyspace string
	Table    string
	Name     string
	TypeCode uint16
}

// ResultMetadata is the parsed Result-Set Metadata block that precedes a
// Result Row Set.
type ResultMetadata struct {
	Flags          int32
	ColumnCount    int32
	GlobalKeyspace string
	GlobalTable    string
	Columns        []ColumnSpec

	// end is the offset in the source buffer immediately after this
	// metadata block, i.e. where the row set begins.
	end int
}

// skipColumnType reads a 2-byte type code at offset and returns the
// offset just past its type-specific payload (if any), recursing into
// nested element types for list/map/set and the class name for custom.
func skipColumnType(buf []byte, offset int, depth int) (uint16, int, error) {
	if depth > maxTypeDepth {
		return 0, 0, fmt.Errorf("column type nesting exceeds depth %d", maxTypeDepth)
	}
	code, next, err := readShort(buf, offset)
	if err != nil {
		return 0, 0, fmt.Errorf("could not read type code: %w", err)
	}
	typeCode := uint16(code)
	switch typeCode {
	case typeCustom:
		_, next, err = readString(buf, next)
		if err != nil {
			return 0, 0, fmt.Errorf("could not read custom type class name: %w", err)
		}
	case typeList, typeSet:
		_, next, err = skipColumnType(buf, next, depth+1)
		if err != nil {
			return 0, 0, err
		}
	case typeMap:
		_, next, err = skipColumnType(buf, next, depth+1)
		if err != nil {
			return 0, 0, err
		}
		_, next, err = skipColumnType(buf, next, depth+1)
		if err != nil {
			return 0, 0, err
		}
	}
	return typeCode, next, nil
}

// parseResultMetadata parses a Result-Set Metadata block starting at
// offset, returning the metadata and the offset just past it.
func parseResultMetadata(buf []byte, offset int) (*ResultMetadata, error) {
	flags, offset, err := readInt(buf, offset)
	if err != nil {
		return nil, fmt.Errorf("could not read metadata flags: %w", err)
	}
	columnCount, offset, err := readInt(buf, offset)
	if err != nil {
		return nil, fmt.Errorf("could not read column count: %w", err)
	}
	m := &ResultMetadata{Flags: flags, ColumnCount: columnCount}

	global := flags&flagGlobalTablesSpec != 0
	if global {
		m.GlobalKeyspace, offset, err = readString(buf, offset)
		if err != nil {
			return nil, fmt.Errorf("could not read global keyspace: %w", err)
		}
		m.GlobalTable, offset, err = readString(buf, offset)
		if err != nil {
			return nil, fmt.Errorf("could not read global table: %w", err)
		}
	}

	m.Columns = make([]ColumnSpec, 0, columnCount)
	for i := int32(0); i < columnCount; i++ {
		col := ColumnSpec{Keyspace: m.GlobalKeyspace, Table: m.GlobalTable}
		if !global {
			col.Keyspace, offset, err = readString(buf, offset)
			if err != nil {
				return nil, fmt.Errorf("could not read column %d keyspace: %w", i, err)
			}
			col.Table, offset, err = readString(buf, offset)
			if err != nil {
				return nil, fmt.Errorf("could not read column %d table: %w", i, err)
			}
		}
		col.Name, offset, err = readString(buf, offset)
		if err != nil {
			return nil, fmt.Errorf("could not read column %d name: %w", i, err)
		}
		col.TypeCode, offset, err = skipColumnType(buf, offset, 1)
		if err != nil {
			return nil, fmt.Errorf("could not read column %d type: %w", i, err)
		}
		m.Columns = append(m.Columns, col)
	}
	m.end = offset
	return m, nil
}

// Row is one row of a Result Row Set; a nil cell represents a CQL null.
type Row struct {
	Cells [][]byte
}

// RowSet is the parsed Result Row Set that follows a Result-Set Metadata
// block in a RESULT/Rows body.
type RowSet struct {
	Rows []Row
}

// parseRowSet parses a Result Row Set starting at offset, given the
// column count from the preceding metadata.
func parseRowSet(buf []byte, offset int, columnCount int) (*RowSet, error) {
	rowCount, offset, err := readInt(buf, offset)
	if err != nil {
		return nil, fmt.Errorf("could not read row count: %w", err)
	}
	rs := &RowSet{Rows: make([]Row, 0, rowCount)}
	for r := int32(0); r < rowCount; r++ {
		row := Row{Cells: make([][]byte, columnCount)}
		for c := 0; c < columnCount; c++ {
			length, next, err := readInt(buf, offset)
			if err != nil {
				return nil, fmt.Errorf("could not read row %d cell %d length: %w", r, c, err)
			}
			offset = next
			if length < 0 {
				row.Cells[c] = nil
				continue
			}
			if offset+int(length) > len(buf) {
				return nil, fmt.Errorf("row %d cell %d declares %d bytes past end of body", r, c, length)
			}
			row.Cells[c] = buf[offset : offset+int(length)]
			offset += int(length)
		}
		rs.Rows = append(rs.Rows, row)
	}
	return rs, nil
}

// encode serializes the row set back to wire form.
func (rs *RowSet) encode() []byte {
	out := writeInt(int32(len(rs.Rows)))
	for _, row := range rs.Rows {
		for _, cell := range row.Cells {
			if cell == nil {
				out = append(out, writeInt(-1)...)
				continue
			}
			out = append(out, writeInt(int32(len(cell)))...)
			out = append(out, cell...)
		}
	}
	return out
}

// ParsedRowsResult is a RESULT/Rows body split into its metadata block
// (kept verbatim; this path never rewrites it, per spec.md §9's open
// question) and its parsed row set.
type ParsedRowsResult struct {
	Metadata      *ResultMetadata
	MetadataBytes []byte
	Rows          *RowSet
}

// ParseRowsResult parses a RESULT/Rows body: a 4-byte kind (already
// consumed by the caller and not included in body) followed by Result-Set
// Metadata and a Result Row Set.
func ParseRowsResult(body []byte) (*ParsedRowsResult, error) {
	metadata, err := parseResultMetadata(body, 0)
	if err != nil {
		return nil, fmt.Errorf("could not parse rows metadata: %w", err)
	}
	rows, err := parseRowSet(body, metadata.end, len(metadata.Columns))
	if err != nil {
		return nil, fmt.Errorf("could not parse row set: %w", err)
	}
	return &ParsedRowsResult{
		Metadata:      metadata,
		MetadataBytes: body[:metadata.end],
		Rows:          rows,
	}, nil
}

// Encode rebuilds a RESULT/Rows body (excluding the kind field) from the
// original metadata bytes and the (possibly filtered) row set.
func (p *ParsedRowsResult) Encode() []byte {
	out := make([]byte, 0, len(p.MetadataBytes)+16)
	out = append(out, p.MetadataBytes...)
	out = append(out, p.Rows.encode()...)
	return out
}

// ColumnIndex returns the index of the named column, or -1 if absent.
func (m *ResultMetadata) ColumnIndex(name string) int {
	for i, c := range m.Columns {
		if c.Name == name {
			return i
		}
	}
	return -1
}

// ParsedPreparedResult is a RESULT/Prepared body: the opaque id the
// upstream assigned, plus the bound-variables metadata block that
// follows it (advanced over but never rewritten, per spec.md §4.3).
type ParsedPreparedResult struct {
	PreparedID []byte
	Metadata   *ResultMetadata
}

// ParsePreparedResult parses a RESULT/Prepared body (excluding the
// 4-byte kind field): a short-length-prefixed opaque id, then a
// Result-Set Metadata block describing the bound variables.
func ParsePreparedResult(body []byte) (*ParsedPreparedResult, error) {
	id, offset, err := readShortBytes(body, 0)
	if err != nil {
		return nil, fmt.Errorf("could not read prepared id: %w", err)
	}

	metadata, err := parseResultMetadata(body, offset)
	if err != nil {
		return nil, fmt.Errorf("could not parse prepared variables metadata: %w", err)
	}
	return &ParsedPreparedResult{PreparedID: id, Metadata: metadata}, nil
}
