package gateway

import "strings"

// PrivilegedTable identifies a (keyspace, table) pair whose rows may
// expose cross-tenant information and are subject to the Row Filter
// (spec.md §4.3, "Privileged tables").
type PrivilegedTable struct {
	Keyspace string
	Table    string
}

var privilegedTables = []PrivilegedTable{
	{Keyspace: "system", Table: "schema_keyspaces"},
	{Keyspace: "system", Table: "schema_columnfamilies"},
	{Keyspace: "system", Table: "schema_columns"},
	{Keyspace: "system_auth", Table: "users"},
}

// IsPrivileged reports whether (keyspace, table) is one of the tables
// subject to row-level filtering.
func IsPrivileged(keyspace, table string) bool {
	for _, p := range privilegedTables {
		if p.Keyspace == keyspace && p.Table == table {
			return true
		}
	}
	return false
}

// openMetadataNamespaces are keyspaces whose contents are safe to expose
// verbatim to any tenant (spec.md §4.3.1).
var openMetadataNamespaces = map[string]bool{
	"system":        true,
	"system_auth":   true,
	"system_traces": true,
}

// importantRowFilterColumns are the columns whose content decides a
// row's fate (spec.md §4.3.1).
var importantRowFilterColumns = map[string]bool{
	"keyspace_name": true,
	"name":          true,
}

// FilterRows applies the Row Filter (spec.md §4.3.1) in place, keeping
// only rows that belong to internalToken's tenant or name an
// open-metadata namespace.
//
// spec.md §9 open question 2 describes the source's restricted-namespace
// check as a documented bug (case-sensitive substring against a single
// literal) without naming what that literal actually is. Concrete
// scenario 4 drops a row naming a distinct other tenant's prefixed
// keyspace, which a single fixed literal cannot match - so this
// implementation resolves the question by treating every cell that
// fails the keep check as a drop vote, with no separate restricted-name
// comparison. That reading is exact for every case the spec gives and
// does not depend on an unnamed configuration value.
func FilterRows(rows *RowSet, metadata *ResultMetadata, internalToken []byte) {
	importantCols := make([]int, 0, 2)
	for i, c := range metadata.Columns {
		if importantRowFilterColumns[c.Name] {
			importantCols = append(importantCols, i)
		}
	}
	if len(importantCols) == 0 {
		return
	}

	token := string(internalToken)

	kept := rows.Rows[:0]
	for _, row := range rows.Rows {
		if rowKeepVote(row, importantCols, token) {
			kept = append(kept, row)
		}
	}
	rows.Rows = kept
}

// rowKeepVote applies the keep/drop rule across a row's important
// cells: a single drop vote on any of them removes the whole row.
func rowKeepVote(row Row, importantCols []int, token string) bool {
	for _, idx := range importantCols {
		if idx >= len(row.Cells) || row.Cells[idx] == nil {
			continue
		}
		text := string(row.Cells[idx])
		if strings.Contains(text, token) {
			continue
		}
		if openMetadataNamespaces[strings.ToLower(text)] {
			continue
		}
		return false
	}
	return true
}
