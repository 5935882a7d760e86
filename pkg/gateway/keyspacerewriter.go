package gateway

import "strings"

// This rewriter is a hand-written tokenizer rather than a regular
// expression, per the design note in spec.md §9: CQL statements can be
// arbitrarily long and a backtracking regex over keyword contexts is a
// pathological-case risk, and quoted-identifier handling needs to be
// exact rather than approximate.

type statementToken struct {
	raw    string
	isWord bool
}

func isSeparatorByte(c byte) bool {
	switch c {
	case ' ', '\t', '\n', '\r', ';':
		return true
	default:
		return false
	}
}

// scanWord advances past one word starting at i, treating quoted runs
// (single or double quotes) as opaque - whitespace inside a quote does
// not end the word, matching CQL's quoted-identifier and string-literal
// syntax.
func scanWord(s string, i int) int {
	j := i
	for j < len(s) {
		c := s[j]
		if c == '"' || c == '\'' {
			quote := c
			j++
			for j < len(s) && s[j] != quote {
				j++
			}
			if j < len(s) {
				j++ // consume closing quote
			}
			continue
		}
		if isSeparatorByte(c) {
			break
		}
		j++
	}
	return j
}

// tokenizeStatement splits s into a sequence of tokens that together
// reconstruct s exactly when their raw text is concatenated in order.
func tokenizeStatement(s string) []statementToken {
	var tokens []statementToken
	i := 0
	for i < len(s) {
		c := s[i]
		if isSeparatorByte(c) {
			j := i + 1
			for j < len(s) && isSeparatorByte(s[j]) {
				j++
			}
			tokens = append(tokens, statementToken{raw: s[i:j], isWord: false})
			i = j
			continue
		}
		j := scanWord(s, i)
		if j == i {
			// defensive: never loop forever on an unexpected byte
			j = i + 1
		}
		tokens = append(tokens, statementToken{raw: s[i:j], isWord: true})
		i = j
	}
	return tokens
}

func unquoteIdentifier(s string) string {
	if len(s) >= 2 && (s[0] == '"' || s[0] == '\'') && s[len(s)-1] == s[0] {
		return s[1 : len(s)-1]
	}
	return s
}

func isSystemLike(name string) bool {
	lower := strings.ToLower(unquoteIdentifier(name))
	return lower == "system" || strings.HasPrefix(lower, "system_")
}

// splitTrailingParen separates a word like `tbl(col1,col2)` into the
// identifier and the untouched remainder, so INSERT INTO/column-list
// syntax isn't swallowed into the identifier we prefix.
func splitTrailingParen(raw string) (ident, rest string) {
	i := 0
	for i < len(raw) {
		c := raw[i]
		if c == '"' || c == '\'' {
			quote := c
			i++
			for i < len(raw) && raw[i] != quote {
				i++
			}
			if i < len(raw) {
				i++
			}
			continue
		}
		if c == '(' {
			return raw[:i], raw[i:]
		}
		i++
	}
	return raw, ""
}

// splitQualified splits `ks.tbl` style words at the first unquoted dot.
func splitQualified(raw string) (qualifier string, hasDot bool, rest string) {
	i := 0
	for i < len(raw) {
		c := raw[i]
		if c == '"' || c == '\'' {
			quote := c
			i++
			for i < len(raw) && raw[i] != quote {
				i++
			}
			if i < len(raw) {
				i++
			}
			continue
		}
		if c == '.' {
			return raw[:i], true, raw[i+1:]
		}
		i++
	}
	return raw, false, ""
}

// prefixIdentifierPart prepends prefix to the identifier, placing it
// inside quotes when the identifier is quoted (spec.md §4.2.1), and is
// a no-op if the identifier is already prefixed (idempotence, spec.md §8).
func prefixIdentifierPart(part, prefix string) string {
	if len(part) >= 2 && (part[0] == '"' || part[0] == '\'') && part[len(part)-1] == part[0] {
		inner := part[1 : len(part)-1]
		if strings.HasPrefix(inner, prefix) {
			return part
		}
		quote := string(part[0])
		return quote + prefix + inner + quote
	}
	if strings.HasPrefix(part, prefix) {
		return part
	}
	return prefix + part
}

// rewriteWhole prefixes an unqualified name (USE, KEYSPACE/SCHEMA,
// USER/TO/OF), skipping system-like names entirely.
func rewriteWhole(raw, prefix string) string {
	ident, trailing := splitTrailingParen(raw)
	if isSystemLike(ident) {
		return raw
	}
	return prefixIdentifierPart(ident, prefix) + trailing
}

// rewriteQualifierOnly prefixes the keyspace qualifier of `ks.tbl` but
// leaves an unqualified identifier untouched (FROM, TABLE, ON).
func rewriteQualifierOnly(raw, prefix string) string {
	ident, trailing := splitTrailingParen(raw)
	qualifier, hasDot, rest := splitQualified(ident)
	if !hasDot {
		return raw
	}
	if isSystemLike(qualifier) {
		return raw
	}
	return prefixIdentifierPart(qualifier, prefix) + "." + rest + trailing
}

// rewriteQualifierOrWhole prefixes the keyspace qualifier when present,
// else the bare table name (INTO, UPDATE), per spec.md §4.2.1.
func rewriteQualifierOrWhole(raw, prefix string) string {
	ident, trailing := splitTrailingParen(raw)
	qualifier, hasDot, rest := splitQualified(ident)
	if hasDot {
		if isSystemLike(qualifier) {
			return raw
		}
		return prefixIdentifierPart(qualifier, prefix) + "." + rest + trailing
	}
	if isSystemLike(ident) {
		return raw
	}
	return prefixIdentifierPart(ident, prefix) + trailing
}

// copySepsAndOneWord copies separators verbatim up to the next word
// token, transforms that word, writes it, and returns the index past it.
func copySepsAndOneWord(tokens []statementToken, i int, out *strings.Builder, transform func(string) string) int {
	n := len(tokens)
	for i < n && !tokens[i].isWord {
		out.WriteString(tokens[i].raw)
		i++
	}
	if i >= n {
		return i
	}
	out.WriteString(transform(tokens[i].raw))
	return i + 1
}

var optionalKeywords = map[string]bool{"IF": true, "NOT": true, "EXISTS": true}

// skipOptionalIfExists copies through an optional `IF [NOT] EXISTS`
// clause verbatim, stopping right before the real target identifier.
func skipOptionalIfExists(tokens []statementToken, i int, out *strings.Builder) int {
	n := len(tokens)
	for {
		j := i
		for j < n && !tokens[j].isWord {
			j++
		}
		if j >= n || !optionalKeywords[strings.ToUpper(tokens[j].raw)] {
			return i
		}
		for i <= j {
			out.WriteString(tokens[i].raw)
			i++
		}
	}
}

// RewriteKeyspacePrefix applies the context table in spec.md §4.2.1,
// prefixing every tenant-owned keyspace/user reference with
// internalToken and reporting whether the statement touches server
// metadata and must be flagged interesting for row filtering.
func RewriteKeyspacePrefix(statement string, internalToken []byte) (rewritten string, interesting bool) {
	prefix := string(internalToken)
	tokens := tokenizeStatement(statement)

	for _, t := range tokens {
		if !t.isWord {
			continue
		}
		name := strings.ToLower(unquoteIdentifier(t.raw))
		for _, part := range strings.Split(name, ".") {
			if part == "system" || part == "permissions" || part == "users" {
				interesting = true
			}
		}
	}

	var out strings.Builder
	n := len(tokens)
	i := 0
	for i < n {
		t := tokens[i]
		if !t.isWord {
			out.WriteString(t.raw)
			i++
			continue
		}
		switch strings.ToUpper(t.raw) {
		case "USE":
			out.WriteString(t.raw)
			i++
			i = copySepsAndOneWord(tokens, i, &out, func(raw string) string { return rewriteWhole(raw, prefix) })
		case "FROM":
			out.WriteString(t.raw)
			i++
			i = copySepsAndOneWord(tokens, i, &out, func(raw string) string { return rewriteQualifierOnly(raw, prefix) })
		case "INTO", "UPDATE":
			out.WriteString(t.raw)
			i++
			i = copySepsAndOneWord(tokens, i, &out, func(raw string) string { return rewriteQualifierOrWhole(raw, prefix) })
		case "TABLE", "ON":
			out.WriteString(t.raw)
			i++
			i = skipOptionalIfExists(tokens, i, &out)
			i = copySepsAndOneWord(tokens, i, &out, func(raw string) string { return rewriteQualifierOnly(raw, prefix) })
		case "KEYSPACE", "SCHEMA":
			out.WriteString(t.raw)
			i++
			i = skipOptionalIfExists(tokens, i, &out)
			i = copySepsAndOneWord(tokens, i, &out, func(raw string) string { return rewriteWhole(raw, prefix) })
		case "USER":
			out.WriteString(t.raw)
			i++
			i = skipOptionalIfExists(tokens, i, &out)
			i = copySepsAndOneWord(tokens, i, &out, func(raw string) string { return rewriteWhole(raw, prefix) })
		case "TO", "OF":
			out.WriteString(t.raw)
			i++
			i = copySepsAndOneWord(tokens, i, &out, func(raw string) string { return rewriteWhole(raw, prefix) })
		default:
			out.WriteString(t.raw)
			i++
		}
	}
	return out.String(), interesting
}
