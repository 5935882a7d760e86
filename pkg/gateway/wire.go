package gateway

import (
	"encoding/binary"
	"fmt"
)

// The primitives below decode/encode the subset of the wire format that
// request and response rewriting needs to touch: short (2-byte) length
// prefixed strings, string maps (spec.md §3), and signed 4-byte cell
// lengths used by the result row set. They operate on byte slices with
// an explicit offset rather than an io.Reader, since rewriting needs to
// slice and splice bodies in place.

func readShort(buf []byte, offset int) (int, int, error) {
	if offset+2 > len(buf) {
		return 0, 0, fmt.Errorf("truncated short at offset %d", offset)
	}
	return int(binary.BigEndian.Uint16(buf[offset : offset+2])), offset + 2, nil
}

func writeShort(v int) []byte {
	buf := make([]byte, 2)
	binary.BigEndian.PutUint16(buf, uint16(v))
	return buf
}

func readInt(buf []byte, offset int) (int32, int, error) {
	if offset+4 > len(buf) {
		return 0, 0, fmt.Errorf("truncated int at offset %d", offset)
	}
	return int32(binary.BigEndian.Uint32(buf[offset : offset+4])), offset + 4, nil
}

func writeInt(v int32) []byte {
	buf := make([]byte, 4)
	binary.BigEndian.PutUint32(buf, uint32(v))
	return buf
}

// readString reads a [short length][UTF-8 bytes] string starting at offset.
func readString(buf []byte, offset int) (string, int, error) {
	length, next, err := readShort(buf, offset)
	if err != nil {
		return "", 0, err
	}
	if next+length > len(buf) {
		return "", 0, fmt.Errorf("truncated string at offset %d (want %d bytes)", offset, length)
	}
	return string(buf[next : next+length]), next + length, nil
}

func writeString(s string) []byte {
	out := make([]byte, 0, 2+len(s))
	out = append(out, writeShort(len(s))...)
	out = append(out, []byte(s)...)
	return out
}

// readLongString reads a [4-byte length][UTF-8 bytes] string starting at
// offset - the encoding CQL uses for query and statement text, as
// opposed to the short-length-prefixed strings of a string map.
func readLongString(buf []byte, offset int) (string, int, error) {
	length, next, err := readInt(buf, offset)
	if err != nil {
		return "", 0, err
	}
	if length < 0 || next+int(length) > len(buf) {
		return "", 0, fmt.Errorf("truncated long string at offset %d (want %d bytes)", offset, length)
	}
	return string(buf[next : next+int(length)]), next + int(length), nil
}

func writeLongString(s string) []byte {
	out := make([]byte, 0, 4+len(s))
	out = append(out, writeInt(int32(len(s)))...)
	out = append(out, []byte(s)...)
	return out
}

// readShortBytes reads a [short length][opaque bytes] value starting at
// offset - the encoding used for prepared-statement ids.
func readShortBytes(buf []byte, offset int) ([]byte, int, error) {
	length, next, err := readShort(buf, offset)
	if err != nil {
		return nil, 0, err
	}
	if next+length > len(buf) {
		return nil, 0, fmt.Errorf("truncated short bytes at offset %d (want %d bytes)", offset, length)
	}
	return buf[next : next+length], next + length, nil
}

// StringMapEntry is one key/value pair of a string map, preserving
// insertion order so re-serialization is deterministic.
type StringMapEntry struct {
	Key   string
	Value string
}

// StringMap is an ordered string-to-string map as defined in spec.md §3.
type StringMap struct {
	Entries []StringMapEntry
}

// Get returns the value for key and whether it was present.
func (m *StringMap) Get(key string) (string, bool) {
	for _, e := range m.Entries {
		if e.Key == key {
			return e.Value, true
		}
	}
	return "", false
}

// Set overwrites the value for an existing key, or appends a new entry.
func (m *StringMap) Set(key, value string) {
	for i, e := range m.Entries {
		if e.Key == key {
			m.Entries[i].Value = value
			return
		}
	}
	m.Entries = append(m.Entries, StringMapEntry{Key: key, Value: value})
}

// Delete removes an entry by key, if present.
func (m *StringMap) Delete(key string) {
	for i, e := range m.Entries {
		if e.Key == key {
			m.Entries = append(m.Entries[:i], m.Entries[i+1:]...)
			return
		}
	}
}

// readStringMap parses a whole string map from the start of buf.
func readStringMap(buf []byte) (*StringMap, error) {
	count, offset, err := readShort(buf, 0)
	if err != nil {
		return nil, fmt.Errorf("could not read string map count: %w", err)
	}
	m := &StringMap{Entries: make([]StringMapEntry, 0, count)}
	for i := 0; i < count; i++ {
		var key, value string
		key, offset, err = readString(buf, offset)
		if err != nil {
			return nil, fmt.Errorf("could not read string map key %d: %w", i, err)
		}
		value, offset, err = readString(buf, offset)
		if err != nil {
			return nil, fmt.Errorf("could not read string map value %d: %w", i, err)
		}
		m.Entries = append(m.Entries, StringMapEntry{Key: key, Value: value})
	}
	return m, nil
}

// encode serializes the string map back to wire form.
func (m *StringMap) encode() []byte {
	out := make([]byte, 0, 2+len(m.Entries)*8)
	out = append(out, writeShort(len(m.Entries))...)
	for _, e := range m.Entries {
		out = append(out, writeString(e.Key)...)
		out = append(out, writeString(e.Value)...)
	}
	return out
}
