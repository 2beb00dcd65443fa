package model

import (
	"bytes"
	"encoding/json"
)

// ResultSet maps requested tag kinds to their records.
//
// Keys keep the order in which they were first set, which is the order
// the tag kinds were requested. A kind that matched nothing maps to an
// empty, non-nil slice. A failed run yields a ResultSet with no keys.
type ResultSet struct {
	kinds   []string
	records map[string][]Record
}

// NewResultSet creates an empty ResultSet.
func NewResultSet() *ResultSet {
	return &ResultSet{
		kinds:   make([]string, 0),
		records: make(map[string][]Record),
	}
}

// Set stores the records for a tag kind. Setting an existing kind replaces
// its records without changing its position.
func (rs *ResultSet) Set(kind string, records []Record) {
	if records == nil {
		records = make([]Record, 0)
	}
	if _, ok := rs.records[kind]; !ok {
		rs.kinds = append(rs.kinds, kind)
	}
	rs.records[kind] = records
}

// Get returns the records for a tag kind and whether the kind is present.
func (rs *ResultSet) Get(kind string) ([]Record, bool) {
	if rs == nil {
		return nil, false
	}
	records, ok := rs.records[kind]
	return records, ok
}

// Kinds returns the tag kinds in insertion order.
func (rs *ResultSet) Kinds() []string {
	if rs == nil {
		return nil
	}
	out := make([]string, len(rs.kinds))
	copy(out, rs.kinds)
	return out
}

// Len returns the number of tag kinds.
func (rs *ResultSet) Len() int {
	if rs == nil {
		return 0
	}
	return len(rs.kinds)
}

// Total returns the number of records across all tag kinds.
func (rs *ResultSet) Total() int {
	if rs == nil {
		return 0
	}
	total := 0
	for _, records := range rs.records {
		total += len(records)
	}
	return total
}

// IsEmpty reports whether the ResultSet has no tag kinds at all.
func (rs *ResultSet) IsEmpty() bool {
	return rs.Len() == 0
}

// MarshalJSON encodes the ResultSet as an object whose keys follow
// insertion order.
func (rs *ResultSet) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, kind := range rs.Kinds() {
		if i > 0 {
			buf.WriteByte(',')
		}
		key, err := marshalUnescaped(kind)
		if err != nil {
			return nil, err
		}
		buf.Write(key)
		buf.WriteByte(':')

		records, _ := rs.Get(kind)
		value, err := marshalUnescaped(records)
		if err != nil {
			return nil, err
		}
		buf.Write(value)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// UnmarshalJSON decodes an object of tag kind -> records, keeping the key
// order of the input.
func (rs *ResultSet) UnmarshalJSON(data []byte) error {
	dec := json.NewDecoder(bytes.NewReader(data))

	// Opening brace.
	if _, err := dec.Token(); err != nil {
		return err
	}

	fresh := NewResultSet()
	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return err
		}
		kind, _ := tok.(string)

		var records []Record
		if err := dec.Decode(&records); err != nil {
			return err
		}
		fresh.Set(kind, records)
	}

	*rs = *fresh
	return nil
}
