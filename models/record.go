package models

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
)

// Bookkeeping field names added around the extracted cell values.
const (
	FieldScrapedAt      = "scraped_at"
	FieldSourceURL      = "source_url"
	FieldTableIndex     = "table_index"
	FieldRowIndex       = "row_index"
	FieldContainerIndex = "container_index"
	FieldContentIndex   = "content_index"
	FieldContent        = "content"
	FieldElementType    = "element_type"
	FieldElementClass   = "element_class"
	FieldDataSource     = "data_source"
	FieldLinks          = "links"
)

// LinksSuffix is appended to a column name to hold the links found in that cell.
const LinksSuffix = "_links"

// Link is an anchor found inside a cell, with its href resolved to an absolute URL.
type Link struct {
	Text string `json:"text"`
	URL  string `json:"url"`
}

// Record is one extracted tender row. Field order follows insertion order so
// that exports keep the column layout of the source table.
type Record struct {
	keys   []string
	values map[string]any
}

// NewRecord creates an empty record
func NewRecord() *Record {
	return &Record{values: make(map[string]any)}
}

// Set stores value under key. Overwriting keeps the key's original position.
func (r *Record) Set(key string, value any) {
	if r.values == nil {
		r.values = make(map[string]any)
	}
	if _, ok := r.values[key]; !ok {
		r.keys = append(r.keys, key)
	}
	r.values[key] = value
}

// Get returns the raw value stored under key
func (r *Record) Get(key string) (any, bool) {
	v, ok := r.values[key]
	return v, ok
}

// Text returns the string value of key, or "" when absent or not a string.
func (r *Record) Text(key string) string {
	s, _ := r.values[key].(string)
	return s
}

// Links returns the link list stored under key.
func (r *Record) Links(key string) []Link {
	l, _ := r.values[key].([]Link)
	return l
}

// Has reports whether key is present
func (r *Record) Has(key string) bool {
	_, ok := r.values[key]
	return ok
}

// Keys returns the field names in insertion order.
func (r *Record) Keys() []string {
	out := make([]string, len(r.keys))
	copy(out, r.keys)
	return out
}

func (r *Record) Len() int {
	return len(r.keys)
}

// HasText reports whether at least one string field is non-empty after trimming.
func (r *Record) HasText() bool {
	for _, k := range r.keys {
		if s, ok := r.values[k].(string); ok && strings.TrimSpace(s) != "" {
			return true
		}
	}
	return false
}

// Clone returns a shallow copy whose key order and values can be changed
// without affecting r.
func (r *Record) Clone() *Record {
	c := &Record{
		keys:   make([]string, len(r.keys)),
		values: make(map[string]any, len(r.values)),
	}
	copy(c.keys, r.keys)
	for k, v := range r.values {
		c.values[k] = v
	}
	return c
}

// JoinedText concatenates the string fields taken from the page, used for
// keyword matching. Bookkeeping fields such as source_url are left out.
func (r *Record) JoinedText() string {
	var b strings.Builder
	for _, k := range r.keys {
		if IsBookkeeping(k) {
			continue
		}
		if s, ok := r.values[k].(string); ok && s != "" {
			if b.Len() > 0 {
				b.WriteByte(' ')
			}
			b.WriteString(s)
		}
	}
	return b.String()
}

// MarshalJSON writes the record as a JSON object with keys in insertion order.
func (r *Record) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, k := range r.keys {
		if i > 0 {
			buf.WriteByte(',')
		}
		if err := encodeInto(&buf, k); err != nil {
			return nil, err
		}
		buf.WriteByte(':')
		if err := encodeInto(&buf, r.values[k]); err != nil {
			return nil, fmt.Errorf("failed to encode field %q: %w", k, err)
		}
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// encodeInto appends the JSON form of v to buf without HTML escaping, so
// query strings in URLs stay readable.
func encodeInto(buf *bytes.Buffer, v any) error {
	var tmp bytes.Buffer
	enc := json.NewEncoder(&tmp)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(v); err != nil {
		return err
	}
	buf.Write(bytes.TrimRight(tmp.Bytes(), "\n"))
	return nil
}

// UnmarshalJSON restores a record written by MarshalJSON. Link lists, string
// lists and integers come back with their Go types.
func (r *Record) UnmarshalJSON(data []byte) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()

	tok, err := dec.Token()
	if err != nil {
		return err
	}
	if d, ok := tok.(json.Delim); !ok || d != '{' {
		return fmt.Errorf("record must be a JSON object")
	}

	*r = Record{values: make(map[string]any)}
	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return err
		}
		key, ok := tok.(string)
		if !ok {
			return fmt.Errorf("unexpected key token %v", tok)
		}
		var raw json.RawMessage
		if err := dec.Decode(&raw); err != nil {
			return fmt.Errorf("failed to decode field %q: %w", key, err)
		}
		val, err := decodeValue(raw)
		if err != nil {
			return fmt.Errorf("failed to decode field %q: %w", key, err)
		}
		r.Set(key, val)
	}
	_, err = dec.Token()
	return err
}

func decodeValue(raw json.RawMessage) (any, error) {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 {
		return nil, nil
	}

	switch trimmed[0] {
	case '"':
		var s string
		err := json.Unmarshal(trimmed, &s)
		return s, err
	case '[':
		var items []json.RawMessage
		if err := json.Unmarshal(trimmed, &items); err != nil {
			return nil, err
		}
		if len(items) > 0 && bytes.HasPrefix(bytes.TrimSpace(items[0]), []byte("{")) {
			var links []Link
			err := json.Unmarshal(trimmed, &links)
			return links, err
		}
		var strs []string
		if err := json.Unmarshal(trimmed, &strs); err == nil {
			return strs, nil
		}
		var generic []any
		err := json.Unmarshal(trimmed, &generic)
		return generic, err
	case '{', 't', 'f', 'n':
		var v any
		err := json.Unmarshal(trimmed, &v)
		return v, err
	default:
		var n json.Number
		if err := json.Unmarshal(trimmed, &n); err != nil {
			return nil, err
		}
		if i, err := n.Int64(); err == nil {
			return int(i), nil
		}
		return n.Float64()
	}
}
