package pylock

import (
	"fmt"
	"sort"

	"github.com/BurntSushi/toml"
)

// Table is a TOML table whose key order is significant. Values are one of
// string, int64, float64, bool, time.Time, []any or *Table.
type Table struct {
	keys []string
	vals map[string]any

	// explicit [[key]] arrays, as opposed to inline arrays holding tables
	arrayTables map[string]bool
}

func NewTable() *Table {
	return &Table{vals: map[string]any{}}
}

func (t *Table) Len() int {
	return len(t.keys)
}

// Keys returns the keys in document order. The returned slice must not be
// modified.
func (t *Table) Keys() []string {
	return t.keys
}

func (t *Table) Get(key string) (any, bool) {
	v, ok := t.vals[key]
	return v, ok
}

func (t *Table) Has(key string) bool {
	_, ok := t.vals[key]
	return ok
}

// Set updates the value for key, keeping its existing position. New keys are
// appended.
func (t *Table) Set(key string, value any) {
	if _, ok := t.vals[key]; !ok {
		t.keys = append(t.keys, key)
	}
	t.vals[key] = value
}

func (t *Table) Delete(key string) {
	if _, ok := t.vals[key]; !ok {
		return
	}
	delete(t.vals, key)
	for i, k := range t.keys {
		if k == key {
			t.keys = append(t.keys[:i], t.keys[i+1:]...)
			break
		}
	}
}

func (t *Table) markArrayTable(key string) {
	if t.arrayTables == nil {
		t.arrayTables = map[string]bool{}
	}
	t.arrayTables[key] = true
}

func (t *Table) isArrayTable(key string) bool {
	return t.arrayTables[key]
}

// GetString returns the string value for key, or "" if the key is absent or
// not a string.
func (t *Table) GetString(key string) string {
	s, _ := t.vals[key].(string)
	return s
}

func (t *Table) GetTable(key string) *Table {
	sub, _ := t.vals[key].(*Table)
	return sub
}

// tableArray returns the value for key as a slice of tables, or nil if the
// key is absent or holds anything else.
func (t *Table) tableArray(key string) []*Table {
	arr, ok := t.vals[key].([]any)
	if !ok {
		return nil
	}
	out := make([]*Table, 0, len(arr))
	for _, el := range arr {
		sub, ok := el.(*Table)
		if !ok {
			return nil
		}
		out = append(out, sub)
	}
	return out
}

// buildTree converts the generic structure produced by toml.Decode into an
// ordered table tree. Maps carry no order in Go, so the key sequence is
// recovered from the decoder's metadata, which lists every key in the order
// it appeared in the source document. Keys the metadata does not cover (none
// in practice) are appended in sorted order so the result stays deterministic.
func buildTree(data map[string]any, md toml.MetaData) *Table {
	root := convertValue(data).(*Table)
	o := &orderer{
		md:      md,
		counts:  map[string]int{},
		touched: map[*Table][]string{},
		seen:    map[*Table]map[string]bool{},
	}
	for _, key := range md.Keys() {
		o.touch(root, key)
	}
	o.reorder(root)
	return root
}

func convertValue(v any) any {
	switch tv := v.(type) {
	case map[string]any:
		keys := make([]string, 0, len(tv))
		for k := range tv {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		out := NewTable()
		for _, k := range keys {
			out.Set(k, convertValue(tv[k]))
		}
		return out
	case []map[string]any:
		out := make([]any, len(tv))
		for i, el := range tv {
			out[i] = convertValue(el)
		}
		return out
	case []any:
		out := make([]any, len(tv))
		for i, el := range tv {
			out[i] = convertValue(el)
		}
		return out
	default:
		return v
	}
}

type orderer struct {
	md toml.MetaData
	// counts tracks how many elements of each array of tables have been
	// opened so far, keyed by the indexed path of the array. A nested
	// [[a.b]] counter is scoped to its enclosing [[a]] element.
	counts  map[string]int
	touched map[*Table][]string
	seen    map[*Table]map[string]bool
}

func (o *orderer) note(t *Table, key string) {
	if o.seen[t] == nil {
		o.seen[t] = map[string]bool{}
	}
	if !o.seen[t][key] {
		o.seen[t][key] = true
		o.touched[t] = append(o.touched[t], key)
	}
}

func (o *orderer) touch(root *Table, key toml.Key) {
	cur := root
	path := ""
	for i, part := range key {
		path += "/" + part
		last := i == len(key)-1
		o.note(cur, part)
		v, ok := cur.vals[part]
		if !ok {
			return
		}
		switch tv := v.(type) {
		case *Table:
			cur = tv
		case []any:
			if !isTableArray(tv) {
				return
			}
			if last {
				// a [[...]] header opens the next element; inline arrays
				// that happen to hold tables stay inline
				if o.md.Type(key...) == "ArrayHash" {
					cur.markArrayTable(part)
					o.counts[path]++
				}
				return
			}
			idx := o.counts[path] - 1
			if idx < 0 || idx >= len(tv) {
				return
			}
			cur = tv[idx].(*Table)
			path = fmt.Sprintf("%s#%d", path, idx)
		default:
			if !last {
				return
			}
		}
	}
}

func (o *orderer) reorder(t *Table) {
	ordered := make([]string, 0, len(t.keys))
	placed := map[string]bool{}
	for _, k := range o.touched[t] {
		if _, ok := t.vals[k]; ok && !placed[k] {
			ordered = append(ordered, k)
			placed[k] = true
		}
	}
	for _, k := range t.keys {
		if !placed[k] {
			ordered = append(ordered, k)
		}
	}
	t.keys = ordered
	for _, k := range t.keys {
		switch tv := t.vals[k].(type) {
		case *Table:
			o.reorder(tv)
		case []any:
			for _, el := range tv {
				if sub, ok := el.(*Table); ok {
					o.reorder(sub)
				}
			}
		}
	}
}

func isTableArray(arr []any) bool {
	if len(arr) == 0 {
		return false
	}
	for _, el := range arr {
		if _, ok := el.(*Table); !ok {
			return false
		}
	}
	return true
}
