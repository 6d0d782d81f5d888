package pylock

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Dump serializes the document back to TOML bytes. Key order inside every
// table is the order captured at parse time (appended keys last), so
// untouched documents re-emit with minimal diffs.
//
// Formatting is normalized: within a table all scalar and inline-array keys
// are emitted before sub-table sections, nested tables become [path]
// sections and arrays of tables become [[path]] sections, tables holding
// nothing but sub-tables stay implicit, strings are basic double-quoted and
// datetimes are RFC 3339.
func (d *Document) Dump() ([]byte, error) {
	enc := &encoder{}
	if err := enc.table(d.root, nil); err != nil {
		return nil, err
	}
	return []byte(enc.b.String()), nil
}

type encoder struct {
	b     strings.Builder
	wrote bool
}

func (e *encoder) header(path []string, array bool) {
	if e.wrote {
		e.b.WriteString("\n")
	}
	if array {
		fmt.Fprintf(&e.b, "[[%s]]\n", encodeKeyPath(path))
	} else {
		fmt.Fprintf(&e.b, "[%s]\n", encodeKeyPath(path))
	}
	e.wrote = true
}

func (e *encoder) table(t *Table, path []string) error {
	type section struct {
		key   string
		tbl   *Table
		array []*Table
	}
	var sections []section

	for _, key := range t.Keys() {
		v, _ := t.Get(key)
		switch tv := v.(type) {
		case *Table:
			sections = append(sections, section{key: key, tbl: tv})
			continue
		case []any:
			if isTableArray(tv) && t.isArrayTable(key) {
				arr := make([]*Table, len(tv))
				for i, el := range tv {
					arr[i] = el.(*Table)
				}
				sections = append(sections, section{key: key, array: arr})
				continue
			}
		}
		s, err := encodeValue(v)
		if err != nil {
			return fmt.Errorf("key %q: %w", strings.Join(append(path, key), "."), err)
		}
		fmt.Fprintf(&e.b, "%s = %s\n", encodeKey(key), s)
		e.wrote = true
	}

	for _, sec := range sections {
		secPath := append(append([]string{}, path...), sec.key)
		if sec.tbl != nil {
			// tables holding only sub-tables are left implicit
			if !onlySections(sec.tbl) {
				e.header(secPath, false)
			}
			if err := e.table(sec.tbl, secPath); err != nil {
				return err
			}
			continue
		}
		for _, el := range sec.array {
			e.header(secPath, true)
			if err := e.table(el, secPath); err != nil {
				return err
			}
		}
	}
	return nil
}

// onlySections reports whether every entry of t is itself a table or an
// array of tables, i.e. emitting t's children implies t.
func onlySections(t *Table) bool {
	if t.Len() == 0 {
		return false
	}
	for _, key := range t.Keys() {
		switch v, _ := t.Get(key); tv := v.(type) {
		case *Table:
		case []any:
			if !isTableArray(tv) || !t.isArrayTable(key) {
				return false
			}
		default:
			return false
		}
	}
	return true
}

func encodeValue(v any) (string, error) {
	switch tv := v.(type) {
	case string:
		return encodeString(tv), nil
	case bool:
		return strconv.FormatBool(tv), nil
	case int64:
		return strconv.FormatInt(tv, 10), nil
	case int:
		return strconv.Itoa(tv), nil
	case float64:
		s := strconv.FormatFloat(tv, 'g', -1, 64)
		// TOML floats always carry a fractional part or exponent
		if !strings.ContainsAny(s, ".eE") {
			s += ".0"
		}
		return s, nil
	case time.Time:
		return tv.Format(time.RFC3339Nano), nil
	case []any:
		parts := make([]string, len(tv))
		for i, el := range tv {
			s, err := encodeValue(el)
			if err != nil {
				return "", err
			}
			parts[i] = s
		}
		return "[" + strings.Join(parts, ", ") + "]", nil
	case *Table:
		// inline table, only reachable for tables nested in mixed arrays
		parts := make([]string, 0, tv.Len())
		for _, k := range tv.Keys() {
			el, _ := tv.Get(k)
			s, err := encodeValue(el)
			if err != nil {
				return "", err
			}
			parts = append(parts, fmt.Sprintf("%s = %s", encodeKey(k), s))
		}
		return "{" + strings.Join(parts, ", ") + "}", nil
	default:
		return "", fmt.Errorf("unsupported value type %T", v)
	}
}

func encodeString(s string) string {
	var b strings.Builder
	b.WriteByte('"')
	for _, r := range s {
		switch r {
		case '"':
			b.WriteString(`\"`)
		case '\\':
			b.WriteString(`\\`)
		case '\n':
			b.WriteString(`\n`)
		case '\t':
			b.WriteString(`\t`)
		case '\r':
			b.WriteString(`\r`)
		default:
			if r < 0x20 {
				fmt.Fprintf(&b, `\u%04X`, r)
				continue
			}
			b.WriteRune(r)
		}
	}
	b.WriteByte('"')
	return b.String()
}

func encodeKey(key string) string {
	if key == "" {
		return `""`
	}
	for _, r := range key {
		if !(r == '-' || r == '_' ||
			(r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9')) {
			return encodeString(key)
		}
	}
	return key
}

func encodeKeyPath(path []string) string {
	parts := make([]string, len(path))
	for i, p := range path {
		parts[i] = encodeKey(p)
	}
	return strings.Join(parts, ".")
}
