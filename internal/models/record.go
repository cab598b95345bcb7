package models

import (
	"fmt"
	"strconv"
)

const (
	IDField    = "id"
	OwnerField = "user_id"
)

// Record is anything a live collection can hold: it has a primary
// identifier and belongs to exactly one principal.
type Record interface {
	RecordID() string
	RecordOwner() string
}

// Row is a schema-free table row as returned by the store.
type Row map[string]any

func (r Row) RecordID() string {
	return fieldString(r[IDField])
}

func (r Row) RecordOwner() string {
	return fieldString(r[OwnerField])
}

// Clone returns a shallow copy of the row.
func (r Row) Clone() Row {
	out := make(Row, len(r))
	for k, v := range r {
		out[k] = v
	}
	return out
}

func fieldString(v any) string {
	switch val := v.(type) {
	case nil:
		return ""
	case string:
		return val
	case float64:
		return strconv.FormatFloat(val, 'f', -1, 64)
	case int:
		return strconv.Itoa(val)
	case int64:
		return strconv.FormatInt(val, 10)
	case fmt.Stringer:
		return val.String()
	default:
		return fmt.Sprint(val)
	}
}
