package model

import (
	"bytes"
	"encoding/json"
)

// LastUpdateField is the record field consulted by timestamp-gated merges.
const LastUpdateField = "lastUpdateTime"

// Record is a store record whose schema is opaque apart from
// lastUpdateTime. Config and access stores use this shape so that merges can
// tell an absent field from a zero one.
type Record map[string]json.RawMessage

// LastUpdateTime returns the record's lastUpdateTime and whether it holds a
// usable number.
func (r Record) LastUpdateTime() (int64, bool) {
	raw, ok := r[LastUpdateField]
	if !ok || IsNull(raw) {
		return 0, false
	}
	var n json.Number
	if err := json.Unmarshal(raw, &n); err != nil {
		return 0, false
	}
	if v, err := n.Int64(); err == nil {
		return v, true
	}
	f, err := n.Float64()
	if err != nil {
		return 0, false
	}
	return int64(f), true
}

// UpdateTimeOr returns lastUpdateTime, or def when the record has none.
func (r Record) UpdateTimeOr(def int64) int64 {
	if v, ok := r.LastUpdateTime(); ok {
		return v
	}
	return def
}

// Has reports whether key is present with a non-null value.
func (r Record) Has(key string) bool {
	raw, ok := r[key]
	return ok && !IsNull(raw)
}

// Clone returns a copy of the record. Values are copied too.
func (r Record) Clone() Record {
	out := make(Record, len(r))
	for k, v := range r {
		out[k] = append(json.RawMessage(nil), v...)
	}
	return out
}

// IsNull reports whether raw is empty or the JSON literal null.
func IsNull(raw json.RawMessage) bool {
	trimmed := bytes.TrimSpace(raw)
	return len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null"))
}
