package model

import (
	"encoding/json"
	"reflect"
	"strings"
)

// fieldNames returns the JSON member names of v's struct fields.
func fieldNames(v any) map[string]bool {
	t := reflect.TypeOf(v)
	names := make(map[string]bool, t.NumField())
	for i := range t.NumField() {
		name, _, _ := strings.Cut(t.Field(i).Tag.Get("json"), ",")
		if name != "" && name != "-" {
			names[name] = true
		}
	}
	return names
}

// decodeKnown decodes data into v and returns the members of data that are
// not among known, or nil when there are none.
func decodeKnown(data []byte, v any, known map[string]bool) (Record, error) {
	if err := json.Unmarshal(data, v); err != nil {
		return nil, err
	}
	var all map[string]json.RawMessage
	if err := json.Unmarshal(data, &all); err != nil {
		return nil, err
	}
	var extra Record
	for k, raw := range all {
		if known[k] {
			continue
		}
		if extra == nil {
			extra = make(Record)
		}
		extra[k] = raw
	}
	return extra, nil
}

// encodeKnown encodes v and adds every member of extra that v does not
// already produce.
func encodeKnown(v any, extra Record) ([]byte, error) {
	data, err := json.Marshal(v)
	if err != nil || len(extra) == 0 {
		return data, err
	}
	var all map[string]json.RawMessage
	if err := json.Unmarshal(data, &all); err != nil {
		return nil, err
	}
	for k, raw := range extra {
		if _, ok := all[k]; !ok {
			all[k] = raw
		}
	}
	return json.Marshal(all)
}
