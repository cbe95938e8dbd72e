package model

import (
	"encoding/json"
	"math"
	"strconv"
	"strings"
	"time"
)

// dateLayouts are the textual date forms the browser app is known to
// write. Layouts without a zone are read in local time.
var dateLayouts = []string{
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"1/2/2006, 3:04:05 PM",
	"1/2/2006, 15:04:05",
	"2006/1/2 15:04:05",
	"2006/1/2, 15:04:05",
	"Mon Jan 02 2006 15:04:05 GMT-0700",
	time.RFC1123,
	time.RFC1123Z,
	"2006-01-02",
}

var dateSpaces = strings.NewReplacer("\u202f", " ", "\u00a0", " ")

// DateOf returns t encoded the way message dates are written by this tool.
func DateOf(t time.Time) json.RawMessage {
	b, _ := json.Marshal(t.Format(time.RFC3339))
	return b
}

// ParseDate reads a message date: a JSON number or numeric string of epoch
// milliseconds, or a string in one of the known textual forms.
func ParseDate(raw json.RawMessage) (time.Time, bool) {
	if IsNull(raw) {
		return time.Time{}, false
	}
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		s = string(raw)
	}
	s = strings.TrimSpace(dateSpaces.Replace(s))
	if s == "" {
		return time.Time{}, false
	}

	if ms, err := strconv.ParseFloat(s, 64); err == nil {
		if math.IsNaN(ms) || math.IsInf(ms, 0) {
			return time.Time{}, false
		}
		return time.UnixMilli(int64(ms)), true
	}

	// Date.prototype.toString appends the zone name in parentheses.
	if i := strings.Index(s, " ("); i > 0 && strings.HasSuffix(s, ")") {
		s = s[:i]
	}
	for _, layout := range dateLayouts {
		if t, err := time.ParseInLocation(layout, s, time.Local); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}
