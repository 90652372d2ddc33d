package log

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sort"
)

// JSONFormatter renders an Entry as a single line of JSON.
type JSONFormatter struct {
	// TimeKey, if set, overrides the default "timestamp" field name.
	TimeKey string
}

// Format implements Formatter.
func (f *JSONFormatter) Format(entry *Entry) ([]byte, error) {
	timeKey := f.TimeKey
	if timeKey == "" {
		timeKey = "timestamp"
	}

	out := make(map[string]interface{}, len(entry.Fields)+4)
	for k, v := range entry.Fields {
		out[k] = v
	}
	out[timeKey] = entry.Timestamp.Format(rfc3339Milli)
	out["level"] = entry.Level.String()
	out["message"] = entry.Message
	if entry.Caller != "" {
		out["caller"] = entry.Caller
	}
	if entry.Error != nil {
		out["error"] = entry.Error.Error()
	}

	buf, err := json.Marshal(out)
	if err != nil {
		return nil, err
	}
	return append(buf, '\n'), nil
}

// TextFormatter renders an Entry as a human-readable single line, suitable
// for local development consoles.
type TextFormatter struct {
	// DisableColor disables ANSI color codes.
	DisableColor bool
}

// Format implements Formatter.
func (f *TextFormatter) Format(entry *Entry) ([]byte, error) {
	var buf bytes.Buffer

	fmt.Fprintf(&buf, "%s %-5s %s", entry.Timestamp.Format(rfc3339Milli), entry.Level.String(), entry.Message)

	if entry.Error != nil {
		fmt.Fprintf(&buf, " error=%q", entry.Error.Error())
	}

	keys := make([]string, 0, len(entry.Fields))
	for k := range entry.Fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		fmt.Fprintf(&buf, " %s=%v", k, entry.Fields[k])
	}
	if entry.Caller != "" {
		fmt.Fprintf(&buf, " caller=%s", entry.Caller)
	}
	buf.WriteByte('\n')
	return buf.Bytes(), nil
}

const rfc3339Milli = "2006-01-02T15:04:05.000Z07:00"
