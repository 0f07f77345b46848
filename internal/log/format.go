package log

import (
	"bytes"
	"encoding/json"
	"fmt"
	"reflect"
	"time"
)

// TimeFormat is used for time values in log fields and exported spans.
const TimeFormat = time.RFC3339Nano

const nullString = "null"

// FormatTime formats t in UTC with TimeFormat.
func FormatTime(t time.Time) string {
	return t.UTC().Format(TimeFormat)
}

// formatValue renders a field value so that an entry stays on one line and
// can be parsed back. It reports whether v was replaced.
func formatValue(v interface{}, timeFormat string) (interface{}, bool, error) {
	switch vv := v.(type) {
	case nil:
		return nullString, true, nil
	case bool, string, uintptr,
		int8, int16, int32, int64, int,
		uint8, uint16, uint32, uint64, uint,
		float32, float64, error:
		return v, false, nil
	case time.Time:
		if timeFormat == "" {
			return v, false, nil
		}
		return vv.Format(timeFormat), true, nil
	case time.Duration:
		return vv.Seconds(), true, nil
	case *bytes.Buffer:
		if vv == nil {
			return nullString, true, nil
		}
		return vv.String(), true, nil
	case fmt.Stringer:
		// Component ids and insurance records read better as text.
		if rv := reflect.ValueOf(v); rv.Kind() == reflect.Ptr && rv.IsNil() {
			return nullString, true, nil
		}
		return vv.String(), true, nil
	}

	rv := reflect.Indirect(reflect.ValueOf(v))
	if !rv.IsValid() {
		return nullString, true, nil
	}
	switch rv.Kind() {
	case reflect.Map, reflect.Struct, reflect.Array, reflect.Slice:
	default:
		return v, false, nil
	}
	b, err := encodeJSON(v)
	if err != nil {
		return v, false, err
	}
	return string(b), true, nil
}

// encodeJSON encodes v on a single line without HTML escaping.
func encodeJSON(v interface{}) ([]byte, error) {
	buf := &bytes.Buffer{}
	enc := json.NewEncoder(buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(v); err != nil {
		return nil, fmt.Errorf("could not marshal %T to JSON for logging: %w", v, err)
	}
	return bytes.TrimSpace(buf.Bytes()), nil
}
