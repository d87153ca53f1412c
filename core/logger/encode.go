package logger

import (
	"bytes"
	"encoding/json"
	"fmt"
	"slices"
	"strconv"
	"strings"
)

type logFormat string

const (
	formatJSON logFormat = "json"
	formatKV   logFormat = "kv"
)

func (f logFormat) encoder() encoder {
	if f == formatJSON {
		return jsonEncoder{}
	}
	return kvEncoder{}
}

// encoder turns a record into one line without the trailing newline.
type encoder interface {
	encode(f record, order []string) ([]byte, error)
}

// sortedKeys lists keys named in order first, then the rest alphabetically.
func sortedKeys(f record, order []string) []string {
	keys := make([]string, 0, len(f))
	for _, k := range order {
		if _, ok := f[k]; ok && !slices.Contains(keys, k) {
			keys = append(keys, k)
		}
	}
	fixed := len(keys)
	for k := range f {
		if !slices.Contains(keys[:fixed], k) {
			keys = append(keys, k)
		}
	}
	slices.Sort(keys[fixed:])
	return keys
}

type jsonEncoder struct{}

func (jsonEncoder) encode(f record, order []string) ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, k := range sortedKeys(f, order) {
		data, err := json.Marshal(f[k])
		if err != nil {
			return nil, fmt.Errorf("logger: encode %q: %w", k, err)
		}
		if i > 0 {
			buf.WriteByte(',')
		}
		buf.WriteString(strconv.Quote(k))
		buf.WriteByte(':')
		buf.Write(data)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

type kvEncoder struct{}

func (kvEncoder) encode(f record, order []string) ([]byte, error) {
	var buf bytes.Buffer
	for i, k := range sortedKeys(f, order) {
		if i > 0 {
			buf.WriteByte(' ')
		}
		buf.WriteString(k)
		buf.WriteByte('=')
		buf.WriteString(kvValue(f[k]))
	}
	return buf.Bytes(), nil
}

func kvValue(v any) string {
	var s string
	switch x := v.(type) {
	case string:
		s = x
	case bool:
		return strconv.FormatBool(x)
	case int64:
		return strconv.FormatInt(x, 10)
	default:
		s = fmt.Sprint(x)
	}
	if strings.IndexFunc(s, needsQuote) >= 0 {
		return strconv.Quote(s)
	}
	return s
}

func needsQuote(r rune) bool {
	return r <= ' ' || r == '=' || r == '"'
}
