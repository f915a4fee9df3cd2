package transport

import (
	"bytes"
	"sort"
	"strings"
	"unicode/utf8"

	"github.com/goccy/go-json"
)

const maxPlainDetail = 200

// ExtractDetail picks the most specific human readable message out of an
// error response body, falling back to fallback when nothing usable is found.
//
// Order: detail (string, validation list or object), message,
// error_description, error, a bare JSON string, the object's remaining
// string values, then a short plain text body.
func ExtractDetail(body []byte, fallback string) string {
	body = bytes.TrimSpace(body)
	if len(body) == 0 {
		return fallback
	}

	var parsed any
	if err := json.Unmarshal(body, &parsed); err != nil {
		if text := string(body); utf8.ValidString(text) && len(text) <= maxPlainDetail && !strings.HasPrefix(text, "<") {
			return text
		}
		return fallback
	}

	switch v := parsed.(type) {
	case string:
		if v = strings.TrimSpace(v); v != "" {
			return v
		}
	case map[string]any:
		if msg := fromObject(v); msg != "" {
			return msg
		}
	}
	return fallback
}

func fromObject(obj map[string]any) string {
	if msg := fromDetail(obj["detail"]); msg != "" {
		return msg
	}
	for _, key := range []string{"message", "error_description", "error"} {
		if s, ok := obj[key].(string); ok && strings.TrimSpace(s) != "" {
			return strings.TrimSpace(s)
		}
	}

	keys := make([]string, 0, len(obj))
	for k := range obj {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var values []string
	for _, k := range keys {
		if s, ok := obj[k].(string); ok && strings.TrimSpace(s) != "" {
			values = append(values, strings.TrimSpace(s))
		}
	}
	return strings.Join(values, ". ")
}

// fromDetail handles FastAPI style detail fields: a plain string, a list of
// validation errors with "msg", or a nested object.
func fromDetail(detail any) string {
	switch d := detail.(type) {
	case string:
		return strings.TrimSpace(d)
	case []any:
		var msgs []string
		for _, item := range d {
			switch e := item.(type) {
			case string:
				msgs = append(msgs, e)
			case map[string]any:
				if msg, ok := e["msg"].(string); ok && msg != "" {
					msgs = append(msgs, msg)
				}
			}
		}
		return strings.Join(msgs, "; ")
	case map[string]any:
		return fromObject(d)
	}
	return ""
}
