package analysis

import (
	"encoding/json"
	"strings"

	"github.com/rotisserie/eris"
)

var errNoJSONObject = eris.New("no JSON object found in provider output")

// ExtractJSONObject returns the first balanced {...} object in s. Braces
// inside JSON strings are ignored, so prose, code fences and string values
// containing braces do not confuse it.
func ExtractJSONObject(s string) (string, bool) {
	start, end := nextObject(s, 0)
	if start < 0 {
		return "", false
	}
	return s[start : end+1], true
}

// nextObject returns the bounds of the first balanced {...} span starting at
// or after from, or -1, -1.
func nextObject(s string, from int) (int, int) {
	for from < len(s) {
		i := strings.IndexByte(s[from:], '{')
		if i < 0 {
			break
		}
		start := from + i
		if end := matchBrace(s, start); end >= 0 {
			return start, end
		}
		from = start + 1
	}
	return -1, -1
}

// matchBrace returns the index of the brace closing s[start], or -1.
func matchBrace(s string, start int) int {
	depth := 0
	inString := false
	escaped := false
	for i := start; i < len(s); i++ {
		c := s[i]
		if inString {
			switch {
			case escaped:
				escaped = false
			case c == '\\':
				escaped = true
			case c == '"':
				inString = false
			}
			continue
		}
		switch c {
		case '"':
			inString = true
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				return i
			}
		}
	}
	return -1
}

// DecodeObject extracts and parses the JSON object carried by raw provider
// text. Balanced spans that are not JSON, such as "{calories}" in prose, are
// skipped. Numbers are kept as json.Number.
func DecodeObject(raw string) (map[string]any, error) {
	var firstErr error
	for from := 0; ; {
		start, end := nextObject(raw, from)
		if start < 0 {
			break
		}
		out, err := decodeSpan(raw[start : end+1])
		if err == nil {
			return out, nil
		}
		if firstErr == nil {
			firstErr = err
		}
		from = start + 1
	}
	if firstErr != nil {
		return nil, eris.Wrap(firstErr, "parse provider JSON")
	}
	return nil, errNoJSONObject
}

func decodeSpan(obj string) (map[string]any, error) {
	dec := json.NewDecoder(strings.NewReader(obj))
	dec.UseNumber()

	var out map[string]any
	if err := dec.Decode(&out); err != nil {
		return nil, err
	}
	return out, nil
}
