package extraction

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"

	"docintel/internal/model"
)

var (
	// ErrNoJSONFound means the reply holds no balanced {...} span.
	ErrNoJSONFound = errors.New("no JSON object found in model response")
	// ErrMalformedJSON means every balanced span failed to decode as a JSON object.
	ErrMalformedJSON = errors.New("malformed JSON in model response")
)

// Parse recovers the JSON object embedded in a model reply and validates it field by field.
// Invalid fields are dropped; an empty payload is not an error.
func Parse(text string) (*model.ExtractionPayload, error) {
	obj, err := locateObject(text)
	if err != nil {
		return nil, err
	}
	return normalize(obj), nil
}

// locateObject tries each balanced brace span in order and returns the first that decodes
// as a JSON object. Commentary or code fences around the object are ignored.
func locateObject(text string) (map[string]any, error) {
	var firstErr error
	for start := 0; start < len(text); {
		open := indexByteFrom(text, '{', start)
		if open < 0 {
			break
		}
		end := balancedEnd(text, open)
		if end < 0 {
			start = open + 1
			continue
		}

		obj, err := decodeObject(text[open : end+1])
		if err == nil {
			return obj, nil
		}
		if firstErr == nil {
			firstErr = err
		}
		start = end + 1
	}

	if firstErr != nil {
		return nil, fmt.Errorf("%w: %w", ErrMalformedJSON, firstErr)
	}
	return nil, ErrNoJSONFound
}

func decodeObject(span string) (map[string]any, error) {
	dec := json.NewDecoder(bytes.NewReader([]byte(span)))
	dec.UseNumber()
	var obj map[string]any
	if err := dec.Decode(&obj); err != nil {
		return nil, err
	}
	if obj == nil {
		return nil, errors.New("not an object")
	}
	return obj, nil
}

// balancedEnd returns the index of the brace closing the one at open, or -1.
// Braces inside JSON strings are skipped.
func balancedEnd(s string, open int) int {
	depth := 0
	inString := false
	escaped := false
	for i := open; i < len(s); i++ {
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

func indexByteFrom(s string, c byte, from int) int {
	i := bytes.IndexByte([]byte(s[from:]), c)
	if i < 0 {
		return -1
	}
	return from + i
}
