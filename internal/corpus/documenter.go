package corpus

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"

	apperrors "github.com/Adithya-Monish-Kumar-K/docsearch/pkg/errors"
)

type documenterPayload struct {
	Docs []Record `json:"docs"`
}

// ParseDocumenter decodes a generator payload. It accepts the JavaScript
// form (`var documenterSearchIndex = {"docs": [...]};`), the bare object
// form, or a top-level JSON array of records.
func ParseDocumenter(r io.Reader) ([]Record, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("reading payload: %w", err)
	}
	data = bytes.TrimSpace(data)
	if bytes.HasPrefix(data, []byte("var ")) {
		eq := bytes.IndexByte(data, '=')
		if eq < 0 {
			return nil, fmt.Errorf("%w: javascript payload has no assignment", apperrors.ErrInvalidInput)
		}
		data = bytes.TrimSpace(data[eq+1:])
	}
	data = bytes.TrimSpace(bytes.TrimSuffix(data, []byte(";")))
	if len(data) == 0 {
		return nil, fmt.Errorf("%w: empty payload", apperrors.ErrInvalidInput)
	}
	data = relaxJS(data)

	if data[0] == '[' {
		var records []Record
		if err := json.Unmarshal(data, &records); err != nil {
			return nil, fmt.Errorf("%w: decoding record array: %v", apperrors.ErrInvalidInput, err)
		}
		return records, nil
	}
	var payload documenterPayload
	if err := json.Unmarshal(data, &payload); err != nil {
		return nil, fmt.Errorf("%w: decoding payload: %v", apperrors.ErrInvalidInput, err)
	}
	if payload.Docs == nil {
		return nil, fmt.Errorf("%w: payload has no docs key", apperrors.ErrInvalidInput)
	}
	return payload.Docs, nil
}

// relaxJS rewrites the two JavaScript-isms the generator emits that JSON
// rejects: `\'` escapes inside strings and a trailing comma before a closing
// bracket. Escaped backslashes are copied as pairs so `\\'` is left alone.
func relaxJS(data []byte) []byte {
	out := make([]byte, 0, len(data))
	inString := false
	for i := 0; i < len(data); i++ {
		c := data[i]
		if inString {
			switch {
			case c == '\\' && i+1 < len(data):
				next := data[i+1]
				if next != '\'' {
					out = append(out, c)
				}
				out = append(out, next)
				i++
			case c == '"':
				inString = false
				out = append(out, c)
			default:
				out = append(out, c)
			}
			continue
		}
		switch c {
		case '"':
			inString = true
		case ',':
			j := i + 1
			for j < len(data) && isSpace(data[j]) {
				j++
			}
			if j < len(data) && (data[j] == ']' || data[j] == '}') {
				continue
			}
		}
		out = append(out, c)
	}
	return out
}

func isSpace(c byte) bool {
	return c == ' ' || c == '\n' || c == '\r' || c == '\t'
}
