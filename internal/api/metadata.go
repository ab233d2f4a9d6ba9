package api

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/ashureev/horizon-coach/internal/coach"
)

var errMetadataNotObject = errors.New("metadata must be a JSON object")

// decodeMetadata reads a JSON object into key/value pairs, keeping the order
// the keys appear in. Absent or null metadata yields nil.
func decodeMetadata(raw json.RawMessage) (coach.Metadata, error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return nil, nil
	}

	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()

	tok, err := dec.Token()
	if err != nil {
		return nil, fmt.Errorf("decode metadata: %w", err)
	}
	if delim, ok := tok.(json.Delim); !ok || delim != '{' {
		return nil, errMetadataNotObject
	}

	var out coach.Metadata
	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return nil, fmt.Errorf("decode metadata key: %w", err)
		}
		key, ok := tok.(string)
		if !ok {
			return nil, errMetadataNotObject
		}
		var value any
		if err := dec.Decode(&value); err != nil {
			return nil, fmt.Errorf("decode metadata %q: %w", key, err)
		}
		out = append(out, coach.MetadataEntry{Key: key, Value: value})
	}
	if _, err := dec.Token(); err != nil {
		return nil, fmt.Errorf("decode metadata: %w", err)
	}
	return out, nil
}
