package component

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"
)

// Decode strictly parses raw as the payload of t and validates it. Unknown
// fields, trailing data and rule violations all produce a *ValidationError.
func Decode(t Type, raw json.RawMessage) (Data, error) {
	data := newData(t)
	if data == nil {
		return nil, &ValidationError{Fields: []FieldError{{Field: "type", Message: fmt.Sprintf("unknown component type %q", t)}}}
	}
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		return nil, &ValidationError{Fields: []FieldError{{Field: "data", Message: "is required"}}}
	}

	decoder := json.NewDecoder(bytes.NewReader(trimmed))
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(data); err != nil {
		return nil, &ValidationError{Fields: []FieldError{{Field: "data", Message: describeDecodeError(t, err)}}}
	}
	if _, err := decoder.Token(); !errors.Is(err, io.EOF) {
		return nil, &ValidationError{Fields: []FieldError{{Field: "data", Message: "must be a single JSON object"}}}
	}

	if err := check(data); err != nil {
		return nil, err
	}
	return data, nil
}

// Encode renders data in its canonical stored form.
func Encode(data Data) (json.RawMessage, error) {
	if data == nil {
		return nil, errors.New("encode component: nil data")
	}
	encoded, err := json.Marshal(data)
	if err != nil {
		return nil, fmt.Errorf("encode %s component: %w", data.Type(), err)
	}
	return encoded, nil
}

func describeDecodeError(t Type, err error) string {
	var typeErr *json.UnmarshalTypeError
	if errors.As(err, &typeErr) {
		if typeErr.Field == "" {
			return fmt.Sprintf("must be a %s object", t)
		}
		return fmt.Sprintf("field %s has the wrong type", typeErr.Field)
	}
	if msg := err.Error(); strings.HasPrefix(msg, "json: unknown field ") {
		return fmt.Sprintf("unknown field %s for %s component", strings.TrimPrefix(msg, "json: unknown field "), t)
	}
	return "is not valid JSON"
}
