// Package codec persists form schemas. JSON is the canonical format; YAML is
// offered for hand-editing. Output is deterministic: fixed key order for
// known members, sorted keys for everything else, two-space indentation.
package codec

import (
	"bytes"
	"errors"
	"fmt"
	"io"

	json "github.com/goccy/go-json"

	"github.com/goliatone/go-formbuilder/pkg/model"
)

// Serialize encodes schema as indented JSON. Unknown keys kept in Extra are
// written after the known ones.
func Serialize(schema model.FormSchema) ([]byte, error) {
	w := &writer{}
	if err := w.value(schemaObject(schema), 0); err != nil {
		return nil, fmt.Errorf("codec: serialize: %w", err)
	}
	w.buf.WriteByte('\n')
	return w.buf.Bytes(), nil
}

// Deserialize parses data into a schema and checks its structural
// invariants. Parse and type errors return *model.MalformedSchemaError;
// invariant violations return *model.InvalidSchemaError. A nil resolver
// skips the kind check.
func Deserialize(data []byte, resolver model.KindResolver) (model.FormSchema, error) {
	raw, err := parseJSON(data)
	if err != nil {
		return model.FormSchema{}, err
	}
	return build(raw, resolver)
}

func parseJSON(data []byte) (any, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()

	var raw any
	if err := dec.Decode(&raw); err != nil {
		return nil, &model.MalformedSchemaError{Err: err}
	}
	var trailing any
	if err := dec.Decode(&trailing); !errors.Is(err, io.EOF) {
		return nil, &model.MalformedSchemaError{Err: errors.New("unexpected data after document")}
	}
	return raw, nil
}

func build(raw any, resolver model.KindResolver) (model.FormSchema, error) {
	schema, err := decoder{}.schema(raw)
	if err != nil {
		return model.FormSchema{}, err
	}
	if err := model.CheckStructure(schema, resolver); err != nil {
		return model.FormSchema{}, err
	}
	return schema, nil
}
