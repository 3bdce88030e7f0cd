package llm

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

// CompileSchema compiles an embedded JSON Schema document for reuse across
// requests.
func CompileSchema(name string, raw []byte) (*jsonschema.Schema, error) {
	compiler := jsonschema.NewCompiler()
	if err := compiler.AddResource(name, bytes.NewReader(raw)); err != nil {
		return nil, fmt.Errorf("add schema: %w", err)
	}
	schema, err := compiler.Compile(name)
	if err != nil {
		return nil, fmt.Errorf("compile schema: %w", err)
	}
	return schema, nil
}

// MustCompileSchema is CompileSchema for embedded documents known at build
// time; it panics on a malformed schema.
func MustCompileSchema(name string, raw []byte) *jsonschema.Schema {
	schema, err := CompileSchema(name, raw)
	if err != nil {
		panic(err)
	}
	return schema
}

// DecodeValidatedJSON decodes a model payload, checks it against the schema,
// and unmarshals the validated document into target.
func DecodeValidatedJSON(content string, schema *jsonschema.Schema, target any) error {
	var document any
	if err := DecodeLLMJSON(content, &document); err != nil {
		return err
	}
	if schema != nil {
		if err := schema.Validate(document); err != nil {
			return fmt.Errorf("payload does not match schema: %w", err)
		}
	}
	encoded, err := json.Marshal(document)
	if err != nil {
		return fmt.Errorf("re-encode payload: %w", err)
	}
	if err := json.Unmarshal(encoded, target); err != nil {
		return fmt.Errorf("decode payload: %w", err)
	}
	return nil
}
