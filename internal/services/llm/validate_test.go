package llm

import (
	"strings"
	"testing"
)

const keywordSchema = `{
  "type": "object",
  "required": ["keywords"],
  "additionalProperties": false,
  "properties": {
    "keywords": {
      "type": "array",
      "minItems": 1,
      "items": {"type": "string"}
    }
  }
}`

func TestDecodeValidatedJSON(t *testing.T) {
	schema, err := CompileSchema("keywords.json", []byte(keywordSchema))
	if err != nil {
		t.Fatalf("CompileSchema: %v", err)
	}

	var parsed struct {
		Keywords []string `json:"keywords"`
	}
	payload := "```json\n{\"keywords\": [\"frog\", \"amphibian\"]}\n```"
	if err := DecodeValidatedJSON(payload, schema, &parsed); err != nil {
		t.Fatalf("DecodeValidatedJSON: %v", err)
	}
	if len(parsed.Keywords) != 2 || parsed.Keywords[0] != "frog" {
		t.Fatalf("unexpected keywords: %v", parsed.Keywords)
	}
}

func TestDecodeValidatedJSONRejectsSchemaViolation(t *testing.T) {
	schema, err := CompileSchema("keywords.json", []byte(keywordSchema))
	if err != nil {
		t.Fatalf("CompileSchema: %v", err)
	}

	var parsed struct {
		Keywords []string `json:"keywords"`
	}
	err = DecodeValidatedJSON(`{"keywords": []}`, schema, &parsed)
	if err == nil {
		t.Fatal("expected validation error")
	}
	if !strings.Contains(err.Error(), "schema") {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestCompileSchemaRejectsInvalidDocument(t *testing.T) {
	if _, err := CompileSchema("broken.json", []byte(`{"type": 42}`)); err == nil {
		t.Fatal("expected compile error")
	}
}
