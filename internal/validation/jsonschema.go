package validation

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"

	jsonschema "github.com/santhosh-tekuri/jsonschema/v6"

	"github.com/botflowhq/botflow/pkg/schema"
)

// flowSchemaJSON is the JSON Schema for raw flow documents as exported by
// the visual editor. Embedded as a constant to avoid filesystem dependencies.
const flowSchemaJSON = `{
  "$schema": "https://json-schema.org/draft/2020-12/schema",
  "$id": "https://botflow.dev/schemas/flow.json",
  "type": "object",
  "required": ["nodes", "edges"],
  "properties": {
    "id": { "type": "string" },
    "name": { "type": "string" },
    "nodes": {
      "type": "array",
      "items": { "$ref": "#/$defs/node" }
    },
    "edges": {
      "type": "array",
      "items": { "$ref": "#/$defs/edge" }
    },
    "variables": {
      "type": "array",
      "items": { "$ref": "#/$defs/variable" }
    },
    "metadata": { "type": "object" }
  },
  "additionalProperties": false,
  "$defs": {
    "node": {
      "type": "object",
      "required": ["id", "type", "data"],
      "properties": {
        "id": { "type": "string", "minLength": 1 },
        "type": { "type": "string", "minLength": 1 },
        "data": { "type": "object" }
      },
      "additionalProperties": false
    },
    "edge": {
      "type": "object",
      "required": ["id", "source", "target"],
      "properties": {
        "id": { "type": "string", "minLength": 1 },
        "source": { "type": "string", "minLength": 1 },
        "target": { "type": "string", "minLength": 1 },
        "label": { "type": "string" },
        "guard": { "type": "string" },
        "condition": {
          "type": "object",
          "required": ["variable", "operator"],
          "properties": {
            "variable": { "type": "string", "minLength": 1 },
            "operator": { "type": "string", "minLength": 1 },
            "value": {}
          },
          "additionalProperties": false
        }
      },
      "additionalProperties": false
    },
    "variable": {
      "type": "object",
      "required": ["name"],
      "properties": {
        "name": { "type": "string", "minLength": 1 },
        "type": { "type": "string" },
        "default": {}
      },
      "additionalProperties": false
    }
  }
}`

// FlowParser validates raw JSON flow documents against the flow schema and
// decodes them. Safe for concurrent use.
type FlowParser struct {
	flowSchema *jsonschema.Schema
}

// NewFlowParser creates a FlowParser with the flow schema pre-compiled.
func NewFlowParser() (*FlowParser, error) {
	c := jsonschema.NewCompiler()
	c.AssertFormat()

	schemaDoc, err := jsonschema.UnmarshalJSON(strings.NewReader(flowSchemaJSON))
	if err != nil {
		return nil, fmt.Errorf("unmarshal flow schema: %w", err)
	}
	if err := c.AddResource("https://botflow.dev/schemas/flow.json", schemaDoc); err != nil {
		return nil, fmt.Errorf("add flow schema resource: %w", err)
	}

	compiled, err := c.Compile("https://botflow.dev/schemas/flow.json")
	if err != nil {
		return nil, fmt.Errorf("compile flow schema: %w", err)
	}

	return &FlowParser{flowSchema: compiled}, nil
}

// Parse validates raw bytes against the flow schema and decodes the
// definition. Schema violations come back as a VALIDATION_ERROR FlowError;
// the semantic pipeline (FlowValidator) still runs separately.
func (p *FlowParser) Parse(raw []byte) (*schema.FlowDefinition, error) {
	doc, err := jsonschema.UnmarshalJSON(bytes.NewReader(raw))
	if err != nil {
		return nil, schema.NewError(schema.ErrCodeValidation, "flow document is not valid JSON").WithCause(err)
	}

	if err := p.flowSchema.Validate(doc); err != nil {
		return nil, schema.NewErrorf(schema.ErrCodeValidation, "flow document violates schema: %s", err.Error()).WithCause(err)
	}

	var flow schema.FlowDefinition
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	if err := dec.Decode(&flow); err != nil {
		return nil, schema.NewError(schema.ErrCodeValidation, "decode flow definition").WithCause(err)
	}
	normalizeNumbers(&flow)
	return &flow, nil
}

// normalizeNumbers converts json.Number values in node data and variable
// defaults to float64, the numeric type the condition evaluator expects.
func normalizeNumbers(flow *schema.FlowDefinition) {
	for i := range flow.Nodes {
		flow.Nodes[i].Data = normalizeMap(flow.Nodes[i].Data)
	}
	for i := range flow.Variables {
		flow.Variables[i].Default = normalizeValue(flow.Variables[i].Default)
	}
	for i := range flow.Edges {
		if flow.Edges[i].Condition != nil {
			flow.Edges[i].Condition.Value = normalizeValue(flow.Edges[i].Condition.Value)
		}
	}
}

func normalizeMap(m map[string]any) map[string]any {
	if m == nil {
		return nil
	}
	out := make(map[string]any, len(m))
	for k, v := range m {
		out[k] = normalizeValue(v)
	}
	return out
}

func normalizeValue(v any) any {
	switch val := v.(type) {
	case json.Number:
		if f, err := val.Float64(); err == nil {
			return f
		}
		return val.String()
	case map[string]any:
		return normalizeMap(val)
	case []any:
		out := make([]any, len(val))
		for i, item := range val {
			out[i] = normalizeValue(item)
		}
		return out
	default:
		return v
	}
}
