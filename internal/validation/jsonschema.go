package validation

import (
	"fmt"
	"strings"

	"github.com/rendis/procdesigner/pkg/schema"
	jsonschema "github.com/santhosh-tekuri/jsonschema/v6"
)

const schemaBase = "https://procdesigner.dev/schemas/payload/"

// payloadDefsJSON holds the shared definitions for the positional group arrays.
// Coordinates accept numeric strings because legacy saves wrote "431".
const payloadDefsJSON = `{
  "$schema": "https://json-schema.org/draft/2020-12/schema",
  "$id": "https://procdesigner.dev/schemas/payload/defs.json",
  "$defs": {
    "coord": {
      "anyOf": [
        { "type": "number" },
        { "type": "string", "pattern": "^\\s*-?[0-9]+(\\.[0-9]+)?\\s*$" },
        { "type": "null" }
      ]
    },
    "text": { "type": ["string", "null"] },
    "id": { "type": ["string", "number"] },
    "task": {
      "type": "array",
      "minItems": 4,
      "prefixItems": [
        { "$ref": "#/$defs/id" },
        { "$ref": "#/$defs/text" },
        { "$ref": "#/$defs/coord" },
        { "$ref": "#/$defs/coord" },
        { "$ref": "#/$defs/coord" },
        { "$ref": "#/$defs/coord" },
        { "$ref": "#/$defs/text" }
      ]
    },
    "typed": {
      "type": "array",
      "minItems": 4,
      "prefixItems": [
        { "$ref": "#/$defs/id" },
        { "type": "string", "minLength": 1 },
        { "$ref": "#/$defs/coord" },
        { "$ref": "#/$defs/coord" },
        { "$ref": "#/$defs/coord" },
        { "$ref": "#/$defs/coord" }
      ]
    },
    "annotation": {
      "type": "array",
      "minItems": 4,
      "prefixItems": [
        { "$ref": "#/$defs/id" },
        { "$ref": "#/$defs/text" },
        { "$ref": "#/$defs/coord" },
        { "$ref": "#/$defs/coord" },
        { "$ref": "#/$defs/coord" },
        { "$ref": "#/$defs/coord" },
        { "$ref": "#/$defs/text" }
      ]
    },
    "route": {
      "type": "array",
      "minItems": 3,
      "prefixItems": [
        { "$ref": "#/$defs/id" },
        { "$ref": "#/$defs/id" },
        { "$ref": "#/$defs/id" }
      ]
    }
  }
}`

// groupItemDefs maps each known group name to the definition of one of its records.
var groupItemDefs = map[string]string{
	"tasks":       "task",
	"gateways":    "typed",
	"events":      "typed",
	"annotations": "annotation",
	"subprocess":  "task",
	"routes":      "route",
}

// documentSchemaJSON is the schema of a version 2 payload document.
const documentSchemaJSON = `{
  "$schema": "https://json-schema.org/draft/2020-12/schema",
  "$id": "https://procdesigner.dev/schemas/payload/v2.json",
  "type": "object",
  "required": ["version", "routes"],
  "properties": {
    "version": { "const": 2 },
    "tasks": { "type": "array", "items": { "$ref": "defs.json#/$defs/task" } },
    "gateways": { "type": "array", "items": { "$ref": "defs.json#/$defs/typed" } },
    "events": { "type": "array", "items": { "$ref": "defs.json#/$defs/typed" } },
    "annotations": { "type": "array", "items": { "$ref": "defs.json#/$defs/annotation" } },
    "subprocess": { "type": "array", "items": { "$ref": "defs.json#/$defs/task" } },
    "process": {},
    "routes": { "type": "array", "items": { "$ref": "defs.json#/$defs/route" } }
  }
}`

// PayloadSchemas holds the compiled schemas for payload groups and the v2 document.
// Compiled schemas are immutable, so it is safe for concurrent use.
type PayloadSchemas struct {
	groups   map[string]*jsonschema.Schema
	document *jsonschema.Schema
}

// NewPayloadSchemas compiles the group and document schemas.
func NewPayloadSchemas() (*PayloadSchemas, error) {
	c := jsonschema.NewCompiler()

	defs, err := jsonschema.UnmarshalJSON(strings.NewReader(payloadDefsJSON))
	if err != nil {
		return nil, fmt.Errorf("unmarshal payload defs: %w", err)
	}
	if err := c.AddResource(schemaBase+"defs.json", defs); err != nil {
		return nil, fmt.Errorf("add payload defs resource: %w", err)
	}

	ps := &PayloadSchemas{groups: make(map[string]*jsonschema.Schema, len(groupItemDefs))}
	for group, def := range groupItemDefs {
		url := schemaBase + "v1/" + group + ".json"
		doc, err := jsonschema.UnmarshalJSON(strings.NewReader(fmt.Sprintf(
			`{"type":"array","items":{"$ref":"../defs.json#/$defs/%s"}}`, def)))
		if err != nil {
			return nil, fmt.Errorf("unmarshal %s schema: %w", group, err)
		}
		if err := c.AddResource(url, doc); err != nil {
			return nil, fmt.Errorf("add %s schema resource: %w", group, err)
		}
		compiled, err := c.Compile(url)
		if err != nil {
			return nil, fmt.Errorf("compile %s schema: %w", group, err)
		}
		ps.groups[group] = compiled
	}

	docSchema, err := jsonschema.UnmarshalJSON(strings.NewReader(documentSchemaJSON))
	if err != nil {
		return nil, fmt.Errorf("unmarshal document schema: %w", err)
	}
	if err := c.AddResource(schemaBase+"v2.json", docSchema); err != nil {
		return nil, fmt.Errorf("add document schema resource: %w", err)
	}
	ps.document, err = c.Compile(schemaBase + "v2.json")
	if err != nil {
		return nil, fmt.Errorf("compile document schema: %w", err)
	}

	return ps, nil
}

// ValidateGroup checks one v1 group array. Unknown groups are not checked.
func (p *PayloadSchemas) ValidateGroup(group string, raw []byte) error {
	sch, ok := p.groups[group]
	if !ok {
		return nil
	}
	return validateRaw(sch, raw, group)
}

// ValidateDocument checks a whole v2 payload document.
func (p *PayloadSchemas) ValidateDocument(raw []byte) error {
	return validateRaw(p.document, raw, "document")
}

func validateRaw(sch *jsonschema.Schema, raw []byte, what string) error {
	doc, err := jsonschema.UnmarshalJSON(strings.NewReader(string(raw)))
	if err != nil {
		return schema.NewErrorf(schema.ErrCodeFormat, "%s: invalid JSON: %s", what, err.Error()).
			WithCause(err)
	}
	if err := sch.Validate(doc); err != nil {
		return toFormatError(err, what)
	}
	return nil
}

// toFormatError converts a jsonschema.ValidationError into a FORMAT_ERROR
// listing each leaf violation with its instance location.
func toFormatError(err error, what string) *schema.DesignerError {
	verr, ok := err.(*jsonschema.ValidationError)
	if !ok {
		return schema.NewErrorf(schema.ErrCodeFormat, "%s: %s", what, err.Error())
	}

	violations := collectViolations(verr)
	if len(violations) == 0 {
		return schema.NewErrorf(schema.ErrCodeFormat, "%s: %s", what, verr.Error())
	}

	msg := fmt.Sprintf("%s: %s", what, violations[0])
	if len(violations) > 1 {
		msg = fmt.Sprintf("%s: schema check failed with %d errors", what, len(violations))
	}
	return schema.NewError(schema.ErrCodeFormat, msg).
		WithCause(err).
		WithDetails(map[string]any{"group": what, "violations": violations})
}

// collectViolations walks a ValidationError tree and collects leaf error messages.
func collectViolations(verr *jsonschema.ValidationError) []string {
	if len(verr.Causes) == 0 {
		loc := "/"
		if len(verr.InstanceLocation) > 0 {
			loc = "/" + strings.Join(verr.InstanceLocation, "/")
		}
		return []string{fmt.Sprintf("%s: %s", loc, verr.Error())}
	}

	var violations []string
	for _, cause := range verr.Causes {
		violations = append(violations, collectViolations(cause)...)
	}
	return violations
}
