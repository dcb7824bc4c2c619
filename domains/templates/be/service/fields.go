package service

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/go-playground/validator/v10"
	"github.com/santhosh-tekuri/jsonschema/v5"

	"github.com/Ixotic27/certifyhub/platform/go/persistence"
)

// Descriptor defaults applied before the field rules run.
const (
	DefaultFontSize   = 40
	DefaultFontColor  = "#000000"
	DefaultFontFamily = "Arial"
	DefaultAlign      = persistence.AlignLeft
)

const fieldsSchemaURL = "memory://schemas/template-fields.json"

// fieldsSchema accepts both the stored key names and their short aliases.
const fieldsSchema = `{
  "$schema": "https://json-schema.org/draft/2020-12/schema",
  "type": "array",
  "minItems": 1,
  "maxItems": 50,
  "items": {
    "type": "object",
    "properties": {
      "field_type":  {"type": "string"},
      "field":       {"type": "string"},
      "field_name":  {"type": "string"},
      "label":       {"type": "string"},
      "x":           {"type": "integer"},
      "y":           {"type": "integer"},
      "font_size":   {"type": "integer"},
      "font_color":  {"type": "string"},
      "color":       {"type": "string"},
      "font_family": {"type": "string"},
      "align":       {"type": "string"}
    },
    "required": ["x", "y"],
    "anyOf": [
      {"required": ["field_type"]},
      {"required": ["field"]}
    ]
  }
}`

var compileFieldsSchema = sync.OnceValues(func() (*jsonschema.Schema, error) {
	compiler := jsonschema.NewCompiler()
	if err := compiler.AddResource(fieldsSchemaURL, strings.NewReader(fieldsSchema)); err != nil {
		return nil, fmt.Errorf("register fields schema: %w", err)
	}
	schema, err := compiler.Compile(fieldsSchemaURL)
	if err != nil {
		return nil, fmt.Errorf("compile fields schema: %w", err)
	}
	return schema, nil
})

// fieldDocument is one descriptor as clients send it.
type fieldDocument struct {
	FieldType  string  `json:"field_type"`
	Field      string  `json:"field"`
	FieldName  string  `json:"field_name"`
	Label      string  `json:"label"`
	X          int     `json:"x"`
	Y          int     `json:"y"`
	FontSize   *int    `json:"font_size"`
	FontColor  string  `json:"font_color"`
	Color      string  `json:"color"`
	FontFamily string  `json:"font_family"`
	Align      *string `json:"align"`
}

type fieldRules struct {
	Type       string `json:"field_type" validate:"oneof=name student_id date achievement custom"`
	Label      string `json:"field_name" validate:"min=1,max=50"`
	X          int    `json:"x" validate:"gte=0"`
	Y          int    `json:"y" validate:"gte=0"`
	FontSize   int    `json:"font_size" validate:"min=8,max=200"`
	FontColor  string `json:"font_color" validate:"hexcolor"`
	FontFamily string `json:"font_family" validate:"max=100"`
	Align      string `json:"align" validate:"oneof=left center right"`
}

type fieldsRules struct {
	Fields []fieldRules `json:"fields" validate:"dive"`
}

// ParseFields validates a descriptor document against the schema, resolves
// aliases, applies defaults and then checks the field rules. Problems are
// reported as a ValidationError keyed by `fields[i].<name>`.
func ParseFields(raw []byte) ([]persistence.FieldDescriptor, error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 {
		return nil, &ValidationError{Fields: FieldErrors{"fields": {"is required"}}}
	}

	var document any
	if err := json.Unmarshal(raw, &document); err != nil {
		return nil, &ValidationError{Fields: FieldErrors{"fields": {"must be a JSON array"}}}
	}
	schema, err := compileFieldsSchema()
	if err != nil {
		return nil, err
	}
	if err := schema.Validate(document); err != nil {
		var verr *jsonschema.ValidationError
		if !errors.As(err, &verr) {
			return nil, fmt.Errorf("schema validation: %w", err)
		}
		return nil, &ValidationError{Fields: schemaErrors(verr)}
	}

	var docs []fieldDocument
	if err := json.Unmarshal(raw, &docs); err != nil {
		return nil, &ValidationError{Fields: FieldErrors{"fields": {"must be a JSON array"}}}
	}

	rules := fieldsRules{Fields: make([]fieldRules, len(docs))}
	for i, d := range docs {
		rules.Fields[i] = d.normalize()
	}
	if err := inputValidator.Struct(rules); err != nil {
		var verrs validator.ValidationErrors
		if !errors.As(err, &verrs) {
			return nil, err
		}
		fieldErrors := FieldErrors{}
		for _, fe := range verrs {
			fieldErrors.add(strings.TrimPrefix(fe.Namespace(), "fieldsRules."), ruleMessage(fe))
		}
		return nil, &ValidationError{Fields: fieldErrors}
	}

	out := make([]persistence.FieldDescriptor, len(rules.Fields))
	for i, f := range rules.Fields {
		out[i] = persistence.FieldDescriptor(f)
	}
	return out, nil
}

func (d fieldDocument) normalize() fieldRules {
	f := fieldRules{
		Type:       strings.ToLower(strings.TrimSpace(firstNonEmpty(d.FieldType, d.Field))),
		Label:      strings.TrimSpace(firstNonEmpty(d.FieldName, d.Label)),
		X:          d.X,
		Y:          d.Y,
		FontSize:   DefaultFontSize,
		FontColor:  strings.TrimSpace(firstNonEmpty(d.FontColor, d.Color)),
		FontFamily: strings.TrimSpace(d.FontFamily),
		Align:      DefaultAlign,
	}
	if f.Label == "" {
		f.Label = f.Type
	}
	if d.FontSize != nil {
		f.FontSize = *d.FontSize
	}
	if f.FontColor == "" {
		f.FontColor = DefaultFontColor
	}
	if f.FontFamily == "" {
		f.FontFamily = DefaultFontFamily
	}
	if d.Align != nil {
		f.Align = strings.ToLower(strings.TrimSpace(*d.Align))
	}
	return f
}

func schemaErrors(verr *jsonschema.ValidationError) FieldErrors {
	fieldErrors := FieldErrors{}
	for _, e := range verr.BasicOutput().Errors {
		if e.KeywordLocation == "" {
			continue
		}
		fieldErrors.add(pointerToField(e.InstanceLocation), e.Error)
	}
	if len(fieldErrors) == 0 {
		fieldErrors.add("fields", verr.Message)
	}
	return fieldErrors
}

// pointerToField turns "/0/x" into "fields[0].x".
func pointerToField(pointer string) string {
	parts := strings.Split(strings.Trim(pointer, "/"), "/")
	out := "fields"
	for i, p := range parts {
		switch {
		case p == "":
		case i == 0:
			out += "[" + p + "]"
		default:
			out += "." + p
		}
	}
	return out
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}
