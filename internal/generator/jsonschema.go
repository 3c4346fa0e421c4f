package generator

import (
	"encoding/json"
	"fmt"

	"github.com/getkin/kin-openapi/openapi3"
)

// BuildJSONSchema converts an inferred shape to an OpenAPI 3 schema object.
func BuildJSONSchema(root *Shape, rootName string) *openapi3.Schema {
	nameObjects(root, rootName)
	schema := toSchema(root)
	schema.Title = rootName
	return schema
}

func toSchema(s *Shape) *openapi3.Schema {
	var variants []*openapi3.Schema
	if s.Object != nil {
		variants = append(variants, objectSchema(s.Object))
	}
	if s.Array != nil {
		variants = append(variants, openapi3.NewArraySchema().WithItems(toSchema(s.Array)))
	}
	if s.String {
		variants = append(variants, openapi3.NewStringSchema())
	}
	switch {
	case s.Number:
		variants = append(variants, openapi3.NewFloat64Schema())
	case s.Integer:
		variants = append(variants, openapi3.NewIntegerSchema())
	}
	if s.Bool {
		variants = append(variants, openapi3.NewBoolSchema())
	}

	var schema *openapi3.Schema
	switch len(variants) {
	case 0:
		schema = openapi3.NewSchema()
	case 1:
		schema = variants[0]
	default:
		schema = openapi3.NewSchema()
		for _, v := range variants {
			schema.AnyOf = append(schema.AnyOf, openapi3.NewSchemaRef("", v))
		}
	}
	if s.Null {
		schema.Nullable = true
	}
	return schema
}

func objectSchema(obj *Object) *openapi3.Schema {
	schema := openapi3.NewObjectSchema()
	schema.Title = obj.Name
	for _, f := range obj.Fields {
		schema.Properties[f.Key] = openapi3.NewSchemaRef("", toSchema(f.Shape))
		if !f.Optional(obj) {
			schema.Required = append(schema.Required, f.Key)
		}
	}
	return schema
}

// VerifySample checks that sample satisfies schema, reporting every
// violation.
func VerifySample(schema *openapi3.Schema, sample []byte) error {
	var value any
	if err := json.Unmarshal(sample, &value); err != nil {
		return fmt.Errorf("decode sample: %w", err)
	}
	if err := schema.VisitJSON(value, openapi3.MultiErrors()); err != nil {
		return fmt.Errorf("sample does not satisfy inferred schema: %w", err)
	}
	return nil
}
