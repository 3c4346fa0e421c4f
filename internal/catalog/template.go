package catalog

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"schema-harvester/internal/parser"
	"schema-harvester/internal/types"

	"github.com/getkin/kin-openapi/openapi3"
	"gopkg.in/yaml.v3"
)

// maxSampleDepth bounds sample generation for recursive schemas
const maxSampleDepth = 6

// BuildTemplate turns OpenAPI operations into catalog entries. Paths are made
// relative to the API root; POST operations get a sample list body built from
// their request schema.
func BuildTemplate(ops []parser.Operation) []types.Endpoint {
	used := make(map[string]bool)
	endpoints := make([]types.Endpoint, 0, len(ops))

	for _, op := range ops {
		name := endpointName(op)
		if used[name] {
			name = name + "-" + strings.ToLower(op.Method)
		}
		for base, i := name, 2; used[name]; i++ {
			name = fmt.Sprintf("%s-%d", base, i)
		}
		used[name] = true

		ep := types.Endpoint{
			Name:        name,
			URL:         strings.TrimPrefix(op.Path, "/"),
			Method:      op.Method,
			Description: op.Summary,
		}
		if op.Method == "POST" {
			body, ok := sampleValue(op.RequestBody, 0).(map[string]any)
			if !ok || body == nil {
				body = map[string]any{}
			}
			ep.ListRequestBody = body
		}
		endpoints = append(endpoints, ep)
	}
	return endpoints
}

// WriteTemplate writes the catalog template as JSON or YAML, by extension
func WriteTemplate(path string, endpoints []types.Endpoint) error {
	var (
		data []byte
		err  error
	)
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		data, err = yaml.Marshal(endpoints)
	default:
		data, err = json.MarshalIndent(endpoints, "", "  ")
	}
	if err != nil {
		return fmt.Errorf("failed to marshal catalog template: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create output directory: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write catalog template: %w", err)
	}
	return nil
}

// endpointName derives a directory-safe name from the operation id or path
func endpointName(op parser.Operation) string {
	if op.OperationID != "" {
		return kebab(op.OperationID)
	}
	var parts []string
	for _, seg := range strings.Split(op.Path, "/") {
		seg = strings.Trim(seg, "{}")
		if seg == "" || seg == "api" || isVersion(seg) {
			continue
		}
		parts = append(parts, kebab(seg))
	}
	if len(parts) == 0 {
		return "root"
	}
	return strings.Join(parts, "-")
}

func isVersion(seg string) bool {
	if len(seg) < 2 || (seg[0] != 'v' && seg[0] != 'V') {
		return false
	}
	for _, r := range seg[1:] {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

func kebab(s string) string {
	var b strings.Builder
	prevLower := false
	for _, r := range s {
		switch {
		case r >= 'A' && r <= 'Z':
			if prevLower {
				b.WriteByte('-')
			}
			b.WriteRune(r + ('a' - 'A'))
			prevLower = false
		case (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9'):
			b.WriteRune(r)
			prevLower = true
		default:
			if b.Len() > 0 && !strings.HasSuffix(b.String(), "-") {
				b.WriteByte('-')
			}
			prevLower = false
		}
	}
	return strings.Trim(b.String(), "-")
}

// sampleValue generates a sample value for a request schema
func sampleValue(ref *openapi3.SchemaRef, depth int) any {
	if ref == nil || ref.Value == nil || depth > maxSampleDepth {
		return nil
	}
	schema := ref.Value

	if schema.Example != nil {
		return schema.Example
	}
	if schema.Default != nil {
		return schema.Default
	}
	if len(schema.Enum) > 0 {
		return schema.Enum[0]
	}
	if len(schema.Properties) == 0 {
		switch {
		case len(schema.AllOf) > 0:
			return mergeAllOf(schema.AllOf, depth)
		case len(schema.OneOf) > 0:
			return sampleValue(schema.OneOf[0], depth+1)
		case len(schema.AnyOf) > 0:
			return sampleValue(schema.AnyOf[0], depth+1)
		}
	}

	switch {
	case schema.Type == nil:
		if len(schema.Properties) > 0 {
			return sampleObject(schema, depth)
		}
		return nil
	case schema.Type.Is("object"):
		return sampleObject(schema, depth)
	case schema.Type.Is("array"):
		if item := sampleValue(schema.Items, depth+1); item != nil {
			return []any{item}
		}
		return []any{}
	case schema.Type.Is("string"):
		return sampleString(schema.Format)
	case schema.Type.Is("integer"):
		return 1
	case schema.Type.Is("number"):
		return 1.5
	case schema.Type.Is("boolean"):
		return true
	}
	return nil
}

func sampleObject(schema *openapi3.Schema, depth int) map[string]any {
	result := make(map[string]any, len(schema.Properties))
	names := make([]string, 0, len(schema.Properties))
	for name := range schema.Properties {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		result[name] = sampleValue(schema.Properties[name], depth+1)
	}
	return result
}

func mergeAllOf(refs []*openapi3.SchemaRef, depth int) any {
	merged := map[string]any{}
	for _, ref := range refs {
		if obj, ok := sampleValue(ref, depth+1).(map[string]any); ok {
			for k, v := range obj {
				merged[k] = v
			}
		}
	}
	return merged
}

func sampleString(format string) string {
	switch format {
	case "email":
		return "test@example.com"
	case "date":
		return "2024-01-01"
	case "date-time":
		return "2024-01-01T12:00:00Z"
	case "uuid":
		return "123e4567-e89b-12d3-a456-426614174000"
	case "uri":
		return "https://example.com"
	default:
		return "sample_string"
	}
}
