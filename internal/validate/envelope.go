// Package validate checks API responses against the envelope and create shapes.
package validate

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"

	"schema-harvester/internal/types"
)

var validate = validator.New()

// ShapeEnvelope describes the list response wrapper in validation errors.
const ShapeEnvelope = "{ id, jsonrpc, result: { statusCode, status, data: object[] } }"

type envelopeWire struct {
	ID      json.RawMessage `json:"id" validate:"required"`
	JSONRPC *string         `json:"jsonrpc" validate:"required"`
	Result  *resultWire     `json:"result" validate:"required"`
}

type resultWire struct {
	StatusCode *int            `json:"statusCode" validate:"required"`
	Status     json.RawMessage `json:"status" validate:"required"`
	Data       json.RawMessage `json:"data" validate:"required"`
}

// Envelope is a validated list response.
type Envelope struct {
	ID         json.RawMessage
	JSONRPC    string
	StatusCode int
	Status     json.RawMessage
	// Data is result.data as JSON.stringify prints it.
	Data    json.RawMessage
	Records int
}

// ValidateEnvelope checks a raw list response body. Unknown fields are
// ignored; missing fields and wrong primitive types are reported together.
func ValidateEnvelope(raw []byte) (*Envelope, error) {
	var wire envelopeWire
	if err := json.Unmarshal(raw, &wire); err != nil {
		return nil, newError(ShapeEnvelope, raw, decodeIssue(err))
	}
	if err := validate.Struct(&wire); err != nil {
		return nil, newError(ShapeEnvelope, raw, fieldIssues(err)...)
	}

	var issues []string
	if !isKind(wire.ID, '"') && !isNumber(wire.ID) {
		issues = append(issues, "id: must be a string or a number")
	}
	if !isKind(wire.Result.Status, '"') && !isBool(wire.Result.Status) {
		issues = append(issues, "result.status: must be a string or a boolean")
	}

	var records []json.RawMessage
	if !isKind(wire.Result.Data, '[') {
		issues = append(issues, "result.data: must be an array")
	} else if err := json.Unmarshal(wire.Result.Data, &records); err != nil {
		issues = append(issues, "result.data: "+err.Error())
	} else {
		for i, rec := range records {
			if !isKind(rec, '{') {
				issues = append(issues, fmt.Sprintf("result.data[%d]: must be an object", i))
			}
		}
	}
	if len(issues) > 0 {
		return nil, newError(ShapeEnvelope, raw, issues...)
	}

	data, err := Stringify(wire.Result.Data, "")
	if err != nil {
		return nil, newError(ShapeEnvelope, raw, "result.data: "+err.Error())
	}

	return &Envelope{
		ID:         wire.ID,
		JSONRPC:    *wire.JSONRPC,
		StatusCode: *wire.Result.StatusCode,
		Status:     wire.Result.Status,
		Data:       data,
		Records:    len(records),
	}, nil
}

func newError(shape string, raw []byte, issues ...string) *types.ValidationError {
	var value any = string(raw)
	if json.Valid(raw) {
		value = json.RawMessage(raw)
	}
	return &types.ValidationError{Shape: shape, Value: value, Issues: issues}
}

func decodeIssue(err error) string {
	var typeErr *json.UnmarshalTypeError
	if errors.As(err, &typeErr) {
		field := typeErr.Field
		if field == "" {
			field = "(root)"
		}
		return fmt.Sprintf("%s: expected %s, got %s", field, jsonKind(typeErr.Type.String()), typeErr.Value)
	}
	return "body: " + err.Error()
}

func fieldIssues(err error) []string {
	var valErrs validator.ValidationErrors
	if !errors.As(err, &valErrs) {
		return []string{err.Error()}
	}
	issues := make([]string, 0, len(valErrs))
	for _, ve := range valErrs {
		issues = append(issues, fieldPath(ve)+": "+formatValidationError(ve))
	}
	return issues
}

// fieldPath turns "envelopeWire.Result.StatusCode" into "result.statusCode".
func fieldPath(ve validator.FieldError) string {
	parts := strings.Split(ve.StructNamespace(), ".")
	if len(parts) > 1 {
		parts = parts[1:]
	}
	for i, p := range parts {
		parts[i] = jsonName(p)
	}
	return strings.Join(parts, ".")
}

func jsonName(field string) string {
	switch field {
	case "ID":
		return "id"
	case "JSONRPC":
		return "jsonrpc"
	case "":
		return field
	default:
		return strings.ToLower(field[:1]) + field[1:]
	}
}

func formatValidationError(ve validator.FieldError) string {
	switch ve.Tag() {
	case "required":
		return "required"
	default:
		if ve.Param() != "" {
			return fmt.Sprintf("failed %s=%s validation", ve.Tag(), ve.Param())
		}
		return fmt.Sprintf("failed %s validation", ve.Tag())
	}
}

func jsonKind(goType string) string {
	goType = strings.TrimPrefix(goType, "*")
	switch goType {
	case "string":
		return "string"
	case "int", "int64", "float64":
		return "number"
	case "bool":
		return "boolean"
	default:
		if strings.HasPrefix(goType, "validate.") {
			return "object"
		}
		return goType
	}
}

func firstByte(raw json.RawMessage) byte {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 {
		return 0
	}
	return trimmed[0]
}

func isKind(raw json.RawMessage, open byte) bool {
	return firstByte(raw) == open
}

func isNumber(raw json.RawMessage) bool {
	b := firstByte(raw)
	return b == '-' || (b >= '0' && b <= '9')
}

func isBool(raw json.RawMessage) bool {
	b := firstByte(raw)
	return b == 't' || b == 'f'
}
