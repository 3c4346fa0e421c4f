package validate

import (
	"encoding/json"
	"fmt"
)

const (
	ShapeCreateSuccess = "{ id: number }"
	ShapeCreateError   = "{ error: string, message?: string }"
)

// CreateKind tells which variant a create response matched.
type CreateKind string

const (
	CreateKindSuccess CreateKind = "success"
	CreateKindError   CreateKind = "error"
)

// CreateSuccess is a record created by the remote API.
type CreateSuccess struct {
	ID *float64 `json:"id" validate:"required"`
}

// CreateFailure is an error reported in place of a created record.
type CreateFailure struct {
	Error   *string `json:"error" validate:"required"`
	Message *string `json:"message"`
}

// CreateResult is the validated first record of a create response.
type CreateResult struct {
	Kind CreateKind
	// Record is the selected record as received.
	Record  json.RawMessage
	Success *CreateSuccess
	Failure *CreateFailure
}

// Message returns the error text of a failure result.
func (r *CreateResult) Message() string {
	if r == nil || r.Failure == nil || r.Failure.Error == nil {
		return ""
	}
	if r.Failure.Message != nil && *r.Failure.Message != "" {
		return fmt.Sprintf("%s: %s", *r.Failure.Error, *r.Failure.Message)
	}
	return *r.Failure.Error
}

// ValidateCreateResult picks the first element of an array response, or the
// object itself, and validates it against the error shape when it carries
// an "error" key and against the success shape otherwise.
func ValidateCreateResult(raw []byte) (*CreateResult, error) {
	record := json.RawMessage(raw)
	switch firstByte(record) {
	case '[':
		var items []json.RawMessage
		if err := json.Unmarshal(raw, &items); err != nil {
			return nil, newError(ShapeCreateSuccess, raw, decodeIssue(err))
		}
		if len(items) == 0 {
			return nil, newError(ShapeCreateSuccess, raw, "(root): empty array, expected at least one record")
		}
		record = items[0]
	case '{':
	default:
		return nil, newError(ShapeCreateSuccess, raw, "(root): expected an object or an array of objects")
	}

	var fields map[string]json.RawMessage
	if err := json.Unmarshal(record, &fields); err != nil {
		return nil, newError(ShapeCreateSuccess, record, "[0]: must be an object")
	}

	if _, ok := fields["error"]; ok {
		var failure CreateFailure
		if err := json.Unmarshal(record, &failure); err != nil {
			return nil, newError(ShapeCreateError, record, decodeIssue(err))
		}
		if err := validate.Struct(&failure); err != nil {
			return nil, newError(ShapeCreateError, record, fieldIssues(err)...)
		}
		return &CreateResult{Kind: CreateKindError, Record: record, Failure: &failure}, nil
	}

	var success CreateSuccess
	if err := json.Unmarshal(record, &success); err != nil {
		return nil, newError(ShapeCreateSuccess, record, decodeIssue(err))
	}
	if err := validate.Struct(&success); err != nil {
		return nil, newError(ShapeCreateSuccess, record, fieldIssues(err)...)
	}
	return &CreateResult{Kind: CreateKindSuccess, Record: record, Success: &success}, nil
}
