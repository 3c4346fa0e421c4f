package validate

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"schema-harvester/internal/types"
)

func TestValidateCreateResultError(t *testing.T) {
	res, err := ValidateCreateResult([]byte(`[{"error": "invalid iban"}]`))
	require.NoError(t, err)
	assert.Equal(t, CreateKindError, res.Kind)
	assert.Nil(t, res.Success)
	require.NotNil(t, res.Failure)
	assert.Equal(t, "invalid iban", *res.Failure.Error)
	assert.Equal(t, "invalid iban", res.Message())
}

func TestValidateCreateResultErrorWithMessage(t *testing.T) {
	res, err := ValidateCreateResult([]byte(`[{"error":"bad_request","message":"iban too short"},{"id":3}]`))
	require.NoError(t, err)
	assert.Equal(t, CreateKindError, res.Kind)
	assert.Equal(t, "bad_request: iban too short", res.Message())
}

func TestValidateCreateResultSuccess(t *testing.T) {
	tests := []struct {
		name string
		body string
		id   float64
	}{
		{name: "array", body: `[{"id": 42, "name": "x"}]`, id: 42},
		{name: "bare object", body: `{"id": 9}`, id: 9},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res, err := ValidateCreateResult([]byte(tt.body))
			require.NoError(t, err)
			assert.Equal(t, CreateKindSuccess, res.Kind)
			require.NotNil(t, res.Success)
			assert.Equal(t, tt.id, *res.Success.ID)
			assert.Empty(t, res.Message())
		})
	}
}

func TestValidateCreateResultFailures(t *testing.T) {
	tests := []struct {
		name  string
		body  string
		shape string
	}{
		{name: "empty array", body: `[]`, shape: ShapeCreateSuccess},
		{name: "string", body: `"ok"`, shape: ShapeCreateSuccess},
		{name: "primitive element", body: `[1]`, shape: ShapeCreateSuccess},
		{name: "missing id", body: `[{"name":"x"}]`, shape: ShapeCreateSuccess},
		{name: "id is a string", body: `[{"id":"5"}]`, shape: ShapeCreateSuccess},
		{name: "error is null", body: `[{"error":null}]`, shape: ShapeCreateError},
		{name: "error is a number", body: `[{"error":500}]`, shape: ShapeCreateError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res, err := ValidateCreateResult([]byte(tt.body))
			require.Error(t, err)
			assert.Nil(t, res)

			var valErr *types.ValidationError
			require.True(t, errors.As(err, &valErr))
			assert.Equal(t, tt.shape, valErr.Shape)
			assert.NotEmpty(t, valErr.Issues)
		})
	}
}
