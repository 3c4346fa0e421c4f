package types

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"sort"
	"strings"
)

// Endpoint describes one remote resource listed in the endpoint catalog
type Endpoint struct {
	Name              string         `json:"name" yaml:"name"`
	URL               string         `json:"url" yaml:"url"`
	Method            string         `json:"method" yaml:"method"`
	ListRequestBody   map[string]any `json:"listRequestBody,omitempty" yaml:"listRequestBody,omitempty"`
	CreateURL         string         `json:"createUrl,omitempty" yaml:"createUrl,omitempty"`
	CreateRequestBody map[string]any `json:"createRequestBody,omitempty" yaml:"createRequestBody,omitempty"`
	Description       string         `json:"description,omitempty" yaml:"description,omitempty"`
}

// Mode selects which call of an endpoint a run performs
type Mode string

const (
	ModeList   Mode = "list"
	ModeCreate Mode = "create"
	ModeAll    Mode = "all"
)

// ParseMode parses a mode name; the empty string means list.
func ParseMode(s string) (Mode, error) {
	switch Mode(strings.ToLower(strings.TrimSpace(s))) {
	case "", ModeList:
		return ModeList, nil
	case ModeCreate:
		return ModeCreate, nil
	case ModeAll:
		return ModeAll, nil
	default:
		return "", fmt.Errorf("unknown mode %q (expected list, create or all)", s)
	}
}

// Includes reports whether m covers the single mode other.
func (m Mode) Includes(other Mode) bool {
	return m == ModeAll || m == other
}

// RequestBody is a request payload together with its wire encoding.
// The two variants are ListRequest and CreateRequest.
type RequestBody interface {
	// Encode returns the body reader and the content type to send.
	Encode() (io.Reader, string, error)
	isRequestBody()
}

// ListRequest is sent as a JSON string body
type ListRequest struct {
	Fields map[string]any
}

func (ListRequest) isRequestBody() {}

// Encode marshals the fields as JSON.
func (r ListRequest) Encode() (io.Reader, string, error) {
	data, err := json.Marshal(r.Fields)
	if err != nil {
		return nil, "", fmt.Errorf("failed to marshal list request body: %w", err)
	}
	return bytes.NewReader(data), "application/json", nil
}

// CreateRequest is sent as multipart form fields
type CreateRequest struct {
	Fields map[string]any
}

func (CreateRequest) isRequestBody() {}

// Encode writes every field as a form field, in key order.
// Non-string values are written as their JSON text.
func (r CreateRequest) Encode() (io.Reader, string, error) {
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)

	keys := make([]string, 0, len(r.Fields))
	for k := range r.Fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	for _, key := range keys {
		if err := w.WriteField(key, FormValue(r.Fields[key])); err != nil {
			return nil, "", fmt.Errorf("failed to write form field %q: %w", key, err)
		}
	}
	if err := w.Close(); err != nil {
		return nil, "", fmt.Errorf("failed to close multipart body: %w", err)
	}
	return &buf, w.FormDataContentType(), nil
}

// FormValue renders a decoded JSON value as a form field value.
func FormValue(v any) string {
	switch val := v.(type) {
	case nil:
		return ""
	case string:
		return val
	case bool, int, int64, float64, json.Number:
		return fmt.Sprint(val)
	default:
		data, err := json.Marshal(val)
		if err != nil {
			return fmt.Sprint(val)
		}
		return string(data)
	}
}

// Call is one HTTP request derived from an endpoint
type Call struct {
	Endpoint string
	Mode     Mode
	Method   string
	URL      string
	Body     RequestBody
}

// ListCall builds the list call of the endpoint. A POST without a list
// body, or a missing url, is a configuration mistake of that entry.
func (e Endpoint) ListCall() (Call, error) {
	if strings.TrimSpace(e.URL) == "" {
		return Call{}, fmt.Errorf("no url found for endpoint: %s", e.Name)
	}
	method := strings.ToUpper(strings.TrimSpace(e.Method))
	if method == "" {
		method = "GET"
	}
	if method != "GET" && method != "POST" {
		return Call{}, fmt.Errorf("unsupported method %q for endpoint: %s", e.Method, e.Name)
	}
	call := Call{Endpoint: e.Name, Mode: ModeList, Method: method, URL: e.URL}
	if e.ListRequestBody != nil {
		call.Body = ListRequest{Fields: e.ListRequestBody}
	} else if method == "POST" {
		return Call{}, fmt.Errorf("no listRequestBody found for endpoint: %s", e.Name)
	}
	return call, nil
}

// CreateCall builds the create call of the endpoint. Create calls are always POST.
func (e Endpoint) CreateCall() (Call, error) {
	if strings.TrimSpace(e.CreateURL) == "" {
		return Call{}, fmt.Errorf("no createUrl found for endpoint: %s", e.Name)
	}
	if e.CreateRequestBody == nil {
		return Call{}, fmt.Errorf("no createRequestBody found for endpoint: %s", e.Name)
	}
	return Call{
		Endpoint: e.Name,
		Mode:     ModeCreate,
		Method:   "POST",
		URL:      e.CreateURL,
		Body:     CreateRequest{Fields: e.CreateRequestBody},
	}, nil
}
