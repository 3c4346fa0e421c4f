package parser

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"sort"
	"strings"

	"github.com/getkin/kin-openapi/openapi3"
)

// Operation is one GET or POST operation found in an OpenAPI document
type Operation struct {
	Method      string
	Path        string
	OperationID string
	Summary     string
	RequestBody *openapi3.SchemaRef
}

// SwaggerParser loads Swagger/OpenAPI documents from a URL or file
type SwaggerParser struct {
	source string
	client *http.Client
	logger *slog.Logger
	doc    *openapi3.T
}

// NewSwaggerParser creates a parser for a base URL, a document URL or a local file
func NewSwaggerParser(source string, client *http.Client, logger *slog.Logger) *SwaggerParser {
	if client == nil {
		client = http.DefaultClient
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &SwaggerParser{
		source: strings.TrimRight(source, "/"),
		client: client,
		logger: logger,
	}
}

// ParseOperations fetches the document and lists its GET and POST operations
// sorted by path then method.
func (p *SwaggerParser) ParseOperations(ctx context.Context) ([]Operation, error) {
	if !strings.HasPrefix(p.source, "http://") && !strings.HasPrefix(p.source, "https://") {
		doc, err := p.loadFile(p.source)
		if err != nil {
			return nil, err
		}
		p.doc = doc
		return p.extractOperations(), nil
	}

	// Try the source itself first, then the usual document locations
	urls := []string{
		p.source,
		p.source + "/swagger/v1/swagger.json",
		p.source + "/swagger.json",
		p.source + "/v1/swagger.json",
		p.source + "/api/swagger.json",
		p.source + "/api/v1/swagger.json",
		p.source + "/openapi.json",
	}

	var lastErr error
	for _, url := range urls {
		p.logger.Debug("fetching OpenAPI document", "url", url)
		p.doc, lastErr = p.fetchOpenAPIDoc(ctx, url)
		if lastErr == nil {
			p.logger.Info("fetched OpenAPI document", "url", url)
			break
		}
		p.logger.Debug("OpenAPI document not found", "url", url, "error", lastErr)
	}

	if p.doc == nil {
		return nil, fmt.Errorf("failed to fetch OpenAPI documentation from any known URL: %w", lastErr)
	}

	return p.extractOperations(), nil
}

func (p *SwaggerParser) loadFile(path string) (*openapi3.T, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read OpenAPI document: %w", err)
	}
	return loadDoc(data)
}

// fetchOpenAPIDoc fetches the OpenAPI documentation from the given URL
func (p *SwaggerParser) fetchOpenAPIDoc(ctx context.Context, url string) (*openapi3.T, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	resp, err := p.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("HTTP request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status code: %d", resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response body: %w", err)
	}

	return loadDoc(body)
}

func loadDoc(data []byte) (*openapi3.T, error) {
	loader := openapi3.NewLoader()
	doc, err := loader.LoadFromData(data)
	if err != nil {
		return nil, fmt.Errorf("failed to parse OpenAPI doc: %w", err)
	}
	return doc, nil
}

// extractOperations extracts GET and POST operations from the OpenAPI documentation
func (p *SwaggerParser) extractOperations() []Operation {
	var ops []Operation

	if p.doc.Paths == nil {
		return ops
	}

	for path, pathItem := range p.doc.Paths.Map() {
		for method, operation := range pathItem.Operations() {
			method = strings.ToUpper(method)
			if method != http.MethodGet && method != http.MethodPost {
				continue
			}

			op := Operation{
				Method:      method,
				Path:        path,
				OperationID: operation.OperationID,
				Summary:     operation.Summary,
			}
			if op.Summary == "" {
				op.Summary = operation.Description
			}

			// Take the JSON body schema, falling back to the first declared content type
			if operation.RequestBody != nil && operation.RequestBody.Value != nil {
				content := operation.RequestBody.Value.Content
				if mt := content.Get("application/json"); mt != nil && mt.Schema != nil {
					op.RequestBody = mt.Schema
				} else {
					for _, ct := range sortedKeys(content) {
						if mt := content[ct]; mt != nil && mt.Schema != nil {
							op.RequestBody = mt.Schema
							break
						}
					}
				}
			}

			ops = append(ops, op)
		}
	}

	sort.Slice(ops, func(i, j int) bool {
		if ops[i].Path != ops[j].Path {
			return ops[i].Path < ops[j].Path
		}
		return ops[i].Method < ops[j].Method
	})
	return ops
}

func sortedKeys(content openapi3.Content) []string {
	keys := make([]string, 0, len(content))
	for k := range content {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
