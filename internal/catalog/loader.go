package catalog

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"schema-harvester/internal/types"

	"gopkg.in/yaml.v3"
)

// Catalog is the static list of endpoints processed by a run
type Catalog struct {
	Endpoints []types.Endpoint
}

// Loader handles loading the endpoint catalog from a file
type Loader struct {
	path string
}

// NewLoader creates a new catalog loader for a JSON or YAML file
func NewLoader(path string) *Loader {
	return &Loader{path: path}
}

// Path returns the file the loader reads.
func (l *Loader) Path() string {
	return l.path
}

// Load reads and checks the catalog file.
func (l *Loader) Load() (*Catalog, error) {
	data, err := os.ReadFile(l.path)
	if err != nil {
		return nil, &types.ConfigurationError{Message: fmt.Sprintf("failed to read endpoint catalog %s: %v", l.path, err)}
	}

	endpoints, err := Parse(data, filepath.Ext(l.path))
	if err != nil {
		return nil, &types.ConfigurationError{Message: fmt.Sprintf("failed to parse endpoint catalog %s: %v", l.path, err)}
	}
	if err := Check(endpoints); err != nil {
		return nil, &types.ConfigurationError{Message: fmt.Sprintf("invalid endpoint catalog %s: %v", l.path, err)}
	}
	return &Catalog{Endpoints: endpoints}, nil
}

// Parse decodes a catalog document. The document is either a bare list of
// endpoints or an object with an "endpoints" list.
func Parse(data []byte, ext string) ([]types.Endpoint, error) {
	switch strings.ToLower(ext) {
	case ".yaml", ".yml":
		var list []types.Endpoint
		if err := yaml.Unmarshal(data, &list); err == nil {
			return list, nil
		}
		var doc struct {
			Endpoints []types.Endpoint `yaml:"endpoints"`
		}
		if err := yaml.Unmarshal(data, &doc); err != nil {
			return nil, err
		}
		return doc.Endpoints, nil
	default:
		trimmed := strings.TrimSpace(string(data))
		if strings.HasPrefix(trimmed, "[") {
			var list []types.Endpoint
			if err := json.Unmarshal(data, &list); err != nil {
				return nil, err
			}
			return list, nil
		}
		var doc struct {
			Endpoints []types.Endpoint `json:"endpoints"`
		}
		if err := json.Unmarshal(data, &doc); err != nil {
			return nil, err
		}
		return doc.Endpoints, nil
	}
}

// Check enforces that names are present, unique and usable as a directory key.
// Missing urls and bodies are not checked here: the runner reports them per endpoint.
func Check(endpoints []types.Endpoint) error {
	seen := make(map[string]bool, len(endpoints))
	for i, ep := range endpoints {
		name := ep.Name
		if strings.TrimSpace(name) == "" {
			return fmt.Errorf("endpoint #%d has no name", i)
		}
		if name == "." || name == ".." || strings.ContainsAny(name, `/\`) {
			return fmt.Errorf("endpoint name %q cannot be used as a directory", name)
		}
		if seen[name] {
			return fmt.Errorf("duplicate endpoint name %q", name)
		}
		seen[name] = true
	}
	return nil
}

// Find returns the endpoint with the given name.
func (c *Catalog) Find(name string) (types.Endpoint, bool) {
	for _, ep := range c.Endpoints {
		if ep.Name == name {
			return ep, true
		}
	}
	return types.Endpoint{}, false
}

// Select keeps only the named endpoints, in catalog order. No names keeps all.
func (c *Catalog) Select(names []string) ([]types.Endpoint, error) {
	if len(names) == 0 {
		return c.Endpoints, nil
	}
	wanted := make(map[string]bool, len(names))
	for _, n := range names {
		if _, ok := c.Find(n); !ok {
			return nil, fmt.Errorf("endpoint %q is not in the catalog", n)
		}
		wanted[n] = true
	}
	var out []types.Endpoint
	for _, ep := range c.Endpoints {
		if wanted[ep.Name] {
			out = append(out, ep)
		}
	}
	return out, nil
}
