package artifact

import (
	"errors"
	"io/fs"
	"os"
	"path/filepath"
)

// Layout maps an endpoint name to its artifact paths.
type Layout struct {
	JSONDir    string
	SchemasDir string
	TypesDir   string
}

// EndpointDir is the directory holding the fetched JSON of an endpoint.
func (l Layout) EndpointDir(name string) string {
	return filepath.Join(l.JSONDir, name)
}

// Harvested lists the endpoints that have a raw.json under JSONDir, sorted
// by name. A missing JSONDir lists nothing.
func (l Layout) Harvested() ([]string, error) {
	entries, err := os.ReadDir(l.JSONDir)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	var names []string
	for _, e := range entries {
		if !e.IsDir() {
			continue
		}
		info, err := os.Stat(l.Raw(e.Name()))
		if err == nil && info.Mode().IsRegular() {
			names = append(names, e.Name())
		}
	}
	return names, nil
}

func (l Layout) Raw(name string) string {
	return filepath.Join(l.EndpointDir(name), "raw.json")
}

func (l Layout) Data(name string) string {
	return filepath.Join(l.EndpointDir(name), "data.json")
}

func (l Layout) RawCreate(name string) string {
	return filepath.Join(l.EndpointDir(name), "raw.create.json")
}

func (l Layout) DataCreate(name string) string {
	return filepath.Join(l.EndpointDir(name), "data.create.json")
}

func (l Layout) Schema(name string) string {
	return filepath.Join(l.SchemasDir, name, "schema.ts")
}

func (l Layout) JSONSchema(name string) string {
	return filepath.Join(l.SchemasDir, name, "schema.json")
}

func (l Layout) CreateBodySchema(name string) string {
	return filepath.Join(l.SchemasDir, name, "create.body.schema.ts")
}

func (l Layout) Interface(name string) string {
	return filepath.Join(l.TypesDir, name, "interface.ts")
}
