// Package modeldef loads the models file: the model definitions a store is
// attached with and the routes the server mounts. The file is YAML and is
// validated against an embedded JSON schema before it is decoded.
package modeldef

import (
	"bytes"
	_ "embed"
	"errors"
	"fmt"
	"os"
	"sort"

	jsoniter "github.com/json-iterator/go"
	"github.com/santhosh-tekuri/jsonschema/v5"
	"gopkg.in/yaml.v3"

	"github.com/mesh-intelligence/crudkit/pkg/types"
)

// DefaultFileName is the models file looked up in the config directory.
const DefaultFileName = "models.yaml"

const schemaURL = "models.schema.json"

//go:embed schema.json
var schemaJSON []byte

// DefaultFile is the models file written by crudkit init.
//
//go:embed default.yaml
var DefaultFile []byte

// ErrInvalidFile is returned when the models file fails validation.
var ErrInvalidFile = errors.New("invalid models file")

// File is the decoded models file.
type File struct {
	Models map[string]types.Definition `json:"models" yaml:"models"`
	Routes []Route                     `json:"routes,omitempty" yaml:"routes"`
}

// Route binds an HTTP method and path to a registered handler method.
type Route struct {
	Method        string   `json:"method" yaml:"method"`
	Path          string   `json:"path" yaml:"path"`
	Handler       string   `json:"handler" yaml:"handler"`
	Model         string   `json:"model" yaml:"model"`
	UniqueID      string   `json:"uniqueId,omitempty" yaml:"uniqueId"`
	CredentialKey string   `json:"credentialKey,omitempty" yaml:"credentialKey"`
	Auth          bool     `json:"auth,omitempty" yaml:"auth"`
	Criteria      Criteria `json:"criteria" yaml:"criteria"`
}

// Criteria describes how a route selects records. Params and Credentials map
// attribute names to path parameter and credential names.
type Criteria struct {
	Params      map[string]string `json:"params,omitempty" yaml:"params"`
	Credentials map[string]string `json:"credentials,omitempty" yaml:"credentials"`
	Query       []string          `json:"query,omitempty" yaml:"query"`
	Static      map[string]any    `json:"static,omitempty" yaml:"static"`
}

// IsZero reports whether no criteria source is configured.
func (c Criteria) IsZero() bool {
	return len(c.Params) == 0 && len(c.Credentials) == 0 && len(c.Query) == 0 && c.Static == nil
}

var schema = mustCompile()

func mustCompile() *jsonschema.Schema {
	c := jsonschema.NewCompiler()
	c.Draft = jsonschema.Draft2020
	if err := c.AddResource(schemaURL, bytes.NewReader(schemaJSON)); err != nil {
		panic(err)
	}
	return c.MustCompile(schemaURL)
}

// Load reads and parses the models file at path.
func Load(path string) (*File, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	f, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return f, nil
}

// Parse validates data against the schema, decodes it and checks that the
// models are well formed and every route names a defined model.
func Parse(data []byte) (*File, error) {
	var doc any
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidFile, err)
	}

	// The validator wants JSON values, so the YAML tree goes through JSON.
	raw, err := jsoniter.ConfigCompatibleWithStandardLibrary.Marshal(doc)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidFile, err)
	}
	var inst any
	if err := jsoniter.ConfigCompatibleWithStandardLibrary.Unmarshal(raw, &inst); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidFile, err)
	}
	if err := schema.Validate(inst); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidFile, err)
	}

	var f File
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidFile, err)
	}
	if err := f.validate(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidFile, err)
	}
	return &f, nil
}

func (f *File) validate() error {
	for _, name := range f.ModelNames() {
		if err := f.Models[name].Validate(); err != nil {
			return fmt.Errorf("model %q: %w", name, err)
		}
	}
	for i, r := range f.Routes {
		def, ok := f.Models[r.Model]
		if !ok {
			return fmt.Errorf("route %d (%s %s): unknown model %q", i, r.Method, r.Path, r.Model)
		}
		if attr, ok := r.unknownAttribute(def.WithDefaults()); !ok {
			return fmt.Errorf("route %d (%s %s): unknown attribute %q", i, r.Method, r.Path, attr)
		}
	}
	return nil
}

// unknownAttribute returns the first attribute the route names that def
// lacks. ok is false when one was found.
func (r Route) unknownAttribute(def types.Definition) (attr string, ok bool) {
	var keyed []string
	for a := range r.Criteria.Params {
		keyed = append(keyed, a)
	}
	for a := range r.Criteria.Credentials {
		keyed = append(keyed, a)
	}
	for a := range r.Criteria.Static {
		keyed = append(keyed, a)
	}
	sort.Strings(keyed)

	names := append([]string{r.UniqueID, r.CredentialKey}, r.Criteria.Query...)
	for _, a := range append(names, keyed...) {
		if a == "" {
			continue
		}
		if _, found := def[a]; !found {
			return a, false
		}
	}
	return "", true
}

// ModelNames returns the model names in sorted order.
func (f *File) ModelNames() []string {
	names := make([]string, 0, len(f.Models))
	for name := range f.Models {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
