package protocol

import (
	"bytes"
	"embed"
	"encoding/json"
	"fmt"
	"io/fs"
	"sort"
	"strings"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

// Schema names, one per admin request body plus the stream event.
const (
	SchemaDeactivate = "deactivate"
	SchemaPower      = "power"
	SchemaClear      = "clear"
	SchemaTeleport   = "teleport"
	SchemaBlock      = "block"
	SchemaInteract   = "interact"
	SchemaDispense   = "dispense"
	SchemaSpawn      = "spawn"
	SchemaMove       = "move"
	SchemaEvent      = "event"
)

//go:embed schemas/*.schema.json
var schemaFS embed.FS

var (
	schemasOnce sync.Once
	schemas     map[string]*jsonschema.Schema
	schemasErr  error
)

func compileSchemas() (map[string]*jsonschema.Schema, error) {
	schemasOnce.Do(func() {
		c := jsonschema.NewCompiler()
		c.Draft = jsonschema.Draft2020
		c.AssertFormat = true

		names, err := fs.Glob(schemaFS, "schemas/*.schema.json")
		if err != nil {
			schemasErr = err
			return
		}
		for _, p := range names {
			b, err := schemaFS.ReadFile(p)
			if err != nil {
				schemasErr = err
				return
			}
			if err := c.AddResource(strings.TrimPrefix(p, "schemas/"), bytes.NewReader(b)); err != nil {
				schemasErr = fmt.Errorf("%s: %w", p, err)
				return
			}
		}
		out := make(map[string]*jsonschema.Schema, len(names))
		for _, p := range names {
			file := strings.TrimPrefix(p, "schemas/")
			s, err := c.Compile(file)
			if err != nil {
				schemasErr = fmt.Errorf("compile %s: %w", file, err)
				return
			}
			out[strings.TrimSuffix(file, ".schema.json")] = s
		}
		schemas = out
	})
	return schemas, schemasErr
}

// SchemaNames lists the embedded schemas.
func SchemaNames() []string {
	m, err := compileSchemas()
	if err != nil {
		return nil
	}
	out := make([]string, 0, len(m))
	for name := range m {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

// Validate checks a raw JSON document against the named schema.
func Validate(name string, doc []byte) error {
	m, err := compileSchemas()
	if err != nil {
		return err
	}
	s, ok := m[name]
	if !ok {
		return fmt.Errorf("unknown schema %q", name)
	}
	dec := json.NewDecoder(bytes.NewReader(doc))
	dec.UseNumber()
	var v any
	if err := dec.Decode(&v); err != nil {
		return fmt.Errorf("invalid json: %w", err)
	}
	if dec.More() {
		return fmt.Errorf("invalid json: trailing data")
	}
	return s.Validate(v)
}
