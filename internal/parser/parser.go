// Package parser reads model declarations from YAML and CUE schema sources.
package parser

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"slices"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/starford/modelstore/internal/models"
	"github.com/starford/modelstore/internal/naming"
)

var (
	// ErrUnsupported is returned for files that are not schema sources.
	ErrUnsupported = errors.New("unsupported schema source")

	// ErrInvalid wraps every syntax and validation failure.
	ErrInvalid = errors.New("invalid schema declaration")
)

// Extensions lists the file extensions Parse understands.
var Extensions = []string{".yaml", ".yml", ".cue"}

// IsSchemaSource reports whether path has a schema source extension.
func IsSchemaSource(path string) bool {
	return slices.Contains(Extensions, strings.ToLower(filepath.Ext(path)))
}

// Parse returns the declarations in data. The format is chosen by the
// extension of filename.
func Parse(filename string, data []byte) ([]models.Declaration, error) {
	var (
		docs []modelDoc
		err  error
	)
	switch strings.ToLower(filepath.Ext(filename)) {
	case ".yaml", ".yml":
		docs, err = parseYAML(data)
	case ".cue":
		docs, err = parseCUE(filename, data)
	default:
		return nil, fmt.Errorf("parser: %s: %w", filename, ErrUnsupported)
	}
	if err != nil {
		return nil, fmt.Errorf("parser: %s: %w: %w", filename, ErrInvalid, err)
	}

	decls := make([]models.Declaration, 0, len(docs))
	seen := make(map[string]struct{}, len(docs))
	for _, s := range docs {
		if err := s.Validate(); err != nil {
			return nil, fmt.Errorf("parser: %s: model %q: %w: %w", filename, s.Model, ErrInvalid, err)
		}
		d := s.declaration()
		if _, dup := seen[d.Name]; dup {
			return nil, fmt.Errorf("parser: %s: %w: model %q declared twice", filename, ErrInvalid, d.Name)
		}
		seen[d.Name] = struct{}{}
		decls = append(decls, d)
	}
	return decls, nil
}

// modelDoc is the format-neutral shape of one declaration.
type modelDoc struct {
	Model         string                     `yaml:"model"`
	Attributes    map[string]attributeDoc    `yaml:"attributes"`
	Relationships map[string]relationshipDoc `yaml:"relationships"`
}

type attributeDoc struct {
	Type        string         `yaml:"type"`
	Default     any            `yaml:"default"`
	DefaultExpr string         `yaml:"default_expr"`
	Options     map[string]any `yaml:"options"`
}

type relationshipDoc struct {
	Kind    string         `yaml:"kind"`
	Type    string         `yaml:"type"`
	Inverse string         `yaml:"inverse"`
	Options map[string]any `yaml:"options"`
}

func parseYAML(data []byte) ([]modelDoc, error) {
	dec := yaml.NewDecoder(bytes.NewReader(data))
	var out []modelDoc
	for {
		var s modelDoc
		err := dec.Decode(&s)
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, err
		}
		if s.Model == "" && len(s.Attributes) == 0 && len(s.Relationships) == 0 {
			continue
		}
		out = append(out, s)
	}
	return out, nil
}

func (s modelDoc) declaration() models.Declaration {
	name := naming.Normalize(s.Model)
	d := models.Declaration{Name: name}

	for _, key := range sortedKeys(s.Attributes) {
		a := s.Attributes[key]
		d.Attributes = append(d.Attributes, models.AttributeMeta{
			Name:         key,
			Type:         a.Type,
			DefaultValue: a.Default,
			DefaultExpr:  a.DefaultExpr,
			Options:      a.Options,
		})
	}
	for _, key := range sortedKeys(s.Relationships) {
		r := s.Relationships[key]
		d.Relationships = append(d.Relationships, models.RelationshipMeta{
			Key:             key,
			Kind:            models.RelationshipKind(r.Kind),
			Type:            naming.Normalize(r.Type),
			Inverse:         r.Inverse,
			ParentModelName: name,
			Options:         r.Options,
		})
	}
	return d
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	return keys
}
