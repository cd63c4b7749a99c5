package parser

import (
	"fmt"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	"cuelang.org/go/cue/errors"
	"cuelang.org/go/cue/token"
)

// CompileError locates a problem in a CUE schema source.
type CompileError struct {
	Field   string
	Message string
	Pos     token.Pos
}

func (e *CompileError) Error() string {
	if e.Pos.IsValid() {
		return fmt.Sprintf("%d:%d: %s: %s", e.Pos.Line(), e.Pos.Column(), e.Field, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// parseCUE reads every struct under the top-level "model" field.
func parseCUE(filename string, data []byte) ([]modelDoc, error) {
	ctx := cuecontext.New()
	v := ctx.CompileBytes(data, cue.Filename(filename))
	if err := v.Err(); err != nil {
		return nil, formatCUEError(err)
	}

	modelsVal := v.LookupPath(cue.ParsePath("model"))
	if !modelsVal.Exists() {
		return nil, nil
	}
	iter, err := modelsVal.Fields()
	if err != nil {
		return nil, formatCUEError(err)
	}

	var out []modelDoc
	for iter.Next() {
		doc, err := compileModel(iter.Label(), iter.Value())
		if err != nil {
			return nil, err
		}
		out = append(out, doc)
	}
	return out, nil
}

func compileModel(name string, v cue.Value) (modelDoc, error) {
	doc := modelDoc{Model: name}

	attrs := v.LookupPath(cue.ParsePath("attributes"))
	if attrs.Exists() {
		iter, err := attrs.Fields()
		if err != nil {
			return doc, formatCUEError(err)
		}
		doc.Attributes = make(map[string]attributeDoc)
		for iter.Next() {
			a, err := compileAttribute(iter.Value())
			if err != nil {
				return doc, err
			}
			doc.Attributes[iter.Label()] = a
		}
	}

	rels := v.LookupPath(cue.ParsePath("relationships"))
	if rels.Exists() {
		iter, err := rels.Fields()
		if err != nil {
			return doc, formatCUEError(err)
		}
		doc.Relationships = make(map[string]relationshipDoc)
		for iter.Next() {
			r, err := compileRelationship(iter.Value())
			if err != nil {
				return doc, err
			}
			doc.Relationships[iter.Label()] = r
		}
	}
	return doc, nil
}

func compileAttribute(v cue.Value) (attributeDoc, error) {
	var a attributeDoc
	var err error
	if a.Type, err = optionalString(v, "type"); err != nil {
		return a, err
	}
	if a.DefaultExpr, err = optionalString(v, "default_expr"); err != nil {
		return a, err
	}
	if d := v.LookupPath(cue.ParsePath("default")); d.Exists() {
		if err := d.Decode(&a.Default); err != nil {
			return a, formatCUEError(err)
		}
	}
	if o := v.LookupPath(cue.ParsePath("options")); o.Exists() {
		if err := o.Decode(&a.Options); err != nil {
			return a, formatCUEError(err)
		}
	}
	return a, nil
}

func compileRelationship(v cue.Value) (relationshipDoc, error) {
	var r relationshipDoc
	var err error
	if r.Kind, err = optionalString(v, "kind"); err != nil {
		return r, err
	}
	if r.Kind == "" {
		return r, &CompileError{Field: "kind", Message: "kind is required", Pos: v.Pos()}
	}
	if r.Type, err = optionalString(v, "type"); err != nil {
		return r, err
	}
	if r.Inverse, err = optionalString(v, "inverse"); err != nil {
		return r, err
	}
	if o := v.LookupPath(cue.ParsePath("options")); o.Exists() {
		if err := o.Decode(&r.Options); err != nil {
			return r, formatCUEError(err)
		}
	}
	return r, nil
}

func optionalString(v cue.Value, field string) (string, error) {
	f := v.LookupPath(cue.ParsePath(field))
	if !f.Exists() {
		return "", nil
	}
	s, err := f.String()
	if err != nil {
		return "", &CompileError{Field: field, Message: "must be a string", Pos: f.Pos()}
	}
	return s, nil
}

// formatCUEError keeps the first CUE error together with its position.
func formatCUEError(err error) error {
	errs := errors.Errors(err)
	if len(errs) == 0 {
		return err
	}
	first := errs[0]
	if positions := errors.Positions(first); len(positions) > 0 {
		return &CompileError{Field: "cue", Message: first.Error(), Pos: positions[0]}
	}
	return err
}
