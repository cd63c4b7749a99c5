package record

import (
	"fmt"

	"github.com/expr-lang/expr"

	"github.com/starford/modelstore/internal/models"
)

// defaultValue applies the attribute's default-value policy. DefaultExpr is
// evaluated on every call so values like now() stay fresh.
func defaultValue(meta models.AttributeMeta, id models.Identifier) (any, error) {
	if meta.DefaultExpr == "" {
		return meta.DefaultValue, nil
	}
	// now() is an expr builtin.
	env := map[string]any{
		"recordId":  id.ID,
		"modelName": id.Type,
		"field":     meta.Name,
	}
	v, err := expr.Eval(meta.DefaultExpr, env)
	if err != nil {
		return nil, fmt.Errorf("record: default for %s.%s: %w", id.Type, meta.Name, err)
	}
	return v, nil
}
