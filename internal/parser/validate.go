package parser

import (
	"errors"
	"fmt"

	"github.com/expr-lang/expr"
	validation "github.com/go-ozzo/ozzo-validation/v4"

	"github.com/starford/modelstore/internal/models"
)

var validKinds = []any{string(models.BelongsTo), string(models.HasMany)}

// Validate implements validation.Validatable.
func (s modelDoc) Validate() error {
	if err := validation.ValidateStruct(&s,
		validation.Field(&s.Model, validation.Required),
	); err != nil {
		return err
	}
	for name, a := range s.Attributes {
		if err := a.Validate(); err != nil {
			return fmt.Errorf("attribute %q: %w", name, err)
		}
	}
	for key, r := range s.Relationships {
		if err := r.Validate(); err != nil {
			return fmt.Errorf("relationship %q: %w", key, err)
		}
	}
	return nil
}

// Validate implements validation.Validatable.
func (a attributeDoc) Validate() error {
	if a.Default != nil && a.DefaultExpr != "" {
		return errors.New("default and default_expr are mutually exclusive")
	}
	return validation.ValidateStruct(&a,
		validation.Field(&a.DefaultExpr, validation.By(compiles)),
	)
}

// Validate implements validation.Validatable.
func (r relationshipDoc) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Kind, validation.Required, validation.In(validKinds...)),
		validation.Field(&r.Type, validation.Required),
	)
}

func compiles(value any) error {
	src, _ := value.(string)
	if src == "" {
		return nil
	}
	if _, err := expr.Compile(src); err != nil {
		return fmt.Errorf("invalid expression: %w", err)
	}
	return nil
}
