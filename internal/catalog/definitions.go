package catalog

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/starford/modelstore/internal/apperr"
	"github.com/starford/modelstore/internal/models"
	"github.com/starford/modelstore/internal/store"
)

var _ store.SchemaDefinitionService = (*DB)(nil)

// AttributesDefinitionFor implements store.SchemaDefinitionService. Default
// values round-trip through JSON, so numbers come back as float64.
func (db *DB) AttributesDefinitionFor(name string) (models.AttributesDefinition, error) {
	if !db.DoesTypeExist(name) {
		return nil, apperr.NotFound("attributesDefinitionFor", name)
	}
	rows, err := db.conn.Query(`
		SELECT name, type, default_value, default_expr, options
		FROM attributes WHERE model = ? ORDER BY name
	`, name)
	if err != nil {
		return nil, fmt.Errorf("catalog: attributes for %s: %w", name, err)
	}
	defer rows.Close()

	out := make(models.AttributesDefinition)
	for rows.Next() {
		var (
			a    models.AttributeMeta
			def  sql.NullString
			opts string
		)
		if err := rows.Scan(&a.Name, &a.Type, &def, &a.DefaultExpr, &opts); err != nil {
			return nil, err
		}
		if def.Valid {
			if err := json.Unmarshal([]byte(def.String), &a.DefaultValue); err != nil {
				return nil, fmt.Errorf("catalog: decode default %s.%s: %w", name, a.Name, err)
			}
		}
		a.Options = decodeOptions(opts)
		out[a.Name] = a
	}
	return out, rows.Err()
}

// RelationshipsDefinitionFor implements store.SchemaDefinitionService. It
// returns nil for a model without relationships.
func (db *DB) RelationshipsDefinitionFor(name string) (models.RelationshipsDefinition, error) {
	if !db.DoesTypeExist(name) {
		return nil, apperr.NotFound("relationshipsDefinitionFor", name)
	}
	rows, err := db.conn.Query(`
		SELECT key, kind, type, inverse, options
		FROM relationships WHERE model = ? ORDER BY key
	`, name)
	if err != nil {
		return nil, fmt.Errorf("catalog: relationships for %s: %w", name, err)
	}
	defer rows.Close()

	var out models.RelationshipsDefinition
	for rows.Next() {
		var (
			r    models.RelationshipMeta
			kind string
			opts string
		)
		if err := rows.Scan(&r.Key, &kind, &r.Type, &r.Inverse, &opts); err != nil {
			return nil, err
		}
		r.Kind = models.RelationshipKind(kind)
		r.ParentModelName = name
		r.Options = decodeOptions(opts)
		if out == nil {
			out = make(models.RelationshipsDefinition)
		}
		out[r.Key] = r
	}
	return out, rows.Err()
}

// DoesTypeExist implements store.SchemaDefinitionService.
func (db *DB) DoesTypeExist(name string) bool {
	var n int
	if err := db.conn.QueryRow(`SELECT count(*) FROM models WHERE name = ?`, name).Scan(&n); err != nil {
		slog.Debug("catalog: type lookup failed", slog.String("model", name), slog.String("error", err.Error()))
		return false
	}
	return n > 0
}

func decodeOptions(raw string) map[string]any {
	var m map[string]any
	if err := json.Unmarshal([]byte(raw), &m); err != nil || len(m) == 0 {
		return nil
	}
	return m
}
