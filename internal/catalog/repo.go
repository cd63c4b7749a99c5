package catalog

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/starford/modelstore/internal/models"
)

// ReplaceSource stores decls as the full content of the source at path,
// dropping any model the source declared before. A model name declared by
// another source moves to this one.
func (db *DB) ReplaceSource(path, checksum string, decls []models.Declaration) error {
	tx, err := db.conn.Begin()
	if err != nil {
		return fmt.Errorf("catalog: begin tx: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // best-effort on failure path

	_, err = tx.Exec(`
		INSERT INTO sources (path, checksum, updated_at)
		VALUES (?, ?, ?)
		ON CONFLICT(path) DO UPDATE SET
			checksum   = excluded.checksum,
			updated_at = excluded.updated_at
	`, path, checksum, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("catalog: upsert source: %w", err)
	}
	if _, err := tx.Exec(`DELETE FROM models WHERE source = ?`, path); err != nil {
		return fmt.Errorf("catalog: clear source models: %w", err)
	}

	for _, d := range decls {
		if _, err := tx.Exec(`DELETE FROM models WHERE name = ?`, d.Name); err != nil {
			return fmt.Errorf("catalog: clear model %s: %w", d.Name, err)
		}
		if _, err := tx.Exec(`INSERT INTO models (name, source) VALUES (?, ?)`, d.Name, path); err != nil {
			return fmt.Errorf("catalog: insert model %s: %w", d.Name, err)
		}
		if err := insertAttributes(tx, d); err != nil {
			return err
		}
		if err := insertRelationships(tx, d); err != nil {
			return err
		}
	}

	return tx.Commit()
}

func insertAttributes(tx *sql.Tx, d models.Declaration) error {
	if len(d.Attributes) == 0 {
		return nil
	}
	stmt, err := tx.Prepare(`INSERT INTO attributes (model, name, type, default_value, default_expr, options) VALUES (?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("catalog: prepare attribute insert: %w", err)
	}
	defer stmt.Close()
	for _, a := range d.Attributes {
		var def sql.NullString
		if a.DefaultValue != nil {
			raw, err := json.Marshal(a.DefaultValue)
			if err != nil {
				return fmt.Errorf("catalog: encode default %s.%s: %w", d.Name, a.Name, err)
			}
			def = sql.NullString{String: string(raw), Valid: true}
		}
		opts, _ := json.Marshal(nonNil(a.Options))
		if _, err := stmt.Exec(d.Name, a.Name, a.Type, def, a.DefaultExpr, string(opts)); err != nil {
			return fmt.Errorf("catalog: insert attribute %s.%s: %w", d.Name, a.Name, err)
		}
	}
	return nil
}

func insertRelationships(tx *sql.Tx, d models.Declaration) error {
	if len(d.Relationships) == 0 {
		return nil
	}
	stmt, err := tx.Prepare(`INSERT INTO relationships (model, key, kind, type, inverse, options) VALUES (?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("catalog: prepare relationship insert: %w", err)
	}
	defer stmt.Close()
	for _, r := range d.Relationships {
		opts, _ := json.Marshal(nonNil(r.Options))
		if _, err := stmt.Exec(d.Name, r.Key, string(r.Kind), r.Type, r.Inverse, string(opts)); err != nil {
			return fmt.Errorf("catalog: insert relationship %s.%s: %w", d.Name, r.Key, err)
		}
	}
	return nil
}

// DeleteSource removes a source and, by cascade, every model it declared.
func (db *DB) DeleteSource(path string) error {
	if _, err := db.conn.Exec(`DELETE FROM sources WHERE path = ?`, path); err != nil {
		return fmt.Errorf("catalog: delete source: %w", err)
	}
	return nil
}

// SourceChecksums returns the stored checksum of every indexed source.
func (db *DB) SourceChecksums() (map[string]string, error) {
	rows, err := db.conn.Query(`SELECT path, checksum FROM sources`)
	if err != nil {
		return nil, fmt.Errorf("catalog: source checksums: %w", err)
	}
	defer rows.Close()
	out := make(map[string]string)
	for rows.Next() {
		var p, cs string
		if err := rows.Scan(&p, &cs); err != nil {
			return nil, err
		}
		out[p] = cs
	}
	return out, rows.Err()
}

// ModelNames returns every catalogued model name, sorted.
func (db *DB) ModelNames() ([]string, error) {
	rows, err := db.conn.Query(`SELECT name FROM models ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("catalog: model names: %w", err)
	}
	defer rows.Close()
	var out []string
	for rows.Next() {
		var n string
		if err := rows.Scan(&n); err != nil {
			return nil, err
		}
		out = append(out, n)
	}
	return out, rows.Err()
}

// ModelSource returns the source path that declared name, or "" when the
// model is not catalogued.
func (db *DB) ModelSource(name string) (string, error) {
	var src string
	err := db.conn.QueryRow(`SELECT source FROM models WHERE name = ?`, name).Scan(&src)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("catalog: model source: %w", err)
	}
	return src, nil
}

func nonNil(m map[string]any) map[string]any {
	if m == nil {
		return map[string]any{}
	}
	return m
}
