package storage

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/dshills/projectindex/internal/index"
	"github.com/dshills/projectindex/internal/predicate"
	"github.com/dshills/projectindex/internal/schema"
	"github.com/dshills/projectindex/pkg/types"
)

// ProjectIndex is one schema version of the project index, stored as a
// family of tables in the shared database:
//
//	docs_vN    one row per indexed project
//	fields_vN  one row per field value (text for matching, raw for retrieval)
//	fts_vN     FTS5 table holding full-text field values
type ProjectIndex struct {
	storage *SQLiteStorage
	schema  *schema.Schema

	docs   string
	fields string
	fts    string
}

var _ index.Index = (*ProjectIndex)(nil)

func newProjectIndex(s *SQLiteStorage, sch *schema.Schema) *ProjectIndex {
	return &ProjectIndex{
		storage: s,
		schema:  sch,
		docs:    fmt.Sprintf("docs_v%d", sch.Version),
		fields:  fmt.Sprintf("fields_v%d", sch.Version),
		fts:     fmt.Sprintf("fts_v%d", sch.Version),
	}
}

func (p *ProjectIndex) ddl() string {
	return fmt.Sprintf(`
CREATE TABLE IF NOT EXISTS %[1]s (
    name TEXT PRIMARY KEY,
    indexed_at TIMESTAMP NOT NULL
);

CREATE TABLE IF NOT EXISTS %[2]s (
    name TEXT NOT NULL,
    field TEXT NOT NULL,
    ord INTEGER NOT NULL,
    text TEXT,
    raw BLOB NOT NULL,
    PRIMARY KEY (name, field, ord),
    FOREIGN KEY (name) REFERENCES %[1]s(name) ON DELETE CASCADE
);

CREATE INDEX IF NOT EXISTS idx_%[2]s_value ON %[2]s(field, text);

CREATE VIRTUAL TABLE IF NOT EXISTS %[3]s USING fts5(
    name UNINDEXED,
    field UNINDEXED,
    content,
    tokenize = 'unicode61 remove_diacritics 0'
);
`, p.docs, p.fields, p.fts)
}

// Schema returns the schema this index was created with
func (p *ProjectIndex) Schema() *schema.Schema {
	return p.schema
}

func (p *ProjectIndex) fail(op string, err error) error {
	return &index.BackendError{Op: op, Version: p.schema.Version, Err: err}
}

// Insert adds a document; it fails with index.ErrDuplicateDocument if the
// key is already indexed
func (p *ProjectIndex) Insert(ctx context.Context, pd *types.ProjectData) error {
	doc := p.schema.Build(pd)
	err := p.storage.withTx(ctx, func(q querier) error {
		var n int
		if err := q.QueryRowContext(ctx,
			"SELECT COUNT(*) FROM "+p.docs+" WHERE name = ?", doc.Key).Scan(&n); err != nil {
			return err
		}
		if n > 0 {
			return fmt.Errorf("%w: %s", index.ErrDuplicateDocument, doc.Key)
		}
		return p.writeDocument(ctx, q, doc)
	})
	if err != nil {
		if isDuplicate(err) {
			return err
		}
		return p.fail("insert", err)
	}
	return nil
}

// Replace upserts a document, removing every value of the previous one
func (p *ProjectIndex) Replace(ctx context.Context, pd *types.ProjectData) error {
	doc := p.schema.Build(pd)
	err := p.storage.withTx(ctx, func(q querier) error {
		if err := p.deleteDocument(ctx, q, doc.Key); err != nil {
			return err
		}
		return p.writeDocument(ctx, q, doc)
	})
	if err != nil {
		return p.fail("replace", err)
	}
	return nil
}

// Delete removes a document; a missing key is not an error
func (p *ProjectIndex) Delete(ctx context.Context, name string) error {
	err := p.storage.withTx(ctx, func(q querier) error {
		return p.deleteDocument(ctx, q, name)
	})
	if err != nil {
		return p.fail("delete", err)
	}
	return nil
}

// DeleteAll removes every document of this version
func (p *ProjectIndex) DeleteAll(ctx context.Context) error {
	err := p.storage.withTx(ctx, func(q querier) error {
		for _, table := range []string{p.fts, p.fields, p.docs} {
			if _, err := q.ExecContext(ctx, "DELETE FROM "+table); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return p.fail("delete all", err)
	}
	return nil
}

func (p *ProjectIndex) deleteDocument(ctx context.Context, q querier, name string) error {
	for _, table := range []string{p.fts, p.fields, p.docs} {
		if _, err := q.ExecContext(ctx, "DELETE FROM "+table+" WHERE name = ?", name); err != nil {
			return fmt.Errorf("failed to delete from %s: %w", table, err)
		}
	}
	return nil
}

func (p *ProjectIndex) writeDocument(ctx context.Context, q querier, doc *schema.Document) error {
	if _, err := q.ExecContext(ctx,
		"INSERT INTO "+p.docs+" (name, indexed_at) VALUES (?, ?)", doc.Key, time.Now()); err != nil {
		return fmt.Errorf("failed to insert document: %w", err)
	}

	for _, fv := range doc.Fields {
		for ord, raw := range fv.Values {
			var text interface{}
			if fv.Field.Type != schema.StoredOnly {
				text = string(raw)
			}
			if _, err := q.ExecContext(ctx,
				"INSERT INTO "+p.fields+" (name, field, ord, text, raw) VALUES (?, ?, ?, ?, ?)",
				doc.Key, fv.Field.Name, ord, text, raw); err != nil {
				return fmt.Errorf("failed to insert field %s: %w", fv.Field.Name, err)
			}
			if fv.Field.Type == schema.FullText {
				if _, err := q.ExecContext(ctx,
					"INSERT INTO "+p.fts+" (name, field, content) VALUES (?, ?, ?)",
					doc.Key, fv.Field.Name, string(raw)); err != nil {
					return fmt.Errorf("failed to insert full text %s: %w", fv.Field.Name, err)
				}
			}
		}
	}
	return nil
}

// Search returns matching project names ordered by name
func (p *ProjectIndex) Search(ctx context.Context, pred predicate.Predicate, opts index.QueryOptions) ([]string, error) {
	if opts.Start < 0 {
		return nil, fmt.Errorf("start cannot be less than zero: %d", opts.Start)
	}
	where, args, err := p.translate(pred)
	if err != nil {
		return nil, err
	}

	limit := -1
	if opts.Limit > 0 {
		limit = opts.Limit
	}
	query := "SELECT d.name FROM " + p.docs + " d WHERE " + where + " ORDER BY d.name LIMIT ? OFFSET ?"
	args = append(args, limit, opts.Start)

	rows, err := p.storage.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, p.fail("search", err)
	}
	defer func() { _ = rows.Close() }()

	var names []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, p.fail("search", err)
		}
		names = append(names, name)
	}
	if err := rows.Err(); err != nil {
		return nil, p.fail("search", err)
	}
	return names, nil
}

// GetRaw reads stored fields of one document without decoding it. With no
// fields requested, every stored field is returned.
func (p *ProjectIndex) GetRaw(ctx context.Context, name string, opts index.QueryOptions) (index.RawFields, bool, error) {
	fields, err := p.storedFields(opts.Fields)
	if err != nil {
		return nil, false, err
	}

	limit := opts.Limit
	if limit <= 0 {
		limit = 1
	}
	var found string
	err = p.storage.db.QueryRowContext(ctx,
		"SELECT name FROM "+p.docs+" WHERE name = ? LIMIT ?", name, limit).Scan(&found)
	if isNoRows(err) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, p.fail("get raw", err)
	}

	placeholders := strings.TrimSuffix(strings.Repeat("?, ", len(fields)), ", ")
	args := make([]interface{}, 0, len(fields)+1)
	args = append(args, name)
	for _, f := range fields {
		args = append(args, f)
	}
	rows, err := p.storage.db.QueryContext(ctx,
		"SELECT field, raw FROM "+p.fields+" WHERE name = ? AND field IN ("+placeholders+") ORDER BY field, ord",
		args...)
	if err != nil {
		return nil, false, p.fail("get raw", err)
	}
	defer func() { _ = rows.Close() }()

	raw := make(index.RawFields, len(fields))
	for rows.Next() {
		var field string
		var value []byte
		if err := rows.Scan(&field, &value); err != nil {
			return nil, false, p.fail("get raw", err)
		}
		raw[field] = append(raw[field], value)
	}
	if err := rows.Err(); err != nil {
		return nil, false, p.fail("get raw", err)
	}
	return raw, true, nil
}

func (p *ProjectIndex) storedFields(requested []string) ([]string, error) {
	if len(requested) == 0 {
		var all []string
		for _, f := range p.schema.Fields() {
			if f.Stored {
				all = append(all, f.Name)
			}
		}
		return all, nil
	}
	for _, name := range requested {
		f, ok := p.schema.Field(name)
		if !ok {
			return nil, fmt.Errorf("%w: %s not in schema %s", index.ErrUnsupportedField, name, p.schema)
		}
		if !f.Stored {
			return nil, fmt.Errorf("%w: %s", index.ErrFieldNotStored, name)
		}
	}
	return requested, nil
}

// Count returns the number of indexed documents
func (p *ProjectIndex) Count(ctx context.Context) (int, error) {
	var n int
	if err := p.storage.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM "+p.docs).Scan(&n); err != nil {
		return 0, p.fail("count", err)
	}
	return n, nil
}
