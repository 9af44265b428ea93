package storage

import (
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/dshills/projectindex/internal/index"
	"github.com/dshills/projectindex/internal/predicate"
)

// translate turns a predicate tree into a WHERE clause over the docs table
// aliased "d"
func (p *ProjectIndex) translate(pred predicate.Predicate) (string, []interface{}, error) {
	switch v := pred.(type) {
	case predicate.AnyPredicate:
		return "1 = 1", nil, nil
	case *predicate.AndPredicate:
		return p.translateAll(v.Children, " AND ")
	case *predicate.OrPredicate:
		return p.translateAll(v.Children, " OR ")
	case *predicate.NotPredicate:
		where, args, err := p.translate(v.Child)
		if err != nil {
			return "", nil, err
		}
		return "NOT (" + where + ")", args, nil
	case *predicate.FieldPredicate:
		return p.translateField(v)
	default:
		return "", nil, fmt.Errorf("%w: %T", index.ErrUnsupportedPredicate, pred)
	}
}

func (p *ProjectIndex) translateAll(children []predicate.Predicate, sep string) (string, []interface{}, error) {
	parts := make([]string, 0, len(children))
	var args []interface{}
	for _, c := range children {
		where, cargs, err := p.translate(c)
		if err != nil {
			return "", nil, err
		}
		parts = append(parts, where)
		args = append(args, cargs...)
	}
	return "(" + strings.Join(parts, sep) + ")", args, nil
}

func (p *ProjectIndex) translateField(fp *predicate.FieldPredicate) (string, []interface{}, error) {
	if !p.schema.Has(fp.Field) {
		return "", nil, fmt.Errorf("%w: %s not in schema %s", index.ErrUnsupportedField, fp.Field.Name, p.schema)
	}
	if !fp.Field.Matchable() {
		return "", nil, fmt.Errorf("%w: %s is stored only", index.ErrUnsupportedField, fp.Field.Name)
	}

	exists := "EXISTS (SELECT 1 FROM " + p.fields + " f WHERE f.name = d.name AND f.field = ? AND "
	switch fp.Op {
	case predicate.OpEquals:
		return exists + "f.text = ?)", []interface{}{fp.Field.Name, fp.Value}, nil
	case predicate.OpPrefix:
		return exists + "substr(f.text, 1, ?) = ?)",
			[]interface{}{fp.Field.Name, utf8.RuneCountInString(fp.Value), fp.Value}, nil
	case predicate.OpSubstring:
		return exists + "instr(lower(f.text), lower(?)) > 0)", []interface{}{fp.Field.Name, fp.Value}, nil
	case predicate.OpFullText:
		expr := ftsExpression(fp.Value)
		if expr == "" {
			return "0 = 1", nil, nil
		}
		return "d.name IN (SELECT name FROM " + p.fts + " WHERE field = ? AND " + p.fts + " MATCH ?)",
			[]interface{}{fp.Field.Name, expr}, nil
	default:
		return "", nil, fmt.Errorf("%w: operator %s", index.ErrUnsupportedPredicate, fp.Op)
	}
}

// ftsExpression quotes every token so user input is never parsed as FTS5
// query syntax. Space-separated phrases are ANDed by FTS5.
func ftsExpression(text string) string {
	tokens := predicate.Tokenize(text)
	quoted := make([]string, len(tokens))
	for i, tok := range tokens {
		quoted[i] = `"` + strings.ReplaceAll(tok, `"`, `""`) + `"`
	}
	return strings.Join(quoted, " ")
}

func isNoRows(err error) bool {
	return errors.Is(err, sql.ErrNoRows)
}

func isDuplicate(err error) bool {
	return errors.Is(err, index.ErrDuplicateDocument)
}
