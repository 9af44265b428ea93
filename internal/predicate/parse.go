package predicate

import (
	"fmt"
	"strings"

	"github.com/dshills/projectindex/pkg/types"
)

type tokenKind int

const (
	tokWord tokenKind = iota
	tokLParen
	tokRParen
)

type token struct {
	kind tokenKind
	text string
	// bare is false when the word starts with a quote; such words are never
	// keywords, negations, or operators
	bare bool
}

// Parse converts a query string into a predicate tree.
//
// Terms are "operator:value" or bare words. Adjacent terms are ANDed; "OR"
// separates alternatives; "-" or "NOT" negates; parentheses group. Values
// containing spaces are double-quoted. An empty query matches everything.
func Parse(query string) (Predicate, error) {
	toks, err := lex(query)
	if err != nil {
		return nil, err
	}
	if len(toks) == 0 {
		return Any(), nil
	}
	p := &parser{toks: toks}
	pred, err := p.parseOr()
	if err != nil {
		return nil, err
	}
	if p.pos < len(p.toks) {
		return nil, fmt.Errorf("%w: unexpected %q", ErrBadQuery, p.toks[p.pos].text)
	}
	return pred, nil
}

func lex(query string) ([]token, error) {
	var toks []token
	runes := []rune(query)
	for i := 0; i < len(runes); {
		r := runes[i]
		switch {
		case r == ' ' || r == '\t' || r == '\n':
			i++
		case r == '(':
			toks = append(toks, token{kind: tokLParen, text: "("})
			i++
		case r == ')':
			toks = append(toks, token{kind: tokRParen, text: ")"})
			i++
		default:
			var sb strings.Builder
			bare := true
			for i < len(runes) {
				r = runes[i]
				if r == '"' {
					if sb.Len() == 0 {
						bare = false
					}
					i++
					closed := false
					for i < len(runes) {
						if runes[i] == '\\' && i+1 < len(runes) && runes[i+1] == '"' {
							sb.WriteRune('"')
							i += 2
							continue
						}
						if runes[i] == '"' {
							closed = true
							i++
							break
						}
						sb.WriteRune(runes[i])
						i++
					}
					if !closed {
						return nil, fmt.Errorf("%w: unterminated quote", ErrBadQuery)
					}
					continue
				}
				if r == ' ' || r == '\t' || r == '\n' || r == '(' || r == ')' {
					break
				}
				sb.WriteRune(r)
				i++
			}
			toks = append(toks, token{kind: tokWord, text: sb.String(), bare: bare})
		}
	}
	return toks, nil
}

type parser struct {
	toks []token
	pos  int
}

func (p *parser) peek() (token, bool) {
	if p.pos >= len(p.toks) {
		return token{}, false
	}
	return p.toks[p.pos], true
}

func (p *parser) keyword(kw string) bool {
	t, ok := p.peek()
	return ok && t.kind == tokWord && t.bare && t.text == kw
}

func (p *parser) parseOr() (Predicate, error) {
	first, err := p.parseAnd()
	if err != nil {
		return nil, err
	}
	alts := []Predicate{first}
	for p.keyword("OR") {
		p.pos++
		next, err := p.parseAnd()
		if err != nil {
			return nil, err
		}
		alts = append(alts, next)
	}
	return Or(alts...), nil
}

func (p *parser) parseAnd() (Predicate, error) {
	var terms []Predicate
	for {
		t, ok := p.peek()
		if !ok || t.kind == tokRParen || p.keyword("OR") {
			break
		}
		if p.keyword("AND") {
			p.pos++
			continue
		}
		term, err := p.parseUnary()
		if err != nil {
			return nil, err
		}
		terms = append(terms, term)
	}
	if len(terms) == 0 {
		return nil, fmt.Errorf("%w: empty expression", ErrBadQuery)
	}
	return And(terms...), nil
}

func (p *parser) parseUnary() (Predicate, error) {
	t, _ := p.peek()
	switch {
	case t.kind == tokLParen:
		p.pos++
		inner, err := p.parseOr()
		if err != nil {
			return nil, err
		}
		if closing, ok := p.peek(); !ok || closing.kind != tokRParen {
			return nil, fmt.Errorf("%w: missing ')'", ErrBadQuery)
		}
		p.pos++
		return inner, nil
	case p.keyword("NOT"):
		p.pos++
		if _, ok := p.peek(); !ok {
			return nil, fmt.Errorf("%w: NOT without operand", ErrBadQuery)
		}
		inner, err := p.parseUnary()
		if err != nil {
			return nil, err
		}
		return Not(inner), nil
	case t.kind == tokWord && t.bare && strings.HasPrefix(t.text, "-") && len(t.text) > 1:
		p.toks[p.pos].text = t.text[1:]
		inner, err := p.parseUnary()
		if err != nil {
			return nil, err
		}
		return Not(inner), nil
	case t.kind == tokWord:
		p.pos++
		return term(t)
	}
	return nil, fmt.Errorf("%w: unexpected %q", ErrBadQuery, t.text)
}

func term(t token) (Predicate, error) {
	if t.text == "" {
		return nil, fmt.Errorf("%w: empty term", ErrBadQuery)
	}
	op, value, found := strings.Cut(t.text, ":")
	if !found || !t.bare {
		return Or(Substring(t.text), Description(t.text)), nil
	}
	if value == "" {
		return nil, fmt.Errorf("%w: empty value for %q", ErrBadQuery, op)
	}
	switch strings.ToLower(op) {
	case "name":
		return Name(value), nil
	case "parent":
		return Parent(value), nil
	case "ancestor":
		return Ancestor(value), nil
	case "prefix":
		return NamePrefix(value), nil
	case "substring":
		return Substring(value), nil
	case "inname":
		return InName(value), nil
	case "description":
		if len(Tokenize(value)) == 0 {
			return nil, fmt.Errorf("%w: description needs at least one word", ErrBadQuery)
		}
		return Description(value), nil
	case "state":
		s, err := types.ParseProjectState(value)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrBadQuery, err)
		}
		return State(s), nil
	default:
		return nil, fmt.Errorf("%w: unsupported operator %q", ErrBadQuery, op)
	}
}
