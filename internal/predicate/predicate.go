package predicate

import (
	"errors"
	"strings"
	"unicode"

	"github.com/dshills/projectindex/internal/schema"
	"github.com/dshills/projectindex/pkg/types"
)

var (
	// ErrBadQuery is returned for malformed query strings
	ErrBadQuery = errors.New("bad query")
	// ErrNotMatchable is returned when a predicate tree cannot be evaluated locally
	ErrNotMatchable = errors.New("predicate is not matchable")
)

// Predicate is a node of a query tree
type Predicate interface {
	String() string
}

// Matcher is a predicate that can be evaluated against a single project
// without a backend round trip
type Matcher interface {
	Predicate
	Match(pd *types.ProjectData) bool
}

// Operator selects how a field predicate compares values
type Operator int

const (
	OpEquals    Operator = iota // Any value equals the operand
	OpPrefix                    // Any value starts with the operand (case-sensitive)
	OpSubstring                 // Any value contains the operand (case-insensitive)
	OpFullText                  // Every operand token appears among the value tokens
)

func (o Operator) String() string {
	switch o {
	case OpEquals:
		return "="
	case OpPrefix:
		return "^"
	case OpSubstring:
		return "~"
	case OpFullText:
		return "@"
	default:
		return "?"
	}
}

// FieldPredicate compares one index field against an operand
type FieldPredicate struct {
	Field *schema.FieldDef
	Op    Operator
	Value string
}

// Match evaluates the predicate against the field's values in pd
func (p *FieldPredicate) Match(pd *types.ProjectData) bool {
	values := p.Field.Text(pd)
	switch p.Op {
	case OpEquals:
		for _, v := range values {
			if v == p.Value {
				return true
			}
		}
	case OpPrefix:
		for _, v := range values {
			if strings.HasPrefix(v, p.Value) {
				return true
			}
		}
	case OpSubstring:
		needle := strings.ToLower(p.Value)
		for _, v := range values {
			if strings.Contains(strings.ToLower(v), needle) {
				return true
			}
		}
	case OpFullText:
		want := Tokenize(p.Value)
		if len(want) == 0 {
			return false
		}
		have := make(map[string]struct{})
		for _, v := range values {
			for _, tok := range Tokenize(v) {
				have[tok] = struct{}{}
			}
		}
		for _, tok := range want {
			if _, ok := have[tok]; !ok {
				return false
			}
		}
		return true
	}
	return false
}

func (p *FieldPredicate) String() string {
	return p.Field.Name + p.Op.String() + quote(p.Value)
}

// AndPredicate matches when every child matches
type AndPredicate struct {
	Children []Predicate
}

func (p *AndPredicate) Match(pd *types.ProjectData) bool {
	for _, c := range p.Children {
		if !match(c, pd) {
			return false
		}
	}
	return true
}

func (p *AndPredicate) String() string {
	return join("AND", p.Children)
}

// OrPredicate matches when any child matches
type OrPredicate struct {
	Children []Predicate
}

func (p *OrPredicate) Match(pd *types.ProjectData) bool {
	for _, c := range p.Children {
		if match(c, pd) {
			return true
		}
	}
	return false
}

func (p *OrPredicate) String() string {
	return join("OR", p.Children)
}

// NotPredicate negates its child
type NotPredicate struct {
	Child Predicate
}

func (p *NotPredicate) Match(pd *types.ProjectData) bool {
	return !match(p.Child, pd)
}

func (p *NotPredicate) String() string {
	return "-" + p.Child.String()
}

// AnyPredicate matches every project
type AnyPredicate struct{}

func (AnyPredicate) Match(*types.ProjectData) bool { return true }

func (AnyPredicate) String() string { return "*" }

// And combines predicates, flattening nested ANDs. No arguments yields Any.
func And(ps ...Predicate) Predicate {
	var children []Predicate
	for _, p := range ps {
		if a, ok := p.(*AndPredicate); ok {
			children = append(children, a.Children...)
			continue
		}
		if _, ok := p.(AnyPredicate); ok {
			continue
		}
		children = append(children, p)
	}
	switch len(children) {
	case 0:
		return AnyPredicate{}
	case 1:
		return children[0]
	}
	return &AndPredicate{Children: children}
}

// Or combines predicates, flattening nested ORs
func Or(ps ...Predicate) Predicate {
	var children []Predicate
	for _, p := range ps {
		if o, ok := p.(*OrPredicate); ok {
			children = append(children, o.Children...)
			continue
		}
		if _, ok := p.(AnyPredicate); ok {
			return AnyPredicate{}
		}
		children = append(children, p)
	}
	switch len(children) {
	case 0:
		return AnyPredicate{}
	case 1:
		return children[0]
	}
	return &OrPredicate{Children: children}
}

// Not negates a predicate, removing double negation
func Not(p Predicate) Predicate {
	if n, ok := p.(*NotPredicate); ok {
		return n.Child
	}
	return &NotPredicate{Child: p}
}

// Any matches every project
func Any() Predicate {
	return AnyPredicate{}
}

// Name matches the exact project name
func Name(name string) Predicate {
	return &FieldPredicate{Field: schema.Name, Op: OpEquals, Value: name}
}

// Parent matches projects whose direct parent is name
func Parent(name string) Predicate {
	return &FieldPredicate{Field: schema.ParentName, Op: OpEquals, Value: name}
}

// Ancestor matches projects that have name anywhere in their parent chain
func Ancestor(name string) Predicate {
	return &FieldPredicate{Field: schema.AncestorName, Op: OpEquals, Value: name}
}

// NamePrefix matches names starting with prefix (case-sensitive)
func NamePrefix(prefix string) Predicate {
	return &FieldPredicate{Field: schema.Name, Op: OpPrefix, Value: prefix}
}

// Substring matches names containing s (case-insensitive)
func Substring(s string) Predicate {
	return &FieldPredicate{Field: schema.Name, Op: OpSubstring, Value: s}
}

// InName matches names having a path segment that starts with part
// (case-insensitive)
func InName(part string) Predicate {
	return &FieldPredicate{Field: schema.NamePart, Op: OpPrefix, Value: strings.ToLower(part)}
}

// Description matches projects whose description contains every word of text
func Description(text string) Predicate {
	return &FieldPredicate{Field: schema.Description, Op: OpFullText, Value: text}
}

// State matches the project lifecycle state
func State(s types.ProjectState) Predicate {
	return &FieldPredicate{Field: schema.State, Op: OpEquals, Value: string(s)}
}

// IsMatchable reports whether the whole tree can be evaluated locally
func IsMatchable(p Predicate) bool {
	switch v := p.(type) {
	case *AndPredicate:
		return allMatchable(v.Children)
	case *OrPredicate:
		return allMatchable(v.Children)
	case *NotPredicate:
		return IsMatchable(v.Child)
	case *FieldPredicate:
		return v.Field.Matchable()
	case Matcher:
		return true
	default:
		return false
	}
}

// match evaluates p when it is a Matcher. Trees are checked with IsMatchable
// before evaluation, so the false branch is never taken for valid input.
func match(p Predicate, pd *types.ProjectData) bool {
	m, ok := p.(Matcher)
	return ok && m.Match(pd)
}

func allMatchable(ps []Predicate) bool {
	for _, c := range ps {
		if !IsMatchable(c) {
			return false
		}
	}
	return true
}

// Fields returns the distinct fields referenced by the tree
func Fields(p Predicate) []*schema.FieldDef {
	var out []*schema.FieldDef
	seen := make(map[*schema.FieldDef]struct{})
	var walk func(Predicate)
	walk = func(p Predicate) {
		switch v := p.(type) {
		case *AndPredicate:
			for _, c := range v.Children {
				walk(c)
			}
		case *OrPredicate:
			for _, c := range v.Children {
				walk(c)
			}
		case *NotPredicate:
			walk(v.Child)
		case *FieldPredicate:
			if _, ok := seen[v.Field]; !ok {
				seen[v.Field] = struct{}{}
				out = append(out, v.Field)
			}
		}
	}
	walk(p)
	return out
}

// Tokenize lowercases text and splits it into runs of letters, numbers and
// private-use characters, the token characters of the FTS5 unicode61
// tokenizer. Diacritics are kept.
func Tokenize(text string) []string {
	return strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsNumber(r) && !unicode.Is(unicode.Co, r)
	})
}

func join(op string, ps []Predicate) string {
	parts := make([]string, len(ps))
	for i, p := range ps {
		parts[i] = p.String()
	}
	return "(" + strings.Join(parts, " "+op+" ") + ")"
}

func quote(s string) string {
	if s == "" || strings.ContainsAny(s, " \t\"()") {
		return `"` + strings.ReplaceAll(s, `"`, `\"`) + `"`
	}
	return s
}
