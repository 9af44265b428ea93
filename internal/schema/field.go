package schema

import (
	"strings"

	"github.com/dshills/projectindex/pkg/types"
)

// FieldType governs how a backend encodes and matches a field
type FieldType int

const (
	Exact      FieldType = iota // Whole-value equality
	Prefix                      // Prefix matching (type-ahead)
	FullText                    // Tokenized text search
	StoredOnly                  // Never matched, only retrieved raw
)

func (t FieldType) String() string {
	switch t {
	case Exact:
		return "exact"
	case Prefix:
		return "prefix"
	case FullText:
		return "fulltext"
	case StoredOnly:
		return "stored_only"
	default:
		return "unknown"
	}
}

// FieldDef is a backend-neutral index field: a name, a type, and a pure
// accessor over ProjectData
type FieldDef struct {
	Name       string
	Type       FieldType
	Repeatable bool
	Stored     bool

	text  func(*types.ProjectData) []string
	bytes func(*types.ProjectData) [][]byte
}

// Text returns the field's text values. Stored-only fields have none.
func (f *FieldDef) Text(pd *types.ProjectData) []string {
	if f.text == nil {
		return nil
	}
	return f.text(pd)
}

// Values returns the field's values in their stored encoding
func (f *FieldDef) Values(pd *types.ProjectData) [][]byte {
	if f.bytes != nil {
		return f.bytes(pd)
	}
	text := f.Text(pd)
	out := make([][]byte, 0, len(text))
	for _, v := range text {
		out = append(out, []byte(v))
	}
	return out
}

// Matchable reports whether predicates may reference the field
func (f *FieldDef) Matchable() bool {
	return f.Type != StoredOnly
}

func (f *FieldDef) String() string {
	return f.Name
}

func single(v string) []string {
	if v == "" {
		return nil
	}
	return []string{v}
}

// Project fields. The accessors must stay side-effect free; several schema
// versions call them on the same snapshot.
var (
	Name = &FieldDef{
		Name:   "name",
		Type:   Exact,
		Stored: true,
		text: func(pd *types.ProjectData) []string {
			return []string{pd.Name()}
		},
	}

	Description = &FieldDef{
		Name: "description",
		Type: FullText,
		text: func(pd *types.ProjectData) []string {
			return single(pd.Project().Description)
		},
	}

	ParentName = &FieldDef{
		Name: "parent_name",
		Type: Exact,
		text: func(pd *types.ProjectData) []string {
			return single(pd.Project().Parent)
		},
	}

	NamePart = &FieldDef{
		Name:       "name_part",
		Type:       Prefix,
		Repeatable: true,
		text: func(pd *types.ProjectData) []string {
			return NameParts(pd.Name())
		},
	}

	AncestorName = &FieldDef{
		Name:       "ancestor_name",
		Type:       Exact,
		Repeatable: true,
		text: func(pd *types.ProjectData) []string {
			return pd.ParentNames()
		},
	}

	RefState = &FieldDef{
		Name:       "ref_state",
		Type:       StoredOnly,
		Repeatable: true,
		Stored:     true,
		bytes: func(pd *types.ProjectData) [][]byte {
			var out [][]byte
			for _, p := range pd.Tree() {
				project := p.Project()
				if rs, ok := project.Fingerprint(); ok {
					out = append(out, rs.Bytes())
				}
			}
			return out
		},
	}

	State = &FieldDef{
		Name: "state",
		Type: Exact,
		text: func(pd *types.ProjectData) []string {
			s := pd.Project().State
			if s == "" {
				s = types.StateActive
			}
			return []string{string(s)}
		},
	}
)

// NameParts splits a project name on path separators into lowercase segments
func NameParts(name string) []string {
	var parts []string
	seen := make(map[string]struct{})
	for _, seg := range strings.Split(strings.ToLower(name), "/") {
		if seg == "" {
			continue
		}
		if _, ok := seen[seg]; ok {
			continue
		}
		seen[seg] = struct{}{}
		parts = append(parts, seg)
	}
	return parts
}
