package projectstore

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/natefinch/atomic"
	"gopkg.in/yaml.v3"

	"github.com/dshills/projectindex/internal/cache"
	"github.com/dshills/projectindex/pkg/types"
)

// FileName is the per-project configuration file
const FileName = "project.yaml"

const (
	dirPerms  = 0o755
	filePerms = 0o644
)

// projectFile is the on-disk form of a project's configuration
type projectFile struct {
	Description string `yaml:"description,omitempty"`
	Parent      string `yaml:"parent,omitempty"`
	State       string `yaml:"state,omitempty"`
}

// Store reads and writes projects laid out as <root>/<name>/project.yaml.
// A project's config fingerprint is the SHA-256 of its file.
type Store struct {
	root string
}

var _ cache.Loader = (*Store)(nil)

// New creates a store rooted at root
func New(root string) *Store {
	return &Store{root: root}
}

// Root returns the store's root directory
func (s *Store) Root() string {
	return s.root
}

// Path returns the config file path of a project
func (s *Store) Path(name string) string {
	return filepath.Join(s.root, filepath.FromSlash(name), FileName)
}

// NameForPath maps a file path under the root back to its project name
func (s *Store) NameForPath(p string) (string, bool) {
	rel, err := filepath.Rel(s.root, p)
	if err != nil || filepath.Base(rel) != FileName {
		return "", false
	}
	name := filepath.ToSlash(filepath.Dir(rel))
	if name == "." || name == ".." || strings.HasPrefix(name, "../") {
		return "", false
	}
	return name, true
}

// Load reads one project. It returns cache.ErrNotFound when the project has
// no config file.
func (s *Store) Load(ctx context.Context, name string) (*types.Project, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if err := (&types.Project{Name: name}).Validate(); err != nil {
		return nil, err
	}

	data, err := os.ReadFile(s.Path(name))
	if errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("%w: %s", cache.ErrNotFound, name)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read project %s: %w", name, err)
	}
	return decode(name, data)
}

func decode(name string, data []byte) (*types.Project, error) {
	var pf projectFile
	if err := yaml.Unmarshal(data, &pf); err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", path.Join(name, FileName), err)
	}

	state := types.StateActive
	if pf.State != "" {
		var err error
		if state, err = types.ParseProjectState(pf.State); err != nil {
			return nil, fmt.Errorf("project %s: %w", name, err)
		}
	}

	p := &types.Project{
		Name:        name,
		Description: pf.Description,
		Parent:      pf.Parent,
		ConfigHash:  Fingerprint(data),
		State:       state,
	}
	if err := p.Validate(); err != nil {
		return nil, err
	}
	return p, nil
}

// Fingerprint returns the config hash of a project file's content
func Fingerprint(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}

// List returns the names of every project under the root. A missing root
// holds no projects.
func (s *Store) List(ctx context.Context) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if _, err := os.Stat(s.root); errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}

	matches, err := doublestar.Glob(os.DirFS(s.root), "**/"+FileName)
	if err != nil {
		return nil, fmt.Errorf("failed to scan %s: %w", s.root, err)
	}

	names := make([]string, 0, len(matches))
	for _, m := range matches {
		name := path.Dir(m)
		if name == "." {
			continue
		}
		names = append(names, name)
	}
	return names, nil
}

// Save writes a project's config file atomically and returns its new
// fingerprint. Name and ConfigHash of p are not written to the file.
func (s *Store) Save(ctx context.Context, p types.Project) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if err := p.Validate(); err != nil {
		return "", err
	}

	pf := projectFile{Description: p.Description, Parent: p.Parent}
	if p.State != "" && p.State != types.StateActive {
		pf.State = string(p.State)
	}
	data, err := yaml.Marshal(&pf)
	if err != nil {
		return "", fmt.Errorf("failed to encode project %s: %w", p.Name, err)
	}

	file := s.Path(p.Name)
	if err := os.MkdirAll(filepath.Dir(file), dirPerms); err != nil {
		return "", fmt.Errorf("failed to create project directory: %w", err)
	}
	if err := atomic.WriteFile(file, bytes.NewReader(data)); err != nil {
		return "", fmt.Errorf("failed to write project %s: %w", p.Name, err)
	}
	// atomic.WriteFile doesn't set permissions for new files
	if err := os.Chmod(file, filePerms); err != nil {
		return "", fmt.Errorf("failed to set file permissions: %w", err)
	}
	return Fingerprint(data), nil
}

// Delete removes a project's config file. Child projects are left alone.
func (s *Store) Delete(ctx context.Context, name string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := (&types.Project{Name: name}).Validate(); err != nil {
		return err
	}

	file := s.Path(name)
	err := os.Remove(file)
	if errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("%w: %s", cache.ErrNotFound, name)
	}
	if err != nil {
		return fmt.Errorf("failed to delete project %s: %w", name, err)
	}
	// Fails harmlessly while child projects remain
	_ = os.Remove(filepath.Dir(file))
	return nil
}
