package tools

import (
	"errors"
	"fmt"
	"io/fs"
	"path/filepath"
	"strings"

	"github.com/BaSui01/fixflow/types"
)

// Sandbox anchors filesystem-touching tools to a fixed root directory.
// Relative paths resolve against the root; any path that would escape it is
// rejected outright, never clamped.
type Sandbox struct {
	root string
}

// NewSandbox creates a sandbox rooted at dir. The root is cleaned and made
// absolute so later escape checks compare canonical paths.
func NewSandbox(dir string) (*Sandbox, error) {
	if dir == "" {
		return nil, types.NewError(types.ErrContractViolation, "sandbox root must not be empty")
	}
	abs, err := filepath.Abs(dir)
	if err != nil {
		return nil, fmt.Errorf("resolve sandbox root: %w", err)
	}
	abs = filepath.Clean(abs)
	// Pin the root to its symlink-free form so Resolve compares real paths.
	// A root that does not exist yet stays lexical.
	if real, err := filepath.EvalSymlinks(abs); err == nil {
		abs = real
	}
	return &Sandbox{root: abs}, nil
}

// Root returns the sandbox root directory.
func (s *Sandbox) Root() string { return s.root }

// Resolve maps a tool-supplied path to an absolute path inside the sandbox.
// Absolute inputs must already be inside the root; relative inputs are
// joined onto it. Escapes via ".." are rejected, and so are symlinks inside
// the root that point outside it.
func (s *Sandbox) Resolve(path string) (string, error) {
	if path == "" {
		return "", types.NewError(types.ErrToolValidation, "path must not be empty")
	}

	candidate := path
	if !filepath.IsAbs(candidate) {
		candidate = filepath.Join(s.root, candidate)
	}
	candidate = filepath.Clean(candidate)

	real, err := resolveExisting(candidate)
	if err != nil {
		return "", fmt.Errorf("resolve %q: %w", path, err)
	}

	rel, err := filepath.Rel(s.root, real)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", types.NewError(types.ErrSandboxEscape,
			fmt.Sprintf("path %q escapes sandbox root", path))
	}
	return real, nil
}

// resolveExisting evaluates symlinks on the deepest existing prefix of path,
// keeping the not-yet-created suffix lexical.
func resolveExisting(path string) (string, error) {
	real, err := filepath.EvalSymlinks(path)
	if err == nil {
		return real, nil
	}
	if !errors.Is(err, fs.ErrNotExist) {
		return "", err
	}
	dir := filepath.Dir(path)
	if dir == path {
		return path, nil
	}
	parent, err := resolveExisting(dir)
	if err != nil {
		return "", err
	}
	return filepath.Join(parent, filepath.Base(path)), nil
}
