// Package artifact maps the scales of an experiment onto their on-disk
// parameter and output files.
package artifact

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/vk/scalegrid/internal/scale"
)

// Paths holds the two files that belong to one scale.
type Paths struct {
	Param string
	Out   string
}

// Layout derives artifact paths from a storage root and an experiment name.
// It is a value type with no side effects apart from EnsureDir.
type Layout struct {
	Root string
	Name string
}

// New returns a Layout for the experiment name stored under root.
func New(root, name string) (Layout, error) {
	if name == "" {
		return Layout{}, fmt.Errorf("experiment name must not be empty")
	}
	if filepath.Base(name) != name {
		return Layout{}, fmt.Errorf("experiment name %q must not contain path separators", name)
	}
	if root == "" {
		root = "."
	}
	return Layout{Root: root, Name: name}, nil
}

// Dir is the experiment's storage directory, {root}/{name}.
func (l Layout) Dir() string {
	return filepath.Join(l.Root, l.Name)
}

// For returns the parameter and output file paths of s.
func (l Layout) For(s scale.Scale) Paths {
	return Paths{
		Param: filepath.Join(l.Dir(), fmt.Sprintf("parameter_%dx%d.txt", s, s)),
		Out:   filepath.Join(l.Dir(), fmt.Sprintf("out_%dx%d.txt", s, s)),
	}
}

// All computes the paths of every scale in set.
func (l Layout) All(set scale.Set) map[scale.Scale]Paths {
	out := make(map[scale.Scale]Paths, len(set))
	for _, s := range set {
		out[s] = l.For(s)
	}
	return out
}

// EnsureDir creates the storage directory if needed. An existing directory
// is not an error; any other failure is returned.
func (l Layout) EnsureDir() (created bool, err error) {
	dir := l.Dir()
	info, err := os.Stat(dir)
	if err == nil {
		if !info.IsDir() {
			return false, fmt.Errorf("storage path %s exists and is not a directory", dir)
		}
		return false, nil
	}
	if !os.IsNotExist(err) {
		return false, fmt.Errorf("inspect storage directory %s: %w", dir, err)
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return false, fmt.Errorf("create storage directory %s: %w", dir, err)
	}
	return true, nil
}
