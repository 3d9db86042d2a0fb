// Package category keeps the JSON-backed registry of resource categories and
// the assignment of source files to them.
package category

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"

	"advisor/internal/domain"
)

// ErrNotFound is returned when a category ID is not in the registry.
var ErrNotFound = errors.New("category not found")

type registryFile struct {
	Categories []domain.Category `json:"categories"`
	// Assignments maps a source filename to a category ID.
	Assignments map[string]string `json:"assignments"`
}

// Registry stores categories and per-file assignments, persisted as JSON.
// Removing a category untags its resources; it never deletes them.
type Registry struct {
	mu   sync.RWMutex
	path string
	data registryFile
}

// LoadRegistry reads a registry from path; a missing file yields an empty
// registry that is created on first write.
func LoadRegistry(path string) (*Registry, error) {
	r := &Registry{path: path, data: registryFile{Assignments: make(map[string]string)}}
	raw, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return r, nil
		}
		return nil, err
	}
	if err := json.Unmarshal(raw, &r.data); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	if r.data.Assignments == nil {
		r.data.Assignments = make(map[string]string)
	}
	return r, nil
}

// List returns all categories sorted by ID.
func (r *Registry) List() []domain.Category {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]domain.Category, len(r.data.Categories))
	copy(out, r.data.Categories)
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// Get returns the category with the given ID.
func (r *Registry) Get(id string) (domain.Category, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, c := range r.data.Categories {
		if c.ID == id {
			return c, nil
		}
	}
	return domain.Category{}, fmt.Errorf("%w: %s", ErrNotFound, id)
}

// Add inserts a category; an existing ID is updated in place.
func (r *Registry) Add(c domain.Category) error {
	if c.ID == "" {
		return errors.New("category id must not be empty")
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	for i := range r.data.Categories {
		if r.data.Categories[i].ID == c.ID {
			r.data.Categories[i] = c
			return r.save()
		}
	}
	r.data.Categories = append(r.data.Categories, c)
	return r.save()
}

// Remove deletes a category and untags every resource assigned to it.
func (r *Registry) Remove(id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	idx := -1
	for i, c := range r.data.Categories {
		if c.ID == id {
			idx = i
			break
		}
	}
	if idx < 0 {
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	r.data.Categories = append(r.data.Categories[:idx], r.data.Categories[idx+1:]...)
	for file, cat := range r.data.Assignments {
		if cat == id {
			delete(r.data.Assignments, file)
		}
	}
	return r.save()
}

// Assign tags a source file with a category. The category must exist.
func (r *Registry) Assign(sourceFile, categoryID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	found := false
	for _, c := range r.data.Categories {
		if c.ID == categoryID {
			found = true
			break
		}
	}
	if !found {
		return fmt.Errorf("%w: %s", ErrNotFound, categoryID)
	}
	r.data.Assignments[sourceFile] = categoryID
	return r.save()
}

// Unassign removes the category tag from a source file.
func (r *Registry) Unassign(sourceFile string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.data.Assignments, sourceFile)
	return r.save()
}

// CategoryFor returns the category ID assigned to a source file, or "".
func (r *Registry) CategoryFor(sourceFile string) string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.data.Assignments[sourceFile]
}

func (r *Registry) save() error {
	if err := os.MkdirAll(filepath.Dir(r.path), 0o755); err != nil {
		return err
	}
	raw, err := json.MarshalIndent(r.data, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(r.path, raw, 0o644)
}
