package project

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"github.com/jonathanpberger/typingpool/internal/logger"
)

// Finder locates projects below a transcripts directory.
type Finder struct {
	root string
}

func NewFinder(root string) *Finder {
	return &Finder{root: root}
}

func (f *Finder) Root() string { return f.root }

// List opens every project directly below the root, sorted by name.
// Directories without project metadata are ignored; projects that fail to
// open are logged and skipped.
func (f *Finder) List() ([]*Project, error) {
	entries, err := os.ReadDir(f.root)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("list projects: %w", err)
	}
	var projects []*Project
	for _, e := range entries {
		if !e.IsDir() {
			continue
		}
		p, err := Open(filepath.Join(f.root, e.Name()))
		if errors.Is(err, ErrNotFound) {
			continue
		}
		if err != nil {
			logger.GetDefault().WithError(err).WithField("dir", e.Name()).
				Warn("Skipping unreadable project")
			continue
		}
		projects = append(projects, p)
	}
	sort.Slice(projects, func(i, j int) bool { return projects[i].Name() < projects[j].Name() })
	return projects, nil
}

// FindByID returns the project with the given id. Projects are matched by
// id, not directory name, so renamed or moved projects are still found.
func (f *Finder) FindByID(id string) (*Project, error) {
	projects, err := f.List()
	if err != nil {
		return nil, err
	}
	for _, p := range projects {
		if p.ID() == id {
			return p, nil
		}
	}
	return nil, fmt.Errorf("%w: id %s", ErrNotFound, id)
}

// FindByNameOrPath opens arg as a project directory path, or as a project
// name below the root.
func (f *Finder) FindByNameOrPath(arg string) (*Project, error) {
	if info, err := os.Stat(arg); err == nil && info.IsDir() {
		if p, err := Open(arg); err == nil {
			return p, nil
		}
	}
	return Open(filepath.Join(f.root, arg))
}
