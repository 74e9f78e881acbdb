package migrate

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"go.uber.org/multierr"
)

const (
	gooseUp   = "-- +goose Up"
	gooseDown = "-- +goose Down"
)

var sqlFileRe = regexp.MustCompile(`^(\d{14})_[a-z0-9_]+\.sql$`)

// ValidateDir checks every SQL file in dir and reports all problems at once:
// filename shape, duplicate versions and the goose Up/Down annotations in
// that order.
func ValidateDir(dir string) error {
	if dir == "" {
		return errors.New("dir is required")
	}
	files, err := sqlFiles(dir)
	if err != nil {
		return err
	}
	if len(files) == 0 {
		return fmt.Errorf("no migrations found in %q", dir)
	}

	var problems error
	seen := make(map[string]string, len(files))
	for _, name := range files {
		m := sqlFileRe.FindStringSubmatch(name)
		if m == nil {
			problems = multierr.Append(problems, fmt.Errorf("invalid migration filename %q (expected YYYYMMDDHHMMSS_name.sql)", name))
			continue
		}
		if prev, ok := seen[m[1]]; ok {
			problems = multierr.Append(problems, fmt.Errorf("duplicate migration version %s in %q and %q", m[1], prev, name))
		}
		seen[m[1]] = name
		problems = multierr.Append(problems, checkAnnotations(filepath.Join(dir, name)))
	}
	return problems
}

func checkAnnotations(path string) error {
	b, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read file %q: %w", path, err)
	}
	txt := string(b)
	up := strings.Index(txt, gooseUp)
	down := strings.Index(txt, gooseDown)
	switch {
	case up < 0:
		return fmt.Errorf("migration %q missing %q", filepath.Base(path), gooseUp)
	case down < 0:
		return fmt.Errorf("migration %q missing %q", filepath.Base(path), gooseDown)
	case down < up:
		return fmt.Errorf("migration %q has Down before Up", filepath.Base(path))
	}
	return nil
}

func sqlFiles(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("read dir %q: %w", dir, err)
	}
	var names []string
	for _, e := range entries {
		if !e.IsDir() && strings.HasSuffix(e.Name(), ".sql") {
			names = append(names, e.Name())
		}
	}
	return names, nil
}
