// Package index builds the name-to-path map of one extracted firmware tree.
package index

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/sdejongh/fwdiffer/pkg/logging"
	"github.com/sdejongh/fwdiffer/pkg/models"
)

// Options controls how a tree is indexed
type Options struct {
	// KeyMode selects basename (default) or relative path keys
	KeyMode models.KeyMode
	// Exclude holds doublestar patterns. A pattern ending in "/" prunes matching
	// directories; other patterns drop files whose relative path or base name matches.
	Exclude []string
	Logger  logging.Logger
}

// Build walks root recursively and indexes every regular file below it.
// Symbolic links are never followed nor indexed.
func Build(ctx context.Context, root string, opts Options) (*models.FileIndex, error) {
	rootPath, err := resolveRoot(root)
	if err != nil {
		return nil, err
	}

	if opts.KeyMode == "" {
		opts.KeyMode = models.KeyBasename
	}
	if err := validatePatterns(opts.Exclude); err != nil {
		return nil, err
	}
	logger := logging.OrNull(opts.Logger)

	idx := models.NewFileIndex(rootPath, opts.KeyMode)
	seen := make(map[string][]string)
	skipped := 0

	err = filepath.WalkDir(rootPath, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		if p == rootPath {
			return nil
		}

		rel, err := filepath.Rel(rootPath, p)
		if err != nil {
			return err
		}
		rel = filepath.ToSlash(rel)

		if d.IsDir() {
			if excludedDir(rel, d.Name(), opts.Exclude) {
				return filepath.SkipDir
			}
			return nil
		}

		// WalkDir reports links without following them; devices, FIFOs and
		// sockets have type bits set as well.
		if !d.Type().IsRegular() {
			skipped++
			return nil
		}
		if excludedFile(rel, d.Name(), opts.Exclude) {
			return nil
		}

		key := d.Name()
		if opts.KeyMode == models.KeyRelativePath {
			key = rel
		}
		idx.Entries[key] = p
		seen[key] = append(seen[key], p)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to index %s: %w", rootPath, err)
	}

	for key, paths := range seen {
		if len(paths) > 1 {
			idx.Collisions = append(idx.Collisions, models.Collision{Key: key, Paths: paths})
		}
	}
	sort.Slice(idx.Collisions, func(i, j int) bool {
		return idx.Collisions[i].Key < idx.Collisions[j].Key
	})

	for _, c := range idx.Collisions {
		logger.Warn(ctx, "duplicate key in tree, keeping last visited file", logging.Fields{
			"root": rootPath,
			"key":  c.Key,
			"kept": c.Paths[len(c.Paths)-1],
		})
	}
	logger.Info(ctx, "indexed tree", logging.Fields{
		"root":        rootPath,
		"files":       idx.Len(),
		"collisions":  len(idx.Collisions),
		"non_regular": skipped,
	})

	return idx, nil
}

// resolveRoot makes root absolute, follows a symlinked root and checks it is a directory
func resolveRoot(root string) (string, error) {
	absPath, err := filepath.Abs(root)
	if err != nil {
		return "", fmt.Errorf("failed to resolve path: %w", err)
	}

	info, err := os.Stat(absPath)
	if errors.Is(err, fs.ErrNotExist) {
		return "", &models.NotFoundError{Path: root, Err: err}
	}
	if err != nil {
		return "", fmt.Errorf("failed to access path: %w", err)
	}
	if !info.IsDir() {
		return "", &models.NotADirectoryError{Path: root}
	}

	resolved, err := filepath.EvalSymlinks(absPath)
	if err != nil {
		return "", fmt.Errorf("failed to resolve path: %w", err)
	}
	return resolved, nil
}

func validatePatterns(patterns []string) error {
	for _, p := range patterns {
		if !doublestar.ValidatePattern(strings.TrimSuffix(p, "/")) {
			return &models.ValidationError{Field: "exclude", Message: "invalid pattern " + p}
		}
	}
	return nil
}

func excludedDir(rel, name string, patterns []string) bool {
	for _, p := range patterns {
		if !strings.HasSuffix(p, "/") {
			continue
		}
		if matches(strings.TrimSuffix(p, "/"), rel, name) {
			return true
		}
	}
	return false
}

func excludedFile(rel, name string, patterns []string) bool {
	for _, p := range patterns {
		if p == "" || strings.HasSuffix(p, "/") {
			continue
		}
		if matches(p, rel, name) {
			return true
		}
	}
	return false
}

// matches tests a pattern against the relative path, and against the base name
// when the pattern has no separator
func matches(pattern, rel, name string) bool {
	if ok, _ := doublestar.Match(pattern, rel); ok {
		return true
	}
	if !strings.Contains(pattern, "/") {
		ok, _ := doublestar.Match(pattern, name)
		return ok
	}
	return false
}
