package loader

import (
	"errors"
	"fmt"
	"io/fs"
	"path/filepath"
	"sort"
	"strings"

	ignore "github.com/sabhiram/go-gitignore"
)

// ignoreFiles are the per-directory ignore files Walk honours.
var ignoreFiles = []string{".gitignore", ".docsumignore"}

// Walk returns every supported document under root, skipping hidden directories and anything
// matched by a .gitignore or .docsumignore file in the directory of the file or any of its
// ancestors up to root. Paths are absolute and sorted.
func Walk(root string) ([]string, error) {
	root, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("error getting absolute path: %w", err)
	}
	root = filepath.Clean(root)

	matchers := make(map[string][]*ignore.GitIgnore)
	var files []string

	// WalkDir visits a directory before its contents, so the matchers of every ancestor are
	// compiled before any file below it is checked.
	err = filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}

		if d.IsDir() {
			if path != root && strings.HasPrefix(d.Name(), ".") {
				return filepath.SkipDir
			}
			if path != root && ignored(path, root, true, matchers) {
				return filepath.SkipDir
			}
			for _, name := range ignoreFiles {
				matcher, err := ignore.CompileIgnoreFile(filepath.Join(path, name))
				if err != nil {
					if errors.Is(err, fs.ErrNotExist) {
						continue
					}
					return fmt.Errorf("error compiling %s in %s: %w", name, path, err)
				}
				matchers[path] = append(matchers[path], matcher)
			}
			return nil
		}

		if !Supported(path) || ignored(path, root, false, matchers) {
			return nil
		}
		files = append(files, path)

		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("error walking directory: %w", err)
	}

	sort.Strings(files)
	return files, nil
}

func ignored(path, root string, isDir bool, matchers map[string][]*ignore.GitIgnore) bool {
	dir := path
	for {
		dir = filepath.Dir(dir)
		if !strings.HasPrefix(dir, root) {
			return false
		}

		relPath, err := filepath.Rel(dir, path)
		if err == nil {
			relPath = filepath.ToSlash(relPath)
			if isDir {
				relPath += "/"
			}
			for _, matcher := range matchers[dir] {
				if matcher.MatchesPath(relPath) {
					return true
				}
			}
		}

		if dir == root {
			return false
		}
	}
}
