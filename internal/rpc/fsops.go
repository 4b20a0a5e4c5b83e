package rpc

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// joinWorkspace joins a working directory with a client-supplied relative
// path, confining the result to the directory: rel is cleaned as if rooted
// at "/", so ".." components cannot climb above it. This is the same
// "resolve inside the worktree root, never outside" constraint the
// teacher's internal/worktree package enforces for worktree-relative
// operations.
func joinWorkspace(root, rel string) string {
	clean := filepath.Clean("/" + rel)
	return filepath.Join(root, clean)
}

func listFiles(root string) ([]string, error) {
	var out []string
	err := filepath.WalkDir(root, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			if strings.HasPrefix(d.Name(), ".git") && path != root {
				return filepath.SkipDir
			}
			return nil
		}
		rel, err := filepath.Rel(root, path)
		if err != nil {
			return err
		}
		out = append(out, rel)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("repository.list_files: %w", err)
	}
	return out, nil
}

func readFile(path string) (string, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("repository.read_file: %w", err)
	}
	return string(b), nil
}

func readFileSlice(path string, start, end int64) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("repository.read_file_slice: %w", err)
	}
	defer f.Close()

	if end < start {
		return "", fmt.Errorf("repository.read_file_slice: end before start")
	}
	buf := make([]byte, end-start)
	n, err := f.ReadAt(buf, start)
	if err != nil && n == 0 {
		return "", fmt.Errorf("repository.read_file_slice: %w", err)
	}
	return string(buf[:n]), nil
}

func writeFile(path string, content []byte) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	return os.WriteFile(path, content, 0o644)
}

func replaceFileRange(path string, start, end int64, replacement []byte) error {
	b, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	if start < 0 || end > int64(len(b)) || end < start {
		return fmt.Errorf("replace_file_range: out of bounds")
	}
	next := append([]byte{}, b[:start]...)
	next = append(next, replacement...)
	next = append(next, b[end:]...)
	return os.WriteFile(path, next, 0o644)
}
