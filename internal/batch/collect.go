package batch

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/snapcal/snapcal/internal/image"
)

// Item is one photo queued for analysis.
type Item struct {
	Index int
	Path  string
}

// Collect builds the work list from a path. A directory yields every
// raster image directly inside it, sorted by name. A file is treated as
// a newline-separated list of photo paths; blank lines and lines
// starting with # are skipped, and relative entries resolve against the
// list file's directory.
func Collect(path string) ([]Item, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}

	if info.IsDir() {
		return collectDir(path)
	}
	return collectList(path)
}

func collectDir(dir string) ([]Item, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to read directory: %w", err)
	}

	var paths []string
	for _, entry := range entries {
		if entry.IsDir() || !image.IsRasterImage(entry.Name()) {
			continue
		}
		paths = append(paths, filepath.Join(dir, entry.Name()))
	}
	sort.Strings(paths)

	if len(paths) == 0 {
		return nil, fmt.Errorf("no images found in %s", dir)
	}

	items := make([]Item, len(paths))
	for i, p := range paths {
		items[i] = Item{Index: i + 1, Path: p}
	}
	return items, nil
}

func collectList(path string) ([]Item, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open list file: %w", err)
	}
	defer file.Close()

	base := filepath.Dir(path)
	var items []Item

	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		if !filepath.IsAbs(line) {
			line = filepath.Join(base, line)
		}
		items = append(items, Item{Index: len(items) + 1, Path: line})
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to read list file: %w", err)
	}

	if len(items) == 0 {
		return nil, fmt.Errorf("no photo paths found in %s", path)
	}
	return items, nil
}
