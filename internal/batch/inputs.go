package batch

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// ErrNoInputs is returned when the input path yields no text files.
var ErrNoInputs = errors.New("no .txt files found")

// CollectInputs returns path itself when it is a .txt file, or the sorted
// .txt files of the directory (descending into subdirectories when recursive).
func CollectInputs(path string, recursive bool) ([]string, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("input: %w", err)
	}

	if !info.IsDir() {
		if !strings.EqualFold(filepath.Ext(path), ".txt") {
			return nil, fmt.Errorf("%s: %w", path, ErrNoInputs)
		}
		return []string{path}, nil
	}

	var inputs []string
	err = filepath.WalkDir(path, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			if p != path && !recursive {
				return filepath.SkipDir
			}
			return nil
		}
		if strings.EqualFold(filepath.Ext(p), ".txt") {
			inputs = append(inputs, p)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("walk %s: %w", path, err)
	}

	if len(inputs) == 0 {
		return nil, fmt.Errorf("%s: %w", path, ErrNoInputs)
	}
	sort.Strings(inputs)

	return inputs, nil
}
