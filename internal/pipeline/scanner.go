package pipeline

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/AnyUserName/imgpress-cli/internal/format"
)

// Source represents a discovered input file.
type Source struct {
	// AbsPath is the absolute path to the file on disk.
	AbsPath string
	// Name is the path relative to the scanned root, with forward slashes.
	// Output names are derived from it.
	Name string
	// MediaType is guessed from the extension; empty when unknown.
	MediaType string
	// Size is the file size in bytes.
	Size int64
}

// Scan expands paths into sources. Directories are walked recursively
// and only files with a known image extension are kept; hidden
// directories are skipped. Files named explicitly are always returned so
// that intake can report them if they turn out to be unsupported.
func Scan(paths []string) ([]Source, error) {
	var sources []Source
	for _, p := range paths {
		abs, err := filepath.Abs(p)
		if err != nil {
			return nil, fmt.Errorf("resolve %s: %w", p, err)
		}
		info, err := os.Stat(abs)
		if err != nil {
			return nil, fmt.Errorf("stat %s: %w", p, err)
		}
		if !info.IsDir() {
			sources = append(sources, Source{
				AbsPath:   abs,
				Name:      filepath.Base(abs),
				MediaType: format.FromExtension(abs),
				Size:      info.Size(),
			})
			continue
		}

		found, err := scanDir(abs)
		if err != nil {
			return nil, fmt.Errorf("scan %s: %w", p, err)
		}
		sources = append(sources, found...)
	}
	return sources, nil
}

func scanDir(root string) ([]Source, error) {
	var sources []Source
	err := filepath.Walk(root, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if info.IsDir() {
			if strings.HasPrefix(info.Name(), ".") && path != root {
				return filepath.SkipDir
			}
			return nil
		}

		mt := format.FromExtension(path)
		if mt == "" {
			return nil
		}
		rel, err := filepath.Rel(root, path)
		if err != nil {
			return err
		}
		sources = append(sources, Source{
			AbsPath:   path,
			Name:      filepath.ToSlash(rel),
			MediaType: mt,
			Size:      info.Size(),
		})
		return nil
	})
	return sources, err
}

// Load reads every source into memory.
func Load(sources []Source) ([]File, error) {
	files := make([]File, 0, len(sources))
	for _, s := range sources {
		data, err := os.ReadFile(s.AbsPath)
		if err != nil {
			return nil, fmt.Errorf("read %s: %w", s.Name, err)
		}
		files = append(files, File{Name: s.Name, MediaType: s.MediaType, Data: data})
	}
	return files, nil
}
