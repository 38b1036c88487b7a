package export

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/AnyUserName/imgpress-cli/internal/hasher"
)

// ReadManifest loads a manifest from path. If path is a directory the
// manifest inside it is read.
func ReadManifest(path string) (*Manifest, string, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, "", fmt.Errorf("stat %s: %w", path, err)
	}
	if info.IsDir() {
		path = filepath.Join(path, ManifestName)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, "", fmt.Errorf("read manifest: %w", err)
	}
	var m Manifest
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, "", fmt.Errorf("parse manifest: %w", err)
	}
	return &m, filepath.Dir(path), nil
}

// Verify checks a directory export against its manifest and returns
// one message per problem found.
func Verify(m *Manifest, baseDir string) []string {
	var errs []string
	if m.Version != SupportedManifestVersion {
		errs = append(errs, fmt.Sprintf("unsupported manifest version: %d", m.Version))
	}

	seen := make(map[string]bool)
	var in, out int64
	for i, e := range m.Entries {
		in += e.OriginalSize
		out += e.CompressedSize
		if e.Format == "" {
			errs = append(errs, fmt.Sprintf("entry[%d]: empty format", i))
		}
		if e.Name == "" {
			errs = append(errs, fmt.Sprintf("entry[%d]: missing name", i))
			continue
		}
		key := strings.ToLower(e.Name)
		if seen[key] {
			errs = append(errs, fmt.Sprintf("entry[%d]: duplicate name %q", i, e.Name))
		}
		seen[key] = true

		data, err := os.ReadFile(filepath.Join(baseDir, filepath.FromSlash(e.Name)))
		if err != nil {
			errs = append(errs, fmt.Sprintf("entry %q: file not found", e.Name))
			continue
		}
		if int64(len(data)) != e.CompressedSize {
			errs = append(errs, fmt.Sprintf("entry %q: size mismatch: manifest=%d, disk=%d",
				e.Name, e.CompressedSize, len(data)))
		}
		if e.Hash != "" && hasher.ContentHash(data, len(e.Hash)) != e.Hash {
			errs = append(errs, fmt.Sprintf("entry %q: hash mismatch", e.Name))
		}
	}

	if m.Stats.TotalFiles != len(m.Entries) {
		errs = append(errs, fmt.Sprintf("stats.total_files mismatch: %d != %d", m.Stats.TotalFiles, len(m.Entries)))
	}
	if m.Stats.TotalInputBytes != in || m.Stats.TotalOutputBytes != out {
		errs = append(errs, "stats byte totals do not match entries")
	}
	return errs
}
