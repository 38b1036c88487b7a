// Package export packages completed jobs for bulk delivery, either as a
// zip archive or as files in a directory.
package export

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"

	"github.com/AnyUserName/imgpress-cli/internal/format"
	"github.com/AnyUserName/imgpress-cli/internal/hasher"
	"github.com/AnyUserName/imgpress-cli/internal/job"
	"github.com/klauspost/compress/zip"
)

// Item is a done job paired with its unique output name.
type Item struct {
	Job  job.Job
	Name string
}

// OutputName derives an output name from the job's original base name
// and its output format's extension.
func OutputName(j job.Job) string {
	// Rooting before Clean drops any leading "..".
	name := strings.TrimPrefix(path.Clean("/"+filepath.ToSlash(j.Name)), "/")
	name = strings.TrimSuffix(name, path.Ext(name))
	if name == "" {
		name = j.ID
	}
	return name + "." + format.Extension(j.OutputFormat)
}

// Select returns done jobs in order with unique output names. Jobs in
// any other state are skipped.
func Select(jobs []job.Job) []Item {
	seen := make(map[string]bool)
	var items []Item
	for _, j := range jobs {
		if j.Status != job.StatusDone || j.Output == nil {
			continue
		}
		name := uniqueName(OutputName(j), seen)
		items = append(items, Item{Job: j, Name: name})
	}
	return items
}

// uniqueName appends " (n)" before the extension until the name is
// unused. Comparison ignores case.
func uniqueName(name string, seen map[string]bool) string {
	ext := path.Ext(name)
	base := strings.TrimSuffix(name, ext)
	candidate := name
	for n := 1; seen[strings.ToLower(candidate)]; n++ {
		candidate = fmt.Sprintf("%s (%d)%s", base, n, ext)
	}
	seen[strings.ToLower(candidate)] = true
	return candidate
}

// NewManifest builds the manifest for items.
func NewManifest(items []Item) *Manifest {
	m := &Manifest{
		Version:     SupportedManifestVersion,
		GeneratedAt: time.Now().UTC().Format(time.RFC3339),
		Entries:     make([]Entry, 0, len(items)),
	}
	for _, it := range items {
		j := it.Job
		m.Entries = append(m.Entries, Entry{
			Name:           it.Name,
			Source:         j.Name,
			Format:         string(j.OutputFormat),
			MediaType:      format.MediaType(j.OutputFormat),
			OriginalSize:   j.OriginalSize,
			CompressedSize: j.CompressedSize,
			Ratio:          job.Ratio(j.OriginalSize, j.CompressedSize),
			Hash:           hasher.ContentHash(j.Output, 16),
			ElapsedMs:      j.Elapsed.Milliseconds(),
		})
	}
	m.ComputeStats()
	return m
}

// ComputeStats recalculates aggregate statistics from entries.
func (m *Manifest) ComputeStats() {
	var s Stats
	s.TotalFiles = len(m.Entries)
	for _, e := range m.Entries {
		s.TotalInputBytes += e.OriginalSize
		s.TotalOutputBytes += e.CompressedSize
	}
	s.Ratio = job.Ratio(s.TotalInputBytes, s.TotalOutputBytes)
	m.Stats = s
}

// Archive writes done jobs and a manifest into a zip on w. Outputs are
// stored without recompression.
func Archive(w io.Writer, jobs []job.Job) (*Manifest, error) {
	items := Select(jobs)
	m := NewManifest(items)

	zw := zip.NewWriter(w)
	now := time.Now()
	for _, it := range items {
		fw, err := zw.CreateHeader(&zip.FileHeader{
			Name:     it.Name,
			Method:   zip.Store,
			Modified: now,
		})
		if err != nil {
			return nil, fmt.Errorf("archive %s: %w", it.Name, err)
		}
		if _, err := fw.Write(it.Job.Output); err != nil {
			return nil, fmt.Errorf("archive %s: %w", it.Name, err)
		}
	}

	data, err := marshal(m)
	if err != nil {
		return nil, err
	}
	fw, err := zw.CreateHeader(&zip.FileHeader{Name: ManifestName, Method: zip.Deflate, Modified: now})
	if err != nil {
		return nil, fmt.Errorf("archive manifest: %w", err)
	}
	if _, err := fw.Write(data); err != nil {
		return nil, fmt.Errorf("archive manifest: %w", err)
	}
	if err := zw.Close(); err != nil {
		return nil, fmt.Errorf("close archive: %w", err)
	}
	return m, nil
}

// WriteDir writes done jobs as individual files under dir, plus the
// manifest.
func WriteDir(dir string, jobs []job.Job) (*Manifest, error) {
	items := Select(jobs)
	m := NewManifest(items)

	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create output dir: %w", err)
	}
	for _, it := range items {
		out := filepath.Join(dir, filepath.FromSlash(it.Name))
		if err := os.MkdirAll(filepath.Dir(out), 0o755); err != nil {
			return nil, fmt.Errorf("create dir for %s: %w", it.Name, err)
		}
		if err := os.WriteFile(out, it.Job.Output, 0o644); err != nil {
			return nil, fmt.Errorf("write %s: %w", it.Name, err)
		}
	}

	if err := WriteJSON(m, filepath.Join(dir, ManifestName)); err != nil {
		return nil, fmt.Errorf("write manifest: %w", err)
	}
	return m, nil
}

// WriteJSON serializes the manifest to a JSON file.
func WriteJSON(m *Manifest, path string) error {
	data, err := marshal(m)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}

func marshal(m *Manifest) ([]byte, error) {
	data, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("marshal manifest: %w", err)
	}
	return append(data, '\n'), nil
}
