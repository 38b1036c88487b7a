package export

// Manifest describes one export of completed jobs.
type Manifest struct {
	Version     int     `json:"version"`
	GeneratedAt string  `json:"generated_at"`
	Entries     []Entry `json:"entries"`
	Stats       Stats   `json:"stats"`
}

// Entry is one exported output.
type Entry struct {
	Name           string `json:"name"`   // output path inside the export
	Source         string `json:"source"` // original file name
	Format         string `json:"format"`
	MediaType      string `json:"media_type"`
	OriginalSize   int64  `json:"original_size"`
	CompressedSize int64  `json:"compressed_size"`
	Ratio          int    `json:"ratio"`      // percent saved, negative if grown
	Hash           string `json:"hash"`       // first 16 hex chars of xxhash64
	ElapsedMs      int64  `json:"elapsed_ms"` // encode wall time
}

// Stats aggregates an export.
type Stats struct {
	TotalFiles       int   `json:"total_files"`
	TotalInputBytes  int64 `json:"total_input_bytes"`
	TotalOutputBytes int64 `json:"total_output_bytes"`
	Ratio            int   `json:"ratio"`
}

// SupportedManifestVersion is the current schema version.
const SupportedManifestVersion = 1

// ManifestName is the manifest file name inside an export.
const ManifestName = "imgpress.manifest.json"
