package export

import (
	"bytes"
	"encoding/json"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/AnyUserName/imgpress-cli/internal/format"
	"github.com/AnyUserName/imgpress-cli/internal/job"
	"github.com/klauspost/compress/zip"
)

func doneJob(id, name string, f format.Format, orig int64, out []byte) job.Job {
	r := job.Ratio(orig, int64(len(out)))
	return job.Job{
		ID:             id,
		Name:           name,
		Status:         job.StatusDone,
		OriginalSize:   orig,
		CompressedSize: int64(len(out)),
		Output:         out,
		OutputFormat:   f,
		Ratio:          &r,
	}
}

func testJobs() []job.Job {
	return []job.Job{
		doneJob("1", "photo.heic", format.JPEG, 1000, []byte("jpeg-bytes")),
		{ID: "2", Name: "broken.png", Status: job.StatusError, Error: "decode png: bad"},
		doneJob("3", "Photo.png", format.JPEG, 100, []byte("other-jpeg")),
		{ID: "4", Name: "slow.png", Status: job.StatusCompressing},
		doneJob("5", "cards/a.png", format.WebP, 500, []byte("webp")),
	}
}

func TestOutputName(t *testing.T) {
	cases := map[string]string{
		"photo.heic":     "photo.jpg",
		"dir/x.tar.png":  "dir/x.tar.jpg",
		"../../etc/pass": "etc/pass.jpg",
		"noext":          "noext.jpg",
	}
	for in, want := range cases {
		got := OutputName(job.Job{ID: "id", Name: in, OutputFormat: format.JPEG})
		if got != want {
			t.Errorf("OutputName(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestSelect(t *testing.T) {
	items := Select(testJobs())
	if len(items) != 3 {
		t.Fatalf("selected %d items, want 3", len(items))
	}
	want := []string{"photo.jpg", "Photo (1).jpg", "cards/a.webp"}
	for i, it := range items {
		if it.Name != want[i] {
			t.Errorf("item %d name = %q, want %q", i, it.Name, want[i])
		}
	}
}

func TestArchive(t *testing.T) {
	var buf bytes.Buffer
	m, err := Archive(&buf, testJobs())
	if err != nil {
		t.Fatalf("archive: %v", err)
	}
	if m.Stats.TotalFiles != 3 || m.Stats.TotalInputBytes != 1600 {
		t.Errorf("stats = %+v", m.Stats)
	}

	zr, err := zip.NewReader(bytes.NewReader(buf.Bytes()), int64(buf.Len()))
	if err != nil {
		t.Fatalf("open zip: %v", err)
	}
	files := map[string][]byte{}
	for _, f := range zr.File {
		rc, err := f.Open()
		if err != nil {
			t.Fatal(err)
		}
		data, _ := io.ReadAll(rc)
		rc.Close()
		files[f.Name] = data
	}
	if string(files["photo.jpg"]) != "jpeg-bytes" {
		t.Errorf("photo.jpg = %q", files["photo.jpg"])
	}
	if _, ok := files["broken.png"]; ok {
		t.Error("failed job must not be exported")
	}

	var got Manifest
	if err := json.Unmarshal(files[ManifestName], &got); err != nil {
		t.Fatalf("manifest: %v", err)
	}
	if got.Version != SupportedManifestVersion || len(got.Entries) != 3 {
		t.Errorf("manifest = %+v", got)
	}
	if got.Entries[0].Ratio != 99 || len(got.Entries[0].Hash) != 16 {
		t.Errorf("entry 0 = %+v", got.Entries[0])
	}
}

func TestWriteDir(t *testing.T) {
	dir := t.TempDir()
	m, err := WriteDir(dir, testJobs())
	if err != nil {
		t.Fatalf("write dir: %v", err)
	}
	if len(m.Entries) != 3 {
		t.Errorf("entries = %d", len(m.Entries))
	}
	data, err := os.ReadFile(filepath.Join(dir, "cards", "a.webp"))
	if err != nil || string(data) != "webp" {
		t.Errorf("cards/a.webp = %q, %v", data, err)
	}
	if _, err := os.Stat(filepath.Join(dir, ManifestName)); err != nil {
		t.Errorf("manifest missing: %v", err)
	}
}

func TestManifestIgnoresUnknownFields(t *testing.T) {
	raw := `{
		"version": 1,
		"generated_at": "2025-01-01T00:00:00Z",
		"future_field": "should be ignored",
		"entries": [],
		"stats": { "total_files": 0, "new_stat": 42 }
	}`

	var m Manifest
	if err := json.Unmarshal([]byte(raw), &m); err != nil {
		t.Fatalf("unmarshal with unknown fields: %v", err)
	}
	if m.Version != 1 {
		t.Errorf("version: got %d", m.Version)
	}
}
