// Package job holds the per-file compression lifecycle.
//
// States move pending → compressing → done | error. The only way out of
// a terminal state is an explicit retry from error, which re-runs from
// the original source bytes.
package job

import (
	"fmt"
	"math"
	"time"

	"github.com/AnyUserName/imgpress-cli/internal/format"
	"github.com/AnyUserName/imgpress-cli/internal/quality"
)

// Status is a job lifecycle state.
type Status string

const (
	StatusPending     Status = "pending"
	StatusCompressing Status = "compressing"
	StatusDone        Status = "done"
	StatusError       Status = "error"
)

// Settings is the output configuration captured when a job is created.
type Settings struct {
	Format   format.Format  // a format tag or format.KeepOriginal
	Preset   quality.Preset // 90, 80 or 60
	Lossless bool
}

// Job is a snapshot of one file's compression request and state.
// Source and Output are shared read-only with the store; do not modify.
type Job struct {
	ID        string
	Name      string
	MediaType string
	Source    []byte
	Settings  Settings

	Status         Status
	OriginalSize   int64
	CompressedSize int64
	Output         []byte
	OutputFormat   format.Format
	Ratio          *int
	Elapsed        time.Duration
	Error          string
	Attempts       int
}

// Ratio returns the percentage size reduction, rounded. Negative means
// the output grew.
func Ratio(original, compressed int64) int {
	if original <= 0 {
		return 0
	}
	return int(math.Round(float64(original-compressed) / float64(original) * 100))
}

// Active reports whether the job is queued or running.
func (j Job) Active() bool {
	return j.Status == StatusPending || j.Status == StatusCompressing
}

func (j Job) String() string {
	return fmt.Sprintf("%s(%s, %s)", j.Name, j.ID, j.Status)
}
