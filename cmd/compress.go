package cmd

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/AnyUserName/imgpress-cli/internal/codec"
	"github.com/AnyUserName/imgpress-cli/internal/config"
	"github.com/AnyUserName/imgpress-cli/internal/export"
	"github.com/AnyUserName/imgpress-cli/internal/job"
	"github.com/AnyUserName/imgpress-cli/internal/pipeline"
	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"
)

var (
	compressOutDir      string
	compressZip         string
	compressFormat      string
	compressQuality     int
	compressLossless    bool
	compressWorkers     int
	compressRetryFailed bool
)

var compressCmd = &cobra.Command{
	Use:   "compress <path...>",
	Short: "Compress images and write the results with a manifest",
	Long: `Compresses every image file named on the command line. Directories are
scanned recursively for png, jpg, jpeg, webp, avif, jxl, heic, gif, bmp
and tiff files.

Output format defaults to keep-original. HEIC output is produced as JPEG.
Quality presets are 90 (high), 80 (balanced) and 60 (small).`,
	Args: cobra.MinimumNArgs(1),
	RunE: runCompress,
}

func init() {
	f := compressCmd.Flags()
	f.StringVarP(&compressOutDir, "out", "o", "", "output directory (default from config)")
	f.StringVar(&compressZip, "zip", "", "write a zip archive instead of a directory")
	f.StringVarP(&compressFormat, "format", "f", "", "output format: keep-original, jpeg, png, webp, avif, jxl, heic")
	f.IntVarP(&compressQuality, "quality", "q", 0, "quality preset: 90, 80 or 60")
	f.BoolVar(&compressLossless, "lossless", false, "lossless encoding where supported")
	f.IntVarP(&compressWorkers, "workers", "w", 0, "parallel workers (0 = NumCPU)")
	f.BoolVar(&compressRetryFailed, "retry-failed", false, "retry failed jobs once before exporting")
	rootCmd.AddCommand(compressCmd)
}

func runCompress(cmd *cobra.Command, args []string) error {
	start := time.Now()

	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	applyCompressFlags(cmd, &cfg)
	if err := cfg.Validate(); err != nil {
		return err
	}
	settings, err := cfg.Settings()
	if err != nil {
		return err
	}
	logger, err := newLogger(cfg)
	if err != nil {
		return err
	}

	sources, err := pipeline.Scan(args)
	if err != nil {
		return fmt.Errorf("scan: %w", err)
	}
	if len(sources) == 0 {
		return fmt.Errorf("no image files found in %v", args)
	}
	files, err := pipeline.Load(sources)
	if err != nil {
		return err
	}
	logger.Debug("inputs loaded", "files", len(files), "format", settings.Format, "quality", int(settings.Preset))

	reg := codec.NewDefaultRegistry(codec.Options{Tools: cfg.CodecTools(), Logger: logger})
	engine := pipeline.New(pipeline.Config{
		Workers:  cfg.Workers,
		Registry: reg,
		Logger:   logger,
	})
	defer engine.Close()

	if _, err := engine.SubmitFiles(files, settings); err != nil {
		return err
	}
	engine.Wait()

	if compressRetryFailed {
		retryFailed(engine, logger)
	}

	jobs := engine.Jobs()
	m, dest, err := writeOutput(cfg, engine, jobs)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	for _, rej := range engine.Rejected() {
		fmt.Fprintf(out, "  skipped: %v\n", rej)
	}
	printCompressReport(out, jobs, m, engine.PoolStats().PeakActive, time.Since(start))
	fmt.Fprintf(out, "  Output:  %s\n\n", dest)

	if failed := engine.Counts()[job.StatusError]; failed > 0 {
		return fmt.Errorf("%d of %d jobs failed", failed, len(jobs))
	}
	return nil
}

// applyCompressFlags overrides config values with flags set on the
// command line.
func applyCompressFlags(cmd *cobra.Command, cfg *config.Config) {
	f := cmd.Flags()
	if f.Changed("out") {
		cfg.OutputDir = compressOutDir
	}
	if f.Changed("format") {
		cfg.Format = compressFormat
	}
	if f.Changed("quality") {
		cfg.Quality = compressQuality
	}
	if f.Changed("lossless") {
		cfg.Lossless = compressLossless
	}
	if f.Changed("workers") && compressWorkers > 0 {
		cfg.Workers = compressWorkers
	}
}

func retryFailed(engine *pipeline.Engine, logger *slog.Logger) {
	var n int
	for _, j := range engine.Jobs() {
		if j.Status != job.StatusError {
			continue
		}
		if err := engine.Retry(j.ID); err != nil {
			logger.Warn("retry rejected", "job_id", j.ID, "error", err)
			continue
		}
		n++
	}
	if n > 0 {
		logger.Info("retrying failed jobs", "count", n)
		engine.Wait()
	}
}

func writeOutput(cfg config.Config, engine *pipeline.Engine, jobs []job.Job) (*export.Manifest, string, error) {
	if compressZip == "" {
		dir, err := filepath.Abs(cfg.OutputDir)
		if err != nil {
			return nil, "", fmt.Errorf("resolve output path: %w", err)
		}
		m, err := export.WriteDir(dir, jobs)
		return m, dir, err
	}

	f, err := os.Create(compressZip)
	if err != nil {
		return nil, "", fmt.Errorf("create archive: %w", err)
	}
	m, err := engine.ExportAll(f)
	if cerr := f.Close(); err == nil && cerr != nil {
		err = fmt.Errorf("close archive: %w", cerr)
	}
	return m, compressZip, err
}

func printCompressReport(w io.Writer, jobs []job.Job, m *export.Manifest, peak int, elapsed time.Duration) {
	headers := []string{"File", "Status", "Format", "Original", "Compressed", "Saved", "Time"}
	aligns := []columnAlignment{alignLeft, alignLeft, alignLeft, alignRight, alignRight, alignRight, alignRight}
	rows := make([][]string, 0, len(jobs))
	for _, j := range jobs {
		row := []string{truncName(j.Name, 40), string(j.Status), "", humanize.IBytes(uint64(j.OriginalSize)), "", "", ""}
		switch j.Status {
		case job.StatusDone:
			row[2] = string(j.OutputFormat)
			row[4] = humanize.IBytes(uint64(j.CompressedSize))
			if j.Ratio != nil {
				row[5] = strconv.Itoa(*j.Ratio) + "%"
			}
			row[6] = j.Elapsed.Round(time.Millisecond).String()
		case job.StatusError:
			row[2] = j.Error
		}
		rows = append(rows, row)
	}

	fmt.Fprintln(w)
	fmt.Fprintln(w, renderTable(headers, rows, aligns))
	fmt.Fprintln(w)

	s := m.Stats
	fmt.Fprintf(w, "  Files:   %d exported of %d\n", s.TotalFiles, len(jobs))
	fmt.Fprintf(w, "  Input:   %s\n", humanize.IBytes(uint64(s.TotalInputBytes)))
	fmt.Fprintf(w, "  Output:  %s\n", humanize.IBytes(uint64(s.TotalOutputBytes)))
	fmt.Fprintf(w, "  Saved:   %d%%\n", s.Ratio)
	fmt.Fprintf(w, "  Workers: %d peak\n", peak)
	fmt.Fprintf(w, "  Time:    %s\n", elapsed.Round(time.Millisecond))
}

func truncName(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return "..." + s[len(s)-max+3:]
}
