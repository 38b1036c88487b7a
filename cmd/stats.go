package cmd

import (
	"fmt"
	"io"
	"sort"
	"strconv"

	"github.com/AnyUserName/imgpress-cli/internal/export"
	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"
)

var statsCmd = &cobra.Command{
	Use:   "stats <out_dir_or_manifest>",
	Short: "Display statistics for an output directory",
	Args:  cobra.ExactArgs(1),
	RunE:  runStats,
}

func init() {
	rootCmd.AddCommand(statsCmd)
}

func runStats(cmd *cobra.Command, args []string) error {
	m, _, err := export.ReadManifest(args[0])
	if err != nil {
		return err
	}
	printStats(cmd.OutOrStdout(), m)
	return nil
}

type formatTotals struct {
	count   int
	in, out int64
}

func printStats(w io.Writer, m *export.Manifest) {
	fmt.Fprintln(w)
	fmt.Fprintf(w, "  Manifest version: %d\n", m.Version)
	fmt.Fprintf(w, "  Generated:        %s\n", m.GeneratedAt)
	fmt.Fprintln(w)

	s := m.Stats
	fmt.Fprintf(w, "  Files:            %d\n", s.TotalFiles)
	fmt.Fprintf(w, "  Input size:       %s\n", humanize.IBytes(uint64(s.TotalInputBytes)))
	fmt.Fprintf(w, "  Output size:      %s\n", humanize.IBytes(uint64(s.TotalOutputBytes)))
	fmt.Fprintf(w, "  Saved:            %d%%\n", s.Ratio)
	fmt.Fprintln(w)

	byFormat := map[string]formatTotals{}
	var grown []string
	for _, e := range m.Entries {
		t := byFormat[e.Format]
		t.count++
		t.in += e.OriginalSize
		t.out += e.CompressedSize
		byFormat[e.Format] = t
		if e.Ratio < 0 {
			grown = append(grown, e.Name)
		}
	}
	names := make([]string, 0, len(byFormat))
	for f := range byFormat {
		names = append(names, f)
	}
	sort.Strings(names)

	rows := make([][]string, 0, len(names))
	for _, f := range names {
		t := byFormat[f]
		rows = append(rows, []string{
			f,
			strconv.Itoa(t.count),
			humanize.IBytes(uint64(t.in)),
			humanize.IBytes(uint64(t.out)),
		})
	}
	fmt.Fprintln(w, renderTable(
		[]string{"Format", "Files", "Input", "Output"},
		rows,
		[]columnAlignment{alignLeft, alignRight, alignRight, alignRight},
	))

	if len(grown) > 0 {
		fmt.Fprintln(w)
		fmt.Fprintf(w, "  Warnings (%d):\n", len(grown))
		for _, name := range grown {
			fmt.Fprintf(w, "    ⚠ %s is larger than its original\n", name)
		}
	}
	fmt.Fprintln(w)
}
