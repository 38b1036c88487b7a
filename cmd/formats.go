package cmd

import (
	"fmt"

	"github.com/AnyUserName/imgpress-cli/internal/codec"
	"github.com/AnyUserName/imgpress-cli/internal/format"
	"github.com/spf13/cobra"
)

var formatsCmd = &cobra.Command{
	Use:   "formats",
	Short: "List formats and which codecs are available on this machine",
	Args:  cobra.NoArgs,
	RunE:  runFormats,
}

func init() {
	rootCmd.AddCommand(formatsCmd)
}

func runFormats(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	logger, err := newLogger(cfg)
	if err != nil {
		return err
	}
	reg := codec.NewDefaultRegistry(codec.Options{Tools: cfg.CodecTools(), Logger: logger})

	var rows [][]string
	for _, f := range format.All() {
		rows = append(rows, []string{
			string(f),
			format.MediaType(f),
			yesNo(reg.CanDecode(f)),
			encodeSupport(reg, f),
		})
	}
	out := cmd.OutOrStdout()
	fmt.Fprintln(out, renderTable([]string{"Format", "Media type", "Decode", "Encode"}, rows, nil))
	fmt.Fprintln(out, "  gif, bmp and tiff inputs are decoded through the bitmap fallback.")
	return nil
}

func encodeSupport(reg *codec.Registry, f format.Format) string {
	if !reg.CanEncode(f) {
		return "no"
	}
	if t := format.EncodeTarget(f); t != f {
		return "as " + string(t)
	}
	return "yes"
}

func yesNo(ok bool) string {
	if ok {
		return "yes"
	}
	return "no"
}
