package cmd

import (
	"encoding/json"
	"fmt"
	"image"

	"github.com/MeKo-Tech/dmscan/internal/analyzer"
	"github.com/MeKo-Tech/dmscan/internal/region"
	"github.com/MeKo-Tech/dmscan/internal/scanerr"
	"github.com/spf13/cobra"
)

func (a *app) analyzeCommand() *cobra.Command {
	analyzeCmd := &cobra.Command{
		Use:   "analyze <image>",
		Short: "Decode the Data Matrix inside one region of an image",
		Long: `Decode a single Data Matrix inside a selected region of one image. The
region is given as x,y,w,h in pixels of the original image and is clipped
to the image bounds. Without --region the whole image is analysed.

Examples:
  dmscan analyze photo.jpg --region 120,40,200,200
  dmscan analyze photo.jpg --format json`,
		Args: cobra.ExactArgs(1),
		RunE: a.runAnalyze,
	}

	analyzeCmd.Flags().String("region", "", "region to analyse as x,y,w,h")
	analyzeCmd.Flags().String("format", "text", "output format: text or json")
	analyzeCmd.Flags().Bool("no-denoise", false, "skip non-local means denoising")

	return analyzeCmd
}

func (a *app) runAnalyze(cmd *cobra.Command, args []string) error {
	format, _ := cmd.Flags().GetString("format")
	if format != "text" && format != "json" {
		return fmt.Errorf("unsupported format: %s", format)
	}

	opts := a.cfg.ToPreprocessOptions()
	if noDenoise, _ := cmd.Flags().GetBool("no-denoise"); noDenoise {
		opts.Denoise = false
	}
	session := analyzer.NewSession(analyzer.New(a.newLocator(a.cfg.ToDecoderOptions()),
		analyzer.WithPreprocessOptions(opts),
		analyzer.WithLogger(a.logger),
	))

	src, err := session.SelectImage(args[0])
	if err != nil {
		return err
	}

	sel := region.FromRect(src.Bounds())
	if spec, _ := cmd.Flags().GetString("region"); spec != "" {
		if sel, err = region.Parse(spec); err != nil {
			return err
		}
		if !sel.Valid() {
			return scanerr.Newf(scanerr.KindRegionOutOfBounds, args[0], "region %s has no area", sel)
		}
	}
	session.SetSelection(image.Pt(sel.X, sel.Y), image.Pt(sel.X+sel.W, sel.Y+sel.H))

	res, err := session.Analyze(cmd.Context())
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if format == "json" {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(res)
	}

	for _, w := range res.Warnings {
		_, _ = fmt.Fprintln(cmd.ErrOrStderr(), "warning:", w)
	}
	if !res.Decoded {
		_, _ = fmt.Fprintf(out, "no Data Matrix found in %s\n", res.Region)
		return nil
	}
	_, _ = fmt.Fprintln(out, res.Text)
	return nil
}
