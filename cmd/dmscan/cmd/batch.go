package cmd

import (
	"errors"
	"fmt"
	"log/slog"

	"github.com/MeKo-Tech/dmscan/internal/batch"
	"github.com/MeKo-Tech/dmscan/internal/progress"
	"github.com/spf13/cobra"
)

// errCancelled is returned when a batch was interrupted; the partial report
// has been written by then.
var errCancelled = errors.New("batch cancelled")

func (a *app) batchCommand() *cobra.Command {
	batchCmd := &cobra.Command{
		Use:   "batch <source-dir> <output-dir>",
		Short: "Extract every Data Matrix found in a folder of images",
		Long: `Process every PNG, JPEG and BMP image in source-dir in name order. Each
decoded symbol is cropped from the original image and written to
output-dir/<image name>/<decoded text>_<run stamp>-<sequence>.<ext>.

Images can be downscaled for detection with --scale; crops are always cut
from the full-resolution original. Interrupting the command (Ctrl+C) stops
after the current image and still prints the report.

Examples:
  dmscan batch photos/ extracted/
  dmscan batch photos/ extracted/ --scale 0.5 --format png
  dmscan batch photos/ extracted/ --report csv --report-file report.csv
  dmscan batch photos/ extracted/ --progress --metrics-file dmscan.prom`,
		Args: cobra.ExactArgs(2),
		RunE: a.runBatch,
	}

	f := batchCmd.Flags()
	f.Float64("scale", 1, "detection scale factor in (0, 1]")
	f.Bool("no-denoise", false, "skip non-local means denoising")
	f.Int("block-size", 31, "adaptive threshold window size (odd)")
	f.Float64("offset", 5, "adaptive threshold offset subtracted from the local mean")
	f.String("format", "", "output image format: png, jpg or bmp (default: same as source)")
	f.String("overlay-dir", "", "directory for images with detected symbols outlined")
	f.Bool("progress", false, "show a progress bar on stderr")
	f.BoolP("quiet", "q", false, "do not print the report")
	f.String("report", "text", "report format: text, json or csv")
	f.String("report-file", "", "write the report to a file instead of stdout")
	f.String("metrics-file", "", "write Prometheus metrics to this textfile when done")

	// Bind flags to viper
	for key, flag := range map[string]string{
		"batch.scale":           "scale",
		"preprocess.block_size": "block-size",
		"preprocess.offset":     "offset",
		"batch.output_format":   "format",
		"batch.overlay_dir":     "overlay-dir",
		"batch.progress":        "progress",
		"batch.report_format":   "report",
		"batch.report_file":     "report-file",
		"metrics.textfile":      "metrics-file",
	} {
		_ = a.v.BindPFlag(key, f.Lookup(flag))
	}

	return batchCmd
}

func (a *app) runBatch(cmd *cobra.Command, args []string) error {
	cfg := *a.cfg
	if noDenoise, _ := cmd.Flags().GetBool("no-denoise"); noDenoise {
		cfg.Preprocess.Denoise = false
	}
	quiet, _ := cmd.Flags().GetBool("quiet")

	job := cfg.ToJob(args[0], args[1])

	report := batch.NewReport()
	sinks := progress.NewMultiSink(report, progress.NewLogSink(a.logger, slog.LevelInfo))
	if cfg.Batch.Progress {
		sinks.Add(progress.NewConsoleSink(cmd.ErrOrStderr(), ""))
	}
	var metrics *progress.MetricsSink
	if cfg.Metrics.Textfile != "" {
		metrics = progress.NewMetricsSink()
		sinks.Add(metrics)
	}
	async := progress.NewAsyncSink(sinks)

	runner := batch.NewRunner(a.newLocator(cfg.ToDecoderOptions()),
		batch.WithPreprocessOptions(cfg.ToPreprocessOptions()),
		batch.WithLogger(a.logger),
		batch.WithMaxBaseLength(cfg.Naming.MaxLength),
	)

	handle, err := runner.Start(cmd.Context(), job, async)
	if err != nil {
		async.Close()
		return err
	}
	summary, runErr := handle.Wait()
	async.Close()

	if metrics != nil {
		if err := metrics.WriteTextfile(cfg.Metrics.Textfile); err != nil {
			a.logger.Error("failed to write metrics", "file", cfg.Metrics.Textfile, "error", err)
		}
	}

	if !quiet || cfg.Batch.ReportFile != "" {
		if err := report.Save(cfg.Batch.ReportFormat, cfg.Batch.ReportFile, cmd.OutOrStdout()); err != nil {
			return err
		}
	}

	if runErr != nil {
		return runErr
	}
	if summary.Cancelled {
		return fmt.Errorf("%w: %s", errCancelled, summary.String())
	}
	return nil
}
