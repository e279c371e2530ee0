package config

import (
	"fmt"
	"slices"
	"strings"

	"github.com/MeKo-Tech/dmscan/internal/barcode"
	"github.com/MeKo-Tech/dmscan/internal/batch"
	"github.com/MeKo-Tech/dmscan/internal/naming"
	"github.com/MeKo-Tech/dmscan/internal/preprocess"
	"github.com/MeKo-Tech/dmscan/internal/region"
)

// DefaultConfig returns a configuration with sensible defaults.
func DefaultConfig() Config {
	pre := preprocess.DefaultOptions()
	dec := barcode.DefaultOptions()

	return Config{
		LogLevel: "info",
		Verbose:  false,
		Preprocess: PreprocessConfig{
			Denoise:   pre.Denoise,
			BlockSize: pre.BlockSize,
			Offset:    pre.C,
		},
		Decoder: DecoderConfig{
			TryHarder: dec.TryHarder,
			MaxDepth:  dec.MaxDepth,
			MinSize:   dec.MinSize,
			Padding:   dec.Padding,
		},
		Batch: BatchConfig{
			Scale:        float64(region.NoScale),
			ReportFormat: "text",
		},
		Naming: NamingConfig{
			MaxLength: naming.DefaultMaxBaseLength,
		},
	}
}

// Validate validates the configuration and returns any errors.
func (c *Config) Validate() error {
	validLogLevels := []string{"debug", "info", "warn", "error"}
	if !slices.Contains(validLogLevels, c.LogLevel) {
		return fmt.Errorf("invalid log level: %s (must be one of: %s)", c.LogLevel, strings.Join(validLogLevels, ", "))
	}

	validReports := []string{"text", "json", "csv"}
	if c.Batch.ReportFormat != "" && !slices.Contains(validReports, c.Batch.ReportFormat) {
		return fmt.Errorf("invalid report format: %s (must be one of: %s)", c.Batch.ReportFormat, strings.Join(validReports, ", "))
	}

	validOutputs := []string{"png", "jpg", "jpeg", "bmp"}
	if c.Batch.OutputFormat != "" && !slices.Contains(validOutputs, strings.ToLower(c.Batch.OutputFormat)) {
		return fmt.Errorf("invalid output format: %s (must be one of: %s)", c.Batch.OutputFormat, strings.Join(validOutputs, ", "))
	}

	if err := region.ScaleFactor(c.Batch.Scale).Validate(); err != nil {
		return fmt.Errorf("invalid batch.scale: %w", err)
	}

	if c.Preprocess.BlockSize < 3 || c.Preprocess.BlockSize%2 == 0 {
		return fmt.Errorf("invalid preprocess.block_size: %d (must be an odd number >= 3)", c.Preprocess.BlockSize)
	}

	if c.Decoder.MaxDepth < 0 {
		return fmt.Errorf("invalid decoder.max_depth: %d (must not be negative)", c.Decoder.MaxDepth)
	}
	if c.Decoder.MinSize <= 0 {
		return fmt.Errorf("invalid decoder.min_size: %d (must be positive)", c.Decoder.MinSize)
	}
	if c.Decoder.Padding < 0 {
		return fmt.Errorf("invalid decoder.padding: %d (must not be negative)", c.Decoder.Padding)
	}

	if c.Naming.MaxLength <= 0 {
		return fmt.Errorf("invalid naming.max_length: %d (must be positive)", c.Naming.MaxLength)
	}

	return nil
}

// ToPreprocessOptions converts to preprocess.Options. Scale is left at
// NoScale; batch jobs carry their own scale.
func (c *Config) ToPreprocessOptions() preprocess.Options {
	opts := preprocess.DefaultOptions()
	opts.Denoise = c.Preprocess.Denoise
	opts.BlockSize = c.Preprocess.BlockSize
	opts.C = c.Preprocess.Offset
	return opts
}

// ToDecoderOptions converts to barcode.Options.
func (c *Config) ToDecoderOptions() barcode.Options {
	return barcode.Options{
		TryHarder: c.Decoder.TryHarder,
		MaxDepth:  c.Decoder.MaxDepth,
		MinSize:   c.Decoder.MinSize,
		Padding:   c.Decoder.Padding,
	}
}

// ToJob builds a batch job for the given folders.
func (c *Config) ToJob(sourceDir, outputDir string) batch.Job {
	return batch.Job{
		SourceDir:    sourceDir,
		OutputDir:    outputDir,
		Scale:        region.ScaleFactor(c.Batch.Scale),
		OutputFormat: c.Batch.OutputFormat,
		OverlayDir:   c.Batch.OverlayDir,
	}
}
