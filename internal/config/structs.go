//nolint:lll
package config

// Config represents the complete configuration for the dmscan application.
// It includes settings for all commands (batch, analyze, list) and supports
// loading from configuration files, environment variables, and command-line flags.
type Config struct {
	// Global settings
	LogLevel string `mapstructure:"log_level" yaml:"log_level" json:"log_level"`
	Verbose  bool   `mapstructure:"verbose" yaml:"verbose" json:"verbose"`

	// Image normalisation ahead of decoding
	Preprocess PreprocessConfig `mapstructure:"preprocess" yaml:"preprocess" json:"preprocess"`

	// Data Matrix decoder
	Decoder DecoderConfig `mapstructure:"decoder" yaml:"decoder" json:"decoder"`

	// Batch processing configuration
	Batch BatchConfig `mapstructure:"batch" yaml:"batch" json:"batch"`

	// Output file naming
	Naming NamingConfig `mapstructure:"naming" yaml:"naming" json:"naming"`

	// Metrics export
	Metrics MetricsConfig `mapstructure:"metrics" yaml:"metrics" json:"metrics"`
}

// PreprocessConfig contains preprocessing settings.
type PreprocessConfig struct {
	Denoise   bool    `mapstructure:"denoise" yaml:"denoise" json:"denoise"`
	BlockSize int     `mapstructure:"block_size" yaml:"block_size" json:"block_size"`
	Offset    float64 `mapstructure:"offset" yaml:"offset" json:"offset"`
}

// DecoderConfig contains Data Matrix search settings.
type DecoderConfig struct {
	TryHarder bool `mapstructure:"try_harder" yaml:"try_harder" json:"try_harder"`
	MaxDepth  int  `mapstructure:"max_depth" yaml:"max_depth" json:"max_depth"`
	MinSize   int  `mapstructure:"min_size" yaml:"min_size" json:"min_size"`
	Padding   int  `mapstructure:"padding" yaml:"padding" json:"padding"`
}

// BatchConfig contains batch processing settings.
type BatchConfig struct {
	Scale        float64 `mapstructure:"scale" yaml:"scale" json:"scale"`
	OutputFormat string  `mapstructure:"output_format" yaml:"output_format" json:"output_format"`
	OverlayDir   string  `mapstructure:"overlay_dir" yaml:"overlay_dir" json:"overlay_dir"`
	ReportFormat string  `mapstructure:"report_format" yaml:"report_format" json:"report_format"`
	ReportFile   string  `mapstructure:"report_file" yaml:"report_file" json:"report_file"`
	Progress     bool    `mapstructure:"progress" yaml:"progress" json:"progress"`
}

// NamingConfig contains output naming settings.
type NamingConfig struct {
	MaxLength int `mapstructure:"max_length" yaml:"max_length" json:"max_length"`
}

// MetricsConfig contains metrics export settings.
type MetricsConfig struct {
	Textfile string `mapstructure:"textfile" yaml:"textfile" json:"textfile"`
}
