package cmd

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/MeKo-Tech/dmscan/internal/barcode"
	"github.com/MeKo-Tech/dmscan/internal/config"
	"github.com/MeKo-Tech/dmscan/internal/version"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// app carries the state shared by one command tree: its viper instance, the
// resolved configuration and the logger installed by the root command.
type app struct {
	v       *viper.Viper
	cfgFile string
	cfg     *config.Config
	logger  *slog.Logger

	// newLocator builds the decoder; tests swap it for a fake.
	newLocator func(barcode.Options) barcode.Locator
}

// NewRootCommand builds the dmscan command tree. Every call returns an
// independent tree with its own configuration state.
func NewRootCommand() *cobra.Command {
	a := &app{
		v:          viper.New(),
		logger:     slog.Default(),
		newLocator: barcode.NewLocator,
	}
	return a.rootCommand()
}

func (a *app) rootCommand() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "dmscan",
		Short: "Locate and extract Data Matrix codes from photographs",
		Long: `dmscan finds Data Matrix symbols in photographs, decodes them and writes
each symbol as a cropped image named after its decoded text.

This tool provides:
- Batch extraction over a folder of PNG, JPEG and BMP images
- Decoding of a single region of one image
- Text, JSON and CSV reports and Prometheus textfile metrics

Examples:
  dmscan batch photos/ extracted/
  dmscan batch photos/ extracted/ --scale 0.5 --report json
  dmscan analyze photo.jpg --region 120,40,200,200`,
		Version:       version.String(),
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.initialize(cmd.ErrOrStderr())
		},
	}
	rootCmd.SetVersionTemplate("dmscan version {{.Version}}\n")

	// Global flags that apply to all commands
	pf := rootCmd.PersistentFlags()
	pf.StringVar(&a.cfgFile, "config", "", "config file (default is search in ., $HOME, $HOME/.config/dmscan, /etc/dmscan)")
	pf.BoolP("verbose", "v", false, "verbose output (equivalent to --log-level=debug)")
	pf.String("log-level", "info", "log level (debug, info, warn, error)")

	_ = a.v.BindPFlag("verbose", pf.Lookup("verbose"))
	_ = a.v.BindPFlag("log_level", pf.Lookup("log-level"))

	rootCmd.AddCommand(
		a.batchCommand(),
		a.analyzeCommand(),
		a.listCommand(),
		a.configCommand(),
	)
	return rootCmd
}

// initialize loads the configuration and installs the structured logger.
func (a *app) initialize(logOut io.Writer) error {
	loader := config.NewLoaderWithViper(a.v)
	cfg, err := loader.LoadWithFile(a.cfgFile)
	if err != nil {
		return fmt.Errorf("error loading configuration: %w", err)
	}
	a.cfg = cfg

	// Set up structured logging; stdout is reserved for reports
	a.logger = slog.New(slog.NewJSONHandler(logOut, &slog.HandlerOptions{
		Level: logLevel(cfg),
	}))
	slog.SetDefault(a.logger)

	a.logger.Debug("configuration loaded", "file", loader.GetConfigFileUsed())
	return nil
}

// logLevel resolves the verbose flag and log_level into a slog.Level.
func logLevel(cfg *config.Config) slog.Level {
	if cfg.Verbose {
		return slog.LevelDebug
	}
	switch cfg.LogLevel {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// Execute runs the root command with a context that is cancelled on SIGINT
// or SIGTERM, and returns the process exit code.
func Execute() int {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := NewRootCommand().ExecuteContext(ctx); err != nil {
		_, _ = fmt.Fprintln(os.Stderr, "Error:", err)
		return 1
	}
	return 0
}
