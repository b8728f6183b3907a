package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/jihwanw/big-dragons-never-die/internal/app"
	"github.com/jihwanw/big-dragons-never-die/internal/config"
	apperrors "github.com/jihwanw/big-dragons-never-die/internal/errors"
	"github.com/jihwanw/big-dragons-never-die/internal/famamacbeth"
	"github.com/jihwanw/big-dragons-never-die/internal/infrastructure"
)

// options are the persistent flags shared by every command
type options struct {
	configPath string
	dataDir    string
	outputDir  string
	logLevel   string

	started bool // set once flags parsed and a command began
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	code := execute(ctx, os.Args[1:], os.Stdout, os.Stderr)
	stop()
	os.Exit(code)
}

// execute runs the CLI and returns the process exit code
func execute(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	ctx = infrastructure.EnsureRunID(ctx)
	opts := &options{}
	root := newRootCmd(opts, stdout)
	root.SetArgs(args)
	root.SetOut(stdout)
	root.SetErr(stderr)

	err := root.ExecuteContext(ctx)
	if err == nil {
		return apperrors.ExitOK
	}
	if !opts.started {
		// flag and argument errors from cobra
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return apperrors.ExitConfig
	}
	logger, lerr := infrastructure.NewLogger(config.LoggingConfig{Level: "info", Format: "json", Output: "console"}, stderr)
	if lerr != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return apperrors.ExitCode(err)
	}
	return apperrors.NewErrorHandler(logger.Logger).Handle(ctx, err)
}

func newRootCmd(opts *options, stdout io.Writer) *cobra.Command {
	root := &cobra.Command{
		Use:   config.AppName,
		Short: "Fama-MacBeth study of the size premium inside the mega-cap universe",
		Long: `megacap builds size factors from the 200 largest stocks, estimates their
premia with three-stage Fama-MacBeth regressions and writes summary tables,
figure data and an XLSX workbook.

Examples:
  megacap run
  megacap run --config configs/megacap.yaml --output-dir out
  megacap factors --data-dir data
  MEGACAP_FACTORS_VALUE_SOURCE=mega megacap run`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			opts.started = true
		},
	}

	flags := root.PersistentFlags()
	flags.StringVar(&opts.configPath, "config", "", "Path to the YAML configuration (default: search megacap.yaml, config.yaml, configs/)")
	flags.StringVar(&opts.dataDir, "data-dir", "", "Directory holding the input tables")
	flags.StringVar(&opts.outputDir, "output-dir", "", "Directory for the output tables and workbook")
	flags.StringVar(&opts.logLevel, "log-level", "", "Log level (debug|info|warn|error)")

	root.AddCommand(newRunCmd(opts, stdout), newFactorsCmd(opts, stdout), newVersionCmd(stdout))
	return root
}

// session is the per-command runtime: config, logger, telemetry and app
type session struct {
	app       *app.Application
	logger    *infrastructure.Logger
	providers *infrastructure.OTelProviders
}

// open loads configuration and brings up logging and telemetry
func open(ctx context.Context, opts *options, stdout io.Writer) (*session, error) {
	cfg, err := config.Load(opts.configPath)
	if err != nil {
		return nil, err
	}
	if opts.dataDir != "" {
		cfg.Paths.DataDir = opts.dataDir
	}
	if opts.outputDir != "" {
		cfg.Paths.OutputDir = opts.outputDir
	}
	if opts.logLevel != "" {
		cfg.Logging.Level = opts.logLevel
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	logger, err := infrastructure.NewLogger(cfg.Logging, stdout)
	if err != nil {
		return nil, apperrors.NewConfigError("failed to initialize logger", err)
	}
	slog.SetDefault(logger.Logger)

	providers, err := infrastructure.InitializeOTel(cfg.Telemetry, infrastructure.GetRunID(ctx), logger.Logger)
	if err != nil {
		logger.Close()
		return nil, apperrors.NewConfigError("failed to initialize telemetry", err)
	}

	application, err := app.NewApplication(cfg, logger.Logger)
	if err != nil {
		providers.Shutdown(ctx)
		logger.Close()
		return nil, err
	}
	if application.Instruments, err = famamacbeth.NewInstruments(); err != nil {
		logger.WarnContext(ctx, "stage instruments unavailable", slog.String("error", err.Error()))
	}
	if application.Metrics, err = infrastructure.NewSystemMetrics(); err != nil {
		logger.WarnContext(ctx, "system metrics unavailable", slog.String("error", err.Error()))
	}
	return &session{app: application, logger: logger, providers: providers}, nil
}

// close flushes telemetry and closes the log file
func (s *session) close(ctx context.Context) {
	if err := s.providers.Shutdown(context.WithoutCancel(ctx)); err != nil {
		s.logger.ErrorContext(ctx, "Error shutting down OpenTelemetry", slog.String("error", err.Error()))
	}
	s.logger.Close()
}
