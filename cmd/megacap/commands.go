package main

import (
	"fmt"
	"io"
	"log/slog"
	"runtime"

	"github.com/spf13/cobra"

	"github.com/jihwanw/big-dragons-never-die/internal/config"
	"github.com/jihwanw/big-dragons-never-die/internal/report"
)

func newRunCmd(opts *options, stdout io.Writer) *cobra.Command {
	return &cobra.Command{
		Use:   "run",
		Short: "Build the factors, estimate the premia and write every output",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			s, err := open(ctx, opts, stdout)
			if err != nil {
				return err
			}
			defer s.close(ctx)

			summary, err := s.app.Run(ctx)
			if err != nil {
				return err
			}
			for _, row := range report.Summarize(summary.Results) {
				s.logger.InfoContext(ctx, "result",
					slog.String("methodology", row.Methodology),
					slog.String("factor", row.Factor),
					slog.String("annual", fmt.Sprintf("%.4f%s", row.AnnualPremium, row.Significance)),
					slog.Float64("t_stat", row.TStat))
			}
			return nil
		},
	}
}

func newFactorsCmd(opts *options, stdout io.Writer) *cobra.Command {
	return &cobra.Command{
		Use:   "factors",
		Short: "Build the size and value factors and write factors.csv only",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			s, err := open(ctx, opts, stdout)
			if err != nil {
				return err
			}
			defer s.close(ctx)

			_, err = s.app.WriteFactorTable(ctx)
			return err
		},
	}
}

func newVersionCmd(stdout io.Writer) *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the version",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(stdout, "%s %s (%s %s/%s)\n",
				config.AppName, config.AppVersion, runtime.Version(), runtime.GOOS, runtime.GOARCH)
		},
	}
}
