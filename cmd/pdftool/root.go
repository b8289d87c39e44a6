package main

import (
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/jacksonlee411/harbor-erp/modules/pdftools/services"
	"github.com/jacksonlee411/harbor-erp/pkg/pdf"
)

// app carries the state shared by every subcommand.
type app struct {
	verbose     bool
	parallelism int
	maxDecoded  int64

	logger  *zap.Logger
	toolkit *services.Toolkit
}

func newRootCmd() *cobra.Command {
	a := &app{}
	root := &cobra.Command{
		Use:   "pdftool",
		Short: "Merge, split, compress and inspect PDF files",
		Long: `pdftool runs the PDF toolkit from the command line.

Every command reads local files and writes its results next to them
unless an output path is given.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			config := zap.NewProductionConfig()
			config.Encoding = "console"
			config.Level = zap.NewAtomicLevelAt(zapcore.WarnLevel)
			if a.verbose {
				config.Level = zap.NewAtomicLevelAt(zapcore.DebugLevel)
			}
			var err error
			a.logger, err = config.Build()
			if err != nil {
				return fmt.Errorf("failed to initialize logger: %w", err)
			}
			a.toolkit = services.NewToolkit(a.logger, a.parallelism).WithLimits(pdf.Limits{MaxDecodedBytes: a.maxDecoded << 20})
			return nil
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			if a.logger != nil {
				_ = a.logger.Sync()
			}
		},
	}
	root.PersistentFlags().BoolVarP(&a.verbose, "verbose", "v", false, "Enable debug logging")
	root.PersistentFlags().IntVar(&a.parallelism, "parallel", 0, "Files parsed concurrently (0 = number of CPUs)")
	root.PersistentFlags().Int64Var(&a.maxDecoded, "max-decoded-mb", 512, "Decoded stream budget per document in MiB")

	root.AddCommand(
		a.mergeCmd(),
		a.splitCmd(),
		a.compressCmd(),
		a.appendCmd(),
		a.infoCmd(),
	)
	return root
}
