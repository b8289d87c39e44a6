package main

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/jacksonlee411/harbor-erp/modules/pdftools/domain/types"
)

func (a *app) mergeCmd() *cobra.Command {
	var output string
	cmd := &cobra.Command{
		Use:     "merge [file...]",
		Short:   "Merge PDF files in the order given",
		Example: `  pdftool merge a.pdf b.pdf c.pdf -o all.pdf`,
		Args:    cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			inputs, err := readInputs(args)
			if err != nil {
				return err
			}
			out, err := a.toolkit.Merge(cmd.Context(), inputs)
			if err != nil {
				return err
			}
			if output == "" {
				output = filepath.Join(filepath.Dir(args[0]), out.Filename)
			}
			if err := writeOutput(output, out.Data); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Merged %d files (%d pages) into %s\n", len(args), out.Pages, output)
			return nil
		},
	}
	cmd.Flags().StringVarP(&output, "output", "o", "", "Output file (default merged.pdf next to the first input)")
	return cmd
}

func (a *app) splitCmd() *cobra.Command {
	var ranges, dir string
	cmd := &cobra.Command{
		Use:   "split [file]",
		Short: "Split a PDF into one file per page range",
		Example: `  pdftool split report.pdf --ranges 1-3,4,7-
  pdftool split report.pdf --ranges -2 -d parts/`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			in, err := readInput(args[0])
			if err != nil {
				return err
			}
			outs, err := a.toolkit.Split(cmd.Context(), in, ranges)
			if err != nil {
				return err
			}
			if dir == "" {
				dir = filepath.Dir(args[0])
			}
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return err
			}
			for _, out := range outs {
				path := filepath.Join(dir, out.Filename)
				if err := writeOutput(path, out.Data); err != nil {
					return err
				}
				a.logger.Debug("split part written", zap.String("path", path), zap.Int("pages", out.Pages))
				fmt.Fprintln(cmd.OutOrStdout(), path)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&ranges, "ranges", "", "Comma-separated page ranges such as 1-3,5,8-")
	cmd.Flags().StringVarP(&dir, "dir", "d", "", "Output directory (default next to the input)")
	_ = cmd.MarkFlagRequired("ranges")
	return cmd
}

func (a *app) compressCmd() *cobra.Command {
	var output string
	var quality int
	cmd := &cobra.Command{
		Use:   "compress [file]",
		Short: "Recompress streams and images",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			in, err := readInput(args[0])
			if err != nil {
				return err
			}
			out, res, err := a.toolkit.Compress(cmd.Context(), in, quality)
			if err != nil {
				return err
			}
			if output == "" {
				output = filepath.Join(filepath.Dir(args[0]), out.Filename)
			}
			if err := writeOutput(output, out.Data); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s: %d -> %d bytes (ratio %.4f, %d images, %d streams)\n",
				output, res.OriginalSize, res.CompressedSize, res.Ratio, res.ImagesRecompressed, res.StreamsRecompressed)
			return nil
		},
	}
	cmd.Flags().StringVarP(&output, "output", "o", "", "Output file (default compressed_<name> next to the input)")
	cmd.Flags().IntVarP(&quality, "quality", "q", 75, "Quality from 1 (smallest) to 100")
	return cmd
}

func (a *app) appendCmd() *cobra.Command {
	var output string
	var incremental bool
	cmd := &cobra.Command{
		Use:   "append [main] [file...]",
		Short: "Append pages from other PDFs to a main document",
		Long: `Appends every page of the additional files to the main document.

With --incremental the main file's bytes are kept unchanged and the new
pages are written as an incremental update.`,
		Args: cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			inputs, err := readInputs(args)
			if err != nil {
				return err
			}
			out, err := a.toolkit.Append(cmd.Context(), inputs[0], inputs[1:], incremental)
			if err != nil {
				return err
			}
			if output == "" {
				output = filepath.Join(filepath.Dir(args[0]), out.Filename)
			}
			if err := writeOutput(output, out.Data); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Wrote %s (%d pages)\n", output, out.Pages)
			return nil
		},
	}
	cmd.Flags().StringVarP(&output, "output", "o", "", "Output file (default edited_<main> next to the main file)")
	cmd.Flags().BoolVar(&incremental, "incremental", false, "Write an incremental update")
	return cmd
}

func (a *app) infoCmd() *cobra.Command {
	var asJSON bool
	cmd := &cobra.Command{
		Use:   "info [file]",
		Short: "Print version, page count and metadata",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			in, err := readInput(args[0])
			if err != nil {
				return err
			}
			info, err := a.toolkit.Info(in)
			if err != nil {
				return err
			}
			w := cmd.OutOrStdout()
			if asJSON {
				enc := json.NewEncoder(w)
				enc.SetIndent("", "  ")
				return enc.Encode(info)
			}
			fmt.Fprintf(w, "File:      %s\n", in.Name)
			fmt.Fprintf(w, "Version:   %s\n", info.Version)
			fmt.Fprintf(w, "Pages:     %d\n", info.Pages)
			fmt.Fprintf(w, "Encrypted: %t\n", info.Encrypted)
			if info.Title != "" {
				fmt.Fprintf(w, "Title:     %s\n", info.Title)
			}
			if info.Producer != "" {
				fmt.Fprintf(w, "Producer:  %s\n", info.Producer)
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print JSON")
	return cmd
}

func readInputs(paths []string) ([]types.Input, error) {
	inputs := make([]types.Input, 0, len(paths))
	for _, p := range paths {
		in, err := readInput(p)
		if err != nil {
			return nil, err
		}
		inputs = append(inputs, in)
	}
	return inputs, nil
}

func readInput(path string) (types.Input, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return types.Input{}, err
	}
	return types.Input{Name: filepath.Base(path), Data: data}, nil
}

func writeOutput(path string, data []byte) error {
	return os.WriteFile(path, data, 0o644)
}
