package main

import (
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/deepteams/pngopt"
)

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "gpngopt",
		Short:         "Lossless PNG recompression",
		SilenceErrors: true,
		SilenceUsage:  true,
	}
	root.PersistentFlags().String("config", "", "YAML options file; flags override its values")
	root.AddCommand(newOptimizeCmd(), newConfigCmd())
	return root
}

func newOptimizeCmd() *cobra.Command {
	var (
		verbose     bool
		alwaysWrite bool
		flags       *optionFlags
	)
	cmd := &cobra.Command{
		Use:   "optimize [flags] <in.png> <out.png>",
		Short: "Write the smallest lossless encoding of a PNG",
		Long: `Optimize searches color modes, palette orders, scanline filters and
deflate parses for the smallest PNG with the same pixels. Use "-" to read
from stdin or write to stdout.`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			opts, err := loadOptions(cmd, flags)
			if err != nil {
				return err
			}
			level := slog.LevelInfo
			if verbose {
				level = slog.LevelDebug
			}
			opts.Logger = slog.New(slog.NewTextHandler(cmd.ErrOrStderr(), &slog.HandlerOptions{Level: level}))
			return runOptimize(cmd, opts, args[0], args[1], alwaysWrite)
		},
	}
	cmd.Flags().BoolVarP(&verbose, "verbose", "v", false, "log every candidate")
	cmd.Flags().BoolVar(&alwaysWrite, "always-write", false, "write the optimized file even when it is not smaller")
	flags = newOptionFlags(cmd.Flags())
	return cmd
}

func newConfigCmd() *cobra.Command {
	var flags *optionFlags
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Print the effective options as YAML",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			opts, err := loadOptions(cmd, flags)
			if err != nil {
				return err
			}
			return opts.WriteYAML(cmd.OutOrStdout())
		},
	}
	flags = newOptionFlags(cmd.Flags())
	return cmd
}

// loadOptions starts from the --config file, or the defaults, and applies
// the flags given on the command line.
func loadOptions(cmd *cobra.Command, flags *optionFlags) (*pngopt.Options, error) {
	opts := pngopt.DefaultOptions()
	if path, _ := cmd.Flags().GetString("config"); path != "" {
		var err error
		if opts, err = pngopt.LoadOptions(path); err != nil {
			return nil, err
		}
	}
	if err := flags.override(cmd.Flags(), opts); err != nil {
		return nil, err
	}
	if err := opts.Validate(); err != nil {
		return nil, err
	}
	return opts, nil
}

func runOptimize(cmd *cobra.Command, opts *pngopt.Options, inPath, outPath string, alwaysWrite bool) error {
	input, err := readInput(cmd.InOrStdin(), inPath)
	if err != nil {
		return err
	}
	res, err := pngopt.OptimizeContext(cmd.Context(), input, opts)
	if err != nil {
		return fmt.Errorf("%s: %w", inPath, err)
	}

	if err := writeOutput(cmd.OutOrStdout(), outPath, output(input, res, alwaysWrite)); err != nil {
		return err
	}
	report(cmd.ErrOrStderr(), inPath, res, alwaysWrite || res.Improved())
	return nil
}

// output returns the bytes to write: the optimized file, or the input when
// the search did not shrink it.
func output(input []byte, res *pngopt.Result, alwaysWrite bool) []byte {
	if alwaysWrite || res.Improved() {
		return res.PNG
	}
	return input
}

func report(w io.Writer, name string, res *pngopt.Result, wrote bool) {
	saved := res.InputSize - len(res.PNG)
	fmt.Fprintf(w, "%s: %s -> %s", name, humanize.Bytes(uint64(res.InputSize)), humanize.Bytes(uint64(len(res.PNG))))
	if res.InputSize > 0 {
		fmt.Fprintf(w, " (%+.2f%%)", -100*float64(saved)/float64(res.InputSize))
	}
	fmt.Fprintf(w, ", %s, filters %s, %s candidates\n", res.Mode, res.Strategy, humanize.Comma(int64(res.Candidates)))
	if !wrote {
		fmt.Fprintf(w, "%s: result is not smaller, kept the original\n", name)
	}
}

func readInput(stdin io.Reader, path string) ([]byte, error) {
	if path == "-" {
		return io.ReadAll(stdin)
	}
	return os.ReadFile(path)
}

func writeOutput(stdout io.Writer, path string, data []byte) error {
	if path == "-" {
		_, err := stdout.Write(data)
		return err
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		os.Remove(path)
		return err
	}
	return nil
}
