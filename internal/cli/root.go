// Package cli provides the command-line interface for blotch.
package cli

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/hashicorp/go-hclog"
	"github.com/spf13/cobra"

	"github.com/jmylchreest/blotch/internal/version"
)

// globalOptions holds flags shared by every subcommand.
type globalOptions struct {
	verbose bool
	quiet   bool
}

// logLevel maps the verbosity flags to an hclog level. Quiet wins over verbose.
func (o *globalOptions) logLevel() hclog.Level {
	switch {
	case o.quiet:
		return hclog.Off
	case o.verbose:
		return hclog.Debug
	default:
		return hclog.Warn
	}
}

// newLogger builds the command logger writing to w.
func (o *globalOptions) newLogger(w io.Writer) hclog.Logger {
	return hclog.New(&hclog.LoggerOptions{
		Name:   "blotch",
		Level:  o.logLevel(),
		Output: w,
	})
}

// NewRootCmd builds the blotch command tree.
func NewRootCmd() *cobra.Command {
	opts := &globalOptions{}

	rootCmd := &cobra.Command{
		Use:   "blotch",
		Short: "Extract the significant colours of an image",
		Long: `Blotch extracts a palette of visually significant colours from an image.

Colours are clustered in a perceptual colour space, then scored by how
much of the image they cover and how coherent their regions are, so
scattered noise is dropped and large areas of colour are kept.`,
		Version:      version.Current().Version,
		SilenceUsage: true,
	}

	rootCmd.PersistentFlags().BoolVarP(&opts.verbose, "verbose", "v", false, "enable verbose output")
	rootCmd.PersistentFlags().BoolVarP(&opts.quiet, "quiet", "q", false, "suppress non-error output")

	rootCmd.SetVersionTemplate(version.String() + "\n")

	rootCmd.AddCommand(newVersionCmd())
	rootCmd.AddCommand(newExtractCmd(opts))
	rootCmd.AddCommand(newStoreCmd(opts))

	return rootCmd
}

func newVersionCmd() *cobra.Command {
	var asJSON bool
	cmd := &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Long:  `Print detailed version information including build date, commit hash, and Go version.`,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			info := version.Current()
			if !asJSON {
				fmt.Fprintln(cmd.OutOrStdout(), info)
				return nil
			}
			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(info)
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "print version information as JSON")
	return cmd
}
