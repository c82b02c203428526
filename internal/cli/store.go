package cli

import (
	"context"
	"fmt"
	"strconv"

	"github.com/hashicorp/go-hclog"
	"github.com/spf13/cobra"

	"github.com/jmylchreest/blotch/internal/store"
)

// openStore opens the palette store at path, or the default location when empty.
func openStore(ctx context.Context, path string, logger hclog.Logger) (*store.Store, error) {
	if path == "" {
		var err error
		if path, err = store.DefaultPath(); err != nil {
			return nil, err
		}
	}
	st, err := store.Open(ctx, path, logger.Named("store"))
	if err != nil {
		return nil, fmt.Errorf("failed to open palette store: %w", err)
	}
	logger.Debug("palette store opened", "path", path)
	return st, nil
}

func newStoreCmd(global *globalOptions) *cobra.Command {
	var path string

	cmd := &cobra.Command{
		Use:   "store",
		Short: "Inspect the palette store",
		Long: `Inspect and trim the palette store used by 'blotch extract --store'.

The store keeps one palette per image content and extraction settings, so
repeated extractions of an unchanged image skip clustering.`,
	}
	cmd.PersistentFlags().StringVar(&path, "store-path", "", "palette store database (default: user cache dir)")

	cmd.AddCommand(&cobra.Command{
		Use:   "list",
		Short: "List stored palettes, most recently used first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			logger := global.newLogger(cmd.ErrOrStderr())
			st, err := openStore(cmd.Context(), path, logger)
			if err != nil {
				return err
			}
			defer st.Close()

			entries, err := st.List(cmd.Context())
			if err != nil {
				return err
			}
			if len(entries) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "No stored palettes")
				return nil
			}

			table := NewTable([]string{"KEY", "SOURCE", "SPACE", "COLORS", "LAST USED"})
			table.AlignRight(3)
			for _, e := range entries {
				table.AddRow([]string{
					e.Key[:12],
					e.Source,
					string(e.ColorSpace),
					strconv.Itoa(e.Count),
					e.UsedAt.Local().Format("2006-01-02 15:04:05"),
				})
			}
			fmt.Fprint(cmd.OutOrStdout(), table.Render())
			return nil
		},
	})

	var keep int
	pruneCmd := &cobra.Command{
		Use:   "prune",
		Short: "Remove all but the most recently used palettes",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if keep < 0 {
				return fmt.Errorf("--keep must not be negative, got %d", keep)
			}
			logger := global.newLogger(cmd.ErrOrStderr())
			st, err := openStore(cmd.Context(), path, logger)
			if err != nil {
				return err
			}
			defer st.Close()

			var removed int
			if keep == 0 {
				removed, err = st.Clear(cmd.Context())
			} else {
				removed, err = st.Prune(cmd.Context(), keep)
			}
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Removed %d palettes\n", removed)
			return nil
		},
	}
	pruneCmd.Flags().IntVar(&keep, "keep", store.DefaultMaxEntries, "number of palettes to keep (0 removes all)")
	cmd.AddCommand(pruneCmd)

	return cmd
}
